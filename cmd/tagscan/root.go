package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"tagscan/config"
	"tagscan/logging"
	"tagscan/store"
)

// Command line flags shared by every subcommand.
var (
	cfgPath     string
	dbPath      string
	logPath     string
	debugLog    string
	debugFilter string

	cfg         *config.Config
	fileLogger  *logging.FileLogger
	debugLogger *logging.DebugLogger
)

var rootCmd = &cobra.Command{
	Use:           "tagscan",
	Short:         "Scan, browse, export, and publish Logix controller tags",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if dbPath != "" {
			cfg.Database.Path = dbPath
		}

		if logPath != "" {
			fileLogger, err = logging.NewFileLogger(logPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to open log file: %v\n", err)
			}
		}

		if debugLog != "" {
			debugLogger, err = logging.NewDebugLogger(debugLog)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to open debug log: %v\n", err)
				return nil
			}
			debugLogger.SetFilter(debugFilter)
			logging.SetGlobalDebugLogger(debugLogger)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if fileLogger != nil {
			fileLogger.Close()
		}
		if debugLogger != nil {
			debugLogger.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultPath(), "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "tag database path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logPath, "log", "", "append event log to this file")
	rootCmd.PersistentFlags().StringVar(&debugLog, "debug-log", "", "write protocol debug output to this file")
	rootCmd.PersistentFlags().StringVar(&debugFilter, "debug-filter", "",
		"comma-separated debug areas: "+strings.Join(logging.KnownAreas(), ", "))
}

// logEvent records an operational event to the --log file when one is
// configured.
func logEvent(format string, args ...interface{}) {
	fileLogger.Log(format, args...)
}

func openStore() (*store.Store, error) {
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", cfg.Database.Path, err)
	}
	return st, nil
}

// findController maps a config name, stored name, or address to a
// stored controller row.
func findController(ctx context.Context, st *store.Store, ident string) (*store.Controller, error) {
	if cc := cfg.FindController(ident); cc != nil {
		ctrl, err := st.FindController(ctx, cc.Address, cc.Slot)
		if err != nil {
			return nil, fmt.Errorf("controller %q (%s slot %d) has no stored scan; run scan first", ident, cc.Address, cc.Slot)
		}
		return ctrl, nil
	}

	list, err := st.Controllers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].Address == ident || strings.EqualFold(list[i].Name, ident) {
			return &list[i], nil
		}
	}
	return nil, fmt.Errorf("controller %q not found; run scan first", ident)
}
