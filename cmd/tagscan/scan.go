package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tagscan/config"
	"tagscan/resolver"
	"tagscan/session"
	"tagscan/store"
)

var (
	scanSlot int
	scanName string
)

var scanCmd = &cobra.Command{
	Use:   "scan [address]",
	Short: "Connect to controllers, resolve their tag structures, and save them",
	Long: `Scan connects to one controller (given an address) or every enabled
controller from the configuration, resolves the full tag structure
tree, and replaces the stored tag set for each.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		targets := scanTargets(args)
		if len(targets) == 0 {
			return fmt.Errorf("no controllers to scan; pass an address or enable one in %s", cfgPath)
		}

		failed := 0
		for _, target := range targets {
			if err := scanOne(cmd.Context(), st, target); err != nil {
				fmt.Fprintf(os.Stderr, "scan %s: %v\n", target.Address, err)
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d scans failed", failed, len(targets))
		}
		return nil
	},
}

func init() {
	scanCmd.Flags().IntVar(&scanSlot, "slot", 0, "CPU slot for backplane routing")
	scanCmd.Flags().StringVar(&scanName, "name", "", "controller name for ad-hoc scans")
	rootCmd.AddCommand(scanCmd)
}

func scanTargets(args []string) []config.ControllerConfig {
	if len(args) == 1 {
		return []config.ControllerConfig{{
			Name:    scanName,
			Address: args[0],
			Slot:    byte(scanSlot),
			Enabled: true,
		}}
	}

	var out []config.ControllerConfig
	for _, c := range cfg.Controllers {
		if c.Enabled {
			out = append(out, c)
		}
	}
	return out
}

func scanOne(ctx context.Context, st *store.Store, target config.ControllerConfig) error {
	sess := session.NewLogixSession(target.Address, target.Slot)
	if err := sess.Open(ctx); err != nil {
		return err
	}
	defer sess.Close()

	info, err := sess.Info(ctx)
	if err != nil {
		return err
	}

	tags, err := resolver.Resolve(ctx, sess, resolver.Options{})
	if err != nil {
		return err
	}

	id, err := st.SaveScan(ctx, info, tags.Roots)
	if err != nil {
		return err
	}

	fmt.Printf("%s slot %d: %s rev %s, %d top-level tags (controller %d)\n",
		target.Address, target.Slot, info.ProductName, info.Revision, len(tags.Roots), id)
	logEvent("scanned %s slot %d: %d tags, %d failed scopes, %d failed tags",
		target.Address, target.Slot, len(tags.Roots), len(tags.FailedScopes), len(tags.FailedTags))
	for _, f := range tags.FailedScopes {
		scope := f.Scope
		if scope == "" {
			scope = "controller"
		}
		fmt.Printf("  scope %s failed: %v\n", scope, f.Err)
	}
	for _, f := range tags.FailedTags {
		fmt.Printf("  tag %s failed: %v\n", f.Tag, f.Err)
	}
	return nil
}
