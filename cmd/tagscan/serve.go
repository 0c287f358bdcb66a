package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tagscan/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only HTTP API over stored scans",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		srv := web.NewServer(&cfg.Web, st)
		if err := srv.Start(); err != nil {
			return err
		}
		fmt.Printf("serving API at %s/api/\n", srv.Address())
		if cfg.Web.TokenHash == "" {
			fmt.Println("no API token configured; endpoints are unauthenticated")
		}

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
		logEvent("web server started at %s", srv.Address())

		sig := <-sigs
		fmt.Printf("\nreceived %v, shutting down\n", sig)
		logEvent("web server stopped")
		return srv.Stop()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
