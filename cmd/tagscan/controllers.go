package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var controllersCmd = &cobra.Command{
	Use:   "controllers",
	Short: "List stored controllers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		list, err := st.Controllers(cmd.Context())
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("no controllers scanned yet")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tADDRESS\tSLOT\tNAME\tREVISION\tLAST SCAN")
		for _, c := range list {
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%s\n",
				c.ID, c.Address, c.Slot, c.Name, c.Revision, c.LastScan.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(controllersCmd)
}
