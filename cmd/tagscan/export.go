package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tagscan/export"
	"tagscan/resolver"
	"tagscan/session"
)

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export <address|name>",
	Short: "Export a stored tag tree to a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportOut == "" {
			return fmt.Errorf("output file is required (-o FILE)")
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		ctrl, err := findController(cmd.Context(), st, args[0])
		if err != nil {
			return err
		}
		roots, err := st.TagSet(cmd.Context(), ctrl.ID)
		if err != nil {
			return err
		}

		if exportFormat == "xlsx" {
			if err := export.WriteXLSX(exportOut, roots); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", exportOut)
			return nil
		}

		f, err := os.Create(exportOut)
		if err != nil {
			return err
		}

		switch exportFormat {
		case "csv":
			err = export.WriteCSV(f, roots)
		case "json":
			err = export.WriteJSON(f, roots)
		case "xml":
			err = export.WriteXML(f, roots)
		case "md":
			info := &session.ControllerInfo{
				Address:     ctrl.Address,
				Slot:        ctrl.Slot,
				ProductName: ctrl.Name,
				Revision:    ctrl.Revision,
			}
			err = export.WriteMarkdownReport(f, info, &resolver.ControllerTags{Roots: roots})
		default:
			f.Close()
			os.Remove(exportOut)
			return fmt.Errorf("unknown format %q (csv, json, xml, xlsx, md)", exportFormat)
		}
		if err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}

		fmt.Printf("wrote %s\n", exportOut)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "output format: csv, json, xml, xlsx, md")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file path")
	rootCmd.AddCommand(exportCmd)
}
