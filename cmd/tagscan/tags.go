package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tagscan/export"
	"tagscan/resolver"
)

var tagsFlat bool

var tagsCmd = &cobra.Command{
	Use:   "tags <address|name>",
	Short: "Print the stored tag tree for a controller",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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

		if tagsFlat {
			for _, row := range export.Flatten(roots) {
				fmt.Printf("%s\t%s\n", row.Path, row.Type)
			}
			return nil
		}

		printTree(roots, 0)
		return nil
	},
}

func init() {
	tagsCmd.Flags().BoolVar(&tagsFlat, "flat", false, "print one dotted path per line instead of a tree")
	rootCmd.AddCommand(tagsCmd)
}

func printTree(nodes []*resolver.TagNode, depth int) {
	for _, n := range nodes {
		fmt.Printf("%s%s  %s\n", strings.Repeat("  ", depth), n.Name, n.TypeName)
		printTree(n.Members, depth+1)
	}
}
