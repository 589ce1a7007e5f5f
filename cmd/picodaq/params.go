package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Print the acquisition parameters",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		src := cfg.Path()
		if src == "" {
			src = "defaults"
		}
		fmt.Fprintf(out, "# %s\n", src)
		for _, sec := range cfg.Sections() {
			fmt.Fprintf(out, "[%s]\n", sec.Name)
			for _, kv := range sec.Values {
				fmt.Fprintf(out, "%s = %d\n", kv.Key, kv.Value)
			}
		}
		return nil
	},
}
