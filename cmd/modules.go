package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kilianp07/consolidator/app/plugins"
)

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "List the module types available in the configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat := plugins.Catalog()
		kinds := make([]string, 0, len(cat))
		for k := range cat {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", k, strings.Join(cat[k], ", ")); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modulesCmd)
}
