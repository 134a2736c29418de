package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/newthinker/algotrade/internal/strategy/builtin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List available strategies and their default parameters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine := builtin.NewEngine(zap.NewNop())

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tDESCRIPTION\tDEFAULTS")
		for _, info := range engine.Describe() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", info.Name, info.Description, formatDefaults(info.Defaults))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(strategiesCmd)
}

func formatDefaults(defaults map[string]float64) string {
	names := make([]string, 0, len(defaults))
	for name := range defaults {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%g", name, defaults[name])
	}
	return strings.Join(parts, " ")
}
