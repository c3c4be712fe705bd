package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/FranksOps/sprig/internal/keyword"
)

var seedCmd = &cobra.Command{
	Use:   "seed <input>",
	Short: "Show how an input is classified and expanded, without API calls",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input := strings.Join(args, " ")

		norm := keyword.Default()
		if cfg.Research.LegacyFallback {
			norm = keyword.NewNormalizer(keyword.LegacyTables())
		}

		seed := norm.Extract(input)
		base := norm.Sanitize(seed.Phrase)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "kind:  %s\n", seed.Kind)
		fmt.Fprintf(out, "seed:  %s\n", seed.Phrase)
		if base == "" {
			return fmt.Errorf("input %q reduces to an empty seed", input)
		}
		fmt.Fprintf(out, "base:  %s\n", base)
		fmt.Fprintln(out, "variations:")
		for _, v := range norm.BuildVariations(base) {
			fmt.Fprintf(out, "  %s\n", v)
		}
		return nil
	},
}
