package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/c360studio/doppel/rules"
	"github.com/spf13/cobra"
)

// NewRulesCommand returns the command that prints the rule catalog
// with the instruction phrases each rule answers to.
func NewRulesCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the variation rules and their instruction synonyms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := rules.Catalog()

			if asJSON {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(catalog)
			}

			w := cmd.OutOrStdout()
			for _, info := range catalog {
				fmt.Fprintf(w, "%s\n    %s\n", info.Rule, info.Description)
				if len(info.Synonyms) > 0 {
					fmt.Fprintf(w, "    synonyms: %s\n", strings.Join(info.Synonyms, ", "))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of text")

	return cmd
}
