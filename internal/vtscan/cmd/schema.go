package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"vtscan/internal/config"
	"vtscan/internal/report"
)

func newSchemaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "schema [report|config]",
		Short:     "Generate JSON schema for the report or the configuration",
		Long:      "Generate JSON schema for the scan report (default) or the VTSCAN_* configuration",
		Hidden:    true,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"report", "config"},
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.teardown()

			var v any = &report.Report{}
			if len(args) == 1 {
				switch args[0] {
				case "report":
				case "config":
					v = &config.Config{}
				default:
					return fmt.Errorf("unknown schema %q", args[0])
				}
			}

			reflector := new(jsonschema.Reflector)
			bts, err := json.MarshalIndent(reflector.Reflect(v), "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal schema: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(bts))
			return nil
		},
	}
}
