package migrate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/markovrelay/pkg/migrate"
)

func NewMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate configuration between formats",
		Example: `  markovrelay migrate to-yaml
  markovrelay migrate to-yaml --dry-run`,
	}

	var yamlOpts migrate.ToYAMLOptions

	toYAMLCmd := &cobra.Command{
		Use:   "to-yaml",
		Short: "Convert JSON config to YAML format",
		Args:  cobra.NoArgs,
		Example: `  markovrelay migrate to-yaml
  markovrelay migrate to-yaml --dry-run
  markovrelay migrate to-yaml --config ~/.markovrelay/config.json
  markovrelay migrate to-yaml --output ~/.markovrelay/config.yaml --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := migrate.RunToYAML(yamlOpts, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if !yamlOpts.DryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "YAML config written to %s\n", result.OutputPath)
			}
			if len(result.Warnings) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "\nWarnings:")
				for _, w := range result.Warnings {
					fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", w)
				}
			}
			return nil
		},
	}

	toYAMLCmd.Flags().StringVar(&yamlOpts.ConfigPath, "config", "",
		"JSON config file path (default: ~/.markovrelay/config.json)")
	toYAMLCmd.Flags().StringVar(&yamlOpts.OutputPath, "output", "",
		"YAML output file path (default: same dir as input, .yaml extension)")
	toYAMLCmd.Flags().BoolVar(&yamlOpts.DryRun, "dry-run", false,
		"Print generated YAML without writing")
	toYAMLCmd.Flags().BoolVar(&yamlOpts.Force, "force", false,
		"Overwrite existing output file")

	cmd.AddCommand(toYAMLCmd)

	return cmd
}
