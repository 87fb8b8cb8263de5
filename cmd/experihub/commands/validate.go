package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newValidateCommand() *cobra.Command {
	var platform string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration trees",
		Long: `Validate every entry in the configured directories.

This command checks:
  - fragment syntax and top-level key schema
  - shared definition libraries per platform
  - outcome snippets against their platforms
  - experiment configs against a synthetic experiment
  - monitoring project consistency`,
		Example: `  # Validate configs in the current directory
  experihub validate

  # Validate an overlay on top of the shared tree
  experihub validate -c ./metric-hub -c ./private-overrides`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.Logger
			collection, err := loadCollection(logger)
			if err != nil {
				return err
			}

			log.Info().
				Strs("dirs", configDirs).
				Int("experiments", len(collection.Configs)).
				Int("outcomes", len(collection.Outcomes)).
				Int("projects", len(collection.Projects)).
				Msg("Validating configuration")

			if err := collection.Validate(platform, logger); err != nil {
				return err
			}

			fmt.Println("Configuration is valid")
			return nil
		},
	}

	cmd.Flags().StringVar(&platform, "platform", "firefox_desktop", "platform experiment configs are validated against")

	return cmd
}
