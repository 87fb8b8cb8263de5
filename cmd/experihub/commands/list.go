package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List loaded configuration entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			collection, err := loadCollection(log.Logger)
			if err != nil {
				return err
			}

			fmt.Printf("Platforms: %v\n", collection.Platforms())
			fmt.Printf("Experiment configs (%d):\n", len(collection.Configs))
			for _, cfg := range collection.Configs {
				fmt.Printf("  %s (modified %s)\n", cfg.Slug, cfg.LastModified.Format("2006-01-02"))
			}
			fmt.Printf("Outcomes (%d):\n", len(collection.Outcomes))
			for _, o := range collection.Outcomes {
				fmt.Printf("  %s/%s\n", o.Platform, o.Slug)
			}
			fmt.Printf("Projects (%d):\n", len(collection.Projects))
			for _, p := range collection.Projects {
				fmt.Printf("  %s\n", p.Slug)
			}
			return nil
		},
	}

	return cmd
}
