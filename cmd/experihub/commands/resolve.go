package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/experihub/experihub/pkg/experiment"
	"github.com/experihub/experihub/pkg/spec"
)

func newResolveCommand() *cobra.Command {
	var experimentFile string

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve an experiment's analysis configuration",
		Long: `Resolve the full analysis configuration for one experiment.

The experiment record is read from a JSON file as published by the
experiment launcher. The platform defaults, attached outcomes, and the
experiment's own config file are merged and resolved; the result is
printed as JSON.`,
		Example: `  # Resolve against the shared configuration tree
  experihub resolve -c ./metric-hub --experiment ./experiment.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(experimentFile)
			if err != nil {
				return err
			}
			var exp experiment.Experiment
			if err := json.Unmarshal(data, &exp); err != nil {
				return fmt.Errorf("invalid experiment record: %w", err)
			}

			collection, err := loadCollection(log.Logger)
			if err != nil {
				return err
			}

			analysisSpec, err := spec.DefaultForExperiment(&exp, collection)
			if err != nil {
				return err
			}
			if cfg := collection.SpecForExperiment(exp.NormandySlug); cfg != nil {
				log.Debug().Str("experiment", exp.NormandySlug).Msg("applying experiment config overrides")
				analysisSpec.Merge(cfg.Spec)
			}

			conf, err := analysisSpec.Resolve(&exp, collection)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(conf, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&experimentFile, "experiment", "", "path to the experiment record JSON")
	cmd.MarkFlagRequired("experiment")

	return cmd
}
