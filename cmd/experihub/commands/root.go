package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/experihub/experihub/pkg/catalog"
)

var (
	// Global flags
	configDirs []string
	verbose    bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "experihub",
		Short: "ExperiHub - experiment analysis configuration engine",
		Long: `ExperiHub resolves layered experiment analysis configuration into
fully specified, immutable analysis configurations.

It loads trees of configuration fragments (experiment configs, platform
defaults, shared definitions, outcome snippets, monitoring projects),
merges them with well-defined precedence, and expands every metric,
segment, and data source reference into concrete definitions with all
templated expressions rendered.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	rootCmd.PersistentFlags().StringSliceVarP(&configDirs, "config-dir", "c", []string{"."}, "configuration directories, later ones take precedence")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newResolveCommand())
	rootCmd.AddCommand(newListCommand())

	return rootCmd
}

// loadCollection opens every configured directory and merges the loaded
// collections in order.
func loadCollection(logger zerolog.Logger) (*catalog.Collection, error) {
	srcs := make([]catalog.Source, 0, len(configDirs))
	defer func() {
		for _, src := range srcs {
			src.Close()
		}
	}()
	for _, dir := range configDirs {
		src, err := catalog.NewDirSource(dir)
		if err != nil {
			return nil, err
		}
		srcs = append(srcs, src)
	}
	return catalog.FromSources(logger, srcs...)
}
