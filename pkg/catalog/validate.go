package catalog

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/experihub/experihub/pkg/experiment"
	"github.com/experihub/experihub/pkg/spec"
)

// syntheticExperiment builds a plausible launcher record so that entries
// can be resolved without a live experiment. Dates are chosen so that
// templates depending on them render.
func syntheticExperiment(slug, platform string, outcomes []string) *experiment.Experiment {
	start := time.Now().UTC().AddDate(0, 0, -366).Truncate(24 * time.Hour)
	end := start.AddDate(0, 0, 28)
	return &experiment.Experiment{
		ExperimenterSlug:   slug,
		NormandySlug:       slug,
		Type:               "v6",
		Status:             "Complete",
		StartDate:          &start,
		EndDate:            &end,
		ProposedEnrollment: 7,
		ReferenceBranch:    "control",
		Branches: []experiment.Branch{
			{Slug: "control", Ratio: 1},
			{Slug: "treatment", Ratio: 1},
		},
		AppName:  platform,
		AppID:    platform,
		Outcomes: outcomes,
		Channel:  experiment.ChannelNightly,
	}
}

// ValidateConfig resolves an experiment config against the collection on
// the given platform.
func (c *Collection) ValidateConfig(cfg *Config, platform string) error {
	exp := syntheticExperiment(cfg.Slug, platform, nil)
	s, err := spec.DefaultForExperiment(exp, c)
	if err != nil {
		return err
	}
	s.Merge(cfg.Spec)
	_, err = s.Resolve(exp, c)
	return err
}

// ValidateOutcome resolves an outcome snippet for its platform.
func (c *Collection) ValidateOutcome(o *Outcome) error {
	exp := syntheticExperiment("validation-"+o.Slug, o.Platform, []string{o.Slug})
	s, err := spec.DefaultForExperiment(exp, c)
	if err != nil {
		return err
	}
	_, err = s.Resolve(exp, c)
	return err
}

// ValidateProject checks a monitoring project's cross-field consistency.
func (c *Collection) ValidateProject(p *ProjectConfig) error {
	return p.Spec.Validate()
}

// ValidateDefinitions resolves every metric defined for a platform so that
// broken shared definitions surface without an experiment referencing
// them.
func (c *Collection) ValidateDefinitions(d *DefinitionConfig) error {
	exp := syntheticExperiment("validation-"+d.Platform, d.Platform, nil)
	s := spec.NewAnalysisSpec()
	s.Merge(d.Spec)
	for name := range d.Spec.Metrics.Definitions {
		s.Metrics.Weekly = append(s.Metrics.Weekly, spec.MetricReference{Name: name})
	}
	_, err := s.Resolve(exp, c)
	return err
}

// Validate checks every entry in the collection and reports all failures
// together.
func (c *Collection) Validate(platform string, logger zerolog.Logger) error {
	var errs []error
	for _, d := range c.Definitions {
		logger.Debug().Str("platform", d.Platform).Msg("validating definitions")
		if err := c.ValidateDefinitions(d); err != nil {
			errs = append(errs, err)
		}
	}
	for _, o := range c.Outcomes {
		logger.Debug().Str("outcome", o.Slug).Str("platform", o.Platform).Msg("validating outcome")
		if err := c.ValidateOutcome(o); err != nil {
			errs = append(errs, err)
		}
	}
	for _, cfg := range c.Configs {
		logger.Debug().Str("experiment", cfg.Slug).Msg("validating experiment config")
		if err := c.ValidateConfig(cfg, platform); err != nil {
			errs = append(errs, err)
		}
	}
	for _, p := range c.Projects {
		logger.Debug().Str("project", p.Slug).Msg("validating project")
		if err := c.ValidateProject(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
