package spec

import (
	"encoding/json"

	"github.com/experihub/experihub/pkg/experiment"
)

// AnalysisSpec is the mutable override form of an experiment analysis:
// the union of every configuration fragment that applies to an
// experiment. Specs are merged together and then resolved once into an
// immutable AnalysisConfiguration.
type AnalysisSpec struct {
	Experiment   ExperimentSpec  `json:"experiment,omitempty"`
	Metrics      MetricsSpec     `json:"metrics,omitempty"`
	DataSources  DataSourcesSpec `json:"data_sources,omitempty"`
	Segments     SegmentsSpec    `json:"segments,omitempty"`
	Parameters   ParameterSpec   `json:"parameters,omitempty"`
	FriendlyName string          `json:"friendly_name,omitempty"`
	Description  string          `json:"description,omitempty"`
}

// NewAnalysisSpec returns an empty spec with initialized containers.
func NewAnalysisSpec() *AnalysisSpec {
	return &AnalysisSpec{
		Metrics:     NewMetricsSpec(),
		DataSources: NewDataSourcesSpec(),
		Segments:    NewSegmentsSpec(),
		Parameters:  NewParameterSpec(),
	}
}

// AnalysisSpecFromMap structures a decoded experiment fragment.
func AnalysisSpecFromMap(m map[string]any) (*AnalysisSpec, error) {
	s := NewAnalysisSpec()
	for key, v := range m {
		var err error
		switch key {
		case "experiment":
			var sub map[string]any
			sub, err = table(v, "experiment")
			if err == nil {
				s.Experiment, err = experimentSpecFromMap(sub, "experiment")
			}
		case "metrics":
			var sub map[string]any
			sub, err = table(v, "metrics")
			if err == nil {
				s.Metrics, err = metricsSpecFromMap(sub, "metrics")
			}
		case "data_sources":
			var sub map[string]any
			sub, err = table(v, "data_sources")
			if err == nil {
				s.DataSources, err = dataSourcesSpecFromMap(sub, "data_sources")
			}
		case "segments":
			var sub map[string]any
			sub, err = table(v, "segments")
			if err == nil {
				s.Segments, err = segmentsSpecFromMap(sub, "segments")
			}
		case "parameters":
			var sub map[string]any
			sub, err = table(v, "parameters")
			if err == nil {
				s.Parameters, err = parameterSpecFromMap(sub, "parameters")
			}
		case "friendly_name":
			s.FriendlyName, err = stringField(v, "friendly_name")
		case "description":
			s.Description, err = stringField(v, "description")
		}
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Merge folds other into s. Other wins on scalar conflicts; reference
// lists append; keyed definitions merge per name.
func (s *AnalysisSpec) Merge(other *AnalysisSpec) {
	s.Experiment.Merge(other.Experiment)
	s.Metrics.Merge(other.Metrics)
	s.DataSources.Merge(other.DataSources)
	s.Segments.Merge(other.Segments)
	s.Parameters.Merge(other.Parameters)
	if other.FriendlyName != "" {
		s.FriendlyName = other.FriendlyName
	}
	if other.Description != "" {
		s.Description = other.Description
	}
}

// MergeParameters folds parameter definitions into s with value
// resolution: values already configured on s win, the definitions'
// defaults fill in, and a parameter left without a value is an error.
func (s *AnalysisSpec) MergeParameters(other ParameterSpec) error {
	if s.Parameters.Definitions == nil {
		s.Parameters = NewParameterSpec()
	}
	for name, donor := range other.Definitions {
		receiver, ok := s.Parameters.Definitions[name]
		if !ok {
			receiver = &ParameterDefinition{Name: name}
		}
		merged, err := mergeParam(receiver, donor)
		if err != nil {
			return err
		}
		s.Parameters.Definitions[name] = merged
	}
	return nil
}

// MergeOutcome folds an outcome into s: its default metrics join the
// weekly and overall lists, all of its metric and data source definitions
// become referenceable, and its parameters merge with value resolution.
func (s *AnalysisSpec) MergeOutcome(o *OutcomeSpec) error {
	s.Metrics.Weekly = append(s.Metrics.Weekly, o.DefaultMetrics...)
	s.Metrics.Overall = append(s.Metrics.Overall, o.DefaultMetrics...)
	if s.Metrics.Definitions == nil {
		s.Metrics.Definitions = map[string]*MetricDefinition{}
	}
	for _, name := range o.sortedMetricNames() {
		def := o.Metrics[name]
		if existing, ok := s.Metrics.Definitions[name]; ok {
			existing.MergeFrom(def)
		} else {
			s.Metrics.Definitions[name] = def.Clone()
		}
	}
	s.DataSources.Merge(o.DataSources)
	return s.MergeParameters(o.Parameters)
}

// Clone returns a deep copy of the spec.
func (s *AnalysisSpec) Clone() *AnalysisSpec {
	return &AnalysisSpec{
		Experiment:   s.Experiment.Clone(),
		Metrics:      s.Metrics.Clone(),
		DataSources:  s.DataSources.Clone(),
		Segments:     s.Segments.Clone(),
		Parameters:   s.Parameters.Clone(),
		FriendlyName: s.FriendlyName,
		Description:  s.Description,
	}
}

// finalizeParameters applies defaults to parameters that configuration
// never gave values and checks value shapes against distinct_by_branch.
func (s *AnalysisSpec) finalizeParameters() error {
	for name, def := range s.Parameters.Definitions {
		if !def.Value.IsSet() {
			def.Value = def.Default.Clone()
		}
		if !def.Value.IsSet() {
			return NewInvalidError("parameter %q has no value and no default", name)
		}
		if def.DistinctByBranch != nil {
			if *def.DistinctByBranch && !def.Value.IsBranched() {
				return NewInvalidError("parameter %q is distinct by branch but has a scalar value", name)
			}
			if !*def.DistinctByBranch && def.Value.IsBranched() {
				return NewInvalidError("parameter %q is not distinct by branch but has per-branch values", name)
			}
		}
	}
	return nil
}

// Resolve produces the immutable configuration: the experiment overrides
// applied, every reference expanded, every template rendered. The spec
// itself is not modified.
func (s *AnalysisSpec) Resolve(exp *experiment.Experiment, cat Catalog) (*AnalysisConfiguration, error) {
	work := s.Clone()
	if err := work.finalizeParameters(); err != nil {
		return nil, err
	}
	if work.Experiment.IsPrivate && work.Experiment.DatasetID == "" {
		return nil, NewInvalidError("experiment %s is private but sets no dataset_id", exp.NormandySlug)
	}
	expConf, err := work.Experiment.Resolve(work, exp, cat)
	if err != nil {
		return nil, err
	}
	metrics, err := work.Metrics.Resolve(work, expConf, cat)
	if err != nil {
		return nil, err
	}
	return &AnalysisConfiguration{experiment: expConf, metrics: metrics}, nil
}

// DefaultForExperiment builds the spec an experiment gets before its own
// configuration file is applied: the platform defaults plus every outcome
// the launcher attached.
func DefaultForExperiment(exp *experiment.Experiment, cat Catalog) (*AnalysisSpec, error) {
	s := NewAnalysisSpec()
	if defaults := cat.PlatformDefaults(exp.AppName); defaults != nil {
		s.Merge(defaults.Clone())
	}
	for _, slug := range exp.Outcomes {
		outcome := cat.Outcome(slug, exp.AppName)
		if outcome == nil {
			return nil, NewDefinitionNotFound("outcome", slug)
		}
		if err := s.MergeOutcome(outcome.Clone()); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// AnalysisConfiguration is a fully resolved analysis: the experiment
// configuration plus the summaries to compute per period. Instances are
// immutable.
type AnalysisConfiguration struct {
	experiment *ExperimentConfiguration
	metrics    map[AnalysisPeriod][]*Summary
}

// Experiment returns the resolved experiment configuration.
func (c *AnalysisConfiguration) Experiment() *ExperimentConfiguration {
	return c.experiment
}

// MetricsFor returns the summaries for one analysis period.
func (c *AnalysisConfiguration) MetricsFor(period AnalysisPeriod) []*Summary {
	return c.metrics[period]
}

// Metrics returns all summaries keyed by period.
func (c *AnalysisConfiguration) Metrics() map[AnalysisPeriod][]*Summary {
	return c.metrics
}

// MarshalJSON serializes the configuration for export.
func (c *AnalysisConfiguration) MarshalJSON() ([]byte, error) {
	out := struct {
		Experiment *ExperimentConfiguration      `json:"experiment"`
		Metrics    map[AnalysisPeriod][]*Summary `json:"metrics"`
	}{
		Experiment: c.experiment,
		Metrics:    c.metrics,
	}
	return json.Marshal(out)
}
