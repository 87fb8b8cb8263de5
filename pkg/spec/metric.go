package spec

import (
	"sort"

	"go.starlark.net/starlark"
)

// AnalysisBasis determines which enrollment events a metric is computed
// over.
type AnalysisBasis string

const (
	// BasisEnrollments computes the metric over all enrolled clients.
	BasisEnrollments AnalysisBasis = "enrollments"
	// BasisExposures computes the metric over clients that triggered the
	// exposure signal.
	BasisExposures AnalysisBasis = "exposures"
)

// Valid reports whether b is a defined analysis basis.
func (b AnalysisBasis) Valid() bool {
	return b == BasisEnrollments || b == BasisExposures
}

// AnalysisPeriod is a time window over which summaries are computed.
type AnalysisPeriod string

const (
	PeriodDay     AnalysisPeriod = "day"
	PeriodWeek    AnalysisPeriod = "week"
	PeriodDays28  AnalysisPeriod = "days28"
	PeriodOverall AnalysisPeriod = "overall"
)

// Metric is a fully resolved metric: every field populated, the data
// source resolved, and all template expressions expanded.
type Metric struct {
	Name             string          `json:"name"`
	DataSource       *DataSource     `json:"data_source"`
	SelectExpression string          `json:"select_expression"`
	FriendlyName     string          `json:"friendly_name,omitempty"`
	Description      string          `json:"description,omitempty"`
	BiggerIsBetter   bool            `json:"bigger_is_better"`
	AnalysisBases    []AnalysisBasis `json:"analysis_bases"`
	Type             string          `json:"type"`
}

// Summary pairs a resolved metric with one statistic to compute on it.
type Summary struct {
	Metric        *Metric         `json:"metric"`
	Statistic     *Statistic      `json:"statistic"`
	PreTreatments []*PreTreatment `json:"pre_treatments,omitempty"`
}

// MetricDefinition is the override form of a metric. A definition without
// a select_expression is a partial override that falls back to the catalog
// definition of the same name.
type MetricDefinition struct {
	Name             string                    `json:"name"`
	SelectExpression string                    `json:"select_expression,omitempty"`
	DataSource       *DataSourceReference      `json:"data_source,omitempty"`
	FriendlyName     string                    `json:"friendly_name,omitempty"`
	Description      string                    `json:"description,omitempty"`
	BiggerIsBetter   *bool                     `json:"bigger_is_better,omitempty"`
	AnalysisBases    []AnalysisBasis           `json:"analysis_bases,omitempty"`
	Type             string                    `json:"type,omitempty"`
	Statistics       map[string]map[string]any `json:"statistics,omitempty"`
}

func metricDefinitionFromMap(name string, m map[string]any, path string) (*MetricDefinition, error) {
	d := &MetricDefinition{Name: name}
	for key, v := range m {
		var err error
		switch key {
		case "select_expression":
			d.SelectExpression, err = stringField(v, path+".select_expression")
		case "data_source":
			var s string
			s, err = stringField(v, path+".data_source")
			if err == nil {
				d.DataSource = &DataSourceReference{Name: s}
			}
		case "friendly_name":
			d.FriendlyName, err = stringField(v, path+".friendly_name")
		case "description":
			d.Description, err = stringField(v, path+".description")
		case "type":
			d.Type, err = stringField(v, path+".type")
		case "bigger_is_better":
			var b bool
			b, err = boolField(v, path+".bigger_is_better")
			if err == nil {
				d.BiggerIsBetter = &b
			}
		case "analysis_bases":
			var bases []string
			bases, err = stringList(v, path+".analysis_bases")
			if err == nil {
				for _, basis := range bases {
					ab := AnalysisBasis(basis)
					if !ab.Valid() {
						return nil, NewInvalidError("%s: unknown analysis basis %q", path, basis)
					}
					d.AnalysisBases = append(d.AnalysisBases, ab)
				}
			}
		case "statistics":
			var stats map[string]any
			stats, err = table(v, path+".statistics")
			if err == nil {
				d.Statistics = map[string]map[string]any{}
				for statName, statVal := range stats {
					params, perr := table(statVal, path+".statistics."+statName)
					if perr != nil {
						return nil, perr
					}
					d.Statistics[statName] = params
				}
			}
		}
		if err != nil {
			return nil, err
		}
	}
	return d, nil
}

// MergeFrom copies every set field of other into d. Statistic tables are
// replaced per statistic name rather than merged key-wise.
func (d *MetricDefinition) MergeFrom(other *MetricDefinition) {
	if other.SelectExpression != "" {
		d.SelectExpression = other.SelectExpression
	}
	if other.DataSource != nil {
		d.DataSource = &DataSourceReference{Name: other.DataSource.Name}
	}
	if other.FriendlyName != "" {
		d.FriendlyName = other.FriendlyName
	}
	if other.Description != "" {
		d.Description = other.Description
	}
	if other.Type != "" {
		d.Type = other.Type
	}
	if other.BiggerIsBetter != nil {
		b := *other.BiggerIsBetter
		d.BiggerIsBetter = &b
	}
	if len(other.AnalysisBases) > 0 {
		d.AnalysisBases = append([]AnalysisBasis(nil), other.AnalysisBases...)
	}
	for name, params := range other.Statistics {
		if d.Statistics == nil {
			d.Statistics = map[string]map[string]any{}
		}
		d.Statistics[name] = cloneParams(params)
	}
}

// Clone returns a deep copy of the definition.
func (d *MetricDefinition) Clone() *MetricDefinition {
	out := *d
	if d.DataSource != nil {
		out.DataSource = &DataSourceReference{Name: d.DataSource.Name}
	}
	if d.BiggerIsBetter != nil {
		b := *d.BiggerIsBetter
		out.BiggerIsBetter = &b
	}
	out.AnalysisBases = append([]AnalysisBasis(nil), d.AnalysisBases...)
	if d.Statistics != nil {
		out.Statistics = map[string]map[string]any{}
		for name, params := range d.Statistics {
			out.Statistics[name] = cloneParams(params)
		}
	}
	return &out
}

func cloneParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}

// Resolve turns the definition into one summary per configured statistic.
// A definition without a select_expression or data source falls back to
// the catalog definition of the same name, keeping locally configured
// statistics and analysis bases.
func (d *MetricDefinition) Resolve(s *AnalysisSpec, conf *ExperimentConfiguration, cat Catalog) ([]*Summary, error) {
	if d.SelectExpression == "" || d.DataSource == nil {
		base := cat.MetricDefinition(d.Name, conf.AppName())
		if base == nil {
			return nil, NewDefinitionNotFound("metric", d.Name)
		}
		merged := base.Clone()
		if merged.SelectExpression == "" || merged.DataSource == nil {
			return nil, NewInvalidError("metric %q: shared definition is incomplete", d.Name)
		}
		if len(d.Statistics) > 0 {
			merged.Statistics = map[string]map[string]any{}
			for name, params := range d.Statistics {
				merged.Statistics[name] = cloneParams(params)
			}
		}
		if len(d.AnalysisBases) > 0 {
			merged.AnalysisBases = append([]AnalysisBasis(nil), d.AnalysisBases...)
		}
		return merged.Resolve(s, conf, cat)
	}

	ds, err := d.DataSource.Resolve(s, conf, cat)
	if err != nil {
		return nil, err
	}

	params, err := s.Parameters.templateValue()
	if err != nil {
		return nil, err
	}
	sel, err := cat.Env().Render(d.SelectExpression, map[string]starlark.Value{
		"experiment": conf.templateValue(),
		"parameters": params,
	})
	if err != nil {
		return nil, err
	}

	bases := d.AnalysisBases
	if len(bases) == 0 {
		bases = []AnalysisBasis{BasisEnrollments, BasisExposures}
	}
	bigger := true
	if d.BiggerIsBetter != nil {
		bigger = *d.BiggerIsBetter
	}
	mtype := d.Type
	if mtype == "" {
		mtype = "scalar"
	}
	metric := &Metric{
		Name:             d.Name,
		DataSource:       ds,
		SelectExpression: sel,
		FriendlyName:     d.FriendlyName,
		Description:      d.Description,
		BiggerIsBetter:   bigger,
		AnalysisBases:    append([]AnalysisBasis(nil), bases...),
		Type:             mtype,
	}

	if len(d.Statistics) == 0 {
		return nil, NewInvalidError("metric %q defines no statistics", d.Name)
	}
	statNames := make([]string, 0, len(d.Statistics))
	for name := range d.Statistics {
		statNames = append(statNames, name)
	}
	sort.Strings(statNames)

	summaries := make([]*Summary, 0, len(statNames))
	for _, name := range statNames {
		stat, pres, err := statisticFromParams(name, d.Statistics[name], "metric "+d.Name)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, &Summary{Metric: metric, Statistic: stat, PreTreatments: pres})
	}
	return summaries, nil
}

// MetricReference is a by-name reference to a metric definition.
type MetricReference struct {
	Name string `json:"name"`
}

// Resolve expands the reference into summaries, searching the local spec
// first and the catalog second.
func (r *MetricReference) Resolve(s *AnalysisSpec, conf *ExperimentConfiguration, cat Catalog) ([]*Summary, error) {
	if def, ok := s.Metrics.Definitions[r.Name]; ok {
		return def.Resolve(s, conf, cat)
	}
	if def := cat.MetricDefinition(r.Name, conf.AppName()); def != nil {
		return def.Clone().Resolve(s, conf, cat)
	}
	return nil, NewDefinitionNotFound("metric", r.Name)
}

// MetricsSpec holds per-period metric reference lists and local metric
// definitions.
type MetricsSpec struct {
	Daily       []MetricReference            `json:"daily,omitempty"`
	Weekly      []MetricReference            `json:"weekly,omitempty"`
	Days28      []MetricReference            `json:"28_day,omitempty"`
	Overall     []MetricReference            `json:"overall,omitempty"`
	Definitions map[string]*MetricDefinition `json:"definitions,omitempty"`
}

// NewMetricsSpec returns an empty, initialized spec.
func NewMetricsSpec() MetricsSpec {
	return MetricsSpec{Definitions: map[string]*MetricDefinition{}}
}

func metricsSpecFromMap(m map[string]any, path string) (MetricsSpec, error) {
	s := NewMetricsSpec()
	for key, v := range m {
		switch key {
		case "daily", "weekly", "28_day", "overall":
			names, err := stringList(v, path+"."+key)
			if err != nil {
				return s, err
			}
			refs := make([]MetricReference, 0, len(names))
			for _, name := range names {
				refs = append(refs, MetricReference{Name: name})
			}
			switch key {
			case "daily":
				s.Daily = refs
			case "weekly":
				s.Weekly = refs
			case "28_day":
				s.Days28 = refs
			case "overall":
				s.Overall = refs
			}
		default:
			sub, err := table(v, path+"."+key)
			if err != nil {
				return s, err
			}
			def, err := metricDefinitionFromMap(key, sub, path+"."+key)
			if err != nil {
				return s, err
			}
			s.Definitions[key] = def
		}
	}
	return s, nil
}

// Merge appends other's period lists to s and folds its definitions in,
// with other taking precedence on conflicting fields.
func (s *MetricsSpec) Merge(other MetricsSpec) {
	s.Daily = append(s.Daily, other.Daily...)
	s.Weekly = append(s.Weekly, other.Weekly...)
	s.Days28 = append(s.Days28, other.Days28...)
	s.Overall = append(s.Overall, other.Overall...)
	if s.Definitions == nil {
		s.Definitions = map[string]*MetricDefinition{}
	}
	for name, def := range other.Definitions {
		if existing, ok := s.Definitions[name]; ok {
			existing.MergeFrom(def)
		} else {
			s.Definitions[name] = def.Clone()
		}
	}
}

// Clone returns a deep copy of the spec.
func (s MetricsSpec) Clone() MetricsSpec {
	out := NewMetricsSpec()
	out.Daily = append([]MetricReference(nil), s.Daily...)
	out.Weekly = append([]MetricReference(nil), s.Weekly...)
	out.Days28 = append([]MetricReference(nil), s.Days28...)
	out.Overall = append([]MetricReference(nil), s.Overall...)
	for name, def := range s.Definitions {
		out.Definitions[name] = def.Clone()
	}
	return out
}

// Resolve expands every period's reference list into summaries. When a
// (metric, statistic) pair appears more than once in a period, the
// occurrence latest in the list wins.
func (s *MetricsSpec) Resolve(sp *AnalysisSpec, conf *ExperimentConfiguration, cat Catalog) (map[AnalysisPeriod][]*Summary, error) {
	periods := []struct {
		period AnalysisPeriod
		refs   []MetricReference
	}{
		{PeriodDay, s.Daily},
		{PeriodWeek, s.Weekly},
		{PeriodDays28, s.Days28},
		{PeriodOverall, s.Overall},
	}

	out := make(map[AnalysisPeriod][]*Summary, len(periods))
	for _, p := range periods {
		var summaries []*Summary
		for _, ref := range p.refs {
			resolved, err := ref.Resolve(sp, conf, cat)
			if err != nil {
				return nil, err
			}
			summaries = append(summaries, resolved...)
		}
		seen := map[[2]string]bool{}
		var kept []*Summary
		for i := len(summaries) - 1; i >= 0; i-- {
			key := [2]string{summaries[i].Metric.Name, summaries[i].Statistic.Name}
			if seen[key] {
				continue
			}
			seen[key] = true
			kept = append(kept, summaries[i])
		}
		out[p.period] = kept
	}
	return out, nil
}
