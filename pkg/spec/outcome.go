package spec

import "sort"

// OutcomeSpec is a reusable group of metrics describing one product
// outcome. Experiments pull outcomes in by slug; the outcome's default
// metrics join the experiment's weekly and overall lists, and all of its
// definitions become referenceable.
type OutcomeSpec struct {
	FriendlyName   string                       `json:"friendly_name"`
	Description    string                       `json:"description"`
	DefaultMetrics []MetricReference            `json:"default_metrics,omitempty"`
	Metrics        map[string]*MetricDefinition `json:"metrics,omitempty"`
	Parameters     ParameterSpec                `json:"parameters,omitempty"`
	DataSources    DataSourcesSpec              `json:"data_sources,omitempty"`
}

// OutcomeSpecFromMap structures a decoded outcome fragment.
func OutcomeSpecFromMap(m map[string]any) (*OutcomeSpec, error) {
	o := &OutcomeSpec{
		Metrics:     map[string]*MetricDefinition{},
		Parameters:  NewParameterSpec(),
		DataSources: NewDataSourcesSpec(),
	}
	for key, v := range m {
		var err error
		switch key {
		case "friendly_name":
			o.FriendlyName, err = stringField(v, "friendly_name")
		case "description":
			o.Description, err = stringField(v, "description")
		case "default_metrics":
			var names []string
			names, err = stringList(v, "default_metrics")
			if err == nil {
				for _, name := range names {
					o.DefaultMetrics = append(o.DefaultMetrics, MetricReference{Name: name})
				}
			}
		case "metrics":
			var sub map[string]any
			sub, err = table(v, "metrics")
			if err == nil {
				for name, raw := range sub {
					mt, terr := table(raw, "metrics."+name)
					if terr != nil {
						return nil, terr
					}
					def, derr := metricDefinitionFromMap(name, mt, "metrics."+name)
					if derr != nil {
						return nil, derr
					}
					o.Metrics[name] = def
				}
			}
		case "parameters":
			var sub map[string]any
			sub, err = table(v, "parameters")
			if err == nil {
				o.Parameters, err = parameterSpecFromMap(sub, "parameters")
			}
		case "data_sources":
			var sub map[string]any
			sub, err = table(v, "data_sources")
			if err == nil {
				o.DataSources, err = dataSourcesSpecFromMap(sub, "data_sources")
			}
		default:
			err = NewInvalidError("unexpected outcome key %q", key)
		}
		if err != nil {
			return nil, err
		}
	}
	for _, ref := range o.DefaultMetrics {
		if _, ok := o.Metrics[ref.Name]; !ok {
			return nil, NewInvalidError("default metric %q is not defined in the outcome", ref.Name)
		}
	}
	return o, nil
}

// Clone returns a deep copy of the outcome.
func (o *OutcomeSpec) Clone() *OutcomeSpec {
	out := &OutcomeSpec{
		FriendlyName:   o.FriendlyName,
		Description:    o.Description,
		DefaultMetrics: append([]MetricReference(nil), o.DefaultMetrics...),
		Metrics:        map[string]*MetricDefinition{},
		Parameters:     o.Parameters.Clone(),
		DataSources:    o.DataSources.Clone(),
	}
	for name, def := range o.Metrics {
		out.Metrics[name] = def.Clone()
	}
	return out
}

// sortedMetricNames returns the outcome's metric names in stable order.
func (o *OutcomeSpec) sortedMetricNames() []string {
	names := make([]string, 0, len(o.Metrics))
	for name := range o.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
