package spec

import "go.starlark.net/starlark"

// AnalysisWindow is a boundary that an exposure signal's window can be
// anchored to.
type AnalysisWindow string

const (
	WindowEnrollmentStart AnalysisWindow = "enrollment_start"
	WindowEnrollmentEnd   AnalysisWindow = "enrollment_end"
	WindowAnalysisStart   AnalysisWindow = "analysis_window_start"
	WindowAnalysisEnd     AnalysisWindow = "analysis_window_end"
)

// Valid reports whether w is a defined analysis window boundary.
func (w AnalysisWindow) Valid() bool {
	switch w {
	case WindowEnrollmentStart, WindowEnrollmentEnd, WindowAnalysisStart, WindowAnalysisEnd:
		return true
	}
	return false
}

// ExposureSignal is a resolved event that marks a client as exposed to an
// experiment's treatment.
type ExposureSignal struct {
	Name             string         `json:"name"`
	DataSource       *DataSource    `json:"data_source"`
	SelectExpression string         `json:"select_expression"`
	FriendlyName     string         `json:"friendly_name,omitempty"`
	Description      string         `json:"description,omitempty"`
	WindowStart      AnalysisWindow `json:"window_start,omitempty"`
	WindowEnd        AnalysisWindow `json:"window_end,omitempty"`
}

// ExposureSignalDefinition is the override form of an exposure signal.
type ExposureSignalDefinition struct {
	Name             string               `json:"name"`
	DataSource       *DataSourceReference `json:"data_source,omitempty"`
	SelectExpression string               `json:"select_expression,omitempty"`
	FriendlyName     string               `json:"friendly_name,omitempty"`
	Description      string               `json:"description,omitempty"`
	WindowStart      AnalysisWindow       `json:"window_start,omitempty"`
	WindowEnd        AnalysisWindow       `json:"window_end,omitempty"`
}

func exposureSignalDefinitionFromMap(m map[string]any, path string) (*ExposureSignalDefinition, error) {
	d := &ExposureSignalDefinition{}
	for key, v := range m {
		var err error
		switch key {
		case "name":
			d.Name, err = stringField(v, path+".name")
		case "data_source":
			var s string
			s, err = stringField(v, path+".data_source")
			if err == nil {
				d.DataSource = &DataSourceReference{Name: s}
			}
		case "select_expression":
			d.SelectExpression, err = stringField(v, path+".select_expression")
		case "friendly_name":
			d.FriendlyName, err = stringField(v, path+".friendly_name")
		case "description":
			d.Description, err = stringField(v, path+".description")
		case "window_start":
			var s string
			s, err = stringField(v, path+".window_start")
			if err == nil {
				d.WindowStart = AnalysisWindow(s)
				if !d.WindowStart.Valid() {
					err = NewInvalidError("%s: unknown analysis window %q", path, s)
				}
			}
		case "window_end":
			var s string
			s, err = stringField(v, path+".window_end")
			if err == nil {
				d.WindowEnd = AnalysisWindow(s)
				if !d.WindowEnd.Valid() {
					err = NewInvalidError("%s: unknown analysis window %q", path, s)
				}
			}
		}
		if err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Resolve renders the select expression and resolves the data source
// reference.
func (d *ExposureSignalDefinition) Resolve(s *AnalysisSpec, conf *ExperimentConfiguration, cat Catalog) (*ExposureSignal, error) {
	if d.DataSource == nil {
		return nil, NewInvalidError("exposure signal %q has no data source", d.Name)
	}
	ds, err := d.DataSource.Resolve(s, conf, cat)
	if err != nil {
		return nil, err
	}
	sel, err := cat.Env().Render(d.SelectExpression, map[string]starlark.Value{
		"experiment": conf.templateValue(),
	})
	if err != nil {
		return nil, err
	}
	return &ExposureSignal{
		Name:             d.Name,
		DataSource:       ds,
		SelectExpression: sel,
		FriendlyName:     d.FriendlyName,
		Description:      d.Description,
		WindowStart:      d.WindowStart,
		WindowEnd:        d.WindowEnd,
	}, nil
}

// Clone returns a deep copy of the definition.
func (d *ExposureSignalDefinition) Clone() *ExposureSignalDefinition {
	out := *d
	if d.DataSource != nil {
		out.DataSource = &DataSourceReference{Name: d.DataSource.Name}
	}
	return &out
}
