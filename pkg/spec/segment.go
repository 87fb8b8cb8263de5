package spec

import "go.starlark.net/starlark"

// SegmentDataSource is a resolved table that segment membership is
// computed from, with a window of days relative to enrollment.
type SegmentDataSource struct {
	Name                 string `json:"name"`
	FromExpression       string `json:"from_expression"`
	WindowStart          int    `json:"window_start"`
	WindowEnd            int    `json:"window_end"`
	ClientIDColumn       string `json:"client_id_column"`
	SubmissionDateColumn string `json:"submission_date_column"`
	FriendlyName         string `json:"friendly_name,omitempty"`
	Description          string `json:"description,omitempty"`
}

// Segment is a resolved client subgroup: a membership expression over a
// segment data source.
type Segment struct {
	Name             string             `json:"name"`
	DataSource       *SegmentDataSource `json:"data_source"`
	SelectExpression string             `json:"select_expression"`
	FriendlyName     string             `json:"friendly_name,omitempty"`
	Description      string             `json:"description,omitempty"`
}

// SegmentDataSourceDefinition is the override form of a segment data
// source.
type SegmentDataSourceDefinition struct {
	Name                 string `json:"name"`
	FromExpression       string `json:"from_expression,omitempty"`
	WindowStart          *int   `json:"window_start,omitempty"`
	WindowEnd            *int   `json:"window_end,omitempty"`
	ClientIDColumn       string `json:"client_id_column,omitempty"`
	SubmissionDateColumn string `json:"submission_date_column,omitempty"`
	FriendlyName         string `json:"friendly_name,omitempty"`
	Description          string `json:"description,omitempty"`
}

func segmentDataSourceDefinitionFromMap(name string, m map[string]any, path string) (*SegmentDataSourceDefinition, error) {
	d := &SegmentDataSourceDefinition{Name: name}
	for key, v := range m {
		var err error
		switch key {
		case "from_expression":
			d.FromExpression, err = stringField(v, path+".from_expression")
		case "window_start":
			var n int
			n, err = intField(v, path+".window_start")
			if err == nil {
				d.WindowStart = &n
			}
		case "window_end":
			var n int
			n, err = intField(v, path+".window_end")
			if err == nil {
				d.WindowEnd = &n
			}
		case "client_id_column":
			d.ClientIDColumn, err = stringField(v, path+".client_id_column")
		case "submission_date_column":
			d.SubmissionDateColumn, err = stringField(v, path+".submission_date_column")
		case "friendly_name":
			d.FriendlyName, err = stringField(v, path+".friendly_name")
		case "description":
			d.Description, err = stringField(v, path+".description")
		}
		if err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Resolve applies defaults, renders the from_expression template, and
// produces the immutable segment data source.
func (d *SegmentDataSourceDefinition) Resolve(s *AnalysisSpec, conf *ExperimentConfiguration, cat Catalog) (*SegmentDataSource, error) {
	if d.FromExpression == "" {
		return nil, NewInvalidError("segment data source %q has no from_expression", d.Name)
	}
	from, err := cat.Env().Render(d.FromExpression, map[string]starlark.Value{
		"experiment": conf.templateValue(),
	})
	if err != nil {
		return nil, err
	}
	ds := &SegmentDataSource{
		Name:                 d.Name,
		FromExpression:       from,
		ClientIDColumn:       d.ClientIDColumn,
		SubmissionDateColumn: d.SubmissionDateColumn,
		FriendlyName:         d.FriendlyName,
		Description:          d.Description,
	}
	if d.WindowStart != nil {
		ds.WindowStart = *d.WindowStart
	}
	if d.WindowEnd != nil {
		ds.WindowEnd = *d.WindowEnd
	}
	if ds.ClientIDColumn == "" {
		ds.ClientIDColumn = "client_id"
	}
	if ds.SubmissionDateColumn == "" {
		ds.SubmissionDateColumn = "submission_date"
	}
	return ds, nil
}

// MergeFrom copies every set field of other into d.
func (d *SegmentDataSourceDefinition) MergeFrom(other *SegmentDataSourceDefinition) {
	if other.FromExpression != "" {
		d.FromExpression = other.FromExpression
	}
	if other.WindowStart != nil {
		n := *other.WindowStart
		d.WindowStart = &n
	}
	if other.WindowEnd != nil {
		n := *other.WindowEnd
		d.WindowEnd = &n
	}
	if other.ClientIDColumn != "" {
		d.ClientIDColumn = other.ClientIDColumn
	}
	if other.SubmissionDateColumn != "" {
		d.SubmissionDateColumn = other.SubmissionDateColumn
	}
	if other.FriendlyName != "" {
		d.FriendlyName = other.FriendlyName
	}
	if other.Description != "" {
		d.Description = other.Description
	}
}

// Clone returns a deep copy of the definition.
func (d *SegmentDataSourceDefinition) Clone() *SegmentDataSourceDefinition {
	out := *d
	if d.WindowStart != nil {
		n := *d.WindowStart
		out.WindowStart = &n
	}
	if d.WindowEnd != nil {
		n := *d.WindowEnd
		out.WindowEnd = &n
	}
	return &out
}

// SegmentDataSourceReference is a by-name reference to a segment data
// source definition.
type SegmentDataSourceReference struct {
	Name string `json:"name"`
}

// Resolve looks the reference up locally first, then in the catalog.
func (r *SegmentDataSourceReference) Resolve(s *AnalysisSpec, conf *ExperimentConfiguration, cat Catalog) (*SegmentDataSource, error) {
	if def, ok := s.Segments.DataSources[r.Name]; ok {
		return def.Resolve(s, conf, cat)
	}
	if def := cat.SegmentSourceDefinition(r.Name, conf.AppName()); def != nil {
		return def.Resolve(s, conf, cat)
	}
	return nil, NewDefinitionNotFound("segment data source", r.Name)
}

// SegmentDefinition is the override form of a segment.
type SegmentDefinition struct {
	Name             string                      `json:"name"`
	DataSource       *SegmentDataSourceReference `json:"data_source,omitempty"`
	SelectExpression string                      `json:"select_expression,omitempty"`
	FriendlyName     string                      `json:"friendly_name,omitempty"`
	Description      string                      `json:"description,omitempty"`
}

func segmentDefinitionFromMap(name string, m map[string]any, path string) (*SegmentDefinition, error) {
	d := &SegmentDefinition{Name: name}
	for key, v := range m {
		var err error
		switch key {
		case "data_source":
			var s string
			s, err = stringField(v, path+".data_source")
			if err == nil {
				d.DataSource = &SegmentDataSourceReference{Name: s}
			}
		case "select_expression":
			d.SelectExpression, err = stringField(v, path+".select_expression")
		case "friendly_name":
			d.FriendlyName, err = stringField(v, path+".friendly_name")
		case "description":
			d.Description, err = stringField(v, path+".description")
		}
		if err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Resolve renders the membership expression and resolves the data source
// reference.
func (d *SegmentDefinition) Resolve(s *AnalysisSpec, conf *ExperimentConfiguration, cat Catalog) (*Segment, error) {
	if d.DataSource == nil {
		return nil, NewInvalidError("segment %q has no data source", d.Name)
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
	return &Segment{
		Name:             d.Name,
		DataSource:       ds,
		SelectExpression: sel,
		FriendlyName:     d.FriendlyName,
		Description:      d.Description,
	}, nil
}

// MergeFrom copies every set field of other into d.
func (d *SegmentDefinition) MergeFrom(other *SegmentDefinition) {
	if other.DataSource != nil {
		d.DataSource = &SegmentDataSourceReference{Name: other.DataSource.Name}
	}
	if other.SelectExpression != "" {
		d.SelectExpression = other.SelectExpression
	}
	if other.FriendlyName != "" {
		d.FriendlyName = other.FriendlyName
	}
	if other.Description != "" {
		d.Description = other.Description
	}
}

// Clone returns a deep copy of the definition.
func (d *SegmentDefinition) Clone() *SegmentDefinition {
	out := *d
	if d.DataSource != nil {
		out.DataSource = &SegmentDataSourceReference{Name: d.DataSource.Name}
	}
	return &out
}

// SegmentReference is a by-name reference to a segment definition.
type SegmentReference struct {
	Name string `json:"name"`
}

// Resolve looks the reference up locally first, then in the catalog.
func (r *SegmentReference) Resolve(s *AnalysisSpec, conf *ExperimentConfiguration, cat Catalog) (*Segment, error) {
	if def, ok := s.Segments.Definitions[r.Name]; ok {
		return def.Resolve(s, conf, cat)
	}
	if def := cat.SegmentDefinition(r.Name, conf.AppName()); def != nil {
		return def.Resolve(s, conf, cat)
	}
	return nil, NewDefinitionNotFound("segment", r.Name)
}

// SegmentsSpec holds segment and segment data source definitions. The
// data_sources key is reserved; every other key defines a segment.
type SegmentsSpec struct {
	Definitions map[string]*SegmentDefinition           `json:"definitions,omitempty"`
	DataSources map[string]*SegmentDataSourceDefinition `json:"data_sources,omitempty"`
}

// NewSegmentsSpec returns an empty, initialized spec.
func NewSegmentsSpec() SegmentsSpec {
	return SegmentsSpec{
		Definitions: map[string]*SegmentDefinition{},
		DataSources: map[string]*SegmentDataSourceDefinition{},
	}
}

func segmentsSpecFromMap(m map[string]any, path string) (SegmentsSpec, error) {
	s := NewSegmentsSpec()
	for key, v := range m {
		sub, err := table(v, path+"."+key)
		if err != nil {
			return s, err
		}
		if key == "data_sources" {
			for name, raw := range sub {
				srcTable, err := table(raw, path+".data_sources."+name)
				if err != nil {
					return s, err
				}
				def, err := segmentDataSourceDefinitionFromMap(name, srcTable, path+".data_sources."+name)
				if err != nil {
					return s, err
				}
				s.DataSources[name] = def
			}
			continue
		}
		def, err := segmentDefinitionFromMap(key, sub, path+"."+key)
		if err != nil {
			return s, err
		}
		s.Definitions[key] = def
	}
	return s, nil
}

// Merge folds other's definitions and data sources into s, other winning
// on conflicting fields.
func (s *SegmentsSpec) Merge(other SegmentsSpec) {
	if s.Definitions == nil {
		s.Definitions = map[string]*SegmentDefinition{}
	}
	if s.DataSources == nil {
		s.DataSources = map[string]*SegmentDataSourceDefinition{}
	}
	for name, def := range other.Definitions {
		if existing, ok := s.Definitions[name]; ok {
			existing.MergeFrom(def)
		} else {
			s.Definitions[name] = def.Clone()
		}
	}
	for name, def := range other.DataSources {
		if existing, ok := s.DataSources[name]; ok {
			existing.MergeFrom(def)
		} else {
			s.DataSources[name] = def.Clone()
		}
	}
}

// Clone returns a deep copy of the spec.
func (s SegmentsSpec) Clone() SegmentsSpec {
	out := NewSegmentsSpec()
	for name, def := range s.Definitions {
		out.Definitions[name] = def.Clone()
	}
	for name, def := range s.DataSources {
		out.DataSources[name] = def.Clone()
	}
	return out
}
