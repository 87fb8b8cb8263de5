package spec

// XAxis selects the x dimension of operational monitoring plots.
type XAxis string

const (
	XAxisSubmissionDate XAxis = "submission_date"
	XAxisBuildID        XAxis = "build_id"
)

// PopulationSpec describes the client population a project monitors.
type PopulationSpec struct {
	DataSource              *DataSourceReference `json:"data_source,omitempty"`
	Channel                 string               `json:"channel,omitempty"`
	Branches                []string             `json:"branches,omitempty"`
	MonitorEntirePopulation bool                 `json:"monitor_entire_population,omitempty"`
	GroupByDimension        string               `json:"group_by_dimension,omitempty"`
}

// DimensionDefinition is a categorical column that monitoring results can
// be segmented by.
type DimensionDefinition struct {
	Name             string               `json:"name"`
	DataSource       *DataSourceReference `json:"data_source,omitempty"`
	SelectExpression string               `json:"select_expression,omitempty"`
	FriendlyName     string               `json:"friendly_name,omitempty"`
	Description      string               `json:"description,omitempty"`
}

// ProjectSpec is an operational monitoring project: a population observed
// over a date range with a fixed metric list.
type ProjectSpec struct {
	Name        string                          `json:"name,omitempty"`
	Platform    string                          `json:"platform,omitempty"`
	XAxis       XAxis                           `json:"xaxis,omitempty" validate:"omitempty,oneof=submission_date build_id"`
	StartDate   string                          `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate     string                          `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Metrics     []MetricReference               `json:"metrics,omitempty"`
	Population  PopulationSpec                  `json:"population,omitempty"`
	Dimensions  map[string]*DimensionDefinition `json:"dimensions,omitempty"`
	DataSources DataSourcesSpec                 `json:"data_sources,omitempty"`
}

// ProjectSpecFromMap structures a decoded project fragment.
func ProjectSpecFromMap(m map[string]any) (*ProjectSpec, error) {
	s := &ProjectSpec{
		Dimensions:  map[string]*DimensionDefinition{},
		DataSources: NewDataSourcesSpec(),
	}
	for key, v := range m {
		var err error
		switch key {
		case "project":
			var sub map[string]any
			sub, err = table(v, "project")
			if err == nil {
				err = s.projectTableFromMap(sub)
			}
		case "data_sources":
			var sub map[string]any
			sub, err = table(v, "data_sources")
			if err == nil {
				s.DataSources, err = dataSourcesSpecFromMap(sub, "data_sources")
			}
		case "dimensions":
			var sub map[string]any
			sub, err = table(v, "dimensions")
			if err == nil {
				for name, raw := range sub {
					dt, terr := table(raw, "dimensions."+name)
					if terr != nil {
						return nil, terr
					}
					dim, derr := dimensionDefinitionFromMap(name, dt, "dimensions."+name)
					if derr != nil {
						return nil, derr
					}
					s.Dimensions[name] = dim
				}
			}
		}
		if err != nil {
			return nil, err
		}
	}
	if err := structErr("project", validate.Struct(s)); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ProjectSpec) projectTableFromMap(m map[string]any) error {
	for key, v := range m {
		var err error
		switch key {
		case "name":
			s.Name, err = stringField(v, "project.name")
		case "platform":
			s.Platform, err = stringField(v, "project.platform")
		case "xaxis":
			var x string
			x, err = stringField(v, "project.xaxis")
			if err == nil {
				s.XAxis = XAxis(x)
			}
		case "start_date":
			s.StartDate, err = stringField(v, "project.start_date")
		case "end_date":
			s.EndDate, err = stringField(v, "project.end_date")
		case "metrics":
			var names []string
			names, err = stringList(v, "project.metrics")
			if err == nil {
				for _, name := range names {
					s.Metrics = append(s.Metrics, MetricReference{Name: name})
				}
			}
		case "population":
			var sub map[string]any
			sub, err = table(v, "project.population")
			if err == nil {
				err = s.populationFromMap(sub)
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *ProjectSpec) populationFromMap(m map[string]any) error {
	for key, v := range m {
		var err error
		switch key {
		case "data_source":
			var name string
			name, err = stringField(v, "project.population.data_source")
			if err == nil {
				s.Population.DataSource = &DataSourceReference{Name: name}
			}
		case "channel":
			s.Population.Channel, err = stringField(v, "project.population.channel")
		case "branches":
			s.Population.Branches, err = stringList(v, "project.population.branches")
		case "monitor_entire_population":
			s.Population.MonitorEntirePopulation, err = boolField(v, "project.population.monitor_entire_population")
		case "group_by_dimension":
			s.Population.GroupByDimension, err = stringField(v, "project.population.group_by_dimension")
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func dimensionDefinitionFromMap(name string, m map[string]any, path string) (*DimensionDefinition, error) {
	d := &DimensionDefinition{Name: name}
	for key, v := range m {
		var err error
		switch key {
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
		}
		if err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Merge copies every set field of other into s. Metric lists append;
// dimensions and data sources merge per name.
func (s *ProjectSpec) Merge(other *ProjectSpec) {
	if other.Name != "" {
		s.Name = other.Name
	}
	if other.Platform != "" {
		s.Platform = other.Platform
	}
	if other.XAxis != "" {
		s.XAxis = other.XAxis
	}
	if other.StartDate != "" {
		s.StartDate = other.StartDate
	}
	if other.EndDate != "" {
		s.EndDate = other.EndDate
	}
	s.Metrics = append(s.Metrics, other.Metrics...)
	if other.Population.DataSource != nil {
		s.Population.DataSource = &DataSourceReference{Name: other.Population.DataSource.Name}
	}
	if other.Population.Channel != "" {
		s.Population.Channel = other.Population.Channel
	}
	if len(other.Population.Branches) > 0 {
		s.Population.Branches = append([]string(nil), other.Population.Branches...)
	}
	if other.Population.MonitorEntirePopulation {
		s.Population.MonitorEntirePopulation = true
	}
	if other.Population.GroupByDimension != "" {
		s.Population.GroupByDimension = other.Population.GroupByDimension
	}
	if s.Dimensions == nil {
		s.Dimensions = map[string]*DimensionDefinition{}
	}
	for name, dim := range other.Dimensions {
		d := *dim
		s.Dimensions[name] = &d
	}
	s.DataSources.Merge(other.DataSources)
}

// Clone returns a deep copy of the spec.
func (s *ProjectSpec) Clone() *ProjectSpec {
	out := &ProjectSpec{
		Name:        s.Name,
		Platform:    s.Platform,
		XAxis:       s.XAxis,
		StartDate:   s.StartDate,
		EndDate:     s.EndDate,
		Metrics:     append([]MetricReference(nil), s.Metrics...),
		Population:  s.Population,
		Dimensions:  map[string]*DimensionDefinition{},
		DataSources: s.DataSources.Clone(),
	}
	out.Population.Branches = append([]string(nil), s.Population.Branches...)
	if s.Population.DataSource != nil {
		out.Population.DataSource = &DataSourceReference{Name: s.Population.DataSource.Name}
	}
	for name, dim := range s.Dimensions {
		d := *dim
		out.Dimensions[name] = &d
	}
	return out
}

// Validate checks cross-field consistency: date ordering and that a
// group-by dimension is actually defined.
func (s *ProjectSpec) Validate() error {
	start, err := parseDate(s.StartDate)
	if err != nil {
		return err
	}
	end, err := parseDate(s.EndDate)
	if err != nil {
		return err
	}
	if start != nil && end != nil && end.Before(*start) {
		return NewInvalidError("project %q: end_date %s precedes start_date %s", s.Name, s.EndDate, s.StartDate)
	}
	if dim := s.Population.GroupByDimension; dim != "" {
		if _, ok := s.Dimensions[dim]; !ok {
			return NewInvalidError("project %q: group_by_dimension %q is not a defined dimension", s.Name, dim)
		}
	}
	return nil
}
