package spec

import "strings"

// DatasetPlaceholder marks the position in a from_expression where the
// target dataset is substituted at query-generation time.
const DatasetPlaceholder = "{dataset}"

// DefaultBuildIDColumn is the column used to extract a comparable build id
// when none is configured.
const DefaultBuildIDColumn = "SAFE.SUBSTR(application.build_id, 0, 8)"

// ExperimentsColumnType describes how enrollment information is laid out in
// a data source table.
type ExperimentsColumnType string

const (
	// ColumnTypeUnspecified means the fragment did not set a column type.
	// It resolves to ColumnTypeSimple.
	ColumnTypeUnspecified ExperimentsColumnType = ""
	// ColumnTypeNone marks a table with no enrollment column at all.
	ColumnTypeNone ExperimentsColumnType = "none"
	// ColumnTypeSimple marks a map-typed experiments column.
	ColumnTypeSimple ExperimentsColumnType = "simple"
	// ColumnTypeNative marks a struct-typed experiments column with branch
	// information.
	ColumnTypeNative ExperimentsColumnType = "native"
	// ColumnTypeGlean marks the Glean ping_info.experiments layout.
	ColumnTypeGlean ExperimentsColumnType = "glean"
)

// Valid reports whether t is one of the defined column types.
func (t ExperimentsColumnType) Valid() bool {
	switch t {
	case ColumnTypeUnspecified, ColumnTypeNone, ColumnTypeSimple, ColumnTypeNative, ColumnTypeGlean:
		return true
	}
	return false
}

// DataSource is a fully resolved table or query that metrics and segments
// select from. All defaults have been applied; instances are immutable.
type DataSource struct {
	Name                  string                `json:"name"`
	FromExpression        string                `json:"from_expression"`
	ExperimentsColumnType ExperimentsColumnType `json:"experiments_column_type"`
	ClientIDColumn        string                `json:"client_id_column"`
	SubmissionDateColumn  string                `json:"submission_date_column"`
	DefaultDataset        string                `json:"default_dataset,omitempty"`
	BuildIDColumn         string                `json:"build_id_column"`
	FriendlyName          string                `json:"friendly_name,omitempty"`
	Description           string                `json:"description,omitempty"`
}

// FromExpressionFor returns the from_expression with the dataset
// placeholder expanded. The explicit dataset wins over the configured
// default; an empty dataset with a placeholder present is an error.
func (d *DataSource) FromExpressionFor(dataset string) (string, error) {
	effective := dataset
	if effective == "" {
		effective = d.DefaultDataset
	}
	if strings.Contains(d.FromExpression, DatasetPlaceholder) && effective == "" {
		return "", NewInvalidError("data source %q requires a dataset but none was provided", d.Name)
	}
	return strings.ReplaceAll(d.FromExpression, DatasetPlaceholder, effective), nil
}

// DataSourceDefinition is the override form of a data source. Every field
// is optional so that fragments can be merged.
type DataSourceDefinition struct {
	Name                  string                `json:"name"`
	FromExpression        string                `json:"from_expression,omitempty"`
	ExperimentsColumnType ExperimentsColumnType `json:"experiments_column_type,omitempty"`
	ClientIDColumn        string                `json:"client_id_column,omitempty"`
	SubmissionDateColumn  string                `json:"submission_date_column,omitempty"`
	DefaultDataset        string                `json:"default_dataset,omitempty"`
	BuildIDColumn         string                `json:"build_id_column,omitempty"`
	FriendlyName          string                `json:"friendly_name,omitempty"`
	Description           string                `json:"description,omitempty"`
}

func dataSourceDefinitionFromMap(name string, m map[string]any, path string) (*DataSourceDefinition, error) {
	d := &DataSourceDefinition{Name: name}
	for key, v := range m {
		var err error
		switch key {
		case "from_expression":
			d.FromExpression, err = stringField(v, path+".from_expression")
		case "experiments_column_type":
			var s string
			s, err = stringField(v, path+".experiments_column_type")
			if err == nil {
				d.ExperimentsColumnType = ExperimentsColumnType(s)
				if !d.ExperimentsColumnType.Valid() {
					err = NewInvalidError("%s: unknown experiments_column_type %q", path, s)
				}
			}
		case "client_id_column":
			d.ClientIDColumn, err = stringField(v, path+".client_id_column")
		case "submission_date_column":
			d.SubmissionDateColumn, err = stringField(v, path+".submission_date_column")
		case "default_dataset":
			d.DefaultDataset, err = stringField(v, path+".default_dataset")
		case "build_id_column":
			d.BuildIDColumn, err = stringField(v, path+".build_id_column")
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

// Resolve applies defaults and produces the immutable data source.
func (d *DataSourceDefinition) Resolve() (*DataSource, error) {
	if d.FromExpression == "" {
		return nil, NewInvalidError("data source %q has no from_expression", d.Name)
	}
	ds := &DataSource{
		Name:                  d.Name,
		FromExpression:        d.FromExpression,
		ExperimentsColumnType: d.ExperimentsColumnType,
		ClientIDColumn:        d.ClientIDColumn,
		SubmissionDateColumn:  d.SubmissionDateColumn,
		DefaultDataset:        d.DefaultDataset,
		BuildIDColumn:         d.BuildIDColumn,
		FriendlyName:          d.FriendlyName,
		Description:           d.Description,
	}
	if ds.ExperimentsColumnType == ColumnTypeUnspecified {
		ds.ExperimentsColumnType = ColumnTypeSimple
	}
	if ds.ClientIDColumn == "" {
		ds.ClientIDColumn = "client_id"
	}
	if ds.SubmissionDateColumn == "" {
		ds.SubmissionDateColumn = "submission_date"
	}
	if ds.BuildIDColumn == "" {
		ds.BuildIDColumn = DefaultBuildIDColumn
	}
	// A placeholder with no default dataset would fail at query time for
	// every consumer that does not pass one; reject it up front.
	if strings.Contains(ds.FromExpression, DatasetPlaceholder) && ds.DefaultDataset == "" {
		return nil, NewInvalidError("data source %q uses %s but sets no default_dataset", d.Name, DatasetPlaceholder)
	}
	return ds, nil
}

// MergeFrom copies every set field of other into d.
func (d *DataSourceDefinition) MergeFrom(other *DataSourceDefinition) {
	if other.FromExpression != "" {
		d.FromExpression = other.FromExpression
	}
	if other.ExperimentsColumnType != ColumnTypeUnspecified {
		d.ExperimentsColumnType = other.ExperimentsColumnType
	}
	if other.ClientIDColumn != "" {
		d.ClientIDColumn = other.ClientIDColumn
	}
	if other.SubmissionDateColumn != "" {
		d.SubmissionDateColumn = other.SubmissionDateColumn
	}
	if other.DefaultDataset != "" {
		d.DefaultDataset = other.DefaultDataset
	}
	if other.BuildIDColumn != "" {
		d.BuildIDColumn = other.BuildIDColumn
	}
	if other.FriendlyName != "" {
		d.FriendlyName = other.FriendlyName
	}
	if other.Description != "" {
		d.Description = other.Description
	}
}

// Clone returns a deep copy of the definition.
func (d *DataSourceDefinition) Clone() *DataSourceDefinition {
	out := *d
	return &out
}

// DataSourceReference is a by-name reference to a data source definition.
type DataSourceReference struct {
	Name string `json:"name"`
}

// Resolve looks the reference up in the local spec first, then in the
// catalog for the experiment's platform.
func (r *DataSourceReference) Resolve(s *AnalysisSpec, conf *ExperimentConfiguration, cat Catalog) (*DataSource, error) {
	if def, ok := s.DataSources.Definitions[r.Name]; ok {
		return def.Resolve()
	}
	if def := cat.DataSourceDefinition(r.Name, conf.AppName()); def != nil {
		return def.Resolve()
	}
	return nil, NewDefinitionNotFound("data source", r.Name)
}

// DataSourcesSpec holds the data source definitions of a spec, keyed by
// name.
type DataSourcesSpec struct {
	Definitions map[string]*DataSourceDefinition `json:"definitions,omitempty"`
}

// NewDataSourcesSpec returns an empty, initialized spec.
func NewDataSourcesSpec() DataSourcesSpec {
	return DataSourcesSpec{Definitions: map[string]*DataSourceDefinition{}}
}

func dataSourcesSpecFromMap(m map[string]any, path string) (DataSourcesSpec, error) {
	s := NewDataSourcesSpec()
	for name, v := range m {
		sub, err := table(v, path+"."+name)
		if err != nil {
			return s, err
		}
		def, err := dataSourceDefinitionFromMap(name, sub, path+"."+name)
		if err != nil {
			return s, err
		}
		s.Definitions[name] = def
	}
	return s, nil
}

// Merge folds other's definitions into s. Definitions sharing a name are
// merged field-wise with other taking precedence; the rest are adopted.
func (s *DataSourcesSpec) Merge(other DataSourcesSpec) {
	if s.Definitions == nil {
		s.Definitions = map[string]*DataSourceDefinition{}
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
func (s DataSourcesSpec) Clone() DataSourcesSpec {
	out := NewDataSourcesSpec()
	for name, def := range s.Definitions {
		out.Definitions[name] = def.Clone()
	}
	return out
}
