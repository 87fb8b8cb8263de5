package spec

import "testing"

func TestDataSourceDefinitionResolve(t *testing.T) {
	def := &DataSourceDefinition{
		Name:           "main",
		FromExpression: "mozdata.telemetry.main",
	}
	ds, err := def.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ds.ExperimentsColumnType != ColumnTypeSimple {
		t.Errorf("column type = %q, want simple default", ds.ExperimentsColumnType)
	}
	if ds.ClientIDColumn != "client_id" || ds.SubmissionDateColumn != "submission_date" {
		t.Errorf("columns = %q/%q, want defaults", ds.ClientIDColumn, ds.SubmissionDateColumn)
	}
	if ds.BuildIDColumn != DefaultBuildIDColumn {
		t.Errorf("build id column = %q", ds.BuildIDColumn)
	}
}

func TestDataSourceDefinitionResolveKeepsNone(t *testing.T) {
	def := &DataSourceDefinition{
		Name:                  "crashes",
		FromExpression:        "mozdata.telemetry.crashes",
		ExperimentsColumnType: ColumnTypeNone,
	}
	ds, err := def.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ds.ExperimentsColumnType != ColumnTypeNone {
		t.Errorf("column type = %q, want explicit none preserved", ds.ExperimentsColumnType)
	}
}

func TestDataSourceDefinitionResolveErrors(t *testing.T) {
	tests := []struct {
		name string
		def  *DataSourceDefinition
	}{
		{
			name: "missing from_expression",
			def:  &DataSourceDefinition{Name: "empty"},
		},
		{
			name: "placeholder without default dataset",
			def: &DataSourceDefinition{
				Name:           "events",
				FromExpression: "{dataset}.telemetry.events",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.def.Resolve(); !IsInvalid(err) {
				t.Errorf("error = %v, want invalid", err)
			}
		})
	}
}

func TestFromExpressionFor(t *testing.T) {
	ds := &DataSource{
		Name:           "events",
		FromExpression: "{dataset}.telemetry.events",
		DefaultDataset: "mozdata",
	}

	tests := []struct {
		name    string
		dataset string
		want    string
	}{
		{name: "explicit dataset wins", dataset: "private", want: "private.telemetry.events"},
		{name: "default dataset fills in", dataset: "", want: "mozdata.telemetry.events"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ds.FromExpressionFor(tt.dataset)
			if err != nil {
				t.Fatalf("FromExpressionFor: %v", err)
			}
			if got != tt.want {
				t.Errorf("FromExpressionFor(%q) = %q, want %q", tt.dataset, got, tt.want)
			}
		})
	}

	bare := &DataSource{Name: "events", FromExpression: "{dataset}.telemetry.events"}
	if _, err := bare.FromExpressionFor(""); !IsInvalid(err) {
		t.Errorf("error = %v, want invalid for unexpandable placeholder", err)
	}

	plain := &DataSource{Name: "main", FromExpression: "mozdata.telemetry.main"}
	got, err := plain.FromExpressionFor("")
	if err != nil || got != "mozdata.telemetry.main" {
		t.Errorf("FromExpressionFor = %q, %v", got, err)
	}
}

func TestDataSourceDefinitionMergeFrom(t *testing.T) {
	base := &DataSourceDefinition{
		Name:           "main",
		FromExpression: "mozdata.telemetry.main",
		ClientIDColumn: "client_info.client_id",
	}
	base.MergeFrom(&DataSourceDefinition{
		Name:                  "main",
		ExperimentsColumnType: ColumnTypeGlean,
		DefaultDataset:        "org_mozilla_firefox",
	})

	if base.FromExpression != "mozdata.telemetry.main" {
		t.Errorf("from_expression = %q, want unset donor field ignored", base.FromExpression)
	}
	if base.ClientIDColumn != "client_info.client_id" {
		t.Errorf("client id column = %q", base.ClientIDColumn)
	}
	if base.ExperimentsColumnType != ColumnTypeGlean || base.DefaultDataset != "org_mozilla_firefox" {
		t.Errorf("donor fields not applied: %+v", base)
	}
}

func TestDataSourceFromMapRejectsUnknownColumnType(t *testing.T) {
	_, err := dataSourceDefinitionFromMap("main", map[string]any{
		"from_expression":         "t",
		"experiments_column_type": "fancy",
	}, "data_sources.main")
	if !IsInvalid(err) {
		t.Errorf("error = %v, want invalid", err)
	}
}
