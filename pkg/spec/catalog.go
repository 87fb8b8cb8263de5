package spec

import "github.com/experihub/experihub/pkg/template"

// Catalog is the shared definition store that references fall back to
// when the local spec does not define them. Lookups are keyed by name and
// platform; a nil result means no definition exists.
type Catalog interface {
	// MetricDefinition returns the shared metric definition, or nil.
	MetricDefinition(name, platform string) *MetricDefinition

	// DataSourceDefinition returns the shared data source definition, or
	// nil.
	DataSourceDefinition(name, platform string) *DataSourceDefinition

	// SegmentDefinition returns the shared segment definition, or nil.
	SegmentDefinition(name, platform string) *SegmentDefinition

	// SegmentSourceDefinition returns the shared segment data source
	// definition, or nil.
	SegmentSourceDefinition(name, platform string) *SegmentDataSourceDefinition

	// PlatformDefaults returns the platform's default analysis spec, or
	// nil.
	PlatformDefaults(platform string) *AnalysisSpec

	// Outcome returns the outcome registered under slug for the platform,
	// or nil.
	Outcome(slug, platform string) *OutcomeSpec

	// Env returns the template environment carrying the function registry.
	Env() *template.Environment
}
