package spec

import (
	"time"

	"github.com/experihub/experihub/pkg/experiment"
	"github.com/experihub/experihub/pkg/template"
)

// fakeCatalog is an in-memory Catalog with a fixed set of shared
// definitions mirroring a small configuration hub.
type fakeCatalog struct {
	metrics        map[string]map[string]*MetricDefinition
	dataSources    map[string]map[string]*DataSourceDefinition
	segments       map[string]map[string]*SegmentDefinition
	segmentSources map[string]map[string]*SegmentDataSourceDefinition
	defaults       map[string]*AnalysisSpec
	outcomes       map[string]map[string]*OutcomeSpec
	env            *template.Environment
}

var _ Catalog = (*fakeCatalog)(nil)

func (c *fakeCatalog) MetricDefinition(name, platform string) *MetricDefinition {
	return c.metrics[platform][name]
}

func (c *fakeCatalog) DataSourceDefinition(name, platform string) *DataSourceDefinition {
	return c.dataSources[platform][name]
}

func (c *fakeCatalog) SegmentDefinition(name, platform string) *SegmentDefinition {
	return c.segments[platform][name]
}

func (c *fakeCatalog) SegmentSourceDefinition(name, platform string) *SegmentDataSourceDefinition {
	return c.segmentSources[platform][name]
}

func (c *fakeCatalog) PlatformDefaults(platform string) *AnalysisSpec {
	return c.defaults[platform]
}

func (c *fakeCatalog) Outcome(slug, platform string) *OutcomeSpec {
	return c.outcomes[platform][slug]
}

func (c *fakeCatalog) Env() *template.Environment {
	return c.env
}

func boolPtr(b bool) *bool { return &b }

func testCatalog() *fakeCatalog {
	desktop := "firefox_desktop"
	return &fakeCatalog{
		metrics: map[string]map[string]*MetricDefinition{
			desktop: {
				"active_hours": {
					Name:             "active_hours",
					SelectExpression: `{{ agg_sum("active_hours_sum") }}`,
					DataSource:       &DataSourceReference{Name: "main"},
					FriendlyName:     "Active hours",
					Description:      "Total active hours per client",
					Statistics: map[string]map[string]any{
						"bootstrap_mean": {},
					},
				},
				"uri_count": {
					Name:             "uri_count",
					SelectExpression: `{{ agg_sum("total_uri_count") }}`,
					DataSource:       &DataSourceReference{Name: "main"},
					Statistics: map[string]map[string]any{
						"bootstrap_mean": {"pre_treatments": []any{"remove_nulls"}},
					},
				},
			},
		},
		dataSources: map[string]map[string]*DataSourceDefinition{
			desktop: {
				"main": {
					Name:           "main",
					FromExpression: "mozdata.telemetry.main",
				},
				"events": {
					Name:           "events",
					FromExpression: "{dataset}.telemetry.events",
					DefaultDataset: "mozdata",
				},
			},
		},
		segments: map[string]map[string]*SegmentDefinition{
			desktop: {
				"regular_users": {
					Name:             "regular_users",
					DataSource:       &SegmentDataSourceReference{Name: "clients_last_seen"},
					SelectExpression: "COALESCE(LOGICAL_OR(is_regular_user_v3), FALSE)",
				},
			},
		},
		segmentSources: map[string]map[string]*SegmentDataSourceDefinition{
			desktop: {
				"clients_last_seen": {
					Name:           "clients_last_seen",
					FromExpression: "mozdata.telemetry.clients_last_seen",
				},
			},
		},
		defaults: map[string]*AnalysisSpec{
			desktop: func() *AnalysisSpec {
				s := NewAnalysisSpec()
				s.Metrics.Weekly = []MetricReference{{Name: "active_hours"}}
				return s
			}(),
		},
		outcomes: map[string]map[string]*OutcomeSpec{
			desktop: {
				"performance": {
					FriendlyName:   "Performance",
					Description:    "Performance metrics",
					DefaultMetrics: []MetricReference{{Name: "speed"}},
					Metrics: map[string]*MetricDefinition{
						"speed": {
							Name:             "speed",
							SelectExpression: `{{ agg_sum("speed_ms") }}`,
							DataSource:       &DataSourceReference{Name: "main"},
							Statistics: map[string]map[string]any{
								"bootstrap_mean": {},
							},
						},
					},
					Parameters:  NewParameterSpec(),
					DataSources: NewDataSourcesSpec(),
				},
			},
		},
		env: template.NewEnvironment(map[string]template.Function{
			"agg_sum": {Slug: "agg_sum", Definition: "SUM({select_expr})"},
			"agg_any": {Slug: "agg_any", Definition: "COALESCE(LOGICAL_OR({select_expr}), FALSE)"},
		}),
	}
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func testExperiment() *experiment.Experiment {
	return &experiment.Experiment{
		ExperimenterSlug:   "test_slug",
		NormandySlug:       "normandy-test-slug",
		Type:               "v6",
		Status:             "Live",
		StartDate:          date(2019, time.December, 1),
		EndDate:            date(2020, time.March, 1),
		ProposedEnrollment: 7,
		ReferenceBranch:    "b",
		Branches: []experiment.Branch{
			{Slug: "a", Ratio: 1},
			{Slug: "b", Ratio: 1},
		},
		AppName: "firefox_desktop",
		AppID:   "firefox-desktop",
		Channel: experiment.ChannelNightly,
	}
}
