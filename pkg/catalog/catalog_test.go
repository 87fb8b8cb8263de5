package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/experihub/experihub/pkg/experiment"
	"github.com/experihub/experihub/pkg/spec"
)

func writeTree(t *testing.T, files map[string]string) *DirSource {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	src, err := NewDirSource(dir)
	if err != nil {
		t.Fatal(err)
	}
	return src
}

func testTree() map[string]string {
	return map[string]string{
		"definitions/functions.toml": `
[functions.agg_sum]
definition = "SUM({select_expr})"

[functions.agg_any]
definition = "COALESCE(LOGICAL_OR({select_expr}), FALSE)"
`,
		"definitions/firefox_desktop.toml": `
[metrics.active_hours]
select_expression = '{{ agg_sum("active_hours_sum") }}'
data_source = "main"
friendly_name = "Active hours"

[metrics.active_hours.statistics.bootstrap_mean]

[data_sources.main]
from_expression = "mozdata.telemetry.main"

[segments.regular_users]
data_source = "clients_last_seen"
select_expression = "COALESCE(LOGICAL_OR(is_regular_user_v3), FALSE)"

[segments.data_sources.clients_last_seen]
from_expression = "mozdata.telemetry.clients_last_seen"
`,
		"defaults/firefox_desktop.toml": `
[metrics]
weekly = ["active_hours"]
`,
		"outcomes/firefox_desktop/performance.toml": `
friendly_name = "Performance"
description = "Core performance metrics"
default_metrics = ["speed"]

[metrics.speed]
select_expression = '{{ agg_sum("speed_ms") }}'
data_source = "main"

[metrics.speed.statistics.bootstrap_mean]
`,
		"normandy-test-slug.toml": `
[metrics]
weekly = ["spam"]

[metrics.spam]
select_expression = '{{ agg_any("is_spam") }}'
data_source = "main"

[metrics.spam.statistics.bootstrap_mean]
`,
		"release-health.toml": `
[project]
name = "Release health"
platform = "firefox_desktop"
xaxis = "submission_date"
start_date = "2024-01-01"
end_date = "2024-03-01"
metrics = ["active_hours"]

[project.population]
data_source = "main"
channel = "release"
`,
	}
}

func testExperiment() *experiment.Experiment {
	start := time.Date(2019, 12, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)
	return &experiment.Experiment{
		ExperimenterSlug:   "test_slug",
		NormandySlug:       "normandy-test-slug",
		Status:             "Complete",
		StartDate:          &start,
		EndDate:            &end,
		ProposedEnrollment: 7,
		ReferenceBranch:    "control",
		Branches: []experiment.Branch{
			{Slug: "control", Ratio: 1},
			{Slug: "treatment", Ratio: 1},
		},
		AppName: "firefox_desktop",
		AppID:   "firefox-desktop",
	}
}

func TestFromSourceClassification(t *testing.T) {
	src := writeTree(t, testTree())
	c, err := FromSource(src, zerolog.Nop())
	if err != nil {
		t.Fatalf("FromSource: %v", err)
	}

	if len(c.Configs) != 1 || c.Configs[0].Slug != "normandy-test-slug" {
		t.Errorf("configs = %+v", c.Configs)
	}
	if len(c.Projects) != 1 || c.Projects[0].Slug != "release-health" {
		t.Errorf("projects = %+v", c.Projects)
	}
	if len(c.Defaults) != 1 || c.Defaults[0].Platform != "firefox_desktop" {
		t.Errorf("defaults = %+v", c.Defaults)
	}
	if len(c.Outcomes) != 1 || c.Outcomes[0].Slug != "performance" || c.Outcomes[0].Platform != "firefox_desktop" {
		t.Errorf("outcomes = %+v", c.Outcomes)
	}
	if len(c.Functions) != 2 {
		t.Errorf("functions = %+v", c.Functions)
	}
	if c.Configs[0].LastModified.IsZero() {
		t.Error("last modified not recorded")
	}

	if def := c.MetricDefinition("active_hours", "firefox_desktop"); def == nil || def.FriendlyName != "Active hours" {
		t.Errorf("metric definition lookup = %+v", def)
	}
	if c.MetricDefinition("active_hours", "fenix") != nil {
		t.Error("metric definition leaked across platforms")
	}
	if ds := c.DataSourceDefinition("main", "firefox_desktop"); ds == nil {
		t.Error("data source definition lookup failed")
	}
	if seg := c.SegmentDefinition("regular_users", "firefox_desktop"); seg == nil {
		t.Error("segment definition lookup failed")
	}
	if src := c.SegmentSourceDefinition("clients_last_seen", "firefox_desktop"); src == nil {
		t.Error("segment source definition lookup failed")
	}
	if got := c.Platforms(); len(got) != 1 || got[0] != "firefox_desktop" {
		t.Errorf("platforms = %v", got)
	}
}

func TestEndToEndResolve(t *testing.T) {
	src := writeTree(t, testTree())
	c, err := FromSource(src, zerolog.Nop())
	if err != nil {
		t.Fatalf("FromSource: %v", err)
	}

	exp := testExperiment()
	exp.Outcomes = []string{"performance"}

	s, err := spec.DefaultForExperiment(exp, c)
	if err != nil {
		t.Fatalf("DefaultForExperiment: %v", err)
	}
	s.Merge(c.SpecForExperiment(exp.NormandySlug).Spec)

	conf, err := s.Resolve(exp, c)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	selects := map[string]string{}
	for _, summary := range conf.MetricsFor(spec.PeriodWeek) {
		selects[summary.Metric.Name] = summary.Metric.SelectExpression
	}
	want := map[string]string{
		"active_hours": "SUM(active_hours_sum)",
		"speed":        "SUM(speed_ms)",
		"spam":         "COALESCE(LOGICAL_OR(is_spam), FALSE)",
	}
	for name, sel := range want {
		if selects[name] != sel {
			t.Errorf("weekly[%s] = %q, want %q", name, selects[name], sel)
		}
	}
	if len(selects) != len(want) {
		t.Errorf("weekly metrics = %v", selects)
	}
}

func TestCollectionMerge(t *testing.T) {
	base := writeTree(t, testTree())
	overlay := writeTree(t, map[string]string{
		"definitions/firefox_desktop.toml": `
[metrics.active_hours]
select_expression = '{{ agg_sum("active_ticks") }}'
data_source = "main"

[metrics.active_hours.statistics.bootstrap_mean]

[data_sources.main]
from_expression = "private.telemetry.main"
`,
		"normandy-test-slug.toml": `
[experiment]
enrollment_period = 14
`,
	})

	c, err := FromSources(zerolog.Nop(), base, overlay)
	if err != nil {
		t.Fatalf("FromSources: %v", err)
	}

	def := c.MetricDefinition("active_hours", "firefox_desktop")
	if def == nil || def.SelectExpression != `{{ agg_sum("active_ticks") }}` {
		t.Errorf("overlay select expression should win: %+v", def)
	}
	// Fields the overlay leaves unset keep the base definition's values.
	if def != nil && def.FriendlyName != "Active hours" {
		t.Errorf("friendly_name = %q, want the base definition's", def.FriendlyName)
	}
	if ds := c.DataSourceDefinition("main", "firefox_desktop"); ds == nil || ds.FromExpression != "private.telemetry.main" {
		t.Errorf("overlay data source should win: %+v", ds)
	}
	cfg := c.SpecForExperiment("normandy-test-slug")
	if cfg == nil || cfg.Spec.Experiment.EnrollmentPeriod != 14 {
		t.Fatalf("overlay experiment settings should apply: %+v", cfg)
	}
	// The overlay file touches only the experiment table; the base
	// config's metrics section survives the merge.
	if got := cfg.Spec.Metrics.Weekly; len(got) != 1 || got[0].Name != "spam" {
		t.Errorf("weekly references = %+v, want the base config's", got)
	}
	if _, ok := cfg.Spec.Metrics.Definitions["spam"]; !ok {
		t.Error("base metric definition lost during merge")
	}
	// The base-only entries survive the merge.
	if len(c.Outcomes) != 1 || len(c.Defaults) != 1 {
		t.Errorf("base entries lost: %d outcomes, %d defaults", len(c.Outcomes), len(c.Defaults))
	}
}

func TestEntryMetadata(t *testing.T) {
	files := testTree()
	files["private-slug.toml"] = `
[experiment]
is_private = true
dataset_id = "restricted_analysis"
`
	src := writeTree(t, files)
	c, err := FromSource(src, zerolog.Nop())
	if err != nil {
		t.Fatalf("FromSource: %v", err)
	}

	cfg := c.SpecForExperiment("normandy-test-slug")
	if cfg == nil {
		t.Fatal("config entry missing")
	}
	sum := sha256.Sum256([]byte(files["normandy-test-slug.toml"]))
	if want := hex.EncodeToString(sum[:]); cfg.Hash != want {
		t.Errorf("hash = %q, want %q", cfg.Hash, want)
	}
	if cfg.LastModified.IsZero() {
		t.Error("last modified not recorded")
	}
	if cfg.IsPrivate {
		t.Error("public config marked private")
	}

	priv := c.SpecForExperiment("private-slug")
	if priv == nil {
		t.Fatal("private config entry missing")
	}
	if !priv.IsPrivate {
		t.Error("private flag not lifted onto the entry")
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid tree", func(t *testing.T) {
		src := writeTree(t, testTree())
		c, err := FromSource(src, zerolog.Nop())
		if err != nil {
			t.Fatalf("FromSource: %v", err)
		}
		if err := c.Validate("firefox_desktop", zerolog.Nop()); err != nil {
			t.Errorf("Validate: %v", err)
		}
	})

	t.Run("dangling data source reference", func(t *testing.T) {
		files := testTree()
		files["broken.toml"] = `
[metrics]
weekly = ["broken_metric"]

[metrics.broken_metric]
select_expression = "COUNT(*)"
data_source = "missing_source"

[metrics.broken_metric.statistics.bootstrap_mean]
`
		src := writeTree(t, files)
		c, err := FromSource(src, zerolog.Nop())
		if err != nil {
			t.Fatalf("FromSource: %v", err)
		}
		err = c.Validate("firefox_desktop", zerolog.Nop())
		if err == nil {
			t.Fatal("Validate succeeded, want dangling reference error")
		}
		if !spec.IsDefinitionNotFound(err) {
			t.Errorf("error = %v, want definition_not_found", err)
		}
	})
}

func TestFromSourceRejectsUnexpectedKeys(t *testing.T) {
	files := testTree()
	files["bad.toml"] = "[bogus]\nx = 1\n"
	src := writeTree(t, files)
	_, err := FromSource(src, zerolog.Nop())
	if !spec.IsUnexpectedKey(err) {
		t.Errorf("error = %v, want unexpected_key", err)
	}
}

func TestFromSourceRejectsStrayFiles(t *testing.T) {
	files := testTree()
	files["outcomes/stray.toml"] = "friendly_name = \"x\"\ndescription = \"y\"\n"
	src := writeTree(t, files)
	_, err := FromSource(src, zerolog.Nop())
	if !spec.IsInvalid(err) {
		t.Errorf("error = %v, want invalid layout error", err)
	}
}

func TestFromSourceIgnoresNonFragmentFiles(t *testing.T) {
	files := testTree()
	files["README.md"] = "# docs\n"
	src := writeTree(t, files)
	if _, err := FromSource(src, zerolog.Nop()); err != nil {
		t.Fatalf("FromSource: %v", err)
	}
}
