package catalog

import (
	"sort"

	"github.com/experihub/experihub/pkg/spec"
	"github.com/experihub/experihub/pkg/template"
)

// Collection is the full set of loaded configuration entries. It
// implements spec.Catalog so that reference resolution can fall back to
// the shared definitions. A Collection is built once and read-only
// afterwards; merging builds on the receiver before any resolution
// happens.
type Collection struct {
	Configs     []*Config
	Projects    []*ProjectConfig
	Defaults    []*DefaultConfig
	Definitions []*DefinitionConfig
	Outcomes    []*Outcome
	Functions   map[string]template.Function

	env *template.Environment
}

var _ spec.Catalog = (*Collection)(nil)

// NewCollection returns an empty collection with a usable template
// environment.
func NewCollection() *Collection {
	c := &Collection{Functions: map[string]template.Function{}}
	c.rebuildEnv()
	return c
}

// rebuildEnv rebuilds the template environment from the function
// registry. Called after loading and after merges.
func (c *Collection) rebuildEnv() {
	c.env = template.NewEnvironment(c.Functions)
}

// Env implements spec.Catalog.
func (c *Collection) Env() *template.Environment {
	return c.env
}

// SpecForExperiment returns the config entry for an experiment slug, or
// nil.
func (c *Collection) SpecForExperiment(slug string) *Config {
	for _, cfg := range c.Configs {
		if cfg.Slug == slug {
			return cfg
		}
	}
	return nil
}

// SpecForProject returns the project entry for a slug, or nil.
func (c *Collection) SpecForProject(slug string) *ProjectConfig {
	for _, p := range c.Projects {
		if p.Slug == slug {
			return p
		}
	}
	return nil
}

// PlatformDefaults implements spec.Catalog.
func (c *Collection) PlatformDefaults(platform string) *spec.AnalysisSpec {
	for _, d := range c.Defaults {
		if d.Platform == platform {
			return d.Spec
		}
	}
	return nil
}

// Outcome implements spec.Catalog.
func (c *Collection) Outcome(slug, platform string) *spec.OutcomeSpec {
	for _, o := range c.Outcomes {
		if o.Slug == slug && o.Platform == platform {
			return o.Spec
		}
	}
	return nil
}

// OutcomeEntry returns the full outcome entry, or nil.
func (c *Collection) OutcomeEntry(slug, platform string) *Outcome {
	for _, o := range c.Outcomes {
		if o.Slug == slug && o.Platform == platform {
			return o
		}
	}
	return nil
}

// MetricDefinition implements spec.Catalog.
func (c *Collection) MetricDefinition(name, platform string) *spec.MetricDefinition {
	for _, d := range c.Definitions {
		if d.Platform != platform {
			continue
		}
		if def, ok := d.Spec.Metrics.Definitions[name]; ok {
			return def
		}
	}
	return nil
}

// DataSourceDefinition implements spec.Catalog.
func (c *Collection) DataSourceDefinition(name, platform string) *spec.DataSourceDefinition {
	for _, d := range c.Definitions {
		if d.Platform != platform {
			continue
		}
		if def, ok := d.Spec.DataSources.Definitions[name]; ok {
			return def
		}
	}
	return nil
}

// SegmentDefinition implements spec.Catalog.
func (c *Collection) SegmentDefinition(name, platform string) *spec.SegmentDefinition {
	for _, d := range c.Definitions {
		if d.Platform != platform {
			continue
		}
		if def, ok := d.Spec.Segments.Definitions[name]; ok {
			return def
		}
	}
	return nil
}

// SegmentSourceDefinition implements spec.Catalog.
func (c *Collection) SegmentSourceDefinition(name, platform string) *spec.SegmentDataSourceDefinition {
	for _, d := range c.Definitions {
		if d.Platform != platform {
			continue
		}
		if def, ok := d.Spec.Segments.DataSources[name]; ok {
			return def
		}
	}
	return nil
}

// Platforms returns every platform any entry mentions, sorted.
func (c *Collection) Platforms() []string {
	seen := map[string]bool{}
	for _, d := range c.Defaults {
		seen[d.Platform] = true
	}
	for _, d := range c.Definitions {
		seen[d.Platform] = true
	}
	for _, o := range c.Outcomes {
		seen[o.Platform] = true
	}
	platforms := make([]string, 0, len(seen))
	for p := range seen {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)
	return platforms
}

// Merge folds other into c with other taking precedence. Config, project,
// default, and definition entries colliding on key keep the existing entry
// and merge the donor's spec into it; outcomes colliding on
// (slug, platform) are adopted wholesale from the donor. Functions from
// other win per name.
func (c *Collection) Merge(other *Collection) {
	for _, cfg := range other.Configs {
		c.upsertConfig(cfg.Clone())
	}
	for _, p := range other.Projects {
		c.upsertProject(p.Clone())
	}
	for _, d := range other.Defaults {
		c.upsertDefault(d.Clone())
	}
	for _, d := range other.Definitions {
		c.upsertDefinition(d.Clone())
	}
	for _, o := range other.Outcomes {
		c.upsertOutcome(o.Clone())
	}
	if c.Functions == nil {
		c.Functions = map[string]template.Function{}
	}
	for name, fn := range other.Functions {
		c.Functions[name] = fn
	}
	c.rebuildEnv()
}

func (c *Collection) upsertConfig(cfg *Config) {
	for _, existing := range c.Configs {
		if existing.Slug == cfg.Slug {
			existing.Spec.Merge(cfg.Spec)
			existing.IsPrivate = existing.Spec.Experiment.IsPrivate
			return
		}
	}
	c.Configs = append(c.Configs, cfg)
}

func (c *Collection) upsertProject(p *ProjectConfig) {
	for _, existing := range c.Projects {
		if existing.Slug == p.Slug {
			existing.Spec.Merge(p.Spec)
			return
		}
	}
	c.Projects = append(c.Projects, p)
}

func (c *Collection) upsertDefault(d *DefaultConfig) {
	for _, existing := range c.Defaults {
		if existing.Platform == d.Platform {
			existing.Spec.Merge(d.Spec)
			return
		}
	}
	c.Defaults = append(c.Defaults, d)
}

func (c *Collection) upsertDefinition(d *DefinitionConfig) {
	for _, existing := range c.Definitions {
		if existing.Platform == d.Platform {
			existing.Spec.Merge(d.Spec)
			return
		}
	}
	c.Definitions = append(c.Definitions, d)
}

func (c *Collection) upsertOutcome(o *Outcome) {
	for i, existing := range c.Outcomes {
		if existing.Slug == o.Slug && existing.Platform == o.Platform {
			c.Outcomes[i] = o
			return
		}
	}
	c.Outcomes = append(c.Outcomes, o)
}
