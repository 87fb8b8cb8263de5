// Package catalog maintains collections of shared configuration entries:
// per-experiment configs, platform defaults, definition libraries,
// outcomes, monitoring projects, and the template function registry.
package catalog

import (
	"time"

	"github.com/experihub/experihub/pkg/spec"
)

// Config is one experiment's configuration entry, keyed by the experiment
// slug the file is named after.
type Config struct {
	Slug         string             `json:"slug"`
	Spec         *spec.AnalysisSpec `json:"spec"`
	LastModified time.Time          `json:"last_modified"`
	Hash         string             `json:"hash,omitempty"`
	IsPrivate    bool               `json:"is_private,omitempty"`
}

// Clone returns a deep copy of the entry.
func (c *Config) Clone() *Config {
	return &Config{
		Slug:         c.Slug,
		Spec:         c.Spec.Clone(),
		LastModified: c.LastModified,
		Hash:         c.Hash,
		IsPrivate:    c.IsPrivate,
	}
}

// ProjectConfig is one operational monitoring project's entry.
type ProjectConfig struct {
	Slug         string            `json:"slug"`
	Spec         *spec.ProjectSpec `json:"spec"`
	LastModified time.Time         `json:"last_modified"`
	Hash         string            `json:"hash,omitempty"`
}

// Clone returns a deep copy of the entry.
func (c *ProjectConfig) Clone() *ProjectConfig {
	return &ProjectConfig{Slug: c.Slug, Spec: c.Spec.Clone(), LastModified: c.LastModified, Hash: c.Hash}
}

// DefaultConfig carries the analysis spec every experiment on a platform
// starts from. The file name is the platform.
type DefaultConfig struct {
	Platform     string             `json:"platform"`
	Spec         *spec.AnalysisSpec `json:"spec"`
	LastModified time.Time          `json:"last_modified"`
	Hash         string             `json:"hash,omitempty"`
}

// Clone returns a deep copy of the entry.
func (c *DefaultConfig) Clone() *DefaultConfig {
	return &DefaultConfig{Platform: c.Platform, Spec: c.Spec.Clone(), LastModified: c.LastModified, Hash: c.Hash}
}

// DefinitionConfig carries a platform's shared metric, data source, and
// segment definitions.
type DefinitionConfig struct {
	Platform     string             `json:"platform"`
	Spec         *spec.AnalysisSpec `json:"spec"`
	LastModified time.Time          `json:"last_modified"`
	Hash         string             `json:"hash,omitempty"`
}

// Clone returns a deep copy of the entry.
func (c *DefinitionConfig) Clone() *DefinitionConfig {
	return &DefinitionConfig{Platform: c.Platform, Spec: c.Spec.Clone(), LastModified: c.LastModified, Hash: c.Hash}
}

// Outcome is a reusable outcome snippet registered for one platform.
type Outcome struct {
	Slug         string            `json:"slug"`
	Platform     string            `json:"platform"`
	Spec         *spec.OutcomeSpec `json:"spec"`
	LastModified time.Time         `json:"last_modified"`
	Hash         string            `json:"hash,omitempty"`
}

// Clone returns a deep copy of the entry.
func (o *Outcome) Clone() *Outcome {
	return &Outcome{Slug: o.Slug, Platform: o.Platform, Spec: o.Spec.Clone(), LastModified: o.LastModified, Hash: o.Hash}
}
