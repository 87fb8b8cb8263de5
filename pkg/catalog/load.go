package catalog

import (
	"io/fs"
	"path"
	"strings"

	"github.com/rs/zerolog"

	"github.com/experihub/experihub/pkg/fragment"
	"github.com/experihub/experihub/pkg/spec"
	"github.com/experihub/experihub/pkg/template"
)

const (
	defaultsDir    = "defaults"
	definitionsDir = "definitions"
	outcomesDir    = "outcomes"
	functionsFile  = "functions"
)

// FromSource loads a collection from one fragment tree. Files at the root
// are experiment or project configs, defaults/ holds per-platform default
// specs, definitions/ holds the shared definition libraries and the
// function registry, and outcomes/<platform>/ holds outcome snippets.
func FromSource(src Source, logger zerolog.Logger) (*Collection, error) {
	c := NewCollection()
	err := fs.WalkDir(src.FS(), ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ferr := fragment.ForPath(p); ferr != nil {
			return nil
		}
		data, err := fs.ReadFile(src.FS(), p)
		if err != nil {
			return err
		}
		logger.Debug().Str("source", src.String()).Str("file", p).Msg("loading fragment")
		return c.addFile(src, p, data)
	})
	if err != nil {
		return nil, err
	}
	c.rebuildEnv()
	return c, nil
}

// FromSources loads every source in order and merges them, later sources
// taking precedence.
func FromSources(logger zerolog.Logger, srcs ...Source) (*Collection, error) {
	c := NewCollection()
	for _, src := range srcs {
		loaded, err := FromSource(src, logger)
		if err != nil {
			return nil, err
		}
		c.Merge(loaded)
	}
	return c, nil
}

func (c *Collection) addFile(src Source, p string, data []byte) error {
	d, err := fragment.ForPath(p)
	if err != nil {
		return err
	}
	m, err := d.Decode(data)
	if err != nil {
		return wrapEntryErr(p, err)
	}
	// Outcome snippets have their own key schema; everything else obeys
	// the shared fragment whitelist.
	if !strings.HasPrefix(path.Clean(p), outcomesDir+"/") {
		if err := fragment.ValidateKeys(p, m); err != nil {
			return err
		}
	}

	slug := strings.TrimSuffix(path.Base(p), path.Ext(p))
	modified := src.LastModified(p)
	hash := src.Hash(p)
	parts := strings.Split(path.Clean(p), "/")

	switch {
	case len(parts) == 1:
		// A root file with a project table is a monitoring project;
		// everything else is an experiment config.
		if _, ok := m["project"]; ok {
			ps, err := spec.ProjectSpecFromMap(m)
			if err != nil {
				return wrapEntryErr(p, err)
			}
			c.upsertProject(&ProjectConfig{Slug: slug, Spec: ps, LastModified: modified, Hash: hash})
			return nil
		}
		as, err := spec.AnalysisSpecFromMap(m)
		if err != nil {
			return wrapEntryErr(p, err)
		}
		c.upsertConfig(&Config{
			Slug:         slug,
			Spec:         as,
			LastModified: modified,
			Hash:         hash,
			IsPrivate:    as.Experiment.IsPrivate,
		})
		return nil

	case parts[0] == defaultsDir && len(parts) == 2:
		as, err := spec.AnalysisSpecFromMap(m)
		if err != nil {
			return wrapEntryErr(p, err)
		}
		c.upsertDefault(&DefaultConfig{Platform: slug, Spec: as, LastModified: modified, Hash: hash})
		return nil

	case parts[0] == definitionsDir && len(parts) == 2:
		if slug == functionsFile {
			fns, err := functionsFromMap(m)
			if err != nil {
				return wrapEntryErr(p, err)
			}
			for name, fn := range fns {
				c.Functions[name] = fn
			}
			return nil
		}
		as, err := spec.AnalysisSpecFromMap(m)
		if err != nil {
			return wrapEntryErr(p, err)
		}
		c.upsertDefinition(&DefinitionConfig{Platform: slug, Spec: as, LastModified: modified, Hash: hash})
		return nil

	case parts[0] == outcomesDir && len(parts) == 3:
		os, err := spec.OutcomeSpecFromMap(m)
		if err != nil {
			return wrapEntryErr(p, err)
		}
		c.upsertOutcome(&Outcome{Slug: slug, Platform: parts[1], Spec: os, LastModified: modified, Hash: hash})
		return nil
	}

	return spec.NewInvalidError("%s: file does not match the expected tree layout", p)
}

func wrapEntryErr(p string, err error) error {
	if ce, ok := err.(*spec.ConfigError); ok {
		return &spec.ConfigError{
			Kind:      ce.Kind,
			Message:   p + ": " + ce.Message,
			Reference: ce.Reference,
			Err:       ce.Err,
		}
	}
	return spec.NewInvalidError("%s: %v", p, err)
}

// functionsFromMap structures the function registry fragment. The file
// holds a single functions table with one named template per entry.
func functionsFromMap(m map[string]any) (map[string]template.Function, error) {
	out := map[string]template.Function{}
	raw, ok := m["functions"]
	if !ok {
		return nil, spec.NewInvalidError("function registry has no functions table")
	}
	fns, ok := raw.(map[string]any)
	if !ok {
		return nil, spec.NewInvalidError("functions: expected a table, got %T", raw)
	}
	for name, v := range fns {
		entry, ok := v.(map[string]any)
		if !ok {
			return nil, spec.NewInvalidError("functions.%s: expected a table, got %T", name, v)
		}
		def, ok := entry["definition"].(string)
		if !ok || def == "" {
			return nil, spec.NewInvalidError("functions.%s: missing definition", name)
		}
		out[name] = template.Function{Slug: name, Definition: def}
	}
	return out, nil
}
