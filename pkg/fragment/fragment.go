// Package fragment decodes configuration fragments into untyped tables
// and enforces the top-level key schema. Fragments are written in TOML;
// YAML is accepted for compatibility with externally generated files.
package fragment

import (
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/experihub/experihub/pkg/spec"
)

// allowedKeys is the closed set of top-level keys a fragment may carry.
// Anything else fails decoding before any merge happens.
var allowedKeys = map[string]bool{
	"project":       true,
	"population":    true,
	"metrics":       true,
	"experiment":    true,
	"segments":      true,
	"data_sources":  true,
	"friendly_name": true,
	"description":   true,
	"parameters":    true,
	"alerts":        true,
	"dimensions":    true,
	"functions":     true,
}

// Deserializer decodes one fragment encoding into an untyped table.
type Deserializer interface {
	Decode(data []byte) (map[string]any, error)
}

// TOML decodes TOML fragments.
type TOML struct{}

// Decode implements Deserializer.
func (TOML) Decode(data []byte) (map[string]any, error) {
	var m map[string]any
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, spec.NewInvalidError("invalid TOML: %v", err)
	}
	return m, nil
}

// YAML decodes YAML fragments.
type YAML struct{}

// Decode implements Deserializer.
func (YAML) Decode(data []byte) (map[string]any, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, spec.NewInvalidError("invalid YAML: %v", err)
	}
	return m, nil
}

// ForPath returns the deserializer matching a file's extension.
func ForPath(path string) (Deserializer, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return TOML{}, nil
	case ".yaml", ".yml":
		return YAML{}, nil
	}
	return nil, spec.NewInvalidError("unsupported fragment format: %s", path)
}

// ValidateKeys checks a decoded fragment's top-level keys against the
// allowed set.
func ValidateKeys(file string, m map[string]any) error {
	var unexpected []string
	for key := range m {
		if !allowedKeys[key] {
			unexpected = append(unexpected, key)
		}
	}
	if len(unexpected) > 0 {
		return spec.NewUnexpectedKeyError(file, unexpected)
	}
	return nil
}

// Decode picks a deserializer by extension, decodes, and validates the
// top-level keys.
func Decode(path string, data []byte) (map[string]any, error) {
	d, err := ForPath(path)
	if err != nil {
		return nil, err
	}
	m, err := d.Decode(data)
	if err != nil {
		return nil, spec.NewInvalidError("%s: %v", path, err)
	}
	if err := ValidateKeys(path, m); err != nil {
		return nil, err
	}
	return m, nil
}
