package spec

import (
	"fmt"
	"sort"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// BranchValue is one branch's value of a branch-distinct parameter.
type BranchValue struct {
	Branch string `json:"branch"`
	Value  string `json:"value"`
}

// ParameterValue is a parameter value: either a single scalar or one value
// per branch. The zero value means unset.
type ParameterValue struct {
	Scalar   string        `json:"scalar,omitempty"`
	Branches []BranchValue `json:"branches,omitempty"`
}

// IsSet reports whether the value carries anything.
func (v *ParameterValue) IsSet() bool {
	return v != nil && (v.Scalar != "" || len(v.Branches) > 0)
}

// IsBranched reports whether the value is distinct per branch.
func (v *ParameterValue) IsBranched() bool {
	return v != nil && len(v.Branches) > 0
}

// SQL renders the value for substitution into a select expression. Branch
// values render as a CASE over the branch column.
func (v *ParameterValue) SQL() string {
	if !v.IsBranched() {
		return v.Scalar
	}
	whens := make([]string, 0, len(v.Branches))
	for _, b := range v.Branches {
		whens = append(whens, fmt.Sprintf("WHEN %q THEN %q", b.Branch, b.Value))
	}
	return "CASE e.branch " + strings.Join(whens, " ") + " END"
}

// Clone returns a deep copy of the value.
func (v *ParameterValue) Clone() *ParameterValue {
	if v == nil {
		return nil
	}
	out := &ParameterValue{Scalar: v.Scalar}
	out.Branches = append([]BranchValue(nil), v.Branches...)
	return out
}

func parameterValueFromAny(v any, path string) (*ParameterValue, error) {
	if m, ok := v.(map[string]any); ok {
		out := &ParameterValue{}
		for branch, raw := range m {
			val, err := scalarString(raw, path+"."+branch)
			if err != nil {
				return nil, err
			}
			out.Branches = append(out.Branches, BranchValue{Branch: branch, Value: val})
		}
		// Decoded tables have no deterministic order; sort so rendering
		// and comparison are stable.
		sort.Slice(out.Branches, func(i, j int) bool {
			return out.Branches[i].Branch < out.Branches[j].Branch
		})
		return out, nil
	}
	s, err := scalarString(v, path)
	if err != nil {
		return nil, err
	}
	return &ParameterValue{Scalar: s}, nil
}

// ParameterDefinition is a named parameter with an optional value and
// default. Values are substituted into select expressions at resolve time.
type ParameterDefinition struct {
	Name             string          `json:"name"`
	FriendlyName     string          `json:"friendly_name,omitempty"`
	Description      string          `json:"description,omitempty"`
	Value            *ParameterValue `json:"value,omitempty"`
	Default          *ParameterValue `json:"default,omitempty"`
	DistinctByBranch *bool           `json:"distinct_by_branch,omitempty"`
}

func parameterDefinitionFromMap(name string, m map[string]any, path string) (*ParameterDefinition, error) {
	d := &ParameterDefinition{Name: name}
	for key, v := range m {
		var err error
		switch key {
		case "friendly_name":
			d.FriendlyName, err = stringField(v, path+".friendly_name")
		case "description":
			d.Description, err = stringField(v, path+".description")
		case "value":
			d.Value, err = parameterValueFromAny(v, path+".value")
		case "default":
			d.Default, err = parameterValueFromAny(v, path+".default")
		case "distinct_by_branch":
			var b bool
			b, err = boolField(v, path+".distinct_by_branch")
			if err == nil {
				d.DistinctByBranch = &b
			}
		}
		if err != nil {
			return nil, err
		}
	}
	return d, nil
}

// MergeFrom copies every set field of other into d.
func (d *ParameterDefinition) MergeFrom(other *ParameterDefinition) {
	if other.FriendlyName != "" {
		d.FriendlyName = other.FriendlyName
	}
	if other.Description != "" {
		d.Description = other.Description
	}
	if other.Value.IsSet() {
		d.Value = other.Value.Clone()
	}
	if other.Default.IsSet() {
		d.Default = other.Default.Clone()
	}
	if other.DistinctByBranch != nil {
		b := *other.DistinctByBranch
		d.DistinctByBranch = &b
	}
}

// Clone returns a deep copy of the definition.
func (d *ParameterDefinition) Clone() *ParameterDefinition {
	out := *d
	out.Value = d.Value.Clone()
	out.Default = d.Default.Clone()
	if d.DistinctByBranch != nil {
		b := *d.DistinctByBranch
		out.DistinctByBranch = &b
	}
	return &out
}

// mergeParam combines a configured parameter with the definition it
// overrides. The configured value wins; otherwise the definition's default
// fills in. A parameter that ends up without a value, or whose value shape
// disagrees with distinct_by_branch, is an error.
func mergeParam(receiver, donor *ParameterDefinition) (*ParameterDefinition, error) {
	if receiver.DistinctByBranch != nil && donor.DistinctByBranch != nil &&
		*receiver.DistinctByBranch != *donor.DistinctByBranch {
		return nil, NewInvalidError("parameter %q: conflicting distinct_by_branch settings", donor.Name)
	}

	merged := receiver.Clone()
	merged.Name = donor.Name
	if donor.FriendlyName != "" {
		merged.FriendlyName = donor.FriendlyName
	}
	if donor.Description != "" {
		merged.Description = donor.Description
	}
	if merged.DistinctByBranch == nil {
		merged.DistinctByBranch = donor.DistinctByBranch
	}
	if donor.Default.IsSet() {
		merged.Default = donor.Default.Clone()
	}
	if !merged.Value.IsSet() {
		merged.Value = merged.Default.Clone()
	}

	if !merged.Value.IsSet() {
		return nil, NewInvalidError("parameter %q has no value and no default", donor.Name)
	}
	if merged.DistinctByBranch != nil {
		if *merged.DistinctByBranch && !merged.Value.IsBranched() {
			return nil, NewInvalidError("parameter %q is distinct by branch but has a scalar value", donor.Name)
		}
		if !*merged.DistinctByBranch && merged.Value.IsBranched() {
			return nil, NewInvalidError("parameter %q is not distinct by branch but has per-branch values", donor.Name)
		}
	}
	return merged, nil
}

// ParameterSpec holds the parameter definitions of a spec, keyed by name.
type ParameterSpec struct {
	Definitions map[string]*ParameterDefinition `json:"definitions,omitempty"`
}

// NewParameterSpec returns an empty, initialized spec.
func NewParameterSpec() ParameterSpec {
	return ParameterSpec{Definitions: map[string]*ParameterDefinition{}}
}

func parameterSpecFromMap(m map[string]any, path string) (ParameterSpec, error) {
	s := NewParameterSpec()
	for name, v := range m {
		sub, err := table(v, path+"."+name)
		if err != nil {
			return s, err
		}
		def, err := parameterDefinitionFromMap(name, sub, path+"."+name)
		if err != nil {
			return s, err
		}
		s.Definitions[name] = def
	}
	return s, nil
}

// Merge folds other's definitions into s field-wise, other winning on
// conflicts. No value-completeness checks are applied here; those happen
// in mergeParam when definitions meet their configured overrides.
func (s *ParameterSpec) Merge(other ParameterSpec) {
	if s.Definitions == nil {
		s.Definitions = map[string]*ParameterDefinition{}
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
func (s ParameterSpec) Clone() ParameterSpec {
	out := NewParameterSpec()
	for name, def := range s.Definitions {
		out.Definitions[name] = def.Clone()
	}
	return out
}

// templateValue exposes parameters with values to templates as attributes
// of a `parameters` struct. Parameters without values are left out so that
// referencing one fails the render.
func (s ParameterSpec) templateValue() (starlark.Value, error) {
	dict := starlark.StringDict{}
	for name, def := range s.Definitions {
		if def.Value.IsSet() {
			dict[name] = starlark.String(def.Value.SQL())
		}
	}
	return starlarkstruct.FromStringDict(starlark.String("parameters"), dict), nil
}
