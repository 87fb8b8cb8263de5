package spec

import "fmt"

// Statistic names a statistical treatment applied to a metric, together
// with free-form parameters passed through to the analysis runner.
type Statistic struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params,omitempty"`
}

// Clone returns a copy of the statistic with its own params map.
func (s *Statistic) Clone() *Statistic {
	out := &Statistic{Name: s.Name, Params: make(map[string]any, len(s.Params))}
	for k, v := range s.Params {
		out.Params[k] = v
	}
	return out
}

// PreTreatment names a data-cleaning step applied before a statistic runs.
type PreTreatment struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// Clone returns a copy of the pre-treatment with its own args map.
func (p *PreTreatment) Clone() *PreTreatment {
	out := &PreTreatment{Name: p.Name, Args: make(map[string]any, len(p.Args))}
	for k, v := range p.Args {
		out.Args[k] = v
	}
	return out
}

// statisticFromParams splits a raw statistic parameter table into the
// statistic itself and its pre-treatments. Pre-treatments may be written
// as plain names or as tables carrying extra arguments.
func statisticFromParams(name string, raw map[string]any, path string) (*Statistic, []*PreTreatment, error) {
	stat := &Statistic{Name: name, Params: map[string]any{}}
	var pres []*PreTreatment
	for key, v := range raw {
		if key != "pre_treatments" {
			stat.Params[key] = v
			continue
		}
		items, ok := v.([]any)
		if !ok {
			return nil, nil, NewInvalidError("%s.pre_treatments: expected a list, got %T", path, v)
		}
		for i, item := range items {
			itemPath := fmt.Sprintf("%s.pre_treatments[%d]", path, i)
			switch t := item.(type) {
			case string:
				pres = append(pres, &PreTreatment{Name: t})
			case map[string]any:
				pre := &PreTreatment{Args: map[string]any{}}
				for argKey, argVal := range t {
					if argKey == "name" {
						n, err := stringField(argVal, itemPath+".name")
						if err != nil {
							return nil, nil, err
						}
						pre.Name = n
					} else {
						pre.Args[argKey] = argVal
					}
				}
				if pre.Name == "" {
					return nil, nil, NewInvalidError("%s: pre-treatment has no name", itemPath)
				}
				pres = append(pres, pre)
			default:
				return nil, nil, NewInvalidError("%s: expected a name or a table, got %T", itemPath, item)
			}
		}
	}
	return stat, pres, nil
}
