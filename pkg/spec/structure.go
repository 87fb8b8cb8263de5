package spec

import (
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
)

// validate is the shared struct validator for date and enum fields.
var validate = validator.New()

// table coerces a decoded value into a nested table.
func table(v any, path string) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, NewInvalidError("%s: expected a table, got %T", path, v)
	}
	return m, nil
}

// stringField coerces a decoded value into a string.
func stringField(v any, path string) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", NewInvalidError("%s: expected a string, got %T", path, v)
	}
	return s, nil
}

// intField coerces a decoded value into an int. TOML decodes integers as
// int64, YAML as int.
func intField(v any, path string) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n == float64(int(n)) {
			return int(n), nil
		}
	}
	return 0, NewInvalidError("%s: expected an integer, got %v", path, v)
}

// boolField coerces a decoded value into a bool.
func boolField(v any, path string) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, NewInvalidError("%s: expected a boolean, got %T", path, v)
	}
	return b, nil
}

// stringList coerces a decoded value into a list of strings.
func stringList(v any, path string) ([]string, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, NewInvalidError("%s: expected a list, got %T", path, v)
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, err := stringField(item, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// scalarString renders a decoded scalar as its string form. Used for
// parameter values, which may be written as strings, numbers, or booleans.
func scalarString(v any, path string) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case bool:
		return strconv.FormatBool(s), nil
	case int:
		return strconv.Itoa(s), nil
	case int64:
		return strconv.FormatInt(s, 10), nil
	case float64:
		return strconv.FormatFloat(s, 'g', -1, 64), nil
	}
	return "", NewInvalidError("%s: expected a scalar, got %T", path, v)
}

// structErr converts a validator error into a ConfigError.
func structErr(path string, err error) error {
	if err == nil {
		return nil
	}
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		e := errs[0]
		return NewInvalidError("%s: field %s failed validation rule %q", path, e.Field(), e.Tag())
	}
	return NewInvalidError("%s: %v", path, err)
}
