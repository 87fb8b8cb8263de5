// Package template renders the symbolic expressions used in metric, segment,
// and enrollment-query configuration. An expression is plain text with
// embedded {{ ... }} spans; each span is evaluated as a Starlark expression
// against the function registry and the variables supplied by the caller.
// Undefined names and unknown functions are errors, never silent empty
// substitutions.
package template

import (
	"errors"
	"fmt"
	"strings"

	"go.starlark.net/starlark"
)

// ErrUnhashable is returned by template values that cannot be used as
// dictionary keys.
var ErrUnhashable = errors.New("unhashable template value")

// Function is a registry entry: a named single-argument string template.
// Definition contains the {select_expr} substitution point that receives the
// call's argument.
type Function struct {
	Slug       string `json:"slug"`
	Definition string `json:"definition"`
}

// expand substitutes the call argument into the function's template.
func (f Function) expand(selectExpr string) string {
	return strings.ReplaceAll(f.Definition, "{select_expr}", selectExpr)
}

// Environment evaluates expression spans against a fixed function registry.
// An Environment is immutable after construction and safe for concurrent use.
type Environment struct {
	globals starlark.StringDict
}

// NewEnvironment builds an Environment exposing every registry function as a
// callable. A nil or empty registry yields an Environment that only supports
// variable interpolation.
func NewEnvironment(functions map[string]Function) *Environment {
	globals := make(starlark.StringDict, len(functions))
	for slug, fn := range functions {
		fn := fn
		globals[slug] = starlark.NewBuiltin(slug, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var selectExpr string
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &selectExpr); err != nil {
				return nil, err
			}
			return starlark.String(fn.expand(selectExpr)), nil
		})
	}
	return &Environment{globals: globals}
}

// Render evaluates every {{ ... }} span in expr and splices the results into
// the surrounding text. vars are additional names visible to the spans, on
// top of the registry functions. Text outside spans passes through verbatim.
func (e *Environment) Render(expr string, vars map[string]starlark.Value) (string, error) {
	if !strings.Contains(expr, "{{") {
		return expr, nil
	}

	env := make(starlark.StringDict, len(e.globals)+len(vars))
	for name, val := range e.globals {
		env[name] = val
	}
	for name, val := range vars {
		env[name] = val
	}

	thread := &starlark.Thread{Name: "template"}
	var out strings.Builder
	rest := expr
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			out.WriteString(rest)
			return out.String(), nil
		}
		out.WriteString(rest[:start])
		rest = rest[start+2:]

		end := strings.Index(rest, "}}")
		if end < 0 {
			return "", fmt.Errorf("template: unterminated {{ in %q", expr)
		}
		span := strings.TrimSpace(rest[:end])
		rest = rest[end+2:]

		val, err := starlark.Eval(thread, "<template>", span, env)
		if err != nil {
			return "", unwrapEval(err)
		}
		text, err := valueText(val)
		if err != nil {
			return "", fmt.Errorf("template: span %q: %w", span, err)
		}
		out.WriteString(text)
	}
}

// unwrapEval surfaces the cause of a Starlark evaluation error so typed
// errors raised by attribute access survive errors.As at the caller.
func unwrapEval(err error) error {
	if evalErr, ok := err.(*starlark.EvalError); ok {
		if cause := evalErr.Unwrap(); cause != nil {
			return fmt.Errorf("template: %w", cause)
		}
	}
	return fmt.Errorf("template: %w", err)
}

// valueText converts a span result to the text spliced into the expression.
func valueText(v starlark.Value) (string, error) {
	switch val := v.(type) {
	case starlark.String:
		return string(val), nil
	case starlark.Int, starlark.Float:
		return val.String(), nil
	default:
		return "", fmt.Errorf("cannot splice value of type %s", v.Type())
	}
}
