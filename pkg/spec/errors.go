package spec

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorKind classifies configuration errors for programmatic handling.
type ErrorKind string

const (
	// ErrorKindUnexpectedKey indicates a fragment whose top-level keys are
	// not in the allowed set. Raised before any merge or resolve step.
	ErrorKindUnexpectedKey ErrorKind = "unexpected_key"

	// ErrorKindDefinitionNotFound indicates a dangling reference after both
	// the local spec and the catalog have been searched.
	ErrorKindDefinitionNotFound ErrorKind = "definition_not_found"

	// ErrorKindNoStartDate indicates a template that requires the
	// experiment's start date when none is available.
	ErrorKindNoStartDate ErrorKind = "no_start_date"

	// ErrorKindInvalid indicates any other invalid configuration: malformed
	// enums or dates, inconsistent parameters, a private experiment without
	// a dataset id.
	ErrorKindInvalid ErrorKind = "invalid"
)

// ConfigError is a classified configuration error.
type ConfigError struct {
	// Kind is the error classification.
	Kind ErrorKind

	// Message is the human-readable error message.
	Message string

	// Reference is the name of the offending reference, if applicable.
	Reference string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is implements error equality for errors.Is: two ConfigErrors match when
// their kinds match.
func (e *ConfigError) Is(target error) bool {
	t, ok := target.(*ConfigError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewDefinitionNotFound creates a dangling-reference error.
func NewDefinitionNotFound(kind, name string) *ConfigError {
	return &ConfigError{
		Kind:      ErrorKindDefinitionNotFound,
		Message:   fmt.Sprintf("could not locate %s %q", kind, name),
		Reference: name,
	}
}

// NewUnexpectedKeyError creates a schema-violation error naming the
// offending top-level keys.
func NewUnexpectedKeyError(file string, keys []string) *ConfigError {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	return &ConfigError{
		Kind:    ErrorKindUnexpectedKey,
		Message: fmt.Sprintf("unexpected config key[s] found: %s (file: %s)", strings.Join(sorted, ", "), file),
	}
}

// NewNoStartDateError creates an error for a template that needs a start
// date no source supplies.
func NewNoStartDateError(slug string) *ConfigError {
	return &ConfigError{
		Kind:    ErrorKindNoStartDate,
		Message: fmt.Sprintf("%s -> experiment has no start date", slug),
	}
}

// NewInvalidError creates a generic configuration error.
func NewInvalidError(format string, args ...any) *ConfigError {
	return &ConfigError{
		Kind:    ErrorKindInvalid,
		Message: fmt.Sprintf(format, args...),
	}
}

// IsDefinitionNotFound reports whether err is a dangling-reference error.
func IsDefinitionNotFound(err error) bool {
	return hasKind(err, ErrorKindDefinitionNotFound)
}

// IsUnexpectedKey reports whether err is a fragment schema violation.
func IsUnexpectedKey(err error) bool {
	return hasKind(err, ErrorKindUnexpectedKey)
}

// IsNoStartDate reports whether err is a missing-start-date error.
func IsNoStartDate(err error) bool {
	return hasKind(err, ErrorKindNoStartDate)
}

// IsInvalid reports whether err is a generic configuration error.
func IsInvalid(err error) bool {
	return hasKind(err, ErrorKindInvalid)
}

func hasKind(err error, kind ErrorKind) bool {
	var e *ConfigError
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
