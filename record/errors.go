package record

import (
	"fmt"
	"strings"
)

// MissingFieldError reports a required field absent from construction
// input with no declared default.
type MissingFieldError struct {
	Type  string `json:"type"`
	Field string `json:"field"`
}

func (e MissingFieldError) Error() string {
	return fmt.Sprintf("%s: missing required field %q", e.Type, e.Field)
}

// TypeMismatchError reports a value whose runtime type disagrees with the
// field declaration after all transformers ran.
type TypeMismatchError struct {
	Type  string `json:"type"`
	Field string `json:"field"`
	Want  string `json:"want"`
	Value any    `json:"value,omitempty"`
}

func (e TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: field %q expects %s, got %T", e.Type, e.Field, e.Want, e.Value)
}

// ValidationError reports a transformer or validator rejecting a field
// value. It carries the rejecting field name and message.
type ValidationError struct {
	Type    string `json:"type"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: field %q: %s", e.Type, e.Field, e.Message)
}

func (e ValidationError) Unwrap() error {
	return e.Err
}

// ImmutableWriteError reports an assignment attempted on a frozen
// instance.
type ImmutableWriteError struct {
	Type  string `json:"type"`
	Field string `json:"field"`
}

func (e ImmutableWriteError) Error() string {
	return fmt.Sprintf("%s: cannot assign to field %q of a frozen record", e.Type, e.Field)
}

// AsyncRequiredError reports a synchronous entry point called on a type
// with context validators registered. Callers must use the Context
// variants, which run those validators.
type AsyncRequiredError struct {
	Type   string   `json:"type"`
	Fields []string `json:"fields"`
}

func (e AsyncRequiredError) Error() string {
	return fmt.Sprintf("%s: fields [%s] have context validators; use NewContext, FromValuesContext, FromMapContext or SetContext",
		e.Type, strings.Join(e.Fields, ", "))
}

// UnknownFieldError reports field names not declared on the type.
type UnknownFieldError struct {
	Type   string   `json:"type"`
	Fields []string `json:"fields"`
}

func (e UnknownFieldError) Error() string {
	return fmt.Sprintf("%s: unknown fields [%s]", e.Type, strings.Join(e.Fields, ", "))
}

// TooManyValuesError reports more positional values than declared fields.
type TooManyValuesError struct {
	Type string `json:"type"`
	Got  int    `json:"got"`
	Want int    `json:"want"`
}

func (e TooManyValuesError) Error() string {
	return fmt.Sprintf("%s: too many values: got %d, want at most %d", e.Type, e.Got, e.Want)
}
