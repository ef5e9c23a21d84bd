// Introspection types for exposing compiled record types over an API.
// Clients use these to discover available types and their fields.

package schema

import "github.com/artpar/structlite/record"

// TypeListResponse describes a set of compiled record types.
type TypeListResponse struct {
	Records []TypeSummary `json:"records"`
	Count   int           `json:"count"`
}

// TypeSummary provides a brief overview of a record type.
type TypeSummary struct {
	Name      string `json:"name"`
	Frozen    bool   `json:"frozen,omitempty"`
	NumFields int    `json:"num_fields"`
}

// TypeSchema describes one record type in full.
type TypeSchema struct {
	Name   string        `json:"name"`
	Frozen bool          `json:"frozen,omitempty"`
	Async  bool          `json:"async,omitempty"` // construction requires a context
	Fields []FieldSchema `json:"fields"`
}

// FieldSchema describes a record field for introspection.
type FieldSchema struct {
	Name        string             `json:"name"`
	Type        string             `json:"type"`
	Required    bool               `json:"required"`
	Default     any                `json:"default,omitempty"`
	Inherited   bool               `json:"inherited,omitempty"`
	Primary     bool               `json:"primary,omitempty"`
	Unique      bool               `json:"unique,omitempty"`
	Index       bool               `json:"index,omitempty"`
	SQLType     string             `json:"sql_type,omitempty"` // for tooling
	Constraints []ConstraintSchema `json:"constraints,omitempty"`
	Metadata    []any              `json:"metadata,omitempty"`
}

// ConstraintSchema describes a field constraint for introspection.
type ConstraintSchema struct {
	Type    string `json:"type"`
	Value   any    `json:"value,omitempty"`
	Message string `json:"message,omitempty"`
}

// Describe builds the introspection schema for a compiled record type.
// Function defaults cannot be rendered as a value; such fields report
// required=false with no default.
func Describe(t *record.Type) TypeSchema {
	declared := t.Fields()

	out := TypeSchema{
		Name:   t.Name(),
		Frozen: t.Immutable(),
		Async:  t.HasAsyncValidators(),
		Fields: make([]FieldSchema, 0, len(declared)),
	}

	for _, f := range declared {
		fs := FieldSchema{
			Name:      f.Name,
			Type:      f.Type.String(),
			Required:  !f.HasDefault(),
			Default:   f.Default,
			Inherited: f.Inherited,
			Primary:   f.Primary,
			Unique:    f.Unique,
			Index:     f.Index,
			SQLType:   f.SQLType(),
			Metadata:  f.Metadata,
		}
		for _, c := range f.Constraints {
			fs.Constraints = append(fs.Constraints, ConstraintSchema{
				Type:    string(c.Type),
				Value:   c.Value,
				Message: c.Message,
			})
		}
		out.Fields = append(out.Fields, fs)
	}

	return out
}

// DescribeAll summarizes a list of compiled record types.
func DescribeAll(types []*record.Type) TypeListResponse {
	out := TypeListResponse{
		Records: make([]TypeSummary, 0, len(types)),
		Count:   len(types),
	}
	for _, t := range types {
		out.Records = append(out.Records, TypeSummary{
			Name:      t.Name(),
			Frozen:    t.Immutable(),
			NumFields: t.NumFields(),
		})
	}
	return out
}
