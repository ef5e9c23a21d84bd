package record

import "context"

// Builder accumulates field values for a Type ahead of construction.
// Setters stage values in a pending map without running any part of
// the pipeline; Build hands the staged values to the constructor,
// which reports unknown names, missing fields, and rejected values
// exactly as direct construction does.
//
// A Builder is not safe for concurrent use. Building does not consume
// the staged values, so one builder can produce several records.
type Builder struct {
	typ     *Type
	pending map[string]any
}

// Builder returns an empty builder for the type.
func (t *Type) Builder() *Builder {
	return &Builder{
		typ:     t,
		pending: make(map[string]any),
	}
}

// Set stages a value for the named field and returns the builder for
// chaining. The name is not checked here; Build reports unknown names.
func (b *Builder) Set(name string, v any) *Builder {
	b.pending[name] = v
	return b
}

// SetAll stages every entry of values, overwriting earlier stages for
// the same names.
func (b *Builder) SetAll(values map[string]any) *Builder {
	for name, v := range values {
		b.pending[name] = v
	}
	return b
}

// Unset removes a staged value so the field falls back to its default.
func (b *Builder) Unset(name string) *Builder {
	delete(b.pending, name)
	return b
}

// Pending returns a copy of the staged values.
func (b *Builder) Pending() map[string]any {
	out := make(map[string]any, len(b.pending))
	for name, v := range b.pending {
		out[name] = v
	}
	return out
}

// Build constructs a record from the staged values.
func (b *Builder) Build(opts ...ConstructOption) (*Record, error) {
	return b.typ.New(b.pending, opts...)
}

// BuildContext constructs a record from the staged values, running
// context-aware validators as well.
func (b *Builder) BuildContext(ctx context.Context, opts ...ConstructOption) (*Record, error) {
	return b.typ.NewContext(ctx, b.pending, opts...)
}
