// Package record implements typed, validated, optionally immutable record
// objects. A record type is declared once, in code or compiled from a
// declaration file, and is read-only afterwards: field declarations and the
// per-field transformer and validator registries are fixed at definition
// time and shared across all instances. Construction runs every field
// through its transformer chain, a runtime type check and its validators,
// in declaration order, and either returns a fully validated instance or a
// typed error.
package record

import (
	"context"
	"fmt"
)

// Transformer normalizes or converts a raw input value before the type
// check. The returned value feeds the next transformer in the chain.
type Transformer func(v any) (any, error)

// Validator accepts or rejects an already-transformed, type-checked value.
// The returned value is stored, so a validator may substitute the value;
// returning the input unchanged accepts it as-is.
type Validator func(v any) (any, error)

// AsyncValidator is a context-aware validator. Types with async validators
// registered reject synchronous construction and run them only on the
// Context entry points, sequentially in declaration order.
type AsyncValidator func(ctx context.Context, v any) (any, error)

// Resolver looks up record types by name for Ref field types.
type Resolver interface {
	Resolve(name string) (*Type, bool)
}

// Type is a compiled record type. It is immutable after NewType returns.
type Type struct {
	name      string
	fields    []Field
	index     map[string]int
	immutable bool
	hooks     Hooks

	transformers [][]Transformer
	validators   [][]Validator
	asyncs       [][]AsyncValidator
	asyncFields  []string
}

type fieldFuncs struct {
	field        string
	transformers []Transformer
	validators   []Validator
	asyncs       []AsyncValidator
	constraints  []Constraint
}

type typeConfig struct {
	base      *Type
	immutable *bool
	resolver  Resolver
	hooks     Hooks
	funcs     []fieldFuncs
}

// TypeOption configures a record type at definition time.
type TypeOption func(*typeConfig)

// Extend bases the new type on an existing one: the base's fields come
// first with their Inherited flag set, and its registered transformers and
// validators carry over. Redeclaring a base field keeps its position but
// replaces its declaration.
func Extend(base *Type) TypeOption {
	return func(c *typeConfig) { c.base = base }
}

// Immutable marks the type's instances as frozen after construction.
func Immutable() TypeOption {
	on := true
	return func(c *typeConfig) { c.immutable = &on }
}

// Mutable overrides an immutable base when extending.
func Mutable() TypeOption {
	off := false
	return func(c *typeConfig) { c.immutable = &off }
}

// WithTransformer registers transformers for a field, appended in call
// order after any inherited ones.
func WithTransformer(field string, fns ...Transformer) TypeOption {
	return func(c *typeConfig) {
		c.funcs = append(c.funcs, fieldFuncs{field: field, transformers: fns})
	}
}

// WithValidator registers synchronous validators for a field.
func WithValidator(field string, fns ...Validator) TypeOption {
	return func(c *typeConfig) {
		c.funcs = append(c.funcs, fieldFuncs{field: field, validators: fns})
	}
}

// WithAsyncValidator registers context-aware validators for a field.
func WithAsyncValidator(field string, fns ...AsyncValidator) TypeOption {
	return func(c *typeConfig) {
		c.funcs = append(c.funcs, fieldFuncs{field: field, asyncs: fns})
	}
}

// WithConstraints attaches declarative constraints to a field. They are
// recorded on the declaration and compiled into validators in place.
func WithConstraints(field string, cs ...Constraint) TypeOption {
	return func(c *typeConfig) {
		c.funcs = append(c.funcs, fieldFuncs{field: field, constraints: cs})
	}
}

// WithResolver supplies the resolver used for Ref field types.
func WithResolver(r Resolver) TypeOption {
	return func(c *typeConfig) { c.resolver = r }
}

// WithHooks attaches an observation interface called on construction
// outcomes and field writes.
func WithHooks(h Hooks) TypeOption {
	return func(c *typeConfig) { c.hooks = h }
}

// NewType compiles a record type from ordered field declarations. The
// declaration order drives the construction pipeline, positional input and
// comparison. Constraints declared inline on fields compile first, then
// options apply in call order.
func NewType(name string, fields []Field, opts ...TypeOption) (*Type, error) {
	if !isValidIdentifier(name) {
		return nil, fmt.Errorf("invalid record type name %q", name)
	}

	var cfg typeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	t := &Type{name: name, hooks: cfg.hooks}

	if cfg.base != nil {
		t.fields = append(t.fields, cfg.base.fields...)
		for i := range t.fields {
			t.fields[i].Inherited = true
		}
	}

	for _, f := range fields {
		if !isValidIdentifier(f.Name) {
			return nil, fmt.Errorf("%s: invalid field name %q", name, f.Name)
		}
		f.Inherited = false
		if at := indexOf(t.fields, f.Name); at >= 0 {
			if !t.fields[at].Inherited {
				return nil, fmt.Errorf("%s: duplicate field %q", name, f.Name)
			}
			t.fields[at] = f
			continue
		}
		t.fields = append(t.fields, f)
	}

	t.index = make(map[string]int, len(t.fields))
	for i, f := range t.fields {
		t.index[f.Name] = i
	}

	for i := range t.fields {
		if err := resolveRefs(&t.fields[i].Type, cfg.resolver); err != nil {
			return nil, fmt.Errorf("%s: field %q: %w", name, t.fields[i].Name, err)
		}
	}

	n := len(t.fields)
	t.transformers = make([][]Transformer, n)
	t.validators = make([][]Validator, n)
	t.asyncs = make([][]AsyncValidator, n)

	if cfg.base != nil {
		for fname, bi := range cfg.base.index {
			i := t.index[fname]
			t.transformers[i] = append([]Transformer(nil), cfg.base.transformers[bi]...)
			t.validators[i] = append([]Validator(nil), cfg.base.validators[bi]...)
			t.asyncs[i] = append([]AsyncValidator(nil), cfg.base.asyncs[bi]...)
		}
		if t.hooks == nil {
			t.hooks = cfg.base.hooks
		}
	}

	// Inline constraints compile before any option-registered functions.
	// Inherited fields already carry theirs through the base registries.
	for i, f := range t.fields {
		if f.Inherited {
			continue
		}
		for _, c := range f.Constraints {
			t.validators[i] = append(t.validators[i], constraintValidator(f.Name, c))
		}
	}

	for _, ff := range cfg.funcs {
		i, ok := t.index[ff.field]
		if !ok {
			return nil, &UnknownFieldError{Type: name, Fields: []string{ff.field}}
		}
		t.transformers[i] = append(t.transformers[i], ff.transformers...)
		t.validators[i] = append(t.validators[i], ff.validators...)
		t.asyncs[i] = append(t.asyncs[i], ff.asyncs...)
		for _, c := range ff.constraints {
			t.fields[i].Constraints = append(t.fields[i].Constraints, c)
			t.validators[i] = append(t.validators[i], constraintValidator(ff.field, c))
		}
	}

	for _, f := range t.fields {
		if len(t.asyncs[t.index[f.Name]]) > 0 {
			t.asyncFields = append(t.asyncFields, f.Name)
		}
	}

	switch {
	case cfg.immutable != nil:
		t.immutable = *cfg.immutable
	case cfg.base != nil:
		t.immutable = cfg.base.immutable
	}

	return t, nil
}

// MustNewType is NewType that panics on error, for package-level type
// definitions.
func MustNewType(name string, fields []Field, opts ...TypeOption) *Type {
	t, err := NewType(name, fields, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// Name returns the record type name.
func (t *Type) Name() string { return t.name }

func (t *Type) String() string { return t.name }

// Immutable reports whether instances freeze after construction.
func (t *Type) Immutable() bool { return t.immutable }

// NumFields returns the number of declared fields.
func (t *Type) NumFields() int { return len(t.fields) }

// FieldNames returns the field names in declaration order.
func (t *Type) FieldNames() []string {
	names := make([]string, len(t.fields))
	for i, f := range t.fields {
		names[i] = f.Name
	}
	return names
}

// Fields returns a copy of the field declarations in declaration order.
func (t *Type) Fields() []Field {
	return append([]Field(nil), t.fields...)
}

// Field returns the declaration of a named field.
func (t *Type) Field(name string) (Field, bool) {
	if i, ok := t.index[name]; ok {
		return t.fields[i], true
	}
	return Field{}, false
}

// HasField reports whether the type declares the named field.
func (t *Type) HasField(name string) bool {
	_, ok := t.index[name]
	return ok
}

// FieldMetadata returns the opaque annotations declared on a field, nil
// when the field is unknown or carries none.
func (t *Type) FieldMetadata(name string) []any {
	if i, ok := t.index[name]; ok {
		return t.fields[i].Metadata
	}
	return nil
}

// HasAsyncValidators reports whether any field has context validators
// registered, which forces the Context construction entry points.
func (t *Type) HasAsyncValidators() bool {
	return len(t.asyncFields) > 0
}

func indexOf(fields []Field, name string) int {
	for i, f := range fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// isValidIdentifier checks that a name is a valid identifier, safe to
// interpolate into generated SQL.
func isValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
		isDigit := r >= '0' && r <= '9'
		if i == 0 && !isLetter {
			return false
		}
		if !isLetter && !isDigit {
			return false
		}
	}
	return true
}
