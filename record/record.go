package record

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
)

// Record is one instance of a record type: an ordered, fixed layout of
// field values in declaration order. Frozen records reject writes and are
// hashable; mutable records re-validate on every write and never hash.
type Record struct {
	typ    *Type
	values []any
	frozen bool
}

// Item is one field name/value pair in declaration order.
type Item struct {
	Name  string
	Value any
}

// Type returns the record's type.
func (r *Record) Type() *Type { return r.typ }

// Frozen reports whether the record rejects writes.
func (r *Record) Frozen() bool { return r.frozen }

// Len returns the number of fields.
func (r *Record) Len() int { return len(r.values) }

// Get returns a field value by name.
func (r *Record) Get(name string) (any, error) {
	i, ok := r.typ.index[name]
	if !ok {
		return nil, &UnknownFieldError{Type: r.typ.name, Fields: []string{name}}
	}
	return r.values[i], nil
}

// MustGet is Get that panics on unknown fields.
func (r *Record) MustGet(name string) any {
	v, err := r.Get(name)
	if err != nil {
		panic(err)
	}
	return v
}

// Values returns a copy of the field values in declaration order.
func (r *Record) Values() []any {
	return append([]any(nil), r.values...)
}

// Items returns the field name/value pairs in declaration order.
func (r *Record) Items() []Item {
	items := make([]Item, len(r.values))
	for i, f := range r.typ.fields {
		items[i] = Item{Name: f.Name, Value: r.values[i]}
	}
	return items
}

// Set writes one field through the full pipeline: transformers, type
// check, validators. Frozen records fail with ImmutableWriteError and stay
// unchanged; fields with context validators require SetContext.
func (r *Record) Set(name string, v any) error {
	return r.set(context.Background(), name, v, false)
}

// SetContext writes one field and additionally awaits the field's context
// validators in registration order.
func (r *Record) SetContext(ctx context.Context, name string, v any) error {
	return r.set(ctx, name, v, true)
}

func (r *Record) set(ctx context.Context, name string, v any, useCtx bool) error {
	i, ok := r.typ.index[name]
	if !ok {
		return &UnknownFieldError{Type: r.typ.name, Fields: []string{name}}
	}
	if r.frozen {
		return &ImmutableWriteError{Type: r.typ.name, Field: name}
	}
	if !useCtx && len(r.typ.asyncs[i]) > 0 {
		return &AsyncRequiredError{Type: r.typ.name, Fields: []string{name}}
	}

	nv, err := r.typ.runField(i, v)
	if err != nil {
		return err
	}
	if useCtx {
		for _, av := range r.typ.asyncs[i] {
			cv, err := av(ctx, nv)
			if err != nil {
				return asValidationError(r.typ.name, name, err)
			}
			nv = cv
		}
	}

	r.values[i] = nv
	if r.typ.hooks != nil {
		r.typ.hooks.FieldWritten(r.typ.name, name)
	}
	return nil
}

// Equal compares the ordered field-name sequence and then all field
// values pairwise in order. Records of different types compare equal when
// both agree; nested records and containers compare deeply.
func (r *Record) Equal(o *Record) bool {
	if r == nil || o == nil {
		return r == o
	}
	if len(r.values) != len(o.values) {
		return false
	}
	for i, f := range r.typ.fields {
		if o.typ.fields[i].Name != f.Name {
			return false
		}
		if !eqValue(r.values[i], o.values[i]) {
			return false
		}
	}
	return true
}

// Compare orders two records lexicographically over declaration order.
// Records must share the same field-name sequence; incomparable value
// kinds are an error.
func (r *Record) Compare(o *Record) (int, error) {
	if o == nil {
		return 0, fmt.Errorf("%s: cannot compare against nil record", r.typ.name)
	}
	if len(r.values) != len(o.values) {
		return 0, fmt.Errorf("cannot compare %s against %s: mismatched fields", r.typ.name, o.typ.name)
	}
	for i, f := range r.typ.fields {
		if o.typ.fields[i].Name != f.Name {
			return 0, fmt.Errorf("cannot compare %s against %s: mismatched fields", r.typ.name, o.typ.name)
		}
		c, err := cmpValue(r.values[i], o.values[i])
		if err != nil {
			return 0, fmt.Errorf("%s: field %q: %w", r.typ.name, f.Name, err)
		}
		if c != 0 {
			return c, nil
		}
	}
	return 0, nil
}

// Less reports whether r orders before o.
func (r *Record) Less(o *Record) (bool, error) {
	c, err := r.Compare(o)
	return c < 0, err
}

// Hash returns a hash over the full ordered field tuple. Only frozen
// records hash; equal records hash equal.
func (r *Record) Hash() (uint64, error) {
	if !r.frozen {
		return 0, fmt.Errorf("mutable %s record is not hashable", r.typ.name)
	}
	h := fnv.New64a()
	for i, f := range r.typ.fields {
		if err := hashValue(h, r.values[i]); err != nil {
			return 0, fmt.Errorf("%s: field %q: %w", r.typ.name, f.Name, err)
		}
	}
	return h.Sum64(), nil
}

// Clone deep-copies the record, containers and nested records included,
// preserving the frozen flag. The pipeline does not re-run.
func (r *Record) Clone() *Record {
	values := make([]any, len(r.values))
	for i, v := range r.values {
		values[i] = deepCopyValue(v)
	}
	return &Record{typ: r.typ, values: values, frozen: r.frozen}
}

// Copy re-runs the construction pipeline over the current values with the
// given overrides applied. The result's frozen state follows the type
// unless overridden per call.
func (r *Record) Copy(changes map[string]any, opts ...ConstructOption) (*Record, error) {
	return r.typ.New(r.withChanges(changes), opts...)
}

// CopyContext is the context-aware form of Copy.
func (r *Record) CopyContext(ctx context.Context, changes map[string]any, opts ...ConstructOption) (*Record, error) {
	return r.typ.NewContext(ctx, r.withChanges(changes), opts...)
}

func (r *Record) withChanges(changes map[string]any) map[string]any {
	m := r.ToMapShallow()
	for k, v := range changes {
		m[k] = v
	}
	return m
}

// String renders the record as name(field=value, ...).
func (r *Record) String() string {
	var b strings.Builder
	b.WriteString(r.typ.name)
	b.WriteByte('(')
	for i, f := range r.typ.fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f.Name)
		b.WriteByte('=')
		b.WriteString(formatValue(r.values[i]))
	}
	b.WriteByte(')')
	return b.String()
}
