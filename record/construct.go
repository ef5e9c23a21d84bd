package record

import (
	"context"
	"errors"
	"sort"
	"time"
)

type constructConfig struct {
	frozen *bool
}

// ConstructOption adjusts a single construction call.
type ConstructOption func(*constructConfig)

// Frozen overrides the type's immutability marker for one construction.
func Frozen(frozen bool) ConstructOption {
	return func(c *constructConfig) { c.frozen = &frozen }
}

// New constructs an instance from named values. Every declared field must
// be present or carry a default. Fails with AsyncRequiredError when the
// type has context validators registered.
func (t *Type) New(values map[string]any, opts ...ConstructOption) (*Record, error) {
	return t.construct(context.Background(), values, false, opts)
}

// NewContext constructs an instance from named values and additionally
// awaits each context validator in declaration order, aborting on the
// first rejection. Cancellation is the caller's responsibility via ctx.
func (t *Type) NewContext(ctx context.Context, values map[string]any, opts ...ConstructOption) (*Record, error) {
	return t.construct(ctx, values, true, opts)
}

// FromValues constructs an instance from positional values in declaration
// order. Missing trailing fields fall back to their defaults; more values
// than fields is an error.
func (t *Type) FromValues(values ...any) (*Record, error) {
	named, err := t.positional(values)
	if err != nil {
		t.observeFail("", err)
		return nil, err
	}
	return t.construct(context.Background(), named, false, nil)
}

// FromValuesContext is the context-aware positional form.
func (t *Type) FromValuesContext(ctx context.Context, values ...any) (*Record, error) {
	named, err := t.positional(values)
	if err != nil {
		t.observeFail("", err)
		return nil, err
	}
	return t.construct(ctx, named, true, nil)
}

func (t *Type) positional(values []any) (map[string]any, error) {
	if len(values) > len(t.fields) {
		return nil, &TooManyValuesError{Type: t.name, Got: len(values), Want: len(t.fields)}
	}
	named := make(map[string]any, len(values))
	for i, v := range values {
		named[t.fields[i].Name] = v
	}
	return named, nil
}

// construct is the shared pipeline behind every entry point. For each
// field in declaration order it applies the transformer chain, checks the
// declared type and runs the synchronous validators; the context pass then
// awaits async validators field by field. No partial instance escapes.
func (t *Type) construct(ctx context.Context, input map[string]any, useCtx bool, opts []ConstructOption) (*Record, error) {
	start := time.Now()

	var cfg constructConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if !useCtx && len(t.asyncFields) > 0 {
		err := &AsyncRequiredError{Type: t.name, Fields: append([]string(nil), t.asyncFields...)}
		t.observeFail("", err)
		return nil, err
	}

	var unknown []string
	for name := range input {
		if !t.HasField(name) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		err := &UnknownFieldError{Type: t.name, Fields: unknown}
		t.observeFail("", err)
		return nil, err
	}

	values := make([]any, len(t.fields))
	for i, f := range t.fields {
		raw, supplied := input[f.Name]
		if !supplied {
			if !f.HasDefault() {
				err := &MissingFieldError{Type: t.name, Field: f.Name}
				t.observeFail(f.Name, err)
				return nil, err
			}
			raw = f.defaultValue()
		}
		v, err := t.runField(i, raw)
		if err != nil {
			t.observeFail(f.Name, err)
			return nil, err
		}
		values[i] = v
	}

	rec := &Record{typ: t, values: values}

	if useCtx {
		for _, name := range t.asyncFields {
			i := t.index[name]
			for _, av := range t.asyncs[i] {
				nv, err := av(ctx, rec.values[i])
				if err != nil {
					verr := asValidationError(t.name, name, err)
					t.observeFail(name, verr)
					return nil, verr
				}
				rec.values[i] = nv
			}
		}
	}

	rec.frozen = t.immutable
	if cfg.frozen != nil {
		rec.frozen = *cfg.frozen
	}

	t.observeOK(start, rec.frozen)
	return rec, nil
}

// runField applies one field's pipeline stages to a raw value and returns
// the value to store.
func (t *Type) runField(i int, v any) (any, error) {
	f := &t.fields[i]

	for _, tr := range t.transformers[i] {
		nv, err := tr(v)
		if err != nil {
			return nil, asValidationError(t.name, f.Name, err)
		}
		v = nv
	}

	cv, ok := f.Type.conform(v)
	if !ok {
		return nil, &TypeMismatchError{Type: t.name, Field: f.Name, Want: f.Type.String(), Value: v}
	}
	v = cv

	for _, val := range t.validators[i] {
		nv, err := val(v)
		if err != nil {
			return nil, asValidationError(t.name, f.Name, err)
		}
		v = nv
	}
	return v, nil
}

// asValidationError wraps a transformer, validator or constraint failure
// into a field-scoped ValidationError, leaving already-scoped ones alone.
func asValidationError(typ, field string, err error) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return err
	}
	msg := err.Error()
	var ce *ConstraintError
	if errors.As(err, &ce) {
		msg = ce.Message
	}
	return &ValidationError{Type: typ, Field: field, Message: msg, Err: err}
}

func (t *Type) observeOK(start time.Time, frozen bool) {
	if t.hooks != nil {
		t.hooks.RecordConstructed(t.name, frozen, time.Since(start))
	}
}

func (t *Type) observeFail(field string, err error) {
	if t.hooks != nil {
		t.hooks.ConstructionFailed(t.name, field, err)
	}
}
