package record

import (
	"context"
	"encoding/json"
	"fmt"
)

// ToMap produces a map from field name to value, recursively converting
// nested records, lists of records and string-keyed maps of records into
// plain maps. FromMap inverts it.
func (r *Record) ToMap() map[string]any {
	m := make(map[string]any, len(r.values))
	for i, f := range r.typ.fields {
		m[f.Name] = mapValue(r.values[i])
	}
	return m
}

// ToMapShallow produces a map from field name to value, leaving nested
// record values as *Record.
func (r *Record) ToMapShallow() map[string]any {
	m := make(map[string]any, len(r.values))
	for i, f := range r.typ.fields {
		m[f.Name] = r.values[i]
	}
	return m
}

func mapValue(v any) any {
	switch mv := v.(type) {
	case *Record:
		return mv.ToMap()
	case []any:
		out := make([]any, len(mv))
		for i, item := range mv {
			out[i] = mapValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(mv))
		for k, item := range mv {
			out[k] = mapValue(item)
		}
		return out
	}
	return v
}

// FromMap runs the full construction pipeline on the supplied mapping.
// Keys that match no declared field fail with UnknownFieldError. Fields
// declared as record types accept either an instance or a nested map,
// which is built through that type's own pipeline; the same holds inside
// lists, string-keyed maps and optionals.
func (t *Type) FromMap(m map[string]any) (*Record, error) {
	return t.fromMap(context.Background(), m, false)
}

// FromMapContext is the context-aware form of FromMap. Nested record
// construction runs on the context path as well.
func (t *Type) FromMapContext(ctx context.Context, m map[string]any) (*Record, error) {
	return t.fromMap(ctx, m, true)
}

func (t *Type) fromMap(ctx context.Context, m map[string]any, useCtx bool) (*Record, error) {
	input := make(map[string]any, len(m))
	for name, v := range m {
		i, ok := t.index[name]
		if !ok {
			// Pass through so construct reports every unknown name at once.
			input[name] = v
			continue
		}
		cv, err := convertIn(ctx, t.fields[i].Type, v, useCtx)
		if err != nil {
			t.observeFail(name, err)
			return nil, err
		}
		input[name] = cv
	}
	return t.construct(ctx, input, useCtx, nil)
}

// convertIn rebuilds nested record instances from plain maps on the way
// into the pipeline. Values that need no conversion pass through and the
// type check judges them later.
func convertIn(ctx context.Context, ft FieldType, v any, useCtx bool) (any, error) {
	switch ft.Kind {
	case KindRecord:
		mm, ok := v.(map[string]any)
		if !ok || ft.rec == nil {
			return v, nil
		}
		if useCtx {
			return ft.rec.FromMapContext(ctx, mm)
		}
		return ft.rec.FromMap(mm)

	case KindOptional:
		if isNil(v) {
			return v, nil
		}
		return convertIn(ctx, *ft.Elem, v, useCtx)

	case KindList:
		items, ok := asSlice(v)
		if !ok {
			return v, nil
		}
		out := make([]any, len(items))
		for i, item := range items {
			cv, err := convertIn(ctx, *ft.Elem, item, useCtx)
			if err != nil {
				return nil, err
			}
			out[i] = cv
		}
		return out, nil

	case KindMap:
		entries, ok := asStringMap(v)
		if !ok {
			return v, nil
		}
		out := make(map[string]any, len(entries))
		for k, item := range entries {
			cv, err := convertIn(ctx, *ft.Elem, item, useCtx)
			if err != nil {
				return nil, err
			}
			out[k] = cv
		}
		return out, nil
	}
	return v, nil
}

// MarshalJSON encodes the record as its recursive map form. Time fields
// encode as RFC 3339 strings and byte fields as base64, so decoding those
// back requires a parsing transformer on the field.
func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ToMap())
}

// FromJSON decodes a JSON object and delegates to FromMap.
func (t *Type) FromJSON(data []byte) (*Record, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%s: decode json: %w", t.name, err)
	}
	return t.FromMap(m)
}

// FromJSONContext is the context-aware form of FromJSON.
func (t *Type) FromJSONContext(ctx context.Context, data []byte) (*Record, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%s: decode json: %w", t.name, err)
	}
	return t.FromMapContext(ctx, m)
}
