package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/artpar/structlite/record"
)

// ToDBValue converts a field value to its database representation: bools
// become 0/1, times RFC 3339 text, bytes stay blobs, containers and nested
// records encode as JSON text. Scalars pass through unchanged.
func ToDBValue(ft record.FieldType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch ft.Kind {
	case record.KindBool:
		if b, ok := v.(bool); ok {
			if b {
				return int64(1), nil
			}
			return int64(0), nil
		}
		return v, nil

	case record.KindTime:
		if t, ok := v.(time.Time); ok {
			return t.UTC().Format(time.RFC3339Nano), nil
		}
		return v, nil

	case record.KindBytes:
		return v, nil

	case record.KindOptional:
		return ToDBValue(*ft.Elem, v)

	case record.KindList, record.KindMap:
		data, err := json.Marshal(mapForDB(v))
		if err != nil {
			return nil, fmt.Errorf("encode %s value: %w", ft, err)
		}
		return string(data), nil

	case record.KindRecord:
		r, ok := v.(*record.Record)
		if !ok {
			return v, nil
		}
		data, err := json.Marshal(r.ToMap())
		if err != nil {
			return nil, fmt.Errorf("encode nested %s record: %w", r.Type().Name(), err)
		}
		return string(data), nil

	case record.KindUnion:
		// Scalar union members store natively; container members as JSON.
		switch v.(type) {
		case []any, map[string]any, *record.Record:
			data, err := json.Marshal(mapForDB(v))
			if err != nil {
				return nil, fmt.Errorf("encode %s value: %w", ft, err)
			}
			return string(data), nil
		}
		return v, nil
	}
	return v, nil
}

// mapForDB flattens nested records inside containers to plain maps so the
// JSON encoding matches ToMap.
func mapForDB(v any) any {
	switch mv := v.(type) {
	case *record.Record:
		return mv.ToMap()
	case []any:
		out := make([]any, len(mv))
		for i, item := range mv {
			out[i] = mapForDB(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(mv))
		for k, item := range mv {
			out[k] = mapForDB(item)
		}
		return out
	}
	return v
}

// FromDBValue converts a scanned database value back to the field's input
// form. The result still runs through the construction pipeline, so this
// only undoes the storage encoding; the type check judges the rest.
func FromDBValue(ft record.FieldType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch ft.Kind {
	case record.KindBool:
		switch n := v.(type) {
		case int64:
			return n != 0, nil
		case int:
			return n != 0, nil
		case bool:
			return n, nil
		}
		return v, nil

	case record.KindTime:
		s, ok := textValue(v)
		if !ok {
			return v, nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("parse stored time %q: %w", s, err)
		}
		return t, nil

	case record.KindBytes:
		if s, ok := v.(string); ok {
			return []byte(s), nil
		}
		return v, nil

	case record.KindString:
		if b, ok := v.([]byte); ok {
			return string(b), nil
		}
		return v, nil

	case record.KindOptional:
		return FromDBValue(*ft.Elem, v)

	case record.KindList:
		s, ok := textValue(v)
		if !ok {
			return v, nil
		}
		var out []any
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, fmt.Errorf("decode stored %s value: %w", ft, err)
		}
		return out, nil

	case record.KindMap, record.KindRecord:
		s, ok := textValue(v)
		if !ok {
			return v, nil
		}
		var out map[string]any
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, fmt.Errorf("decode stored %s value: %w", ft, err)
		}
		return out, nil

	case record.KindUnion:
		if b, ok := v.([]byte); ok {
			return string(b), nil
		}
		return v, nil
	}

	// Text columns scan as []byte with some drivers.
	if b, ok := v.([]byte); ok {
		return string(b), nil
	}
	return v, nil
}

func textValue(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	}
	return "", false
}
