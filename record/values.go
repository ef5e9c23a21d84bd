package record

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// isNil treats typed nil pointers, slices and maps like nil.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// asSlice views any slice or array as []any. []byte stays a scalar.
func asSlice(v any) ([]any, bool) {
	if items, ok := v.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// asStringMap views any string-keyed map as map[string]any.
func asStringMap(v any) (map[string]any, bool) {
	if entries, ok := v.(map[string]any); ok {
		return entries, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	for _, k := range rv.MapKeys() {
		out[k.String()] = rv.MapIndex(k).Interface()
	}
	return out, true
}

// eqValue compares two canonical field values. Numerics compare across
// int64 and float64 the way 1 == 1.0 holds.
func eqValue(a, b any) bool {
	if isNil(a) || isNil(b) {
		return isNil(a) && isNil(b)
	}
	switch av := a.(type) {
	case int64:
		switch bv := b.(type) {
		case int64:
			return av == bv
		case float64:
			return float64(av) == bv
		}
		return false
	case float64:
		switch bv := b.(type) {
		case float64:
			return av == bv
		case int64:
			return av == float64(bv)
		}
		return false
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	case []byte:
		bv, ok := b.([]byte)
		return ok && bytes.Equal(av, bv)
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !eqValue(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			ov, ok := bv[k]
			if !ok || !eqValue(v, ov) {
				return false
			}
		}
		return true
	case *Record:
		bv, ok := b.(*Record)
		return ok && av.Equal(bv)
	}
	return reflect.DeepEqual(a, b)
}

// cmpValue orders two canonical field values. Lists order
// lexicographically; maps and mixed kinds are not orderable.
func cmpValue(a, b any) (int, error) {
	if isNil(a) && isNil(b) {
		return 0, nil
	}
	if isNil(a) || isNil(b) {
		return 0, fmt.Errorf("cannot order %T against %T", a, b)
	}
	switch av := a.(type) {
	case int64:
		switch bv := b.(type) {
		case int64:
			return cmpOrdered(av, bv), nil
		case float64:
			return cmpOrdered(float64(av), bv), nil
		}
	case float64:
		switch bv := b.(type) {
		case float64:
			return cmpOrdered(av, bv), nil
		case int64:
			return cmpOrdered(av, float64(bv)), nil
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv), nil
		}
	case bool:
		if bv, ok := b.(bool); ok {
			return cmpOrdered(boolInt(av), boolInt(bv)), nil
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv), nil
		}
	case []byte:
		if bv, ok := b.([]byte); ok {
			return bytes.Compare(av, bv), nil
		}
	case []any:
		if bv, ok := b.([]any); ok {
			for i := 0; i < len(av) && i < len(bv); i++ {
				c, err := cmpValue(av[i], bv[i])
				if err != nil || c != 0 {
					return c, err
				}
			}
			return cmpOrdered(len(av), len(bv)), nil
		}
	case map[string]any:
		return 0, fmt.Errorf("map values are not orderable")
	case *Record:
		if bv, ok := b.(*Record); ok {
			return av.Compare(bv)
		}
	}
	return 0, fmt.Errorf("cannot order %T against %T", a, b)
}

func cmpOrdered[T int | int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// hashValue folds one canonical value into h. Whole floats hash like the
// equal integer so that equal values hash equal. Lists, maps and mutable
// nested records are not hashable.
func hashValue(h hash.Hash64, v any) error {
	if isNil(v) {
		h.Write([]byte{0})
		return nil
	}
	switch hv := v.(type) {
	case int64:
		h.Write([]byte{1})
		binary.Write(h, binary.BigEndian, hv)
		return nil
	case float64:
		if hv == math.Trunc(hv) && !math.IsInf(hv, 0) {
			// Whole floats hash like the equal integer.
			h.Write([]byte{1})
			binary.Write(h, binary.BigEndian, int64(hv))
			return nil
		}
		h.Write([]byte{2})
		binary.Write(h, binary.BigEndian, math.Float64bits(hv))
		return nil
	case string:
		h.Write([]byte{3})
		binary.Write(h, binary.BigEndian, int64(len(hv)))
		h.Write([]byte(hv))
		return nil
	case bool:
		h.Write([]byte{4, byte(boolInt(hv))})
		return nil
	case time.Time:
		h.Write([]byte{5})
		binary.Write(h, binary.BigEndian, hv.UnixNano())
		return nil
	case []byte:
		h.Write([]byte{6})
		binary.Write(h, binary.BigEndian, int64(len(hv)))
		h.Write(hv)
		return nil
	case *Record:
		if !hv.frozen {
			return fmt.Errorf("mutable %s record is not hashable", hv.typ.name)
		}
		h.Write([]byte{7})
		for _, fv := range hv.values {
			if err := hashValue(h, fv); err != nil {
				return err
			}
		}
		return nil
	case []any:
		return fmt.Errorf("list values are not hashable")
	case map[string]any:
		return fmt.Errorf("map values are not hashable")
	}
	return fmt.Errorf("%T values are not hashable", v)
}

// deepCopyValue copies container values so clones never alias.
func deepCopyValue(v any) any {
	switch cv := v.(type) {
	case []any:
		out := make([]any, len(cv))
		for i, item := range cv {
			out[i] = deepCopyValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(cv))
		for k, item := range cv {
			out[k] = deepCopyValue(item)
		}
		return out
	case []byte:
		return append([]byte(nil), cv...)
	case *Record:
		return cv.Clone()
	}
	return v
}

func formatValue(v any) string {
	switch fv := v.(type) {
	case string:
		return strconv.Quote(fv)
	case []byte:
		return strconv.Quote(string(fv))
	case time.Time:
		return fv.Format(time.RFC3339Nano)
	case *Record:
		return fv.String()
	case nil:
		return "nil"
	}
	return fmt.Sprintf("%v", v)
}
