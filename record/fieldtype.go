package record

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Kind identifies the shape of a field type.
type Kind uint8

const (
	KindAny Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindTime
	KindBytes
	KindList
	KindMap
	KindOptional
	KindUnion
	KindRecord
)

// FieldType describes the declared type of a field. Composite types are
// built from the package constructors (ListOf, MapOf, OptionalOf, UnionOf,
// RecordOf, Ref) or parsed from their textual form with ParseFieldType.
type FieldType struct {
	// Kind is the shape of the type.
	Kind Kind

	// Elem is the element type for list, map and optional types.
	Elem *FieldType

	// Members lists the alternatives of a union type, tried in order.
	Members []FieldType

	// Name is the referenced record type name for record types.
	Name string

	rec *Type // resolved record type, set by RecordOf or ref resolution
}

// Primitive field types.
var (
	Any    = FieldType{Kind: KindAny}
	String = FieldType{Kind: KindString}
	Int    = FieldType{Kind: KindInt}
	Float  = FieldType{Kind: KindFloat}
	Bool   = FieldType{Kind: KindBool}
	Time   = FieldType{Kind: KindTime}
	Bytes  = FieldType{Kind: KindBytes}
)

// ListOf returns a list type with the given element type.
func ListOf(elem FieldType) FieldType {
	return FieldType{Kind: KindList, Elem: &elem}
}

// MapOf returns a string-keyed map type with the given value type.
func MapOf(elem FieldType) FieldType {
	return FieldType{Kind: KindMap, Elem: &elem}
}

// OptionalOf returns a type that additionally accepts nil.
func OptionalOf(elem FieldType) FieldType {
	return FieldType{Kind: KindOptional, Elem: &elem}
}

// UnionOf returns a type accepting any of the listed alternatives.
// Alternatives are tried in declaration order.
func UnionOf(members ...FieldType) FieldType {
	return FieldType{Kind: KindUnion, Members: members}
}

// RecordOf returns a type accepting instances of the given record type.
func RecordOf(t *Type) FieldType {
	return FieldType{Kind: KindRecord, Name: t.name, rec: t}
}

// Ref returns a record type reference by name. References are resolved
// against the Resolver supplied to NewType; an unresolved reference is a
// definition-time error.
func Ref(name string) FieldType {
	return FieldType{Kind: KindRecord, Name: name}
}

// Record returns the resolved record type for record references and nil
// for every other kind.
func (ft FieldType) Record() *Type {
	return ft.rec
}

// String renders the type in the same syntax ParseFieldType accepts.
func (ft FieldType) String() string {
	switch ft.Kind {
	case KindAny:
		return "any"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	case KindBytes:
		return "bytes"
	case KindList:
		return "[]" + ft.Elem.String()
	case KindMap:
		return "map[string]" + ft.Elem.String()
	case KindOptional:
		return ft.Elem.String() + "?"
	case KindUnion:
		parts := make([]string, len(ft.Members))
		for i, m := range ft.Members {
			parts[i] = m.String()
		}
		return strings.Join(parts, "|")
	case KindRecord:
		return ft.Name
	default:
		return fmt.Sprintf("kind(%d)", ft.Kind)
	}
}

// ParseFieldType parses the textual type syntax used by declaration files:
// primitives ("string", "int", "float", "bool", "time", "bytes", "any"),
// lists ("[]string"), string-keyed maps ("map[string]int"), optionals
// ("int?"), unions ("int|string"), and record references by bare name
// ("address"). The optional suffix binds tighter than the union bar.
func ParseFieldType(s string) (FieldType, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return FieldType{}, fmt.Errorf("empty type expression")
	}

	if parts := splitUnion(s); len(parts) > 1 {
		members := make([]FieldType, len(parts))
		for i, p := range parts {
			m, err := ParseFieldType(p)
			if err != nil {
				return FieldType{}, err
			}
			members[i] = m
		}
		return UnionOf(members...), nil
	}

	if strings.HasSuffix(s, "?") {
		elem, err := ParseFieldType(strings.TrimSuffix(s, "?"))
		if err != nil {
			return FieldType{}, err
		}
		return OptionalOf(elem), nil
	}

	if rest, ok := strings.CutPrefix(s, "[]"); ok {
		elem, err := ParseFieldType(rest)
		if err != nil {
			return FieldType{}, err
		}
		return ListOf(elem), nil
	}

	if rest, ok := strings.CutPrefix(s, "map[string]"); ok {
		elem, err := ParseFieldType(rest)
		if err != nil {
			return FieldType{}, err
		}
		return MapOf(elem), nil
	}
	if strings.HasPrefix(s, "map[") {
		return FieldType{}, fmt.Errorf("unsupported map key in %q: only string keys are allowed", s)
	}

	switch s {
	case "any":
		return Any, nil
	case "string":
		return String, nil
	case "int":
		return Int, nil
	case "float":
		return Float, nil
	case "bool":
		return Bool, nil
	case "time":
		return Time, nil
	case "bytes":
		return Bytes, nil
	}

	if !isValidIdentifier(s) {
		return FieldType{}, fmt.Errorf("invalid type expression %q", s)
	}
	return Ref(s), nil
}

// splitUnion splits on top-level bars, leaving bars inside brackets alone.
func splitUnion(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
		case '|':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// conform reports whether a value satisfies the type and returns its
// canonical representation: integers widen to int64, whole JSON numbers
// narrow to int64 for int fields, floats widen to float64, and list/map
// values are rebuilt as []any and map[string]any with conformed elements.
func (ft FieldType) conform(v any) (any, bool) {
	switch ft.Kind {
	case KindAny:
		return v, true

	case KindString:
		s, ok := v.(string)
		return s, ok

	case KindInt:
		switch n := v.(type) {
		case int:
			return int64(n), true
		case int8:
			return int64(n), true
		case int16:
			return int64(n), true
		case int32:
			return int64(n), true
		case int64:
			return n, true
		case uint:
			return int64(n), true
		case uint8:
			return int64(n), true
		case uint16:
			return int64(n), true
		case uint32:
			return int64(n), true
		case uint64:
			if n > math.MaxInt64 {
				return nil, false
			}
			return int64(n), true
		case float64:
			// JSON decodes every number as float64. Accept whole values.
			if n == math.Trunc(n) && !math.IsInf(n, 0) {
				return int64(n), true
			}
			return nil, false
		case float32:
			f := float64(n)
			if f == math.Trunc(f) {
				return int64(f), true
			}
			return nil, false
		}
		return nil, false

	case KindFloat:
		switch n := v.(type) {
		case float64:
			return n, true
		case float32:
			return float64(n), true
		case int:
			return float64(n), true
		case int32:
			return float64(n), true
		case int64:
			return float64(n), true
		}
		return nil, false

	case KindBool:
		b, ok := v.(bool)
		return b, ok

	case KindTime:
		t, ok := v.(time.Time)
		return t, ok

	case KindBytes:
		b, ok := v.([]byte)
		return b, ok

	case KindList:
		items, ok := asSlice(v)
		if !ok {
			return nil, false
		}
		out := make([]any, len(items))
		for i, item := range items {
			cv, ok := ft.Elem.conform(item)
			if !ok {
				return nil, false
			}
			out[i] = cv
		}
		return out, true

	case KindMap:
		entries, ok := asStringMap(v)
		if !ok {
			return nil, false
		}
		out := make(map[string]any, len(entries))
		for k, item := range entries {
			cv, ok := ft.Elem.conform(item)
			if !ok {
				return nil, false
			}
			out[k] = cv
		}
		return out, true

	case KindOptional:
		if isNil(v) {
			return nil, true
		}
		return ft.Elem.conform(v)

	case KindUnion:
		for _, m := range ft.Members {
			if cv, ok := m.conform(v); ok {
				return cv, true
			}
		}
		return nil, false

	case KindRecord:
		r, ok := v.(*Record)
		if !ok || ft.rec == nil {
			return nil, false
		}
		// Match by type name so re-registered types keep working.
		if r.typ.name != ft.rec.name {
			return nil, false
		}
		return r, true
	}
	return nil, false
}

// resolveRefs fills in record references through the resolver. RecordOf
// types are already resolved and left alone.
func resolveRefs(ft *FieldType, r Resolver) error {
	switch ft.Kind {
	case KindList, KindMap, KindOptional:
		return resolveRefs(ft.Elem, r)
	case KindUnion:
		for i := range ft.Members {
			if err := resolveRefs(&ft.Members[i], r); err != nil {
				return err
			}
		}
		return nil
	case KindRecord:
		if ft.rec != nil {
			return nil
		}
		if r == nil {
			return fmt.Errorf("record reference %q requires a resolver", ft.Name)
		}
		t, ok := r.Resolve(ft.Name)
		if !ok {
			return fmt.Errorf("record reference %q is not registered", ft.Name)
		}
		ft.rec = t
		return nil
	}
	return nil
}
