package record

// Field declares one record attribute. Declarations are fixed at
// type-definition time and shared read-only across all instances.
type Field struct {
	// Name is the field name, unique within a record type.
	Name string

	// Type is the declared field type.
	Type FieldType

	// Default is the value used when construction input omits the field.
	// A nil Default with a nil DefaultFunc means the field is required.
	Default any

	// DefaultFunc, when set, is called on each construction to produce
	// the default. It takes precedence over Default and is the way to
	// declare an explicit nil default.
	DefaultFunc func() any

	// Metadata carries opaque annotations, queried via FieldMetadata.
	Metadata []any

	// Constraints defines declarative validation rules for this field.
	// They compile into validators at type-definition time.
	Constraints []Constraint

	// Inherited marks fields taken over from a base type unchanged.
	Inherited bool

	// Primary marks the field used as the storage key.
	Primary bool

	// Unique indicates this field must have unique values in storage.
	Unique bool

	// Index creates a database index on this field.
	Index bool
}

// HasDefault reports whether the field carries a default value.
func (f Field) HasDefault() bool {
	return f.Default != nil || f.DefaultFunc != nil
}

// defaultValue produces the field's default for one construction call.
func (f Field) defaultValue() any {
	if f.DefaultFunc != nil {
		return f.DefaultFunc()
	}
	return f.Default
}

// SQLType returns the database column type for this field.
func (f Field) SQLType() string {
	switch f.Type.Kind {
	case KindInt, KindBool:
		return "INTEGER"
	case KindFloat:
		return "REAL"
	case KindBytes:
		return "BLOB"
	case KindTime:
		return "TIMESTAMP"
	case KindList, KindMap, KindRecord, KindUnion, KindAny:
		return "TEXT" // Stored as JSON
	case KindOptional:
		elem := Field{Type: *f.Type.Elem}
		return elem.SQLType()
	default:
		return "TEXT"
	}
}
