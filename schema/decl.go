// Package schema defines the declarative YAML format for record types and
// compiles declarations into record.Type values. A declaration names the
// type, lists its fields in order, and attaches defaults, transforms,
// checks and constraints per field.
package schema

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/artpar/structlite/record"
)

// TypeSecret is the declaration alias for write-only credential fields.
// It compiles to a string field with a secret-hashing transformer appended
// after any declared transforms, so normalizers still see the plaintext.
const TypeSecret = "secret"

// Decl is the root definition for a declared record type.
type Decl struct {
	// Name is the record type name.
	Name string `yaml:"record"`

	// Frozen marks instances immutable after construction.
	Frozen bool `yaml:"frozen,omitempty"`

	// Fields lists the field declarations in file order.
	Fields FieldList `yaml:"fields"`

	// Meta contains optional metadata.
	Meta DeclMeta `yaml:"meta,omitempty"`
}

// DeclMeta contains optional declaration metadata.
type DeclMeta struct {
	// Version of the declaration.
	Version string `yaml:"version,omitempty"`

	// Description for documentation.
	Description string `yaml:"description,omitempty"`
}

// FieldDecl declares one field of a record type.
type FieldDecl struct {
	// Name is the field name, taken from the mapping key.
	Name string `yaml:"-"`

	// Type is the field type expression (see record.ParseFieldType),
	// plus the "secret" alias.
	Type string `yaml:"type"`

	// Default is the value used when construction input omits the field.
	// A field without a default is required.
	Default any `yaml:"default,omitempty"`

	// Transform lists transformers applied before the type check: names
	// registered in the function map, or expressions over "value".
	Transform StringList `yaml:"transform,omitempty"`

	// Check lists validators applied after the type check: registered
	// names, or boolean expressions over "value".
	Check StringList `yaml:"check,omitempty"`

	// Constraints defines declarative validation rules.
	Constraints []record.Constraint `yaml:"constraints,omitempty"`

	// Metadata carries opaque annotations.
	Metadata []any `yaml:"metadata,omitempty"`

	// Primary marks the field used as the storage key.
	Primary bool `yaml:"primary,omitempty"`

	// Unique indicates this field must have unique values in storage.
	Unique bool `yaml:"unique,omitempty"`

	// Index creates a database index on this field.
	Index bool `yaml:"index,omitempty"`
}

// UnmarshalYAML accepts either a full mapping or the scalar shorthand
// where the value is the type expression alone ("name: string").
func (fd *FieldDecl) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		fd.Type = node.Value
		return nil
	}

	type plain FieldDecl
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*fd = FieldDecl(p)
	return nil
}

// FieldList holds field declarations in file order. The YAML form is a
// mapping; decoding it through a Go map would lose the order, so the list
// walks the mapping node directly.
type FieldList []FieldDecl

// UnmarshalYAML decodes the fields mapping preserving declaration order.
func (fl *FieldList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("fields must be a mapping of name to declaration")
	}

	out := make(FieldList, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var fd FieldDecl
		if err := node.Content[i+1].Decode(&fd); err != nil {
			return fmt.Errorf("field %q: %w", node.Content[i].Value, err)
		}
		fd.Name = node.Content[i].Value
		out = append(out, fd)
	}

	*fl = out
	return nil
}

// StringList decodes from either a single YAML scalar or a sequence, so
// "transform: trim" and "transform: [trim, lower]" both work.
type StringList []string

func (sl *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*sl = StringList{node.Value}
		return nil
	case yaml.SequenceNode:
		var out []string
		if err := node.Decode(&out); err != nil {
			return err
		}
		*sl = out
		return nil
	}
	return fmt.Errorf("expected a string or a list of strings")
}

// References returns the record type names this declaration refers to,
// deduplicated and sorted. Registries compile declarations in dependency
// order based on this. Unparseable type expressions contribute nothing;
// Validate reports those separately.
func (d Decl) References() []string {
	set := make(map[string]bool)
	for _, f := range d.Fields {
		if f.Type == TypeSecret {
			continue
		}
		ft, err := record.ParseFieldType(f.Type)
		if err != nil {
			continue
		}
		collectRefs(ft, set)
	}

	if len(set) == 0 {
		return nil
	}
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func collectRefs(ft record.FieldType, set map[string]bool) {
	switch ft.Kind {
	case record.KindList, record.KindMap, record.KindOptional:
		collectRefs(*ft.Elem, set)
	case record.KindUnion:
		for _, m := range ft.Members {
			collectRefs(m, set)
		}
	case record.KindRecord:
		set[ft.Name] = true
	}
}
