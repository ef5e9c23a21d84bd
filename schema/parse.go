package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/artpar/structlite/record"
)

// ParseFile parses a record declaration from a YAML file. Environment
// variable references in the ${VAR} form are expanded before parsing.
func ParseFile(path string) (Decl, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Decl{}, fmt.Errorf("read file %s: %w", path, err)
	}

	return Parse([]byte(os.ExpandEnv(string(data))))
}

// Parse parses a record declaration from YAML bytes.
func Parse(data []byte) (Decl, error) {
	var d Decl
	if err := yaml.Unmarshal(data, &d); err != nil {
		return Decl{}, fmt.Errorf("parse yaml: %w", err)
	}

	if err := d.Validate(); err != nil {
		return Decl{}, fmt.Errorf("validate record %q: %w", d.Name, err)
	}

	return d, nil
}

// ParseDir parses all record declarations from a directory, including
// subdirectories. Files without a .yaml or .yml extension are skipped.
func ParseDir(dir string) ([]Decl, error) {
	var decls []Decl

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		if entry.IsDir() {
			sub, err := ParseDir(path)
			if err != nil {
				return nil, err
			}
			decls = append(decls, sub...)
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		d, err := ParseFile(path)
		if err != nil {
			return nil, err
		}

		decls = append(decls, d)
	}

	return decls, nil
}

// Validate checks the declaration for structural problems and collects
// all of them into one error. Reference resolution and function lookup
// happen later, at Compile time.
func (d Decl) Validate() error {
	var errs []string

	if d.Name == "" {
		errs = append(errs, "record name is required")
	} else if !isValidIdentifier(d.Name) {
		errs = append(errs, fmt.Sprintf("record name %q is not a valid identifier", d.Name))
	}

	if len(d.Fields) == 0 {
		errs = append(errs, "declaration must have at least one field")
	}

	seen := make(map[string]bool, len(d.Fields))
	primaries := 0
	for _, f := range d.Fields {
		if !isValidIdentifier(f.Name) {
			errs = append(errs, fmt.Sprintf("field name %q is not a valid identifier", f.Name))
		}
		if seen[f.Name] {
			errs = append(errs, fmt.Sprintf("duplicate field %q", f.Name))
		}
		seen[f.Name] = true

		if f.Primary {
			primaries++
		}

		if err := validateField(f); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if primaries > 1 {
		errs = append(errs, fmt.Sprintf("at most one field may be primary, got %d", primaries))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// validateField validates a single field declaration.
func validateField(f FieldDecl) error {
	if f.Type == "" {
		return fmt.Errorf("field %q: type is required", f.Name)
	}

	if f.Type != TypeSecret {
		if _, err := record.ParseFieldType(f.Type); err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}
	}

	for _, c := range f.Constraints {
		if !knownConstraint(c.Type) {
			return fmt.Errorf("field %q: unknown constraint type %q", f.Name, c.Type)
		}
	}

	for _, s := range f.Transform {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("field %q: empty transform entry", f.Name)
		}
	}
	for _, s := range f.Check {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("field %q: empty check entry", f.Name)
		}
	}

	return nil
}

// knownConstraint checks if a constraint type is valid.
func knownConstraint(t record.ConstraintType) bool {
	switch t {
	case record.ConstraintMin, record.ConstraintMax,
		record.ConstraintMinLength, record.ConstraintMaxLength,
		record.ConstraintPattern, record.ConstraintNotEmpty,
		record.ConstraintOneOf:
		return true
	default:
		return false
	}
}

// isValidIdentifier checks if a string is a valid identifier.
func isValidIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, c := range s {
		if i == 0 {
			if !isLetter(c) && c != '_' {
				return false
			}
		} else {
			if !isLetter(c) && !isDigit(c) && c != '_' {
				return false
			}
		}
	}

	return true
}

func isLetter(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}
