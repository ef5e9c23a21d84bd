// Package storage maps record instances to SQL rows. The generation
// functions are purely textual: they emit parameterized SQL and ordered
// value lists without touching a connection. Store layers execution on top
// of them for callers that bring a *sql.DB.
package storage

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/artpar/structlite/record"
)

// Dialect selects the placeholder style of the generated SQL.
type Dialect int

const (
	// SQLite uses ? placeholders.
	SQLite Dialect = iota

	// Postgres uses $1, $2, ... placeholders.
	Postgres
)

// Placeholder renders the n-th (1-based) parameter placeholder.
func (d Dialect) Placeholder(n int) string {
	if d == Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

type sqlConfig struct {
	dialect Dialect
	exclude map[string]bool
}

// SQLOption adjusts one SQL generation call.
type SQLOption func(*sqlConfig)

// WithExclude removes the named fields from the generated column and value
// lists. Names that match no field are ignored.
func WithExclude(fields ...string) SQLOption {
	return func(c *sqlConfig) {
		if c.exclude == nil {
			c.exclude = make(map[string]bool, len(fields))
		}
		for _, f := range fields {
			c.exclude[f] = true
		}
	}
}

// WithDialect selects the placeholder style. The default is SQLite.
func WithDialect(d Dialect) SQLOption {
	return func(c *sqlConfig) { c.dialect = d }
}

// InsertSQL generates an INSERT statement and the ordered value list for a
// record's current field values. Values convert to their database
// representation per field type.
func InsertSQL(rec *record.Record, table string, opts ...SQLOption) (string, []any, error) {
	var cfg sqlConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := checkIdentifier(table); err != nil {
		return "", nil, err
	}

	fields := rec.Type().Fields()
	raw := rec.Values()

	var columns []string
	var placeholders []string
	var values []any

	for i, f := range fields {
		if cfg.exclude[f.Name] {
			continue
		}
		v, err := ToDBValue(f.Type, raw[i])
		if err != nil {
			return "", nil, fmt.Errorf("%s: field %q: %w", rec.Type().Name(), f.Name, err)
		}
		columns = append(columns, f.Name)
		placeholders = append(placeholders, cfg.dialect.Placeholder(len(values)+1))
		values = append(values, v)
	}

	if len(columns) == 0 {
		return "", nil, fmt.Errorf("%s: no fields left to insert into %s", rec.Type().Name(), table)
	}

	sqlText := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)
	return sqlText, values, nil
}

// UpdateSQL generates an UPDATE statement keyed on one field. The key field
// is excluded from the SET list and its value appended last, matching the
// WHERE placeholder.
func UpdateSQL(rec *record.Record, table, keyField string, opts ...SQLOption) (string, []any, error) {
	var cfg sqlConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := checkIdentifier(table); err != nil {
		return "", nil, err
	}

	key, ok := rec.Type().Field(keyField)
	if !ok {
		return "", nil, fmt.Errorf("%s: unknown key field %q", rec.Type().Name(), keyField)
	}

	fields := rec.Type().Fields()
	raw := rec.Values()

	var sets []string
	var values []any

	for i, f := range fields {
		if f.Name == keyField || cfg.exclude[f.Name] {
			continue
		}
		v, err := ToDBValue(f.Type, raw[i])
		if err != nil {
			return "", nil, fmt.Errorf("%s: field %q: %w", rec.Type().Name(), f.Name, err)
		}
		sets = append(sets, f.Name+" = "+cfg.dialect.Placeholder(len(values)+1))
		values = append(values, v)
	}

	if len(sets) == 0 {
		return "", nil, fmt.Errorf("%s: no fields left to update in %s", rec.Type().Name(), table)
	}

	keyValue, err := ToDBValue(key.Type, rec.MustGet(keyField))
	if err != nil {
		return "", nil, fmt.Errorf("%s: field %q: %w", rec.Type().Name(), keyField, err)
	}
	values = append(values, keyValue)

	sqlText := fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = %s",
		table,
		strings.Join(sets, ", "),
		keyField,
		cfg.dialect.Placeholder(len(values)),
	)
	return sqlText, values, nil
}

// FromRow maps a positional row into an instance by declared field order,
// running the full construction pipeline. Database rows are often wider
// than the type, so extra trailing values are ignored.
func FromRow(t *record.Type, row []any) (*record.Record, error) {
	fields := t.Fields()
	if len(row) > len(fields) {
		row = row[:len(fields)]
	}

	input := make(map[string]any, len(row))
	for i, v := range row {
		cv, err := FromDBValue(fields[i].Type, v)
		if err != nil {
			return nil, fmt.Errorf("%s: field %q: %w", t.Name(), fields[i].Name, err)
		}
		input[fields[i].Name] = cv
	}
	return t.FromMap(input)
}

// FromRowMap maps a column-keyed row into an instance. The mapping renames
// columns to field names first; columns matching no declared field are
// ignored.
func FromRowMap(t *record.Type, row map[string]any, mapping map[string]string) (*record.Record, error) {
	input := make(map[string]any, len(row))
	for col, v := range row {
		name := col
		if mapped, ok := mapping[col]; ok {
			name = mapped
		}
		f, ok := t.Field(name)
		if !ok {
			continue
		}
		cv, err := FromDBValue(f.Type, v)
		if err != nil {
			return nil, fmt.Errorf("%s: field %q: %w", t.Name(), name, err)
		}
		input[name] = cv
	}
	return t.FromMap(input)
}

// CreateTableSQL generates CREATE TABLE DDL for a record type. Column types
// come from the per-field SQL mapping; primary, unique and constraint
// declarations become table constraints.
func CreateTableSQL(t *record.Type, table string) string {
	var columns []string
	var constraints []string

	for _, f := range t.Fields() {
		columns = append(columns, columnDef(f))

		if f.Unique && !f.Primary {
			constraints = append(constraints, fmt.Sprintf("UNIQUE(%s)", f.Name))
		}
		constraints = append(constraints, checkConstraints(f)...)
	}

	sqlText := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s",
		table,
		strings.Join(columns, ",\n  "),
	)
	if len(constraints) > 0 {
		sqlText += ",\n  " + strings.Join(constraints, ",\n  ")
	}
	return sqlText + "\n)"
}

// IndexSQL generates CREATE INDEX statements for fields marked with the
// Index hint. The primary key needs no index of its own.
func IndexSQL(t *record.Type, table string) []string {
	var indexes []string
	for _, f := range t.Fields() {
		if f.Index && !f.Primary {
			indexes = append(indexes, fmt.Sprintf(
				"CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s)",
				table, f.Name, table, f.Name,
			))
		}
	}
	return indexes
}

func columnDef(f record.Field) string {
	parts := []string{f.Name, f.SQLType()}

	if f.Primary {
		parts = append(parts, "PRIMARY KEY")
	} else if f.Type.Kind != record.KindOptional {
		parts = append(parts, "NOT NULL")
	}

	if f.DefaultFunc == nil && f.Default != nil {
		if lit := defaultLiteral(f.Default); lit != "" {
			parts = append(parts, "DEFAULT "+lit)
		}
	}
	return strings.Join(parts, " ")
}

// defaultLiteral renders scalar defaults as SQL literals. Containers and
// function defaults have no DDL form and stay application-level.
func defaultLiteral(v any) string {
	switch dv := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(dv, "'", "''") + "'"
	case int, int32, int64:
		return fmt.Sprintf("%d", dv)
	case float32, float64:
		return fmt.Sprintf("%v", dv)
	case bool:
		if dv {
			return "1"
		}
		return "0"
	}
	return ""
}

// checkConstraints lowers declarative field constraints into CHECK clauses.
// Pattern constraints stay application-level: sqlite has no native regex.
func checkConstraints(f record.Field) []string {
	var checks []string
	for _, c := range f.Constraints {
		switch c.Type {
		case record.ConstraintMin:
			if v, ok := numericValue(c.Value); ok {
				checks = append(checks, fmt.Sprintf("CHECK(%s >= %v)", f.Name, v))
			}
		case record.ConstraintMax:
			if v, ok := numericValue(c.Value); ok {
				checks = append(checks, fmt.Sprintf("CHECK(%s <= %v)", f.Name, v))
			}
		case record.ConstraintMinLength:
			if v, ok := numericValue(c.Value); ok {
				checks = append(checks, fmt.Sprintf("CHECK(LENGTH(%s) >= %v)", f.Name, v))
			}
		case record.ConstraintMaxLength:
			if v, ok := numericValue(c.Value); ok {
				checks = append(checks, fmt.Sprintf("CHECK(LENGTH(%s) <= %v)", f.Name, v))
			}
		case record.ConstraintNotEmpty:
			checks = append(checks, fmt.Sprintf("CHECK(LENGTH(TRIM(%s)) > 0)", f.Name))
		case record.ConstraintOneOf:
			if values := stringValues(c.Value); len(values) > 0 {
				quoted := make([]string, len(values))
				for i, v := range values {
					quoted[i] = "'" + strings.ReplaceAll(v, "'", "''") + "'"
				}
				checks = append(checks, fmt.Sprintf("CHECK(%s IN (%s))", f.Name, strings.Join(quoted, ", ")))
			}
		}
	}
	return checks
}

func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func stringValues(v any) []string {
	switch vs := v.(type) {
	case []string:
		return vs
	case []any:
		out := make([]string, 0, len(vs))
		for _, item := range vs {
			out = append(out, fmt.Sprintf("%v", item))
		}
		return out
	}
	return nil
}

// checkIdentifier rejects table names that cannot be interpolated safely.
// Field names are already validated at type-definition time.
func checkIdentifier(s string) error {
	if s == "" {
		return fmt.Errorf("empty table name")
	}
	for i, r := range s {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
		isDigit := r >= '0' && r <= '9'
		if (i == 0 && !isLetter) || (!isLetter && !isDigit) {
			return fmt.Errorf("invalid table name %q", s)
		}
	}
	return nil
}
