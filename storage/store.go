package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/artpar/structlite/record"
)

// Store executes the generated SQL against a *sql.DB for bound record
// types. The binding table is guarded for concurrent use; the pure
// generation functions stay available without a Store.
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  zerolog.Logger

	mu       sync.RWMutex
	bindings map[string]binding
}

type binding struct {
	typ   *record.Type
	table string
	key   string
}

// ListOptions configures List queries.
type ListOptions struct {
	// Limit caps the number of records returned. Zero means 100.
	Limit int

	// Offset skips that many records.
	Offset int

	// Filters are field = value conditions, combined with AND.
	Filters map[string]any

	// OrderBy names the field to sort by; defaults to the key field.
	OrderBy string

	// OrderDesc sorts descending.
	OrderDesc bool
}

// NewStore wraps an open database. The caller owns the connection's
// lifetime unless Close is used.
func NewStore(db *sql.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:       db,
		logger:   logger,
		bindings: make(map[string]binding),
	}
}

// WithDialect switches the placeholder style for all generated SQL.
func (s *Store) WithDialect(d Dialect) *Store {
	s.dialect = d
	return s
}

// Bind associates a record type with a table. An empty table name defaults
// to the type name. The type must declare exactly one primary field; it
// keys Get, Update and Delete.
func (s *Store) Bind(t *record.Type, table string) error {
	if table == "" {
		table = t.Name()
	}
	if err := checkIdentifier(table); err != nil {
		return err
	}

	key := ""
	for _, f := range t.Fields() {
		if !f.Primary {
			continue
		}
		if key != "" {
			return fmt.Errorf("%s: multiple primary fields (%s, %s)", t.Name(), key, f.Name)
		}
		key = f.Name
	}
	if key == "" {
		return fmt.Errorf("%s: no primary field declared", t.Name())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.bindings[t.Name()]; exists {
		return fmt.Errorf("record type %q already bound", t.Name())
	}
	s.bindings[t.Name()] = binding{typ: t, table: table, key: key}

	s.logger.Debug().Str("type", t.Name()).Str("table", table).Msg("record type bound")
	return nil
}

// Migrate creates the tables and indexes for every bound type.
func (s *Store) Migrate(ctx context.Context) error {
	s.mu.RLock()
	names := make([]string, 0, len(s.bindings))
	for name := range s.bindings {
		names = append(names, name)
	}
	bound := make(map[string]binding, len(s.bindings))
	for name, b := range s.bindings {
		bound[name] = b
	}
	s.mu.RUnlock()

	sort.Strings(names)
	for _, name := range names {
		b := bound[name]
		if _, err := s.db.ExecContext(ctx, CreateTableSQL(b.typ, b.table)); err != nil {
			return fmt.Errorf("create table %s: %w", b.table, err)
		}
		for _, idx := range IndexSQL(b.typ, b.table) {
			if _, err := s.db.ExecContext(ctx, idx); err != nil {
				return fmt.Errorf("create index on %s: %w", b.table, err)
			}
		}
		s.logger.Info().Str("type", name).Str("table", b.table).Msg("table migrated")
	}
	return nil
}

// Insert stores a record and returns its key value as text. A string
// primary field left empty gets a generated UUID; the stored record is
// returned so the caller sees the assigned key.
func (s *Store) Insert(ctx context.Context, rec *record.Record) (*record.Record, string, error) {
	b, err := s.binding(rec.Type().Name())
	if err != nil {
		return nil, "", err
	}

	key, _ := rec.Type().Field(b.key)
	keyVal := rec.MustGet(b.key)
	if key.Type.Kind == record.KindString && (keyVal == nil || keyVal == "") {
		generated, err := rec.Copy(map[string]any{b.key: uuid.New().String()})
		if err != nil {
			return nil, "", fmt.Errorf("assign generated key: %w", err)
		}
		rec = generated
		keyVal = rec.MustGet(b.key)
	}

	sqlText, values, err := InsertSQL(rec, b.table, WithDialect(s.dialect))
	if err != nil {
		return nil, "", err
	}
	if _, err := s.db.ExecContext(ctx, sqlText, values...); err != nil {
		return nil, "", fmt.Errorf("insert into %s: %w", b.table, err)
	}

	id := fmt.Sprintf("%v", keyVal)
	s.logger.Debug().Str("type", rec.Type().Name()).Str("key", id).Msg("record inserted")
	return rec, id, nil
}

// Get loads the record with the given key value. Returns nil without an
// error when no row matches.
func (s *Store) Get(ctx context.Context, typeName string, keyValue any) (*record.Record, error) {
	b, err := s.binding(typeName)
	if err != nil {
		return nil, err
	}

	columns := b.typ.FieldNames()
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = %s",
		strings.Join(columns, ", "),
		b.table,
		b.key,
		s.dialect.Placeholder(1),
	)

	row := s.db.QueryRowContext(ctx, query, keyValue)
	values := make([]any, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := row.Scan(dest...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("select from %s: %w", b.table, err)
	}

	return FromRow(b.typ, values)
}

// List loads matching records plus the total count before pagination.
func (s *Store) List(ctx context.Context, typeName string, opts ListOptions) ([]*record.Record, int64, error) {
	b, err := s.binding(typeName)
	if err != nil {
		return nil, 0, err
	}

	columns := b.typ.FieldNames()

	var where string
	var args []any
	if len(opts.Filters) > 0 {
		names := make([]string, 0, len(opts.Filters))
		for name := range opts.Filters {
			names = append(names, name)
		}
		sort.Strings(names)

		var conditions []string
		for _, name := range names {
			f, ok := b.typ.Field(name)
			if !ok {
				return nil, 0, fmt.Errorf("%s: unknown filter field %q", typeName, name)
			}
			v, err := ToDBValue(f.Type, opts.Filters[name])
			if err != nil {
				return nil, 0, fmt.Errorf("%s: filter field %q: %w", typeName, name, err)
			}
			conditions = append(conditions, name+" = "+s.dialect.Placeholder(len(args)+1))
			args = append(args, v)
		}
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var count int64
	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", b.table, where)
	if err := s.db.QueryRowContext(ctx, countSQL, args...).Scan(&count); err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", b.table, err)
	}

	orderBy := opts.OrderBy
	if orderBy == "" || !b.typ.HasField(orderBy) {
		orderBy = b.key
	}
	direction := "ASC"
	if opts.OrderDesc {
		direction = "DESC"
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(
		"SELECT %s FROM %s%s ORDER BY %s %s LIMIT %d OFFSET %d",
		strings.Join(columns, ", "), b.table, where, orderBy, direction, limit, opts.Offset,
	)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("select from %s: %w", b.table, err)
	}
	defer rows.Close()

	var results []*record.Record
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, 0, fmt.Errorf("scan %s row: %w", b.table, err)
		}
		rec, err := FromRow(b.typ, values)
		if err != nil {
			return nil, 0, err
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate %s rows: %w", b.table, err)
	}

	return results, count, nil
}

// Update writes the record's current field values over the stored row with
// the same key value.
func (s *Store) Update(ctx context.Context, rec *record.Record) error {
	b, err := s.binding(rec.Type().Name())
	if err != nil {
		return err
	}

	sqlText, values, err := UpdateSQL(rec, b.table, b.key, WithDialect(s.dialect))
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, sqlText, values...)
	if err != nil {
		return fmt.Errorf("update %s: %w", b.table, err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("%s: no row with %s = %v", b.table, b.key, rec.MustGet(b.key))
	}
	return nil
}

// Delete removes the row with the given key value.
func (s *Store) Delete(ctx context.Context, typeName string, keyValue any) error {
	b, err := s.binding(typeName)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", b.table, b.key, s.dialect.Placeholder(1))
	result, err := s.db.ExecContext(ctx, query, keyValue)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", b.table, err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("%s: no row with %s = %v", b.table, b.key, keyValue)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) binding(typeName string) (binding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bindings[typeName]
	if !ok {
		return binding{}, fmt.Errorf("record type %q not bound", typeName)
	}
	return b, nil
}
