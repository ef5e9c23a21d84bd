package record

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Stock transformers. Each passes non-string values through untouched;
// transformers run before the type check, which reports anything that
// is still the wrong shape afterwards.

// TrimSpace returns a Transformer that strips leading and trailing
// whitespace from string values.
func TrimSpace() Transformer {
	return func(v any) (any, error) {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s), nil
		}
		return v, nil
	}
}

// Lower returns a Transformer that lowercases string values.
func Lower() Transformer {
	return func(v any) (any, error) {
		if s, ok := v.(string); ok {
			return strings.ToLower(s), nil
		}
		return v, nil
	}
}

// Upper returns a Transformer that uppercases string values.
func Upper() Transformer {
	return func(v any) (any, error) {
		if s, ok := v.(string); ok {
			return strings.ToUpper(s), nil
		}
		return v, nil
	}
}

// Title returns a Transformer that capitalizes each word of string values.
func Title() Transformer {
	return func(v any) (any, error) {
		if s, ok := v.(string); ok {
			return titleCase(s), nil
		}
		return v, nil
	}
}

// ParseTime returns a Transformer that parses string values into
// time.Time, trying each layout in order. With no layouts it accepts
// RFC 3339 timestamps plus common date forms. Values that are not
// strings pass through for the type check to judge.
func ParseTime(layouts ...string) Transformer {
	if len(layouts) == 0 {
		layouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}
	}
	return func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return v, nil
		}
		for _, layout := range layouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("cannot parse %q as time", s)
	}
}

// HashSecret returns a Transformer that bcrypt-hashes string values.
// Values that already carry a bcrypt prefix pass through untouched, so
// rebuilding a record from stored data does not double-hash. Costs
// outside the bcrypt range fall back to the default cost.
func HashSecret(cost int) Transformer {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return v, nil
		}
		if isBcryptHash(s) {
			return s, nil
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(s), cost)
		if err != nil {
			return nil, fmt.Errorf("hash secret: %w", err)
		}
		return string(hash), nil
	}
}

// CheckSecret reports whether plain matches a hash produced by HashSecret.
func CheckSecret(hashed, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// Default value helpers, usable as Field.DefaultFunc.

// RandomUUID produces a new random UUID string.
func RandomUUID() any { return uuid.NewString() }

// NowUTC produces the current time in UTC.
func NowUTC() any { return time.Now().UTC() }

// FuncMap manages named transformers and validators for declaration
// files. Declarations reference functions by name and the compiler
// resolves them here.
type FuncMap struct {
	mu         sync.RWMutex
	transforms map[string]Transformer
	validators map[string]Validator
	asyncs     map[string]AsyncValidator
}

// NewFuncMap creates an empty function map.
func NewFuncMap() *FuncMap {
	return &FuncMap{
		transforms: make(map[string]Transformer),
		validators: make(map[string]Validator),
		asyncs:     make(map[string]AsyncValidator),
	}
}

// DefaultFuncs returns a function map preloaded with the stock
// transformers under their conventional names.
func DefaultFuncs() *FuncMap {
	m := NewFuncMap()
	m.RegisterTransformer("trim", TrimSpace())
	m.RegisterTransformer("lower", Lower())
	m.RegisterTransformer("upper", Upper())
	m.RegisterTransformer("title", Title())
	m.RegisterTransformer("parse_time", ParseTime())
	m.RegisterTransformer("hash_secret", HashSecret(bcrypt.DefaultCost))
	return m
}

// RegisterTransformer adds a named transformer.
func (m *FuncMap) RegisterTransformer(name string, fn Transformer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transforms[name] = fn
}

// RegisterValidator adds a named validator.
func (m *FuncMap) RegisterValidator(name string, fn Validator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validators[name] = fn
}

// RegisterAsyncValidator adds a named context-aware validator.
func (m *FuncMap) RegisterAsyncValidator(name string, fn AsyncValidator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.asyncs[name] = fn
}

// Transformer looks up a named transformer.
func (m *FuncMap) Transformer(name string) (Transformer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn, ok := m.transforms[name]
	return fn, ok
}

// Validator looks up a named validator.
func (m *FuncMap) Validator(name string) (Validator, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn, ok := m.validators[name]
	return fn, ok
}

// AsyncValidator looks up a named context-aware validator.
func (m *FuncMap) AsyncValidator(name string) (AsyncValidator, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn, ok := m.asyncs[name]
	return fn, ok
}

// Names returns all registered function names, sorted.
func (m *FuncMap) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.transforms)+len(m.validators)+len(m.asyncs))
	for name := range m.transforms {
		names = append(names, name)
	}
	for name := range m.validators {
		names = append(names, name)
	}
	for name := range m.asyncs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
