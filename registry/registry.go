// Package registry manages named record types: registration with conflict
// detection, lookup for reference resolution, and batch loading of
// declaration directories with dependency ordering and hot reload.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/artpar/structlite/record"
	"github.com/artpar/structlite/schema"
)

// Registry holds compiled record types by name. It implements
// record.Resolver, so a registry can serve as the resolver for types whose
// fields reference other registered types.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*record.Type
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		types: make(map[string]*record.Type),
	}
}

// Register adds a compiled type. Returns a ConflictError if the name is
// already taken.
func (r *Registry) Register(t *record.Type) error {
	if t == nil {
		return fmt.Errorf("cannot register a nil type")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[t.Name()]; exists {
		return &ConflictError{Name: t.Name()}
	}

	r.types[t.Name()] = t
	return nil
}

// Unregister removes a type from the registry.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[name]; !exists {
		return fmt.Errorf("record type %q not registered", name)
	}

	delete(r.types, name)
	return nil
}

// Get returns a registered type by name.
func (r *Registry) Get(name string) (*record.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.types[name]
	return t, ok
}

// Resolve implements record.Resolver.
func (r *Registry) Resolve(name string) (*record.Type, bool) {
	return r.Get(name)
}

// List returns all registered types sorted by name.
func (r *Registry) List() []*record.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]*record.Type, 0, len(r.types))
	for _, t := range r.types {
		types = append(types, t)
	}

	sort.Slice(types, func(i, j int) bool {
		return types[i].Name() < types[j].Name()
	})

	return types
}

// All returns all registered types as a map keyed by name.
func (r *Registry) All() map[string]*record.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*record.Type, len(r.types))
	for name, t := range r.types {
		result[name] = t
	}
	return result
}

// LoadDir parses every declaration under dir, compiles the batch in
// dependency order and registers the results in one step. References
// resolve against the batch first, then against already-registered types.
// Any parse, cycle or compile error leaves the registry untouched. Types
// registered by an earlier load stay registered when their file
// disappears; Unregister removes them explicitly.
func (r *Registry) LoadDir(dir string, funcs *record.FuncMap) error {
	decls, err := schema.ParseDir(dir)
	if err != nil {
		return err
	}

	byName := make(map[string]schema.Decl, len(decls))
	for _, d := range decls {
		if _, dup := byName[d.Name]; dup {
			return fmt.Errorf("record type %q declared twice in %s", d.Name, dir)
		}
		byName[d.Name] = d
	}

	order, err := compileOrder(byName)
	if err != nil {
		return err
	}

	compiled := make(map[string]*record.Type, len(byName))
	resolver := record.Resolver(resolverFunc(func(name string) (*record.Type, bool) {
		if t, ok := compiled[name]; ok {
			return t, true
		}
		return r.Get(name)
	}))

	for _, name := range order {
		t, err := schema.Compile(byName[name], resolver, funcs)
		if err != nil {
			return err
		}
		compiled[name] = t
	}

	r.mu.Lock()
	for name, t := range compiled {
		r.types[name] = t
	}
	r.mu.Unlock()

	return nil
}

type resolverFunc func(name string) (*record.Type, bool)

func (f resolverFunc) Resolve(name string) (*record.Type, bool) { return f(name) }

// compileOrder sorts declaration names so that every referenced type
// compiles before its referrers. References leaving the batch are assumed
// to resolve against the registry. Cycles, including self-references, are
// errors: a compiled type bakes in resolved reference pointers, so a
// cyclic shape can never finish compiling.
func compileOrder(decls map[string]schema.Decl) ([]string, error) {
	const (
		unvisited = iota
		visiting
		done
	)

	state := make(map[string]int, len(decls))
	order := make([]string, 0, len(decls))

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("reference cycle: %s", strings.Join(append(path, name), " -> "))
		}

		state[name] = visiting
		for _, ref := range decls[name].References() {
			if _, inBatch := decls[ref]; !inBatch {
				continue
			}
			if err := visit(ref, append(path, name)); err != nil {
				return err
			}
		}
		state[name] = done
		order = append(order, name)
		return nil
	}

	names := make([]string, 0, len(decls))
	for name := range decls {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := visit(name, nil); err != nil {
			return nil, err
		}
	}

	return order, nil
}

// ConflictError reports a registration that clashes with an existing type.
type ConflictError struct {
	Name string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("record type %q already registered", e.Name)
}
