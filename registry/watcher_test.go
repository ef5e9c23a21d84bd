package registry_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/structlite/record"
	"github.com/artpar/structlite/registry"
)

const userDecl = `
record: user
fields:
  id:   int
  name: { type: string, transform: trim }
`

const userDeclV2 = `
record: user
fields:
  id:    int
  name:  { type: string, transform: trim }
  email: "string?"
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write declaration: %v", err)
	}
	return path
}

func newWatcher(t *testing.T, dir string) *registry.Watcher {
	t.Helper()
	w, err := registry.NewWatcher(registry.New(), dir, record.DefaultFuncs(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewWatcher error: %v", err)
	}
	return w
}

func TestWatcher_InitialLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "user.yaml", userDecl)

	w := newWatcher(t, dir)
	defer w.Stop()

	typ, ok := w.Registry().Get("user")
	if !ok {
		t.Fatal("user should be registered after the initial load")
	}

	rec, err := typ.New(map[string]any{"id": 1, "name": "  ada "})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if got := rec.MustGet("name"); got != "ada" {
		t.Errorf("name = %v, want %q", got, "ada")
	}
}

func TestWatcher_InitialLoadFailure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.yaml", "record: bad\nfields: {}\n")

	if _, err := registry.NewWatcher(registry.New(), dir, nil, zerolog.Nop()); err == nil {
		t.Error("NewWatcher should fail on an invalid declaration")
	}
}

func TestWatcher_Reload(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "user.yaml", userDecl)

	w := newWatcher(t, dir)
	defer w.Stop()

	if err := os.WriteFile(path, []byte(userDeclV2), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := w.Reload(); err != nil {
		t.Fatalf("Reload error: %v", err)
	}

	typ, _ := w.Registry().Get("user")
	if typ.NumFields() != 3 {
		t.Errorf("NumFields() = %d, want 3 after reload", typ.NumFields())
	}
}

func TestWatcher_ReloadInvalid(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "user.yaml", userDecl)

	w := newWatcher(t, dir)
	defer w.Stop()

	if err := os.WriteFile(path, []byte("record: user\nfields: {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := w.Reload(); err == nil {
		t.Error("Reload should fail for an invalid declaration")
	}

	// the previous types stay registered
	typ, ok := w.Registry().Get("user")
	if !ok {
		t.Fatal("user should still be registered")
	}
	if typ.NumFields() != 2 {
		t.Errorf("NumFields() = %d, want the old shape", typ.NumFields())
	}
}

func TestWatcher_OnChange(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "user.yaml", userDecl)

	w := newWatcher(t, dir)
	defer w.Stop()

	var mu sync.Mutex
	var called bool
	var got *registry.Registry

	w.OnChange(func(r *registry.Registry) {
		mu.Lock()
		called = true
		got = r
		mu.Unlock()
	})

	if err := w.Reload(); err != nil {
		t.Fatalf("Reload error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if !called {
		t.Error("OnChange callback was not called")
	}
	if got != w.Registry() {
		t.Error("callback should receive the watcher's registry")
	}
}

func TestWatcher_Watch(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "user.yaml", userDecl)

	w := newWatcher(t, dir)
	defer w.Stop()

	if err := w.Watch(); err != nil {
		t.Fatalf("Watch error: %v", err)
	}

	if err := os.WriteFile(path, []byte(userDeclV2), 0o644); err != nil {
		t.Fatal(err)
	}

	// Wait for the file watcher to trigger.
	deadline := time.Now().Add(2 * time.Second)
	for {
		typ, _ := w.Registry().Get("user")
		if typ != nil && typ.NumFields() == 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("file watcher did not trigger reload")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestWatcher_WatchNewFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "user.yaml", userDecl)

	w := newWatcher(t, dir)
	defer w.Stop()

	if err := w.Watch(); err != nil {
		t.Fatalf("Watch error: %v", err)
	}

	writeFile(t, dir, "plan.yaml", "record: plan\nfields:\n  name: string\n")

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := w.Registry().Get("plan"); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("file watcher did not pick up the new declaration")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestWatcher_ConcurrentAccess(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "user.yaml", userDecl)

	w := newWatcher(t, dir)
	defer w.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if _, ok := w.Registry().Get("user"); !ok {
					t.Error("concurrent Get lost the registered type")
					return
				}
			}
		}()
	}

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = w.Reload()
		}()
	}

	wg.Wait()
}
