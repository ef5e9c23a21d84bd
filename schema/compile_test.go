package schema

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/artpar/structlite/record"
)

type resolverFunc func(name string) (*record.Type, bool)

func (f resolverFunc) Resolve(name string) (*record.Type, bool) { return f(name) }

func mustParse(t *testing.T, yaml string) Decl {
	t.Helper()
	d, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return d
}

func TestCompile(t *testing.T) {
	d := mustParse(t, `
record: user
fields:
  id:    { type: int, primary: true }
  name:  { type: string, transform: trim, constraints: [{type: min_length, value: 2}] }
  email: { type: "string?" }
  role:  { type: string, default: member }
`)

	typ, err := Compile(d, nil, record.DefaultFuncs())
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	if typ.Name() != "user" {
		t.Errorf("Name() = %q, want %q", typ.Name(), "user")
	}

	want := []string{"id", "name", "email", "role"}
	for i, name := range typ.FieldNames() {
		if name != want[i] {
			t.Errorf("field %d = %q, want %q", i, name, want[i])
		}
	}

	rec, err := typ.New(map[string]any{"id": 1, "name": "  ada  ", "email": nil})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if got := rec.MustGet("name"); got != "ada" {
		t.Errorf("name = %v, want %q", got, "ada")
	}
	if got := rec.MustGet("id"); got != int64(1) {
		t.Errorf("id = %v (%T), want int64(1)", got, got)
	}
	if got := rec.MustGet("role"); got != "member" {
		t.Errorf("role = %v, want %q", got, "member")
	}

	// declared constraints run in the pipeline, after the transform
	_, err = typ.New(map[string]any{"id": 2, "name": " x ", "email": nil})
	var verr *record.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("got %v, want ValidationError", err)
	}
	if verr.Field != "name" {
		t.Errorf("Field = %q, want %q", verr.Field, "name")
	}
}

func TestCompileFrozen(t *testing.T) {
	d := mustParse(t, `
record: event
frozen: true
fields:
  kind: string
`)

	typ, err := Compile(d, nil, nil)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	if !typ.Immutable() {
		t.Error("type should be immutable")
	}

	rec, err := typ.New(map[string]any{"kind": "signup"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var ierr *record.ImmutableWriteError
	if err := rec.Set("kind", "login"); !errors.As(err, &ierr) {
		t.Errorf("Set error = %v, want ImmutableWriteError", err)
	}
}

func TestCompileSecret(t *testing.T) {
	d := mustParse(t, `
record: cred
fields:
  user: string
  pass: { type: secret, transform: trim }
`)

	typ, err := Compile(d, nil, record.DefaultFuncs())
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	rec, err := typ.New(map[string]any{"user": "u", "pass": "  hunter2  "})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	hashed := rec.MustGet("pass").(string)
	if hashed == "hunter2" || hashed == "  hunter2  " {
		t.Fatal("secret should be hashed")
	}

	// the declared trim ran before the hash
	if !record.CheckSecret(hashed, "hunter2") {
		t.Error("hash should verify against the trimmed plaintext")
	}
}

func TestCompileExpressions(t *testing.T) {
	d := mustParse(t, `
record: tag
fields:
  label: { type: string, transform: "trim(lower(value))", check: "len(value) > 0" }
`)

	typ, err := Compile(d, nil, nil)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	rec, err := typ.New(map[string]any{"label": "  URGENT "})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if got := rec.MustGet("label"); got != "urgent" {
		t.Errorf("label = %v, want %q", got, "urgent")
	}

	_, err = typ.New(map[string]any{"label": "   "})
	var verr *record.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("got %v, want ValidationError", err)
	}
	if verr.Field != "label" {
		t.Errorf("Field = %q, want %q", verr.Field, "label")
	}
}

func TestCompileNamedFunctions(t *testing.T) {
	funcs := record.NewFuncMap()
	funcs.RegisterTransformer("scream", func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return v, nil
		}
		return strings.ToUpper(s) + "!", nil
	})
	funcs.RegisterValidator("short", func(v any) (any, error) {
		if s, ok := v.(string); ok && len(s) > 8 {
			return nil, fmt.Errorf("too long")
		}
		return v, nil
	})

	d := mustParse(t, `
record: shout
fields:
  text: { type: string, transform: scream, check: short }
`)

	typ, err := Compile(d, nil, funcs)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	rec, err := typ.New(map[string]any{"text": "hey"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if got := rec.MustGet("text"); got != "HEY!" {
		t.Errorf("text = %v, want %q", got, "HEY!")
	}

	if _, err := typ.New(map[string]any{"text": "0123456789"}); err == nil {
		t.Error("check should reject the transformed value")
	}
}

func TestCompileAsyncCheck(t *testing.T) {
	funcs := record.NewFuncMap()
	funcs.RegisterAsyncValidator("available", func(ctx context.Context, v any) (any, error) {
		if v == "taken" {
			return nil, fmt.Errorf("handle is taken")
		}
		return v, nil
	})

	d := mustParse(t, `
record: account
fields:
  handle: { type: string, check: available }
`)

	typ, err := Compile(d, nil, funcs)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	if !typ.HasAsyncValidators() {
		t.Fatal("type should have async validators")
	}

	var areq *record.AsyncRequiredError
	if _, err := typ.New(map[string]any{"handle": "fresh"}); !errors.As(err, &areq) {
		t.Errorf("New error = %v, want AsyncRequiredError", err)
	}

	if _, err := typ.NewContext(context.Background(), map[string]any{"handle": "fresh"}); err != nil {
		t.Errorf("NewContext failed: %v", err)
	}

	var verr *record.ValidationError
	if _, err := typ.NewContext(context.Background(), map[string]any{"handle": "taken"}); !errors.As(err, &verr) {
		t.Errorf("NewContext error = %v, want ValidationError", err)
	}
}

func TestCompileReference(t *testing.T) {
	addrType, err := Compile(mustParse(t, `
record: address
fields:
  street: string
`), nil, nil)
	if err != nil {
		t.Fatalf("Compile address failed: %v", err)
	}

	userDecl := mustParse(t, `
record: user
fields:
  name: string
  home: address
`)

	resolver := resolverFunc(func(name string) (*record.Type, bool) {
		if name == "address" {
			return addrType, true
		}
		return nil, false
	})

	typ, err := Compile(userDecl, resolver, nil)
	if err != nil {
		t.Fatalf("Compile user failed: %v", err)
	}

	home, err := addrType.New(map[string]any{"street": "High St"})
	if err != nil {
		t.Fatal(err)
	}

	rec, err := typ.New(map[string]any{"name": "ada", "home": home})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if got := rec.MustGet("home"); got != home {
		t.Error("home should hold the nested record")
	}

	var terr *record.TypeMismatchError
	if _, err := typ.New(map[string]any{"name": "ada", "home": "elsewhere"}); !errors.As(err, &terr) {
		t.Errorf("New error = %v, want TypeMismatchError", err)
	}

	// the reference cannot compile without a resolver
	if _, err := Compile(userDecl, nil, nil); err == nil || !strings.Contains(err.Error(), "requires a resolver") {
		t.Errorf("Compile error = %v, want resolver error", err)
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		wantPart string
	}{
		{
			name: "unknown transform function",
			yaml: `
record: bad
fields:
  name: { type: string, transform: nosuch }
`,
			wantPart: `transform "nosuch"`,
		},
		{
			name: "unknown check function",
			yaml: `
record: bad
fields:
  name: { type: string, check: nosuch }
`,
			wantPart: `check "nosuch"`,
		},
		{
			name: "malformed check expression",
			yaml: `
record: bad
fields:
  name: { type: string, check: "value +" }
`,
			wantPart: `check "value +"`,
		},
		{
			name: "malformed transform expression",
			yaml: `
record: bad
fields:
  name: { type: string, transform: "lower(value" }
`,
			wantPart: `transform "lower(value"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := mustParse(t, tt.yaml)
			_, err := Compile(d, nil, record.DefaultFuncs())
			if err == nil {
				t.Fatal("Compile should fail")
			}
			if !strings.Contains(err.Error(), tt.wantPart) {
				t.Errorf("error %q missing %q", err, tt.wantPart)
			}
		})
	}
}

func TestCompileValidates(t *testing.T) {
	d := Decl{Name: "", Fields: FieldList{{Name: "x", Type: "string"}}}
	if _, err := Compile(d, nil, nil); err == nil {
		t.Error("Compile should reject an invalid declaration")
	}
}
