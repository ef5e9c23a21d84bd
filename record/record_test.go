package record

import (
	"errors"
	"strings"
	"testing"
)

func TestRecordAccess(t *testing.T) {
	typ := userType(t)
	r, err := typ.New(map[string]any{"id": 1, "name": "ada", "email": "a@b.c"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	t.Run("get known field", func(t *testing.T) {
		v, err := r.Get("name")
		if err != nil || v != "ada" {
			t.Errorf("Get(name) = %v, %v", v, err)
		}
	})

	t.Run("get unknown field", func(t *testing.T) {
		_, err := r.Get("missing")
		var ufe *UnknownFieldError
		if !errors.As(err, &ufe) {
			t.Errorf("Get(missing) error = %v, want UnknownFieldError", err)
		}
	})

	t.Run("mustget panics on unknown field", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("MustGet(missing) should panic")
			}
		}()
		r.MustGet("missing")
	})

	t.Run("values and items in declaration order", func(t *testing.T) {
		vals := r.Values()
		if len(vals) != 3 || vals[0] != int64(1) || vals[1] != "ada" {
			t.Errorf("Values() = %v", vals)
		}

		items := r.Items()
		if items[0].Name != "id" || items[1].Name != "name" || items[2].Name != "email" {
			t.Errorf("Items() order = %v", items)
		}

		// Values returns a copy
		vals[0] = int64(99)
		if r.MustGet("id") != int64(1) {
			t.Error("mutating the Values() slice should not touch the record")
		}
	})

	t.Run("len and type", func(t *testing.T) {
		if r.Len() != 3 {
			t.Errorf("Len() = %d, want 3", r.Len())
		}
		if r.Type() != typ {
			t.Error("Type() should return the defining type")
		}
	})
}

func TestRecordSet(t *testing.T) {
	t.Run("write runs the full pipeline", func(t *testing.T) {
		typ := MustNewType("Note", []Field{
			{Name: "text", Type: String},
		},
			WithTransformer("text", TrimSpace()),
			WithValidator("text", func(v any) (any, error) {
				if v == "" {
					return nil, errors.New("must not be empty")
				}
				return v, nil
			}),
		)

		r, err := typ.New(map[string]any{"text": "hello"})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}

		if err := r.Set("text", "  spaced  "); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if got := r.MustGet("text"); got != "spaced" {
			t.Errorf("text = %q, want spaced", got)
		}

		err = r.Set("text", "   ")
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("Set() error = %v, want ValidationError", err)
		}
		if got := r.MustGet("text"); got != "spaced" {
			t.Errorf("failed write must leave the value untouched, text = %q", got)
		}

		err = r.Set("text", 42)
		var tme *TypeMismatchError
		if !errors.As(err, &tme) {
			t.Errorf("Set() error = %v, want TypeMismatchError", err)
		}
	})

	t.Run("unknown field", func(t *testing.T) {
		typ := MustNewType("Tiny", []Field{{Name: "v", Type: Int}})
		r, _ := typ.New(map[string]any{"v": 1})
		err := r.Set("missing", 2)
		var ufe *UnknownFieldError
		if !errors.As(err, &ufe) {
			t.Errorf("Set(missing) error = %v, want UnknownFieldError", err)
		}
	})
}

func TestImmutability(t *testing.T) {
	typ := MustNewType("Pinned", []Field{
		{Name: "id", Type: Int},
		{Name: "name", Type: String},
	}, Immutable())

	r, err := typ.New(map[string]any{"id": 1, "name": "ada"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	t.Run("write fails and state is unchanged", func(t *testing.T) {
		err := r.Set("name", "grace")
		var iwe *ImmutableWriteError
		if !errors.As(err, &iwe) {
			t.Fatalf("Set() error = %v, want ImmutableWriteError", err)
		}
		if iwe.Field != "name" {
			t.Errorf("ImmutableWriteError.Field = %q", iwe.Field)
		}
		if r.MustGet("name") != "ada" {
			t.Error("frozen record changed after a rejected write")
		}
	})

	t.Run("unknown field wins over frozen", func(t *testing.T) {
		err := r.Set("missing", 1)
		var ufe *UnknownFieldError
		if !errors.As(err, &ufe) {
			t.Errorf("Set(missing) error = %v, want UnknownFieldError", err)
		}
	})

	t.Run("thawed instance accepts writes", func(t *testing.T) {
		m, err := typ.New(map[string]any{"id": 1, "name": "ada"}, Frozen(false))
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if err := m.Set("name", "grace"); err != nil {
			t.Errorf("Set() on thawed instance error = %v", err)
		}
	})
}

func TestRecordEqual(t *testing.T) {
	typ := MustNewType("Point", []Field{
		{Name: "x", Type: Int},
		{Name: "y", Type: Int},
	})

	t.Run("equal values", func(t *testing.T) {
		a, _ := typ.New(map[string]any{"x": 1, "y": 2})
		b, _ := typ.New(map[string]any{"x": 1, "y": 2})
		if !a.Equal(b) {
			t.Error("records with equal values should be equal")
		}
	})

	t.Run("different values", func(t *testing.T) {
		a, _ := typ.New(map[string]any{"x": 1, "y": 2})
		b, _ := typ.New(map[string]any{"x": 1, "y": 3})
		if a.Equal(b) {
			t.Error("records with different values should not be equal")
		}
	})

	t.Run("cross numeric equality", func(t *testing.T) {
		floaty := MustNewType("FPoint", []Field{
			{Name: "x", Type: Float},
			{Name: "y", Type: Float},
		})
		a, _ := typ.New(map[string]any{"x": 1, "y": 2})
		b, _ := floaty.New(map[string]any{"x": 1.0, "y": 2.0})
		if !a.Equal(b) {
			t.Error("1 and 1.0 should compare equal across records")
		}
	})

	t.Run("mismatched field names", func(t *testing.T) {
		other := MustNewType("Size", []Field{
			{Name: "w", Type: Int},
			{Name: "h", Type: Int},
		})
		a, _ := typ.New(map[string]any{"x": 1, "y": 2})
		b, _ := other.New(map[string]any{"w": 1, "h": 2})
		if a.Equal(b) {
			t.Error("records with different field names should not be equal")
		}
	})

	t.Run("nil records", func(t *testing.T) {
		a, _ := typ.New(map[string]any{"x": 1, "y": 2})
		if a.Equal(nil) {
			t.Error("a record should not equal nil")
		}
		var n *Record
		if !n.Equal(nil) {
			t.Error("nil should equal nil")
		}
	})

	t.Run("nested records compare deeply", func(t *testing.T) {
		line := MustNewType("Line", []Field{
			{Name: "from", Type: RecordOf(typ)},
			{Name: "to", Type: RecordOf(typ)},
		})
		p1, _ := typ.New(map[string]any{"x": 0, "y": 0})
		p2, _ := typ.New(map[string]any{"x": 3, "y": 4})
		p3, _ := typ.New(map[string]any{"x": 0, "y": 0})

		a, _ := line.New(map[string]any{"from": p1, "to": p2})
		b, _ := line.New(map[string]any{"from": p3, "to": p2})
		if !a.Equal(b) {
			t.Error("nested equal records should make the outer records equal")
		}
	})
}

func TestRecordCompare(t *testing.T) {
	typ := MustNewType("Version", []Field{
		{Name: "major", Type: Int},
		{Name: "minor", Type: Int},
	})

	tests := []struct {
		name string
		a, b map[string]any
		want int
	}{
		{"equal", map[string]any{"major": 1, "minor": 2}, map[string]any{"major": 1, "minor": 2}, 0},
		{"first field decides", map[string]any{"major": 1, "minor": 9}, map[string]any{"major": 2, "minor": 0}, -1},
		{"later field decides", map[string]any{"major": 1, "minor": 2}, map[string]any{"major": 1, "minor": 1}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := typ.New(tt.a)
			b, _ := typ.New(tt.b)
			got, err := a.Compare(b)
			if err != nil {
				t.Fatalf("Compare() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Compare() = %d, want %d", got, tt.want)
			}

			less, err := a.Less(b)
			if err != nil {
				t.Fatalf("Less() error = %v", err)
			}
			if less != (tt.want < 0) {
				t.Errorf("Less() = %v, want %v", less, tt.want < 0)
			}
		})
	}

	t.Run("mismatched shapes fail", func(t *testing.T) {
		other := MustNewType("Named", []Field{{Name: "name", Type: String}})
		a, _ := typ.New(map[string]any{"major": 1, "minor": 0})
		b, _ := other.New(map[string]any{"name": "x"})
		if _, err := a.Compare(b); err == nil {
			t.Error("Compare() should fail across mismatched field sets")
		}
	})

	t.Run("unorderable values fail", func(t *testing.T) {
		maps := MustNewType("Bag", []Field{{Name: "m", Type: MapOf(Int)}})
		a, _ := maps.New(map[string]any{"m": map[string]any{"k": 1}})
		b, _ := maps.New(map[string]any{"m": map[string]any{"k": 2}})
		if _, err := a.Compare(b); err == nil {
			t.Error("Compare() should fail on map-valued fields")
		}
	})
}

func TestRecordHash(t *testing.T) {
	typ := MustNewType("Key", []Field{
		{Name: "ns", Type: String},
		{Name: "id", Type: Int},
	}, Immutable())

	t.Run("equal records hash equal", func(t *testing.T) {
		a, _ := typ.New(map[string]any{"ns": "users", "id": 7})
		b, _ := typ.New(map[string]any{"ns": "users", "id": 7})
		ha, err := a.Hash()
		if err != nil {
			t.Fatalf("Hash() error = %v", err)
		}
		hb, _ := b.Hash()
		if ha != hb {
			t.Errorf("equal records hash differently: %d vs %d", ha, hb)
		}
	})

	t.Run("different records hash differently", func(t *testing.T) {
		a, _ := typ.New(map[string]any{"ns": "users", "id": 7})
		b, _ := typ.New(map[string]any{"ns": "users", "id": 8})
		ha, _ := a.Hash()
		hb, _ := b.Hash()
		if ha == hb {
			t.Error("distinct records should hash differently")
		}
	})

	t.Run("whole float hashes like the equal int", func(t *testing.T) {
		ints := MustNewType("I", []Field{{Name: "v", Type: Int}}, Immutable())
		floats := MustNewType("V", []Field{{Name: "v", Type: Float}}, Immutable())
		a, _ := ints.New(map[string]any{"v": 3})
		b, _ := floats.New(map[string]any{"v": 3.0})
		if !a.Equal(b) {
			t.Fatal("3 and 3.0 should be equal")
		}
		ha, _ := a.Hash()
		hb, _ := b.Hash()
		if ha != hb {
			t.Error("equal records must hash equal across int and whole float")
		}
	})

	t.Run("mutable records are unhashable", func(t *testing.T) {
		mut := MustNewType("Mut", []Field{{Name: "v", Type: Int}})
		r, _ := mut.New(map[string]any{"v": 1})
		if _, err := r.Hash(); err == nil {
			t.Error("Hash() should fail on a mutable record")
		}
	})

	t.Run("container fields are unhashable", func(t *testing.T) {
		bag := MustNewType("Frozen_bag", []Field{{Name: "items", Type: ListOf(Int)}}, Immutable())
		r, _ := bag.New(map[string]any{"items": []any{1, 2}})
		if _, err := r.Hash(); err == nil {
			t.Error("Hash() should fail on list-valued fields")
		}
	})
}

func TestRecordClone(t *testing.T) {
	typ := MustNewType("Doc", []Field{
		{Name: "title", Type: String},
		{Name: "tags", Type: ListOf(String)},
	})

	r, err := typ.New(map[string]any{"title": "a", "tags": []any{"x", "y"}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	c := r.Clone()
	if !r.Equal(c) {
		t.Fatal("clone should equal the original")
	}

	// Deep copy: mutating the clone's container leaves the original alone.
	c.MustGet("tags").([]any)[0] = "z"
	if r.MustGet("tags").([]any)[0] != "x" {
		t.Error("clone shares container state with the original")
	}
}

func TestRecordCopy(t *testing.T) {
	typ := MustNewType("Cfg", []Field{
		{Name: "host", Type: String},
		{Name: "port", Type: Int},
	}, Immutable())

	r, err := typ.New(map[string]any{"host": "localhost", "port": 8080})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	t.Run("overrides apply", func(t *testing.T) {
		c, err := r.Copy(map[string]any{"port": 9090})
		if err != nil {
			t.Fatalf("Copy() error = %v", err)
		}
		if c.MustGet("port") != int64(9090) || c.MustGet("host") != "localhost" {
			t.Errorf("Copy() = %v", c)
		}
		if r.MustGet("port") != int64(8080) {
			t.Error("Copy() must not modify the source")
		}
	})

	t.Run("overrides are validated", func(t *testing.T) {
		if _, err := r.Copy(map[string]any{"port": "nope"}); err == nil {
			t.Error("Copy() should re-run the pipeline on overrides")
		}
	})

	t.Run("unknown override", func(t *testing.T) {
		if _, err := r.Copy(map[string]any{"missing": 1}); err == nil {
			t.Error("Copy() should reject unknown field names")
		}
	})
}

func TestRecordString(t *testing.T) {
	typ := MustNewType("User", []Field{
		{Name: "id", Type: Int},
		{Name: "name", Type: String},
	})
	r, _ := typ.New(map[string]any{"id": 1, "name": "ada"})

	got := r.String()
	if !strings.HasPrefix(got, "User(") {
		t.Errorf("String() = %q, want User(...) form", got)
	}
	if !strings.Contains(got, `id=1`) || !strings.Contains(got, `name="ada"`) {
		t.Errorf("String() = %q", got)
	}
}
