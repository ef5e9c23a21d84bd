package schema

import (
	"errors"
	"fmt"

	"github.com/artpar/structlite/record"
)

// Compile builds a record type from a declaration. The resolver supplies
// referenced record types and may be nil for self-contained declarations.
// The function map supplies named transform and check entries and may be
// nil, in which case every entry must be an expression.
//
// A bare identifier entry must name a registered function. Anything else
// compiles as an expression over "value": transform entries produce the
// new value, check entries must produce a bool.
func Compile(d Decl, resolver record.Resolver, funcs *record.FuncMap) (*record.Type, error) {
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("validate record %q: %w", d.Name, err)
	}

	fields := make([]record.Field, 0, len(d.Fields))
	var opts []record.TypeOption

	if d.Frozen {
		opts = append(opts, record.Immutable())
	}
	if resolver != nil {
		opts = append(opts, record.WithResolver(resolver))
	}

	for _, fd := range d.Fields {
		typeExpr := fd.Type
		secret := typeExpr == TypeSecret
		if secret {
			typeExpr = "string"
		}

		ft, err := record.ParseFieldType(typeExpr)
		if err != nil {
			return nil, fmt.Errorf("%s: field %q: %w", d.Name, fd.Name, err)
		}

		f := record.Field{
			Name:    fd.Name,
			Type:    ft,
			Default: fd.Default,
			Primary: fd.Primary,
			Unique:  fd.Unique,
			Index:   fd.Index,
		}
		if len(fd.Metadata) > 0 {
			f.Metadata = append([]any(nil), fd.Metadata...)
		}
		if len(fd.Constraints) > 0 {
			f.Constraints = append([]record.Constraint(nil), fd.Constraints...)
		}
		fields = append(fields, f)

		for _, entry := range fd.Transform {
			fn, err := lookupTransform(entry, funcs)
			if err != nil {
				return nil, fmt.Errorf("%s: field %q: transform %q: %w", d.Name, fd.Name, entry, err)
			}
			opts = append(opts, record.WithTransformer(fd.Name, fn))
		}

		// The secret hash runs after the declared transforms, so
		// normalizers still see the plaintext.
		if secret {
			opts = append(opts, record.WithTransformer(fd.Name, record.HashSecret(0)))
		}

		for _, entry := range fd.Check {
			sync, async, err := lookupCheck(entry, funcs)
			if err != nil {
				return nil, fmt.Errorf("%s: field %q: check %q: %w", d.Name, fd.Name, entry, err)
			}
			if async != nil {
				opts = append(opts, record.WithAsyncValidator(fd.Name, async))
			} else {
				opts = append(opts, record.WithValidator(fd.Name, sync))
			}
		}
	}

	t, err := record.NewType(d.Name, fields, opts...)
	if err != nil {
		return nil, fmt.Errorf("compile record %q: %w", d.Name, err)
	}

	return t, nil
}

// errUnknownFunction reports a bare name that matches no registered
// function. Expressions never produce it.
var errUnknownFunction = errors.New("no such function")

func lookupTransform(entry string, funcs *record.FuncMap) (record.Transformer, error) {
	if isValidIdentifier(entry) {
		if funcs != nil {
			if fn, ok := funcs.Transformer(entry); ok {
				return fn, nil
			}
		}
		return nil, errUnknownFunction
	}
	return record.ExprTransformer(entry)
}

func lookupCheck(entry string, funcs *record.FuncMap) (record.Validator, record.AsyncValidator, error) {
	if isValidIdentifier(entry) {
		if funcs != nil {
			if fn, ok := funcs.Validator(entry); ok {
				return fn, nil, nil
			}
			if fn, ok := funcs.AsyncValidator(entry); ok {
				return nil, fn, nil
			}
		}
		return nil, nil, errUnknownFunction
	}

	fn, err := record.ExprValidator(entry)
	return fn, nil, err
}
