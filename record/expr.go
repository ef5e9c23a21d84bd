package record

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/google/uuid"
)

// exprEngine compiles and caches value expressions. The value under
// transformation or validation is bound to "value".
type exprEngine struct {
	// Compiled program cache
	cache   map[string]*vm.Program
	cacheMu sync.RWMutex

	// Expr environment options with custom functions
	envOptions []expr.Option
}

var stdExpr = newExprEngine()

func newExprEngine() *exprEngine {
	e := &exprEngine{
		cache: make(map[string]*vm.Program),
	}

	// Register custom functions available in all expressions
	e.envOptions = []expr.Option{
		// String functions
		expr.Function("lower", func(params ...any) (any, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("lower requires 1 argument")
			}
			return strings.ToLower(toString(params[0])), nil
		}),
		expr.Function("upper", func(params ...any) (any, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("upper requires 1 argument")
			}
			return strings.ToUpper(toString(params[0])), nil
		}),
		expr.Function("trim", func(params ...any) (any, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("trim requires 1 argument")
			}
			return strings.TrimSpace(toString(params[0])), nil
		}),
		expr.Function("trimPrefix", func(params ...any) (any, error) {
			if len(params) != 2 {
				return nil, fmt.Errorf("trimPrefix requires 2 arguments")
			}
			return strings.TrimPrefix(toString(params[0]), toString(params[1])), nil
		}),
		expr.Function("trimSuffix", func(params ...any) (any, error) {
			if len(params) != 2 {
				return nil, fmt.Errorf("trimSuffix requires 2 arguments")
			}
			return strings.TrimSuffix(toString(params[0]), toString(params[1])), nil
		}),
		expr.Function("replace", func(params ...any) (any, error) {
			if len(params) != 3 {
				return nil, fmt.Errorf("replace requires 3 arguments (str, old, new)")
			}
			return strings.ReplaceAll(toString(params[0]), toString(params[1]), toString(params[2])), nil
		}),
		expr.Function("title", func(params ...any) (any, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("title requires 1 argument")
			}
			return titleCase(toString(params[0])), nil
		}),
		expr.Function("split", func(params ...any) (any, error) {
			if len(params) != 2 {
				return nil, fmt.Errorf("split requires 2 arguments")
			}
			return strings.Split(toString(params[0]), toString(params[1])), nil
		}),
		expr.Function("join", func(params ...any) (any, error) {
			if len(params) != 2 {
				return nil, fmt.Errorf("join requires 2 arguments")
			}
			arr, ok := params[0].([]string)
			if !ok {
				// Try to convert []any to []string
				anyArr, ok := params[0].([]any)
				if !ok {
					return nil, fmt.Errorf("join first argument must be array")
				}
				arr = make([]string, len(anyArr))
				for i, v := range anyArr {
					arr[i] = toString(v)
				}
			}
			return strings.Join(arr, toString(params[1])), nil
		}),

		// Encoding functions
		expr.Function("base64Encode", func(params ...any) (any, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("base64Encode requires 1 argument")
			}
			return base64.StdEncoding.EncodeToString([]byte(toString(params[0]))), nil
		}),
		expr.Function("base64Decode", func(params ...any) (any, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("base64Decode requires 1 argument")
			}
			decoded, err := base64.StdEncoding.DecodeString(toString(params[0]))
			if err != nil {
				return nil, err
			}
			return string(decoded), nil
		}),
		expr.Function("sha256", func(params ...any) (any, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("sha256 requires 1 argument")
			}
			h := sha256.Sum256([]byte(toString(params[0])))
			return hex.EncodeToString(h[:]), nil
		}),

		// Utilities
		expr.Function("now", func(params ...any) (any, error) {
			return time.Now().Unix(), nil
		}),
		expr.Function("nowRFC3339", func(params ...any) (any, error) {
			return time.Now().Format(time.RFC3339), nil
		}),
		expr.Function("uuid", func(params ...any) (any, error) {
			return uuid.NewString(), nil
		}),
		expr.Function("coalesce", func(params ...any) (any, error) {
			for _, p := range params {
				if p != nil && p != "" {
					return p, nil
				}
			}
			return nil, nil
		}),
		expr.Function("default", func(params ...any) (any, error) {
			if len(params) != 2 {
				return nil, fmt.Errorf("default requires 2 arguments (value, defaultValue)")
			}
			if params[0] == nil || params[0] == "" {
				return params[1], nil
			}
			return params[0], nil
		}),

		// Type conversion
		expr.Function("toString", func(params ...any) (any, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("toString requires 1 argument")
			}
			return toString(params[0]), nil
		}),
		expr.Function("toInt", func(params ...any) (any, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("toInt requires 1 argument")
			}
			return coerceInt(params[0]), nil
		}),
		expr.Function("toFloat", func(params ...any) (any, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("toFloat requires 1 argument")
			}
			return coerceFloat(params[0]), nil
		}),
	}

	return e
}

// getOrCompile returns a cached compiled program or compiles a new one.
func (e *exprEngine) getOrCompile(expression string) (*vm.Program, error) {
	// Check cache first
	e.cacheMu.RLock()
	program, ok := e.cache[expression]
	e.cacheMu.RUnlock()

	if ok {
		return program, nil
	}

	// Compile against the single-variable environment
	opts := append([]expr.Option{expr.Env(map[string]any{"value": any(nil)})}, e.envOptions...)
	program, err := expr.Compile(expression, opts...)
	if err != nil {
		return nil, err
	}

	// Cache the compiled program
	e.cacheMu.Lock()
	e.cache[expression] = program
	e.cacheMu.Unlock()

	return program, nil
}

func (e *exprEngine) run(program *vm.Program, v any) (any, error) {
	return expr.Run(program, map[string]any{"value": v})
}

// ExprTransformer compiles an expression into a Transformer. The current
// value is bound to "value" and the expression result becomes the new
// value, so "trim(value)" normalizes whitespace and "value * 2" doubles.
// Compilation happens once, at definition time.
func ExprTransformer(code string) (Transformer, error) {
	program, err := stdExpr.getOrCompile(code)
	if err != nil {
		return nil, fmt.Errorf("compile expression %q: %w", code, err)
	}
	return func(v any) (any, error) {
		out, err := stdExpr.run(program, v)
		if err != nil {
			return nil, fmt.Errorf("expression %q: %w", code, err)
		}
		return out, nil
	}, nil
}

// ExprValidator compiles a boolean expression into a Validator: a true
// result accepts the value unchanged, false rejects it.
func ExprValidator(code string) (Validator, error) {
	program, err := stdExpr.getOrCompile(code)
	if err != nil {
		return nil, fmt.Errorf("compile check %q: %w", code, err)
	}
	return func(v any) (any, error) {
		out, err := stdExpr.run(program, v)
		if err != nil {
			return nil, fmt.Errorf("check %q: %w", code, err)
		}
		ok, isBool := out.(bool)
		if !isBool {
			return nil, fmt.Errorf("check %q: result is %T, want bool", code, out)
		}
		if !ok {
			return nil, fmt.Errorf("check %q failed", code)
		}
		return v, nil
	}, nil
}

// Helper functions

func toString(v any) string {
	if v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

func coerceInt(v any) int64 {
	if v == nil {
		return 0
	}
	switch val := v.(type) {
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case int64:
		return val
	case float32:
		return int64(val)
	case float64:
		return int64(val)
	case string:
		f, err := toFloat64(val)
		if err != nil {
			return 0
		}
		return int64(f)
	case bool:
		return int64(boolInt(val))
	}
	return 0
}

func coerceFloat(v any) float64 {
	if v == nil {
		return 0
	}
	f, err := toFloat64(v)
	if err != nil {
		return 0
	}
	return f
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
