package record

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Constraint defines a declarative validation rule for a field. Constraints
// compile into validators at type-definition time and run after the type
// check, in declaration order.
type Constraint struct {
	// Type is the constraint type (min, max, min_length, max_length,
	// pattern, not_empty, one_of).
	Type ConstraintType `yaml:"type" json:"type"`

	// Value is the constraint parameter (number, regex pattern, list).
	Value any `yaml:"value" json:"value"`

	// Message is the custom error message (optional).
	Message string `yaml:"message,omitempty" json:"message,omitempty"`
}

// ConstraintType identifies the type of constraint.
type ConstraintType string

const (
	// Numeric constraints
	ConstraintMin ConstraintType = "min" // Minimum numeric value
	ConstraintMax ConstraintType = "max" // Maximum numeric value

	// Length constraints, over strings, bytes, lists and maps
	ConstraintMinLength ConstraintType = "min_length"
	ConstraintMaxLength ConstraintType = "max_length"

	// String constraints
	ConstraintPattern  ConstraintType = "pattern"   // Regex pattern match
	ConstraintNotEmpty ConstraintType = "not_empty" // Must not be empty/whitespace

	// Membership
	ConstraintOneOf ConstraintType = "one_of" // Value must be one of list
)

// ConstraintError represents a single constraint failure. The pipeline
// wraps it into a ValidationError carrying the field name.
type ConstraintError struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
	Value      any    `json:"value,omitempty"`
	Message    string `json:"message"`
}

func (e ConstraintError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// constraintValidator compiles one constraint into a pipeline validator.
func constraintValidator(field string, c Constraint) Validator {
	return func(v any) (any, error) {
		if cerr := ValidateConstraint(field, v, c); cerr != nil {
			return nil, cerr
		}
		return v, nil
	}
}

// ValidateConstraint validates a value against a single constraint.
// This is a PURE function.
func ValidateConstraint(fieldName string, value any, c Constraint) *ConstraintError {
	switch c.Type {
	case ConstraintMin:
		return validateMin(fieldName, value, c)
	case ConstraintMax:
		return validateMax(fieldName, value, c)
	case ConstraintMinLength:
		return validateMinLength(fieldName, value, c)
	case ConstraintMaxLength:
		return validateMaxLength(fieldName, value, c)
	case ConstraintPattern:
		return validatePattern(fieldName, value, c)
	case ConstraintNotEmpty:
		return validateNotEmpty(fieldName, value, c)
	case ConstraintOneOf:
		return validateOneOf(fieldName, value, c)
	default:
		return nil
	}
}

func validateMin(field string, value any, c Constraint) *ConstraintError {
	min, err := toFloat64(c.Value)
	if err != nil {
		return nil // Invalid constraint config, skip
	}

	val, err := toFloat64(value)
	if err != nil {
		return nil // Can't validate non-numeric, skip
	}

	if val < min {
		msg := c.Message
		if msg == "" {
			msg = fmt.Sprintf("must be at least %v", min)
		}
		return &ConstraintError{Field: field, Constraint: "min", Value: value, Message: msg}
	}
	return nil
}

func validateMax(field string, value any, c Constraint) *ConstraintError {
	max, err := toFloat64(c.Value)
	if err != nil {
		return nil
	}

	val, err := toFloat64(value)
	if err != nil {
		return nil
	}

	if val > max {
		msg := c.Message
		if msg == "" {
			msg = fmt.Sprintf("must be at most %v", max)
		}
		return &ConstraintError{Field: field, Constraint: "max", Value: value, Message: msg}
	}
	return nil
}

func validateMinLength(field string, value any, c Constraint) *ConstraintError {
	minLen, err := toInt(c.Value)
	if err != nil {
		return nil
	}

	n, ok := lengthOf(value)
	if !ok {
		return nil
	}

	if n < minLen {
		msg := c.Message
		if msg == "" {
			msg = fmt.Sprintf("must have at least %d elements", minLen)
			if _, isStr := value.(string); isStr {
				msg = fmt.Sprintf("must be at least %d characters", minLen)
			}
		}
		return &ConstraintError{Field: field, Constraint: "min_length", Value: n, Message: msg}
	}
	return nil
}

func validateMaxLength(field string, value any, c Constraint) *ConstraintError {
	maxLen, err := toInt(c.Value)
	if err != nil {
		return nil
	}

	n, ok := lengthOf(value)
	if !ok {
		return nil
	}

	if n > maxLen {
		msg := c.Message
		if msg == "" {
			msg = fmt.Sprintf("must have at most %d elements", maxLen)
			if _, isStr := value.(string); isStr {
				msg = fmt.Sprintf("must be at most %d characters", maxLen)
			}
		}
		return &ConstraintError{Field: field, Constraint: "max_length", Value: n, Message: msg}
	}
	return nil
}

func validatePattern(field string, value any, c Constraint) *ConstraintError {
	pattern, ok := c.Value.(string)
	if !ok {
		return nil
	}

	str, ok := value.(string)
	if !ok {
		return nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil // Invalid regex, skip
	}

	if !re.MatchString(str) {
		msg := c.Message
		if msg == "" {
			msg = "does not match required pattern"
		}
		return &ConstraintError{Field: field, Constraint: "pattern", Value: value, Message: msg}
	}
	return nil
}

func validateNotEmpty(field string, value any, c Constraint) *ConstraintError {
	str, ok := value.(string)
	if !ok {
		return nil
	}

	if strings.TrimSpace(str) == "" {
		msg := c.Message
		if msg == "" {
			msg = "must not be empty"
		}
		return &ConstraintError{Field: field, Constraint: "not_empty", Value: value, Message: msg}
	}
	return nil
}

func validateOneOf(field string, value any, c Constraint) *ConstraintError {
	allowedVals, ok := c.Value.([]any)
	if !ok {
		// Try string slice
		if strVals, ok := c.Value.([]string); ok {
			allowedVals = make([]any, len(strVals))
			for i, v := range strVals {
				allowedVals[i] = v
			}
		} else {
			return nil
		}
	}

	strVal := fmt.Sprintf("%v", value)
	for _, allowed := range allowedVals {
		if fmt.Sprintf("%v", allowed) == strVal {
			return nil
		}
	}

	msg := c.Message
	if msg == "" {
		var options []string
		for _, v := range allowedVals {
			options = append(options, fmt.Sprintf("%v", v))
		}
		msg = fmt.Sprintf("must be one of: %s", strings.Join(options, ", "))
	}
	return &ConstraintError{Field: field, Constraint: "one_of", Value: value, Message: msg}
}

// lengthOf returns the element count of strings, bytes, lists and maps.
func lengthOf(v any) (int, bool) {
	switch lv := v.(type) {
	case string:
		return len(lv), true
	case []byte:
		return len(lv), true
	case []any:
		return len(lv), true
	case map[string]any:
		return len(lv), true
	}
	return 0, false
}

// toFloat64 converts various numeric types to float64.
func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(n, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", v)
	}
}

// toInt converts various types to int.
func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case int32:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	default:
		return 0, fmt.Errorf("cannot convert %T to int", v)
	}
}
