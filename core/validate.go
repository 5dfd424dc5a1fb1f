// Package core provides the fundamental building blocks of the argil data layer.
// This file implements the schema validation pass: required-ness, type checks,
// bounds, patterns, enum membership, and custom predicates, fail-fast in field
// declaration order.
package core

import (
	"fmt"
	"reflect"
	"time"

	"github.com/shopspring/decimal"
)

// ProcessFields materializes defaults, applies set transforms, and coerces a
// raw record to the declared field types, in declaration order.
//
// Fields not declared in the schema pass through untouched: schemas are
// additive, not restrictive. The returned record is a fresh copy; the input
// is never mutated.
func (s *Schema) ProcessFields(raw Record) (Record, error) {
	out := raw.Clone()

	for _, field := range s.Fields {
		value, present := out[field.Name]

		if (!present || value == nil) && (field.DefaultFunc != nil || field.DefaultValue != nil) {
			if field.DefaultFunc != nil {
				value = field.DefaultFunc()
			} else {
				value = field.DefaultValue
			}
			present = true
		}
		if !present {
			continue
		}

		if field.SetTransform != nil {
			value = field.SetTransform(value)
		}

		coerced, err := coerceValue(field, value)
		if err != nil {
			return nil, newFieldError(field, err.Error())
		}
		out[field.Name] = coerced
	}

	return out, nil
}

// Validate checks a coerced record against every declared rule and returns the
// first violation as a *FieldError. A record that passed ProcessFields and
// Validate is safe to hand to the driver without further inspection.
func (s *Schema) Validate(record Record) error {
	for _, field := range s.Fields {
		if err := validateField(field, record); err != nil {
			return err
		}
	}
	return nil
}

func validateField(field *Field, record Record) error {
	value, present := record[field.Name]

	missing := !present || value == nil
	if !missing {
		if s, ok := value.(string); ok && s == "" {
			missing = true
		}
	}
	if missing {
		if field.IsRequired {
			return newFieldError(field, "is required")
		}
		return nil
	}

	if err := validateType(field, value); err != nil {
		return err
	}
	if err := validateBounds(field, value); err != nil {
		return err
	}
	if err := validateLength(field, value); err != nil {
		return err
	}
	if field.Pattern != nil {
		s, ok := value.(string)
		if !ok || !field.Pattern.MatchString(s) {
			return newFieldError(field, fmt.Sprintf("must match pattern %s", field.Pattern))
		}
	}
	if len(field.Enum) > 0 {
		if !enumContains(field.Enum, value) {
			return newFieldError(field, fmt.Sprintf("must be one of %v", field.Enum))
		}
	}
	if field.Check != nil {
		if err := field.Check(value); err != nil {
			return newFieldError(field, err.Error())
		}
	}
	return nil
}

func validateType(field *Field, value any) error {
	ok := true
	switch field.Type {
	case TypeString, TypeText, TypeUUID:
		_, ok = value.(string)
	case TypeNumber:
		_, ok = value.(float64)
	case TypeBigInt:
		_, ok = value.(int64)
	case TypeDecimal:
		_, ok = value.(decimal.Decimal)
	case TypeBoolean:
		_, ok = value.(bool)
	case TypeDate, TypeTimestamp:
		_, ok = value.(time.Time)
	case TypeArray:
		_, ok = value.([]any)
	case TypeObject:
		_, ok = value.(map[string]any)
	case TypeBinary:
		_, ok = value.([]byte)
	case TypeJSON, TypeAny, TypeEnum:
		// json/any accept everything; enum is membership-checked below.
	}
	if !ok {
		return newFieldError(field, fmt.Sprintf("must be of type %s, got %T", field.Type, value))
	}
	return nil
}

func validateBounds(field *Field, value any) error {
	if field.Min == nil && field.Max == nil {
		return nil
	}
	var n float64
	switch v := value.(type) {
	case float64:
		n = v
	case int64:
		n = float64(v)
	case decimal.Decimal:
		n, _ = v.Float64()
	default:
		return nil
	}
	if field.Min != nil && n < *field.Min {
		return newFieldError(field, fmt.Sprintf("must be >= %v", *field.Min))
	}
	if field.Max != nil && n > *field.Max {
		return newFieldError(field, fmt.Sprintf("must be <= %v", *field.Max))
	}
	return nil
}

func validateLength(field *Field, value any) error {
	if field.MinLength == nil && field.MaxLength == nil {
		return nil
	}
	length := -1
	switch v := value.(type) {
	case string:
		length = len([]rune(v))
	case []any:
		length = len(v)
	case []byte:
		length = len(v)
	}
	if length < 0 {
		return nil
	}
	if field.MinLength != nil && length < *field.MinLength {
		return newFieldError(field, fmt.Sprintf("length must be >= %d", *field.MinLength))
	}
	if field.MaxLength != nil && length > *field.MaxLength {
		return newFieldError(field, fmt.Sprintf("length must be <= %d", *field.MaxLength))
	}
	return nil
}

func enumContains(enum []any, value any) bool {
	for _, candidate := range enum {
		if reflect.DeepEqual(candidate, value) {
			return true
		}
		// tolerate numeric kind differences between declaration and payload
		cf, cok := looseFloat(candidate)
		vf, vok := looseFloat(value)
		if cok && vok && cf == vf {
			return true
		}
	}
	return false
}

func looseFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case float32:
		return float64(v), true
	}
	return 0, false
}
