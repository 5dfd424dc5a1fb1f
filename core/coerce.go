// Package core provides the fundamental building blocks of the argil data layer.
// This file implements type coercion: the fixed, total conversion rules that
// turn a raw payload value into the declared field type.
package core

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// dateLayouts are tried in order when parsing date/timestamp strings.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// coerceValue converts a raw value into the field's declared type.
//
// The rules are total for every accepted input shape; anything outside them
// fails with a descriptive error that the validator turns into a FieldError.
// Enum fields are never converted, only membership-checked later.
func coerceValue(field *Field, value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch field.Type {
	case TypeAny, TypeEnum, TypeObject:
		// enum: membership check happens during validation, no conversion.
		// object: accepted as-is when it is a map, rejected otherwise.
		if field.Type == TypeObject {
			if _, ok := value.(map[string]any); !ok {
				return nil, fmt.Errorf("expected an object, got %T", value)
			}
		}
		return value, nil

	case TypeString, TypeText:
		return coerceString(value)

	case TypeNumber:
		return coerceFloat(value)

	case TypeBigInt:
		return coerceInt64(value)

	case TypeDecimal:
		return coerceDecimal(value)

	case TypeBoolean:
		return coerceBool(value)

	case TypeDate, TypeTimestamp:
		return coerceTime(value)

	case TypeArray:
		return coerceArray(value)

	case TypeJSON:
		return coerceJSON(value)

	case TypeUUID:
		return coerceUUID(value)

	case TypeBinary:
		return coerceBinary(value)
	}

	return value, nil
}

func coerceString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprintf("%v", v), nil
	default:
		return "", fmt.Errorf("cannot convert %T to string", value)
	}
}

func coerceFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as number", v)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to number", value)
	}
}

func coerceInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case float64:
		if v != float64(int64(v)) {
			return 0, fmt.Errorf("cannot convert fractional %v to bigint", v)
		}
		return int64(v), nil
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as bigint", v)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to bigint", value)
	}
}

func coerceDecimal(value any) (decimal.Decimal, error) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v, nil
	case string:
		parsed, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Zero, fmt.Errorf("cannot parse %q as decimal", v)
		}
		return parsed, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	default:
		return decimal.Zero, fmt.Errorf("cannot convert %T to decimal", value)
	}
}

func coerceBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "on":
			return true, nil
		case "false", "0", "no", "off", "":
			return false, nil
		}
		return false, fmt.Errorf("cannot parse %q as boolean", v)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		n, _ := coerceInt64(v)
		return n != 0, nil
	case float32, float64:
		n, _ := coerceFloat(v)
		return n != 0, nil
	default:
		return false, fmt.Errorf("cannot convert %T to boolean", value)
	}
}

// coerceTime accepts time.Time, numeric unix epochs (seconds), and parseable strings.
func coerceTime(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case *time.Time:
		if v == nil {
			return time.Time{}, fmt.Errorf("cannot convert nil *time.Time to date")
		}
		return *v, nil
	case int:
		return time.Unix(int64(v), 0).UTC(), nil
	case int64:
		return time.Unix(v, 0).UTC(), nil
	case float64:
		sec := int64(v)
		nsec := int64((v - float64(sec)) * float64(time.Second))
		return time.Unix(sec, nsec).UTC(), nil
	case string:
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, v); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot parse %q as date", v)
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to date", value)
	}
}

func coerceArray(value any) ([]any, error) {
	if list, ok := value.([]any); ok {
		return list, nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("cannot convert %T to array", value)
	}
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

// coerceJSON accepts any json-marshalable value. Strings are decoded so the
// stored shape is the parsed document, not the source text.
func coerceJSON(value any) (any, error) {
	if s, ok := value.(string); ok {
		var decoded any
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			return nil, fmt.Errorf("cannot parse string as json: %v", err)
		}
		return decoded, nil
	}
	if _, err := json.Marshal(value); err != nil {
		return nil, fmt.Errorf("cannot convert %T to json", value)
	}
	return value, nil
}

func coerceUUID(value any) (string, error) {
	switch v := value.(type) {
	case uuid.UUID:
		return v.String(), nil
	case string:
		parsed, err := uuid.Parse(v)
		if err != nil {
			return "", fmt.Errorf("cannot parse %q as uuid", v)
		}
		return parsed.String(), nil
	case []byte:
		parsed, err := uuid.FromBytes(v)
		if err != nil {
			return "", fmt.Errorf("cannot parse %d bytes as uuid", len(v))
		}
		return parsed.String(), nil
	default:
		return "", fmt.Errorf("cannot convert %T to uuid", value)
	}
}

func coerceBinary(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("cannot convert %T to binary", value)
	}
}

// NewUUID is a ready-made DefaultFunc for uuid primary keys.
//
// Example:
//
//	core.NewField("id", core.TypeUUID, core.PrimaryKey(), core.DefaultFunc(core.NewUUID))
func NewUUID() any {
	return uuid.NewString()
}
