package engine

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"mercator-hq/sentinel/pkg/compliance"
)

// evaluateOperator compares a resolved field value against a condition
// operand. present is false when the field path did not resolve; absent
// values still take part in the comparison.
func evaluateOperator(op compliance.Operator, actual any, present bool, expected any) bool {
	if !present {
		actual = nil
	}

	switch op {
	case compliance.OperatorEquals:
		return valuesEqual(actual, expected)

	case compliance.OperatorNotEquals:
		return !valuesEqual(actual, expected)

	case compliance.OperatorContains:
		return strings.Contains(toString(actual), toString(expected))

	case compliance.OperatorGreaterThan:
		cmp, ok := compareOrdered(actual, expected)
		return ok && cmp > 0

	case compliance.OperatorLessThan:
		cmp, ok := compareOrdered(actual, expected)
		return ok && cmp < 0

	case compliance.OperatorIn:
		in, ok := evaluateIn(actual, expected)
		return ok && in

	case compliance.OperatorNotIn:
		in, ok := evaluateIn(actual, expected)
		return ok && !in

	default:
		return false
	}
}

// valuesEqual is strict equality: numbers compare by value across Go
// numeric kinds, but values of different kinds never coerce ("1" != 1).
func valuesEqual(actual, expected any) bool {
	if actual == nil && expected == nil {
		return true
	}
	if actual == nil || expected == nil {
		return false
	}

	actualNum, actualErr := convertToFloat64(actual)
	expectedNum, expectedErr := convertToFloat64(expected)
	if actualErr == nil && expectedErr == nil {
		return actualNum == expectedNum
	}

	if at, ok := actual.(time.Time); ok {
		if et, ok := expected.(time.Time); ok {
			return at.Equal(et)
		}
	}

	return reflect.DeepEqual(actual, expected)
}

// compareOrdered returns -1, 0 or 1. ok is false when the values are not
// both numbers, both strings or both times.
func compareOrdered(actual, expected any) (int, bool) {
	if actual == nil || expected == nil {
		return 0, false
	}

	actualNum, actualErr := convertToFloat64(actual)
	expectedNum, expectedErr := convertToFloat64(expected)
	if actualErr == nil && expectedErr == nil {
		switch {
		case actualNum < expectedNum:
			return -1, true
		case actualNum > expectedNum:
			return 1, true
		default:
			return 0, true
		}
	}

	if as, ok := actual.(string); ok {
		if es, ok := expected.(string); ok {
			return strings.Compare(as, es), true
		}
	}

	if at, ok := actual.(time.Time); ok {
		if et, ok := expected.(time.Time); ok {
			return at.Compare(et), true
		}
	}

	return 0, false
}

// evaluateIn reports membership of actual in expected. ok is false when
// expected is not a slice or array.
func evaluateIn(actual, expected any) (in bool, ok bool) {
	if expected == nil {
		return false, false
	}
	expectedVal := reflect.ValueOf(expected)
	if expectedVal.Kind() != reflect.Slice && expectedVal.Kind() != reflect.Array {
		return false, false
	}

	for i := 0; i < expectedVal.Len(); i++ {
		if valuesEqual(actual, expectedVal.Index(i).Interface()) {
			return true, true
		}
	}
	return false, true
}

// convertToFloat64 converts a numeric value to float64.
func convertToFloat64(v any) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int:
		return float64(val), nil
	case int8:
		return float64(val), nil
	case int16:
		return float64(val), nil
	case int32:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case uint:
		return float64(val), nil
	case uint8:
		return float64(val), nil
	case uint16:
		return float64(val), nil
	case uint32:
		return float64(val), nil
	case uint64:
		return float64(val), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", v)
	}
}

// toString stringifies a value for substring matching. Absent and nil
// values become the empty string.
func toString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(v)
	}
}
