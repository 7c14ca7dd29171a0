package schema

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// Helpers for reading loosely-typed record values. JSON decoding hands the
// core float64s and strings interchangeably; these normalize.

// StringAt returns the string value at key, or "" when absent or not a string.
func StringAt(rec Record, key string) string {
	s, _ := rec[key].(string)
	return s
}

// BoolAt returns the boolean value at key, accepting bool and 0/1 numerics.
func BoolAt(rec Record, key string) bool {
	switch v := rec[key].(type) {
	case bool:
		return v
	case int:
		return v == 1
	case int64:
		return v == 1
	case float64:
		return v == 1
	default:
		return false
	}
}

// Int64Of coerces a numeric or numeric-string value to int64.
func Int64Of(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// DecimalOf coerces a numeric or numeric-string value to a decimal, used for
// money sums where float accumulation error is not acceptable.
func DecimalOf(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case float64:
		return decimal.NewFromFloat(n), true
	case string:
		parsed, err := decimal.NewFromString(n)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return parsed, true
	default:
		return decimal.Decimal{}, false
	}
}

// RecordsAt returns the child record array at key. Both []any of maps and
// []Record inputs are accepted; anything else yields nil.
func RecordsAt(rec Record, key string) []Record {
	switch v := rec[key].(type) {
	case []Record:
		return v
	case []any:
		out := make([]Record, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}
