// Package convert provides numeric coercion for exchange payloads,
// which mix string-encoded and native numbers.
package convert

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ToFloat64 converts common payload value types to float64.
// Unsupported types and parse failures yield 0.
func ToFloat64(v any) float64 {
	switch t := v.(type) {
	case nil:
		return 0
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	case json.Number:
		f, _ := t.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f
	default:
		return 0
	}
}

// ParsePrice parses an exchange string price; empty and malformed input map to 0.
func ParsePrice(raw string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return f
}

// FormatQty renders a quantity without exponent notation, as exchanges require.
func FormatQty(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
