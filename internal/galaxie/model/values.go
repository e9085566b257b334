package model

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/nerrad567/gray-logic-galaxie/internal/galaxie/feed"
)

// Helpers reading optional values out of a record. Each returns nil when
// the key is absent, null or not convertible.

func stringField(r feed.Record, key string) *string {
	switch v := r[key].(type) {
	case string:
		return &v
	case json.Number:
		s := v.String()
		return &s
	default:
		return nil
	}
}

func floatField(r feed.Record, key string) *float64 {
	return toFloat(r[key])
}

func toFloat(value any) *float64 {
	var f float64
	switch v := value.(type) {
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case float64:
		f = v
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	default:
		return nil
	}
	return &f
}

func intField(r feed.Record, key string) *int64 {
	return toInt(r[key])
}

func toInt(value any) *int64 {
	var n int64
	switch v := value.(type) {
	case json.Number:
		if parsed, err := v.Int64(); err == nil {
			n = parsed
			break
		}
		f, err := v.Float64()
		if err != nil || f != math.Trunc(f) {
			return nil
		}
		n = int64(f)
	case float64:
		if v != math.Trunc(v) {
			return nil
		}
		n = int64(v)
	case int:
		n = int64(v)
	case int64:
		n = v
	default:
		return nil
	}
	return &n
}

func boolField(r feed.Record, key string) *bool {
	if v, ok := r[key].(bool); ok {
		return &v
	}
	return nil
}

func objectField(r feed.Record, key string) map[string]any {
	obj, _ := r[key].(map[string]any) //nolint:errcheck // Type assertion, nil when absent
	return obj
}

// idString renders an identifier that may arrive as a number or string.
func idString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, v != ""
	case json.Number:
		return v.String(), true
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10), true
		}
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	default:
		return "", false
	}
}
