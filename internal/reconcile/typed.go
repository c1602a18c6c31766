package reconcile

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// String resolves paths and converts the result to a string. Numbers are
// formatted; blank strings do not count as present.
func String(payload any, paths []string) (string, bool) {
	for _, p := range paths {
		v, ok := Lookup(payload, p)
		if !ok {
			continue
		}
		if s, ok := AsString(v); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s), true
		}
	}
	return "", false
}

// Float resolves paths and converts the result to a float64. A zero found at the
// first path is returned as (0, true); it does not fall through to later paths.
func Float(payload any, paths []string) (float64, bool) {
	for _, p := range paths {
		v, ok := Lookup(payload, p)
		if !ok {
			continue
		}
		if f, ok := AsFloat(v); ok {
			return f, true
		}
	}
	return 0, false
}

// FloatOr returns the resolved float or def when no path matches.
func FloatOr(payload any, paths []string, def float64) float64 {
	if f, ok := Float(payload, paths); ok {
		return f
	}
	return def
}

// Int resolves paths and converts the result to an int, truncating fractions.
// Values outside the int range are skipped like non-numeric ones.
func Int(payload any, paths []string) (int, bool) {
	for _, p := range paths {
		v, ok := Lookup(payload, p)
		if !ok {
			continue
		}
		f, ok := AsFloat(v)
		if !ok || math.IsNaN(f) || f >= float64(math.MaxInt) || f < float64(math.MinInt) {
			continue
		}
		return int(f), true
	}
	return 0, false
}

// Bool resolves paths and converts the result to a bool. false is a present value.
func Bool(payload any, paths []string) (bool, bool) {
	for _, p := range paths {
		v, ok := Lookup(payload, p)
		if !ok {
			continue
		}
		if b, ok := AsBool(v); ok {
			return b, true
		}
	}
	return false, false
}

// Slice resolves paths to a non-empty list.
func Slice(payload any, paths []string) ([]any, bool) {
	for _, p := range paths {
		v, ok := Lookup(payload, p)
		if !ok {
			continue
		}
		if s, ok := v.([]any); ok {
			return s, true
		}
	}
	return nil, false
}

// Map resolves paths to an object.
func Map(payload any, paths []string) (map[string]any, bool) {
	for _, p := range paths {
		v, ok := Lookup(payload, p)
		if !ok {
			continue
		}
		if m, ok := v.(map[string]any); ok {
			return m, true
		}
	}
	return nil, false
}

// Time resolves paths to a timestamp. Accepts calendar dates, RFC3339 and unix seconds.
func Time(payload any, paths []string) (time.Time, bool) {
	for _, p := range paths {
		v, ok := Lookup(payload, p)
		if !ok {
			continue
		}
		if t, ok := AsTime(v); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// AsString converts scalar JSON values to a string.
func AsString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case bool:
		return strconv.FormatBool(x), true
	}
	return "", false
}

// AsFloat converts JSON numbers and numeric strings to float64.
func AsFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case int32:
		f = float64(x)
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		s := strings.TrimSpace(x)
		s = strings.TrimSuffix(s, "%")
		s = strings.ReplaceAll(s, ",", "")
		if s == "" {
			return 0, false
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// AsBool converts booleans, "true"/"false" strings and 0/1 numbers.
func AsBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return false, false
		}
		return b, true
	}
	if f, ok := AsFloat(v); ok {
		return f != 0, true
	}
	return false, false
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"Jan 2, 2006",
	"January 2, 2006",
}

// AsTime converts a date string or unix seconds into a UTC time.
func AsTime(v any) (time.Time, bool) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
		return time.Time{}, false
	}
	f, ok := AsFloat(v)
	if !ok || f <= 0 || f >= math.MaxInt64 {
		return time.Time{}, false
	}
	// Millisecond timestamps are common in chart payloads.
	if f > 1e11 {
		return time.UnixMilli(int64(f)).UTC(), true
	}
	return time.Unix(int64(f), 0).UTC(), true
}
