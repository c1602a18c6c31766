// Package reconcile resolves logical fields from API payloads whose shape varies
// by backend version.
//
// Every logical field is described by an ordered list of path expressions such as
// "company.profile.name" or "reports[0].date". Resolve walks the list and returns
// the first value that is present: not missing, not JSON null, and not an empty
// array. Evaluation never panics; a path that cannot be followed (indexing into a
// scalar, an index out of range, a malformed expression) simply does not match.
package reconcile

import (
	"reflect"
	"strconv"
	"strings"
)

// Resolve returns the first present value found at paths, in order.
func Resolve(payload any, paths []string) (any, bool) {
	for _, p := range paths {
		if v, ok := Lookup(payload, p); ok {
			return v, true
		}
	}
	return nil, false
}

// Lookup evaluates a single path expression against payload.
func Lookup(payload any, path string) (v any, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			v, ok = nil, false
		}
	}()

	steps, valid := parsePath(path)
	if !valid {
		return nil, false
	}

	cur := payload
	for _, st := range steps {
		var found bool
		if st.isIndex {
			cur, found = index(cur, st.index)
		} else {
			cur, found = field(cur, st.key)
		}
		if !found {
			return nil, false
		}
	}
	if !present(cur) {
		return nil, false
	}
	return cur, true
}

type step struct {
	key     string
	index   int
	isIndex bool
}

// parsePath splits "a.b[2].c" into steps. Empty segments make the path invalid.
func parsePath(path string) ([]step, bool) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, false
	}

	var steps []step
	for _, seg := range strings.Split(path, ".") {
		if seg == "" {
			return nil, false
		}
		name := seg
		rest := ""
		if i := strings.IndexByte(seg, '['); i >= 0 {
			name, rest = seg[:i], seg[i:]
		}
		if name != "" {
			steps = append(steps, step{key: name})
		}
		for rest != "" {
			if rest[0] != '[' {
				return nil, false
			}
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return nil, false
			}
			n, err := strconv.Atoi(rest[1:end])
			if err != nil {
				return nil, false
			}
			steps = append(steps, step{index: n, isIndex: true})
			rest = rest[end+1:]
		}
	}
	return steps, len(steps) > 0
}

func field(v any, key string) (any, bool) {
	switch m := v.(type) {
	case map[string]any:
		val, ok := m[key]
		return val, ok
	case nil:
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	val := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
	if !val.IsValid() {
		return nil, false
	}
	return val.Interface(), true
}

func index(v any, i int) (any, bool) {
	if s, ok := v.([]any); ok {
		if i < 0 || i >= len(s) {
			return nil, false
		}
		return s[i], true
	}
	if v == nil {
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if i < 0 || i >= rv.Len() {
		return nil, false
	}
	return rv.Index(i).Interface(), true
}

// present reports whether a resolved value counts as a match.
func present(v any) bool {
	if v == nil {
		return false
	}
	if s, ok := v.([]any); ok {
		return len(s) > 0
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		return !rv.IsNil() && rv.Len() > 0
	case reflect.Map, reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}
