package reconcile

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Entity kinds with their own path table.
const (
	KindCompany       = "company"
	KindChart         = "chart"
	KindAnalysis      = "analysis"
	KindMetricsRecord = "metrics_record"
)

//go:embed fieldpaths.yaml
var defaultPaths []byte

// Table maps entity kind -> logical field -> ordered candidate paths.
type Table map[string]map[string][]string

var (
	defaultOnce  sync.Once
	defaultTable Table
)

// DefaultTable returns the built-in path table.
func DefaultTable() Table {
	defaultOnce.Do(func() {
		t, err := ParseTable(defaultPaths)
		if err != nil {
			panic(fmt.Sprintf("reconcile: embedded field paths: %v", err))
		}
		defaultTable = t
	})
	return defaultTable
}

// ParseTable decodes a YAML path table.
func ParseTable(data []byte) (Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing field paths: %w", err)
	}
	for kind, fields := range t {
		for name, paths := range fields {
			for _, p := range paths {
				if _, ok := parsePath(p); !ok {
					return nil, fmt.Errorf("invalid path %q for %s.%s", p, kind, name)
				}
			}
		}
	}
	return t, nil
}

// LoadTable reads a YAML override file and layers it over the default table.
// Fields present in the override replace the default list entirely.
func LoadTable(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening field paths: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading field paths: %w", err)
	}
	override, err := ParseTable(data)
	if err != nil {
		return nil, err
	}
	return DefaultTable().Merge(override), nil
}

// Merge returns a new table with other's fields replacing t's.
func (t Table) Merge(other Table) Table {
	out := make(Table, len(t))
	for kind, fields := range t {
		out[kind] = make(map[string][]string, len(fields))
		for name, paths := range fields {
			out[kind][name] = paths
		}
	}
	for kind, fields := range other {
		if out[kind] == nil {
			out[kind] = make(map[string][]string, len(fields))
		}
		for name, paths := range fields {
			out[kind][name] = paths
		}
	}
	return out
}

// Paths returns the candidate paths for kind.field, or nil.
func (t Table) Paths(kind, field string) []string {
	return t[kind][field]
}

// Resolve resolves kind.field against payload.
func (t Table) Resolve(kind, field string, payload any) (any, bool) {
	return Resolve(payload, t.Paths(kind, field))
}

// String resolves kind.field as a string.
func (t Table) String(kind, field string, payload any) (string, bool) {
	return String(payload, t.Paths(kind, field))
}

// Float resolves kind.field as a float64.
func (t Table) Float(kind, field string, payload any) (float64, bool) {
	return Float(payload, t.Paths(kind, field))
}

// Int resolves kind.field as an int.
func (t Table) Int(kind, field string, payload any) (int, bool) {
	return Int(payload, t.Paths(kind, field))
}

// Bool resolves kind.field as a bool.
func (t Table) Bool(kind, field string, payload any) (bool, bool) {
	return Bool(payload, t.Paths(kind, field))
}
