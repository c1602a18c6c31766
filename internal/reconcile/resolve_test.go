package reconcile

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestResolve_FirstPresentPathWins(t *testing.T) {
	payload := map[string]any{
		"company": map[string]any{
			"profile": map[string]any{"name": "Acme"},
		},
	}

	got, ok := Resolve(payload, []string{"company.data.name", "company.profile.name"})
	if !ok || got != "Acme" {
		t.Fatalf("expected Acme, got %v (ok=%v)", got, ok)
	}
}

func TestResolve_SkipsNullAndEmptyArrays(t *testing.T) {
	payload := decode(t, `{"a": null, "b": [], "c": [1], "d": {}}`)

	got, ok := Resolve(payload, []string{"a", "b", "c"})
	if !ok {
		t.Fatal("expected a match at c")
	}
	if list, _ := got.([]any); len(list) != 1 {
		t.Errorf("expected c's list, got %v", got)
	}

	// An empty object is present; only arrays are treated as empty.
	if _, ok := Resolve(payload, []string{"d"}); !ok {
		t.Error("expected empty object to match")
	}
	if _, ok := Resolve(payload, []string{"a", "b", "missing"}); ok {
		t.Error("expected no match")
	}
}

func TestLookup_UnfollowablePathsDoNotMatch(t *testing.T) {
	payload := decode(t, `{"name": "Acme", "list": [{"x": 1}], "n": 3}`)

	tests := []struct {
		name string
		path string
	}{
		{"index into string", "name[0]"},
		{"field of scalar", "n.value"},
		{"field of list", "list.x"},
		{"index out of range", "list[5].x"},
		{"negative index", "list[-1]"},
		{"malformed bracket", "list[0"},
		{"non numeric index", "list[a]"},
		{"empty segment", "list..x"},
		{"empty path", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if v, ok := Lookup(payload, tt.path); ok {
				t.Errorf("expected no match for %q, got %v", tt.path, v)
			}
		})
	}
}

func TestLookup_Indexes(t *testing.T) {
	payload := decode(t, `{"reports": [{"date": "2024-01-01"}, {"date": "2024-02-01"}], "grid": [[1, 2], [3, 4]]}`)

	if v, ok := Lookup(payload, "reports[1].date"); !ok || v != "2024-02-01" {
		t.Errorf("reports[1].date = %v", v)
	}
	if v, ok := Lookup(payload, "grid[1][0]"); !ok || v.(json.Number).String() != "3" {
		t.Errorf("grid[1][0] = %v", v)
	}
}

func TestLookup_NonJSONMaps(t *testing.T) {
	payload := map[string]map[string]string{"company": {"name": "Acme"}}
	if v, ok := Lookup(payload, "company.name"); !ok || v != "Acme" {
		t.Errorf("expected Acme, got %v", v)
	}
}

func TestTypedHelpers_DistinguishMissingFromZero(t *testing.T) {
	payload := decode(t, `{"count": 0, "flag": false, "pct": "12.5%", "blank": "  ", "later": 7}`)

	if n, ok := Int(payload, []string{"count", "later"}); !ok || n != 0 {
		t.Errorf("Int = %d, %v; want 0, true", n, ok)
	}
	if b, ok := Bool(payload, []string{"flag"}); !ok || b {
		t.Errorf("Bool = %v, %v; want false, true", b, ok)
	}
	if f, ok := Float(payload, []string{"pct"}); !ok || f != 12.5 {
		t.Errorf("Float = %v, %v; want 12.5, true", f, ok)
	}
	if _, ok := String(payload, []string{"blank"}); ok {
		t.Error("blank strings should not count as present")
	}
	if _, ok := Float(payload, []string{"missing"}); ok {
		t.Error("missing field should not resolve")
	}
	if f := FloatOr(payload, []string{"missing"}, 42); f != 42 {
		t.Errorf("FloatOr = %v, want default", f)
	}
}

func TestInt_OutOfRangeDoesNotResolve(t *testing.T) {
	payload := decode(t, `{"huge": 1e30, "tiny": -1e30, "ok": 42.9}`)

	if _, ok := Int(payload, []string{"huge"}); ok {
		t.Error("1e30 should not resolve as int")
	}
	if _, ok := Int(payload, []string{"tiny"}); ok {
		t.Error("-1e30 should not resolve as int")
	}
	if n, ok := Int(payload, []string{"huge", "ok"}); !ok || n != 42 {
		t.Errorf("Int = %d, %v; want 42, true", n, ok)
	}
}

func TestAsTime(t *testing.T) {
	want := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	inputs := []any{
		"2024-01-02",
		"2024-01-02T00:00:00Z",
		json.Number("1704153600"),
		float64(1704153600000),
	}
	for _, in := range inputs {
		got, ok := AsTime(in)
		if !ok || !got.Equal(want) {
			t.Errorf("AsTime(%v) = %v, %v", in, got, ok)
		}
	}

	if _, ok := AsTime("not a date"); ok {
		t.Error("expected garbage date to fail")
	}
}

// Property: Resolve(p, [a, b, c]) returns the value at the first path that holds one.
func TestProperty_ResolveReturnsFirstDefinedPath(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	paths := []string{"a.value", "b.value", "c.value"}

	properties.Property("first defined path wins", prop.ForAll(
		func(mask []bool, poison bool) bool {
			payload := map[string]any{}
			want := -1
			for i, key := range []string{"a", "b", "c"} {
				if i < len(mask) && mask[i] {
					payload[key] = map[string]any{"value": i}
					if want < 0 {
						want = i
					}
				} else if poison {
					// A scalar where an object is expected must behave as "not found".
					payload[key] = "scalar"
				}
			}

			got, ok := Resolve(payload, paths)
			if want < 0 {
				return !ok
			}
			return ok && got == want
		},
		gen.SliceOfN(3, gen.Bool()),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// Property: Lookup never panics, whatever the path text.
func TestProperty_LookupNeverPanics(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	payload := map[string]any{
		"a": []any{map[string]any{"b": "x"}, 1, nil},
		"s": "text",
	}

	properties.Property("lookup is total", prop.ForAll(
		func(path string) bool {
			Lookup(payload, path)
			return true
		},
		gen.RegexMatch(`[a-s\.\[\]0-9\-]{0,12}`),
	))

	properties.TestingRun(t)
}
