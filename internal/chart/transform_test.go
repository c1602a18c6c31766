package chart

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"frc-research/internal/errors"
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

func priceList(values ...float64) []*float64 {
	out := make([]*float64, len(values))
	for i := range values {
		out[i] = &values[i]
	}
	return out
}

func TestToChartSeries_ClosePrices(t *testing.T) {
	raw := decode(t, `[{"date":"2024-01-01","close":10,"volume":100},{"date":"2024-01-02","close":11,"volume":150}]`)

	s, err := ToChartSeries(raw, "USD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s == nil {
		t.Fatal("expected series")
	}

	if got := s.Prices(); !reflect.DeepEqual(got, priceList(10, 11)) {
		t.Errorf("prices = %v", got)
	}
	if got := s.Volumes(); !reflect.DeepEqual(got, []int64{100, 150}) {
		t.Errorf("volumes = %v", got)
	}
	if got := s.Dates(); !reflect.DeepEqual(got, []string{"2024-01-01", "2024-01-02"}) {
		t.Errorf("dates = %v", got)
	}
	if s.PriceAxis.Title != "Price (USD)" {
		t.Errorf("price axis title = %q", s.PriceAxis.Title)
	}
	if s.VolumeAxis.ID == s.PriceAxis.ID {
		t.Error("volume must be on its own axis")
	}
	if s.VolumeAxis.Domain[1] > s.PriceAxis.Domain[0] {
		t.Errorf("volume domain %v overlaps price domain %v", s.VolumeAxis.Domain, s.PriceAxis.Domain)
	}
}

func TestToChartSeries_PricePriority(t *testing.T) {
	tests := []struct {
		record string
		want   float64
	}{
		{`{"date":"2024-01-01","price":5,"close":6,"open":7,"volume":1}`, 5},
		{`{"date":"2024-01-01","close":6,"high":8,"volume":1}`, 6},
		{`{"date":"2024-01-01","high":8,"low":4,"volume":1}`, 8},
		{`{"date":"2024-01-01","low":4,"open":7,"volume":1}`, 4},
		{`{"date":"2024-01-01","open":7,"volume":1}`, 7},
	}

	for _, tt := range tests {
		s, err := ToChartSeries(decode(t, "["+tt.record+"]"), "CAD")
		if err != nil || s == nil {
			t.Fatalf("record %s: series=%v err=%v", tt.record, s, err)
		}
		if got := s.Prices()[0]; got == nil || *got != tt.want {
			t.Errorf("record %s: price = %v, want %v", tt.record, got, tt.want)
		}
	}
}

func TestToChartSeries_NoData(t *testing.T) {
	inputs := map[string]any{
		"nil":          nil,
		"empty list":   []any{},
		"no price":     decode(t, `[{"date":"2024-01-01","volume":100},{"date":"2024-01-02","volume":50}]`),
		"scalar":       "chart",
		"plain object": decode(t, `{"foo": 1}`),
	}

	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			s, err := ToChartSeries(in, "USD")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s != nil {
				t.Errorf("expected nil series, got %+v", s)
			}
		})
	}
}

func TestToChartSeries_DuplicateDatesAreDataErrors(t *testing.T) {
	raw := decode(t, `[{"date":"2024-01-01","close":10,"volume":1},{"date":"2024-01-01","close":11,"volume":2}]`)

	s, err := ToChartSeries(raw, "USD")
	if s != nil {
		t.Error("expected no series")
	}
	var dataErr *errors.DataError
	if !errors.As(err, &dataErr) {
		t.Fatalf("expected DataError, got %v", err)
	}
	if !strings.Contains(dataErr.Message, "duplicate") {
		t.Errorf("message = %q", dataErr.Message)
	}
}

func TestToChartSeries_GapsArePreserved(t *testing.T) {
	// 2024-01-03 is missing; it must not be interpolated or zero-filled.
	raw := decode(t, `{"data": [
		{"date":"2024-01-01","close":10,"volume":1},
		{"date":"2024-01-02","close":11,"volume":2},
		{"date":"2024-01-04","close":12,"volume":3}]}`)

	s, err := ToChartSeries(raw, "USD")
	if err != nil || s == nil {
		t.Fatalf("series=%v err=%v", s, err)
	}
	if got := s.Dates(); !reflect.DeepEqual(got, []string{"2024-01-01", "2024-01-02", "2024-01-04"}) {
		t.Errorf("dates = %v", got)
	}
}

func TestToChartSeries_UnpricedDayKeepsItsSlot(t *testing.T) {
	raw := decode(t, `[
		{"date":"2024-01-01","close":10,"volume":100},
		{"date":"2024-01-02","volume":120},
		{"date":"2024-01-03","close":12,"volume":150}]`)

	s, err := ToChartSeries(raw, "USD")
	if err != nil || s == nil {
		t.Fatalf("series=%v err=%v", s, err)
	}
	if s.Len() != 3 {
		t.Fatalf("len = %d, want 3", s.Len())
	}
	if got := s.Volumes(); !reflect.DeepEqual(got, []int64{100, 120, 150}) {
		t.Errorf("volumes = %v", got)
	}
	prices := s.Prices()
	if prices[1] != nil {
		t.Errorf("unpriced day = %v, want nil", *prices[1])
	}
	if prices[0] == nil || *prices[0] != 10 || prices[2] == nil || *prices[2] != 12 {
		t.Errorf("prices = %v", prices)
	}

	sum := Summarize(s)
	if sum.Points != 3 || sum.MinPrice != 10 || sum.AvgVolume != 370.0/3 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestToChartSeries_VolumeIsClamped(t *testing.T) {
	raw := decode(t, `[{"date":"2024-01-01","close":10,"volume":1e300},{"date":"2024-01-02","close":11,"volume":-5}]`)

	s, err := ToChartSeries(raw, "USD")
	if err != nil || s == nil {
		t.Fatalf("series=%v err=%v", s, err)
	}
	if got := s.Volumes(); !reflect.DeepEqual(got, []int64{math.MaxInt64, 0}) {
		t.Errorf("volumes = %v", got)
	}
}

func TestToChartSeries_FigurePassthrough(t *testing.T) {
	raw := decode(t, `{
		"data": [
			{"type":"scatter","x":["2024-01-01","2024-01-02"],"y":[10,11]},
			{"type":"bar","x":["2024-01-01","2024-01-02"],"y":[100,150]}
		],
		"layout": {"title": "ACME"}
	}`).(map[string]any)

	s, err := ToChartSeries(raw, "USD")
	if err != nil || s == nil {
		t.Fatalf("series=%v err=%v", s, err)
	}
	if !s.IsPassthrough() {
		t.Fatal("expected passthrough figure")
	}
	if !reflect.DeepEqual(Figure(s), raw) {
		t.Error("figure must pass through unchanged")
	}
	if got := s.Volumes(); !reflect.DeepEqual(got, []int64{100, 150}) {
		t.Errorf("extracted volumes = %v", got)
	}
}

func TestFigure_TwoAlignedTraces(t *testing.T) {
	raw := decode(t, `[{"date":"2024-01-01","close":10,"volume":100},{"date":"2024-01-02","close":11,"volume":150}]`)
	s, _ := ToChartSeries(raw, "CAD")

	fig := Figure(s)
	traces := fig["data"].([]any)
	if len(traces) != 2 {
		t.Fatalf("traces = %d", len(traces))
	}
	price := traces[0].(map[string]any)
	volume := traces[1].(map[string]any)
	if len(price["x"].([]string)) != len(volume["x"].([]string)) {
		t.Error("traces must share the date axis")
	}
	if volume["yaxis"] != "y2" {
		t.Errorf("volume axis = %v", volume["yaxis"])
	}
}

func TestSummarize(t *testing.T) {
	raw := decode(t, `[{"date":"2024-01-01","close":10,"volume":100},
		{"date":"2024-01-02","close":8,"volume":300},
		{"date":"2024-01-03","close":12,"volume":200}]`)
	s, _ := ToChartSeries(raw, "USD")

	sum := Summarize(s)
	if sum.MinPrice != 8 || sum.MaxPrice != 12 || sum.AvgVolume != 200 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.ChangePct == nil || *sum.ChangePct != 20 {
		t.Errorf("change pct = %v", sum.ChangePct)
	}
	if Summarize(nil) != nil {
		t.Error("expected nil summary for nil series")
	}
}

// Property: N dated points produce a series of exactly N points in input order,
// whether or not each point carries a price.
func TestProperty_SeriesLengthMatchesInput(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

	properties.Property("len(series) == len(input)", prop.ForAll(
		func(prices []float64, gaps []int, unpriced []bool) bool {
			records := make([]any, len(prices))
			dates := make([]string, len(prices))
			day := start
			for i, p := range prices {
				if i < len(gaps) {
					day = day.AddDate(0, 0, gaps[i])
				} else {
					day = day.AddDate(0, 0, 1)
				}
				dates[i] = day.Format("2006-01-02")
				rec := map[string]any{
					"date":   dates[i],
					"volume": json.Number(fmt.Sprintf("%d", i*10)),
				}
				// The first point stays priced so the series is never empty.
				if i == 0 || i >= len(unpriced) || !unpriced[i] {
					rec["close"] = json.Number(fmt.Sprintf("%.2f", p))
				}
				records[i] = rec
			}

			s, err := ToChartSeries(records, "USD")
			if err != nil || s == nil {
				return false
			}
			return s.Len() == len(prices) &&
				len(s.Prices()) == len(s.Volumes()) &&
				reflect.DeepEqual(s.Dates(), dates)
		},
		gen.SliceOf(gen.Float64Range(0.01, 500)).SuchThat(func(v []float64) bool { return len(v) > 0 }),
		gen.SliceOf(gen.IntRange(1, 4)),
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}
