package metrics

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

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

func TestNormalize_DetailedMetrics(t *testing.T) {
	payload := decode(t, `{"detailed_metrics":[{"report_id":1,"publication_date":"2024-01-01",
		"frc_30_day_analysis":{"price_on_release":10,"price_after_30_days":12,"price_change_30_days_pct":20}}]}`)

	source, records := Normalize(payload, nil)
	if source != SourceDetailed {
		t.Errorf("source = %s", source)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d", len(records))
	}
	r := records[0]
	if r.ReportID != "1" {
		t.Errorf("report id = %q", r.ReportID)
	}
	if r.PriceChange30DayPct != 20 || r.PriceOnRelease != 10 || r.PriceAfter30Days != 12 {
		t.Errorf("30 day analysis = %+v", r)
	}
	if r.AvgVolumePost5Days != 0 || r.AnnualizedVolatilityPct != 0 {
		t.Errorf("absent sub-objects must default to zero: %+v", r)
	}
	if got := r.PublicationDate.Format("2006-01-02"); got != "2024-01-01" {
		t.Errorf("publication date = %s", got)
	}
}

func TestNormalize_SourcePriority(t *testing.T) {
	record := func(id string) string {
		return fmt.Sprintf(`{"report_id":%q,"frc_30_day_analysis":{"price_change_30_days_pct":1}}`, id)
	}

	tests := []struct {
		name     string
		company  string
		separate string
		want     Source
		wantID   string
	}{
		{
			name:     "dedicated endpoint wins",
			company:  `{"detailed_metrics":[` + record("embedded") + `]}`,
			separate: `{"metrics":{"metrics":[` + record("endpoint") + `]}}`,
			want:     SourceEndpoint,
			wantID:   "endpoint",
		},
		{
			name:     "bare endpoint list",
			company:  `{}`,
			separate: `[` + record("listed") + `]`,
			want:     SourceEndpoint,
			wantID:   "listed",
		},
		{
			name:     "root detailed metrics over enhanced v3",
			company:  `{"detailed_metrics":[` + record("root") + `],"data":{"enhanced_metrics_v3":[` + record("v3") + `]}}`,
			separate: `null`,
			want:     SourceDetailed,
			wantID:   "root",
		},
		{
			name:     "enhanced v3 over performance metrics",
			company:  `{"data":{"enhanced_metrics_v3":[` + record("v3") + `],"performance_metrics":{"detailed_metrics":[` + record("perf") + `]}}}`,
			separate: `null`,
			want:     SourceEnhancedV3,
			wantID:   "v3",
		},
		{
			name:     "performance metrics",
			company:  `{"data":{"performance_metrics":{"detailed_metrics":[` + record("perf") + `]}}}`,
			separate: `{"metrics":[]}`,
			want:     SourcePerformance,
			wantID:   "perf",
		},
		{
			name:     "keyed by report id",
			company:  `{}`,
			separate: `{"metrics":{"r-9":{"frc_30_day_analysis":{"price_change_30_days_pct":3}}}}`,
			want:     SourceEndpoint,
			wantID:   "r-9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source, records := Normalize(decode(t, tt.company), decode(t, tt.separate))
			if source != tt.want {
				t.Errorf("source = %s, want %s", source, tt.want)
			}
			if len(records) != 1 || records[0].ReportID != tt.wantID {
				t.Errorf("records = %+v, want single %s", records, tt.wantID)
			}
		})
	}
}

func TestNormalize_NoRecognizedShape(t *testing.T) {
	for _, in := range []string{`null`, `{}`, `{"detailed_metrics":[]}`, `{"data":{"enhanced_metrics_v3":"n/a"}}`} {
		source, records := Normalize(decode(t, in), nil)
		if source != SourceNone {
			t.Errorf("%s: source = %s", in, source)
		}
		if records == nil || len(records) != 0 {
			t.Errorf("%s: expected empty non-nil slice, got %#v", in, records)
		}
	}
}

func TestNormalize_SyntheticAndDuplicateIDs(t *testing.T) {
	payload := decode(t, `{"detailed_metrics":[
		{"report_id":"a","frc_30_day_analysis":{"price_change_30_days_pct":1}},
		{"frc_30_day_analysis":{"price_change_30_days_pct":2}},
		{"report_id":"a","frc_30_day_analysis":{"price_change_30_days_pct":3}},
		"junk"]}`)

	_, records := Normalize(payload, nil)
	if len(records) != 2 {
		t.Fatalf("records = %+v", records)
	}
	if records[0].ReportID != "a" || records[0].PriceChange30DayPct != 1 {
		t.Errorf("first = %+v", records[0])
	}
	if records[1].ReportID != "report-1" {
		t.Errorf("synthetic id = %q", records[1].ReportID)
	}
}

func TestTimelineAndSummarize(t *testing.T) {
	payload := decode(t, `{"detailed_metrics":[
		{"report_id":"late","publication_date":"2024-03-01","frc_30_day_analysis":{"price_change_30_days_pct":-5,"volume_change_pct":10}},
		{"report_id":"undated","frc_30_day_analysis":{"price_change_30_days_pct":0}},
		{"report_id":"early","publication_date":"2023-11-15","frc_30_day_analysis":{"price_change_30_days_pct":20,"volume_change_pct":50}}]}`)

	_, records := Normalize(payload, nil)
	timeline := Timeline(records)
	var ids []string
	for _, r := range timeline {
		ids = append(ids, r.ReportID)
	}
	if strings.Join(ids, ",") != "early,late,undated" {
		t.Errorf("timeline = %v", ids)
	}
	if records[0].ReportID != "late" {
		t.Error("Timeline must not reorder its input")
	}
	if got := len(Dated(records)); got != 2 {
		t.Errorf("dated = %d", got)
	}

	sum := Summarize(records)
	if sum.Reports != 3 || sum.Best != "early" || sum.Worst != "late" {
		t.Errorf("summary = %+v", sum)
	}
	if sum.AvgPriceChange30DayPct != 5 || sum.AvgVolumeChangePct != 20 {
		t.Errorf("averages = %+v", sum)
	}
	if Summarize(nil) != nil {
		t.Error("expected nil summary")
	}
}

// Property: any subset of sub-objects may be missing; missing ones read as zero and
// present ones are carried through unchanged.
func TestProperty_AbsentSubObjectsDefaultToZero(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("missing windows are zero", prop.ForAll(
		func(pct float64, with5, withVol bool) bool {
			rec := map[string]any{
				"report_id":           "r",
				"frc_30_day_analysis": map[string]any{"price_change_30_days_pct": pct},
			}
			if with5 {
				rec["window_5_days"] = map[string]any{"price_change_pct": pct}
			}
			if withVol {
				rec["volatility_analysis"] = map[string]any{"annualized_volatility_pct": pct}
			}

			_, records := Normalize(map[string]any{"detailed_metrics": []any{rec}}, nil)
			if len(records) != 1 {
				return false
			}
			r := records[0]
			want5, wantVol := 0.0, 0.0
			if with5 {
				want5 = pct
			}
			if withVol {
				wantVol = pct
			}
			return r.PriceChange30DayPct == pct &&
				r.PriceChange5DayPct == want5 &&
				r.AnnualizedVolatilityPct == wantVol &&
				r.PriceChange10DayPct == 0 &&
				r.PriceChange15DayPct == 0
		},
		gen.Float64Range(-100, 100),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
