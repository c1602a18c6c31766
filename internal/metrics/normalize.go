// Package metrics flattens the per-report performance metrics the research API
// has published under several historical payload shapes.
package metrics

import (
	"fmt"
	"sort"

	"frc-research/internal/models"
	"frc-research/internal/reconcile"
)

// Source identifies which payload shape supplied a company's metrics.
type Source string

const (
	SourceNone        Source = "none"
	SourceEndpoint    Source = "metrics_endpoint"
	SourceDetailed    Source = "detailed_metrics"
	SourceEnhancedV3  Source = "enhanced_metrics_v3"
	SourcePerformance Source = "performance_metrics"
)

// Candidate paths per source, in priority order. The dedicated endpoint response is
// probed first, then the shapes embedded in the company payload.
var (
	endpointPaths    = []string{"metrics.metrics", "metrics", "data.metrics", "detailed_metrics", "data.detailed_metrics", "data"}
	detailedPaths    = []string{"detailed_metrics"}
	enhancedV3Paths  = []string{"data.enhanced_metrics_v3"}
	performancePaths = []string{"data.performance_metrics.detailed_metrics"}
)

// Normalizer maps raw metrics payloads onto MetricsRecord values.
type Normalizer struct {
	table reconcile.Table
}

// NewNormalizer creates a Normalizer using the given path table.
func NewNormalizer(table reconcile.Table) *Normalizer {
	if table == nil {
		table = reconcile.DefaultTable()
	}
	return &Normalizer{table: table}
}

// Normalize selects exactly one source shape and flattens its records, in source
// order. Records from different shapes are never combined. When no shape is
// recognized it returns SourceNone and an empty, non-nil slice.
func (n *Normalizer) Normalize(companyPayload, separate any) (Source, []models.MetricsRecord) {
	source, raw := selectSource(companyPayload, separate)
	if source == SourceNone {
		return SourceNone, []models.MetricsRecord{}
	}

	records := make([]models.MetricsRecord, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, item := range raw {
		if _, ok := item.(map[string]any); !ok {
			continue
		}
		rec := n.record(item, i)
		if seen[rec.ReportID] {
			continue
		}
		seen[rec.ReportID] = true
		records = append(records, rec)
	}
	return source, records
}

// Normalize runs the default normalizer.
func Normalize(companyPayload, separate any) (Source, []models.MetricsRecord) {
	return NewNormalizer(nil).Normalize(companyPayload, separate)
}

func selectSource(companyPayload, separate any) (Source, []any) {
	if list, ok := separate.([]any); ok && hasObject(list) {
		return SourceEndpoint, list
	}
	if list, ok := recordList(separate, endpointPaths); ok {
		return SourceEndpoint, list
	}
	if list, ok := recordList(companyPayload, detailedPaths); ok {
		return SourceDetailed, list
	}
	if list, ok := recordList(companyPayload, enhancedV3Paths); ok {
		return SourceEnhancedV3, list
	}
	if list, ok := recordList(companyPayload, performancePaths); ok {
		return SourcePerformance, list
	}
	return SourceNone, nil
}

// recordList resolves a non-empty list of objects. Some backends key records by
// report ID instead of returning a list; those are flattened in key order.
func recordList(payload any, paths []string) ([]any, bool) {
	for _, p := range paths {
		v, ok := reconcile.Lookup(payload, p)
		if !ok {
			continue
		}
		switch x := v.(type) {
		case []any:
			if hasObject(x) {
				return x, true
			}
		case map[string]any:
			if list := keyedRecords(x); len(list) > 0 {
				return list, true
			}
		}
	}
	return nil, false
}

func hasObject(list []any) bool {
	for _, item := range list {
		if _, ok := item.(map[string]any); ok {
			return true
		}
	}
	return false
}

// keyedRecords accepts {"<id>": {...record...}} maps whose values all look like
// report records, and returns them with the key filled in as report_id.
func keyedRecords(m map[string]any) []any {
	keys := make([]string, 0, len(m))
	for k, v := range m {
		rec, ok := v.(map[string]any)
		if !ok || !looksLikeRecord(rec) {
			return nil
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]any, 0, len(keys))
	for _, k := range keys {
		rec := m[k].(map[string]any)
		if _, ok := rec["report_id"]; !ok {
			cp := make(map[string]any, len(rec)+1)
			for rk, rv := range rec {
				cp[rk] = rv
			}
			cp["report_id"] = k
			rec = cp
		}
		out = append(out, rec)
	}
	return out
}

var recordMarkers = []string{"frc_30_day_analysis", "publication_date", "report_id", "window_5_days", "volatility_analysis"}

func looksLikeRecord(rec map[string]any) bool {
	for _, k := range recordMarkers {
		if _, ok := rec[k]; ok {
			return true
		}
	}
	return false
}

func (n *Normalizer) record(item any, idx int) models.MetricsRecord {
	t := n.table
	str := func(field string) string {
		s, _ := t.String(reconcile.KindMetricsRecord, field, item)
		return s
	}
	num := func(field string) float64 {
		f, _ := t.Float(reconcile.KindMetricsRecord, field, item)
		return f
	}

	rec := models.MetricsRecord{
		ReportID:                    str("report_id"),
		ReportTitle:                 str("report_title"),
		ReportType:                  str("report_type"),
		PriceOnRelease:              num("price_on_release"),
		PriceAfter30Days:            num("price_after_30_days"),
		PriceChange30DayPct:         num("price_change_30_day_pct"),
		VolumeChangePrePost30DayPct: num("volume_change_pre_post_30_day_pct"),
		AvgVolumePre30Days:          num("avg_volume_pre_30_days"),
		AvgVolumePost30Days:         num("avg_volume_post_30_days"),
		AvgVolumePost5Days:          num("avg_volume_post_5_days"),
		AvgVolumePost10Days:         num("avg_volume_post_10_days"),
		PriceChange5DayPct:          num("price_change_5_day_pct"),
		PriceChange10DayPct:         num("price_change_10_day_pct"),
		PriceChange15DayPct:         num("price_change_15_day_pct"),
		AnnualizedVolatilityPct:     num("annualized_volatility_pct"),
	}
	if rec.ReportID == "" {
		rec.ReportID = fmt.Sprintf("report-%d", idx)
	}
	if d, ok := reconcile.Time(item, t.Paths(reconcile.KindMetricsRecord, "publication_date")); ok {
		rec.PublicationDate = d
	}
	return rec
}

// Timeline returns a copy of records sorted ascending by publication date.
// Records without a date sort last; ties keep source order.
func Timeline(records []models.MetricsRecord) []models.MetricsRecord {
	out := make([]models.MetricsRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.HasPublicationDate() {
			return false
		}
		if !b.HasPublicationDate() {
			return true
		}
		return a.PublicationDate.Before(b.PublicationDate)
	})
	return out
}

// Dated returns the records that carry a publication date, ascending.
func Dated(records []models.MetricsRecord) []models.MetricsRecord {
	var out []models.MetricsRecord
	for _, r := range Timeline(records) {
		if r.HasPublicationDate() {
			out = append(out, r)
		}
	}
	return out
}
