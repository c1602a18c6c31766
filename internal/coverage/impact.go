package coverage

import (
	"sort"
	"time"

	"frc-research/internal/errors"
	"frc-research/internal/models"
)

// OverallImpact computes each window around the earliest report date only. Later
// reports do not move the split point; use PerReport for report-specific windows.
// Windows that cannot be computed are omitted. It returns ErrInsufficientData when
// there is no report date or no window could be computed.
func OverallImpact(series *models.ChartSeries, reportDates []time.Time, windows []int) ([]models.CoverageWindowStats, error) {
	anchor, ok := earliest(reportDates)
	if !ok {
		return nil, errors.NewComputationGapError("overall impact", 0, "no report dates")
	}
	if len(windows) == 0 {
		windows = StandardWindows
	}

	var out []models.CoverageWindowStats
	for _, w := range windows {
		stats, err := ComputeWindowStats(series, anchor, w)
		if err != nil {
			continue
		}
		out = append(out, *stats)
	}
	if len(out) == 0 {
		return nil, errors.NewComputationGapError("overall impact", 0, "no computable window")
	}
	return out, nil
}

// PerReport runs one window per dated report, anchored at its own publication date.
// Reports whose window cannot be computed carry the reason instead of stats.
func PerReport(series *models.ChartSeries, records []models.MetricsRecord, windowDays int) []models.ReportCoverage {
	if windowDays <= 0 {
		windowDays = ReportWindowDays
	}

	out := make([]models.ReportCoverage, 0, len(records))
	for _, r := range records {
		if !r.HasPublicationDate() {
			continue
		}
		rc := models.ReportCoverage{ReportID: r.ReportID}
		stats, err := ComputeWindowStats(series, r.PublicationDate, windowDays)
		if err != nil {
			rc.Gap = err.Error()
		} else {
			rc.Stats = stats
		}
		out = append(out, rc)
	}
	return out
}

// ReportDates merges the publication dates of dated records with extra dates,
// such as those of PDF-only reports that have no metrics. The result is
// ascending with duplicates removed.
func ReportDates(records []models.MetricsRecord, extra ...time.Time) []time.Time {
	seen := make(map[time.Time]bool, len(records)+len(extra))
	var dates []time.Time
	add := func(d time.Time) {
		if d.IsZero() || seen[d] {
			return
		}
		seen[d] = true
		dates = append(dates, d)
	}
	for _, r := range records {
		add(r.PublicationDate)
	}
	for _, d := range extra {
		add(d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

func earliest(dates []time.Time) (time.Time, bool) {
	var min time.Time
	for _, d := range dates {
		if d.IsZero() {
			continue
		}
		if min.IsZero() || d.Before(min) {
			min = d
		}
	}
	return min, !min.IsZero()
}
