package reconcile

import (
	"sort"
	"strings"
	"time"

	"frc-research/internal/models"
)

// notFoundStatuses are envelope statuses meaning the ticker has no company record.
var notFoundStatuses = map[string]bool{
	"not_found": true,
	"not found": true,
	"notfound":  true,
	"missing":   true,
}

// Company builds the canonical company from a company payload. The second return
// is false when the payload carries no company record.
func (t Table) Company(ticker string, payload any) (models.CanonicalCompany, bool) {
	if !present(payload) {
		return models.CanonicalCompany{}, false
	}
	if ok, found := t.Bool(KindCompany, "success", payload); found && !ok {
		return models.CanonicalCompany{}, false
	}

	rawStatus, _ := t.String(KindCompany, "status", payload)
	if notFoundStatuses[strings.ToLower(rawStatus)] {
		return models.CanonicalCompany{}, false
	}

	name, hasName := t.String(KindCompany, "name", payload)
	resolvedTicker, hasTicker := t.String(KindCompany, "ticker", payload)
	if !hasName {
		if _, hasErr := t.String(KindCompany, "error", payload); hasErr || !hasTicker {
			return models.CanonicalCompany{}, false
		}
	}

	c := models.CanonicalCompany{
		Ticker: models.NormalizeTicker(ticker),
		Name:   name,
		Status: models.ParseCoverageStatus(rawStatus),
	}
	if c.Ticker == "" {
		c.Ticker = models.NormalizeTicker(resolvedTicker)
	}
	c.Exchange, _ = t.String(KindCompany, "exchange", payload)
	c.Sector, _ = t.String(KindCompany, "sector", payload)
	c.Industry, _ = t.String(KindCompany, "industry", payload)

	if cur, ok := t.String(KindCompany, "currency", payload); ok {
		c.Currency = strings.ToUpper(cur)
	} else {
		c.Currency = models.CurrencyForExchange(c.Exchange, c.Ticker)
	}

	if n, ok := t.Int(KindCompany, "reports_count", payload); ok && n > 0 {
		c.ReportsCount = n
	} else if reports, ok := Slice(payload, t.Paths(KindCompany, "reports")); ok {
		c.ReportsCount = len(reports)
	}

	c.DataAvailability = t.availability(payload, c.ReportsCount)
	return c, true
}

// availability reads the explicit flags, falling back to what is embedded in the
// payload when a flag is absent. An explicit false is respected.
func (t Table) availability(payload any, reportsCount int) models.DataAvailability {
	flag := func(field string, inferred func() bool) bool {
		if v, ok := t.Bool(KindCompany, field, payload); ok {
			return v
		}
		return inferred()
	}

	return models.DataAvailability{
		HasChart: flag("has_chart", func() bool {
			_, ok := t.EmbeddedChart(payload)
			return ok
		}),
		HasMetrics: flag("has_metrics", func() bool {
			return t.HasEmbeddedMetrics(payload)
		}),
		HasAIAnalysis: flag("has_ai_analysis", func() bool {
			_, ok := t.EmbeddedAnalysis(payload)
			return ok
		}),
		HasReports: flag("has_reports", func() bool {
			return reportsCount > 0
		}),
	}
}

// EmbeddedChart returns chart data carried inside the company payload.
func (t Table) EmbeddedChart(payload any) (any, bool) {
	return t.Resolve(KindChart, "embedded", payload)
}

// EmbeddedAnalysis returns analysis data carried inside the company payload.
func (t Table) EmbeddedAnalysis(payload any) (any, bool) {
	return t.Resolve(KindAnalysis, "embedded", payload)
}

// HasEmbeddedMetrics reports whether any legacy metrics shape is embedded.
func (t Table) HasEmbeddedMetrics(payload any) bool {
	_, ok := t.Resolve(KindCompany, "embedded_metrics", payload)
	return ok
}

// ReportDates returns the publication dates listed in the company's reports,
// ascending and without duplicates. Reports without a date are skipped.
func (t Table) ReportDates(payload any) []time.Time {
	reports, ok := Slice(payload, t.Paths(KindCompany, "reports"))
	if !ok {
		return nil
	}
	paths := t.Paths(KindCompany, "report_date")
	seen := make(map[time.Time]bool, len(reports))
	var dates []time.Time
	for _, r := range reports {
		d, ok := Time(r, paths)
		if !ok || seen[d] {
			continue
		}
		seen[d] = true
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}
