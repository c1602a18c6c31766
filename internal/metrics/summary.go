package metrics

import "frc-research/internal/models"

// Summary aggregates a company's report metrics for table footers.
type Summary struct {
	Reports                int     `json:"reports"`
	AvgPriceChange30DayPct float64 `json:"avg_price_change_30_day_pct"`
	AvgVolumeChangePct     float64 `json:"avg_volume_change_pct"`
	Best                   string  `json:"best_report_id,omitempty"`
	Worst                  string  `json:"worst_report_id,omitempty"`
}

// Summarize returns averages and the best and worst report by 30-day price change.
// It returns nil for an empty slice.
func Summarize(records []models.MetricsRecord) *Summary {
	if len(records) == 0 {
		return nil
	}

	sum := &Summary{Reports: len(records)}
	best, worst := records[0], records[0]
	var priceTotal, volTotal float64
	for _, r := range records {
		priceTotal += r.PriceChange30DayPct
		volTotal += r.VolumeChangePrePost30DayPct
		if r.PriceChange30DayPct > best.PriceChange30DayPct {
			best = r
		}
		if r.PriceChange30DayPct < worst.PriceChange30DayPct {
			worst = r
		}
	}
	n := float64(len(records))
	sum.AvgPriceChange30DayPct = priceTotal / n
	sum.AvgVolumeChangePct = volTotal / n
	sum.Best = best.ReportID
	sum.Worst = worst.ReportID
	return sum
}
