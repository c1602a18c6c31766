package models

import "time"

// MetricsRecord is the flat performance record of one published report.
type MetricsRecord struct {
	ReportID                    string    `json:"report_id"`
	ReportTitle                 string    `json:"report_title"`
	PublicationDate             time.Time `json:"publication_date"`
	ReportType                  string    `json:"report_type"`
	PriceOnRelease              float64   `json:"price_on_release"`
	PriceAfter30Days            float64   `json:"price_after_30_days"`
	PriceChange30DayPct         float64   `json:"price_change_30_day_pct"`
	VolumeChangePrePost30DayPct float64   `json:"volume_change_pre_post_30_day_pct"`
	AvgVolumePre30Days          float64   `json:"avg_volume_pre_30_days"`
	AvgVolumePost30Days         float64   `json:"avg_volume_post_30_days"`
	AvgVolumePost5Days          float64   `json:"avg_volume_post_5_days"`
	AvgVolumePost10Days         float64   `json:"avg_volume_post_10_days"`
	PriceChange5DayPct          float64   `json:"price_change_5_day_pct"`
	PriceChange10DayPct         float64   `json:"price_change_10_day_pct"`
	PriceChange15DayPct         float64   `json:"price_change_15_day_pct"`
	AnnualizedVolatilityPct     float64   `json:"annualized_volatility_pct"`
}

// HasPublicationDate reports whether the record carries a usable anchor date.
func (r MetricsRecord) HasPublicationDate() bool {
	return !r.PublicationDate.IsZero()
}

// CoverageWindowStats compares mean price and volume before and after an anchor date.
// A nil percentage means the change could not be computed (zero base), which is
// different from a real 0% change.
type CoverageWindowStats struct {
	WindowDays      int       `json:"window_days"`
	AnchorDate      time.Time `json:"anchor_date"`
	BeforePoints    int       `json:"before_points"`
	AfterPoints     int       `json:"after_points"`
	AvgVolumeBefore float64   `json:"avg_volume_before"`
	AvgVolumeAfter  float64   `json:"avg_volume_after"`
	VolumeChangePct *float64  `json:"volume_change_pct"`
	AvgPriceBefore  float64   `json:"avg_price_before"`
	AvgPriceAfter   float64   `json:"avg_price_after"`
	PriceChangePct  *float64  `json:"price_change_pct"`
}
