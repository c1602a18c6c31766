package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date format used on chart axes.
const DateLayout = "2006-01-02"

// PricePoint is one trading day of a price series. A day reported without a
// usable price keeps its slot with an invalid Price so the volume bar survives.
type PricePoint struct {
	Date   time.Time           `json:"date"`
	Price  decimal.NullDecimal `json:"price"`
	Volume int64               `json:"volume"`
}

// HasPrice reports whether the day carries a price.
func (p PricePoint) HasPrice() bool {
	return p.Price.Valid
}

// Axis describes one axis of the rendered chart.
type Axis struct {
	ID     string     `json:"id"`
	Title  string     `json:"title"`
	Side   string     `json:"side"`
	Domain [2]float64 `json:"domain"`
}

// ChartSeries is an aligned price line and volume bar series over one date axis.
// Points are ascending by date with unique dates.
type ChartSeries struct {
	Currency   string         `json:"currency"`
	Points     []PricePoint   `json:"points"`
	PriceAxis  Axis           `json:"price_axis"`
	VolumeAxis Axis           `json:"volume_axis"`
	Figure     map[string]any `json:"figure,omitempty"`
}

// Len returns the number of points.
func (s *ChartSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Points)
}

// Dates returns the shared date axis.
func (s *ChartSeries) Dates() []string {
	out := make([]string, s.Len())
	for i := range out {
		out[i] = s.Points[i].Date.Format(DateLayout)
	}
	return out
}

// Prices returns the price line values. Days without a price are nil so the
// renderer draws a break in the line.
func (s *ChartSeries) Prices() []*float64 {
	out := make([]*float64, s.Len())
	for i := range out {
		if p := s.Points[i].Price; p.Valid {
			f := p.Decimal.InexactFloat64()
			out[i] = &f
		}
	}
	return out
}

// Priced returns the points that carry a price.
func (s *ChartSeries) Priced() []PricePoint {
	if s == nil {
		return nil
	}
	var out []PricePoint
	for _, p := range s.Points {
		if p.HasPrice() {
			out = append(out, p)
		}
	}
	return out
}

// Volumes returns the volume bar values.
func (s *ChartSeries) Volumes() []int64 {
	out := make([]int64, s.Len())
	for i := range out {
		out[i] = s.Points[i].Volume
	}
	return out
}

// IsPassthrough reports whether the series carries a pre-built renderer figure.
func (s *ChartSeries) IsPassthrough() bool {
	return s != nil && s.Figure != nil
}
