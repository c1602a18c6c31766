package chart

import (
	"github.com/shopspring/decimal"

	"frc-research/internal/models"
	"frc-research/internal/reconcile"
)

// fromFigure keeps a pre-built renderer figure untouched and extracts points from
// its traces when it can, so coverage statistics still work. The price trace is the
// first line/scatter trace, the volume trace the first bar trace.
func fromFigure(fig map[string]any, currency string) (*models.ChartSeries, error) {
	traces, _ := fig["data"].([]any)

	var priceTrace, volumeTrace map[string]any
	for _, tr := range traces {
		m, ok := tr.(map[string]any)
		if !ok {
			continue
		}
		kind, _ := reconcile.String(m, []string{"type"})
		switch {
		case kind == "bar" && volumeTrace == nil:
			volumeTrace = m
		case kind != "bar" && priceTrace == nil:
			priceTrace = m
		}
	}

	var points []models.PricePoint
	if priceTrace != nil {
		points = pointsFromTraces(priceTrace, volumeTrace)
		if checkOrder(points) != nil || !anyPriced(points) {
			points = nil
		}
	}
	return newSeries(points, currency, fig), nil
}

func pointsFromTraces(price, volume map[string]any) []models.PricePoint {
	xs, _ := price["x"].([]any)
	ys, _ := price["y"].([]any)
	var vols []any
	if volume != nil {
		vols, _ = volume["y"].([]any)
	}

	n := len(xs)
	if len(ys) < n {
		n = len(ys)
	}
	points := make([]models.PricePoint, 0, n)
	for i := 0; i < n; i++ {
		date, ok := reconcile.AsTime(xs[i])
		if !ok {
			continue
		}
		point := models.PricePoint{Date: date}
		if p, ok := reconcile.AsFloat(ys[i]); ok {
			point.Price = decimal.NewNullDecimal(decimal.NewFromFloat(p))
		}
		if i < len(vols) {
			v, _ := reconcile.AsFloat(vols[i])
			point.Volume = toVolume(v)
		}
		points = append(points, point)
	}
	return points
}

// Figure returns the renderer payload for s: a price line on the left axis and
// volume bars on a separate panel sharing the date axis. A passthrough figure is
// returned as received.
func Figure(s *models.ChartSeries) map[string]any {
	if s == nil {
		return nil
	}
	if s.IsPassthrough() {
		return s.Figure
	}

	dates := s.Dates()
	return map[string]any{
		"data": []any{
			map[string]any{
				"type":  "scatter",
				"mode":  "lines",
				"name":  s.PriceAxis.Title,
				"x":     dates,
				"y":     s.Prices(),
				"yaxis": s.PriceAxis.ID,
			},
			map[string]any{
				"type":  "bar",
				"name":  s.VolumeAxis.Title,
				"x":     dates,
				"y":     s.Volumes(),
				"yaxis": s.VolumeAxis.ID,
			},
		},
		"layout": map[string]any{
			"xaxis": map[string]any{"type": "date"},
			"yaxis": map[string]any{
				"title":  s.PriceAxis.Title,
				"side":   s.PriceAxis.Side,
				"domain": s.PriceAxis.Domain,
			},
			"yaxis2": map[string]any{
				"title":  s.VolumeAxis.Title,
				"side":   s.VolumeAxis.Side,
				"domain": s.VolumeAxis.Domain,
			},
			"showlegend": true,
		},
	}
}

// Summary is the headline numbers shown above a chart.
type Summary struct {
	Points     int      `json:"points"`
	FirstDate  string   `json:"first_date"`
	LastDate   string   `json:"last_date"`
	FirstPrice float64  `json:"first_price"`
	LastPrice  float64  `json:"last_price"`
	MinPrice   float64  `json:"min_price"`
	MaxPrice   float64  `json:"max_price"`
	ChangePct  *float64 `json:"change_pct"`
	AvgVolume  float64  `json:"avg_volume"`
}

// Summarize returns headline numbers for s, or nil when s has no priced points.
// Prices come from priced days only; the volume average covers every day.
func Summarize(s *models.ChartSeries) *Summary {
	priced := s.Priced()
	if len(priced) == 0 {
		return nil
	}

	first, last := priced[0].Price.Decimal, priced[len(priced)-1].Price.Decimal
	minP, maxP := first, first
	for _, p := range priced {
		minP = decimal.Min(minP, p.Price.Decimal)
		maxP = decimal.Max(maxP, p.Price.Decimal)
	}
	var volSum int64
	for _, p := range s.Points {
		volSum += p.Volume
	}

	sum := &Summary{
		Points:     len(s.Points),
		FirstDate:  s.Points[0].Date.Format(models.DateLayout),
		LastDate:   s.Points[len(s.Points)-1].Date.Format(models.DateLayout),
		FirstPrice: first.InexactFloat64(),
		LastPrice:  last.InexactFloat64(),
		MinPrice:   minP.InexactFloat64(),
		MaxPrice:   maxP.InexactFloat64(),
		AvgVolume:  float64(volSum) / float64(len(s.Points)),
	}
	if !first.IsZero() {
		pct := last.Sub(first).Div(first).Mul(decimal.NewFromInt(100)).InexactFloat64()
		sum.ChangePct = &pct
	}
	return sum
}
