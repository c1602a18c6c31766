// Package chart converts raw price/volume payloads into aligned chart series.
package chart

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"frc-research/internal/errors"
	"frc-research/internal/models"
	"frc-research/internal/reconcile"
)

// Field priorities for point records.
var (
	pricePaths  = []string{"price", "close", "high", "low", "open"}
	volumePaths = []string{"volume", "vol"}
	datePaths   = []string{"date", "Date", "timestamp", "time"}
)

// The volume panel sits below the price panel without overlapping it.
var (
	priceDomain  = [2]float64{0.3, 1}
	volumeDomain = [2]float64{0, 0.25}
)

// envelopeKeys wrap a point list in a plain object that is not a renderer figure.
var envelopeKeys = []string{"data", "prices", "points", "series", "history"}

// ToChartSeries builds a chart series from raw. It returns (nil, nil) when raw is
// absent, empty, or no point carries a usable price; callers render a "no chart
// data" state. Every dated point is kept, so a day without a price still has its
// volume bar. A renderer figure (an object with both "data" and "layout") passes
// through unchanged. Duplicate or descending dates return a *errors.DataError.
func ToChartSeries(raw any, currency string) (*models.ChartSeries, error) {
	if currency == "" {
		currency = models.CurrencyUSD
	}

	if obj, ok := raw.(map[string]any); ok {
		if isFigure(obj) {
			return fromFigure(obj, currency)
		}
		list, ok := reconcile.Slice(obj, envelopeKeys)
		if !ok {
			return nil, nil
		}
		raw = list
	}

	records, ok := raw.([]any)
	if !ok || len(records) == 0 {
		return nil, nil
	}

	points := make([]models.PricePoint, 0, len(records))
	for _, rec := range records {
		p, ok := toPoint(rec)
		if !ok {
			// Undated records cannot be placed on the axis.
			continue
		}
		points = append(points, p)
	}
	if !anyPriced(points) {
		return nil, nil
	}
	if err := checkOrder(points); err != nil {
		return nil, err
	}

	return newSeries(points, currency, nil), nil
}

func isFigure(obj map[string]any) bool {
	_, hasData := obj["data"].([]any)
	_, hasLayout := obj["layout"]
	return hasData && hasLayout
}

func toPoint(rec any) (models.PricePoint, bool) {
	date, ok := reconcile.Time(rec, datePaths)
	if !ok {
		return models.PricePoint{}, false
	}
	p := models.PricePoint{Date: date}
	if price, ok := reconcile.Float(rec, pricePaths); ok {
		p.Price = decimal.NewNullDecimal(decimal.NewFromFloat(price))
	}
	vol, _ := reconcile.Float(rec, volumePaths)
	p.Volume = toVolume(vol)
	return p, true
}

func anyPriced(points []models.PricePoint) bool {
	for _, p := range points {
		if p.HasPrice() {
			return true
		}
	}
	return false
}

// toVolume clamps v into the int64 range; negative volumes read as zero.
func toVolume(v float64) int64 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= math.MaxInt64:
		return math.MaxInt64
	}
	return int64(v)
}

// checkOrder enforces strictly ascending, unique dates.
func checkOrder(points []models.PricePoint) error {
	for i := 1; i < len(points); i++ {
		prev, cur := points[i-1].Date, points[i].Date
		switch {
		case cur.Equal(prev):
			return errors.NewDataError("chart", "", fmt.Sprintf("duplicate date %s", cur.Format(models.DateLayout)), nil)
		case cur.Before(prev):
			return errors.NewDataError("chart", "", fmt.Sprintf("date %s out of order after %s",
				cur.Format(models.DateLayout), prev.Format(models.DateLayout)), nil)
		}
	}
	return nil
}

func newSeries(points []models.PricePoint, currency string, figure map[string]any) *models.ChartSeries {
	return &models.ChartSeries{
		Currency: currency,
		Points:   points,
		PriceAxis: models.Axis{
			ID:     "y",
			Title:  fmt.Sprintf("Price (%s)", currency),
			Side:   "left",
			Domain: priceDomain,
		},
		VolumeAxis: models.Axis{
			ID:     "y2",
			Title:  "Volume",
			Side:   "right",
			Domain: volumeDomain,
		},
		Figure: figure,
	}
}
