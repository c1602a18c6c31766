// Package coverage measures how price and volume moved around report publication.
//
// Each window compares the arithmetic mean of the last N trading days before an
// anchor date with the first N trading days on or after it. This is a simple-mean
// comparison only: there is no significance testing, no seasonality adjustment and
// no control for market-wide moves, so a change should be read as descriptive.
package coverage

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"frc-research/internal/errors"
	"frc-research/internal/models"
)

// StandardWindows are the trading-day windows reported for every company.
var StandardWindows = []int{5, 10, 15, 30, 90}

// ReportWindowDays is the window used for per-report impact.
const ReportWindowDays = 30

var hundred = decimal.NewFromInt(100)

// ComputeWindowStats splits series at anchor and compares the windowDays points on
// each side. An empty side returns a *errors.ComputationGapError, never a zero
// change. A zero mean on the before side leaves the matching percentage nil.
func ComputeWindowStats(series *models.ChartSeries, anchor time.Time, windowDays int) (*models.CoverageWindowStats, error) {
	if windowDays <= 0 {
		return nil, errors.NewComputationGapError("window stats", windowDays, "window must be positive")
	}
	if series.Len() == 0 {
		return nil, errors.NewComputationGapError("window stats", windowDays, "no price data")
	}

	points := series.Points
	split := sort.Search(len(points), func(i int) bool {
		return !points[i].Date.Before(anchor)
	})

	start := split - windowDays
	if start < 0 {
		start = 0
	}
	end := split + windowDays
	if end > len(points) {
		end = len(points)
	}
	before, after := points[start:split], points[split:end]

	switch {
	case len(before) == 0:
		return nil, errors.NewComputationGapError("window stats", windowDays, "no trading days before anchor")
	case len(after) == 0:
		return nil, errors.NewComputationGapError("window stats", windowDays, "no trading days on or after anchor")
	}

	priceBefore, volBefore := means(before)
	priceAfter, volAfter := means(after)

	return &models.CoverageWindowStats{
		WindowDays:      windowDays,
		AnchorDate:      anchor,
		BeforePoints:    len(before),
		AfterPoints:     len(after),
		AvgVolumeBefore: volBefore.InexactFloat64(),
		AvgVolumeAfter:  volAfter.InexactFloat64(),
		VolumeChangePct: pctChange(volBefore, volAfter),
		AvgPriceBefore:  priceBefore.InexactFloat64(),
		AvgPriceAfter:   priceAfter.InexactFloat64(),
		PriceChangePct:  pctChange(priceBefore, priceAfter),
	}, nil
}

// means averages volume over every day and price over priced days only. A side
// with no priced day has a zero price mean, which leaves the price change nil.
func means(points []models.PricePoint) (price, volume decimal.Decimal) {
	var priced int64
	for _, p := range points {
		if p.HasPrice() {
			price = price.Add(p.Price.Decimal)
			priced++
		}
		volume = volume.Add(decimal.NewFromInt(p.Volume))
	}
	if priced > 0 {
		price = price.Div(decimal.NewFromInt(priced))
	}
	return price, volume.Div(decimal.NewFromInt(int64(len(points))))
}

func pctChange(before, after decimal.Decimal) *float64 {
	if before.IsZero() {
		return nil
	}
	pct := after.Sub(before).Div(before).Mul(hundred).Round(6).InexactFloat64()
	return &pct
}
