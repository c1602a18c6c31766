// Package view assembles the company page view model from the upstream payloads.
package view

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"frc-research/internal/api"
	"frc-research/internal/chart"
	"frc-research/internal/coverage"
	"frc-research/internal/errors"
	"frc-research/internal/logging"
	"frc-research/internal/metrics"
	"frc-research/internal/models"
	"frc-research/internal/reconcile"
	"frc-research/internal/security"
)

// Fetcher retrieves raw payloads for a ticker. *api.Client implements it.
type Fetcher interface {
	FetchCompany(ctx context.Context, ticker string) (any, error)
	FetchChart(ctx context.Context, ticker string) (any, error)
	FetchMetrics(ctx context.Context, ticker string) (any, error)
	FetchAnalysis(ctx context.Context, ticker string) (any, error)
}

var _ Fetcher = (*api.Client)(nil)

// Loader builds CompanyView values.
type Loader struct {
	fetcher      Fetcher
	table        reconcile.Table
	normalizer   *metrics.Normalizer
	windows      []int
	reportWindow int
	logger       zerolog.Logger
	now          func() time.Time
}

// Option configures a Loader.
type Option func(*Loader)

// WithTable replaces the reconciler path table.
func WithTable(t reconcile.Table) Option {
	return func(l *Loader) {
		if t != nil {
			l.table = t
		}
	}
}

// WithWindows sets the overall coverage windows in trading days.
func WithWindows(windows []int) Option {
	return func(l *Loader) {
		if len(windows) > 0 {
			l.windows = windows
		}
	}
}

// WithReportWindow sets the per-report coverage window in trading days.
func WithReportWindow(days int) Option {
	return func(l *Loader) {
		if days > 0 {
			l.reportWindow = days
		}
	}
}

// WithLogger sets a logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader creates a Loader reading from f.
func NewLoader(f Fetcher, opts ...Option) *Loader {
	l := &Loader{
		fetcher:      f,
		table:        reconcile.DefaultTable(),
		windows:      coverage.StandardWindows,
		reportWindow: coverage.ReportWindowDays,
		logger:       zerolog.Nop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.normalizer = metrics.NewNormalizer(l.table)
	return l
}

// fetchResult holds the outcome of one secondary fetch.
type fetchResult struct {
	kind string
	data any
	err  error
}

// LoadCompanyView loads everything shown on a company page.
//
// Only the company fetch can fail the whole load: a transport failure returns a
// *errors.TransportError and a missing company returns errors.ErrNotFound.
// Chart, metrics and analysis failures leave that part nil and mark its section
// unavailable.
func (l *Loader) LoadCompanyView(ctx context.Context, ticker string) (*models.CompanyView, error) {
	ticker = models.NormalizeTicker(ticker)
	if err := security.ValidateTicker(ticker); err != nil {
		return nil, err
	}
	log := logging.WithOperation(logging.WithTicker(l.logger, ticker), "load_view")

	raw, err := l.fetcher.FetchCompany(ctx, ticker)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.Wrapf(errors.ErrNotFound, "company %s", ticker)
		}
		return nil, err
	}

	company, ok := l.table.Company(ticker, raw)
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "company %s", ticker)
	}

	v := &models.CompanyView{Company: company, LoadedAt: l.now()}

	embeddedChart, hasEmbeddedChart := l.table.EmbeddedChart(raw)
	embeddedAnalysis, hasEmbeddedAnalysis := l.table.EmbeddedAnalysis(raw)
	hasEmbeddedMetrics := l.table.HasEmbeddedMetrics(raw)

	var kinds []string
	if company.DataAvailability.HasChart && !hasEmbeddedChart {
		kinds = append(kinds, api.KindChart)
	}
	if company.DataAvailability.HasMetrics && !hasEmbeddedMetrics {
		kinds = append(kinds, api.KindMetrics)
	}
	if company.DataAvailability.HasAIAnalysis && !hasEmbeddedAnalysis {
		kinds = append(kinds, api.KindAnalysis)
	}
	fetched := l.fetchAll(ctx, ticker, kinds)

	// Chart
	chartRaw, chartErr := embeddedChart, error(nil)
	if r, ok := fetched[api.KindChart]; ok {
		chartRaw, chartErr = r.data, r.err
	}
	v.Sections.Chart = l.buildChart(v, chartRaw, chartErr, log)

	// Metrics
	var separate any
	r, metricsFetched := fetched[api.KindMetrics]
	if metricsFetched && r.err != nil {
		logging.LogSection(log, "metrics", string(models.SectionUnavailable), r.err)
		v.Sections.Metrics = models.SectionUnavailable
	} else {
		if metricsFetched {
			separate = r.data
		}
		source, records := l.normalizer.Normalize(raw, separate)
		v.Metrics = records
		v.MetricsSource = string(source)
		v.Sections.Metrics = stateFor(len(records) > 0)
	}

	// Analysis
	analysisRaw, analysisErr := embeddedAnalysis, error(nil)
	if r, ok := fetched[api.KindAnalysis]; ok {
		analysisRaw, analysisErr = r.data, r.err
	}
	if analysisErr != nil {
		logging.LogSection(log, "analysis", string(models.SectionUnavailable), analysisErr)
		v.Sections.Analysis = models.SectionUnavailable
	} else {
		v.Analysis = l.parseAnalysis(analysisRaw)
		if v.Analysis == nil && analysisRaw != nil {
			logging.LogSection(log, "analysis", string(models.SectionEmpty),
				errors.Wrap(errors.ErrShapeMismatch, "no summary or highlights"))
		}
		v.Sections.Analysis = stateFor(v.Analysis != nil)
	}

	v.ReportDates = coverage.ReportDates(v.Metrics, l.table.ReportDates(raw)...)
	v.Sections.Coverage = l.buildCoverage(v)
	return v, nil
}

// fetchAll runs the requested secondary fetches in parallel and waits for all of
// them to settle.
func (l *Loader) fetchAll(ctx context.Context, ticker string, kinds []string) map[string]fetchResult {
	results := make(map[string]fetchResult, len(kinds))
	if len(kinds) == 0 {
		return results
	}

	resultChan := make(chan fetchResult, len(kinds))
	var wg sync.WaitGroup
	for _, kind := range kinds {
		wg.Add(1)
		go func(kind string) {
			defer wg.Done()
			data, err := l.fetch(ctx, kind, ticker)
			resultChan <- fetchResult{kind: kind, data: data, err: err}
		}(kind)
	}

	// Close channel when all fetches complete
	go func() {
		wg.Wait()
		close(resultChan)
	}()

	for r := range resultChan {
		results[r.kind] = r
	}
	return results
}

func (l *Loader) fetch(ctx context.Context, kind, ticker string) (any, error) {
	switch kind {
	case api.KindChart:
		return l.fetcher.FetchChart(ctx, ticker)
	case api.KindMetrics:
		return l.fetcher.FetchMetrics(ctx, ticker)
	default:
		return l.fetcher.FetchAnalysis(ctx, ticker)
	}
}

func (l *Loader) buildChart(v *models.CompanyView, raw any, fetchErr error, log zerolog.Logger) models.SectionState {
	if fetchErr != nil {
		logging.LogSection(log, "chart", string(models.SectionUnavailable), fetchErr)
		return models.SectionUnavailable
	}

	series, err := chart.ToChartSeries(l.chartPayload(raw), v.Company.Currency)
	if err != nil {
		logging.LogSection(log, "chart", string(models.SectionUnavailable), err)
		return models.SectionUnavailable
	}
	if series == nil && raw != nil {
		logging.LogSection(log, "chart", string(models.SectionEmpty),
			errors.Wrap(errors.ErrShapeMismatch, "no price points"))
	}
	v.Chart = series
	return stateFor(series != nil)
}

func (l *Loader) buildCoverage(v *models.CompanyView) models.SectionState {
	if v.Chart.Len() == 0 {
		if v.Sections.Chart == models.SectionUnavailable {
			return models.SectionUnavailable
		}
		return models.SectionEmpty
	}
	if len(v.ReportDates) == 0 {
		if v.Sections.Metrics == models.SectionUnavailable {
			return models.SectionUnavailable
		}
		return models.SectionEmpty
	}

	overall, err := coverage.OverallImpact(v.Chart, v.ReportDates, l.windows)
	if err == nil {
		v.Coverage = overall
	}
	v.ReportCoverage = coverage.PerReport(v.Chart, metrics.Dated(v.Metrics), l.reportWindow)
	return stateFor(len(v.Coverage) > 0)
}

func stateFor(present bool) models.SectionState {
	if present {
		return models.SectionOK
	}
	return models.SectionEmpty
}
