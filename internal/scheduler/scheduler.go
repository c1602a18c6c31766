// Package scheduler refreshes a watchlist of companies on a cron schedule and
// stores a snapshot of each refreshed view.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"frc-research/internal/logging"
	"frc-research/internal/models"
	"frc-research/internal/performance"
	"frc-research/internal/store"
)

// ViewLoader loads a company view. *view.Loader implements it.
type ViewLoader interface {
	LoadCompanyView(ctx context.Context, ticker string) (*models.CompanyView, error)
}

// SnapshotSink persists refreshed views. store.DataStore implements it.
type SnapshotSink interface {
	SaveSnapshot(ctx context.Context, view *models.CompanyView) (*store.Snapshot, error)
	SaveMetrics(ctx context.Context, ticker string, records []models.MetricsRecord) error
	SetLastSync(ticker string, t time.Time) error
}

// TickerResult is the outcome of refreshing one ticker.
type TickerResult struct {
	Ticker     string          `json:"ticker"`
	SnapshotID string          `json:"snapshot_id,omitempty"`
	Sections   models.Sections `json:"sections"`
	Duration   time.Duration   `json:"duration"`
	Err        error           `json:"-"`
}

// RunResult summarizes one refresh of the whole watchlist.
type RunResult struct {
	StartedAt time.Time      `json:"started_at"`
	Results   []TickerResult `json:"results"`
}

// Failed returns the number of tickers that could not be refreshed.
func (r RunResult) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}

// Watcher refreshes tickers on a schedule.
type Watcher struct {
	cron    *cron.Cron
	loader  ViewLoader
	sink    SnapshotSink
	tickers []string
	workers int
	logger  zerolog.Logger

	mu   sync.Mutex
	last *RunResult
}

// NewWatcher creates a Watcher. sink may be nil, in which case views are loaded
// but not stored.
func NewWatcher(loader ViewLoader, sink SnapshotSink, tickers []string, workers int, logger zerolog.Logger) *Watcher {
	if workers <= 0 {
		workers = 1
	}
	normalized := make([]string, 0, len(tickers))
	seen := make(map[string]bool, len(tickers))
	for _, t := range tickers {
		t = models.NormalizeTicker(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		normalized = append(normalized, t)
	}

	return &Watcher{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger{logger}),
			cron.SkipIfStillRunning(cronLogger{logger}),
		)),
		loader:  loader,
		sink:    sink,
		tickers: normalized,
		workers: workers,
		logger:  logging.WithOperation(logger, "watch"),
	}
}

// Tickers returns the normalized watchlist.
func (w *Watcher) Tickers() []string {
	return append([]string(nil), w.tickers...)
}

// Register schedules a refresh of the watchlist. ctx bounds each run.
func (w *Watcher) Register(ctx context.Context, schedule cron.Schedule) {
	w.cron.Schedule(schedule, cron.FuncJob(func() {
		res := w.RefreshAll(ctx)
		w.logger.Info().
			Int("tickers", len(res.Results)).
			Int("failed", res.Failed()).
			Msg("Watchlist refreshed")
	}))
}

// Start starts the cron scheduler.
func (w *Watcher) Start() {
	w.cron.Start()
	w.logger.Info().Strs("tickers", w.tickers).Msg("Scheduler started")
}

// Stop stops the scheduler and waits for a running refresh to finish.
func (w *Watcher) Stop() {
	<-w.cron.Stop().Done()
	w.logger.Info().Msg("Scheduler stopped")
}

// Next returns the next scheduled run, or the zero time when nothing is scheduled.
func (w *Watcher) Next() time.Time {
	entries := w.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// LastRun returns the result of the most recent refresh, if any.
func (w *Watcher) LastRun() *RunResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// RefreshAll loads every ticker on a bounded worker pool and stores the views.
// Results are in watchlist order.
func (w *Watcher) RefreshAll(ctx context.Context) RunResult {
	run := RunResult{StartedAt: time.Now()}

	pool := performance.NewWorkerPool(w.workers)
	pool.Start()
	defer pool.Stop()

	results := make(chan TickerResult, len(w.tickers))
	var wg sync.WaitGroup
	for _, ticker := range w.tickers {
		wg.Add(1)
		go func(ticker string) {
			defer wg.Done()
			var res TickerResult
			err := pool.SubmitWait(ctx, func() {
				res = w.refresh(ctx, ticker)
			})
			if err != nil {
				res = TickerResult{Ticker: ticker, Err: err}
			}
			results <- res
		}(ticker)
	}

	// Close channel when all refreshes complete
	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		run.Results = append(run.Results, res)
	}
	order := make(map[string]int, len(w.tickers))
	for i, t := range w.tickers {
		order[t] = i
	}
	sort.Slice(run.Results, func(i, j int) bool {
		return order[run.Results[i].Ticker] < order[run.Results[j].Ticker]
	})

	w.mu.Lock()
	w.last = &run
	w.mu.Unlock()
	return run
}

func (w *Watcher) refresh(ctx context.Context, ticker string) TickerResult {
	start := time.Now()
	log := logging.WithTicker(w.logger, ticker)
	res := TickerResult{Ticker: ticker}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	v, err := w.loader.LoadCompanyView(ctx, ticker)
	if err != nil {
		log.Error().Err(err).Msg("Refresh failed")
		res.Err = err
		res.Duration = time.Since(start)
		return res
	}
	res.Sections = v.Sections

	if w.sink != nil {
		snap, err := w.sink.SaveSnapshot(ctx, v)
		if err != nil {
			res.Err = fmt.Errorf("save snapshot: %w", err)
			res.Duration = time.Since(start)
			return res
		}
		res.SnapshotID = snap.ID
		logging.LogSnapshot(log, snap.ID, ticker)

		if len(v.Metrics) > 0 {
			if err := w.sink.SaveMetrics(ctx, ticker, v.Metrics); err != nil {
				log.Warn().Err(err).Msg("Failed to save metrics history")
			}
		}
		if err := w.sink.SetLastSync(ticker, v.LoadedAt); err != nil {
			log.Warn().Err(err).Msg("Failed to record sync time")
		}
	}

	res.Duration = time.Since(start)
	return res
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
