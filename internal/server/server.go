// Package server exposes company views as read-only JSON endpoints for the
// presentation layer.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"frc-research/internal/chart"
	"frc-research/internal/coverage"
	"frc-research/internal/errors"
	"frc-research/internal/logging"
	"frc-research/internal/metrics"
	"frc-research/internal/models"
	"frc-research/internal/resilience"
)

// ViewLoader loads a company view. *view.Loader implements it.
type ViewLoader interface {
	LoadCompanyView(ctx context.Context, ticker string) (*models.CompanyView, error)
}

// HealthReporter reports upstream health. *api.Client implements it.
type HealthReporter interface {
	Healthy() bool
	BreakerStats() []resilience.CircuitBreakerStats
}

// Options configures the HTTP server.
type Options struct {
	Addr           string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// Server serves the JSON API.
type Server struct {
	loader ViewLoader
	health HealthReporter
	router *mux.Router
	opts   Options
	logger zerolog.Logger
}

// New creates a Server. health may be nil.
func New(loader ViewLoader, health HealthReporter, opts Options, logger zerolog.Logger) *Server {
	s := &Server{
		loader: loader,
		health: health,
		router: mux.NewRouter(),
		opts:   opts,
		logger: logger.With().Str("component", "server").Logger(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.logRequests)

	s.router.HandleFunc("/healthz", s.healthHandler).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/companies/{ticker}").Subrouter()
	api.HandleFunc("/view", s.viewHandler).Methods(http.MethodGet)
	api.HandleFunc("/chart", s.chartHandler).Methods(http.MethodGet)
	api.HandleFunc("/metrics", s.metricsHandler).Methods(http.MethodGet)
	api.HandleFunc("/coverage", s.coverageHandler).Methods(http.MethodGet)
}

// Handler returns the router wrapped with CORS handling.
func (s *Server) Handler() http.Handler {
	origins := s.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(s.router)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.opts.Addr).Msg("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log := s.logger.With().Str("method", r.Method).Str("path", r.URL.Path).Logger()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(logging.WithLogger(r.Context(), log)))
		log.Debug().
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// breakerHealth is one upstream breaker as reported by /healthz.
type breakerHealth struct {
	resilience.CircuitBreakerStats
	FailureRate float64 `json:"failure_rate"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	body := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if s.health != nil {
		if !s.health.Healthy() {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		stats := s.health.BreakerStats()
		breakers := make([]breakerHealth, len(stats))
		for i, st := range stats {
			breakers[i] = breakerHealth{CircuitBreakerStats: st, FailureRate: st.FailureRate()}
		}
		body["breakers"] = breakers
	}
	body["status"] = status
	respondWithJSON(w, code, body)
}

func (s *Server) load(w http.ResponseWriter, r *http.Request) (*models.CompanyView, bool) {
	ticker := mux.Vars(r)["ticker"]
	v, err := s.loader.LoadCompanyView(r.Context(), ticker)
	if err != nil {
		s.respondWithError(w, r, err)
		return nil, false
	}
	return v, true
}

func (s *Server) viewHandler(w http.ResponseWriter, r *http.Request) {
	v, ok := s.load(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, v)
}

type chartResponse struct {
	Ticker  string              `json:"ticker"`
	State   models.SectionState `json:"state"`
	Figure  map[string]any      `json:"figure"`
	Summary *chart.Summary      `json:"summary"`
}

func (s *Server) chartHandler(w http.ResponseWriter, r *http.Request) {
	v, ok := s.load(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, chartResponse{
		Ticker:  v.Company.Ticker,
		State:   v.Sections.Chart,
		Figure:  chart.Figure(v.Chart),
		Summary: chart.Summarize(v.Chart),
	})
}

type metricsResponse struct {
	Ticker  string                 `json:"ticker"`
	State   models.SectionState    `json:"state"`
	Source  string                 `json:"source"`
	Records []models.MetricsRecord `json:"records"`
	Summary *metrics.Summary       `json:"summary"`
}

func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	v, ok := s.load(w, r)
	if !ok {
		return
	}
	records := v.Metrics
	if timeline, _ := strconv.ParseBool(r.URL.Query().Get("timeline")); timeline && records != nil {
		records = metrics.Timeline(records)
	}
	respondWithJSON(w, http.StatusOK, metricsResponse{
		Ticker:  v.Company.Ticker,
		State:   v.Sections.Metrics,
		Source:  v.MetricsSource,
		Records: records,
		Summary: metrics.Summarize(v.Metrics),
	})
}

type coverageResponse struct {
	Ticker  string                       `json:"ticker"`
	State   models.SectionState          `json:"state"`
	Windows []models.CoverageWindowStats `json:"windows"`
	Reports []models.ReportCoverage      `json:"reports,omitempty"`
}

func (s *Server) coverageHandler(w http.ResponseWriter, r *http.Request) {
	window := 0
	if raw := r.URL.Query().Get("window"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.respondWithError(w, r, errors.NewValidationError("window", raw, "must be a positive number of days"))
			return
		}
		window = n
	}

	v, ok := s.load(w, r)
	if !ok {
		return
	}

	resp := coverageResponse{
		Ticker:  v.Company.Ticker,
		State:   v.Sections.Coverage,
		Windows: v.Coverage,
		Reports: v.ReportCoverage,
	}
	if window > 0 {
		stats, err := coverage.OverallImpact(v.Chart, v.ReportDates, []int{window})
		if err != nil {
			s.respondWithError(w, r, err)
			return
		}
		resp.Windows = stats
		resp.Reports = coverage.PerReport(v.Chart, metrics.Dated(v.Metrics), window)
		resp.State = models.SectionOK
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var validation *errors.ValidationError
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	case errors.IsTransport(err):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		logger := logging.FromContext(r.Context())
		logger.Error().Err(err).Int("status", code).Msg("Request failed")
	}
	respondWithJSON(w, code, map[string]string{"error": err.Error()})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
