package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frc-research/internal/chart"
	"frc-research/internal/errors"
	"frc-research/internal/models"
	"frc-research/internal/resilience"
)

type fakeLoader struct {
	views map[string]*models.CompanyView
	err   error
}

func (f *fakeLoader) LoadCompanyView(ctx context.Context, ticker string) (*models.CompanyView, error) {
	if f.err != nil {
		return nil, f.err
	}
	ticker = models.NormalizeTicker(ticker)
	if ticker == "" {
		return nil, errors.NewValidationError("ticker", ticker, "ticker is required")
	}
	v, ok := f.views[ticker]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "company %s", ticker)
	}
	return v, nil
}

type fakeHealth struct{ healthy bool }

func (f fakeHealth) Healthy() bool { return f.healthy }

func (f fakeHealth) BreakerStats() []resilience.CircuitBreakerStats {
	return []resilience.CircuitBreakerStats{{Name: "company", TotalRequests: 4, TotalFailures: 1}}
}

func acmeView(t *testing.T) *models.CompanyView {
	t.Helper()
	var records []any
	prices := []int{10, 10, 10, 12, 12, 12}
	for i, p := range prices {
		records = append(records, map[string]any{
			"date":   time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC).Format(models.DateLayout),
			"close":  json.Number(strconv.Itoa(p)),
			"volume": json.Number("100"),
		})
	}
	series, err := chart.ToChartSeries(records, models.CurrencyCAD)
	require.NoError(t, err)
	require.NotNil(t, series)

	return &models.CompanyView{
		Company: models.CanonicalCompany{Ticker: "ACME", Name: "Acme Mining"},
		Chart:   series,
		Metrics: []models.MetricsRecord{
			{ReportID: "r2", PublicationDate: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), PriceChange30DayPct: 4},
			{ReportID: "r1", PublicationDate: time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), PriceChange30DayPct: 2},
		},
		MetricsSource: "metrics_endpoint",
		ReportDates: []time.Time{
			time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		},
		Sections: models.Sections{
			Chart:    models.SectionOK,
			Metrics:  models.SectionOK,
			Analysis: models.SectionEmpty,
			Coverage: models.SectionOK,
		},
	}
}

func newTestServer(t *testing.T, loader ViewLoader, health HealthReporter) *httptest.Server {
	t.Helper()
	s := New(loader, health, Options{AllowedOrigins: []string{"http://localhost:3000"}}, zerolog.Nop())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestViewEndpoint(t *testing.T) {
	ts := newTestServer(t, &fakeLoader{views: map[string]*models.CompanyView{"ACME": acmeView(t)}}, nil)

	var body map[string]any
	resp := getJSON(t, ts.URL+"/api/companies/acme/view", &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	company := body["company"].(map[string]any)
	assert.Equal(t, "ACME", company["ticker"])
	assert.Equal(t, "ok", body["sections"].(map[string]any)["chart"])
}

func TestChartEndpoint(t *testing.T) {
	ts := newTestServer(t, &fakeLoader{views: map[string]*models.CompanyView{"ACME": acmeView(t)}}, nil)

	var body struct {
		State   string         `json:"state"`
		Figure  map[string]any `json:"figure"`
		Summary chart.Summary  `json:"summary"`
	}
	resp := getJSON(t, ts.URL+"/api/companies/ACME/chart", &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body.State)
	assert.Len(t, body.Figure["data"], 2)
	assert.Equal(t, 6, body.Summary.Points)
	assert.Equal(t, 12.0, body.Summary.MaxPrice)
}

func TestMetricsEndpoint_Timeline(t *testing.T) {
	ts := newTestServer(t, &fakeLoader{views: map[string]*models.CompanyView{"ACME": acmeView(t)}}, nil)

	var body struct {
		Source  string                 `json:"source"`
		Records []models.MetricsRecord `json:"records"`
	}
	getJSON(t, ts.URL+"/api/companies/ACME/metrics", &body)
	require.Len(t, body.Records, 2)
	assert.Equal(t, "r2", body.Records[0].ReportID)
	assert.Equal(t, "metrics_endpoint", body.Source)

	getJSON(t, ts.URL+"/api/companies/ACME/metrics?timeline=true", &body)
	require.Len(t, body.Records, 2)
	assert.Equal(t, "r1", body.Records[0].ReportID)
}

func TestCoverageEndpoint_Window(t *testing.T) {
	ts := newTestServer(t, &fakeLoader{views: map[string]*models.CompanyView{"ACME": acmeView(t)}}, nil)

	var body struct {
		State   string                       `json:"state"`
		Windows []models.CoverageWindowStats `json:"windows"`
		Reports []models.ReportCoverage      `json:"reports"`
	}
	resp := getJSON(t, ts.URL+"/api/companies/ACME/coverage?window=3", &body)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body.Windows, 1)
	w := body.Windows[0]
	assert.Equal(t, 3, w.WindowDays)
	assert.Equal(t, 10.0, w.AvgPriceBefore)
	assert.Equal(t, 12.0, w.AvgPriceAfter)
	require.NotNil(t, w.PriceChangePct)
	assert.InDelta(t, 20.0, *w.PriceChangePct, 1e-9)
	require.NotNil(t, w.VolumeChangePct)
	assert.Equal(t, 0.0, *w.VolumeChangePct)
	assert.Len(t, body.Reports, 2)
}

func TestCoverageEndpoint_Errors(t *testing.T) {
	undated := acmeView(t)
	undated.Metrics = []models.MetricsRecord{{ReportID: "r1"}}

	ts := newTestServer(t, &fakeLoader{views: map[string]*models.CompanyView{
		"ACME":    acmeView(t),
		"UNDATED": undated,
	}}, nil)

	tests := []struct {
		path string
		want int
	}{
		{"/api/companies/ACME/coverage?window=abc", http.StatusBadRequest},
		{"/api/companies/ACME/coverage?window=0", http.StatusBadRequest},
		{"/api/companies/UNDATED/coverage?window=5", http.StatusUnprocessableEntity},
		{"/api/companies/NOPE/coverage", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var body map[string]string
			resp := getJSON(t, ts.URL+tt.path, &body)
			assert.Equal(t, tt.want, resp.StatusCode)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", errors.Wrapf(errors.ErrNotFound, "company X"), http.StatusNotFound},
		{"transport", errors.NewTransportError("company", "X", "/companies/X", 500, errors.ErrTransport), http.StatusBadGateway},
		{"breaker open", errors.NewTransportError("company", "X", "", 0, errors.ErrCircuitOpen), http.StatusBadGateway},
		{"gap", errors.NewComputationGapError("price", 30, "no data"), http.StatusUnprocessableEntity},
		{"validation", errors.NewValidationError("ticker", "", "required"), http.StatusBadRequest},
		{"other", errors.ErrShapeMismatch, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, &fakeLoader{err: tt.err}, nil)
			resp := getJSON(t, ts.URL+"/api/companies/X/view", nil)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestFailedRequestsLogRequestContext(t *testing.T) {
	var buf bytes.Buffer
	// Info level keeps the post-response access log out of buf.
	s := New(&fakeLoader{err: errors.ErrShapeMismatch}, nil, Options{}, zerolog.New(&buf).Level(zerolog.InfoLevel))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	resp := getJSON(t, ts.URL+"/api/companies/ACME/view", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	logs := buf.String()
	assert.Contains(t, logs, "Request failed")
	assert.Contains(t, logs, `"path":"/api/companies/ACME/view"`)
	assert.Contains(t, logs, `"status":500`)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, &fakeLoader{}, fakeHealth{healthy: true})
	var body map[string]any
	resp := getJSON(t, ts.URL+"/healthz", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	breakers := body["breakers"].([]any)
	require.Len(t, breakers, 1)
	breaker := breakers[0].(map[string]any)
	assert.Equal(t, "company", breaker["name"])
	assert.Equal(t, 25.0, breaker["failure_rate"])

	degraded := newTestServer(t, &fakeLoader{}, fakeHealth{healthy: false})
	resp = getJSON(t, degraded.URL+"/healthz", &body)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "degraded", body["status"])
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, &fakeLoader{}, nil)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/companies/ACME/view", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}
