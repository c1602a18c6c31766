package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frc-research/internal/models"
	"frc-research/internal/store"
)

const companyBody = `{"company":{"profile":{"name":"Acme Mining","ticker":"ACME","exchange":"TSXV"},
	"reports_count":1,
	"data_available":{"has_chart":true,"has_metrics":true,"has_ai_analysis":false}},
	"status":"success"}`

const chartBody = `[
	{"date":"2024-01-01","close":10,"volume":100},
	{"date":"2024-01-02","close":10,"volume":100},
	{"date":"2024-01-03","close":12,"volume":300},
	{"date":"2024-01-04","close":12,"volume":300}]`

const metricsBody = `{"metrics":[{"report_id":"r1","report_title":"Initiation","publication_date":"2024-01-03"}]}`

// newUpstream serves the ACME company and 404 for everything else.
func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	bodies := map[string]string{
		"/companies/ACME":         companyBody,
		"/companies/ACME/chart":   chartBody,
		"/companies/ACME/metrics": metricsBody,
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := bodies[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

// setup writes a config directory pointing at upstream with a temp store.
func setup(t *testing.T, upstream string) string {
	t.Helper()
	dir := t.TempDir()
	cfg := fmt.Sprintf(`[api]
base_url = %q
timeout = "5s"
rate_limit = 0.0

[logging]
level = "error"
console = false

[store]
enabled = true
path = %q

[watch]
tickers = ["ACME", "NOPE"]
`, upstream, filepath.Join(dir, "snapshots.db"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(cfg), 0644))

	for _, k := range []string{"FRC_API_BASE_URL", "FRC_API_TOKEN", "FRC_LOG_LEVEL"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	return dir
}

func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", dir}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, t.TempDir(), "version", "--json")
	require.NoError(t, err)

	var v map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, Version, v["version"])
}

func TestConfigPathAndValidate(t *testing.T) {
	dir := setup(t, "http://127.0.0.1:1")

	out, err := run(t, dir, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.toml"), strings.TrimSpace(out))

	out, err = run(t, dir, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")
}

func TestConfigShow_RedactsToken(t *testing.T) {
	dir := setup(t, "http://127.0.0.1:1")
	t.Setenv("FRC_API_TOKEN", "secret-token")

	out, err := run(t, dir, "config", "show", "--json")
	require.NoError(t, err)
	assert.NotContains(t, out, "secret-token")
	assert.Contains(t, out, "secr****oken")
}

func TestViewCommand_JSON(t *testing.T) {
	upstream := newUpstream(t)
	dir := setup(t, upstream.URL)

	out, err := run(t, dir, "view", "acme", "--json")
	require.NoError(t, err)

	var v models.CompanyView
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "ACME", v.Company.Ticker)
	assert.Equal(t, models.CurrencyCAD, v.Company.Currency)
	assert.Equal(t, models.SectionOK, v.Sections.Chart)
	assert.Equal(t, models.SectionOK, v.Sections.Metrics)
	assert.Equal(t, models.SectionEmpty, v.Sections.Analysis)
	require.Len(t, v.Metrics, 1)
	assert.Equal(t, "r1", v.Metrics[0].ReportID)
}

func TestViewCommand_Text(t *testing.T) {
	upstream := newUpstream(t)
	dir := setup(t, upstream.URL)

	out, err := run(t, dir, "view", "ACME")
	require.NoError(t, err)
	assert.Contains(t, out, "Acme Mining")
	assert.Contains(t, out, "Coverage Impact")
}

func TestViewCommand_NotFound(t *testing.T) {
	upstream := newUpstream(t)
	dir := setup(t, upstream.URL)

	out, err := run(t, dir, "view", "NOPE")
	require.Error(t, err)
	assert.Contains(t, out, "No FRC coverage found for NOPE")
}

func TestCoverageCommand_Window(t *testing.T) {
	upstream := newUpstream(t)
	dir := setup(t, upstream.URL)

	out, err := run(t, dir, "coverage", "ACME", "--window", "2", "--json")
	require.NoError(t, err)

	var body struct {
		Windows []models.CoverageWindowStats `json:"windows"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	require.Len(t, body.Windows, 1)
	require.NotNil(t, body.Windows[0].PriceChangePct)
	assert.InDelta(t, 20.0, *body.Windows[0].PriceChangePct, 1e-9)
	require.NotNil(t, body.Windows[0].VolumeChangePct)
	assert.InDelta(t, 200.0, *body.Windows[0].VolumeChangePct, 1e-9)
}

func TestMetricsCommand_Text(t *testing.T) {
	upstream := newUpstream(t)
	dir := setup(t, upstream.URL)

	out, err := run(t, dir, "metrics", "ACME", "--timeline")
	require.NoError(t, err)
	assert.Contains(t, out, "Initiation")
	assert.Contains(t, out, "2024-01-03")
}

func TestSnapshots_SaveListShow(t *testing.T) {
	upstream := newUpstream(t)
	dir := setup(t, upstream.URL)

	out, err := run(t, dir, "snapshots", "save", "ACME", "--json")
	require.NoError(t, err)
	var saved store.SnapshotInfo
	require.NoError(t, json.Unmarshal([]byte(out), &saved))
	assert.NotEmpty(t, saved.ID)

	out, err = run(t, dir, "snapshots", "list", "--json")
	require.NoError(t, err)
	var list []store.SnapshotInfo
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 1)
	assert.Equal(t, saved.ID, list[0].ID)

	out, err = run(t, dir, "snapshots", "show", "acme")
	require.NoError(t, err)
	assert.Contains(t, out, saved.ID)
	assert.Contains(t, out, "Acme Mining")

	out, err = run(t, dir, "snapshots", "history", "ACME", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"report_id": "r1"`)
}

func TestWatchOnce_ReportsFailures(t *testing.T) {
	upstream := newUpstream(t)
	dir := setup(t, upstream.URL)

	out, err := run(t, dir, "watch", "--once")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 tickers failed")
	assert.Contains(t, out, "ACME")
	assert.Contains(t, out, "NOPE")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}

func TestTableRender_AlignsColumns(t *testing.T) {
	var buf bytes.Buffer
	o := &Output{writer: &buf}
	table := NewTable(o, "A", "LONGER")
	table.AddRow("value", "x")
	table.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "A      LONGER", lines[0])
	assert.Equal(t, "value  x", lines[2])
}

func TestBox_PlainFrame(t *testing.T) {
	var buf bytes.Buffer
	o := &Output{writer: &buf}
	o.Box("ACME", []string{"Acme Mining", "CAD"})

	assert.Equal(t, strings.Join([]string{
		"+-------------+",
		"| ACME        |",
		"+-------------+",
		"| Acme Mining |",
		"| CAD         |",
		"+-------------+",
	}, "\n")+"\n", buf.String())
}

func TestOutputColorsOnlyOnTerminal(t *testing.T) {
	up, down := 12.5, -3.0
	plain := &Output{}
	assert.Equal(t, "n/a", plain.Change(nil))
	assert.NotContains(t, plain.Change(&up), "\x1b[")

	colored := &Output{colorEnabled: true}
	assert.True(t, strings.HasPrefix(colored.Change(&up), string(styleGreen)))
	assert.True(t, strings.HasPrefix(colored.Change(&down), string(styleRed)))
	assert.Equal(t, len([]rune("● ok")), visibleWidth(colored.Section(models.SectionOK)))
}
