package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# FRC research data service configuration

[api]
# Base URL of the research API
base_url = "https://api.researchfrc.com/api"
# Per-request timeout
timeout = "15s"
# Requests per second (0 disables pacing)
rate_limit = 5.0
# Attempts per request; 1 means no retries
retry_attempts = 1
retry_delay = "250ms"
# Consecutive transport failures before an endpoint is paused
breaker_threshold = 5
breaker_cooldown = "30s"

# Path templates per endpoint; {ticker} is replaced
# [api.endpoints]
# company = "/companies/{ticker}"
# chart = "/companies/{ticker}/chart"
# metrics = "/companies/{ticker}/metrics"
# analysis = "/companies/{ticker}/analysis"

[logging]
# debug, info, warn, error
level = "info"
console = true
file = false
max_size = 50
max_backups = 5
max_age = 30

[coverage]
# Trading-day windows compared around the first report
windows = [5, 10, 15, 30, 90]
# Window used for per-report impact
report_window = 30
# Optional YAML file overriding reconciler field paths
# field_paths = "~/.config/frc-research/fieldpaths.yaml"

[store]
enabled = true
# path = "~/.config/frc-research/snapshots.db"

[watch]
# Tickers refreshed by "frc watch"
tickers = []
# Cron schedule with optional seconds field
schedule = "0 0 18 * * 1-5"
workers = 4

[server]
addr = "127.0.0.1:8080"
allowed_origins = ["http://localhost:3000"]
read_timeout = "10s"
write_timeout = "30s"
`

const credentialsTemplate = `# FRC research API credentials
# Keep this file private. FRC_API_TOKEN overrides it.

api_token = ""
`

func writeTemplate(configDir, name, content string, perm os.FileMode) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name)
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		return fmt.Errorf("writing %s template: %w", name, err)
	}
	return nil
}
