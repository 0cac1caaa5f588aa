package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# KIS Board Configuration

[kis]
# Quote API base URL (real: 9443, virtual: 29443)
base_url = "https://openapi.koreainvestment.com:9443"
# Upstream requests per second
rate_limit = 15
# Per-request timeout
timeout = "10s"
# Consecutive upstream failures before calls fail fast (0 = off)
breaker_failures = 0
breaker_cooldown = "30s"

[server]
host = "0.0.0.0"
port = 8000
# Host name the page uses for its websocket and save calls
display_host = "localhost:8000"
# Cron schedule for pushing refreshes to watching clients ("" disables)
refresh_schedule = "@every 5s"
# How often an open page asks for a fresh summary
poll_interval = "5s"
read_timeout = "15s"
write_timeout = "15s"
allowed_origins = ["*"]

[store]
# Portfolio backend: "json" or "sqlite"
backend = "json"
path = "./items.json"

[valuation]
# Concurrent per-holding price lookups (1 = sequential)
concurrency = 1
timezone = "Asia/Seoul"

[log]
level = "info"
console = true
file = false
`

const credentialsTemplate = `# KIS Board Credentials
# WARNING: Keep this file secure! Do not commit to version control.
# APP_KEY / APP_SECRET environment variables take precedence.

[kis]
app_key = ""
app_secret = ""
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}

func createTemplateCredentials(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "credentials.toml")
	// Use restricted permissions for credentials file
	if err := os.WriteFile(path, []byte(credentialsTemplate), 0600); err != nil {
		return fmt.Errorf("writing credentials template: %w", err)
	}

	return nil
}
