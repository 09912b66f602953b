package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.hcl"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.DatabaseDriver != "sqlite" || cfg.FetchTimeout != 20*time.Second || cfg.FetchWorkers != 4 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.FetchInterval != 0 {
		t.Errorf("FetchInterval = %s, want run once", cfg.FetchInterval)
	}
	if cfg.Transport != "log" || cfg.GuardianSection != "world" || cfg.MaxItemsPerSource != 5 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.hcl")
	content := `
database_driver = "postgres"
database_dsn = "postgres://localhost/news?sslmode=disable"
fetch_interval = "1h"
filter_keywords = ["sport", "celebrity"]
guardian_api_key = "from-file"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("NDG_GUARDIAN_API_KEY", "from-env")
	t.Setenv("NDG_DELIVERY_WORKERS", "8")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.DatabaseDriver != "postgres" || cfg.FetchInterval != time.Hour {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if diff := cmp.Diff([]string{"sport", "celebrity"}, cfg.FilterKeywords); diff != "" {
		t.Errorf("FilterKeywords mismatch (-want +got):\n%s", diff)
	}
	if cfg.GuardianAPIKey != "from-env" || cfg.DeliveryWorkers != 8 {
		t.Errorf("env values not applied: key=%q workers=%d", cfg.GuardianAPIKey, cfg.DeliveryWorkers)
	}
}
