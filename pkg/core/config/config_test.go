package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"deal_proforma/pkg/core/waterfall"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "proforma.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Engine.HorizonMonths != 60 || cfg.Server.Addr != ":8080" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	policy, _ := cfg.Policy()
	if policy.NOIMode != waterfall.NOIDistribution {
		t.Errorf("noi mode = %s", policy.NOIMode)
	}
	if cfg.Redis.DedupTTL != 24*time.Hour {
		t.Errorf("dedup ttl = %s", cfg.Redis.DedupTTL)
	}
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
engine:
  horizon_months: 120
waterfall:
  noi_mode: capital_return
  preferred_rate_pct: 6.5
  accrual_period: annual
redis:
  dedup_ttl: 2h
`)
	t.Setenv("PROFORMA_ADDR", ":7070")
	t.Setenv("PROFORMA_PREFERRED_RATE_PCT", "7")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != ":7070" {
		t.Errorf("env should override yaml: addr = %s", cfg.Server.Addr)
	}
	if cfg.Engine.HorizonMonths != 120 {
		t.Errorf("horizon = %d", cfg.Engine.HorizonMonths)
	}
	rule := cfg.AccrualRule()
	if rule.RatePct != 7 || rule.Period != waterfall.Annual {
		t.Errorf("accrual rule = %+v", rule)
	}
	if cfg.Redis.DedupTTL != 2*time.Hour {
		t.Errorf("dedup ttl = %s", cfg.Redis.DedupTTL)
	}
	// Untouched keys keep their defaults.
	if cfg.Waterfall.LPSharePct != 50 || cfg.Schedule.AccrualCron != "0 0 1 * *" {
		t.Errorf("defaults lost: %+v", cfg.Waterfall)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"Unknown NOI mode", "waterfall:\n  noi_mode: reinvest\n"},
		{"Zero horizon", "engine:\n  horizon_months: 0\n"},
		{"Horizon beyond maximum", "engine:\n  horizon_months: 100000\n"},
		{"Bad accrual period", "waterfall:\n  accrual_period: weekly\n"},
		{"LP share above 100", "waterfall:\n  lp_share_pct: 150\n"},
		{"Bad cron", "schedule:\n  accrual_cron: \"every month\"\n"},
		{"Malformed yaml", "engine: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.yaml)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
