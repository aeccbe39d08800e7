package chaosd

import (
	"flag"
	"testing"
	"time"
)

func TestParseConfig_ParsesDefaultsAndFlags(t *testing.T) {
	fs := flag.NewFlagSet("chaosd", flag.ContinueOnError)
	t.Setenv("TREMOR_CHAOSD_PORT", "9094")
	t.Setenv("TREMOR_CHAOSD_TICK_INTERVAL", "10s")

	cfg, err := ParseConfig(fs, []string{"-regions", "crownspire:capital", "-seed", "42"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 9094 {
		t.Fatalf("port = %d, want 9094", cfg.Port)
	}
	if cfg.TickInterval != 10*time.Second {
		t.Fatalf("tick interval = %v, want 10s", cfg.TickInterval)
	}
	if cfg.Regions != "crownspire:capital" {
		t.Fatalf("regions = %q, want %q", cfg.Regions, "crownspire:capital")
	}
	if cfg.Seed != 42 {
		t.Fatalf("seed = %d, want 42", cfg.Seed)
	}
}

func TestParseConfig_Defaults(t *testing.T) {
	fs := flag.NewFlagSet("chaosd", flag.ContinueOnError)

	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 8094 {
		t.Fatalf("port = %d, want 8094", cfg.Port)
	}
	if cfg.DBPath != "data/chaosd.db" {
		t.Fatalf("db path = %q, want %q", cfg.DBPath, "data/chaosd.db")
	}
	if cfg.TickInterval != 15*time.Second {
		t.Fatalf("tick interval = %v, want 15s", cfg.TickInterval)
	}
	if cfg.CollectTimeout != 5*time.Second {
		t.Fatalf("collect timeout = %v, want 5s", cfg.CollectTimeout)
	}
	if cfg.Seed != 0 {
		t.Fatalf("seed = %d, want 0", cfg.Seed)
	}
}
