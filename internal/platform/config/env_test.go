package config

import (
	"strings"
	"testing"
)

type envTestConfig struct {
	Interval string `env:"TREMOR_TEST_INTERVAL" envDefault:"15s"`
	Port     int    `env:"TREMOR_TEST_PORT" envDefault:"8099"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 8099 {
		t.Fatalf("expected default port 8099, got %d", cfg.Port)
	}
	if cfg.Interval != "15s" {
		t.Fatalf("expected default interval 15s, got %q", cfg.Interval)
	}
}

func TestParseEnvOverrides(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("TREMOR_TEST_PORT", "9100")

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 9100 {
		t.Fatalf("expected env port 9100, got %d", cfg.Port)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("TREMOR_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}
