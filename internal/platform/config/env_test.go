package config

import (
	"strings"
	"testing"
)

type envTestConfig struct {
	Port int `env:"CAMS_MCP_TEST_PORT" envDefault:"123"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 123 {
		t.Fatalf("expected default port 123, got %d", cfg.Port)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("CAMS_MCP_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestParseEnvWithLookupUsesLookup(t *testing.T) {
	var cfg envTestConfig
	lookup := func(key string) (string, bool) {
		if key == "CAMS_MCP_TEST_PORT" {
			return "456", true
		}
		return "", false
	}

	if err := ParseEnvWithLookup(&cfg, lookup); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 456 {
		t.Fatalf("expected port 456 from lookup, got %d", cfg.Port)
	}
}

func TestParseEnvWithLookupIgnoresProcessEnv(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("CAMS_MCP_TEST_PORT", "789")

	if err := ParseEnvWithLookup(&cfg, func(string) (string, bool) { return "", false }); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 123 {
		t.Fatalf("expected default port 123, got %d", cfg.Port)
	}
}
