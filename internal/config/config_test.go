package config

import (
	"testing"
	"time"

	"golang.org/x/text/language"

	"github.com/sw33tLie/riderpoint/pkg/facet"
)

func TestDefaults(t *testing.T) {
	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != ":7071" {
		t.Fatalf("expected default addr :7071, got %q", cfg.Addr)
	}
	if cfg.RefreshInterval != time.Minute {
		t.Fatalf("expected default refresh 1m, got %v", cfg.RefreshInterval)
	}
	if cfg.Policy() != facet.ShowPrompt {
		t.Fatalf("expected show-prompt by default, got %q", cfg.Policy())
	}
	if cfg.Language() != language.German {
		t.Fatalf("expected German collation by default, got %v", cfg.Language())
	}
	if !cfg.Metrics {
		t.Fatalf("expected metrics enabled by default")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RIDERPOINT_ADDR", "127.0.0.1:9000")
	t.Setenv("RIDERPOINT_REFRESH", "0s")
	t.Setenv("RIDERPOINT_EMPTY_ROOT_POLICY", "show-all")
	t.Setenv("RIDERPOINT_API_URL", "http://localhost:7071/api")

	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9000" || cfg.RefreshInterval != 0 || cfg.APIURL != "http://localhost:7071/api" {
		t.Fatalf("expected env values, got %+v", cfg)
	}
	if cfg.Policy() != facet.ShowAll {
		t.Fatalf("expected show-all, got %q", cfg.Policy())
	}
}

func TestInvalidValues(t *testing.T) {
	tests := map[string]string{
		"RIDERPOINT_EMPTY_ROOT_POLICY": "hide",
		"RIDERPOINT_LOCALE":            "not a locale!",
		"RIDERPOINT_REFRESH":           "soon",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := LoadServerConfig(); err == nil {
				t.Fatalf("expected an error for %s=%q", key, value)
			}
		})
	}
}
