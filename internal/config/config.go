// Package config reads the settings of the long running server processes
// from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/text/language"

	"github.com/sw33tLie/riderpoint/pkg/facet"
)

// ServerConfig is shared by the api and serve commands. Cobra flags that are
// set explicitly take precedence over these values.
type ServerConfig struct {
	Addr    string `env:"RIDERPOINT_ADDR" envDefault:":7071"`
	DBPath  string `env:"RIDERPOINT_DB_PATH"`
	APIURL  string `env:"RIDERPOINT_API_URL"`
	Metrics bool   `env:"RIDERPOINT_METRICS" envDefault:"true"`

	// RefreshInterval is how often the web server refreshes its caches.
	// 0 disables background refresh.
	RefreshInterval time.Duration `env:"RIDERPOINT_REFRESH" envDefault:"1m"`
	EmptyRootPolicy string        `env:"RIDERPOINT_EMPTY_ROOT_POLICY" envDefault:"show-prompt"`
	Locale          string        `env:"RIDERPOINT_LOCALE" envDefault:"de"`

	ReadTimeout  time.Duration `env:"RIDERPOINT_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout time.Duration `env:"RIDERPOINT_WRITE_TIMEOUT" envDefault:"30s"`
}

// LoadServerConfig parses the environment and validates the result.
func LoadServerConfig() (ServerConfig, error) {
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the values that are parsed further by other packages.
func (c ServerConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("listen address is empty")
	}
	if _, err := facet.ParsePolicy(c.EmptyRootPolicy); err != nil {
		return err
	}
	if _, err := language.Parse(c.Locale); err != nil {
		return fmt.Errorf("invalid locale %q: %w", c.Locale, err)
	}
	if c.RefreshInterval < 0 {
		return fmt.Errorf("refresh interval cannot be negative")
	}
	return nil
}

// Policy returns the parsed empty root policy, ShowPrompt when invalid.
func (c ServerConfig) Policy() facet.Policy {
	p, err := facet.ParsePolicy(c.EmptyRootPolicy)
	if err != nil {
		return facet.ShowPrompt
	}
	return p
}

// Language returns the parsed locale, language.Und when invalid.
func (c ServerConfig) Language() language.Tag {
	tag, err := language.Parse(c.Locale)
	if err != nil {
		return language.Und
	}
	return tag
}
