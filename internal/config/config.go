// Package config defines the JSON-serializable configuration model for the
// import service. It is intentionally small and explicit so a deployment can
// be described in one file, with environment variables as the final overlay
// for secrets and per-host values (DSNs, listen address).
//
// Precedence: built-in defaults < config file < environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
)

// Config is the top-level service configuration.
type Config struct {
	// Addr is the HTTP listen address for the import UI/API.
	Addr string `json:"addr" env:"FLEETSEED_ADDR"`

	// Store selects and configures the data-store backend.
	Store Store `json:"store"`

	// Parser carries free-form parser defaults (e.g. "delimiter": ";").
	Parser Options `json:"parser"`

	// Metrics selects and configures the metrics backend.
	Metrics Metrics `json:"metrics"`
}

// Store selects the data-store backend.
type Store struct {
	// Kind is "postgres" (the hosted platform) or "sqlite" (local/dev).
	Kind string `json:"kind" env:"FLEETSEED_STORE_KIND"`

	// DSN is the backend connection string.
	DSN string `json:"dsn" env:"FLEETSEED_STORE_DSN"`

	// Schema is the Postgres schema holding the fleet tables; empty means
	// "public". Ignored by sqlite.
	Schema string `json:"schema" env:"FLEETSEED_STORE_SCHEMA"`
}

// Metrics selects the metrics backend.
type Metrics struct {
	// Backend is "pushgateway", "datadog", or "none".
	Backend string `json:"backend" env:"METRICS_BACKEND"`

	// PushgatewayURL is the Prometheus Pushgateway base URL.
	PushgatewayURL string `json:"pushgateway_url" env:"PUSHGATEWAY_URL"`

	// DatadogAddr is the DogStatsD address, e.g. "127.0.0.1:8125".
	DatadogAddr string `json:"datadog_addr" env:"DD_AGENT_ADDR"`

	// Job names the metrics job/grouping key.
	Job string `json:"job" env:"METRICS_JOB"`
}

// Load reads the optional config file, applies defaults, and overlays
// environment variables.
func Load(path string) (Config, error) {
	cfg := Config{
		Addr: ":8080",
		Store: Store{
			Kind: "postgres",
		},
		Metrics: Metrics{
			Backend: "none",
			Job:     "fleetseed",
		},
	}

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return cfg, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		if err := json.NewDecoder(f).Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("decode config: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("env overlay: %w", err)
	}
	return cfg, nil
}

// Options is a small helper to fetch typed values from arbitrary JSON maps.
// It performs only minimal coercion and returns the provided default when a
// key is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers decode as float64,
// so both float64 and int are accepted.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def when the key
// is missing or empty. Used for single-character settings such as the CSV
// delimiter; the literal `\t` is recognized as a tab.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			if s == `\t` {
				return '\t'
			}
			return []rune(s)[0]
		}
	}
	return def
}

// UnmarshalJSON makes a missing or null options object decode to a non-nil,
// empty map so call sites need no nil checks.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
