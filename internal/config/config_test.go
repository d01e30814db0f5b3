package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.Store.Kind != "postgres" || cfg.Metrics.Backend != "none" {
		t.Fatalf("defaults = %+v", cfg)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	body := `{
		"addr": ":9090",
		"store": {"kind": "sqlite", "dsn": "file:fleet.db"},
		"parser": {"delimiter": ";"},
		"metrics": {"backend": "pushgateway", "pushgateway_url": "http://push:9091"}
	}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9090" || cfg.Store.Kind != "sqlite" || cfg.Store.DSN != "file:fleet.db" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Parser.Rune("delimiter", ',') != ';' {
		t.Fatalf("delimiter = %q", cfg.Parser.Rune("delimiter", ','))
	}
	if cfg.Metrics.PushgatewayURL != "http://push:9091" {
		t.Fatalf("metrics = %+v", cfg.Metrics)
	}
}

func TestLoadEnvOverlay(t *testing.T) {
	t.Setenv("FLEETSEED_ADDR", ":7070")
	t.Setenv("FLEETSEED_STORE_DSN", "postgres://env")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.Store.DSN != "postgres://env" {
		t.Fatalf("env overlay ignored: %+v", cfg)
	}
}

func TestOptionsTypedGetters(t *testing.T) {
	o := Options{"s": "x", "b": true, "i": float64(3), "d": `\t`}
	if o.String("s", "y") != "x" || o.String("missing", "y") != "y" {
		t.Fatalf("String broken")
	}
	if !o.Bool("b", false) || o.Bool("missing", true) != true {
		t.Fatalf("Bool broken")
	}
	if o.Int("i", 0) != 3 || o.Int("missing", 9) != 9 {
		t.Fatalf("Int broken")
	}
	if o.Rune("d", ',') != '\t' {
		t.Fatalf("tab literal not recognized")
	}
	if o.Rune("missing", ',') != ',' {
		t.Fatalf("Rune default broken")
	}
}

func TestValidateCatchesProblems(t *testing.T) {
	cfg := Config{
		Addr:    "",
		Store:   Store{Kind: "oracle"},
		Parser:  Options{"delimiter": "#"},
		Metrics: Metrics{Backend: "datadog"},
	}
	issues := Validate(cfg)
	paths := make(map[string]IssueSeverity)
	for _, iss := range issues {
		paths[iss.Path] = iss.Severity
	}
	for _, p := range []string{"addr", "store.kind", "parser.delimiter", "metrics.datadog_addr"} {
		if paths[p] != SeverityError {
			t.Errorf("expected error at %s, got %v", p, paths[p])
		}
	}
}

func TestValidateCleanConfig(t *testing.T) {
	cfg := Config{
		Addr:  ":8080",
		Store: Store{Kind: "postgres", DSN: "postgres://db"},
	}
	for _, iss := range Validate(cfg) {
		if iss.Severity == SeverityError {
			t.Fatalf("unexpected error: %v", iss)
		}
	}
}
