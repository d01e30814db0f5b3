package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"fleetseed/internal/config"
	"fleetseed/internal/importer"
	"fleetseed/internal/metrics"
	"fleetseed/internal/metrics/datadog"
	"fleetseed/internal/metrics/prompush"
	"fleetseed/internal/store"
	"fleetseed/internal/store/postgres"
	"fleetseed/internal/store/sqlite"
	"fleetseed/internal/webui"
)

// main loads the configuration, wires the store and metrics backends, and
// serves the import workflow over HTTP.
func main() {
	var (
		cfgPath  string
		validate bool
	)
	flag.StringVar(&cfgPath, "config", "", "config JSON path (optional; env vars overlay)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose (development) logs")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fatalf("load config: %v", err)
	}

	issues := config.Validate(cfg)
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		fatalf("configuration is invalid")
	}
	if validate {
		fmt.Println("configuration is valid")
		return
	}

	log, err := newLogger(*verbose)
	if err != nil {
		fatalf("logger: %v", err)
	}
	defer log.Sync()

	setupMetrics(cfg.Metrics, log)
	defer func() {
		if err := metrics.Flush(); err != nil {
			log.Warn("metrics flush failed", zap.Error(err))
		}
	}()

	ctx := context.Background()
	st, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		fatalf("open store: %v", err)
	}
	defer closeStore()

	orch := importer.New(st, log)
	srv := webui.NewServer(webui.Config{
		Addr:             cfg.Addr,
		DefaultDelimiter: cfg.Parser.Rune("delimiter", ','),
	}, orch, log)

	if err := srv.ListenAndServe(); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// openStore selects the store backend per config.
func openStore(ctx context.Context, cfg config.Store) (store.Store, func(), error) {
	switch cfg.Kind {
	case "postgres":
		return postgres.New(ctx, postgres.Config{DSN: cfg.DSN, Schema: cfg.Schema})
	case "sqlite":
		return sqlite.New(ctx, cfg.DSN)
	default:
		return nil, nil, fmt.Errorf("unknown store kind %q", cfg.Kind)
	}
}

// setupMetrics installs the configured metrics backend; the nop backend
// stays in place when metrics are disabled or misconfigured.
func setupMetrics(cfg config.Metrics, log *zap.Logger) {
	switch cfg.Backend {
	case "pushgateway":
		url := cfg.PushgatewayURL
		if url == "" {
			url = "http://localhost:9091"
		}
		b, err := prompush.NewBackend(cfg.Job, url)
		if err != nil {
			log.Warn("pushgateway backend unavailable, metrics disabled", zap.Error(err))
			return
		}
		metrics.SetBackend(b)
		log.Info("metrics enabled", zap.String("backend", "pushgateway"), zap.String("url", url))

	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{
			Addr:      cfg.DatadogAddr,
			Namespace: "fleetseed.",
		})
		if err != nil {
			log.Warn("datadog backend unavailable, metrics disabled", zap.Error(err))
			return
		}
		metrics.SetBackend(b)
		log.Info("metrics enabled", zap.String("backend", "datadog"), zap.String("addr", cfg.DatadogAddr))

	case "", "none":
		// metrics disabled; nop backend remains
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
