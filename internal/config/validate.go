// This file adds a lightweight linter/validator for Config values. It
// performs static checks over a decoded Config and returns a list of issues
// (errors and warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"

	"fleetseed/internal/parser"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block startup.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding that should be surfaced but does
	// not block startup.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding. Path is a dotted path into
// the config (e.g. "store.dsn"); Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a
// single error where one is expected.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// Validate performs static validation of a Config. It does not mutate the
// config; callers decide whether warnings are fatal.
func Validate(cfg Config) []Issue {
	var issues []Issue

	if strings.TrimSpace(cfg.Addr) == "" {
		issues = append(issues, Issue{SeverityError, "addr", "listen address must not be empty"})
	}

	switch cfg.Store.Kind {
	case "postgres", "sqlite":
		if strings.TrimSpace(cfg.Store.DSN) == "" {
			issues = append(issues, Issue{SeverityError, "store.dsn", "DSN is required"})
		}
	case "":
		issues = append(issues, Issue{SeverityError, "store.kind", "store kind is required (postgres or sqlite)"})
	default:
		issues = append(issues, Issue{SeverityError, "store.kind",
			fmt.Sprintf("unknown store kind %q (want postgres or sqlite)", cfg.Store.Kind)})
	}

	if d := cfg.Parser.Rune("delimiter", ','); !parser.ValidDelimiter(d) {
		issues = append(issues, Issue{SeverityError, "parser.delimiter",
			fmt.Sprintf("delimiter %q not supported (use comma, semicolon, tab, or pipe)", d)})
	}

	switch cfg.Metrics.Backend {
	case "", "none":
	case "pushgateway":
		if strings.TrimSpace(cfg.Metrics.PushgatewayURL) == "" {
			issues = append(issues, Issue{SeverityWarning, "metrics.pushgateway_url",
				"no Pushgateway URL configured; falling back to http://localhost:9091"})
		}
	case "datadog":
		if strings.TrimSpace(cfg.Metrics.DatadogAddr) == "" {
			issues = append(issues, Issue{SeverityError, "metrics.datadog_addr", "DogStatsD address is required"})
		}
	default:
		issues = append(issues, Issue{SeverityWarning, "metrics.backend",
			fmt.Sprintf("unknown metrics backend %q; metrics disabled", cfg.Metrics.Backend)})
	}

	return issues
}
