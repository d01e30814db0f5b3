// Package mapping builds and applies the column mapping between a target
// table's writable columns and the headers of an uploaded file.
//
// The initial mapping is auto-suggested by name matching and may be overridden
// by the operator afterward. The mapping itself performs no validation: an
// absent or wrong mapping simply yields nil for that column during coercion.
package mapping

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"fleetseed/internal/schema"
	"fleetseed/pkg/records"
)

// Mapping maps a target column to the source header it is filled from.
// Unmapped target columns are absent (or empty) and coerce to nil.
type Mapping map[string]string

// Surface returns the mappable target columns for t: the whitelist minus the
// hard-block set and the table's server-assigned key.
func Surface(t schema.Table) []string {
	var out []string
	for _, col := range schema.Columns(t) {
		if schema.IsHardBlocked(col) || col == schema.ServerKey(t) {
			continue
		}
		out = append(out, col)
	}
	return out
}

// AutoMap suggests an initial mapping from headers onto the mappable columns
// of t. Matching is exact after folding: lowercase, trimmed, diacritics
// removed, separators normalized to underscores. Unmatched columns stay
// unmapped.
func AutoMap(t schema.Table, headers []string) Mapping {
	bySource := make(map[string]string, len(headers))
	for _, h := range headers {
		key := foldName(h)
		if _, taken := bySource[key]; !taken {
			bySource[key] = h
		}
	}

	m := make(Mapping)
	for _, col := range Surface(t) {
		if src, ok := bySource[foldName(col)]; ok {
			m[col] = src
		}
	}
	return m
}

// Set overrides the source header for one target column. An empty source
// removes the mapping ("ignored").
func (m Mapping) Set(column, source string) {
	if source == "" {
		delete(m, column)
		return
	}
	m[column] = source
}

// Apply projects raw rows through the mapping. The output rows contain one
// key per mapped target column; everything else from the source is dropped
// here, before coercion ever sees it.
func (m Mapping) Apply(t schema.Table, rows []records.Record) []records.Record {
	surface := Surface(t)
	out := make([]records.Record, len(rows))
	for i, row := range rows {
		mapped := make(records.Record, len(surface))
		for _, col := range surface {
			src, ok := m[col]
			if !ok || src == "" {
				continue
			}
			if v, exists := row[src]; exists {
				mapped[col] = v
			}
		}
		out[i] = mapped
	}
	return out
}

// foldName produces the canonical form used for header matching: lowercase,
// accents stripped, runs of non-alphanumerics collapsed to single underscores.
func foldName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	// Decompose, drop nonspacing marks (accents), recompose.
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
	ascii, _, _ := transform.String(t, s)

	var b strings.Builder
	prevUnderscore := false
	for _, r := range ascii {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevUnderscore = false
		default:
			if !prevUnderscore && b.Len() > 0 {
				b.WriteRune('_')
				prevUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
