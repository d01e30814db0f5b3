// Package coerce casts mapped row values into the semantic types their
// destination columns expect.
//
// Column classification is fixed: a column is an integer, a float, a date, or
// plain text. Coercion never fails hard; a value that cannot be cast becomes
// nil and the validator decides whether that blocks the upload. Malformed
// cells must not abort a whole batch during preview.
package coerce

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"fleetseed/pkg/records"
)

// Row is a coerced row: target column → typed value. Values are int64,
// float64, RFC3339 date strings, plain strings, or nil. Keys are always a
// subset of the table's mapping surface because rows are built from mapped
// records only.
type Row map[string]any

// Column classes. Membership decides the cast; anything else is text.
var (
	intColumns = set("current_stock", "capacity", "position_id", "shelf_row",
		"shelf_column", "product_id", "shelf_life_days", "quantity")
	floatColumns = set("price", "machine_revenue")
	dateColumns  = set("restocked_at", "best_before_date", "delivery_date")
)

// dateLayouts are tried in order; the first parse wins. Output is always
// RFC3339 in UTC.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02.01.2006",
	"01/02/2006",
}

func set(names ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	return m
}

// Rows coerces every mapped row. Keys absent from a mapped row stay absent;
// present keys always survive, with nil marking a failed or empty cast.
func Rows(in []records.Record) []Row {
	out := make([]Row, len(in))
	for i, rec := range in {
		row := make(Row, len(rec))
		for col, v := range rec {
			row[col] = Value(col, v)
		}
		out[i] = row
	}
	return out
}

// Value casts one raw value for the given target column. It never panics and
// never returns NaN; failure is nil.
func Value(column string, v any) any {
	if v == nil {
		return nil
	}
	switch {
	case member(intColumns, column):
		return toInt(v)
	case member(floatColumns, column):
		return toFloat(v)
	case member(dateColumns, column):
		return toDate(v)
	default:
		return toText(v)
	}
}

// IsNumeric reports whether column carries an integer or float class.
func IsNumeric(column string) bool {
	return member(intColumns, column) || member(floatColumns, column)
}

// IsInteger reports whether column carries the integer class.
func IsInteger(column string) bool {
	return member(intColumns, column)
}

func member(s map[string]struct{}, k string) bool {
	_, ok := s[k]
	return ok
}

func toInt(v any) any {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int64:
		return t
	case float64:
		return int64(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		return nil
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
			return i
		}
		return nil
	default:
		return nil
	}
}

func toFloat(v any) any {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case float64:
		return finite(t)
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return finite(f)
		}
		return nil
	case string:
		// Accept a comma decimal separator ("1,50" == "1.50"), but only when
		// the comma is unambiguously decimal; "1,234.56" stays a failed cast.
		s := strings.TrimSpace(t)
		if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
			s = strings.Replace(s, ",", ".", 1)
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return finite(f)
		}
		return nil
	default:
		return nil
	}
}

// finite rejects NaN and infinities; ParseFloat accepts both spellings but a
// price column never legitimately holds either.
func finite(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

func toDate(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC().Format(time.RFC3339)
			}
		}
		return nil
	default:
		return nil
	}
}

func toText(v any) any {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		return s
	case json.Number:
		return t.String()
	default:
		return v
	}
}
