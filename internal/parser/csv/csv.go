// Package csv parses uploaded CSV files into raw records.
//
// Behavior mirrors what operators expect from a browser upload:
//
//   - The first row is the header and is mandatory.
//   - The delimiter is configurable (comma, semicolon, tab, pipe).
//   - Header names and string values are trimmed; empty cells become nil.
//   - Malformed rows are skipped with a warning; the rest of the file still
//     parses (partial-success policy). Only a missing or unreadable header is
//     fatal.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"fleetseed/internal/parser"
	"fleetseed/pkg/records"
)

// Options configures the CSV parser. Zero values give a comma-separated file.
type Options struct {
	// Delimiter is the field separator. Zero means ','.
	Delimiter rune
}

// Parser parses CSV input according to Options. Safe to reuse across inputs;
// not concurrency-safe.
type Parser struct{ opt Options }

// New constructs a Parser with the provided Options.
func New(opt Options) *Parser { return &Parser{opt: opt} }

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// Parse reads all rows from r. Rows that fail to parse or have a field count
// different from the header are skipped and reported as warnings in the
// result; whatever parsed cleanly is still returned.
func (p *Parser) Parse(r io.Reader) (parser.Result, error) {
	cr := csv.NewReader(r)
	if p.opt.Delimiter != 0 {
		cr.Comma = p.opt.Delimiter
	}
	// Enforce the header width manually so a short row yields a warning
	// instead of aborting the whole file.
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return parser.Result{}, fmt.Errorf("read csv header: %w", err)
	}
	headers := cleanHeaders(header)

	var res parser.Result
	res.Headers = headers

	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("row %d skipped: %v", line, err))
			continue
		}
		if len(row) != len(headers) {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("row %d skipped: expected %d fields, got %d", line, len(headers), len(row)))
			continue
		}
		if isEmptyRow(row) {
			continue
		}
		rec := make(records.Record, len(row))
		for i, val := range row {
			rec[headers[i]] = emptyToNil(strings.TrimSpace(val))
		}
		res.Rows = append(res.Rows, rec)
	}

	return res, nil
}

// cleanHeaders trims header cells and strips a UTF-8 BOM from the first one.
func cleanHeaders(h []string) []string {
	out := make([]string, len(h))
	for i, col := range h {
		c := strings.TrimSpace(col)
		if i == 0 {
			c = strings.TrimSpace(strings.TrimPrefix(c, utf8BOM))
		}
		out[i] = c
	}
	return out
}

// isEmptyRow reports whether every cell is blank. Blank lines are dropped
// silently rather than warned about.
func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// emptyToNil converts an empty string to nil; other values pass through.
func emptyToNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
