// Package json parses uploaded JSON files into raw records.
//
// Accepted shapes are a single object (wrapped as a one-element result) or an
// array of objects. Unlike the CSV parser there is no partial success: a
// syntax error or an unexpected top-level shape fails the whole file.
package json

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"fleetseed/internal/parser"
	"fleetseed/pkg/records"
)

// Parser parses a JSON document into records. Safe to reuse across inputs.
type Parser struct{}

// New constructs a Parser.
func New() *Parser { return &Parser{} }

// Parse decodes r as a single object or an array of objects. Numbers decode
// as json.Number so the coercion stage decides their final type. Keys and
// string values are trimmed; empty strings become nil.
func (p *Parser) Parse(r io.Reader) (parser.Result, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var root any
	if err := dec.Decode(&root); err != nil {
		if err == io.EOF {
			return parser.Result{}, fmt.Errorf("invalid json: empty file")
		}
		return parser.Result{}, fmt.Errorf("invalid json: %w", err)
	}

	var res parser.Result
	switch v := root.(type) {
	case map[string]any:
		res.Rows = append(res.Rows, cleanObject(v))
	case []any:
		for i, elem := range v {
			obj, ok := elem.(map[string]any)
			if !ok {
				return parser.Result{}, fmt.Errorf("invalid json: element %d is not an object", i)
			}
			res.Rows = append(res.Rows, cleanObject(obj))
		}
	default:
		return parser.Result{}, fmt.Errorf("invalid json: top-level value is %T, want object or array of objects", v)
	}

	res.Headers = collectHeaders(res.Rows)
	return res, nil
}

// cleanObject trims keys and string values and normalizes empty strings to
// nil, matching the CSV parser's output shape.
func cleanObject(m map[string]any) records.Record {
	rec := make(records.Record, len(m))
	for k, v := range m {
		key := strings.TrimSpace(k)
		if s, ok := v.(string); ok {
			s = strings.TrimSpace(s)
			if s == "" {
				rec[key] = nil
				continue
			}
			rec[key] = s
			continue
		}
		rec[key] = v
	}
	return rec
}

// collectHeaders returns the sorted union of keys across rows. JSON objects
// carry no column order, so sorting keeps the result stable.
func collectHeaders(rows []records.Record) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, row := range rows {
		for k := range row {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				out = append(out, k)
			}
		}
	}
	sort.Strings(out)
	return out
}
