// Package parser holds the shared contract for turning uploaded files into
// raw records. Concrete formats live in the csv and json subpackages; the
// import workflow selects one by file extension.
package parser

import (
	"errors"
	"io"

	"fleetseed/pkg/records"
)

// ErrUnsupported is returned for file extensions the engine cannot parse.
// It is a pre-parse user error, not a parse failure.
var ErrUnsupported = errors.New("unsupported file type: upload .csv or .json")

// ErrNoFile is returned when an upload action runs without a chosen file.
var ErrNoFile = errors.New("no file chosen")

// Result carries parsed rows plus any non-fatal advisories. Warnings are
// produced only by the CSV parser (malformed rows are skipped, the rest of the
// file still parses); JSON failures are fatal and yield no rows.
//
// Headers lists the source column names in a stable order (file order for CSV,
// sorted first-seen keys for JSON); the import workflow uses it to build
// column mappings.
type Result struct {
	Rows     []records.Record
	Headers  []string
	Warnings []string
}

// Parser parses one uploaded file into raw records. Parsing is restartable
// only by re-invoking Parse on the original input.
type Parser interface {
	Parse(r io.Reader) (Result, error)
}

// Delimiters enumerates the accepted CSV separators.
var Delimiters = []rune{',', ';', '\t', '|'}

// ValidDelimiter reports whether d is an accepted CSV separator.
func ValidDelimiter(d rune) bool {
	for _, r := range Delimiters {
		if r == d {
			return true
		}
	}
	return false
}
