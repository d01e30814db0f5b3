// Package store abstracts the row-oriented data platform behind the import
// engine. Any store that can insert a batch, select recent rows, and answer
// key-existence queries satisfies the contract; concrete backends live in the
// postgres and sqlite subpackages.
//
// Collaborator capability note: when the inventory import omits batch_id, the
// store is expected to provision the missing delivery linkage itself (e.g. a
// trigger or column default). A backend without that capability must not be
// used with the ignore-batch escape hatch.
package store

import (
	"context"
	"fmt"

	"fleetseed/internal/coerce"
	"fleetseed/internal/schema"
	"fleetseed/pkg/records"
)

// Error is a store failure surfaced verbatim to the operator: a backend
// error code plus its message. Inserts are single all-or-nothing calls, so a
// failed insert wrote nothing and is never retried automatically.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// SelectOptions controls the verification read path.
type SelectOptions struct {
	OrderBy    string
	Descending bool
	Limit      int
}

// Store is the data-store collaborator.
type Store interface {
	// Insert writes the whole batch in one atomic call and returns the
	// inserted-row count. Columns fix the write order; a row missing a
	// column contributes NULL for it.
	Insert(ctx context.Context, table schema.Table, columns []string, rows []coerce.Row) (int64, error)

	// SelectRecent returns the newest rows of a table for operator
	// verification. It never affects import state.
	SelectRecent(ctx context.Context, table schema.Table, opt SelectOptions) ([]records.Record, error)

	// ExistingKeys reports which of the given key values exist in the
	// table's column. Used by the dependency preflight; best-effort only,
	// the store's own constraints stay authoritative.
	ExistingKeys(ctx context.Context, table schema.Table, column string, values []any) (map[any]struct{}, error)
}

// RowValues flattens rows into positional value slices aligned to columns.
func RowValues(columns []string, rows []coerce.Row) [][]any {
	out := make([][]any, len(rows))
	for i, row := range rows {
		vals := make([]any, len(columns))
		for j, col := range columns {
			vals[j] = row[col]
		}
		out[i] = vals
	}
	return out
}
