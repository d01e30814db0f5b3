// Package sqlite implements the store contract over a local SQLite database
// using database/sql. It exists for development and demos where the hosted
// platform is unavailable. Inserts run inside one transaction, which keeps
// the all-or-nothing contract; SQLite has no COPY equivalent.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"fleetseed/internal/coerce"
	"fleetseed/internal/schema"
	"fleetseed/internal/store"
	"fleetseed/pkg/records"
)

// Store is a SQLite-backed store.Store.
type Store struct {
	db *sql.DB
}

// New opens the database file and verifies the connection.
func New(ctx context.Context, dsn string) (*Store, func(), error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	_, _ = db.ExecContext(ctx, "PRAGMA foreign_keys = ON;")
	return &Store{db: db}, func() { db.Close() }, nil
}

// Insert writes the batch in a single transaction.
func (s *Store) Insert(ctx context.Context, table schema.Table, columns []string, rows []coerce.Row) (int64, error) {
	if len(rows) == 0 || len(columns) == 0 {
		return 0, nil
	}
	placeholders := make([]string, len(columns))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	stmtSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quote(string(table)), joinQuoted(columns), strings.Join(placeholders, ", "))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, wrapErr(err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, stmtSQL)
	if err != nil {
		return 0, wrapErr(err)
	}
	defer stmt.Close()

	var total int64
	for _, vals := range store.RowValues(columns, rows) {
		res, err := stmt.ExecContext(ctx, vals...)
		if err != nil {
			return 0, wrapErr(err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, wrapErr(err)
	}
	return total, nil
}

// SelectRecent fetches the newest rows per the order hint.
func (s *Store) SelectRecent(ctx context.Context, table schema.Table, opt store.SelectOptions) ([]records.Record, error) {
	dir := "ASC"
	if opt.Descending {
		dir = "DESC"
	}
	limit := opt.Limit
	if limit <= 0 {
		limit = 5
	}
	q := fmt.Sprintf("SELECT * FROM %s", quote(string(table)))
	if opt.OrderBy != "" {
		q += fmt.Sprintf(" ORDER BY %s %s", quote(opt.OrderBy), dir)
	}
	q += fmt.Sprintf(" LIMIT %d", limit)

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, wrapErr(err)
	}
	var out []records.Record
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, wrapErr(err)
		}
		rec := make(records.Record, len(cols))
		for i, c := range cols {
			rec[c] = vals[i]
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err)
	}
	return out, nil
}

// ExistingKeys returns the subset of values present in table.column.
func (s *Store) ExistingKeys(ctx context.Context, table schema.Table, column string, values []any) (map[any]struct{}, error) {
	if len(values) == 0 {
		return map[any]struct{}{}, nil
	}
	placeholders := make([]string, len(values))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	q := fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s IN (%s)",
		quote(column), quote(string(table)), quote(column), strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, q, values...)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	found := make(map[any]struct{}, len(values))
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, wrapErr(err)
		}
		found[normalizeKey(v)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err)
	}
	return found, nil
}

func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func joinQuoted(cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = quote(c)
	}
	return strings.Join(out, ", ")
}

// normalizeKey folds scanned values onto the coercer's output types.
func normalizeKey(v any) any {
	switch t := v.(type) {
	case int:
		return int64(t)
	case []byte:
		return string(t)
	default:
		return v
	}
}

// wrapErr converts driver failures into store.Error. SQLite errors carry no
// SQLSTATE; the message alone is surfaced.
func wrapErr(err error) error {
	return &store.Error{Message: err.Error()}
}
