// Package postgres implements the store contract against the hosted,
// Postgres-compatible data platform using pgx v5. Batch inserts use COPY,
// which is a single atomic statement; constraint failures surface as
// store.Error with the SQLSTATE code and message untouched.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"fleetseed/internal/coerce"
	"fleetseed/internal/schema"
	"fleetseed/internal/store"
	"fleetseed/pkg/records"
)

// Config holds Postgres store configuration.
type Config struct {
	// DSN is the connection string for pgxpool.
	DSN string
	// Schema is the database schema holding the fleet tables; empty means
	// "public".
	Schema string
}

// Store is a Postgres-backed store.Store.
type Store struct {
	pool *pgxpool.Pool
	cfg  Config
}

// New connects a pool and returns the store plus a close function.
func New(ctx context.Context, cfg Config) (*Store, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	return &Store{pool: pool, cfg: cfg}, pool.Close, nil
}

// Insert copies the batch into the target table in one COPY statement.
func (s *Store) Insert(ctx context.Context, table schema.Table, columns []string, rows []coerce.Row) (int64, error) {
	if len(rows) == 0 || len(columns) == 0 {
		return 0, nil
	}
	n, err := s.pool.CopyFrom(ctx,
		s.ident(table),
		columns,
		pgx.CopyFromRows(store.RowValues(columns, rows)),
	)
	if err != nil {
		return 0, wrapErr(err)
	}
	return n, nil
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
	q := fmt.Sprintf("SELECT * FROM %s", s.ident(table).Sanitize())
	if opt.OrderBy != "" {
		q += fmt.Sprintf(" ORDER BY %s %s NULLS LAST", quoteIdent(opt.OrderBy), dir)
	}
	q += fmt.Sprintf(" LIMIT %d", limit)

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	var out []records.Record
	fields := rows.FieldDescriptions()
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, wrapErr(err)
		}
		rec := make(records.Record, len(fields))
		for i, fd := range fields {
			rec[string(fd.Name)] = vals[i]
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
	for i := range values {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	q := fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s IN (%s)",
		quoteIdent(column), s.ident(table).Sanitize(), quoteIdent(column),
		strings.Join(placeholders, ","))

	rows, err := s.pool.Query(ctx, q, values...)
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

// ident builds the fully qualified table identifier.
func (s *Store) ident(table schema.Table) pgx.Identifier {
	sch := s.cfg.Schema
	if sch == "" {
		sch = "public"
	}
	return pgx.Identifier{sch, string(table)}
}

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// normalizeKey folds scanned key values onto the types the coercer produces,
// so preflight set membership compares like with like.
func normalizeKey(v any) any {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case [16]byte:
		// pgx may scan uuid columns as raw bytes without a registered
		// codec; render the canonical string form.
		return uuidString(t)
	default:
		return v
	}
}

func uuidString(b [16]byte) string {
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}

// wrapErr converts backend failures into store.Error, keeping the SQLSTATE
// code and message verbatim.
func wrapErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &store.Error{Code: pgErr.Code, Message: pgErr.Message}
	}
	return &store.Error{Message: err.Error()}
}
