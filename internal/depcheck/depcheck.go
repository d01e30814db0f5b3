// Package depcheck preflights foreign-key existence before dependent rows are
// inserted. For deliveries it checks referenced products; for inventory it
// checks products, machines and, unless the ignore-batch escape hatch is on,
// delivery batches.
//
// The up-to-three existence queries run concurrently and the verdict waits on
// all of them; there is no short-circuit on the first miss, so the operator
// sees the complete picture in one pass.
//
// The check is a best-effort UX optimization. It races against concurrent
// writers by construction (check-then-insert gap); the store's own
// constraints remain authoritative.
package depcheck

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"fleetseed/internal/coerce"
	"fleetseed/internal/schema"
	"fleetseed/internal/store"
)

// Options controls the inventory-only escape hatch. When IgnoreBatchID is on,
// batch_id is dropped from the payload upstream and no deliveries query runs;
// the store provisions the linkage server-side.
type Options struct {
	IgnoreBatchID bool
}

// Report lists, per referenced table, the key values the store does not have.
// An empty report means the batch is safe to insert (as far as the preflight
// can tell).
type Report struct {
	Missing map[schema.Table][]any
}

// Empty reports whether no referenced keys are missing.
func (r *Report) Empty() bool {
	for _, vals := range r.Missing {
		if len(vals) > 0 {
			return false
		}
	}
	return true
}

// String renders the report for operator display, e.g.
// "products: [7 12]; machines: [m-1]".
func (r *Report) String() string {
	var parts []string
	for _, t := range schema.Tables {
		if vals := r.Missing[t]; len(vals) > 0 {
			parts = append(parts, fmt.Sprintf("%s: %v", t, vals))
		}
	}
	return strings.Join(parts, "; ")
}

// ref describes one existence query: which column of the batch references
// which table and key column.
type ref struct {
	sourceColumn string
	table        schema.Table
	keyColumn    string
}

// refsFor returns the reference set for a table; only deliveries and
// inventory carry references.
func refsFor(t schema.Table, opt Options) []ref {
	switch t {
	case schema.Deliveries:
		return []ref{{"product_id", schema.Products, "product_id"}}
	case schema.Inventory:
		refs := []ref{
			{"product_id", schema.Products, "product_id"},
			{"machine_id", schema.Machines, "machine_id"},
		}
		if !opt.IgnoreBatchID {
			refs = append(refs, ref{"batch_id", schema.Deliveries, "batch_id"})
		}
		return refs
	default:
		return nil
	}
}

// Check runs the existence queries for the batch and builds the report. A
// store failure is returned as-is (terminal for the attempt); missing keys
// are not an error here, they are the report's content.
func Check(ctx context.Context, st store.Store, t schema.Table, rows []coerce.Row, opt Options) (*Report, error) {
	report := &Report{Missing: make(map[schema.Table][]any)}

	refs := refsFor(t, opt)
	if len(refs) == 0 {
		return report, nil
	}

	type result struct {
		table   schema.Table
		missing []any
	}
	results := make([]result, len(refs))

	g, ctx := errgroup.WithContext(ctx)
	for i, rf := range refs {
		values := distinct(rows, rf.sourceColumn)
		if len(values) == 0 {
			continue
		}
		i, rf := i, rf
		g.Go(func() error {
			found, err := st.ExistingKeys(ctx, rf.table, rf.keyColumn, values)
			if err != nil {
				return err
			}
			var missing []any
			for _, v := range values {
				if _, ok := found[v]; !ok {
					missing = append(missing, v)
				}
			}
			sortValues(missing)
			results[i] = result{table: rf.table, missing: missing}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, res := range results {
		if len(res.missing) > 0 {
			report.Missing[res.table] = append(report.Missing[res.table], res.missing...)
		}
	}
	return report, nil
}

// distinct collects the unique non-nil values of column across the batch, in
// first-seen order.
func distinct(rows []coerce.Row, column string) []any {
	seen := make(map[any]struct{})
	var out []any
	for _, row := range rows {
		v := row[column]
		if v == nil {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// sortValues orders missing keys for stable reporting.
func sortValues(vals []any) {
	sort.Slice(vals, func(i, j int) bool {
		a, aok := vals[i].(int64)
		b, bok := vals[j].(int64)
		if aok && bok {
			return a < b
		}
		return fmt.Sprint(vals[i]) < fmt.Sprint(vals[j])
	})
}
