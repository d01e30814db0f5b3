// Package dedup collapses duplicate rows inside one upload batch before the
// insert, by the target table's natural key. Later occurrences win
// (keep-last), matching the intuition that a corrected row appears further
// down the file. The database's unique constraints remain the backstop for
// anything this in-memory pass cannot see.
package dedup

import (
	"fmt"
	"strings"

	"github.com/zeebo/xxh3"

	"fleetseed/internal/coerce"
	"fleetseed/internal/schema"
)

// naturalKeys maps each table to the columns forming its intra-batch identity.
var naturalKeys = map[schema.Table][]string{
	schema.Products:   {"name"},
	schema.Deliveries: {"batch_id", "product_id", "delivery_date"},
	schema.Inventory:  {"machine_id", "product_id", "position_id"},
	schema.Machines:   {"machine_name", "machine_location"},
}

// Rows returns the batch with intra-batch duplicates collapsed (keep-last)
// and the number of rows dropped. Rows whose entire key tuple is nil are
// never treated as duplicates of each other; the validator owns missing-key
// complaints.
func Rows(t schema.Table, in []coerce.Row) ([]coerce.Row, int) {
	keys := naturalKeys[t]
	if len(keys) == 0 || len(in) < 2 {
		return in, 0
	}

	type slot struct{ idx int }
	winners := make(map[uint64]slot, len(in))
	order := make([]uint64, 0, len(in))

	for i, row := range in {
		h, ok := keyHash(row, keys)
		if !ok {
			// No usable key; keep the row under a unique synthetic hash.
			h = ^uint64(i)
		}
		if _, seen := winners[h]; !seen {
			order = append(order, h)
		}
		winners[h] = slot{idx: i}
	}

	if len(order) == len(in) {
		return in, 0
	}
	out := make([]coerce.Row, 0, len(order))
	for _, h := range order {
		out = append(out, in[winners[h].idx])
	}
	return out, len(in) - len(out)
}

// keyHash hashes the key tuple. It reports false when every key column is
// nil, in which case the row has no usable identity.
func keyHash(row coerce.Row, keys []string) (uint64, bool) {
	var b strings.Builder
	nonNil := false
	for _, k := range keys {
		v := row[k]
		if v != nil {
			nonNil = true
		}
		fmt.Fprintf(&b, "%v\x00", v)
	}
	if !nonNil {
		return 0, false
	}
	return xxh3.HashString(b.String()), true
}
