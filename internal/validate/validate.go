// Package validate enforces the per-table required-field rules before any
// network call is made. The rules mirror the NOT NULL constraints on the
// destination schema; the store's own constraints remain authoritative.
//
// Checking stops at the first violation: the point is to fail fast before a
// round trip, not to produce a full audit of the batch.
package validate

import (
	"fmt"

	"fleetseed/internal/coerce"
	"fleetseed/internal/schema"
)

// Violation describes the first required-field failure found in a batch.
type Violation struct {
	Table  schema.Table
	Row    int // zero-based index into the coerced batch
	Reason string
}

// Error implements the error interface so a Violation can flow through the
// orchestrator's error reporting.
func (v *Violation) Error() string {
	return fmt.Sprintf("%s: row %d: %s", v.Table, v.Row+1, v.Reason)
}

// Batch checks every coerced row against the table's required-field rules and
// returns the first violation, or nil when the batch is acceptable. An empty
// batch is itself a violation.
func Batch(t schema.Table, rows []coerce.Row) *Violation {
	if len(rows) == 0 {
		return &Violation{Table: t, Row: 0, Reason: "no data to upload"}
	}
	for i, row := range rows {
		if reason := checkRow(t, row); reason != "" {
			return &Violation{Table: t, Row: i, Reason: reason}
		}
	}
	return nil
}

func checkRow(t schema.Table, row coerce.Row) string {
	switch t {
	case schema.Products:
		if !present(row, "name") {
			return "name is required"
		}
		if !isNumber(row["price"]) {
			return "price must be a number"
		}
		if !isNumber(row["shelf_life_days"]) {
			return "shelf_life_days must be a number"
		}
	case schema.Deliveries:
		if !present(row, "delivery_date") {
			return "delivery_date is required"
		}
		if !present(row, "best_before_date") {
			return "best_before_date is required"
		}
		if !isNumber(row["quantity"]) {
			return "quantity must be a number"
		}
	case schema.Inventory:
		if !present(row, "machine_id") {
			return "machine_id is required"
		}
		if !isInt(row["product_id"]) {
			return "product_id must be an integer"
		}
	case schema.Machines:
		if !present(row, "machine_name") {
			return "machine_name is required"
		}
		if !present(row, "machine_location") {
			return "machine_location is required"
		}
	}
	return ""
}

// present reports whether the column has a non-nil, non-empty value.
func present(row coerce.Row, col string) bool {
	v, ok := row[col]
	if !ok || v == nil {
		return false
	}
	if s, isStr := v.(string); isStr && s == "" {
		return false
	}
	return true
}

func isNumber(v any) bool {
	switch v.(type) {
	case int64, float64:
		return true
	default:
		return false
	}
}

func isInt(v any) bool {
	_, ok := v.(int64)
	return ok
}
