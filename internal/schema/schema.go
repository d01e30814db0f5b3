// Package schema is the static registry of import targets: the per-table
// column whitelists, the global hard-block set, server-assigned keys, and the
// recency column used when sampling recent rows.
//
// The registry is the single source of truth that keeps the import surface
// aligned with the destination schema. Only columns enumerated here are ever
// written; system-managed columns are blocked regardless of what a source
// file supplies.
package schema

// Table identifies an import target table.
type Table string

const (
	Products   Table = "products"
	Deliveries Table = "deliveries"
	Inventory  Table = "inventory"
	Machines   Table = "machines"
)

// Tables lists all import targets in workflow order.
var Tables = []Table{Products, Deliveries, Inventory, Machines}

// allowed maps each table to its writable columns, in legend order.
// Server-assigned keys are excluded here; see serverKey.
var allowed = map[Table][]string{
	Products:   {"name", "price", "shelf_life_days"},
	Deliveries: {"batch_id", "product_id", "delivery_date", "best_before_date", "quantity"},
	Inventory: {
		"machine_id", "product_id", "batch_id", "current_stock", "capacity",
		"restocked_at", "best_before_date", "status", "position_id",
		"shelf_row", "shelf_column",
	},
	Machines: {"machine_name", "machine_location", "machine_revenue"},
}

// serverKey names the auto-generated primary key per table, where one exists.
// These never appear on the mapping surface for their owning table.
var serverKey = map[Table]string{
	Products: "product_id",
	Machines: "machine_id",
}

// hardBlock lists columns that are never writable, regardless of table.
// System timestamps and ownership metadata stay server-side only.
var hardBlock = map[string]struct{}{
	"inventory_id": {},
	"created_at":   {},
	"updated_at":   {},
	"created_by":   {},
}

// OrderHint describes how to order a table when fetching its most recent rows.
type OrderHint struct {
	Column    string
	Ascending bool
}

// orderHints maps each table to its recency column.
var orderHints = map[Table]OrderHint{
	Products:   {Column: "product_id"},
	Deliveries: {Column: "delivery_date"},
	Inventory:  {Column: "created_at"},
	Machines:   {Column: "created_at"},
}

// Valid reports whether t is a known import target.
func Valid(t Table) bool {
	_, ok := allowed[t]
	return ok
}

// Columns returns the ordered writable columns for t. The returned slice is a
// copy; callers may mutate it.
func Columns(t Table) []string {
	cols := allowed[t]
	out := make([]string, len(cols))
	copy(out, cols)
	return out
}

// IsHardBlocked reports whether col may never be written, on any table.
// The hard-block set wins over any whitelist.
func IsHardBlocked(col string) bool {
	_, ok := hardBlock[col]
	return ok
}

// ServerKey returns the auto-generated key column for t, or "" if the table
// has none.
func ServerKey(t Table) string {
	return serverKey[t]
}

// RecencyHint returns the order hint used to sample a table's newest rows.
func RecencyHint(t Table) OrderHint {
	return orderHints[t]
}
