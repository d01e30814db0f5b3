package dedup

import (
	"reflect"
	"testing"

	"fleetseed/internal/coerce"
	"fleetseed/internal/schema"
)

func TestRowsKeepLast(t *testing.T) {
	in := []coerce.Row{
		{"name": "Cola", "price": 1.0},
		{"name": "Fanta", "price": 1.2},
		{"name": "Cola", "price": 1.5},
	}
	out, dropped := Rows(schema.Products, in)
	if dropped != 1 {
		t.Fatalf("dropped = %d, want 1", dropped)
	}
	want := []coerce.Row{
		{"name": "Cola", "price": 1.5},
		{"name": "Fanta", "price": 1.2},
	}
	if !reflect.DeepEqual(out, want) {
		t.Fatalf("got %#v want %#v", out, want)
	}
}

func TestRowsCompositeKey(t *testing.T) {
	in := []coerce.Row{
		{"machine_id": "m-1", "product_id": int64(7), "position_id": int64(1), "current_stock": int64(3)},
		{"machine_id": "m-1", "product_id": int64(7), "position_id": int64(2), "current_stock": int64(4)},
		{"machine_id": "m-1", "product_id": int64(7), "position_id": int64(1), "current_stock": int64(9)},
	}
	out, dropped := Rows(schema.Inventory, in)
	if dropped != 1 {
		t.Fatalf("dropped = %d, want 1", dropped)
	}
	if out[0]["current_stock"] != int64(9) {
		t.Fatalf("keep-last broken: %#v", out[0])
	}
	if out[1]["position_id"] != int64(2) {
		t.Fatalf("distinct key dropped: %#v", out[1])
	}
}

func TestRowsAllNilKeyNotCollapsed(t *testing.T) {
	in := []coerce.Row{
		{"name": nil, "price": 1.0},
		{"name": nil, "price": 2.0},
	}
	out, dropped := Rows(schema.Products, in)
	if dropped != 0 || len(out) != 2 {
		t.Fatalf("nil-key rows must not collapse: %d dropped, %d rows", dropped, len(out))
	}
}

func TestRowsNoDuplicates(t *testing.T) {
	in := []coerce.Row{
		{"name": "Cola"},
		{"name": "Fanta"},
	}
	out, dropped := Rows(schema.Products, in)
	if dropped != 0 {
		t.Fatalf("dropped = %d, want 0", dropped)
	}
	if !reflect.DeepEqual(out, in) {
		t.Fatalf("clean batch must pass through unchanged")
	}
}
