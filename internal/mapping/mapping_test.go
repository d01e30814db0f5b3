package mapping

import (
	"reflect"
	"sort"
	"testing"

	"fleetseed/internal/schema"
	"fleetseed/pkg/records"
)

func TestSurfaceExcludesServerKeyAndBlocked(t *testing.T) {
	surf := Surface(schema.Products)
	want := []string{"name", "price", "shelf_life_days"}
	if !reflect.DeepEqual(surf, want) {
		t.Fatalf("products surface = %v, want %v", surf, want)
	}

	for _, col := range Surface(schema.Inventory) {
		if schema.IsHardBlocked(col) {
			t.Fatalf("hard-blocked column %q on surface", col)
		}
	}
	// machine_id is machines' server key but a writable reference on inventory.
	found := false
	for _, col := range Surface(schema.Inventory) {
		if col == "machine_id" {
			found = true
		}
	}
	if !found {
		t.Fatalf("inventory surface must include machine_id")
	}
	for _, col := range Surface(schema.Machines) {
		if col == "machine_id" {
			t.Fatalf("machines surface must not include its own server key")
		}
	}
}

func TestAutoMapExactAndFolded(t *testing.T) {
	m := AutoMap(schema.Products, []string{"Name", " PRICE ", "Shelf Life Days", "extra"})
	want := Mapping{
		"name":            "Name",
		"price":           " PRICE ",
		"shelf_life_days": "Shelf Life Days",
	}
	if !reflect.DeepEqual(m, want) {
		t.Fatalf("got %#v want %#v", m, want)
	}
}

func TestAutoMapDiacritics(t *testing.T) {
	m := AutoMap(schema.Products, []string{"Náme", "Pricé"})
	if m["name"] != "Náme" || m["price"] != "Pricé" {
		t.Fatalf("accented headers not folded: %#v", m)
	}
}

func TestAutoMapUnmatchedStaysUnmapped(t *testing.T) {
	m := AutoMap(schema.Products, []string{"produkt", "cost"})
	if len(m) != 0 {
		t.Fatalf("nothing should match, got %#v", m)
	}
}

func TestSetOverrideAndClear(t *testing.T) {
	m := Mapping{"name": "Name"}
	m.Set("price", "cost")
	if m["price"] != "cost" {
		t.Fatalf("override not applied: %#v", m)
	}
	m.Set("name", "")
	if _, ok := m["name"]; ok {
		t.Fatalf("empty source must clear the mapping")
	}
}

func TestApplyProjectsOnlyMappedColumns(t *testing.T) {
	m := Mapping{"name": "Produkt", "price": "Cost"}
	rows := []records.Record{
		{"Produkt": "Cola", "Cost": "1,50", "Ignored": "x"},
		{"Produkt": "Fanta"},
	}
	out := m.Apply(schema.Products, rows)
	if !reflect.DeepEqual(out[0], records.Record{"name": "Cola", "price": "1,50"}) {
		t.Fatalf("row 0 = %#v", out[0])
	}
	// Missing source key stays absent, not nil.
	if _, ok := out[1]["price"]; ok {
		t.Fatalf("absent source must stay absent: %#v", out[1])
	}
}

func TestFoldName(t *testing.T) {
	cases := map[string]string{
		"Shelf Life Days": "shelf_life_days",
		"  machine-ID  ":  "machine_id",
		"Prix (€)":        "prix",
		"Crème Brûlée":    "creme_brulee",
		"a__b":            "a_b",
	}
	keys := make([]string, 0, len(cases))
	for k := range cases {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, in := range keys {
		if got := foldName(in); got != cases[in] {
			t.Errorf("foldName(%q) = %q, want %q", in, got, cases[in])
		}
	}
}
