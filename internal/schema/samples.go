package schema

// Sample CSV templates offered for download, one per table. These are fixed
// strings that match the whitelisted columns; the inventory template uses a
// placeholder where a real machine UUID is expected.
var samples = map[Table]string{
	Products:   "name,price,shelf_life_days\nCola 0.5L,1.50,180\nWater 0.5L,1.20,365\n",
	Deliveries: "product_id,delivery_date,best_before_date,quantity\n1,2025-08-01,2025-12-01,50\n2,2025-08-05,2026-08-05,100\n",
	Inventory:  "machine_id,product_id,current_stock,capacity,restocked_at,best_before_date,status,position_id,shelf_row,shelf_column\n<uuid_of_machine>,1,25,50,2025-08-10,2025-12-01,OK,1,1,1\n<uuid_of_machine>,2,40,60,2025-08-11,2026-08-05,OK,2,1,2\n",
	Machines:   "machine_name,machine_location,machine_revenue\nMain Station,Central Hall,0\nCampus North,Cafeteria,0\n",
}

// SampleCSV returns the downloadable CSV template for t, or "" for an unknown
// table.
func SampleCSV(t Table) string {
	return samples[t]
}
