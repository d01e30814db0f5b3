// Package records defines the loosely typed row representation shared by the
// parsers and the import pipeline. A Record is one parsed source row keyed by
// source header name; values are raw strings (CSV) or JSON primitives.
package records

// Record is a single parsed source row. Keys are source header names.
type Record map[string]any

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Keys returns the record's keys in unspecified order.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	return keys
}
