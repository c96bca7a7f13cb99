// Package table provides the in-memory record table produced by the fetchers
// and consumed by the dashboard, cache and HTTP layers.
package table

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Record is one source row: field name to scalar JSON value.
// Numbers are kept as json.Number so they pass through unchanged.
type Record map[string]any

// String returns the field as a string and whether it was a non-null string.
func (r Record) String(field string) (string, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table is an ordered list of records.
// A Table is treated as immutable once built; transformations return new tables.
type Table struct {
	records []Record
	columns []string
}

// New builds a table from records, preserving their order.
func New(records []Record) *Table {
	t := &Table{records: records}
	t.columns = collectColumns(records)
	return t
}

// Len returns the number of records.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.records)
}

// Records returns the underlying records. Callers must not modify them.
func (t *Table) Records() []Record {
	if t == nil {
		return nil
	}
	return t.records
}

// At returns the i-th record.
func (t *Table) At(i int) Record {
	return t.records[i]
}

// Columns returns the union of field names in first-seen order.
func (t *Table) Columns() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// Column returns the values of a single field, nil where the field is absent.
func (t *Table) Column(name string) []any {
	out := make([]any, t.Len())
	for i, r := range t.Records() {
		out[i] = r[name]
	}
	return out
}

// Filter returns a new table with the records for which keep returns true.
func (t *Table) Filter(keep func(Record) bool) *Table {
	out := make([]Record, 0, t.Len())
	for _, r := range t.Records() {
		if keep(r) {
			out = append(out, r)
		}
	}
	return &Table{records: out, columns: t.Columns()}
}

// Slice returns up to limit records starting at offset.
func (t *Table) Slice(offset, limit int) *Table {
	n := t.Len()
	if offset < 0 {
		offset = 0
	}
	if offset > n {
		offset = n
	}
	end := n
	if limit >= 0 && offset+limit < n {
		end = offset + limit
	}
	out := make([]Record, end-offset)
	copy(out, t.records[offset:end])
	return &Table{records: out, columns: t.Columns()}
}

// WithColumn returns a copy of the table with values set on field name.
// values must have one entry per record.
func (t *Table) WithColumn(name string, values []any) (*Table, error) {
	if len(values) != t.Len() {
		return nil, fmt.Errorf("column %q: got %d values for %d records", name, len(values), t.Len())
	}
	out := make([]Record, t.Len())
	for i, r := range t.Records() {
		c := r.Clone()
		c[name] = values[i]
		out[i] = c
	}
	cols := t.Columns()
	if !contains(cols, name) {
		cols = append(cols, name)
	}
	return &Table{records: out, columns: cols}, nil
}

// Reorder returns a table whose columns start with first, keeping the
// relative order of the rest. Unknown names in first are ignored.
func (t *Table) Reorder(first ...string) *Table {
	cols := t.Columns()
	ordered := make([]string, 0, len(cols))
	for _, c := range first {
		if contains(cols, c) && !contains(ordered, c) {
			ordered = append(ordered, c)
		}
	}
	for _, c := range cols {
		if !contains(ordered, c) {
			ordered = append(ordered, c)
		}
	}
	return &Table{records: t.Records(), columns: ordered}
}

// MarshalJSON encodes the table as a JSON array of records.
func (t *Table) MarshalJSON() ([]byte, error) {
	if t.Len() == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(t.records)
}

// UnmarshalJSON decodes a JSON array of records.
func (t *Table) UnmarshalJSON(data []byte) error {
	records, err := DecodeRecords(bytes.NewReader(data))
	if err != nil {
		return err
	}
	*t = *New(records)
	return nil
}

// DecodeRecords decodes a JSON array of objects, keeping numbers as json.Number.
func DecodeRecords(r io.Reader) ([]Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var records []Record
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

func collectColumns(records []Record) []string {
	seen := make(map[string]struct{})
	var cols []string
	for _, r := range records {
		// keys within one record are sorted; map order is random
		for _, k := range sortedKeys(r) {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			cols = append(cols, k)
		}
	}
	return cols
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
