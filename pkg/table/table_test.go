package table

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []Record {
	return []Record{
		{"id": "a", "license_id": "1", "zip_code": "60601"},
		{"id": "b", "license_id": "2", "latitude": json.Number("41.88")},
		{"id": "c", "license_id": "3", "zip_code": nil},
	}
}

func TestNew_ColumnsFirstSeenOrder(t *testing.T) {
	tbl := New(sampleRecords())

	assert.Equal(t, 3, tbl.Len())
	assert.Equal(t, []string{"id", "license_id", "zip_code", "latitude"}, tbl.Columns())
}

func TestTable_NilIsEmpty(t *testing.T) {
	var tbl *Table
	assert.Equal(t, 0, tbl.Len())
	assert.Nil(t, tbl.Records())
	assert.Nil(t, tbl.Columns())
}

func TestRecord_String(t *testing.T) {
	r := Record{"id": "x", "n": json.Number("3"), "null": nil}

	s, ok := r.String("id")
	assert.True(t, ok)
	assert.Equal(t, "x", s)

	_, ok = r.String("n")
	assert.False(t, ok)
	_, ok = r.String("null")
	assert.False(t, ok)
	_, ok = r.String("missing")
	assert.False(t, ok)
}

func TestTable_Filter(t *testing.T) {
	tbl := New(sampleRecords())
	got := tbl.Filter(func(r Record) bool {
		z, _ := r.String("zip_code")
		return z == "60601"
	})

	require.Equal(t, 1, got.Len())
	assert.Equal(t, "a", got.At(0)["id"])
	assert.Equal(t, tbl.Columns(), got.Columns())
}

func TestTable_Slice(t *testing.T) {
	tbl := New(sampleRecords())

	tests := []struct {
		name   string
		offset int
		limit  int
		want   []string
	}{
		{name: "first page", offset: 0, limit: 2, want: []string{"a", "b"}},
		{name: "last partial page", offset: 2, limit: 2, want: []string{"c"}},
		{name: "past the end", offset: 5, limit: 2, want: nil},
		{name: "negative offset", offset: -1, limit: 1, want: []string{"a"}},
		{name: "no limit", offset: 1, limit: -1, want: []string{"b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tbl.Slice(tt.offset, tt.limit)
			var ids []string
			for _, r := range got.Records() {
				ids = append(ids, r["id"].(string))
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestTable_WithColumn(t *testing.T) {
	tbl := New(sampleRecords())

	got, err := tbl.WithColumn("risk", []any{0.1, 0.2, 0.3})
	require.NoError(t, err)
	assert.Equal(t, 0.2, got.At(1)["risk"])
	assert.Contains(t, got.Columns(), "risk")

	// original untouched
	_, ok := tbl.At(1)["risk"]
	assert.False(t, ok)

	_, err = tbl.WithColumn("risk", []any{0.1})
	assert.Error(t, err)
}

func TestTable_Reorder(t *testing.T) {
	tbl := New(sampleRecords()).Reorder("zip_code", "unknown", "id")
	assert.Equal(t, []string{"zip_code", "id", "license_id", "latitude"}, tbl.Columns())
}

func TestTable_WriteCSV(t *testing.T) {
	tbl := New(sampleRecords())

	var buf bytes.Buffer
	require.NoError(t, tbl.WriteCSV(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "id,license_id,zip_code,latitude", lines[0])
	assert.Equal(t, "a,1,60601,", lines[1])
	assert.Equal(t, "b,2,,41.88", lines[2])
	assert.Equal(t, "c,3,,", lines[3])
}

func TestTable_JSONRoundTripKeepsNumbers(t *testing.T) {
	tbl := New(sampleRecords())

	data, err := json.Marshal(tbl)
	require.NoError(t, err)

	var back Table
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, json.Number("41.88"), back.At(1)["latitude"])
	assert.Equal(t, tbl.Len(), back.Len())
}

func TestDecodeRecords(t *testing.T) {
	records, err := DecodeRecords(strings.NewReader(`[]`))
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Len(t, records, 0)

	_, err = DecodeRecords(strings.NewReader(`{"id": "a"}`))
	assert.Error(t, err)
}

func TestFormatValue(t *testing.T) {
	got, err := FormatValue(map[string]any{"type": "Point"})
	require.NoError(t, err)
	assert.Equal(t, `{"type":"Point"}`, got)

	got, err = FormatValue(true)
	require.NoError(t, err)
	assert.Equal(t, "true", got)
}
