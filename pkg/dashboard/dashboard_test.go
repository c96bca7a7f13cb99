package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dsworkflows/chidata/pkg/predict"
	"github.com/dsworkflows/chidata/pkg/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func snapshot() *table.Table {
	return table.New([]table.Record{
		{
			"id": "1", "license_id": "100", "legal_name": "ACME FOODS LLC", "doing_business_as_name": "Acme Deli",
			"address": "1 N STATE ST", "zip_code": "60601", "license_code": "1006", "license_description": "Retail Food Establishment",
			"latitude": "41.88", "longitude": "-87.62", "expiration_date": "2025-06-15T00:00:00.000",
		},
		{
			"id": "2", "license_id": "200", "legal_name": "BLUE LINE INC", "doing_business_as_name": "Blue Tavern",
			"address": "2 W LAKE ST", "zip_code": "60602", "license_code": "4404", "license_description": "Tavern",
			"latitude": json.Number("41.90"), "longitude": json.Number("-87.63"), "expiration_date": "2023-01-15T00:00:00.000",
		},
		{
			"id": "3", "license_id": "300", "legal_name": "CORNER SHOP", "doing_business_as_name": "Corner",
			"address": "3 S WELLS ST", "zip_code": "60601", "license_code": "1010", "license_description": "Limited Business License",
			"expiration_date": "2024-12-31",
		},
		{
			"id": "4", "license_id": "400", "legal_name": "DELI BROTHERS", "doing_business_as_name": "DB",
			"address": "4 E OHIO ST", "zip_code": json.Number("60611"), "license_code": "1006", "license_description": "Retail Food Establishment",
			"latitude": 41.89, "longitude": -87.61,
		},
	})
}

func ids(t *table.Table) []string {
	out := make([]string, 0, t.Len())
	for _, r := range t.Records() {
		id, _ := r.String("id")
		out = append(out, id)
	}
	return out
}

func TestApply(t *testing.T) {
	tests := []struct {
		name    string
		filters Filters
		want    []string
	}{
		{name: "no filters", filters: Filters{}, want: []string{"1", "2", "3", "4"}},
		{name: "zip code", filters: Filters{ZipCode: "60601"}, want: []string{"1", "3"}},
		{name: "numeric zip code", filters: Filters{ZipCode: "60611"}, want: []string{"4"}},
		{name: "license code", filters: Filters{LicenseCode: "1006"}, want: []string{"1", "4"}},
		{name: "name matches dba", filters: Filters{Name: "tavern"}, want: []string{"2"}},
		{name: "name matches legal name", filters: Filters{Name: "Deli"}, want: []string{"1", "4"}},
		{name: "active", filters: Filters{Active: ActiveYes}, want: []string{"1", "3"}},
		{name: "inactive", filters: Filters{Active: ActiveNo}, want: []string{"2", "4"}},
		{name: "combined", filters: Filters{ZipCode: "60601", LicenseCode: "1010", Active: ActiveYes}, want: []string{"3"}},
		{name: "no match", filters: Filters{ZipCode: "99999"}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(snapshot(), tt.filters, now)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestApply_DoesNotModifySnapshot(t *testing.T) {
	s := snapshot()
	Apply(s, Filters{ZipCode: "60601"}, now)
	assert.Equal(t, 4, s.Len())
}

func TestOptions(t *testing.T) {
	zips := ZipCodeOptions(snapshot())
	assert.Equal(t, []Option{
		{Value: "", Label: "All"},
		{Value: "60601", Label: "60601"},
		{Value: "60602", Label: "60602"},
		{Value: "60611", Label: "60611"},
	}, zips)

	codes := LicenseCodeOptions(snapshot())
	assert.Equal(t, []Option{
		{Value: "", Label: "All"},
		{Value: "1006", Label: "1006 - Retail Food Establishment"},
		{Value: "1010", Label: "1010 - Limited Business License"},
		{Value: "4404", Label: "4404 - Tavern"},
	}, codes)
}

func TestOptions_EmptyTable(t *testing.T) {
	assert.Equal(t, []Option{{Value: "", Label: "All"}}, ZipCodeOptions(table.New(nil)))
}

func TestPager(t *testing.T) {
	p := NewPager(2)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 0, p.Offset())

	p = p.Next(5)
	assert.Equal(t, 2, p.Page)
	assert.Equal(t, 2, p.Offset())

	p = p.Next(5).Next(5).Next(5)
	assert.Equal(t, 3, p.Page, "stays on last page")

	p = p.Prev().Prev().Prev()
	assert.Equal(t, 1, p.Page, "never below first page")

	p = p.Next(5).Next(5).Reset()
	assert.Equal(t, 1, p.Page)

	assert.Equal(t, 1, Pager{}.Pages(0))
	assert.Equal(t, DefaultPageSize, Pager{}.normalized().Size)
}

func TestMarkers(t *testing.T) {
	markers := Markers(snapshot())
	require.Len(t, markers, 3, "record without coordinates is skipped")

	assert.Equal(t, Marker{
		Lat: 41.88, Lon: -87.62, Name: "Acme Deli", LicenseID: "100",
		LicenseCode: "1006", LicenseDescription: "Retail Food Establishment",
	}, markers[0])
	assert.InDelta(t, 41.90, markers[1].Lat, 1e-9)
	assert.InDelta(t, -87.61, markers[2].Lon, 1e-9)
}

func TestView(t *testing.T) {
	scores := predict.PredictorFunc(func(_ context.Context, t *table.Table) ([]float64, error) {
		out := make([]float64, t.Len())
		for i := range out {
			out[i] = 0.5
		}
		return out, nil
	})

	res, err := view(context.Background(), snapshot(), Filters{LicenseCode: "1006"}, Pager{Page: 2, Size: 1}, scores, now)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, 2, res.Page)
	assert.Equal(t, []string{"4"}, ids(res.Rows))
	assert.Equal(t, LeadingColumns, res.Columns[:len(LeadingColumns)])
	assert.Equal(t, []any{0.5}, res.Rows.Column(RiskColumn))
	assert.Len(t, res.Markers, 2)
	assert.Len(t, res.ZipCodes, 4)
}

func TestView_ClampsPageAndSkipsNilPredictor(t *testing.T) {
	res, err := view(context.Background(), snapshot(), Filters{}, Pager{Page: 9, Size: 3}, nil, now)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Page)
	assert.Equal(t, []string{"4"}, ids(res.Rows))
	assert.NotContains(t, res.Columns, RiskColumn)
	assert.Equal(t, ColDBAName, res.Columns[0])
}

func TestView_PredictorError(t *testing.T) {
	bad := predict.PredictorFunc(func(context.Context, *table.Table) ([]float64, error) {
		return nil, nil
	})

	_, err := view(context.Background(), snapshot(), Filters{}, NewPager(10), bad, now)
	assert.True(t, errors.Is(err, predict.ErrPredictionCount))
}
