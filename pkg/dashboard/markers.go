package dashboard

import (
	"encoding/json"
	"strconv"

	"github.com/dsworkflows/chidata/pkg/table"
)

// Marker is one license location on the map.
type Marker struct {
	Lat                float64 `json:"lat"`
	Lon                float64 `json:"lon"`
	Name               string  `json:"name"`
	LicenseID          string  `json:"license_id"`
	LicenseCode        string  `json:"license_code"`
	LicenseDescription string  `json:"license_description"`
}

// Markers extracts map markers from t, skipping records without coordinates.
func Markers(t *table.Table) []Marker {
	out := make([]Marker, 0, t.Len())
	for _, r := range t.Records() {
		lat, okLat := coordinate(r[ColLatitude])
		lon, okLon := coordinate(r[ColLongitude])
		if !okLat || !okLon {
			continue
		}
		out = append(out, Marker{
			Lat:                lat,
			Lon:                lon,
			Name:               text(r, ColDBAName),
			LicenseID:          text(r, ColLicenseID),
			LicenseCode:        text(r, ColLicenseCode),
			LicenseDescription: text(r, ColLicenseDescription),
		})
	}
	return out
}

// coordinate accepts the portal's string encoding as well as decoded numbers.
func coordinate(v any) (float64, bool) {
	switch c := v.(type) {
	case float64:
		return c, true
	case json.Number:
		f, err := c.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(c, 64)
		return f, err == nil
	}
	return 0, false
}
