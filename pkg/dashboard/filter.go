// Package dashboard turns a business license snapshot into the filtered,
// paged and scored view served to the licensing dashboard.
//
// Every function here is pure: the snapshot is never modified and a new
// table is returned for each step.
package dashboard

import (
	"sort"
	"strings"
	"time"

	"github.com/dsworkflows/chidata/pkg/table"
)

// Active selects licenses by expiration.
type Active string

const (
	ActiveAll Active = ""
	ActiveYes Active = "yes"
	ActiveNo  Active = "no"
)

// Column names read from the business license dataset.
const (
	ColLegalName          = "legal_name"
	ColDBAName            = "doing_business_as_name"
	ColAddress            = "address"
	ColZipCode            = "zip_code"
	ColLicenseID          = "license_id"
	ColLicenseCode        = "license_code"
	ColLicenseDescription = "license_description"
	ColExpirationDate     = "expiration_date"
	ColLatitude           = "latitude"
	ColLongitude          = "longitude"
)

// Filters narrows a snapshot. Empty fields match everything.
type Filters struct {
	ZipCode     string `form:"zip_code" json:"zip_code,omitempty"`
	LicenseCode string `form:"license_code" json:"license_code,omitempty"`
	Name        string `form:"name" json:"name,omitempty"`
	Active      Active `form:"active" json:"active,omitempty" binding:"omitempty,oneof=yes no"`
}

// portal timestamps carry no zone
var dateLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Apply returns the records of snapshot matching f. now decides which
// licenses are active.
func Apply(snapshot *table.Table, f Filters, now time.Time) *table.Table {
	name := strings.ToLower(strings.TrimSpace(f.Name))

	return snapshot.Filter(func(r table.Record) bool {
		if f.ZipCode != "" && text(r, ColZipCode) != f.ZipCode {
			return false
		}
		if f.LicenseCode != "" && text(r, ColLicenseCode) != f.LicenseCode {
			return false
		}
		if name != "" &&
			!strings.Contains(strings.ToLower(text(r, ColDBAName)), name) &&
			!strings.Contains(strings.ToLower(text(r, ColLegalName)), name) {
			return false
		}
		switch f.Active {
		case ActiveYes:
			return isActive(r, now)
		case ActiveNo:
			return !isActive(r, now)
		}
		return true
	})
}

// isActive reports whether the license expires after now. Records without a
// readable expiration date are treated as inactive.
func isActive(r table.Record, now time.Time) bool {
	raw := text(r, ColExpirationDate)
	if raw == "" {
		return false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, now.Location()); err == nil {
			return t.After(now)
		}
	}
	return false
}

// Option is one entry of a select box.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// ZipCodeOptions lists the distinct zip codes of t, preceded by "All".
func ZipCodeOptions(t *table.Table) []Option {
	return options(t, ColZipCode, func(r table.Record, v string) string { return v })
}

// LicenseCodeOptions lists the distinct license codes of t labelled
// "code - description", preceded by "All".
func LicenseCodeOptions(t *table.Table) []Option {
	return options(t, ColLicenseCode, func(r table.Record, v string) string {
		if d := text(r, ColLicenseDescription); d != "" {
			return v + " - " + d
		}
		return v
	})
}

func options(t *table.Table, column string, label func(table.Record, string) string) []Option {
	seen := make(map[string]string)
	for _, r := range t.Records() {
		v := text(r, column)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; !ok {
			seen[v] = label(r, v)
		}
	}

	values := make([]string, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Strings(values)

	out := make([]Option, 0, len(values)+1)
	out = append(out, Option{Value: "", Label: "All"})
	for _, v := range values {
		out = append(out, Option{Value: v, Label: seen[v]})
	}
	return out
}

func text(r table.Record, field string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return ""
	}
	s, err := table.FormatValue(v)
	if err != nil {
		return ""
	}
	return s
}
