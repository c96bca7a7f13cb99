package dashboard

import (
	"context"
	"time"

	"github.com/dsworkflows/chidata/pkg/predict"
	"github.com/dsworkflows/chidata/pkg/table"
)

// RiskColumn holds the predicted likelihood of a violation.
const RiskColumn = "risk"

// LeadingColumns are shown first in the dashboard table.
var LeadingColumns = []string{
	RiskColumn,
	ColDBAName,
	ColAddress,
	ColLicenseID,
	ColLicenseCode,
	ColLicenseDescription,
}

// Result is one rendered dashboard page.
type Result struct {
	Filters  Filters      `json:"filters"`
	Page     int          `json:"page"`
	Size     int          `json:"size"`
	Pages    int          `json:"pages"`
	Total    int          `json:"total"`
	Columns  []string     `json:"columns"`
	Rows     *table.Table `json:"rows"`
	Markers  []Marker     `json:"markers"`
	ZipCodes []Option     `json:"zip_codes"`
	Licenses []Option     `json:"license_codes"`
}

// View filters snapshot, cuts out the current page, scores it with predictor
// and moves the leading columns to the front. A nil predictor leaves the
// risk column out. Select options are computed over the whole snapshot and
// markers over the filtered set.
func View(ctx context.Context, snapshot *table.Table, f Filters, p Pager, predictor predict.Predictor) (*Result, error) {
	return view(ctx, snapshot, f, p, predictor, time.Now())
}

func view(ctx context.Context, snapshot *table.Table, f Filters, p Pager, predictor predict.Predictor, now time.Time) (*Result, error) {
	p = p.normalized()

	filtered := Apply(snapshot, f, now)
	if last := p.Pages(filtered.Len()); p.Page > last {
		p.Page = last
	}
	page := filtered.Slice(p.Offset(), p.Size)

	if predictor != nil {
		scored, err := predict.Attach(ctx, predictor, page, RiskColumn)
		if err != nil {
			return nil, err
		}
		page = scored
	}
	page = page.Reorder(LeadingColumns...)

	return &Result{
		Filters:  f,
		Page:     p.Page,
		Size:     p.Size,
		Pages:    p.Pages(filtered.Len()),
		Total:    filtered.Len(),
		Columns:  page.Columns(),
		Rows:     page,
		Markers:  Markers(filtered),
		ZipCodes: ZipCodeOptions(snapshot),
		Licenses: LicenseCodeOptions(snapshot),
	}, nil
}
