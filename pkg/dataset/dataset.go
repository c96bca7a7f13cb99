// Package dataset names the Chicago data portal resources this module reads.
package dataset

import (
	"context"
	"fmt"
	"strings"

	"github.com/dsworkflows/chidata/pkg/logging"
	"github.com/dsworkflows/chidata/pkg/pagination"
	"github.com/dsworkflows/chidata/pkg/schema"
	"github.com/dsworkflows/chidata/pkg/table"
)

// DefaultCount is the number of records fetched when the caller does not ask
// for a specific amount.
const DefaultCount = 100

// Dataset describes one paged portal resource.
type Dataset struct {
	// ID is the portal resource id, e.g. "r5kz-chrr".
	ID string
	// Name is a human-readable label.
	Name string
	// OrderBy is the column used for stable paging.
	OrderBy string
	// MaxPageSize is the largest $limit the portal accepts.
	MaxPageSize int
	// Schema lists the columns every record must carry.
	Schema schema.Schema
}

var (
	// BusinessLicense is the City of Chicago business licenses dataset.
	BusinessLicense = Dataset{
		ID:          "r5kz-chrr",
		Name:        "business_license",
		OrderBy:     "id",
		MaxPageSize: pagination.DefaultMaxPageSize,
		Schema: schema.New(
			schema.Column{Name: "id", Type: schema.String},
			schema.Column{Name: "license_id", Type: schema.String},
		),
	}

	// FoodInspection is the City of Chicago food inspections dataset.
	FoodInspection = Dataset{
		ID:          "4ijn-s7e5",
		Name:        "food_inspection",
		OrderBy:     "inspection_id",
		MaxPageSize: pagination.DefaultMaxPageSize,
		Schema: schema.New(
			schema.Column{Name: "inspection_id", Type: schema.String},
			schema.Column{Name: "license_", Type: schema.String},
		),
	}
)

var registry = map[string]Dataset{
	BusinessLicense.ID: BusinessLicense,
	FoodInspection.ID:  FoodInspection,
}

// Lookup resolves a dataset by resource id. A trailing ".json" or ".csv" is
// ignored.
func Lookup(id string) (Dataset, error) {
	id = strings.TrimSuffix(strings.TrimSuffix(id, ".json"), ".csv")
	d, ok := registry[id]
	if !ok {
		return Dataset{}, fmt.Errorf("unknown dataset %q", id)
	}
	return d, nil
}

// All returns the known datasets ordered by id.
func All() []Dataset {
	return []Dataset{FoodInspection, BusinessLicense}
}

// Resource returns the JSON resource path, e.g. "r5kz-chrr.json".
func (d Dataset) Resource() string {
	return d.ID + ".json"
}

// Fetcher builds a paginated fetcher for d.
func (d Dataset) Fetcher(opener pagination.Opener) (*pagination.Fetcher, error) {
	return pagination.NewFetcher(opener, pagination.Config{
		Resource:    d.Resource(),
		OrderBy:     d.OrderBy,
		MaxPageSize: d.MaxPageSize,
		Schema:      d.Schema,
		Logger:      logging.NewLogger("fetcher").With().Str("dataset", d.Name).Logger(),
	})
}

// Get fetches up to n validated records of d.
func (d Dataset) Get(ctx context.Context, opener pagination.Opener, n int) (*table.Table, error) {
	f, err := d.Fetcher(opener)
	if err != nil {
		return nil, err
	}
	return f.Fetch(ctx, n)
}
