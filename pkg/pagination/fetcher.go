package pagination

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dsworkflows/chidata/pkg/client"
	"github.com/dsworkflows/chidata/pkg/schema"
	"github.com/dsworkflows/chidata/pkg/table"
	"github.com/rs/zerolog"
)

// ErrInvalidCount is returned when the requested record count is not positive.
var ErrInvalidCount = errors.New("record count must be positive")

// Requester performs one GET against the upstream resource root.
type Requester interface {
	Get(ctx context.Context, path string, headers http.Header, params url.Values) ([]byte, error)
	Close() error
}

// Opener acquires a Requester scoped to the upstream base endpoint.
type Opener interface {
	Open(ctx context.Context) (Requester, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context) (Requester, error)

// Open calls f(ctx).
func (f OpenerFunc) Open(ctx context.Context) (Requester, error) {
	return f(ctx)
}

// ClientOpener adapts a *client.Client to Opener.
func ClientOpener(c *client.Client) Opener {
	return OpenerFunc(func(ctx context.Context) (Requester, error) {
		s, err := c.Open(ctx)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

// Query parameter names of the SODA API.
const (
	ParamOrder  = "$order"
	ParamLimit  = "$limit"
	ParamOffset = "$offset"
)

// Config holds fetcher configuration.
type Config struct {
	// Resource is the path of the paged resource, e.g. "r5kz-chrr.json".
	Resource string
	// OrderBy is the deterministic ordering key sent with every request.
	OrderBy string
	// MaxPageSize is the largest limit upstream accepts in one request.
	MaxPageSize int
	// Schema validates the concatenated result.
	Schema schema.Schema
	// Logger receives per-page debug events. The zero value is a no-op logger.
	Logger zerolog.Logger
}

// DefaultMaxPageSize is the per-request limit of the Chicago data portal.
const DefaultMaxPageSize = 1000

// Fetcher retrieves a bounded number of records page by page.
type Fetcher struct {
	opener Opener
	config Config
}

// NewFetcher creates a new fetcher.
func NewFetcher(opener Opener, config Config) (*Fetcher, error) {
	if opener == nil {
		return nil, fmt.Errorf("opener is required")
	}
	if config.Resource == "" {
		return nil, fmt.Errorf("resource is required")
	}
	if config.OrderBy == "" {
		return nil, fmt.Errorf("order key is required")
	}
	if config.MaxPageSize <= 0 {
		config.MaxPageSize = DefaultMaxPageSize
	}

	return &Fetcher{
		opener: opener,
		config: config,
	}, nil
}

// PageSize returns min(MaxPageSize, n).
func (f *Fetcher) PageSize(n int) int {
	return min(f.config.MaxPageSize, n)
}

// Fetch retrieves up to n records and validates them.
//
// Pages are requested sequentially at increasing offsets until n records
// were fetched or a page comes back short. Any transport error aborts the
// fetch; a schema failure discards the whole result. No partial table is
// ever returned.
func (f *Fetcher) Fetch(ctx context.Context, n int) (*table.Table, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidCount, n)
	}

	start := time.Now()
	logger := f.config.Logger.With().
		Str("resource", f.config.Resource).
		Int("n", n).
		Logger()

	requester, err := f.opener.Open(ctx)
	if err != nil {
		fetchesTotal.WithLabelValues(f.config.Resource, resultTransport).Inc()
		return nil, fmt.Errorf("open client: %w", err)
	}
	defer requester.Close()

	pageSize := f.PageSize(n)
	records := make([]table.Record, 0, pageSize)
	headers := http.Header{"Accept": []string{"application/json"}}

	for offset, pages := 0, 0; len(records) < n; pages++ {
		limit := min(pageSize, n-len(records))

		page, err := f.fetchPage(ctx, requester, headers, limit, offset)
		fetchPages.WithLabelValues(f.config.Resource).Inc()
		if err != nil {
			fetchesTotal.WithLabelValues(f.config.Resource, resultTransport).Inc()
			return nil, err
		}

		if len(page) > limit {
			page = page[:limit]
		}
		records = append(records, page...)

		logger.Debug().
			Int("page", pages+1).
			Int("offset", offset).
			Int("limit", limit).
			Int("received", len(page)).
			Msg("Fetched page")

		if len(page) < limit {
			break
		}
		offset += limit
	}

	result := table.New(records)
	if err := f.config.Schema.Validate(result); err != nil {
		fetchesTotal.WithLabelValues(f.config.Resource, resultValidation).Inc()
		logger.Debug().Err(err).Msg("Fetched records failed validation")
		return nil, fmt.Errorf("validate %s: %w", f.config.Resource, err)
	}

	fetchesTotal.WithLabelValues(f.config.Resource, resultOK).Inc()
	fetchRecords.WithLabelValues(f.config.Resource).Add(float64(result.Len()))

	logger.Debug().
		Int("records", result.Len()).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return result, nil
}

func (f *Fetcher) fetchPage(ctx context.Context, r Requester, headers http.Header, limit, offset int) ([]table.Record, error) {
	params := url.Values{
		ParamOrder:  {f.config.OrderBy},
		ParamLimit:  {strconv.Itoa(limit)},
		ParamOffset: {strconv.Itoa(offset)},
	}

	body, err := r.Get(ctx, f.config.Resource, headers, params)
	if err != nil {
		return nil, fmt.Errorf("fetch %s at offset %d: %w", f.config.Resource, offset, err)
	}

	page, err := table.DecodeRecords(bytes.NewReader(body))
	if err != nil {
		return nil, &client.TransportError{
			StatusCode: http.StatusOK,
			ErrorClass: client.ErrorClassDecode,
			Resource:   f.config.Resource,
			Message:    fmt.Sprintf("page at offset %d", offset),
			Err:        err,
		}
	}
	return page, nil
}
