package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key identifies a cached table.
type Key struct {
	// Dataset is the upstream resource id (e.g., "r5kz-chrr")
	Dataset string

	// Count is the number of records requested
	Count int

	// Params are additional query parameters that shaped the table
	Params url.Values
}

// String generates a deterministic cache key string.
// Format: chidata:dataset:n=count:param1=val1
//
// Example:
//
//	chidata:r5kz-chrr:n=1000:zip_code=60601
func (k Key) String() string {
	parts := []string{"chidata"}

	dataset := strings.TrimSuffix(strings.Trim(k.Dataset, "/"), ".json")
	if dataset != "" {
		parts = append(parts, dataset)
	}

	if k.Count > 0 {
		parts = append(parts, fmt.Sprintf("n=%d", k.Count))
	}

	// sorted for determinism
	if len(k.Params) > 0 {
		keys := make([]string, 0, len(k.Params))
		for key := range k.Params {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(k.Params[key], ",")))
		}
	}

	return strings.Join(parts, ":")
}
