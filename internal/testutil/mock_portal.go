// Package testutil provides testing utilities for the open-data client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockResponse defines a canned response for a single request.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RecordedRequest captures what a request asked for.
type RecordedRequest struct {
	Path   string
	Order  string
	Limit  int
	Offset int
	Header http.Header
}

// MockPortal is a configurable paging SODA server for testing.
// Resources are served from in-memory record lists honoring $order, $limit
// and $offset.
type MockPortal struct {
	server *httptest.Server

	mu        sync.RWMutex
	resources map[string][]map[string]any
	overrides map[int]MockResponse
	requests  []RecordedRequest

	// MaxLimit rejects requests asking for more than this many records
	// with 400, like the real portal. Zero disables the check.
	MaxLimit int
}

// NewMockPortal creates a new mock portal server.
func NewMockPortal() *MockPortal {
	m := &MockPortal{
		resources: make(map[string][]map[string]any),
		overrides: make(map[int]MockResponse),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// URL returns the resource root of the mock server.
func (m *MockPortal) URL() string {
	return m.server.URL + "/resource/"
}

// Close shuts down the mock server.
func (m *MockPortal) Close() {
	m.server.Close()
}

// SetResource registers the records served for a resource file such as
// "r5kz-chrr.json".
func (m *MockPortal) SetResource(name string, records []map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources[name] = records
}

// FailRequest makes the n-th request (1-based) return resp instead of data.
func (m *MockPortal) FailRequest(n int, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[n] = resp
}

// Requests returns a copy of the recorded requests.
func (m *MockPortal) Requests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockPortal) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// Reset clears recorded requests and failure overrides.
func (m *MockPortal) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.overrides = make(map[int]MockResponse)
}

func (m *MockPortal) handle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("$limit"))
	offset, _ := strconv.Atoi(q.Get("$offset"))
	name := strings.TrimPrefix(r.URL.Path, "/resource/")

	m.mu.Lock()
	m.requests = append(m.requests, RecordedRequest{
		Path:   name,
		Order:  q.Get("$order"),
		Limit:  limit,
		Offset: offset,
		Header: r.Header.Clone(),
	})
	override, hasOverride := m.overrides[len(m.requests)]
	records, hasResource := m.resources[name]
	maxLimit := m.MaxLimit
	m.mu.Unlock()

	if hasOverride {
		writeMock(w, override)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	if !hasResource {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, `{"code":"not_found","message":"resource %s not found"}`, name)
		return
	}
	if maxLimit > 0 && limit > maxLimit {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, `{"code":"query.compiler.malformed","message":"$limit %d exceeds %d"}`, limit, maxLimit)
		return
	}

	page := paginate(sortRecords(records, q.Get("$order")), limit, offset)

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(page)
}

func writeMock(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

func sortRecords(records []map[string]any, order string) []map[string]any {
	out := make([]map[string]any, len(records))
	copy(out, records)
	if order == "" {
		return out
	}
	sort.SliceStable(out, func(i, j int) bool {
		return fmt.Sprint(out[i][order]) < fmt.Sprint(out[j][order])
	})
	return out
}

func paginate(records []map[string]any, limit, offset int) []map[string]any {
	if offset >= len(records) {
		return []map[string]any{}
	}
	end := len(records)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return records[offset:end]
}

// BusinessLicenses generates n business license records with zero-padded ids
// so that ordering by id matches generation order.
func BusinessLicenses(n int) []map[string]any {
	zips := []string{"60601", "60602", "60614", "60622"}
	codes := []string{"1010", "1006", "4404"}
	descriptions := map[string]string{
		"1010": "Limited Business License",
		"1006": "Retail Food Establishment",
		"4404": "Tavern",
	}

	out := make([]map[string]any, n)
	for i := 0; i < n; i++ {
		code := codes[i%len(codes)]
		out[i] = map[string]any{
			"id":                     fmt.Sprintf("%07d-%d", i, 20230101),
			"license_id":             strconv.Itoa(2000000 + i),
			"legal_name":             fmt.Sprintf("BUSINESS %d LLC", i),
			"doing_business_as_name": fmt.Sprintf("SHOP %d", i),
			"address":                fmt.Sprintf("%d N STATE ST", 100+i),
			"zip_code":               zips[i%len(zips)],
			"license_code":           code,
			"license_description":    descriptions[code],
			"latitude":               41.8 + float64(i%100)/1000,
			"longitude":              -87.6 - float64(i%100)/1000,
			"expiration_date":        "2025-06-15T00:00:00.000",
		}
	}
	return out
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"code":"internal","message":"Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewThrottledResponse creates a 429 Too Many Requests response.
func NewThrottledResponse(retryAfter string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"code":"throttled","message":"Too many requests"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
			"Retry-After":  retryAfter,
		},
	}
}

// NewJSONResponse creates a 200 OK response with a raw JSON body.
func NewJSONResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}
