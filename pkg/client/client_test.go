package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/dsworkflows/chidata/internal/testutil"
)

func newTestClient(t *testing.T, baseURL string, mutate ...func(*Config)) *Client {
	t.Helper()

	cfg := DefaultConfig("chidata-test/1.0.0")
	cfg.BaseURL = baseURL
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	for _, m := range mutate {
		m(&cfg)
	}

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func openSession(t *testing.T, c *Client) *Session {
	t.Helper()

	s, err := c.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:   "valid config",
			config: DefaultConfig("TestApp/1.0.0"),
		},
		{
			name:        "missing base url",
			config:      Config{UserAgent: "TestApp/1.0.0"},
			expectError: true,
			errorMsg:    "base url is required",
		},
		{
			name:        "relative base url",
			config:      Config{BaseURL: "resource/", UserAgent: "TestApp/1.0.0"},
			expectError: true,
			errorMsg:    `base url must be absolute (got "resource/")`,
		},
		{
			name:        "empty user agent",
			config:      Config{BaseURL: DefaultBaseURL},
			expectError: true,
			errorMsg:    "user-agent is required",
		},
		{
			name:        "negative retries",
			config:      Config{BaseURL: DefaultBaseURL, UserAgent: "TestApp/1.0.0", MaxRetries: -1},
			expectError: true,
			errorMsg:    "max_retries must be >= 0 (got -1)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.config)

			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error but got nil")
				}
				if tt.errorMsg != "" && err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if client == nil {
				t.Error("Client is nil")
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("TestApp/1.0.0")

	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, DefaultBaseURL)
	}
	if cfg.MaxRetries != 0 {
		t.Errorf("MaxRetries = %d, want 0", cfg.MaxRetries)
	}
	if cfg.Timeout <= 0 {
		t.Errorf("Timeout = %v, should be > 0", cfg.Timeout)
	}
}

func TestSession_GetSendsHeadersAndParams(t *testing.T) {
	portal := testutil.NewMockPortal()
	defer portal.Close()
	portal.SetResource("r5kz-chrr.json", testutil.BusinessLicenses(5))

	c := newTestClient(t, portal.URL(), func(cfg *Config) { cfg.AppToken = "token-123" })
	s := openSession(t, c)

	headers := http.Header{"Accept": []string{"application/json"}}
	params := url.Values{"$order": {"id"}, "$limit": {"2"}, "$offset": {"1"}}

	body, err := s.Get(context.Background(), "r5kz-chrr.json", headers, params)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(body) == 0 {
		t.Fatal("Get() returned empty body")
	}

	reqs := portal.Requests()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(reqs))
	}
	got := reqs[0]
	if got.Order != "id" || got.Limit != 2 || got.Offset != 1 {
		t.Errorf("request = %+v, want order=id limit=2 offset=1", got)
	}
	if ua := got.Header.Get("User-Agent"); ua != "chidata-test/1.0.0" {
		t.Errorf("User-Agent = %q", ua)
	}
	if tok := got.Header.Get("X-App-Token"); tok != "token-123" {
		t.Errorf("X-App-Token = %q", tok)
	}
	if acc := got.Header.Get("Accept"); acc != "application/json" {
		t.Errorf("Accept = %q", acc)
	}
}

func TestSession_GetErrorStatus(t *testing.T) {
	tests := []struct {
		name       string
		resp       testutil.MockResponse
		wantClass  ErrorClass
		wantStatus int
	}{
		{
			name:       "server error",
			resp:       testutil.NewServerErrorResponse(),
			wantClass:  ErrorClassServer,
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "not found",
			resp:       testutil.MockResponse{StatusCode: http.StatusNotFound},
			wantClass:  ErrorClassClient,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "throttled",
			resp:       testutil.NewThrottledResponse("1"),
			wantClass:  ErrorClassThrottled,
			wantStatus: http.StatusTooManyRequests,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			portal := testutil.NewMockPortal()
			defer portal.Close()
			portal.SetResource("r5kz-chrr.json", testutil.BusinessLicenses(1))
			portal.FailRequest(1, tt.resp)

			s := openSession(t, newTestClient(t, portal.URL()))

			_, err := s.Get(context.Background(), "r5kz-chrr.json", nil, nil)
			var tErr *TransportError
			if !errors.As(err, &tErr) {
				t.Fatalf("expected *TransportError, got %v", err)
			}
			if tErr.ErrorClass != tt.wantClass {
				t.Errorf("ErrorClass = %q, want %q", tErr.ErrorClass, tt.wantClass)
			}
			if tErr.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", tErr.StatusCode, tt.wantStatus)
			}
			if portal.GetRequestCount() != 1 {
				t.Errorf("requests = %d, want 1 (retries disabled)", portal.GetRequestCount())
			}
		})
	}
}

func TestSession_ThrottleBlocksFollowingRequests(t *testing.T) {
	portal := testutil.NewMockPortal()
	defer portal.Close()
	portal.SetResource("r5kz-chrr.json", testutil.BusinessLicenses(1))
	portal.FailRequest(1, testutil.NewThrottledResponse("60"))

	c := newTestClient(t, portal.URL())
	s := openSession(t, c)
	ctx := context.Background()

	if _, err := s.Get(ctx, "r5kz-chrr.json", nil, nil); err == nil {
		t.Fatal("expected throttled error")
	}

	_, err := s.Get(ctx, "r5kz-chrr.json", nil, nil)
	if !errors.Is(err, ErrThrottled) {
		t.Fatalf("expected ErrThrottled, got %v", err)
	}
	if portal.GetRequestCount() != 1 {
		t.Errorf("requests = %d, want 1 (second request gated locally)", portal.GetRequestCount())
	}

	state, err := c.Throttle().GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.ThrottleCount != 1 {
		t.Errorf("ThrottleCount = %d, want 1", state.ThrottleCount)
	}
	if !state.IsCoolingDown(time.Now()) {
		t.Error("expected an open cooldown after a 429")
	}
}

// recordingTransport counts round trips before delegating.
type recordingTransport struct {
	next  http.RoundTripper
	paths []string
}

func (rt *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rt.paths = append(rt.paths, req.URL.Path)
	return rt.next.RoundTrip(req)
}

func TestClient_SetTransport(t *testing.T) {
	portal := testutil.NewMockPortal()
	defer portal.Close()
	portal.SetResource("r5kz-chrr.json", testutil.BusinessLicenses(2))

	c := newTestClient(t, portal.URL())
	rt := &recordingTransport{next: http.DefaultTransport}
	c.SetTransport(rt)

	s := openSession(t, c)
	if _, err := s.Get(context.Background(), "r5kz-chrr.json", nil, nil); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if len(rt.paths) != 1 || rt.paths[0] != "/resource/r5kz-chrr.json" {
		t.Errorf("transport saw %v, want [/resource/r5kz-chrr.json]", rt.paths)
	}
}

func TestSession_RetryServerErrors(t *testing.T) {
	portal := testutil.NewMockPortal()
	defer portal.Close()
	portal.SetResource("r5kz-chrr.json", testutil.BusinessLicenses(3))
	portal.FailRequest(1, testutil.NewServerErrorResponse())

	c := newTestClient(t, portal.URL(), func(cfg *Config) { cfg.MaxRetries = 2 })
	s := openSession(t, c)

	body, err := s.Get(context.Background(), "r5kz-chrr.json", nil, nil)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(body) == 0 {
		t.Error("empty body after retry")
	}
	if portal.GetRequestCount() != 2 {
		t.Errorf("requests = %d, want 2", portal.GetRequestCount())
	}
}

func TestSession_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := server.URL + "/resource/"
	server.Close()

	s := openSession(t, newTestClient(t, base))

	_, err := s.Get(context.Background(), "r5kz-chrr.json", nil, nil)
	var tErr *TransportError
	if !errors.As(err, &tErr) {
		t.Fatalf("expected *TransportError, got %v", err)
	}
	if tErr.ErrorClass != ErrorClassNetwork {
		t.Errorf("ErrorClass = %q, want network", tErr.ErrorClass)
	}
}

func TestSession_Timeout(t *testing.T) {
	portal := testutil.NewMockPortal()
	defer portal.Close()
	portal.SetResource("r5kz-chrr.json", testutil.BusinessLicenses(1))
	resp := testutil.NewJSONResponse(`[]`)
	resp.Delay = 200 * time.Millisecond
	portal.FailRequest(1, resp)

	c := newTestClient(t, portal.URL(), func(cfg *Config) { cfg.Timeout = 20 * time.Millisecond })
	s := openSession(t, c)

	_, err := s.Get(context.Background(), "r5kz-chrr.json", nil, nil)
	if !IsTransportError(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestSession_Closed(t *testing.T) {
	c := newTestClient(t, DefaultBaseURL)
	s, err := c.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if _, err := s.Get(context.Background(), "r5kz-chrr.json", nil, nil); err == nil {
		t.Error("Get() on closed session should fail")
	}
}

func TestClient_OpenCancelledContext(t *testing.T) {
	c := newTestClient(t, DefaultBaseURL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Open(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Open() error = %v, want context.Canceled", err)
	}
}

func TestClient_Resolve(t *testing.T) {
	c := newTestClient(t, "https://data.example.org/resource")

	got, err := c.resolve("r5kz-chrr.json", url.Values{"$limit": {"10"}})
	if err != nil {
		t.Fatalf("resolve() error = %v", err)
	}
	want := "https://data.example.org/resource/r5kz-chrr.json?%24limit=10"
	if got != want {
		t.Errorf("resolve() = %q, want %q", got, want)
	}
}
