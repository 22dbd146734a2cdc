package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/resilia-labs/inference-gateway/pkg/cache"
)

// newTestCache returns a cache over a throwaway SQLite file.
func newTestCache(t *testing.T) *cache.Cache {
	t.Helper()

	store, err := cache.NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return cache.New(store, time.Hour)
}

// newTestClient builds a transport against the given server with an instant,
// recording sleep.
func newTestClient(t *testing.T, serverURL string) (*Client, *sleepRecorder) {
	t.Helper()

	c, err := New(DefaultConfig(serverURL, "test-key"), newTestCache(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	rec := &sleepRecorder{}
	c.SetSleep(rec.sleep)

	return c, rec
}

// sleepRecorder captures backoff delays without actually sleeping.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Duration, len(r.delays))
	copy(out, r.delays)
	return out
}

func TestNew_Validation(t *testing.T) {
	responseCache := cache.New(nil, time.Hour)

	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			config:      DefaultConfig("https://api.example.com/model", "key-123"),
			expectError: false,
		},
		{
			name:        "missing endpoint",
			config:      Config{APIKey: "key-123"},
			expectError: true,
			errorMsg:    "endpoint is required",
		},
		{
			name:        "missing api key",
			config:      Config{Endpoint: "https://api.example.com/model"},
			expectError: true,
			errorMsg:    "api key is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.config, responseCache)

			if tt.expectError {
				if err == nil {
					t.Fatal("expected error but got nil")
				}
				if tt.errorMsg != "" && err.Error() != tt.errorMsg {
					t.Errorf("error = %q, want %q", err.Error(), tt.errorMsg)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c == nil {
				t.Error("client is nil")
			}
		})
	}
}

func TestNew_NilCache(t *testing.T) {
	if _, err := New(DefaultConfig("https://api.example.com", "key"), nil); err == nil {
		t.Error("expected error for nil cache")
	}
}

func TestNew_DefaultsApplied(t *testing.T) {
	c, err := New(Config{Endpoint: "https://api.example.com", APIKey: "key"}, cache.New(nil, time.Hour))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if c.config.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", c.config.MaxAttempts)
	}
	if c.config.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", c.config.Timeout)
	}
}

func TestComplete_Success(t *testing.T) {
	var authHeader, contentType string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		contentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"generated_text": "General Kenobi!"}`))
	}))
	defer server.Close()

	c, _ := newTestClient(t, server.URL)

	got := c.Complete(context.Background(), "Hello there")
	if got != "General Kenobi!" {
		t.Errorf("Complete = %q, want %q", got, "General Kenobi!")
	}
	if authHeader != "Bearer test-key" {
		t.Errorf("Authorization = %q, want bearer credential", authHeader)
	}
	if contentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", contentType)
	}
}

func TestComplete_SuccessIsCached(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"generated_text": "cached reply"}`))
	}))
	defer server.Close()

	c, _ := newTestClient(t, server.URL)
	ctx := context.Background()

	c.Complete(ctx, "the prompt")

	got, ok := c.cache.Lookup(ctx, "the prompt")
	if !ok {
		t.Fatal("expected the response to be cached under the sent prompt")
	}
	if got != "cached reply" {
		t.Errorf("cached = %q, want %q", got, "cached reply")
	}
}

func TestComplete_RetryOn400ThenSuccess_CachesSalvagedPrompt(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"generated_text": "recovered"}`))
	}))
	defer server.Close()

	c, rec := newTestClient(t, server.URL)
	ctx := context.Background()

	// 150 words: well over the salvage threshold.
	words := make([]string, 150)
	for i := range words {
		words[i] = "w"
	}
	original := strings.Join(words, " ")
	salvaged := salvagePrompt(original)

	got := c.Complete(ctx, original)

	if got != "recovered" {
		t.Fatalf("Complete = %q, want %q", got, "recovered")
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
	// A 400 retry is immediate; no backoff sleep.
	if n := len(rec.recorded()); n != 0 {
		t.Errorf("recorded %d backoff sleeps, want 0", n)
	}

	// The cache key is the prompt actually sent on the final attempt.
	if _, ok := c.cache.Lookup(ctx, original); ok {
		t.Error("original prompt must not be cached after salvage")
	}
	if resp, ok := c.cache.Lookup(ctx, salvaged); !ok || resp != "recovered" {
		t.Errorf("salvaged prompt not cached: ok=%v resp=%q", ok, resp)
	}
}

func TestComplete_BadRequestExhausted(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	c, _ := newTestClient(t, server.URL)

	got := c.Complete(context.Background(), "short prompt")

	if got != msgBadRequest {
		t.Errorf("Complete = %q, want bad-request message", got)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestComplete_RateLimitedExhausted(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c, rec := newTestClient(t, server.URL)

	got := c.Complete(context.Background(), "prompt")

	if got != msgRateLimited {
		t.Errorf("Complete = %q, want rate-limit message", got)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want exactly 3", attempts)
	}

	// Two backoff sleeps (before attempts 2 and 3), strictly increasing.
	delays := rec.recorded()
	if len(delays) != 2 {
		t.Fatalf("recorded %d backoff sleeps, want 2", len(delays))
	}
	if delays[0] != 2*time.Second || delays[1] != 4*time.Second {
		t.Errorf("delays = %v, want [2s 4s]", delays)
	}
	if delays[1] <= delays[0] {
		t.Error("backoff delays must be strictly increasing")
	}
}

func TestComplete_RetryOnServerErrorThenSuccess(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"generated_text": "third time lucky"}`))
	}))
	defer server.Close()

	c, _ := newTestClient(t, server.URL)

	got := c.Complete(context.Background(), "prompt")
	if got != "third time lucky" {
		t.Errorf("Complete = %q, want success text after retries", got)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestComplete_NoRetryOnOther4xx(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	c, _ := newTestClient(t, server.URL)

	got := c.Complete(context.Background(), "prompt")

	if !strings.Contains(got, "status 403") {
		t.Errorf("Complete = %q, want message mentioning status 403", got)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry for permanent 4xx)", attempts)
	}
}

func TestComplete_MalformedBodyExhausted(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`this is not json`))
	}))
	defer server.Close()

	c, _ := newTestClient(t, server.URL)

	got := c.Complete(context.Background(), "prompt")

	if got != msgMalformed {
		t.Errorf("Complete = %q, want malformed-response message", got)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestComplete_SoftFailureResolvesToFallback(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"generated_text": "x"}`)) // too short to be adequate
	}))
	defer server.Close()

	c, _ := newTestClient(t, server.URL)
	ctx := context.Background()

	got := c.Complete(ctx, "prompt")

	if got != msgInadequate {
		t.Errorf("Complete = %q, want fallback reply", got)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3 (soft failures are retried)", attempts)
	}

	// The fallback resolves like a success and is cached.
	if resp, ok := c.cache.Lookup(ctx, "prompt"); !ok || resp != msgInadequate {
		t.Errorf("fallback not cached: ok=%v resp=%q", ok, resp)
	}
}

func TestComplete_SoftFailureThenAdequateReply(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"generated_text": ""}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"generated_text": "a proper reply"}`))
	}))
	defer server.Close()

	c, _ := newTestClient(t, server.URL)

	got := c.Complete(context.Background(), "prompt")
	if got != "a proper reply" {
		t.Errorf("Complete = %q, want the retried reply", got)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestComplete_ConnectionFailureImmediate(t *testing.T) {
	// Nothing listens here; dialing fails outright.
	c, rec := newTestClient(t, "http://127.0.0.1:1")

	got := c.Complete(context.Background(), "prompt")

	if got != msgConnection {
		t.Errorf("Complete = %q, want connection message", got)
	}
	if n := len(rec.recorded()); n != 0 {
		t.Errorf("connection failures must not back off; recorded %d sleeps", n)
	}
}

func TestComplete_TimeoutRetried(t *testing.T) {
	attempts := 0
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		mu.Unlock()
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	cfg := DefaultConfig(server.URL, "test-key")
	cfg.Timeout = 20 * time.Millisecond
	c, err := New(cfg, newTestCache(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	rec := &sleepRecorder{}
	c.SetSleep(rec.sleep)

	got := c.Complete(context.Background(), "prompt")

	if got != msgTimeout {
		t.Errorf("Complete = %q, want timeout message", got)
	}

	mu.Lock()
	n := attempts
	mu.Unlock()
	if n != 3 {
		t.Errorf("attempts = %d, want 3 (timeouts are retried)", n)
	}
}

func TestComplete_ErrorPayloadIsNotRetried(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"error": "model loading"}`))
	}))
	defer server.Close()

	c, _ := newTestClient(t, server.URL)

	got := c.Complete(context.Background(), "prompt")

	// A recognized error payload is a negative-but-successful outcome: the
	// normalizer renders it, and the transport does not retry.
	if !strings.Contains(got, "model loading") {
		t.Errorf("Complete = %q, want text embedding the error indicator", got)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestComplete_SendsWaitForModelOption(t *testing.T) {
	var body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		body = string(buf)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"generated_text": "ok then"}`))
	}))
	defer server.Close()

	c, _ := newTestClient(t, server.URL)
	c.Complete(context.Background(), "the prompt text")

	if !strings.Contains(body, `"wait_for_model":true`) {
		t.Errorf("request body %q missing wait_for_model option", body)
	}
	if !strings.Contains(body, `"inputs":"the prompt text"`) {
		t.Errorf("request body %q missing inputs field", body)
	}
}
