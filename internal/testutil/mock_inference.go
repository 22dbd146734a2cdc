// Package testutil provides testing utilities for the inference gateway.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior of one scripted mock endpoint reply.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockInference is a configurable mock model endpoint for testing. Replies
// are scripted in order; when the script runs out the last entry repeats.
type MockInference struct {
	server *httptest.Server
	mu     sync.RWMutex
	script []MockResponse

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
	Prompts           []string
}

// NewMockInference creates a mock endpoint that replays the given script.
func NewMockInference(script ...MockResponse) *MockInference {
	mock := &MockInference{script: script}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		idx := mock.RequestCount
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		if body, err := io.ReadAll(r.Body); err == nil {
			var req struct {
				Inputs string `json:"inputs"`
			}
			if json.Unmarshal(body, &req) == nil {
				mock.Prompts = append(mock.Prompts, req.Inputs)
			}
		}
		script := mock.script
		mock.mu.Unlock()

		if len(script) == 0 {
			defaultHandler(w)
			return
		}
		if idx >= len(script) {
			idx = len(script) - 1
		}
		resp := script[idx]

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
	}))

	return mock
}

// URL returns the mock endpoint URL.
func (m *MockInference) URL() string {
	return m.server.URL
}

// Close shuts down the mock endpoint.
func (m *MockInference) Close() {
	m.server.Close()
}

// Reset clears tracking counters and replaces the script.
func (m *MockInference) Reset(script ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastRequestHeader = nil
	m.Prompts = nil
	m.script = script
}

// GetRequestCount returns the number of requests the endpoint has served.
func (m *MockInference) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetPrompts returns the inputs fields decoded from request bodies, in order.
func (m *MockInference) GetPrompts() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.Prompts))
	copy(out, m.Prompts)
	return out
}

func defaultHandler(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"generated_text": "mock reply"}`))
}

// NewTextResponse creates a 200 reply carrying generated text.
func NewTextResponse(text string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       fmt.Sprintf(`{"generated_text": %q}`, text),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewModelLoadingResponse creates the error payload a cold model returns
// while warming up, delivered with a 200 status.
func NewModelLoadingResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"error": "Model is currently loading", "estimated_time": 20.0}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests reply.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Rate limit reached"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error reply.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewBadRequestResponse creates a 400 reply for an over-long prompt.
func NewBadRequestResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusBadRequest,
		Body:       `{"error": "Input is too long"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}
