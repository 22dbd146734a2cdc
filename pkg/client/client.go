// Package client implements the retrying transport to the inference
// endpoint: per-attempt timeouts, failure classification, exponential
// backoff, the post-400 salvage heuristic, and response normalization.
//
// The transport never surfaces an error to its caller. Every terminal path
// of Complete yields a displayable string: the generated text, a fallback
// reply for inadequate generations, or a short user-safe failure message.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/resilia-labs/inference-gateway/pkg/cache"
	"github.com/resilia-labs/inference-gateway/pkg/logging"
)

// Prometheus metrics for transport operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "infergw_requests_total",
		Help: "Total inference requests by outcome status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "infergw_request_duration_seconds",
		Help:    "Inference attempt duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	failuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "infergw_failures_total",
		Help: "Total failed inference attempts by class",
	}, []string{"class"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "infergw_retries_total",
		Help: "Total retry attempts by failure class",
	}, []string{"class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "infergw_retry_backoff_seconds",
		Help:    "Backoff duration before retries by failure class",
		Buckets: []float64{1, 2, 4, 8, 16, 32},
	}, []string{"class"})

	retriesExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "infergw_retries_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by failure class",
	}, []string{"class"})
)

// Config holds the transport configuration.
type Config struct {
	// Endpoint is the completion endpoint URL.
	Endpoint string

	// APIKey is the bearer credential. Required; its absence is a fatal
	// configuration error, never retried.
	APIKey string

	// MaxAttempts bounds the retry loop, including the initial attempt.
	MaxAttempts int

	// Timeout applies per attempt. Expiry is classified as a network
	// timeout, not a separate cancellation path.
	Timeout time.Duration
}

// DefaultConfig returns the reference transport configuration.
func DefaultConfig(endpoint, apiKey string) Config {
	return Config{
		Endpoint:    endpoint,
		APIKey:      apiKey,
		MaxAttempts: 3,
		Timeout:     30 * time.Second,
	}
}

// Client is the retrying transport. One Complete call runs the attempt loop
// to a terminal state; no state survives the call except the cache write.
type Client struct {
	httpClient *http.Client
	cache      *cache.Cache
	config     Config
	logger     zerolog.Logger
	sleep      sleepFunc
}

// New creates a transport. responseCache must be non-nil (a cache over a nil
// store is fine; it simply never hits).
func New(cfg Config, responseCache *cache.Cache) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if responseCache == nil {
		return nil, fmt.Errorf("response cache is required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{},
		cache:      responseCache,
		config:     cfg,
		logger:     logging.NewLogger("transport"),
		sleep:      sleepWithContext,
	}, nil
}

// completionRequest is the outbound wire format.
type completionRequest struct {
	Inputs  string            `json:"inputs"`
	Options completionOptions `json:"options"`
}

// completionOptions carries endpoint flags. WaitForModel asks the endpoint
// to hold the request through a cold start instead of failing with 503.
type completionOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

// attemptOutcome is the classified result of a single attempt. An empty
// class means success with text.
type attemptOutcome struct {
	text   string
	class  FailureClass
	status int
	err    error
}

// Complete sends the prompt and drives the retry state machine to a terminal
// state. On success the normalized text is cached under the prompt actually
// sent (after any salvage) and returned. On failure a short user-safe
// message is returned; the classified detail goes to the log only.
func (c *Client) Complete(ctx context.Context, promptText string) string {
	outbound := promptText

	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		c.logger.Debug().
			Int("attempt", attempt).
			Int("max_attempts", c.config.MaxAttempts).
			Msg("Executing inference attempt")

		outcome := c.attempt(ctx, outbound)

		if outcome.class == "" {
			if attempt > 1 {
				c.logger.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			c.cache.Store(ctx, outbound, outcome.text)
			return outcome.text
		}

		failuresTotal.WithLabelValues(string(outcome.class)).Inc()
		c.logger.Warn().
			Err(outcome.err).
			Str("failure_class", string(outcome.class)).
			Int("status_code", outcome.status).
			Int("attempt", attempt).
			Msg("Inference attempt failed")

		policy := policyFor(outcome.class)

		if !policy.retry {
			return failureMessage(outcome.class, outcome.status, outcome.err)
		}

		if attempt >= c.config.MaxAttempts {
			if policy.soft {
				// A soft failure resolves to a usable reply even when
				// attempts run out; it is cached like any other success.
				c.cache.Store(ctx, outbound, msgInadequate)
				return msgInadequate
			}
			retriesExhaustedTotal.WithLabelValues(string(outcome.class)).Inc()
			c.logger.Warn().
				Str("failure_class", string(outcome.class)).
				Int("max_attempts", c.config.MaxAttempts).
				Msg("Retry attempts exhausted")
			return failureMessage(outcome.class, outcome.status, outcome.err)
		}

		retriesTotal.WithLabelValues(string(outcome.class)).Inc()

		if policy.salvage {
			if salvaged := salvagePrompt(outbound); salvaged != outbound {
				c.logger.Debug().
					Int("attempt", attempt).
					Msg("Salvaged prompt to trailing words for retry")
				outbound = salvaged
			}
		}

		if policy.backoff {
			delay := backoffDelay(attempt)
			retryBackoffSeconds.WithLabelValues(string(outcome.class)).Observe(delay.Seconds())
			c.logger.Warn().
				Str("failure_class", string(outcome.class)).
				Int("attempt", attempt).
				Dur("backoff", delay).
				Msg("Retrying request after backoff")

			if err := c.sleep(ctx, delay); err != nil {
				c.logger.Warn().
					Err(err).
					Int("attempt", attempt).
					Msg("Context cancelled during retry backoff")
				return msgTimeout
			}
		}
	}

	return msgExhausted
}

// attempt issues one outbound call and classifies the outcome.
func (c *Client) attempt(ctx context.Context, outbound string) attemptOutcome {
	attemptCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	body, err := json.Marshal(completionRequest{
		Inputs:  outbound,
		Options: completionOptions{WaitForModel: true},
	})
	if err != nil {
		return attemptOutcome{class: FailureInternal, err: err}
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return attemptOutcome{class: FailureInternal, err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	requestDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		requestsTotal.WithLabelValues("network_error").Inc()
		return attemptOutcome{class: classifyNetworkError(err), err: err}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if class := classifyStatus(resp.StatusCode); class != "" {
		return attemptOutcome{
			class:  class,
			status: resp.StatusCode,
			err: &APIError{
				StatusCode: resp.StatusCode,
				Class:      class,
				Message:    resp.Status,
			},
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return attemptOutcome{class: FailureMalformed, err: err}
	}

	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return attemptOutcome{class: FailureMalformed, err: err}
	}

	text := ExtractText(payload)
	if len(text) < 2 {
		return attemptOutcome{class: FailureEmptyReply, text: text}
	}

	return attemptOutcome{text: text}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// SetSleep replaces the backoff sleep (for testing).
func (c *Client) SetSleep(fn func(ctx context.Context, d time.Duration) error) {
	c.sleep = fn
}
