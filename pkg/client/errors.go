package client

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrContextCancelled is returned by the backoff sleep when the context is
// cancelled while waiting.
var ErrContextCancelled = errors.New("context cancelled")

// FailureClass classifies one failed attempt against the inference endpoint.
type FailureClass string

const (
	// FailureBadRequest is an HTTP 400; the salvage heuristic may shrink the
	// prompt before the next attempt.
	FailureBadRequest FailureClass = "bad_request"

	// FailureRateLimited is an HTTP 429.
	FailureRateLimited FailureClass = "rate_limited"

	// FailureServer is any HTTP 5xx.
	FailureServer FailureClass = "server"

	// FailureClient is any 4xx other than 400 and 429. Not transient.
	FailureClient FailureClass = "client"

	// FailureTimeout is a network timeout, including per-attempt deadline
	// expiry.
	FailureTimeout FailureClass = "timeout"

	// FailureConnection is any other network failure. Retrying the same
	// misconfigured path is assumed futile.
	FailureConnection FailureClass = "connection"

	// FailureMalformed is a response body that does not parse as JSON.
	FailureMalformed FailureClass = "malformed_response"

	// FailureEmptyReply is a successful exchange whose normalized text is
	// under two characters. Soft: exhaustion resolves to a fallback reply,
	// never a hard failure.
	FailureEmptyReply FailureClass = "empty_reply"

	// FailureInternal is any unexpected error during an attempt.
	FailureInternal FailureClass = "internal"
)

// APIError carries the classified detail of one failed attempt, for logs.
// It never reaches the caller; Complete always returns a displayable string.
type APIError struct {
	StatusCode int
	Class      FailureClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("inference %s error (status %d): %s: %v",
			e.Class, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("inference %s error (status %d): %s",
		e.Class, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// failurePolicy is one row of the retry decision table.
type failurePolicy struct {
	// retry: attempt again while attempts remain.
	retry bool

	// backoff: sleep 2^attempt seconds before the next attempt. A 400 is
	// retried immediately after salvage, without backoff.
	backoff bool

	// salvage: shrink an over-long prompt before the next attempt.
	salvage bool

	// soft: exhausting attempts resolves to the fixed fallback reply
	// instead of a failure message.
	soft bool
}

// failurePolicies drives the state machine in Complete. Decisions depend
// only on the class and the attempt number, never on server-provided hints.
var failurePolicies = map[FailureClass]failurePolicy{
	FailureBadRequest:  {retry: true, salvage: true},
	FailureRateLimited: {retry: true, backoff: true},
	FailureServer:      {retry: true, backoff: true},
	FailureClient:      {},
	FailureTimeout:     {retry: true, backoff: true},
	FailureConnection:  {},
	FailureMalformed:   {retry: true, backoff: true},
	FailureEmptyReply:  {retry: true, backoff: true, soft: true},
	FailureInternal:    {},
}

// policyFor returns the decision-table row for a class. Unknown classes are
// terminal.
func policyFor(class FailureClass) failurePolicy {
	return failurePolicies[class]
}

// classifyStatus maps an HTTP status code to a failure class. Success codes
// map to the empty class.
func classifyStatus(status int) FailureClass {
	switch {
	case status == 400:
		return FailureBadRequest
	case status == 429:
		return FailureRateLimited
	case status >= 500:
		return FailureServer
	case status >= 400:
		return FailureClient
	default:
		return ""
	}
}

// classifyNetworkError separates timeouts (transient, retried) from other
// connection failures (terminal).
func classifyNetworkError(err error) FailureClass {
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	return FailureConnection
}
