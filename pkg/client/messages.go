package client

import "fmt"

// User-facing result strings. Every terminal path of the transport returns
// one of these (or the extracted text); raw internal errors stay in the logs.
const (
	msgBadRequest = "The request could not be formatted for the model. Try a shorter message."

	msgRateLimited = "The model is handling too many requests right now. Please try again shortly."

	msgServerError = "The model service reported an internal error. Please try again later."

	msgTimeout = "Timed out waiting for the model to respond. Please try again."

	msgConnection = "Could not reach the model service."

	msgMalformed = "The model service returned an unreadable response. Please try again later."

	// msgInadequate resolves an exhausted soft failure. It is a usable
	// reply, not an error: the exchange succeeded but the generated text
	// was judged too short.
	msgInadequate = "Sorry, I could not come up with an adequate response. Could you rephrase?"

	msgExhausted = "No response could be obtained after several attempts. Please try again later."

	// msgUnexpectedFormat is the fixed marker for payloads the normalizer
	// does not recognize.
	msgUnexpectedFormat = "The model service returned a response in an unexpected format."
)

// failureMessage renders the terminal user-safe message for a failure class.
func failureMessage(class FailureClass, status int, err error) string {
	switch class {
	case FailureBadRequest:
		return msgBadRequest
	case FailureRateLimited:
		return msgRateLimited
	case FailureServer:
		return msgServerError
	case FailureClient:
		return fmt.Sprintf("The request was rejected by the model service (status %d).", status)
	case FailureTimeout:
		return msgTimeout
	case FailureConnection:
		return msgConnection
	case FailureMalformed:
		return msgMalformed
	case FailureInternal:
		return fmt.Sprintf("An unexpected error occurred: %v", err)
	default:
		return msgExhausted
	}
}
