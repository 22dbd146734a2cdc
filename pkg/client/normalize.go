package client

import (
	"fmt"
	"sort"
	"strings"
)

// Wire fields the endpoint is known to use. The response shape is not firmly
// contracted, so extraction is defensive throughout.
const (
	generatedTextField = "generated_text"
	errorField         = "error"

	// minScanLength is the threshold for the fallback field scan: only
	// string values longer than this are considered text-bearing.
	minScanLength = 5
)

// payloadShape tags the recognized response payload shapes. Shape is decided
// once at the boundary; extraction then follows the tag.
type payloadShape int

const (
	// shapeTextObject is {"generated_text": ...}.
	shapeTextObject payloadShape = iota

	// shapeErrorObject is {"error": ...}, a recognized-but-negative outcome.
	// It is not a transport failure and triggers no retry by itself.
	shapeErrorObject

	// shapeObjectSequence is a non-empty array whose first element carries
	// generated_text.
	shapeObjectSequence

	// shapeUnknown is everything else; the fallback scan applies.
	shapeUnknown
)

// classifyPayload inspects a decoded payload and tags its shape. Priority
// order: text object, error object, object sequence, unknown.
func classifyPayload(payload any) payloadShape {
	switch p := payload.(type) {
	case map[string]any:
		if _, ok := p[generatedTextField]; ok {
			return shapeTextObject
		}
		if _, ok := p[errorField]; ok {
			return shapeErrorObject
		}
	case []any:
		if len(p) > 0 {
			if first, ok := p[0].(map[string]any); ok {
				if _, ok := first[generatedTextField]; ok {
					return shapeObjectSequence
				}
			}
		}
	}
	return shapeUnknown
}

// ExtractText pulls a plain-text reply out of a loosely-typed response
// payload. It never fails: anything unrecognized, malformed, or mistyped
// yields the fixed unexpected-format marker.
func ExtractText(payload any) string {
	switch classifyPayload(payload) {
	case shapeTextObject:
		m := payload.(map[string]any)
		text, ok := m[generatedTextField].(string)
		if !ok {
			return msgUnexpectedFormat
		}
		return strings.TrimSpace(text)

	case shapeErrorObject:
		m := payload.(map[string]any)
		return fmt.Sprintf("The model reported an error: %v", m[errorField])

	case shapeObjectSequence:
		first := payload.([]any)[0].(map[string]any)
		text, ok := first[generatedTextField].(string)
		if !ok {
			return msgUnexpectedFormat
		}
		return strings.TrimSpace(text)
	}

	return scanForText(payload)
}

// scanForText is the last-resort extraction: search the top-level object
// (or the first element of an object sequence) for any string field longer
// than minScanLength. Keys are visited in sorted order so the result is
// deterministic.
func scanForText(payload any) string {
	var record map[string]any

	switch p := payload.(type) {
	case map[string]any:
		record = p
	case []any:
		if len(p) > 0 {
			if first, ok := p[0].(map[string]any); ok {
				record = first
			}
		}
	}

	if record == nil {
		return msgUnexpectedFormat
	}

	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if text, ok := record[k].(string); ok && len(text) > minScanLength {
			return strings.TrimSpace(text)
		}
	}

	return msgUnexpectedFormat
}
