// Package prompt bounds conversation history and assembles the outbound
// prompt text. The wrapped inference endpoint is unstable under long inputs,
// so history is deliberately over-truncated relative to real token
// accounting: the functions here trade context richness for request
// reliability.
//
// All functions are pure over caller-supplied state. The gateway never holds
// history across calls.
package prompt

import "strings"

const (
	// tokensPerChar approximates one token per four characters.
	tokensPerChar = 4

	// contextWindow is the maximum number of recent history pairs considered
	// when assembling the prompt, regardless of the configured caps.
	contextWindow = 3

	// contextMaxLen caps the context string built from the most recent pair.
	// Overly long context strings exceed it from the front, keeping the tail.
	contextMaxLen = 200

	// separator joins context and the new user text.
	separator = " "
)

// Turn is one (user, assistant) exchange. History is ordered oldest first.
type Turn struct {
	User      string
	Assistant string
}

// EstimateTokens approximates the token cost of a text.
func EstimateTokens(text string) int {
	return len(text) / tokensPerChar
}

// turnTokens is the combined estimate for both sides of a pair.
func turnTokens(t Turn) int {
	return EstimateTokens(t.User) + EstimateTokens(t.Assistant)
}

// TruncateHistory bounds history by two independent caps applied in sequence.
//
// The turn-count cap fires first: when len(history) > maxTurns only the most
// recent maxTurns pairs are kept and the token budget is not evaluated.
// Otherwise pairs are dropped from the oldest end, one at a time, until the
// approximate token total is at or under maxTokens or the history is empty.
//
// Order is always preserved; only prefix removal occurs. The result is a new
// slice, never a mutation of the input.
func TruncateHistory(history []Turn, maxTurns, maxTokens int) []Turn {
	out := make([]Turn, len(history))
	copy(out, history)

	if len(out) > maxTurns {
		if maxTurns < 0 {
			maxTurns = 0
		}
		return out[len(out)-maxTurns:]
	}

	total := 0
	for _, t := range out {
		total += turnTokens(t)
	}

	for total > maxTokens && len(out) > 0 {
		total -= turnTokens(out[0])
		out = out[1:]
	}

	return out
}

// ClampText hard-truncates text to at most maxLen characters. No word
// boundary awareness; truncation happens at rune boundaries so multi-byte
// characters are never split.
func ClampText(text string, maxLen int) string {
	if maxLen < 0 {
		maxLen = 0
	}
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen])
}

// AssemblePrompt builds the final outbound prompt from already-truncated
// history plus the new user text. At most the contextWindow most recent
// pairs are considered, and of those only the single most recent pair feeds
// the context string. When that string exceeds contextMaxLen its leading
// characters are dropped.
func AssemblePrompt(history []Turn, newUserText string) string {
	if len(history) == 0 {
		return newUserText
	}

	recent := history
	if len(recent) > contextWindow {
		recent = recent[len(recent)-contextWindow:]
	}

	last := recent[len(recent)-1]
	context := last.User + separator + last.Assistant
	if runes := []rune(context); len(runes) > contextMaxLen {
		context = string(runes[len(runes)-contextMaxLen:])
	}

	return context + separator + newUserText
}

// TrimToLastWords keeps at most max trailing words of text, collapsing
// whitespace between them. Texts at or under the limit are returned
// unchanged. It backs the salvage heuristic applied after a malformed
// request rejection.
func TrimToLastWords(text string, max int) string {
	words := strings.Fields(text)
	if len(words) <= max {
		return text
	}
	return strings.Join(words[len(words)-max:], " ")
}
