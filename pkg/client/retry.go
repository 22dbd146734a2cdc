package client

import (
	"context"
	"fmt"
	"time"

	"github.com/resilia-labs/inference-gateway/pkg/prompt"
)

// maxSalvageWords bounds the prompt after a 400 rejection: anything beyond
// the trailing 100 words is dropped before the next attempt.
const maxSalvageWords = 100

// backoffDelay computes the wait before retrying after the given attempt
// number (1-based). The delay derives purely from the attempt number, never
// from server-provided retry hints.
func backoffDelay(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

// salvagePrompt applies the post-400 salvage heuristic. Prompts of 100 words
// or fewer pass through unchanged. The salvaged prompt is what subsequent
// attempts send, and what an eventual success caches.
func salvagePrompt(p string) string {
	return prompt.TrimToLastWords(p, maxSalvageWords)
}

// sleepFunc waits out a backoff delay. Injectable so tests never sleep.
type sleepFunc func(ctx context.Context, d time.Duration) error

// sleepWithContext blocks for d or until the context is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
	case <-time.After(d):
		return nil
	}
}
