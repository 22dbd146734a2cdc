// Package gateway wires input validation, history budgeting, the response
// cache and the retrying transport into a single Respond entry point. It is
// the only package hosts need to talk to.
package gateway

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/resilia-labs/inference-gateway/pkg/logging"
	"github.com/resilia-labs/inference-gateway/pkg/prompt"
)

var respondTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "infergw_respond_total",
	Help: "Total Respond calls by outcome",
}, []string{"outcome"})

const msgBlankInput = "Please enter a valid message."

// Config bounds a single Respond call. Values are read once per call and
// never stored; hosts that reload configuration simply pass fresh values.
type Config struct {
	MaxHistoryTurns  int
	MaxHistoryTokens int
	MaxInputLength   int
	CacheTTL         time.Duration
	RequestTimeout   time.Duration
	MaxAttempts      int
}

// DefaultConfig returns the stock budget limits.
func DefaultConfig() Config {
	return Config{
		MaxHistoryTurns:  10,
		MaxHistoryTokens: 800,
		MaxInputLength:   512,
		CacheTTL:         time.Hour,
		RequestTimeout:   30 * time.Second,
		MaxAttempts:      3,
	}
}

// ResponseCache is the read side of the response cache. The transport owns
// the write side.
type ResponseCache interface {
	Lookup(ctx context.Context, promptText string) (string, bool)
}

// Transport resolves a prompt to a displayable reply. It never returns an
// error; failures surface as user-safe message strings.
type Transport interface {
	Complete(ctx context.Context, promptText string) string
}

// Gateway is the conversation façade. It holds no per-conversation state;
// history is caller-owned and passed into every Respond call.
type Gateway struct {
	cache     ResponseCache
	transport Transport
	config    Config
	logger    zerolog.Logger
}

// New creates a Gateway over the given cache and transport. A nil cache
// disables lookups; the transport must not be nil.
func New(responseCache ResponseCache, transport Transport, cfg Config) *Gateway {
	return &Gateway{
		cache:     responseCache,
		transport: transport,
		config:    cfg,
		logger:    logging.NewLogger("gateway"),
	}
}

// Respond produces a displayable reply for newUserText given the caller's
// history. The flow is: validate, clamp the user text, budget the history,
// assemble and clamp the outbound prompt, consult the cache, and only then
// hit the network. Respond always returns a non-empty string.
func (g *Gateway) Respond(ctx context.Context, history []prompt.Turn, newUserText string) string {
	if strings.TrimSpace(newUserText) == "" {
		respondTotal.WithLabelValues("validation").Inc()
		return msgBlankInput
	}

	userText := prompt.ClampText(newUserText, g.config.MaxInputLength)
	if userText != newUserText {
		g.logger.Warn().
			Int("max_input_length", g.config.MaxInputLength).
			Msg("User input truncated to the configured limit")
	}

	bounded := prompt.TruncateHistory(history, g.config.MaxHistoryTurns, g.config.MaxHistoryTokens)
	outbound := prompt.AssemblePrompt(bounded, userText)
	outbound = prompt.ClampText(outbound, g.config.MaxInputLength)

	if g.cache != nil {
		if reply, ok := g.cache.Lookup(ctx, outbound); ok {
			respondTotal.WithLabelValues("cache_hit").Inc()
			g.logger.Debug().Msg("Serving reply from cache")
			return reply
		}
	}

	respondTotal.WithLabelValues("transport").Inc()
	return g.transport.Complete(ctx, outbound)
}
