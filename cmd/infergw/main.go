// Command infergw runs the inference gateway as an HTTP service: a cached,
// retrying front for a hosted text-generation model.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/resilia-labs/inference-gateway/pkg/cache"
	"github.com/resilia-labs/inference-gateway/pkg/client"
	"github.com/resilia-labs/inference-gateway/pkg/config"
	"github.com/resilia-labs/inference-gateway/pkg/gateway"
	"github.com/resilia-labs/inference-gateway/pkg/logging"
	"github.com/resilia-labs/inference-gateway/pkg/prompt"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "infergw.yaml", "path to config file")
	flag.Parse()

	config.LoadDotenv()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fallback := logging.Setup(logging.DefaultConfig())
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogFormat == "console",
		Output: os.Stderr,
	})

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	store, err := openStore(cfg)
	if err != nil {
		// The gateway runs cache-less rather than refusing to start.
		logger.Warn().Err(err).Str("backend", cfg.Cache.Backend).
			Msg("Cache store unavailable, continuing without cache")
		store = nil
	}

	responseCache := cache.New(store, cfg.Cache.TTL)
	defer responseCache.Close()

	transportCfg := client.DefaultConfig(cfg.Model.Endpoint, cfg.Model.APIKey)
	transportCfg.MaxAttempts = cfg.Model.MaxAttempts
	transportCfg.Timeout = cfg.Model.Timeout

	transport, err := client.New(transportCfg, responseCache)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create inference client")
	}

	gwCfg := gateway.DefaultConfig()
	gwCfg.MaxHistoryTurns = cfg.Budget.MaxHistoryTurns
	gwCfg.MaxHistoryTokens = cfg.Budget.MaxHistoryTokens
	gwCfg.MaxInputLength = cfg.Budget.MaxInputLength
	gwCfg.CacheTTL = cfg.Cache.TTL
	gwCfg.RequestTimeout = cfg.Model.Timeout
	gwCfg.MaxAttempts = cfg.Model.MaxAttempts

	gw := gateway.New(responseCache, transport, gwCfg)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/respond", respondHandler(gw, logger))
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler(responseCache, store != nil))
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("listen", cfg.Listen).Msg("Starting inference gateway")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutting down")
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			logger.Error().Err(err).Msg("Shutdown failed")
		}
	case err := <-errCh:
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

// openStore builds the configured cache backend. Backend "none" yields a nil
// store, which the cache manager treats as always-miss.
func openStore(cfg *config.Config) (cache.Store, error) {
	switch cfg.Cache.Backend {
	case "sqlite":
		return cache.NewSQLiteStore(cfg.Cache.Path)
	case "redis":
		return cache.NewRedisStore(redis.NewClient(&redis.Options{Addr: cfg.Cache.Addr}))
	default:
		return nil, nil
	}
}

type respondRequest struct {
	History []historyTurn `json:"history"`
	Message string        `json:"message"`
}

type historyTurn struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

type respondResponse struct {
	Reply string `json:"reply"`
}

func respondHandler(gw *gateway.Gateway, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req respondRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		history := make([]prompt.Turn, len(req.History))
		for i, t := range req.History {
			history[i] = prompt.Turn{User: t.User, Assistant: t.Assistant}
		}

		reply := gw.Respond(r.Context(), history, req.Message)

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(respondResponse{Reply: reply}); err != nil {
			logger.Error().Err(err).Msg("Failed to write response")
		}
	}
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// readyHandler reports ready only when the cache store answers a ping. A
// cache-less gateway is always ready.
func readyHandler(responseCache *cache.Cache, hasStore bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hasStore {
			if err := responseCache.Ping(r.Context()); err != nil {
				http.Error(w, "cache store unreachable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("READY"))
	}
}
