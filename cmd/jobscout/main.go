// jobscout — scrapes job listings, enriches them with full descriptions via
// a pooled headless browser, and generates portfolio project suggestions
// through a hosted model.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/phuslu/log"

	"jobscout/internal/browser"
	"jobscout/internal/cache"
	"jobscout/internal/config"
	"jobscout/internal/db"
	"jobscout/internal/fetch"
	"jobscout/internal/health"
	"jobscout/internal/listing"
	"jobscout/internal/pipeline"
	"jobscout/internal/scheduler"
	"jobscout/internal/store"
	"jobscout/internal/suggest"
)

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

type suggestionRequest struct {
	JobTitle string `json:"jobTitle"`
	Country  string `json:"country"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func main() {
	_ = godotenv.Load()

	log.DefaultLogger = log.Logger{
		Level:      log.InfoLevel,
		TimeFormat: "15:04:05",
		Writer:     &log.ConsoleWriter{ColorOutput: true, EndWithMessage: true},
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		log.DefaultLogger.Level = log.ParseLevel(lvl)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Configuration error")
	}

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("Fatal")
	}
}

// run owns every long-lived resource so the defers fire on any exit path —
// in particular the browser pool is drained even when the pipeline fails.
func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgPool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pgPool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer rdb.Close()

	st := store.New(pgPool)
	modelClient := suggest.NewClient(cfg.OpenRouterAPIKey, cfg.OpenRouterModel)

	if err := health.RunStartupChecks(ctx, cfg.OpenRouterAPIKey, st, modelClient); err != nil {
		return err
	}

	pool, err := browser.NewPool(browser.Options{
		Size:     cfg.BrowserPoolSize,
		Headless: true,
	})
	if err != nil {
		return err
	}
	defer pool.Shutdown()

	contentCache := cache.NewContentCache()
	pipe := pipeline.New(pipeline.Options{
		Source:       listing.NewClient(cfg.AdzunaAppID, cfg.AdzunaAppKey, cfg.AdzunaCountry),
		Store:        st,
		Scheduler:    fetch.NewScheduler(fetch.NewDescriptionFetcher(pool, contentCache)),
		Suggester:    suggest.NewSuggester(modelClient, cache.NewSuggestionCache()),
		ContentCache: contentCache,
		CachePath:    cfg.CachePath,
		FetchTarget:  cfg.FetchTarget,
		FetchWorkers: cfg.FetchWorkers,
		RedFlags:     cfg.RedFlags,
	})

	refresher := scheduler.New(rdb, pipe, cfg.RefreshQueries, cfg.RefreshIntervalHours)
	if err := refresher.Start(ctx); err != nil {
		return err
	}
	defer refresher.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/api/suggestions", suggestionsHandler(pipe))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(healthResponse{
		Status:  "ok",
		Service: "jobscout",
		Version: "0.1.0",
	})
}

// suggestionsHandler runs the pipeline for the requested title and country.
// The caller always gets either a result object or {"error": msg} — raw
// failures never escape the pipeline boundary.
func suggestionsHandler(pipe *pipeline.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			json.NewEncoder(w).Encode(errorResponse{Error: "POST required"})
			return
		}

		var req suggestionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(errorResponse{Error: "invalid request body"})
			return
		}
		req.JobTitle = strings.TrimSpace(req.JobTitle)
		req.Country = strings.TrimSpace(req.Country)
		if req.JobTitle == "" || req.Country == "" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(errorResponse{Error: "jobTitle and country are required"})
			return
		}

		result, err := pipe.Run(r.Context(), req.JobTitle, req.Country)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, pipeline.ErrNoListings) || errors.Is(err, pipeline.ErrNoDescriptions) {
				status = http.StatusNotFound
			}
			w.WriteHeader(status)
			json.NewEncoder(w).Encode(errorResponse{Error: err.Error()})
			return
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(result)
	}
}
