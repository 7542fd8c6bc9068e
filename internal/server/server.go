package server

import (
	"context"
	"encoding/csv"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"reddot-watch/feedapi/internal/auth"
	"reddot-watch/feedapi/internal/database"
	"reddot-watch/feedapi/internal/server/api"
	"reddot-watch/feedapi/internal/server/storage"
	"reddot-watch/feedapi/internal/signer"
)

// NewHandler wires the feed routes, health check and CSV export behind the
// request logging middleware chain.
func NewHandler(db *database.DB, urlSigner signer.URLSigner, validator *auth.Validator, logger zerolog.Logger) http.Handler {
	feedItemRepo := storage.NewRepository(db)
	feedHandler := api.NewFeedHandler(feedItemRepo, urlSigner)
	requireAuth := auth.Middleware(validator)

	mux := http.NewServeMux()
	api.RegisterRoutes(mux, feedHandler, requireAuth)
	mux.Handle("GET "+api.FeedPrefix+"/export", requireAuth(exportItemsHandler(feedItemRepo)))
	mux.HandleFunc("GET /health", healthCheckHandler(db))

	// Built inside out: NewHandler must be outermost so every inner
	// handler finds the logger in the request context.
	var h http.Handler = mux
	h = hlog.RequestIDHandler("req_id", "Request-Id")(h)
	h = hlog.UserAgentHandler("user_agent")(h)
	h = hlog.RemoteAddrHandler("remote_addr")(h)
	h = hlog.URLHandler("url")(h)
	h = hlog.MethodHandler("method")(h)
	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("HTTP Request")
	})(h)
	h = hlog.NewHandler(logger)(h)

	return h
}

// RunServer starts the HTTP server with graceful shutdown support.
// It blocks until SIGINT/SIGTERM or a listener failure.
func RunServer(db *database.DB, urlSigner signer.URLSigner, validator *auth.Validator, listenAddr string, logger zerolog.Logger) error {
	logger = logger.With().Str("service", "feed-api").Logger()

	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           NewHandler(db, urlSigner, validator, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("address", listenAddr).Msg("API Server starting")
		err := httpServer.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErr:
		logger.Error().Err(err).Msg("Server failed to start")
		return err

	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("HTTP server shutdown error")
			if err := httpServer.Close(); err != nil {
				logger.Error().Err(err).Msg("HTTP server force close error")
			}
		} else {
			logger.Info().Msg("HTTP server shutdown complete.")
		}
		if err := <-serverErr; err != nil {
			logger.Error().Err(err).Msg("ListenAndServe error during shutdown")
		}
	}

	logger.Info().Msg("Server exiting.")
	return nil
}

// healthCheckHandler answers 200 OK while the database is reachable and 503 otherwise.
func healthCheckHandler(db *database.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := hlog.FromRequest(r)

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			log.Error().Err(err).Msg("Health check database ping failed")
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("Error writing health check response")
		}
	}
}

// exportItemsHandler streams every stored item as caption,url CSV, oldest
// first, in the format the import command reads back. The url column holds
// the raw object keys.
func exportItemsHandler(repo storage.FeedItemRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := hlog.FromRequest(r)

		items, _, err := repo.FindAllDesc(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("Failed to query feed items")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=feed.csv")

		csvWriter := csv.NewWriter(w)
		if err := csvWriter.Write([]string{"caption", "url"}); err != nil {
			log.Error().Err(err).Msg("Failed to write CSV header")
			return
		}

		for i := len(items) - 1; i >= 0; i-- {
			if err := csvWriter.Write([]string{items[i].Caption, items[i].URL}); err != nil {
				log.Error().Err(err).Msg("Failed to write CSV record")
				return
			}
		}

		csvWriter.Flush()
		if err := csvWriter.Error(); err != nil {
			log.Error().Err(err).Msg("Error flushing CSV data")
			return
		}

		log.Info().Int("item_count", len(items)).Msg("Exported feed items as CSV")
	}
}
