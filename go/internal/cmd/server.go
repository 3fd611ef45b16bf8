package main

import (
	"context"
	"net/http"
	"time"

	"github.com/mcdev12/fantamarket/go/internal/market/gateway"
	"github.com/mcdev12/fantamarket/go/internal/rpc"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// healthCheck reports an unhealthy dependency.
type healthCheck func(ctx context.Context) error

type serverConfig struct {
	Port           string
	AllowedOrigins []string
	Metrics        http.Handler
	Checks         map[string]healthCheck
}

func setupServer(cfg serverConfig, services *Services, ws *gateway.WebSocketHandler) *http.Server {
	mux := http.NewServeMux()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{rpc.ErrorCodeHeader, rpc.PendingHeader},
	})

	registerServices(mux, services)
	ws.RegisterRoutes(mux)
	if cfg.Metrics != nil {
		mux.Handle("/metrics", cfg.Metrics)
	}
	setupHealthCheck(mux, cfg.Checks)

	handler := c.Handler(mux)

	// Setup HTTP/2 server
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func registerServices(mux *http.ServeMux, services *Services) {
	opts := rpc.HandlerOptions()

	mux.Handle(services.Sessions.Handler(opts...))
	mux.Handle(services.Nominations.Handler(opts...))
	mux.Handle(services.Auctions.Handler(opts...))
	mux.Handle(services.Appeals.Handler(opts...))
}

func setupHealthCheck(mux *http.ServeMux, checks map[string]healthCheck) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for name, check := range checks {
			if err := check(ctx); err != nil {
				log.Warn().Err(err).Str("dependency", name).Msg("health check failed")
				http.Error(w, name+" unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}
