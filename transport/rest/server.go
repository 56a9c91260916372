package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

const requestTimeout = 10 * time.Second

type Server struct {
	logger     *slog.Logger
	router     chi.Router
	httpServer *http.Server
}

// New builds the router. ws serves GET /ws/{room_id} and is mounted outside the request timeout.
func New(logger *slog.Logger, port string, rooms roomUseCase, ws http.HandlerFunc) *Server {
	roomHandlers := NewHandlers(logger, rooms)

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Recoverer)
	router.Use(allowAllOrigins)

	router.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(requestTimeout))

		r.Get("/ping", roomHandlers.Ping)
		r.Get("/healthz", roomHandlers.Healthz)

		r.Post("/create-room", roomHandlers.CreateRoom)
		r.Post("/join-room/{room_id}", roomHandlers.JoinRoom)
	})

	router.Get("/ws/{room_id}", ws)

	return &Server{
		logger: logger.With("component", "http"),
		router: router,
		httpServer: &http.Server{
			Addr:              ":" + port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       30 * time.Second,
		},
	}
}

// Handler exposes the router for tests.
func (that *Server) Handler() http.Handler {
	return that.router
}

// Start - starts HTTP server. It returns nil after Shutdown.
func (that *Server) Start() error {
	that.logger.Info("listening", "addr", that.httpServer.Addr)

	if err := that.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func (that *Server) Shutdown(ctx context.Context) error {
	if err := that.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}

// allowAllOrigins answers CORS for any origin; the browser client is served separately.
func allowAllOrigins(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
