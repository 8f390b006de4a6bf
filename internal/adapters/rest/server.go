package rest

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/brunomacedo1203/taskcollab/internal/core/port"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type ServerConfig struct {
	Port            string
	WSPath          string
	CORSOrigins     []string
	CORSCredentials bool
}

// Server - HTTP-сервер notifications-service: read path, метрики, health и WebSocket-шлюз.
type Server struct {
	httpServer *http.Server
	router     chi.Router
	logger     port.LoggerPort
}

func NewServer(cfg ServerConfig, handlers *NotificationHandler, tokens port.TokenServicePort, gateway http.Handler, baseLogger port.LoggerPort) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RealIP, LoggerMiddleware(baseLogger), middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Trace-ID"},
		AllowCredentials: cfg.CORSCredentials,
		MaxAge:           86400,
	}))

	r.Get("/health", handlers.Health)
	r.Get("/metrics", handlers.Metrics)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(tokens))

		r.Get("/notifications", handlers.ListUnread)
		r.Patch("/notifications/{id}/read", handlers.MarkRead)
	})

	// Шлюз сам проверяет путь и токен и закрывает соединение с кодом 4001-4003.
	if gateway != nil {
		wsPath := "/" + strings.Trim(cfg.WSPath, "/")
		r.Handle(wsPath, gateway)
		r.Handle(wsPath+"/*", gateway)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{
		httpServer: srv,
		router:     r,
		logger:     baseLogger.WithFields(port.Fields{"component": "rest_server"}),
	}
}

// Handler - корневой обработчик (используется в тестах).
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start запускает HTTP-сервер.
func (s *Server) Start() error {
	s.logger.Info("Starting REST API server", port.Fields{"address": s.httpServer.Addr})
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error("Could not start server", err, nil)
		return fmt.Errorf("could not start server: %w", err)
	}
	return nil
}

// Stop корректно останавливает сервер.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping REST API server...", nil)
	return s.httpServer.Shutdown(ctx)
}
