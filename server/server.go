// Package server provides the HTTP surface: the chat endpoint that relays
// streamed model output to callers, plus health, reload, feedback, scenario,
// and history endpoints backed by the JSON record store.
package server

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/muuya/essence-logic/pkg/config"
	"github.com/muuya/essence-logic/pkg/history"
	"github.com/muuya/essence-logic/pkg/llm/backend"
	"github.com/muuya/essence-logic/pkg/relay"
	"github.com/muuya/essence-logic/server/worker"
)

// Service descriptor returned by the root endpoint.
const (
	serviceName        = "本质看板"
	serviceDescription = "基于段永平'本分'与'平常心'哲学的本质看板系统——一面清澈的镜子，帮助用户通过'如实观照'看清什么是'对的事情'，并停止那些'错的事情'"
	serviceVersion     = "4.0.0"
)

// Server is the HTTP server relaying chat requests to the configured model
// backend and recording exchanges through its worker pool.
type Server struct {
	reload func() (*config.Config, error)
	store  *history.Store
	pool   *worker.Pool
	relay  *relay.Relay
	logger *zap.Logger
	app    *fiber.App

	// mu guards cfg and be. The backend handle is built lazily on first
	// use and torn down on Reload; concurrent first-use races rebuild
	// equivalent values, last write wins.
	mu  sync.Mutex
	cfg *config.Config
	be  backend.Backend
}

// New creates a Server from a resolved configuration. reload re-resolves the
// configuration when Reload fires; resolving through the same viper the
// command bound keeps flag and environment overrides in effect across
// reloads. A nil reload keeps the current configuration and only rebuilds
// the backend handle.
func New(cfg *config.Config, reload func() (*config.Config, error), store *history.Store, logger *zap.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
	})

	queueSize := uint(0)
	if cfg.Worker.QueueSize > 0 {
		queueSize = uint(cfg.Worker.QueueSize)
	}

	pool, err := worker.NewPool(&worker.Config{
		Store:     store,
		QueueSize: queueSize,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create worker pool: %w", err)
	}

	s := &Server{
		reload: reload,
		store:  store,
		pool:   pool,
		logger: logger,
		app:    app,
		cfg:    cfg,
	}
	s.relay = relay.New(pool, logger)

	app.Use(s.requestLogger)

	app.Get("/", s.handleRoot)
	app.Get("/health", s.handleHealth)
	app.Post("/api/chat", s.handleChat)
	app.Post("/api/reload-config", s.handleReload)
	app.Post("/api/feedback", s.handleFeedback)
	app.Post("/api/scenario", s.handleScenario)
	app.Get("/api/feedback/stats", s.handleFeedbackStats)
	app.Get("/api/chat/history", s.handleChatHistory)

	return s, nil
}

// Run starts the server on the configured listening address.
func (s *Server) Run() error {
	cfg := s.snapshot()
	s.logger.Info("starting server",
		zap.String("listen", cfg.Server.Listen),
		zap.String("ai_service", cfg.AI.Service),
		zap.String("environment", cfg.Server.Environment),
	)

	return s.app.Listen(cfg.Server.Listen)
}

// RunWithListener starts the server using the provided listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting server",
		zap.String("listen", listener.Addr().String()),
	)

	return s.app.Listener(listener)
}

// Close gracefully shuts down the server and waits for the worker pool to
// drain.
func (s *Server) Close() error {
	err := s.app.Shutdown()
	s.pool.Close()
	return err
}

// Reload re-resolves the configuration through the wired loader and drops
// the cached backend handle so the next request builds one from the fresh
// settings.
func (s *Server) Reload() error {
	cfg := s.snapshot()
	if s.reload != nil {
		fresh, err := s.reload()
		if err != nil {
			return fmt.Errorf("reloading config: %w", err)
		}
		cfg = fresh
	}

	s.mu.Lock()
	s.cfg = cfg
	s.be = nil
	s.mu.Unlock()

	s.logger.Info("configuration reloaded",
		zap.String("ai_service", cfg.AI.Service),
		zap.String("environment", cfg.Server.Environment),
	)
	return nil
}

// snapshot returns the current configuration.
func (s *Server) snapshot() *config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// currentBackend returns the backend handle, building it on first use.
func (s *Server) currentBackend() (backend.Backend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.be != nil {
		return s.be, nil
	}

	be, err := backend.New(backend.Config{
		Service: s.cfg.AI.Service,
		BaseURL: s.cfg.AI.BaseURL,
		Token:   s.cfg.ActiveToken(),
	})
	if err != nil {
		return nil, err
	}

	s.be = be
	return be, nil
}

// configured reports whether a backend can currently be built.
func (s *Server) configured() bool {
	_, err := s.currentBackend()
	return err == nil
}

// requestLogger logs one line per completed request.
func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	s.logger.Info("request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.String("ip", c.IP()),
		zap.Int("status", c.Response().StatusCode()),
		zap.Duration("duration", time.Since(start)),
	)

	return err
}

// detail writes the {"detail": ...} error body shape the frontend consumes.
func detail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"detail": msg})
}
