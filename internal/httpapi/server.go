package httpapi

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/agentdevsl/taskdraft/internal/authoring"
	"github.com/agentdevsl/taskdraft/internal/health"
	"github.com/agentdevsl/taskdraft/internal/metrics"
	"github.com/agentdevsl/taskdraft/internal/requestid"
)

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	ListenAddr   string
	Auth         AuthConfig
	CORSOrigins  string
	SSEKeepAlive time.Duration
}

// Server is the authoring API Fiber application.
type Server struct {
	app      *fiber.App
	handlers *Handlers
	logger   zerolog.Logger
	config   ServerConfig
}

// NewServer creates and configures the API server.
func NewServer(
	cfg ServerConfig,
	controller *authoring.Controller,
	checker *health.Checker,
	directory Directory,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler(logger),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ReadBufferSize:        8192,
		WriteBufferSize:       8192,
	})

	handlers := NewHandlers(controller, checker, directory, m, cfg.SSEKeepAlive, logger)

	s := &Server{
		app:      app,
		handlers: handlers,
		logger:   logger.With().Str("component", "httpapi").Logger(),
		config:   cfg,
	}

	s.setupMiddleware(cfg, logger)
	s.setupRoutes(handlers, m)

	return s
}

func (s *Server) setupMiddleware(cfg ServerConfig, logger zerolog.Logger) {
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// Request ID middleware: honor a client-supplied id so one conversation's
	// calls can be traced end to end, generate one otherwise.
	s.app.Use(func(c *fiber.Ctx) error {
		ctx, reqID := requestid.Ensure(c.UserContext(), c.Get(requestid.Header))
		c.SetUserContext(ctx)
		c.Set(requestid.Header, reqID)
		return c.Next()
	})

	if cfg.CORSOrigins != "" {
		s.app.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CORSOrigins,
			AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID, Last-Event-ID",
			AllowMethods: "GET, POST, OPTIONS",
		}))
	}

	s.app.Use(NewAuthMiddleware(cfg.Auth, logger))

	// Request logging (skip noisy probes)
	s.app.Use(func(c *fiber.Ctx) error {
		path := c.Path()
		if path == "/healthz" || path == "/readyz" || path == "/metrics" {
			return c.Next()
		}

		reqLogger := requestid.Logger(c.UserContext(), logger)
		reqLogger.Info().
			Str("method", c.Method()).
			Str("path", path).
			Str("ip", c.IP()).
			Msg("api request")

		return c.Next()
	})
}

func (s *Server) setupRoutes(h *Handlers, m *metrics.Metrics) {
	// Probe endpoints are exempt from auth in the auth middleware.
	s.app.Get("/healthz", h.Liveness)
	s.app.Get("/readyz", h.Readiness)

	// Prometheus metrics
	if m != nil {
		promHandler := fasthttpadaptor.NewFastHTTPHandler(m.Handler())
		s.app.Get("/metrics", func(c *fiber.Ctx) error {
			promHandler(c.Context())
			return nil
		})
	}

	v1 := s.app.Group("/api/v1")

	// Conversation endpoints
	v1.Post("/conversations", h.StartConversation)
	v1.Get("/conversations/:id", h.GetConversation)
	v1.Get("/conversations/:id/events", h.StreamEvents)
	v1.Post("/conversations/:id/messages", h.SendMessage)
	v1.Post("/conversations/:id/answers", h.AnswerQuestions)
	v1.Post("/conversations/:id/skip", h.SkipQuestions)
	v1.Post("/conversations/:id/accept", h.AcceptSuggestion)
	v1.Post("/conversations/:id/cancel", h.CancelConversation)

	// Project endpoints
	v1.Post("/projects", h.CreateProject)
	v1.Get("/projects", h.ListProjects)
	v1.Get("/projects/:id/tasks", h.ListProjectTasks)
}

// Start starts the server. Blocks until stopped.
func (s *Server) Start() error {
	addr := s.config.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	s.logger.Info().Str("addr", addr).Msg("api server starting")
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server, waiting up to timeout for
// in-flight requests (including open SSE streams) to drain.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.logger.Info().Dur("timeout", timeout).Msg("api server shutting down")
	if timeout <= 0 {
		return s.app.Shutdown()
	}
	return s.app.ShutdownWithTimeout(timeout)
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

func customErrorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		logger.Error().
			Err(err).
			Int("status", code).
			Str("path", c.Path()).
			Str("method", c.Method()).
			Msg("unhandled error")

		return problemResponse(c, code, "internal_error", "Internal Server Error", err.Error())
	}
}
