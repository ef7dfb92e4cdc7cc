package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/agentdevsl/taskdraft/internal/authoring"
	"github.com/agentdevsl/taskdraft/internal/config"
	"github.com/agentdevsl/taskdraft/internal/eventlog"
	"github.com/agentdevsl/taskdraft/internal/health"
	"github.com/agentdevsl/taskdraft/internal/httpapi"
	"github.com/agentdevsl/taskdraft/internal/llm"
	"github.com/agentdevsl/taskdraft/internal/metrics"
	"github.com/agentdevsl/taskdraft/internal/prompts"
	"github.com/agentdevsl/taskdraft/internal/store"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Logger = logger

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	if level, lerr := zerolog.ParseLevel(cfg.LogLevel); lerr == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Str("listen_addr", cfg.ListenAddr).
		Str("model", cfg.Model).
		Bool("persistence", cfg.PersistenceEnabled()).
		Msg("starting taskdraft")

	if !cfg.ModelEnabled() {
		logger.Fatal().Msg("ANTHROPIC_API_KEY is required")
	}

	checker := health.NewChecker(logger)
	m := metrics.New()

	// Persistence: SQLite when configured, in-memory otherwise.
	var (
		gateway   authoring.Gateway
		directory httpapi.Directory
	)
	if cfg.PersistenceEnabled() {
		db, serr := store.New(cfg.DBPath, logger)
		if serr != nil {
			logger.Fatal().Err(serr).Msg("failed to open store")
		}
		defer db.Close()
		checker.Register("database", health.DatabaseCheck(func(ctx context.Context) error {
			return db.DB().PingContext(ctx)
		}))
		gateway, directory = db, db
	} else {
		logger.Warn().Msg("DB_PATH not set; projects and history are in-memory only")
		mem := store.NewMemory()
		gateway, directory = mem, mem
	}

	// Prompt pack: optional YAML override, built-in defaults otherwise.
	pack := prompts.Default()
	if cfg.PromptsPath != "" {
		pack, err = prompts.Load(cfg.PromptsPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.PromptsPath).Msg("failed to load prompt pack")
		}
		logger.Info().Str("path", cfg.PromptsPath).Msg("prompt pack loaded")
	}

	dialer := llm.NewAnthropicDialer(cfg.AnthropicAPIKey, logger,
		llm.WithModel(cfg.Model),
		llm.WithMaxTokens(cfg.MaxTokens),
	)

	controller := authoring.NewController(
		eventlog.New(logger),
		gateway,
		dialer,
		pack,
		m,
		cfg.MaxQuestions,
		logger,
	)

	server := httpapi.NewServer(httpapi.ServerConfig{
		ListenAddr: cfg.ListenAddr,
		Auth: httpapi.AuthConfig{
			Mode:      cfg.AuthMode,
			APIKey:    cfg.APIKey,
			JWTSecret: cfg.JWTSecret,
		},
		SSEKeepAlive: cfg.SSEKeepAlive,
	}, controller, checker, directory, m, logger)

	go func() {
		if serr := server.Start(); serr != nil {
			logger.Fatal().Err(serr).Msg("api server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully")

	if err := server.Shutdown(cfg.ShutdownTimeout); err != nil {
		logger.Error().Err(err).Msg("api server shutdown error")
	}

	logger.Info().Msg("taskdraft stopped")
}
