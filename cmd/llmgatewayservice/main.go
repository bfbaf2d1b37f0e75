package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"llm-gateway/internal/backend"
	"llm-gateway/internal/backend/ollama"
	"llm-gateway/internal/backend/openai"
	"llm-gateway/internal/config"
	"llm-gateway/internal/httplog"
	"llm-gateway/internal/llm" // The internal package for this service
	"llm-gateway/internal/requestctx"
	"llm-gateway/internal/usage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/jackc/pgx/v5/stdlib" // Registers the "pgx" database/sql driver
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// main is the entry point for the LLMGatewayService.
func main() {
	configPath := flag.String("config", "", "path to a yaml config file")
	flag.Parse()

	logger := zerolog.New(os.Stderr).With().Timestamp().Str("service", "llmgateway").Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}
	logger = logger.Level(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Program was unsuccessful")
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	b, err := newBackend(cfg)
	if err != nil {
		return err
	}

	// Usage ledger, only when a database is configured
	repo := usage.NewNoopRepository()
	if cfg.Database.URL != "" {
		db, err := sql.Open("pgx", cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("could not open database: %w", err)
		}
		defer db.Close()

		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("could not ping database: %w", err)
		}
		if err := usage.EnsureSchema(ctx, db); err != nil {
			return err
		}
		repo = usage.NewPostgresRepository(db)
		logger.Info().Msg("Successfully connected to the usage database")
	}
	usageService := usage.NewService(repo)

	metrics := llm.NewMetrics()
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		metrics,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Inject backend, ledger and metrics into the service
	adapter := llm.NewAdapter(b, cfg.Backend.Model, cfg.Backend.MaxConcurrent, metrics)
	llmService := llm.NewService(adapter, usageService, metrics, logger, cfg.Server.RequestTimeout)

	// Inject services into the handlers
	llmHandler := llm.NewHandler(llmService, logger)
	usageHandler := usage.NewHandler(usageService)

	r := chi.NewRouter()
	r.Use(requestctx.Middleware)
	r.Use(httplog.Middleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{requestctx.Header},
		AllowCredentials: false,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("LLMGatewayService OK"))
	})

	if cfg.Metrics.Enabled {
		r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	}

	// Register all the API routes from the handlers ( /chat, /chat/stream, /usage/summary )
	llmHandler.RegisterRoutes(r)
	usageHandler.RegisterRoutes(r)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Uint16("port", cfg.Server.Port).
			Str("backend", b.Name()).
			Str("model", cfg.Backend.Model).
			Msg("LLMGatewayService starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("could not start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Caught signal, shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newBackend builds the configured text-generation backend.
func newBackend(cfg *config.Config) (backend.Backend, error) {
	switch cfg.Backend.Kind {
	case config.BackendOllama:
		base, err := cfg.BackendURL()
		if err != nil {
			return nil, err
		}
		return ollama.NewClient(base, cfg.Backend.Model, &ollama.Options{
			KeepAlive: cfg.Backend.KeepAlive,
		}), nil
	case config.BackendOpenAI:
		return openai.NewClient(cfg.Backend.BaseURL, cfg.Backend.Model, &openai.Options{
			APIKey: cfg.Backend.APIKey,
		}), nil
	case config.BackendStub:
		return backend.NewStub(), nil
	default:
		return nil, fmt.Errorf("unknown backend kind %q", cfg.Backend.Kind)
	}
}
