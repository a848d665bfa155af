package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/codewave/panel/internal/analysis"
	"github.com/codewave/panel/internal/api"
	"github.com/codewave/panel/internal/config"
	"github.com/codewave/panel/internal/session"
	"github.com/codewave/panel/internal/storage"
	"github.com/codewave/panel/internal/telemetry"
	"github.com/codewave/panel/internal/upload"
	"github.com/codewave/panel/internal/web"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

type serveOptions struct {
	configPath string
	port       int
	endpoint   string
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web panel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServeConfig(cmd, opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, opts.configPath)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", config.DefaultConfigFile, "Path to the YAML configuration file")
	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "Listen port (overrides config)")
	cmd.Flags().StringVar(&opts.endpoint, "endpoint", "", "Analysis service URL (overrides config)")

	return cmd
}

// loadServeConfig loads the config file; explicitly set flags win over it.
func loadServeConfig(cmd *cobra.Command, opts *serveOptions) (*config.AppConfig, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = opts.port
	}
	if cmd.Flags().Changed("endpoint") {
		cfg.Analysis.Endpoint = opts.endpoint
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServe(ctx context.Context, cfg *config.AppConfig, configPath string) error {
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logger := newLogger(cfg.Advanced.LogLevel)

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warnf("tracing shutdown: %v", err)
		}
	}()

	store, err := storage.NewLocalStore(cfg.Storage.StagingDirectory)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	// Leftovers of a previous run belong to sessions that no longer exist.
	if err := store.Purge(); err != nil {
		logger.Warnf("failed to purge staging directory: %v", err)
	}

	client := analysis.NewClient(cfg.Analysis.Endpoint)
	sessions := session.NewManager(upload.NewFactory(store, client, logger), cfg.Session.MaxSessions, logger)

	e, err := newServer(cfg, sessions, logger)
	if err != nil {
		return err
	}

	go cleanupSessions(ctx, sessions, cfg, logger)

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	printBanner(cfg, configPath)

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.StartServer(s)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// newServer builds the echo instance with middleware, renderer and routes.
func newServer(cfg *config.AppConfig, sessions *session.Manager, logger *log.Logger) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger = logger
	e.Debug = cfg.Advanced.LogLevel == "debug"

	renderer, err := web.NewRenderer()
	if err != nil {
		return nil, err
	}
	e.Renderer = renderer

	api.SetupMiddleware(e)

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			// Skip logging if disabled in config
			if !cfg.Advanced.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return path == "/api/health" ||
				path == "/api/ws" ||
				strings.HasPrefix(path, "/static/")
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	// Compression middleware
	if cfg.Advanced.EnableCompression {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Level: cfg.Advanced.CompressionLevel,
			Skipper: func(c echo.Context) bool {
				return c.Request().URL.Path == "/api/ws"
			},
		}))
	}

	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	if cfg.Server.EnableCORS {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     cfg.GetAllowOrigins(),
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
			AllowCredentials: true,
		}))
	}

	api.RegisterRoutes(e, api.NewHandlers(&api.Dependencies{
		Sessions:         sessions,
		SessionTimeout:   time.Duration(cfg.Session.TimeoutMinutes) * time.Minute,
		AnalysisEndpoint: cfg.Analysis.Endpoint,
		Version:          Version,
	}))

	if err := web.RegisterStaticRoutes(e); err != nil {
		return nil, fmt.Errorf("failed to register static routes: %w", err)
	}

	return e, nil
}

func cleanupSessions(ctx context.Context, sessions *session.Manager, cfg *config.AppConfig, logger *log.Logger) {
	ticker := time.NewTicker(time.Duration(cfg.Session.CleanupIntervalMinutes) * time.Minute)
	defer ticker.Stop()

	maxAge := time.Duration(cfg.Session.TimeoutMinutes) * time.Minute
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.CleanupOldSessions(maxAge); n > 0 {
				logger.Infof("[Cleanup] removed %d idle sessions", n)
			}
		}
	}
}

func printBanner(cfg *config.AppConfig, configPath string) {
	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Codewave Analysis Panel                         ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Analysis:  %-46s║\n", cfg.Analysis.Endpoint)
	fmt.Printf("║  Staging:   %-46s║\n", cfg.Storage.StagingDirectory)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
	fmt.Printf("Open http://localhost:%d in your browser\n\n", cfg.Server.Port)
}
