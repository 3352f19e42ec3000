package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/trace-app/trace-dashboard/pkg/auth"
	"github.com/trace-app/trace-dashboard/pkg/clients"
	"github.com/trace-app/trace-dashboard/pkg/config"
	"github.com/trace-app/trace-dashboard/pkg/handlers"
	"github.com/trace-app/trace-dashboard/pkg/logging"
	"github.com/trace-app/trace-dashboard/pkg/mcp"
	"github.com/trace-app/trace-dashboard/pkg/mcp/tools"
	"github.com/trace-app/trace-dashboard/pkg/middleware"
	"github.com/trace-app/trace-dashboard/pkg/polling"
	"github.com/trace-app/trace-dashboard/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

// shutdownTimeout bounds draining requests and stopping poll chains.
const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.String("project_management_url", cfg.Services.ProjectManagementURL),
		zap.String("transcription_url", cfg.Services.TranscriptionURL),
		zap.String("genai_url", cfg.Services.GenAIURL),
		zap.Int("poll_max_attempts", cfg.Polling.MaxAttempts),
		zap.Duration("poll_interval", cfg.Polling.Interval),
		zap.Bool("mcp_enabled", cfg.MCP.Enabled))

	backends := services.NewBackends(cfg.Services, clients.Options{
		Timeout:  cfg.HTTP.Timeout,
		RetryMax: cfg.HTTP.RetryMax,
	}, logger)

	registry := services.NewSessionRegistry(backends, services.DashboardConfig{
		Polling: polling.Config{
			MaxAttempts: cfg.Polling.MaxAttempts,
			Interval:    cfg.Polling.Interval,
		},
		CancelOnDeselect: cfg.Polling.CancelOnDeselect,
	}, cfg.Session.IdleTimeout, logger)

	ctx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go registry.Run(ctx, cfg.Session.SweepInterval)

	cookies := auth.NewSessionStore(cfg.Session.Secret, cfg.Session.IdleTimeout,
		auth.DeriveCookieSettings(cfg.BaseURL, cfg.Session.CookieDomain))
	sessions := handlers.NewSessionMiddleware(cookies, registry, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, registry, logger).RegisterRoutes(mux)
	handlers.NewDashboardHandler(logger).RegisterRoutes(mux, sessions)
	handlers.NewResourcesHandler(logger).RegisterRoutes(mux, sessions)
	handlers.NewIntegrationsHandler(logger).RegisterRoutes(mux, sessions)
	handlers.NewEventsHandler(0, logger).RegisterRoutes(mux, sessions)

	if cfg.MCP.Enabled {
		audit := mcp.NewAuditLogger(logger)
		mcpServer := mcp.NewServer("trace-dashboard", cfg.Version, logger, mcpserver.WithHooks(audit.Hooks()))
		tools.RegisterHealthTool(mcpServer.MCP(), cfg.Version, registry)
		tools.RegisterDashboardTools(mcpServer.MCP(), &tools.DashboardToolDeps{
			Sessions: registry,
			Logger:   logger,
		})
		handlers.NewMCPHandler(mcpServer, logger, cfg.MCP).RegisterRoutes(mux)
	}

	handler := middleware.RequestLogger(logger)(auth.NewMiddleware(logger).Authenticate(mux))

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting trace-dashboard",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	waitForShutdown(logger, server, registry)
}

// waitForShutdown blocks until SIGINT or SIGTERM, then stops accepting
// requests and closes every dashboard session.
func waitForShutdown(logger *zap.Logger, server *http.Server, registry *services.SessionRegistry) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger.Info("Shutting down")
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
	if err := registry.Close(ctx); err != nil {
		logger.Error("Closing dashboard sessions failed", zap.Error(err))
	}
}
