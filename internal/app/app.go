package app

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"golang.org/x/sync/errgroup"

	"stockdash/internal/config"
	apierrors "stockdash/internal/errors"
	"stockdash/internal/files"
	"stockdash/internal/infrastructure"
	stockmw "stockdash/internal/middleware"
	"stockdash/internal/services"
	handlers "stockdash/internal/transport/http"
	ws "stockdash/internal/websocket"
)

const (
	Version = "v1.0.0"
	RepoURL = "https://github.com/stockdash/stockdash"
	AppName = "Stock Dashboard"
)

var (
	// BuildTime is set at compile time
	BuildTime = time.Now().Format(time.RFC3339)
	// BuildID is a unique identifier for this build
	BuildID = generateBuildID()
)

func generateBuildID() string {
	h := sha256.New()
	h.Write([]byte(Version))
	h.Write([]byte(time.Now().Format("2006-01-02")))
	return fmt.Sprintf("%x", h.Sum(nil))[:12]
}

// Application represents the main application container
type Application struct {
	Config           *config.Config
	Router           *chi.Mux
	Server           *http.Server
	Logger           *slog.Logger
	OTelProviders    *infrastructure.OTelProviders
	Metrics          *infrastructure.BusinessMetrics
	ErrorHandler     *apierrors.ErrorHandler
	DashboardService *services.DashboardService
	HealthService    *services.HealthService
	WebSocketHub     *ws.Hub

	// ctx outlives single requests; WebSocket read pumps run under it.
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
	stopErr  error
}

// NewApplication wires every service, the router and the HTTP server from cfg.
func NewApplication(cfg *config.Config) (*Application, error) {
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", Version),
		slog.String("build_id", BuildID))

	paths, err := cfg.GetPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to get paths: %w", err)
	}
	if err := paths.EnsureDirectories(cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	paths.LogPathResolution(logger)

	if !config.FileExists(paths.DataDir) {
		logger.Warn("Data directory not found, sessions start empty until files are uploaded",
			slog.String("path", paths.DataDir))
	}

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.NewOTelConfig(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		ErrorHandler:  apierrors.NewErrorHandler(logger, false),
		ctx:           ctx,
		cancel:        cancel,
	}

	if err := app.initializeServices(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	metrics, err := infrastructure.CreateBusinessMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create business metrics: %w", err)
	}
	a.Metrics = metrics

	discovery := files.NewDiscovery("")

	a.DashboardService = services.NewDashboardService(
		services.DashboardOptionsFromConfig(a.Config), discovery, metrics, a.Logger)

	wsMetrics, err := ws.NewOTelMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create websocket metrics: %w", err)
	}
	a.WebSocketHub = ws.NewHub(a.DashboardService, wsMetrics, a.Logger)
	a.DashboardService.SetNotifier(a.WebSocketHub)

	a.HealthService = services.NewHealthService(services.HealthOptions{
		Version:   Version,
		RepoURL:   RepoURL,
		BuildTime: BuildTime,
		BuildID:   BuildID,
		DataDir:   a.Config.GetDataDir(),
		Pattern:   a.Config.Data.Pattern,
		Sessions:  services.CounterFunc(a.DashboardService.SessionCount),
		Clients:   services.CounterFunc(a.WebSocketHub.ClientCount),
	}, discovery, a.Logger)

	return nil
}

func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Nothing here wraps the ResponseWriter, so the WebSocket upgrade still
	// sees the raw connection.
	r.Use(stockmw.RequestID)
	r.Use(stockmw.RealIP)

	wsHandler := ws.NewHandler(a.ctx, a.WebSocketHub, a.Config.WebSocket,
		a.Config.Security.AllowedOrigins, a.ErrorHandler, a.Logger)
	r.With(stockmw.WebSocketTraceMiddleware(a.Logger)).Handle("/ws", wsHandler)

	r.Group(func(r chi.Router) {
		// RequestID → RealIP → OTel → Logger → Recoverer → Timeout
		r.Use(stockmw.NewOTelMiddleware(a.OTelProviders, a.Metrics).Handler)
		r.Use(stockmw.StructuredLogger(a.Logger))
		r.Use(apierrors.RecoveryMiddleware(a.ErrorHandler))
		r.Use(stockmw.SecurityHeaders)

		if a.Config.Security.EnableCORS {
			r.Use(stockmw.CORS(a.getCORSConfig()))
		}

		if a.Config.Security.RateLimit.Enabled {
			r.Use(stockmw.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		a.setupAPIRoutes(r)
	})

	// Outside the middleware group so scrapes are not traced or rate limited
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(stockmw.Timeout(a.Config.Server.RequestTimeout, a.Logger))

		healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/health/ready", healthHandler.ReadinessCheck)
		r.Get("/health/live", healthHandler.LivenessCheck)
		r.Get("/health/stats", healthHandler.Stats)
		r.Get("/version", healthHandler.Version)

		r.Get("/metrics", handlers.ListMetrics)

		dashboardHandler := handlers.NewDashboardHandler(a.DashboardService, handlers.UploadLimits{
			MaxFileBytes: a.Config.Data.MaxUploadBytes,
			MaxFiles:     a.Config.Data.MaxUploadFiles,
		}, a.Logger, a.ErrorHandler)
		r.Mount("/sessions", dashboardHandler.Routes())
	})
}

func (a *Application) getCORSConfig() stockmw.CORSConfig {
	return stockmw.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders: []string{
			"Content-Disposition",
			"X-Request-ID",
		},
		MaxAge: 300,
		Logger: a.Logger,
	}
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Run serves HTTP and runs the background loops until ctx is cancelled or an
// interrupt arrives, then shuts everything down.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.WebSocketHub.Run(gctx)
	})
	g.Go(func() error {
		return a.DashboardService.Run(gctx)
	})
	g.Go(func() error {
		a.Logger.InfoContext(gctx, "HTTP server listening",
			slog.String("addr", a.Server.Addr),
			slog.String("data_dir", a.Config.GetDataDir()),
			slog.String("pattern", a.Config.Data.Pattern))

		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.Logger.Info("Shutdown requested")
		return a.Stop(context.Background())
	})

	return g.Wait()
}

// Stop gracefully stops the application. Only the first call does any work.
func (a *Application) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() {
		a.Logger.InfoContext(ctx, "Shutting down application")

		shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
		defer cancel()

		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			a.stopErr = fmt.Errorf("server shutdown error: %w", err)
		}

		// Ends the read pumps of connections hijacked from the server.
		a.cancel()

		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}

		a.Logger.InfoContext(ctx, "Application shutdown complete")

		if err := infrastructure.CloseLogFile(); err != nil {
			a.Logger.ErrorContext(ctx, "Error closing log file", slog.String("error", err.Error()))
		}
	})
	return a.stopErr
}
