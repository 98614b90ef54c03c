package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"mpxreport/internal/config"
	"mpxreport/internal/dataprocessing"
	"mpxreport/internal/exporter"
	"mpxreport/internal/files"
	"mpxreport/internal/infrastructure"
	customMiddleware "mpxreport/internal/middleware"
	"mpxreport/internal/operations"
	"mpxreport/internal/services"
	"mpxreport/internal/source"
	handlers "mpxreport/internal/transport/http"
	"mpxreport/pkg/contracts"
	"mpxreport/pkg/contracts/domain"
)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.PipelineMetrics
	Manager       *operations.Manager
	ReportService *services.ReportService
	HealthService *services.HealthService

	fetcher operations.Fetcher
	clock   config.Clock
}

// Option customizes an Application
type Option func(*Application)

// WithFetcher replaces the line-list fetcher
func WithFetcher(fetcher operations.Fetcher) Option {
	return func(a *Application) { a.fetcher = fetcher }
}

// WithClock replaces the clock that dates reports
func WithClock(clock config.Clock) Option {
	return func(a *Application) { a.clock = clock }
}

// NewApplication wires every component from cfg. It does not start the
// HTTP server.
func NewApplication(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	a := &Application{
		Config: cfg,
		Logger: logger,
		clock:  config.SystemClock,
	}
	for _, opt := range opts {
		opt(a)
	}

	paths, err := config.NewPaths(cfg.Report.OutputDir)
	if err != nil {
		return nil, err
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	a.Paths = paths

	providers, err := infrastructure.InitializeOTel(infrastructure.NewOTelConfig(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	a.OTelProviders = providers

	if err := a.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	a.setupRouter()
	a.createServer()

	logger.Info("Application initialized",
		slog.String("version", contracts.Version),
		slog.String("reports_dir", paths.ReportsDir),
		slog.String("source", cfg.Source.Location))

	return a, nil
}

// initializeServices builds the report pipeline and the services on top of it
func (a *Application) initializeServices() error {
	tracer, err := operations.NewOperationTracer(a.OTelProviders)
	if err != nil {
		return err
	}
	a.Metrics = tracer.Metrics()

	opConfig := operations.NewConfigBuilder().
		WithStepTimeout(operations.StepIDFetch, a.Config.Source.Timeout).
		WithOperationTimeout(a.Config.Server.OperationTimeout).
		Build()
	a.Manager = operations.NewManager(operations.NewRegistry(), opConfig, tracer, a.Logger)

	if a.fetcher == nil {
		a.fetcher = source.NewFetcher(a.Config.Source.Timeout,
			source.WithUserAgent(a.Config.Source.UserAgent),
			source.WithLogger(a.Logger))
	}

	steps := operations.NewReportSteps(operations.ReportDeps{
		Fetcher:       a.fetcher,
		Aggregator:    dataprocessing.NewAggregator(a.Config.Report.Parallel, a.Logger),
		Exporter:      exporter.NewReporter(a.Paths, a.clock, a.Logger),
		DefaultSource: a.Config.Source.Location,
		Metrics:       a.Metrics,
		Logger:        a.Logger,
	})
	for _, step := range steps {
		if err := a.Manager.RegisterStep(step); err != nil {
			return fmt.Errorf("failed to register step %s: %w", step.ID(), err)
		}
	}

	formats, err := services.ParseFormats(a.Config.Report.Formats)
	if err != nil {
		return err
	}
	a.ReportService = services.NewReportService(a.Manager, files.NewDiscovery(a.Paths), services.ReportDefaults{
		Source:       a.Config.Source.Location,
		Formats:      formats,
		AllowedHosts: a.Config.Source.AllowedHosts,
	}, a.clock, a.Logger)

	a.HealthService = services.NewHealthService(contracts.Version, contracts.BuildTime, a.Paths, a.Manager, a.Logger)
	return nil
}

// setupRouter configures the HTTP router with all routes.
// Middleware order: RequestID, RealIP, OTel, Logger, Recoverer.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.Metrics, a.Logger).Handler)
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(a.Logger))
	r.Use(customMiddleware.SecurityHeaders)

	var generate []func(http.Handler) http.Handler
	if rl := a.Config.Server.RateLimit; rl.Enabled {
		generate = append(generate, customMiddleware.NewRateLimiter(rl.RPS, rl.Burst, a.Logger).Handler)
	}

	health := handlers.NewHealthHandler(a.HealthService, a.Logger)
	reports := handlers.NewReportHandler(a.ReportService, a.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/health", health.HealthCheck)
		r.Get("/version", health.Version)
	})
	r.Mount(handlers.ReportsPath, reports.Routes(generate...))

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         a.Config.Server.Address,
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Generate runs one report with the configured defaults
func (a *Application) Generate(ctx context.Context, req services.ReportRequest) (*domain.ReportResult, error) {
	return a.ReportService.Generate(ctx, req)
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	a.Logger.InfoContext(ctx, "Server listening",
		slog.String("address", ln.Addr().String()),
		slog.String("reports_dir", a.Paths.ReportsDir))

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		a.Logger.InfoContext(ctx, "Shutdown requested")
		return a.Stop(context.WithoutCancel(ctx))
	}
}

// Stop gracefully stops the server and flushes telemetry
func (a *Application) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}
	if err := a.Close(shutdownCtx); err != nil {
		errs = append(errs, err)
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}

// Close releases telemetry providers. It is enough for one-shot runs that
// never started the server.
func (a *Application) Close(ctx context.Context) error {
	if a.OTelProviders == nil {
		return nil
	}
	if err := a.OTelProviders.Shutdown(ctx); err != nil {
		a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		return err
	}
	return nil
}

// Run listens on the configured address until SIGINT or SIGTERM
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", a.Config.Server.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Config.Server.Address, err)
	}
	return a.Serve(ctx, ln)
}
