package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"os/user"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/docker/go-connections/sockets"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/onkernel/dobs/cmd/api/api"
	"github.com/onkernel/dobs/cmd/api/config"
	mw "github.com/onkernel/dobs/lib/middleware"
	"github.com/onkernel/dobs/lib/otel"
	"github.com/riandyrn/otelchi"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application terminated", "error", err)
		os.Exit(1)
	}
	slog.Info("main() exiting normally")
}

func run() error {
	// Load config early for OTel initialization
	cfg := config.Load()

	otelProvider, otelShutdown, err := otel.Init(context.Background(), otel.Config{
		Enabled:           cfg.OtelEnabled,
		Endpoint:          cfg.OtelEndpoint,
		ServiceName:       cfg.OtelServiceName,
		ServiceInstanceID: cfg.OtelServiceInstanceID,
		Insecure:          cfg.OtelInsecure,
		Version:           cfg.Version,
		Env:               cfg.Env,
		Region:            cfg.Region,
	})
	if err != nil {
		// Log warning but don't fail - graceful degradation
		slog.Warn("failed to initialize OpenTelemetry, continuing without telemetry", "error", err)
	}
	if otelShutdown != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := otelShutdown(shutdownCtx); err != nil {
				slog.Warn("error shutting down OpenTelemetry", "error", err)
			}
		}()
	}
	if otelProvider != nil && otelProvider.LogHandler != nil {
		otel.SetGlobalLogHandler(otelProvider.LogHandler)
	}

	// Missing DO_TOKEN or DO_REGION fails here
	app, cleanup, err := initializeApp()
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}
	defer func() {
		slog.Info("cleaning up application resources")
		cleanup()
	}()

	ctx, stop := signal.NotifyContext(app.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := app.Logger
	if cfg.OtelEnabled {
		logger.Info("OpenTelemetry enabled", "endpoint", cfg.OtelEndpoint, "service", cfg.OtelServiceName)
	}

	var httpMetricsMw func(http.Handler) http.Handler
	if otelProvider != nil && otelProvider.MeterProvider != nil {
		if httpMetrics, err := mw.NewHTTPMetrics(otelProvider.Meter); err == nil {
			httpMetricsMw = httpMetrics.Middleware
		}
	}
	var accessLogHandler slog.Handler
	if otelProvider != nil {
		accessLogHandler = otelProvider.LogHandler
	}

	r := newRouter(routerConfig{
		service:      app.ApiService,
		logger:       logger,
		accessLogger: mw.NewAccessLogger(accessLogHandler),
		metrics:      httpMetricsMw,
		tracing:      cfg.OtelEnabled,
		serviceName:  cfg.OtelServiceName,
		timeout:      app.Config.RequestTimeout(),
	})

	listener, err := listenPluginSocket(app.Config.PluginSocket, app.Config.SocketGroup)
	if err != nil {
		return err
	}
	defer os.Remove(app.Config.PluginSocket)

	srv := &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return app.Ctx },
	}

	grp, gctx := errgroup.WithContext(ctx)

	grp.Go(func() error {
		logger.Info("starting dobs volume plugin",
			"socket", app.Config.PluginSocket,
			"region", app.Config.Region,
			"mount_root", app.Config.MountRoot,
			"registry", app.Config.RegistryBackend)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("plugin server error", "error", err)
			return err
		}
		return nil
	})

	grp.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		// Let in-flight attach/detach calls finish
		shutdownCtx := context.WithoutCancel(gctx)
		shutdownCtx, cancel := context.WithTimeout(shutdownCtx, app.Config.RequestTimeout())
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown plugin server", "error", err)
			return err
		}
		logger.Info("plugin server shutdown complete")
		return nil
	})

	err = grp.Wait()
	slog.Info("all goroutines finished")
	return err
}

type routerConfig struct {
	service      *api.ApiService
	logger       *slog.Logger
	accessLogger *slog.Logger
	metrics      func(http.Handler) http.Handler
	tracing      bool
	serviceName  string
	timeout      time.Duration
}

// newRouter builds the plugin protocol router.
func newRouter(rc routerConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// Tracing first so the access log carries the span context
	if rc.tracing {
		r.Use(otelchi.Middleware(rc.serviceName, otelchi.WithChiRoutes(r)))
	}
	r.Use(mw.InjectLogger(rc.logger))
	r.Use(mw.AccessLogger(rc.accessLogger))
	if rc.metrics != nil {
		r.Use(rc.metrics)
	}
	r.Use(mw.PluginResponse)
	if rc.timeout > 0 {
		r.Use(middleware.Timeout(rc.timeout))
	}

	rc.service.Routes(r)
	return r
}

// listenPluginSocket creates the unix socket Docker discovers the plugin on.
func listenPluginSocket(path, group string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create socket directory: %w", err)
	}

	opts := []sockets.SockOption{sockets.WithChmod(0660)}
	if group != "" {
		g, err := user.LookupGroup(group)
		if err != nil {
			return nil, fmt.Errorf("lookup socket group %q: %w", group, err)
		}
		gid, err := strconv.Atoi(g.Gid)
		if err != nil {
			return nil, fmt.Errorf("parse gid %q: %w", g.Gid, err)
		}
		opts = append(opts, sockets.WithChown(0, gid))
	}

	l, err := sockets.NewUnixSocketWithOpts(path, opts...)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", path, err)
	}
	return l, nil
}
