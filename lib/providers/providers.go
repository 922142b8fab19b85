package providers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/onkernel/dobs/cmd/api/config"
	"github.com/onkernel/dobs/lib/cloud"
	"github.com/onkernel/dobs/lib/logger"
	"github.com/onkernel/dobs/lib/mounts"
	"github.com/onkernel/dobs/lib/otel"
	"github.com/onkernel/dobs/lib/paths"
	"github.com/onkernel/dobs/lib/registry"
	"github.com/onkernel/dobs/lib/volumes"
	otelglobal "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// ProvideLogger provides a structured logger, bridged to OTel when enabled
func ProvideLogger() *slog.Logger {
	return logger.NewSubsystemLogger(logger.SubsystemVolumes, logger.NewConfig(), otel.GetGlobalLogHandler())
}

// ProvideContext provides a context with logger attached
func ProvideContext(log *slog.Logger) context.Context {
	return logger.AddToContext(context.Background(), log)
}

// ProvideConfig provides the validated application configuration
func ProvideConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ProvideMeter provides the global meter. It is a no-op until OTel is initialized.
func ProvideMeter(cfg *config.Config) metric.Meter {
	return otelglobal.Meter(cfg.OtelServiceName)
}

// ProvidePaths provides the host path layout
func ProvidePaths(cfg *config.Config) *paths.Paths {
	return paths.New(cfg.MountRoot, cfg.DeviceDir, cfg.DataDir)
}

// ProvideCloudClient provides the DigitalOcean volume client
func ProvideCloudClient(ctx context.Context, cfg *config.Config, meter metric.Meter) (cloud.Client, error) {
	return cloud.NewClient(ctx, cloud.Config{
		Token:         cfg.Token,
		Region:        cfg.Region,
		APIURL:        cfg.APIURL,
		MetadataURL:   cfg.MetadataURL,
		UserAgent:     "dobs/" + cfg.Version,
		ActionTimeout: cfg.ActionTimeout,
		PollInterval:  cfg.PollInterval,
	}, meter)
}

// ProvideMounter provides the host mounter
func ProvideMounter(cfg *config.Config) mounts.Mounter {
	return mounts.NewMounter(cfg.SettleTimeout, cfg.PollInterval)
}

// ProvideRegistry provides the volume registry for the configured backend
func ProvideRegistry(ctx context.Context, cfg *config.Config, p *paths.Paths) (registry.Registry, func(), error) {
	log := logger.FromContext(ctx)

	var (
		reg registry.Registry
		err error
	)
	switch cfg.RegistryBackend {
	case config.RegistryBolt:
		reg, err = registry.OpenBolt(p.RegistryDB())
		if err != nil {
			return nil, nil, fmt.Errorf("open registry: %w", err)
		}
	default:
		reg = registry.NewMemory()
	}
	log.InfoContext(ctx, "registry ready", "backend", cfg.RegistryBackend)

	cleanup := func() {
		if err := reg.Close(); err != nil {
			log.ErrorContext(ctx, "failed to close registry", "error", err)
		}
	}
	return reg, cleanup, nil
}

// ProvideVolumeManager provides the volume lifecycle manager
func ProvideVolumeManager(c cloud.Client, m mounts.Mounter, reg registry.Registry, p *paths.Paths, meter metric.Meter) volumes.Manager {
	return volumes.NewManager(c, m, reg, p, meter)
}
