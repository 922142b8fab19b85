//go:build wireinject

package main

import (
	"context"
	"log/slog"

	"github.com/google/wire"
	"github.com/onkernel/dobs/cmd/api/api"
	"github.com/onkernel/dobs/cmd/api/config"
	"github.com/onkernel/dobs/lib/providers"
	"github.com/onkernel/dobs/lib/volumes"
)

// application struct to hold initialized components
type application struct {
	Ctx           context.Context
	Logger        *slog.Logger
	Config        *config.Config
	VolumeManager volumes.Manager
	ApiService    *api.ApiService
}

// initializeApp is the injector function
func initializeApp() (*application, func(), error) {
	panic(wire.Build(
		providers.ProvideLogger,
		providers.ProvideContext,
		providers.ProvideConfig,
		providers.ProvideMeter,
		providers.ProvidePaths,
		providers.ProvideCloudClient,
		providers.ProvideMounter,
		providers.ProvideRegistry,
		providers.ProvideVolumeManager,
		api.New,
		wire.Struct(new(application), "*"),
	))
}
