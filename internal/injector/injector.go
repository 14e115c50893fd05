//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/sentry/internal/core/events/bus"
	"github.com/zeusync/sentry/internal/core/observability/log"
	"github.com/zeusync/sentry/internal/sim"
)

func InitializeApp(level log.Level, sc *sim.Scenario) (*App, error) {
	wire.Build(
		ProvideLogger,
		wire.Bind(new(log.Log), new(*log.Logger)),
		bus.New,
		wire.Struct(new(sim.Options), "Logger", "Bus"),
		sim.NewRunner,
		wire.Struct(new(App), "*"),
	)
	return nil, nil
}
