package injector

import (
	"github.com/zeusync/sentry/internal/core/events/bus"
	"github.com/zeusync/sentry/internal/core/observability/log"
	"github.com/zeusync/sentry/internal/sim"
)

// App is everything cmd/sentry needs to run a scenario.
type App struct {
	Log    *log.Logger
	Bus    bus.EventBus
	Runner *sim.Runner
}

// ProvideLogger builds the process logger at the requested level.
func ProvideLogger(level log.Level) *log.Logger {
	l := log.Provide()
	l.SetLevel(level)
	return l
}

// Close releases the runner and flushes the logger.
func (a *App) Close() error {
	err := a.Runner.Close()
	_ = a.Log.Sync()
	return err
}
