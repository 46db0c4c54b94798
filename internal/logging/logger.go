// Package logging provides the process-global zerolog logger the bridge
// emits through. The embedding process installs its configured logger via
// SetGlobalLogger; until then everything is discarded.
package logging

import (
	"context"

	"github.com/rs/zerolog"
)

var Logger zerolog.Logger

func init() {
	SetGlobalLogger(zerolog.Nop())
}

// SetGlobalLogger replaces the process logger and wires it up as the
// default context logger.
func SetGlobalLogger(logger zerolog.Logger) {
	Logger = logger
	zerolog.DefaultContextLogger = &Logger
}

func Info() *zerolog.Event { return Logger.Info() }

func Warn() *zerolog.Event { return Logger.Warn() }

// Ctx returns the logger attached to ctx, falling back to the process
// logger.
func Ctx(ctx context.Context) *zerolog.Logger { return zerolog.Ctx(ctx) }
