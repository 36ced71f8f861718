package wasip3

import (
	"github.com/refraction-networking/wasip3/internal/log"
)

// SetDefaultLogger sets the logger used by httpcompat drains and by any
// host.Runtime created without a Config.Logger.
//
// By default, slog.Default() is used.
func SetDefaultLogger(logger *log.Logger) {
	log.SetDefaultLogger(logger)
}

// SetDefaultHandler is like SetDefaultLogger but takes a slog.Handler.
// The later of the two calls wins.
func SetDefaultHandler(handler log.Handler) {
	log.SetDefaultHandler(handler)
}
