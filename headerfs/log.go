package headerfs

import "github.com/decred/slog"

// log is, by default, disabled logging output. Callers wire a concrete
// logger in with UseLogger, exactly as package blockchain does.
var log = slog.Disabled

// DisableLog disables all logging output from this package.
func DisableLog() {
	log = slog.Disabled
}

// UseLogger lets a calling application bind a logger backend, typically
// one of the subsystem loggers produced by a logrotate-backed dispatcher
// in cmd/headerchaind.
func UseLogger(logger slog.Logger) {
	log = logger
}
