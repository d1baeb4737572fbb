package ranging

import (
	"log/slog"
	"sync/atomic"
)

// The engine logs through slog at Debug/Warn, plus one Info line at
// start-up; nothing is printed on the happy path of an exchange. Hosts that
// route logs elsewhere replace the logger here.
var logger atomic.Pointer[slog.Logger]

func init() {
	logger.Store(slog.Default())
}

// SetLogger replaces the package logger.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger.Store(l)
	}
}

func log() *slog.Logger {
	return logger.Load()
}
