// Package log provides component-scoped structured loggers for the encoding
// pipeline, backed by zerolog. The default logger writes to stderr at warn
// level so library consumers see nothing unless they opt in via SetLevel.
package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu   sync.RWMutex
	base = zerolog.New(os.Stderr).
		Level(zerolog.WarnLevel).
		With().
		Timestamp().
		Logger()
)

// SetLevel sets the minimum level for all loggers obtained after the call.
func SetLevel(level zerolog.Level) {
	mu.Lock()
	defer mu.Unlock()
	base = base.Level(level)
}

// SetOutput redirects all loggers obtained after the call to w. Useful for
// tests and for embedding into an application's own log sink.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	base = base.Output(w)
}

// SetConsole switches to human-readable console output, for examples and
// interactive use.
func SetConsole() {
	SetOutput(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}

// With returns a logger tagged with the given component name.
func With(component string) zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base.With().Str("component", component).Logger()
}
