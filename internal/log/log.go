// Package log provides the process-wide structured logger.
package log

import (
	"io"
	"os"
	"sync"

	"github.com/paularlott/logger"
	logslog "github.com/paularlott/logger/slog"
)

var (
	mu     sync.RWMutex
	global logger.Logger
	output io.Writer = os.Stderr
)

func init() {
	Configure("info", "console")
}

// Configure replaces the global logger. Level is one of trace, debug, info,
// warn or error; format is console or json.
func Configure(level, format string) {
	if format != "json" {
		format = "console"
	}
	l := logslog.New(logslog.Config{
		Level:  level,
		Format: format,
		Writer: output,
	})

	mu.Lock()
	global = l
	mu.Unlock()
}

// SetOutput redirects log output. It takes effect on the next Configure call.
func SetOutput(w io.Writer) {
	mu.Lock()
	output = w
	mu.Unlock()
}

// Logger returns the current global logger.
func Logger() logger.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// With returns a child logger carrying the given key/value pair.
func With(key string, value any) logger.Logger {
	return Logger().With(key, value)
}

func Trace(msg string, keysAndValues ...any) { Logger().Trace(msg, keysAndValues...) }
func Debug(msg string, keysAndValues ...any) { Logger().Debug(msg, keysAndValues...) }
func Info(msg string, keysAndValues ...any)  { Logger().Info(msg, keysAndValues...) }
func Warn(msg string, keysAndValues ...any)  { Logger().Warn(msg, keysAndValues...) }
func Error(msg string, keysAndValues ...any) { Logger().Error(msg, keysAndValues...) }
