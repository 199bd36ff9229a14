package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	level  slog.LevelVar
	mu     sync.RWMutex
	active *slog.Logger
)

func init() {
	level.Set(slog.LevelInfo)
	active = build(os.Stdout)
}

func build(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: &level}))
}

// SetOutput redirects all subsequent log output to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	active = build(w)
	mu.Unlock()
}

// SetLevel accepts debug/info/warn/error; anything else falls back to info.
func SetLevel(name string) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn", "warning":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
}

func current() *slog.Logger {
	mu.RLock()
	l := active
	mu.RUnlock()
	if l == nil {
		l = build(os.Stdout)
	}
	return l
}

func Debugf(format string, v ...any) { current().Debug(fmt.Sprintf(format, v...)) }
func Infof(format string, v ...any)  { current().Info(fmt.Sprintf(format, v...)) }
func Warnf(format string, v ...any)  { current().Warn(fmt.Sprintf(format, v...)) }
func Errorf(format string, v ...any) { current().Error(fmt.Sprintf(format, v...)) }

// InfoBlock logs a multi-line block one line at a time so every line keeps
// the slog prefix.
func InfoBlock(block string) {
	for _, line := range strings.Split(strings.TrimSpace(block), "\n") {
		if line = strings.TrimRight(line, " \t"); line != "" {
			Infof("%s", line)
		}
	}
}
