// Structured logging for the coroutine runtime: a small Logger interface
// plus a couple of concrete backends, rather than a framework-wide
// observability layer.

package coro

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"
)

// LogLevel is the severity of a LogEntry.
type LogLevel int32

const (
	// LevelDebug is for detailed diagnostic information (scheduling decisions,
	// switch timings).
	LevelDebug LogLevel = iota
	// LevelInfo is for lifecycle milestones (env/ctx created, destroyed).
	LevelInfo
	// LevelWarn is for unusual-but-recoverable conditions (migration skipped,
	// maintenance loop backlog).
	LevelWarn
	// LevelError is for precondition violations and entry panics.
	LevelError
)

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int32(l))
	}
}

// LogEntry is a single structured log record describing a runtime event.
type LogEntry struct {
	Timestamp time.Time
	Category  string // "ctx", "env", "manager", "sync"
	Message   string
	Err       error
	Fields    map[string]any
	CtxID     uint64
	EnvID     uint64
	Level     LogLevel
}

// Logger is the structured logging interface implemented by every backend
// this package ships, and by any host-supplied adapter.
type Logger interface {
	Log(entry LogEntry)
	IsEnabled(level LogLevel) bool
}

// noopLogger discards everything; it is the default so the runtime has zero
// logging overhead unless a host opts in via WithLogger.
type noopLogger struct{}

// NewNoopLogger returns a Logger that discards every entry.
func NewNoopLogger() Logger { return noopLogger{} }

func (noopLogger) Log(LogEntry) {}

func (noopLogger) IsEnabled(LogLevel) bool { return false }

// StdLogger is a minimal Logger writing line-oriented text to an io.Writer,
// for quick diagnostics without pulling in a full logging framework.
type StdLogger struct {
	level atomic.Int32
	mu    sync.Mutex
	out   io.Writer
}

// NewStdLogger returns a StdLogger at the given minimum level, writing to w.
func NewStdLogger(w io.Writer, level LogLevel) *StdLogger {
	l := &StdLogger{out: w}
	l.level.Store(int32(level))
	return l
}

// NewStdoutLogger is a convenience wrapper around NewStdLogger(os.Stdout, level).
func NewStdoutLogger(level LogLevel) *StdLogger {
	return NewStdLogger(os.Stdout, level)
}

// SetLevel changes the minimum level that will be logged.
func (l *StdLogger) SetLevel(level LogLevel) { l.level.Store(int32(level)) }

// IsEnabled reports whether level would currently be logged.
func (l *StdLogger) IsEnabled(level LogLevel) bool {
	return int32(level) >= l.level.Load()
}

// Log writes entry if its level is enabled.
func (l *StdLogger) Log(entry LogEntry) {
	if !l.IsEnabled(entry.Level) {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintf(l.out, "%s [%s] %s", entry.Timestamp.Format(time.RFC3339Nano), entry.Level, entry.Category)
	if entry.EnvID != 0 {
		fmt.Fprintf(l.out, " env=%d", entry.EnvID)
	}
	if entry.CtxID != 0 {
		fmt.Fprintf(l.out, " ctx=%d", entry.CtxID)
	}
	fmt.Fprintf(l.out, " %s", entry.Message)
	if entry.Err != nil {
		fmt.Fprintf(l.out, " err=%q", entry.Err.Error())
	}
	for k, v := range entry.Fields {
		fmt.Fprintf(l.out, " %s=%v", k, v)
	}
	fmt.Fprintln(l.out)
}

// LogifaceLogger adapts a github.com/joeycumines/logiface Logger into this
// package's Logger interface, for hosts that already centralize structured
// logging on logiface.
type LogifaceLogger struct {
	l *logiface.Logger[logiface.Event]
}

// NewLogifaceLogger wraps l.
func NewLogifaceLogger(l *logiface.Logger[logiface.Event]) *LogifaceLogger {
	return &LogifaceLogger{l: l}
}

func (a *LogifaceLogger) IsEnabled(level LogLevel) bool {
	return a.l != nil && a.l.Level() >= logifaceLevel(level)
}

func (a *LogifaceLogger) Log(entry LogEntry) {
	if a.l == nil {
		return
	}
	b := a.l.Build(logifaceLevel(entry.Level))
	if b == nil {
		return
	}
	b = b.Str("category", entry.Category)
	if entry.EnvID != 0 {
		b = b.Uint64("env_id", entry.EnvID)
	}
	if entry.CtxID != 0 {
		b = b.Uint64("ctx_id", entry.CtxID)
	}
	if entry.Err != nil {
		b = b.Err(entry.Err)
	}
	for k, v := range entry.Fields {
		b = b.Any(k, v)
	}
	b.Log(entry.Message)
}

func logifaceLevel(level LogLevel) logiface.Level {
	switch level {
	case LevelDebug:
		return logiface.LevelDebug
	case LevelInfo:
		return logiface.LevelInformational
	case LevelWarn:
		return logiface.LevelWarning
	case LevelError:
		return logiface.LevelError
	default:
		return logiface.LevelInformational
	}
}

func logf(logger Logger, level LogLevel, category string, envID, ctxID uint64, err error, format string, args ...any) {
	if logger == nil || !logger.IsEnabled(level) {
		return
	}
	logger.Log(LogEntry{
		Level:    level,
		Category: category,
		EnvID:    envID,
		CtxID:    ctxID,
		Err:      err,
		Message:  fmt.Sprintf(format, args...),
	})
}
