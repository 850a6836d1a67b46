// Package log provides structured logging for weakcast.
// It writes leveled, categorised key=value lines to a file (optionally via
// tea.LogToFile) and is enabled by the --debug flag or WEAKCAST_DEBUG env.
package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zjrosen/weakcast/internal/pubsub"
)

// Level represents log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Category groups related log messages.
type Category string

const (
	CatWeak      Category = "weak"      // Weak handle creation and element validation
	CatMulticast Category = "multicast" // Subject and hub fan-out
	CatConfig    Category = "config"    // Configuration loading/saving
	CatWatcher   Category = "watcher"   // File watcher events
	CatUI        Category = "ui"        // Watch view updates
	CatCache     Category = "cache"     // cache operations
	CatTrace     Category = "trace"     // Tracing provider lifecycle
	CatMetrics   Category = "metrics"   // Metrics registration and exposure
)

// Logger writes entries to one destination and mirrors them onto a broker.
type Logger struct {
	mu     sync.Mutex
	file   *os.File
	writer io.Writer
	broker *pubsub.Broker[string]
}

var (
	defaultLogger *Logger
	once          sync.Once
)

func newWriterLogger(f *os.File, w io.Writer) *Logger {
	return &Logger{file: f, writer: w, broker: pubsub.NewBroker[string]()}
}

// Init opens path for appending and installs the global logger. The returned
// func closes the file.
func Init(path string) (func(), error) {
	var initErr error
	once.Do(func() {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // G304: user-chosen debug log path
		if err != nil {
			initErr = fmt.Errorf("opening log file %s: %w", path, err)
			return
		}
		defaultLogger = newWriterLogger(f, f)
	})
	if initErr != nil {
		return nil, initErr
	}
	if defaultLogger == nil {
		return nil, fmt.Errorf("logger initialization failed or already attempted")
	}
	return func() {
		if defaultLogger != nil && defaultLogger.file != nil {
			_ = defaultLogger.file.Close()
		}
	}, nil
}

// InitWithTeaLog installs a logger on the file Bubble Tea opens for prefix.
func InitWithTeaLog(path string, prefix string) (func(), error) {
	f, err := tea.LogToFile(path, prefix)
	if err != nil {
		return nil, err
	}
	defaultLogger = newWriterLogger(f, f)
	return func() { _ = f.Close() }, nil
}

// InitWithWriter routes log output to w, replacing any existing logger.
func InitWithWriter(w io.Writer) {
	defaultLogger = newWriterLogger(nil, w)
}

// ResetForTesting discards the global logger so Init can run again.
func ResetForTesting() {
	if defaultLogger != nil {
		defaultLogger.broker.Close()
	}
	defaultLogger = nil
	once = sync.Once{}
}

// Debug logs at debug level.
func Debug(cat Category, msg string, fields ...any) {
	log(LevelDebug, cat, msg, fields...)
}

// Info logs at info level.
func Info(cat Category, msg string, fields ...any) {
	log(LevelInfo, cat, msg, fields...)
}

// Error logs at error level.
func Error(cat Category, msg string, fields ...any) {
	log(LevelError, cat, msg, fields...)
}

// ErrorErr logs msg at error level with err appended as the "error" field.
func ErrorErr(cat Category, msg string, err error, fields ...any) {
	errText := "<nil>"
	if err != nil {
		errText = err.Error()
	}
	log(LevelError, cat, msg, append(fields, "error", errText)...)
}

// log renders one line:
//
//	2025-12-06T10:45:00 [ERROR] [multicast] message key=value key2=value2
func log(level Level, cat Category, msg string, fields ...any) {
	l := defaultLogger
	if l == nil {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] [%s] %s", time.Now().Format("2006-01-02T15:04:05"), level, cat, msg)
	for i := 0; i < len(fields); i += 2 {
		if i+1 == len(fields) {
			fmt.Fprintf(&b, " %v=<missing>", fields[i])
			break
		}
		fmt.Fprintf(&b, " %v=%v", fields[i], fields[i+1])
	}
	b.WriteByte('\n')
	entry := b.String()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writer != nil {
		_, _ = io.WriteString(l.writer, entry)
	}
	l.broker.Publish(pubsub.CreatedEvent, entry)
}

// LogEvent is a pubsub event containing a log entry.
type LogEvent = pubsub.Event[string]

// LogListener wraps a continuous listener for log events.
type LogListener = pubsub.ContinuousListener[string]

// NewListener creates a new log event listener.
// The listener is automatically cleaned up when the context is cancelled.
func NewListener(ctx context.Context) *LogListener {
	if defaultLogger == nil {
		return nil
	}
	return pubsub.NewContinuousListener[string](ctx, defaultLogger.broker)
}
