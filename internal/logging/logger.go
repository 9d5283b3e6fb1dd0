// Package logging provides the diagnostic logger used by watchman itself.
// Output goes to stderr through zerolog and never to the CloudWatch sink,
// so a failing sink cannot feed back into its own delivery path.
package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level represents a log level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the level.
func (l Level) String() string {
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
		return "UNKNOWN"
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Logger is the interface for structured logging.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})

	// WithField returns a new logger with the given field added.
	WithField(key string, value interface{}) Logger

	// WithFields returns a new logger with the given fields added.
	WithFields(fields map[string]interface{}) Logger

	// SetLevel sets the minimum log level.
	SetLevel(level Level)

	// SetOutput sets the output writer.
	SetOutput(w io.Writer)
}

var (
	defaultLogger Logger
	defaultMu     sync.RWMutex
)

func init() {
	defaultLogger = New()
}

// Default returns the default logger.
func Default() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefault sets the default logger.
func SetDefault(l Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

// Debug logs a debug message using the default logger.
func Debug(msg string, args ...interface{}) {
	Default().Debug(msg, args...)
}

// Info logs an info message using the default logger.
func Info(msg string, args ...interface{}) {
	Default().Info(msg, args...)
}

// Warn logs a warning message using the default logger.
func Warn(msg string, args ...interface{}) {
	Default().Warn(msg, args...)
}

// Error logs an error message using the default logger.
func Error(msg string, args ...interface{}) {
	Default().Error(msg, args...)
}

// zeroLogger implements Logger on top of zerolog.
type zeroLogger struct {
	mu      sync.RWMutex
	logger  zerolog.Logger
	noColor bool
}

// New creates a logger writing colored console output to stderr.
func New() Logger {
	return newZeroLogger(os.Stderr, false)
}

// NewWithOutput creates a logger with the specified output. Color is
// disabled so the output is stable for files and tests.
func NewWithOutput(w io.Writer) Logger {
	return newZeroLogger(w, true)
}

func newZeroLogger(w io.Writer, noColor bool) *zeroLogger {
	return &zeroLogger{
		logger:  zerolog.New(consoleWriter(w, noColor)).Level(LevelInfo.zerolog()).With().Timestamp().Logger(),
		noColor: noColor,
	}
}

func consoleWriter(w io.Writer, noColor bool) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    noColor,
		TimeFormat: time.RFC3339,
	}
}

func (l *zeroLogger) current() zerolog.Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.logger
}

func (l *zeroLogger) log(event *zerolog.Event, msg string, args ...interface{}) {
	if event == nil {
		return
	}
	if len(args) > 0 {
		event.Msgf(msg, args...)
		return
	}
	event.Msg(msg)
}

func (l *zeroLogger) Debug(msg string, args ...interface{}) {
	zl := l.current()
	l.log(zl.Debug(), msg, args...)
}

func (l *zeroLogger) Info(msg string, args ...interface{}) {
	zl := l.current()
	l.log(zl.Info(), msg, args...)
}

func (l *zeroLogger) Warn(msg string, args ...interface{}) {
	zl := l.current()
	l.log(zl.Warn(), msg, args...)
}

func (l *zeroLogger) Error(msg string, args ...interface{}) {
	zl := l.current()
	l.log(zl.Error(), msg, args...)
}

func (l *zeroLogger) WithField(key string, value interface{}) Logger {
	return &zeroLogger{
		logger:  l.current().With().Interface(key, value).Logger(),
		noColor: l.noColor,
	}
}

func (l *zeroLogger) WithFields(fields map[string]interface{}) Logger {
	return &zeroLogger{
		logger:  l.current().With().Fields(fields).Logger(),
		noColor: l.noColor,
	}
}

func (l *zeroLogger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger = l.logger.Level(level.zerolog())
}

func (l *zeroLogger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger = l.logger.Output(consoleWriter(w, l.noColor))
}

// NopLogger is a logger that discards all output.
// Useful for testing or when logging should be disabled.
type NopLogger struct{}

func (NopLogger) Debug(msg string, args ...interface{})             {}
func (NopLogger) Info(msg string, args ...interface{})              {}
func (NopLogger) Warn(msg string, args ...interface{})              {}
func (NopLogger) Error(msg string, args ...interface{})             {}
func (n NopLogger) WithField(key string, value interface{}) Logger  { return n }
func (n NopLogger) WithFields(fields map[string]interface{}) Logger { return n }
func (NopLogger) SetLevel(level Level)                              {}
func (NopLogger) SetOutput(w io.Writer)                             {}
