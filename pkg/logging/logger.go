package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Logger provides leveled logging for farmrunner components.
//
// Every logger writes human-readable lines to the console. When a log
// directory is configured, the same events are also appended as JSON lines to
// <dir>/<session-id>-farmrunner.log, shared by all components of the process.
type Logger struct {
	sessionID string
	component string
	zl        zerolog.Logger
	logPath   string
}

// Options configures the package-wide log sinks.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string

	// Dir enables file logging when non-empty.
	Dir string

	// Console receives human-readable output. Nil means stderr.
	Console io.Writer

	// NoColor disables ANSI colors on the console writer.
	NoColor bool
}

var (
	// Global session ID for the current process
	sessionID     string
	sessionIDOnce sync.Once

	mu      sync.Mutex
	level   = zerolog.InfoLevel
	console io.Writer
	noColor bool
	logFile *os.File
	logPath string
)

// getSessionID returns or creates the session ID for this process
func getSessionID() string {
	sessionIDOnce.Do(func() {
		sessionID = uuid.New().String()
	})
	return sessionID
}

// ParseLevel converts a level name into a zerolog level.
func ParseLevel(name string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", name)
	}
}

// Setup configures the sinks used by loggers created afterwards. It is safe
// to call more than once; a previously opened log file is closed.
//
// If the log file cannot be opened the console sink is still installed and
// the error is returned so callers can warn about it.
func Setup(opts Options) error {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()

	level = lvl
	console = opts.Console
	noColor = opts.NoColor

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
		logPath = ""
	}

	if opts.Dir == "" {
		return nil
	}

	if err := os.MkdirAll(opts.Dir, 0750); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	path := filepath.Join(opts.Dir, fmt.Sprintf("%s-farmrunner.log", getSessionID()))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	logFile = file
	logPath = path
	return nil
}

// NewLogger creates a logger for a specific component using the sinks
// installed by Setup (console only if Setup was never called).
func NewLogger(component string) *Logger {
	mu.Lock()
	defer mu.Unlock()

	out := console
	if out == nil {
		out = os.Stderr
	}

	var w io.Writer = zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    noColor,
		TimeFormat: "2006-01-02 15:04:05.000",
	}
	if logFile != nil {
		w = zerolog.MultiLevelWriter(w, logFile)
	}

	zl := zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("component", component).
		Str("session", getSessionID()).
		Logger()

	return &Logger{
		sessionID: getSessionID(),
		component: component,
		zl:        zl,
		logPath:   logPath,
	}
}

// Debugf logs a debug-level message
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.zl.Debug().Msgf(format, v...)
}

// Infof logs an info-level message
func (l *Logger) Infof(format string, v ...interface{}) {
	l.zl.Info().Msgf(format, v...)
}

// Warnf logs a warning-level message
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.zl.Warn().Msgf(format, v...)
}

// Errorf logs an error-level message
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.zl.Error().Msgf(format, v...)
}

// Zerolog exposes the underlying structured logger for callers that want
// typed fields.
func (l *Logger) Zerolog() *zerolog.Logger {
	return &l.zl
}

// Component returns the component name
func (l *Logger) Component() string {
	return l.component
}

// SessionID returns the current session ID
func (l *Logger) SessionID() string {
	return l.sessionID
}

// LogPath returns the path to the log file, empty when file logging is off.
func (l *Logger) LogPath() string {
	return l.logPath
}

// Close closes the shared log file. Safe to call multiple times.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	logPath = ""
	return err
}

// GetSessionID returns the current global session ID
func GetSessionID() string {
	return getSessionID()
}
