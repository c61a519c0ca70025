package logging

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger provides structured logging for the corpus pipeline.
type Logger struct {
	*slog.Logger
	level slog.Level
}

// LogLevel represents a logging verbosity level.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the log level.
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
		return "UNKNOWN"
	}
}

// ToSlogLevel converts LogLevel to slog.Level.
func (l LogLevel) ToSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LoggerConfig holds configuration for logger creation.
type LoggerConfig struct {
	// Level sets the minimum log level.
	Level LogLevel
	// Format specifies the output format ("json" or "text").
	Format string
	// Output specifies the output destination.
	Output io.Writer
	// IncludeSource adds source code information to log entries.
	IncludeSource bool
	// Component identifies the pipeline stage doing the logging, e.g.
	// "fetch", "convert", "timetable", "slugindex", "stops".
	Component string
}

// NewLogger creates a new structured logger with the given configuration.
func NewLogger(config LoggerConfig) *Logger {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Format == "" {
		config.Format = "text"
	}
	if config.Component == "" {
		config.Component = "corpus-builder"
	}

	opts := &slog.HandlerOptions{
		Level:     config.Level.ToSlogLevel(),
		AddSource: config.IncludeSource,
	}

	var handler slog.Handler
	switch config.Format {
	case "json":
		handler = slog.NewJSONHandler(config.Output, opts)
	default:
		handler = slog.NewTextHandler(config.Output, opts)
	}

	logger := slog.New(handler).With("component", config.Component)

	return &Logger{Logger: logger, level: config.Level.ToSlogLevel()}
}

// NewDefaultLogger creates a logger with sensible defaults.
func NewDefaultLogger() *Logger {
	return NewLogger(LoggerConfig{Level: LevelInfo, Format: "text", Component: "corpus-builder"})
}

// WithFile returns a logger carrying the filename being processed.
func (l *Logger) WithFile(filename string) *Logger {
	return &Logger{l.With("file", filename), l.level}
}

// WithRegion returns a logger carrying the TNDS region being processed.
func (l *Logger) WithRegion(region string) *Logger {
	return &Logger{l.With("region", region), l.level}
}

// WithError returns a logger carrying error context.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{l.With("error", err.Error()), l.level}
}

// WithDuration returns a logger carrying operation timing.
func (l *Logger) WithDuration(operation string, duration time.Duration) *Logger {
	return &Logger{l.With("operation", operation, "duration_ms", duration.Milliseconds()), l.level}
}

// StageStart logs the start of a pipeline stage.
func (l *Logger) StageStart(stage string) {
	l.Info("stage starting", "stage", stage, "timestamp", time.Now().Format(time.RFC3339))
}

// StageComplete logs the completion of a pipeline stage.
func (l *Logger) StageComplete(stage string, duration time.Duration, documentsProcessed int) {
	l.Info("stage complete",
		"stage", stage,
		"duration_ms", duration.Milliseconds(),
		"documents_processed", documentsProcessed,
	)
}

// DocumentSkipped logs a document excluded by the freshness gate.
func (l *Logger) DocumentSkipped(filename, reason string) {
	l.Debug("document skipped", "file", filename, "reason", reason)
}

// DocumentFailed logs a per-document failure that does not abort the run.
func (l *Logger) DocumentFailed(filename string, err error) {
	l.Warn("document failed", "file", filename, "error", err.Error())
}

// IsLevelEnabled reports whether the given level would be emitted.
func (l *Logger) IsLevelEnabled(level LogLevel) bool {
	return l.level <= level.ToSlogLevel()
}

var defaultLogger = NewDefaultLogger()

// SetDefaultLogger sets the package-level default logger.
func SetDefaultLogger(logger *Logger) { defaultLogger = logger }

// GetDefaultLogger returns the package-level default logger.
func GetDefaultLogger() *Logger { return defaultLogger }

func Debug(msg string, args ...any) { defaultLogger.Debug(msg, args...) }
func Info(msg string, args ...any)  { defaultLogger.Info(msg, args...) }
func Warn(msg string, args ...any)  { defaultLogger.Warn(msg, args...) }
func Error(msg string, args ...any) { defaultLogger.Error(msg, args...) }
