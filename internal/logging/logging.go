package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger is a wrapper around zerolog.Logger. Every With* method returns a
// child logger and leaves the receiver unchanged.
type Logger struct {
	logger zerolog.Logger
}

// Config holds logging configuration
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, file path
}

// NewLogger creates a new logger with the given configuration
func NewLogger(cfg Config) (*Logger, error) {
	var output io.Writer

	switch cfg.Output {
	case "", "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		output = file
	}

	logger := New(output, cfg.Level, cfg.Format == "console")
	log.Logger = logger.logger

	return logger, nil
}

// New builds a logger writing to w. Unknown levels fall back to info.
func New(w io.Writer, level string, console bool) *Logger {
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	return &Logger{logger: zerolog.New(w).Level(lvl).With().Timestamp().Logger()}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

// WithField adds a field to the logger
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{logger: l.logger.With().Interface(key, value).Logger()}
}

// WithFields adds multiple fields to the logger
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	logger := l.logger.With()
	for k, v := range fields {
		logger = logger.Interface(k, v)
	}
	return &Logger{logger: logger.Logger()}
}

// WithError adds an error to the logger
func (l *Logger) WithError(err error) *Logger {
	return &Logger{logger: l.logger.With().Err(err).Logger()}
}

// WithRequestID adds a request ID to the logger
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{logger: l.logger.With().Str("request_id", requestID).Logger()}
}

// WithVideoID adds a video ID to the logger
func (l *Logger) WithVideoID(videoID string) *Logger {
	return &Logger{logger: l.logger.With().Str("video_id", videoID).Logger()}
}

// WithUploadID adds an upload ID to the logger
func (l *Logger) WithUploadID(uploadID string) *Logger {
	return &Logger{logger: l.logger.With().Str("upload_id", uploadID).Logger()}
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) {
	l.logger.Debug().Msg(msg)
}

// Info logs an info message
func (l *Logger) Info(msg string) {
	l.logger.Info().Msg(msg)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.logger.Info().Msgf(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) {
	l.logger.Warn().Msg(msg)
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logger.Warn().Msgf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string) {
	l.logger.Error().Msg(msg)
}

// Fatalf logs a formatted fatal message and exits
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.logger.Fatal().Msgf(format, args...)
}

// HTTPRequest describes one served request
type HTTPRequest struct {
	Method   string
	Route    string
	Path     string
	ClientIP string
	Status   int
	Bytes    int
	Duration time.Duration
}

// LogHTTPRequest logs a served request. Server errors log at error level and
// client errors at warn.
func (l *Logger) LogHTTPRequest(r HTTPRequest) {
	evt := l.logger.Info()
	switch {
	case r.Status >= 500:
		evt = l.logger.Error()
	case r.Status >= 400:
		evt = l.logger.Warn()
	}

	evt.
		Str("method", r.Method).
		Str("route", r.Route).
		Str("path", r.Path).
		Str("client_ip", r.ClientIP).
		Int("status_code", r.Status).
		Int("bytes", r.Bytes).
		Dur("duration_ms", r.Duration).
		Msg("HTTP request")
}

// LogBackendCall logs a call to the video backend
func (l *Logger) LogBackendCall(operation string, statusCode int, duration time.Duration, err error) {
	evt := l.logger.Debug()
	if err != nil {
		evt = l.logger.Warn().Err(err)
	}

	evt.
		Str("operation", operation).
		Int("status_code", statusCode).
		Dur("duration_ms", duration).
		Msg("Backend call")
}

// LogUploadProgress logs upload progress at debug level
func (l *Logger) LogUploadProgress(uploadID string, percent int) {
	l.logger.Debug().
		Str("upload_id", uploadID).
		Int("percent", percent).
		Msg("Upload progress")
}

// LogStorageOperation logs a thumbnail store operation. Successes log at debug.
func (l *Logger) LogStorageOperation(operation, bucket, key string, size int64, duration time.Duration, err error) {
	evt := l.logger.Debug()
	if err != nil {
		evt = l.logger.Error().Err(err)
	}

	evt.
		Str("operation", operation).
		Str("bucket", bucket).
		Str("key", key).
		Int64("size_bytes", size).
		Dur("duration_ms", duration).
		Msg("Storage operation")
}
