package services

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/matbaogit/WFAHub-sub000/config"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds the application logger from LOG_* settings.
// The returned closer flushes and closes the rotated file, if any.
func NewLogger(cfg config.LoggingConfig) (*logrus.Logger, io.Closer, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	logger.SetFormatter(newFormatter(cfg.Format))

	var (
		writers []io.Writer
		closer  io.Closer = nopCloser{}
	)

	if cfg.Output == "" || cfg.Output == "stdout" || cfg.Output == "both" {
		writers = append(writers, os.Stdout)
	}
	if cfg.Output == "file" || cfg.Output == "both" {
		rotated, err := newRotatingFile(cfg.FilePath, cfg)
		if err != nil {
			return nil, nil, err
		}
		writers = append(writers, rotated)
		closer = rotated
	}

	logger.SetOutput(io.MultiWriter(writers...))
	return logger, closer, nil
}

// NewDispatchLogger is a child logger for the dispatch engine that also writes to its own rotated file
func NewDispatchLogger(base *logrus.Logger, cfg config.LoggingConfig, path string) (*logrus.Logger, io.Closer, error) {
	logger := logrus.New()
	logger.SetLevel(base.GetLevel())
	logger.SetFormatter(newFormatter(cfg.Format))

	if path == "" {
		logger.SetOutput(base.Out)
		return logger, nopCloser{}, nil
	}

	rotated, err := newRotatingFile(path, cfg)
	if err != nil {
		return nil, nil, err
	}
	logger.SetOutput(io.MultiWriter(os.Stdout, rotated))
	return logger, rotated, nil
}

func newFormatter(format string) logrus.Formatter {
	if strings.EqualFold(format, "text") {
		return &logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339}
	}
	return &logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano}
}

func newRotatingFile(path string, cfg config.LoggingConfig) (*lumberjack.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// InitSentry configures error reporting. Without a DSN the client stays
// disabled and every capture call is a no-op.
func InitSentry(cfg config.SentryConfig, release string) error {
	if cfg.DSN == "" {
		return nil
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          release,
		TracesSampleRate: cfg.TracesSampleRate,
	})
}

// FlushSentry waits for buffered events before shutdown
func FlushSentry(timeout time.Duration) {
	sentry.Flush(timeout)
}

// LogError logs err with context and reports it to Sentry
func LogError(logger logrus.FieldLogger, errorType string, err error, context map[string]any) {
	entry := logger.WithFields(logrus.Fields{
		"error_type": errorType,
		"error":      err.Error(),
	})
	for k, v := range context {
		entry = entry.WithField(k, v)
	}
	entry.Error("error occurred")

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("error_type", errorType)
		for k, v := range context {
			scope.SetExtra(k, v)
		}
		sentry.CaptureException(err)
	})
}

// LogEvent logs a lifecycle event and leaves a Sentry breadcrumb
func LogEvent(logger logrus.FieldLogger, eventType string, data map[string]any) {
	entry := logger.WithField("event", eventType)
	for k, v := range data {
		entry = entry.WithField(k, v)
	}
	entry.Info("event occurred")

	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Type:      "info",
		Category:  eventType,
		Data:      data,
		Timestamp: time.Now(),
	})
}
