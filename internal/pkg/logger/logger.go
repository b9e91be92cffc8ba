// Package logger wraps logrus with lumberjack-backed file rotation and a
// small set of structured scan-domain log helpers, grounded on
// internal/pkg/logger/logger.go's LoggerManager/InitLogger/setLogFormatter/
// setLogOutput shape (unchanged: level parsing, json/text formatters,
// stdout/stderr/file outputs with rotation).
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"prtip/internal/config"
)

// LoggerManager owns one logrus instance plus the config it was built from,
// so runtime config reloads (internal/config's fsnotify watcher) can be
// applied without rebuilding every call site's reference.
type LoggerManager struct {
	logger *logrus.Logger
	config *config.LogConfig
}

// LoggerInstance is the process-wide logger, set by InitLogger.
var LoggerInstance *LoggerManager

// InitLogger builds a LoggerManager from cfg and installs it as the
// package-wide instance used by the Debug/Info/Warn/Error/Fatal helpers.
func InitLogger(cfg *config.LogConfig) (*LoggerManager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("log config cannot be nil")
	}

	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
		logger.Warnf("invalid log level %q, defaulting to info", cfg.Level)
	}
	logger.SetLevel(level)

	if err := setLogFormatter(logger, cfg); err != nil {
		return nil, fmt.Errorf("set log formatter: %w", err)
	}
	if err := setLogOutput(logger, cfg); err != nil {
		return nil, fmt.Errorf("set log output: %w", err)
	}
	logger.SetReportCaller(cfg.Caller)

	lm := &LoggerManager{logger: logger, config: cfg}
	LoggerInstance = lm
	return lm, nil
}

func setLogFormatter(logger *logrus.Logger, cfg *config.LogConfig) error {
	const timestampFormat = "2006-01-02 15:04:05.000"

	switch strings.ToLower(cfg.Format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: timestampFormat,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
				logrus.FieldKeyFunc:  "function",
				logrus.FieldKeyFile:  "file",
			},
		})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: timestampFormat,
			FullTimestamp:   true,
		})
	default:
		return fmt.Errorf("unsupported log format: %s", cfg.Format)
	}
	return nil
}

func setLogOutput(logger *logrus.Logger, cfg *config.LogConfig) error {
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		logger.SetOutput(os.Stdout)
	case "stderr":
		logger.SetOutput(os.Stderr)
	case "file":
		if cfg.FilePath == "" {
			return fmt.Errorf("file path is required when output is file")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		lj := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		if cfg.Level == "debug" {
			logger.SetOutput(io.MultiWriter(os.Stdout, lj))
		} else {
			logger.SetOutput(lj)
		}
	default:
		return fmt.Errorf("unsupported log output: %s", cfg.Output)
	}
	return nil
}

// GetLogger returns the underlying logrus instance for callers that need
// direct access (e.g. cobra command setup).
func (lm *LoggerManager) GetLogger() *logrus.Logger { return lm.logger }

// GetConfig returns the configuration this manager was built from.
func (lm *LoggerManager) GetConfig() *config.LogConfig { return lm.config }

// UpdateConfig applies a changed LogConfig at runtime, reconfiguring only
// the aspects (level, format, output, caller reporting) that changed.
func (lm *LoggerManager) UpdateConfig(newCfg *config.LogConfig) error {
	if newCfg == nil {
		return fmt.Errorf("new config cannot be nil")
	}
	if newCfg.Level != lm.config.Level {
		level, err := logrus.ParseLevel(newCfg.Level)
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		lm.logger.SetLevel(level)
	}
	if newCfg.Format != lm.config.Format {
		if err := setLogFormatter(lm.logger, newCfg); err != nil {
			return fmt.Errorf("update log formatter: %w", err)
		}
	}
	if newCfg.Output != lm.config.Output || newCfg.FilePath != lm.config.FilePath {
		if err := setLogOutput(lm.logger, newCfg); err != nil {
			return fmt.Errorf("update log output: %w", err)
		}
	}
	if newCfg.Caller != lm.config.Caller {
		lm.logger.SetReportCaller(newCfg.Caller)
	}
	lm.config = newCfg
	return nil
}

func Debug(args ...interface{}) {
	if LoggerInstance != nil {
		LoggerInstance.logger.Debug(args...)
	}
}

func Debugf(format string, args ...interface{}) {
	if LoggerInstance != nil {
		LoggerInstance.logger.Debugf(format, args...)
	}
}

func Info(args ...interface{}) {
	if LoggerInstance != nil {
		LoggerInstance.logger.Info(args...)
	}
}

func Infof(format string, args ...interface{}) {
	if LoggerInstance != nil {
		LoggerInstance.logger.Infof(format, args...)
	}
}

func Warn(args ...interface{}) {
	if LoggerInstance != nil {
		LoggerInstance.logger.Warn(args...)
	}
}

func Warnf(format string, args ...interface{}) {
	if LoggerInstance != nil {
		LoggerInstance.logger.Warnf(format, args...)
	}
}

func Error(args ...interface{}) {
	if LoggerInstance != nil {
		LoggerInstance.logger.Error(args...)
	}
}

func Errorf(format string, args ...interface{}) {
	if LoggerInstance != nil {
		LoggerInstance.logger.Errorf(format, args...)
	}
}

func Fatal(args ...interface{}) {
	if LoggerInstance != nil {
		LoggerInstance.logger.Fatal(args...)
	}
}

func Fatalf(format string, args ...interface{}) {
	if LoggerInstance != nil {
		LoggerInstance.logger.Fatalf(format, args...)
	}
}

func WithField(key string, value interface{}) *logrus.Entry {
	if LoggerInstance != nil {
		return LoggerInstance.logger.WithField(key, value)
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

func WithFields(fields logrus.Fields) *logrus.Entry {
	if LoggerInstance != nil {
		return LoggerInstance.logger.WithFields(fields)
	}
	return logrus.NewEntry(logrus.StandardLogger())
}
