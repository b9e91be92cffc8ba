// Package logger: structured log entry shapes and level-routing helpers,
// adapted from internal/pkg/logger/formatter.go's LogType/entry-struct
// scaffolding. The teacher's HTTP/gin access-log path (LogHTTPRequest,
// LogAccessRequest) and its business/audit-user entries don't apply to a
// CLI scanner with no HTTP surface, so those are replaced here with
// scan-domain entries (phase transitions, probe errors, privilege/raw-socket
// events) while keeping the teacher's field-tagging and level-routing style.
package logger

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

func FormatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05.000")
}

func NowFormatted() string {
	return FormatTimestamp(time.Now())
}

// LogType distinguishes the structured log streams this package emits.
type LogType string

const (
	ErrorLog  LogType = "error"
	SystemLog LogType = "system"
	DebugLog  LogType = "debug"
	AuditLog  LogType = "audit" // privilege escalation, raw-socket open, config reload
	ScanLog   LogType = "scan"  // per-target/per-phase scan progress
)

// ErrorLogEntry records a single error surfaced during a scan run.
type ErrorLogEntry struct {
	Timestamp   time.Time              `json:"timestamp"`
	Level       string                 `json:"level"`
	Error       string                 `json:"error"`
	Stage       string                 `json:"stage"` // e.g. "probe", "output", "config"
	Target      string                 `json:"target,omitempty"`
	ExtraFields map[string]interface{} `json:"extra_fields,omitempty"`
}

// SystemLogEntry records a component lifecycle event (startup, shutdown,
// capture backend selection, and similar).
type SystemLogEntry struct {
	Timestamp   time.Time              `json:"timestamp"`
	Component   string                 `json:"component"`
	Event       string                 `json:"event"`
	Message     string                 `json:"message"`
	Level       string                 `json:"level"`
	ExtraFields map[string]interface{} `json:"extra_fields,omitempty"`
}

// AuditLogEntry records a privileged or state-changing action: opening a
// raw socket, dropping privileges, reloading config.
type AuditLogEntry struct {
	Timestamp   time.Time              `json:"timestamp"`
	Action      string                 `json:"action"`
	Resource    string                 `json:"resource"`
	Result      string                 `json:"result"`
	ExtraFields map[string]interface{} `json:"extra_fields,omitempty"`
}

// ScanLogEntry records the progress of one scan run or target.
type ScanLogEntry struct {
	Timestamp   time.Time              `json:"timestamp"`
	ScanID      string                 `json:"scan_id"`
	Target      string                 `json:"target"`
	Status      string                 `json:"status"` // running, completed, failed
	Progress    int                    `json:"progress"`
	Result      string                 `json:"result"`
	Duration    int64                  `json:"duration"` // milliseconds
	ExtraFields map[string]interface{} `json:"extra_fields,omitempty"`
}

// LogError records an error encountered during a given stage, optionally
// against a specific target.
func LogError(err error, stage, target string, extraFields map[string]interface{}) {
	if LoggerInstance == nil || err == nil {
		return
	}

	entry := ErrorLogEntry{
		Level:  "error",
		Error:  err.Error(),
		Stage:  stage,
		Target: target,
	}

	fields := logrus.Fields{
		"type":   ErrorLog,
		"level":  entry.Level,
		"error":  entry.Error,
		"stage":  entry.Stage,
		"target": entry.Target,
	}
	for k, v := range extraFields {
		fields[k] = v
	}

	LoggerInstance.logger.WithFields(fields).Errorf("%s: %s", stage, err.Error())
}

// LogInfo records a general informational message.
func LogInfo(message string, extraFields map[string]interface{}) {
	if LoggerInstance == nil || message == "" {
		return
	}
	fields := logrus.Fields{"type": "info", "message": message}
	for k, v := range extraFields {
		fields[k] = v
	}
	LoggerInstance.logger.WithFields(fields).Info(message)
}

// LogWarn records a warning-level message.
func LogWarn(message string, extraFields map[string]interface{}) {
	if LoggerInstance == nil || message == "" {
		return
	}
	fields := logrus.Fields{"type": "warn", "message": message}
	for k, v := range extraFields {
		fields[k] = v
	}
	LoggerInstance.logger.WithFields(fields).Warn(message)
}

// LogSystemEvent records a component lifecycle event at the given level.
func LogSystemEvent(component, event, message string, level LogLevel, extraFields map[string]interface{}) {
	if LoggerInstance == nil {
		return
	}

	logrusLevel := toLogrusLevel(level)
	entry := SystemLogEntry{
		Component: component,
		Event:     event,
		Message:   message,
		Level:     logrusLevel.String(),
	}

	fields := logrus.Fields{
		"type":      SystemLog,
		"component": entry.Component,
		"event":     entry.Event,
		"message":   entry.Message,
		"level":     entry.Level,
	}
	for k, v := range extraFields {
		fields[k] = v
	}

	msg := fmt.Sprintf("%s: %s", component, event)
	switch logrusLevel {
	case logrus.DebugLevel:
		LoggerInstance.logger.WithFields(fields).Debug(msg)
	case logrus.WarnLevel:
		LoggerInstance.logger.WithFields(fields).Warn(msg)
	case logrus.ErrorLevel:
		LoggerInstance.logger.WithFields(fields).Error(msg)
	case logrus.FatalLevel:
		LoggerInstance.logger.WithFields(fields).Fatal(msg)
	default:
		LoggerInstance.logger.WithFields(fields).Info(msg)
	}
}

// LogAuditOperation records a privileged or state-changing action, such as
// opening a raw socket or reloading a config file.
func LogAuditOperation(action, resource, result string, extraFields map[string]interface{}) {
	if LoggerInstance == nil {
		return
	}

	entry := AuditLogEntry{Action: action, Resource: resource, Result: result}
	fields := logrus.Fields{
		"type":     AuditLog,
		"action":   entry.Action,
		"resource": entry.Resource,
		"result":   entry.Result,
	}
	for k, v := range extraFields {
		fields[k] = v
	}

	LoggerInstance.logger.WithFields(fields).Info(fmt.Sprintf("audit: %s on %s -> %s", action, resource, result))
}

// LogScanOperation records the progress of a scan run against a target.
func LogScanOperation(scanID, target, status string, progress int, result string, duration int64, extraFields map[string]interface{}) {
	if LoggerInstance == nil {
		return
	}

	entry := ScanLogEntry{
		ScanID:   scanID,
		Target:   target,
		Status:   status,
		Progress: progress,
		Result:   result,
		Duration: duration,
	}

	fields := logrus.Fields{
		"type":     ScanLog,
		"scan_id":  entry.ScanID,
		"target":   entry.Target,
		"status":   entry.Status,
		"progress": entry.Progress,
		"result":   entry.Result,
		"duration": entry.Duration,
	}
	for k, v := range extraFields {
		fields[k] = v
	}

	switch status {
	case "completed":
		LoggerInstance.logger.WithFields(fields).Info(fmt.Sprintf("scan completed: %s", target))
	case "failed":
		LoggerInstance.logger.WithFields(fields).Error(fmt.Sprintf("scan failed: %s", target))
	case "running":
		LoggerInstance.logger.WithFields(fields).Debug(fmt.Sprintf("scan running: %s (%d%%)", target, progress))
	default:
		LoggerInstance.logger.WithFields(fields).Info(fmt.Sprintf("scan %s: %s", status, target))
	}
}

// LogLevel wraps logrus.Level so callers outside this package don't need
// to import logrus directly.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

func toLogrusLevel(level LogLevel) logrus.Level {
	switch level {
	case DebugLevel:
		return logrus.DebugLevel
	case InfoLevel:
		return logrus.InfoLevel
	case WarnLevel:
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	case FatalLevel:
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}
