// Package errors defines the scanning core's error taxonomy.
//
// Rust's prtip-core used a single enum (Network/Parse/Privilege/Config/
// Storage/Detection/Timeout/Serialization); Go has no sum type, so each kind
// is a sentinel that the concrete error wraps, and callers use errors.Is
// against the sentinel rather than a type switch.
package errors

import (
	"errors"
	"fmt"
)

// Kind identifies the category of a scan error.
type Kind string

const (
	KindNetwork       Kind = "network"
	KindParse         Kind = "parse"
	KindPrivilege     Kind = "privilege"
	KindConfig        Kind = "config"
	KindStorage       Kind = "storage"
	KindDetection     Kind = "detection"
	KindTimeout       Kind = "timeout"
	KindSerialization Kind = "serialization"
)

// Sentinels for errors.Is checks against a Kind without inspecting *Error directly.
var (
	ErrNetwork       = errors.New(string(KindNetwork))
	ErrParse         = errors.New(string(KindParse))
	ErrPrivilege     = errors.New(string(KindPrivilege))
	ErrConfig        = errors.New(string(KindConfig))
	ErrStorage       = errors.New(string(KindStorage))
	ErrDetection     = errors.New(string(KindDetection))
	ErrTimeout       = errors.New(string(KindTimeout))
	ErrSerialization = errors.New(string(KindSerialization))
)

func sentinelFor(k Kind) error {
	switch k {
	case KindNetwork:
		return ErrNetwork
	case KindParse:
		return ErrParse
	case KindPrivilege:
		return ErrPrivilege
	case KindConfig:
		return ErrConfig
	case KindStorage:
		return ErrStorage
	case KindDetection:
		return ErrDetection
	case KindTimeout:
		return ErrTimeout
	case KindSerialization:
		return ErrSerialization
	default:
		return errors.New(string(k))
	}
}

// Error is a scan-core error: a kind, an optional target context, and an
// optional wrapped cause. Target context lets a caller attribute a
// per-target failure without parsing the message string.
type Error struct {
	Kind   Kind
	Target string
	Msg    string
	Cause  error
}

func (e *Error) Error() string {
	if e.Target != "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s (target=%s): %v", e.Kind, e.Msg, e.Target, e.Cause)
		}
		return fmt.Sprintf("%s: %s (target=%s)", e.Kind, e.Msg, e.Target)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error's Kind sentinel, so
// `errors.Is(err, errors.ErrTimeout)` works without a type assertion.
func (e *Error) Is(target error) bool {
	return target == sentinelFor(e.Kind)
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

func WithTarget(kind Kind, msg, target string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Target: target, Cause: cause}
}

// UserMessage renders a plain-language message suitable for terminal output:
// no stack traces, no Go type names, just kind + text. Structured detail
// belongs in the event log, not here.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Target != "" {
			return fmt.Sprintf("%s: %s (%s)", humanKind(e.Kind), e.Msg, e.Target)
		}
		return fmt.Sprintf("%s: %s", humanKind(e.Kind), e.Msg)
	}
	return err.Error()
}

func humanKind(k Kind) string {
	switch k {
	case KindNetwork:
		return "network error"
	case KindParse:
		return "parse error"
	case KindPrivilege:
		return "permission error"
	case KindConfig:
		return "configuration error"
	case KindStorage:
		return "storage error"
	case KindDetection:
		return "detection error"
	case KindTimeout:
		return "timeout"
	case KindSerialization:
		return "serialization error"
	default:
		return string(k)
	}
}
