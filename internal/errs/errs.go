// Package errs defines the failure taxonomy shared by every pipeline
// component. Components return *Error values; the orchestrator wraps
// them with stage context and the HTTP layer maps them onto the stable
// business codes in codes.go.
package errs

import (
	"errors"
	"fmt"
	"time"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindUnsupportedPlatform
	KindMalformedShare
	KindResolveUpstream
	KindValidation
	KindStorage
	KindTranscriptionTimeout
	KindTranscriptionFailure
	KindAnalysisFailure
	KindPublish
	KindInitialization
)

func (k Kind) String() string {
	switch k {
	case KindUnsupportedPlatform:
		return "unsupported_platform"
	case KindMalformedShare:
		return "malformed_share"
	case KindResolveUpstream:
		return "resolve_upstream"
	case KindValidation:
		return "validation"
	case KindStorage:
		return "storage"
	case KindTranscriptionTimeout:
		return "transcription_timeout"
	case KindTranscriptionFailure:
		return "transcription_failure"
	case KindAnalysisFailure:
		return "analysis_failure"
	case KindPublish:
		return "publish"
	case KindInitialization:
		return "initialization"
	default:
		return "unknown"
	}
}

// Error carries a kind, a user-safe message and the server-side cause.
// Stage and ElapsedMs are filled in by the orchestrator when a stage
// fails; upstream response bodies stay in Err and never reach Message.
type Error struct {
	Kind      Kind
	Message   string
	Stage     string
	ElapsedMs int64
	Err       error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Stage != "" {
		msg = fmt.Sprintf("%s (stage=%s elapsed_ms=%d)", msg, e.Stage, e.ElapsedMs)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// AtStage returns a copy annotated with the failing stage and the time
// spent in it. The kind and message pass through untouched.
func (e *Error) AtStage(stage string, elapsed time.Duration) *Error {
	cp := *e
	cp.Stage = stage
	cp.ElapsedMs = elapsed.Milliseconds()
	return &cp
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the taxonomy kind from any error chain. Errors that
// never passed through this package report KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// AsError returns the typed error inside err, or wraps err as
// KindUnknown so callers always have one to work with.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(KindUnknown, "internal error", err)
}
