package assessment

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an orchestrator failure.
type Kind int

const (
	// KindInternal is an unexpected failure, usually of the session store.
	KindInternal Kind = iota
	// KindClient is a request the caller must correct. It is never retried.
	KindClient
	// KindUpstream is a failed extraction, analysis or recommendation call.
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindClient:
		return "client"
	case KindUpstream:
		return "upstream"
	default:
		return "internal"
	}
}

// Stable error codes reported to callers.
const (
	CodeSessionNotFound   = "session_not_found"
	CodeAnswersRequired   = "answers_required"
	CodeResumeRequired    = "resume_required"
	CodeNoFile            = "no_file"
	CodeUnsupportedFormat = "unsupported_format"
	CodeFileTooLarge      = "file_too_large"
	CodeInvalidRequest    = "invalid_request"
	CodeExtractionFailed  = "extraction_failed"
	CodeAnalysisFailed    = "analysis_failed"
	CodeLookupFailed      = "lookup_failed"
	CodeStorageFailed     = "storage_failed"
	CodeTimeout           = "timeout"
)

// Error is the failure type returned by every Orchestrator operation.
type Error struct {
	Kind Kind
	Code string
	// Op names the failed operation, e.g. "upload_resume".
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsClient reports whether err is a client error.
func IsClient(err error) bool {
	return kindOf(err) == KindClient
}

// IsUpstream reports whether err is an upstream error.
func IsUpstream(err error) bool {
	return kindOf(err) == KindUpstream
}

// CodeOf returns the error code of err, or CodeStorageFailed for foreign errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeStorageFailed
}

func kindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func clientError(op, code, message string) *Error {
	return &Error{Kind: KindClient, Code: code, Op: op, Message: message}
}

// upstreamError classifies a collaborator failure; deadlines become CodeTimeout.
func upstreamError(op, code, message string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindUpstream, Code: CodeTimeout, Op: op, Message: message + ": timed out", Err: err}
	}
	return &Error{Kind: KindUpstream, Code: code, Op: op, Message: message, Err: err}
}

func internalError(op, message string, err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeStorageFailed, Op: op, Message: message, Err: err}
}
