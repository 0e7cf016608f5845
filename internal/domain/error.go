package domain

import (
	"context"
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeInvalidArgument    ErrorCode = "INVALID_ARGUMENT"
	CodeCatalogNotFound    ErrorCode = "CATALOG_NOT_FOUND"
	CodeIndexCorruption    ErrorCode = "INDEX_CORRUPTION"
	CodeEmbeddingProvider  ErrorCode = "EMBEDDING_PROVIDER"
	CodePlanning           ErrorCode = "PLANNING"
	CodeSchemaValidation   ErrorCode = "SCHEMA_VALIDATION"
	CodeNoTools            ErrorCode = "NO_TOOLS"
	CodeEndpointDerivation ErrorCode = "ENDPOINT_DERIVATION"
	CodeToolCall           ErrorCode = "TOOL_CALL"
	CodeUnavailable        ErrorCode = "UNAVAILABLE"
	CodeInternal           ErrorCode = "INTERNAL"
	CodeCanceled           ErrorCode = "CANCELED"
)

var (
	ErrCatalogNotFound    = errors.New("catalog not found")
	ErrIndexCorruption    = errors.New("vector index corrupt")
	ErrEmbeddingProvider  = errors.New("embedding provider failed")
	ErrPlanning           = errors.New("argument planning failed")
	ErrSchemaValidation   = errors.New("arguments failed schema validation")
	ErrNoToolsAvailable   = errors.New("no tools available")
	ErrEndpointDerivation = errors.New("cannot derive tool server endpoint")
	ErrToolCallFailed     = errors.New("tool call failed")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrStoreClosed        = errors.New("vector store is closed")
)

var codeSentinels = map[ErrorCode]error{
	CodeCatalogNotFound:    ErrCatalogNotFound,
	CodeIndexCorruption:    ErrIndexCorruption,
	CodeEmbeddingProvider:  ErrEmbeddingProvider,
	CodePlanning:           ErrPlanning,
	CodeSchemaValidation:   ErrSchemaValidation,
	CodeNoTools:            ErrNoToolsAvailable,
	CodeEndpointDerivation: ErrEndpointDerivation,
	CodeToolCall:           ErrToolCallFailed,
	CodeInvalidArgument:    ErrInvalidRequest,
}

type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
	Meta    map[string]string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Op == "" {
		if msg == "" {
			return string(e.Code)
		}
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	if msg == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, msg)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches the sentinel registered for the error's code, so callers can
// test errors.Is(err, ErrSchemaValidation) without unwrapping.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	sentinel, ok := codeSentinels[e.Code]
	return ok && sentinel == target
}

func E(code ErrorCode, op, msg string, cause error) *Error {
	if msg == "" && cause != nil {
		msg = cause.Error()
	}
	return &Error{
		Code:    code,
		Op:      op,
		Message: msg,
		Cause:   cause,
	}
}

func Wrap(code ErrorCode, op string, err error) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		if existing.Op != "" || op == "" {
			return existing
		}
		return &Error{
			Code:    existing.Code,
			Op:      op,
			Message: existing.Message,
			Cause:   existing.Cause,
			Meta:    existing.Meta,
		}
	}
	return E(code, op, "", err)
}

func CodeFrom(err error) (ErrorCode, bool) {
	if err == nil {
		return "", false
	}
	var domainErr *Error
	if errors.As(err, &domainErr) && domainErr.Code != "" {
		return domainErr.Code, true
	}
	switch {
	case errors.Is(err, ErrCatalogNotFound):
		return CodeCatalogNotFound, true
	case errors.Is(err, ErrEmbeddingProvider):
		return CodeEmbeddingProvider, true
	case errors.Is(err, ErrPlanning):
		return CodePlanning, true
	case errors.Is(err, ErrSchemaValidation):
		return CodeSchemaValidation, true
	case errors.Is(err, ErrNoToolsAvailable):
		return CodeNoTools, true
	case errors.Is(err, ErrEndpointDerivation):
		return CodeEndpointDerivation, true
	case errors.Is(err, ErrToolCallFailed):
		return CodeToolCall, true
	case errors.Is(err, ErrInvalidRequest):
		return CodeInvalidArgument, true
	case errors.Is(err, ErrStoreClosed):
		return CodeUnavailable, true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCanceled, true
	default:
		return "", false
	}
}
