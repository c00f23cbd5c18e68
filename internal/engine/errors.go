package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCode классифицирует причину неудачной генерации.
type ErrorCode string

const (
	CodeTimeout        ErrorCode = "TIMEOUT"
	CodeGatewayTimeout ErrorCode = "GATEWAY_TIMEOUT"
	CodeNetwork        ErrorCode = "NETWORK"
	CodeAuth           ErrorCode = "AUTH"
	CodeValidation     ErrorCode = "VALIDATION"
	CodeUnknown        ErrorCode = "UNKNOWN"
)

// GenerationError is the single user-visible failure of a generation attempt.
// Retryable tells the presentation layer whether to offer a retry action.
type GenerationError struct {
	Code      ErrorCode `json:"code"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrSuperseded marks a request that was cancelled because a newer Generate
// call replaced it, or because the controller was closed. Not a user-visible
// failure; no GenerationError is recorded for it.
var ErrSuperseded = errors.New("generation superseded")

// StatusError carries a non-2xx upstream response to the classifier.
// Detail is the server-provided detail string when the body had one.
type StatusError struct {
	Status int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("upstream status %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("upstream status %d", e.Status)
}

// FieldErrors — ошибки локальной валидации по полям формы. Возвращаются
// вызывающему напрямую, транспорт при этом не задействуется.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for name := range fe {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	return "invalid input: " + strings.Join(fields, ", ")
}
