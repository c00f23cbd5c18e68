package engine

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
)

// Classify maps a failure cause to a GenerationError.
//
// Watchdog expiry surfaces as context.DeadlineExceeded; upstream HTTP failures
// as *StatusError; connectivity failures as *url.Error / net.Error. Everything
// else is UNKNOWN and retryable.
func Classify(err error) *GenerationError {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &GenerationError{
			Code:      CodeTimeout,
			Title:     "Generation timed out",
			Message:   "The request took too long and was aborted. Please try again.",
			Retryable: true,
		}
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return classifyStatus(statusErr)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return networkError(urlErr.Err.Error())
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return networkError(netErr.Error())
	}

	return &GenerationError{
		Code:      CodeUnknown,
		Title:     "Generation failed",
		Message:   detailOr(err.Error(), "Something went wrong. Please try again."),
		Retryable: true,
	}
}

func classifyStatus(err *StatusError) *GenerationError {
	switch err.Status {
	case http.StatusGatewayTimeout:
		return &GenerationError{
			Code:      CodeGatewayTimeout,
			Title:     "Service timed out",
			Message:   detailOr(err.Detail, "The generation service took too long to respond. Please try again."),
			Retryable: true,
		}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &GenerationError{
			Code:      CodeAuth,
			Title:     "Not authorized",
			Message:   detailOr(err.Detail, "You are not authorized to generate content. Please sign in again."),
			Retryable: false,
		}
	case http.StatusBadRequest:
		return &GenerationError{
			Code:      CodeValidation,
			Title:     "Invalid request",
			Message:   detailOr(err.Detail, "The generation request was rejected as invalid."),
			Retryable: false,
		}
	default:
		return &GenerationError{
			Code:      CodeUnknown,
			Title:     "Generation failed",
			Message:   detailOr(err.Detail, "Something went wrong. Please try again."),
			Retryable: true,
		}
	}
}

func networkError(detail string) *GenerationError {
	return &GenerationError{
		Code:      CodeNetwork,
		Title:     "Connection problem",
		Message:   detailOr(detail, "Could not reach the generation service. Check your connection and try again."),
		Retryable: true,
	}
}

func detailOr(detail, fallback string) string {
	if detail != "" {
		return detail
	}
	return fallback
}
