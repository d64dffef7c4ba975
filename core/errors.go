package core

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	DispatchErrorBadInput         = "DISPATCH_BAD_INPUT"
	DispatchErrorRouteNotFound    = "DISPATCH_ROUTE_NOT_FOUND"
	DispatchErrorDeliveryNotFound = "DISPATCH_DELIVERY_NOT_FOUND"
	DispatchErrorWebhookNotFound  = "DISPATCH_WEBHOOK_NOT_FOUND"
	DispatchErrorSecurityRejected = "DISPATCH_SECURITY_REJECTED"
	DispatchErrorLoopSuppressed   = "DISPATCH_LOOP_SUPPRESSED"
	DispatchErrorDestination      = "DISPATCH_DESTINATION_FAILED"
	DispatchErrorTimeout          = "DISPATCH_DESTINATION_TIMEOUT"
	DispatchErrorTemplate         = "DISPATCH_TEMPLATE_INVALID"
	DispatchErrorInternal         = "DISPATCH_INTERNAL_ERROR"
)

func dispatchErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureDispatchErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "route") && strings.Contains(msg, "not found"):
		return newDispatchError(err.Error(), goerrors.CategoryNotFound, DispatchErrorRouteNotFound)
	case strings.Contains(msg, "delivery") && strings.Contains(msg, "not found"):
		return newDispatchError(err.Error(), goerrors.CategoryNotFound, DispatchErrorDeliveryNotFound)
	case strings.Contains(msg, "webhook") && strings.Contains(msg, "not found"):
		return newDispatchError(err.Error(), goerrors.CategoryNotFound, DispatchErrorWebhookNotFound)
	case strings.Contains(msg, "private address"), strings.Contains(msg, "blocked address"), strings.Contains(msg, "scheme"):
		return newDispatchError(err.Error(), goerrors.CategoryAuthz, DispatchErrorSecurityRejected)
	case strings.Contains(msg, "loop"), strings.Contains(msg, "suppressed"):
		return newDispatchError(err.Error(), goerrors.CategoryRateLimit, DispatchErrorLoopSuppressed)
	case strings.Contains(msg, "template"):
		return newDispatchError(err.Error(), goerrors.CategoryBadInput, DispatchErrorTemplate)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return newDispatchError(err.Error(), goerrors.CategoryBadInput, DispatchErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureDispatchErrorEnvelope(mapped)
}

func newDispatchError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureDispatchErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureDispatchErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = dispatchHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultDispatchTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultDispatchTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return DispatchErrorBadInput
	case goerrors.CategoryNotFound:
		return DispatchErrorRouteNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return DispatchErrorSecurityRejected
	case goerrors.CategoryRateLimit:
		return DispatchErrorLoopSuppressed
	case goerrors.CategoryExternal:
		return DispatchErrorDestination
	default:
		return DispatchErrorInternal
	}
}

func dispatchHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// IsRetryable classifies a delivery error. Configuration and validation
// problems never retry, security rejections are terminal, everything pointing
// at the remote side or the network gets another attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		switch richErr.Category {
		case goerrors.CategoryBadInput, goerrors.CategoryValidation,
			goerrors.CategoryAuth, goerrors.CategoryAuthz,
			goerrors.CategoryNotFound, goerrors.CategoryRateLimit:
			return false
		case goerrors.CategoryExternal, goerrors.CategoryOperation:
			return true
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return true
}

// IsSecurityRejection reports whether the error came from the outbound URL
// guard. These are terminal and logged on their own path.
func IsSecurityRejection(err error) bool {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == DispatchErrorSecurityRejected
	}
	return false
}
