package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	FederationErrorBadInput          = "FEDERATION_BAD_INPUT"
	FederationErrorNotFound          = "FEDERATION_NOT_FOUND"
	FederationErrorPermissionDenied  = "FEDERATION_PERMISSION_DENIED"
	FederationErrorKeysUnprovisioned = "FEDERATION_KEYS_UNPROVISIONED"
	FederationErrorResolutionFailed  = "FEDERATION_RESOLUTION_FAILED"
	FederationErrorDeliveryConflict  = "FEDERATION_DELIVERY_CONFLICT"
	FederationErrorInternal          = "FEDERATION_INTERNAL_ERROR"
)

type ErrorMapper func(err error) *goerrors.Error

func federationErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureFederationErrorEnvelope(richErr)
	}

	switch {
	case goerrors.Is(err, ErrStatusNotFound), goerrors.Is(err, ErrEventNotFound):
		return newFederationError(err.Error(), goerrors.CategoryNotFound, FederationErrorNotFound)
	case goerrors.Is(err, ErrOpenEventExists):
		return newFederationError(err.Error(), goerrors.CategoryConflict, FederationErrorDeliveryConflict)
	case goerrors.Is(err, ErrKeysUnprovisioned):
		return newFederationError(err.Error(), goerrors.CategoryOperation, FederationErrorKeysUnprovisioned)
	case goerrors.Is(err, ErrInvalidActivityType), goerrors.Is(err, ErrInvalidVisibility):
		return newFederationError(err.Error(), goerrors.CategoryBadInput, FederationErrorBadInput)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "forbidden"), strings.Contains(msg, "not permitted"):
		return newFederationError(err.Error(), goerrors.CategoryAuthz, FederationErrorPermissionDenied)
	case strings.Contains(msg, "not found"):
		return newFederationError(err.Error(), goerrors.CategoryNotFound, FederationErrorNotFound)
	case strings.Contains(msg, "resolve"), strings.Contains(msg, "directory"):
		return newFederationError(err.Error(), goerrors.CategoryOperation, FederationErrorResolutionFailed)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "malformed"):
		return newFederationError(err.Error(), goerrors.CategoryBadInput, FederationErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureFederationErrorEnvelope(mapped)
}

func newFederationError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureFederationErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureFederationErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = federationHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultFederationTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultFederationTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return FederationErrorBadInput
	case goerrors.CategoryNotFound:
		return FederationErrorNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return FederationErrorPermissionDenied
	case goerrors.CategoryConflict:
		return FederationErrorDeliveryConflict
	case goerrors.CategoryOperation:
		return FederationErrorResolutionFailed
	default:
		return FederationErrorInternal
	}
}

func federationHTTPStatus(category goerrors.Category) int {
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
	default:
		return http.StatusInternalServerError
	}
}
