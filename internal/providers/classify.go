package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/genvault/genvault/internal/models"
)

// classifyStatus maps an HTTP status into the provider error taxonomy.
func classifyStatus(status int) models.ProviderErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return models.ProviderAuthExpired
	case status == http.StatusNotFound:
		return models.ProviderNotFound
	case status == http.StatusTooManyRequests ||
		status == http.StatusRequestEntityTooLarge ||
		status == http.StatusInsufficientStorage:
		return models.ProviderQuotaExceeded
	case status >= 500:
		return models.ProviderNetworkError
	default:
		return models.ProviderGeneric
	}
}

// statusError builds a taxonomy error from an HTTP response status.
func statusError(provider string, status int, body string) error {
	return &models.ProviderError{
		Kind:       classifyStatus(status),
		Provider:   provider,
		StatusCode: status,
		Message:    body,
	}
}

// transportError wraps a failed request (DNS, dial, timeout) as a network
// error, except context cancellation which passes through untouched.
func transportError(provider string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &models.ProviderError{
		Kind:     models.ProviderNetworkError,
		Provider: provider,
		Message:  err.Error(),
		Err:      err,
	}
}
