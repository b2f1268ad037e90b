package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genvault/genvault/internal/models"
)

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		status int
		want   models.ProviderErrorKind
	}{
		{http.StatusUnauthorized, models.ProviderAuthExpired},
		{http.StatusForbidden, models.ProviderAuthExpired},
		{http.StatusNotFound, models.ProviderNotFound},
		{http.StatusTooManyRequests, models.ProviderQuotaExceeded},
		{http.StatusRequestEntityTooLarge, models.ProviderQuotaExceeded},
		{http.StatusInsufficientStorage, models.ProviderQuotaExceeded},
		{http.StatusInternalServerError, models.ProviderNetworkError},
		{http.StatusBadGateway, models.ProviderNetworkError},
		{http.StatusServiceUnavailable, models.ProviderNetworkError},
		{http.StatusBadRequest, models.ProviderGeneric},
		{http.StatusConflict, models.ProviderGeneric},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, classifyStatus(tc.status), "status %d", tc.status)
	}
}

func TestStatusErrorRetryable(t *testing.T) {
	var provErr *models.ProviderError

	err := statusError("test", http.StatusBadGateway, "upstream down")
	require.ErrorAs(t, err, &provErr)
	assert.True(t, provErr.Retryable())
	assert.Equal(t, http.StatusBadGateway, provErr.StatusCode)

	err = statusError("test", http.StatusUnauthorized, "token expired")
	require.ErrorAs(t, err, &provErr)
	assert.False(t, provErr.Retryable())
}

func TestTransportErrorWrapsAsNetwork(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	err := transportError("test", cause)

	var provErr *models.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, models.ProviderNetworkError, provErr.Kind)
	assert.True(t, provErr.Retryable())
	assert.ErrorIs(t, err, cause)
}

func TestTransportErrorPassesThroughCancellation(t *testing.T) {
	err := transportError("test", context.Canceled)
	assert.ErrorIs(t, err, context.Canceled)

	var provErr *models.ProviderError
	assert.False(t, errors.As(err, &provErr))

	err = transportError("test", fmt.Errorf("request: %w", context.DeadlineExceeded))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, errors.As(err, &provErr))
}
