package models

import (
	"errors"
	"fmt"
	"time"
)

// Error codes carried by SyncError.
const (
	ErrCodeAuth      = "AUTH_ERROR"
	ErrCodeCrypto    = "CRYPTO_ERROR"
	ErrCodeIntegrity = "INTEGRITY_ERROR"
	ErrCodeNetwork   = "NETWORK_ERROR"
	ErrCodeQuota     = "QUOTA_EXCEEDED"
	ErrCodeNotFound  = "NOT_FOUND"
	ErrCodeState     = "STATE_ERROR"
)

// Sentinel errors
var (
	ErrKDFUnavailable       = errors.New("key derivation unavailable")
	ErrInvalidSalt          = errors.New("invalid salt")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrCredentialExpired    = errors.New("stored credential expired")
	ErrInvalidEnvelope      = errors.New("invalid credential envelope")
	ErrSyncInProgress       = errors.New("sync already in progress")
	ErrNotMergeable         = errors.New("payloads cannot be merged")
	ErrManualResolution     = errors.New("manual resolution required")
	ErrVaultLocked          = errors.New("vault is locked")
	ErrInvalidConfig        = errors.New("invalid configuration")
)

// ProviderErrorKind classifies cloud provider failures.
type ProviderErrorKind string

const (
	ProviderAuthExpired   ProviderErrorKind = "auth_expired"
	ProviderNetworkError  ProviderErrorKind = "network_error"
	ProviderQuotaExceeded ProviderErrorKind = "quota_exceeded"
	ProviderNotFound      ProviderErrorKind = "not_found"
	ProviderGeneric       ProviderErrorKind = "generic"
)

// ProviderError maps a provider-native failure into the shared taxonomy.
type ProviderError struct {
	Kind       ProviderErrorKind
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s [%s] HTTP %d: %s", e.Provider, e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %s [%s]: %s", e.Provider, e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is transient.
func (e *ProviderError) Retryable() bool {
	return e.Kind == ProviderNetworkError
}

// ProviderErrorKindOf extracts the taxonomy kind from an error chain.
// Non-provider errors classify as Generic.
func ProviderErrorKindOf(err error) ProviderErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ProviderGeneric
}

// SyncError tags a sync failure with the phase that produced it and an
// error code from the taxonomy above.
type SyncError struct {
	Code    string
	Phase   string
	VaultID string
	Err     error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s [%s]: vault %s: %v", e.Phase, e.Code, e.VaultID, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// IntegrityError represents a checksum mismatch after decryption.
// It is always fatal to the operation that produced it.
type IntegrityError struct {
	VaultID  string
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed for vault %s: expected %s, got %s",
		e.VaultID, e.Expected, e.Actual)
}

// TooManyAttemptsError reports an active unlock lockout.
type TooManyAttemptsError struct {
	VaultID    string
	RetryAfter time.Duration
}

func (e *TooManyAttemptsError) Error() string {
	return fmt.Sprintf("too many unlock attempts for vault %s: retry in %s",
		e.VaultID, e.RetryAfter.Round(time.Second))
}
