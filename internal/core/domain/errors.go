package domain

import (
	"errors"
	"fmt"
)

// Domain Errors
//
// The error taxonomy the adapters translate to transport codes:
// validation -> 400, authorization -> 403, unavailable -> 503,
// storage -> 500. Not-found and conflict surface to the caller.
var (
	ErrNotFound    = errors.New("resource not found")
	ErrConflict    = errors.New("conflicting state")
	ErrValidation  = errors.New("validation failed")
	ErrUnavailable = errors.New("collaborator unavailable")
	ErrStorage     = errors.New("storage failure")
)

// AuthzError carries a machine-readable rejection reason alongside the
// sentinel, so handlers can echo it in the 403 body.
type AuthzError struct {
	Reason string
}

func (e *AuthzError) Error() string {
	return fmt.Sprintf("not authorized: %s", e.Reason)
}

// NewAuthzError builds an authorization failure with the given reason code.
func NewAuthzError(reason string) *AuthzError {
	return &AuthzError{Reason: reason}
}

// Rejection reasons surfaced through AuthzError.
const (
	ReasonUnknownDevice   = "unknown_device"
	ReasonRevoked         = "device_revoked"
	ReasonPendingApproval = "pending_approval"
	ReasonRejected        = "device_rejected"
	ReasonRateLimit       = "rate_limit_exceeded"
	ReasonMaintenance     = "maintenance_window"
	ReasonBadToken        = "invalid_token"
	ReasonExpiredSession  = "session_expired"
)

// IsAuthz reports whether err is an authorization failure and returns its reason.
func IsAuthz(err error) (string, bool) {
	var ae *AuthzError
	if errors.As(err, &ae) {
		return ae.Reason, true
	}
	return "", false
}

// Validationf wraps ErrValidation with a formatted detail message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
