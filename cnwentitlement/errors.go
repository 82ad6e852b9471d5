package cnwentitlement

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for license installation and validation.
var (
	ErrInvalidLicense        = errors.New("invalid license")
	ErrDuplicatedLicense     = errors.New("license already installed")
	ErrNotReadyForValidation = errors.New("license not ready for validation")
)

// ErrPendingLicenseDiscarded is returned when the active license is
// resubmitted while a different license is pending. The pending license is
// dropped. It matches ErrInvalidLicense.
var ErrPendingLicenseDiscarded = fmt.Errorf("%w: pending license discarded", ErrInvalidLicense)

// ErrLicenseSuperseded is returned by SetLicense when a concurrent install
// replaced the license while it was being validated. The newer license stays
// active and nothing is published or persisted for the older one.
var ErrLicenseSuperseded = errors.New("license superseded by a concurrent install")

// Sentinel errors for token decryption.
var (
	ErrDecryption       = errors.New("license decryption failed")
	ErrSignatureInvalid = errors.New("signature verification failed")
	ErrPublicKeyInvalid = errors.New("invalid public key")
)

// Sentinel errors for the cloud client.
var (
	ErrLicenseNotFound    = errors.New("license not found")
	ErrWorkspaceForbidden = errors.New("workspace not allowed to fetch license")
	ErrCloudNotConfigured = errors.New("cloud client is not configured")
)

// ErrStoreNotConfigured is returned by Restore when no license store is set.
var ErrStoreNotConfigured = errors.New("license store is not configured")

// ValidationError is returned when validation produces a blocking behavior.
// It matches ErrInvalidLicense with errors.Is.
type ValidationError struct {
	Behaviors []BehaviorResult
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Behaviors))
	for _, b := range e.Behaviors {
		names = append(names, fmt.Sprintf("%s(%s)", b.Behavior, b.Reason))
	}
	return fmt.Sprintf("%s: %s", ErrInvalidLicense, strings.Join(names, ", "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidLicense
}

// ServerError represents an error response from the license cloud.
// The server returns errors in the format: {"error": {"code": "...", "message": "..."}}.
type ServerError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d: [%s] %s", e.StatusCode, e.Code, e.Message)
}

// mapServerError converts a ServerError to a well-known sentinel error if possible.
// The returned error wraps both the sentinel error and the original ServerError
// so callers can use errors.Is() for sentinel checks and errors.As() for details.
func mapServerError(se *ServerError) error {
	var sentinel error
	switch se.Code {
	case "NOT_FOUND":
		sentinel = ErrLicenseNotFound
	case "FORBIDDEN":
		sentinel = ErrWorkspaceForbidden
	default:
		return se
	}
	return &mappedError{sentinel: sentinel, server: se}
}

// mappedError wraps a sentinel error with the original ServerError details.
type mappedError struct {
	sentinel error
	server   *ServerError
}

func (e *mappedError) Error() string {
	return e.sentinel.Error()
}

func (e *mappedError) Is(target error) bool {
	return target == e.sentinel
}

func (e *mappedError) As(target interface{}) bool {
	if t, ok := target.(**ServerError); ok {
		*t = e.server
		return true
	}
	return false
}

func (e *mappedError) Unwrap() error {
	return e.sentinel
}
