package errors

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Common error types that can be used across the application
var (
	ErrNotFound           = new(ErrCodeNotFound, "resource not found")
	ErrValidation         = new(ErrCodeValidation, "validation error")
	ErrSerialization      = new(ErrCodeSerialization, "serialization error")
	ErrCertificateExpired = new(ErrCodeCertificateExpired, "signing certificate expired")
	ErrCertificateInvalid = new(ErrCodeCertificateInvalid, "signing certificate invalid")
	ErrSigning            = new(ErrCodeSigning, "signing error")
	ErrTransport          = new(ErrCodeTransport, "authority unreachable")
	ErrAuthorityRejection = new(ErrCodeAuthorityRejection, "authority rejected the document")
	ErrEncoding           = new(ErrCodeEncoding, "encoding error")
	ErrPersistence        = new(ErrCodePersistence, "persistence error")
	ErrHTTPClient         = new(ErrCodeHTTPClient, "http client error")
	ErrSystem             = new(ErrCodeSystemError, "system error")
	// maps errors to http status codes
	statusCodeMap = map[error]int{
		ErrNotFound:           http.StatusNotFound,
		ErrValidation:         http.StatusBadRequest,
		ErrSerialization:      http.StatusInternalServerError,
		ErrCertificateExpired: http.StatusUnprocessableEntity,
		ErrCertificateInvalid: http.StatusUnprocessableEntity,
		ErrSigning:            http.StatusInternalServerError,
		ErrTransport:          http.StatusBadGateway,
		ErrAuthorityRejection: http.StatusUnprocessableEntity,
		ErrEncoding:           http.StatusInternalServerError,
		ErrPersistence:        http.StatusInternalServerError,
		ErrHTTPClient:         http.StatusInternalServerError,
		ErrSystem:             http.StatusInternalServerError,
	}
)

const (
	ErrCodeNotFound           = "not_found"
	ErrCodeValidation         = "validation_error"
	ErrCodeSerialization      = "serialization_error"
	ErrCodeCertificateExpired = "certificate_expired"
	ErrCodeCertificateInvalid = "certificate_invalid"
	ErrCodeSigning            = "signing_error"
	ErrCodeTransport          = "transport_error"
	ErrCodeAuthorityRejection = "authority_rejection"
	ErrCodeEncoding           = "encoding_error"
	ErrCodePersistence        = "persistence_error"
	ErrCodeHTTPClient         = "http_client_error"
	ErrCodeSystemError        = "system_error"
)

// InternalError represents a domain error
type InternalError struct {
	Code    string // Machine-readable error code
	Message string // Human-readable error message
	Op      string // Logical operation name
	Err     error  // Underlying error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.DisplayError()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
}

func (e *InternalError) DisplayError() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Is implements error matching for wrapped errors
func (e *InternalError) Is(target error) bool {
	if target == nil {
		return false
	}

	t, ok := target.(*InternalError)
	if !ok {
		return errors.Is(e.Err, target)
	}

	return e.Code == t.Code
}

// New creates a new InternalError with a custom code and message
func New(code string, message string) *InternalError {
	return &InternalError{
		Code:    code,
		Message: message,
	}
}

// new creates a new InternalError
func new(code string, message string) *InternalError {
	return &InternalError{
		Code:    code,
		Message: message,
	}
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsCertificateExpired checks if an error is a certificate expiry error
func IsCertificateExpired(err error) bool {
	return errors.Is(err, ErrCertificateExpired)
}

// IsCertificateInvalid checks if an error is a certificate parse/auth error
func IsCertificateInvalid(err error) bool {
	return errors.Is(err, ErrCertificateInvalid)
}

// IsTransport checks if an error is a transport-level failure.
// This is the only error kind that switches an emission to contingency.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsAuthorityRejection checks if an error is an authority rejection
func IsAuthorityRejection(err error) bool {
	return errors.Is(err, ErrAuthorityRejection)
}

// IsEncoding checks if an error is an optical encoding error
func IsEncoding(err error) bool {
	return errors.Is(err, ErrEncoding)
}

// IsPersistence checks if an error is a durable storage failure
func IsPersistence(err error) bool {
	return errors.Is(err, ErrPersistence)
}

// IsHTTPClient checks if an error is an http client error
func IsHTTPClient(err error) bool {
	return errors.Is(err, ErrHTTPClient)
}

func HTTPStatusFromErr(err error) int {
	for e, status := range statusCodeMap {
		if errors.Is(err, e) {
			return status
		}
	}
	return http.StatusInternalServerError
}
