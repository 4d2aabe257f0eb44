package appstore

import (
	"errors"
	"fmt"
)

// ErrMalformedPayload is returned for input that is not a decodable JWS.
// It is never retried against another environment.
var ErrMalformedPayload = errors.New("malformed signed payload")

// VerificationStatus says why a well-formed payload was rejected.
type VerificationStatus string

const (
	StatusVerificationFailure  VerificationStatus = "verification_failure"
	StatusInvalidAppIdentifier VerificationStatus = "invalid_app_identifier"
	StatusInvalidEnvironment   VerificationStatus = "invalid_environment"
	StatusInvalidChainLength   VerificationStatus = "invalid_chain_length"
	StatusInvalidCertificate   VerificationStatus = "invalid_certificate"
)

// VerificationError reports a payload that failed verification in one
// environment. It may still verify in the other one.
type VerificationError struct {
	Status      VerificationStatus
	Environment Environment
	Err         error
}

func (e *VerificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s verification failed (%s): %v", e.Environment.Label(), e.Status, e.Err)
	}
	return fmt.Sprintf("%s verification failed (%s)", e.Environment.Label(), e.Status)
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

// IsVerificationError reports whether err is a *VerificationError.
func IsVerificationError(err error) bool {
	var ve *VerificationError
	return errors.As(err, &ve)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedPayload, fmt.Sprintf(format, args...))
}

// APIError is a non-2xx response from the App Store Server API.
type APIError struct {
	StatusCode   int
	ErrorCode    int64  `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

func (e *APIError) Error() string {
	if e.ErrorCode != 0 {
		return fmt.Sprintf("app store api: status %d, error %d: %s", e.StatusCode, e.ErrorCode, e.ErrorMessage)
	}
	return fmt.Sprintf("app store api: status %d", e.StatusCode)
}
