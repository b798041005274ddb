package identity

import (
	"errors"
	"fmt"
)

// Reason classifies why a request's attributes could not be resolved to an
// identity. Resolution failures are caller-attributable: the transport layer
// maps them to 4xx responses rather than rate-limit rejections.
type Reason string

const (
	ReasonCredentialMissing Reason = "credential_missing"
	ReasonCredentialInvalid Reason = "credential_invalid"
	ReasonMissingAddress    Reason = "missing_address"
)

// ResolutionError reports a failed identity resolution with its reason.
type ResolutionError struct {
	Reason  Reason
	Message string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("identity resolution failed (%s): %s", e.Reason, e.Message)
}

// HasReason checks whether err is a ResolutionError with the given reason.
func HasReason(err error, reason Reason) bool {
	var re *ResolutionError
	return errors.As(err, &re) && re.Reason == reason
}

// IsCredentialMissing reports whether err means no credential was presented.
func IsCredentialMissing(err error) bool {
	return HasReason(err, ReasonCredentialMissing)
}

// IsCredentialInvalid reports whether err means the presented credential is
// not in the known-credential set.
func IsCredentialInvalid(err error) bool {
	return HasReason(err, ReasonCredentialInvalid)
}

// IsMissingAddress reports whether err means the request carried no usable
// source address.
func IsMissingAddress(err error) bool {
	return HasReason(err, ReasonMissingAddress)
}
