// Package signererr defines the typed failures surfaced by the credential
// authorization flow. Every failure carries a stable Code, a user-safe
// description and the HTTP status the CSC surface answers with.
package signererr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeSessionNotFound          Code = "session_not_found"
	CodeUnexpectedOperationType  Code = "unexpected_operation_type"
	CodeVerifierConnectionFailed Code = "failed_connection_to_verifier"
	CodeVerifierMissingData      Code = "missing_data_in_response_verifier"
	CodeVerifierClientMismatch   Code = "verifier_client_id_mismatch"
	CodeVerifierTimeout          Code = "connection_verifier_timed_out"

	CodeSubmissionLinkage Code = "presentation_submission_missing_data"
	CodeVPTokenMalformed  Code = "vp_token_malformed"
	CodeStatusInvalid     Code = "status_vptoken_invalid"

	CodeUntrustedIssuer    Code = "untrusted_issuer"
	CodeRevokedCertificate Code = "revoked_certificate"
	CodeCertificateInvalid Code = "certificate_issuerauth_invalid"
	CodeSignatureInvalid   Code = "signature_issuerauth_invalid"
	CodeIntegrityMismatch  Code = "integrity_vptoken_not_verified"
	CodeDocTypeMismatch    Code = "doctype_mso_different_from_documents"
	CodeValidityWindow     Code = "validity_info_vptoken_invalid"

	CodeIncompleteClaims Code = "vptoken_missing_requested_values"
	CodeNotEligible      Code = "user_not_over_18"
	CodeAccessDenied     Code = "access_credential_denied"
	CodeUserNotFound     Code = "user_not_found"

	CodeSADExpired Code = "expired_sad"
	CodeSADInvalid Code = "invalid_sad"

	CodeUnexpected Code = "unexpected_error"
)

type descriptor struct {
	status      int
	description string
}

var descriptors = map[Code]descriptor{
	CodeSessionNotFound:          {http.StatusBadRequest, "No presentation session is open for this request. Request a new link."},
	CodeUnexpectedOperationType:  {http.StatusInternalServerError, "The operation type is not supported."},
	CodeVerifierConnectionFailed: {http.StatusNotFound, "The service could not connect to the Verifier."},
	CodeVerifierMissingData:      {http.StatusInternalServerError, "The Verifier response is missing required data."},
	CodeVerifierClientMismatch:   {http.StatusInternalServerError, "The Verifier answered with an unexpected client id."},
	CodeVerifierTimeout:          {http.StatusGatewayTimeout, "The Verifier did not receive a presentation in time."},

	CodeSubmissionLinkage: {432, "The presentation submission is missing or does not match the request."},
	CodeVPTokenMalformed:  {432, "The VP token could not be decoded."},
	CodeStatusInvalid:     {433, "The VP token status is not successful."},

	CodeUntrustedIssuer:    {434, "The credential issuer is not trusted."},
	CodeRevokedCertificate: {434, "The issuer certificate has been revoked."},
	CodeCertificateInvalid: {434, "The issuer certificate is not valid."},
	CodeSignatureInvalid:   {435, "The issuer signature of the VP token is not valid."},
	CodeIntegrityMismatch:  {437, "The VP token integrity could not be verified."},
	CodeDocTypeMismatch:    {436, "The document type does not match the signed document type."},
	CodeValidityWindow:     {438, "The VP token is outside its validity period."},

	CodeIncompleteClaims: {440, "The VP token is missing requested values."},
	CodeNotEligible:      {439, "The user is not over 18."},
	CodeAccessDenied:     {http.StatusUnauthorized, "Access to the credential was denied."},
	CodeUserNotFound:     {http.StatusInternalServerError, "The user was not found."},

	CodeSADExpired: {http.StatusBadRequest, "The SAD has expired."},
	CodeSADInvalid: {http.StatusBadRequest, "The SAD is not valid."},

	CodeUnexpected: {http.StatusInternalServerError, "An unexpected error occurred."},
}

// Description returns the user-safe message for the code.
func (c Code) Description() string {
	if d, ok := descriptors[c]; ok {
		return d.description
	}
	return descriptors[CodeUnexpected].description
}

// HTTPStatus returns the status the CSC surface answers with.
func (c Code) HTTPStatus() int {
	if d, ok := descriptors[c]; ok {
		return d.status
	}
	return http.StatusInternalServerError
}

// Error is a coded failure. Message is for logs and may carry internal detail;
// callers facing users should render Code.Description instead.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code, so sentinels built with New work
// with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Formatted renders the code the way the signing API reports it.
func (e *Error) Formatted() string {
	return fmt.Sprintf("[ %s ] %s", e.Code, e.Code.Description())
}

func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode reports whether any error in err's chain is an *Error with code.
func HasCode(err error, code Code) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	if e.Code == code {
		return true
	}
	return HasCode(e.Err, code)
}

// CodeOf returns the outermost code in err's chain, or CodeUnexpected.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnexpected
}
