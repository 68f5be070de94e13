package signererr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIs(t *testing.T) {
	err := fmt.Errorf("outer: %w", Wrap(errors.New("boom"), CodeVerifierTimeout, "polling"))

	assert.True(t, errors.Is(err, New(CodeVerifierTimeout, "")))
	assert.False(t, errors.Is(err, New(CodeSessionNotFound, "")))
	assert.Equal(t, CodeVerifierTimeout, CodeOf(err))
	assert.Contains(t, err.Error(), "boom")
}

func TestHasCodeNested(t *testing.T) {
	inner := New(CodeRevokedCertificate, "serial 0a")
	outer := Wrap(inner, CodeCertificateInvalid, "trust")

	assert.True(t, HasCode(outer, CodeCertificateInvalid))
	assert.True(t, HasCode(outer, CodeRevokedCertificate))
	assert.False(t, HasCode(outer, CodeSignatureInvalid))
	assert.False(t, HasCode(errors.New("plain"), CodeUnexpected))
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, CodeUnexpected, CodeOf(errors.New("plain")))
}

func TestFormatted(t *testing.T) {
	tests := []struct {
		code   Code
		want   string
		status int
	}{
		{CodeNotEligible, "[ user_not_over_18 ] The user is not over 18.", 439},
		{CodeAccessDenied, "[ access_credential_denied ] Access to the credential was denied.", http.StatusUnauthorized},
		{CodeVerifierTimeout, "[ connection_verifier_timed_out ] The Verifier did not receive a presentation in time.", http.StatusGatewayTimeout},
		{Code("unknown"), "[ unknown ] An unexpected error occurred.", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, New(tt.code, "x").Formatted())
			assert.Equal(t, tt.status, tt.code.HTTPStatus())
		})
	}
}
