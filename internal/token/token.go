// Package token issues and validates the HMAC signed JWTs of the service:
// the Signature Activation Data (SAD) bound to a credential, and the
// session token bound to an authenticated user.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kokukuma/mdoc-rssp/pkg/clock"
	"github.com/kokukuma/mdoc-rssp/pkg/signererr"
)

const (
	TypeSAD     = "SAD"
	TypeSession = "session"
)

var signingMethod = jwt.SigningMethodHS512

type Claims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

type Token struct {
	Raw       string
	IssuedAt  time.Time
	ExpiresAt time.Time
	// ExpiresIn is the lifetime advertised to clients, one second short of
	// the real one.
	ExpiresIn int64
}

type Provider struct {
	secret      []byte
	lifetime    time.Duration
	typ         string
	clock       clock.Clock
	expiredCode signererr.Code
	invalidCode signererr.Code
}

type Option func(*Provider)

func WithClock(c clock.Clock) Option {
	return func(p *Provider) {
		p.clock = c
	}
}

func newProvider(secret string, lifetime time.Duration, typ string, expired, invalid signererr.Code, opts []Option) *Provider {
	p := &Provider{
		secret:      []byte(secret),
		lifetime:    lifetime,
		typ:         typ,
		clock:       clock.Real(),
		expiredCode: expired,
		invalidCode: invalid,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewSADProvider returns the provider for credential scoped SADs. typ is
// written to and required in the "type" claim.
func NewSADProvider(secret string, lifetime time.Duration, typ string, opts ...Option) *Provider {
	if typ == "" {
		typ = TypeSAD
	}
	return newProvider(secret, lifetime, typ, signererr.CodeSADExpired, signererr.CodeSADInvalid, opts)
}

// NewSessionProvider returns the provider for user session tokens.
func NewSessionProvider(secret string, lifetime time.Duration, opts ...Option) *Provider {
	return newProvider(secret, lifetime, TypeSession, signererr.CodeAccessDenied, signererr.CodeAccessDenied, opts)
}

func (p *Provider) Lifetime() time.Duration {
	return p.lifetime
}

// Issue signs a token for subject. The expiry is fixed here and never
// extended.
func (p *Provider) Issue(subject string) (*Token, error) {
	now := p.clock.Now()
	claims := Claims{
		Type: p.typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.lifetime)),
		},
	}

	raw, err := jwt.NewWithClaims(signingMethod, claims).SignedString(p.secret)
	if err != nil {
		return nil, signererr.Wrap(err, signererr.CodeUnexpected, "failed to sign token")
	}
	return &Token{
		Raw:       raw,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
		ExpiresIn: int64(p.lifetime/time.Second) - 1,
	}, nil
}

// Validate checks signature, expiry and type. An expired token fails with
// the provider's expired code, anything else with its invalid code.
func (p *Provider) Validate(raw string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithTimeFunc(p.clock.Now),
		jwt.WithExpirationRequired(),
	)

	claims := &Claims{}
	_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return p.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, signererr.Wrap(err, p.expiredCode, "token expired")
	case err != nil:
		return nil, signererr.Wrap(err, p.invalidCode, "token invalid")
	}

	if claims.Type != p.typ {
		return nil, signererr.Newf(p.invalidCode, "unexpected token type %q", claims.Type)
	}
	if claims.Subject == "" {
		return nil, signererr.New(p.invalidCode, "token has no subject")
	}
	return claims, nil
}

// ValidateFor additionally requires the token subject to be subject, e.g.
// a SAD presented for a different credential is invalid.
func (p *Provider) ValidateFor(raw, subject string) (*Claims, error) {
	claims, err := p.Validate(raw)
	if err != nil {
		return nil, err
	}
	if claims.Subject != subject {
		return nil, signererr.New(p.invalidCode, "token issued for another subject")
	}
	return claims, nil
}
