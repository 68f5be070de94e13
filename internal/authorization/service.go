// Package authorization drives the credential authorization flows: a wallet
// presentation is awaited through the Verifier, decoded, validated and bound
// to the local user before a session token or a SAD is issued.
package authorization

import (
	"context"
	"errors"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"

	"github.com/kokukuma/mdoc-rssp/internal/identity"
	"github.com/kokukuma/mdoc-rssp/internal/metrics"
	"github.com/kokukuma/mdoc-rssp/internal/session"
	"github.com/kokukuma/mdoc-rssp/internal/token"
	"github.com/kokukuma/mdoc-rssp/mdoc"
	"github.com/kokukuma/mdoc-rssp/openid4vp"
	"github.com/kokukuma/mdoc-rssp/pkg/clock"
	"github.com/kokukuma/mdoc-rssp/pkg/signererr"
)

// Gateway is the Verifier side of a presentation session.
type Gateway interface {
	OpenSession(ctx context.Context, requester string, op session.Operation) (string, error)
	AwaitPresentation(ctx context.Context, requester string, op session.Operation) ([]byte, error)
}

// Validator accepts or rejects a decoded document. Rejections are
// *mdoc.Rejection.
type Validator interface {
	Verify(ctx context.Context, doc *mdoc.Document) error
}

type Params struct {
	Gateway       Gateway
	Decoder       *openid4vp.Decoder
	Validator     Validator
	Users         identity.UserRepository
	SAD           *token.Provider
	SessionTokens *token.Provider
	Metrics       *metrics.Metrics
	Logger        *logrus.Logger
	Clock         clock.Clock
}

type Service struct {
	gateway       Gateway
	decoder       *openid4vp.Decoder
	validator     Validator
	users         identity.UserRepository
	binder        *identity.Binder
	sad           *token.Provider
	sessionTokens *token.Provider
	metrics       *metrics.Metrics
	log           *logrus.Logger
	clock         clock.Clock
}

func NewService(p Params) *Service {
	if p.Decoder == nil {
		p.Decoder = openid4vp.NewDecoder()
	}
	if p.Clock == nil {
		p.Clock = clock.Real()
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}
	return &Service{
		gateway:       p.Gateway,
		decoder:       p.Decoder,
		validator:     p.Validator,
		users:         p.Users,
		binder:        identity.NewBinder(p.Users),
		sad:           p.SAD,
		sessionTokens: p.SessionTokens,
		metrics:       p.Metrics,
		log:           p.Logger,
		clock:         p.Clock,
	}
}

// SADResponse is the CSC credentials/authorize answer.
type SADResponse struct {
	SAD       string `json:"SAD"`
	ExpiresIn int64  `json:"expiresIn"`
}

type AuthenticationResult struct {
	Token     string
	ExpiresIn int64
	User      *identity.User
	Created   bool
}

// OpenAuthenticationSession starts a login for an anonymous requester and
// returns the wallet deep link.
func (s *Service) OpenAuthenticationSession(ctx context.Context, requester string) (string, error) {
	link, err := s.gateway.OpenSession(ctx, requester, session.Authentication)
	if err != nil {
		return "", s.fail(metrics.FlowAuthentication, session.Authentication, logrus.Fields{"requester": requester}, err)
	}
	return link, nil
}

// Authenticate waits for the requester's presentation, onboards the holder
// on first sight and issues a session token for the user.
func (s *Service) Authenticate(ctx context.Context, requester string) (*AuthenticationResult, error) {
	fields := logrus.Fields{"requester": requester}
	op := session.Authentication

	id, err := s.verifiedIdentity(ctx, requester, op)
	if err != nil {
		return nil, s.fail(metrics.FlowAuthentication, op, fields, err)
	}

	user, created, err := s.binder.BindOrCreateUser(ctx, id)
	if err != nil {
		return nil, s.fail(metrics.FlowAuthentication, op, fields, err)
	}
	fields["user_id"] = user.ID
	if created {
		s.log.WithFields(fields).Info("Onboarded new wallet holder")
	}

	tok, err := s.sessionTokens.Issue(user.ID)
	if err != nil {
		return nil, s.fail(metrics.FlowAuthentication, op, fields, err)
	}

	s.succeed(metrics.FlowAuthentication, op, fields)
	return &AuthenticationResult{
		Token:     tok.Raw,
		ExpiresIn: tok.ExpiresIn,
		User:      user,
		Created:   created,
	}, nil
}

// ValidateSessionToken returns the user id a session token was issued for.
func (s *Service) ValidateSessionToken(raw string) (string, error) {
	claims, err := s.sessionTokens.Validate(raw)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// OpenAuthorizationSession starts the presentation that has to precede a
// SAD for userID.
func (s *Service) OpenAuthorizationSession(ctx context.Context, userID string) (string, error) {
	fields := logrus.Fields{"user_id": userID}
	op := session.Authorization

	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return "", s.fail(metrics.FlowAuthorization, op, fields, err)
	}
	link, err := s.gateway.OpenSession(ctx, userID, op)
	if err != nil {
		return "", s.fail(metrics.FlowAuthorization, op, fields, err)
	}
	return link, nil
}

// AwaitAndAuthorize waits for the user's presentation and issues a SAD for
// credentialID only when the presented identity is the one on file.
func (s *Service) AwaitAndAuthorize(ctx context.Context, userID, credentialID string) (*SADResponse, error) {
	fields := logrus.Fields{"user_id": userID, "credential_id": credentialID}
	op := session.Authorization

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, s.fail(metrics.FlowAuthorization, op, fields, err)
	}

	id, err := s.verifiedIdentity(ctx, userID, op)
	if err != nil {
		return nil, s.fail(metrics.FlowAuthorization, op, fields, err)
	}

	if !identity.CompareOwnership(id, user) {
		err := signererr.New(signererr.CodeAccessDenied, "presented identity does not match the user")
		return nil, s.fail(metrics.FlowAuthorization, op, fields, err)
	}

	resp, err := s.IssueSAD(credentialID)
	if err != nil {
		return nil, s.fail(metrics.FlowAuthorization, op, fields, err)
	}

	s.succeed(metrics.FlowAuthorization, op, fields)
	return resp, nil
}

// IssueSAD signs a SAD for credentialID. Callers must have matched the
// holder's identity first.
func (s *Service) IssueSAD(credentialID string) (*SADResponse, error) {
	tok, err := s.sad.Issue(credentialID)
	if err != nil {
		return nil, err
	}
	return &SADResponse{SAD: tok.Raw, ExpiresIn: tok.ExpiresIn}, nil
}

// ValidateSAD checks a SAD presented at signing time for credentialID.
func (s *Service) ValidateSAD(raw, credentialID string) error {
	if _, err := s.sad.ValidateFor(raw, credentialID); err != nil {
		s.log.WithFields(logrus.Fields{
			"credential_id": credentialID,
			"code":          signererr.CodeOf(err),
		}).Info("Rejected SAD")
		return err
	}
	return nil
}

func (s *Service) verifiedIdentity(ctx context.Context, requester string, op session.Operation) (*identity.VerifiedIdentity, error) {
	start := s.clock.Now()
	envelope, err := s.gateway.AwaitPresentation(ctx, requester, op)
	if s.metrics != nil {
		s.metrics.ObservePresentationWait(start, s.clock.Now())
	}
	if err != nil {
		return nil, err
	}

	presentation, err := s.decoder.Decode(envelope)
	if err != nil {
		return nil, err
	}
	if s.log.IsLevelEnabled(logrus.DebugLevel) {
		s.log.Debugf("Decoded device response:\n%s", spew.Sdump(presentation.Response))
	}

	if err := s.validator.Verify(ctx, presentation.Document); err != nil {
		return nil, err
	}
	return identity.Extract(presentation.Document)
}

func (s *Service) succeed(flow string, op session.Operation, fields logrus.Fields) {
	if s.metrics != nil {
		s.metrics.ObserveOutcome(flow, metrics.OutcomeOK)
	}
	s.log.WithFields(fields).WithField("operation", op).Infof("%s succeeded", flow)
}

// fail records err once and returns it unchanged.
func (s *Service) fail(flow string, op session.Operation, fields logrus.Fields, err error) error {
	code := signererr.CodeOf(err)
	entry := s.log.WithFields(fields).WithFields(logrus.Fields{
		"operation": op,
		"code":      code,
	})
	if s.metrics != nil {
		s.metrics.ObserveOutcome(flow, string(code))
	}

	var rej *mdoc.Rejection
	if errors.As(err, &rej) {
		entry = entry.WithField("reason", rej.Reason.String())
		if s.metrics != nil {
			s.metrics.ObserveRejection(rej.Reason.String())
		}
		switch rej.Reason {
		case mdoc.ReasonSignature:
			entry.WithError(err).Warn("IssuerAuth signature rejected, possible tampering")
		case mdoc.ReasonIntegrity:
			entry.WithError(err).Warn("Disclosed items do not match the MSO digests")
		default:
			entry.WithError(err).Info("Presentation rejected")
		}
		return err
	}

	switch code {
	case signererr.CodeAccessDenied:
		entry.WithError(err).Warn("Presented identity does not match the account, potential attack")
	case signererr.CodeUnexpected:
		entry.WithError(err).Error("Authorization failed")
	default:
		entry.WithError(err).Info("Authorization failed")
	}
	return err
}
