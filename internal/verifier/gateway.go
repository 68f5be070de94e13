// Package verifier talks to the external OpenID4VP Verifier: it opens
// presentation requests and polls for the wallet's answer.
package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kokukuma/mdoc-rssp/document"
	"github.com/kokukuma/mdoc-rssp/internal/session"
	"github.com/kokukuma/mdoc-rssp/openid4vp"
	"github.com/kokukuma/mdoc-rssp/pkg/clock"
	"github.com/kokukuma/mdoc-rssp/pkg/signererr"
)

const (
	DefaultPollInterval = time.Second
	DefaultTimeout      = 60 * time.Second
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	// URL of the presentations endpoint, e.g. https://verifier.example.com/ui/presentations.
	URL string
	// Address is the Verifier host the wallet is sent to. The Verifier must
	// answer with it as client_id.
	Address      string
	PollInterval time.Duration
	Timeout      time.Duration
}

type Option func(*Gateway)

func WithHTTPClient(c HTTPClient) Option {
	return func(g *Gateway) {
		g.client = c
	}
}

func WithClock(c clock.Clock) Option {
	return func(g *Gateway) {
		g.clock = c
	}
}

// WithPollObserver registers a callback for the status of every poll.
func WithPollObserver(f func(status int)) Option {
	return func(g *Gateway) {
		g.observePoll = f
	}
}

type Gateway struct {
	cfg         Config
	sessions    *session.Store
	client      HTTPClient
	clock       clock.Clock
	definition  document.PresentationDefinition
	observePoll func(status int)
}

func NewGateway(cfg Config, sessions *session.Store, opts ...Option) *Gateway {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	g := &Gateway{
		cfg:         cfg,
		sessions:    sessions,
		client:      &http.Client{Timeout: 10 * time.Second},
		clock:       clock.Real(),
		definition:  document.PIDDefinition(),
		observePoll: func(int) {},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// OpenSession registers a presentation request with the Verifier, stores the
// session for requester and returns the wallet deep link.
func (g *Gateway) OpenSession(ctx context.Context, requester string, op session.Operation) (string, error) {
	nonce, err := CreateNonce()
	if err != nil {
		return "", signererr.Wrap(err, signererr.CodeUnexpected, "failed to create nonce")
	}

	body, err := json.Marshal(openid4vp.PresentationRequest{
		Type:                   "vp_token",
		Nonce:                  nonce,
		PresentationDefinition: g.definition,
	})
	if err != nil {
		return "", signererr.Wrap(err, signererr.CodeUnexpected, "failed to marshal presentation request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return "", signererr.Wrap(err, signererr.CodeVerifierConnectionFailed, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", signererr.Wrap(err, signererr.CodeVerifierConnectionFailed, "failed to post presentation request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", signererr.Newf(signererr.CodeVerifierConnectionFailed, "verifier answered %d", resp.StatusCode)
	}

	var pr openid4vp.PresentationResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return "", signererr.Wrap(err, signererr.CodeVerifierMissingData, "failed to decode verifier response")
	}
	if pr.RequestURI == "" || pr.ClientID == "" || pr.PresentationID == "" {
		return "", signererr.New(signererr.CodeVerifierMissingData, "request_uri, client_id or presentation_id missing")
	}
	if pr.ClientID != g.cfg.Address {
		return "", signererr.Newf(signererr.CodeVerifierClientMismatch, "client_id %q is not %q", pr.ClientID, g.cfg.Address)
	}

	g.sessions.Put(requester, op, nonce, pr.PresentationID)

	return openid4vp.DeepLink(g.cfg.Address, pr.ClientID, pr.RequestURI), nil
}

type pollState int

const (
	pollRequest pollState = iota
	pollWait
	pollDone
)

// AwaitPresentation consumes requester's session and polls the Verifier
// until the wallet response is available, the Verifier reports the
// presentation gone, or the timeout elapses.
func (g *Gateway) AwaitPresentation(ctx context.Context, requester string, op session.Operation) ([]byte, error) {
	sess, ok := g.sessions.TakeIfMatching(requester, op)
	if !ok {
		return nil, signererr.Newf(signererr.CodeSessionNotFound, "no %s session for requester", op)
	}

	pollURL := fmt.Sprintf("%s/%s?nonce=%s", g.cfg.URL, url.PathEscape(sess.PresentationID), url.QueryEscape(sess.Nonce))
	deadline := g.clock.Now().Add(g.cfg.Timeout)

	var (
		body  []byte
		err   error
		state = pollRequest
	)
	for state != pollDone {
		switch state {
		case pollRequest:
			var status int
			status, body, err = g.get(ctx, pollURL)
			if err != nil {
				if ctx.Err() != nil {
					err = signererr.Wrap(ctx.Err(), signererr.CodeVerifierTimeout, "polling cancelled")
				} else {
					err = signererr.Wrap(err, signererr.CodeVerifierConnectionFailed, "failed to poll verifier")
				}
				body = nil
				state = pollDone
				continue
			}
			g.observePoll(status)

			switch {
			case status == http.StatusOK:
				state = pollDone
			case status == http.StatusNotFound:
				body = nil
				err = signererr.New(signererr.CodeVerifierConnectionFailed, "presentation not found at verifier")
				state = pollDone
			case !g.clock.Now().Before(deadline):
				body = nil
				err = signererr.Newf(signererr.CodeVerifierTimeout, "no presentation after %s", g.cfg.Timeout)
				state = pollDone
			default:
				state = pollWait
			}

		case pollWait:
			select {
			case <-ctx.Done():
				err = signererr.Wrap(ctx.Err(), signererr.CodeVerifierTimeout, "polling cancelled")
				state = pollDone
			case <-g.clock.After(g.cfg.PollInterval):
				state = pollRequest
			}
		}
	}
	return body, err
}

func (g *Gateway) get(ctx context.Context, u string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, nil, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}
