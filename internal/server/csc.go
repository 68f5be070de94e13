package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/kokukuma/mdoc-rssp/pkg/signererr"
)

type contextKey int

const userIDKey contextKey = iota

func userIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// requireSessionToken accepts requests carrying a valid session token as
// bearer and stores its user id in the request context.
func (s *Server) requireSessionToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		raw, ok := bearerToken(r)
		if !ok {
			s.jsonErrorResponse(w, r, signererr.New(signererr.CodeAccessDenied, "missing bearer token"))
			return
		}
		userID, err := s.authorizer.ValidateSessionToken(raw)
		if err != nil {
			s.jsonErrorResponse(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	const prefix = "bearer "
	h := r.Header.Get("Authorization")
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}

// AuthorizationLink opens the presentation that precedes a SAD for the
// caller.
func (s *Server) AuthorizationLink(w http.ResponseWriter, r *http.Request) {
	link, err := s.authorizer.OpenAuthorizationSession(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.jsonErrorResponse(w, r, err)
		return
	}
	jsonResponse(w, LinkResponse{Link: link}, http.StatusOK)
}

type AuthorizeRequest struct {
	CredentialID string `json:"credentialID"`
}

// Authorize is CSC credentials/authorize: it waits for the caller's
// presentation and answers with {SAD, expiresIn}.
func (s *Server) Authorize(w http.ResponseWriter, r *http.Request) {
	req := AuthorizeRequest{}
	if err := parseJSON(r, &req); err != nil {
		badRequest(w, "failed to parse request")
		return
	}
	if req.CredentialID == "" {
		badRequest(w, "credentialID is required")
		return
	}

	resp, err := s.authorizer.AwaitAndAuthorize(r.Context(), userIDFrom(r.Context()), req.CredentialID)
	if err != nil {
		s.jsonErrorResponse(w, r, err)
		return
	}
	jsonResponse(w, resp, http.StatusOK)
}
