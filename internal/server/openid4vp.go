package server

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/kokukuma/mdoc-rssp/internal/identity"
	"github.com/kokukuma/mdoc-rssp/pkg/signererr"
)

// requesterCookie ties the link and token calls of one anonymous login.
const requesterCookie = "rssp_requester"

type LinkResponse struct {
	Link string `json:"link"`
}

type TokenResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	ExpiresIn   int64          `json:"expires_in"`
	User        *identity.User `json:"user"`
	NewUser     bool           `json:"new_user"`
}

// AuthenticationLink opens a login presentation and returns the wallet deep
// link. The requester id is kept in a cookie for the token call.
func (s *Server) AuthenticationLink(w http.ResponseWriter, r *http.Request) {
	requester := uuid.New().String()
	if c, err := r.Cookie(requesterCookie); err == nil && c.Value != "" {
		requester = c.Value
	}

	link, err := s.authorizer.OpenAuthenticationSession(r.Context(), requester)
	if err != nil {
		s.jsonErrorResponse(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     requesterCookie,
		Value:    requester,
		Path:     "/oid4vp/authentication",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	jsonResponse(w, LinkResponse{Link: link}, http.StatusOK)
}

// AuthenticationToken waits for the login presentation and answers with a
// session token.
func (s *Server) AuthenticationToken(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(requesterCookie)
	if err != nil || c.Value == "" {
		s.jsonErrorResponse(w, r, signererr.New(signererr.CodeSessionNotFound, "no requester cookie"))
		return
	}

	result, err := s.authorizer.Authenticate(r.Context(), c.Value)
	if err != nil {
		s.jsonErrorResponse(w, r, err)
		return
	}

	jsonResponse(w, TokenResponse{
		AccessToken: result.Token,
		TokenType:   "Bearer",
		ExpiresIn:   result.ExpiresIn,
		User:        result.User,
		NewUser:     result.Created,
	}, http.StatusOK)
}
