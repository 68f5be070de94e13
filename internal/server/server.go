// Package server exposes the authentication and CSC authorization flows
// over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/kokukuma/mdoc-rssp/internal/authorization"
	"github.com/kokukuma/mdoc-rssp/internal/trust"
	"github.com/kokukuma/mdoc-rssp/pkg/signererr"
)

// Authorizer is the part of authorization.Service the handlers use.
type Authorizer interface {
	OpenAuthenticationSession(ctx context.Context, requester string) (string, error)
	Authenticate(ctx context.Context, requester string) (*authorization.AuthenticationResult, error)
	ValidateSessionToken(raw string) (string, error)
	OpenAuthorizationSession(ctx context.Context, userID string) (string, error)
	AwaitAndAuthorize(ctx context.Context, userID, credentialID string) (*authorization.SADResponse, error)
}

type Server struct {
	authorizer Authorizer
	issuers    *trust.IssuerSet
	gatherer   prometheus.Gatherer
	log        *logrus.Logger
}

func NewServer(authorizer Authorizer, issuers *trust.IssuerSet, gatherer prometheus.Gatherer, log *logrus.Logger) *Server {
	return &Server{
		authorizer: authorizer,
		issuers:    issuers,
		gatherer:   gatherer,
		log:        log,
	}
}

// Router wires every route. allowedOrigins feeds the CORS handler.
func (s *Server) Router(allowedOrigins []string) http.Handler {
	r := mux.NewRouter()
	r.Use(handlers.CORS(
		handlers.AllowedMethods([]string{"POST", "GET"}),
		handlers.AllowedHeaders([]string{"content-type", "authorization"}),
		handlers.AllowedOrigins(allowedOrigins),
		handlers.AllowCredentials(),
	))

	oid4vp := r.PathPrefix("/oid4vp/authentication").Subrouter()
	oid4vp.HandleFunc("/link", s.AuthenticationLink).Methods("POST", "OPTIONS")
	oid4vp.HandleFunc("/token", s.AuthenticationToken).Methods("POST", "OPTIONS")

	csc := r.PathPrefix("/csc/v2/credentials").Subrouter()
	csc.Use(s.requireSessionToken)
	csc.HandleFunc("/authorizationLink", s.AuthorizationLink).Methods("POST", "OPTIONS")
	csc.HandleFunc("/authorize", s.Authorize).Methods("POST", "OPTIONS")

	r.HandleFunc("/trusted-issuers", s.TrustedIssuers).Methods("GET", "OPTIONS")
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods("GET")

	return handlers.CombinedLoggingHandler(s.log.Writer(), r)
}

// TrustedIssuers lists the IACA certificates documents are checked against.
func (s *Server) TrustedIssuers(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, s.issuers.List(), http.StatusOK)
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

const codeInvalidRequest = "invalid_request"

func parseJSON(r *http.Request, v interface{}) error {
	if r == nil || r.Body == nil {
		return errors.New("no request given")
	}

	defer r.Body.Close()
	defer io.Copy(io.Discard, r.Body)

	return json.NewDecoder(r.Body).Decode(v)
}

func jsonResponse(w http.ResponseWriter, d interface{}, c int) {
	dj, err := json.Marshal(d)
	if err != nil {
		http.Error(w, "Error creating JSON response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(c)
	fmt.Fprintf(w, "%s", dj)
}

// jsonErrorResponse renders err by its code. Internal detail stays in the
// logs; the body only carries the code's description.
func (s *Server) jsonErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	code := signererr.CodeOf(err)
	s.log.WithFields(logrus.Fields{
		"path": r.URL.Path,
		"code": code,
	}).Debugf("Request failed: %v", err)

	jsonResponse(w, errorResponse{
		Error:            string(code),
		ErrorDescription: code.Description(),
	}, code.HTTPStatus())
}

func badRequest(w http.ResponseWriter, description string) {
	jsonResponse(w, errorResponse{
		Error:            codeInvalidRequest,
		ErrorDescription: description,
	}, http.StatusBadRequest)
}
