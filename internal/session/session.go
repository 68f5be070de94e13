// Package session holds the short-lived OpenID4VP presentation sessions
// opened with the Verifier, keyed by the requester that asked for them.
package session

import (
	"sync"
	"time"

	"github.com/kokukuma/mdoc-rssp/pkg/signererr"
)

type Operation string

const (
	Authentication Operation = "Authentication"
	Authorization  Operation = "Authorization"
)

func ParseOperation(s string) (Operation, error) {
	switch Operation(s) {
	case Authentication, Authorization:
		return Operation(s), nil
	}
	return "", signererr.Newf(signererr.CodeUnexpectedOperationType, "unexpected operation type: %q", s)
}

type Session struct {
	Requester      string
	Operation      Operation
	Nonce          string
	PresentationID string
	CreatedAt      time.Time
}

// Store is a concurrent map of sessions. A session is handed out at most
// once; Put for the same requester replaces whatever was stored before.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
	}
}

func (s *Store) Put(requester string, op Operation, nonce, presentationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[requester] = &Session{
		Requester:      requester,
		Operation:      op,
		Nonce:          nonce,
		PresentationID: presentationID,
		CreatedAt:      time.Now(),
	}
}

// TakeIfMatching removes and returns the requester's session when it was
// opened for op. A session for a different operation is left in place.
func (s *Store) TakeIfMatching(requester string, op Operation) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[requester]
	if !ok || session.Operation != op {
		return nil, false
	}
	delete(s.sessions, requester)
	return session, true
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
