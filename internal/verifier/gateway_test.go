package verifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kokukuma/mdoc-rssp/document"
	"github.com/kokukuma/mdoc-rssp/internal/session"
	"github.com/kokukuma/mdoc-rssp/openid4vp"
	"github.com/kokukuma/mdoc-rssp/pkg/clock"
	"github.com/kokukuma/mdoc-rssp/pkg/signererr"
)

const testAddress = "verifier.example.com"

type fakeVerifier struct {
	t        *testing.T
	clientID string
	response map[string]string
	postCode int
	statuses []int
	polls    int32

	lastRequest openid4vp.PresentationRequest
	lastPoll    *url.URL
}

func (f *fakeVerifier) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&f.lastRequest))
		if f.postCode != 0 {
			w.WriteHeader(f.postCode)
			return
		}
		resp := f.response
		if resp == nil {
			resp = map[string]string{
				"client_id":       f.clientID,
				"request_uri":     "https://" + testAddress + "/wallet/request.jwt/abc",
				"presentation_id": "abc",
			}
		}
		json.NewEncoder(w).Encode(resp)
	case http.MethodGet:
		n := int(atomic.AddInt32(&f.polls, 1)) - 1
		f.lastPoll = r.URL
		status := http.StatusAccepted
		if n < len(f.statuses) {
			status = f.statuses[n]
		} else if len(f.statuses) > 0 {
			status = f.statuses[len(f.statuses)-1]
		}
		w.WriteHeader(status)
		if status == http.StatusOK {
			w.Write([]byte(`{"vp_token":"token"}`))
		}
	}
}

func newTestGateway(t *testing.T, fv *fakeVerifier, fake *clock.FakeClock) (*Gateway, *session.Store) {
	t.Helper()
	srv := httptest.NewServer(fv)
	t.Cleanup(srv.Close)

	store := session.NewStore()
	g := NewGateway(Config{
		URL:          srv.URL + "/ui/presentations",
		Address:      testAddress,
		PollInterval: time.Second,
		Timeout:      10 * time.Second,
	}, store, WithHTTPClient(srv.Client()), WithClock(fake))
	return g, store
}

func TestOpenSession(t *testing.T) {
	fv := &fakeVerifier{t: t, clientID: testAddress}
	g, store := newTestGateway(t, fv, clock.Fake(time.Now()))

	link, err := g.OpenSession(context.Background(), "alice", session.Authorization)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(link, "eudi-openid4vp://"+testAddress+"?client_id="+testAddress+"&request_uri="))
	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "https://"+testAddress+"/wallet/request.jwt/abc", u.Query().Get("request_uri"))

	assert.Equal(t, "vp_token", fv.lastRequest.Type)
	assert.NotEmpty(t, fv.lastRequest.Nonce)
	assert.Equal(t, document.PIDDefinitionID, fv.lastRequest.PresentationDefinition.ID)

	sess, ok := store.TakeIfMatching("alice", session.Authorization)
	require.True(t, ok)
	assert.Equal(t, "abc", sess.PresentationID)
	assert.Equal(t, fv.lastRequest.Nonce, sess.Nonce)
}

func TestOpenSessionFailures(t *testing.T) {
	tests := []struct {
		name     string
		fv       *fakeVerifier
		wantCode signererr.Code
	}{
		{
			name:     "forged client id",
			fv:       &fakeVerifier{clientID: "attacker.example.com"},
			wantCode: signererr.CodeVerifierClientMismatch,
		},
		{
			name:     "missing presentation id",
			fv:       &fakeVerifier{response: map[string]string{"client_id": testAddress, "request_uri": "https://x"}},
			wantCode: signererr.CodeVerifierMissingData,
		},
		{
			name:     "verifier error",
			fv:       &fakeVerifier{postCode: http.StatusInternalServerError},
			wantCode: signererr.CodeVerifierConnectionFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fv.t = t
			g, store := newTestGateway(t, tt.fv, clock.Fake(time.Now()))

			_, err := g.OpenSession(context.Background(), "alice", session.Authorization)
			assert.Equal(t, tt.wantCode, signererr.CodeOf(err))
			assert.Equal(t, 0, store.Len(), "no session may be stored on failure")
		})
	}
}

func TestOpenSessionUnreachable(t *testing.T) {
	g := NewGateway(Config{URL: "http://127.0.0.1:1/ui/presentations", Address: testAddress}, session.NewStore())
	_, err := g.OpenSession(context.Background(), "alice", session.Authorization)
	assert.True(t, signererr.HasCode(err, signererr.CodeVerifierConnectionFailed))
}

func TestAwaitPresentation(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		wantCode  signererr.Code
		wantPolls int32
	}{
		{
			name:      "immediate",
			statuses:  []int{http.StatusOK},
			wantPolls: 1,
		},
		{
			name:      "pending then ready",
			statuses:  []int{http.StatusAccepted, http.StatusInternalServerError, http.StatusOK},
			wantPolls: 3,
		},
		{
			name:      "abandoned",
			statuses:  []int{http.StatusAccepted, http.StatusNotFound},
			wantCode:  signererr.CodeVerifierConnectionFailed,
			wantPolls: 2,
		},
		{
			name:      "never ready",
			statuses:  []int{http.StatusServiceUnavailable},
			wantCode:  signererr.CodeVerifierTimeout,
			wantPolls: 11,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fv := &fakeVerifier{t: t, clientID: testAddress, statuses: tt.statuses}
			fake := clock.Fake(time.Now())
			g, _ := newTestGateway(t, fv, fake)

			_, err := g.OpenSession(context.Background(), "alice", session.Authorization)
			require.NoError(t, err)

			body, err := g.AwaitPresentation(context.Background(), "alice", session.Authorization)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, signererr.CodeOf(err))
				assert.Nil(t, body)
			} else {
				require.NoError(t, err)
				assert.JSONEq(t, `{"vp_token":"token"}`, string(body))
			}
			assert.Equal(t, tt.wantPolls, atomic.LoadInt32(&fv.polls))
			assert.Equal(t, "/ui/presentations/abc", fv.lastPoll.Path)
			assert.Equal(t, fv.lastRequest.Nonce, fv.lastPoll.Query().Get("nonce"))
		})
	}
}

func TestAwaitPresentationTimeoutIsBounded(t *testing.T) {
	fv := &fakeVerifier{t: t, clientID: testAddress, statuses: []int{http.StatusAccepted}}
	fake := clock.Fake(time.Now())
	g, _ := newTestGateway(t, fv, fake)

	_, err := g.OpenSession(context.Background(), "alice", session.Authorization)
	require.NoError(t, err)

	_, err = g.AwaitPresentation(context.Background(), "alice", session.Authorization)
	assert.True(t, signererr.HasCode(err, signererr.CodeVerifierTimeout))
	assert.Equal(t, 10*time.Second, fake.Waited())
}

func TestAwaitPresentationSessionNotFound(t *testing.T) {
	fv := &fakeVerifier{t: t, clientID: testAddress, statuses: []int{http.StatusOK}}
	g, _ := newTestGateway(t, fv, clock.Fake(time.Now()))

	_, err := g.AwaitPresentation(context.Background(), "alice", session.Authorization)
	assert.True(t, signererr.HasCode(err, signererr.CodeSessionNotFound))

	_, err = g.OpenSession(context.Background(), "alice", session.Authentication)
	require.NoError(t, err)
	_, err = g.AwaitPresentation(context.Background(), "alice", session.Authorization)
	assert.True(t, signererr.HasCode(err, signererr.CodeSessionNotFound))

	_, err = g.AwaitPresentation(context.Background(), "alice", session.Authentication)
	require.NoError(t, err)
	_, err = g.AwaitPresentation(context.Background(), "alice", session.Authentication)
	assert.True(t, signererr.HasCode(err, signererr.CodeSessionNotFound), "session must be single-use")
	assert.Equal(t, int32(1), atomic.LoadInt32(&fv.polls))
}

func TestAwaitPresentationCancelled(t *testing.T) {
	fv := &fakeVerifier{t: t, clientID: testAddress, statuses: []int{http.StatusAccepted}}
	g, _ := newTestGateway(t, fv, clock.Fake(time.Now()))
	g.clock = blockingClock{clock.Fake(time.Now())}

	_, err := g.OpenSession(context.Background(), "alice", session.Authorization)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for atomic.LoadInt32(&fv.polls) == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()
	_, err = g.AwaitPresentation(ctx, "alice", session.Authorization)
	assert.True(t, signererr.HasCode(err, signererr.CodeVerifierTimeout))
}

// blockingClock never fires After, so only cancellation ends the wait.
type blockingClock struct{ *clock.FakeClock }

func (blockingClock) After(time.Duration) <-chan time.Time { return nil }

func TestCreateNonce(t *testing.T) {
	a, err := CreateNonce()
	require.NoError(t, err)
	b, err := CreateNonce()
	require.NoError(t, err)

	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "=")
}
