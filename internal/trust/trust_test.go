package trust

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kokukuma/mdoc-rssp/pkg/mdoctest"
	"github.com/kokukuma/mdoc-rssp/pkg/pki"
)

func TestLoadIssuerSet(t *testing.T) {
	now := time.Now()
	a, err := mdoctest.NewIssuer(now, mdoctest.WithCommonName("Issuer A"))
	require.NoError(t, err)
	b, err := mdoctest.NewIssuer(now, mdoctest.WithCommonName("Issuer B"))
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pem"), pki.EncodePEM(a.Root), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.pem"), pki.EncodePEM(b.Root), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.pem"), []byte("not a pem"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("ignored"), 0o644))

	set, skipped, err := LoadIssuerSet(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
	assert.Contains(t, skipped, "broken.pem")
	assert.NotContains(t, skipped, "README.txt")

	got, ok := set.Lookup(a.Signer.Issuer.String())
	require.True(t, ok)
	assert.Equal(t, a.Root.Raw, got.Raw)

	_, ok = set.Lookup("CN=Unknown")
	assert.False(t, ok)

	list := set.List()
	require.Len(t, list, 2)
	assert.Equal(t, a.Root.Subject.String(), list[0].Subject)
	assert.Len(t, list[0].Fingerprint, 64)
}

func TestLoadIssuerSetMissingDir(t *testing.T) {
	_, _, err := LoadIssuerSet(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestHTTPRevocationChecker(t *testing.T) {
	const issuerDN = "CN=PID Issuer CA - UT 01,C=UT"

	tests := []struct {
		name    string
		status  int
		body    revocationStatus
		want    bool
		wantErr bool
	}{
		{name: "active", status: http.StatusOK, body: revocationStatus{IssuerDN: issuerDN, SerialNumber: "2A"}, want: false},
		{name: "revoked", status: http.StatusOK, body: revocationStatus{IssuerDN: issuerDN, SerialNumber: "2a", Revoked: true}, want: true},
		{name: "other certificate", status: http.StatusOK, body: revocationStatus{IssuerDN: issuerDN, SerialNumber: "2b"}, wantErr: true},
		{name: "ca error", status: http.StatusInternalServerError, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.EscapedPath()
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(tt.body)
			}))
			defer srv.Close()

			checker := NewHTTPRevocationChecker(srv.URL+"/v1/certificate/", time.Second, nil)
			got, err := checker.Revoked(context.Background(), issuerDN, "2a")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "/v1/certificate/CN=PID%20Issuer%20CA%20-%20UT%2001%2CC=UT/2a/revocationstatus", gotPath)
		})
	}
}

func TestNeverRevoked(t *testing.T) {
	revoked, err := NeverRevoked{}.Revoked(context.Background(), "CN=x", "01")
	require.NoError(t, err)
	assert.False(t, revoked)
}
