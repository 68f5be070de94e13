package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
server:
  addr: ":9090"
  allowed_origins: ["https://wallet.example"]
verifier:
  url: https://verifier.example/ui/presentations
  address: verifier.example
  poll_interval: 2s
  timeout: 30s
trusted_issuers:
  folder: /etc/rssp/issuers
revocation:
  url: https://revocation.example
session_token:
  secret: jwt-secret
  lifetime_minutes: 30
sad:
  secret: sad-secret
  lifetime_minutes: 10
  type: SAD
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	for _, o := range envOverrides {
		t.Setenv(o.name, "")
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"https://wallet.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 2*time.Second, cfg.Verifier.PollInterval)
	assert.Equal(t, 30*time.Second, cfg.Verifier.Timeout)
	assert.Equal(t, "/etc/rssp/issuers", cfg.TrustedIssuers.Folder)
	assert.Equal(t, 5*time.Second, cfg.Revocation.Timeout)
	assert.Equal(t, 30*time.Minute, cfg.SessionToken.Lifetime())
	assert.Equal(t, 10*time.Minute, cfg.SAD.Lifetime())
	assert.Equal(t, "sad-secret", cfg.SAD.Secret)
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(writeConfig(t, `
verifier:
  url: https://verifier.example
  address: verifier.example
session_token:
  secret: a
sad:
  secret: b
`))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, time.Second, cfg.Verifier.PollInterval)
	assert.Equal(t, 60*time.Second, cfg.Verifier.Timeout)
	assert.Equal(t, "", cfg.Revocation.URL)
	assert.Equal(t, 60*time.Minute, cfg.SessionToken.Lifetime())
	assert.Equal(t, 5*time.Minute, cfg.SAD.Lifetime())
	assert.Equal(t, "SAD", cfg.SAD.Type)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("RSSP_JWT_SECRET", "env-jwt")
	t.Setenv("RSSP_SAD_SECRET", "env-sad")
	t.Setenv("RSSP_VERIFIER_URL", "https://other-verifier.example")
	t.Setenv("RSSP_VERIFIER_ADDRESS", "other-verifier.example")
	t.Setenv("RSSP_REVOCATION_URL", "https://other-revocation.example")

	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "env-jwt", cfg.SessionToken.Secret)
	assert.Equal(t, "env-sad", cfg.SAD.Secret)
	assert.Equal(t, "https://other-verifier.example", cfg.Verifier.URL)
	assert.Equal(t, "other-verifier.example", cfg.Verifier.Address)
	assert.Equal(t, "https://other-revocation.example", cfg.Revocation.URL)
}

func TestLoadFromEnvOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv("RSSP_JWT_SECRET", "a")
	t.Setenv("RSSP_SAD_SECRET", "b")
	t.Setenv("RSSP_VERIFIER_URL", "https://verifier.example")
	t.Setenv("RSSP_VERIFIER_ADDRESS", "verifier.example")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "a", cfg.SessionToken.Secret)
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing verifier url",
			body: "verifier: {address: v}\nsession_token: {secret: a}\nsad: {secret: b}\n",
			want: "verifier.url is required",
		},
		{
			name: "missing sad secret",
			body: "verifier: {url: u, address: v}\nsession_token: {secret: a}\n",
			want: "sad.secret is required",
		},
		{
			name: "interval above timeout",
			body: "verifier: {url: u, address: v, poll_interval: 10s, timeout: 5s}\nsession_token: {secret: a}\nsad: {secret: b}\n",
			want: "exceeds verifier.timeout",
		},
		{
			name: "bad yaml",
			body: "verifier: [",
			want: "failed to parse config file",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}
