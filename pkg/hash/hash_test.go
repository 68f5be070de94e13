package hash

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigest(t *testing.T) {
	tests := []struct {
		alg     string
		wantLen int
		wantErr bool
	}{
		{alg: "SHA-256", wantLen: 32},
		{alg: "SHA-384", wantLen: 48},
		{alg: "SHA-512", wantLen: 64},
		{alg: "MD5", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.alg, func(t *testing.T) {
			got, err := Digest([]byte("abc"), tt.alg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.wantLen)
		})
	}
}

func TestSum256(t *testing.T) {
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	assert.Equal(t, want, hex.EncodeToString(Sum256([]byte("abc"))))

	d, err := Digest([]byte("abc"), "SHA-256")
	require.NoError(t, err)
	assert.Equal(t, want, hex.EncodeToString(d))
}
