package verifier

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/kokukuma/mdoc-rssp/pkg/hash"
)

const NonceLength = 32

// CreateNonce returns the SHA-256 of fresh random bytes, Base64URL encoded
// without padding.
func CreateNonce() (string, error) {
	seed := make([]byte, NonceLength)
	if _, err := rand.Read(seed); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(hash.Sum256(seed)), nil
}
