package hash

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
)

// New returns a hasher for an ISO 18013-5 digest algorithm identifier.
func New(alg string) (hash.Hash, error) {
	switch alg {
	case "SHA-256":
		return sha256.New(), nil
	case "SHA-384":
		return sha512.New384(), nil
	case "SHA-512":
		return sha512.New(), nil
	}
	return nil, fmt.Errorf("unsupported digest algorithm: %s", alg)
}

func Digest(message []byte, alg string) ([]byte, error) {
	hasher, err := New(alg)
	if err != nil {
		return nil, err
	}
	hasher.Write(message)
	return hasher.Sum(nil), nil
}

// Sum256 is Digest with SHA-256, which cannot fail.
func Sum256(message []byte) []byte {
	sum := sha256.Sum256(message)
	return sum[:]
}
