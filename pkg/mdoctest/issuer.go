// Package mdoctest builds signed ISO 18013-5 device responses in memory for
// tests: an IACA root, a document signer certificate, CBOR issuer-signed
// items and a COSE_Sign1 issuerAuth over the MSO.
package mdoctest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha1"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"time"
)

// Issuer is an IACA root together with one document signer it issued.
type Issuer struct {
	Root      *x509.Certificate
	RootKey   *ecdsa.PrivateKey
	Signer    *x509.Certificate
	SignerKey *ecdsa.PrivateKey

	now time.Time
}

type issuerConfig struct {
	commonName      string
	rootNotBefore   time.Time
	rootNotAfter    time.Time
	signerNotBefore time.Time
	signerNotAfter  time.Time
	signerSerial    int64
	forgeSigner     bool
}

type IssuerOption func(*issuerConfig)

func WithCommonName(cn string) IssuerOption {
	return func(c *issuerConfig) {
		c.commonName = cn
	}
}

func WithRootValidity(notBefore, notAfter time.Time) IssuerOption {
	return func(c *issuerConfig) {
		c.rootNotBefore = notBefore
		c.rootNotAfter = notAfter
	}
}

func WithSignerValidity(notBefore, notAfter time.Time) IssuerOption {
	return func(c *issuerConfig) {
		c.signerNotBefore = notBefore
		c.signerNotAfter = notAfter
	}
}

func WithSignerSerial(serial int64) IssuerOption {
	return func(c *issuerConfig) {
		c.signerSerial = serial
	}
}

// WithForgedSigner issues the document signer under the root's name but
// signs it with an unrelated key.
func WithForgedSigner() IssuerOption {
	return func(c *issuerConfig) {
		c.forgeSigner = true
	}
}

// NewIssuer creates a root valid for five years around now and a document
// signer valid from thirty days before now for one year.
func NewIssuer(now time.Time, opts ...IssuerOption) (*Issuer, error) {
	cfg := &issuerConfig{
		commonName:      "PID Issuer CA - UT 01",
		rootNotBefore:   now.AddDate(-1, 0, 0),
		rootNotAfter:    now.AddDate(4, 0, 0),
		signerNotBefore: now.AddDate(0, 0, -30),
		signerNotAfter:  now.AddDate(1, 0, 0),
		signerSerial:    0x2a,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	rootKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	root, err := createRootCertificate(rootKey, cfg)
	if err != nil {
		return nil, err
	}

	signerKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}

	parent, parentKey := root, rootKey
	if cfg.forgeSigner {
		parentKey, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, err
		}
		parent = &x509.Certificate{Subject: root.Subject}
	}
	signer, err := createDocumentSignerCertificate(signerKey, parent, parentKey, cfg)
	if err != nil {
		return nil, err
	}

	return &Issuer{
		Root:      root,
		RootKey:   rootKey,
		Signer:    signer,
		SignerKey: signerKey,
		now:       now,
	}, nil
}

func calcKID(pub *ecdsa.PublicKey) []byte {
	b := elliptic.Marshal(pub.Curve, pub.X, pub.Y)
	sum := sha1.Sum(b)
	return sum[:]
}

func createRootCertificate(key *ecdsa.PrivateKey, cfg *issuerConfig) (*x509.Certificate, error) {
	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: cfg.commonName, Country: []string{"UT"}},
		NotBefore:             cfg.rootNotBefore,
		NotAfter:              cfg.rootNotAfter,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLen:            0,
		MaxPathLenZero:        true,
		SubjectKeyId:          calcKID(&key.PublicKey),
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	return x509.ParseCertificate(derBytes)
}

func createDocumentSignerCertificate(key *ecdsa.PrivateKey, parent *x509.Certificate, parentKey *ecdsa.PrivateKey, cfg *issuerConfig) (*x509.Certificate, error) {
	// id-mdl-kp-mdlDS
	documentSigner := asn1.ObjectIdentifier([]int{1, 0, 18013, 5, 1, 2})
	template := x509.Certificate{
		SerialNumber:       big.NewInt(cfg.signerSerial),
		Subject:            pkix.Name{CommonName: "PID DS - UT 01", Country: []string{"UT"}},
		NotBefore:          cfg.signerNotBefore,
		NotAfter:           cfg.signerNotAfter,
		KeyUsage:           x509.KeyUsageDigitalSignature,
		UnknownExtKeyUsage: []asn1.ObjectIdentifier{documentSigner},
		SubjectKeyId:       calcKID(&key.PublicKey),
		AuthorityKeyId:     calcKID(&parentKey.PublicKey),
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, &template, parent, &key.PublicKey, parentKey)
	if err != nil {
		return nil, err
	}
	return x509.ParseCertificate(derBytes)
}
