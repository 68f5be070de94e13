package mdoc

import (
	"bytes"
	"context"
	"crypto/x509"
	"errors"
	"time"

	"github.com/ory/go-convenience/stringslice"
	"github.com/veraison/go-cose"

	"github.com/kokukuma/mdoc-rssp/pkg/clock"
	"github.com/kokukuma/mdoc-rssp/pkg/signererr"
)

// TrustAnchors resolves an issuer distinguished name to the trusted
// certificate with that subject.
type TrustAnchors interface {
	Lookup(issuerDN string) (*x509.Certificate, bool)
}

// RevocationChecker answers whether a certificate identified by issuer DN
// and hex serial number has been revoked.
type RevocationChecker interface {
	Revoked(ctx context.Context, issuerDN, serialHex string) (bool, error)
}

var supportedDigestAlgorithms = []string{"SHA-256", "SHA-384", "SHA-512"}

type VerifierOption func(*Verifier)

func WithClock(c clock.Clock) VerifierOption {
	return func(v *Verifier) {
		v.clock = c
	}
}

// WithDigestAlgorithms restricts the MSO digest algorithms that are accepted.
func WithDigestAlgorithms(algs ...string) VerifierOption {
	return func(v *Verifier) {
		v.digestAlgorithms = algs
	}
}

type Verifier struct {
	anchors          TrustAnchors
	revocation       RevocationChecker
	clock            clock.Clock
	digestAlgorithms []string
}

func NewVerifier(anchors TrustAnchors, revocation RevocationChecker, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		anchors:          anchors,
		revocation:       revocation,
		clock:            clock.Real(),
		digestAlgorithms: supportedDigestAlgorithms,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify runs the ISO 18013-5 9.3.1 issuer data authentication steps in
// order and stops at the first failure. A nil result means the document is
// accepted; any other result is a *Rejection.
func (v *Verifier) Verify(ctx context.Context, doc *Document) error {
	now := v.clock.Now()

	// 1. Validate the certificate included in the MSO header according to 9.3.3.
	leaf, rej := v.verifyCertificate(ctx, doc.IssuerSigned, now)
	if rej != nil {
		return rej
	}

	// 2. Verify the digital signature of the IssuerAuth structure using the
	//    public key from the certificate validated in step 1.
	if rej := verifyIssuerAuth(doc.IssuerSigned, leaf); rej != nil {
		return rej
	}

	mso, err := doc.IssuerSigned.MobileSecurityObject()
	if err != nil {
		return reject(ReasonIntegrity, signererr.CodeIntegrityMismatch, err, "failed to read MobileSecurityObject")
	}

	// 3. Calculate the digest of every returned IssuerSignedItem and compare
	//    it with the digest recorded in the MSO.
	if rej := v.verifyDigests(doc.IssuerSigned, mso); rej != nil {
		return rej
	}

	// 4. Verify that the DocType in the MSO matches the DocType of the document.
	if doc.DocType != mso.DocType {
		return reject(ReasonDefault, signererr.CodeDocTypeMismatch, nil,
			"docType unmatched: document=%s mso=%s", doc.DocType, mso.DocType)
	}

	// 5. Validate ValidityInfo: 'signed' lies within the certificate validity,
	//    and validFrom <= now <= validUntil.
	return validateValidityInfo(mso.ValidityInfo, leaf, now)
}

func (v *Verifier) verifyCertificate(ctx context.Context, issuerSigned IssuerSigned, now time.Time) (*x509.Certificate, *Rejection) {
	leaf, err := issuerSigned.DocumentSigningCertificate()
	if err != nil {
		return nil, reject(ReasonDefault, signererr.CodeCertificateInvalid, err, "failed to get document signing certificate")
	}

	issuerDN := leaf.Issuer.String()
	anchor, ok := v.anchors.Lookup(issuerDN)
	if !ok {
		return nil, reject(ReasonDefault, signererr.CodeUntrustedIssuer, nil, "issuer not trusted: %s", issuerDN)
	}

	if err := anchor.CheckSignatureFrom(anchor); err != nil {
		return nil, reject(ReasonDefault, signererr.CodeCertificateInvalid, err, "trust anchor is not self-signed: %s", issuerDN)
	}
	if !withinValidity(anchor, now) {
		return nil, reject(ReasonDefault, signererr.CodeCertificateInvalid, nil,
			"trust anchor outside validity: NotBefore=%v NotAfter=%v", anchor.NotBefore, anchor.NotAfter)
	}
	if err := leaf.CheckSignatureFrom(anchor); err != nil {
		return nil, reject(ReasonDefault, signererr.CodeCertificateInvalid, err, "document signer not issued by %s", issuerDN)
	}
	if !withinValidity(leaf, now) {
		return nil, reject(ReasonDefault, signererr.CodeCertificateInvalid, nil,
			"document signer outside validity: NotBefore=%v NotAfter=%v", leaf.NotBefore, leaf.NotAfter)
	}

	serialHex := leaf.SerialNumber.Text(16)
	revoked, err := v.revocation.Revoked(ctx, issuerDN, serialHex)
	if err != nil {
		return nil, reject(ReasonDefault, signererr.CodeCertificateInvalid, err, "failed to check revocation status")
	}
	if revoked {
		return nil, reject(ReasonDefault, signererr.CodeRevokedCertificate, nil, "certificate revoked: issuer=%s serial=%s", issuerDN, serialHex)
	}
	return leaf, nil
}

func withinValidity(cert *x509.Certificate, now time.Time) bool {
	return !now.Before(cert.NotBefore) && !now.After(cert.NotAfter)
}

func verifyIssuerAuth(issuerSigned IssuerSigned, leaf *x509.Certificate) *Rejection {
	alg, err := issuerSigned.Alg()
	if err != nil {
		return reject(ReasonSignature, signererr.CodeSignatureInvalid, err, "failed to get alg")
	}

	verifier, err := cose.NewVerifier(alg, leaf.PublicKey)
	if err != nil {
		return reject(ReasonSignature, signererr.CodeSignatureInvalid, err, "failed to create verifier for %v", alg)
	}

	if err := issuerSigned.IssuerAuth.Verify(nil, verifier); err != nil {
		return reject(ReasonSignature, signererr.CodeSignatureInvalid, err, "issuerAuth signature does not verify")
	}
	return nil
}

func (v *Verifier) verifyDigests(issuerSigned IssuerSigned, mso *MobileSecurityObject) *Rejection {
	if !stringslice.Has(v.digestAlgorithms, mso.DigestAlgorithm) {
		return reject(ReasonIntegrity, signererr.CodeIntegrityMismatch, nil, "unsupported digest algorithm: %s", mso.DigestAlgorithm)
	}

	for ns, itemBytes := range issuerSigned.NameSpaces {
		for _, itemByte := range itemBytes {
			item, err := itemByte.IssuerSignedItem()
			if err != nil {
				return reject(ReasonIntegrity, signererr.CodeIntegrityMismatch, err, "failed to get IssuerSignedItem")
			}

			digest, err := mso.GetDigest(ns, item.DigestID)
			if err != nil {
				return reject(ReasonIntegrity, signererr.CodeIntegrityMismatch, err, "no digest for %s", item.ElementIdentifier)
			}

			calc, err := itemByte.Digest(mso.DigestAlgorithm)
			if err != nil {
				return reject(ReasonIntegrity, signererr.CodeIntegrityMismatch, err, "failed to digest %s", item.ElementIdentifier)
			}

			if !bytes.Equal(digest, calc) {
				return reject(ReasonIntegrity, signererr.CodeIntegrityMismatch, nil,
					"digest unmatched: element=%s digestID=%d", item.ElementIdentifier, item.DigestID)
			}
		}
	}
	return nil
}

var errZeroValidity = errors.New("validity info is incomplete")

func validateValidityInfo(info ValidityInfo, leaf *x509.Certificate, now time.Time) error {
	if info.Signed.IsZero() || info.ValidFrom.IsZero() || info.ValidUntil.IsZero() {
		return reject(ReasonDefault, signererr.CodeValidityWindow, errZeroValidity, "invalid validityInfo")
	}
	if info.Signed.Before(leaf.NotBefore) || info.Signed.After(leaf.NotAfter) {
		return reject(ReasonDefault, signererr.CodeValidityWindow, nil,
			"signed date %v outside certificate validity: NotBefore=%v NotAfter=%v", info.Signed, leaf.NotBefore, leaf.NotAfter)
	}
	if now.Before(info.ValidFrom) || now.After(info.ValidUntil) {
		return reject(ReasonDefault, signererr.CodeValidityWindow, nil,
			"outside validity: now=%v validFrom=%v validUntil=%v", now, info.ValidFrom, info.ValidUntil)
	}
	return nil
}
