package mdoctest

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"

	"github.com/kokukuma/mdoc-rssp/pkg/hash"
)

const (
	PIDDocType   = "eu.europa.ec.eudi.pid.1"
	PIDNameSpace = "eu.europa.ec.eudi.pid.1"
	MDLDocType   = "org.iso.18013.5.1.mDL"
)

// FullDate is the CBOR tag 1004 form ISO 18013-5 uses for birth_date.
func FullDate(date string) cbor.Tag {
	return cbor.Tag{Number: 1004, Content: date}
}

// DefaultClaims is a complete PID disclosure for an adult holder.
func DefaultClaims() map[string]interface{} {
	return map[string]interface{}{
		"family_name":       "Mustermann",
		"given_name":        "Erika",
		"birth_date":        FullDate("1964-08-12"),
		"age_over_18":       true,
		"issuing_authority": "UT",
		"issuing_country":   "UT",
	}
}

type documentConfig struct {
	claims          map[string]interface{}
	docType         string
	msoDocType      string
	digestAlgorithm string
	signed          time.Time
	validFrom       time.Time
	validUntil      time.Time
	status          uint
	precedingDocs   int
	tamperSignature bool
	tamperDigest    string
	tamperValue     string
	omitX5Chain     bool
}

type Option func(*documentConfig)

func WithClaim(name string, value interface{}) Option {
	return func(c *documentConfig) {
		c.claims[name] = value
	}
}

func WithoutClaim(name string) Option {
	return func(c *documentConfig) {
		delete(c.claims, name)
	}
}

// WithDocType sets the document-level docType only; the MSO keeps its own.
func WithDocType(docType string) Option {
	return func(c *documentConfig) {
		c.docType = docType
	}
}

func WithMSODocType(docType string) Option {
	return func(c *documentConfig) {
		c.msoDocType = docType
	}
}

func WithDigestAlgorithm(alg string) Option {
	return func(c *documentConfig) {
		c.digestAlgorithm = alg
	}
}

func WithValidity(signed, validFrom, validUntil time.Time) Option {
	return func(c *documentConfig) {
		c.signed = signed
		c.validFrom = validFrom
		c.validUntil = validUntil
	}
}

func WithStatus(status uint) Option {
	return func(c *documentConfig) {
		c.status = status
	}
}

// WithPrecedingDocuments places n mDL documents before the PID document.
func WithPrecedingDocuments(n int) Option {
	return func(c *documentConfig) {
		c.precedingDocs = n
	}
}

// WithTamperedSignature flips a byte of the issuerAuth signature after signing.
func WithTamperedSignature() Option {
	return func(c *documentConfig) {
		c.tamperSignature = true
	}
}

// WithTamperedDigest records a wrong digest for element in the signed MSO.
func WithTamperedDigest(element string) Option {
	return func(c *documentConfig) {
		c.tamperDigest = element
	}
}

// WithTamperedValue changes the disclosed value of element after the MSO
// has been signed over the original.
func WithTamperedValue(element string) Option {
	return func(c *documentConfig) {
		c.tamperValue = element
	}
}

func WithoutX5Chain() Option {
	return func(c *documentConfig) {
		c.omitX5Chain = true
	}
}

// DeviceResponse returns the CBOR encoding of a device response holding one
// PID document signed by the issuer's document signer.
func (i *Issuer) DeviceResponse(opts ...Option) ([]byte, error) {
	cfg := &documentConfig{
		claims:          DefaultClaims(),
		docType:         PIDDocType,
		msoDocType:      PIDDocType,
		digestAlgorithm: "SHA-256",
		signed:          i.now.Add(-time.Hour),
		validFrom:       i.now.Add(-time.Hour),
		validUntil:      i.now.AddDate(0, 0, 30),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	var docs []interface{}
	for n := 0; n < cfg.precedingDocs; n++ {
		doc, err := i.document(&documentConfig{
			claims:          map[string]interface{}{"family_name": "Doe"},
			docType:         MDLDocType,
			msoDocType:      MDLDocType,
			digestAlgorithm: cfg.digestAlgorithm,
			signed:          cfg.signed,
			validFrom:       cfg.validFrom,
			validUntil:      cfg.validUntil,
		}, "org.iso.18013.5.1")
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	doc, err := i.document(cfg, PIDNameSpace)
	if err != nil {
		return nil, err
	}
	docs = append(docs, doc)

	return cbor.Marshal(map[string]interface{}{
		"version":   "1.0",
		"documents": docs,
		"status":    cfg.status,
	})
}

// VPToken is DeviceResponse encoded the way wallets put it in vp_token.
func (i *Issuer) VPToken(opts ...Option) (string, error) {
	b, err := i.DeviceResponse(opts...)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (i *Issuer) document(cfg *documentConfig, nameSpace string) (map[string]interface{}, error) {
	names := make([]string, 0, len(cfg.claims))
	for name := range cfg.claims {
		names = append(names, name)
	}
	sort.Strings(names)

	items := make([]cbor.Tag, 0, len(names))
	digests := map[uint][]byte{}
	for id, name := range names {
		random := make([]byte, 16)
		if _, err := rand.Read(random); err != nil {
			return nil, err
		}
		item := map[string]interface{}{
			"digestID":          uint(id),
			"random":            random,
			"elementIdentifier": name,
			"elementValue":      cfg.claims[name],
		}
		inner, err := cbor.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal item %s: %w", name, err)
		}
		tagged, err := cbor.Marshal(cbor.Tag{Number: 24, Content: inner})
		if err != nil {
			return nil, err
		}
		digest, err := hash.Digest(tagged, cfg.digestAlgorithm)
		if err != nil {
			// unsupported algorithms still get a digest so the verifier sees them
			digest = hash.Sum256(tagged)
		}
		if name == cfg.tamperDigest {
			digest[0] ^= 0xff
		}
		digests[uint(id)] = digest

		if name == cfg.tamperValue {
			item["elementValue"] = "tampered"
			if inner, err = cbor.Marshal(item); err != nil {
				return nil, err
			}
		}
		items = append(items, cbor.Tag{Number: 24, Content: inner})
	}

	mso := map[string]interface{}{
		"version":         "1.0",
		"digestAlgorithm": cfg.digestAlgorithm,
		"valueDigests":    map[string]interface{}{nameSpace: digests},
		"docType":         cfg.msoDocType,
		"validityInfo": map[string]interface{}{
			"signed":     tdate(cfg.signed),
			"validFrom":  tdate(cfg.validFrom),
			"validUntil": tdate(cfg.validUntil),
		},
	}
	msoBytes, err := cbor.Marshal(mso)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal mso: %w", err)
	}
	payload, err := cbor.Marshal(cbor.Tag{Number: 24, Content: msoBytes})
	if err != nil {
		return nil, err
	}

	unprotected := cose.UnprotectedHeader{}
	if !cfg.omitX5Chain {
		unprotected[cose.HeaderLabelX5Chain] = i.Signer.Raw
	}
	issuerAuth := &cose.UntaggedSign1Message{
		Headers: cose.Headers{
			Protected:   cose.ProtectedHeader{cose.HeaderLabelAlgorithm: cose.AlgorithmES256},
			Unprotected: unprotected,
		},
		Payload: payload,
	}
	signer, err := cose.NewSigner(cose.AlgorithmES256, i.SignerKey)
	if err != nil {
		return nil, err
	}
	if err := issuerAuth.Sign(rand.Reader, nil, signer); err != nil {
		return nil, fmt.Errorf("failed to sign issuerAuth: %w", err)
	}
	if cfg.tamperSignature {
		issuerAuth.Signature[len(issuerAuth.Signature)-1] ^= 0x01
	}

	return map[string]interface{}{
		"docType": cfg.docType,
		"issuerSigned": map[string]interface{}{
			"nameSpaces": map[string]interface{}{nameSpace: items},
			"issuerAuth": issuerAuth,
		},
	}, nil
}

func tdate(t time.Time) cbor.Tag {
	return cbor.Tag{Number: 0, Content: t.UTC().Truncate(time.Second).Format(time.RFC3339)}
}

// Envelope is the Verifier's JSON response carrying vp_token and its
// presentation submission.
func Envelope(vpToken, definitionID, descriptorID, path string) ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"vp_token": vpToken,
		"presentation_submission": map[string]interface{}{
			"id":            "f8d38a5e-4a0c-4f1c-9c57-4b8a1d3ee2a1",
			"definition_id": definitionID,
			"descriptor_map": []map[string]interface{}{
				{"id": descriptorID, "format": "mso_mdoc", "path": path},
			},
		},
	})
}
