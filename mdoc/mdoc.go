package mdoc

import (
	"crypto/x509"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"

	"github.com/kokukuma/mdoc-rssp/pkg/hash"
)

type DocType string

type NameSpace string

type ElementIdentifier string

type ElementValue interface{}

// StatusOK is the DeviceResponse status for a successful presentation.
const StatusOK uint = 0

type DeviceResponse struct {
	Version   string     `json:"version"`
	Documents []Document `json:"documents,omitempty"`
	Status    uint       `json:"status"`
}

// Parse decodes a CBOR encoded DeviceResponse.
func Parse(data []byte) (*DeviceResponse, error) {
	var resp DeviceResponse
	if err := cbor.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal device response: %w", err)
	}
	return &resp, nil
}

func (d DeviceResponse) GetDocument(docType DocType) (*Document, error) {
	for i := range d.Documents {
		if d.Documents[i].DocType == docType {
			return &d.Documents[i], nil
		}
	}
	return nil, fmt.Errorf("failed to find doc: doctype=%s", docType)
}

// DocumentAt returns the document at the position a presentation submission
// path resolved to.
func (d DeviceResponse) DocumentAt(position int) (*Document, error) {
	if position < 0 || position >= len(d.Documents) {
		return nil, fmt.Errorf("no document at position %d of %d", position, len(d.Documents))
	}
	return &d.Documents[position], nil
}

type Document struct {
	DocType      DocType      `json:"docType"`
	IssuerSigned IssuerSigned `json:"issuerSigned"`
}

// GetElementValue returns the disclosed value of an element. Tagged values
// such as full-date are returned untagged.
func (d *Document) GetElementValue(namespace NameSpace, elementIdentifier ElementIdentifier) (ElementValue, error) {
	items, err := d.IssuerSigned.GetIssuerSignedItems(namespace)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if item.ElementIdentifier == elementIdentifier {
			return item.Value(), nil
		}
	}
	return nil, fmt.Errorf("element %s not found in namespace %s", elementIdentifier, namespace)
}

type IssuerSigned struct {
	NameSpaces IssuerNameSpaces          `json:"nameSpaces,omitempty"`
	IssuerAuth cose.UntaggedSign1Message `json:"issuerAuth"`
}

func (i *IssuerSigned) GetIssuerSignedItems(ns NameSpace) ([]IssuerSignedItem, error) {
	itemBytes, ok := i.NameSpaces[ns]
	if !ok || len(itemBytes) == 0 {
		return nil, fmt.Errorf("namespace %s not found", ns)
	}
	items := make([]IssuerSignedItem, 0, len(itemBytes))
	for _, b := range itemBytes {
		item, err := b.IssuerSignedItem()
		if err != nil {
			return nil, fmt.Errorf("failed to parse issuerSignedItem: %w", err)
		}
		items = append(items, *item)
	}
	return items, nil
}

func (i *IssuerSigned) Alg() (cose.Algorithm, error) {
	if i.IssuerAuth.Headers.Protected == nil {
		return 0, fmt.Errorf("protected header is nil")
	}
	return i.IssuerAuth.Headers.Protected.Algorithm()
}

func (i *IssuerSigned) DocumentSigningCertificate() (*x509.Certificate, error) {
	certificates, err := i.DocumentSigningCertificateChain()
	if err != nil {
		return nil, err
	}
	return certificates[0], nil
}

// DocumentSigningCertificateChain reads x5chain from the unprotected header.
// A single certificate is a bstr, a chain is an array of bstr.
func (i *IssuerSigned) DocumentSigningCertificateChain() ([]*x509.Certificate, error) {
	rawX5Chain, ok := i.IssuerAuth.Headers.Unprotected[cose.HeaderLabelX5Chain]
	if !ok {
		return nil, fmt.Errorf("x5chain not found in unprotected headers")
	}

	var rawX5ChainBytes [][]byte
	switch v := rawX5Chain.(type) {
	case []byte:
		rawX5ChainBytes = [][]byte{v}
	case [][]byte:
		rawX5ChainBytes = v
	case []interface{}:
		for _, e := range v {
			b, ok := e.([]byte)
			if !ok {
				return nil, fmt.Errorf("unexpected x5chain entry type: %T", e)
			}
			rawX5ChainBytes = append(rawX5ChainBytes, b)
		}
	default:
		return nil, fmt.Errorf("unexpected x5chain type: %T", rawX5Chain)
	}

	if len(rawX5ChainBytes) == 0 {
		return nil, fmt.Errorf("empty x5chain")
	}

	certs := make([]*x509.Certificate, 0, len(rawX5ChainBytes))
	for _, certData := range rawX5ChainBytes {
		cert, err := x509.ParseCertificate(certData)
		if err != nil {
			return nil, fmt.Errorf("error parsing certificate: %w", err)
		}
		certs = append(certs, cert)
	}
	return certs, nil
}

// MobileSecurityObject decodes the MSO carried as tag 24 in the issuerAuth payload.
func (i *IssuerSigned) MobileSecurityObject() (*MobileSecurityObject, error) {
	if i.IssuerAuth.Payload == nil {
		return nil, fmt.Errorf("missing payload")
	}

	var taggedData cbor.Tag
	if err := cbor.Unmarshal(i.IssuerAuth.Payload, &taggedData); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tagged data: %w", err)
	}
	if taggedData.Number != 24 {
		return nil, fmt.Errorf("unexpected payload tag: %d", taggedData.Number)
	}
	content, ok := taggedData.Content.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected content type: %T", taggedData.Content)
	}

	var mso MobileSecurityObject
	if err := cbor.Unmarshal(content, &mso); err != nil {
		return nil, fmt.Errorf("failed to unmarshal MSO: %w", err)
	}
	return &mso, nil
}

type IssuerNameSpaces map[NameSpace][]IssuerSignedItemBytes

// IssuerSignedItemBytes holds the encoded IssuerSignedItem found inside its
// tag 24 wrapper.
type IssuerSignedItemBytes cbor.RawMessage

func (i IssuerSignedItemBytes) IssuerSignedItem() (*IssuerSignedItem, error) {
	if len(i) == 0 {
		return nil, fmt.Errorf("empty issuer signed item bytes")
	}
	var item IssuerSignedItem
	if err := cbor.Unmarshal(i, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal issuer signed item: %w", err)
	}
	return &item, nil
}

// Digest hashes the tag 24 encoding of the item, which is what the MSO
// value digests are computed over.
func (i IssuerSignedItemBytes) Digest(alg string) ([]byte, error) {
	v, err := cbor.Marshal(cbor.Tag{
		Number:  24,
		Content: []byte(i),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tagged CBOR: %w", err)
	}
	return hash.Digest(v, alg)
}

type IssuerSignedItem struct {
	DigestID          DigestID          `json:"digestID"`
	Random            []byte            `json:"random"`
	ElementIdentifier ElementIdentifier `json:"elementIdentifier"`
	ElementValue      ElementValue      `json:"elementValue"`
}

func (i IssuerSignedItem) Value() ElementValue {
	if tag, ok := i.ElementValue.(cbor.Tag); ok {
		return tag.Content
	}
	return i.ElementValue
}

type MobileSecurityObject struct {
	Version         string       `json:"version"`
	DigestAlgorithm string       `json:"digestAlgorithm"`
	ValueDigests    ValueDigests `json:"valueDigests"`
	DocType         DocType      `json:"docType"`
	ValidityInfo    ValidityInfo `json:"validityInfo"`
}

func (m *MobileSecurityObject) GetDigest(ns NameSpace, digestID DigestID) (Digest, error) {
	digests, ok := m.ValueDigests[ns]
	if !ok {
		return nil, fmt.Errorf("value digests not found: %s", ns)
	}
	digest, ok := digests[digestID]
	if !ok {
		return nil, fmt.Errorf("digest not found: %s, %d", ns, digestID)
	}
	return digest, nil
}

type ValueDigests map[NameSpace]DigestIDs

type DigestIDs map[DigestID]Digest

type ValidityInfo struct {
	Signed         time.Time `json:"signed"`
	ValidFrom      time.Time `json:"validFrom"`
	ValidUntil     time.Time `json:"validUntil"`
	ExpectedUpdate time.Time `json:"expectedUpdate,omitempty"`
}

type DigestID uint32

type Digest []byte
