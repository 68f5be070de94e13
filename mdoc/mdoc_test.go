package mdoc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kokukuma/mdoc-rssp/pkg/mdoctest"
)

func TestParseDeviceResponse(t *testing.T) {
	now := time.Now()
	issuer, err := mdoctest.NewIssuer(now)
	require.NoError(t, err)

	raw, err := issuer.DeviceResponse(mdoctest.WithPrecedingDocuments(1))
	require.NoError(t, err)

	resp, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "1.0", resp.Version)
	assert.Equal(t, StatusOK, resp.Status)
	require.Len(t, resp.Documents, 2)

	doc, err := resp.GetDocument(mdoctest.PIDDocType)
	require.NoError(t, err)
	assert.Equal(t, DocType(mdoctest.PIDDocType), doc.DocType)

	at, err := resp.DocumentAt(1)
	require.NoError(t, err)
	assert.Equal(t, doc.DocType, at.DocType)

	_, err = resp.DocumentAt(2)
	assert.Error(t, err)
	_, err = resp.GetDocument("org.example.unknown")
	assert.Error(t, err)
}

func TestDocumentElements(t *testing.T) {
	now := time.Now()
	issuer, err := mdoctest.NewIssuer(now)
	require.NoError(t, err)

	raw, err := issuer.DeviceResponse()
	require.NoError(t, err)
	resp, err := Parse(raw)
	require.NoError(t, err)
	doc := &resp.Documents[0]

	ns := NameSpace(mdoctest.PIDNameSpace)
	tests := []struct {
		element ElementIdentifier
		want    ElementValue
	}{
		{"family_name", "Mustermann"},
		{"given_name", "Erika"},
		{"birth_date", "1964-08-12"},
		{"age_over_18", true},
	}
	for _, tt := range tests {
		t.Run(string(tt.element), func(t *testing.T) {
			got, err := doc.GetElementValue(ns, tt.element)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err = doc.GetElementValue(ns, "portrait")
	assert.Error(t, err)
	_, err = doc.GetElementValue("org.iso.18013.5.1", "family_name")
	assert.Error(t, err)
}

func TestIssuerSignedAccessors(t *testing.T) {
	now := time.Now()
	issuer, err := mdoctest.NewIssuer(now)
	require.NoError(t, err)

	raw, err := issuer.DeviceResponse()
	require.NoError(t, err)
	resp, err := Parse(raw)
	require.NoError(t, err)
	issuerSigned := resp.Documents[0].IssuerSigned

	cert, err := issuerSigned.DocumentSigningCertificate()
	require.NoError(t, err)
	assert.Equal(t, issuer.Signer.Raw, cert.Raw)

	mso, err := issuerSigned.MobileSecurityObject()
	require.NoError(t, err)
	assert.Equal(t, "SHA-256", mso.DigestAlgorithm)
	assert.Equal(t, DocType(mdoctest.PIDDocType), mso.DocType)
	assert.Len(t, mso.ValueDigests[NameSpace(mdoctest.PIDNameSpace)], 6)
	assert.WithinDuration(t, now.Add(-time.Hour), mso.ValidityInfo.Signed, 2*time.Second)

	items, err := issuerSigned.GetIssuerSignedItems(NameSpace(mdoctest.PIDNameSpace))
	require.NoError(t, err)
	for _, item := range items {
		digest, err := mso.GetDigest(NameSpace(mdoctest.PIDNameSpace), item.DigestID)
		require.NoError(t, err)
		assert.Len(t, digest, 32)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse([]byte{0xff, 0x00})
	assert.Error(t, err)
}
