package openid4vp

import (
	"encoding/base64"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/ory/go-convenience/stringslice"

	"github.com/kokukuma/mdoc-rssp/document"
	"github.com/kokukuma/mdoc-rssp/mdoc"
	"github.com/kokukuma/mdoc-rssp/pkg/signererr"
)

var pathIndex = regexp.MustCompile(`\d+`)

// Presentation is a decoded vp_token together with the document the
// presentation submission points at.
type Presentation struct {
	Response *mdoc.DeviceResponse
	Document *mdoc.Document
	Position int
}

type Decoder struct {
	definitionID string
	descriptorID string
	formats      []string
}

// NewDecoder returns a Decoder expecting the PID presentation definition.
func NewDecoder() *Decoder {
	return &Decoder{
		definitionID: document.PIDDefinitionID,
		descriptorID: document.PIDDescriptorID,
		formats:      []string{document.FormatMsoMdoc},
	}
}

// Decode validates the presentation submission of a Verifier envelope and
// returns the document it links to. Failures are *signererr.Error with a
// linkage or token code; no cryptographic check happens here.
func (d *Decoder) Decode(envelope []byte) (*Presentation, error) {
	var ar AuthorizationResponse
	if err := json.Unmarshal(envelope, &ar); err != nil {
		return nil, signererr.Wrap(err, signererr.CodeSubmissionLinkage, "failed to parse envelope as JSON")
	}

	submission := ar.PresentationSubmission
	if submission.DefinitionID != d.definitionID {
		return nil, signererr.Newf(signererr.CodeSubmissionLinkage, "unexpected definition_id: %q", submission.DefinitionID)
	}

	descriptors, err := submission.Descriptors()
	if err != nil {
		return nil, signererr.Wrap(err, signererr.CodeSubmissionLinkage, "invalid descriptor_map")
	}
	descriptor, ok := d.findDescriptor(descriptors)
	if !ok {
		return nil, signererr.Newf(signererr.CodeSubmissionLinkage, "no %s descriptor for %s", strings.Join(d.formats, "|"), d.descriptorID)
	}

	position, err := ParsePath(descriptor.Path)
	if err != nil {
		return nil, signererr.Wrap(err, signererr.CodeSubmissionLinkage, "unresolvable descriptor path")
	}

	raw, err := decodeVPToken(ar.VPToken)
	if err != nil {
		return nil, signererr.Wrap(err, signererr.CodeVPTokenMalformed, "failed to decode vp_token")
	}
	resp, err := mdoc.Parse(raw)
	if err != nil {
		return nil, signererr.Wrap(err, signererr.CodeVPTokenMalformed, "failed to parse device response")
	}
	if resp.Status != mdoc.StatusOK {
		return nil, signererr.Newf(signererr.CodeStatusInvalid, "device response status %d", resp.Status)
	}

	doc, err := resp.DocumentAt(position)
	if err != nil {
		return nil, signererr.Wrap(err, signererr.CodeSubmissionLinkage, "descriptor path points outside the device response")
	}

	return &Presentation{Response: resp, Document: doc, Position: position}, nil
}

func (d *Decoder) findDescriptor(descriptors []Descriptor) (Descriptor, bool) {
	for _, desc := range descriptors {
		if desc.ID == d.descriptorID && stringslice.Has(d.formats, desc.Format) {
			return desc, true
		}
	}
	return Descriptor{}, false
}

// ParsePath resolves a descriptor path to a document position. "$" is the
// whole token, i.e. position 0; otherwise the first integer in the path is
// the index.
func ParsePath(path string) (int, error) {
	if path == "$" {
		return 0, nil
	}
	m := pathIndex.FindString(path)
	if m == "" {
		return 0, signererr.Newf(signererr.CodeSubmissionLinkage, "no index in path %q", path)
	}
	return strconv.Atoi(m)
}

// decodeVPToken accepts Base64URL with or without padding.
func decodeVPToken(token string) ([]byte, error) {
	if token == "" {
		return nil, signererr.New(signererr.CodeVPTokenMalformed, "vp_token is empty")
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err == nil {
		return decoded, nil
	}
	return base64.URLEncoding.DecodeString(token)
}
