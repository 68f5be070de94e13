package openid4vp

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/kokukuma/mdoc-rssp/document"
)

// https://openid.net/specs/openid-4-verifiable-presentations-1_0.html

// PresentationRequest is the body POSTed to the Verifier to start a
// cross-device presentation.
type PresentationRequest struct {
	Type                   string                          `json:"type"`
	Nonce                  string                          `json:"nonce"`
	PresentationDefinition document.PresentationDefinition `json:"presentation_definition"`
}

// PresentationResponse is the Verifier's answer to a PresentationRequest.
type PresentationResponse struct {
	ClientID       string `json:"client_id"`
	RequestURI     string `json:"request_uri"`
	PresentationID string `json:"presentation_id"`
}

type AuthorizationResponse struct {
	VPToken                string                 `json:"vp_token"`
	IDToken                string                 `json:"id_token,omitempty"`
	State                  string                 `json:"state,omitempty"`
	PresentationSubmission PresentationSubmission `json:"presentation_submission"`
}

type PresentationSubmission struct {
	ID            string      `json:"id"`
	DefinitionID  string      `json:"definition_id"`
	DescriptorMap interface{} `json:"descriptor_map"`
}

type Descriptor struct {
	ID     string `mapstructure:"id"`
	Format string `mapstructure:"format"`
	Path   string `mapstructure:"path"`
}

// Descriptors decodes descriptor_map, which wallets send either as an array
// or as a single object.
func (p PresentationSubmission) Descriptors() ([]Descriptor, error) {
	if p.DescriptorMap == nil {
		return nil, fmt.Errorf("descriptor_map is missing")
	}

	var descriptors []Descriptor
	if m, ok := p.DescriptorMap.(map[string]interface{}); ok {
		var d Descriptor
		if err := mapstructure.Decode(m, &d); err != nil {
			return nil, fmt.Errorf("failed to decode descriptor: %w", err)
		}
		return []Descriptor{d}, nil
	}
	if err := mapstructure.Decode(p.DescriptorMap, &descriptors); err != nil {
		return nil, fmt.Errorf("failed to decode descriptor_map: %w", err)
	}
	return descriptors, nil
}
