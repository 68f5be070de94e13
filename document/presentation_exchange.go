package document

import (
	"fmt"

	"github.com/kokukuma/mdoc-rssp/mdoc"
)

// https://identity.foundation/presentation-exchange/spec/v2.0.0/

const (
	// PIDDefinitionID identifies the presentation definition sent to the
	// Verifier; the submission must reference it back.
	PIDDefinitionID = "32f54163-7166-48f1-93d8-ff217bdb0653"

	// PIDDescriptorID is the input descriptor id for the EUDI PID.
	PIDDescriptorID = string(EudiPid)

	FormatMsoMdoc = "mso_mdoc"
)

var MsoMdocAlgorithms = []string{"ES256", "ES384", "ES512", "EdDSA"}

type PresentationDefinition struct {
	ID               string            `json:"id"`
	InputDescriptors []InputDescriptor `json:"input_descriptors"`
}

type InputDescriptor struct {
	ID          string      `json:"id"`
	Name        string      `json:"name,omitempty"`
	Purpose     string      `json:"purpose,omitempty"`
	Format      Format      `json:"format"`
	Constraints Constraints `json:"constraints"`
}

type Constraints struct {
	LimitDisclosure string      `json:"limit_disclosure,omitempty"`
	Fields          []PathField `json:"fields,omitempty"`
}

type Format struct {
	MsoMdoc MsoMdoc `json:"mso_mdoc"`
}

type MsoMdoc struct {
	Alg []string `json:"alg,omitempty"`
}

type PathField struct {
	Path           []string `json:"path"`
	IntentToRetain bool     `json:"intent_to_retain"`
}

// FormatFields turns element identifiers into mdoc path fields.
func FormatFields(ns mdoc.NameSpace, retain bool, ids ...mdoc.ElementIdentifier) []PathField {
	result := make([]PathField, 0, len(ids))
	for _, id := range ids {
		result = append(result, PathField{
			Path:           []string{fmt.Sprintf("$['%s']['%s']", ns, id)},
			IntentToRetain: retain,
		})
	}
	return result
}

// PIDDefinition is the presentation definition the service sends for both
// authentication and credential authorization.
func PIDDefinition() PresentationDefinition {
	return PresentationDefinition{
		ID: PIDDefinitionID,
		InputDescriptors: []InputDescriptor{
			{
				ID:      PIDDescriptorID,
				Name:    "EUDI PID",
				Purpose: "We need to verify your identity",
				Format: Format{
					MsoMdoc: MsoMdoc{Alg: MsoMdocAlgorithms},
				},
				Constraints: Constraints{
					Fields: FormatFields(EUDIPID1, false, PIDElements...),
				},
			},
		},
	}
}
