package document

import "github.com/kokukuma/mdoc-rssp/mdoc"

const (
	EudiPid  mdoc.DocType   = "eu.europa.ec.eudi.pid.1"
	EUDIPID1 mdoc.NameSpace = "eu.europa.ec.eudi.pid.1"
)

// EUDI PID elements requested for signer identification.
const (
	EudiFamilyName       mdoc.ElementIdentifier = "family_name"
	EudiGivenName        mdoc.ElementIdentifier = "given_name"
	EudiBirthDate        mdoc.ElementIdentifier = "birth_date"
	EudiAgeOver18        mdoc.ElementIdentifier = "age_over_18"
	EudiIssuingAuthority mdoc.ElementIdentifier = "issuing_authority"
	EudiIssuingCountry   mdoc.ElementIdentifier = "issuing_country"
)

// PIDElements lists the requested elements in the order they are asked for.
var PIDElements = []mdoc.ElementIdentifier{
	EudiFamilyName,
	EudiGivenName,
	EudiBirthDate,
	EudiAgeOver18,
	EudiIssuingAuthority,
	EudiIssuingCountry,
}
