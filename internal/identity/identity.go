// Package identity turns a verified PID document into the identity of the
// wallet holder and binds it to a local user.
package identity

import (
	"crypto/subtle"
	"encoding/base64"
	"strings"
	"time"

	"github.com/kokukuma/mdoc-rssp/document"
	"github.com/kokukuma/mdoc-rssp/mdoc"
	"github.com/kokukuma/mdoc-rssp/pkg/hash"
	"github.com/kokukuma/mdoc-rssp/pkg/signererr"
)

type VerifiedIdentity struct {
	FamilyName       string
	GivenName        string
	BirthDate        string
	IssuingCountry   string
	IssuingAuthority string
	AgeOver18        bool
	Hash             string
}

var requiredClaims = []mdoc.ElementIdentifier{
	document.EudiFamilyName,
	document.EudiGivenName,
	document.EudiBirthDate,
	document.EudiIssuingCountry,
	document.EudiAgeOver18,
}

// Extract reads the PID claims of an accepted document. Missing claims are
// reported before the age check.
func Extract(doc *mdoc.Document) (*VerifiedIdentity, error) {
	items, err := doc.IssuerSigned.GetIssuerSignedItems(document.EUDIPID1)
	if err != nil {
		return nil, signererr.Wrap(err, signererr.CodeIncompleteClaims, "no PID namespace")
	}

	claims := map[mdoc.ElementIdentifier]mdoc.ElementValue{}
	for _, item := range items {
		claims[item.ElementIdentifier] = item.Value()
	}

	id := &VerifiedIdentity{}
	var missing []string
	text := func(e mdoc.ElementIdentifier) string {
		s, ok := claimString(claims[e])
		if !ok {
			missing = append(missing, string(e))
		}
		return s
	}
	id.FamilyName = text(document.EudiFamilyName)
	id.GivenName = text(document.EudiGivenName)
	id.BirthDate = text(document.EudiBirthDate)
	id.IssuingCountry = text(document.EudiIssuingCountry)
	id.IssuingAuthority, _ = claimString(claims[document.EudiIssuingAuthority])

	ageOver18, ok := claims[document.EudiAgeOver18].(bool)
	if !ok {
		missing = append(missing, string(document.EudiAgeOver18))
	}
	id.AgeOver18 = ageOver18

	if len(missing) > 0 {
		return nil, signererr.Newf(signererr.CodeIncompleteClaims, "missing claims: %s", strings.Join(missing, ", "))
	}
	if !id.AgeOver18 {
		return nil, signererr.New(signererr.CodeNotEligible, "age_over_18 is false")
	}

	id.Hash = Hash(id.FamilyName, id.GivenName, id.BirthDate, id.IssuingCountry)
	return id, nil
}

func claimString(v mdoc.ElementValue) (string, bool) {
	switch v := v.(type) {
	case string:
		return v, v != ""
	case time.Time:
		return v.Format("2006-01-02"), !v.IsZero()
	}
	return "", false
}

// Hash is the stable pseudonym of a wallet holder: Base64 (standard, padded)
// of SHA-256 over "familyName;givenName;birthDate;issuingCountry" with the
// values exactly as disclosed and birthDate as YYYY-MM-DD. Stored users are
// matched on it, so the form must not change.
func Hash(familyName, givenName, birthDate, issuingCountry string) string {
	input := strings.Join([]string{familyName, givenName, birthDate, issuingCountry}, ";")
	return base64.StdEncoding.EncodeToString(hash.Sum256([]byte(input)))
}

// CompareOwnership reports whether the identity proven in a presentation is
// the one on file for user.
func CompareOwnership(id *VerifiedIdentity, user *User) bool {
	if id == nil || user == nil || user.Hash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(id.Hash), []byte(user.Hash)) == 1
}
