// Package trust holds the trusted mdoc issuers and the revocation oracle
// consulted when validating a document signer certificate.
package trust

import (
	"crypto/sha256"
	"crypto/x509"
	"fmt"
	"sort"

	"github.com/kokukuma/mdoc-rssp/pkg/pki"
)

// IssuerSet maps subject DN to trusted issuer certificate. It is built once
// and never modified, so lookups need no locking.
type IssuerSet struct {
	bySubject map[string]*x509.Certificate
}

// CertInfo describes a trusted issuer for listings.
type CertInfo struct {
	Subject     string `json:"subject"`
	Issuer      string `json:"issuer"`
	Serial      string `json:"serial"`
	ValidFrom   string `json:"valid_from"`
	ValidTo     string `json:"valid_to"`
	Fingerprint string `json:"fingerprint"`
}

func NewIssuerSet(certs ...*x509.Certificate) *IssuerSet {
	s := &IssuerSet{bySubject: make(map[string]*x509.Certificate, len(certs))}
	for _, cert := range certs {
		s.bySubject[cert.Subject.String()] = cert
	}
	return s
}

// LoadIssuerSet reads every .pem file in dir. Unreadable files are returned
// in skipped so the caller can report them.
func LoadIssuerSet(dir string) (set *IssuerSet, skipped map[string]error, err error) {
	certs, skipped, err := pki.LoadCertificates(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read trusted issuers directory: %w", err)
	}
	return NewIssuerSet(certs...), skipped, nil
}

func (s *IssuerSet) Lookup(issuerDN string) (*x509.Certificate, bool) {
	cert, ok := s.bySubject[issuerDN]
	return cert, ok
}

func (s *IssuerSet) Len() int {
	return len(s.bySubject)
}

// List returns the trusted issuers sorted by subject.
func (s *IssuerSet) List() []CertInfo {
	infos := make([]CertInfo, 0, len(s.bySubject))
	for _, cert := range s.bySubject {
		infos = append(infos, CertInfo{
			Subject:     cert.Subject.String(),
			Issuer:      cert.Issuer.String(),
			Serial:      cert.SerialNumber.Text(16),
			ValidFrom:   cert.NotBefore.Format("2006-01-02"),
			ValidTo:     cert.NotAfter.Format("2006-01-02"),
			Fingerprint: fmt.Sprintf("%X", sha256.Sum256(cert.Raw)),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Subject < infos[j].Subject })
	return infos
}
