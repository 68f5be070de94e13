package trust

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// NeverRevoked treats every certificate as valid. For development setups
// without a CA to ask.
type NeverRevoked struct{}

func (NeverRevoked) Revoked(context.Context, string, string) (bool, error) {
	return false, nil
}

type revocationStatus struct {
	IssuerDN         string `json:"issuer_dn"`
	SerialNumber     string `json:"serial_number"`
	Revoked          bool   `json:"revoked"`
	RevocationReason string `json:"revocation_reason,omitempty"`
	Message          string `json:"message,omitempty"`
}

// HTTPRevocationChecker asks a CA REST API for the revocation status of a
// certificate: GET <baseURL>/<issuerDN>/<serialHex>/revocationstatus.
type HTTPRevocationChecker struct {
	baseURL string
	client  HTTPClient
}

func NewHTTPRevocationChecker(baseURL string, timeout time.Duration, client HTTPClient) *HTTPRevocationChecker {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPRevocationChecker{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}
}

func (c *HTTPRevocationChecker) Revoked(ctx context.Context, issuerDN, serialHex string) (bool, error) {
	u := fmt.Sprintf("%s/%s/%s/revocationstatus", c.baseURL, url.PathEscape(issuerDN), url.PathEscape(serialHex))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to query revocation status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("revocation status answered %d", resp.StatusCode)
	}

	var status revocationStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return false, fmt.Errorf("failed to decode revocation status: %w", err)
	}
	if status.IssuerDN != issuerDN || !strings.EqualFold(status.SerialNumber, serialHex) {
		return false, fmt.Errorf("revocation status is for %s/%s", status.IssuerDN, status.SerialNumber)
	}
	return status.Revoked, nil
}
