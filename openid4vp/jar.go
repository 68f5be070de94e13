package openid4vp

import (
	"fmt"
	"net/url"
)

// WalletScheme is the custom scheme EUDI wallets register for OpenID4VP.
const WalletScheme = "eudi-openid4vp://"

// JWTSecuredAuthorizeRequest is a by-reference authorization request: the
// wallet fetches the signed request object from RequestURI.
type JWTSecuredAuthorizeRequest struct {
	AuthorizeEndpoint string
	ClientID          string `json:"client_id"`
	RequestURI        string `json:"request_uri"`
}

func (a *JWTSecuredAuthorizeRequest) String() string {
	return fmt.Sprintf(
		"%s?client_id=%s&request_uri=%s",
		a.AuthorizeEndpoint, a.ClientID, url.QueryEscape(a.RequestURI))
}

// DeepLink builds the wallet link for a request object served by the
// Verifier at address.
func DeepLink(address, clientID, requestURI string) string {
	req := JWTSecuredAuthorizeRequest{
		AuthorizeEndpoint: WalletScheme + address,
		ClientID:          clientID,
		RequestURI:        requestURI,
	}
	return req.String()
}
