// Package credentials turns the supported credential sources — a
// service-account certificate, the ambient metadata service, an
// authorized-user refresh token, or a caller-supplied fetch function —
// into bearer access tokens for the platform APIs.
package credentials

import (
	"context"
	"time"
)

// AccessToken is a bearer token together with its remaining lifetime as
// reported by the issuing authority. Immutable once produced.
type AccessToken struct {
	Token     string
	ExpiresIn time.Duration
}

// Credential is a source of access tokens. Implementations own their
// secret material exclusively and are safe for concurrent use.
type Credential interface {
	FetchAccessToken(ctx context.Context) (*AccessToken, error)
}

// certificateProvider is the optional capability of credentials backed by
// a service-account certificate.
type certificateProvider interface {
	Certificate() *Certificate
}

// CertificateFrom returns the credential's signing certificate, or nil
// when the credential cannot sign tokens locally.
func CertificateFrom(c Credential) *Certificate {
	if provider, ok := c.(certificateProvider); ok {
		return provider.Certificate()
	}
	return nil
}

// tokenResponse is the wire shape of the token and metadata endpoints.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}
