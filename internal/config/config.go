// Package config resolves the platform endpoint set used by the SDK.
// Every endpoint can be overridden through an IDENTITYKIT_* environment
// variable, which the test suites and self-hosted deployments rely on.
package config

import "os"

const (
	tokenURLVar     = "IDENTITYKIT_TOKEN_URL"
	keySetURLVar    = "IDENTITYKIT_KEYSET_URL"
	userAPIVar      = "IDENTITYKIT_USER_API_URL"
	metadataHostVar = "IDENTITYKIT_METADATA_HOST"
)

// Endpoints is the set of platform URLs a single App talks to.
type Endpoints struct {
	// TokenURL is the OAuth2 token endpoint used by the JWT-bearer grant.
	TokenURL string
	// KeySetURL serves the identity-token signing keys as a kid -> PEM
	// certificate map.
	KeySetURL string
	// UserAPIBaseURL is the root of the user-management REST API.
	UserAPIBaseURL string
	// MetadataHost is the well-known local metadata service host queried
	// by the ambient credential.
	MetadataHost string
}

// TokenAudience is the audience claim minted into custom tokens. The
// session service rejects custom tokens carrying any other audience.
const TokenAudience = "https://auth.identitykit.io/identitykit.v1.TokenService"

// IssuerPrefix is concatenated with the project ID to form the expected
// issuer of inbound identity tokens.
const IssuerPrefix = "https://session.identitykit.io/"

// DefaultEndpoints returns the production endpoint set with any
// environment overrides applied.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		TokenURL:       GetEnv(tokenURLVar, "https://auth.identitykit.io/oauth2/v1/token"),
		KeySetURL:      GetEnv(keySetURLVar, "https://auth.identitykit.io/v1/publicKeys"),
		UserAPIBaseURL: GetEnv(userAPIVar, "https://api.identitykit.io/identity/v1"),
		MetadataHost:   GetEnv(metadataHostVar, "metadata.internal"),
	}
}

// GetEnv returns the environment variable's value, or defaultValue when unset or empty.
func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
