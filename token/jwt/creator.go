// Package jwt is the signed-token engine: it mints custom authentication
// tokens for end users and verifies inbound identity tokens.
package jwt

import (
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/identitykit/identitykit-go/credentials"
	"github.com/identitykit/identitykit-go/internal/config"
	ikerrors "github.com/identitykit/identitykit-go/internal/errors"
	"github.com/pkg/errors"
)

const (
	customTokenExpiry = time.Hour
	customClaimsKey   = "claims"
	maxUIDLength      = 128
)

// reservedClaims are the payload keys a custom token owns: the RFC 7519
// registered claims plus the two keys the engine writes itself.
var reservedClaims = []string{"aud", "claims", "exp", "iat", "iss", "jti", "nbf", "sub", "uid"}

// Creator mints custom authentication tokens signed with a
// service-account certificate.
type Creator struct {
	cert     *credentials.Certificate
	audience string
	nowFunc  func() time.Time
}

// CreatorOption modifies a Creator.
type CreatorOption func(*Creator)

// WithCreatorNowFunc sets the clock. Custom tokens are deterministic
// under a fixed clock, which the golden tests rely on.
func WithCreatorNowFunc(now func() time.Time) CreatorOption {
	return func(c *Creator) {
		c.nowFunc = now
	}
}

// NewCreator creates a token creator over a certificate credential's
// certificate.
func NewCreator(cert *credentials.Certificate, options ...CreatorOption) (*Creator, error) {
	if cert == nil || cert.PrivateKey == nil {
		return nil, ikerrors.NewInvalidCredential("must initialize the app with a certificate credential to create custom tokens")
	}

	c := &Creator{
		cert:     cert,
		audience: config.TokenAudience,
		nowFunc:  time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// CreateCustomToken builds and signs a custom token for uid. Developer
// claims, when present, are nested under the dedicated "claims" key and
// must not collide with a reserved claim name.
func (c *Creator) CreateCustomToken(uid string, developerClaims map[string]any) (string, error) {
	if err := validateUID(uid); err != nil {
		return "", err
	}
	if err := validateDeveloperClaims(developerClaims); err != nil {
		return "", err
	}

	now := c.nowFunc()
	claims := jwtlib.MapClaims{
		"iss": c.cert.ClientEmail,
		"sub": c.cert.ClientEmail,
		"aud": c.audience,
		"iat": now.Unix(),
		"exp": now.Add(customTokenExpiry).Unix(),
		"uid": uid,
	}
	if len(developerClaims) > 0 {
		claims[customClaimsKey] = developerClaims
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, claims)
	signed, err := token.SignedString(c.cert.PrivateKey)
	if err != nil {
		return "", errors.Wrap(err, "[Creator.CreateCustomToken] signing")
	}
	return signed, nil
}

func validateUID(uid string) error {
	if uid == "" {
		return &ikerrors.InvalidArgumentError{Argument: "uid", Message: "must be a non-empty string"}
	}
	if len(uid) > maxUIDLength {
		return &ikerrors.InvalidArgumentError{Argument: "uid", Message: fmt.Sprintf("must not exceed %d characters", maxUIDLength)}
	}
	for _, r := range uid {
		if !isAlphanumeric(r) {
			return &ikerrors.InvalidArgumentError{Argument: "uid", Message: "must contain only alphanumeric characters"}
		}
	}
	return nil
}

func validateDeveloperClaims(developerClaims map[string]any) error {
	if len(developerClaims) == 0 {
		return nil
	}
	for _, reserved := range reservedClaims {
		if _, present := developerClaims[reserved]; present {
			return &ikerrors.InvalidArgumentError{
				Argument: "developerClaims",
				Message:  fmt.Sprintf("claim %q is reserved and cannot be specified", reserved),
			}
		}
	}
	return nil
}

func isAlphanumeric(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
