package jwt

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/identitykit/identitykit-go/internal/config"
	ikerrors "github.com/identitykit/identitykit-go/internal/errors"
	"github.com/identitykit/identitykit-go/token/keys"
)

// iatTolerance allows for clock drift between the session service and
// the verifying process.
const iatTolerance = 5 * time.Minute

// IDToken is a verified identity token's decoded claim set.
type IDToken struct {
	UID      string
	Subject  string
	Issuer   string
	Audience string
	IssuedAt time.Time
	Expires  time.Time
	Claims   map[string]any
}

// Verifier checks inbound identity tokens against the platform's
// published signing keys.
type Verifier struct {
	projectID    string
	issuerPrefix string
	source       keys.Source
	nowFunc      func() time.Time
}

// VerifierOption modifies a Verifier.
type VerifierOption func(*Verifier)

// WithVerifierNowFunc sets the clock (primarily for testing).
func WithVerifierNowFunc(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		v.nowFunc = now
	}
}

// WithIssuerPrefix overrides the expected issuer prefix.
func WithIssuerPrefix(prefix string) VerifierOption {
	return func(v *Verifier) {
		v.issuerPrefix = prefix
	}
}

// NewVerifier creates a verifier for the given project.
func NewVerifier(projectID string, source keys.Source, options ...VerifierOption) (*Verifier, error) {
	if projectID == "" {
		return nil, ikerrors.NewInvalidCredential("a project ID is required to verify identity tokens")
	}
	if source == nil {
		return nil, ikerrors.NewInvalidCredential("a public key source is required to verify identity tokens")
	}

	v := &Verifier{
		projectID:    projectID,
		issuerPrefix: config.IssuerPrefix,
		source:       source,
		nowFunc:      time.Now,
	}
	for _, opt := range options {
		opt(v)
	}
	return v, nil
}

// VerifyIDToken parses and verifies an identity token. Every failed check
// carries a reason tag; key-set retrieval failures surface as
// CredentialError since they say nothing about the token itself.
func (v *Verifier) VerifyIDToken(ctx context.Context, idToken string) (*IDToken, error) {
	if idToken == "" {
		return nil, &ikerrors.InvalidIDTokenError{Reason: ikerrors.ReasonMalformed, Message: "token must be a non-empty string"}
	}

	parser := jwtlib.NewParser(jwtlib.WithoutClaimsValidation())
	parsed, err := parser.ParseWithClaims(idToken, jwtlib.MapClaims{}, func(t *jwtlib.Token) (any, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodRSA); !ok || t.Method.Alg() != keys.RS256 {
			return nil, &ikerrors.InvalidIDTokenError{
				Reason:  ikerrors.ReasonBadAlgorithm,
				Message: fmt.Sprintf("signing algorithm %v is not RS256", t.Header["alg"]),
			}
		}

		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, &ikerrors.InvalidIDTokenError{Reason: ikerrors.ReasonBadSignature, Message: `token has no "kid" header`}
		}

		key, err := v.source.Get(ctx, kid)
		if stderrors.Is(err, keys.ErrKeyNotFound) {
			return nil, &ikerrors.InvalidIDTokenError{
				Reason:  ikerrors.ReasonBadSignature,
				Message: fmt.Sprintf("no public key matches key ID %q", kid),
			}
		}
		if err != nil {
			return nil, err
		}
		return key, nil
	})
	if err != nil {
		return nil, classifyParseError(err)
	}

	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, &ikerrors.InvalidIDTokenError{Reason: ikerrors.ReasonMalformed, Message: "token claims are not a JSON object"}
	}
	return v.checkClaims(claims)
}

// classifyParseError maps golang-jwt parse failures onto the taxonomy. A
// typed error raised inside the keyfunc wins over the library's wrapper.
func classifyParseError(err error) error {
	var invalidToken *ikerrors.InvalidIDTokenError
	if stderrors.As(err, &invalidToken) {
		return invalidToken
	}
	var credentialErr *ikerrors.CredentialError
	if stderrors.As(err, &credentialErr) {
		return credentialErr
	}
	if stderrors.Is(err, jwtlib.ErrTokenMalformed) {
		return &ikerrors.InvalidIDTokenError{Reason: ikerrors.ReasonMalformed, Message: err.Error()}
	}
	return &ikerrors.InvalidIDTokenError{Reason: ikerrors.ReasonBadSignature, Message: err.Error()}
}

func (v *Verifier) checkClaims(claims jwtlib.MapClaims) (*IDToken, error) {
	now := v.nowFunc()

	exp, ok := claims["exp"].(float64)
	if !ok {
		return nil, &ikerrors.InvalidIDTokenError{Reason: ikerrors.ReasonMalformed, Message: `token has no "exp" claim`}
	}
	expires := time.Unix(int64(exp), 0)
	if !now.Before(expires) {
		return nil, &ikerrors.InvalidIDTokenError{
			Reason:  ikerrors.ReasonExpired,
			Message: fmt.Sprintf("token expired at %s; obtain a fresh token and retry", expires.UTC().Format(time.RFC3339)),
		}
	}

	var issuedAt time.Time
	if iat, ok := claims["iat"].(float64); ok {
		issuedAt = time.Unix(int64(iat), 0)
		if issuedAt.After(now.Add(iatTolerance)) {
			return nil, &ikerrors.InvalidIDTokenError{
				Reason:  ikerrors.ReasonIssuedInFuture,
				Message: fmt.Sprintf("token issued at %s, which is in the future", issuedAt.UTC().Format(time.RFC3339)),
			}
		}
	}

	aud, _ := claims["aud"].(string)
	if aud != v.projectID {
		return nil, &ikerrors.InvalidIDTokenError{
			Reason:  ikerrors.ReasonWrongAudience,
			Message: fmt.Sprintf("audience %q does not match project %q", aud, v.projectID),
		}
	}

	iss, _ := claims["iss"].(string)
	expectedIssuer := v.issuerPrefix + v.projectID
	if iss != expectedIssuer {
		return nil, &ikerrors.InvalidIDTokenError{
			Reason:  ikerrors.ReasonWrongIssuer,
			Message: fmt.Sprintf("issuer %q does not match %q", iss, expectedIssuer),
		}
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, &ikerrors.InvalidIDTokenError{Reason: ikerrors.ReasonBadSubject, Message: `token has no "sub" claim`}
	}
	if len(sub) > maxUIDLength {
		return nil, &ikerrors.InvalidIDTokenError{
			Reason:  ikerrors.ReasonBadSubject,
			Message: fmt.Sprintf("subject exceeds %d characters", maxUIDLength),
		}
	}

	return &IDToken{
		UID:      sub,
		Subject:  sub,
		Issuer:   iss,
		Audience: aud,
		IssuedAt: issuedAt,
		Expires:  expires,
		Claims:   map[string]any(claims),
	}, nil
}
