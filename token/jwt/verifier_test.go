package jwt_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	stderrors "errors"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	ikerrors "github.com/identitykit/identitykit-go/internal/errors"
	tokenjwt "github.com/identitykit/identitykit-go/token/jwt"
	"github.com/identitykit/identitykit-go/token/keys"
	"github.com/stretchr/testify/require"
)

const (
	testProjectID = "demo-project"
	testIssuer    = "https://session.identitykit.io/" + testProjectID
	testKeyID     = "test-key-2026"
)

// mapKeySource serves keys from memory, or a fixed error.
type mapKeySource struct {
	keys map[string]*rsa.PublicKey
	err  error
}

func (s *mapKeySource) Get(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if s.err != nil {
		return nil, s.err
	}
	key, ok := s.keys[kid]
	if !ok {
		return nil, keys.ErrKeyNotFound
	}
	return key, nil
}

type verifierFixture struct {
	signingKey *rsa.PrivateKey
	source     *mapKeySource
	verifier   *tokenjwt.Verifier
	now        time.Time
}

func newVerifierFixture(t *testing.T) *verifierFixture {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	source := &mapKeySource{keys: map[string]*rsa.PublicKey{testKeyID: &key.PublicKey}}
	verifier, err := tokenjwt.NewVerifier(testProjectID, source,
		tokenjwt.WithVerifierNowFunc(func() time.Time { return now }))
	require.NoError(t, err)

	return &verifierFixture{signingKey: key, source: source, verifier: verifier, now: now}
}

// signIDToken produces an identity token with sane defaults overridden by
// the supplied claims.
func (f *verifierFixture) signIDToken(t *testing.T, overrides map[string]any) string {
	t.Helper()
	claims := jwtlib.MapClaims{
		"iss": testIssuer,
		"aud": testProjectID,
		"sub": "enduser42",
		"iat": f.now.Add(-time.Minute).Unix(),
		"exp": f.now.Add(time.Hour).Unix(),
	}
	for k, v := range overrides {
		if v == nil {
			delete(claims, k)
			continue
		}
		claims[k] = v
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID
	signed, err := token.SignedString(f.signingKey)
	require.NoError(t, err)
	return signed
}

func TestVerifier_VerifyIDToken(t *testing.T) {
	t.Run("valid token returns the subject as UID", func(t *testing.T) {
		f := newVerifierFixture(t)
		decoded, err := f.verifier.VerifyIDToken(context.Background(), f.signIDToken(t, nil))
		require.NoError(t, err)
		require.Equal(t, "enduser42", decoded.UID)
		require.Equal(t, testIssuer, decoded.Issuer)
		require.Equal(t, testProjectID, decoded.Audience)
		require.Equal(t, f.now.Add(time.Hour).Unix(), decoded.Expires.Unix())
	})

	t.Run("custom claims are exposed", func(t *testing.T) {
		f := newVerifierFixture(t)
		decoded, err := f.verifier.VerifyIDToken(context.Background(), f.signIDToken(t, map[string]any{"tier": "gold"}))
		require.NoError(t, err)
		require.Equal(t, "gold", decoded.Claims["tier"])
	})

	t.Run("expired token", func(t *testing.T) {
		f := newVerifierFixture(t)
		token := f.signIDToken(t, map[string]any{"exp": f.now.Add(-time.Minute).Unix()})
		_, err := f.verifier.VerifyIDToken(context.Background(), token)
		require.ErrorIs(t, err, &ikerrors.InvalidIDTokenError{Reason: ikerrors.ReasonExpired})
		require.Contains(t, err.Error(), "obtain a fresh token")
	})

	t.Run("token issued in the future", func(t *testing.T) {
		f := newVerifierFixture(t)
		token := f.signIDToken(t, map[string]any{"iat": f.now.Add(10 * time.Minute).Unix()})
		_, err := f.verifier.VerifyIDToken(context.Background(), token)
		require.ErrorIs(t, err, &ikerrors.InvalidIDTokenError{Reason: ikerrors.ReasonIssuedInFuture})
	})

	t.Run("slightly future iat tolerated", func(t *testing.T) {
		f := newVerifierFixture(t)
		token := f.signIDToken(t, map[string]any{"iat": f.now.Add(time.Minute).Unix()})
		_, err := f.verifier.VerifyIDToken(context.Background(), token)
		require.NoError(t, err)
	})

	t.Run("wrong audience", func(t *testing.T) {
		f := newVerifierFixture(t)
		token := f.signIDToken(t, map[string]any{"aud": "other-project"})
		_, err := f.verifier.VerifyIDToken(context.Background(), token)
		require.ErrorIs(t, err, &ikerrors.InvalidIDTokenError{Reason: ikerrors.ReasonWrongAudience})
		require.Contains(t, err.Error(), "other-project")
	})

	t.Run("wrong issuer", func(t *testing.T) {
		f := newVerifierFixture(t)
		token := f.signIDToken(t, map[string]any{"iss": "https://evil.example.com/" + testProjectID})
		_, err := f.verifier.VerifyIDToken(context.Background(), token)
		require.ErrorIs(t, err, &ikerrors.InvalidIDTokenError{Reason: ikerrors.ReasonWrongIssuer})
	})

	t.Run("missing subject", func(t *testing.T) {
		f := newVerifierFixture(t)
		token := f.signIDToken(t, map[string]any{"sub": nil})
		_, err := f.verifier.VerifyIDToken(context.Background(), token)
		require.ErrorIs(t, err, &ikerrors.InvalidIDTokenError{Reason: ikerrors.ReasonBadSubject})
	})

	t.Run("none algorithm rejected", func(t *testing.T) {
		f := newVerifierFixture(t)
		token := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, jwtlib.MapClaims{
			"iss": testIssuer,
			"aud": testProjectID,
			"sub": "enduser42",
			"exp": f.now.Add(time.Hour).Unix(),
		})
		token.Header["kid"] = testKeyID
		signed, err := token.SignedString(jwtlib.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = f.verifier.VerifyIDToken(context.Background(), signed)
		require.ErrorIs(t, err, &ikerrors.InvalidIDTokenError{Reason: ikerrors.ReasonBadAlgorithm})
	})

	t.Run("signature from a different key", func(t *testing.T) {
		f := newVerifierFixture(t)
		otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)

		token := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, jwtlib.MapClaims{
			"iss": testIssuer,
			"aud": testProjectID,
			"sub": "enduser42",
			"exp": f.now.Add(time.Hour).Unix(),
		})
		token.Header["kid"] = testKeyID
		signed, err := token.SignedString(otherKey)
		require.NoError(t, err)

		_, err = f.verifier.VerifyIDToken(context.Background(), signed)
		require.ErrorIs(t, err, &ikerrors.InvalidIDTokenError{Reason: ikerrors.ReasonBadSignature})
	})

	t.Run("unknown key ID", func(t *testing.T) {
		f := newVerifierFixture(t)
		token := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, jwtlib.MapClaims{
			"iss": testIssuer,
			"aud": testProjectID,
			"sub": "enduser42",
			"exp": f.now.Add(time.Hour).Unix(),
		})
		token.Header["kid"] = "retired-key"
		signed, err := token.SignedString(f.signingKey)
		require.NoError(t, err)

		_, err = f.verifier.VerifyIDToken(context.Background(), signed)
		require.ErrorIs(t, err, &ikerrors.InvalidIDTokenError{Reason: ikerrors.ReasonBadSignature})
		require.Contains(t, err.Error(), "retired-key")
	})

	t.Run("malformed token", func(t *testing.T) {
		f := newVerifierFixture(t)
		for _, bad := range []string{"", "only.two", "not!!base64.not!!json.sig"} {
			_, err := f.verifier.VerifyIDToken(context.Background(), bad)
			require.ErrorIs(t, err, &ikerrors.InvalidIDTokenError{Reason: ikerrors.ReasonMalformed})
		}
	})

	t.Run("key set fetch failure is a CredentialError", func(t *testing.T) {
		f := newVerifierFixture(t)
		f.source.err = &ikerrors.CredentialError{Op: "key set", Message: "endpoint down"}

		_, err := f.verifier.VerifyIDToken(context.Background(), f.signIDToken(t, nil))
		var credErr *ikerrors.CredentialError
		require.ErrorAs(t, err, &credErr)

		var tokenErr *ikerrors.InvalidIDTokenError
		require.False(t, stderrors.As(err, &tokenErr))
	})
}

func TestNewVerifier(t *testing.T) {
	source := &mapKeySource{}

	t.Run("requires a project ID", func(t *testing.T) {
		_, err := tokenjwt.NewVerifier("", source)
		var invalid *ikerrors.InvalidCredentialError
		require.ErrorAs(t, err, &invalid)
		require.Contains(t, invalid.Message, "project ID")
	})

	t.Run("requires a key source", func(t *testing.T) {
		_, err := tokenjwt.NewVerifier(testProjectID, nil)
		var invalid *ikerrors.InvalidCredentialError
		require.ErrorAs(t, err, &invalid)
	})
}
