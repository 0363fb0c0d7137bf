package credentials

import (
	"context"

	ikerrors "github.com/identitykit/identitykit-go/internal/errors"
)

// TokenFunc is a caller-supplied token source.
type TokenFunc func(ctx context.Context) (*AccessToken, error)

// CustomCredential wraps a caller-supplied fetch function and validates
// the shape of what it returns. Malformed results are the most common
// integration bug, so the errors here name the offending field instead of
// surfacing a downstream type failure.
type CustomCredential struct {
	fetch TokenFunc
}

// NewCustomCredential creates a credential from a fetch function.
func NewCustomCredential(fetch TokenFunc) (*CustomCredential, error) {
	if fetch == nil {
		return nil, ikerrors.NewInvalidCredential("a token fetch function is required")
	}
	return &CustomCredential{fetch: fetch}, nil
}

// FetchAccessToken invokes the wrapped function and validates its result.
// A zero ExpiresIn is legal and means the token is already stale.
func (c *CustomCredential) FetchAccessToken(ctx context.Context) (*AccessToken, error) {
	tok, err := c.fetch(ctx)
	if err != nil {
		return nil, &ikerrors.CredentialError{Op: "custom", Message: "token fetch function failed", Cause: err}
	}
	if tok == nil {
		return nil, &ikerrors.CredentialError{Op: "custom", Message: "no access token available"}
	}
	if tok.Token == "" {
		return nil, &ikerrors.CredentialError{Op: "custom", Message: `invalid access token: "access_token" must be a non-empty string`}
	}
	if tok.ExpiresIn < 0 {
		return nil, &ikerrors.CredentialError{Op: "custom", Message: `invalid access token: "expires_in" must be a non-negative number`}
	}

	copied := *tok
	return &copied, nil
}
