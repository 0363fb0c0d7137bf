package credentials

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/identitykit/identitykit-go/internal/config"
	ikerrors "github.com/identitykit/identitykit-go/internal/errors"
	"golang.org/x/oauth2"
)

// authorizedUserFile is the JSON shape written by the platform CLI's
// interactive login flow.
type authorizedUserFile struct {
	Type         string `json:"type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`
}

// RefreshTokenCredential exchanges a long-lived authorized-user refresh
// token for short-lived access tokens.
type RefreshTokenCredential struct {
	conf         *oauth2.Config
	refreshToken string
	nowFunc      func() time.Time
}

// RefreshTokenCredentialOption modifies a RefreshTokenCredential.
type RefreshTokenCredentialOption func(*RefreshTokenCredential)

// WithRefreshTokenURL overrides the token endpoint.
func WithRefreshTokenURL(tokenURL string) RefreshTokenCredentialOption {
	return func(c *RefreshTokenCredential) {
		c.conf.Endpoint.TokenURL = tokenURL
	}
}

// WithRefreshNowFunc sets the clock (primarily for testing).
func WithRefreshNowFunc(now func() time.Time) RefreshTokenCredentialOption {
	return func(c *RefreshTokenCredential) {
		c.nowFunc = now
	}
}

// NewRefreshTokenCredential parses an authorized-user JSON blob.
func NewRefreshTokenCredential(data []byte, options ...RefreshTokenCredentialOption) (*RefreshTokenCredential, error) {
	var af authorizedUserFile
	if err := json.Unmarshal(data, &af); err != nil {
		return nil, ikerrors.NewInvalidCredential("failed to parse authorized-user file: %v", err)
	}
	if af.ClientID == "" {
		return nil, ikerrors.NewInvalidCredential("authorized-user file must contain a non-empty %q field", "client_id")
	}
	if af.ClientSecret == "" {
		return nil, ikerrors.NewInvalidCredential("authorized-user file must contain a non-empty %q field", "client_secret")
	}
	if af.RefreshToken == "" {
		return nil, ikerrors.NewInvalidCredential("authorized-user file must contain a non-empty %q field", "refresh_token")
	}

	c := &RefreshTokenCredential{
		conf: &oauth2.Config{
			ClientID:     af.ClientID,
			ClientSecret: af.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: config.DefaultEndpoints().TokenURL},
		},
		refreshToken: af.RefreshToken,
		nowFunc:      time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// NewRefreshTokenCredentialFromFile reads and parses an authorized-user file.
func NewRefreshTokenCredentialFromFile(path string, options ...RefreshTokenCredentialOption) (*RefreshTokenCredential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ikerrors.NewInvalidCredential("failed to parse authorized-user file %q: %v", path, err)
	}
	return NewRefreshTokenCredential(data, options...)
}

// FetchAccessToken performs the refresh-token grant.
func (c *RefreshTokenCredential) FetchAccessToken(ctx context.Context) (*AccessToken, error) {
	source := c.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: c.refreshToken})
	tok, err := source.Token()
	if err != nil {
		return nil, &ikerrors.CredentialError{Op: "refresh grant", Message: "refresh-token exchange failed", Cause: err}
	}

	expiresIn := time.Hour
	if !tok.Expiry.IsZero() {
		expiresIn = tok.Expiry.Sub(c.nowFunc())
	}
	if expiresIn < 0 {
		expiresIn = 0
	}
	return &AccessToken{Token: tok.AccessToken, ExpiresIn: expiresIn}, nil
}
