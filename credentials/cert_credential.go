package credentials

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/identitykit/identitykit-go/internal/config"
	ikerrors "github.com/identitykit/identitykit-go/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	jwtBearerGrant  = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	assertionExpiry = time.Hour
)

// defaultScopes are requested for every service-account exchange; the
// user API rejects tokens missing the identity scope.
var defaultScopes = []string{
	"https://api.identitykit.io/auth/identity",
	"https://api.identitykit.io/auth/userinfo.email",
}

// CertificateCredential exchanges a signed JWT assertion for an access
// token via the OAuth2 JWT-bearer grant.
type CertificateCredential struct {
	cert       *Certificate
	tokenURL   string
	scopes     []string
	httpClient *http.Client
	nowFunc    func() time.Time
	logger     zerolog.Logger
}

// CertificateCredentialOption modifies a CertificateCredential.
type CertificateCredentialOption func(*CertificateCredential)

// WithTokenURL overrides the token endpoint.
func WithTokenURL(tokenURL string) CertificateCredentialOption {
	return func(c *CertificateCredential) {
		c.tokenURL = tokenURL
	}
}

// WithScopes overrides the requested scopes.
func WithScopes(scopes ...string) CertificateCredentialOption {
	return func(c *CertificateCredential) {
		c.scopes = scopes
	}
}

// WithHTTPClient sets the HTTP client used for the exchange.
func WithHTTPClient(client *http.Client) CertificateCredentialOption {
	return func(c *CertificateCredential) {
		c.httpClient = client
	}
}

// WithNowFunc sets the clock (primarily for testing).
func WithNowFunc(now func() time.Time) CertificateCredentialOption {
	return func(c *CertificateCredential) {
		c.nowFunc = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) CertificateCredentialOption {
	return func(c *CertificateCredential) {
		c.logger = logger
	}
}

// NewCertificateCredential creates a credential backed by a parsed
// service-account certificate.
func NewCertificateCredential(cert *Certificate, options ...CertificateCredentialOption) (*CertificateCredential, error) {
	if cert == nil || cert.PrivateKey == nil {
		return nil, ikerrors.NewInvalidCredential("certificate with a private key is required")
	}

	c := &CertificateCredential{
		cert:       cert,
		tokenURL:   config.DefaultEndpoints().TokenURL,
		scopes:     defaultScopes,
		httpClient: http.DefaultClient,
		nowFunc:    time.Now,
		logger:     zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Certificate exposes the signing certificate to the token engine.
func (c *CertificateCredential) Certificate() *Certificate {
	return c.cert
}

// FetchAccessToken signs a fresh assertion and exchanges it at the token
// endpoint.
func (c *CertificateCredential) FetchAccessToken(ctx context.Context) (*AccessToken, error) {
	assertion, err := c.signedAssertion()
	if err != nil {
		return nil, errors.Wrap(err, "[CertificateCredential.FetchAccessToken] signing assertion")
	}

	form := url.Values{
		"grant_type": {jwtBearerGrant},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &ikerrors.CredentialError{Op: "token exchange", Message: "failed to build token request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ikerrors.CredentialError{Op: "token exchange", Message: "request to token endpoint failed", Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ikerrors.CredentialError{Op: "token exchange", Message: "failed to read token response", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ikerrors.CredentialError{
			Op:      "token exchange",
			Message: "token endpoint returned status " + strconv.Itoa(resp.StatusCode) + ": " + snippet(body),
		}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, &ikerrors.CredentialError{Op: "token exchange", Message: "failed to decode token response", Cause: err}
	}
	if tr.AccessToken == "" {
		return nil, &ikerrors.CredentialError{Op: "token exchange", Message: "token endpoint returned an empty access_token"}
	}

	c.logger.Debug().Str("client_email", c.cert.ClientEmail).Msg("exchanged service-account assertion")
	return &AccessToken{
		Token:     tr.AccessToken,
		ExpiresIn: time.Duration(tr.ExpiresIn) * time.Second,
	}, nil
}

func (c *CertificateCredential) signedAssertion() (string, error) {
	now := c.nowFunc()
	claims := jwtlib.MapClaims{
		"iss":   c.cert.ClientEmail,
		"aud":   c.tokenURL,
		"scope": strings.Join(c.scopes, " "),
		"iat":   now.Unix(),
		"exp":   now.Add(assertionExpiry).Unix(),
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, claims)
	signed, err := token.SignedString(c.cert.PrivateKey)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign JWT assertion")
	}
	return signed, nil
}

// snippet truncates a response body for inclusion in error messages.
func snippet(body []byte) string {
	const max = 200
	s := string(body)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
