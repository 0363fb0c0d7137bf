package credentials

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/identitykit/identitykit-go/internal/config"
	ikerrors "github.com/identitykit/identitykit-go/internal/errors"
	"github.com/rs/zerolog"
)

const (
	metadataTokenPath = "/v1/service-accounts/default/token"
	metadataFlavor    = "identitykit"

	// Absence of the metadata service is an expected outcome, not a
	// condition to wait out.
	metadataTimeout = 500 * time.Millisecond
)

// MetadataCredential obtains tokens from the well-known local metadata
// service available inside hosted environments.
type MetadataCredential struct {
	host       string
	httpClient *http.Client
	logger     zerolog.Logger
}

// MetadataCredentialOption modifies a MetadataCredential.
type MetadataCredentialOption func(*MetadataCredential)

// WithMetadataHost overrides the metadata service host.
func WithMetadataHost(host string) MetadataCredentialOption {
	return func(c *MetadataCredential) {
		c.host = host
	}
}

// WithMetadataHTTPClient sets the HTTP client. The default enforces the
// aggressive metadata timeout; overriding callers take on that concern.
func WithMetadataHTTPClient(client *http.Client) MetadataCredentialOption {
	return func(c *MetadataCredential) {
		c.httpClient = client
	}
}

// WithMetadataLogger sets the logger.
func WithMetadataLogger(logger zerolog.Logger) MetadataCredentialOption {
	return func(c *MetadataCredential) {
		c.logger = logger
	}
}

// NewMetadataCredential creates an ambient credential.
func NewMetadataCredential(options ...MetadataCredentialOption) *MetadataCredential {
	c := &MetadataCredential{
		host:       config.DefaultEndpoints().MetadataHost,
		httpClient: &http.Client{Timeout: metadataTimeout},
		logger:     zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// FetchAccessToken queries the metadata service. An unreachable service
// fails fast and is reported as "not running in a hosted environment"
// rather than a generic network error.
func (c *MetadataCredential) FetchAccessToken(ctx context.Context) (*AccessToken, error) {
	url := "http://" + c.host + metadataTokenPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &ikerrors.CredentialError{Op: "metadata", Message: "failed to build metadata request", Cause: err}
	}
	req.Header.Set("Metadata-Flavor", metadataFlavor)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("host", c.host).Msg("metadata service unreachable")
		return nil, &ikerrors.CredentialError{
			Op:      "metadata",
			Message: "metadata service unreachable: not running in a hosted environment",
			Cause:   err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ikerrors.CredentialError{Op: "metadata", Message: "failed to read metadata response", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ikerrors.CredentialError{
			Op:      "metadata",
			Message: "metadata service returned status " + strconv.Itoa(resp.StatusCode),
		}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, &ikerrors.CredentialError{Op: "metadata", Message: "failed to decode metadata response", Cause: err}
	}
	if tr.AccessToken == "" {
		return nil, &ikerrors.CredentialError{Op: "metadata", Message: "metadata service returned an empty access_token"}
	}

	return &AccessToken{
		Token:     tr.AccessToken,
		ExpiresIn: time.Duration(tr.ExpiresIn) * time.Second,
	}, nil
}
