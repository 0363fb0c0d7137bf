package keys

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	ikerrors "github.com/identitykit/identitykit-go/internal/errors"
	"github.com/rs/zerolog"
)

// ErrKeyNotFound is returned by a Source when the key set was fetched
// successfully but contains no entry for the requested key ID.
var ErrKeyNotFound = stderrors.New("no public key matches the requested key ID")

// Source provides the public signing key for a given key ID.
type Source interface {
	Get(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

// HTTPSource fetches the platform's kid -> PEM certificate map and caches
// it locally for as long as the response's Cache-Control max-age allows.
type HTTPSource struct {
	url        string
	httpClient *http.Client
	nowFunc    func() time.Time
	logger     zerolog.Logger

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	expiresAt time.Time
}

// HTTPSourceOption modifies an HTTPSource.
type HTTPSourceOption func(*HTTPSource)

// WithHTTPClient sets the HTTP client used to fetch the key set.
func WithHTTPClient(client *http.Client) HTTPSourceOption {
	return func(s *HTTPSource) {
		s.httpClient = client
	}
}

// WithNowFunc sets the clock (primarily for testing).
func WithNowFunc(now func() time.Time) HTTPSourceOption {
	return func(s *HTTPSource) {
		s.nowFunc = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) HTTPSourceOption {
	return func(s *HTTPSource) {
		s.logger = logger
	}
}

// NewHTTPSource creates a key source backed by the given key-set URL.
func NewHTTPSource(url string, options ...HTTPSourceOption) *HTTPSource {
	s := &HTTPSource{
		url:        url,
		httpClient: http.DefaultClient,
		nowFunc:    time.Now,
		logger:     zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Get returns the public key for kid, refreshing the cached key set when
// its Cache-Control lifetime has elapsed.
func (s *HTTPSource) Get(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.keys == nil || !s.nowFunc().Before(s.expiresAt) {
		if err := s.fetchLocked(ctx); err != nil {
			return nil, err
		}
	}

	key, ok := s.keys[kid]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return key, nil
}

func (s *HTTPSource) fetchLocked(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return &ikerrors.CredentialError{Op: "key set", Message: "failed to build key-set request", Cause: err}
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &ikerrors.CredentialError{Op: "key set", Message: "failed to fetch public keys", Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ikerrors.CredentialError{Op: "key set", Message: "failed to read key-set response", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ikerrors.CredentialError{
			Op:      "key set",
			Message: "key-set endpoint returned status " + strconv.Itoa(resp.StatusCode),
		}
	}

	var pemCerts map[string]string
	if err := json.Unmarshal(body, &pemCerts); err != nil {
		return &ikerrors.CredentialError{Op: "key set", Message: "failed to decode key-set response", Cause: err}
	}

	parsed := make(map[string]*rsa.PublicKey, len(pemCerts))
	for kid, pemCert := range pemCerts {
		key, err := ParseRSAPublicKeyFromCertPEM([]byte(pemCert))
		if err != nil {
			return &ikerrors.CredentialError{Op: "key set", Message: "failed to parse certificate for key " + kid, Cause: err}
		}
		parsed[kid] = key
	}

	maxAge := maxAgeFromCacheControl(resp.Header.Get("Cache-Control"))
	s.keys = parsed
	s.expiresAt = s.nowFunc().Add(maxAge)
	s.logger.Debug().Int("keys", len(parsed)).Dur("max_age", maxAge).Msg("refreshed public key set")
	return nil
}

// maxAgeFromCacheControl extracts the max-age directive. A missing or
// unparseable directive yields zero, which disables caching.
func maxAgeFromCacheControl(header string) time.Duration {
	for _, directive := range strings.Split(header, ",") {
		directive = strings.TrimSpace(directive)
		value, found := strings.CutPrefix(directive, "max-age=")
		if !found {
			continue
		}
		seconds, err := strconv.Atoi(value)
		if err != nil || seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	return 0
}
