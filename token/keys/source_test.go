package keys_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	ikerrors "github.com/identitykit/identitykit-go/internal/errors"
	"github.com/identitykit/identitykit-go/token/keys"
	"github.com/stretchr/testify/require"
)

type keySetServer struct {
	server   *httptest.Server
	requests int32

	mu           sync.Mutex
	body         string
	cacheControl string
	status       int
}

func newKeySetServer(t *testing.T, body, cacheControl string) *keySetServer {
	t.Helper()
	s := &keySetServer{body: body, cacheControl: cacheControl, status: http.StatusOK}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&s.requests, 1)
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.cacheControl != "" {
			w.Header().Set("Cache-Control", s.cacheControl)
		}
		w.WriteHeader(s.status)
		_, _ = w.Write([]byte(s.body))
	}))
	t.Cleanup(s.server.Close)
	return s
}

func (s *keySetServer) requestCount() int32 {
	return atomic.LoadInt32(&s.requests)
}

func TestHTTPSource_Get(t *testing.T) {
	key := generateKey(t)
	certPEM := selfSignedCertPEM(t, key)
	keySetJSON := func(kid string) string {
		data, err := json.Marshal(map[string]string{kid: certPEM})
		require.NoError(t, err)
		return string(data)
	}

	t.Run("serves from the cache within max-age", func(t *testing.T) {
		ks := newKeySetServer(t, keySetJSON("kid-1"), "public, max-age=3600, must-revalidate")
		now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
		source := keys.NewHTTPSource(ks.server.URL, keys.WithNowFunc(func() time.Time { return now }))

		first, err := source.Get(context.Background(), "kid-1")
		require.NoError(t, err)
		require.True(t, first.Equal(&key.PublicKey))

		now = now.Add(59 * time.Minute)
		_, err = source.Get(context.Background(), "kid-1")
		require.NoError(t, err)
		require.EqualValues(t, 1, ks.requestCount())
	})

	t.Run("refetches once max-age has elapsed", func(t *testing.T) {
		ks := newKeySetServer(t, keySetJSON("kid-1"), "max-age=3600")
		now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
		source := keys.NewHTTPSource(ks.server.URL, keys.WithNowFunc(func() time.Time { return now }))

		_, err := source.Get(context.Background(), "kid-1")
		require.NoError(t, err)

		now = now.Add(61 * time.Minute)
		_, err = source.Get(context.Background(), "kid-1")
		require.NoError(t, err)
		require.EqualValues(t, 2, ks.requestCount())
	})

	t.Run("no cache-control header disables caching", func(t *testing.T) {
		ks := newKeySetServer(t, keySetJSON("kid-1"), "")
		source := keys.NewHTTPSource(ks.server.URL)

		_, err := source.Get(context.Background(), "kid-1")
		require.NoError(t, err)
		_, err = source.Get(context.Background(), "kid-1")
		require.NoError(t, err)
		require.EqualValues(t, 2, ks.requestCount())
	})

	t.Run("unknown key ID", func(t *testing.T) {
		ks := newKeySetServer(t, keySetJSON("kid-1"), "max-age=3600")
		source := keys.NewHTTPSource(ks.server.URL)

		_, err := source.Get(context.Background(), "kid-2")
		require.ErrorIs(t, err, keys.ErrKeyNotFound)
	})

	t.Run("endpoint failure is a CredentialError", func(t *testing.T) {
		ks := newKeySetServer(t, `{"error":"unavailable"}`, "")
		ks.mu.Lock()
		ks.status = http.StatusServiceUnavailable
		ks.mu.Unlock()
		source := keys.NewHTTPSource(ks.server.URL)

		_, err := source.Get(context.Background(), "kid-1")
		var credErr *ikerrors.CredentialError
		require.ErrorAs(t, err, &credErr)
		require.Contains(t, credErr.Message, "503")
	})

	t.Run("unparseable certificate is a CredentialError", func(t *testing.T) {
		ks := newKeySetServer(t, `{"kid-1":"not a certificate"}`, "max-age=3600")
		source := keys.NewHTTPSource(ks.server.URL)

		_, err := source.Get(context.Background(), "kid-1")
		var credErr *ikerrors.CredentialError
		require.ErrorAs(t, err, &credErr)
		require.Contains(t, credErr.Message, "kid-1")
	})

	t.Run("recovers after a failed fetch", func(t *testing.T) {
		ks := newKeySetServer(t, `oops`, "max-age=3600")
		ks.mu.Lock()
		ks.status = http.StatusInternalServerError
		ks.mu.Unlock()
		source := keys.NewHTTPSource(ks.server.URL)

		_, err := source.Get(context.Background(), "kid-1")
		require.Error(t, err)

		ks.mu.Lock()
		ks.status = http.StatusOK
		ks.body = keySetJSON("kid-1")
		ks.mu.Unlock()

		fetched, err := source.Get(context.Background(), "kid-1")
		require.NoError(t, err)
		require.True(t, fetched.Equal(&key.PublicKey))
	})
}
