// Package token owns the cached access token for an App: it serializes
// concurrent refreshes, stamps expiry with a safety skew, and fans out
// change notifications to registered listeners.
package token

import (
	"context"
	"sync"
	"time"

	"github.com/identitykit/identitykit-go/credentials"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// defaultExpirySkew is subtracted from a token's reported lifetime so a
// token is treated as stale slightly before the issuer would reject it.
const defaultExpirySkew = 30 * time.Second

// CachedToken is an access token annotated with its absolute expiry.
type CachedToken struct {
	AccessToken    string
	ExpirationTime time.Time
}

// Expired reports whether the token is stale at the given instant.
func (t *CachedToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpirationTime)
}

// ListenerFunc receives the access-token string of each newly committed,
// distinct token.
type ListenerFunc func(accessToken string)

// ListenerHandle identifies a registered listener for removal.
type ListenerHandle int

// refreshCall is one in-flight credential fetch. Every caller that hits a
// cache miss while it is outstanding waits on done and shares its result.
type refreshCall struct {
	done  chan struct{}
	token *CachedToken
	err   error
}

// notification is one queued fan-out. Targets are snapshotted at commit
// time so listeners added afterwards do not see older tokens.
type notification struct {
	token   string
	targets []ListenerFunc
}

// Manager is the token cache and refresh coordinator. One Manager exists
// per App and owns all mutable token state for it.
type Manager struct {
	credential credentials.Credential
	skew       time.Duration
	nowFunc    func() time.Time
	logger     zerolog.Logger

	mu         sync.Mutex
	cached     *CachedToken
	inflight   *refreshCall
	listeners  map[ListenerHandle]ListenerFunc
	nextHandle ListenerHandle
	queue      []notification
	draining   bool
}

// ManagerOption modifies a Manager.
type ManagerOption func(*Manager)

// WithNowFunc sets the clock (primarily for testing).
func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// WithExpirySkew overrides the expiry safety skew.
func WithExpirySkew(skew time.Duration) ManagerOption {
	return func(m *Manager) {
		m.skew = skew
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// New creates a Manager over the given credential.
func New(credential credentials.Credential, options ...ManagerOption) *Manager {
	m := &Manager{
		credential: credential,
		skew:       defaultExpirySkew,
		nowFunc:    time.Now,
		logger:     zerolog.Nop(),
		listeners:  make(map[ListenerHandle]ListenerFunc),
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// GetToken returns a valid cached token, or refreshes one. Concurrent
// callers racing a cache miss collapse onto a single credential fetch and
// all receive its result. With forceRefresh the cache is bypassed; the
// committed token is re-stamped even when the credential returns a
// byte-identical string.
func (m *Manager) GetToken(ctx context.Context, forceRefresh bool) (*CachedToken, error) {
	m.mu.Lock()
	if !forceRefresh && m.cached != nil && !m.cached.Expired(m.nowFunc()) {
		cached := *m.cached
		m.mu.Unlock()
		return &cached, nil
	}

	if m.inflight != nil {
		call := m.inflight
		m.mu.Unlock()
		return m.wait(ctx, call)
	}

	call := &refreshCall{done: make(chan struct{})}
	m.inflight = call
	m.mu.Unlock()

	// The refresh runs detached from any single caller: a caller that
	// stops waiting must not cancel the fetch for the other waiters.
	go m.refresh(call)
	return m.wait(ctx, call)
}

// wait blocks until the refresh settles or the caller gives up. Giving up
// abandons the wait only; the refresh still commits.
func (m *Manager) wait(ctx context.Context, call *refreshCall) (*CachedToken, error) {
	select {
	case <-call.done:
		if call.err != nil {
			return nil, call.err
		}
		token := *call.token
		return &token, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) refresh(call *refreshCall) {
	m.logger.Debug().Msg("refreshing access token")
	fetched, err := m.credential.FetchAccessToken(context.Background())

	m.mu.Lock()
	if err != nil {
		// The stale token, if any, stays cached; only an explicit
		// cache-hit path may serve it.
		call.err = errors.Wrap(err, "[Manager.GetToken] token refresh")
		m.logger.Warn().Err(err).Msg("access token refresh failed")
	} else {
		now := m.nowFunc()
		committed := &CachedToken{
			AccessToken:    fetched.Token,
			ExpirationTime: now.Add(fetched.ExpiresIn - m.skew),
		}
		changed := m.cached == nil || m.cached.AccessToken != committed.AccessToken
		m.cached = committed
		call.token = committed
		if changed {
			m.enqueueLocked(committed.AccessToken, m.listenerSnapshotLocked())
		}
		m.logger.Debug().Time("expires", committed.ExpirationTime).Bool("changed", changed).Msg("committed access token")
	}
	m.inflight = nil
	m.mu.Unlock()

	close(call.done)
}

// AddListener registers fn and returns its removal handle. When a valid
// token is already cached, fn receives it asynchronously so late
// subscribers observe current state without forcing a refresh.
func (m *Manager) AddListener(fn ListenerFunc) ListenerHandle {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextHandle++
	handle := m.nextHandle
	m.listeners[handle] = fn

	if m.cached != nil && !m.cached.Expired(m.nowFunc()) {
		m.enqueueLocked(m.cached.AccessToken, []ListenerFunc{fn})
	}
	return handle
}

// RemoveListener deregisters a listener. Removing an unknown handle is a
// no-op.
func (m *Manager) RemoveListener(handle ListenerHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.listeners, handle)
}

func (m *Manager) listenerSnapshotLocked() []ListenerFunc {
	if len(m.listeners) == 0 {
		return nil
	}
	snapshot := make([]ListenerFunc, 0, len(m.listeners))
	for _, fn := range m.listeners {
		snapshot = append(snapshot, fn)
	}
	return snapshot
}

// enqueueLocked appends a notification and starts the drainer if it is
// not already running. A single drainer preserves commit order for every
// listener; it exits once the queue empties.
func (m *Manager) enqueueLocked(token string, targets []ListenerFunc) {
	if len(targets) == 0 {
		return
	}
	m.queue = append(m.queue, notification{token: token, targets: targets})
	if !m.draining {
		m.draining = true
		go m.drainQueue()
	}
}

func (m *Manager) drainQueue() {
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.draining = false
			m.mu.Unlock()
			return
		}
		next := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()

		for _, fn := range next.targets {
			m.invoke(fn, next.token)
		}
	}
}

// invoke isolates listener panics so one misbehaving listener cannot
// affect the others or the Manager's state.
func (m *Manager) invoke(fn ListenerFunc, token string) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Warn().Interface("panic", r).Msg("token listener panicked")
		}
	}()
	fn(token)
}
