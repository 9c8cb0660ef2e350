//go:build unit

package service

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// manualClock is a controllable Clock.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type cacheItem struct {
	value   string
	expires time.Time
}

// fakeCache is an in-memory SharedCache driven by manualClock.
type fakeCache struct {
	mu    sync.Mutex
	clock *manualClock
	items map[string]cacheItem

	getCalls atomic.Int64

	getErr  error
	setErr  error
	delErr  error
	incrErr error
	ttlErr  error
}

func newFakeCache(clock *manualClock) *fakeCache {
	return &fakeCache{clock: clock, items: map[string]cacheItem{}}
}

func (c *fakeCache) live(key string) (cacheItem, bool) {
	it, ok := c.items[key]
	if !ok {
		return cacheItem{}, false
	}
	if !c.clock.Now().Before(it.expires) {
		delete(c.items, key)
		return cacheItem{}, false
	}
	return it, true
}

func (c *fakeCache) Get(_ context.Context, key string) (string, error) {
	c.getCalls.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return "", c.getErr
	}
	it, ok := c.live(key)
	if !ok {
		return "", ErrCacheMiss
	}
	return it.value, nil
}

func (c *fakeCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.items[key] = cacheItem{value: value, expires: c.clock.Now().Add(ttl)}
	return nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.delErr != nil {
		return c.delErr
	}
	delete(c.items, key)
	return nil
}

func (c *fakeCache) IncrementWithinLimit(_ context.Context, key string, limit int64, ttl time.Duration) (int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.incrErr != nil {
		return 0, false, c.incrErr
	}
	it, ok := c.live(key)
	var n int64
	if ok {
		n, _ = strconv.ParseInt(it.value, 10, 64)
	}
	if n >= limit {
		return n, false, nil
	}
	if !ok {
		it.expires = c.clock.Now().Add(ttl)
	}
	n++
	it.value = strconv.FormatInt(n, 10)
	c.items[key] = it
	return n, true, nil
}

func (c *fakeCache) TTL(_ context.Context, key string) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ttlErr != nil {
		return 0, c.ttlErr
	}
	it, ok := c.live(key)
	if !ok {
		return 0, nil
	}
	return it.expires.Sub(c.clock.Now()), nil
}

func (c *fakeCache) put(key, value string, ttl time.Duration) {
	c.mu.Lock()
	c.items[key] = cacheItem{value: value, expires: c.clock.Now().Add(ttl)}
	c.mu.Unlock()
}

// fakeKeyRepo is an in-memory APIKeyRepository.
type fakeKeyRepo struct {
	mu   sync.Mutex
	keys map[string]*APIKey

	getCalls atomic.Int64
	gate     chan struct{} // when set, GetByToken blocks until closed

	getErr   error
	touchErr error
	writeErr error
}

func newFakeKeyRepo(keys ...*APIKey) *fakeKeyRepo {
	r := &fakeKeyRepo{keys: map[string]*APIKey{}}
	for _, k := range keys {
		r.keys[k.Token] = k
	}
	return r
}

func (r *fakeKeyRepo) GetByToken(ctx context.Context, token string) (*APIKey, error) {
	r.getCalls.Add(1)
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	k, ok := r.keys[token]
	if !ok {
		return nil, ErrAPIKeyNotFound
	}
	return cloneAPIKey(k), nil
}

func (r *fakeKeyRepo) Create(_ context.Context, key *APIKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writeErr != nil {
		return r.writeErr
	}
	key.ID = int64(len(r.keys) + 1)
	r.keys[key.Token] = cloneAPIKey(key)
	return nil
}

func (r *fakeKeyRepo) SetActive(_ context.Context, token string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writeErr != nil {
		return r.writeErr
	}
	k, ok := r.keys[token]
	if !ok {
		return ErrAPIKeyNotFound
	}
	k.Active = active
	return nil
}

func (r *fakeKeyRepo) SetExpiry(_ context.Context, token string, expiresAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writeErr != nil {
		return r.writeErr
	}
	k, ok := r.keys[token]
	if !ok {
		return ErrAPIKeyNotFound
	}
	k.ExpiresAt = expiresAt
	return nil
}

func (r *fakeKeyRepo) TouchUsage(_ context.Context, token string, usedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.touchErr != nil {
		return r.touchErr
	}
	k, ok := r.keys[token]
	if !ok {
		return ErrAPIKeyNotFound
	}
	if k.LastUsedAt == nil || usedAt.After(*k.LastUsedAt) {
		t := usedAt
		k.LastUsedAt = &t
	}
	k.TotalRequests++
	return nil
}

func (r *fakeKeyRepo) get(token string) *APIKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneAPIKey(r.keys[token])
}

// fakeUsageLogs records appended entries.
type fakeUsageLogs struct {
	mu      sync.Mutex
	entries []*UsageLogEntry
	err     error
}

func (l *fakeUsageLogs) Append(ctx context.Context, entry *UsageLogEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.entries = append(l.entries, entry)
	return nil
}

func (l *fakeUsageLogs) all() []*UsageLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*UsageLogEntry(nil), l.entries...)
}

func int64Ptr(v int64) *int64 { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func activeKey(token string, limit int) *APIKey {
	return &APIKey{
		ID:          1,
		Token:       token,
		Name:        "test",
		UserID:      int64Ptr(42),
		Active:      true,
		Permissions: APIKeyPermissions{CanRead: true},
		RateLimit:   limit,
	}
}

// gatewayFixture wires a gateway over in-memory collaborators.
type gatewayFixture struct {
	clock    *manualClock
	cache    *fakeCache
	repo     *fakeKeyRepo
	logs     *fakeUsageLogs
	gateway  *APIKeyGateway
	keys     *APIKeyService
	limiter  *RateLimitService
	validate *APIKeyValidator
}

func newGatewayFixture(keys ...*APIKey) *gatewayFixture {
	f := &gatewayFixture{
		clock: newManualClock(),
		repo:  newFakeKeyRepo(keys...),
		logs:  &fakeUsageLogs{},
	}
	f.cache = newFakeCache(f.clock)
	f.validate = NewAPIKeyValidator(f.repo, f.cache, 0, nil, nil)
	f.limiter = NewRateLimitService(f.cache, 0, nil, nil)
	recorder := NewUsageRecorder(f.logs, f.repo, UsageRecorderOptions{Clock: f.clock.Now}, nil, nil)
	f.gateway = NewAPIKeyGateway(f.validate, f.limiter, recorder, f.clock.Now, nil, nil)
	f.keys = NewAPIKeyService(f.repo, f.validate, f.limiter, "eln", f.clock.Now, nil)
	return f
}

func (f *gatewayFixture) auth(token string) (*AuthResult, error) {
	return f.gateway.Authenticate(context.Background(), &AuthRequest{
		Token:     token,
		Endpoint:  "/api/v1/candidates",
		Method:    "GET",
		IP:        "203.0.113.7",
		UserAgent: "curl/8.5",
	})
}
