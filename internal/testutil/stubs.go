// Package testutil holds in-memory stand-ins for the durable stores, used by
// HTTP layer tests.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/eln-app/eln-api/internal/service"
)

// KeyStore is an in-memory service.APIKeyRepository.
type KeyStore struct {
	mu     sync.Mutex
	keys   map[string]*service.APIKey
	nextID int64

	// GetErr, when set, is returned by every GetByToken.
	GetErr error
}

var _ service.APIKeyRepository = (*KeyStore)(nil)

func NewKeyStore(keys ...*service.APIKey) *KeyStore {
	s := &KeyStore{keys: make(map[string]*service.APIKey)}
	for _, k := range keys {
		s.put(k)
	}
	return s
}

func (s *KeyStore) put(k *service.APIKey) {
	s.nextID++
	if k.ID == 0 {
		k.ID = s.nextID
	}
	cp := *k
	s.keys[k.Token] = &cp
}

// Key returns a copy of the stored record, nil when absent.
func (s *KeyStore) Key(token string) *service.APIKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[token]
	if !ok {
		return nil
	}
	cp := *k
	return &cp
}

func (s *KeyStore) GetByToken(_ context.Context, token string) (*service.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	k, ok := s.keys[token]
	if !ok {
		return nil, service.ErrAPIKeyNotFound
	}
	cp := *k
	return &cp, nil
}

func (s *KeyStore) Create(_ context.Context, key *service.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(key)
	return nil
}

func (s *KeyStore) SetActive(_ context.Context, token string, active bool) error {
	return s.update(token, func(k *service.APIKey) { k.Active = active })
}

func (s *KeyStore) SetExpiry(_ context.Context, token string, expiresAt *time.Time) error {
	return s.update(token, func(k *service.APIKey) { k.ExpiresAt = expiresAt })
}

func (s *KeyStore) TouchUsage(_ context.Context, token string, usedAt time.Time) error {
	return s.update(token, func(k *service.APIKey) {
		if k.LastUsedAt == nil || usedAt.After(*k.LastUsedAt) {
			t := usedAt
			k.LastUsedAt = &t
		}
		k.TotalRequests++
	})
}

func (s *KeyStore) update(token string, fn func(*service.APIKey)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[token]
	if !ok {
		return service.ErrAPIKeyNotFound
	}
	fn(k)
	return nil
}

// UsageLog is an in-memory service.UsageLogRepository.
type UsageLog struct {
	mu      sync.Mutex
	entries []service.UsageLogEntry
}

var _ service.UsageLogRepository = (*UsageLog)(nil)

func (l *UsageLog) Append(_ context.Context, entry *service.UsageLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, *entry)
	return nil
}

// Entries returns a snapshot of the appended entries.
func (l *UsageLog) Entries() []service.UsageLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]service.UsageLogEntry(nil), l.entries...)
}

// Stack is a fully in-memory authentication stack.
type Stack struct {
	Keys    *KeyStore
	Logs    *UsageLog
	Cache   service.SharedCache
	Gateway *service.APIKeyGateway
	Service *service.APIKeyService
}

// NewStack wires the gateway and key service over in-memory stores. cache is
// typically a repository.MemorySharedCache.
func NewStack(cache service.SharedCache, keys ...*service.APIKey) *Stack {
	st := &Stack{
		Keys:  NewKeyStore(keys...),
		Logs:  &UsageLog{},
		Cache: cache,
	}
	validator := service.NewAPIKeyValidator(st.Keys, cache, 0, nil, nil)
	limiter := service.NewRateLimitService(cache, 0, nil, nil)
	recorder := service.NewUsageRecorder(st.Logs, st.Keys, service.UsageRecorderOptions{}, nil, nil)
	st.Gateway = service.NewAPIKeyGateway(validator, limiter, recorder, nil, nil, nil)
	st.Service = service.NewAPIKeyService(st.Keys, validator, limiter, service.DefaultTokenPrefix, nil, nil)
	return st
}

// ActiveKey returns an active read-only key owned by userID.
func ActiveKey(token string, limit int, userID int64) *service.APIKey {
	uid := userID
	return &service.APIKey{
		Token:       token,
		Name:        "test key",
		UserID:      &uid,
		Active:      true,
		Permissions: service.APIKeyPermissions{CanRead: true},
		RateLimit:   limit,
	}
}
