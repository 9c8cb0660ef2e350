package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	infraerrors "github.com/eln-app/eln-api/internal/pkg/errors"
	"github.com/eln-app/eln-api/internal/pkg/logger"

	"go.uber.org/zap"
)

const (
	// DefaultTokenPrefix namespaces issued tokens, e.g. eln_3q2-7w...
	DefaultTokenPrefix = "eln"
	// tokenEntropyBytes gives 256 bits of randomness.
	tokenEntropyBytes = 32
)

var ErrAPIKeyInvalidInput = infraerrors.BadRequest("API_KEY_INVALID_INPUT", "invalid api key input")

// GenerateAPIKeyToken returns prefix + "_" + base64url(32 random bytes).
func GenerateAPIKeyToken(prefix string) (string, error) {
	if prefix == "" {
		prefix = DefaultTokenPrefix
	}
	b := make([]byte, tokenEntropyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return prefix + "_" + base64.RawURLEncoding.EncodeToString(b), nil
}

// CreateAPIKeyInput describes a key to issue.
type CreateAPIKeyInput struct {
	Name        string
	UserID      *int64
	Permissions APIKeyPermissions
	RateLimit   int
	ExpiresAt   *time.Time
}

// APIKeyService administers key records. Every mutation of is_active or
// expires_at drops the cached validity answer before returning.
type APIKeyService struct {
	repo        APIKeyRepository
	validator   *APIKeyValidator
	limiter     *RateLimitService
	tokenPrefix string
	now         Clock
	logger      *zap.Logger
}

// NewAPIKeyService creates an APIKeyService.
func NewAPIKeyService(repo APIKeyRepository, validator *APIKeyValidator, limiter *RateLimitService, tokenPrefix string, now Clock, logger *zap.Logger) *APIKeyService {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIKeyService{
		repo:        repo,
		validator:   validator,
		limiter:     limiter,
		tokenPrefix: tokenPrefix,
		now:         now,
		logger:      logger.Named("apikey.admin"),
	}
}

// Create issues a new active key.
func (s *APIKeyService) Create(ctx context.Context, in CreateAPIKeyInput) (*APIKey, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrAPIKeyInvalidInput.WithMetadata(map[string]string{"field": "name"})
	}
	if in.RateLimit < 1 {
		return nil, ErrAPIKeyInvalidInput.WithMetadata(map[string]string{"field": "rate_limit"})
	}

	token, err := GenerateAPIKeyToken(s.tokenPrefix)
	if err != nil {
		return nil, fmt.Errorf("generate api key token: %w", err)
	}
	now := s.now()
	key := &APIKey{
		Token:       token,
		Name:        name,
		UserID:      in.UserID,
		Active:      true,
		Permissions: in.Permissions,
		RateLimit:   in.RateLimit,
		ExpiresAt:   in.ExpiresAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, key); err != nil {
		return nil, fmt.Errorf("create api key: %w", err)
	}
	// A negative answer may be cached for this token from an earlier lookup.
	s.invalidate(ctx, token)
	return key, nil
}

// Get reads the key record straight from the store.
func (s *APIKeyService) Get(ctx context.Context, token string) (*APIKey, error) {
	return s.repo.GetByToken(ctx, token)
}

// SetActive activates or revokes a key.
func (s *APIKeyService) SetActive(ctx context.Context, token string, active bool) error {
	if err := s.repo.SetActive(ctx, token, active); err != nil {
		return fmt.Errorf("set api key active: %w", err)
	}
	s.logger.Info("api key active flag changed", logger.TokenField(token), zap.Bool("active", active))
	s.invalidate(ctx, token)
	return nil
}

// SetExpiry sets or clears (expiresAt == nil) the expiry.
func (s *APIKeyService) SetExpiry(ctx context.Context, token string, expiresAt *time.Time) error {
	if err := s.repo.SetExpiry(ctx, token, expiresAt); err != nil {
		return fmt.Errorf("set api key expiry: %w", err)
	}
	s.logger.Info("api key expiry changed", logger.TokenField(token), zap.Timep("expires_at", expiresAt))
	s.invalidate(ctx, token)
	return nil
}

// Invalidate drops the cached validity answer for token.
func (s *APIKeyService) Invalidate(ctx context.Context, token string) error {
	return s.validator.Invalidate(ctx, token)
}

// Usage returns the key's current quota window.
func (s *APIKeyService) Usage(ctx context.Context, key *APIKey) (*RateLimitUsage, error) {
	return s.limiter.Usage(ctx, key.Token, key.EffectiveRateLimit())
}

// invalidate is used after a committed store write. The write stands even
// when the cache delete fails; the stale entry then ages out within the TTL.
func (s *APIKeyService) invalidate(ctx context.Context, token string) {
	if err := s.validator.Invalidate(ctx, token); err != nil {
		s.logger.Error("drop cached api key validity", logger.TokenField(token), zap.Error(err))
	}
}
