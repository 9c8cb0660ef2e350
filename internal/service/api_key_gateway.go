package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/eln-app/eln-api/internal/pkg/logger"
	"github.com/eln-app/eln-api/internal/pkg/metrics"

	"go.uber.org/zap"
)

// AuthOutcome is the terminal state of one Authenticate call.
type AuthOutcome string

const (
	AuthOutcomeNoCredential  AuthOutcome = "no_credential"
	AuthOutcomeAuthenticated AuthOutcome = "authenticated"
	AuthOutcomeInvalid       AuthOutcome = "invalid"
	AuthOutcomeThrottled     AuthOutcome = "throttled"
	AuthOutcomeUnavailable   AuthOutcome = "unavailable"
	AuthOutcomeCanceled      AuthOutcome = "canceled" // caller went away before a decision
)

// AuthMode selects how non-success outcomes reach the caller.
type AuthMode int

const (
	// AuthModeOptional lets every failure except a quota rejection through as
	// anonymous.
	AuthModeOptional AuthMode = iota
	// AuthModeRequired turns every outcome other than success into an error.
	AuthModeRequired
)

func (m AuthMode) String() string {
	if m == AuthModeRequired {
		return "required"
	}
	return "optional"
}

// AuthRequest carries what the gateway needs from one inbound request.
type AuthRequest struct {
	Token     string
	Endpoint  string
	Method    string
	IP        string
	UserAgent string
}

// AuthResult is the gateway decision. Key is set only when Outcome is
// AuthOutcomeAuthenticated.
type AuthResult struct {
	Outcome   AuthOutcome
	Principal Principal
	Key       *APIKey
	RateLimit *RateLimitDecision
}

// Authenticated reports whether the request carried a valid, admitted key.
func (r *AuthResult) Authenticated() bool {
	return r != nil && r.Outcome == AuthOutcomeAuthenticated && r.Key != nil
}

// APIKeyGateway runs the per-request decision: resolve, validity check, quota
// check, then usage recording.
type APIKeyGateway struct {
	validator *APIKeyValidator
	limiter   *RateLimitService
	recorder  *UsageRecorder
	now       Clock
	logger    *zap.Logger
	metrics   *metrics.AuthMetrics
}

// NewAPIKeyGateway creates an APIKeyGateway.
func NewAPIKeyGateway(validator *APIKeyValidator, limiter *RateLimitService, recorder *UsageRecorder, now Clock, logger *zap.Logger, m *metrics.AuthMetrics) *APIKeyGateway {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIKeyGateway{
		validator: validator,
		limiter:   limiter,
		recorder:  recorder,
		now:       now,
		logger:    logger.Named("apikey.gateway"),
		metrics:   m,
	}
}

// Authenticate decides one request.
//
// An empty token yields AuthOutcomeNoCredential with a nil error. Otherwise a
// non-nil error accompanies every outcome but success: ErrAPIKeyInvalid,
// *RateLimitExceededError, or an error matching ErrAuthBackendUnavailable.
func (g *APIKeyGateway) Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error) {
	start := time.Now()
	res, err := g.authenticate(ctx, req)
	g.metrics.ObserveAuth(string(res.Outcome), time.Since(start).Seconds())
	return res, err
}

func (g *APIKeyGateway) authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error) {
	if req == nil || req.Token == "" {
		return &AuthResult{Outcome: AuthOutcomeNoCredential}, nil
	}
	token := req.Token

	key, err := g.validator.Resolve(ctx, token)
	if err != nil {
		return g.failed(ctx, "resolve api key", token, err)
	}
	if reason := g.rejectReason(key); reason != "" {
		g.logger.Info("api key rejected", logger.TokenField(token), zap.String("reason", reason))
		return &AuthResult{Outcome: AuthOutcomeInvalid}, ErrAPIKeyInvalid
	}

	decision, err := g.limiter.Allow(ctx, token, key.EffectiveRateLimit())
	if err != nil {
		return g.failed(ctx, "check api key quota", token, err)
	}
	if !decision.Allowed {
		return &AuthResult{Outcome: AuthOutcomeThrottled, RateLimit: decision}, &RateLimitExceededError{
			Limit:      decision.Limit,
			RetryAfter: decision.RetryAfter,
		}
	}

	// Admission is decided; recording cannot change it.
	g.recorder.Record(ctx, UsageEvent{
		Token:     token,
		Endpoint:  req.Endpoint,
		Method:    req.Method,
		IP:        req.IP,
		UserAgent: req.UserAgent,
		Status:    http.StatusOK,
	})

	return &AuthResult{
		Outcome:   AuthOutcomeAuthenticated,
		Principal: PrincipalOf(key),
		Key:       key,
		RateLimit: decision,
	}, nil
}

// failed classifies a resolve or quota error. A caller whose own context ended
// is not a backend outage.
func (g *APIKeyGateway) failed(ctx context.Context, step, token string, err error) (*AuthResult, error) {
	if ctx.Err() != nil {
		g.logger.Debug(step+": caller gone", logger.TokenField(token), zap.Error(err))
		return &AuthResult{Outcome: AuthOutcomeCanceled}, err
	}
	g.logger.Error(step, logger.TokenField(token), zap.Error(err))
	return &AuthResult{Outcome: AuthOutcomeUnavailable}, err
}

// rejectReason is for internal logs only; callers always see ErrAPIKeyInvalid.
func (g *APIKeyGateway) rejectReason(key *APIKey) string {
	switch {
	case key == nil:
		return "unknown"
	case !key.Active:
		return "inactive"
	case key.IsExpiredAt(g.now()):
		return "expired"
	default:
		return ""
	}
}

// ApplyAuthMode maps an Authenticate result onto mode. In optional mode a
// nil error with an unauthenticated result means "continue as anonymous".
func ApplyAuthMode(mode AuthMode, res *AuthResult, err error) (*AuthResult, error) {
	if res == nil {
		res = &AuthResult{Outcome: AuthOutcomeNoCredential}
	}
	switch mode {
	case AuthModeRequired:
		if err != nil {
			return res, err
		}
		if !res.Authenticated() {
			return res, ErrAPIKeyRequired
		}
		return res, nil
	default:
		if errors.Is(err, ErrAPIKeyRateLimited) {
			return res, err
		}
		if err != nil {
			return &AuthResult{Outcome: res.Outcome}, nil
		}
		return res, nil
	}
}
