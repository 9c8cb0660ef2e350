package service

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/eln-app/eln-api/internal/pkg/logger"
	"github.com/eln-app/eln-api/internal/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultUserAgentMaxLength is the stored user-agent limit in characters.
	DefaultUserAgentMaxLength = 500
	// DefaultRecordTimeout bounds the recorder's own store work.
	DefaultRecordTimeout = 2 * time.Second
)

// Recorder effects, used as metric labels.
const (
	RecordEffectUsageLog = "usage_log"
	RecordEffectTouchKey = "touch_key"
)

// UsageLogEntry is one append-only request log record.
type UsageLogEntry struct {
	ID        uuid.UUID
	Token     string
	Endpoint  string
	Method    string
	IP        string
	UserAgent string
	Status    int
	CreatedAt time.Time
}

// UsageEvent describes an authenticated, admitted request.
type UsageEvent struct {
	Token     string
	Endpoint  string
	Method    string
	IP        string
	UserAgent string
	Status    int
}

// UsageRecorder appends usage logs and advances key counters. Both effects are
// best effort: failures are logged and counted, never returned.
type UsageRecorder struct {
	logs         UsageLogRepository
	keys         APIKeyRepository
	now          Clock
	timeout      time.Duration
	maxUserAgent int
	logger       *zap.Logger
	metrics      *metrics.AuthMetrics
}

// UsageRecorderOptions tunes a UsageRecorder. Zero values use the defaults.
type UsageRecorderOptions struct {
	Timeout      time.Duration
	MaxUserAgent int
	Clock        Clock
}

// NewUsageRecorder creates a UsageRecorder.
func NewUsageRecorder(logs UsageLogRepository, keys APIKeyRepository, opts UsageRecorderOptions, logger *zap.Logger, m *metrics.AuthMetrics) *UsageRecorder {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRecordTimeout
	}
	if opts.MaxUserAgent <= 0 {
		opts.MaxUserAgent = DefaultUserAgentMaxLength
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UsageRecorder{
		logs:         logs,
		keys:         keys,
		now:          opts.Clock,
		timeout:      opts.Timeout,
		maxUserAgent: opts.MaxUserAgent,
		logger:       logger.Named("apikey.usage"),
		metrics:      m,
	}
}

// Record performs both effects synchronously. It ignores cancellation of ctx
// so that a client disconnect does not drop accounting for a request that was
// already admitted.
func (r *UsageRecorder) Record(ctx context.Context, ev UsageEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	now := r.now()
	entry := &UsageLogEntry{
		ID:        uuid.New(),
		Token:     ev.Token,
		Endpoint:  ev.Endpoint,
		Method:    ev.Method,
		IP:        ev.IP,
		UserAgent: TruncateRunes(ev.UserAgent, r.maxUserAgent),
		Status:    ev.Status,
		CreatedAt: now,
	}

	if err := r.logs.Append(ctx, entry); err != nil {
		r.fail(RecordEffectUsageLog, ev, err)
	}
	if err := r.keys.TouchUsage(ctx, ev.Token, now); err != nil {
		r.fail(RecordEffectTouchKey, ev, err)
	}
}

func (r *UsageRecorder) fail(effect string, ev UsageEvent, err error) {
	r.metrics.RecordFailure(effect)
	r.logger.Warn("usage recording failed",
		zap.String("effect", effect),
		logger.TokenField(ev.Token),
		zap.String("method", ev.Method),
		zap.String("endpoint", ev.Endpoint),
		zap.Error(err),
	)
}

// TruncateRunes cuts s to at most limit characters without splitting a
// multi-byte sequence.
func TruncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(s) <= limit || utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
