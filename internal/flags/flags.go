// Package flags serves persisted on/off switches through a Redis read-through
// cache. Writes invalidate the cached value.
package flags

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/propad/propad_wallet/internal/actor"
	"github.com/propad/propad_wallet/internal/apperr"
	"github.com/propad/propad_wallet/internal/audit"
	"github.com/propad/propad_wallet/internal/ledger"
	"github.com/propad/propad_wallet/internal/logging"
)

// EnablePayouts gates payout execution.
const EnablePayouts = "ENABLE_PAYOUTS"

const cachePrefix = "flags:v1:"

var defaults = map[string]bool{
	EnablePayouts: true,
}

// Service reads and writes feature flags.
type Service struct {
	store  ledger.Store
	cache  *redis.Client
	ttl    time.Duration
	audit  *audit.Recorder
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds a flag service. A nil cache reads the store every time.
func NewService(store ledger.Store, cache *redis.Client, ttl time.Duration, recorder *audit.Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Service{store: store, cache: cache, ttl: ttl, audit: recorder, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Enabled reports the current value of key. Unknown keys are off unless they
// have a built-in default. Cache failures fall back to the store.
func (s *Service) Enabled(ctx context.Context, key string) (bool, error) {
	if s.cache != nil {
		v, err := s.cache.Get(ctx, cachePrefix+key).Result()
		switch {
		case err == nil:
			if b, perr := strconv.ParseBool(v); perr == nil {
				return b, nil
			}
		case errors.Is(err, redis.Nil):
		default:
			s.logger.WarnContext(ctx, "flag cache read failed", slog.String("key", key), slog.Any("error", err))
		}
	}

	var (
		flag  ledger.FeatureFlag
		found bool
	)
	err := s.store.InTx(ctx, func(tx ledger.Tx) error {
		var err error
		flag, found, err = tx.GetFlag(ctx, key)
		return err
	})
	if err != nil {
		return false, err
	}
	enabled := defaults[key]
	if found {
		enabled = flag.Enabled
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cachePrefix+key, strconv.FormatBool(enabled), s.ttl).Err(); err != nil {
			s.logger.WarnContext(ctx, "flag cache write failed", slog.String("key", key), slog.Any("error", err))
		}
	}
	return enabled, nil
}

// Set persists key and drops its cached value. Admins only.
func (s *Service) Set(ctx context.Context, act actor.Actor, key string, enabled bool) (ledger.FeatureFlag, error) {
	if !act.IsAdmin() {
		return ledger.FeatureFlag{}, apperr.Forbidden("only administrators may change feature flags")
	}
	if key == "" {
		return ledger.FeatureFlag{}, apperr.Validation("flag key is required")
	}
	flag := ledger.FeatureFlag{Key: key, Enabled: enabled, UpdatedAt: s.now()}
	if err := s.store.InTx(ctx, func(tx ledger.Tx) error {
		return tx.PutFlag(ctx, flag)
	}); err != nil {
		return ledger.FeatureFlag{}, err
	}
	if err := s.Invalidate(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "flag cache invalidation failed", slog.String("key", key), slog.Any("error", err))
	}

	s.audit.Record(ctx, audit.Entry{
		Action:     audit.ActionFeatureFlagChanged,
		ActorID:    act.UserID,
		TargetType: "feature_flag",
		TargetID:   key,
		Metadata:   map[string]string{"enabled": strconv.FormatBool(enabled)},
	})
	return flag, nil
}

// Invalidate drops the cached value of key.
func (s *Service) Invalidate(ctx context.Context, key string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Del(ctx, cachePrefix+key).Err()
}
