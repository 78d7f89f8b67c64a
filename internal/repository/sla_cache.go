package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/domain"
)

const (
	definitionKeyPrefix = "sla:definition:"
	profileKeyPrefix    = "sla:profile:"
)

// cachedSLARepository layers a redis read-through cache over an
// SLARepository. Definitions and profiles are read on every monitor
// tick for every ticket, while override rows change rarely but must be
// fresh, so only the two hot getters are cached. Redis being down
// degrades to plain database reads.
type cachedSLARepository struct {
	inner  SLARepository
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedSLARepository decorates inner with a redis cache.
func NewCachedSLARepository(inner SLARepository, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) SLARepository {
	return &cachedSLARepository{inner: inner, rdb: rdb, ttl: ttl, logger: logger}
}

func (r *cachedSLARepository) GetDefinition(ctx context.Context, id string) (*domain.SLADefinition, error) {
	key := definitionKeyPrefix + id
	var cached domain.SLADefinition
	if r.lookup(ctx, key, &cached) {
		return &cached, nil
	}
	def, err := r.inner.GetDefinition(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store(ctx, key, def)
	return def, nil
}

func (r *cachedSLARepository) GetProfile(ctx context.Context, id string) (*domain.BusinessHoursProfile, error) {
	key := profileKeyPrefix + id
	var cached domain.BusinessHoursProfile
	if r.lookup(ctx, key, &cached) {
		return &cached, nil
	}
	p, err := r.inner.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store(ctx, key, p)
	return p, nil
}

// ResolutionContext is never cached: override rows are exactly what
// operators edit when they expect the next recompute to notice.
func (r *cachedSLARepository) ResolutionContext(ctx context.Context, ticket *domain.Ticket) (domain.SLAResolutionContext, error) {
	return r.inner.ResolutionContext(ctx, ticket)
}

func (r *cachedSLARepository) lookup(ctx context.Context, key string, dst any) bool {
	data, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Debug("sla cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		r.logger.Debug("sla cache entry unreadable", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (r *cachedSLARepository) store(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := r.rdb.Set(ctx, key, data, r.ttl).Err(); err != nil {
		r.logger.Debug("sla cache write failed", zap.String("key", key), zap.Error(err))
	}
}
