package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/course-catalog-api/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Generation(ctx context.Context, fence string) (int64, error)
	SetIfGeneration(ctx context.Context, key, fence string, generation int64, value interface{}, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService orchestrates cache operations and related metrics. Cache
// failures never fail the calling operation; they are logged and counted.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get reports whether key was found and decoded into dest.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) bool {
	if !s.Enabled() {
		return false
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	return true
}

// Fence is the eviction generation of a key or pattern, captured before a
// store read. A value read under a fence is cached only if nothing evicted
// the fence in the meantime.
type Fence struct {
	name       string
	generation int64
	valid      bool
}

// Fence snapshots the generation of name. Take it before reading the store.
func (s *CacheService) Fence(ctx context.Context, name string) Fence {
	if !s.Enabled() {
		return Fence{}
	}
	gen, err := s.repo.Generation(ctx, name)
	if err != nil {
		s.logger.Warn("cache generation read failed", zap.String("fence", name), zap.Error(err))
		return Fence{}
	}
	return Fence{name: name, generation: gen, valid: true}
}

// Set stores the value, falling back to the default TTL. The write is
// dropped when fence is invalid or was evicted after it was taken.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration, fence Fence) {
	if !s.Enabled() || !fence.valid {
		return
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	stored, err := s.repo.SetIfGeneration(ctx, key, fence.name, fence.generation, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		return
	}
	if !stored {
		s.logger.Debug("cache set skipped, fence evicted during read", zap.String("key", key), zap.String("fence", fence.name))
	}
}

// Evict removes exact keys.
func (s *CacheService) Evict(ctx context.Context, keys ...string) {
	if !s.Enabled() {
		return
	}
	if err := s.repo.Delete(ctx, keys...); err != nil {
		s.logger.Warn("cache evict failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// Invalidate removes cached values for the provided pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) {
	if !s.Enabled() {
		return
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
	}
}
