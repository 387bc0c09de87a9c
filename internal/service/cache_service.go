package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/pkg/cache"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheTTLs sets how long each key family stays cached.
type CacheTTLs struct {
	Lesson  time.Duration
	Catalog time.Duration
}

const (
	defaultLessonTTL  = 2 * time.Minute
	defaultCatalogTTL = 5 * time.Minute
)

// CacheService is the read-through cache for lesson detail views and catalog pages.
// Cache failures are logged and counted but never fail the request.
type CacheService struct {
	repo    CacheRepository
	metrics *MetricsService
	ttls    CacheTTLs
	logger  *zap.Logger
	enabled bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, ttls CacheTTLs, logger *zap.Logger, enabled bool) *CacheService {
	if ttls.Lesson <= 0 {
		ttls.Lesson = defaultLessonTTL
	}
	if ttls.Catalog <= 0 {
		ttls.Catalog = defaultCatalogTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, ttls: ttls, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get loads a cached payload into dest and reports whether it was found.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	family := cache.Family(key)
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(family, err == nil, time.Since(start))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, appErrors.ErrCacheMiss):
		return false, nil
	default:
		s.logger.Warn("cache read failed", zap.String("family", family), zap.String("key", key), zap.Error(err))
		return false, err
	}
}

// Set stores value under key for the TTL of the key's family.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	if !s.Enabled() {
		return nil
	}
	family := cache.Family(key)
	start := time.Now()
	err := s.repo.Set(ctx, key, value, s.ttl(family))
	s.metrics.ObserveCacheWrite(family, time.Since(start))
	if err != nil {
		s.logger.Warn("cache write failed", zap.String("family", family), zap.String("key", key), zap.Error(err))
	}
	return err
}

// InvalidateLesson drops the cached detail view of one lesson.
func (s *CacheService) InvalidateLesson(ctx context.Context, lessonID string) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.Delete(ctx, cache.LessonKey(lessonID)); err != nil {
		s.logger.Warn("lesson cache invalidation failed", zap.String("lesson_id", lessonID), zap.Error(err))
		return err
	}
	return nil
}

// InvalidateCatalog drops every cached catalog page, since any product edit can reorder or reprice them.
func (s *CacheService) InvalidateCatalog(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.DeleteByPattern(ctx, cache.CatalogPattern()); err != nil {
		s.logger.Warn("catalog cache invalidation failed", zap.Error(err))
		return err
	}
	return nil
}

func (s *CacheService) ttl(family string) time.Duration {
	if family == cache.FamilyCatalog {
		return s.ttls.Catalog
	}
	return s.ttls.Lesson
}
