package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-class-console/internal/models"
	appErrors "github.com/noah-isme/sma-class-console/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// ReferenceCacheKey is where a school's reference snapshot is cached.
func ReferenceCacheKey(schoolID int64) string {
	return "reference:school:" + strconv.FormatInt(schoolID, 10)
}

// CacheService keeps reference snapshots per school so opening a draft does not always
// hit the backend twice. A broken cache degrades to a miss.
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
		defaultTTL = 5 * time.Minute
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

// Reference returns the cached snapshot for schoolID, if any.
func (s *CacheService) Reference(ctx context.Context, schoolID int64) (*models.ReferenceData, bool) {
	if !s.Enabled() {
		return nil, false
	}
	key := ReferenceCacheKey(schoolID)
	start := time.Now()
	var snapshot models.ReferenceData
	err := s.repo.Get(ctx, key, &snapshot)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	switch {
	case err == nil:
	case errors.Is(err, appErrors.ErrCacheMiss):
		return nil, false
	default:
		s.logger.Warn("reference cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if snapshot.SchoolID != schoolID {
		return nil, false
	}
	return &snapshot, true
}

// StoreReference replaces the cached snapshot of data.SchoolID. ttl <= 0 uses the default.
func (s *CacheService) StoreReference(ctx context.Context, data *models.ReferenceData, ttl time.Duration) {
	if !s.Enabled() || data == nil || data.SchoolID <= 0 {
		return
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	key := ReferenceCacheKey(data.SchoolID)
	start := time.Now()
	err := s.repo.Set(ctx, key, data, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("reference cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// ForgetReference drops the cached snapshots of the given schools.
func (s *CacheService) ForgetReference(ctx context.Context, schoolIDs ...int64) error {
	if !s.Enabled() || len(schoolIDs) == 0 {
		return nil
	}
	keys := make([]string, len(schoolIDs))
	for i, id := range schoolIDs {
		keys[i] = ReferenceCacheKey(id)
	}
	if err := s.repo.Delete(ctx, keys...); err != nil {
		s.logger.Warn("reference cache invalidate failed", zap.Strings("keys", keys), zap.Error(err))
		return err
	}
	return nil
}
