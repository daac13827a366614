package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/easydeed/reportscompany-sub005/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads and runner locks.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// CacheService orchestrates cache operations and related metrics.
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

// ScheduleListKey builds the cache key for one account's schedule listing.
func ScheduleListKey(accountID, reportType, cadence string, active *bool, page, pageSize int, sort string) string {
	activePart := "any"
	if active != nil {
		activePart = fmt.Sprintf("%t", *active)
	}
	return fmt.Sprintf("schedules:list:%s:%s:%s:%s:%d:%d:%s", accountID, reportType, cadence, activePart, page, pageSize, sort)
}

// ScheduleListPattern matches every cached listing for an account.
func ScheduleListPattern(accountID string) string {
	return fmt.Sprintf("schedules:list:%s:*", accountID)
}

// RunLockKey names the per-schedule runner lock.
func RunLockKey(scheduleID string) string {
	return fmt.Sprintf("schedules:runlock:%s", scheduleID)
}

// Get attempts to retrieve a cached entry. It returns true when the cache was hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	duration := time.Since(start)
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			s.metrics.RecordCacheOperation(false, duration)
			return false, nil
		}
		s.metrics.RecordCacheOperation(false, duration)
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	s.metrics.RecordCacheOperation(true, duration)
	return true, nil
}

// Set stores the value in cache.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if err := s.repo.Set(ctx, key, value, ttl); err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// InvalidateAccount drops every cached schedule listing for the account.
func (s *CacheService) InvalidateAccount(ctx context.Context, accountID string) {
	if !s.Enabled() {
		return
	}
	if err := s.repo.DeleteByPattern(ctx, ScheduleListPattern(accountID)); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("account_id", accountID), zap.Error(err))
	}
}

// AcquireRunLock claims the per-schedule delivery lock. Overlapping ticks use
// it to avoid building the same slot twice; the repository's optimistic claim
// remains the correctness backstop.
func (s *CacheService) AcquireRunLock(ctx context.Context, scheduleID string, ttl time.Duration) bool {
	if !s.Enabled() {
		return true
	}
	ok, err := s.repo.AcquireLock(ctx, RunLockKey(scheduleID), ttl)
	if err != nil {
		s.logger.Warn("run lock acquire failed", zap.String("schedule_id", scheduleID), zap.Error(err))
		return true
	}
	return ok
}

// ReleaseRunLock frees the per-schedule delivery lock.
func (s *CacheService) ReleaseRunLock(ctx context.Context, scheduleID string) {
	if !s.Enabled() {
		return
	}
	if err := s.repo.ReleaseLock(ctx, RunLockKey(scheduleID)); err != nil {
		s.logger.Warn("run lock release failed", zap.String("schedule_id", scheduleID), zap.Error(err))
	}
}
