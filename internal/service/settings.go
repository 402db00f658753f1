package service

import (
	"context"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// SettingsStore reads and writes the singleton settings row.
type SettingsStore interface {
	GetSettings(ctx context.Context) (*models.AppSettings, error)
	UpdateSettings(ctx context.Context, settings *models.AppSettings) error
}

// SettingsCache caches settings snapshots between requests.
type SettingsCache interface {
	GetSettings(ctx context.Context) (*models.AppSettings, error)
	SetSettings(ctx context.Context, settings *models.AppSettings, ttl time.Duration) error
	InvalidateSettings(ctx context.Context) error
}

// SettingsService serves per-request settings snapshots through a short-TTL
// cache that is invalidated on admin update.
type SettingsService struct {
	store  SettingsStore
	cache  SettingsCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewSettingsService creates a settings service. cache may be nil, in which
// case every snapshot hits the database.
func NewSettingsService(store SettingsStore, cache SettingsCache, ttl time.Duration) *SettingsService {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &SettingsService{
		store:  store,
		cache:  cache,
		ttl:    ttl,
		logger: util.GetLogger(),
	}
}

// Snapshot returns the current settings. Cache errors fall through to the
// database so a redis outage never blocks order placement.
func (s *SettingsService) Snapshot(ctx context.Context) (*models.AppSettings, error) {
	if s.cache != nil {
		cached, err := s.cache.GetSettings(ctx)
		if err != nil {
			s.logger.Warn("Settings cache read failed", zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetSettings(ctx, settings, s.ttl); err != nil {
			s.logger.Warn("Settings cache write failed", zap.Error(err))
		}
	}
	return settings, nil
}

// Update writes the settings row and invalidates the cache so the change
// takes effect on the next read.
func (s *SettingsService) Update(ctx context.Context, settings *models.AppSettings) error {
	if err := s.store.UpdateSettings(ctx, settings); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.InvalidateSettings(ctx); err != nil {
			s.logger.Warn("Settings cache invalidation failed", zap.Error(err))
		}
	}
	return nil
}
