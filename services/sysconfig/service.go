package sysconfig

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"creatorpay-engine/pkg/errutil"
	"creatorpay-engine/pkg/repository"
)

const cacheLoadKey = "platform"

type Service struct {
	db      *gorm.DB
	configs repository.Repository[RewardConfig]
	cache   *configCache
}

type ServiceParams struct {
	fx.In
	DB *gorm.DB
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:      p.DB,
		configs: repository.ProvideStore[RewardConfig](p.DB),
		cache:   newConfigCache(30 * time.Second),
	}
}

// Get returns the platform reward config, seeding the defaults when the row
// does not exist yet. Reads are served from a short-lived cache. Callers get
// their own copy; mutating it never leaks into the cache.
func (s *Service) Get(ctx context.Context) (*RewardConfig, error) {
	if cfg, ok := s.cache.Get(); ok {
		cp := *cfg
		return &cp, nil
	}

	v, err, _ := s.cache.group.Do(cacheLoadKey, func() (any, error) {
		cfg, err := s.load(ctx)
		if err != nil {
			return nil, err
		}
		s.cache.Set(cfg)
		return cfg, nil
	})
	if err != nil {
		return nil, err
	}

	cp := *v.(*RewardConfig)
	return &cp, nil
}

func (s *Service) load(ctx context.Context) (*RewardConfig, error) {
	cfg, err := s.configs.FindOne(ctx, &RewardConfig{ID: PlatformConfigID})
	if err != nil {
		return nil, err
	}
	if cfg != nil {
		return cfg, nil
	}

	// first access seeds the defaults; concurrent seeders race benignly
	seed := DefaultConfig()
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(seed).Error; err != nil {
		return nil, err
	}

	zap.L().Info("seeded default reward config")

	cfg, err = s.configs.FindOne(ctx, &RewardConfig{ID: PlatformConfigID})
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, errutil.Internal("reward config missing after seed", nil)
	}
	return cfg, nil
}

// Update overwrites the singleton row. Admin tooling only.
func (s *Service) Update(ctx context.Context, cfg *RewardConfig) error {
	if cfg == nil {
		return errutil.BadRequest("config is required", nil)
	}

	cfg.ID = PlatformConfigID
	cfg.UpdatedAt = time.Now()
	if err := s.db.WithContext(ctx).Save(cfg).Error; err != nil {
		return err
	}

	s.cache.Invalidate()
	return nil
}
