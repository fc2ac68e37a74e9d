package views

import (
	"context"
	"errors"
	"time"

	"go.uber.org/fx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"creatorpay-engine/pkg/db/option"
	"creatorpay-engine/pkg/errutil"
)

type ServiceParams struct {
	fx.In

	DB *gorm.DB
}

type Service struct {
	db *gorm.DB
}

func NewService(p ServiceParams) *Service {
	return &Service{db: p.DB}
}

// RecordView advances the user's view counter by one and reports whether the
// view completed a batch. The counter row is locked for the duration of the
// transaction so concurrent views from the same user serialize and exactly one
// of every BatchSize views ticks.
//
// A payout tick also requires the lifetime total to have reached BatchSize, so
// a fresh counter cannot tick before a full first batch.
func (s *Service) RecordView(ctx context.Context, userID string) (*RecordResult, error) {
	if userID == "" {
		return nil, errutil.ValidationFailed("user_id is required", nil)
	}

	var result RecordResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		var counter ViewCounter
		err := tx.Scopes(option.LockingUpdate).
			Where("user_id = ?", userID).
			First(&counter).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			counter = ViewCounter{UserID: userID}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&counter).Error; err != nil {
				return err
			}
			// Re-read under the row lock so a concurrent creator loses cleanly.
			if err := tx.Scopes(option.LockingUpdate).
				Where("user_id = ?", userID).
				First(&counter).Error; err != nil {
				return err
			}
		}

		counter.TotalMediaViews++
		counter.MediaViewCount = (counter.MediaViewCount + 1) % BatchSize
		counter.LastViewAt = &now

		tick := counter.MediaViewCount == 0 && counter.TotalMediaViews >= BatchSize
		if tick {
			counter.LastPayoutAt = &now
		}

		if err := tx.Model(&ViewCounter{}).
			Where("user_id = ?", userID).
			Updates(map[string]interface{}{
				"media_view_count":  counter.MediaViewCount,
				"total_media_views": counter.TotalMediaViews,
				"last_view_at":      counter.LastViewAt,
				"last_payout_at":    counter.LastPayoutAt,
				"updated_at":        now,
			}).Error; err != nil {
			return err
		}

		result = RecordResult{
			Payout:     tick,
			ViewCount:  counter.MediaViewCount,
			TotalViews: counter.TotalMediaViews,
		}
		if tick {
			result.Multiplier = BatchSize
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Get returns the user's counter, nil when the user has never viewed media.
func (s *Service) Get(ctx context.Context, userID string) (*ViewCounter, error) {
	var counter ViewCounter
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&counter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &counter, nil
}
