package views

import "time"

// BatchSize is how many media views accumulate before a single batched
// payout is released.
const BatchSize = 10

// ViewCounter tracks one user's media-view batching state. MediaViewCount
// cycles 0 through 9; a payout tick fires on the wrap back to zero.
type ViewCounter struct {
	UserID          string     `gorm:"column:user_id;primaryKey"`
	MediaViewCount  int        `gorm:"column:media_view_count"`
	TotalMediaViews int64      `gorm:"column:total_media_views"`
	LastViewAt      *time.Time `gorm:"column:last_view_at"`
	LastPayoutAt    *time.Time `gorm:"column:last_payout_at"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at"`
}

func (ViewCounter) TableName() string {
	return "user_view_counters"
}

// RecordResult reports the outcome of recording a view.
type RecordResult struct {
	// Payout is true when this view completed a batch.
	Payout bool

	// Multiplier is the number of views covered by the batch, BatchSize when
	// Payout is set and zero otherwise.
	Multiplier int

	// ViewCount is the counter position after this view, 0 through 9.
	ViewCount int

	// TotalViews is the user's lifetime media view count after this view.
	TotalViews int64
}
