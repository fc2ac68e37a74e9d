package budget

import (
	"time"

	"gorm.io/datatypes"

	"creatorpay-engine/services/sysconfig"
)

// DateLayout is the key format for daily budget rows.
const DateLayout = "2006-01-02"

// DailyBudget is the per-calendar-date spend aggregate. One row per date,
// created lazily on first access and never deleted by this engine.
//
// At rest RemainingBudget + DistributedBudget == TotalBudget; in-flight
// concurrent payouts may show a transient skew between the two update
// statements.
type DailyBudget struct {
	Date              string         `gorm:"column:budget_date;primaryKey"`
	TotalBudget       float64        `gorm:"column:total_budget"`
	RemainingBudget   float64        `gorm:"column:remaining_budget"`
	DistributedBudget float64        `gorm:"column:distributed_budget"`
	ViewCount         int64          `gorm:"column:view_count"`
	LikeCount         int64          `gorm:"column:like_count"`
	CommentCount      int64          `gorm:"column:comment_count"`
	BookmarkCount     int64          `gorm:"column:bookmark_count"`
	ProfileViewCount  int64          `gorm:"column:profile_view_count"`
	LastRates         datatypes.JSON `gorm:"column:last_rates"`
	CreatedAt         time.Time      `gorm:"column:created_at"`
	UpdatedAt         time.Time      `gorm:"column:updated_at"`
}

func (DailyBudget) TableName() string {
	return "daily_budgets"
}

// WeightedActivity is the pacing denominator: every category count scaled by
// its configured weight.
func (b *DailyBudget) WeightedActivity(cfg *sysconfig.RewardConfig) float64 {
	return float64(b.ViewCount)*cfg.ViewWeight +
		float64(b.LikeCount)*cfg.LikeWeight +
		float64(b.CommentCount)*cfg.CommentWeight +
		float64(b.BookmarkCount)*cfg.BookmarkWeight +
		float64(b.ProfileViewCount)*cfg.ProfileViewWeight
}

// Rates is a snapshot of per-category payout rates for one point in time.
type Rates struct {
	View        float64 `json:"view"`
	Like        float64 `json:"like"`
	Comment     float64 `json:"comment"`
	Bookmark    float64 `json:"bookmark"`
	ProfileView float64 `json:"profile_view"`
}

// For returns the rate for an interaction category, zero for unknown ones.
func (r Rates) For(eventType string) float64 {
	switch eventType {
	case "view":
		return r.View
	case "like":
		return r.Like
	case "comment":
		return r.Comment
	case "bookmark":
		return r.Bookmark
	case "profile_view":
		return r.ProfileView
	default:
		return 0
	}
}
