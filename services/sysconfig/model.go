package sysconfig

import "time"

// PlatformConfigID is the primary key of the singleton reward config row.
const PlatformConfigID = "platform"

// RewardConfig is the operator-owned knob set the payout engine reads on
// every calculation. Mutations come from admin tooling only.
type RewardConfig struct {
	ID                  string    `gorm:"column:id;primaryKey"`
	DailyBudgetAmount   float64   `gorm:"column:daily_budget_amount"`
	MinimumPayoutAmount float64   `gorm:"column:minimum_payout_amount"`
	MaxPayoutPerAction  float64   `gorm:"column:max_payout_per_action"`
	ViewWeight          float64   `gorm:"column:view_weight"`
	LikeWeight          float64   `gorm:"column:like_weight"`
	CommentWeight       float64   `gorm:"column:comment_weight"`
	BookmarkWeight      float64   `gorm:"column:bookmark_weight"`
	ProfileViewWeight   float64   `gorm:"column:profile_view_weight"`
	EnableRewards       bool      `gorm:"column:enable_rewards"`
	EnableUserTransfers bool      `gorm:"column:enable_user_transfers"`
	EnableWithdrawals   bool      `gorm:"column:enable_withdrawals"`
	CreatedAt           time.Time `gorm:"column:created_at"`
	UpdatedAt           time.Time `gorm:"column:updated_at"`
}

func (RewardConfig) TableName() string {
	return "reward_configs"
}

// Weight returns the pacing weight configured for an interaction category.
func (c *RewardConfig) Weight(eventType string) float64 {
	switch eventType {
	case "view":
		return c.ViewWeight
	case "like":
		return c.LikeWeight
	case "comment":
		return c.CommentWeight
	case "bookmark":
		return c.BookmarkWeight
	case "profile_view":
		return c.ProfileViewWeight
	default:
		return 0
	}
}

// DefaultConfig seeds the singleton row on first access.
func DefaultConfig() *RewardConfig {
	return &RewardConfig{
		ID:                  PlatformConfigID,
		DailyBudgetAmount:   33.0,
		MinimumPayoutAmount: 1e-9,
		MaxPayoutPerAction:  1000,
		ViewWeight:          1,
		LikeWeight:          6,
		CommentWeight:       10,
		BookmarkWeight:      8,
		ProfileViewWeight:   4,
		EnableRewards:       true,
		EnableUserTransfers: false,
		EnableWithdrawals:   false,
	}
}
