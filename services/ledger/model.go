package ledger

import (
	"time"

	"gorm.io/datatypes"
)

// TreasuryUserID is the platform account every reward is paid from. Its
// balance is never checked; the daily budget is the real spend guard.
const TreasuryUserID = "treasury"

const (
	TypeRewardView        = "reward_view"
	TypeRewardLike        = "reward_like"
	TypeRewardComment     = "reward_comment"
	TypeRewardBookmark    = "reward_bookmark"
	TypeRewardProfileView = "reward_profile_view"
	TypeTransfer          = "transfer"
	TypeWithdrawal        = "withdrawal"
)

// RewardType maps an interaction category to its transaction type, empty for
// unknown categories.
func RewardType(eventType string) string {
	switch eventType {
	case "view":
		return TypeRewardView
	case "like":
		return TypeRewardLike
	case "comment":
		return TypeRewardComment
	case "bookmark":
		return TypeRewardBookmark
	case "profile_view":
		return TypeRewardProfileView
	default:
		return ""
	}
}

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Transaction is one ledger row. Rows are written pending first, then marked
// completed or failed; a row never stays pending past its Execute call.
type Transaction struct {
	ID          string         `gorm:"column:id;primaryKey"`
	Code        string         `gorm:"column:code;uniqueIndex"`
	Type        string         `gorm:"column:type;index"`
	Status      string         `gorm:"column:status"`
	Amount      float64        `gorm:"column:amount"`
	FromUserID  string         `gorm:"column:from_user_id;index"`
	ToUserID    string         `gorm:"column:to_user_id;index"`
	Description string         `gorm:"column:description"`
	ReferenceID string         `gorm:"column:reference_id;uniqueIndex"`
	Metadata    datatypes.JSON `gorm:"column:metadata"`
	CreatedAt   time.Time      `gorm:"column:created_at"`
	UpdatedAt   time.Time      `gorm:"column:updated_at"`
	CompletedAt *time.Time     `gorm:"column:completed_at"`
	FailedAt    *time.Time     `gorm:"column:failed_at"`
}

func (Transaction) TableName() string {
	return "reward_transactions"
}

// UserBalance is the running wallet per user, maintained in the same
// transaction as the ledger row that moves it.
type UserBalance struct {
	UserID            string     `gorm:"column:user_id;primaryKey"`
	Balance           float64    `gorm:"column:balance"`
	TotalEarned       float64    `gorm:"column:total_earned"`
	TotalSpent        float64    `gorm:"column:total_spent"`
	TotalWithdrawn    float64    `gorm:"column:total_withdrawn"`
	LastTransactionAt *time.Time `gorm:"column:last_transaction_at"`
	CreatedAt         time.Time  `gorm:"column:created_at"`
	UpdatedAt         time.Time  `gorm:"column:updated_at"`
}

func (UserBalance) TableName() string {
	return "user_balances"
}

func isRewardType(txType string) bool {
	switch txType {
	case TypeRewardView, TypeRewardLike, TypeRewardComment, TypeRewardBookmark, TypeRewardProfileView:
		return true
	default:
		return false
	}
}
