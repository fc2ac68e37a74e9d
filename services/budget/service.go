package budget

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"creatorpay-engine/pkg/repository"
	"creatorpay-engine/services/sysconfig"
)

// ErrBudgetExhausted is returned when a spend would push the day's remaining
// budget below zero.
var ErrBudgetExhausted = errors.New("daily budget exhausted")

type ServiceParams struct {
	fx.In

	DB     *gorm.DB
	Config *sysconfig.Service
}

type Service struct {
	db      *gorm.DB
	budgets repository.Repository[DailyBudget]
	config  *sysconfig.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:      p.DB,
		budgets: repository.ProvideStore[DailyBudget](p.DB),
		config:  p.Config,
	}
}

// GetOrCreate returns the budget row for the given instant's calendar date,
// creating it from the configured daily amount on first access. Concurrent
// first-access creates collapse onto a single row.
func (s *Service) GetOrCreate(ctx context.Context, now time.Time) (*DailyBudget, error) {
	date := now.Format(DateLayout)

	if exist, _ := s.budgets.FindOne(ctx, &DailyBudget{Date: date}); exist != nil {
		return exist, nil
	}

	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}

	row := &DailyBudget{
		Date:            date,
		TotalBudget:     cfg.DailyBudgetAmount,
		RemainingBudget: cfg.DailyBudgetAmount,
	}
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(row).Error; err != nil {
		return nil, err
	}

	return s.budgets.FindOne(ctx, &DailyBudget{Date: date})
}

// ApplyActivity records one paid interaction against the day: bumps the
// category counter, moves amount from remaining to distributed. The spend and
// the guard run in a single conditional update so two concurrent payouts can
// never overdraw the day.
func (s *Service) ApplyActivity(ctx context.Context, date, eventType string, amount float64) error {
	counter := counterColumn(eventType)
	if counter == "" {
		return nil
	}

	res := s.db.WithContext(ctx).
		Model(&DailyBudget{}).
		Where("budget_date = ? AND remaining_budget >= ?", date, amount).
		Updates(map[string]interface{}{
			counter:              gorm.Expr(counter+" + ?", 1),
			"distributed_budget": gorm.Expr("distributed_budget + ?", amount),
			"remaining_budget":   gorm.Expr("remaining_budget - ?", amount),
			"updated_at":         time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrBudgetExhausted
	}
	return nil
}

// PreviousWeighted returns the prior calendar day's weighted activity, zero
// when that day has no row.
func (s *Service) PreviousWeighted(ctx context.Context, now time.Time, cfg *sysconfig.RewardConfig) float64 {
	date := now.AddDate(0, 0, -1).Format(DateLayout)
	prev, err := s.budgets.FindOne(ctx, &DailyBudget{Date: date})
	if err != nil || prev == nil {
		return 0
	}
	return prev.WeightedActivity(cfg)
}

// SnapshotRates persists the most recently computed rates on the day's row,
// for operator visibility only. Failures are logged and swallowed.
func (s *Service) SnapshotRates(ctx context.Context, date string, rates Rates) {
	raw, err := json.Marshal(rates)
	if err != nil {
		return
	}
	if err := s.db.WithContext(ctx).
		Model(&DailyBudget{}).
		Where("budget_date = ?", date).
		Update("last_rates", raw).Error; err != nil {
		zap.L().Warn("failed to snapshot payout rates",
			zap.String("budget_date", date),
			zap.Error(err),
		)
	}
}

func counterColumn(eventType string) string {
	switch eventType {
	case "view":
		return "view_count"
	case "like":
		return "like_count"
	case "comment":
		return "comment_count"
	case "bookmark":
		return "bookmark_count"
	case "profile_view":
		return "profile_view_count"
	default:
		return ""
	}
}
