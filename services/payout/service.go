package payout

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"creatorpay-engine/pkg/config"
	"creatorpay-engine/pkg/errutil"
	"creatorpay-engine/pkg/featureflags"
	"creatorpay-engine/services/budget"
	"creatorpay-engine/services/fraud"
	"creatorpay-engine/services/ledger"
	"creatorpay-engine/services/sysconfig"
	"creatorpay-engine/services/views"
)

const defaultFraudLookbackDays = 30

type ServiceParams struct {
	fx.In

	Config    *config.Config
	SysConfig *sysconfig.Service
	Budget    *budget.Service
	Views     *views.Service
	Fraud     *fraud.Service
	Ledger    *ledger.Service
	Flags     featureflags.FeatureFlag `optional:"true"`
}

type Service struct {
	cfg       *config.Config
	sysconfig *sysconfig.Service
	budget    *budget.Service
	views     *views.Service
	fraud     *fraud.Service
	ledger    *ledger.Service
	flags     featureflags.FeatureFlag

	now func() time.Time
}

func NewService(p ServiceParams) *Service {
	return &Service{
		cfg:       p.Config,
		sysconfig: p.SysConfig,
		budget:    p.Budget,
		views:     p.Views,
		fraud:     p.Fraud,
		ledger:    p.Ledger,
		flags:     p.Flags,
		now:       time.Now,
	}
}

// Process runs one interaction through the full pipeline: validation, fraud
// screening, view batching, rate calculation, and the ledger write. Suppressed
// events (fraud, batch in progress, exhausted budget) still return Success so
// callers cannot distinguish them from paid ones.
func (s *Service) Process(ctx context.Context, e *Event) (*Result, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	opts := []zap.Field{
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("event_type", e.EventType),
		zap.String("creator_id", e.CreatorID),
	}

	if err := e.Validate(); err != nil {
		return nil, err
	}

	// Anonymous actors never earn anyone a payout, whatever the target.
	if e.UserID == AnonymousUserID {
		return &Result{Success: true, Reason: "anonymous views do not accrue"}, nil
	}

	if verdict := s.fraud.CheckSharedOrigin(ctx, e.UserID, e.CreatorID, s.lookbackDays()); verdict.Fraud {
		zap.L().With(opts...).Warn("payout suppressed by fraud screen",
			zap.String("reason", verdict.Reason),
		)
		return &Result{Success: true, Reason: verdict.Reason}, nil
	}

	multiplier := e.BatchMultiplier()
	viewCount := 0

	// Only media views batch; album and profile views pay per event.
	if e.EventType == "view" && e.TargetType == "media" {
		rec, err := s.views.RecordView(ctx, e.UserID)
		if err != nil {
			return nil, err
		}
		if !rec.Payout {
			return &Result{Success: true, ViewCount: rec.ViewCount}, nil
		}
		multiplier = rec.Multiplier
		viewCount = rec.ViewCount
	}

	calc, err := s.Calculate(ctx, e, multiplier)
	if err != nil {
		return nil, err
	}
	if !calc.Eligible {
		return &Result{Success: true, Rate: calc.Rate, Reason: calc.Reason}, nil
	}

	entry, err := s.ledger.Execute(ctx, ledger.ExecuteParams{
		Type:        ledger.RewardType(e.EventType),
		Amount:      calc.Amount,
		FromUserID:  ledger.TreasuryUserID,
		ToUserID:    e.CreatorID,
		Description: description(e.EventType),
		ReferenceID: e.Reference(),
		Metadata: map[string]any{
			"rate":             calc.Rate,
			"batch_multiplier": multiplier,
			"budget_date":      calc.BudgetDate,
			"actor_id":         e.UserID,
			"target_type":      e.TargetType,
			"target_id":        e.TargetID,
		},
	})
	if err != nil {
		var base errutil.BaseError
		if errors.As(err, &base) && base.Status() == errutil.StatusConflict {
			zap.L().With(opts...).Info("duplicate interaction skipped",
				zap.String("reference_id", e.Reference()),
			)
			return &Result{Success: true, Rate: calc.Rate, Reason: "already rewarded"}, nil
		}
		return nil, err
	}

	// Budget bookkeeping runs after the money has moved; a failure here skews
	// pacing for the rest of the day but never claws back a paid reward.
	if err := s.budget.ApplyActivity(ctx, calc.BudgetDate, e.EventType, calc.Amount); err != nil {
		if errors.Is(err, budget.ErrBudgetExhausted) {
			zap.L().With(opts...).Info("budget drained by concurrent payouts",
				zap.String("budget_date", calc.BudgetDate),
			)
		} else {
			zap.L().With(opts...).Warn("failed to apply activity to budget", zap.Error(err))
		}
	}
	s.snapshotRates(ctx, calc.BudgetDate)

	return &Result{
		Success:      true,
		ShouldPayout: true,
		Amount:       entry.Amount,
		Rate:         calc.Rate,
		ViewCount:    viewCount,
	}, nil
}

// Calculate derives the payable amount for one event at the current pace
// without touching the ledger.
func (s *Service) Calculate(ctx context.Context, e *Event, multiplier int) (*Calculation, error) {
	cfg, err := s.sysconfig.Get(ctx)
	if err != nil {
		return nil, err
	}

	if !cfg.EnableRewards || (s.flags != nil && !s.flags.RewardsEnabled(ctx)) {
		return &Calculation{Reason: "rewards disabled"}, nil
	}

	now := s.now()
	b, err := s.budget.GetOrCreate(ctx, now)
	if err != nil {
		return nil, err
	}
	calc := &Calculation{BudgetDate: b.Date}

	if b.RemainingBudget <= 0 {
		calc.Reason = "daily budget exhausted"
		return calc, nil
	}

	prev := s.budget.PreviousWeighted(ctx, now, cfg)
	rates := budget.ComputeRates(b, cfg, now, prev)
	calc.Rate = rates.For(e.EventType)

	amount := calc.Rate * float64(multiplier)
	if half := b.RemainingBudget / 2; amount > half {
		amount = half
	}
	if amount < cfg.MinimumPayoutAmount {
		calc.Reason = "payout below minimum"
		return calc, nil
	}

	calc.Eligible = true
	calc.Amount = amount
	return calc, nil
}

func (s *Service) snapshotRates(ctx context.Context, date string) {
	cfg, err := s.sysconfig.Get(ctx)
	if err != nil {
		return
	}
	now := s.now()
	b, err := s.budget.GetOrCreate(ctx, now)
	if err != nil || b.Date != date {
		return
	}
	prev := s.budget.PreviousWeighted(ctx, now, cfg)
	s.budget.SnapshotRates(ctx, date, budget.ComputeRates(b, cfg, now, prev))
}

func (s *Service) lookbackDays() int {
	if s.cfg != nil && s.cfg.Payout.FraudLookbackDays > 0 {
		return s.cfg.Payout.FraudLookbackDays
	}
	return defaultFraudLookbackDays
}

func description(eventType string) string {
	switch eventType {
	case "view":
		return "batched media view reward"
	case "like":
		return "like reward"
	case "comment":
		return "comment reward"
	case "bookmark":
		return "bookmark reward"
	case "profile_view":
		return "profile view reward"
	default:
		return "interaction reward"
	}
}
