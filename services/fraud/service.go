package fraud

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"creatorpay-engine/pkg/db/option"
)

// anonymousUserID marks unauthenticated actors, which carry no connection
// history worth screening.
const anonymousUserID = "anonymous"

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

// CheckSharedOrigin screens an actor/creator pair for shared network origin:
// any IP both users connected from within the lookback window marks the pair
// as suspect. Self-interactions and anonymous actors pass without a lookup.
//
// Screening failures are logged and treated as clean. A broken fraud table
// must not stall the payout pipeline.
func (s *Service) CheckSharedOrigin(ctx context.Context, actorID, creatorID string, daysBack int) Verdict {
	if actorID == "" || creatorID == "" || actorID == anonymousUserID {
		return Verdict{}
	}
	if actorID == creatorID {
		return Verdict{}
	}

	since := time.Now().AddDate(0, 0, -daysBack)

	actorIPs, err := s.recentIPs(ctx, actorID, since)
	if err != nil {
		zap.L().Warn("fraud screen skipped",
			zap.String("user_id", actorID),
			zap.Error(err),
		)
		return Verdict{}
	}
	if len(actorIPs) == 0 {
		return Verdict{}
	}

	var shared []string
	q := option.Apply(
		s.db.WithContext(ctx).
			Model(&ConnectionRecord{}).
			Distinct("ip").
			Where("user_id = ? AND ip IN ?", creatorID, actorIPs),
		option.ApplyOperator(option.Condition{
			Field:    "last_seen_at",
			Operator: option.GTE,
			Value:    since,
		}),
	)
	if err := q.Pluck("ip", &shared).Error; err != nil {
		zap.L().Warn("fraud screen skipped",
			zap.String("user_id", creatorID),
			zap.Error(err),
		)
		return Verdict{}
	}

	if len(shared) == 0 {
		return Verdict{}
	}
	return Verdict{
		Fraud:     true,
		Reason:    fmt.Sprintf("actor and creator share %d connection origin(s)", len(shared)),
		SharedIPs: shared,
	}
}

// Record upserts one observed connection, refreshing LastSeenAt on repeats.
func (s *Service) Record(ctx context.Context, userID, ip string) error {
	if userID == "" || ip == "" || userID == anonymousUserID {
		return nil
	}
	now := time.Now()
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "ip"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"last_seen_at": now}),
		}).
		Create(&ConnectionRecord{
			UserID:     userID,
			IP:         ip,
			LastSeenAt: now,
		}).Error
}

func (s *Service) recentIPs(ctx context.Context, userID string, since time.Time) ([]string, error) {
	var ips []string
	q := option.Apply(
		s.db.WithContext(ctx).
			Model(&ConnectionRecord{}).
			Distinct("ip").
			Where("user_id = ?", userID),
		option.ApplyOperator(option.Condition{
			Field:    "last_seen_at",
			Operator: option.GTE,
			Value:    since,
		}),
	)
	if err := q.Pluck("ip", &ips).Error; err != nil {
		return nil, err
	}
	return ips, nil
}
