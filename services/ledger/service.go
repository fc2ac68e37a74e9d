package ledger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"creatorpay-engine/pkg/db/option"
	"creatorpay-engine/pkg/errutil"
	"creatorpay-engine/pkg/repository"
	"creatorpay-engine/pkg/sequence"
)

// ErrInsufficientBalance is returned when a debit would take the payer's
// balance below zero.
var ErrInsufficientBalance = errors.New("insufficient balance")

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	seq  sequence.Generator

	transactions repository.Repository[Transaction]
}

type ServiceParams struct {
	fx.In

	DB   *gorm.DB
	Node *snowflake.Node
	Seq  sequence.Generator `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,
		seq:  p.Seq,

		transactions: repository.ProvideStore[Transaction](p.DB),
	}
}

// ExecuteParams describes one money movement.
type ExecuteParams struct {
	Type        string
	Amount      float64
	FromUserID  string
	ToUserID    string
	Description string
	ReferenceID string
	Metadata    map[string]any
}

// Execute moves Amount from one account to another atomically. Validation and
// the duplicate-reference check run before any row is written; the debit,
// credit, and ledger status transition share one database transaction. A row
// whose balance updates fail is marked failed, never left pending.
//
// Reward types skip the payer balance check: the treasury is a bookkeeping
// account backed by the daily budget, not a funded wallet.
func (s *Service) Execute(ctx context.Context, req ExecuteParams) (*Transaction, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	opts := []zap.Field{
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
		zap.String("type", req.Type),
		zap.String("reference_id", req.ReferenceID),
	}

	if err := validateExecute(req); err != nil {
		return nil, err
	}

	if req.ReferenceID != "" {
		if exist, _ := s.transactions.FindOne(ctx, &Transaction{ReferenceID: req.ReferenceID}); exist != nil {
			zap.L().With(opts...).Warn("reference_id already exists")
			return nil, errutil.Conflict("reference_id already exists", nil)
		}
	}

	code, err := s.nextCode(ctx)
	if err != nil {
		zap.L().With(opts...).Error("failed to generate transaction code", zap.Error(err))
		return nil, err
	}

	metaBytes, _ := json.Marshal(req.Metadata)
	now := time.Now()
	entry := &Transaction{
		ID:          s.node.Generate().String(),
		Code:        code,
		Type:        req.Type,
		Status:      StatusPending,
		Amount:      req.Amount,
		FromUserID:  req.FromUserID,
		ToUserID:    req.ToUserID,
		Description: req.Description,
		ReferenceID: req.ReferenceID,
		Metadata:    datatypes.JSON(metaBytes),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if entry.ReferenceID == "" {
		// reference_id is unique; movements without an external reference
		// fall back to their own id so they never collide.
		entry.ReferenceID = entry.ID
	}
	if err := s.transactions.Create(ctx, entry); err != nil {
		// The pre-check above is best-effort; the unique index is the real
		// guard against two concurrent deliveries of one reference.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			zap.L().With(opts...).Warn("reference_id already exists")
			return nil, errutil.Conflict("reference_id already exists", nil)
		}
		zap.L().With(opts...).Error("failed to create transaction", zap.Error(err))
		return nil, err
	}

	if err := s.applyBalances(ctx, entry); err != nil {
		failedAt := time.Now()
		if updErr := s.transactions.Update(ctx, entry.ID, map[string]any{
			"status":     StatusFailed,
			"failed_at":  failedAt,
			"updated_at": failedAt,
		}); updErr != nil {
			zap.L().With(opts...).Error("failed to mark transaction failed", zap.Error(updErr))
		}
		entry.Status = StatusFailed
		entry.CompletedAt = nil
		entry.FailedAt = &failedAt
		return entry, err
	}

	return entry, nil
}

func validateExecute(req ExecuteParams) error {
	if req.Amount <= 0 {
		return errutil.ValidationFailed("amount must be > 0", nil)
	}
	if req.FromUserID == "" || req.ToUserID == "" {
		return errutil.ValidationFailed("from_user_id and to_user_id are required", nil)
	}
	if req.Description == "" {
		return errutil.ValidationFailed("description is required", nil)
	}
	if req.FromUserID == req.ToUserID {
		return errutil.ValidationFailed("from_user_id and to_user_id must differ", nil)
	}
	switch {
	case isRewardType(req.Type):
		if req.FromUserID != TreasuryUserID {
			return errutil.ValidationFailed("rewards must originate from the treasury", nil)
		}
	case req.Type == TypeTransfer, req.Type == TypeWithdrawal:
		if req.FromUserID == TreasuryUserID {
			return errutil.ValidationFailed("treasury cannot initiate transfers", nil)
		}
	default:
		return errutil.ValidationFailed("unsupported transaction type", nil)
	}
	return nil
}

// applyBalances moves the money and flips the row to completed in one
// database transaction, so balances and the terminal status commit or roll
// back together. A row can only ever end up pending if the process dies
// mid-call; the caller marks it failed on any error.
func (s *Service) applyBalances(ctx context.Context, entry *Transaction) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		if !isRewardType(entry.Type) {
			debit := map[string]any{
				"balance":             gorm.Expr("balance - ?", entry.Amount),
				"total_spent":         gorm.Expr("total_spent + ?", entry.Amount),
				"last_transaction_at": now,
				"updated_at":          now,
			}
			if entry.Type == TypeWithdrawal {
				debit["total_withdrawn"] = gorm.Expr("total_withdrawn + ?", entry.Amount)
			}

			res := tx.Model(&UserBalance{}).
				Where("user_id = ? AND balance >= ?", entry.FromUserID, entry.Amount).
				Updates(debit)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrInsufficientBalance
			}
		}

		// Withdrawn funds leave the platform; there is no receiving wallet.
		if entry.Type != TypeWithdrawal {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&UserBalance{UserID: entry.ToUserID, CreatedAt: now, UpdatedAt: now}).Error; err != nil {
				return err
			}

			credit := map[string]any{
				"balance":             gorm.Expr("balance + ?", entry.Amount),
				"last_transaction_at": now,
				"updated_at":          now,
			}
			if isRewardType(entry.Type) {
				credit["total_earned"] = gorm.Expr("total_earned + ?", entry.Amount)
			}

			if err := tx.Model(&UserBalance{}).
				Where("user_id = ?", entry.ToUserID).
				Updates(credit).Error; err != nil {
				return err
			}
		}

		if err := s.transactions.WithTrx(tx).Update(ctx, entry.ID, map[string]any{
			"status":       StatusCompleted,
			"completed_at": now,
			"updated_at":   now,
		}); err != nil {
			return err
		}

		entry.Status = StatusCompleted
		entry.CompletedAt = &now
		return nil
	})
}

func (s *Service) nextCode(ctx context.Context) (string, error) {
	if s.seq != nil {
		return s.seq.NextTransactionCode(ctx)
	}
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return fmt.Sprintf("TXN-%s-%s", time.Now().UTC().Format("060102"), hex.EncodeToString(buf)), nil
}

// Get returns one transaction by ID.
func (s *Service) Get(ctx context.Context, id string) (*Transaction, error) {
	entry, err := s.transactions.FindOne(ctx, &Transaction{ID: id})
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, errutil.NotFound("transaction not found", nil)
	}
	return entry, nil
}

// ListByUser returns a user's transactions, most recent first, on either side
// of the movement.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]*Transaction, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	var entries []*Transaction
	q := option.Apply(
		s.db.WithContext(ctx).Where("from_user_id = ? OR to_user_id = ?", userID, userID),
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "created_at",
			OrderBy: "desc",
			Allow:   map[string]bool{"created_at": true},
		}),
	)
	if err := q.Find(&entries).Error; err != nil {
		zap.L().Error("failed to list transactions",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, err
	}
	return entries, nil
}

// GetBalance returns the user's wallet, a zero-valued one when the user has
// never transacted.
func (s *Service) GetBalance(ctx context.Context, userID string) (*UserBalance, error) {
	var balance UserBalance
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&balance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &UserBalance{UserID: userID}, nil
		}
		return nil, err
	}
	return &balance, nil
}
