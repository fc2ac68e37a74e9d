package ledger

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"creatorpay-engine/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	db := testutil.NewTestDB(t, &Transaction{}, &UserBalance{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return NewService(ServiceParams{DB: db, Node: node})
}

func TestExecuteRewardCreditsCreator(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	entry, err := svc.Execute(ctx, ExecuteParams{
		Type:        TypeRewardView,
		Amount:      0.002,
		FromUserID:  TreasuryUserID,
		ToUserID:    "creator-1",
		Description: "batched media view reward",
		ReferenceID: "view:media-1:user-1:2026082909",
	})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, entry.Status)
	require.NotNil(t, entry.CompletedAt)
	require.NotEmpty(t, entry.Code)

	balance, err := svc.GetBalance(ctx, "creator-1")
	require.NoError(t, err)
	require.InDelta(t, 0.002, balance.Balance, 1e-12)
	require.InDelta(t, 0.002, balance.TotalEarned, 1e-12)
	require.NotNil(t, balance.LastTransactionAt)
}

func TestExecuteValidationWritesNothing(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cases := []ExecuteParams{
		{Type: TypeRewardView, Amount: 0, FromUserID: TreasuryUserID, ToUserID: "creator-1"},
		{Type: TypeRewardView, Amount: 0.002, FromUserID: "user-1", ToUserID: "creator-1"},
		{Type: TypeTransfer, Amount: 1, FromUserID: "user-1", ToUserID: "user-1"},
		{Type: "bogus", Amount: 1, FromUserID: "user-1", ToUserID: "user-2"},
		{Type: TypeTransfer, Amount: 1, FromUserID: TreasuryUserID, ToUserID: "user-2"},
	}
	for _, c := range cases {
		_, err := svc.Execute(ctx, c)
		require.Error(t, err)
	}

	count, err := svc.transactions.Count(ctx, &Transaction{})
	require.NoError(t, err)
	require.Equal(t, int64(0), count)
}

func TestExecuteDuplicateReference(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	req := ExecuteParams{
		Type:        TypeRewardLike,
		Description: "like reward",
		Amount:      0.012,
		FromUserID:  TreasuryUserID,
		ToUserID:    "creator-1",
		ReferenceID: "like:media-1:user-1:2026082909",
	}

	_, err := svc.Execute(ctx, req)
	require.NoError(t, err)

	_, err = svc.Execute(ctx, req)
	require.Error(t, err)

	balance, err := svc.GetBalance(ctx, "creator-1")
	require.NoError(t, err)
	require.InDelta(t, 0.012, balance.Balance, 1e-12)
}

func TestExecuteDefaultsEmptyReference(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		entry, err := svc.Execute(ctx, ExecuteParams{
			Type: TypeRewardView, Amount: 1,
			FromUserID: TreasuryUserID, ToUserID: "creator-1",
			Description: "batched media view reward",
		})
		require.NoError(t, err)
		// Rows without a caller reference fall back to their own ID so the
		// unique index never treats them as duplicates of each other.
		require.Equal(t, entry.ID, entry.ReferenceID)
	}

	balance, err := svc.GetBalance(ctx, "creator-1")
	require.NoError(t, err)
	require.InDelta(t, 2.0, balance.Balance, 1e-12)
}

func TestReferenceUniqueAtStore(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.transactions.Create(ctx, &Transaction{
		ID: "tx-1", Code: "TXN-1", Type: TypeRewardView,
		Status: StatusPending, Amount: 1,
		FromUserID: TreasuryUserID, ToUserID: "creator-1",
		ReferenceID: "view:media-1:user-1:2026082909",
	}))

	err := svc.transactions.Create(ctx, &Transaction{
		ID: "tx-2", Code: "TXN-2", Type: TypeRewardView,
		Status: StatusPending, Amount: 1,
		FromUserID: TreasuryUserID, ToUserID: "creator-1",
		ReferenceID: "view:media-1:user-1:2026082909",
	})
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestExecuteTransferInsufficientBalance(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	entry, err := svc.Execute(ctx, ExecuteParams{
		Type:        TypeTransfer,
		Amount:      5,
		FromUserID:  "user-1",
		ToUserID:    "user-2",
		Description: "wallet transfer",
	})
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Equal(t, StatusFailed, entry.Status)
	require.NotNil(t, entry.FailedAt)

	// The failed row stays on the ledger for audit.
	got, err := svc.Get(ctx, entry.ID)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, got.Status)

	balance, err := svc.GetBalance(ctx, "user-2")
	require.NoError(t, err)
	require.Equal(t, 0.0, balance.Balance)
}

func TestExecuteTransferMovesFunds(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Execute(ctx, ExecuteParams{
		Type: TypeRewardComment, Amount: 1.5,
		FromUserID: TreasuryUserID, ToUserID: "user-1",
		Description: "comment reward",
	})
	require.NoError(t, err)

	_, err = svc.Execute(ctx, ExecuteParams{
		Type: TypeTransfer, Amount: 0.5,
		FromUserID: "user-1", ToUserID: "user-2",
		Description: "wallet transfer",
	})
	require.NoError(t, err)

	from, err := svc.GetBalance(ctx, "user-1")
	require.NoError(t, err)
	require.InDelta(t, 1.0, from.Balance, 1e-12)
	require.InDelta(t, 0.5, from.TotalSpent, 1e-12)

	to, err := svc.GetBalance(ctx, "user-2")
	require.NoError(t, err)
	require.InDelta(t, 0.5, to.Balance, 1e-12)
	require.Equal(t, 0.0, to.TotalEarned)
}

func TestExecuteWithdrawal(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Execute(ctx, ExecuteParams{
		Type: TypeRewardView, Amount: 2,
		FromUserID: TreasuryUserID, ToUserID: "user-1",
		Description: "batched media view reward",
	})
	require.NoError(t, err)

	_, err = svc.Execute(ctx, ExecuteParams{
		Type: TypeWithdrawal, Amount: 1.25,
		FromUserID: "user-1", ToUserID: "bank:acct-9",
		Description: "withdrawal to bank",
	})
	require.NoError(t, err)

	balance, err := svc.GetBalance(ctx, "user-1")
	require.NoError(t, err)
	require.InDelta(t, 0.75, balance.Balance, 1e-12)
	require.InDelta(t, 1.25, balance.TotalWithdrawn, 1e-12)
}

func TestExecuteNeverLeavesPending(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Execute(ctx, ExecuteParams{
		Type: TypeRewardView, Amount: 1,
		FromUserID: TreasuryUserID, ToUserID: "creator-1",
		Description: "batched media view reward",
	})
	require.NoError(t, err)

	_, err = svc.Execute(ctx, ExecuteParams{
		Type: TypeTransfer, Amount: 100,
		FromUserID: "creator-1", ToUserID: "user-2",
		Description: "wallet transfer",
	})
	require.ErrorIs(t, err, ErrInsufficientBalance)

	pending, err := svc.transactions.Count(ctx, &Transaction{Status: StatusPending})
	require.NoError(t, err)
	require.Equal(t, int64(0), pending)

	completed, err := svc.transactions.Count(ctx, &Transaction{Status: StatusCompleted})
	require.NoError(t, err)
	require.Equal(t, int64(1), completed)

	failed, err := svc.transactions.Count(ctx, &Transaction{Status: StatusFailed})
	require.NoError(t, err)
	require.Equal(t, int64(1), failed)
}

func TestListByUser(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Execute(ctx, ExecuteParams{
		Type: TypeRewardView, Amount: 1,
		FromUserID: TreasuryUserID, ToUserID: "user-1",
		Description: "batched media view reward",
	})
	require.NoError(t, err)

	_, err = svc.Execute(ctx, ExecuteParams{
		Type: TypeTransfer, Amount: 0.25,
		FromUserID: "user-1", ToUserID: "user-2",
		Description: "wallet transfer",
	})
	require.NoError(t, err)

	entries, err := svc.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	entries, err = svc.ListByUser(ctx, "user-2")
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
