package sysconfig

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"creatorpay-engine/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	db := testutil.NewTestDB(t, &RewardConfig{})
	return NewService(ServiceParams{DB: db})
}

func TestGetSeedsDefaults(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cfg, err := svc.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, PlatformConfigID, cfg.ID)
	require.Equal(t, 33.0, cfg.DailyBudgetAmount)
	require.Equal(t, 1e-9, cfg.MinimumPayoutAmount)
	require.Equal(t, 1000.0, cfg.MaxPayoutPerAction)
	require.True(t, cfg.EnableRewards)
	require.False(t, cfg.EnableUserTransfers)
	require.False(t, cfg.EnableWithdrawals)

	var count int64
	require.NoError(t, svc.db.Model(&RewardConfig{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestGetServesFromCache(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.Get(ctx)
	require.NoError(t, err)

	// A direct write bypassing Update is invisible until the cache expires.
	require.NoError(t, svc.db.Model(&RewardConfig{}).
		Where("id = ?", PlatformConfigID).
		Update("daily_budget_amount", 99.0).Error)

	second, err := svc.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, first.DailyBudgetAmount, second.DailyBudgetAmount)
}

func TestGetReturnsIsolatedCopy(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.Get(ctx)
	require.NoError(t, err)

	// Mutating a returned config without Update must not leak into the
	// copy handed to the next caller.
	first.DailyBudgetAmount = 0
	first.EnableRewards = false

	second, err := svc.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, 33.0, second.DailyBudgetAmount)
	require.True(t, second.EnableRewards)
}

func TestUpdateInvalidatesCache(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cfg, err := svc.Get(ctx)
	require.NoError(t, err)

	cfg.DailyBudgetAmount = 50
	cfg.LikeWeight = 8
	require.NoError(t, svc.Update(ctx, cfg))

	got, err := svc.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, 50.0, got.DailyBudgetAmount)
	require.Equal(t, 8.0, got.LikeWeight)
}

func TestUpdateRequiresConfig(t *testing.T) {
	svc := newTestService(t)
	require.Error(t, svc.Update(context.Background(), nil))
}

func TestWeight(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, 1.0, cfg.Weight("view"))
	require.Equal(t, 6.0, cfg.Weight("like"))
	require.Equal(t, 10.0, cfg.Weight("comment"))
	require.Equal(t, 8.0, cfg.Weight("bookmark"))
	require.Equal(t, 4.0, cfg.Weight("profile_view"))
	require.Equal(t, 0.0, cfg.Weight("share"))
}
