package payout

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"creatorpay-engine/pkg/config"
	"creatorpay-engine/services/budget"
	"creatorpay-engine/services/fraud"
	"creatorpay-engine/services/ledger"
	"creatorpay-engine/services/sysconfig"
	"creatorpay-engine/services/testutil"
	"creatorpay-engine/services/views"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fixture struct {
	svc       *Service
	sysconfig *sysconfig.Service
	ledger    *ledger.Service
	views     *views.Service
	fraud     *fraud.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t,
		&sysconfig.RewardConfig{},
		&budget.DailyBudget{},
		&views.ViewCounter{},
		&fraud.ConnectionRecord{},
		&ledger.Transaction{},
		&ledger.UserBalance{},
	)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	sysCfg := sysconfig.NewService(sysconfig.ServiceParams{DB: db})
	budgetSvc := budget.NewService(budget.ServiceParams{DB: db, Config: sysCfg})
	viewSvc := views.NewService(views.ServiceParams{DB: db})
	fraudSvc := fraud.NewService(fraud.ServiceParams{DB: db})
	ledgerSvc := ledger.NewService(ledger.ServiceParams{DB: db, Node: node})

	svc := NewService(ServiceParams{
		Config:    &config.Config{},
		SysConfig: sysCfg,
		Budget:    budgetSvc,
		Views:     viewSvc,
		Fraud:     fraudSvc,
		Ledger:    ledgerSvc,
	})
	svc.now = func() time.Time {
		return time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	}

	return &fixture{
		svc:       svc,
		sysconfig: sysCfg,
		ledger:    ledgerSvc,
		views:     viewSvc,
		fraud:     fraudSvc,
	}
}

func viewEvent(userID string) *Event {
	return &Event{
		EventType:  "view",
		TargetType: "media",
		TargetID:   "media-1",
		UserID:     userID,
		CreatorID:  "creator-1",
		OccurredAt: time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC),
	}
}

func TestProcessViewBatchPaysOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 1; i <= 9; i++ {
		res, err := f.svc.Process(ctx, viewEvent("viewer-1"))
		require.NoError(t, err)
		require.True(t, res.Success)
		require.False(t, res.ShouldPayout)
		require.Equal(t, i, res.ViewCount)
	}

	res, err := f.svc.Process(ctx, viewEvent("viewer-1"))
	require.NoError(t, err)
	require.True(t, res.ShouldPayout)
	require.Equal(t, 0, res.ViewCount)

	// Fresh 33.0 budget, no prior activity, half the day elapsed: the pace
	// projects 220 weighted units, so one view pays 0.15 and the batch 1.5.
	require.InDelta(t, 0.15, res.Rate, 1e-9)
	require.InDelta(t, 1.5, res.Amount, 1e-9)

	balance, err := f.ledger.GetBalance(ctx, "creator-1")
	require.NoError(t, err)
	require.InDelta(t, 1.5, balance.Balance, 1e-9)

	entries, err := f.ledger.ListByUser(ctx, "creator-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, ledger.TypeRewardView, entries[0].Type)
}

func TestProcessLikePaysImmediately(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Process(ctx, &Event{
		EventType:  "like",
		TargetType: "media",
		TargetID:   "media-1",
		UserID:     "fan-1",
		CreatorID:  "creator-1",
	})
	require.NoError(t, err)
	require.True(t, res.ShouldPayout)
	// Like weight is 6x the view weight.
	require.InDelta(t, 0.9, res.Amount, 1e-9)
}

func TestProcessAlbumViewPaysPerEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Process(ctx, &Event{
		EventType:  "view",
		TargetType: "album",
		TargetID:   "album-1",
		UserID:     "fan-1",
		CreatorID:  "creator-1",
	})
	require.NoError(t, err)
	require.True(t, res.ShouldPayout)
	require.InDelta(t, 0.15, res.Amount, 1e-9)

	// Album views never enter the tenth-view batch.
	counter, err := f.views.Get(ctx, "fan-1")
	require.NoError(t, err)
	require.Nil(t, counter)
}

func TestCalculateFirstViewOfQuietDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cfg, err := f.sysconfig.Get(ctx)
	require.NoError(t, err)
	cfg.DailyBudgetAmount = 10
	require.NoError(t, f.sysconfig.Update(ctx, cfg))

	calc, err := f.svc.Calculate(ctx, viewEvent("viewer-1"), 1)
	require.NoError(t, err)
	require.True(t, calc.Eligible)
	require.Greater(t, calc.Rate, 0.0)
	require.LessOrEqual(t, calc.Rate, 10.0)
	require.Equal(t, calc.Rate, calc.Amount)
}

func TestProcessRewardsDisabled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cfg, err := f.sysconfig.Get(ctx)
	require.NoError(t, err)
	cfg.EnableRewards = false
	require.NoError(t, f.sysconfig.Update(ctx, cfg))

	res, err := f.svc.Process(ctx, &Event{
		EventType:  "comment",
		TargetType: "media",
		TargetID:   "media-1",
		UserID:     "fan-1",
		CreatorID:  "creator-1",
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.False(t, res.ShouldPayout)
	require.Equal(t, "rewards disabled", res.Reason)
}

func TestProcessBelowMinimumPayout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cfg, err := f.sysconfig.Get(ctx)
	require.NoError(t, err)
	cfg.DailyBudgetAmount = 0.001
	cfg.MinimumPayoutAmount = 0.01
	require.NoError(t, f.sysconfig.Update(ctx, cfg))

	res, err := f.svc.Process(ctx, &Event{
		EventType:  "like",
		TargetType: "media",
		TargetID:   "media-1",
		UserID:     "fan-1",
		CreatorID:  "creator-1",
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.False(t, res.ShouldPayout)
	require.Equal(t, "payout below minimum", res.Reason)

	balance, err := f.ledger.GetBalance(ctx, "creator-1")
	require.NoError(t, err)
	require.Equal(t, 0.0, balance.Balance)
}

func TestProcessAnonymousView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Process(ctx, viewEvent(AnonymousUserID))
	require.NoError(t, err)
	require.True(t, res.Success)
	require.False(t, res.ShouldPayout)

	counter, err := f.views.Get(ctx, AnonymousUserID)
	require.NoError(t, err)
	require.Nil(t, counter)
}

func TestProcessAnonymousViewAnyTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, target := range []string{"album", "profile"} {
		res, err := f.svc.Process(ctx, &Event{
			EventType:  "view",
			TargetType: target,
			TargetID:   target + "-1",
			UserID:     AnonymousUserID,
			CreatorID:  "creator-1",
		})
		require.NoError(t, err)
		require.True(t, res.Success)
		require.False(t, res.ShouldPayout)
	}

	entries, err := f.ledger.ListByUser(ctx, "creator-1")
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestProcessAnonymousNonViewRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Process(context.Background(), &Event{
		EventType:  "like",
		TargetType: "media",
		TargetID:   "media-1",
		UserID:     AnonymousUserID,
		CreatorID:  "creator-1",
	})
	require.Error(t, err)
}

func TestProcessFraudSuppressed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.fraud.Record(ctx, "fan-1", "10.0.0.7"))
	require.NoError(t, f.fraud.Record(ctx, "creator-1", "10.0.0.7"))

	res, err := f.svc.Process(ctx, &Event{
		EventType:  "like",
		TargetType: "media",
		TargetID:   "media-1",
		UserID:     "fan-1",
		CreatorID:  "creator-1",
	})
	require.NoError(t, err)
	// The caller sees an accepted event, no payout, and the screening verdict.
	require.True(t, res.Success)
	require.False(t, res.ShouldPayout)
	require.Contains(t, res.Reason, "connection origin")

	entries, err := f.ledger.ListByUser(ctx, "creator-1")
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestProcessDuplicateInteraction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e := &Event{
		EventType:  "bookmark",
		TargetType: "media",
		TargetID:   "media-1",
		UserID:     "fan-1",
		CreatorID:  "creator-1",
		OccurredAt: time.Date(2026, 8, 29, 12, 5, 0, 0, time.UTC),
	}

	first, err := f.svc.Process(ctx, e)
	require.NoError(t, err)
	require.True(t, first.ShouldPayout)

	second, err := f.svc.Process(ctx, e)
	require.NoError(t, err)
	require.True(t, second.Success)
	require.False(t, second.ShouldPayout)
	require.Equal(t, "already rewarded", second.Reason)

	entries, err := f.ledger.ListByUser(ctx, "creator-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestEventValidate(t *testing.T) {
	cases := []struct {
		name string
		e    Event
		ok   bool
	}{
		{"valid view", Event{EventType: "view", TargetType: "media", TargetID: "m", UserID: "u", CreatorID: "c"}, true},
		{"unknown event", Event{EventType: "share", TargetType: "media", TargetID: "m", UserID: "u", CreatorID: "c"}, false},
		{"unknown target", Event{EventType: "view", TargetType: "playlist", TargetID: "m", UserID: "u", CreatorID: "c"}, false},
		{"album like", Event{EventType: "like", TargetType: "album", TargetID: "a", UserID: "u", CreatorID: "c"}, true},
		{"profile view", Event{EventType: "profile_view", TargetType: "profile", TargetID: "p", UserID: "u", CreatorID: "c"}, true},
		{"missing creator", Event{EventType: "view", TargetType: "media", TargetID: "m", UserID: "u"}, false},
		{"anonymous view", Event{EventType: "view", TargetType: "media", TargetID: "m", UserID: AnonymousUserID, CreatorID: "c"}, true},
		{"anonymous like", Event{EventType: "like", TargetType: "media", TargetID: "m", UserID: AnonymousUserID, CreatorID: "c"}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.e.Validate()
			if c.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}
