package featureflags

import (
	"context"

	"creatorpay-engine/pkg/config"

	flagsmith "github.com/Flagsmith/flagsmith-go-client/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("featureflags", fx.Provide(ProvideFeatureFlag))

const rewardsFlag = "creator_rewards_enabled"

// FeatureFlag is the operational kill switch consulted on top of the stored
// reward config. Without an API key every flag reads as enabled.
type FeatureFlag interface {
	RewardsEnabled(ctx context.Context) bool
}

type featureflag struct {
	client *flagsmith.Client
}

type FeatureParams struct {
	fx.In
	Config *config.Config
}

func ProvideFeatureFlag(p FeatureParams) FeatureFlag {
	if p.Config.Flagsmith.ApiKey == "" {
		return &featureflag{}
	}

	opts := []flagsmith.Option{
		flagsmith.WithBaseURL(p.Config.Flagsmith.Addr),
		flagsmith.WithAnalytics(),
	}

	return &featureflag{
		client: flagsmith.NewClient(p.Config.Flagsmith.ApiKey, opts...),
	}
}

func (s *featureflag) RewardsEnabled(ctx context.Context) bool {
	if s.client == nil {
		return true
	}

	flags, err := s.client.GetEnvironmentFlags()
	if err != nil {
		// flag service outage must not stop payouts
		zap.L().Warn("failed to fetch feature flags", zap.Error(err))
		return true
	}

	enabled, err := flags.IsFeatureEnabled(rewardsFlag)
	if err != nil {
		return true
	}
	return enabled
}
