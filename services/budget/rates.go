package budget

import (
	"time"

	"creatorpay-engine/services/sysconfig"
)

const (
	// paceBuffer pads the observed activity so early-day rates do not spike
	// before any interactions have landed.
	paceBuffer = 10.0

	// defaultSeedActivity stands in for yesterday's weighted activity when no
	// prior day exists.
	defaultSeedActivity = 100.0

	// minDayFraction keeps the elapsed-day divisor away from zero right after
	// midnight. 1/96 is fifteen minutes.
	minDayFraction = 1.0 / 96
)

// ComputeRates derives the current per-category payout rates from the day's
// remaining budget, the activity observed so far, and how much of the day has
// elapsed. prevWeighted is the previous day's weighted activity, used to seed
// the projection when today has seen nothing yet.
//
// Rates fall as activity outpaces the clock and rise when spend lags, so the
// budget stretches across the whole day instead of draining in the first busy
// hour. An exhausted budget yields all-zero rates.
func ComputeRates(b *DailyBudget, cfg *sysconfig.RewardConfig, now time.Time, prevWeighted float64) Rates {
	if b.RemainingBudget <= 0 {
		return Rates{}
	}

	weighted := b.WeightedActivity(cfg)
	if weighted <= 0 {
		weighted = prevWeighted
	}
	if weighted <= 0 {
		weighted = defaultSeedActivity
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	frac := now.Sub(dayStart).Hours() / 24
	if frac < minDayFraction {
		frac = minDayFraction
	}

	// Projected weighted units for the full day, given the pace so far.
	pace := (weighted + paceBuffer) / frac

	perUnit := b.RemainingBudget / pace

	clamp := func(rate float64) float64 {
		if rate > cfg.MaxPayoutPerAction {
			rate = cfg.MaxPayoutPerAction
		}
		// Never let a single action take more than half of what is left.
		if half := b.RemainingBudget / 2; rate > half {
			rate = half
		}
		if rate < 0 {
			rate = 0
		}
		return rate
	}

	return Rates{
		View:        clamp(perUnit * cfg.ViewWeight),
		Like:        clamp(perUnit * cfg.LikeWeight),
		Comment:     clamp(perUnit * cfg.CommentWeight),
		Bookmark:    clamp(perUnit * cfg.BookmarkWeight),
		ProfileView: clamp(perUnit * cfg.ProfileViewWeight),
	}
}
