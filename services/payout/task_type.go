package payout

const (
	PayoutProcessInteraction = "payout:interaction"

	payoutQueue = "payouts"
)
