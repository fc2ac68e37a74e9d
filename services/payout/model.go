package payout

import (
	"fmt"
	"time"

	"creatorpay-engine/pkg/errutil"
)

// AnonymousUserID marks unauthenticated actors. Anonymous traffic only counts
// for views, and only toward the creator-side view batch.
const AnonymousUserID = "anonymous"

var eventTypes = map[string]bool{
	"view":         true,
	"like":         true,
	"comment":      true,
	"bookmark":     true,
	"profile_view": true,
}

var targetTypes = map[string]bool{
	"album":   true,
	"media":   true,
	"profile": true,
}

// Event is one user interaction entering the payout pipeline.
type Event struct {
	EventType  string         `json:"event_type"`
	TargetType string         `json:"target_type"`
	TargetID   string         `json:"target_id"`
	UserID     string         `json:"user_id"`
	CreatorID  string         `json:"creator_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func (e *Event) Validate() error {
	if !eventTypes[e.EventType] {
		return errutil.ValidationFailed(fmt.Sprintf("unknown event type %q", e.EventType), nil)
	}
	if !targetTypes[e.TargetType] {
		return errutil.ValidationFailed(fmt.Sprintf("unknown target type %q", e.TargetType), nil)
	}
	if e.TargetID == "" {
		return errutil.ValidationFailed("target_id is required", nil)
	}
	if e.CreatorID == "" {
		return errutil.ValidationFailed("creator_id is required", nil)
	}
	if e.UserID == "" {
		return errutil.ValidationFailed("user_id is required", nil)
	}
	if e.UserID == AnonymousUserID && e.EventType != "view" {
		return errutil.ValidationFailed("anonymous users can only generate views", nil)
	}
	return nil
}

// Reference builds the idempotency key for this event's ledger row. Repeats of
// the same interaction within the same clock hour collapse onto one payout.
func (e *Event) Reference() string {
	at := e.OccurredAt
	if at.IsZero() {
		at = time.Now()
	}
	return fmt.Sprintf("%s:%s:%s:%s", e.EventType, e.TargetID, e.UserID, at.UTC().Format("2006010215"))
}

// BatchMultiplier reads how many interactions this event stands for, one when
// the metadata carries nothing usable.
func (e *Event) BatchMultiplier() int {
	if e.Metadata == nil {
		return 1
	}
	switch v := e.Metadata["batch_multiplier"].(type) {
	case int:
		if v > 0 {
			return v
		}
	case float64:
		if v > 0 {
			return int(v)
		}
	}
	return 1
}

// Result reports what the pipeline did with one event.
type Result struct {
	// Success is true when the event was accepted, whether or not it paid.
	Success bool `json:"success"`

	// ShouldPayout is true when a ledger transaction was written.
	ShouldPayout bool `json:"should_payout"`

	// Amount is the total credited to the creator, zero when no payout fired.
	Amount float64 `json:"amount"`

	// Rate is the single-action rate at calculation time.
	Rate float64 `json:"rate"`

	// Reason explains a zero payout.
	Reason string `json:"reason,omitempty"`

	// ViewCount is the actor's batch position after a view event, 0 through 9.
	ViewCount int `json:"view_count,omitempty"`
}

// Calculation is the budget-side outcome for one event before the ledger is
// touched.
type Calculation struct {
	Eligible   bool
	Amount     float64
	Rate       float64
	Reason     string
	BudgetDate string
}
