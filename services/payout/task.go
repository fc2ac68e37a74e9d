package payout

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"creatorpay-engine/pkg/task"
)

// NewInteractionTask wraps one event for the queue. TaskID pins asynq-level
// dedupe to the same key the ledger enforces, so a double-enqueued event is
// dropped before it ever reaches a worker.
func NewInteractionTask(e *Event) (*asynq.Task, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(PayoutProcessInteraction, payload,
		asynq.TaskID(e.Reference()),
		asynq.Queue(payoutQueue),
	), nil
}

type Task struct {
	service  *Service
	enqueuer task.Enqueuer
}

type TaskParams struct {
	fx.In

	Service  *Service
	Enqueuer task.Enqueuer `optional:"true"`
}

func NewTask(p TaskParams) *Task {
	return &Task{service: p.Service, enqueuer: p.Enqueuer}
}

// Enqueue hands one event to the payout queue.
func (t *Task) Enqueue(ctx context.Context, e *Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	aTask, err := NewInteractionTask(e)
	if err != nil {
		return err
	}
	if _, err := t.enqueuer.Enqueue(ctx, aTask); err != nil {
		return err
	}
	return nil
}

// HandleProcessInteractionTask is the asynq worker entrypoint. A returned
// error requeues the task; suppressed events resolve successfully so they are
// never retried.
func (t *Task) HandleProcessInteractionTask(ctx context.Context, at *asynq.Task) error {
	var e Event
	if err := json.Unmarshal(at.Payload(), &e); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	zapLog := zap.L().With(
		zap.String("task_type", at.Type()),
		zap.String("event_type", e.EventType),
		zap.String("target_id", e.TargetID),
		zap.String("creator_id", e.CreatorID),
	)

	res, err := t.service.Process(ctx, &e)
	if err != nil {
		zapLog.Error("failed to process interaction", zap.Error(err))
		return err
	}

	if res.ShouldPayout {
		zapLog.Info("interaction rewarded",
			zap.Float64("amount", res.Amount),
			zap.Float64("rate", res.Rate),
		)
	}
	return nil
}

func registerHandlers(mux *asynq.ServeMux, t *Task) {
	mux.HandleFunc(PayoutProcessInteraction, t.HandleProcessInteractionTask)
}
