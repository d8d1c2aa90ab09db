package worker

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

const TaskDeactivateExpired = "deal:deactivate_expired"

func NewDeactivateExpiredTask() *asynq.Task {
	// A stable task ID makes concurrent scheduler replicas enqueue the
	// sweep once per period.
	return asynq.NewTask(TaskDeactivateExpired, nil, asynq.TaskID(TaskDeactivateExpired))
}

// HandleDeactivateExpired adapts the sweep to an asynq handler.
func HandleDeactivateExpired(deals DealDeactivator) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, _ *asynq.Task) error {
		count, err := deals.DeactivateExpired(ctx)
		if err != nil {
			return err
		}

		if count > 0 {
			logger(ctx).Info("deactivated expired deals", slog.Int("count", count))
		}

		return nil
	}
}
