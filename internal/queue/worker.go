package queue

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

// HandlePublishPostTask runs one queued publish through the orchestrator.
// The orchestrator owns retries via target state, so the task itself never
// asks asynq to retry; a failed attempt is picked up by the next scheduler
// cycle.
func (q *Queue) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	summary, err := q.orchestrator.PublishPost(ctx, payload.PostID)
	if err != nil {
		slog.Error(err.Error())
		return nil
	}

	slog.Info("queued publish finished",
		"post_id", payload.PostID,
		"published", summary.Published,
		"failed", summary.Failed,
		"retrying", summary.Retrying)
	return nil
}
