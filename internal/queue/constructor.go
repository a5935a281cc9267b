package queue

import (
	"github.com/socialflowhq/socialflow/internal/publisher"
)

// Queue adapts the orchestrator to asynq task handling. Scheduled posts are
// enqueued with a delay matching their trigger time; the periodic scheduler
// cycle is the safety net for anything the queue misses.
type Queue struct {
	orchestrator *publisher.Orchestrator
}

func NewQueue(orchestrator *publisher.Orchestrator) *Queue {
	return &Queue{orchestrator: orchestrator}
}

const TaskTypePublishPost = "publish:post"

type PublishPostPayload struct {
	PostID int64 `json:"post_id"`
}
