package models

import "time"

// PublishEvent is the append-only audit record of one terminal target
// outcome, feeding notifications and analytics.
type PublishEvent struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	PostID    int64     `db:"post_id" json:"post_id"`
	TargetID  int64     `db:"target_id" json:"target_id"`
	Platform  string    `db:"platform" json:"platform"`
	Outcome   string    `db:"outcome" json:"outcome"`
	Message   string    `db:"message" json:"message"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

const (
	OutcomePublished      = "published"
	OutcomeFailed         = "failed"
	OutcomeNeedsReconnect = "needs_reconnect"
)
