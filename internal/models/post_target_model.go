package models

import (
	"database/sql"
	"time"
)

// PostTarget is one platform-specific publication attempt belonging to a
// post. Targets are created when a post is scheduled and only ever mutated
// by the publish pipeline. ExternalPostID is set exactly when the target
// reaches the published status; AttemptCount never decreases.
type PostTarget struct {
	ID             int64          `db:"id" json:"id"`
	PostID         int64          `db:"post_id" json:"post_id"`
	AccountID      int64          `db:"account_id" json:"account_id"`
	Status         string         `db:"status" json:"status"` // pending, publishing, published, failed
	Terminal       bool           `db:"terminal" json:"terminal"`
	ExternalPostID sql.NullString `db:"external_post_id" json:"external_post_id"`
	PublishedAt    sql.NullTime   `db:"published_at" json:"published_at"`
	AttemptCount   int            `db:"attempt_count" json:"attempt_count"`
	LastError      sql.NullString `db:"last_error" json:"last_error"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

const (
	TargetStatusPending    = "pending"
	TargetStatusPublishing = "publishing"
	TargetStatusPublished  = "published"
	TargetStatusFailed     = "failed"
)
