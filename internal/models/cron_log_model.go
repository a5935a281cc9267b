package models

import "time"

// CronLog records one scheduler cycle. Rows are append-only.
type CronLog struct {
	ID             int64     `db:"id" json:"id"`
	RanAt          time.Time `db:"ran_at" json:"ran_at"`
	TotalScheduled int       `db:"total_scheduled" json:"total_scheduled"`
	PublishedCount int       `db:"published_count" json:"published_count"`
	FailedCount    int       `db:"failed_count" json:"failed_count"`
	ErrorMessage   string    `db:"error_message" json:"error_message"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
