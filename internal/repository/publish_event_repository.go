package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/socialflowhq/socialflow/internal/models"
)

type PublishEventRepository interface {
	Create(ctx context.Context, event *models.PublishEvent) (int64, error)
	GetByUserID(ctx context.Context, userID int64) ([]*models.PublishEvent, error)
}

type publishEventRepository struct {
	db *sql.DB
}

func NewPublishEventRepository(db *sql.DB) PublishEventRepository {
	return &publishEventRepository{db: db}
}

func (r *publishEventRepository) Create(ctx context.Context, event *models.PublishEvent) (int64, error) {
	query := `
		INSERT INTO publish_events (user_id, post_id, target_id, platform, outcome, message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, event.UserID, event.PostID, event.TargetID, event.Platform, event.Outcome, event.Message).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *publishEventRepository) GetByUserID(ctx context.Context, userID int64) ([]*models.PublishEvent, error) {
	query := `SELECT id, user_id, post_id, target_id, platform, outcome, message, created_at FROM publish_events WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var events []*models.PublishEvent
	for rows.Next() {
		var event models.PublishEvent
		err := rows.Scan(&event.ID, &event.UserID, &event.PostID, &event.TargetID, &event.Platform, &event.Outcome, &event.Message, &event.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		events = append(events, &event)
	}
	return events, nil
}
