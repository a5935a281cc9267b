package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/socialflowhq/socialflow/internal/models"
)

type CronLogRepository interface {
	Create(ctx context.Context, entry *models.CronLog) (int64, error)
	ListRecent(ctx context.Context, limit int) ([]*models.CronLog, error)
	TrimToRetention(ctx context.Context, keep int) (int64, error)
}

type cronLogRepository struct {
	db *sql.DB
}

func NewCronLogRepository(db *sql.DB) CronLogRepository {
	return &cronLogRepository{db: db}
}

func (r *cronLogRepository) Create(ctx context.Context, entry *models.CronLog) (int64, error) {
	query := `
		INSERT INTO cron_logs (ran_at, total_scheduled, published_count, failed_count, error_message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, entry.RanAt, entry.TotalScheduled, entry.PublishedCount, entry.FailedCount, entry.ErrorMessage).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *cronLogRepository) ListRecent(ctx context.Context, limit int) ([]*models.CronLog, error) {
	query := `SELECT id, ran_at, total_scheduled, published_count, failed_count, error_message, created_at FROM cron_logs ORDER BY ran_at DESC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var entries []*models.CronLog
	for rows.Next() {
		var entry models.CronLog
		err := rows.Scan(&entry.ID, &entry.RanAt, &entry.TotalScheduled, &entry.PublishedCount, &entry.FailedCount, &entry.ErrorMessage, &entry.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}

// TrimToRetention deletes everything but the newest keep rows, bounding the
// growth of the run history.
func (r *cronLogRepository) TrimToRetention(ctx context.Context, keep int) (int64, error) {
	query := `
		DELETE FROM cron_logs
		WHERE id NOT IN (
			SELECT id FROM cron_logs ORDER BY ran_at DESC LIMIT $1
		)
	`
	result, err := r.db.ExecContext(ctx, query, keep)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return affected, nil
}
