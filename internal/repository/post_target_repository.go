package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/socialflowhq/socialflow/internal/models"
)

type PostTargetRepository interface {
	Create(ctx context.Context, tx *sql.Tx, target *models.PostTarget) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.PostTarget, error)
	ListByPostID(ctx context.Context, postID int64) ([]*models.PostTarget, error)
	ListEligibleByPostID(ctx context.Context, postID int64, maxAttempts int) ([]*models.PostTarget, error)
	MarkPublishing(ctx context.Context, id int64) (bool, error)
	MarkPublished(ctx context.Context, id int64, externalID string, publishedAt time.Time) error
	MarkFailed(ctx context.Context, id int64, errMsg string, terminal bool) error
	Requeue(ctx context.Context, id int64) error
	ReleaseStale(ctx context.Context, olderThan time.Time) (int64, error)
	CheckByUserID(ctx context.Context, targetID, userID int64) (bool, error)
}

type postTargetRepository struct {
	db *sql.DB
}

func NewPostTargetRepository(db *sql.DB) PostTargetRepository {
	return &postTargetRepository{db: db}
}

const targetColumns = `id, post_id, account_id, status, terminal, external_post_id, published_at, attempt_count, last_error, created_at, updated_at`

func scanTarget(row interface{ Scan(...interface{}) error }) (*models.PostTarget, error) {
	var t models.PostTarget
	err := row.Scan(&t.ID, &t.PostID, &t.AccountID, &t.Status, &t.Terminal, &t.ExternalPostID, &t.PublishedAt, &t.AttemptCount, &t.LastError, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *postTargetRepository) Create(ctx context.Context, tx *sql.Tx, target *models.PostTarget) (int64, error) {
	query := `
		INSERT INTO post_targets (post_id, account_id, status)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	var id int64
	var err error

	if tx != nil {
		err = tx.QueryRowContext(ctx, query, target.PostID, target.AccountID, models.TargetStatusPending).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, target.PostID, target.AccountID, models.TargetStatusPending).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *postTargetRepository) GetByID(ctx context.Context, id int64) (*models.PostTarget, error) {
	query := `SELECT ` + targetColumns + ` FROM post_targets WHERE id = $1`

	target, err := scanTarget(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return target, nil
}

func (r *postTargetRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.PostTarget, error) {
	query := `SELECT ` + targetColumns + ` FROM post_targets WHERE post_id = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var targets []*models.PostTarget
	for rows.Next() {
		target, err := scanTarget(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		targets = append(targets, target)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return targets, nil
}

// ListEligibleByPostID returns the targets a publish attempt should touch:
// pending ones, and failed ones that are neither terminal nor out of
// attempts. Published targets never come back, which is what makes a second
// PublishPost on the same post a no-op.
func (r *postTargetRepository) ListEligibleByPostID(ctx context.Context, postID int64, maxAttempts int) ([]*models.PostTarget, error) {
	query := `
		SELECT ` + targetColumns + `
		FROM post_targets
		WHERE post_id = $1
		  AND (status = $2 OR (status = $3 AND terminal = FALSE AND attempt_count < $4))
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, postID, models.TargetStatusPending, models.TargetStatusFailed, maxAttempts)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var targets []*models.PostTarget
	for rows.Next() {
		target, err := scanTarget(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		targets = append(targets, target)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return targets, nil
}

// MarkPublishing claims the target for an in-flight attempt. The guard on
// the current status keeps two overlapping cycles from publishing the same
// target twice.
func (r *postTargetRepository) MarkPublishing(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE post_targets
		SET status = $1,
			updated_at = $2
		WHERE id = $3 AND status IN ($4, $5)
	`
	result, err := r.db.ExecContext(ctx, query, models.TargetStatusPublishing, time.Now(), id, models.TargetStatusPending, models.TargetStatusFailed)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

func (r *postTargetRepository) MarkPublished(ctx context.Context, id int64, externalID string, publishedAt time.Time) error {
	query := `
		UPDATE post_targets
		SET status = $1,
			terminal = TRUE,
			external_post_id = $2,
			published_at = $3,
			last_error = NULL,
			updated_at = $4
		WHERE id = $5
	`
	_, err := r.db.ExecContext(ctx, query, models.TargetStatusPublished, externalID, publishedAt, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postTargetRepository) MarkFailed(ctx context.Context, id int64, errMsg string, terminal bool) error {
	query := `
		UPDATE post_targets
		SET status = $1,
			terminal = $2,
			attempt_count = attempt_count + 1,
			last_error = $3,
			updated_at = $4
		WHERE id = $5
	`
	_, err := r.db.ExecContext(ctx, query, models.TargetStatusFailed, terminal, errMsg, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// Requeue puts a terminally failed target back in line. This backs the
// explicit retry action in the UI; attempt_count is preserved.
func (r *postTargetRepository) Requeue(ctx context.Context, id int64) error {
	query := `
		UPDATE post_targets
		SET status = $1,
			terminal = FALSE,
			updated_at = $2
		WHERE id = $3 AND status = $4
	`
	_, err := r.db.ExecContext(ctx, query, models.TargetStatusPending, time.Now(), id, models.TargetStatusFailed)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// ReleaseStale returns targets stuck in publishing (a crash between claim
// and final write) to pending so a later cycle picks them up again.
func (r *postTargetRepository) ReleaseStale(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `
		UPDATE post_targets
		SET status = $1,
			updated_at = $2
		WHERE status = $3 AND updated_at < $4
	`
	result, err := r.db.ExecContext(ctx, query, models.TargetStatusPending, time.Now(), models.TargetStatusPublishing, olderThan)
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

func (r *postTargetRepository) CheckByUserID(ctx context.Context, targetID, userID int64) (bool, error) {
	query := `
		SELECT 1
		FROM post_targets t
		JOIN posts p ON p.id = t.post_id
		WHERE t.id = $1 AND p.user_id = $2
	`

	var result int
	err := r.db.QueryRowContext(ctx, query, targetID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}
