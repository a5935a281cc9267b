package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/socialflowhq/socialflow/configs"
	"github.com/socialflowhq/socialflow/internal/models"
	"github.com/socialflowhq/socialflow/internal/publisher"
)

type stubPostRepo struct {
	due            []*models.Post
	dueErr         error
	retryable      []*models.Post
	retryableErr   error
	releasedBefore time.Time
	released       int64
	releaseErr     error
}

func (r *stubPostRepo) GetByID(ctx context.Context, id int64) (*models.Post, error) { return nil, nil }
func (r *stubPostRepo) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	return 0, nil
}
func (r *stubPostRepo) GetByUserID(ctx context.Context, userID int64) ([]*models.Post, error) {
	return nil, nil
}
func (r *stubPostRepo) FindDue(ctx context.Context, now time.Time) ([]*models.Post, error) {
	return r.due, r.dueErr
}
func (r *stubPostRepo) FindRetryable(ctx context.Context, now time.Time, maxAttempts int) ([]*models.Post, error) {
	return r.retryable, r.retryableErr
}
func (r *stubPostRepo) UpdateStatus(ctx context.Context, status string, postID int64) error {
	return nil
}
func (r *stubPostRepo) CompareAndSetStatus(ctx context.Context, postID int64, from, to string) (bool, error) {
	return false, nil
}
func (r *stubPostRepo) ReleaseStalePublishing(ctx context.Context, olderThan time.Time) (int64, error) {
	r.releasedBefore = olderThan
	return r.released, r.releaseErr
}
func (r *stubPostRepo) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	return false, nil
}
func (r *stubPostRepo) Remove(ctx context.Context, id int64) error { return nil }

type stubTargetRepo struct {
	releasedBefore time.Time
	released       int64
	releaseErr     error
}

func (r *stubTargetRepo) Create(ctx context.Context, tx *sql.Tx, target *models.PostTarget) (int64, error) {
	return 0, nil
}
func (r *stubTargetRepo) GetByID(ctx context.Context, id int64) (*models.PostTarget, error) {
	return nil, nil
}
func (r *stubTargetRepo) ListByPostID(ctx context.Context, postID int64) ([]*models.PostTarget, error) {
	return nil, nil
}
func (r *stubTargetRepo) ListEligibleByPostID(ctx context.Context, postID int64, maxAttempts int) ([]*models.PostTarget, error) {
	return nil, nil
}
func (r *stubTargetRepo) MarkPublishing(ctx context.Context, id int64) (bool, error) {
	return false, nil
}
func (r *stubTargetRepo) MarkPublished(ctx context.Context, id int64, externalID string, publishedAt time.Time) error {
	return nil
}
func (r *stubTargetRepo) MarkFailed(ctx context.Context, id int64, errMsg string, terminal bool) error {
	return nil
}
func (r *stubTargetRepo) Requeue(ctx context.Context, id int64) error { return nil }
func (r *stubTargetRepo) ReleaseStale(ctx context.Context, olderThan time.Time) (int64, error) {
	r.releasedBefore = olderThan
	return r.released, r.releaseErr
}
func (r *stubTargetRepo) CheckByUserID(ctx context.Context, targetID, userID int64) (bool, error) {
	return false, nil
}

type memoryCronLogRepo struct {
	entries []*models.CronLog
	trimmed int64
	keep    int
}

func (r *memoryCronLogRepo) Create(ctx context.Context, entry *models.CronLog) (int64, error) {
	r.entries = append(r.entries, entry)
	return int64(len(r.entries)), nil
}
func (r *memoryCronLogRepo) ListRecent(ctx context.Context, limit int) ([]*models.CronLog, error) {
	return r.entries, nil
}
func (r *memoryCronLogRepo) TrimToRetention(ctx context.Context, keep int) (int64, error) {
	r.keep = keep
	return r.trimmed, nil
}

type stubPublisher struct {
	summaries map[int64]*publisher.Summary
	errs      map[int64]error
	calls     []int64
}

func (p *stubPublisher) PublishPost(ctx context.Context, postID int64) (*publisher.Summary, error) {
	p.calls = append(p.calls, postID)
	if err, ok := p.errs[postID]; ok {
		return nil, err
	}
	if s, ok := p.summaries[postID]; ok {
		return s, nil
	}
	return &publisher.Summary{PostID: postID}, nil
}

func testPublishingConfig() config.Publishing {
	return config.Publishing{
		MaxAttempts:      3,
		Concurrency:      4,
		AdapterTimeout:   time.Second,
		StalePublishAge:  15 * time.Minute,
		CronLogRetention: 500,
	}
}

func post(id int64) *models.Post {
	return &models.Post{ID: id, Status: models.PostStatusScheduled}
}

func TestRunCycleCountsOutcomes(t *testing.T) {
	posts := &stubPostRepo{due: []*models.Post{post(1), post(2)}}
	pub := &stubPublisher{
		summaries: map[int64]*publisher.Summary{
			1: {PostID: 1, Published: 2, PostStatus: models.PostStatusPublished},
			2: {PostID: 2, Failed: 1, PostStatus: models.PostStatusFailed},
		},
	}
	cronLogs := &memoryCronLogRepo{}

	s := NewScheduler(posts, &stubTargetRepo{}, cronLogs, pub, testPublishingConfig())

	result, err := s.RunCycle(context.Background(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalScheduled)
	assert.Equal(t, 2, result.PublishedCount)
	assert.Equal(t, 1, result.FailedCount)

	require.Len(t, cronLogs.entries, 1)
	assert.Equal(t, 2, cronLogs.entries[0].TotalScheduled)
	assert.Empty(t, cronLogs.entries[0].ErrorMessage)
}

func TestRunCycleIsolatesPostFailures(t *testing.T) {
	posts := &stubPostRepo{due: []*models.Post{post(1), post(2), post(3)}}
	pub := &stubPublisher{
		summaries: map[int64]*publisher.Summary{
			1: {PostID: 1, Published: 1},
			3: {PostID: 3, Published: 1},
		},
		errs: map[int64]error{2: errors.New("store blew up")},
	}
	cronLogs := &memoryCronLogRepo{}

	s := NewScheduler(posts, &stubTargetRepo{}, cronLogs, pub, testPublishingConfig())

	result, err := s.RunCycle(context.Background(), time.Now())
	require.NoError(t, err)

	// All three were attempted despite the middle one failing.
	assert.Equal(t, []int64{1, 2, 3}, pub.calls)
	assert.Equal(t, 2, result.PublishedCount)
	assert.Equal(t, 1, result.FailedCount)

	require.Len(t, cronLogs.entries, 1)
	assert.Contains(t, cronLogs.entries[0].ErrorMessage, "post 2")
}

func TestRunCycleMergesDueAndRetryable(t *testing.T) {
	posts := &stubPostRepo{
		due:       []*models.Post{post(1), post(2)},
		retryable: []*models.Post{post(2), post(3)},
	}
	pub := &stubPublisher{}
	cronLogs := &memoryCronLogRepo{}

	s := NewScheduler(posts, &stubTargetRepo{}, cronLogs, pub, testPublishingConfig())

	result, err := s.RunCycle(context.Background(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalScheduled)
	assert.Equal(t, []int64{1, 2, 3}, pub.calls)
}

func TestRunCycleAbortsOnDueQueryFailure(t *testing.T) {
	posts := &stubPostRepo{dueErr: errors.New("db down")}
	cronLogs := &memoryCronLogRepo{}

	s := NewScheduler(posts, &stubTargetRepo{}, cronLogs, &stubPublisher{}, testPublishingConfig())

	_, err := s.RunCycle(context.Background(), time.Now())
	require.Error(t, err)

	// Even the aborted run leaves a trace.
	require.Len(t, cronLogs.entries, 1)
	assert.Contains(t, cronLogs.entries[0].ErrorMessage, "db down")
}

func TestRunCycleRetryableQueryFailureIsNotFatal(t *testing.T) {
	posts := &stubPostRepo{
		due:          []*models.Post{post(1)},
		retryableErr: errors.New("query timeout"),
	}
	pub := &stubPublisher{}
	cronLogs := &memoryCronLogRepo{}

	s := NewScheduler(posts, &stubTargetRepo{}, cronLogs, pub, testPublishingConfig())

	result, err := s.RunCycle(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalScheduled)
}

func TestCleanup(t *testing.T) {
	posts := &stubPostRepo{released: 1}
	targets := &stubTargetRepo{released: 2}
	cronLogs := &memoryCronLogRepo{trimmed: 7}

	s := NewScheduler(posts, targets, cronLogs, &stubPublisher{}, testPublishingConfig())

	now := time.Now()
	err := s.Cleanup(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, now.Add(-15*time.Minute), targets.releasedBefore)
	// Posts wedged in publishing by a crash go back to scheduled too,
	// under the same staleness cutoff as their targets.
	assert.Equal(t, now.Add(-15*time.Minute), posts.releasedBefore)
	assert.Equal(t, 500, cronLogs.keep)
}
