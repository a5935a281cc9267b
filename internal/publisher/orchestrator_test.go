package publisher

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/socialflowhq/socialflow/configs"
	"github.com/socialflowhq/socialflow/internal/audit"
	"github.com/socialflowhq/socialflow/internal/models"
	"github.com/socialflowhq/socialflow/internal/platform"
	"github.com/socialflowhq/socialflow/pkg/utils"
)

var testSecretKey = []byte("0123456789abcdef0123456789abcdef")

func testConfig() config.Publishing {
	return config.Publishing{
		MaxAttempts:    3,
		Concurrency:    4,
		AdapterTimeout: time.Second,
	}
}

// --- in-memory fakes ---

type fakePostRepo struct {
	mu    sync.Mutex
	posts map[int64]*models.Post
}

func newFakePostRepo(posts ...*models.Post) *fakePostRepo {
	r := &fakePostRepo{posts: make(map[int64]*models.Post)}
	for _, p := range posts {
		r.posts[p.ID] = p
	}
	return r
}

func (r *fakePostRepo) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

func (r *fakePostRepo) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	return 0, errors.New("not implemented")
}

func (r *fakePostRepo) GetByUserID(ctx context.Context, userID int64) ([]*models.Post, error) {
	return nil, nil
}

func (r *fakePostRepo) FindDue(ctx context.Context, now time.Time) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []*models.Post
	for _, p := range r.posts {
		if p.Status == models.PostStatusScheduled && !p.ScheduledTime.After(now) {
			copied := *p
			due = append(due, &copied)
		}
	}
	return due, nil
}

func (r *fakePostRepo) FindRetryable(ctx context.Context, now time.Time, maxAttempts int) ([]*models.Post, error) {
	return nil, nil
}

func (r *fakePostRepo) UpdateStatus(ctx context.Context, status string, postID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.posts[postID]; ok {
		p.Status = status
	}
	return nil
}

func (r *fakePostRepo) CompareAndSetStatus(ctx context.Context, postID int64, from, to string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[postID]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	return true, nil
}

func (r *fakePostRepo) ReleaseStalePublishing(ctx context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var released int64
	for _, p := range r.posts {
		if p.Status == models.PostStatusPublishing && p.UpdatedAt.Before(olderThan) {
			p.Status = models.PostStatusScheduled
			released++
		}
	}
	return released, nil
}

func (r *fakePostRepo) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	return false, nil
}

func (r *fakePostRepo) Remove(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.posts, id)
	return nil
}

type fakeTargetRepo struct {
	mu              sync.Mutex
	targets         map[int64]*models.PostTarget
	listEligibleErr error
}

func newFakeTargetRepo(targets ...*models.PostTarget) *fakeTargetRepo {
	r := &fakeTargetRepo{targets: make(map[int64]*models.PostTarget)}
	for _, t := range targets {
		r.targets[t.ID] = t
	}
	return r
}

func (r *fakeTargetRepo) Create(ctx context.Context, tx *sql.Tx, target *models.PostTarget) (int64, error) {
	return 0, errors.New("not implemented")
}

func (r *fakeTargetRepo) GetByID(ctx context.Context, id int64) (*models.PostTarget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.targets[id]
	if !ok {
		return nil, nil
	}
	copied := *t
	return &copied, nil
}

func (r *fakeTargetRepo) ListByPostID(ctx context.Context, postID int64) ([]*models.PostTarget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.PostTarget
	for _, t := range r.targets {
		if t.PostID == postID {
			copied := *t
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeTargetRepo) ListEligibleByPostID(ctx context.Context, postID int64, maxAttempts int) ([]*models.PostTarget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listEligibleErr != nil {
		return nil, r.listEligibleErr
	}
	var out []*models.PostTarget
	for _, t := range r.targets {
		if t.PostID != postID {
			continue
		}
		eligible := t.Status == models.TargetStatusPending ||
			(t.Status == models.TargetStatusFailed && !t.Terminal && t.AttemptCount < maxAttempts)
		if eligible {
			copied := *t
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeTargetRepo) MarkPublishing(ctx context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.targets[id]
	if !ok {
		return false, nil
	}
	claimable := t.Status == models.TargetStatusPending ||
		(t.Status == models.TargetStatusFailed && !t.Terminal)
	if !claimable {
		return false, nil
	}
	t.Status = models.TargetStatusPublishing
	return true, nil
}

func (r *fakeTargetRepo) MarkPublished(ctx context.Context, id int64, externalID string, publishedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.targets[id]
	t.Status = models.TargetStatusPublished
	t.ExternalPostID = sql.NullString{String: externalID, Valid: true}
	t.PublishedAt = sql.NullTime{Time: publishedAt, Valid: true}
	return nil
}

func (r *fakeTargetRepo) MarkFailed(ctx context.Context, id int64, errMsg string, terminal bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.targets[id]
	t.Status = models.TargetStatusFailed
	t.Terminal = terminal
	t.AttemptCount++
	t.LastError = sql.NullString{String: errMsg, Valid: true}
	return nil
}

func (r *fakeTargetRepo) Requeue(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.targets[id]
	t.Status = models.TargetStatusPending
	t.Terminal = false
	return nil
}

func (r *fakeTargetRepo) ReleaseStale(ctx context.Context, olderThan time.Time) (int64, error) {
	return 0, nil
}

func (r *fakeTargetRepo) CheckByUserID(ctx context.Context, targetID, userID int64) (bool, error) {
	return false, nil
}

type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[int64]*models.SocialAccount
	statuses map[int64]string
	getErr   error
}

func newFakeAccountRepo(accounts ...*models.SocialAccount) *fakeAccountRepo {
	r := &fakeAccountRepo{
		accounts: make(map[int64]*models.SocialAccount),
		statuses: make(map[int64]string),
	}
	for _, a := range accounts {
		r.accounts[a.ID] = a
	}
	return r
}

func (r *fakeAccountRepo) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	a, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	copied := *a
	return &copied, nil
}

func (r *fakeAccountRepo) Create(ctx context.Context, tx *sql.Tx, account *models.SocialAccount) (int64, error) {
	return 0, errors.New("not implemented")
}

func (r *fakeAccountRepo) ListInfoByUserID(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	return nil, nil
}

func (r *fakeAccountRepo) ListByTimeInterval(ctx context.Context, from, to time.Time) ([]*models.SocialAccount, error) {
	return nil, nil
}

func (r *fakeAccountRepo) CheckByUserID(ctx context.Context, accountID, userID int64) (bool, error) {
	return false, nil
}

func (r *fakeAccountRepo) SetToken(ctx context.Context, id int64, account *models.SocialAccount) error {
	return nil
}

func (r *fakeAccountRepo) SetStatus(ctx context.Context, id int64, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[id] = status
	if a, ok := r.accounts[id]; ok {
		a.AccountStatus = status
	}
	return nil
}

func (r *fakeAccountRepo) Remove(ctx context.Context, id int64) error {
	return nil
}

type fakePostMediaRepo struct{}

func (r *fakePostMediaRepo) Create(ctx context.Context, tx *sql.Tx, pm *models.PostMedia) error {
	return errors.New("not implemented")
}

func (r *fakePostMediaRepo) ListByPostID(ctx context.Context, postID int64) ([]*models.PostMedia, error) {
	return nil, nil
}

type fakeAssetRepo struct{}

func (r *fakeAssetRepo) GetByID(ctx context.Context, id int64) (*models.MediaAsset, error) {
	return nil, nil
}

func (r *fakeAssetRepo) Create(ctx context.Context, tx *sql.Tx, asset *models.MediaAsset) (int64, error) {
	return 0, errors.New("not implemented")
}

func (r *fakeAssetRepo) Remove(ctx context.Context, id int64) error {
	return nil
}

type fakePublisher struct {
	platformName string
	publishFn    func(ctx context.Context, req *platform.PublishRequest) (string, error)
}

func (p *fakePublisher) Platform() string { return p.platformName }

func (p *fakePublisher) Validate(req *platform.PublishRequest) error { return nil }

func (p *fakePublisher) Publish(ctx context.Context, req *platform.PublishRequest) (string, error) {
	return p.publishFn(ctx, req)
}

type recordingSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *recordingSink) RecordEvent(ctx context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) byOutcome(outcome string) []audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []audit.Event
	for _, e := range s.events {
		if e.Outcome == outcome {
			out = append(out, e)
		}
	}
	return out
}

// --- helpers ---

func encryptedToken(t *testing.T) string {
	t.Helper()
	tok, err := utils.Encrypt([]byte("token-123"), testSecretKey)
	require.NoError(t, err)
	return tok
}

func activeAccount(t *testing.T, id int64, platformName string) *models.SocialAccount {
	t.Helper()
	return &models.SocialAccount{
		ID:             id,
		UserID:         1,
		Platform:       platformName,
		AccountID:      "ext-acc",
		AccessToken:    encryptedToken(t),
		TokenExpiresAt: time.Now().Add(time.Hour),
		AccountStatus:  models.AccountStatusActive,
	}
}

func scheduledPost(id int64) *models.Post {
	return &models.Post{
		ID:            id,
		UserID:        1,
		Caption:       "hello world",
		ScheduledTime: time.Now().Add(-time.Minute),
		Status:        models.PostStatusScheduled,
	}
}

// --- tests ---

func TestPublishPostPartialSuccess(t *testing.T) {
	posts := newFakePostRepo(scheduledPost(1))
	targets := newFakeTargetRepo(
		&models.PostTarget{ID: 10, PostID: 1, AccountID: 100, Status: models.TargetStatusPending},
		&models.PostTarget{ID: 11, PostID: 1, AccountID: 101, Status: models.TargetStatusPending},
	)
	accounts := newFakeAccountRepo(
		activeAccount(t, 100, platform.Facebook),
		activeAccount(t, 101, platform.Instagram),
	)

	registry := platform.NewRegistry(
		&fakePublisher{platformName: platform.Facebook, publishFn: func(ctx context.Context, req *platform.PublishRequest) (string, error) {
			return "fb-post-1", nil
		}},
		&fakePublisher{platformName: platform.Instagram, publishFn: func(ctx context.Context, req *platform.PublishRequest) (string, error) {
			return "", context.DeadlineExceeded
		}},
	)

	sink := &recordingSink{}
	o := NewOrchestrator(posts, targets, accounts, &fakePostMediaRepo{}, &fakeAssetRepo{}, registry, sink, testConfig(), testSecretKey)

	summary, err := o.PublishPost(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Attempted)
	assert.Equal(t, 1, summary.Published)
	assert.Equal(t, 1, summary.Retrying)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, models.PostStatusPublished, summary.PostStatus)

	fbTarget, _ := targets.GetByID(context.Background(), 10)
	assert.Equal(t, models.TargetStatusPublished, fbTarget.Status)
	assert.Equal(t, "fb-post-1", fbTarget.ExternalPostID.String)

	igTarget, _ := targets.GetByID(context.Background(), 11)
	assert.Equal(t, models.TargetStatusFailed, igTarget.Status)
	assert.False(t, igTarget.Terminal)
	assert.Equal(t, 1, igTarget.AttemptCount)

	// Transient failures stay quiet; only the success is announced.
	assert.Len(t, sink.byOutcome(models.OutcomePublished), 1)
	assert.Empty(t, sink.byOutcome(models.OutcomeFailed))
}

func TestPublishPostAuthFailureFlagsAccount(t *testing.T) {
	posts := newFakePostRepo(scheduledPost(1))
	targets := newFakeTargetRepo(
		&models.PostTarget{ID: 10, PostID: 1, AccountID: 100, Status: models.TargetStatusPending},
	)
	account := activeAccount(t, 100, platform.Twitter)
	accounts := newFakeAccountRepo(account)

	registry := platform.NewRegistry(
		&fakePublisher{platformName: platform.Twitter, publishFn: func(ctx context.Context, req *platform.PublishRequest) (string, error) {
			return "", &platform.PublishError{Kind: platform.KindAuth, Platform: platform.Twitter, Reason: "token revoked"}
		}},
	)

	sink := &recordingSink{}
	o := NewOrchestrator(posts, targets, accounts, &fakePostMediaRepo{}, &fakeAssetRepo{}, registry, sink, testConfig(), testSecretKey)

	summary, err := o.PublishPost(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, models.PostStatusFailed, summary.PostStatus)

	target, _ := targets.GetByID(context.Background(), 10)
	assert.Equal(t, models.TargetStatusFailed, target.Status)
	assert.True(t, target.Terminal)

	assert.Equal(t, models.AccountStatusNeedsReauth, accounts.statuses[100])
	assert.Len(t, sink.byOutcome(models.OutcomeNeedsReconnect), 1)
}

func TestPublishPostExpiredTokenFailsWithoutAdapterCall(t *testing.T) {
	posts := newFakePostRepo(scheduledPost(1))
	targets := newFakeTargetRepo(
		&models.PostTarget{ID: 10, PostID: 1, AccountID: 100, Status: models.TargetStatusPending},
	)
	account := activeAccount(t, 100, platform.LinkedIn)
	account.TokenExpiresAt = time.Now().Add(-time.Hour)
	accounts := newFakeAccountRepo(account)

	called := false
	registry := platform.NewRegistry(
		&fakePublisher{platformName: platform.LinkedIn, publishFn: func(ctx context.Context, req *platform.PublishRequest) (string, error) {
			called = true
			return "ln-1", nil
		}},
	)

	sink := &recordingSink{}
	o := NewOrchestrator(posts, targets, accounts, &fakePostMediaRepo{}, &fakeAssetRepo{}, registry, sink, testConfig(), testSecretKey)

	summary, err := o.PublishPost(context.Background(), 1)
	require.NoError(t, err)

	assert.False(t, called)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, models.AccountStatusNeedsReauth, accounts.statuses[100])
}

func TestPublishPostRetryCeiling(t *testing.T) {
	posts := newFakePostRepo(scheduledPost(1))
	// Two attempts already burned; the third must be the last.
	targets := newFakeTargetRepo(
		&models.PostTarget{ID: 10, PostID: 1, AccountID: 100, Status: models.TargetStatusFailed, AttemptCount: 2},
	)
	accounts := newFakeAccountRepo(activeAccount(t, 100, platform.Facebook))

	registry := platform.NewRegistry(
		&fakePublisher{platformName: platform.Facebook, publishFn: func(ctx context.Context, req *platform.PublishRequest) (string, error) {
			return "", &platform.PublishError{Kind: platform.KindTransient, Platform: platform.Facebook, Reason: "rate limited"}
		}},
	)

	sink := &recordingSink{}
	o := NewOrchestrator(posts, targets, accounts, &fakePostMediaRepo{}, &fakeAssetRepo{}, registry, sink, testConfig(), testSecretKey)

	summary, err := o.PublishPost(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, summary.Retrying)
	assert.Equal(t, models.PostStatusFailed, summary.PostStatus)

	target, _ := targets.GetByID(context.Background(), 10)
	assert.True(t, target.Terminal)
	assert.Equal(t, 3, target.AttemptCount)
	assert.Len(t, sink.byOutcome(models.OutcomeFailed), 1)
}

func TestPublishPostDeletedPostIsNoOp(t *testing.T) {
	o := NewOrchestrator(newFakePostRepo(), newFakeTargetRepo(), newFakeAccountRepo(),
		&fakePostMediaRepo{}, &fakeAssetRepo{}, platform.NewRegistry(), &recordingSink{}, testConfig(), testSecretKey)

	summary, err := o.PublishPost(context.Background(), 99)
	require.NoError(t, err)
	assert.True(t, summary.Skipped)
}

func TestPublishPostSkipsWhenAlreadyPublishing(t *testing.T) {
	post := scheduledPost(1)
	post.Status = models.PostStatusPublishing
	posts := newFakePostRepo(post)

	o := NewOrchestrator(posts, newFakeTargetRepo(), newFakeAccountRepo(),
		&fakePostMediaRepo{}, &fakeAssetRepo{}, platform.NewRegistry(), &recordingSink{}, testConfig(), testSecretKey)

	summary, err := o.PublishPost(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, summary.Skipped)
}

func TestPublishPostMissingAccountIsTerminal(t *testing.T) {
	posts := newFakePostRepo(scheduledPost(1))
	targets := newFakeTargetRepo(
		&models.PostTarget{ID: 10, PostID: 1, AccountID: 100, Status: models.TargetStatusPending},
	)

	o := NewOrchestrator(posts, targets, newFakeAccountRepo(),
		&fakePostMediaRepo{}, &fakeAssetRepo{}, platform.NewRegistry(), &recordingSink{}, testConfig(), testSecretKey)

	summary, err := o.PublishPost(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	target, _ := targets.GetByID(context.Background(), 10)
	assert.True(t, target.Terminal)
}

func TestPublishPostRetryAfterPartialSuccess(t *testing.T) {
	// The post already went out on one platform; the remaining failed
	// target is retried without re-publishing the finished one.
	post := scheduledPost(1)
	post.Status = models.PostStatusPublished
	posts := newFakePostRepo(post)

	targets := newFakeTargetRepo(
		&models.PostTarget{ID: 10, PostID: 1, AccountID: 100, Status: models.TargetStatusPublished,
			ExternalPostID: sql.NullString{String: "fb-1", Valid: true}},
		&models.PostTarget{ID: 11, PostID: 1, AccountID: 101, Status: models.TargetStatusFailed, AttemptCount: 1},
	)
	accounts := newFakeAccountRepo(
		activeAccount(t, 100, platform.Facebook),
		activeAccount(t, 101, platform.Instagram),
	)

	fbCalls := 0
	registry := platform.NewRegistry(
		&fakePublisher{platformName: platform.Facebook, publishFn: func(ctx context.Context, req *platform.PublishRequest) (string, error) {
			fbCalls++
			return "fb-dup", nil
		}},
		&fakePublisher{platformName: platform.Instagram, publishFn: func(ctx context.Context, req *platform.PublishRequest) (string, error) {
			return "ig-1", nil
		}},
	)

	o := NewOrchestrator(posts, targets, accounts, &fakePostMediaRepo{}, &fakeAssetRepo{}, registry, &recordingSink{}, testConfig(), testSecretKey)

	summary, err := o.PublishPost(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 0, fbCalls, "published target must not be attempted again")
	assert.Equal(t, 1, summary.Attempted)
	assert.Equal(t, 1, summary.Published)
	assert.Equal(t, models.PostStatusPublished, summary.PostStatus)

	igTarget, _ := targets.GetByID(context.Background(), 11)
	assert.Equal(t, models.TargetStatusPublished, igTarget.Status)
	assert.Equal(t, "ig-1", igTarget.ExternalPostID.String)
}

func TestPublishPostNoTargets(t *testing.T) {
	posts := newFakePostRepo(scheduledPost(1))

	o := NewOrchestrator(posts, newFakeTargetRepo(), newFakeAccountRepo(),
		&fakePostMediaRepo{}, &fakeAssetRepo{}, platform.NewRegistry(), &recordingSink{}, testConfig(), testSecretKey)

	summary, err := o.PublishPost(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Attempted)
	assert.Equal(t, models.PostStatusPublished, summary.PostStatus)
}

func TestPublishPostUnknownPlatformIsTerminal(t *testing.T) {
	posts := newFakePostRepo(scheduledPost(1))
	targets := newFakeTargetRepo(
		&models.PostTarget{ID: 10, PostID: 1, AccountID: 100, Status: models.TargetStatusPending},
	)
	accounts := newFakeAccountRepo(activeAccount(t, 100, "myspace"))

	o := NewOrchestrator(posts, targets, accounts,
		&fakePostMediaRepo{}, &fakeAssetRepo{}, platform.NewRegistry(), &recordingSink{}, testConfig(), testSecretKey)

	summary, err := o.PublishPost(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	target, _ := targets.GetByID(context.Background(), 10)
	assert.True(t, target.Terminal)
	assert.Equal(t, models.PostStatusFailed, summary.PostStatus)
}

func TestPublishPostReleasesClaimOnTargetQueryFailure(t *testing.T) {
	// A store failure after the claim must not strand the post in
	// publishing, where neither the due nor the retry query would ever
	// pick it up again.
	posts := newFakePostRepo(scheduledPost(1))
	targets := newFakeTargetRepo()
	targets.listEligibleErr = errors.New("connection reset")

	o := NewOrchestrator(posts, targets, newFakeAccountRepo(),
		&fakePostMediaRepo{}, &fakeAssetRepo{}, platform.NewRegistry(), &recordingSink{}, testConfig(), testSecretKey)

	_, err := o.PublishPost(context.Background(), 1)
	require.Error(t, err)

	post, _ := posts.GetByID(context.Background(), 1)
	require.NotNil(t, post)
	assert.Equal(t, models.PostStatusScheduled, post.Status)

	due, _ := posts.FindDue(context.Background(), time.Now())
	assert.Len(t, due, 1, "post must be due again on the next cycle")
}

func TestPublishPostAccountLoadErrorKeepsAttemptBudget(t *testing.T) {
	posts := newFakePostRepo(scheduledPost(1))
	targets := newFakeTargetRepo(
		&models.PostTarget{ID: 10, PostID: 1, AccountID: 100, Status: models.TargetStatusPending, AttemptCount: 2},
	)
	accounts := newFakeAccountRepo(activeAccount(t, 100, platform.Facebook))
	accounts.getErr = errors.New("db down")

	o := NewOrchestrator(posts, targets, accounts,
		&fakePostMediaRepo{}, &fakeAssetRepo{}, platform.NewRegistry(), &recordingSink{}, testConfig(), testSecretKey)

	summary, err := o.PublishPost(context.Background(), 1)
	require.NoError(t, err)

	// A store blip is not a publish attempt.
	assert.Equal(t, 1, summary.Retrying)
	assert.Equal(t, 0, summary.Failed)

	target, _ := targets.GetByID(context.Background(), 10)
	assert.Equal(t, models.TargetStatusPublishing, target.Status)
	assert.Equal(t, 2, target.AttemptCount)
	assert.False(t, target.Terminal)
}

func TestPublishPostDeletedMidFlight(t *testing.T) {
	posts := newFakePostRepo(scheduledPost(1))
	targets := newFakeTargetRepo(
		&models.PostTarget{ID: 10, PostID: 1, AccountID: 100, Status: models.TargetStatusPending},
	)
	accounts := newFakeAccountRepo(activeAccount(t, 100, platform.Facebook))

	registry := platform.NewRegistry(
		&fakePublisher{platformName: platform.Facebook, publishFn: func(ctx context.Context, req *platform.PublishRequest) (string, error) {
			// The user deletes the post while the adapter call is in flight.
			require.NoError(t, posts.Remove(ctx, 1))
			return "fb-1", nil
		}},
	)

	o := NewOrchestrator(posts, targets, accounts,
		&fakePostMediaRepo{}, &fakeAssetRepo{}, registry, &recordingSink{}, testConfig(), testSecretKey)

	summary, err := o.PublishPost(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Published)

	post, _ := posts.GetByID(context.Background(), 1)
	assert.Nil(t, post, "deleted post must stay deleted")
}
