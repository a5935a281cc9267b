package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	config "github.com/socialflowhq/socialflow/configs"
	"github.com/socialflowhq/socialflow/internal/audit"
	"github.com/socialflowhq/socialflow/internal/models"
	"github.com/socialflowhq/socialflow/internal/platform"
	"github.com/socialflowhq/socialflow/internal/repository"
	"github.com/socialflowhq/socialflow/pkg/utils"
)

// Orchestrator drives the multi-target publish for a single post: it fans
// out one adapter call per eligible target, waits for every attempt to
// finish, then writes the post-level outcome. All durable state lives in
// the store, so a crashed run is picked up again by the next cycle.
type Orchestrator struct {
	posts     repository.PostRepository
	targets   repository.PostTargetRepository
	accounts  repository.SocialAccountRepository
	postMedia repository.PostMediaRepository
	assets    repository.MediaAssetRepository
	registry  *platform.Registry
	sink      audit.Sink
	cfg       config.Publishing
	secretKey []byte
}

func NewOrchestrator(
	posts repository.PostRepository,
	targets repository.PostTargetRepository,
	accounts repository.SocialAccountRepository,
	postMedia repository.PostMediaRepository,
	assets repository.MediaAssetRepository,
	registry *platform.Registry,
	sink audit.Sink,
	cfg config.Publishing,
	secretKey []byte) *Orchestrator {
	return &Orchestrator{
		posts:     posts,
		targets:   targets,
		accounts:  accounts,
		postMedia: postMedia,
		assets:    assets,
		registry:  registry,
		sink:      sink,
		cfg:       cfg,
		secretKey: secretKey,
	}
}

// Summary is the aggregate outcome of one PublishPost call.
type Summary struct {
	PostID     int64
	Skipped    bool
	Attempted  int
	Published  int
	Failed     int
	Retrying   int
	PostStatus string
}

type targetResult struct {
	published bool
	terminal  bool
}

// PublishPost executes the publish pipeline for one post. A missing post is
// a clean no-op (deletion is a legitimate race, not an error); a post
// already being published by another run is skipped silently. Errors are
// returned only for store failures that abort the whole attempt.
func (o *Orchestrator) PublishPost(ctx context.Context, postID int64) (*Summary, error) {
	post, err := o.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("loading post %d: %w", postID, err)
	}
	if post == nil {
		return &Summary{PostID: postID, Skipped: true}, nil
	}

	var claimed bool
	switch post.Status {
	case models.PostStatusPublishing:
		// Another run owns this post.
		return &Summary{PostID: postID, Skipped: true, PostStatus: post.Status}, nil
	case models.PostStatusScheduled:
		claimed, err = o.posts.CompareAndSetStatus(ctx, postID, models.PostStatusScheduled, models.PostStatusPublishing)
		if err != nil {
			return nil, fmt.Errorf("claiming post %d: %w", postID, err)
		}
		if !claimed {
			return &Summary{PostID: postID, Skipped: true}, nil
		}
	case models.PostStatusDraft:
		return &Summary{PostID: postID, Skipped: true, PostStatus: post.Status}, nil
	}
	// Published and failed posts fall through: they can still carry
	// retryable or requeued targets, and the target-level eligibility
	// filter keeps finished targets untouched.

	eligible, err := o.targets.ListEligibleByPostID(ctx, postID, o.cfg.MaxAttempts)
	if err != nil {
		o.releaseClaim(ctx, postID, claimed)
		return nil, fmt.Errorf("loading targets for post %d: %w", postID, err)
	}
	if len(eligible) == 0 {
		status, err := o.finalizePost(ctx, post)
		if err != nil {
			o.releaseClaim(ctx, postID, claimed)
			return nil, err
		}
		return &Summary{PostID: postID, PostStatus: status}, nil
	}

	media, err := o.loadMedia(ctx, postID)
	if err != nil {
		o.releaseClaim(ctx, postID, claimed)
		return nil, fmt.Errorf("loading media for post %d: %w", postID, err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	results := make([]targetResult, 0, len(eligible))
	semaphore := make(chan struct{}, o.cfg.Concurrency)

	for _, target := range eligible {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(target *models.PostTarget) {
			defer wg.Done()
			defer func() { <-semaphore }()

			result := o.publishTarget(ctx, post, target, media)

			mu.Lock()
			results = append(results, result)
			mu.Unlock()
		}(target)
	}

	wg.Wait() // Barrier: every attempt finishes before the post is judged.

	summary := &Summary{PostID: postID, Attempted: len(results)}
	for _, r := range results {
		switch {
		case r.published:
			summary.Published++
		case r.terminal:
			summary.Failed++
		default:
			summary.Retrying++
		}
	}

	status, err := o.finalizePost(ctx, post)
	if err != nil {
		o.releaseClaim(ctx, postID, claimed)
		return summary, err
	}
	summary.PostStatus = status

	return summary, nil
}

// releaseClaim undoes the scheduled -> publishing claim when a store failure
// aborts the run before finalizePost can write a real status. Without it the
// post would sit in publishing, invisible to both the due and the retry
// queries, until the stale-publishing cleanup caught it.
func (o *Orchestrator) releaseClaim(ctx context.Context, postID int64, claimed bool) {
	if !claimed {
		return
	}
	if _, err := o.posts.CompareAndSetStatus(ctx, postID, models.PostStatusPublishing, models.PostStatusScheduled); err != nil {
		slog.Error(err.Error())
	}
}

// publishTarget runs one adapter attempt. Every failure path is caught and
// normalized here so sibling targets and the post-level aggregation never
// see a target's error.
func (o *Orchestrator) publishTarget(ctx context.Context, post *models.Post, target *models.PostTarget, media []platform.Media) targetResult {
	claimed, err := o.targets.MarkPublishing(ctx, target.ID)
	if err != nil {
		slog.Error(err.Error())
		return targetResult{}
	}
	if !claimed {
		// Another run already has this attempt in flight.
		return targetResult{}
	}

	account, err := o.accounts.GetByID(ctx, target.AccountID)
	if err != nil {
		// A store blip is not a publish attempt: leave the target in
		// publishing for the stale cleanup instead of burning its budget.
		slog.Error(err.Error())
		return targetResult{}
	}
	if account == nil {
		o.failTarget(ctx, post, target, nil, "social account no longer exists", true)
		return targetResult{terminal: true}
	}

	if account.AccessToken == "" {
		o.failAuth(ctx, post, target, account, "account has no access token")
		return targetResult{terminal: true}
	}
	if !account.TokenExpiresAt.IsZero() && account.TokenExpiresAt.Before(time.Now()) {
		o.failAuth(ctx, post, target, account, "access token expired")
		return targetResult{terminal: true}
	}

	pub, err := o.registry.Get(account.Platform)
	if err != nil {
		o.failTarget(ctx, post, target, account, err.Error(), true)
		return targetResult{terminal: true}
	}

	accessToken, err := utils.Decrypt(account.AccessToken, o.secretKey)
	if err != nil {
		o.failAuth(ctx, post, target, account, "stored access token is unreadable")
		return targetResult{terminal: true}
	}

	req := &platform.PublishRequest{
		AccountID:   account.AccountID,
		AccessToken: accessToken,
		Caption:     post.Caption,
		Title:       post.Title,
		Media:       media,
	}

	// Platform calls are unreliable; every attempt runs under a bounded
	// timeout and an overrun counts as a retryable failure.
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.AdapterTimeout)
	defer cancel()

	externalID, err := pub.Publish(callCtx, req)
	if err != nil {
		pubErr := platform.Classify(account.Platform, err)

		if pubErr.Kind == platform.KindAuth {
			o.failAuth(ctx, post, target, account, pubErr.Reason)
			return targetResult{terminal: true}
		}

		terminal := !pubErr.Retryable() || target.AttemptCount+1 >= o.cfg.MaxAttempts
		o.failTarget(ctx, post, target, account, pubErr.Error(), terminal)
		return targetResult{terminal: terminal}
	}

	now := time.Now()
	if err := o.targets.MarkPublished(ctx, target.ID, externalID, now); err != nil {
		slog.Error(err.Error())
	}

	o.recordEvent(ctx, audit.Event{
		UserID:    post.UserID,
		PostID:    post.ID,
		TargetID:  target.ID,
		Platform:  account.Platform,
		Outcome:   models.OutcomePublished,
		Message:   externalID,
		Timestamp: now,
	})

	return targetResult{published: true}
}

// failTarget records a failed attempt. Terminal failures emit an audit
// event so a human can intervene; retryable ones stay quiet and wait for
// the next cycle.
func (o *Orchestrator) failTarget(ctx context.Context, post *models.Post, target *models.PostTarget, account *models.SocialAccount, reason string, terminal bool) {
	if err := o.targets.MarkFailed(ctx, target.ID, reason, terminal); err != nil {
		slog.Error(err.Error())
	}

	if !terminal {
		return
	}

	platformName := ""
	if account != nil {
		platformName = account.Platform
	}
	o.recordEvent(ctx, audit.Event{
		UserID:    post.UserID,
		PostID:    post.ID,
		TargetID:  target.ID,
		Platform:  platformName,
		Outcome:   models.OutcomeFailed,
		Message:   reason,
		Timestamp: time.Now(),
	})
}

// failAuth handles dead credentials: the failure is terminal, the account
// is flagged for reconnection, and the user gets a distinct
// "reconnect account" notification instead of a generic failure.
func (o *Orchestrator) failAuth(ctx context.Context, post *models.Post, target *models.PostTarget, account *models.SocialAccount, reason string) {
	if err := o.targets.MarkFailed(ctx, target.ID, reason, true); err != nil {
		slog.Error(err.Error())
	}
	if err := o.accounts.SetStatus(ctx, account.ID, models.AccountStatusNeedsReauth); err != nil {
		slog.Error(err.Error())
	}

	o.recordEvent(ctx, audit.Event{
		UserID:    post.UserID,
		PostID:    post.ID,
		TargetID:  target.ID,
		Platform:  account.Platform,
		Outcome:   models.OutcomeNeedsReconnect,
		Message:   reason,
		Timestamp: time.Now(),
	})
}

// finalizePost derives the post-level status from the full target list:
// published when at least one target made it out, failed when every target
// failed for good, scheduled again while any target still has attempts
// left. The write is unconditional on status but a no-op when the post was
// deleted mid-flight.
func (o *Orchestrator) finalizePost(ctx context.Context, post *models.Post) (string, error) {
	targets, err := o.targets.ListByPostID(ctx, post.ID)
	if err != nil {
		return "", fmt.Errorf("loading targets for post %d: %w", post.ID, err)
	}

	var anyPublished, anyOpen bool
	for _, t := range targets {
		switch {
		case t.Status == models.TargetStatusPublished:
			anyPublished = true
		case t.Status == models.TargetStatusPending || t.Status == models.TargetStatusPublishing:
			anyOpen = true
		case t.Status == models.TargetStatusFailed && !t.Terminal && t.AttemptCount < o.cfg.MaxAttempts:
			anyOpen = true
		}
	}

	status := models.PostStatusFailed
	switch {
	case anyPublished:
		status = models.PostStatusPublished
	case anyOpen:
		status = models.PostStatusScheduled
	case len(targets) == 0:
		// A post with no targets has nothing left to do.
		status = models.PostStatusPublished
	}

	if err := o.posts.UpdateStatus(ctx, status, post.ID); err != nil {
		return "", fmt.Errorf("updating post %d status: %w", post.ID, err)
	}
	return status, nil
}

func (o *Orchestrator) loadMedia(ctx context.Context, postID int64) ([]platform.Media, error) {
	postMedias, err := o.postMedia.ListByPostID(ctx, postID)
	if err != nil {
		return nil, err
	}

	media := make([]platform.Media, 0, len(postMedias))
	for _, pm := range postMedias {
		asset, err := o.assets.GetByID(ctx, pm.AssetID)
		if err != nil {
			return nil, err
		}
		if asset == nil || asset.FileURL == "" {
			continue
		}
		media = append(media, platform.Media{
			URL:      asset.FileURL,
			MIMEType: asset.FileType,
			Size:     asset.FileSize,
		})
	}
	return media, nil
}

func (o *Orchestrator) recordEvent(ctx context.Context, event audit.Event) {
	if o.sink == nil {
		return
	}
	if err := o.sink.RecordEvent(ctx, event); err != nil {
		slog.Info(err.Error())
	}
}
