package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	config "github.com/socialflowhq/socialflow/configs"
	"github.com/socialflowhq/socialflow/internal/models"
	"github.com/socialflowhq/socialflow/internal/publisher"
	"github.com/socialflowhq/socialflow/internal/repository"
)

// PostPublisher is what a cycle needs from the orchestrator.
type PostPublisher interface {
	PublishPost(ctx context.Context, postID int64) (*publisher.Summary, error)
}

// Scheduler finds posts whose time has come and hands each one to the
// orchestrator. It keeps no state between ticks; everything due is derived
// fresh from the store, so restarts and overlapping ticks are safe.
type Scheduler struct {
	posts    repository.PostRepository
	targets  repository.PostTargetRepository
	cronLogs repository.CronLogRepository
	pub      PostPublisher
	cfg      config.Publishing
}

func NewScheduler(
	posts repository.PostRepository,
	targets repository.PostTargetRepository,
	cronLogs repository.CronLogRepository,
	pub PostPublisher,
	cfg config.Publishing) *Scheduler {
	return &Scheduler{
		posts:    posts,
		targets:  targets,
		cronLogs: cronLogs,
		pub:      pub,
		cfg:      cfg,
	}
}

// CycleResult summarizes one scheduler run.
type CycleResult struct {
	TotalScheduled int `json:"totalScheduled"`
	PublishedCount int `json:"publishedCount"`
	FailedCount    int `json:"failedCount"`
}

// RunCycle processes everything due at now: freshly scheduled posts plus
// posts still carrying retryable targets. One post's failure never aborts
// the rest of the batch; only a store failure on the due-posts query aborts
// the cycle, and even that leaves a cron log entry behind.
func (s *Scheduler) RunCycle(ctx context.Context, now time.Time) (*CycleResult, error) {
	due, err := s.posts.FindDue(ctx, now)
	if err != nil {
		s.writeLog(ctx, now, &CycleResult{}, fmt.Sprintf("finding due posts: %v", err))
		return nil, fmt.Errorf("finding due posts: %w", err)
	}

	retryable, err := s.posts.FindRetryable(ctx, now, s.cfg.MaxAttempts)
	if err != nil {
		// The main batch can still run; retries wait for the next tick.
		slog.Error(err.Error())
	}

	seen := make(map[int64]bool, len(due))
	batch := make([]*models.Post, 0, len(due)+len(retryable))
	for _, post := range append(due, retryable...) {
		if seen[post.ID] {
			continue
		}
		seen[post.ID] = true
		batch = append(batch, post)
	}

	result := &CycleResult{TotalScheduled: len(batch)}
	var errMsgs []string

	for _, post := range batch {
		summary, err := s.pub.PublishPost(ctx, post.ID)
		if err != nil {
			result.FailedCount++
			errMsgs = append(errMsgs, fmt.Sprintf("post %d: %v", post.ID, err))
			slog.Error(err.Error())
			continue
		}

		result.PublishedCount += summary.Published
		result.FailedCount += summary.Failed
	}

	s.writeLog(ctx, now, result, strings.Join(errMsgs, "; "))
	return result, nil
}

// Cleanup releases posts and targets stuck mid-publish (a crash between
// claim and final write) and trims the run history to its retention bound.
func (s *Scheduler) Cleanup(ctx context.Context, now time.Time) error {
	released, err := s.targets.ReleaseStale(ctx, now.Add(-s.cfg.StalePublishAge))
	if err != nil {
		return fmt.Errorf("releasing stale targets: %w", err)
	}
	if released > 0 {
		slog.Info(fmt.Sprintf("released %d stale publishing targets", released))
	}

	// A crash can also wedge the post-level claim itself; put those posts
	// back where the due query can see them.
	releasedPosts, err := s.posts.ReleaseStalePublishing(ctx, now.Add(-s.cfg.StalePublishAge))
	if err != nil {
		return fmt.Errorf("releasing stale posts: %w", err)
	}
	if releasedPosts > 0 {
		slog.Info(fmt.Sprintf("released %d stale publishing posts", releasedPosts))
	}

	trimmed, err := s.cronLogs.TrimToRetention(ctx, s.cfg.CronLogRetention)
	if err != nil {
		return fmt.Errorf("trimming cron logs: %w", err)
	}
	if trimmed > 0 {
		slog.Info(fmt.Sprintf("trimmed %d cron log entries", trimmed))
	}

	return nil
}

func (s *Scheduler) writeLog(ctx context.Context, ranAt time.Time, result *CycleResult, errMsg string) {
	_, err := s.cronLogs.Create(ctx, &models.CronLog{
		RanAt:          ranAt,
		TotalScheduled: result.TotalScheduled,
		PublishedCount: result.PublishedCount,
		FailedCount:    result.FailedCount,
		ErrorMessage:   errMsg,
	})
	if err != nil {
		slog.Error(err.Error())
	}
}
