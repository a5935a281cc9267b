package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/socialflowhq/socialflow/internal/models"
	"github.com/socialflowhq/socialflow/internal/repository"
	"github.com/socialflowhq/socialflow/internal/service"
)

// TokenRefreshJob trades soon-to-expire platform tokens for fresh ones
// before the publishing pipeline needs them. An account whose refresh fails
// is flagged needs_reauth so its targets fail fast instead of burning
// publish attempts.
type TokenRefreshJob struct {
	sr repository.SocialAccountRepository
	cs service.ConnectService
}

func NewTokenRefreshJob(sr repository.SocialAccountRepository, cs service.ConnectService) *TokenRefreshJob {
	return &TokenRefreshJob{
		sr: sr,
		cs: cs,
	}
}

func (c *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	currentTime := time.Now()
	timeIn30Minutes := currentTime.Add(30 * time.Minute)

	accounts, err := c.sr.ListByTimeInterval(ctx, currentTime, timeIn30Minutes)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, acc := range accounts {

		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.SocialAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := c.cs.RefreshToken(ctx, acc); err != nil {
				slog.Info(fmt.Sprintf("Unable to refresh tokens for %s account %d", acc.Platform, acc.ID))
				if err := c.sr.SetStatus(ctx, acc.ID, models.AccountStatusNeedsReauth); err != nil {
					slog.Info(err.Error())
				}
			}
		}(acc)
	}

	wg.Wait()
}
