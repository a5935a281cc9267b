package handlers

import (
	"crypto/subtle"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	config "github.com/socialflowhq/socialflow/configs"
	"github.com/socialflowhq/socialflow/internal/scheduler"
)

// CronHandler exposes the publishing cycle to an external cron caller. The
// in-process ticker uses the same scheduler, so either trigger can drive
// publishing.
type CronHandler struct {
	sched *scheduler.Scheduler
	cfg   config.Config
}

func NewCronHandler(sched *scheduler.Scheduler, cfg config.Config) *CronHandler {
	return &CronHandler{sched: sched, cfg: cfg}
}

func (h *CronHandler) RunPublishScheduler(c *fiber.Ctx) error {
	apiKey := c.Query("apiKey")
	if apiKey == "" || subtle.ConstantTimeCompare([]byte(apiKey), []byte(h.cfg.CronAPIKey)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid API key",
		})
	}

	result, err := h.sched.RunCycle(c.Context(), time.Now())
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Scheduler run failed",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success":        true,
		"totalScheduled": result.TotalScheduled,
		"publishedCount": result.PublishedCount,
		"failedCount":    result.FailedCount,
	})
}
