package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/socialflowhq/socialflow/internal/notify"
	"github.com/socialflowhq/socialflow/internal/repository"
	"github.com/valyala/fasthttp"
)

// EventsHandler streams publish outcomes to the dashboard over SSE and
// serves the stored event history.
type EventsHandler struct {
	registry *notify.Registry
	pe       repository.PublishEventRepository
}

func NewEventsHandler(registry *notify.Registry, pe repository.PublishEventRepository) *EventsHandler {
	return &EventsHandler{registry: registry, pe: pe}
}

func (h *EventsHandler) ListEvents(c *fiber.Ctx) error {
	userID := GetUserID(c)

	events, err := h.pe.GetByUserID(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list events",
		})
	}

	return c.Status(fiber.StatusOK).JSON(events)
}

func (h *EventsHandler) StreamEvents(c *fiber.Ctx) error {
	userID := GetUserID(c)

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	ch := h.registry.Subscribe(userID)

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer h.registry.Unsubscribe(userID, ch)

		keepAlive := time.NewTicker(30 * time.Second)
		defer keepAlive.Stop()

		for {
			select {
			case n, ok := <-ch:
				if !ok {
					return
				}
				data, err := json.Marshal(n)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", n.Type, data)
				if err := w.Flush(); err != nil {
					return
				}
			case <-keepAlive.C:
				fmt.Fprint(w, ": keep-alive\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))

	return nil
}
