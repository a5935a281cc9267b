package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/socialflowhq/socialflow/internal/models"
	"github.com/socialflowhq/socialflow/internal/notify"
	"github.com/socialflowhq/socialflow/internal/repository"
)

// Event is one terminal target outcome flowing out of the publish pipeline.
type Event struct {
	UserID    int64
	PostID    int64
	TargetID  int64
	Platform  string
	Outcome   string
	Message   string
	Timestamp time.Time
}

// Sink receives structured publish events for logging, user notification
// and analytics aggregation.
type Sink interface {
	RecordEvent(ctx context.Context, event Event) error
}

type storeSink struct {
	events repository.PublishEventRepository
}

// NewStoreSink returns a Sink that appends events to the publish_events
// history table.
func NewStoreSink(events repository.PublishEventRepository) Sink {
	return &storeSink{events: events}
}

func (s *storeSink) RecordEvent(ctx context.Context, event Event) error {
	_, err := s.events.Create(ctx, &models.PublishEvent{
		UserID:   event.UserID,
		PostID:   event.PostID,
		TargetID: event.TargetID,
		Platform: event.Platform,
		Outcome:  event.Outcome,
		Message:  event.Message,
	})
	return err
}

type notifierSink struct {
	registry *notify.Registry
}

// NewNotifierSink returns a Sink that pushes events to the owning user's
// live connections.
func NewNotifierSink(registry *notify.Registry) Sink {
	return &notifierSink{registry: registry}
}

func (s *notifierSink) RecordEvent(ctx context.Context, event Event) error {
	s.registry.Notify(event.UserID, notify.Notification{
		Type:      event.Outcome,
		PostID:    event.PostID,
		TargetID:  event.TargetID,
		Platform:  event.Platform,
		Message:   event.Message,
		Timestamp: event.Timestamp,
	})
	return nil
}

type multiSink struct {
	sinks []Sink
}

// NewMultiSink fans each event out to all sinks. A failing sink is logged
// and skipped; auditing must never break the publish that produced the
// event.
func NewMultiSink(sinks ...Sink) Sink {
	return &multiSink{sinks: sinks}
}

func (s *multiSink) RecordEvent(ctx context.Context, event Event) error {
	for _, sink := range s.sinks {
		if err := sink.RecordEvent(ctx, event); err != nil {
			slog.Info(err.Error())
		}
	}
	return nil
}
