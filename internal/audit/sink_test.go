package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socialflowhq/socialflow/internal/models"
	"github.com/socialflowhq/socialflow/internal/notify"
)

type memoryEventRepo struct {
	events []*models.PublishEvent
	err    error
}

func (r *memoryEventRepo) Create(ctx context.Context, event *models.PublishEvent) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	r.events = append(r.events, event)
	return int64(len(r.events)), nil
}

func (r *memoryEventRepo) GetByUserID(ctx context.Context, userID int64) ([]*models.PublishEvent, error) {
	return r.events, nil
}

func sampleEvent() Event {
	return Event{
		UserID:    1,
		PostID:    7,
		TargetID:  10,
		Platform:  "twitter",
		Outcome:   models.OutcomePublished,
		Message:   "tw-1",
		Timestamp: time.Now(),
	}
}

func TestStoreSinkPersistsEvent(t *testing.T) {
	repo := &memoryEventRepo{}
	sink := NewStoreSink(repo)

	require.NoError(t, sink.RecordEvent(context.Background(), sampleEvent()))

	require.Len(t, repo.events, 1)
	assert.Equal(t, int64(7), repo.events[0].PostID)
	assert.Equal(t, models.OutcomePublished, repo.events[0].Outcome)
}

func TestNotifierSinkPushesToUser(t *testing.T) {
	registry := notify.NewRegistry()
	ch := registry.Subscribe(1)
	sink := NewNotifierSink(registry)

	require.NoError(t, sink.RecordEvent(context.Background(), sampleEvent()))

	select {
	case n := <-ch:
		assert.Equal(t, models.OutcomePublished, n.Type)
		assert.Equal(t, "twitter", n.Platform)
	default:
		t.Fatal("expected a notification")
	}
}

func TestMultiSinkContinuesPastFailure(t *testing.T) {
	broken := &memoryEventRepo{err: errors.New("insert failed")}
	working := &memoryEventRepo{}

	sink := NewMultiSink(NewStoreSink(broken), NewStoreSink(working))

	require.NoError(t, sink.RecordEvent(context.Background(), sampleEvent()))
	assert.Len(t, working.events, 1)
}
