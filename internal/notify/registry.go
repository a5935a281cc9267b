package notify

import (
	"sync"
	"time"
)

// Notification is a user-facing push about a publish outcome.
type Notification struct {
	Type      string    `json:"type"` // published, failed, needs_reconnect
	PostID    int64     `json:"post_id"`
	TargetID  int64     `json:"target_id"`
	Platform  string    `json:"platform"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	TypePublished      = "published"
	TypeFailed         = "failed"
	TypeNeedsReconnect = "needs_reconnect"
)

// Registry tracks live server-push connections per user. It is created once
// and injected wherever publish outcomes need to reach the dashboard, so
// nothing in the pipeline touches process-wide state and tests can observe
// pushes through a subscription.
type Registry struct {
	mu   sync.RWMutex
	subs map[int64]map[chan Notification]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		subs: make(map[int64]map[chan Notification]struct{}),
	}
}

// Subscribe registers a connection for userID and returns its channel. The
// caller must Unsubscribe when the connection goes away.
func (r *Registry) Subscribe(userID int64) chan Notification {
	ch := make(chan Notification, 16)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.subs[userID] == nil {
		r.subs[userID] = make(map[chan Notification]struct{})
	}
	r.subs[userID][ch] = struct{}{}
	return ch
}

func (r *Registry) Unsubscribe(userID int64, ch chan Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if subs, ok := r.subs[userID]; ok {
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(r.subs, userID)
		}
	}
}

// Notify pushes n to every live connection of userID. Slow consumers are
// skipped rather than blocked on; a missed push is recoverable from the
// event history.
func (r *Registry) Notify(userID int64, n Notification) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for ch := range r.subs[userID] {
		select {
		case ch <- n:
		default:
		}
	}
}

// Connections returns the number of live connections for userID.
func (r *Registry) Connections(userID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs[userID])
}
