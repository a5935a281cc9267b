package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyReachesAllSubscribers(t *testing.T) {
	r := NewRegistry()

	ch1 := r.Subscribe(1)
	ch2 := r.Subscribe(1)
	other := r.Subscribe(2)

	n := Notification{Type: TypePublished, PostID: 7, Platform: "facebook", Timestamp: time.Now()}
	r.Notify(1, n)

	for _, ch := range []chan Notification{ch1, ch2} {
		select {
		case got := <-ch:
			assert.Equal(t, TypePublished, got.Type)
			assert.Equal(t, int64(7), got.PostID)
		default:
			t.Fatal("expected a notification")
		}
	}

	select {
	case <-other:
		t.Fatal("user 2 must not receive user 1's notification")
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	r := NewRegistry()

	ch := r.Subscribe(1)
	require.Equal(t, 1, r.Connections(1))

	r.Unsubscribe(1, ch)
	assert.Equal(t, 0, r.Connections(1))

	_, open := <-ch
	assert.False(t, open)

	// Unsubscribing twice is harmless.
	r.Unsubscribe(1, ch)
}

func TestNotifySkipsSlowConsumer(t *testing.T) {
	r := NewRegistry()

	ch := r.Subscribe(1)
	for i := 0; i < cap(ch)+5; i++ {
		r.Notify(1, Notification{Type: TypeFailed})
	}

	// The buffer is full but Notify never blocked; the overflow was dropped.
	assert.Len(t, ch, cap(ch))
}

func TestNotifyWithoutSubscribersIsNoOp(t *testing.T) {
	r := NewRegistry()
	r.Notify(42, Notification{Type: TypeNeedsReconnect})
	assert.Equal(t, 0, r.Connections(42))
}
