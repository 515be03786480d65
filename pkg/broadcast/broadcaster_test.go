package broadcast

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftsmith/draftsmith/pkg/models"
)

func newBroadcaster() *Broadcaster {
	return New(zerolog.Nop())
}

func recvEvent(t *testing.T, ch <-chan models.ChangeEvent) models.ChangeEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed while waiting for event")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return models.ChangeEvent{}
	}
}

func assertNoEvent(t *testing.T, ch <-chan models.ChangeEvent) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %q", ev.Type)
	default:
	}
}

func TestPublishReachesAllSessionsOfOwner(t *testing.T) {
	b := newBroadcaster()
	owner := models.NewUserID()

	tab := b.Subscribe(owner, "tab")
	phone := b.Subscribe(owner, "phone")
	assert.Equal(t, 2, b.SessionCount(owner))

	b.Publish(owner, models.ChangeEvent{Type: models.ChangeBookUpdate})

	assert.Equal(t, models.ChangeBookUpdate, recvEvent(t, tab).Type)
	assert.Equal(t, models.ChangeBookUpdate, recvEvent(t, phone).Type)
}

func TestPublishIsScopedToOwner(t *testing.T) {
	b := newBroadcaster()
	alice := models.NewUserID()
	bob := models.NewUserID()

	aliceCh := b.Subscribe(alice, "tab")
	bobCh := b.Subscribe(bob, "tab")

	b.Publish(alice, models.ChangeEvent{Type: models.ChangeChapterCreate})

	assert.Equal(t, models.ChangeChapterCreate, recvEvent(t, aliceCh).Type)
	assertNoEvent(t, bobCh)
}

func TestPublishToOwnerWithoutSessionsIsANoOp(t *testing.T) {
	b := newBroadcaster()
	b.Publish(models.NewUserID(), models.ChangeEvent{Type: models.ChangeBookCreate})
}

func TestResubscribeReplacesSession(t *testing.T) {
	b := newBroadcaster()
	owner := models.NewUserID()

	old := b.Subscribe(owner, "tab")
	replacement := b.Subscribe(owner, "tab")
	assert.Equal(t, 1, b.SessionCount(owner))

	_, ok := <-old
	assert.False(t, ok, "the replaced channel must be closed")

	b.Publish(owner, models.ChangeEvent{Type: models.ChangeBookUpdate})
	assert.Equal(t, models.ChangeBookUpdate, recvEvent(t, replacement).Type)
}

func TestUnsubscribe(t *testing.T) {
	b := newBroadcaster()
	owner := models.NewUserID()

	ch := b.Subscribe(owner, "tab")
	b.Unsubscribe(owner, "tab")
	assert.Equal(t, 0, b.SessionCount(owner))

	_, ok := <-ch
	assert.False(t, ok)

	// Unsubscribing an unknown session must not panic.
	b.Unsubscribe(owner, "tab")
	b.Unsubscribe(models.NewUserID(), "nope")
}

func TestPublishNeverBlocksOnFullChannel(t *testing.T) {
	b := newBroadcaster()
	owner := models.NewUserID()
	ch := b.Subscribe(owner, "stalled")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < defaultBuffer*2; i++ {
			b.Publish(owner, models.ChangeEvent{Type: models.ChangeChapterUpdate})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full session channel")
	}

	// Buffered events survive; overflow was dropped, not queued.
	delivered := 0
	for {
		select {
		case <-ch:
			delivered++
			continue
		default:
		}
		break
	}
	assert.Equal(t, defaultBuffer, delivered)
}

func TestClose(t *testing.T) {
	b := newBroadcaster()
	owner := models.NewUserID()
	ch := b.Subscribe(owner, "tab")

	b.Close()
	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, b.SessionCount(owner))

	late := b.Subscribe(owner, "late")
	_, ok = <-late
	assert.False(t, ok, "subscriptions after Close come back already closed")

	// Idempotent.
	b.Close()
}
