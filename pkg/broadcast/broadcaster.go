// Package broadcast fans mutation events out to the live sessions of an
// owner.
//
// Delivery is at-most-once, best-effort, and entirely in-memory: there is no
// queue, no replay buffer, and no error channel. A session that is not
// subscribed when an event is published simply misses it and relies on the
// staleness probe after reconnecting. Publishing never blocks on a slow or
// dead subscriber; a full channel drops the event with a warning log.
package broadcast

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/draftsmith/draftsmith/pkg/models"
)

// defaultBuffer is per-session channel capacity; sized for short bursts of
// saves from another tab, not for offline catch-up.
const defaultBuffer = 16

// Broadcaster is a publish/subscribe registry keyed by owner id with one
// channel per live session.
type Broadcaster struct {
	mu       sync.RWMutex
	sessions map[models.UserID]map[string]chan models.ChangeEvent
	buffer   int
	closed   bool
	log      zerolog.Logger
}

// New creates a Broadcaster.
func New(log zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		sessions: make(map[models.UserID]map[string]chan models.ChangeEvent),
		buffer:   defaultBuffer,
		log:      log,
	}
}

// Subscribe registers a session and returns its event channel. Subscribing
// again with the same session id replaces the previous subscription and
// closes its channel, which covers tabs that reconnect before their old
// connection is torn down.
func (b *Broadcaster) Subscribe(ownerID models.UserID, sessionID string) <-chan models.ChangeEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan models.ChangeEvent, b.buffer)
	if b.closed {
		close(ch)
		return ch
	}

	owned, ok := b.sessions[ownerID]
	if !ok {
		owned = make(map[string]chan models.ChangeEvent)
		b.sessions[ownerID] = owned
	}
	if old, ok := owned[sessionID]; ok {
		close(old)
	}
	owned[sessionID] = ch

	b.log.Debug().
		Str("owner", ownerID.String()).
		Str("session", sessionID).
		Msg("session subscribed")
	return ch
}

// Unsubscribe tears down a session's channel. Missed events are not
// recovered; reconnection goes through the staleness probe instead.
func (b *Broadcaster) Unsubscribe(ownerID models.UserID, sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	owned, ok := b.sessions[ownerID]
	if !ok {
		return
	}
	ch, ok := owned[sessionID]
	if !ok {
		return
	}
	close(ch)
	delete(owned, sessionID)
	if len(owned) == 0 {
		delete(b.sessions, ownerID)
	}

	b.log.Debug().
		Str("owner", ownerID.String()).
		Str("session", sessionID).
		Msg("session unsubscribed")
}

// Publish delivers the event to every currently subscribed channel of the
// owner, including the session that originated the change, so multi-tab
// sessions of one account converge uniformly. Sends never block.
func (b *Broadcaster) Publish(ownerID models.UserID, ev models.ChangeEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sessionID, ch := range b.sessions[ownerID] {
		select {
		case ch <- ev:
		default:
			b.log.Warn().
				Str("owner", ownerID.String()).
				Str("session", sessionID).
				Str("type", string(ev.Type)).
				Msg("dropping change event, session channel full")
		}
	}
}

// SessionCount reports the number of live sessions for an owner.
func (b *Broadcaster) SessionCount(ownerID models.UserID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sessions[ownerID])
}

// Close closes every session channel and rejects further subscriptions.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for ownerID, owned := range b.sessions {
		for _, ch := range owned {
			close(ch)
		}
		delete(b.sessions, ownerID)
	}
}
