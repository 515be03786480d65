// Package staleness implements the freshness gate that every document write
// passes through before it is persisted.
//
// The guard is last-writer-wins gated by freshness, not mutual exclusion: a
// write is rejected only when the timestamp the caller last synchronized
// against is older than the persisted record by more than a fixed grace
// window. Two sessions that both hold fresh-enough tokens can still race;
// the one whose write lands last physically wins. That tradeoff is
// intentional for a single owner editing from a handful of devices.
package staleness

import (
	"context"
	"time"

	"github.com/draftsmith/draftsmith/pkg/models"
)

// FudgeFactor is the grace window tolerated between client and server
// clocks when judging staleness.
const FudgeFactor = 60 * time.Second

// FetchFunc loads the currently persisted timestamp for the entity being
// written. exists is false when no record is persisted yet.
type FetchFunc func(ctx context.Context) (persistedAt time.Time, exists bool, err error)

// MutateFunc performs the write. It must stamp the entity with a new
// CreatedAt and return that timestamp so the caller can update its token.
type MutateFunc func(ctx context.Context) (time.Time, error)

// ProbeResult answers an "am I stale?" probe. Message is set only when the
// session is stale and is suitable for showing to the user.
type ProbeResult struct {
	IsStale         bool      `json:"isStale"`
	ServerTimestamp time.Time `json:"serverTimestamp"`
	Message         string    `json:"message,omitempty"`
}

// Guard validates that a write is based on sufficiently fresh state before
// letting it commit. The zero value is not usable; construct with New.
type Guard struct {
	fudge time.Duration
}

// New returns a Guard with the given grace window. Pass FudgeFactor unless
// a test needs a tighter window.
func New(fudge time.Duration) *Guard {
	return &Guard{fudge: fudge}
}

// Write runs one guarded write.
//
// clientToken is the timestamp the caller believes matches the persisted
// record. It may be nil only when creating a brand-new entity: if a record
// already exists and clientToken is nil the write fails with a "cannot
// verify" validation error rather than silently overwriting. If the
// persisted timestamp is ahead of clientToken by more than the grace
// window, the write fails with a [models.StaleWriteError] carrying both
// timestamps. Otherwise mutate runs and its new timestamp is returned.
//
// When no record is persisted yet the comparison is skipped entirely; the
// first write always succeeds.
func (g *Guard) Write(ctx context.Context, kind string, clientToken *time.Time, fetch FetchFunc, mutate MutateFunc) (time.Time, error) {
	persistedAt, exists, err := fetch(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if exists {
		if clientToken == nil {
			return time.Time{}, &models.ValidationError{
				Reason: "cannot verify freshness: a " + kind + " already exists but no sync timestamp was supplied",
			}
		}
		if persistedAt.After(clientToken.Add(g.fudge)) {
			return time.Time{}, &models.StaleWriteError{
				Kind:            kind,
				ServerTimestamp: persistedAt,
				ClientTimestamp: *clientToken,
			}
		}
	}
	return mutate(ctx)
}

// Probe applies the same comparison as Write without mutating anything.
// Sessions call it after reconnecting to decide whether to refetch before
// resuming edits.
func (g *Guard) Probe(kind string, lastKnown *time.Time, serverTimestamp time.Time) ProbeResult {
	res := ProbeResult{ServerTimestamp: serverTimestamp}
	if lastKnown == nil || serverTimestamp.After(lastKnown.Add(g.fudge)) {
		res.IsStale = true
		known := time.Time{}
		if lastKnown != nil {
			known = *lastKnown
		}
		res.Message = (&models.StaleWriteError{
			Kind:            kind,
			ServerTimestamp: serverTimestamp,
			ClientTimestamp: known,
		}).Error()
	}
	return res
}
