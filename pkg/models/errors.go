package models

import (
	"fmt"
	"time"
)

// StaleWriteError rejects a write whose base state is older than the
// persisted record by more than the staleness grace window. It is
// recoverable: the caller should refresh its local copy and retry. The
// message is written to be shown to the end user verbatim.
type StaleWriteError struct {
	Kind            string
	ServerTimestamp time.Time
	ClientTimestamp time.Time
}

func (e *StaleWriteError) Error() string {
	return fmt.Sprintf(
		"stale write rejected: the %s on the server was modified at %s but this session last synced at %s; refresh before saving again",
		e.Kind,
		e.ServerTimestamp.Format(time.RFC3339),
		e.ClientTimestamp.Format(time.RFC3339),
	)
}

// NotFoundError reports a missing entity or history index.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Kind)
	}
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// LimitExceededError reports that a chapter's history has reached its
// configured cap. Permanent until the caller truncates or exports.
type LimitExceededError struct {
	Kind  string
	Limit int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("%s limit reached (%d entries); export or truncate before committing again", e.Kind, e.Limit)
}

// ValidationError rejects input that can never be persisted, such as a nil
// entity or one lacking required identity fields. Nothing is partially
// persisted when it is returned.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}
