// Package history implements the append-only version history of chapters.
//
// Each chapter owns at most one [models.History]: a diff chain whose first
// entry is the full base text and whose later entries are diff-match-patch
// text patches, each relative to the text reconstructed from everything
// before it. Replaying entries 0..i in order always yields the chapter text
// as of version i, so storage stays proportional to what actually changed
// while any version remains recoverable.
//
// Commits are idempotent on content: committing text identical (after
// whitespace trimming) to the reconstructed current text appends nothing and
// still reports success. A history that has reached the configured cap
// rejects further commits outright; it is never silently compacted.
//
// Commit and EditMessage are read-modify-write sequences over a single
// history document. The service serializes them per chapter with an
// in-process lock so two concurrent commits cannot interleave their
// appends; cross-process writers are out of scope for this engine.
package history

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/draftsmith/draftsmith/pkg/models"
)

// DefaultLimit caps a chapter history when no explicit limit is configured.
const DefaultLimit = 50

// Store is the slice of the document store the history service needs.
type Store interface {
	GetHistory(ctx context.Context, chapterID models.ChapterID) (*models.History, error)
	PutHistory(ctx context.Context, history *models.History) error
}

// CommitRequest carries one explicit commit action.
type CommitRequest struct {
	Message   string     `json:"message"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	FullText  string     `json:"fullText"`
}

// Service is the version history store for chapters.
type Service struct {
	store Store
	limit int
	dmp   *diffmatchpatch.DiffMatchPatch

	mu    sync.Mutex
	locks map[models.ChapterID]*sync.Mutex
}

// New creates a history service with the given per-chapter entry cap.
// A non-positive limit falls back to DefaultLimit.
func New(s Store, limit int) *Service {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Service{
		store: s,
		limit: limit,
		dmp:   diffmatchpatch.New(),
		locks: make(map[models.ChapterID]*sync.Mutex),
	}
}

// Limit returns the configured per-chapter entry cap.
func (s *Service) Limit() int { return s.limit }

func (s *Service) chapterLock(id models.ChapterID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

// Commit records a new version of the chapter text.
//
// If the chapter has no history yet, a one-entry history is created whose
// entry holds the full text. Otherwise the current text is reconstructed by
// replaying every stored patch; if it matches the incoming text after
// trimming whitespace the commit is a no-op that still succeeds. A history
// already at the cap rejects the commit with a [models.LimitExceededError].
func (s *Service) Commit(ctx context.Context, chapterID models.ChapterID, req CommitRequest) error {
	lock := s.chapterLock(chapterID)
	lock.Lock()
	defer lock.Unlock()

	hist, err := s.store.GetHistory(ctx, chapterID)
	if err != nil {
		return fmt.Errorf("failed to load history for chapter %s: %w", chapterID, err)
	}

	if hist == nil {
		hist = &models.History{
			ChapterID: chapterID,
			Entries:   models.EntryList{models.NewCommitEntry(req.Message, req.Timestamp, req.FullText)},
		}
		return s.store.PutHistory(ctx, hist)
	}

	current, err := s.replay(hist.Entries, len(hist.Entries)-1)
	if err != nil {
		return err
	}
	if strings.TrimSpace(current) == strings.TrimSpace(req.FullText) {
		// Nothing changed since the last commit.
		return nil
	}

	if len(hist.Entries) >= s.limit {
		return &models.LimitExceededError{Kind: "history", Limit: s.limit}
	}

	patch := s.dmp.PatchToText(s.dmp.PatchMake(current, req.FullText))
	hist.Entries = append(hist.Entries, models.NewCommitEntry(req.Message, req.Timestamp, patch))
	return s.store.PutHistory(ctx, hist)
}

// Reconstruct returns the chapter text as of version index by replaying
// entries 0..index. Cost is linear in index, which the cap keeps bounded.
func (s *Service) Reconstruct(ctx context.Context, chapterID models.ChapterID, index int) (string, error) {
	hist, err := s.store.GetHistory(ctx, chapterID)
	if err != nil {
		return "", fmt.Errorf("failed to load history for chapter %s: %w", chapterID, err)
	}
	if hist == nil {
		return "", &models.NotFoundError{Kind: "history for chapter", ID: chapterID.String()}
	}
	if index < 0 || index >= len(hist.Entries) {
		return "", &models.NotFoundError{Kind: "history entry", ID: fmt.Sprintf("%d", index)}
	}
	return s.replay(hist.Entries, index)
}

// replay applies entries 1..index on top of the base text in entry 0.
func (s *Service) replay(entries []models.Entry, index int) (string, error) {
	text := entries[0].Patch()
	for k := 1; k <= index; k++ {
		patches, err := s.dmp.PatchFromText(entries[k].Patch())
		if err != nil {
			return "", fmt.Errorf("corrupt patch at history entry %d: %w", k, err)
		}
		applied, results := s.dmp.PatchApply(patches, text)
		for _, ok := range results {
			if !ok {
				return "", fmt.Errorf("patch at history entry %d no longer applies", k)
			}
		}
		text = applied
	}
	return text, nil
}

// EditMessage replaces the message of the entry at index. A legacy
// bare-string entry is upgraded in place to a structured commit record
// keeping its patch; this is the only mutation histories allow besides
// appends. Out-of-range indexes return a [models.NotFoundError].
func (s *Service) EditMessage(ctx context.Context, chapterID models.ChapterID, index int, message string) error {
	lock := s.chapterLock(chapterID)
	lock.Lock()
	defer lock.Unlock()

	hist, err := s.store.GetHistory(ctx, chapterID)
	if err != nil {
		return fmt.Errorf("failed to load history for chapter %s: %w", chapterID, err)
	}
	if hist == nil {
		return &models.NotFoundError{Kind: "history for chapter", ID: chapterID.String()}
	}
	if index < 0 || index >= len(hist.Entries) {
		return &models.NotFoundError{Kind: "history entry", ID: fmt.Sprintf("%d", index)}
	}

	entry := hist.Entries[index]
	if entry.IsLegacy() {
		upgraded := models.NewCommitEntry(message, nil, entry.Legacy)
		hist.Entries[index] = upgraded
	} else {
		entry.Commit.Message = message
		hist.Entries[index] = entry
	}
	return s.store.PutHistory(ctx, hist)
}

// Entries lists the history of a chapter in commit order. Patches stay
// internal; legacy entries surface with an empty message and no timestamp.
// A chapter with no history lists as empty.
func (s *Service) Entries(ctx context.Context, chapterID models.ChapterID) ([]models.HistoryEntryView, error) {
	hist, err := s.store.GetHistory(ctx, chapterID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history for chapter %s: %w", chapterID, err)
	}
	views := make([]models.HistoryEntryView, 0)
	if hist == nil {
		return views, nil
	}
	for i, entry := range hist.Entries {
		views = append(views, models.HistoryEntryView{
			Index:     i,
			Message:   entry.Message(),
			Timestamp: entry.Timestamp(),
		})
	}
	return views, nil
}
