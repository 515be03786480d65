// Package repo implements the document repository: guarded CRUD and cascade
// soft-delete for books and chapters.
//
// Every update runs through the staleness guard, every successful mutation
// is published to the owner's live sessions, and deletes always archive a
// copy before removing the live record so they remain recoverable. The
// repository is the only writer of book and chapter records; chapter
// histories belong to the history service and are only torn down here as
// part of a cascade.
package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/draftsmith/draftsmith/pkg/broadcast"
	"github.com/draftsmith/draftsmith/pkg/models"
	"github.com/draftsmith/draftsmith/pkg/staleness"
	"github.com/draftsmith/draftsmith/pkg/store"
)

const (
	scratchBookTitle    = "Scratch"
	welcomeChapterTitle = "Welcome"
	welcomeText         = "Welcome to your scratch book. Anything you jot down here is saved and synced across your devices."
)

// Repository provides guarded create/read/update/soft-delete for books and
// chapters on top of a document store.
type Repository struct {
	store  store.Store
	guard  *staleness.Guard
	events *broadcast.Broadcaster
	owners *ownerCache
	log    zerolog.Logger
	now    func() time.Time
}

// New creates a Repository.
func New(s store.Store, g *staleness.Guard, b *broadcast.Broadcaster, log zerolog.Logger) *Repository {
	return &Repository{
		store:  s,
		guard:  g,
		events: b,
		owners: newOwnerCache(time.Now),
		log:    log,
		now:    time.Now,
	}
}

// GetBook returns the live book, nil if it does not exist.
func (r *Repository) GetBook(ctx context.Context, id models.BookID) (*models.Book, error) {
	return r.store.GetBook(ctx, id)
}

// GetChapter returns the live chapter, nil if it does not exist.
func (r *Repository) GetChapter(ctx context.Context, id models.ChapterID) (*models.Chapter, error) {
	return r.store.GetChapter(ctx, id)
}

// SaveBook persists the book through the staleness guard and returns the new
// sync timestamp. clientToken may be nil only when the book does not exist
// yet. ChapterOrder is de-duplicated before persisting.
func (r *Repository) SaveBook(ctx context.Context, book *models.Book, clientToken *time.Time) (time.Time, error) {
	if book == nil {
		return time.Time{}, &models.ValidationError{Reason: "no book to save"}
	}
	if book.ID.IsZero() || book.OwnerID.IsZero() {
		return time.Time{}, &models.ValidationError{Reason: "missing required identity fields: book id and owner id"}
	}

	var exists bool
	return r.guard.Write(ctx, "book", clientToken,
		func(ctx context.Context) (time.Time, bool, error) {
			persisted, err := r.store.GetBook(ctx, book.ID)
			if err != nil {
				return time.Time{}, false, err
			}
			if persisted == nil {
				return time.Time{}, false, nil
			}
			exists = true
			return persisted.CreatedAt, true, nil
		},
		func(ctx context.Context) (time.Time, error) {
			book.Normalize()
			ts := book.Stamp(r.now())
			var err error
			eventType := models.ChangeBookCreate
			if exists {
				eventType = models.ChangeBookUpdate
				err = r.store.UpdateBook(ctx, book)
			} else {
				err = r.store.CreateBook(ctx, book)
			}
			if err != nil {
				return time.Time{}, fmt.Errorf("failed to save book %s: %w", book.ID, err)
			}
			r.owners.put(book.ID, book.OwnerID)
			r.events.Publish(book.OwnerID, models.ChangeEvent{Type: eventType, Book: book, Timestamp: ts})
			return ts, nil
		},
	)
}

// SaveChapter persists the chapter through the staleness guard and returns
// the new sync timestamp. The parent book must exist and belong to the
// chapter's owner; that relation is looked up through the bounded owner
// cache before falling back to the store.
func (r *Repository) SaveChapter(ctx context.Context, chapter *models.Chapter, clientToken *time.Time) (time.Time, error) {
	if chapter == nil {
		return time.Time{}, &models.ValidationError{Reason: "no chapter to save"}
	}
	if chapter.ID.IsZero() || chapter.BookID.IsZero() || chapter.OwnerID.IsZero() {
		return time.Time{}, &models.ValidationError{Reason: "missing required identity fields: chapter id, book id, and owner id"}
	}
	if err := r.checkBookOwner(ctx, chapter.BookID, chapter.OwnerID); err != nil {
		return time.Time{}, err
	}

	var exists bool
	return r.guard.Write(ctx, "chapter", clientToken,
		func(ctx context.Context) (time.Time, bool, error) {
			persisted, err := r.store.GetChapter(ctx, chapter.ID)
			if err != nil {
				return time.Time{}, false, err
			}
			if persisted == nil {
				return time.Time{}, false, nil
			}
			exists = true
			return persisted.CreatedAt, true, nil
		},
		func(ctx context.Context) (time.Time, error) {
			ts := chapter.Stamp(r.now())
			var err error
			eventType := models.ChangeChapterCreate
			if exists {
				eventType = models.ChangeChapterUpdate
				err = r.store.UpdateChapter(ctx, chapter)
			} else {
				err = r.store.CreateChapter(ctx, chapter)
			}
			if err != nil {
				return time.Time{}, fmt.Errorf("failed to save chapter %s: %w", chapter.ID, err)
			}
			r.events.Publish(chapter.OwnerID, models.ChangeEvent{Type: eventType, Chapter: chapter, Timestamp: ts})
			return ts, nil
		},
	)
}

func (r *Repository) checkBookOwner(ctx context.Context, bookID models.BookID, ownerID models.UserID) error {
	if cached, ok := r.owners.get(bookID); ok {
		if cached != ownerID {
			return &models.ValidationError{Reason: "chapter owner does not match book owner"}
		}
		return nil
	}
	book, err := r.store.GetBook(ctx, bookID)
	if err != nil {
		return err
	}
	if book == nil {
		return &models.NotFoundError{Kind: "book", ID: bookID.String()}
	}
	r.owners.put(bookID, book.OwnerID)
	if book.OwnerID != ownerID {
		return &models.ValidationError{Reason: "chapter owner does not match book owner"}
	}
	return nil
}

// DeleteBook archives and removes the book and all of its chapters. Chapter
// teardown runs concurrently; within each chapter the archive strictly
// precedes any deletion so a cascade that dies halfway never loses data.
func (r *Repository) DeleteBook(ctx context.Context, id models.BookID, clientToken *time.Time) error {
	book, err := r.store.GetBook(ctx, id)
	if err != nil {
		return err
	}
	if book == nil {
		return &models.NotFoundError{Kind: "book", ID: id.String()}
	}

	_, err = r.guard.Write(ctx, "book", clientToken,
		func(ctx context.Context) (time.Time, bool, error) {
			return book.CreatedAt, true, nil
		},
		func(ctx context.Context) (time.Time, error) {
			chapters, err := r.store.ListChapters(ctx, id)
			if err != nil {
				return time.Time{}, fmt.Errorf("failed to list chapters of book %s: %w", id, err)
			}

			var (
				wg       sync.WaitGroup
				mu       sync.Mutex
				firstErr error
			)
			for _, chapter := range chapters {
				wg.Add(1)
				go func(ch *models.Chapter) {
					defer wg.Done()
					if err := r.tearDownChapter(ctx, ch); err != nil {
						mu.Lock()
						if firstErr == nil {
							firstErr = err
						}
						mu.Unlock()
					}
				}(chapter)
			}
			wg.Wait()
			if firstErr != nil {
				return time.Time{}, firstErr
			}

			if err := r.store.ArchiveBook(ctx, book); err != nil {
				return time.Time{}, fmt.Errorf("failed to archive book %s: %w", id, err)
			}
			if err := r.store.DeleteBook(ctx, id); err != nil {
				return time.Time{}, fmt.Errorf("failed to delete book %s: %w", id, err)
			}
			r.owners.invalidate(id)

			ts := r.now()
			r.log.Info().
				Str("book", id.String()).
				Int("chapters", len(chapters)).
				Msg("book deleted")
			r.events.Publish(book.OwnerID, models.ChangeEvent{Type: models.ChangeBookDelete, Book: book, Timestamp: ts})
			return ts, nil
		},
	)
	return err
}

// tearDownChapter archives one chapter and then removes its history, derived
// caches, and the live record, in that order.
func (r *Repository) tearDownChapter(ctx context.Context, chapter *models.Chapter) error {
	if err := r.store.ArchiveChapter(ctx, chapter); err != nil {
		return fmt.Errorf("failed to archive chapter %s: %w", chapter.ID, err)
	}
	if err := r.store.DeleteHistory(ctx, chapter.ID); err != nil {
		return fmt.Errorf("failed to delete history of chapter %s: %w", chapter.ID, err)
	}
	if err := r.store.DeleteChapterCache(ctx, chapter.ID); err != nil {
		return fmt.Errorf("failed to delete caches of chapter %s: %w", chapter.ID, err)
	}
	if err := r.store.DeleteChapter(ctx, chapter.ID); err != nil {
		return fmt.Errorf("failed to delete chapter %s: %w", chapter.ID, err)
	}
	return nil
}

// DeleteChapter archives and removes one chapter, then drops its id from the
// parent book's ChapterOrder and re-saves the book through the guarded path.
func (r *Repository) DeleteChapter(ctx context.Context, id models.ChapterID, bookID models.BookID, clientToken *time.Time) error {
	chapter, err := r.store.GetChapter(ctx, id)
	if err != nil {
		return err
	}
	if chapter == nil {
		return &models.NotFoundError{Kind: "chapter", ID: id.String()}
	}
	if chapter.BookID != bookID {
		return &models.ValidationError{Reason: "chapter does not belong to the given book"}
	}

	_, err = r.guard.Write(ctx, "chapter", clientToken,
		func(ctx context.Context) (time.Time, bool, error) {
			return chapter.CreatedAt, true, nil
		},
		func(ctx context.Context) (time.Time, error) {
			if err := r.tearDownChapter(ctx, chapter); err != nil {
				return time.Time{}, err
			}
			ts := r.now()
			r.events.Publish(chapter.OwnerID, models.ChangeEvent{Type: models.ChangeChapterDelete, Chapter: chapter, Timestamp: ts})
			return ts, nil
		},
	)
	if err != nil {
		return err
	}

	book, err := r.store.GetBook(ctx, bookID)
	if err != nil {
		return err
	}
	if book == nil {
		return nil
	}
	order := book.ChapterOrder[:0]
	for _, cid := range book.ChapterOrder {
		if cid != id {
			order = append(order, cid)
		}
	}
	book.ChapterOrder = order
	// Freshly fetched, so its own timestamp passes the cascading guard check.
	token := book.CreatedAt
	if _, err := r.SaveBook(ctx, book, &token); err != nil {
		return fmt.Errorf("failed to update chapter order of book %s: %w", bookID, err)
	}
	return nil
}

// ListBooksForOwner returns every book of the owner, defensively
// de-duplicating chapter orderings. When the owner has no scratch book yet,
// one is synthesized together with a welcome chapter, so a caller never sees
// an owner with zero books.
func (r *Repository) ListBooksForOwner(ctx context.Context, ownerID models.UserID) ([]*models.Book, error) {
	if ownerID.IsZero() {
		return nil, &models.ValidationError{Reason: "missing owner id"}
	}
	books, err := r.store.ListBooks(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	hasScratch := false
	for _, book := range books {
		book.Normalize()
		if book.Scratch {
			hasScratch = true
		}
	}
	if hasScratch {
		return books, nil
	}

	scratch, err := r.createScratchBook(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return append(books, scratch), nil
}

func (r *Repository) createScratchBook(ctx context.Context, ownerID models.UserID) (*models.Book, error) {
	welcome := &models.Chapter{
		ID:      models.NewChapterID(),
		OwnerID: ownerID,
		Title:   welcomeChapterTitle,
		Blocks: models.BlockList{{
			ID:   models.NewBlockID(),
			Type: models.BlockTypeMarkdown,
			Text: welcomeText,
		}},
	}
	scratch := &models.Book{
		ID:           models.NewBookID(),
		OwnerID:      ownerID,
		Title:        scratchBookTitle,
		Scratch:      true,
		ChapterOrder: models.ChapterIDList{welcome.ID},
	}
	welcome.BookID = scratch.ID

	if _, err := r.SaveBook(ctx, scratch, nil); err != nil {
		return nil, fmt.Errorf("failed to create scratch book for %s: %w", ownerID, err)
	}
	if _, err := r.SaveChapter(ctx, welcome, nil); err != nil {
		return nil, fmt.Errorf("failed to create welcome chapter for %s: %w", ownerID, err)
	}
	r.log.Info().Str("owner", ownerID.String()).Msg("scratch book created")
	return scratch, nil
}

// PublishSettings fans a settings update from an adjacent subsystem out to
// the owner's live sessions. The payload passes through opaquely.
func (r *Repository) PublishSettings(ownerID models.UserID, payload json.RawMessage) time.Time {
	ts := r.now()
	r.events.Publish(ownerID, models.ChangeEvent{Type: models.ChangeSettingsUpdate, Settings: payload, Timestamp: ts})
	return ts
}
