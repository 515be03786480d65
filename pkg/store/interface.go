// Package store defines the persistence boundary of draftsmith.
//
// The [Store] interface abstracts the document store so the repository,
// history store, and tests can run against different backends:
//
//   - [github.com/draftsmith/draftsmith/pkg/store/memory.MemoryStore]: mutex-guarded
//     maps with CBOR deep-copy on every read and write, used by tests and
//     development mode
//   - [github.com/draftsmith/draftsmith/pkg/store/postgres.PostgresStore]: GORM-backed
//     PostgreSQL tables, used in deployment
//
// Get methods return nil without error for missing records; callers detect
// absence from the nil, not from the error. Update methods perform full
// entity replacement. Archived copies live in separate tables from the live
// records so a delete can always be recovered from the archive.
//
// The store enforces no cross-entity consistency of its own. The repository
// is the only writer of book and chapter records, the history store is the
// only writer of history records, and the two coordinate exclusively through
// the timestamps persisted here.
package store

import (
	"context"

	"github.com/draftsmith/draftsmith/pkg/models"
)

// Store is the complete persistence interface for the draftsmith core.
type Store interface {
	// Book operations.
	//
	// Books are the live records of a user's document tree. ListBooks
	// returns all books owned by a user ordered by creation time and an
	// empty slice, never nil, when there are none.

	CreateBook(ctx context.Context, book *models.Book) error
	GetBook(ctx context.Context, id models.BookID) (*models.Book, error)
	UpdateBook(ctx context.Context, book *models.Book) error
	DeleteBook(ctx context.Context, id models.BookID) error
	ListBooks(ctx context.Context, ownerID models.UserID) ([]*models.Book, error)

	// Chapter operations.
	//
	// ListChapters returns every live chapter of a book; ordering within
	// the book is owned by Book.ChapterOrder, not by this method.

	CreateChapter(ctx context.Context, chapter *models.Chapter) error
	GetChapter(ctx context.Context, id models.ChapterID) (*models.Chapter, error)
	UpdateChapter(ctx context.Context, chapter *models.Chapter) error
	DeleteChapter(ctx context.Context, id models.ChapterID) error
	ListChapters(ctx context.Context, bookID models.BookID) ([]*models.Chapter, error)

	// Archive operations.
	//
	// Archiving copies a record into a separate deleted-records store.
	// The repository always archives before deleting so a cascade that
	// dies halfway never loses data. Archiving the same id twice
	// overwrites the previous copy.

	ArchiveBook(ctx context.Context, book *models.Book) error
	ArchiveChapter(ctx context.Context, chapter *models.Chapter) error
	GetArchivedBook(ctx context.Context, id models.BookID) (*models.Book, error)
	GetArchivedChapter(ctx context.Context, id models.ChapterID) (*models.Chapter, error)

	// History operations.
	//
	// PutHistory replaces the whole history document for a chapter; the
	// history store owns append semantics and the cap.

	GetHistory(ctx context.Context, chapterID models.ChapterID) (*models.History, error)
	PutHistory(ctx context.Context, history *models.History) error
	DeleteHistory(ctx context.Context, chapterID models.ChapterID) error

	// DeleteChapterCache drops derived per-chapter caches (search vectors
	// and similar artifacts maintained by adjacent subsystems) when the
	// chapter itself is deleted. Deleting a cache that does not exist is
	// not an error.
	DeleteChapterCache(ctx context.Context, chapterID models.ChapterID) error

	// Close releases the underlying connections.
	Close() error
}
