// Package memory provides an in-memory implementation of the
// [github.com/draftsmith/draftsmith/pkg/store.Store] interface.
//
// MemoryStore backs the test suites and the default development mode. Every
// record crossing the store boundary is deep-copied through a CBOR
// round-trip, so callers can never mutate stored state through a retained
// pointer; the store behaves observationally like a remote database.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/draftsmith/draftsmith/pkg/models"
	"github.com/draftsmith/draftsmith/pkg/store"
)

// RFC3339Nano keeps full timestamp precision through the clone round-trip.
var encMode = func() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

func clone[T any](src *T) (*T, error) {
	if src == nil {
		return nil, nil
	}
	data, err := encMode.Marshal(src)
	if err != nil {
		return nil, err
	}
	dst := new(T)
	if err := cbor.Unmarshal(data, dst); err != nil {
		return nil, err
	}
	return dst, nil
}

// MemoryStore implements store.Store with mutex-guarded maps.
type MemoryStore struct {
	mu sync.RWMutex

	books            map[models.BookID]*models.Book
	chapters         map[models.ChapterID]*models.Chapter
	archivedBooks    map[models.BookID]*models.Book
	archivedChapters map[models.ChapterID]*models.Chapter
	histories        map[models.ChapterID]*models.History
	chapterCaches    map[models.ChapterID][]byte
}

// New creates an empty MemoryStore.
func New() *MemoryStore {
	return &MemoryStore{
		books:            make(map[models.BookID]*models.Book),
		chapters:         make(map[models.ChapterID]*models.Chapter),
		archivedBooks:    make(map[models.BookID]*models.Book),
		archivedChapters: make(map[models.ChapterID]*models.Chapter),
		histories:        make(map[models.ChapterID]*models.History),
		chapterCaches:    make(map[models.ChapterID][]byte),
	}
}

var _ store.Store = (*MemoryStore)(nil)

func (s *MemoryStore) CreateBook(ctx context.Context, book *models.Book) error {
	return s.putBook(book)
}

func (s *MemoryStore) UpdateBook(ctx context.Context, book *models.Book) error {
	return s.putBook(book)
}

func (s *MemoryStore) putBook(book *models.Book) error {
	copied, err := clone(book)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books[book.ID] = copied
	return nil
}

func (s *MemoryStore) GetBook(ctx context.Context, id models.BookID) (*models.Book, error) {
	s.mu.RLock()
	book := s.books[id]
	s.mu.RUnlock()
	return clone(book)
}

func (s *MemoryStore) DeleteBook(ctx context.Context, id models.BookID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.books, id)
	return nil
}

func (s *MemoryStore) ListBooks(ctx context.Context, ownerID models.UserID) ([]*models.Book, error) {
	s.mu.RLock()
	owned := make([]*models.Book, 0)
	for _, book := range s.books {
		if book.OwnerID == ownerID {
			owned = append(owned, book)
		}
	}
	s.mu.RUnlock()

	sort.Slice(owned, func(i, j int) bool {
		if owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
			return owned[i].ID.String() < owned[j].ID.String()
		}
		return owned[i].CreatedAt.Before(owned[j].CreatedAt)
	})

	out := make([]*models.Book, 0, len(owned))
	for _, book := range owned {
		copied, err := clone(book)
		if err != nil {
			return nil, err
		}
		out = append(out, copied)
	}
	return out, nil
}

func (s *MemoryStore) CreateChapter(ctx context.Context, chapter *models.Chapter) error {
	return s.putChapter(chapter)
}

func (s *MemoryStore) UpdateChapter(ctx context.Context, chapter *models.Chapter) error {
	return s.putChapter(chapter)
}

func (s *MemoryStore) putChapter(chapter *models.Chapter) error {
	copied, err := clone(chapter)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chapters[chapter.ID] = copied
	return nil
}

func (s *MemoryStore) GetChapter(ctx context.Context, id models.ChapterID) (*models.Chapter, error) {
	s.mu.RLock()
	chapter := s.chapters[id]
	s.mu.RUnlock()
	return clone(chapter)
}

func (s *MemoryStore) DeleteChapter(ctx context.Context, id models.ChapterID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chapters, id)
	return nil
}

func (s *MemoryStore) ListChapters(ctx context.Context, bookID models.BookID) ([]*models.Chapter, error) {
	s.mu.RLock()
	matched := make([]*models.Chapter, 0)
	for _, chapter := range s.chapters {
		if chapter.BookID == bookID {
			matched = append(matched, chapter)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ID.String() < matched[j].ID.String()
	})

	out := make([]*models.Chapter, 0, len(matched))
	for _, chapter := range matched {
		copied, err := clone(chapter)
		if err != nil {
			return nil, err
		}
		out = append(out, copied)
	}
	return out, nil
}

func (s *MemoryStore) ArchiveBook(ctx context.Context, book *models.Book) error {
	copied, err := clone(book)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archivedBooks[book.ID] = copied
	return nil
}

func (s *MemoryStore) ArchiveChapter(ctx context.Context, chapter *models.Chapter) error {
	copied, err := clone(chapter)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archivedChapters[chapter.ID] = copied
	return nil
}

func (s *MemoryStore) GetArchivedBook(ctx context.Context, id models.BookID) (*models.Book, error) {
	s.mu.RLock()
	book := s.archivedBooks[id]
	s.mu.RUnlock()
	return clone(book)
}

func (s *MemoryStore) GetArchivedChapter(ctx context.Context, id models.ChapterID) (*models.Chapter, error) {
	s.mu.RLock()
	chapter := s.archivedChapters[id]
	s.mu.RUnlock()
	return clone(chapter)
}

func (s *MemoryStore) GetHistory(ctx context.Context, chapterID models.ChapterID) (*models.History, error) {
	s.mu.RLock()
	history := s.histories[chapterID]
	s.mu.RUnlock()
	return clone(history)
}

func (s *MemoryStore) PutHistory(ctx context.Context, history *models.History) error {
	copied, err := clone(history)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.histories[history.ChapterID] = copied
	return nil
}

func (s *MemoryStore) DeleteHistory(ctx context.Context, chapterID models.ChapterID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.histories, chapterID)
	return nil
}

func (s *MemoryStore) DeleteChapterCache(ctx context.Context, chapterID models.ChapterID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chapterCaches, chapterID)
	return nil
}

// PutChapterCache stores a derived cache payload for a chapter. Adjacent
// subsystems write these; the core only ever deletes them on cascade.
func (s *MemoryStore) PutChapterCache(ctx context.Context, chapterID models.ChapterID, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chapterCaches[chapterID] = append([]byte(nil), payload...)
	return nil
}

// HasChapterCache reports whether a derived cache exists for the chapter.
func (s *MemoryStore) HasChapterCache(ctx context.Context, chapterID models.ChapterID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.chapterCaches[chapterID]
	return ok
}

func (s *MemoryStore) Close() error { return nil }
