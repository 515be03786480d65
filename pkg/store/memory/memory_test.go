package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftsmith/draftsmith/pkg/models"
)

func TestGetBookMissingReturnsNilNil(t *testing.T) {
	s := New()
	book, err := s.GetBook(context.Background(), models.NewBookID())
	require.NoError(t, err)
	assert.Nil(t, book)
}

func TestBookRoundTripIsIsolated(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	book := &models.Book{
		ID:           models.NewBookID(),
		OwnerID:      models.NewUserID(),
		Title:        "Drafts",
		ChapterOrder: models.ChapterIDList{models.NewChapterID()},
		CreatedAt:    now,
		LastSyncedAt: now,
	}
	require.NoError(t, s.CreateBook(ctx, book))

	// Mutating the caller's copy after the fact must not leak into the store.
	book.Title = "mutated after store"
	book.ChapterOrder[0] = models.NewChapterID()

	stored, err := s.GetBook(ctx, book.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Drafts", stored.Title)
	assert.NotEqual(t, book.ChapterOrder[0], stored.ChapterOrder[0])
	assert.True(t, stored.CreatedAt.Equal(now), "timestamps keep full precision through the clone")

	// Nor can a retrieved copy reach back into the store.
	stored.Title = "mutated after get"
	again, err := s.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Drafts", again.Title)
}

func TestListBooksOrdering(t *testing.T) {
	s := New()
	ctx := context.Background()
	owner := models.NewUserID()
	base := time.Now()

	newest := &models.Book{ID: models.NewBookID(), OwnerID: owner, Title: "newest", CreatedAt: base.Add(2 * time.Hour)}
	oldest := &models.Book{ID: models.NewBookID(), OwnerID: owner, Title: "oldest", CreatedAt: base}
	middle := &models.Book{ID: models.NewBookID(), OwnerID: owner, Title: "middle", CreatedAt: base.Add(time.Hour)}
	other := &models.Book{ID: models.NewBookID(), OwnerID: models.NewUserID(), Title: "other owner", CreatedAt: base}
	for _, b := range []*models.Book{newest, oldest, middle, other} {
		require.NoError(t, s.CreateBook(ctx, b))
	}

	books, err := s.ListBooks(ctx, owner)
	require.NoError(t, err)
	require.Len(t, books, 3)
	assert.Equal(t, "oldest", books[0].Title)
	assert.Equal(t, "middle", books[1].Title)
	assert.Equal(t, "newest", books[2].Title)
}

func TestListChaptersFiltersByBook(t *testing.T) {
	s := New()
	ctx := context.Background()
	bookID := models.NewBookID()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.CreateChapter(ctx, &models.Chapter{
			ID:     models.NewChapterID(),
			BookID: bookID,
		}))
	}
	require.NoError(t, s.CreateChapter(ctx, &models.Chapter{
		ID:     models.NewChapterID(),
		BookID: models.NewBookID(),
	}))

	chapters, err := s.ListChapters(ctx, bookID)
	require.NoError(t, err)
	assert.Len(t, chapters, 3)
}

func TestArchiveKeepsACopyIndependentOfLiveRecord(t *testing.T) {
	s := New()
	ctx := context.Background()

	chapter := &models.Chapter{
		ID:     models.NewChapterID(),
		BookID: models.NewBookID(),
		Title:  "doomed",
		Blocks: models.BlockList{{ID: models.NewBlockID(), Type: models.BlockTypeText, Text: "keep me"}},
	}
	require.NoError(t, s.CreateChapter(ctx, chapter))
	require.NoError(t, s.ArchiveChapter(ctx, chapter))
	require.NoError(t, s.DeleteChapter(ctx, chapter.ID))

	live, err := s.GetChapter(ctx, chapter.ID)
	require.NoError(t, err)
	assert.Nil(t, live)

	archived, err := s.GetArchivedChapter(ctx, chapter.ID)
	require.NoError(t, err)
	require.NotNil(t, archived)
	assert.Equal(t, "doomed", archived.Title)
	require.Len(t, archived.Blocks, 1)
	assert.Equal(t, "keep me", archived.Blocks[0].Text)
}

func TestHistoryRoundTripPreservesEntryForms(t *testing.T) {
	s := New()
	ctx := context.Background()
	id := models.NewChapterID()
	ts := time.Now()

	hist := &models.History{
		ChapterID: id,
		Entries: models.EntryList{
			{Legacy: "Hello"},
			models.NewCommitEntry("greeting grew", &ts, "@@ patch @@"),
		},
	}
	require.NoError(t, s.PutHistory(ctx, hist))

	got, err := s.GetHistory(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Entries, 2)

	assert.True(t, got.Entries[0].IsLegacy())
	assert.Equal(t, "Hello", got.Entries[0].Patch())

	assert.False(t, got.Entries[1].IsLegacy())
	assert.Equal(t, "greeting grew", got.Entries[1].Message())
	assert.Equal(t, "@@ patch @@", got.Entries[1].Patch())
	require.NotNil(t, got.Entries[1].Timestamp())
	assert.True(t, got.Entries[1].Timestamp().Equal(ts))

	require.NoError(t, s.DeleteHistory(ctx, id))
	got, err = s.GetHistory(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestChapterCache(t *testing.T) {
	s := New()
	ctx := context.Background()
	id := models.NewChapterID()

	assert.False(t, s.HasChapterCache(ctx, id))
	require.NoError(t, s.PutChapterCache(ctx, id, []byte("rendered")))
	assert.True(t, s.HasChapterCache(ctx, id))
	require.NoError(t, s.DeleteChapterCache(ctx, id))
	assert.False(t, s.HasChapterCache(ctx, id))
}
