package draftsmith

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftsmith/draftsmith/pkg/models"
	"github.com/draftsmith/draftsmith/pkg/store/memory"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	app, err := newApp(&Config{MemoryOnly: true, HistoryLimit: 50}, io.Discard)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func doJSON(t *testing.T, app *App, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	app.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func createBook(t *testing.T, app *App, owner models.UserID) (*models.Book, time.Time) {
	t.Helper()
	book := &models.Book{ID: models.NewBookID(), OwnerID: owner, Title: "Drafts"}
	rec := doJSON(t, app, "POST", "/api/books", saveBookRequest{Book: book})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return book, decodeBody[syncResponse](t, rec).SyncedAt
}

func createChapter(t *testing.T, app *App, book *models.Book, text string) (*models.Chapter, time.Time) {
	t.Helper()
	chapter := &models.Chapter{
		ID:      models.NewChapterID(),
		BookID:  book.ID,
		OwnerID: book.OwnerID,
		Title:   "One",
		Blocks:  models.BlockList{{ID: models.NewBlockID(), Type: models.BlockTypeText, Text: text}},
	}
	rec := doJSON(t, app, "POST", "/api/chapters", saveChapterRequest{Chapter: chapter})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return chapter, decodeBody[syncResponse](t, rec).SyncedAt
}

func TestHealthEndpoint(t *testing.T) {
	app := newTestApp(t)
	rec := doJSON(t, app, "GET", "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody[map[string]string](t, rec)["status"])
}

func TestBookLifecycle(t *testing.T) {
	app := newTestApp(t)
	owner := models.NewUserID()

	book, token := createBook(t, app, owner)
	assert.False(t, token.IsZero())

	rec := doJSON(t, app, "GET", "/api/books/"+book.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[models.Book](t, rec)
	assert.Equal(t, "Drafts", got.Title)
	assert.Equal(t, owner, got.OwnerID)

	book.Title = "Drafts II"
	rec = doJSON(t, app, "PUT", "/api/books/"+book.ID.String(),
		saveBookRequest{Book: book, ClientToken: &token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, app, "GET", "/api/books/"+book.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Drafts II", decodeBody[models.Book](t, rec).Title)
}

func TestSaveBookStaleReturnsConflictWithBothTimestamps(t *testing.T) {
	app := newTestApp(t)
	book, _ := createBook(t, app, models.NewUserID())

	stale := time.Now().Add(-2 * time.Hour)
	book.Title = "from a stale tab"
	rec := doJSON(t, app, "PUT", "/api/books/"+book.ID.String(),
		saveBookRequest{Book: book, ClientToken: &stale})

	require.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody[map[string]any](t, rec)
	assert.Contains(t, body["error"], "refresh")
	assert.NotEmpty(t, body["serverTimestamp"])
	assert.NotEmpty(t, body["clientTimestamp"])
}

func TestSaveBookBadPayloads(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest("POST", "/api/books", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	app.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, app, "POST", "/api/books", saveBookRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "nil book is a validation error")

	rec = doJSON(t, app, "PUT", "/api/books/not-a-uuid", saveBookRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetBookNotFound(t *testing.T) {
	app := newTestApp(t)
	rec := doJSON(t, app, "GET", "/api/books/"+models.NewBookID().String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteBookCascadesOverHTTP(t *testing.T) {
	app := newTestApp(t)
	book, token := createBook(t, app, models.NewUserID())
	chapter, _ := createChapter(t, app, book, "doomed prose")

	url := fmt.Sprintf("/api/books/%s?clientToken=%s",
		book.ID, token.Format(time.RFC3339Nano))
	rec := doJSON(t, app, "DELETE", url, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = doJSON(t, app, "GET", "/api/books/"+book.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = doJSON(t, app, "GET", "/api/chapters/"+chapter.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	mem := app.Store().(*memory.MemoryStore)
	archived, err := mem.GetArchivedBook(context.Background(), book.ID)
	require.NoError(t, err)
	assert.NotNil(t, archived)
}

func TestDeleteBookWithoutTokenIsRejected(t *testing.T) {
	app := newTestApp(t)
	book, _ := createBook(t, app, models.NewUserID())

	rec := doJSON(t, app, "DELETE", "/api/books/"+book.ID.String(), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "existing book needs a clientToken")

	rec = doJSON(t, app, "DELETE", "/api/books/"+book.ID.String()+"?clientToken=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListBooksSynthesizesScratchBook(t *testing.T) {
	app := newTestApp(t)
	owner := models.NewUserID()

	rec := doJSON(t, app, "GET", "/api/users/"+owner.String()+"/books", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	books := decodeBody[[]models.Book](t, rec)
	require.Len(t, books, 1)
	assert.True(t, books[0].Scratch)
}

func TestChapterDeleteUpdatesParentOrder(t *testing.T) {
	app := newTestApp(t)
	book, token := createBook(t, app, models.NewUserID())
	chapter, chToken := createChapter(t, app, book, "prose")

	book.ChapterOrder = models.ChapterIDList{chapter.ID}
	rec := doJSON(t, app, "PUT", "/api/books/"+book.ID.String(),
		saveBookRequest{Book: book, ClientToken: &token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	url := fmt.Sprintf("/api/chapters/%s?bookId=%s&clientToken=%s",
		chapter.ID, book.ID, chToken.Format(time.RFC3339Nano))
	rec = doJSON(t, app, "DELETE", url, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = doJSON(t, app, "GET", "/api/books/"+book.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[models.Book](t, rec).ChapterOrder)
}

func TestHistoryEndpoints(t *testing.T) {
	app := newTestApp(t)
	book, _ := createBook(t, app, models.NewUserID())
	chapter, _ := createChapter(t, app, book, "Hello")
	base := "/api/chapters/" + chapter.ID.String() + "/history"

	// An empty fullText commits the chapter text as stored.
	rec := doJSON(t, app, "POST", base, map[string]string{})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, app, "POST", base, map[string]string{
		"message":  "greeting grew",
		"fullText": "Hello world",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, app, "GET", base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decodeBody[[]models.HistoryEntryView](t, rec)
	require.Len(t, entries, 2)
	assert.Equal(t, "greeting grew", entries[1].Message)

	rec = doJSON(t, app, "GET", base+"/0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello", decodeBody[map[string]string](t, rec)["text"])
	rec = doJSON(t, app, "GET", base+"/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello world", decodeBody[map[string]string](t, rec)["text"])

	rec = doJSON(t, app, "PUT", base+"/0", map[string]string{"message": "base text"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, app, "GET", base, nil)
	entries = decodeBody[[]models.HistoryEntryView](t, rec)
	assert.Equal(t, "base text", entries[0].Message)

	rec = doJSON(t, app, "GET", base+"/7", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = doJSON(t, app, "GET", base+"/x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCommitHistoryForUnknownChapter(t *testing.T) {
	app := newTestApp(t)
	rec := doJSON(t, app, "POST", "/api/chapters/"+models.NewChapterID().String()+"/history",
		map[string]string{"fullText": "anything"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "no chapter")
}

func TestStalenessProbeEndpoint(t *testing.T) {
	app := newTestApp(t)
	book, token := createBook(t, app, models.NewUserID())

	rec := doJSON(t, app, "POST", "/api/sync/probe", probeRequest{
		Kind: "book", ID: book.ID.String(), LastKnownTimestamp: &token,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	fresh := decodeBody[map[string]any](t, rec)
	assert.Equal(t, false, fresh["isStale"])

	old := token.Add(-2 * time.Minute)
	rec = doJSON(t, app, "POST", "/api/sync/probe", probeRequest{
		Kind: "book", ID: book.ID.String(), LastKnownTimestamp: &old,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	stale := decodeBody[map[string]any](t, rec)
	assert.Equal(t, true, stale["isStale"])

	rec = doJSON(t, app, "POST", "/api/sync/probe", probeRequest{
		Kind: "book", ID: models.NewBookID().String(),
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, app, "POST", "/api/sync/probe", probeRequest{
		Kind: "novel", ID: book.ID.String(),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLiveUpdatesStreamAndSettings(t *testing.T) {
	app := newTestApp(t)
	owner := models.NewUserID()

	server := httptest.NewServer(app.Router())
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") +
		"/api/users/" + owner.String() + "/updates?session=tab-1"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// The handler subscribes shortly after the handshake completes.
	require.Eventually(t, func() bool {
		return app.events.SessionCount(owner) == 1
	}, 2*time.Second, 10*time.Millisecond)

	createBook(t, app, owner)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev models.ChangeEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, models.ChangeBookCreate, ev.Type)
	require.NotNil(t, ev.Book)
	assert.Equal(t, "Drafts", ev.Book.Title)

	rec := doJSON(t, app, "POST", "/api/users/"+owner.String()+"/settings",
		map[string]string{"theme": "dark"})
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, models.ChangeSettingsUpdate, ev.Type)
	assert.JSONEq(t, `{"theme":"dark"}`, string(ev.Settings))
}

func TestLiveUpdatesRequiresSession(t *testing.T) {
	app := newTestApp(t)
	rec := doJSON(t, app, "GET", "/api/users/"+models.NewUserID().String()+"/updates", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
