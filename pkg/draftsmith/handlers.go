package draftsmith

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/draftsmith/draftsmith/pkg/history"
	"github.com/draftsmith/draftsmith/pkg/models"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondDomainError maps the typed error taxonomy onto status codes. Error
// messages are written to be shown to the end user verbatim, so they pass
// through unmodified; stale rejections additionally carry both timestamps.
func respondDomainError(w http.ResponseWriter, err error) {
	var (
		stale    *models.StaleWriteError
		notFound *models.NotFoundError
		limit    *models.LimitExceededError
		invalid  *models.ValidationError
	)
	switch {
	case errors.As(err, &stale):
		respondJSON(w, http.StatusConflict, map[string]any{
			"error":           stale.Error(),
			"serverTimestamp": stale.ServerTimestamp,
			"clientTimestamp": stale.ClientTimestamp,
		})
	case errors.As(err, &limit):
		respondError(w, http.StatusConflict, limit.Error())
	case errors.As(err, &notFound):
		respondError(w, http.StatusNotFound, notFound.Error())
	case errors.As(err, &invalid):
		respondError(w, http.StatusBadRequest, invalid.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// saveBookRequest is the save envelope: the entity plus the timestamp the
// session last synchronized against.
type saveBookRequest struct {
	Book        *models.Book `json:"book"`
	ClientToken *time.Time   `json:"clientToken,omitempty"`
}

type saveChapterRequest struct {
	Chapter     *models.Chapter `json:"chapter"`
	ClientToken *time.Time      `json:"clientToken,omitempty"`
}

type syncResponse struct {
	SyncedAt time.Time `json:"syncedAt"`
}

func (a *App) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	a.saveBook(w, r, nil)
}

func (a *App) handleSaveBook(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseBookID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid book ID")
		return
	}
	a.saveBook(w, r, &id)
}

func (a *App) saveBook(w http.ResponseWriter, r *http.Request, id *models.BookID) {
	var req saveBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if req.Book != nil && id != nil {
		req.Book.ID = *id
	}

	syncedAt, err := a.repo.SaveBook(r.Context(), req.Book, req.ClientToken)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	status := http.StatusOK
	if id == nil {
		status = http.StatusCreated
	}
	respondJSON(w, status, syncResponse{SyncedAt: syncedAt})
}

func (a *App) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseBookID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid book ID")
		return
	}
	book, err := a.repo.GetBook(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if book == nil {
		respondError(w, http.StatusNotFound, "Book not found")
		return
	}
	respondJSON(w, http.StatusOK, book)
}

func (a *App) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseBookID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid book ID")
		return
	}
	token, err := parseClientToken(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid clientToken")
		return
	}
	if err := a.repo.DeleteBook(r.Context(), id, token); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (a *App) handleListBooks(w http.ResponseWriter, r *http.Request) {
	ownerID, err := models.ParseUserID(mux.Vars(r)["userId"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}
	books, err := a.repo.ListBooksForOwner(r.Context(), ownerID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, books)
}

func (a *App) handleCreateChapter(w http.ResponseWriter, r *http.Request) {
	a.saveChapter(w, r, nil)
}

func (a *App) handleSaveChapter(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseChapterID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid chapter ID")
		return
	}
	a.saveChapter(w, r, &id)
}

func (a *App) saveChapter(w http.ResponseWriter, r *http.Request, id *models.ChapterID) {
	var req saveChapterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if req.Chapter != nil && id != nil {
		req.Chapter.ID = *id
	}

	syncedAt, err := a.repo.SaveChapter(r.Context(), req.Chapter, req.ClientToken)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	status := http.StatusOK
	if id == nil {
		status = http.StatusCreated
	}
	respondJSON(w, status, syncResponse{SyncedAt: syncedAt})
}

func (a *App) handleGetChapter(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseChapterID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid chapter ID")
		return
	}
	chapter, err := a.repo.GetChapter(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if chapter == nil {
		respondError(w, http.StatusNotFound, "Chapter not found")
		return
	}
	respondJSON(w, http.StatusOK, chapter)
}

func (a *App) handleDeleteChapter(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseChapterID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid chapter ID")
		return
	}
	bookID, err := models.ParseBookID(r.URL.Query().Get("bookId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid book ID")
		return
	}
	token, err := parseClientToken(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid clientToken")
		return
	}
	if err := a.repo.DeleteChapter(r.Context(), id, bookID, token); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// History handlers

func (a *App) handleCommitHistory(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseChapterID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid chapter ID")
		return
	}
	var req history.CommitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	chapter, err := a.repo.GetChapter(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if chapter == nil {
		respondError(w, http.StatusNotFound, "no chapter")
		return
	}
	// An empty fullText commits the chapter text as currently stored.
	if req.FullText == "" {
		req.FullText = chapter.PlainText()
	}

	if err := a.history.Commit(r.Context(), id, req); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{})
}

func (a *App) handleListHistory(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseChapterID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid chapter ID")
		return
	}
	entries, err := a.history.Entries(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (a *App) handleReconstruct(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := models.ParseChapterID(vars["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid chapter ID")
		return
	}
	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid history index")
		return
	}
	text, err := a.history.Reconstruct(r.Context(), id, index)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (a *App) handleEditHistoryMessage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := models.ParseChapterID(vars["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid chapter ID")
		return
	}
	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid history index")
		return
	}
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := a.history.EditMessage(r.Context(), id, index, req.Message); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{})
}

// Sync handlers

// probeRequest asks whether a session's last known timestamp for an entity
// is still fresh enough to base a write on.
type probeRequest struct {
	Kind               string     `json:"kind"`
	ID                 string     `json:"id"`
	LastKnownTimestamp *time.Time `json:"lastKnownTimestamp,omitempty"`
}

func (a *App) handleStalenessProbe(w http.ResponseWriter, r *http.Request) {
	var req probeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	var serverTimestamp time.Time
	switch req.Kind {
	case "book":
		id, err := models.ParseBookID(req.ID)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid book ID")
			return
		}
		book, err := a.repo.GetBook(r.Context(), id)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if book == nil {
			respondError(w, http.StatusNotFound, "Book not found")
			return
		}
		serverTimestamp = book.CreatedAt
	case "chapter":
		id, err := models.ParseChapterID(req.ID)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid chapter ID")
			return
		}
		chapter, err := a.repo.GetChapter(r.Context(), id)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if chapter == nil {
			respondError(w, http.StatusNotFound, "Chapter not found")
			return
		}
		serverTimestamp = chapter.CreatedAt
	default:
		respondError(w, http.StatusBadRequest, "kind must be book or chapter")
		return
	}

	respondJSON(w, http.StatusOK, a.guard.Probe(req.Kind, req.LastKnownTimestamp, serverTimestamp))
}

func (a *App) handlePublishSettings(w http.ResponseWriter, r *http.Request) {
	ownerID, err := models.ParseUserID(mux.Vars(r)["userId"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}
	var payload json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	ts := a.repo.PublishSettings(ownerID, payload)
	respondJSON(w, http.StatusOK, syncResponse{SyncedAt: ts})
}

// parseClientToken reads the clientToken query parameter as RFC 3339.
// Absence is allowed (nil token); the guard decides whether that is valid
// for the operation.
func parseClientToken(r *http.Request) (*time.Time, error) {
	raw := r.URL.Query().Get("clientToken")
	if raw == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}
