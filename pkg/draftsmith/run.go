package draftsmith

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// Run starts the HTTP server.
//
// # API Endpoints
//
// Books and chapters (all writes guarded by the staleness check):
//
//	POST   /api/books                          - Create a book
//	PUT    /api/books/{id}                     - Save a book
//	DELETE /api/books/{id}?clientToken=...     - Cascade soft-delete a book
//	GET    /api/books/{id}                     - Get a book
//	GET    /api/users/{userId}/books           - List books (synthesizes the scratch book)
//	POST   /api/chapters                       - Create a chapter
//	PUT    /api/chapters/{id}                  - Save a chapter
//	DELETE /api/chapters/{id}?bookId=...&clientToken=... - Soft-delete a chapter
//	GET    /api/chapters/{id}                  - Get a chapter
//
// Chapter history:
//
//	POST   /api/chapters/{id}/history          - Commit a version
//	GET    /api/chapters/{id}/history          - List entries (no patches)
//	GET    /api/chapters/{id}/history/{index}  - Reconstruct the text at a version
//	PUT    /api/chapters/{id}/history/{index}  - Edit a commit message
//
// Synchronization:
//
//	POST   /api/sync/probe                     - Am-I-stale probe
//	GET    /api/users/{userId}/updates?session=S - Websocket stream of change events
//	POST   /api/users/{userId}/settings        - Publish a settings update
//
// The method blocks until the context is cancelled or a fatal server error
// occurs; graceful shutdown allows up to 5 seconds for in-flight requests.
func (a *App) Run(ctx context.Context, cmd *RunCommand) error {
	addr := fmt.Sprintf(":%s", a.config.ServerPort)
	a.log.Info().Str("addr", addr).Msg("starting draftsmith server")

	server := &http.Server{
		Addr:    addr,
		Handler: a.Router(),
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}

// Router builds the HTTP handler without starting a listener; tests use it
// with httptest servers.
func (a *App) Router() http.Handler {
	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", a.handleHealth).Methods("GET")

	// Book routes
	api.HandleFunc("/books", a.handleCreateBook).Methods("POST")
	api.HandleFunc("/books/{id}", a.handleSaveBook).Methods("PUT")
	api.HandleFunc("/books/{id}", a.handleGetBook).Methods("GET")
	api.HandleFunc("/books/{id}", a.handleDeleteBook).Methods("DELETE")
	api.HandleFunc("/users/{userId}/books", a.handleListBooks).Methods("GET")

	// Chapter routes
	api.HandleFunc("/chapters", a.handleCreateChapter).Methods("POST")
	api.HandleFunc("/chapters/{id}", a.handleSaveChapter).Methods("PUT")
	api.HandleFunc("/chapters/{id}", a.handleGetChapter).Methods("GET")
	api.HandleFunc("/chapters/{id}", a.handleDeleteChapter).Methods("DELETE")

	// History routes
	api.HandleFunc("/chapters/{id}/history", a.handleCommitHistory).Methods("POST")
	api.HandleFunc("/chapters/{id}/history", a.handleListHistory).Methods("GET")
	api.HandleFunc("/chapters/{id}/history/{index}", a.handleReconstruct).Methods("GET")
	api.HandleFunc("/chapters/{id}/history/{index}", a.handleEditHistoryMessage).Methods("PUT")

	// Sync routes
	api.HandleFunc("/sync/probe", a.handleStalenessProbe).Methods("POST")
	api.HandleFunc("/users/{userId}/updates", a.handleLiveUpdates).Methods("GET")
	api.HandleFunc("/users/{userId}/settings", a.handlePublishSettings).Methods("POST")

	router.HandleFunc("/health", a.handleHealth).Methods("GET")
	return router
}
