package draftsmith

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/draftsmith/draftsmith/pkg/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The browser session carries no cookie of interest here and the
	// stream only pushes the owner's own entities.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleLiveUpdates upgrades the request to a websocket and streams the
// owner's change events until either side disconnects. Missed events are
// not replayed; after reconnecting, clients are expected to hit the
// staleness probe before resuming edits.
func (a *App) handleLiveUpdates(w http.ResponseWriter, r *http.Request) {
	ownerID, err := models.ParseUserID(mux.Vars(r)["userId"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "Missing session ID")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		a.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ch := a.events.Subscribe(ownerID, sessionID)

	// Drain the read side so client close frames are noticed.
	disconnected := make(chan struct{})
	go func() {
		defer close(disconnected)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	a.log.Debug().
		Str("owner", ownerID.String()).
		Str("session", sessionID).
		Msg("live updates connected")

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				// Channel was closed by a replacement subscription for
				// the same session id or by shutdown; the registry no
				// longer holds it, so do not unsubscribe.
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				a.events.Unsubscribe(ownerID, sessionID)
				return
			}
		case <-disconnected:
			a.events.Unsubscribe(ownerID, sessionID)
			return
		case <-r.Context().Done():
			a.events.Unsubscribe(ownerID, sessionID)
			return
		}
	}
}
