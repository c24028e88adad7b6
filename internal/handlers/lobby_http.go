// Package handlers wires the lobby registry to the HTTP/WebSocket edge: a
// plain HTTP endpoint that creates lobbies, and a WebSocket endpoint that
// adapts the wire protocol onto the lobby controller.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/holloway-dev/blankslate/internal/lobby"
)

type createLobbyRequest struct {
	Name string    `json:"name"`
	ID   uuid.UUID `json:"id"`
}

type createLobbyResponse struct {
	ID uuid.UUID `json:"id"`
}

// CreateLobbyHandler handles POST /lobby: { "name": string, "id": uuid } ->
// 200 { "id": uuid }.
func CreateLobbyHandler(store *lobby.Store, log *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req createLobbyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "malformed body", http.StatusBadRequest)
			return
		}

		l := store.CreateLobby(req.Name, req.ID.String(), req.Name)
		log.WithFields(logrus.Fields{
			"lobby_id": l.ID,
			"host_id":  req.ID,
		}).Info("lobby created")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(createLobbyResponse{ID: l.ID})
	}
}
