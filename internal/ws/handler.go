package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hexdraft/draft-server/internal/engine"
	"github.com/hexdraft/draft-server/internal/registry"
	"github.com/hexdraft/draft-server/internal/room"
	"github.com/hexdraft/draft-server/pkg/types"
)

// Handler upgrades a viewer connection and streams snapshots until either
// side closes. The stream is read-only: actions travel over the REST API.
func Handler(reg *registry.Registry, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomID")
		token := r.URL.Query().Get("token")

		reply := make(chan *room.Room, 1)
		reg.Inbox() <- registry.GetRoom{ID: roomID, Reply: reply}
		rm := <-reply
		if rm == nil {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		role := rm.Tokens.Resolve(token)
		if role == engine.RoleNone {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// Viewers are served from a different origin than the API.
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan room.Snapshot, 8)
		clientID := uuid.NewString()

		select {
		case rm.Inbox() <- room.Join{ClientID: clientID, Outbox: out}:
		case <-rm.Done():
			return
		}
		defer func() {
			select {
			case rm.Inbox() <- room.Leave{ClientID: clientID}:
			case <-rm.Done():
			}
		}()

		logger.Info("subscriber joined",
			zap.String("room_id", roomID),
			zap.String("client_id", clientID),
			zap.String("role", string(role)))

		// Writer goroutine: drains the outbox until the room closes it. The
		// first frame carries the caller's resolved role.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			first := true
			for snap := range out {
				msg := types.ServerMessage{Type: "state", Version: snap.Version, State: &snap.State}
				if first {
					msg.Role = role
					first = false
				}
				payload, _ := json.Marshal(msg)
				ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
			// Room shut down: tell the client instead of leaving it hanging.
			conn.Close(websocket.StatusGoingAway, "room closed")
		}()

		// Reader loop: viewers send nothing meaningful; reading only detects
		// the close handshake.
		for {
			if _, _, err := conn.Read(r.Context()); err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}
		}
	}
}
