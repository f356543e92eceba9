package server

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/calebhart/parley/pkg/agent"
	"github.com/calebhart/parley/pkg/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleChatWebSocket streams a session's messages to the client as they are
// appended. The client sends prompts; each prompt runs one agent turn.
func (s *Server) handleChatWebSocket(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, err := s.manager.Get(id)
	if err != nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade websocket", "error", err)
		return
	}
	defer ws.Close()

	// Writes come from both the run callback and the final status message.
	var writeMu sync.Mutex
	send := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return ws.WriteJSON(v)
	}

	// Replay existing history so reconnecting clients catch up.
	for _, msg := range sess.Messages() {
		if err := send(chatEvent{Type: "message", Message: &msg}); err != nil {
			return
		}
	}

	for {
		var req struct {
			Prompt string `json:"prompt"`
		}
		if err := ws.ReadJSON(&req); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				break
			}
			slog.Error("WebSocket read error", "sessionID", id, "error", err)
			break
		}
		if req.Prompt == "" {
			continue
		}

		result, err := s.manager.Run(r.Context(), id, req.Prompt, agent.WithMessageHandler(func(msg domain.Message) {
			if err := send(chatEvent{Type: "message", Message: &msg}); err != nil {
				slog.Error("WebSocket write error", "sessionID", id, "error", err)
			}
		}))
		if err != nil {
			status := "error"
			if errors.Is(err, agent.ErrSessionBusy) {
				status = "busy"
			}
			if err := send(chatEvent{Type: status, Error: err.Error()}); err != nil {
				return
			}
			continue
		}

		if err := send(chatEvent{Type: "done", Result: result}); err != nil {
			return
		}
	}
}

// chatEvent is the envelope pushed over the chat WebSocket.
type chatEvent struct {
	Type    string          `json:"type"` // "message", "done", "busy", "error"
	Message *domain.Message `json:"message,omitempty"`
	Result  string          `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}
