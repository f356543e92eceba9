// Package console bridges browser console sessions to the tool dispatcher
// over WebSocket. A browser extension connects, announces a session id, and
// then serves JavaScript evaluation requests and streams log entries.
package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/calebhart/parley/pkg/tools"
)

// ErrNoSession is returned when a tool call targets a console session with
// no connected browser.
var ErrNoSession = errors.New("no browser console connected")

// DefaultLogBuffer is how many log entries the bridge retains.
const DefaultLogBuffer = 500

// LogEntry is a single browser console log line.
type LogEntry struct {
	SessionID string    `json:"session_id"`
	Level     string    `json:"level"`
	Source    string    `json:"source"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// wireMessage is the envelope exchanged with the browser extension.
type wireMessage struct {
	Type string `json:"type"` // "execute", "result", "log"
	ID   string `json:"id,omitempty"`

	// execute
	Code string `json:"code,omitempty"`

	// result
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`

	// log
	Level   string `json:"level,omitempty"`
	Source  string `json:"source,omitempty"`
	Message string `json:"message,omitempty"`
}

type session struct {
	conn *websocket.Conn
	mu   sync.Mutex // guards writes to conn
}

func (s *session) send(msg wireMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(msg)
}

// Bridge accepts browser WebSocket connections and serves the console tools.
type Bridge struct {
	upgrader  websocket.Upgrader
	logBuffer int

	mu       sync.Mutex
	sessions map[string]*session
	pending  map[string]chan wireMessage // request id -> result
	logs     []LogEntry                  // bounded ring, oldest first
}

var _ tools.Dispatcher = (*Bridge)(nil)

// NewBridge creates a Bridge retaining up to logBuffer log entries.
// A non-positive logBuffer uses DefaultLogBuffer.
func NewBridge(logBuffer int) *Bridge {
	if logBuffer <= 0 {
		logBuffer = DefaultLogBuffer
	}
	return &Bridge{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logBuffer: logBuffer,
		sessions:  make(map[string]*session),
		pending:   make(map[string]chan wireMessage),
	}
}

// HandleWS upgrades the request and runs the browser connection until it
// closes. The session id comes from the "session" query parameter; when
// absent a fresh id is assigned.
func (b *Bridge) HandleWS(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session")
	if id == "" {
		id = uuid.New().String()
	}

	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Console WebSocket upgrade failed", "error", err)
		return
	}

	s := &session{conn: conn}
	b.mu.Lock()
	if prev, ok := b.sessions[id]; ok {
		prev.conn.Close()
	}
	b.sessions[id] = s
	b.mu.Unlock()

	// Tell the browser which session id it got.
	s.send(wireMessage{Type: "session", ID: id})
	slog.Info("Browser console connected", "consoleID", id)

	b.readLoop(id, s)

	b.mu.Lock()
	if b.sessions[id] == s {
		delete(b.sessions, id)
	}
	b.mu.Unlock()
	conn.Close()
	slog.Info("Browser console disconnected", "consoleID", id)
}

func (b *Bridge) readLoop(id string, s *session) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg wireMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("Malformed console message", "consoleID", id, "error", err)
			continue
		}

		switch msg.Type {
		case "result":
			b.mu.Lock()
			ch, ok := b.pending[msg.ID]
			if ok {
				delete(b.pending, msg.ID)
			}
			b.mu.Unlock()
			if ok {
				ch <- msg
			}
		case "log":
			b.appendLog(LogEntry{
				SessionID: id,
				Level:     msg.Level,
				Source:    msg.Source,
				Message:   msg.Message,
				Timestamp: time.Now().UTC(),
			})
		default:
			slog.Warn("Unknown console message type", "consoleID", id, "type", msg.Type)
		}
	}
}

func (b *Bridge) appendLog(entry LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logs = append(b.logs, entry)
	if len(b.logs) > b.logBuffer {
		b.logs = b.logs[len(b.logs)-b.logBuffer:]
	}
}

// Sessions lists the ids of connected browser consoles.
func (b *Bridge) Sessions() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.sessions))
	for id := range b.sessions {
		out = append(out, id)
	}
	return out
}

// Invoke implements tools.Dispatcher for the console tool names.
func (b *Bridge) Invoke(ctx context.Context, owner, name string, args map[string]any) (string, error) {
	switch name {
	case tools.ToolConsoleExecute:
		return b.execute(ctx, args)
	case tools.ToolConsoleLogs:
		return b.recentLogs(args)
	default:
		return "", fmt.Errorf("%w: %s", tools.ErrUnknownTool, name)
	}
}

// Release is a no-op: console sessions belong to the browser, not to the
// agent that happens to query them.
func (b *Bridge) Release(ctx context.Context, owner string) error {
	return nil
}

func (b *Bridge) execute(ctx context.Context, args map[string]any) (string, error) {
	sessionID, _ := args["session_id"].(string)
	code, _ := args["code"].(string)

	timeout := 10 * time.Second
	if secs, ok := args["timeout"].(float64); ok {
		timeout = time.Duration(secs) * time.Second
	}

	b.mu.Lock()
	s, ok := b.sessions[sessionID]
	b.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoSession, sessionID)
	}

	reqID := uuid.New().String()
	ch := make(chan wireMessage, 1)
	b.mu.Lock()
	b.pending[reqID] = ch
	b.mu.Unlock()

	if err := s.send(wireMessage{Type: "execute", ID: reqID, Code: code}); err != nil {
		b.mu.Lock()
		delete(b.pending, reqID)
		b.mu.Unlock()
		return "", fmt.Errorf("sending to browser: %w", err)
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-execCtx.Done():
		b.mu.Lock()
		delete(b.pending, reqID)
		b.mu.Unlock()
		return "", fmt.Errorf("evaluation timed out after %s", timeout)
	case msg := <-ch:
		if msg.Error != "" {
			return "", fmt.Errorf("browser error: %s", msg.Error)
		}
		return msg.Result, nil
	}
}

func (b *Bridge) recentLogs(args map[string]any) (string, error) {
	// Non-positive counts fall back to the default rather than slicing out
	// of bounds.
	count := 50
	if n, ok := args["count"].(float64); ok && int(n) > 0 {
		count = int(n)
	}
	level, _ := args["level"].(string)
	source, _ := args["source"].(string)

	b.mu.Lock()
	var matched []LogEntry
	for _, e := range b.logs {
		if level != "" && e.Level != level {
			continue
		}
		if source != "" && e.Source != source {
			continue
		}
		matched = append(matched, e)
	}
	b.mu.Unlock()

	if len(matched) > count {
		matched = matched[len(matched)-count:]
	}
	if len(matched) == 0 {
		return "(no matching log entries)", nil
	}

	out, err := json.MarshalIndent(matched, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding logs: %w", err)
	}
	return string(out), nil
}
