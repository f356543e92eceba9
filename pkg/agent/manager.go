package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/calebhart/parley/pkg/domain"
	"github.com/calebhart/parley/pkg/model"
	"github.com/calebhart/parley/pkg/store"
	"github.com/calebhart/parley/pkg/tools"
)

// ErrSessionNotFound indicates an unknown session id.
var ErrSessionNotFound = errors.New("session not found")

// Manager creates and destroys agent sessions. The provider, tool registry
// and dispatcher are injected at construction and shared read-only across all
// sessions.
type Manager struct {
	provider      model.Provider
	registry      *tools.Registry
	dispatcher    tools.Dispatcher
	conversations store.ConversationStore
	cfg           Config

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager. conversations may be nil, in which
// case finished transcripts are not persisted.
func NewManager(provider model.Provider, registry *tools.Registry, dispatcher tools.Dispatcher, conversations store.ConversationStore, cfg Config) *Manager {
	return &Manager{
		provider:      provider,
		registry:      registry,
		dispatcher:    dispatcher,
		conversations: conversations,
		cfg:           cfg,
		sessions:      make(map[string]*Session),
	}
}

// Create creates a new idle session and registers it.
func (m *Manager) Create() *Session {
	s := newSession(m.provider, m.registry, m.dispatcher, m.cfg)
	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()
	slog.Info("Session created", "sessionID", s.id)
	return s
}

// Get returns the session with the given id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// List returns all registered sessions ordered by creation time descending.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].createdAt.After(out[j].createdAt)
	})
	return out
}

// Run executes one turn against the named session and persists the transcript
// once the turn finishes. A busy session rejects the request with
// ErrSessionBusy rather than queueing it.
func (m *Manager) Run(ctx context.Context, id, prompt string, opts ...RunOption) (string, error) {
	s, err := m.Get(id)
	if err != nil {
		return "", err
	}

	result, err := s.Run(ctx, prompt, opts...)
	if err != nil {
		return "", err
	}

	if m.conversations != nil {
		if err := m.saveTranscript(ctx, s); err != nil {
			slog.Error("Failed to persist session transcript", "sessionID", s.id, "error", err)
		}
	}
	return result, nil
}

// deleteGrace bounds how long Delete waits for a cancelled run to finish its
// current step before tearing down tool resources anyway.
const deleteGrace = 30 * time.Second

// Delete removes the session from the registry and releases any external tool
// resources attached to it. An in-flight run is marked for cancellation and
// completes its current step; it is never force-killed mid dispatch, and the
// release waits for the run to leave the running state.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	s.markCancelled()

	if done := s.runDone(); done != nil {
		select {
		case <-done:
		case <-time.After(deleteGrace):
			slog.Warn("Session run did not finish within the delete grace period", "sessionID", id)
		case <-ctx.Done():
		}
	}

	if err := m.dispatcher.Release(ctx, id); err != nil {
		return fmt.Errorf("releasing session resources: %w", err)
	}
	slog.Info("Session deleted", "sessionID", id)
	return nil
}

func (m *Manager) saveTranscript(ctx context.Context, s *Session) error {
	msgs := s.Messages()
	now := time.Now().UTC()
	meta := domain.Metadata{
		ID:        s.id,
		Title:     transcriptTitle(msgs),
		CreatedAt: s.createdAt,
		UpdatedAt: now,
	}
	conv, err := domain.NewConversation(meta, msgs)
	if err != nil {
		return fmt.Errorf("assembling transcript: %w", err)
	}
	return m.conversations.Save(ctx, conv)
}

// transcriptTitle derives a display title from the first user prompt.
func transcriptTitle(msgs []domain.Message) string {
	for _, msg := range msgs {
		if msg.Role != domain.RoleUser || msg.Content == "" {
			continue
		}
		title := strings.TrimSpace(msg.Content)
		if i := strings.IndexByte(title, '\n'); i >= 0 {
			title = title[:i]
		}
		if len(title) > 80 {
			title = title[:77] + "..."
		}
		return title
	}
	return ""
}
