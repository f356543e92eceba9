package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/calebhart/parley/pkg/agent"
	"github.com/calebhart/parley/pkg/domain"
	"github.com/calebhart/parley/pkg/export"
	"github.com/calebhart/parley/pkg/store"
)

// sessionView is the wire representation of an agent session.
type sessionView struct {
	ID        string           `json:"id"`
	State     agent.State      `json:"state"`
	CreatedAt string           `json:"created_at"`
	Result    string           `json:"result,omitempty"`
	Messages  []domain.Message `json:"messages,omitempty"`
}

func viewOf(s *agent.Session, withMessages bool) sessionView {
	v := sessionView{
		ID:        s.ID(),
		State:     s.State(),
		CreatedAt: s.CreatedAt().UTC().Format(time.RFC3339),
		Result:    s.Result(),
	}
	if withMessages {
		v.Messages = s.Messages()
	}
	return v
}

// --- Sessions ---

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.manager.List()
	out := make([]sessionView, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, viewOf(sess, false))
	}
	s.jsonResponse(w, http.StatusOK, out)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.manager.Create()
	s.jsonResponse(w, http.StatusCreated, viewOf(sess, false))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, err := s.manager.Get(id)
	if err != nil {
		s.errorResponse(w, http.StatusNotFound, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, viewOf(sess, true))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.manager.Delete(r.Context(), id); err != nil {
		if errors.Is(err, agent.ErrSessionNotFound) {
			s.errorResponse(w, http.StatusNotFound, err)
			return
		}
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRunSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	if req.Prompt == "" {
		s.errorResponse(w, http.StatusBadRequest, fmt.Errorf("prompt is required"))
		return
	}

	result, err := s.manager.Run(r.Context(), id, req.Prompt)
	if err != nil {
		switch {
		case errors.Is(err, agent.ErrSessionNotFound):
			s.errorResponse(w, http.StatusNotFound, err)
		case errors.Is(err, agent.ErrSessionBusy):
			s.errorResponse(w, http.StatusConflict, err)
		default:
			s.errorResponse(w, http.StatusInternalServerError, err)
		}
		return
	}

	sess, err := s.manager.Get(id)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"result": result,
		"state":  sess.State(),
	})
}

// --- Conversations ---

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	list, err := s.conversations.List(r.Context())
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, list)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	conv, err := s.conversations.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.errorResponse(w, http.StatusNotFound, err)
			return
		}
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, conv)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.conversations.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.errorResponse(w, http.StatusNotFound, err)
			return
		}
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Export ---

// contentTypes maps export format names to response media types.
var contentTypes = map[string]string{
	export.FormatMarkdown:    "text/markdown; charset=utf-8",
	export.FormatJSON:        "application/json",
	export.FormatHTML:        "text/html; charset=utf-8",
	export.FormatPDF:         "application/pdf",
	export.FormatCodePackage: "application/zip",
}

func (s *Server) handleExportConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	q := r.URL.Query()

	format := q.Get("format")
	if format == "" {
		format = export.FormatMarkdown
	}
	opts := export.Options{
		IncludeMetadata:   q.Get("metadata") != "false",
		IncludeTimestamps: q.Get("timestamps") != "false",
	}

	// Reject bad formats before touching the store.
	exporter, err := export.New(format, opts)
	if err != nil {
		if errors.Is(err, export.ErrUnknownFormat) {
			s.errorResponse(w, http.StatusBadRequest, err)
			return
		}
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}

	conv, err := s.conversations.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.errorResponse(w, http.StatusNotFound, err)
			return
		}
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}

	artifact, err := exporter.Export(conv)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", contentTypes[artifact.FormatName])
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename))
	w.WriteHeader(http.StatusOK)
	w.Write(artifact.Content)
}

func (s *Server) handleListFormats(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, export.Formats())
}

// --- Console ---

func (s *Server) handleListConsoleSessions(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.console.Sessions())
}
