// Package agent implements the bounded tool-calling loop: stateful sessions
// coordinating an LLM provider and a fixed registry of callable tools.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/calebhart/parley/pkg/domain"
	"github.com/calebhart/parley/pkg/model"
	"github.com/calebhart/parley/pkg/tools"
)

// State describes the lifecycle of a session.
type State string

const (
	// StateIdle means the session was created and no turn has executed.
	StateIdle State = "idle"
	// StateRunning means a turn is in progress. Running is exclusive: a
	// second run request against the same session is rejected.
	StateRunning State = "running"
	// StateFinished means the last turn completed normally.
	StateFinished State = "finished"
	// StateError means the last turn failed. The partial message history is
	// preserved for diagnosis.
	StateError State = "error"
)

var (
	// ErrSessionBusy is returned when a run is requested while another run
	// is in progress on the same session.
	ErrSessionBusy = errors.New("session busy")
	// ErrSessionFailed is returned when a run is requested on a session in
	// the error state.
	ErrSessionFailed = errors.New("session in error state")
)

// Config holds the per-session loop parameters.
type Config struct {
	Model        string
	System       string
	MaxSteps     int
	ModelTimeout time.Duration
	ToolTimeout  time.Duration
}

const (
	defaultMaxSteps     = 10
	defaultModelTimeout = 2 * time.Minute
	defaultToolTimeout  = 60 * time.Second
)

func (c *Config) applyDefaults() {
	if c.MaxSteps <= 0 {
		c.MaxSteps = defaultMaxSteps
	}
	if c.ModelTimeout <= 0 {
		c.ModelTimeout = defaultModelTimeout
	}
	if c.ToolTimeout <= 0 {
		c.ToolTimeout = defaultToolTimeout
	}
}

// Session is a single-flight agent session. All mutation happens through Run,
// guarded by the session mutex so the exclusivity invariant holds under true
// parallelism.
type Session struct {
	id        string
	createdAt time.Time

	provider   model.Provider
	registry   *tools.Registry
	dispatcher tools.Dispatcher
	cfg        Config

	mu       sync.Mutex
	state    State
	messages []domain.Message
	result   string
	cancel   context.CancelFunc
	done     chan struct{} // closed when the in-flight run finishes
}

func newSession(provider model.Provider, registry *tools.Registry, dispatcher tools.Dispatcher, cfg Config) *Session {
	cfg.applyDefaults()
	return &Session{
		id:         uuid.New().String(),
		createdAt:  time.Now().UTC(),
		provider:   provider,
		registry:   registry,
		dispatcher: dispatcher,
		cfg:        cfg,
		state:      StateIdle,
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Result returns the final textual answer of the last finished turn. Empty
// until the session reaches StateFinished.
func (s *Session) Result() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Messages returns a snapshot of the session's message history.
func (s *Session) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// RunOption configures a single Run invocation.
type RunOption func(*runConfig)

type runConfig struct {
	onMessage func(domain.Message)
}

// WithMessageHandler sets a callback invoked for each message appended during
// the run (assistant, tool and final messages). Used for live streaming.
func WithMessageHandler(h func(domain.Message)) RunOption {
	return func(c *runConfig) {
		c.onMessage = h
	}
}

// budgetExhaustedNotice is the result text when the step budget runs out.
// Budget exhaustion is a defined terminal condition, not a failure.
const budgetExhaustedNotice = "Step budget exhausted before the agent produced a final answer."

// Run executes one turn: it appends prompt as a user message, then loops
// calling the model and dispatching requested tool calls until the model
// produces a final answer or the step budget is exhausted. At most one run
// may be in flight per session; concurrent calls return ErrSessionBusy.
func (s *Session) Run(ctx context.Context, prompt string, opts ...RunOption) (string, error) {
	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	runCtx, err := s.begin(ctx, prompt, &cfg)
	if err != nil {
		return "", err
	}

	result, err := s.loop(runCtx, &cfg)
	if err != nil {
		s.fail()
		return "", err
	}
	s.finish(result)
	return result, nil
}

// begin transitions the session into StateRunning, or rejects the request.
func (s *Session) begin(ctx context.Context, prompt string, cfg *runConfig) (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateRunning:
		return nil, ErrSessionBusy
	case StateError:
		return nil, ErrSessionFailed
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.state = StateRunning

	msg := domain.Message{Role: domain.RoleUser, Content: prompt, Timestamp: time.Now().UTC()}
	s.messages = append(s.messages, msg)
	if cfg.onMessage != nil {
		cfg.onMessage(msg)
	}
	return runCtx, nil
}

// loop is the bounded model/tool round-trip. The step budget is the backstop
// termination guarantee independent of any single call's timeout.
func (s *Session) loop(ctx context.Context, cfg *runConfig) (string, error) {
	for step := 0; step < s.cfg.MaxSteps; step++ {
		completion, err := s.callModel(ctx)
		if err != nil {
			return "", fmt.Errorf("model call (step %d): %w", step, err)
		}

		assistant := domain.Message{
			Role:      domain.RoleAssistant,
			Content:   completion.Content,
			ToolCalls: completion.ToolCalls,
			Timestamp: time.Now().UTC(),
		}
		s.append(assistant, cfg)

		if len(completion.ToolCalls) == 0 {
			return completion.Content, nil
		}

		for _, tc := range completion.ToolCalls {
			s.append(s.executeToolCall(ctx, tc), cfg)
		}
	}
	return budgetExhaustedNotice, nil
}

func (s *Session) callModel(ctx context.Context) (*model.Completion, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ModelTimeout)
	defer cancel()

	return s.provider.Complete(callCtx, model.Request{
		Model:    s.cfg.Model,
		System:   s.cfg.System,
		Messages: s.Messages(),
		Tools:    s.registry.Descriptors(),
	})
}

// executeToolCall validates and dispatches a single tool call. Validation
// failures and dispatch errors are converted to tool-role error messages fed
// back into the loop; the agent is expected to recover conversationally.
func (s *Session) executeToolCall(ctx context.Context, tc domain.ToolCall) domain.Message {
	msg := domain.Message{
		Role:       domain.RoleTool,
		ToolCallID: tc.ID,
		Name:       tc.Name,
		Timestamp:  time.Now().UTC(),
	}

	var args map[string]any
	if tc.Arguments != "" {
		if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
			msg.Content = fmt.Sprintf("Error: invalid tool arguments: %v", err)
			return msg
		}
	}
	if args == nil {
		args = map[string]any{}
	}

	desc, err := s.registry.Resolve(tc.Name)
	if err != nil {
		msg.Content = fmt.Sprintf("Error: %v", err)
		return msg
	}
	if err := tools.Validate(desc, args); err != nil {
		msg.Content = fmt.Sprintf("Error: %v", err)
		return msg
	}

	dispatchCtx, cancel := context.WithTimeout(ctx, s.cfg.ToolTimeout)
	defer cancel()

	result, err := s.dispatcher.Invoke(dispatchCtx, s.id, tc.Name, args)
	if err != nil {
		slog.Warn("Tool dispatch failed", "sessionID", s.id, "tool", tc.Name, "error", err)
		msg.Content = fmt.Sprintf("Error: %v", err)
		return msg
	}
	msg.Content = result
	return msg
}

func (s *Session) append(msg domain.Message, cfg *runConfig) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	if cfg.onMessage != nil {
		cfg.onMessage(msg)
	}
}

func (s *Session) finish(result string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = result
	s.state = StateFinished
	s.cancel = nil
	close(s.done)
	s.done = nil
}

func (s *Session) fail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateError
	s.cancel = nil
	close(s.done)
	s.done = nil
}

// markCancelled requests cancellation of an in-flight run. The current step
// observes the cancelled context at its next suspension point; the session is
// never force-killed mid tool-dispatch.
func (s *Session) markCancelled() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// runDone returns a channel closed when the in-flight run finishes, or nil
// when no run is in flight.
func (s *Session) runDone() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}
