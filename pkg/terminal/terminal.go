// Package terminal dispatches terminal tool calls to a sandboxed executor.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/calebhart/parley/pkg/tools"
)

// ErrUnknownTerminal is returned when a tool call references a terminal
// session that does not exist or belongs to another owner.
var ErrUnknownTerminal = errors.New("unknown terminal session")

// ExecResult is the outcome of a single command execution.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Executor is the backend that runs terminal sessions.
type Executor interface {
	// Create starts a new terminal session and returns its id.
	Create(ctx context.Context) (string, error)
	// Execute runs a shell command in the session. workingDir overrides the
	// session working directory for this command when non-empty.
	Execute(ctx context.Context, id, command, workingDir string, timeout time.Duration) (*ExecResult, error)
	// SetWorkdir changes the session's working directory.
	SetWorkdir(ctx context.Context, id, dir string) error
	// Remove terminates the session and releases its resources.
	Remove(ctx context.Context, id string) error
}

// Dispatcher serves the terminal tools on top of an Executor. It tracks
// which owner created each session so one agent cannot reach into
// another's terminals.
type Dispatcher struct {
	executor Executor

	mu     sync.Mutex
	owners map[string]map[string]bool // owner -> session ids
}

var _ tools.Dispatcher = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher backed by the given executor.
func NewDispatcher(executor Executor) *Dispatcher {
	return &Dispatcher{
		executor: executor,
		owners:   make(map[string]map[string]bool),
	}
}

// Invoke implements tools.Dispatcher for the terminal tool names.
func (d *Dispatcher) Invoke(ctx context.Context, owner, name string, args map[string]any) (string, error) {
	switch name {
	case tools.ToolTerminalCreate:
		return d.create(ctx, owner)
	case tools.ToolTerminalExecute:
		return d.execute(ctx, owner, args)
	case tools.ToolTerminalWorkdir:
		return d.workdir(ctx, owner, args)
	case tools.ToolTerminalDelete:
		return d.delete(ctx, owner, args)
	default:
		return "", fmt.Errorf("%w: %s", tools.ErrUnknownTool, name)
	}
}

// Release removes every terminal session the owner created.
func (d *Dispatcher) Release(ctx context.Context, owner string) error {
	d.mu.Lock()
	ids := make([]string, 0, len(d.owners[owner]))
	for id := range d.owners[owner] {
		ids = append(ids, id)
	}
	delete(d.owners, owner)
	d.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := d.executor.Remove(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("removing terminal %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) create(ctx context.Context, owner string) (string, error) {
	id, err := d.executor.Create(ctx)
	if err != nil {
		return "", fmt.Errorf("creating terminal: %w", err)
	}

	d.mu.Lock()
	if d.owners[owner] == nil {
		d.owners[owner] = make(map[string]bool)
	}
	d.owners[owner][id] = true
	d.mu.Unlock()

	return id, nil
}

func (d *Dispatcher) execute(ctx context.Context, owner string, args map[string]any) (string, error) {
	id, _ := args["session_id"].(string)
	if err := d.checkOwner(owner, id); err != nil {
		return "", err
	}
	command, _ := args["command"].(string)
	workingDir, _ := args["working_dir"].(string)

	timeout := 30 * time.Second
	if secs, ok := args["timeout"].(float64); ok {
		timeout = time.Duration(secs) * time.Second
	}

	res, err := d.executor.Execute(ctx, id, command, workingDir, timeout)
	if err != nil {
		return "", fmt.Errorf("executing command: %w", err)
	}
	return formatResult(res), nil
}

func (d *Dispatcher) workdir(ctx context.Context, owner string, args map[string]any) (string, error) {
	id, _ := args["session_id"].(string)
	if err := d.checkOwner(owner, id); err != nil {
		return "", err
	}
	dir, _ := args["directory"].(string)
	if err := d.executor.SetWorkdir(ctx, id, dir); err != nil {
		return "", fmt.Errorf("changing working directory: %w", err)
	}
	return fmt.Sprintf("Working directory changed to %s", dir), nil
}

func (d *Dispatcher) delete(ctx context.Context, owner string, args map[string]any) (string, error) {
	id, _ := args["session_id"].(string)
	if err := d.checkOwner(owner, id); err != nil {
		return "", err
	}

	d.mu.Lock()
	delete(d.owners[owner], id)
	d.mu.Unlock()

	if err := d.executor.Remove(ctx, id); err != nil {
		return "", fmt.Errorf("removing terminal: %w", err)
	}
	return fmt.Sprintf("Terminal session %s deleted", id), nil
}

func (d *Dispatcher) checkOwner(owner, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.owners[owner][id] {
		return fmt.Errorf("%w: %s", ErrUnknownTerminal, id)
	}
	return nil
}

// formatResult renders an execution result as model-readable text.
func formatResult(res *ExecResult) string {
	var b strings.Builder
	b.WriteString(res.Stdout)
	if res.Stderr != "" {
		if b.Len() > 0 && !strings.HasSuffix(res.Stdout, "\n") {
			b.WriteString("\n")
		}
		b.WriteString("stderr:\n")
		b.WriteString(res.Stderr)
	}
	if res.ExitCode != 0 {
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "exit code: %d", res.ExitCode)
	}
	if b.Len() == 0 {
		return "(no output)"
	}
	return b.String()
}
