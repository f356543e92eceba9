// Package docker implements terminal.Executor using Docker containers,
// one container per terminal session.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/google/uuid"

	"github.com/calebhart/parley/pkg/terminal"
)

const (
	// LabelManager is the label used to identify containers managed by this system.
	LabelManager = "manager"
	// LabelManagerValue is the value of the manager label.
	LabelManagerValue = "parley"
	// LabelTerminalID is the label carrying the terminal session id.
	LabelTerminalID = "terminal-id"

	// DefaultImage is the container image used for terminal sessions.
	DefaultImage = "ubuntu:24.04"
	// DefaultWorkdir is the initial working directory inside the container.
	DefaultWorkdir = "/workspace"
)

// Executor runs terminal sessions as Docker containers.
type Executor struct {
	client  *client.Client
	image   string
	workdir string

	mu       sync.Mutex
	workdirs map[string]string // session id -> current working directory
}

// Verify interface compliance.
var _ terminal.Executor = (*Executor)(nil)

// New creates a Docker-backed executor. Empty image or workdir fall back
// to the package defaults.
func New(image, workdir string) (*Executor, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	if image == "" {
		image = DefaultImage
	}
	if workdir == "" {
		workdir = DefaultWorkdir
	}
	return &Executor{
		client:   cli,
		image:    image,
		workdir:  workdir,
		workdirs: make(map[string]string),
	}, nil
}

// Close releases the Docker client resources.
func (e *Executor) Close() error {
	return e.client.Close()
}

// Create starts a new terminal container and returns the session id.
func (e *Executor) Create(ctx context.Context) (string, error) {
	if _, _, err := e.client.ImageInspectWithRaw(ctx, e.image); err != nil {
		return "", fmt.Errorf("terminal image %q not found locally: %w", e.image, err)
	}

	id := uuid.New().String()
	cfg := &container.Config{
		Image:      e.image,
		Cmd:        []string{"sleep", "infinity"},
		WorkingDir: e.workdir,
		Labels: map[string]string{
			LabelManager:    LabelManagerValue,
			LabelTerminalID: id,
		},
	}

	resp, err := e.client.ContainerCreate(ctx, cfg, nil, nil, nil, e.containerName(id))
	if err != nil {
		return "", fmt.Errorf("creating container: %w", err)
	}
	if err := e.client.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		return "", fmt.Errorf("starting container: %w", err)
	}

	e.mu.Lock()
	e.workdirs[id] = e.workdir
	e.mu.Unlock()

	slog.Info("Terminal session started", "terminalID", id, "image", e.image)
	return id, nil
}

// Execute runs a shell command in the session container via docker exec.
func (e *Executor) Execute(ctx context.Context, id, command, workingDir string, timeout time.Duration) (*terminal.ExecResult, error) {
	dir := workingDir
	if dir == "" {
		e.mu.Lock()
		dir = e.workdirs[id]
		e.mu.Unlock()
		if dir == "" {
			dir = e.workdir
		}
	}

	execCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	execResp, err := e.client.ContainerExecCreate(execCtx, e.containerName(id), types.ExecConfig{
		Cmd:          []string{"sh", "-c", command},
		WorkingDir:   dir,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating exec: %w", err)
	}

	attach, err := e.client.ContainerExecAttach(execCtx, execResp.ID, types.ExecStartCheck{})
	if err != nil {
		return nil, fmt.Errorf("attaching exec: %w", err)
	}
	defer attach.Close()

	var stdout, stderr bytes.Buffer
	copyDone := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(&stdout, &stderr, attach.Reader)
		copyDone <- err
	}()

	select {
	case <-execCtx.Done():
		return nil, fmt.Errorf("command timed out after %s", timeout)
	case err := <-copyDone:
		if err != nil {
			return nil, fmt.Errorf("reading exec output: %w", err)
		}
	}

	inspect, err := e.client.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return nil, fmt.Errorf("inspecting exec: %w", err)
	}

	return &terminal.ExecResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: inspect.ExitCode,
	}, nil
}

// SetWorkdir changes the session's working directory after verifying it
// exists inside the container.
func (e *Executor) SetWorkdir(ctx context.Context, id, dir string) error {
	res, err := e.Execute(ctx, id, fmt.Sprintf("test -d %q", dir), "", 10*time.Second)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("directory %s does not exist in terminal %s", dir, id)
	}

	e.mu.Lock()
	e.workdirs[id] = dir
	e.mu.Unlock()
	return nil
}

// Remove force-removes the session container.
func (e *Executor) Remove(ctx context.Context, id string) error {
	e.mu.Lock()
	delete(e.workdirs, id)
	e.mu.Unlock()

	if err := e.client.ContainerRemove(ctx, e.containerName(id), types.ContainerRemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("removing container: %w", err)
	}
	return nil
}

// Prune removes every managed terminal container. Called at startup and
// shutdown so crashed runs do not leak containers.
func (e *Executor) Prune(ctx context.Context) error {
	containers, err := e.client.ContainerList(ctx, types.ContainerListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("label", LabelManager+"="+LabelManagerValue),
		),
	})
	if err != nil {
		return fmt.Errorf("listing managed containers: %w", err)
	}

	for _, c := range containers {
		if err := e.client.ContainerRemove(ctx, c.ID, types.ContainerRemoveOptions{Force: true}); err != nil {
			slog.Warn("Failed to remove terminal container", "id", c.ID, "error", err)
			continue
		}
		slog.Info("Pruned terminal container", "terminalID", c.Labels[LabelTerminalID])
	}
	return nil
}

func (e *Executor) containerName(id string) string {
	return "parley-terminal-" + id
}
