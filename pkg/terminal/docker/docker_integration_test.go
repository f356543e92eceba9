package docker

import (
	"context"
	"strings"
	"testing"
	"time"
)

// setupExecutor creates a Docker executor and a running terminal session,
// skipping the test when Docker is not available.
func setupExecutor(t *testing.T) (*Executor, string) {
	t.Helper()
	e, err := New("", "")
	if err != nil {
		t.Skipf("Docker not available, skipping integration test: %v", err)
	}
	t.Cleanup(func() { e.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	id, err := e.Create(ctx)
	if err != nil {
		t.Skipf("Could not start terminal container: %v", err)
	}
	t.Cleanup(func() {
		cleanCtx, c := context.WithTimeout(context.Background(), 30*time.Second)
		defer c()
		e.Remove(cleanCtx, id)
	})
	return e, id
}

func TestIntegrationExecute(t *testing.T) {
	e, id := setupExecutor(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := e.Execute(ctx, id, "echo hello", "", 10*time.Second)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if strings.TrimSpace(res.Stdout) != "hello" {
		t.Errorf("stdout = %q, want hello", res.Stdout)
	}
	if res.ExitCode != 0 {
		t.Errorf("exit code = %d", res.ExitCode)
	}
}

func TestIntegrationExitCodeAndStderr(t *testing.T) {
	e, id := setupExecutor(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := e.Execute(ctx, id, "ls /does-not-exist", "", 10*time.Second)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.ExitCode == 0 {
		t.Error("exit code = 0, want nonzero")
	}
	if res.Stderr == "" {
		t.Error("stderr empty, want error message")
	}
}

func TestIntegrationWorkdirPersists(t *testing.T) {
	e, id := setupExecutor(t)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := e.SetWorkdir(ctx, id, "/tmp"); err != nil {
		t.Fatalf("SetWorkdir: %v", err)
	}
	res, err := e.Execute(ctx, id, "pwd", "", 10*time.Second)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if strings.TrimSpace(res.Stdout) != "/tmp" {
		t.Errorf("pwd = %q, want /tmp", res.Stdout)
	}

	// A rejected directory leaves the working directory unchanged.
	if err := e.SetWorkdir(ctx, id, "/does-not-exist"); err == nil {
		t.Error("SetWorkdir accepted a missing directory")
	}
}

func TestIntegrationTimeout(t *testing.T) {
	e, id := setupExecutor(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := e.Execute(ctx, id, "sleep 30", "", 2*time.Second)
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
}
