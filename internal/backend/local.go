package backend

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"time"
)

// LocalBackend runs task commands as host processes under bash. Commands
// execute in the attempt's work directory with stdout and stderr captured
// to files; executions are recorded in the run journal when one is
// attached.
type LocalBackend struct {
	logger  *slog.Logger
	journal *Journal
	maxConc int64
}

// NewLocalBackend returns a host-process backend. journal may be nil.
func NewLocalBackend(logger *slog.Logger, journal *Journal, maxConcurrency int64) *LocalBackend {
	if maxConcurrency <= 0 {
		maxConcurrency = int64(runtime.NumCPU())
	}
	return &LocalBackend{
		logger:  logger.With("component", "local_backend"),
		journal: journal,
		maxConc: maxConcurrency,
	}
}

// ContainerRoot implements Backend. Local execution shares the host
// filesystem, so no mapping is needed.
func (b *LocalBackend) ContainerRoot() string { return "" }

// MaxConcurrency implements Backend.
func (b *LocalBackend) MaxConcurrency() int64 { return b.maxConc }

// Constraints implements Backend.
func (b *LocalBackend) Constraints(requirements, hints map[string]any) (ExecutionConstraints, error) {
	constraints, err := baseConstraints(requirements)
	if err != nil {
		return constraints, err
	}
	// The local backend ignores the container requirement; the command
	// runs on the host regardless.
	constraints.Container = ""
	return constraints, nil
}

// Spawn implements Backend.
func (b *LocalBackend) Spawn(ctx context.Context, req TaskSpawnRequest, started chan<- struct{}) (int, error) {
	if err := os.MkdirAll(req.WorkDir, 0o755); err != nil {
		return -1, fmt.Errorf("create work dir: %w", err)
	}

	script := filepath.Join(req.WorkDir, "command.sh")
	if err := os.WriteFile(script, []byte(req.Command), 0o755); err != nil {
		return -1, fmt.Errorf("write command script: %w", err)
	}

	stdout, err := os.Create(req.StdoutPath)
	if err != nil {
		return -1, fmt.Errorf("create stdout file: %w", err)
	}
	defer stdout.Close()
	stderr, err := os.Create(req.StderrPath)
	if err != nil {
		return -1, fmt.Errorf("create stderr file: %w", err)
	}
	defer stderr.Close()

	cmd := exec.CommandContext(ctx, "bash", script)
	cmd.Dir = req.WorkDir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Env = os.Environ()
	for _, k := range sortedKeys(req.Env) {
		cmd.Env = append(cmd.Env, k+"="+req.Env[k])
	}

	startedAt := time.Now()
	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("start task %s: %w", req.TaskName, err)
	}
	b.logger.Info("task started", "task", req.TaskName, "id", req.ID, "attempt", req.Attempt, "pid", cmd.Process.Pid)
	close(started)

	err = cmd.Wait()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return -1, fmt.Errorf("wait for task %s: %w", req.TaskName, err)
		}
	}

	b.logger.Info("task finished", "task", req.TaskName, "id", req.ID, "exit_code", exitCode,
		"duration", time.Since(startedAt))
	if b.journal != nil {
		if jerr := b.journal.Record(ctx, Execution{
			ID:         req.ID,
			Task:       req.TaskName,
			Attempt:    req.Attempt,
			ExitCode:   exitCode,
			WorkDir:    req.WorkDir,
			StartedAt:  startedAt,
			FinishedAt: time.Now(),
		}); jerr != nil {
			b.logger.Warn("journal write failed", "error", jerr)
		}
	}
	return exitCode, nil
}

// Close implements Backend.
func (b *LocalBackend) Close() error { return nil }

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
