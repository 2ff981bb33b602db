package backend

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// guestTaskRoot is where a task's work directory is mounted inside the
// container.
const guestTaskRoot = "/mnt/task"

// removeTimeout bounds container cleanup after a task finishes.
const removeTimeout = 10 * time.Second

// DockerBackend runs task commands inside containers. The attempt's work
// directory is bind-mounted at the guest task root and extra input paths
// are mounted read-only according to the request's path mapping.
type DockerBackend struct {
	cli          *client.Client
	logger       *slog.Logger
	journal      *Journal
	defaultImage string
	maxConc      int64
}

// NewDockerBackend connects to the Docker daemon from the environment.
func NewDockerBackend(logger *slog.Logger, journal *Journal, defaultImage string, maxConcurrency int64) (*DockerBackend, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("initialize docker client: %w", err)
	}
	if defaultImage == "" {
		defaultImage = "ubuntu:latest"
	}
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	return &DockerBackend{
		cli:          cli,
		logger:       logger.With("component", "docker_backend"),
		journal:      journal,
		defaultImage: defaultImage,
		maxConc:      maxConcurrency,
	}, nil
}

// ContainerRoot implements Backend.
func (b *DockerBackend) ContainerRoot() string { return guestTaskRoot }

// MaxConcurrency implements Backend.
func (b *DockerBackend) MaxConcurrency() int64 { return b.maxConc }

// Constraints implements Backend.
func (b *DockerBackend) Constraints(requirements, hints map[string]any) (ExecutionConstraints, error) {
	constraints, err := baseConstraints(requirements)
	if err != nil {
		return constraints, err
	}
	if constraints.Container == "" {
		constraints.Container = b.defaultImage
	}
	return constraints, nil
}

// Spawn implements Backend.
func (b *DockerBackend) Spawn(ctx context.Context, req TaskSpawnRequest, started chan<- struct{}) (int, error) {
	if err := os.MkdirAll(req.WorkDir, 0o755); err != nil {
		return -1, fmt.Errorf("create work dir: %w", err)
	}

	image := req.Constraints.Container
	if image == "" {
		image = b.defaultImage
	}

	env := make([]string, 0, len(req.Env))
	keys := make([]string, 0, len(req.Env))
	for k := range req.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+req.Env[k])
	}

	mounts := []mount.Mount{
		{Type: mount.TypeBind, Source: req.WorkDir, Target: guestTaskRoot},
	}
	hostPaths := make([]string, 0, len(req.PathMapping))
	for host := range req.PathMapping {
		hostPaths = append(hostPaths, host)
	}
	sort.Strings(hostPaths)
	for _, host := range hostPaths {
		mounts = append(mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   host,
			Target:   req.PathMapping[host],
			ReadOnly: true,
		})
	}

	containerConfig := &container.Config{
		Image:      image,
		Cmd:        []string{"bash", "-c", req.Command},
		WorkingDir: guestTaskRoot,
		Env:        env,
	}
	hostConfig := &container.HostConfig{
		Mounts: mounts,
		Resources: container.Resources{
			NanoCPUs: int64(req.Constraints.CPU * 1e9),
			Memory:   req.Constraints.Memory,
		},
	}

	containerName := fmt.Sprintf("wdl-task-%s", req.ID)
	resp, err := b.cli.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, containerName)
	if err != nil {
		return -1, fmt.Errorf("create container for task %s: %w", req.TaskName, err)
	}
	defer func() {
		removeCtx, cancel := context.WithTimeout(context.Background(), removeTimeout)
		defer cancel()
		if err := b.cli.ContainerRemove(removeCtx, resp.ID, container.RemoveOptions{Force: true, RemoveVolumes: true}); err != nil {
			b.logger.Warn("container cleanup failed", "container", containerName, "error", err)
		}
	}()

	if err := b.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return -1, fmt.Errorf("start container for task %s: %w", req.TaskName, err)
	}
	b.logger.Info("task container started", "task", req.TaskName, "id", req.ID, "image", image)
	close(started)

	waitCh, errCh := b.cli.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	var exitCode int
	select {
	case <-ctx.Done():
		return -1, ctx.Err()
	case err := <-errCh:
		return -1, fmt.Errorf("wait for container: %w", err)
	case status := <-waitCh:
		exitCode = int(status.StatusCode)
	}

	if err := b.copyLogs(ctx, resp.ID, req); err != nil {
		b.logger.Warn("log capture failed", "task", req.TaskName, "error", err)
	}

	if b.journal != nil {
		if jerr := b.journal.Record(ctx, Execution{
			ID:       req.ID,
			Task:     req.TaskName,
			Attempt:  req.Attempt,
			ExitCode: exitCode,
			WorkDir:  req.WorkDir,
		}); jerr != nil {
			b.logger.Warn("journal write failed", "error", jerr)
		}
	}
	return exitCode, nil
}

func (b *DockerBackend) copyLogs(ctx context.Context, containerID string, req TaskSpawnRequest) error {
	logs, err := b.cli.ContainerLogs(ctx, containerID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return fmt.Errorf("read container logs: %w", err)
	}
	defer logs.Close()

	stdout, err := os.Create(req.StdoutPath)
	if err != nil {
		return err
	}
	defer stdout.Close()
	stderr, err := os.Create(req.StderrPath)
	if err != nil {
		return err
	}
	defer stderr.Close()

	// Docker multiplexes both streams over one connection.
	_, err = stdcopy.StdCopy(stdout, stderr, logs)
	return err
}

// Close implements Backend.
func (b *DockerBackend) Close() error { return b.cli.Close() }
