package backend

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseMemory(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"1024", 1024},
		{"2 GiB", 2 * 1024 * 1024 * 1024},
		{"2GB", 2 * 1000 * 1000 * 1000},
		{"512 MiB", 512 * 1024 * 1024},
		{"1.5 KiB", 1536},
	}
	for _, tc := range cases {
		got, err := parseMemoryString(tc.in)
		if err != nil {
			t.Errorf("%q: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%q: got %d, want %d", tc.in, got, tc.want)
		}
	}
	if _, err := parseMemoryString("lots"); err == nil {
		t.Error("invalid memory must error")
	}
}

func TestBaseConstraints(t *testing.T) {
	constraints, err := baseConstraints(map[string]any{
		"cpu":       int64(4),
		"memory":    "1 GiB",
		"container": "ubuntu:22.04",
	})
	if err != nil {
		t.Fatalf("constraints: %v", err)
	}
	if constraints.CPU != 4 {
		t.Errorf("cpu: got %v", constraints.CPU)
	}
	if constraints.Memory != 1024*1024*1024 {
		t.Errorf("memory: got %v", constraints.Memory)
	}
	if constraints.Container != "ubuntu:22.04" {
		t.Errorf("container: got %q", constraints.Container)
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestJournal_RecordAndList(t *testing.T) {
	j, err := OpenJournal(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { j.Close() })

	ctx := context.Background()
	now := time.Now()
	for i := 1; i <= 2; i++ {
		err := j.Record(ctx, Execution{
			ID:         filepath.Join("run", string(rune('a'+i))),
			Task:       "t",
			Attempt:    i,
			ExitCode:   0,
			StartedAt:  now.Add(time.Duration(i) * time.Second),
			FinishedAt: now.Add(time.Duration(i+1) * time.Second),
		})
		if err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	got, err := j.Executions(ctx, "t")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 executions, got %d", len(got))
	}
	if got[0].Attempt != 1 || got[1].Attempt != 2 {
		t.Errorf("order: %v", got)
	}
}

func TestLocalBackend_RunsCommand(t *testing.T) {
	b := NewLocalBackend(testLogger(), nil, 1)
	workDir := t.TempDir()

	started := make(chan struct{})
	code, err := b.Spawn(context.Background(), TaskSpawnRequest{
		TaskName:   "echo",
		ID:         "echo-1",
		Attempt:    1,
		WorkDir:    workDir,
		Command:    "echo -n hello from $GREETING",
		Env:        map[string]string{"GREETING": "wdl"},
		StdoutPath: filepath.Join(workDir, "stdout"),
		StderrPath: filepath.Join(workDir, "stderr"),
	}, started)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	select {
	case <-started:
	default:
		t.Error("started must be signalled before Spawn returns")
	}
	if code != 0 {
		t.Fatalf("exit code: got %d", code)
	}

	out, err := os.ReadFile(filepath.Join(workDir, "stdout"))
	if err != nil {
		t.Fatalf("read stdout: %v", err)
	}
	if string(out) != "hello from wdl" {
		t.Errorf("stdout: got %q", string(out))
	}
}

func TestLocalBackend_NonzeroExit(t *testing.T) {
	b := NewLocalBackend(testLogger(), nil, 1)
	workDir := t.TempDir()
	started := make(chan struct{})
	code, err := b.Spawn(context.Background(), TaskSpawnRequest{
		TaskName:   "fail",
		ID:         "fail-1",
		Attempt:    1,
		WorkDir:    workDir,
		Command:    "exit 7",
		StdoutPath: filepath.Join(workDir, "stdout"),
		StderrPath: filepath.Join(workDir, "stderr"),
	}, started)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if code != 7 {
		t.Errorf("exit code: got %d, want 7", code)
	}
}
