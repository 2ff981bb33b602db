package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/antigravity-dev/wdlkit/internal/analysis"
	"github.com/antigravity-dev/wdlkit/internal/backend"
	"github.com/antigravity-dev/wdlkit/internal/config"
	"github.com/antigravity-dev/wdlkit/internal/engine"
)

func configureLogger(logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func usage() {
	fmt.Fprintf(os.Stderr, `wdlkit - a WDL toolchain

Usage:
  wdlkit check <file.wdl>            parse and analyze, printing diagnostics
  wdlkit run [flags] <file.wdl>      evaluate the document's workflow or task

Run flags:
  -i <inputs.json>    input values keyed by dotted paths
  -c <config.toml>    runtime configuration
  -t <name>           workflow or task to run (default: the one the inputs
                      file names, else the workflow)
`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "check":
		os.Exit(runCheck(os.Args[2:]))
	case "run":
		os.Exit(runRun(os.Args[2:]))
	default:
		usage()
		os.Exit(2)
	}
}

func runCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		usage()
		return 2
	}
	path := fs.Arg(0)

	analyzer := analysis.NewAnalyzer(analysis.FileResolver{}, configureLogger("error"))
	doc, err := analyzer.Analyze(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	diags := doc.Diagnostics()
	for _, d := range diags {
		fmt.Fprintf(os.Stderr, "%s:%s\n", path, d)
	}
	if doc.HasErrors() {
		return 1
	}
	fmt.Printf("%s: ok (%d task(s), %d struct(s)", path, len(doc.Tasks), len(doc.Structs))
	if doc.Workflow != nil {
		fmt.Printf(", workflow %s", doc.Workflow.Name)
	}
	fmt.Println(")")
	return 0
}

func runRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	inputsPath := fs.String("i", "", "inputs JSON file")
	configPath := fs.String("c", "", "config TOML file")
	target := fs.String("t", "", "workflow or task name to run")
	fs.Parse(args)
	if fs.NArg() != 1 {
		usage()
		return 2
	}
	path := fs.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	logger := configureLogger(cfg.Engine.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("shutting down", "signal", sig)
		cancel()
	}()

	analyzer := analysis.NewAnalyzer(analysis.FileResolver{}, logger)
	doc, err := analyzer.Analyze(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	for _, d := range doc.Diagnostics() {
		fmt.Fprintf(os.Stderr, "%s:%s\n", path, d)
	}
	if doc.HasErrors() {
		return 1
	}

	var journal *backend.Journal
	if cfg.Engine.JournalDB != "" {
		journal, err = backend.OpenJournal(cfg.Engine.JournalDB)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		defer journal.Close()
	}

	var be backend.Backend
	switch strings.ToLower(cfg.Engine.Backend) {
	case "docker":
		be, err = backend.NewDockerBackend(logger, journal, cfg.Docker.DefaultImage, cfg.Engine.MaxConcurrency)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
	default:
		be = backend.NewLocalBackend(logger, journal, cfg.Engine.MaxConcurrency)
	}
	defer be.Close()

	root := *target
	var inputs *engine.Inputs
	if *inputsPath != "" {
		name, parsed, err := engine.ParseInputsFile(doc, *inputsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		if root == "" {
			root = name
		} else if root != name {
			fmt.Fprintf(os.Stderr, "error: inputs address %q but -t selects %q\n", name, root)
			return 1
		}
		inputs = parsed
	}
	if root == "" {
		if doc.Workflow == nil {
			fmt.Fprintln(os.Stderr, "error: the document has no workflow; select a task with -t")
			return 1
		}
		root = doc.Workflow.Name
	}

	evaluator, err := engine.New(engine.Options{
		Backend:        be,
		Logger:         logger,
		WorkDir:        cfg.Engine.WorkDir,
		MaxConcurrency: cfg.Engine.MaxConcurrency,
		MaxRetries:     cfg.Engine.MaxRetries,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	outputs, err := evaluator.Run(ctx, doc, root, inputs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	rendered := make(map[string]any, len(outputs.Members))
	for _, m := range outputs.Members {
		rendered[root+"."+m.Name] = m.Value.ToJSON()
	}
	encoded, err := json.MarshalIndent(rendered, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Println(string(encoded))
	return 0
}
