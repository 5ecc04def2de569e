package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/docfields/docfields/internal/batch"
	"github.com/docfields/docfields/internal/config"
	"github.com/docfields/docfields/internal/decode"
	"github.com/docfields/docfields/internal/export"
	"github.com/docfields/docfields/internal/mcp"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// setupLogging configures the process loggers based on the execution mode.
// In stdio mode nothing may touch stdout, the MCP protocol owns it.
func setupLogging(cfg *config.Config) *slog.Logger {
	logOut := io.Writer(os.Stderr)
	if cfg.IsStdioMode() && !cfg.IsDebug() {
		logOut = io.Discard
	}
	log.SetOutput(logOut)

	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// buildService wires the decoder, catalog and writer behind one service.
func buildService(cfg *config.Config, logger *slog.Logger) (*batch.Service, error) {
	var userPatterns map[string][]string
	var includedFields []string
	if cfg.PatternsFile != "" {
		pf, err := config.LoadPatternsFile(cfg.PatternsFile)
		if err != nil {
			return nil, err
		}
		pf.Apply(cfg)
		userPatterns = pf.UserPatterns()
		includedFields = pf.IncludedFields
	}

	paths, err := decode.NewPathValidator(cfg.DocumentDirectory)
	if err != nil {
		return nil, err
	}
	decoder := decode.NewPDFDecoder(cfg.MaxFileSize, paths)
	writer := export.NewWriter(logger)

	return batch.NewService(decoder, userPatterns, cfg.DayFirst, includedFields, writer, batch.Options{
		Workers:      cfg.Workers,
		DocTimeout:   cfg.DocTimeout(),
		MaxBatchSize: cfg.MaxBatchSize,
	}, logger)
}

// collectDocuments expands the positional arguments into PDF paths. Each
// argument may be a literal file, a glob, or a directory. With no arguments
// the configured document directory is scanned.
func collectDocuments(args []string, documentDir string) ([]string, error) {
	if len(args) == 0 {
		args = []string{documentDir}
	}

	seen := make(map[string]bool)
	var paths []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}

	for _, arg := range args {
		if info, err := os.Stat(arg); err == nil && info.IsDir() {
			matches, err := filepath.Glob(filepath.Join(arg, "*.pdf"))
			if err != nil {
				return nil, fmt.Errorf("cannot scan directory %s: %w", arg, err)
			}
			sort.Strings(matches)
			for _, m := range matches {
				add(m)
			}
			continue
		}

		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", arg, err)
		}
		if len(matches) == 0 {
			// Literal path that does not exist yet; let the batch report it
			// as not_found instead of silently dropping it.
			add(arg)
			continue
		}
		sort.Strings(matches)
		for _, m := range matches {
			add(m)
		}
	}
	return paths, nil
}

// printReport writes the human batch summary to stdout.
func printReport(w io.Writer, report *batch.Report, outputPath string, exportErr error) {
	fmt.Fprintf(w, "Processed %d document(s): %d succeeded, %d failed, %d skipped\n",
		report.Total(), len(report.Records), len(report.Failures), len(report.Skipped))

	if len(report.Failures) > 0 {
		ids := make([]string, 0, len(report.Failures))
		for id := range report.Failures {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		fmt.Fprintln(w, "\nFailures:")
		for _, id := range ids {
			fail := report.Failures[id]
			fmt.Fprintf(w, "  %s [%s]: %s\n", id, fail.Kind, fail.Message)
		}
	}
	if len(report.Skipped) > 0 {
		fmt.Fprintln(w, "\nSkipped:")
		for _, id := range report.Skipped {
			fmt.Fprintf(w, "  %s\n", id)
		}
	}

	switch {
	case exportErr != nil:
		fmt.Fprintf(w, "\nExport failed: %v\n", exportErr)
	case outputPath != "":
		fmt.Fprintf(w, "\nExported %d record(s) to %s\n", len(report.Records), outputPath)
	}
}

// runCLIMode executes one batch over the positional arguments and exports
// the results.
func runCLIMode(ctx context.Context, cfg *config.Config, service *batch.Service) int {
	documents, err := collectDocuments(pflag.Args(), cfg.DocumentDirectory)
	if err != nil {
		log.Printf("Failed to resolve documents: %v", err)
		return 1
	}
	if len(documents) == 0 {
		fmt.Printf("No PDF files found in %s\n", cfg.DocumentDirectory)
		return 0
	}

	if err := os.MkdirAll(cfg.OutputDirectory, config.DefaultDirPerm); err != nil {
		log.Printf("Failed to create output directory: %v", err)
		return 1
	}
	format := export.Format(cfg.OutputFormat)
	outputPath := export.DefaultFilename(cfg.OutputDirectory, format, time.Now())

	report, err := service.ProcessBatch(ctx, batch.Request{
		DocumentIDs: documents,
		Password:    cfg.Password,
		OutputPath:  outputPath,
		Format:      format,
	})
	if report == nil {
		log.Printf("Batch failed: %v", err)
		return 1
	}

	printReport(os.Stdout, report, outputPath, err)

	if err != nil || len(report.Failures) > 0 {
		return 1
	}
	return 0
}

// runStdioMode serves MCP tools over stdio until the parent closes stdin.
func runStdioMode(ctx context.Context, cfg *config.Config, service *batch.Service) int {
	server, err := mcp.NewServer(cfg, service)
	if err != nil {
		log.Printf("Failed to create MCP server: %v", err)
		return 1
	}
	if err := server.Run(ctx); err != nil {
		if os.Getenv("DEBUG") != "" {
			log.Printf("Server error: %v", err)
		}
		return 1
	}
	return 0
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" {
			printVersion()
			return
		}
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := setupLogging(cfg)

	if version != "dev" {
		cfg.Version = version
	}
	if cfg.IsDebug() && cfg.IsCLIMode() {
		log.Printf("Starting with configuration: %s", cfg.String())
	}

	service, err := buildService(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize extraction service: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var code int
	if cfg.IsStdioMode() {
		code = runStdioMode(ctx, cfg, service)
	} else {
		code = runCLIMode(ctx, cfg, service)
	}
	os.Exit(code)
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("docfields\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
