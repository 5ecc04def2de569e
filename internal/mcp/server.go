// Package mcp exposes the extraction pipeline as MCP tools over stdio.
package mcp

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/docfields/docfields/internal/batch"
	"github.com/docfields/docfields/internal/config"
	"github.com/docfields/docfields/internal/export"
	"github.com/docfields/docfields/internal/extract"
)

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	service   *batch.Service
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, service *batch.Service) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		config:    cfg,
		service:   service,
		mcpServer: mcpServer,
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	extractFileTool := mcp.NewTool(
		"extract_file",
		mcp.WithDescription("Extract structured fields (name, date of birth, insurance) from one PDF document"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the PDF file"),
		),
		mcp.WithString("password",
			mcp.Description("Password for encrypted PDFs"),
		),
	)
	s.mcpServer.AddTool(extractFileTool, s.handleExtractFile)

	extractBatchTool := mcp.NewTool(
		"extract_batch",
		mcp.WithDescription("Extract structured fields from every PDF in a directory and optionally export them"),
		mcp.WithString("directory",
			mcp.Description("Directory to scan for PDF files (uses default if empty)"),
		),
		mcp.WithString("password",
			mcp.Description("Shared password for encrypted PDFs"),
		),
		mcp.WithString("output_path",
			mcp.Description("Destination file for the exported records (skips export if empty)"),
		),
		mcp.WithString("format",
			mcp.Description("Export format: xlsx or csv (defaults to the configured format)"),
		),
	)
	s.mcpServer.AddTool(extractBatchTool, s.handleExtractBatch)

	listPatternsTool := mcp.NewTool(
		"list_patterns",
		mcp.WithDescription("List the active extraction patterns per field, in priority order"),
	)
	s.mcpServer.AddTool(listPatternsTool, s.handleListPatterns)

	serverInfoTool := mcp.NewTool(
		"server_info",
		mcp.WithDescription("Get server information and usage guidance"),
	)
	s.mcpServer.AddTool(serverInfoTool, s.handleServerInfo)
}

// Handler functions

func (s *Server) handleExtractFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	password := s.config.Password
	if pw, ok := request.GetArguments()["password"].(string); ok && pw != "" {
		password = pw
	}

	record, err := s.service.ProcessFile(ctx, path, password)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(s.formatRecord(record)), nil
}

func (s *Server) handleExtractBatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	directory := s.config.DocumentDirectory
	if dir, ok := args["directory"].(string); ok && dir != "" {
		directory = dir
	}

	password := s.config.Password
	if pw, ok := args["password"].(string); ok && pw != "" {
		password = pw
	}

	format := export.Format(s.config.OutputFormat)
	if f, ok := args["format"].(string); ok && f != "" {
		parsed, err := export.ParseFormat(f)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		format = parsed
	}

	outputPath := ""
	if p, ok := args["output_path"].(string); ok {
		outputPath = p
	}

	paths, err := filepath.Glob(filepath.Join(directory, "*.pdf"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(paths) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No PDF files found in directory: %s", directory)), nil
	}
	sort.Strings(paths)

	report, err := s.service.ProcessBatch(ctx, batch.Request{
		DocumentIDs: paths,
		Password:    password,
		OutputPath:  outputPath,
		Format:      format,
	})
	if err != nil && report == nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := s.formatReport(report)
	if err != nil {
		// Export failed but the extraction work is intact.
		text += fmt.Sprintf("\nExport failed: %v\n", err)
	} else if outputPath != "" {
		text += fmt.Sprintf("\nExported %d record(s) to %s\n", len(report.Records), outputPath)
	}

	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleListPatterns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	catalog := s.service.Catalog()

	text := "Active extraction patterns (priority order):\n"
	for _, field := range catalog.FieldNames() {
		text += fmt.Sprintf("\n%s:\n", field)
		for i, pattern := range catalog.Resolve(field) {
			text += fmt.Sprintf("  %d. %s\n", i, pattern.Expr)
		}
	}

	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleServerInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := fmt.Sprintf("%s v%s - PDF field extraction server\n", s.config.ServerName, s.config.Version)
	text += fmt.Sprintf("Document directory: %s\n", s.config.DocumentDirectory)
	text += fmt.Sprintf("Output directory: %s\n", s.config.OutputDirectory)
	text += fmt.Sprintf("Default format: %s\n", s.config.OutputFormat)
	text += fmt.Sprintf("Max file size: %d MB\n", s.config.MaxFileSize/(1024*1024))
	text += fmt.Sprintf("Per-document timeout: %ds\n", s.config.DocTimeoutSeconds)
	text += fmt.Sprintf("Batch size ceiling: %d\n", s.config.MaxBatchSize)

	text += `
Available tools:

• extract_file       Extract fields from one PDF (path, optional password)
• extract_batch      Extract fields from every PDF in a directory and
                     optionally export to xlsx/csv
• list_patterns      Show the active pattern catalog per field
• server_info        This summary

Workflow:
1. Use extract_file on a sample document to check pattern coverage.
2. Use list_patterns to inspect priorities when a field is missed.
3. Use extract_batch with output_path to produce the spreadsheet.

Notes:
- Documents must live under the configured document directory.
- A failed document never aborts the batch; failures are reported per file.
- Ambiguous numeric dates resolve per the configured day-first policy.`

	return mcp.NewToolResultText(text), nil
}

// Formatting methods

func (s *Server) formatRecord(record extract.Record) string {
	text := fmt.Sprintf("Extracted fields from: %s\n", record.DocumentID())
	text += fmt.Sprintf("Extraction date: %s\n\n", record.ExtractedAt().Format(time.RFC3339))

	for _, field := range s.service.Catalog().FieldNames() {
		res, ok := record.Field(field)
		if !ok {
			continue
		}
		switch {
		case res.Absent():
			text += fmt.Sprintf("%s: (not found)\n", field)
		case !res.Valid:
			text += fmt.Sprintf("%s: (unparseable: %q, pattern %d)\n", field, res.Raw, res.PatternIndex)
		default:
			text += fmt.Sprintf("%s: %s (pattern %d)\n", field, res.Value, res.PatternIndex)
		}
	}
	return text
}

func (s *Server) formatReport(report *batch.Report) string {
	text := fmt.Sprintf("Batch %s: %d document(s) processed\n", report.RunID, report.Total())
	text += fmt.Sprintf("Succeeded: %d, Failed: %d, Skipped: %d\n",
		len(report.Records), len(report.Failures), len(report.Skipped))

	if len(report.Failures) > 0 {
		text += "\nFailures:\n"
		ids := make([]string, 0, len(report.Failures))
		for id := range report.Failures {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fail := report.Failures[id]
			text += fmt.Sprintf("  %s [%s]: %s\n", id, fail.Kind, fail.Message)
		}
	}
	if len(report.Skipped) > 0 {
		text += "\nSkipped:\n"
		for _, id := range report.Skipped {
			text += fmt.Sprintf("  %s\n", id)
		}
	}
	return text
}

// Run starts the MCP server over stdio. The parent process controls the
// lifecycle; logs must not touch stdout here.
func (s *Server) Run(_ context.Context) error {
	if s.config.IsDebug() {
		log.Printf("Starting docfields MCP server in stdio mode")
		log.Printf("Document directory: %s", s.config.DocumentDirectory)
	}

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}
