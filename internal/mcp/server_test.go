package mcp

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docfields/docfields/internal/batch"
	"github.com/docfields/docfields/internal/config"
	"github.com/docfields/docfields/internal/export"
	"github.com/docfields/docfields/internal/extract"
	"github.com/mark3labs/mcp-go/mcp"
)

// stubDecoder serves fixed text for every document.
type stubDecoder struct {
	text string
	err  error
}

func (d *stubDecoder) Decode(_ context.Context, _, _ string) (string, error) {
	return d.text, d.err
}

func testServer(t *testing.T) *Server {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.DocumentDirectory = t.TempDir()
	cfg.OutputDirectory = t.TempDir()

	logger := slog.New(slog.DiscardHandler)
	service, err := batch.NewService(
		&stubDecoder{text: "Name: Jane Public\nDate of Birth: 03/14/1985\n"},
		nil, false, nil, export.NewWriter(logger), batch.Options{}, logger)
	require.NoError(t, err)

	server, err := NewServer(cfg, service)
	require.NoError(t, err)
	return server
}

func TestNewServer(t *testing.T) {
	server := testServer(t)
	assert.NotNil(t, server.mcpServer)

	_, err := NewServer(config.DefaultConfig(), nil)
	assert.Error(t, err, "nil service must be rejected")
}

func TestServer_HandleListPatterns(t *testing.T) {
	server := testServer(t)

	result, err := server.handleListPatterns(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, extract.FieldName)
	assert.Contains(t, text, extract.FieldDateOfBirth)
	assert.Contains(t, text, extract.FieldInsurance)
}

func TestServer_HandleServerInfo(t *testing.T) {
	server := testServer(t)

	result, err := server.handleServerInfo(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "extract_file")
	assert.Contains(t, text, "extract_batch")
	assert.Contains(t, text, "list_patterns")
}

func TestServer_HandleExtractFile_MissingPath(t *testing.T) {
	server := testServer(t)

	result, err := server.handleExtractFile(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err, "tool errors are reported in-band")
	assert.True(t, result.IsError)
}

func TestServer_FormatRecord(t *testing.T) {
	server := testServer(t)

	rec := extract.BuildRecord("intake.pdf", map[string]extract.Result{
		extract.FieldName:        {Raw: "Jane Public", Value: "Jane Public", Found: true, Valid: true},
		extract.FieldDateOfBirth: {Raw: "45/67/1985", Found: true, Valid: false},
		extract.FieldInsurance:   {PatternIndex: -1},
	}, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))

	text := server.formatRecord(rec)
	assert.Contains(t, text, "intake.pdf")
	assert.Contains(t, text, "Jane Public")
	assert.Contains(t, text, "unparseable")
	assert.Contains(t, text, "not found")
}

func TestServer_FormatReport(t *testing.T) {
	server := testServer(t)

	report := &batch.Report{
		Failures: map[string]batch.Failure{
			"locked.pdf": {DocumentID: "locked.pdf", Kind: batch.FailureEncryption, Message: "no valid password"},
		},
		Skipped: []string{"late.pdf"},
	}

	text := server.formatReport(report)
	assert.Contains(t, text, "locked.pdf")
	assert.Contains(t, text, batch.FailureEncryption)
	assert.Contains(t, text, "late.pdf")
}

// resultText digs the text payload out of a tool result.
func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	switch c := result.Content[0].(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	default:
		t.Fatalf("unexpected content type %T", result.Content[0])
		return ""
	}
}
