package batch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/docfields/docfields/internal/decode"
	"github.com/docfields/docfields/internal/export"
	"github.com/docfields/docfields/internal/extract"
)

// Service is the batch-extraction entry point for callers: it owns the
// shared read-only catalog, the orchestrator and the writer, and glues a
// run to its optional export.
type Service struct {
	catalog      *extract.Catalog
	orchestrator *Orchestrator
	writer       *export.Writer
	customFields []string
	logger       *slog.Logger
}

// NewService builds the produced surface. userPatterns (possibly nil) are
// merged over the default catalog before anything runs; includedFields
// (possibly nil) restricts which custom fields are exported.
func NewService(
	decoder decode.Decoder,
	userPatterns map[string][]string,
	dayFirst bool,
	includedFields []string,
	writer *export.Writer,
	opts Options,
	logger *slog.Logger,
) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	catalog, err := extract.DefaultCatalog().Merge(userPatterns)
	if err != nil {
		return nil, err
	}
	extractor := extract.NewExtractor(catalog, extract.NewNormalizer(dayFirst))

	return &Service{
		catalog:      catalog,
		orchestrator: NewOrchestrator(decoder, extractor, opts, logger),
		writer:       writer,
		customFields: filterFields(catalog.CustomFieldNames(), includedFields),
		logger:       logger,
	}, nil
}

// filterFields keeps the custom fields named in included, in included's
// order. A nil/empty included list keeps everything in catalog order.
func filterFields(custom, included []string) []string {
	if len(included) == 0 {
		return custom
	}
	known := make(map[string]bool, len(custom))
	for _, f := range custom {
		known[f] = true
	}
	kept := make([]string, 0, len(included))
	for _, f := range included {
		if known[f] {
			kept = append(kept, f)
		}
	}
	return kept
}

// Request describes one batch run.
type Request struct {
	DocumentIDs []string
	// Password is shared across all documents; empty is valid for
	// unencrypted documents.
	Password string
	// OutputPath, when non-empty, exports the succeeded records after the
	// run completes.
	OutputPath string
	Format     export.Format
}

// ProcessBatch runs the batch and, if requested, exports the results. An
// export failure is returned alongside the finished report so the caller
// can retry the export or inspect records without recomputation.
func (s *Service) ProcessBatch(ctx context.Context, req Request) (*Report, error) {
	report, err := s.orchestrator.Run(ctx, req.DocumentIDs, req.Password)
	if err != nil {
		return nil, err
	}
	if req.OutputPath == "" {
		return report, nil
	}
	return report, s.ExportReport(report, req.OutputPath, req.Format)
}

// ProcessFile is the single-document convenience entry point: a batch of
// size one with no export.
func (s *Service) ProcessFile(ctx context.Context, path, password string) (extract.Record, error) {
	report, err := s.orchestrator.Run(ctx, []string{path}, password)
	if err != nil {
		return extract.Record{}, err
	}
	if len(report.Records) == 1 {
		return report.Records[0], nil
	}
	if fail, ok := report.Failures[path]; ok {
		return extract.Record{}, fmt.Errorf("%s: %s", fail.Kind, fail.Message)
	}
	if err := ctx.Err(); err != nil {
		return extract.Record{}, err
	}
	return extract.Record{}, fmt.Errorf("document was not processed: %s", path)
}

// ExportReport serializes a report's succeeded records.
func (s *Service) ExportReport(report *Report, destPath string, format export.Format) error {
	return s.writer.Write(report.Records, s.customFields, destPath, format)
}

// Catalog exposes the merged, read-only pattern catalog.
func (s *Service) Catalog() *extract.Catalog {
	return s.catalog
}

// CustomFields returns the custom field keys included in exports.
func (s *Service) CustomFields() []string {
	return append([]string{}, s.customFields...)
}
