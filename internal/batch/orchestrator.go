// Package batch runs the extraction pipeline across many documents with
// per-document isolation and aggregated reporting.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docfields/docfields/internal/decode"
	"github.com/docfields/docfields/internal/extract"
)

// Failure kind tags attached to per-document failure entries.
const (
	FailureEncryption = "encryption"
	FailureNotFound   = "not_found"
	FailureCorrupt    = "corrupt"
	FailureTimeout    = "timeout"
	FailureExtraction = "extraction"
)

// Failure describes why one document did not produce a record.
type Failure struct {
	DocumentID string `json:"document_id"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
}

// Report aggregates one batch run. Succeeded records appear in input order
// regardless of internal processing order. Every input document identifier
// lands in exactly one of Records, Failures or Skipped. Once returned the
// report is read-only.
type Report struct {
	RunID      uuid.UUID          `json:"run_id"`
	Records    []extract.Record   `json:"-"`
	Failures   map[string]Failure `json:"failures"`
	Skipped    []string           `json:"skipped"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
}

// Total returns the number of documents accounted for across all outcomes.
func (r *Report) Total() int {
	return len(r.Records) + len(r.Failures) + len(r.Skipped)
}

// Options bounds a batch run.
type Options struct {
	// Workers is the size of the worker pool. Zero selects a default;
	// one processes documents sequentially.
	Workers int
	// DocTimeout bounds the decode call per document. Zero disables it.
	DocTimeout time.Duration
	// MaxBatchSize is a hard ceiling on the number of documents per run.
	// Exceeding it rejects the whole call before any document is touched.
	// Zero disables the ceiling.
	MaxBatchSize int
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	n := runtime.NumCPU()
	if n > 4 {
		n = 4
	}
	return n
}

// Orchestrator applies the extraction pipeline across document batches. The
// catalog behind the extractor is read-only, so one orchestrator is safe
// for concurrent workers.
type Orchestrator struct {
	decoder   decode.Decoder
	extractor *extract.Extractor
	opts      Options
	logger    *slog.Logger
}

// NewOrchestrator wires a decoder and an extractor into a batch runner.
func NewOrchestrator(decoder decode.Decoder, extractor *extract.Extractor, opts Options, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		decoder:   decoder,
		extractor: extractor,
		opts:      opts,
		logger:    logger,
	}
}

// outcome is the per-document result slot. Exactly one of rec/fail/skipped
// is meaningful once settled is true.
type outcome struct {
	settled bool
	skipped bool
	rec     extract.Record
	fail    *Failure
}

// Run processes the documents and aggregates their outcomes. Per-document
// failures never abort the batch. Cancelling ctx stops launching new
// documents; work finished so far is kept and the rest is reported as
// skipped.
func (o *Orchestrator) Run(ctx context.Context, documentIDs []string, password string) (*Report, error) {
	if o.opts.MaxBatchSize > 0 && len(documentIDs) > o.opts.MaxBatchSize {
		return nil, &extract.ConfigurationError{
			Reason: fmt.Sprintf("batch size %d exceeds configured maximum %d",
				len(documentIDs), o.opts.MaxBatchSize),
		}
	}

	report := &Report{
		RunID:     uuid.New(),
		Failures:  make(map[string]Failure),
		StartedAt: time.Now().UTC(),
	}
	o.logger.Info("batch.start", "run_id", report.RunID.String(), "documents", len(documentIDs))

	outcomes := make([]outcome, len(documentIDs))
	jobs := make(chan int)
	var wg sync.WaitGroup

	for i := 0; i < o.opts.workers(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if ctx.Err() != nil {
					outcomes[idx] = outcome{settled: true, skipped: true}
					continue
				}
				outcomes[idx] = o.processDocument(ctx, documentIDs[idx], password)
			}
		}()
	}

feed:
	for i := range documentIDs {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	for i, out := range outcomes {
		id := documentIDs[i]
		switch {
		case !out.settled || out.skipped:
			report.Skipped = append(report.Skipped, id)
		case out.fail != nil:
			report.Failures[id] = *out.fail
		default:
			report.Records = append(report.Records, out.rec)
		}
	}
	report.FinishedAt = time.Now().UTC()

	o.logger.Info("batch.done",
		"run_id", report.RunID.String(),
		"succeeded", len(report.Records),
		"failed", len(report.Failures),
		"skipped", len(report.Skipped),
		"elapsed_ms", report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
	)
	return report, nil
}

// processDocument runs the pending → decoding → extracting pipeline for one
// document. The decode call is the only suspension point, so the
// per-document timeout wraps it rather than trusting the collaborator.
func (o *Orchestrator) processDocument(ctx context.Context, id, password string) outcome {
	docCtx := ctx
	if o.opts.DocTimeout > 0 {
		var cancel context.CancelFunc
		docCtx, cancel = context.WithTimeout(ctx, o.opts.DocTimeout)
		defer cancel()
	}

	type decoded struct {
		text string
		err  error
	}
	ch := make(chan decoded, 1)
	go func() {
		text, err := o.decoder.Decode(docCtx, id, password)
		ch <- decoded{text: text, err: err}
	}()

	var text string
	select {
	case res := <-ch:
		if res.err != nil {
			return o.failureOutcome(id, res.err)
		}
		text = res.text
	case <-docCtx.Done():
		if ctx.Err() != nil {
			// Whole batch cancelled, not this document's fault.
			return outcome{settled: true, skipped: true}
		}
		return o.failureOutcome(id, context.DeadlineExceeded)
	}

	fields, err := o.extractFields(id, text)
	if err != nil {
		return o.failureOutcome(id, err)
	}

	rec := extract.BuildRecord(id, fields, time.Now().UTC())
	o.logger.Info("batch.doc.ok", "document", id)
	return outcome{settled: true, rec: rec}
}

// extractFields isolates unexpected faults in matching/normalization so a
// single pathological document cannot take down the batch.
func (o *Orchestrator) extractFields(id, text string) (fields map[string]extract.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &extract.ExtractionError{DocumentID: id, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return o.extractor.Extract(text), nil
}

func (o *Orchestrator) failureOutcome(id string, err error) outcome {
	fail := Failure{
		DocumentID: id,
		Kind:       classifyError(err),
		Message:    err.Error(),
	}
	o.logger.Warn("batch.doc.failed", "document", id, "kind", fail.Kind, "err", err)
	return outcome{settled: true, fail: &fail}
}

// classifyError maps pipeline errors to failure kind tags.
func classifyError(err error) string {
	var encErr *decode.EncryptionError
	var nfErr *decode.NotFoundError
	var corErr *decode.CorruptError
	switch {
	case errors.As(err, &encErr):
		return FailureEncryption
	case errors.As(err, &nfErr):
		return FailureNotFound
	case errors.As(err, &corErr):
		return FailureCorrupt
	case errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	default:
		return FailureExtraction
	}
}
