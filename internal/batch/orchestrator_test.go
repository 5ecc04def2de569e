package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docfields/docfields/internal/decode"
	"github.com/docfields/docfields/internal/extract"
)

// fakeDecoder serves canned text or errors per document path.
type fakeDecoder struct {
	texts  map[string]string
	errs   map[string]error
	delays map[string]time.Duration
}

func (d *fakeDecoder) Decode(ctx context.Context, path, _ string) (string, error) {
	if delay, ok := d.delays[path]; ok {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err, ok := d.errs[path]; ok {
		return "", err
	}
	return d.texts[path], nil
}

func testExtractor(t *testing.T) *extract.Extractor {
	t.Helper()
	return extract.NewExtractor(extract.DefaultCatalog(), extract.NewNormalizer(false))
}

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func intakeText(name string) string {
	return fmt.Sprintf("Name: %s\nDate of Birth: 03/14/1985\nInsurance: Acme Health - 12345\n", name)
}

func TestOrchestrator_Run_AllSucceed(t *testing.T) {
	decoder := &fakeDecoder{texts: map[string]string{
		"a.pdf": intakeText("Alice Adams"),
		"b.pdf": intakeText("Bob Brown"),
		"c.pdf": intakeText("Carol Clark"),
	}}
	o := NewOrchestrator(decoder, testExtractor(t), Options{Workers: 2}, quietLogger())

	report, err := o.Run(context.Background(), []string{"a.pdf", "b.pdf", "c.pdf"}, "")
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, report.RunID)
	assert.Equal(t, 3, report.Total())
	assert.Empty(t, report.Failures)
	assert.Empty(t, report.Skipped)
	require.Len(t, report.Records, 3)

	name, _ := report.Records[0].Field(extract.FieldName)
	assert.Equal(t, "Alice Adams", name.Value)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))
}

func TestOrchestrator_Run_FailuresDoNotAbortBatch(t *testing.T) {
	decoder := &fakeDecoder{
		texts: map[string]string{
			"a.pdf": intakeText("Alice Adams"),
			"c.pdf": intakeText("Carol Clark"),
		},
		errs: map[string]error{
			"b.pdf": &decode.EncryptionError{Path: "b.pdf"},
		},
	}
	o := NewOrchestrator(decoder, testExtractor(t), Options{Workers: 2}, quietLogger())

	report, err := o.Run(context.Background(), []string{"a.pdf", "b.pdf", "c.pdf"}, "")
	require.NoError(t, err)

	require.Len(t, report.Records, 2)
	assert.Equal(t, "a.pdf", report.Records[0].DocumentID())
	assert.Equal(t, "c.pdf", report.Records[1].DocumentID())

	fail, ok := report.Failures["b.pdf"]
	require.True(t, ok)
	assert.Equal(t, FailureEncryption, fail.Kind)
	assert.Equal(t, "b.pdf", fail.DocumentID)
	assert.Equal(t, 3, report.Total())
}

func TestOrchestrator_Run_PreservesInputOrder(t *testing.T) {
	ids := make([]string, 8)
	texts := make(map[string]string, len(ids))
	delays := make(map[string]time.Duration, len(ids))
	for i := range ids {
		ids[i] = fmt.Sprintf("doc%d.pdf", i)
		texts[ids[i]] = intakeText("Jane Public")
		// Later documents finish first to shake out ordering bugs.
		delays[ids[i]] = time.Duration(len(ids)-i) * time.Millisecond
	}
	decoder := &fakeDecoder{texts: texts, delays: delays}
	o := NewOrchestrator(decoder, testExtractor(t), Options{Workers: 4}, quietLogger())

	report, err := o.Run(context.Background(), ids, "")
	require.NoError(t, err)
	require.Len(t, report.Records, len(ids))
	for i, rec := range report.Records {
		assert.Equal(t, ids[i], rec.DocumentID())
	}
}

func TestOrchestrator_Run_BatchCeiling(t *testing.T) {
	o := NewOrchestrator(&fakeDecoder{}, testExtractor(t), Options{MaxBatchSize: 2}, quietLogger())

	report, err := o.Run(context.Background(), []string{"a.pdf", "b.pdf", "c.pdf"}, "")
	require.Error(t, err)
	assert.Nil(t, report)

	var cfgErr *extract.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestOrchestrator_Run_CancelledContextSkips(t *testing.T) {
	decoder := &fakeDecoder{texts: map[string]string{
		"a.pdf": intakeText("Alice Adams"),
		"b.pdf": intakeText("Bob Brown"),
	}}
	o := NewOrchestrator(decoder, testExtractor(t), Options{Workers: 2}, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := o.Run(ctx, []string{"a.pdf", "b.pdf"}, "")
	require.NoError(t, err)

	assert.Empty(t, report.Records)
	assert.Empty(t, report.Failures)
	assert.Len(t, report.Skipped, 2)
	assert.Equal(t, 2, report.Total())
}

func TestOrchestrator_Run_DocumentTimeout(t *testing.T) {
	decoder := &fakeDecoder{
		texts: map[string]string{
			"fast.pdf": intakeText("Alice Adams"),
			"slow.pdf": intakeText("Bob Brown"),
		},
		delays: map[string]time.Duration{
			"slow.pdf": 500 * time.Millisecond,
		},
	}
	o := NewOrchestrator(decoder, testExtractor(t), Options{
		Workers:    1,
		DocTimeout: 20 * time.Millisecond,
	}, quietLogger())

	report, err := o.Run(context.Background(), []string{"fast.pdf", "slow.pdf"}, "")
	require.NoError(t, err)

	require.Len(t, report.Records, 1)
	assert.Equal(t, "fast.pdf", report.Records[0].DocumentID())

	fail, ok := report.Failures["slow.pdf"]
	require.True(t, ok)
	assert.Equal(t, FailureTimeout, fail.Kind)
}

func TestOrchestrator_Run_EmptyBatch(t *testing.T) {
	o := NewOrchestrator(&fakeDecoder{}, testExtractor(t), Options{}, quietLogger())

	report, err := o.Run(context.Background(), nil, "")
	require.NoError(t, err)
	assert.Equal(t, 0, report.Total())
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "encryption", err: &decode.EncryptionError{Path: "x.pdf"}, want: FailureEncryption},
		{name: "not found", err: &decode.NotFoundError{Path: "x.pdf"}, want: FailureNotFound},
		{name: "corrupt", err: &decode.CorruptError{Path: "x.pdf", Err: errors.New("bad xref")}, want: FailureCorrupt},
		{name: "timeout", err: context.DeadlineExceeded, want: FailureTimeout},
		{name: "wrapped encryption", err: fmt.Errorf("decode: %w", &decode.EncryptionError{Path: "x.pdf"}), want: FailureEncryption},
		{name: "extraction fallback", err: errors.New("boom"), want: FailureExtraction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyError(tt.err))
		})
	}
}

func TestOptions_WorkersDefault(t *testing.T) {
	assert.Equal(t, 3, Options{Workers: 3}.workers())
	assert.GreaterOrEqual(t, Options{}.workers(), 1)
	assert.LessOrEqual(t, Options{}.workers(), 4)
}
