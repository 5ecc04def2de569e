package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRecord(t *testing.T) {
	extractedAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	results := map[string]Result{
		FieldName:        {Raw: "Jane Public", Value: "Jane Public", Found: true, Valid: true},
		FieldDateOfBirth: {PatternIndex: -1},
	}

	rec := BuildRecord("/docs/intake.pdf", results, extractedAt)

	assert.Equal(t, "/docs/intake.pdf", rec.DocumentID())
	assert.Equal(t, extractedAt, rec.ExtractedAt())

	name, ok := rec.Field(FieldName)
	require.True(t, ok)
	assert.Equal(t, "Jane Public", name.Value)

	dob, ok := rec.Field(FieldDateOfBirth)
	require.True(t, ok)
	assert.True(t, dob.Absent())

	_, ok = rec.Field("unknown")
	assert.False(t, ok)
}

func TestBuildRecord_CopiesInput(t *testing.T) {
	results := map[string]Result{
		FieldName: {Value: "Jane Public", Found: true, Valid: true},
	}
	rec := BuildRecord("doc.pdf", results, time.Now())

	// Mutating the source map after assembly must not leak into the record.
	results[FieldName] = Result{Value: "Someone Else", Found: true, Valid: true}

	name, _ := rec.Field(FieldName)
	assert.Equal(t, "Jane Public", name.Value)
}

func TestRecord_FieldsReturnsCopy(t *testing.T) {
	rec := BuildRecord("doc.pdf", map[string]Result{
		FieldName: {Value: "Jane Public", Found: true, Valid: true},
	}, time.Now())

	fields := rec.Fields()
	fields[FieldName] = Result{Value: "tampered"}

	name, _ := rec.Field(FieldName)
	assert.Equal(t, "Jane Public", name.Value)
}
