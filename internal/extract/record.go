package extract

import "time"

// Record is the immutable extraction snapshot for one document: the
// normalized field results plus source metadata. It is independent of the
// source document's lifetime; the decoded text is not retained.
type Record struct {
	documentID  string
	extractedAt time.Time
	fields      map[string]Result
}

// BuildRecord assembles a record from already-computed field results. It is
// pure assembly: absent and invalid fields are represented, never rejected.
// The results map is copied so later mutation by the caller cannot leak in.
func BuildRecord(documentID string, results map[string]Result, extractedAt time.Time) Record {
	fields := make(map[string]Result, len(results))
	for name, res := range results {
		fields[name] = res
	}
	return Record{
		documentID:  documentID,
		extractedAt: extractedAt,
		fields:      fields,
	}
}

// DocumentID returns the originating document identifier.
func (r Record) DocumentID() string {
	return r.documentID
}

// ExtractedAt returns the extraction timestamp.
func (r Record) ExtractedAt() time.Time {
	return r.extractedAt
}

// Field returns the result for one field and whether the field was part of
// the extraction run at all.
func (r Record) Field(name string) (Result, bool) {
	res, ok := r.fields[name]
	return res, ok
}

// Fields returns a copy of the per-field results.
func (r Record) Fields() map[string]Result {
	out := make(map[string]Result, len(r.fields))
	for name, res := range r.fields {
		out[name] = res
	}
	return out
}
