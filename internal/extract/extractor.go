package extract

import "strings"

// Result holds the outcome of extracting one field from one document.
// Absent (Found == false) means no pattern captured anything; Found with
// Valid == false means a pattern matched but normalization rejected the raw
// value, e.g. an unparseable date.
type Result struct {
	Raw          string `json:"raw,omitempty"`
	Value        string `json:"value,omitempty"`
	Found        bool   `json:"found"`
	Valid        bool   `json:"valid"`
	PatternIndex int    `json:"pattern_index"` // index of the winning pattern, -1 when absent
}

// Absent reports whether no pattern matched for this field.
func (r Result) Absent() bool {
	return !r.Found
}

// Extractor applies a pattern catalog to document text and normalizes the
// raw captures. It is stateless apart from its read-only collaborators and
// safe for concurrent use.
type Extractor struct {
	catalog    *Catalog
	normalizer *Normalizer
}

// NewExtractor creates an extractor over the given catalog and normalizer.
func NewExtractor(catalog *Catalog, normalizer *Normalizer) *Extractor {
	return &Extractor{
		catalog:    catalog,
		normalizer: normalizer,
	}
}

// Extract runs every field's patterns against the full text. Fields are
// independent; for each one the first pattern with a non-empty capture wins
// and only the first match location in the text is considered. A field with
// no matching pattern yields an absent result, never an error.
func (e *Extractor) Extract(text string) map[string]Result {
	results := make(map[string]Result, len(e.catalog.fields))
	for _, field := range e.catalog.fields {
		results[field] = e.extractField(field, text)
	}
	return results
}

func (e *Extractor) extractField(field, text string) Result {
	for i, pattern := range e.catalog.Resolve(field) {
		m := pattern.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		raw := m[1]
		// A matched but empty capture carries no usable signal; fall
		// through to the next pattern.
		if strings.TrimSpace(raw) == "" {
			continue
		}

		value, ok := e.normalizer.Normalize(field, raw)
		return Result{
			Raw:          raw,
			Value:        value,
			Found:        true,
			Valid:        ok,
			PatternIndex: i,
		}
	}
	return Result{PatternIndex: -1}
}

// FieldNames exposes the catalog's field order for downstream consumers.
func (e *Extractor) FieldNames() []string {
	return e.catalog.FieldNames()
}
