package extract

import "fmt"

// ConfigurationError reports an unusable extraction setup: a pattern that
// does not compile, a pattern without a capturing group, or a batch request
// that violates a configured hard limit. Configuration errors are raised
// before any document is processed.
type ConfigurationError struct {
	Field   string // offending field, empty for non-pattern configuration
	Index   int    // pattern index within the field's list
	Pattern string
	Reason  string // used when no field/pattern is involved
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid pattern for field %q at index %d (%s): %v",
			e.Field, e.Index, e.Pattern, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("invalid configuration: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// ExtractionError reports an unexpected internal fault while matching or
// normalizing one document's text. It is captured per document and never
// aborts sibling documents.
type ExtractionError struct {
	DocumentID string
	Err        error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %s: %v", e.DocumentID, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
