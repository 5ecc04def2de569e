package extract

import (
	"fmt"
	"regexp"
	"sort"
)

// Built-in field keys. Configuration may register additional fields at
// runtime; those flow through extraction, normalization and export keyed by
// their raw string name.
const (
	FieldName        = "name"
	FieldDateOfBirth = "date_of_birth"
	FieldInsurance   = "insurance_info"
)

// builtinFieldOrder fixes the column position of the built-in fields in
// reports and exports. Custom fields follow in first-seen order.
var builtinFieldOrder = []string{FieldName, FieldDateOfBirth, FieldInsurance}

// Pattern is a single compiled extraction rule. Group 1 of the expression
// captures the field value; the rule's position in its field list is its
// priority (earlier rules are tried first).
type Pattern struct {
	Expr string
	re   *regexp.Regexp
}

// defaultPatterns holds the built-in extraction rules per field. Flags such
// as case-insensitivity are embedded in the pattern strings themselves;
// matching is case-sensitive unless a pattern opts in with (?i).
var defaultPatterns = map[string][]string{
	FieldName: {
		`(?i)full name:[ \t]*([A-Za-z][A-Za-z.'\- \t]*?)[ \t]*(?:\n|$)`,
		`(?i)patient name:[ \t]*([A-Za-z][A-Za-z.'\- \t]*?)[ \t]*(?:\n|$)`,
		`(?i)client name:[ \t]*([A-Za-z][A-Za-z.'\- \t]*?)[ \t]*(?:\n|$)`,
		`(?i)name:[ \t]*([A-Za-z][A-Za-z.'\- \t]*?)[ \t]*(?:\n|$)`,
		`(?m)^([A-Z][a-z]+ [A-Z][a-z]+)$`,
	},
	FieldDateOfBirth: {
		`(?i)date of birth:?[ \t]*(\d{1,2}[/.\-]\d{1,2}[/.\-]\d{2,4})`,
		`(?i)dob:?[ \t]*(\d{1,2}[/.\-]\d{1,2}[/.\-]\d{2,4})`,
		`(?i)birth ?date:?[ \t]*(\d{1,2}[/.\-]\d{1,2}[/.\-]\d{2,4})`,
		`(?i)date of birth:?[ \t]*([A-Za-z]+ \d{1,2},? \d{4})`,
		`(\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4})`,
	},
	FieldInsurance: {
		`(?i)insurance company:[ \t]*([A-Za-z0-9][A-Za-z0-9 \t\-]*?)[ \t]*(?:\n|$)`,
		`(?i)insurance:[ \t]*([A-Za-z0-9][A-Za-z0-9 \t\-]*?)[ \t]*(?:\n|$)`,
		`(?i)policy number:[ \t]*([A-Za-z0-9][A-Za-z0-9 \t\-]*?)[ \t]*(?:\n|$)`,
		`(?i)policy:[ \t]*([A-Za-z0-9][A-Za-z0-9 \t\-]*?)[ \t]*(?:\n|$)`,
		`(?i)group number:[ \t]*([A-Za-z0-9][A-Za-z0-9 \t\-]*?)[ \t]*(?:\n|$)`,
	},
}

// defaultCatalog is compiled once at startup and shared read-only. Merge
// never mutates it, so concurrent batches with different overrides cannot
// interfere with each other.
var defaultCatalog = mustCatalog(defaultPatterns)

func mustCatalog(patterns map[string][]string) *Catalog {
	c, err := newCatalog(builtinFieldOrder, patterns)
	if err != nil {
		panic(fmt.Sprintf("invalid built-in pattern table: %v", err))
	}
	return c
}

// Catalog holds the ordered pattern lists for every known field. A Catalog
// is immutable after construction and safe for concurrent use.
type Catalog struct {
	fields   []string
	patterns map[string][]Pattern
}

// DefaultCatalog returns the built-in catalog covering the standard fields.
func DefaultCatalog() *Catalog {
	return defaultCatalog
}

func newCatalog(fieldOrder []string, patterns map[string][]string) (*Catalog, error) {
	c := &Catalog{
		fields:   make([]string, 0, len(fieldOrder)),
		patterns: make(map[string][]Pattern, len(patterns)),
	}
	for _, field := range fieldOrder {
		compiled, err := compileAll(field, patterns[field])
		if err != nil {
			return nil, err
		}
		c.fields = append(c.fields, field)
		c.patterns[field] = compiled
	}
	return c, nil
}

func compileAll(field string, exprs []string) ([]Pattern, error) {
	compiled := make([]Pattern, 0, len(exprs))
	for i, expr := range exprs {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, &ConfigurationError{
				Field:   field,
				Index:   i,
				Pattern: expr,
				Err:     err,
			}
		}
		if re.NumSubexp() < 1 {
			return nil, &ConfigurationError{
				Field:   field,
				Index:   i,
				Pattern: expr,
				Err:     fmt.Errorf("pattern must contain a capturing group"),
			}
		}
		compiled = append(compiled, Pattern{Expr: expr, re: re})
	}
	return compiled, nil
}

// Merge returns a new catalog with the user-supplied patterns prepended to
// the receiver's lists, so user patterns take precedence over defaults.
// Unknown keys introduce custom fields appended after the existing ones. If
// any pattern fails to compile the whole merge is rejected and the receiver
// is returned unchanged semantics-wise (nothing is partially applied).
func (c *Catalog) Merge(user map[string][]string) (*Catalog, error) {
	if len(user) == 0 {
		return c, nil
	}

	// Compile everything up front so a bad pattern rejects the entire call.
	compiled := make(map[string][]Pattern, len(user))
	for _, field := range orderedKeys(c.fields, user) {
		exprs, ok := user[field]
		if !ok {
			continue
		}
		patterns, err := compileAll(field, exprs)
		if err != nil {
			return nil, err
		}
		compiled[field] = patterns
	}

	merged := &Catalog{
		fields:   make([]string, 0, len(c.fields)+len(user)),
		patterns: make(map[string][]Pattern, len(c.patterns)+len(user)),
	}
	for _, field := range c.fields {
		merged.fields = append(merged.fields, field)
		merged.patterns[field] = append(append([]Pattern{}, compiled[field]...), c.patterns[field]...)
	}
	for _, field := range orderedKeys(c.fields, user) {
		if _, exists := merged.patterns[field]; exists {
			continue
		}
		merged.fields = append(merged.fields, field)
		merged.patterns[field] = compiled[field]
	}
	return merged, nil
}

// orderedKeys returns the user map keys in a stable order: known fields in
// catalog order first, then new custom fields sorted by name.
func orderedKeys(known []string, user map[string][]string) []string {
	keys := make([]string, 0, len(user))
	seen := make(map[string]bool, len(user))
	for _, field := range known {
		if _, ok := user[field]; ok {
			keys = append(keys, field)
			seen[field] = true
		}
	}
	rest := make([]string, 0, len(user))
	for field := range user {
		if !seen[field] {
			rest = append(rest, field)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

// Resolve returns the ordered pattern list for a field. The returned slice
// must not be modified.
func (c *Catalog) Resolve(field string) []Pattern {
	return c.patterns[field]
}

// FieldNames returns all field keys in catalog order: built-ins first, then
// custom fields.
func (c *Catalog) FieldNames() []string {
	return append([]string{}, c.fields...)
}

// CustomFieldNames returns the non-built-in field keys in catalog order.
func (c *Catalog) CustomFieldNames() []string {
	builtin := make(map[string]bool, len(builtinFieldOrder))
	for _, f := range builtinFieldOrder {
		builtin[f] = true
	}
	custom := make([]string, 0)
	for _, f := range c.fields {
		if !builtin[f] {
			custom = append(custom, f)
		}
	}
	return custom
}
