package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/docfields/docfields/internal/extract"
)

// PatternsFile is the structured pattern/output-options document users can
// point --patterns at. Each list is ordered; earlier patterns are tried
// first and all of them take precedence over the built-in defaults.
type PatternsFile struct {
	NamePatterns      []string            `mapstructure:"name_patterns"`
	DOBPatterns       []string            `mapstructure:"dob_patterns"`
	InsurancePatterns []string            `mapstructure:"insurance_patterns"`
	CustomPatterns    map[string][]string `mapstructure:"custom_patterns"`

	// Output options
	OutputDirectory string   `mapstructure:"output_directory"`
	DefaultFormat   string   `mapstructure:"default_format"`
	IncludedFields  []string `mapstructure:"included_fields"`
}

// LoadPatternsFile reads a patterns/options file. A dedicated viper
// instance is used so the process-wide flag/env configuration is untouched.
func LoadPatternsFile(path string) (*PatternsFile, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("cannot read patterns file %s: %w", path, err)
	}

	var pf PatternsFile
	if err := v.Unmarshal(&pf); err != nil {
		return nil, fmt.Errorf("cannot parse patterns file %s: %w", path, err)
	}
	return &pf, nil
}

// UserPatterns maps the file's pattern lists onto catalog field keys,
// including any custom fields.
func (p *PatternsFile) UserPatterns() map[string][]string {
	patterns := make(map[string][]string)
	if len(p.NamePatterns) > 0 {
		patterns[extract.FieldName] = p.NamePatterns
	}
	if len(p.DOBPatterns) > 0 {
		patterns[extract.FieldDateOfBirth] = p.DOBPatterns
	}
	if len(p.InsurancePatterns) > 0 {
		patterns[extract.FieldInsurance] = p.InsurancePatterns
	}
	for field, exprs := range p.CustomPatterns {
		if len(exprs) > 0 {
			patterns[field] = exprs
		}
	}
	return patterns
}

// Apply overlays the output options the file sets onto cfg.
func (p *PatternsFile) Apply(cfg *Config) {
	if p.OutputDirectory != "" {
		cfg.OutputDirectory = p.OutputDirectory
	}
	if p.DefaultFormat != "" {
		cfg.OutputFormat = p.DefaultFormat
	}
}
