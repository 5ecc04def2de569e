package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeCLI   = "cli"
	ModeStdio = "stdio"

	// Default values
	DefaultLogLevel          = "info"
	DefaultMaxFileSize       = 50 * 1024 * 1024 // 50MB
	DefaultOutputFormat      = "xlsx"
	DefaultWorkers           = 4
	DefaultDocTimeoutSeconds = 60
	DefaultMaxBatchSize      = 500

	// Directory permissions
	DefaultDirPerm = 0o750
)

// Config holds all configuration for the field extraction tool
type Config struct {
	// Execution mode: "cli" for batch runs, "stdio" for the MCP tool server
	Mode string

	// Document configuration
	DocumentDirectory string
	MaxFileSize       int64 // Maximum PDF file size in bytes
	Password          string

	// Output configuration
	OutputDirectory string
	OutputFormat    string

	// Extraction configuration
	PatternsFile      string
	DayFirst          bool
	Workers           int
	DocTimeoutSeconds int
	MaxBatchSize      int

	// Application configuration
	Version    string
	ServerName string
	LogLevel   string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Mode:              ModeCLI,
		DocumentDirectory: currentDir,
		MaxFileSize:       DefaultMaxFileSize,
		OutputDirectory:   filepath.Join(currentDir, "output"),
		OutputFormat:      DefaultOutputFormat,
		DayFirst:          false, // ambiguous numeric dates resolve month-first
		Workers:           DefaultWorkers,
		DocTimeoutSeconds: DefaultDocTimeoutSeconds,
		MaxBatchSize:      DefaultMaxBatchSize,
		Version:           "1.0.0",
		ServerName:        "docfields",
		LogLevel:          DefaultLogLevel,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	pflag.Parse()

	populateConfigFromViper(cfg)

	// Expand paths if needed
	if cfg.DocumentDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.DocumentDirectory); err == nil {
			cfg.DocumentDirectory = expandedPath
		}
	}
	if cfg.OutputDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.OutputDirectory); err == nil {
			cfg.OutputDirectory = expandedPath
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix("DOCFIELDS")
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("dir", cfg.DocumentDirectory)
	viper.SetDefault("outdir", cfg.OutputDirectory)
	viper.SetDefault("format", cfg.OutputFormat)
	viper.SetDefault("patterns", cfg.PatternsFile)
	viper.SetDefault("password", cfg.Password)
	viper.SetDefault("dayfirst", cfg.DayFirst)
	viper.SetDefault("workers", cfg.Workers)
	viper.SetDefault("doctimeout", cfg.DocTimeoutSeconds)
	viper.SetDefault("maxbatchsize", cfg.MaxBatchSize)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
	viper.SetDefault("loglevel", cfg.LogLevel)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Execution mode: 'cli' for batch extraction, 'stdio' for MCP tool server")
	pflag.String("dir", cfg.DocumentDirectory, "Directory containing PDF documents")
	pflag.String("outdir", cfg.OutputDirectory, "Directory for output files")
	pflag.String("format", cfg.OutputFormat, "Default output format (xlsx or csv)")
	pflag.String("patterns", cfg.PatternsFile, "Path to a patterns/options file")
	pflag.String("password", cfg.Password, "Shared password for encrypted documents")
	pflag.Bool("dayfirst", cfg.DayFirst,
		"Resolve ambiguous numeric dates day-first (e.g. 01/02/2020 = 1 Feb); default is month-first")
	pflag.Int("workers", cfg.Workers, "Number of documents processed concurrently")
	pflag.Int("doctimeout", cfg.DocTimeoutSeconds, "Per-document decode timeout in seconds (0 disables)")
	pflag.Int("maxbatchsize", cfg.MaxBatchSize, "Hard ceiling on documents per batch (0 disables)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF file size in bytes")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, name := range []string{
		"mode", "dir", "outdir", "format", "patterns", "password", "dayfirst",
		"workers", "doctimeout", "maxbatchsize", "maxfilesize", "loglevel",
	} {
		_ = viper.BindPFlag(name, pflag.Lookup(name))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s [flags] [files or globs...]:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\ndocfields - extract structured fields from password-protected PDF documents\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s intake/*.pdf                            # extract to timestamped xlsx\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --password=secret --format=csv *.pdf    # encrypted batch to csv\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --patterns=patterns.yaml records/*.pdf  # custom extraction rules\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=stdio --dir=/data/pdfs           # MCP tool server\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  DOCFIELDS_MODE         Execution mode\n")
		fmt.Fprintf(os.Stderr, "  DOCFIELDS_DIR          Document directory\n")
		fmt.Fprintf(os.Stderr, "  DOCFIELDS_OUTDIR       Output directory\n")
		fmt.Fprintf(os.Stderr, "  DOCFIELDS_FORMAT       Default output format\n")
		fmt.Fprintf(os.Stderr, "  DOCFIELDS_PATTERNS     Patterns/options file\n")
		fmt.Fprintf(os.Stderr, "  DOCFIELDS_PASSWORD     Shared document password\n")
		fmt.Fprintf(os.Stderr, "  DOCFIELDS_DAYFIRST     Day-first date resolution\n")
		fmt.Fprintf(os.Stderr, "  DOCFIELDS_WORKERS      Concurrent documents\n")
		fmt.Fprintf(os.Stderr, "  DOCFIELDS_DOCTIMEOUT   Per-document timeout (seconds)\n")
		fmt.Fprintf(os.Stderr, "  DOCFIELDS_MAXBATCHSIZE Batch size ceiling\n")
		fmt.Fprintf(os.Stderr, "  DOCFIELDS_MAXFILESIZE  Maximum file size\n")
		fmt.Fprintf(os.Stderr, "  DOCFIELDS_LOGLEVEL     Log level\n")
	}
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.DocumentDirectory = viper.GetString("dir")
	cfg.OutputDirectory = viper.GetString("outdir")
	cfg.OutputFormat = viper.GetString("format")
	cfg.PatternsFile = viper.GetString("patterns")
	cfg.Password = viper.GetString("password")
	cfg.DayFirst = viper.GetBool("dayfirst")
	cfg.Workers = viper.GetInt("workers")
	cfg.DocTimeoutSeconds = viper.GetInt("doctimeout")
	cfg.MaxBatchSize = viper.GetInt("maxbatchsize")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
	cfg.LogLevel = viper.GetString("loglevel")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeCLI && c.Mode != ModeStdio {
		return errors.New("mode must be either 'cli' or 'stdio'")
	}

	if c.DocumentDirectory == "" {
		return errors.New("document directory cannot be empty")
	}
	if _, err := os.Stat(c.DocumentDirectory); os.IsNotExist(err) {
		if err := os.MkdirAll(c.DocumentDirectory, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create document directory %s: %w", c.DocumentDirectory, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access document directory %s: %w", c.DocumentDirectory, err)
	}

	if c.OutputDirectory == "" {
		return errors.New("output directory cannot be empty")
	}

	if c.OutputFormat != "xlsx" && c.OutputFormat != "csv" {
		return fmt.Errorf("invalid output format: %s (must be xlsx or csv)", c.OutputFormat)
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}
	if c.Workers < 1 {
		return errors.New("workers must be at least 1")
	}
	if c.DocTimeoutSeconds < 0 {
		return errors.New("per-document timeout cannot be negative")
	}
	if c.MaxBatchSize < 0 {
		return errors.New("maximum batch size cannot be negative")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

// DocTimeout returns the per-document timeout as a duration
func (c *Config) DocTimeout() time.Duration {
	return time.Duration(c.DocTimeoutSeconds) * time.Second
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// IsCLIMode returns true if running as a one-shot batch command
func (c *Config) IsCLIMode() bool {
	return c.Mode == ModeCLI
}

// IsStdioMode returns true if running as an MCP tool server
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Mode: %s, DocumentDirectory: %s, OutputDirectory: %s, Format: %s, DayFirst: %t, "+
			"Workers: %d, DocTimeout: %ds, MaxBatchSize: %d, MaxFileSize: %d, LogLevel: %s}",
		c.Mode, c.DocumentDirectory, c.OutputDirectory, c.OutputFormat, c.DayFirst,
		c.Workers, c.DocTimeoutSeconds, c.MaxBatchSize, c.MaxFileSize, c.LogLevel)
}
