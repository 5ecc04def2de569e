package decode

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathValidator confines document paths to a configured directory. The
// extraction pipeline can be driven remotely (stdio tool mode), so paths
// from a caller are never trusted as-is.
type PathValidator struct {
	configuredDirectory string
}

// NewPathValidator creates a validator rooted at the given directory. The
// directory does not have to exist yet; validation is skipped until it does.
func NewPathValidator(configuredDirectory string) (*PathValidator, error) {
	if configuredDirectory == "" {
		return nil, fmt.Errorf("configured directory cannot be empty")
	}
	return &PathValidator{configuredDirectory: configuredDirectory}, nil
}

// ValidatePath checks that path resolves to a location inside the
// configured directory, following symlinks on both sides.
func (v *PathValidator) ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	if _, err := os.Stat(v.configuredDirectory); os.IsNotExist(err) {
		return nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	absDir, err := filepath.Abs(v.configuredDirectory)
	if err != nil {
		return fmt.Errorf("failed to resolve configured directory: %w", err)
	}

	realPath := filepath.Clean(absPath)
	if resolved, err := filepath.EvalSymlinks(realPath); err == nil {
		realPath = resolved
	}
	realDir := filepath.Clean(absDir)
	if resolved, err := filepath.EvalSymlinks(realDir); err == nil {
		realDir = resolved
	}

	if realPath != realDir && !strings.HasPrefix(realPath, realDir+string(filepath.Separator)) {
		return fmt.Errorf("path is outside configured directory: %s", path)
	}
	return nil
}

// ConfiguredDirectory returns the directory paths are confined to.
func (v *PathValidator) ConfiguredDirectory() string {
	return v.configuredDirectory
}
