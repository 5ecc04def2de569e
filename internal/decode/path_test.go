package decode

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPathValidator(t *testing.T) {
	_, err := NewPathValidator("")
	assert.Error(t, err)

	v, err := NewPathValidator("/data/docs")
	require.NoError(t, err)
	assert.Equal(t, "/data/docs", v.ConfiguredDirectory())
}

func TestPathValidator_ValidatePath(t *testing.T) {
	dir := t.TempDir()
	inside := filepath.Join(dir, "doc.pdf")
	require.NoError(t, os.WriteFile(inside, []byte("%PDF-1.4"), 0o600))

	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o750))
	nested := filepath.Join(sub, "doc.pdf")
	require.NoError(t, os.WriteFile(nested, []byte("%PDF-1.4"), 0o600))

	outside := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(outside, []byte("%PDF-1.4"), 0o600))

	v, err := NewPathValidator(dir)
	require.NoError(t, err)

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{name: "file inside directory", path: inside},
		{name: "file in subdirectory", path: nested},
		{name: "directory itself", path: dir},
		{name: "file outside directory", path: outside, wantErr: true},
		{name: "traversal escape", path: filepath.Join(dir, "..", "escape.pdf"), wantErr: true},
		{name: "empty path", path: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidatePath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPathValidator_SkipsWhenDirectoryMissing(t *testing.T) {
	v, err := NewPathValidator(filepath.Join(t.TempDir(), "not-created-yet"))
	require.NoError(t, err)

	assert.NoError(t, v.ValidatePath("/anywhere/doc.pdf"))
}

func TestPathValidator_SymlinkEscape(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(t.TempDir(), "secret.pdf")
	require.NoError(t, os.WriteFile(target, []byte("%PDF-1.4"), 0o600))

	link := filepath.Join(dir, "link.pdf")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	v, err := NewPathValidator(dir)
	require.NoError(t, err)

	assert.Error(t, v.ValidatePath(link), "symlink escaping the directory must be rejected")
}
