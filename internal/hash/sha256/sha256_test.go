package sha256

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helloDigest = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

func TestHashFileMatchesHash(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o600))

	h := New()
	fromFile, err := h.HashFile(path)
	require.NoError(t, err)
	fromBytes, err := h.Hash([]byte("hello world"))
	require.NoError(t, err)

	assert.Equal(t, helloDigest, fromFile)
	assert.Equal(t, fromBytes, fromFile)
}

func TestHashFileMissing(t *testing.T) {
	t.Parallel()

	_, err := New().HashFile(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
}
