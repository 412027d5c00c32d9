package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_FileAndStderr(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "trainer.log")
	var stderr bytes.Buffer

	logger, closer := newWithStderr(Options{File: path, MaxSizeMB: 1, Stderr: true}, &stderr)
	logger.Printf("Engine: zone %d started", 2)
	require.NoError(t, closer.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Engine: zone 2 started")
	assert.Contains(t, stderr.String(), "Engine: zone 2 started")
}

func TestNew_FileOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trainer.log")
	var stderr bytes.Buffer

	logger, closer := newWithStderr(Options{File: path, MaxSizeMB: 1}, &stderr)
	logger.Print("quiet")
	require.NoError(t, closer.Close())

	assert.Empty(t, stderr.String())
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "quiet")
}

func TestNew_WithoutFileUsesStderr(t *testing.T) {
	var stderr bytes.Buffer
	logger, closer := newWithStderr(Options{Stderr: false}, &stderr)
	logger.Print("hello")
	assert.NoError(t, closer.Close())
	assert.Contains(t, stderr.String(), "hello")
}
