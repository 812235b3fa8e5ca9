// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package atomicfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileReplaces(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "rom.db")

	require.NoError(t, os.WriteFile(name, []byte("old"), 0600))
	require.NoError(t, WriteFile(name, []byte("new"), 0600))

	buf, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, "new", string(buf))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")
}

func TestWriteFileMissingDirectory(t *testing.T) {
	name := filepath.Join(t.TempDir(), "missing", "rom.db")

	assert.Error(t, WriteFile(name, []byte("x"), 0600))

	_, err := os.Stat(name)
	assert.True(t, os.IsNotExist(err))
}

func TestWriteFilePermissions(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "keyrom.patch")

	require.NoError(t, os.WriteFile(name, []byte("old"), 0644))
	require.NoError(t, WriteFile(name, []byte("new"), 0600))

	fi, err := os.Stat(name)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), fi.Mode().Perm())

	require.NoError(t, WriteFile(name, []byte("manifest"), 0644))

	fi, err = os.Stat(name)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), fi.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "pending file left behind")
}
