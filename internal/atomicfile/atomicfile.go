// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package atomicfile writes provisioning artifacts so that readers observe
// either the previous content or the complete new one, never a partial file.
package atomicfile

import (
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// WriteFile writes data to a pending file in the same directory as name and
// renames it over name, the directory is synced afterwards so that the rename
// itself is durable. The resulting file carries exactly perm, regardless of
// umask and of any previous file at name.
func WriteFile(name string, data []byte, perm os.FileMode) (err error) {
	t, err := renameio.NewPendingFile(name, renameio.WithStaticPermissions(perm))

	if err != nil {
		return
	}
	defer t.Cleanup()

	if _, err = t.Write(data); err != nil {
		return
	}

	if err = t.CloseAtomicallyReplace(); err != nil {
		return
	}

	return syncDir(filepath.Dir(name))
}

func syncDir(name string) (err error) {
	d, err := os.Open(name)

	if err != nil {
		return
	}
	defer d.Close()

	return d.Sync()
}
