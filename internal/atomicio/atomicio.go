// Package atomicio provides crash-safe file writes via temp-then-rename.
package atomicio

import (
	"io/fs"
	"os"
	"path/filepath"
)

// WriteFile writes data to filename atomically: it writes to a sibling
// ".tmp" file, fsyncs it, then renames it into place. A reader of filename
// either sees the previous complete content or the new complete content,
// never a partial write.
func WriteFile(filename string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(filename)
	tmp := filename + ".tmp"

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, filename); err != nil {
		os.Remove(tmp)
		return err
	}

	// Best-effort directory fsync so the rename itself is durable; not
	// fatal if the platform/filesystem doesn't support it.
	if d, err := os.Open(dir); err == nil {
		d.Sync()
		d.Close()
	}

	return nil
}
