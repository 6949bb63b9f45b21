// Package zdcfile reads and writes .zdc archive files.
//
// A .zdc file is a zip package whose entries are a container's items,
// addressed by their qualified names,
// with the reserved root entries content.json and meta.json
// holding the attribute records
// and an optional license.txt holding free-text license terms.
package zdcfile

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/bobg/flock"
	"github.com/klauspost/compress/zip"
	"github.com/pkg/errors"

	"github.com/bobg/zdc"
)

// Ext is the conventional filename extension for archive files.
const Ext = ".zdc"

// Encode seals a container and produces its archive as bytes.
func Encode(c *zdc.Container) ([]byte, error) {
	entries, err := c.Entries()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			return nil, errors.Wrapf(err, "creating archive entry %s", name)
		}
		if _, err = w.Write(entries[name]); err != nil {
			return nil, errors.Wrapf(err, "writing archive entry %s", name)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(err, "finishing archive")
	}
	return buf.Bytes(), nil
}

// Decode builds an immutable container from archive bytes.
func Decode(b []byte, opts ...zdc.Option) (*zdc.Container, error) {
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, errors.Wrapf(zdc.ErrCorruptArchive, "opening archive: %s", err)
	}

	entries := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, errors.Wrapf(zdc.ErrCorruptArchive, "opening entry %s: %s", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, errors.Wrapf(zdc.ErrCorruptArchive, "reading entry %s: %s", f.Name, err)
		}
		entries[f.Name] = data
	}

	return zdc.FromEntries(entries, opts...)
}

// Write seals a container and stores its archive at path.
// The archive is written to a temporary file in the destination directory
// and renamed into place,
// so a failure mid-write never leaves a partial file as the canonical one.
// An advisory lock on path serializes concurrent writers.
func Write(path string, c *zdc.Container) error {
	b, err := Encode(c)
	if err != nil {
		return err
	}

	var locker flock.Locker
	if err := locker.Lock(path); err != nil {
		return errors.Wrapf(err, "locking %s", path)
	}
	defer locker.Unlock(path)

	tmp, err := os.CreateTemp(filepath.Dir(path), ".zdc-*")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	tmpname := tmp.Name()
	defer os.Remove(tmpname)

	if _, err = tmp.Write(b); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "writing %s", tmpname)
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrapf(err, "closing %s", tmpname)
	}
	return errors.Wrapf(os.Rename(tmpname, path), "renaming %s to %s", tmpname, path)
}

// Read loads an immutable container from the archive at path.
func Read(path string, opts ...zdc.Option) (*zdc.Container, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(zdc.ErrNotFound, path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return Decode(b, opts...)
}
