// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package persist manages the private on-disk state of the server,
// such as generated certificates.
package persist

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DirPerm is the permission set applied to every directory created here.
const DirPerm fs.FileMode = 0o700

// FilePerm is the permission set applied to every file written here.
const FilePerm fs.FileMode = 0o600

// NotDirError is returned when the path exists but is not a directory.
type NotDirError struct {
	Path string
}

// Error implements the [error] interface.
func (e NotDirError) Error() string {
	return fmt.Sprintf("not a directory: %s", e.Path)
}

// DirError wraps a failure to create or restrict a directory.
type DirError struct {
	Path  string
	Cause error
}

// Error implements the [error] interface.
func (e DirError) Error() string {
	return fmt.Sprintf("failed to prepare directory %s: %s", e.Path, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e DirError) Unwrap() error {
	return e.Cause
}

// EnsureDir creates path and any missing parents, then restricts path
// itself to its owner. An existing directory is tightened to [DirPerm].
func EnsureDir(path string) error {
	info, err := os.Stat(path)
	switch {
	case err == nil && !info.IsDir():
		return NotDirError{Path: path}
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return DirError{Path: path, Cause: err}
	}

	err = os.MkdirAll(path, DirPerm)
	if err != nil {
		return DirError{Path: path, Cause: err}
	}

	err = os.Chmod(path, DirPerm)
	if err != nil {
		return DirError{Path: path, Cause: err}
	}
	return nil
}

// WriteFile atomically replaces dir/name with b, readable only by its owner.
func WriteFile(dir, name string, b []byte) error {
	err := EnsureDir(dir)
	if err != nil {
		return err
	}

	f, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	_, err = f.Write(b)
	if err != nil {
		f.Close()
		return err
	}
	err = f.Chmod(FilePerm)
	if err != nil {
		f.Close()
		return err
	}
	err = f.Close()
	if err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(dir, name))
}
