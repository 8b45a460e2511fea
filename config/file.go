// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"fmt"
	"io/fs"
)

// FileError is returned when a config file can not be opened.
type FileError struct {
	Name  string
	Cause error
}

// Error implements the [builtin.error] interface.
func (e FileError) Error() string {
	return fmt.Sprintf("failed to open config file %s: %s", e.Name, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e FileError) Unwrap() error {
	return e.Cause
}

// File reads a config file which is only opened on the first Read, so a
// missing file is reported by whichever [Source] consumes it.
type File struct {
	fsys fs.FS
	name string

	f   fs.File
	err error
}

// OpenFile returns a [File] for name in fsys.
func OpenFile(fsys fs.FS, name string) *File {
	return &File{fsys: fsys, name: name}
}

// Read implements the [io.Reader] interface.
func (f *File) Read(b []byte) (int, error) {
	if f.f == nil && f.err == nil {
		f.f, f.err = f.fsys.Open(f.name)
		if f.err != nil {
			f.err = FileError{Name: f.name, Cause: f.err}
		}
	}
	if f.err != nil {
		return 0, f.err
	}
	return f.f.Read(b)
}

// Close implements the [io.Closer] interface. Closing a file which was
// never read is a no-op.
func (f *File) Close() error {
	if f.f == nil {
		return nil
	}
	err := f.f.Close()
	f.f = nil
	return err
}
