// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package socket

import (
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/coreos/go-systemd/v22/activation"
)

// UnknownDescriptorError occurs when a descriptor is requested which was
// not passed by the service manager.
type UnknownDescriptorError struct {
	FD int
}

// Error implements the [builtin.error] interface.
func (e UnknownDescriptorError) Error() string {
	return fmt.Sprintf("descriptor %d was not passed by the service manager", e.FD)
}

// Systemd implements [Activation] using the LISTEN_PID and LISTEN_FDS
// environment protocol of systemd.
type Systemd struct {
	files func() []*os.File

	once      sync.Once
	inherited []*os.File
}

// SystemdActivation returns the [Systemd] activation of the current process.
// Descriptors meant for another process, signalled by a LISTEN_PID other
// than ours, count as none. The environment is left untouched.
func SystemdActivation() *Systemd {
	return &Systemd{
		files: func() []*os.File {
			return activation.Files(false)
		},
	}
}

// passed wraps the inherited descriptors exactly once, since every
// [os.File] closes its descriptor when it is garbage collected.
func (s *Systemd) passed() []*os.File {
	s.once.Do(func() {
		s.inherited = s.files()
	})
	return s.inherited
}

func (s *Systemd) file(fd int) (*os.File, error) {
	files := s.passed()
	i := fd - ListenFDsStart
	if i < 0 || i >= len(files) {
		return nil, UnknownDescriptorError{FD: fd}
	}
	return files[i], nil
}

// ListenFDs implements the [Activation] interface.
func (s *Systemd) ListenFDs() int {
	return len(s.passed())
}

// IsInetStreamListener implements the [Activation] interface.
func (s *Systemd) IsInetStreamListener(fd int) (bool, error) {
	f, err := s.file(fd)
	if err != nil {
		return false, err
	}
	rc, err := f.SyscallConn()
	if err != nil {
		return false, err
	}

	var ok bool
	var checkErr error
	err = rc.Control(func(fd uintptr) {
		ok, checkErr = isInetStreamListener(int(fd))
	})
	if err != nil {
		return false, err
	}
	return ok, checkErr
}

// Listener implements the [Activation] interface. The returned listener
// owns a duplicate of fd; the original descriptor is closed.
func (s *Systemd) Listener(fd int) (net.Listener, error) {
	f, err := s.file(fd)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return net.FileListener(f)
}
