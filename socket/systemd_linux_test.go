// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package socket

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type filer interface {
	File() (*os.File, error)
}

// fileOf returns a duplicate of the descriptor behind v.
func fileOf(t *testing.T, v filer) *os.File {
	t.Helper()

	f, err := v.File()
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func passing(files ...*os.File) *Systemd {
	return &Systemd{files: func() []*os.File { return files }}
}

func TestSystemd_IsInetStreamListener(t *testing.T) {
	t.Run("will return true", func(t *testing.T) {
		t.Run("if the descriptor is a listening tcp4 socket", func(t *testing.T) {
			ls, err := net.Listen("tcp4", "127.0.0.1:0")
			require.NoError(t, err)
			defer ls.Close()

			s := passing(fileOf(t, ls.(*net.TCPListener)))
			ok, err := s.IsInetStreamListener(ListenFDsStart)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.True(t, ok) {
				return
			}
		})

		t.Run("if the descriptor is a listening tcp6 socket", func(t *testing.T) {
			ls, err := net.Listen("tcp6", "[::1]:0")
			if err != nil {
				t.Skip("ipv6 loopback unavailable:", err)
			}
			defer ls.Close()

			s := passing(fileOf(t, ls.(*net.TCPListener)))
			ok, err := s.IsInetStreamListener(ListenFDsStart)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.True(t, ok) {
				return
			}
		})
	})

	t.Run("will return false", func(t *testing.T) {
		t.Run("if the descriptor is a datagram socket", func(t *testing.T) {
			pc, err := net.ListenPacket("udp4", "127.0.0.1:0")
			require.NoError(t, err)
			defer pc.Close()

			s := passing(fileOf(t, pc.(*net.UDPConn)))
			ok, err := s.IsInetStreamListener(ListenFDsStart)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.False(t, ok) {
				return
			}
		})

		t.Run("if the descriptor is a unix stream listener", func(t *testing.T) {
			// t.TempDir embeds the test name, which overflows sun_path
			dir, err := os.MkdirTemp("", "h")
			require.NoError(t, err)
			t.Cleanup(func() { os.RemoveAll(dir) })

			ls, err := net.Listen("unix", filepath.Join(dir, "s"))
			require.NoError(t, err)
			defer ls.Close()

			s := passing(fileOf(t, ls.(*net.UnixListener)))
			ok, err := s.IsInetStreamListener(ListenFDsStart)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.False(t, ok) {
				return
			}
		})

		t.Run("if the descriptor is a tcp socket which is not listening", func(t *testing.T) {
			ls, err := net.Listen("tcp4", "127.0.0.1:0")
			require.NoError(t, err)
			defer ls.Close()

			conn, err := net.Dial("tcp4", ls.Addr().String())
			require.NoError(t, err)
			defer conn.Close()

			s := passing(fileOf(t, conn.(*net.TCPConn)))
			ok, err := s.IsInetStreamListener(ListenFDsStart)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.False(t, ok) {
				return
			}
		})

		t.Run("if the descriptor is a regular file", func(t *testing.T) {
			s := passing(tempFiles(t, 1)...)
			ok, err := s.IsInetStreamListener(ListenFDsStart)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.False(t, ok) {
				return
			}
		})
	})

	t.Run("will return an UnknownDescriptorError", func(t *testing.T) {
		t.Run("if no descriptors were passed", func(t *testing.T) {
			s := passing()

			_, err := s.IsInetStreamListener(ListenFDsStart)

			var uerr UnknownDescriptorError
			if !assert.ErrorAs(t, err, &uerr) {
				return
			}
		})
	})
}

func TestSystemd_Listener(t *testing.T) {
	t.Run("will keep the address family of the adopted socket", func(t *testing.T) {
		testCases := []struct {
			Network string
			Addr    string
		}{
			{Network: "tcp4", Addr: "127.0.0.1:0"},
			{Network: "tcp6", Addr: "[::1]:0"},
		}

		for _, testCase := range testCases {
			t.Run(testCase.Network, func(t *testing.T) {
				ls, err := net.Listen(testCase.Network, testCase.Addr)
				if err != nil {
					t.Skip(testCase.Network, "loopback unavailable:", err)
				}
				defer ls.Close()

				s := passing(fileOf(t, ls.(*net.TCPListener)))
				adopted, err := s.Listener(ListenFDsStart)
				if !assert.Nil(t, err) {
					return
				}
				defer adopted.Close()

				if !assert.Equal(t, ls.Addr().String(), adopted.Addr().String()) {
					return
				}

				done := make(chan error, 1)
				go func() {
					conn, err := adopted.Accept()
					if err == nil {
						conn.Close()
					}
					done <- err
				}()

				conn, err := net.Dial(testCase.Network, adopted.Addr().String())
				require.NoError(t, err)
				conn.Close()

				if !assert.Nil(t, <-done) {
					return
				}
			})
		}
	})

	t.Run("will return an UnknownDescriptorError", func(t *testing.T) {
		t.Run("if the descriptor was not passed", func(t *testing.T) {
			s := passing(tempFiles(t, 1)...)

			_, err := s.Listener(ListenFDsStart + 1)

			var uerr UnknownDescriptorError
			if !assert.ErrorAs(t, err, &uerr) {
				return
			}
			if !assert.Equal(t, ListenFDsStart+1, uerr.FD) {
				return
			}
		})
	})
}

const activatedChildEnv = "HEARTH_TEST_ACTIVATED_CHILD"

// TestActivatedChild reports what SystemdActivation finds when started by
// TestSystemdActivation with listening sockets from fd 3 on.
func TestActivatedChild(t *testing.T) {
	if os.Getenv(activatedChildEnv) != "1" {
		t.Skip("only runs as a child of TestSystemdActivation")
	}
	// systemd fills in LISTEN_PID after forking
	os.Setenv("LISTEN_PID", strconv.Itoa(os.Getpid()))

	s := SystemdActivation()
	n := s.ListenFDs()
	fmt.Printf("fds=%d\n", n)

	for fd := ListenFDsStart; fd < ListenFDsStart+n; fd++ {
		ok, err := s.IsInetStreamListener(fd)
		require.NoError(t, err)

		ls, err := s.Listener(fd)
		require.NoError(t, err)
		fmt.Printf("fd=%d inet=%t addr=%s\n", fd, ok, ls.Addr())
		ls.Close()
	}
}

func TestSystemdActivation(t *testing.T) {
	runChild := func(t *testing.T, fds string, files ...*os.File) string {
		t.Helper()

		cmd := exec.Command(os.Args[0], "-test.run=^TestActivatedChild$", "-test.v")
		cmd.Env = append(os.Environ(), activatedChildEnv+"=1", "LISTEN_FDS="+fds)
		cmd.ExtraFiles = files

		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
		return string(out)
	}

	t.Run("will adopt the socket passed as fd 3", func(t *testing.T) {
		ls, err := net.Listen("tcp4", "127.0.0.1:0")
		require.NoError(t, err)
		defer ls.Close()

		out := runChild(t, "1", fileOf(t, ls.(*net.TCPListener)))

		if !assert.Contains(t, out, "fds=1\n") {
			return
		}
		if !assert.Contains(t, out, fmt.Sprintf("fd=3 inet=true addr=%s\n", ls.Addr())) {
			return
		}
	})

	t.Run("will count every passed socket", func(t *testing.T) {
		first, err := net.Listen("tcp4", "127.0.0.1:0")
		require.NoError(t, err)
		defer first.Close()
		second, err := net.Listen("tcp4", "127.0.0.1:0")
		require.NoError(t, err)
		defer second.Close()

		out := runChild(t, "2", fileOf(t, first.(*net.TCPListener)), fileOf(t, second.(*net.TCPListener)))

		if !assert.Contains(t, out, "fds=2\n") {
			return
		}
		if !assert.Contains(t, out, fmt.Sprintf("fd=4 inet=true addr=%s\n", second.Addr())) {
			return
		}
	})
}
