// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package socket obtains the listening socket the server accepts on.
//
// A socket handed over by the service manager (systemd socket activation)
// is preferred. When none is present, or the inherited descriptor is not a
// listening inet stream socket, a fresh IPv4 socket is bound instead.
package socket

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/z5labs/hearth/pkg/logging"
	"github.com/z5labs/hearth/pkg/slogfield"
)

const (
	// ListenFDsStart is the first descriptor number passed by the service manager.
	ListenFDsStart = 3

	// DefaultAddress is bound when no socket is inherited.
	DefaultAddress = "0.0.0.0"

	// DefaultPort is bound when no socket is inherited.
	DefaultPort uint16 = 18080
)

// Origin records how a listening socket was obtained.
type Origin int

const (
	// Bound means the socket was freshly bound by this process.
	Bound Origin = iota

	// Activated means the socket was inherited from the service manager.
	Activated
)

// String implements the [fmt.Stringer] interface.
func (o Origin) String() string {
	switch o {
	case Bound:
		return "bound"
	case Activated:
		return "activated"
	default:
		return "Origin(" + strconv.Itoa(int(o)) + ")"
	}
}

// Handle is an open listening socket together with its provenance.
type Handle struct {
	net.Listener

	Origin Origin

	// Network is "tcp" for an adopted socket, whose address family is
	// whatever the service manager created, and "tcp4" for a bound one.
	Network string

	// FD is the inherited descriptor number, or -1 for a bound socket.
	FD int
}

// Activation abstracts the service manager socket hand-off.
type Activation interface {
	// ListenFDs reports how many descriptors were passed at launch.
	ListenFDs() int

	// IsInetStreamListener reports whether fd is a listening stream
	// socket of the IPv4 or IPv6 family, bound to any port.
	IsInetStreamListener(fd int) (bool, error)

	// Listener adopts fd as a [net.Listener].
	Listener(fd int) (net.Listener, error)
}

// ListenFunc opens a fresh listening socket.
type ListenFunc func(ctx context.Context, network, address string) (net.Listener, error)

// BindError is returned when the fallback bind fails.
type BindError struct {
	Addr  string
	Cause error
}

// Error implements the [error] interface.
func (e BindError) Error() string {
	return fmt.Sprintf("failed to bind %s: %s", e.Addr, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e BindError) Unwrap() error {
	return e.Cause
}

// ProviderOption configures a [Provider].
type ProviderOption func(*Provider)

// WithActivation overrides the service manager integration.
func WithActivation(a Activation) ProviderOption {
	return func(p *Provider) {
		p.activation = a
	}
}

// Listen overrides how the fallback socket is opened.
func Listen(f ListenFunc) ProviderOption {
	return func(p *Provider) {
		p.listen = f
	}
}

// Address overrides the fallback bind address.
func Address(addr string) ProviderOption {
	return func(p *Provider) {
		p.addr = addr
	}
}

// Port overrides the fallback bind port.
func Port(port uint16) ProviderOption {
	return func(p *Provider) {
		p.port = port
	}
}

// LogHandler sets the handler used for logging socket acquisition.
func LogHandler(h slog.Handler) ProviderOption {
	return func(p *Provider) {
		p.log = slog.New(h)
	}
}

// Provider decides between an inherited socket and a fresh bind.
type Provider struct {
	log        *slog.Logger
	activation Activation
	listen     ListenFunc
	addr       string
	port       uint16
}

// NewProvider returns a [Provider] backed by systemd socket activation and
// falling back to binding [DefaultAddress]:[DefaultPort].
func NewProvider(opts ...ProviderOption) *Provider {
	p := &Provider{
		log:        logging.Discard(),
		activation: SystemdActivation(),
		listen:     listenConfig,
		addr:       DefaultAddress,
		port:       DefaultPort,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func listenConfig(ctx context.Context, network, address string) (net.Listener, error) {
	var lc net.ListenConfig
	return lc.Listen(ctx, network, address)
}

// Acquire returns the socket to accept on. Exactly one inherited descriptor
// that passes the inet stream listener check is adopted. Any other case,
// including a descriptor of the wrong kind, falls back to a bind. Only a
// failed bind is reported as an error.
func (p *Provider) Acquire(ctx context.Context) (*Handle, error) {
	n := p.activation.ListenFDs()
	if n == 1 {
		h, ok := p.adopt(ctx, ListenFDsStart)
		if ok {
			return h, nil
		}
	}
	return p.bind(ctx)
}

func (p *Provider) adopt(ctx context.Context, fd int) (*Handle, bool) {
	p.log.InfoContext(ctx, "attempting systemd socket activation", slogfield.FD(fd))

	ok, err := p.activation.IsInetStreamListener(fd)
	if err != nil || !ok {
		attrs := []any{slogfield.FD(fd)}
		if err != nil {
			attrs = append(attrs, slogfield.Error(err))
		}
		p.log.ErrorContext(ctx, "bad incoming socket, starting webserver on port", attrs...)
		return nil, false
	}

	ls, err := p.activation.Listener(fd)
	if err != nil {
		p.log.ErrorContext(ctx, "failed to adopt incoming socket, starting webserver on port", slogfield.FD(fd), slogfield.Error(err))
		return nil, false
	}

	p.log.InfoContext(ctx, "starting webserver on socket handle", slogfield.FD(fd), slogfield.Addr(ls.Addr()))
	return &Handle{
		Listener: ls,
		Origin:   Activated,
		Network:  "tcp",
		FD:       fd,
	}, true
}

func (p *Provider) bind(ctx context.Context) (*Handle, error) {
	addr := net.JoinHostPort(p.addr, strconv.Itoa(int(p.port)))
	p.log.InfoContext(ctx, "starting webserver on port", slogfield.String("address", addr))

	ls, err := p.listen(ctx, "tcp4", addr)
	if err != nil {
		return nil, BindError{Addr: addr, Cause: err}
	}
	return &Handle{
		Listener: ls,
		Origin:   Bound,
		Network:  "tcp4",
		FD:       -1,
	}, nil
}
