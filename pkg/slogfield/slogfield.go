// Copyright (c) 2023 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package slogfield provides typed [slog.Attr] constructors so that
// the same piece of information is always logged under the same key.
package slogfield

import (
	"log/slog"
	"net"
	"strconv"
	"time"
)

// Any returns an slog.Attr for the supplied value.
func Any(key string, value any) slog.Attr {
	return slog.Any(key, value)
}

// Bool returns an slog.Attr for a bool.
func Bool(key string, value bool) slog.Attr {
	return slog.Bool(key, value)
}

// Duration returns an slog.Attr for a time.Duration.
func Duration(key string, d time.Duration) slog.Attr {
	return slog.Duration(key, d)
}

// Error returns an slog.Attr for a error.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}

// String returns an slog.Attr for a string.
func String(key, value string) slog.Attr {
	return slog.String(key, value)
}

// Strings returns an slog.Attr for a slice of strings.
func Strings(key string, values []string) slog.Attr {
	return slog.Any(key, values)
}

// Int returns an slog.Attr for a int.
func Int(key string, n int) slog.Attr {
	return slog.Int(key, n)
}

// Int64 returns an slog.Attr for a int64.
func Int64(key string, n int64) slog.Attr {
	return slog.Int64(key, n)
}

// Uint64 returns an slog.Attr for a uint64.
func Uint64(key string, n uint64) slog.Attr {
	return slog.Uint64(key, n)
}

// Addr returns an slog.Attr for a network address.
func Addr(addr net.Addr) slog.Attr {
	if addr == nil {
		return slog.String("addr", "")
	}
	return slog.Group("addr",
		slog.String("network", addr.Network()),
		slog.String("address", addr.String()),
	)
}

// FD returns an slog.Attr for an inherited file descriptor number.
func FD(fd int) slog.Attr {
	return slog.Int("fd", fd)
}

// Pattern returns an slog.Attr for a route pattern.
func Pattern(pattern string) slog.Attr {
	return slog.String("route_pattern", pattern)
}

// Tag returns an slog.Attr for a route tag, rendered in hex.
func Tag(tag uint64) slog.Attr {
	return slog.String("route_tag", "0x"+strconv.FormatUint(tag, 16))
}

// Transport returns an slog.Attr naming the transport in use.
func Transport(name string) slog.Attr {
	return slog.String("transport", name)
}

// RequestID returns an slog.Attr for a per request identifier.
func RequestID(id string) slog.Attr {
	return slog.String("request_id", id)
}
