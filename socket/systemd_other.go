// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

//go:build !linux

package socket

import "errors"

var errUnsupported = errors.New("socket activation is only supported on linux")

func isInetStreamListener(int) (bool, error) {
	return false, errUnsupported
}
