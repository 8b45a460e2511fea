// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package router

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Tag is a 64-bit hash of a literal route pattern. Tags are meant to be
// computed once, in package level variables, for patterns known when the
// program is written:
//
//	var healthTag = router.TagOf("/health")
type Tag uint64

// TagOf hashes pattern into its [Tag].
func TagOf(pattern string) Tag {
	return Tag(xxhash.Sum64String(pattern))
}

// String implements the [fmt.Stringer] interface.
func (t Tag) String() string {
	return "0x" + strconv.FormatUint(uint64(t), 16)
}
