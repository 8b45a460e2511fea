// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package hearth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState_String(t *testing.T) {
	t.Run("will name every lifecycle state", func(t *testing.T) {
		names := map[State]string{
			Constructed:    "constructed",
			Configured:     "configured",
			Validated:      "validated",
			SocketAcquired: "socket_acquired",
			Serving:        "serving",
			Terminated:     "terminated",
		}
		for state, name := range names {
			if !assert.Equal(t, name, state.String()) {
				return
			}
		}
	})

	t.Run("will return unknown if the state is out of range", func(t *testing.T) {
		if !assert.Equal(t, "unknown", State(42).String()) {
			return
		}
	})
}
