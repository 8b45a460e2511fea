// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package hearth

// State is the position of an [App] in its lifecycle. An App only ever
// moves forward through the states.
type State int32

const (
	// Constructed is the state of a freshly created App.
	Constructed State = iota

	// Configured means every rule has been registered.
	Configured

	// Validated means the rule table passed validation and is frozen.
	Validated

	// SocketAcquired means a listening socket is held.
	SocketAcquired

	// Serving means the App is accepting connections.
	Serving

	// Terminated means serving has stopped for good.
	Terminated
)

func (s State) String() string {
	switch s {
	case Constructed:
		return "constructed"
	case Configured:
		return "configured"
	case Validated:
		return "validated"
	case SocketAcquired:
		return "socket_acquired"
	case Serving:
		return "serving"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}
