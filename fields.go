package beacon

import "github.com/zoobzio/capitan"

// Field keys for Coordinator events.
var (
	// KeyState is the current state of the Coordinator.
	KeyState = capitan.NewStringKey("state")

	// KeyOldState is the previous state before a transition.
	KeyOldState = capitan.NewStringKey("old_state")

	// KeyNewState is the new state after a transition.
	KeyNewState = capitan.NewStringKey("new_state")

	// KeyError is the error message when an operation fails.
	KeyError = capitan.NewStringKey("error")

	// KeyPeer is the identity of the requesting peer.
	KeyPeer = capitan.NewStringKey("peer")

	// KeyCode is the request code sent by the peer.
	KeyCode = capitan.NewStringKey("code")

	// KeyReason explains why a full snapshot was sent.
	KeyReason = capitan.NewStringKey("reason")

	// KeySnapshot is the kind of snapshot sent ("full" or "unchanged").
	KeySnapshot = capitan.NewStringKey("snapshot")

	// KeyGeneration is the build generation of a snapshot.
	KeyGeneration = capitan.NewIntKey("generation")

	// KeyBytes is the payload size of a snapshot.
	KeyBytes = capitan.NewIntKey("bytes")

	// KeyAttempt is the send attempt number.
	KeyAttempt = capitan.NewIntKey("attempt")

	// KeyDuration is how long an operation took.
	KeyDuration = capitan.NewDurationKey("duration")

	// KeyModule is the experiment module name.
	KeyModule = capitan.NewStringKey("module")

	// KeyMode is the scheduling mode.
	KeyMode = capitan.NewStringKey("mode")

	// KeyUpdates reports whether feedback updates are enabled ("enabled" or "static").
	KeyUpdates = capitan.NewStringKey("updates")

	// KeyContentType is the MIME type of snapshot payloads.
	KeyContentType = capitan.NewStringKey("content_type")

	// KeyOp is the operation that faulted.
	KeyOp = capitan.NewStringKey("op")
)
