// internal/rig/errors.go
package rig

import "errors"

// Protocol-level failures. Both leave the device in an unknown state and
// are never retried automatically; the operator reconnects or power-cycles.
var (
	// ErrUnconfirmed means the device answered a stateful command with
	// something other than the expected confirmation byte.
	ErrUnconfirmed = errors.New("command not confirmed by device")

	// ErrConfirmTimeout means the confirmation byte never arrived.
	ErrConfirmTimeout = errors.New("timed out waiting for device confirmation")
)

// Configuration precondition failures. All are raised before any transport
// write, so a failed call leaves the device untouched.
var (
	// ErrLengthMismatch means the channel-type vector does not cover every
	// Flex channel exactly once.
	ErrLengthMismatch = errors.New("channel type vector length does not match flex channel count")

	// ErrInvalidChannelType means a value outside the four wire codes.
	ErrInvalidChannelType = errors.New("invalid flex channel type")

	// ErrDeviceBusy means the device is executing a trial and cannot be
	// reconfigured.
	ErrDeviceBusy = errors.New("device is running a state matrix")

	// ErrRateOutOfRange means the requested sampling rate cannot be
	// resolved to a legal cycles-per-sample count.
	ErrRateOutOfRange = errors.New("analog sampling rate out of range")

	// ErrUnsupported means the connected firmware predates the feature.
	ErrUnsupported = errors.New("feature not supported by connected firmware")
)

// Relay failures.
var (
	// ErrRelayActive means another module already holds the relay.
	ErrRelayActive = errors.New("a module relay is already active")

	// ErrUnknownModule means no module slot matches the requested name.
	ErrUnknownModule = errors.New("unknown module")
)
