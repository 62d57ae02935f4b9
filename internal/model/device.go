// internal/model/device.go
package model

import (
	"time"

	"rig-service/pkg/rigtypes"
)

// ConnectionType represents how the state machine is reached
type ConnectionType string

const (
	ConnectionTypeSerial   ConnectionType = "SERIAL"
	ConnectionTypeEmulated ConnectionType = "EMULATED"
)

// DeviceIdentity describes the connected state machine. Immutable after the
// handshake; feature availability (status LED, Flex I/O, analog channel) is
// gated on it.
type DeviceIdentity struct {
	MachineType     rigtypes.MachineType `json:"machine_type"`
	FirmwareVersion int                  `json:"firmware_version"`
	Port            string               `json:"port"`
	AnalogPort      string               `json:"analog_port,omitempty"`
	ConnectionType  ConnectionType       `json:"connection_type"`
	ConnectedAt     time.Time            `json:"connected_at"`
}

// HasStatusLED reports whether the firmware accepts the status-LED opcode.
func (d *DeviceIdentity) HasStatusLED() bool {
	return d.FirmwareVersion >= rigtypes.StatusLEDMinFirmware
}

// HasFlexIO reports whether the hardware carries reconfigurable channels.
func (d *DeviceIdentity) HasFlexIO() bool {
	return rigtypes.ProfileFor(d.MachineType).FlexChannels > 0
}

// HasAnalogChannel reports whether a dedicated analog streaming channel
// exists alongside the command channel.
func (d *DeviceIdentity) HasAnalogChannel() bool {
	return d.HasFlexIO()
}

// ModuleInfo describes one UART module slot on the state machine.
type ModuleInfo struct {
	SlotIndex       int    `json:"slot_index"`
	Name            string `json:"name"`
	Connected       bool   `json:"connected"`
	FirmwareVersion uint32 `json:"firmware_version,omitempty"`
	RelayActive     bool   `json:"relay_active"`
}

// RuntimeFlags is a snapshot of the shared runtime status registry, shaped
// for the status endpoint and websocket broadcasts.
type RuntimeFlags struct {
	Live                bool   `json:"live"`
	Pause               bool   `json:"pause"`
	InStateMatrix       bool   `json:"in_state_matrix"`
	BeingUsed           bool   `json:"being_used"`
	NewStateMachineSent bool   `json:"new_state_machine_sent"`
	SessionStartFlag    bool   `json:"session_start_flag"`
	RelayActive         bool   `json:"relay_active"`
	AnalogSampleCount   uint64 `json:"analog_sample_count"`
}
