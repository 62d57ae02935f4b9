// pkg/rigtypes/types.go
package rigtypes

// MachineType identifies the state machine hardware generation.
type MachineType int

const (
	MachineHalfPointFive MachineType = iota // r0.5
	MachineZeroSeven                        // r0.7
	MachineTwoX                             // r2.0-2.5
	MachineTwoPlus                          // r2+
)

// MarshalJSON renders the generation by name, not wire code.
func (m MachineType) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// String returns the marketing name of the hardware generation.
func (m MachineType) String() string {
	switch m {
	case MachineHalfPointFive:
		return "r0.5"
	case MachineZeroSeven:
		return "r0.7"
	case MachineTwoX:
		return "r2.x"
	case MachineTwoPlus:
		return "r2+"
	default:
		return "unknown"
	}
}

// ChannelType is the role assigned to a Flex I/O channel.
type ChannelType byte

const (
	ChannelDigitalIn ChannelType = iota
	ChannelDigitalOut
	ChannelAnalogIn
	ChannelAnalogOut
)

// Valid reports whether the value is one of the four wire codes.
func (c ChannelType) Valid() bool {
	return c <= ChannelAnalogOut
}

// IsInput reports whether the channel type feeds events back to the host.
func (c ChannelType) IsInput() bool {
	return c == ChannelDigitalIn || c == ChannelAnalogIn
}

// StatusLEDMinFirmware is the first firmware revision that accepts the
// status-LED opcode.
const StatusLEDMinFirmware = 23

// MinCyclesPerSample bounds the analog sampling rate: the device refuses to
// sample more often than once per 10 machine cycles.
const MinCyclesPerSample = 10

// HardwareProfile carries the fixed constants the hardware-profile loader
// declares for a machine generation. All channel counts are physical and
// immutable; only the Flex region is retyped at runtime.
type HardwareProfile struct {
	MachineType      MachineType
	CycleFrequencyHz int
	BehaviorPorts    int
	BNCChannels      int
	WireInputs       int
	WireOutputs      int
	FlexChannels     int
	ModuleSlots      int
	AnalogResolution int // bits per analog sample
}

// profiles indexed by MachineType.
var profiles = map[MachineType]HardwareProfile{
	MachineHalfPointFive: {
		MachineType:      MachineHalfPointFive,
		CycleFrequencyHz: 5000,
		BehaviorPorts:    8,
		BNCChannels:      2,
		WireInputs:       4,
		WireOutputs:      4,
		FlexChannels:     0,
		ModuleSlots:      0,
	},
	MachineZeroSeven: {
		MachineType:      MachineZeroSeven,
		CycleFrequencyHz: 10000,
		BehaviorPorts:    8,
		BNCChannels:      2,
		WireInputs:       2,
		WireOutputs:      3,
		FlexChannels:     0,
		ModuleSlots:      2,
	},
	MachineTwoX: {
		MachineType:      MachineTwoX,
		CycleFrequencyHz: 10000,
		BehaviorPorts:    4,
		BNCChannels:      2,
		WireInputs:       0,
		WireOutputs:      0,
		FlexChannels:     0,
		ModuleSlots:      3,
	},
	MachineTwoPlus: {
		MachineType:      MachineTwoPlus,
		CycleFrequencyHz: 10000,
		BehaviorPorts:    4,
		BNCChannels:      2,
		WireInputs:       0,
		WireOutputs:      0,
		FlexChannels:     4,
		ModuleSlots:      3,
		AnalogResolution: 12,
	},
}

// ProfileFor returns the hardware profile for a machine generation.
func ProfileFor(m MachineType) HardwareProfile {
	if p, ok := profiles[m]; ok {
		return p
	}
	return profiles[MachineTwoX]
}

// MachineTypeFromWire maps the identity code reported by the firmware query
// to a MachineType.
func MachineTypeFromWire(code uint16) MachineType {
	switch code {
	case 1:
		return MachineHalfPointFive
	case 2:
		return MachineZeroSeven
	case 3:
		return MachineTwoX
	case 4:
		return MachineTwoPlus
	default:
		return MachineTwoX
	}
}

// WireCode returns the identity code the firmware reports for this
// generation, the inverse of MachineTypeFromWire.
func (m MachineType) WireCode() uint16 {
	switch m {
	case MachineHalfPointFive:
		return 1
	case MachineZeroSeven:
		return 2
	case MachineTwoX:
		return 3
	case MachineTwoPlus:
		return 4
	default:
		return 3
	}
}
