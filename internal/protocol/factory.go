// internal/protocol/factory.go
package protocol

import (
	"fmt"

	"go.uber.org/zap"

	"rig-service/internal/config"
	"rig-service/pkg/rigtypes"
)

// TransportPair bundles the command channel with the optional analog
// channel. Analog is nil when the hardware has no dedicated analog port or
// none was configured.
type TransportPair struct {
	Command Transport
	Analog  Transport
}

// NewSerialPair creates serial transports for a physical device
func NewSerialPair(cfg *config.SerialConfig, logger *zap.Logger) (*TransportPair, error) {
	if cfg.Port == "" {
		return nil, fmt.Errorf("serial.port is not configured")
	}

	pair := &TransportPair{
		Command: NewSerialTransport(cfg, cfg.Port, logger),
	}
	if cfg.AnalogPort != "" {
		pair.Analog = NewSerialTransport(cfg, cfg.AnalogPort, logger)
	}
	return pair, nil
}

// NewEmulatedPair creates linked command and analog emulators. The command
// emulator forwards Flex retyping and sampling-rate changes to the analog
// emulator so both channels stay consistent, the way the firmware keeps its
// two ports consistent.
func NewEmulatedPair(machineType rigtypes.MachineType, firmware int, logger *zap.Logger) *TransportPair {
	profile := rigtypes.ProfileFor(machineType)

	var analog *EmulatedAnalogTransport
	if profile.FlexChannels > 0 {
		analog = NewEmulatedAnalogTransport(profile.CycleFrequencyHz, logger)
	}

	pair := &TransportPair{
		Command: NewEmulatedTransport(machineType, firmware, analog, logger),
	}
	if analog != nil {
		pair.Analog = analog
	}
	return pair
}

// MachineTypeFromName maps the configured machine type name to a
// rigtypes.MachineType, for emulator startup where no firmware query is
// possible.
func MachineTypeFromName(name string) (rigtypes.MachineType, error) {
	switch name {
	case "r0.5":
		return rigtypes.MachineHalfPointFive, nil
	case "r0.7":
		return rigtypes.MachineZeroSeven, nil
	case "r2.x", "r2.0", "r2.5":
		return rigtypes.MachineTwoX, nil
	case "r2+", "r2plus":
		return rigtypes.MachineTwoPlus, nil
	default:
		return 0, fmt.Errorf("unknown machine type %q", name)
	}
}
