// internal/rig/hwconfig.go
package rig

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"rig-service/internal/model"
	"rig-service/pkg/rigtypes"
)

// DefaultSamplingRateHz is the analog rate assumed until the host sets one.
const DefaultSamplingRateHz = 1000

// ConfigManager owns the Flex I/O configuration and the analog sampling
// rate, and keeps the derived channel layout consistent with them. All
// precondition checks happen before any transport write, so a rejected call
// leaves both the device and the derived tables untouched.
//
// Confirmed commands are refused while a module relay is active: relayed
// module bytes sit ahead of the confirmation byte in the receive stream,
// so the confirmation read would consume chatter instead.
type ConfigManager struct {
	client   *Client
	status   *StatusRegistry
	layout   *ChannelLayout
	identity *model.DeviceIdentity
	profile  rigtypes.HardwareProfile
	logger   *zap.Logger

	mutex          sync.RWMutex
	flexTypes      []rigtypes.ChannelType
	samplingRateHz int
}

// NewConfigManager creates the hardware configuration manager
func NewConfigManager(client *Client, status *StatusRegistry, layout *ChannelLayout, identity *model.DeviceIdentity, logger *zap.Logger) *ConfigManager {
	profile := rigtypes.ProfileFor(identity.MachineType)

	flexTypes := make([]rigtypes.ChannelType, profile.FlexChannels)
	for i := range flexTypes {
		flexTypes[i] = rigtypes.ChannelDigitalIn
	}

	return &ConfigManager{
		client:         client,
		status:         status,
		layout:         layout,
		identity:       identity,
		profile:        profile,
		logger:         logger.With(zap.String("component", "hw-config")),
		flexTypes:      flexTypes,
		samplingRateHz: DefaultSamplingRateHz,
	}
}

// SetFlexIO retypes the Flex channels and rebuilds the Flex region of the
// channel tables. The rebuild is atomic from the caller's perspective:
// either the whole region is replaced consistently or, on protocol failure,
// no part of it changes.
func (m *ConfigManager) SetFlexIO(ctx context.Context, types []rigtypes.ChannelType) error {
	if len(types) != m.profile.FlexChannels {
		return fmt.Errorf("got %d types for %d flex channels: %w",
			len(types), m.profile.FlexChannels, ErrLengthMismatch)
	}
	for i, t := range types {
		if !t.Valid() {
			return fmt.Errorf("channel %d type %d: %w", i, t, ErrInvalidChannelType)
		}
	}
	if m.status.InStateMatrix() {
		return fmt.Errorf("flex reconfiguration: %w", ErrDeviceBusy)
	}
	if m.status.RelayActive() {
		return fmt.Errorf("flex reconfiguration: %w", ErrRelayActive)
	}
	// Retyping changes the analog frame width; the streamer locked it in
	// at session start
	if m.status.Live() {
		return fmt.Errorf("flex reconfiguration during live session: %w", ErrDeviceBusy)
	}

	payload := make([]byte, len(types))
	for i, t := range types {
		payload[i] = byte(t)
	}

	if err := m.client.SendAndConfirm(ctx, rigtypes.OpConfigureFlexIO, payload, 1); err != nil {
		return fmt.Errorf("flex reconfiguration: %w", err)
	}

	m.mutex.Lock()
	m.flexTypes = append([]rigtypes.ChannelType(nil), types...)
	m.mutex.Unlock()

	m.layout.ApplyFlexTypes(types)

	m.logger.Info("Flex I/O reconfigured",
		zap.Int("channels", len(types)),
		zap.Int("analog_inputs", m.AnalogInputCount()),
	)
	return nil
}

// SetAnalogSamplingRate sets the Flex analog sampling rate. The rate must
// resolve to a whole cycles-per-sample count between MinCyclesPerSample and
// the device cycle frequency, which bounds the effective rate to
// [1, cycleFrequency/MinCyclesPerSample] Hz.
func (m *ConfigManager) SetAnalogSamplingRate(ctx context.Context, hz int) error {
	if hz < 1 {
		return fmt.Errorf("rate %d Hz: %w", hz, ErrRateOutOfRange)
	}

	cycles := m.profile.CycleFrequencyHz / hz
	if cycles < rigtypes.MinCyclesPerSample || cycles > m.profile.CycleFrequencyHz {
		return fmt.Errorf("rate %d Hz (%d cycles/sample): %w", hz, cycles, ErrRateOutOfRange)
	}
	if m.status.RelayActive() {
		return fmt.Errorf("sampling rate: %w", ErrRelayActive)
	}

	payload := make([]byte, 4)
	binary.LittleEndian.PutUint32(payload, uint32(cycles))

	if err := m.client.SendAndConfirm(ctx, rigtypes.OpSetSamplingRate, payload, 1); err != nil {
		return fmt.Errorf("sampling rate: %w", err)
	}

	m.mutex.Lock()
	m.samplingRateHz = hz
	m.mutex.Unlock()

	m.logger.Info("Analog sampling rate set",
		zap.Int("rate_hz", hz),
		zap.Int("cycles_per_sample", cycles),
	)
	return nil
}

// SetStatusLED switches the enclosure status LED, gated on firmware support
func (m *ConfigManager) SetStatusLED(ctx context.Context, on bool) error {
	if !m.identity.HasStatusLED() {
		return fmt.Errorf("status LED needs firmware %d, device has %d: %w",
			rigtypes.StatusLEDMinFirmware, m.identity.FirmwareVersion, ErrUnsupported)
	}
	if m.status.RelayActive() {
		return fmt.Errorf("status LED: %w", ErrRelayActive)
	}
	if err := m.client.SetStatusLED(ctx, on); err != nil {
		return fmt.Errorf("status LED: %w", err)
	}
	return nil
}

// FlexTypes returns a copy of the current channel type vector
func (m *ConfigManager) FlexTypes() []rigtypes.ChannelType {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return append([]rigtypes.ChannelType(nil), m.flexTypes...)
}

// SamplingRateHz returns the stored analog sampling rate
func (m *ConfigManager) SamplingRateHz() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.samplingRateHz
}

// AnalogInputCount reports how many Flex channels are typed as analog
// inputs, which fixes the analog frame width
func (m *ConfigManager) AnalogInputCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	n := 0
	for _, t := range m.flexTypes {
		if t == rigtypes.ChannelAnalogIn {
			n++
		}
	}
	return n
}
