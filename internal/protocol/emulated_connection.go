// internal/protocol/emulated_connection.go
package protocol

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"rig-service/internal/model"
	"rig-service/pkg/rigtypes"
)

// emulatedModule is one simulated UART module slot.
type emulatedModule struct {
	name     string
	firmware uint32
}

// EmulatedTransport stands in for the command channel when no physical
// device is present. Writes are interpreted as firmware commands and the
// bytes a real device would answer with are queued for the next read, so
// the protocol client and everything above it is oblivious to the mode.
type EmulatedTransport struct {
	mutex     sync.Mutex
	isOpen    bool
	logger    *zap.Logger
	profile   rigtypes.HardwareProfile
	firmware  uint16
	rx        []byte
	flexTypes []rigtypes.ChannelType
	relayOn   []bool
	modules   []*emulatedModule
	analog    *EmulatedAnalogTransport
	lastChat  time.Time
}

// NewEmulatedTransport creates a command-channel emulator for the given
// hardware generation. analog may be nil for generations without a
// dedicated analog channel.
func NewEmulatedTransport(machineType rigtypes.MachineType, firmware int, analog *EmulatedAnalogTransport, logger *zap.Logger) *EmulatedTransport {
	profile := rigtypes.ProfileFor(machineType)

	flexTypes := make([]rigtypes.ChannelType, profile.FlexChannels)
	for i := range flexTypes {
		flexTypes[i] = rigtypes.ChannelDigitalIn
	}

	modules := make([]*emulatedModule, profile.ModuleSlots)
	if profile.ModuleSlots > 0 {
		// One populated slot is enough to exercise relay and enumeration
		modules[0] = &emulatedModule{name: "AnalogIn1", firmware: 2}
	}

	et := &EmulatedTransport{
		logger:    logger.With(zap.String("transport", "emulated")),
		profile:   profile,
		firmware:  uint16(firmware),
		flexTypes: flexTypes,
		relayOn:   make([]bool, profile.ModuleSlots),
		modules:   modules,
		analog:    analog,
	}

	if analog != nil {
		analog.SetChannelCount(et.analogInputCount())
	}

	return et
}

// Open marks the emulator as connected
func (et *EmulatedTransport) Open(ctx context.Context) error {
	et.mutex.Lock()
	defer et.mutex.Unlock()
	et.isOpen = true
	et.logger.Info("Emulated transport opened",
		zap.String("machine_type", et.profile.MachineType.String()),
		zap.Uint16("firmware", et.firmware),
	)
	return nil
}

// Close marks the emulator as disconnected
func (et *EmulatedTransport) Close() error {
	et.mutex.Lock()
	defer et.mutex.Unlock()
	et.isOpen = false
	et.rx = nil
	return nil
}

// IsOpen returns whether the emulator is connected
func (et *EmulatedTransport) IsOpen() bool {
	et.mutex.Lock()
	defer et.mutex.Unlock()
	return et.isOpen
}

// Write interprets one command and queues the device's reply
func (et *EmulatedTransport) Write(ctx context.Context, data []byte) error {
	et.mutex.Lock()
	defer et.mutex.Unlock()

	if !et.isOpen {
		return fmt.Errorf("emulated transport not open")
	}
	if len(data) == 0 {
		return nil
	}

	et.interpret(data[0], data[1:])
	return nil
}

// interpret applies one command the way the firmware would. Commands that
// a real device leaves unanswered queue nothing, so the host-side timeout
// path is exercised identically in both modes.
func (et *EmulatedTransport) interpret(opcode byte, payload []byte) {
	switch opcode {
	case rigtypes.OpHandshake:
		et.rx = append(et.rx, rigtypes.AckHandshake)

	case rigtypes.OpFirmwareQuery:
		reply := make([]byte, 4)
		binary.LittleEndian.PutUint16(reply[0:2], et.firmware)
		binary.LittleEndian.PutUint16(reply[2:4], et.profile.MachineType.WireCode())
		et.rx = append(et.rx, reply...)

	case rigtypes.OpEnumerateModules:
		et.rx = append(et.rx, et.moduleRecords()...)

	case rigtypes.OpModuleRelay:
		if len(payload) != 2 {
			return
		}
		idx := int(payload[0])
		if idx < 0 || idx >= len(et.relayOn) {
			return
		}
		on := payload[1] == 1
		et.relayOn[idx] = on
		if on && et.modules[idx] != nil {
			// A just-relayed module announces itself
			et.rx = append(et.rx, []byte(et.modules[idx].name+" ready\r\n")...)
			et.lastChat = time.Now()
		}

	case rigtypes.OpConfigureFlexIO:
		if len(payload) != et.profile.FlexChannels {
			et.rx = append(et.rx, 0)
			return
		}
		types := make([]rigtypes.ChannelType, len(payload))
		for i, b := range payload {
			types[i] = rigtypes.ChannelType(b)
			if !types[i].Valid() {
				et.rx = append(et.rx, 0)
				return
			}
		}
		et.flexTypes = types
		if et.analog != nil {
			et.analog.SetChannelCount(et.analogInputCount())
		}
		et.rx = append(et.rx, rigtypes.AckOK)

	case rigtypes.OpSetSamplingRate:
		if len(payload) != 4 {
			et.rx = append(et.rx, 0)
			return
		}
		cycles := binary.LittleEndian.Uint32(payload)
		if cycles < rigtypes.MinCyclesPerSample || cycles > uint32(et.profile.CycleFrequencyHz) {
			et.rx = append(et.rx, 0)
			return
		}
		if et.analog != nil {
			et.analog.SetCyclesPerSample(int(cycles))
		}
		et.rx = append(et.rx, rigtypes.AckOK)

	case rigtypes.OpStatusLED:
		// Old firmware ignores the opcode entirely
		if int(et.firmware) >= rigtypes.StatusLEDMinFirmware {
			et.rx = append(et.rx, rigtypes.AckOK)
		}

	case rigtypes.OpDisconnect:
		for i := range et.relayOn {
			et.relayOn[i] = false
		}

	default:
		et.logger.Warn("Emulator received unknown opcode", zap.Uint8("opcode", opcode))
	}
}

// moduleRecords builds the enumeration reply: per slot a connected flag,
// then firmware (uint32 LE), name length and name for populated slots.
func (et *EmulatedTransport) moduleRecords() []byte {
	var out []byte
	for _, m := range et.modules {
		if m == nil {
			out = append(out, 0)
			continue
		}
		out = append(out, 1)
		fw := make([]byte, 4)
		binary.LittleEndian.PutUint32(fw, m.firmware)
		out = append(out, fw...)
		out = append(out, byte(len(m.name)))
		out = append(out, []byte(m.name)...)
	}
	return out
}

// analogInputCount counts Flex channels currently typed as analog inputs
func (et *EmulatedTransport) analogInputCount() int {
	n := 0
	for _, t := range et.flexTypes {
		if t == rigtypes.ChannelAnalogIn {
			n++
		}
	}
	return n
}

// Read returns queued reply bytes, plus simulated module chatter while a
// relay is active
func (et *EmulatedTransport) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	et.mutex.Lock()
	defer et.mutex.Unlock()

	if !et.isOpen {
		return nil, fmt.Errorf("emulated transport not open")
	}

	et.generateChatter()

	n := len(et.rx)
	if n > maxBytes {
		n = maxBytes
	}
	data := make([]byte, n)
	copy(data, et.rx[:n])
	et.rx = et.rx[n:]
	return data, nil
}

// generateChatter emits a heartbeat line from the relayed module so the
// poller has something to forward. Caller holds the mutex.
func (et *EmulatedTransport) generateChatter() {
	for idx, on := range et.relayOn {
		if on && et.modules[idx] != nil && time.Since(et.lastChat) >= 50*time.Millisecond {
			et.rx = append(et.rx, []byte(fmt.Sprintf("%s tick\r\n", et.modules[idx].name))...)
			et.lastChat = time.Now()
		}
	}
}

// ReadFull blocks until n bytes are queued or the context expires
func (et *EmulatedTransport) ReadFull(ctx context.Context, n int) ([]byte, error) {
	for {
		et.mutex.Lock()
		if !et.isOpen {
			et.mutex.Unlock()
			return nil, fmt.Errorf("emulated transport not open")
		}
		if len(et.rx) >= n {
			data := make([]byte, n)
			copy(data, et.rx[:n])
			et.rx = et.rx[n:]
			et.mutex.Unlock()
			return data, nil
		}
		et.mutex.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

// Drain discards queued reply bytes
func (et *EmulatedTransport) Drain(ctx context.Context) error {
	et.mutex.Lock()
	defer et.mutex.Unlock()
	et.rx = nil
	return nil
}

// Kind reports the transport implementation
func (et *EmulatedTransport) Kind() model.ConnectionType {
	return model.ConnectionTypeEmulated
}
