// internal/protocol/emulated_analog.go
package protocol

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"rig-service/internal/model"
)

// EmulatedAnalogTransport stands in for the bulk analog channel. It
// synthesizes sample frames at the configured rate so the streaming
// controller sees the same wire format as with a real device: per sample a
// uint32 LE cycle timestamp followed by one uint16 LE value per analog
// input channel.
type EmulatedAnalogTransport struct {
	mutex           sync.Mutex
	isOpen          bool
	logger          *zap.Logger
	cycleFreq       int
	cyclesPerSample int
	channels        int
	pending         []byte
	lastGen         time.Time
	cycleCount      uint32
	phase           uint16
}

// NewEmulatedAnalogTransport creates an analog-channel emulator
func NewEmulatedAnalogTransport(cycleFreq int, logger *zap.Logger) *EmulatedAnalogTransport {
	return &EmulatedAnalogTransport{
		logger:          logger.With(zap.String("transport", "emulated-analog")),
		cycleFreq:       cycleFreq,
		cyclesPerSample: cycleFreq, // 1 Hz until configured
	}
}

// SetCyclesPerSample adjusts the synthesis rate; called by the command
// emulator when the sampling-rate opcode is applied
func (at *EmulatedAnalogTransport) SetCyclesPerSample(cycles int) {
	at.mutex.Lock()
	defer at.mutex.Unlock()
	at.cyclesPerSample = cycles
}

// SetChannelCount adjusts the frame width; called by the command emulator
// when the Flex region is retyped
func (at *EmulatedAnalogTransport) SetChannelCount(n int) {
	at.mutex.Lock()
	defer at.mutex.Unlock()
	at.channels = n
	at.pending = nil
}

// Open marks the channel as connected
func (at *EmulatedAnalogTransport) Open(ctx context.Context) error {
	at.mutex.Lock()
	defer at.mutex.Unlock()
	at.isOpen = true
	at.lastGen = time.Now()
	return nil
}

// Close marks the channel as disconnected
func (at *EmulatedAnalogTransport) Close() error {
	at.mutex.Lock()
	defer at.mutex.Unlock()
	at.isOpen = false
	at.pending = nil
	return nil
}

// IsOpen returns whether the channel is connected
func (at *EmulatedAnalogTransport) IsOpen() bool {
	at.mutex.Lock()
	defer at.mutex.Unlock()
	return at.isOpen
}

// Write is a no-op: the analog channel is device-to-host only
func (at *EmulatedAnalogTransport) Write(ctx context.Context, data []byte) error {
	return fmt.Errorf("analog channel is read-only")
}

// Read returns synthesized frames accumulated since the previous read
func (at *EmulatedAnalogTransport) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	at.mutex.Lock()
	defer at.mutex.Unlock()

	if !at.isOpen {
		return nil, fmt.Errorf("emulated analog transport not open")
	}

	at.generate()

	n := len(at.pending)
	if n > maxBytes {
		n = maxBytes
	}
	data := make([]byte, n)
	copy(data, at.pending[:n])
	at.pending = at.pending[n:]
	return data, nil
}

// generate appends frames for the wall time elapsed since the last call.
// Caller holds the mutex.
func (at *EmulatedAnalogTransport) generate() {
	if at.channels == 0 || at.cyclesPerSample <= 0 {
		at.lastGen = time.Now()
		return
	}

	now := time.Now()
	elapsed := now.Sub(at.lastGen)
	rate := float64(at.cycleFreq) / float64(at.cyclesPerSample)
	samples := int(elapsed.Seconds() * rate)
	if samples == 0 {
		return
	}
	at.lastGen = now

	frame := make([]byte, 4+2*at.channels)
	for i := 0; i < samples; i++ {
		at.cycleCount += uint32(at.cyclesPerSample)
		binary.LittleEndian.PutUint32(frame[0:4], at.cycleCount)

		// Triangle wave across the 12-bit range, offset per channel
		at.phase = (at.phase + 16) % 8192
		value := at.phase
		if value > 4095 {
			value = 8191 - value
		}
		for ch := 0; ch < at.channels; ch++ {
			binary.LittleEndian.PutUint16(frame[4+2*ch:], (value+uint16(ch*128))%4096)
		}
		at.pending = append(at.pending, frame...)
	}
}

// ReadFull blocks until n bytes have been synthesized or the context expires
func (at *EmulatedAnalogTransport) ReadFull(ctx context.Context, n int) ([]byte, error) {
	var out []byte
	for len(out) < n {
		chunk, err := at.Read(ctx, n-len(out))
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
		if len(out) < n {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Millisecond):
			}
		}
	}
	return out, nil
}

// Drain discards synthesized bytes
func (at *EmulatedAnalogTransport) Drain(ctx context.Context) error {
	at.mutex.Lock()
	defer at.mutex.Unlock()
	at.pending = nil
	at.lastGen = time.Now()
	return nil
}

// Kind reports the transport implementation
func (at *EmulatedAnalogTransport) Kind() model.ConnectionType {
	return model.ConnectionTypeEmulated
}
