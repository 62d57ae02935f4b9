// internal/rig/client.go
package rig

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"rig-service/internal/model"
	"rig-service/internal/protocol"
	"rig-service/pkg/rigtypes"
)

// Client is the command protocol client. Every stateful device operation is
// one write (opcode + fixed payload) followed by a blocking read of exactly
// the expected confirmation bytes; the device and host stay in lock-step or
// the channel is considered desynchronized.
//
// The client's mutex is the single-owner token over the command transport:
// the relay poller and every command issuer go through it, so a poll tick
// can never interleave with a pending confirmation read.
type Client struct {
	transport      protocol.Transport
	logger         *zap.Logger
	confirmTimeout time.Duration
	mutex          sync.Mutex
}

// NewClient creates a protocol client on the command transport
func NewClient(transport protocol.Transport, confirmTimeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		transport:      transport,
		logger:         logger.With(zap.String("component", "protocol-client")),
		confirmTimeout: confirmTimeout,
	}
}

// Send writes one command without expecting a reply
func (c *Client) Send(ctx context.Context, opcode byte, payload []byte) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.write(ctx, opcode, payload)
}

// SendAndConfirm writes one command and blocks for its confirmation bytes.
// A wrong confirmation value fails with ErrUnconfirmed, an absent one with
// ErrConfirmTimeout. Neither is retried here: after a desync a resend could
// apply the command twice.
func (c *Client) SendAndConfirm(ctx context.Context, opcode byte, payload []byte, expectedConfirmBytes int) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err := c.write(ctx, opcode, payload); err != nil {
		return err
	}

	confirm, err := c.readExact(ctx, expectedConfirmBytes)
	if err != nil {
		return err
	}

	for _, b := range confirm {
		if b != rigtypes.AckOK {
			c.logger.Error("Command not confirmed",
				zap.Uint8("opcode", opcode),
				zap.Uint8("confirm", b),
			)
			return fmt.Errorf("opcode 0x%02x: %w", opcode, ErrUnconfirmed)
		}
	}
	return nil
}

// SendAndRead writes one command and blocks for a fixed-size structured
// reply
func (c *Client) SendAndRead(ctx context.Context, opcode byte, payload []byte, replyBytes int) ([]byte, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err := c.write(ctx, opcode, payload); err != nil {
		return nil, err
	}
	return c.readExact(ctx, replyBytes)
}

// ReadAvailable returns whatever bytes the device has pushed, up to
// maxBytes. Used by the relay poller, which holds the transport turn for
// the duration of the call.
func (c *Client) ReadAvailable(ctx context.Context, maxBytes int) ([]byte, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.transport.Read(ctx, maxBytes)
}

// Drain discards anything left in the receive buffer, so stale bytes from
// a prior mode cannot leak into the next command's confirmation read
func (c *Client) Drain(ctx context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.transport.Drain(ctx)
}

// write sends opcode + payload as one buffer. Caller holds the mutex.
func (c *Client) write(ctx context.Context, opcode byte, payload []byte) error {
	buf := make([]byte, 0, 1+len(payload))
	buf = append(buf, opcode)
	buf = append(buf, payload...)

	if err := c.transport.Write(ctx, buf); err != nil {
		return fmt.Errorf("write opcode 0x%02x: %w", opcode, err)
	}
	return nil
}

// readExact blocks for exactly n bytes, bounded by the confirm timeout.
// Caller holds the mutex.
func (c *Client) readExact(ctx context.Context, n int) ([]byte, error) {
	readCtx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	data, err := c.transport.ReadFull(readCtx, n)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrConfirmTimeout
		}
		return nil, err
	}
	return data, nil
}

// Handshake verifies a state machine is listening on the transport
func (c *Client) Handshake(ctx context.Context) error {
	reply, err := c.SendAndRead(ctx, rigtypes.OpHandshake, nil, 1)
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	if reply[0] != rigtypes.AckHandshake {
		return fmt.Errorf("handshake: %w", ErrUnconfirmed)
	}
	return nil
}

// QueryIdentity asks the device for its firmware revision and hardware
// generation
func (c *Client) QueryIdentity(ctx context.Context) (int, rigtypes.MachineType, error) {
	reply, err := c.SendAndRead(ctx, rigtypes.OpFirmwareQuery, nil, 4)
	if err != nil {
		return 0, 0, fmt.Errorf("firmware query: %w", err)
	}
	firmware := int(binary.LittleEndian.Uint16(reply[0:2]))
	machineType := rigtypes.MachineTypeFromWire(binary.LittleEndian.Uint16(reply[2:4]))
	return firmware, machineType, nil
}

// EnumerateModules queries the module table: one record per UART slot
func (c *Client) EnumerateModules(ctx context.Context, slots int) ([]model.ModuleInfo, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err := c.write(ctx, rigtypes.OpEnumerateModules, nil); err != nil {
		return nil, err
	}

	modules := make([]model.ModuleInfo, 0, slots)
	for i := 0; i < slots; i++ {
		connected, err := c.readExact(ctx, 1)
		if err != nil {
			return nil, fmt.Errorf("module record %d: %w", i, err)
		}

		info := model.ModuleInfo{SlotIndex: i}
		if connected[0] == 1 {
			header, err := c.readExact(ctx, 5)
			if err != nil {
				return nil, fmt.Errorf("module record %d: %w", i, err)
			}
			info.Connected = true
			info.FirmwareVersion = binary.LittleEndian.Uint32(header[0:4])

			name, err := c.readExact(ctx, int(header[4]))
			if err != nil {
				return nil, fmt.Errorf("module record %d: %w", i, err)
			}
			info.Name = string(name)
		} else {
			info.Name = fmt.Sprintf("Serial%d", i+1)
		}
		modules = append(modules, info)
	}
	return modules, nil
}

// SetStatusLED switches the status indicator on the enclosure. Only
// firmware revisions carrying the opcode are accepted; the caller gates on
// the device identity.
func (c *Client) SetStatusLED(ctx context.Context, on bool) error {
	state := byte(0)
	if on {
		state = 1
	}
	return c.SendAndConfirm(ctx, rigtypes.OpStatusLED, []byte{state}, 1)
}

// Disconnect tells the device the host is going away. No reply is defined.
func (c *Client) Disconnect(ctx context.Context) error {
	return c.Send(ctx, rigtypes.OpDisconnect, nil)
}
