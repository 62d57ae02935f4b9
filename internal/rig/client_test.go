// internal/rig/client_test.go
package rig

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rig-service/internal/model"
	"rig-service/pkg/rigtypes"
)

// mockTransport is a scripted in-memory transport: tests queue the bytes
// the device would answer with and inspect what the client wrote.
type mockTransport struct {
	mu         sync.Mutex
	rx         []byte
	writes     [][]byte
	drainCount int
	failWrite  error
	open       bool
}

func newMockTransport() *mockTransport {
	return &mockTransport{open: true}
}

func (mt *mockTransport) queue(data ...byte) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.rx = append(mt.rx, data...)
}

func (mt *mockTransport) written() [][]byte {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	out := make([][]byte, len(mt.writes))
	copy(out, mt.writes)
	return out
}

func (mt *mockTransport) Open(ctx context.Context) error { return nil }

func (mt *mockTransport) Close() error {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.open = false
	return nil
}

func (mt *mockTransport) IsOpen() bool {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return mt.open
}

func (mt *mockTransport) Write(ctx context.Context, data []byte) error {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.failWrite != nil {
		return mt.failWrite
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	mt.writes = append(mt.writes, buf)
	return nil
}

func (mt *mockTransport) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	n := len(mt.rx)
	if n > maxBytes {
		n = maxBytes
	}
	data := make([]byte, n)
	copy(data, mt.rx[:n])
	mt.rx = mt.rx[n:]
	return data, nil
}

func (mt *mockTransport) ReadFull(ctx context.Context, n int) ([]byte, error) {
	for {
		mt.mu.Lock()
		if len(mt.rx) >= n {
			data := make([]byte, n)
			copy(data, mt.rx[:n])
			mt.rx = mt.rx[n:]
			mt.mu.Unlock()
			return data, nil
		}
		mt.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (mt *mockTransport) Drain(ctx context.Context) error {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.rx = nil
	mt.drainCount++
	return nil
}

func (mt *mockTransport) Kind() model.ConnectionType {
	return model.ConnectionTypeEmulated
}

func newTestClient(mt *mockTransport) *Client {
	return NewClient(mt, 50*time.Millisecond, zap.NewNop())
}

func TestSendAndConfirm(t *testing.T) {
	mt := newMockTransport()
	client := newTestClient(mt)

	mt.queue(rigtypes.AckOK)
	err := client.SendAndConfirm(context.Background(), rigtypes.OpConfigureFlexIO, []byte{0, 1, 2, 3}, 1)
	require.NoError(t, err)

	writes := mt.written()
	require.Len(t, writes, 1)
	assert.Equal(t, []byte{rigtypes.OpConfigureFlexIO, 0, 1, 2, 3}, writes[0])
}

func TestSendAndConfirmRejected(t *testing.T) {
	mt := newMockTransport()
	client := newTestClient(mt)

	mt.queue(0)
	err := client.SendAndConfirm(context.Background(), rigtypes.OpSetSamplingRate, []byte{10, 0, 0, 0}, 1)
	require.ErrorIs(t, err, ErrUnconfirmed)
}

func TestSendAndConfirmTimeout(t *testing.T) {
	mt := newMockTransport()
	client := newTestClient(mt)

	// Nothing queued: the device never answers
	err := client.SendAndConfirm(context.Background(), rigtypes.OpStatusLED, []byte{1}, 1)
	require.ErrorIs(t, err, ErrConfirmTimeout)
}

func TestHandshake(t *testing.T) {
	mt := newMockTransport()
	client := newTestClient(mt)

	mt.queue(rigtypes.AckHandshake)
	require.NoError(t, client.Handshake(context.Background()))

	writes := mt.written()
	require.Len(t, writes, 1)
	assert.Equal(t, []byte{rigtypes.OpHandshake}, writes[0])
}

func TestHandshakeWrongReply(t *testing.T) {
	mt := newMockTransport()
	client := newTestClient(mt)

	mt.queue('X')
	err := client.Handshake(context.Background())
	require.ErrorIs(t, err, ErrUnconfirmed)
}

func TestQueryIdentity(t *testing.T) {
	mt := newMockTransport()
	client := newTestClient(mt)

	// firmware 23, machine type 4 (r2+), both uint16 LE
	mt.queue(23, 0, 4, 0)
	firmware, machineType, err := client.QueryIdentity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 23, firmware)
	assert.Equal(t, rigtypes.MachineTwoPlus, machineType)
}

func TestEnumerateModules(t *testing.T) {
	mt := newMockTransport()
	client := newTestClient(mt)

	// Slot 0: connected, firmware 2, name "AnalogIn1". Slots 1-2: empty.
	mt.queue(1, 2, 0, 0, 0, 9)
	mt.queue([]byte("AnalogIn1")...)
	mt.queue(0, 0)

	modules, err := client.EnumerateModules(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, modules, 3)

	assert.True(t, modules[0].Connected)
	assert.Equal(t, "AnalogIn1", modules[0].Name)
	assert.Equal(t, uint32(2), modules[0].FirmwareVersion)

	assert.False(t, modules[1].Connected)
	assert.Equal(t, "Serial2", modules[1].Name)
	assert.False(t, modules[2].Connected)
	assert.Equal(t, "Serial3", modules[2].Name)
}

func TestDisconnectWritesOpcodeOnly(t *testing.T) {
	mt := newMockTransport()
	client := newTestClient(mt)

	require.NoError(t, client.Disconnect(context.Background()))

	writes := mt.written()
	require.Len(t, writes, 1)
	assert.Equal(t, []byte{rigtypes.OpDisconnect}, writes[0])
}
