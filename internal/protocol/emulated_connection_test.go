// internal/protocol/emulated_connection_test.go
package protocol

import (
	"context"
	"encoding/binary"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rig-service/pkg/rigtypes"
)

func openEmulator(t *testing.T, firmware int) (*EmulatedTransport, *EmulatedAnalogTransport) {
	t.Helper()

	profile := rigtypes.ProfileFor(rigtypes.MachineTwoPlus)
	analog := NewEmulatedAnalogTransport(profile.CycleFrequencyHz, zap.NewNop())
	et := NewEmulatedTransport(rigtypes.MachineTwoPlus, firmware, analog, zap.NewNop())

	require.NoError(t, et.Open(context.Background()))
	require.NoError(t, analog.Open(context.Background()))
	t.Cleanup(func() {
		et.Close()
		analog.Close()
	})
	return et, analog
}

// readReply pulls exactly n reply bytes with a short deadline
func readReply(t *testing.T, et *EmulatedTransport, n int) []byte {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	data, err := et.ReadFull(ctx, n)
	require.NoError(t, err)
	return data
}

func TestEmulatorHandshake(t *testing.T) {
	et, _ := openEmulator(t, 23)

	require.NoError(t, et.Write(context.Background(), []byte{rigtypes.OpHandshake}))
	assert.Equal(t, []byte{rigtypes.AckHandshake}, readReply(t, et, 1))
}

func TestEmulatorFirmwareQuery(t *testing.T) {
	et, _ := openEmulator(t, 23)

	require.NoError(t, et.Write(context.Background(), []byte{rigtypes.OpFirmwareQuery}))
	reply := readReply(t, et, 4)

	assert.Equal(t, uint16(23), binary.LittleEndian.Uint16(reply[0:2]))
	assert.Equal(t, rigtypes.MachineTwoPlus.WireCode(), binary.LittleEndian.Uint16(reply[2:4]))
}

func TestEmulatorFlexConfig(t *testing.T) {
	et, analog := openEmulator(t, 23)

	require.NoError(t, et.Write(context.Background(), []byte{rigtypes.OpConfigureFlexIO, 2, 2, 0, 1}))
	assert.Equal(t, []byte{rigtypes.AckOK}, readReply(t, et, 1))

	// Retyping propagates to the analog channel's frame width
	analog.mutex.Lock()
	assert.Equal(t, 2, analog.channels)
	analog.mutex.Unlock()
}

func TestEmulatorFlexConfigRejectsBadLength(t *testing.T) {
	et, _ := openEmulator(t, 23)

	require.NoError(t, et.Write(context.Background(), []byte{rigtypes.OpConfigureFlexIO, 0, 0}))
	assert.Equal(t, []byte{0}, readReply(t, et, 1))
}

func TestEmulatorFlexConfigRejectsInvalidType(t *testing.T) {
	et, _ := openEmulator(t, 23)

	require.NoError(t, et.Write(context.Background(), []byte{rigtypes.OpConfigureFlexIO, 0, 0, 0, 9}))
	assert.Equal(t, []byte{0}, readReply(t, et, 1))
}

func TestEmulatorSamplingRate(t *testing.T) {
	et, analog := openEmulator(t, 23)

	cmd := make([]byte, 5)
	cmd[0] = rigtypes.OpSetSamplingRate
	binary.LittleEndian.PutUint32(cmd[1:], 10)
	require.NoError(t, et.Write(context.Background(), cmd))
	assert.Equal(t, []byte{rigtypes.AckOK}, readReply(t, et, 1))

	analog.mutex.Lock()
	assert.Equal(t, 10, analog.cyclesPerSample)
	analog.mutex.Unlock()
}

func TestEmulatorSamplingRateRejectsOutOfRange(t *testing.T) {
	et, _ := openEmulator(t, 23)

	tests := []uint32{0, 5, 9, 10001}
	for _, cycles := range tests {
		cmd := make([]byte, 5)
		cmd[0] = rigtypes.OpSetSamplingRate
		binary.LittleEndian.PutUint32(cmd[1:], cycles)
		require.NoError(t, et.Write(context.Background(), cmd))
		assert.Equal(t, []byte{0}, readReply(t, et, 1), "cycles=%d", cycles)
	}
}

func TestEmulatorStatusLED(t *testing.T) {
	et, _ := openEmulator(t, 23)

	require.NoError(t, et.Write(context.Background(), []byte{rigtypes.OpStatusLED, 1}))
	assert.Equal(t, []byte{rigtypes.AckOK}, readReply(t, et, 1))
}

func TestEmulatorStatusLEDSilentOnOldFirmware(t *testing.T) {
	et, _ := openEmulator(t, 22)

	require.NoError(t, et.Write(context.Background(), []byte{rigtypes.OpStatusLED, 1}))

	// Firmware below 23 never answers; the host runs into its timeout
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := et.ReadFull(ctx, 1)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEmulatorModuleRecords(t *testing.T) {
	et, _ := openEmulator(t, 23)

	require.NoError(t, et.Write(context.Background(), []byte{rigtypes.OpEnumerateModules}))

	// Slot 0: connected flag, firmware uint32 LE, name length, name
	head := readReply(t, et, 1)
	require.Equal(t, []byte{1}, head)
	fw := readReply(t, et, 4)
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(fw))
	nameLen := readReply(t, et, 1)
	name := readReply(t, et, int(nameLen[0]))
	assert.Equal(t, "AnalogIn1", string(name))

	// Remaining slots are empty
	assert.Equal(t, []byte{0, 0}, readReply(t, et, 2))
}

func TestEmulatorRelayGreetingAndChatter(t *testing.T) {
	et, _ := openEmulator(t, 23)

	require.NoError(t, et.Write(context.Background(), []byte{rigtypes.OpModuleRelay, 0, 1}))

	greeting := readReply(t, et, len("AnalogIn1 ready\r\n"))
	assert.Equal(t, "AnalogIn1 ready\r\n", string(greeting))

	// While relayed, the module keeps talking
	require.Eventually(t, func() bool {
		data, err := et.Read(context.Background(), 256)
		return err == nil && strings.Contains(string(data), "AnalogIn1 tick")
	}, time.Second, 10*time.Millisecond)

	// Relay off: the slot goes quiet
	require.NoError(t, et.Write(context.Background(), []byte{rigtypes.OpModuleRelay, 0, 0}))
	require.NoError(t, et.Drain(context.Background()))
	time.Sleep(60 * time.Millisecond)
	data, err := et.Read(context.Background(), 256)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestEmulatorDisconnectClearsRelays(t *testing.T) {
	et, _ := openEmulator(t, 23)

	require.NoError(t, et.Write(context.Background(), []byte{rigtypes.OpModuleRelay, 0, 1}))
	require.NoError(t, et.Write(context.Background(), []byte{rigtypes.OpDisconnect}))
	require.NoError(t, et.Drain(context.Background()))

	time.Sleep(60 * time.Millisecond)
	data, err := et.Read(context.Background(), 256)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestEmulatedAnalogSynthesizesFrames(t *testing.T) {
	analog := NewEmulatedAnalogTransport(10000, zap.NewNop())
	require.NoError(t, analog.Open(context.Background()))
	defer analog.Close()

	analog.SetChannelCount(2)
	analog.SetCyclesPerSample(10) // 1000 Hz

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// Two full frames: uint32 timestamp + two uint16 values each
	data, err := analog.ReadFull(ctx, 16)
	require.NoError(t, err)

	ts1 := binary.LittleEndian.Uint32(data[0:4])
	ts2 := binary.LittleEndian.Uint32(data[8:12])
	assert.Equal(t, uint32(10), ts2-ts1)
	for _, off := range []int{4, 6, 12, 14} {
		assert.Less(t, binary.LittleEndian.Uint16(data[off:]), uint16(4096))
	}
}

func TestEmulatedAnalogWriteRejected(t *testing.T) {
	analog := NewEmulatedAnalogTransport(10000, zap.NewNop())
	require.NoError(t, analog.Open(context.Background()))
	defer analog.Close()

	require.Error(t, analog.Write(context.Background(), []byte{1}))
}

func TestMachineTypeFromName(t *testing.T) {
	mt, err := MachineTypeFromName("r2+")
	require.NoError(t, err)
	assert.Equal(t, rigtypes.MachineTwoPlus, mt)

	mt, err = MachineTypeFromName("r2.5")
	require.NoError(t, err)
	assert.Equal(t, rigtypes.MachineTwoX, mt)

	_, err = MachineTypeFromName("r9")
	require.Error(t, err)
}
