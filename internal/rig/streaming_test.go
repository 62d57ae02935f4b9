// internal/rig/streaming_test.go
package rig

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rig-service/internal/model"
	"rig-service/pkg/rigtypes"
)

type batchSink struct {
	mu      sync.Mutex
	batches []model.AnalogBatch
}

func (bs *batchSink) OnAnalogBatch(batch model.AnalogBatch) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.batches = append(bs.batches, batch)
}

func (bs *batchSink) samples() []model.AnalogSample {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	var out []model.AnalogSample
	for _, b := range bs.batches {
		out = append(out, b.Samples...)
	}
	return out
}

// frame builds one wire frame: uint32 LE timestamp + uint16 LE values
func frame(timestamp uint32, values ...uint16) []byte {
	buf := make([]byte, 4+2*len(values))
	binary.LittleEndian.PutUint32(buf[0:4], timestamp)
	for i, v := range values {
		binary.LittleEndian.PutUint16(buf[4+2*i:], v)
	}
	return buf
}

// newTestStreamer builds a streamer over a scripted analog transport with
// two Flex channels typed as analog inputs
func newTestStreamer(t *testing.T, sink SampleSink) (*AnalogStreamer, *mockTransport, *StatusRegistry) {
	t.Helper()

	cmdTransport := newMockTransport()
	cm := newTestConfigManager(cmdTransport, 23)

	cmdTransport.queue(rigtypes.AckOK)
	require.NoError(t, cm.SetFlexIO(context.Background(), []rigtypes.ChannelType{
		rigtypes.ChannelAnalogIn,
		rigtypes.ChannelAnalogIn,
		rigtypes.ChannelDigitalIn,
		rigtypes.ChannelDigitalOut,
	}))

	analog := newMockTransport()
	streamer := NewAnalogStreamer(analog, cm.status, cm, sink, 5*time.Millisecond, zap.NewNop())
	return streamer, analog, cm.status
}

func TestStreamerParsesFrames(t *testing.T) {
	sink := &batchSink{}
	streamer, analog, status := newTestStreamer(t, sink)

	status.SetLive(true)
	require.NoError(t, streamer.Start(context.Background(), "session-1"))
	defer streamer.Stop()

	analog.queue(frame(100, 2048, 512)...)
	analog.queue(frame(110, 2050, 514)...)

	require.Eventually(t, func() bool {
		return len(sink.samples()) == 2
	}, time.Second, 2*time.Millisecond)

	samples := sink.samples()
	assert.Equal(t, uint64(0), samples[0].Index)
	assert.Equal(t, uint32(100), samples[0].Timestamp)
	assert.Equal(t, []uint16{2048, 512}, samples[0].Values)
	assert.Equal(t, uint64(1), samples[1].Index)
	assert.Equal(t, uint32(110), samples[1].Timestamp)
}

func TestStreamerCarriesPartialFrames(t *testing.T) {
	sink := &batchSink{}
	streamer, analog, status := newTestStreamer(t, sink)

	status.SetLive(true)
	require.NoError(t, streamer.Start(context.Background(), "session-1"))
	defer streamer.Stop()

	full := append(frame(1, 10, 20), frame(2, 11, 21)...)
	full = append(full, frame(3, 12, 22)...)

	// Split mid-frame: 2.5 frames, then the rest
	analog.queue(full[:20]...)
	require.Eventually(t, func() bool {
		return len(sink.samples()) == 2
	}, time.Second, 2*time.Millisecond)

	analog.queue(full[20:]...)
	require.Eventually(t, func() bool {
		return len(sink.samples()) == 3
	}, time.Second, 2*time.Millisecond)

	samples := sink.samples()
	for i, s := range samples {
		assert.Equal(t, uint64(i), s.Index)
		assert.Equal(t, uint32(i+1), s.Timestamp)
	}
}

func TestStreamerSkipsWhilePaused(t *testing.T) {
	sink := &batchSink{}
	streamer, analog, status := newTestStreamer(t, sink)

	status.SetLive(true)
	status.SetPause(true)
	require.NoError(t, streamer.Start(context.Background(), "session-1"))
	defer streamer.Stop()

	analog.queue(frame(1, 10, 20)...)
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, sink.samples())

	status.SetPause(false)
	require.Eventually(t, func() bool {
		return len(sink.samples()) == 1
	}, time.Second, 2*time.Millisecond)
}

func TestStreamerMonotonicIndexAcrossBatches(t *testing.T) {
	sink := &batchSink{}
	streamer, analog, status := newTestStreamer(t, sink)

	status.SetLive(true)
	require.NoError(t, streamer.Start(context.Background(), "session-1"))
	defer streamer.Stop()

	for i := 0; i < 5; i++ {
		analog.queue(frame(uint32(i), uint16(i), uint16(i))...)
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return len(sink.samples()) == 5
	}, time.Second, 2*time.Millisecond)

	for i, s := range sink.samples() {
		assert.Equal(t, uint64(i), s.Index)
	}
	assert.Equal(t, uint64(5), status.AnalogSampleCount())
}

func TestStreamerStartWithoutTransport(t *testing.T) {
	cmdTransport := newMockTransport()
	cm := newTestConfigManager(cmdTransport, 23)

	streamer := NewAnalogStreamer(nil, cm.status, cm, nil, 5*time.Millisecond, zap.NewNop())

	// Hardware without an analog channel: start and stop are no-ops
	require.NoError(t, streamer.Start(context.Background(), "session-1"))
	streamer.Stop()
}

func TestStreamerStopIsIdempotent(t *testing.T) {
	sink := &batchSink{}
	streamer, _, status := newTestStreamer(t, sink)

	status.SetLive(true)
	require.NoError(t, streamer.Start(context.Background(), "session-1"))
	streamer.Stop()
	streamer.Stop()
}
