// internal/rig/relay_test.go
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

type recordingSink struct {
	mu    sync.Mutex
	bytes []byte
	names []string
}

func (rs *recordingSink) OnModuleBytes(moduleName string, data []byte) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.names = append(rs.names, moduleName)
	rs.bytes = append(rs.bytes, data...)
}

func (rs *recordingSink) received() []byte {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return append([]byte(nil), rs.bytes...)
}

func newTestRelay(mt *mockTransport, sink ByteSink) (*RelayController, *StatusRegistry) {
	status := NewStatusRegistry()
	rc := NewRelayController(newTestClient(mt), status, sink, 5*time.Millisecond, zap.NewNop())
	rc.SetModules([]model.ModuleInfo{
		{SlotIndex: 0, Name: "AnalogIn1", Connected: true},
		{SlotIndex: 1, Name: "Serial2"},
		{SlotIndex: 2, Name: "Serial3"},
	})
	return rc, status
}

func TestRelayStartUnknownModule(t *testing.T) {
	mt := newMockTransport()
	rc, _ := newTestRelay(mt, nil)

	err := rc.Start(context.Background(), "NoSuchModule")
	require.ErrorIs(t, err, ErrUnknownModule)
	assert.Empty(t, mt.written())
}

func TestRelayMutualExclusion(t *testing.T) {
	mt := newMockTransport()
	rc, status := newTestRelay(mt, nil)

	require.NoError(t, rc.Start(context.Background(), "AnalogIn1"))
	assert.Equal(t, "AnalogIn1", rc.Relaying())
	assert.True(t, status.RelayActive())

	err := rc.Start(context.Background(), "Serial2")
	require.ErrorIs(t, err, ErrRelayActive)

	rc.Stop(context.Background())
}

func TestRelayForwardsBytes(t *testing.T) {
	mt := newMockTransport()
	sink := &recordingSink{}
	rc, _ := newTestRelay(mt, sink)

	require.NoError(t, rc.Start(context.Background(), "AnalogIn1"))

	writes := mt.written()
	require.Len(t, writes, 1)
	assert.Equal(t, []byte{rigtypes.OpModuleRelay, 0, 1}, writes[0])

	mt.queue([]byte("pulse 42\r\n")...)
	require.Eventually(t, func() bool {
		return string(sink.received()) == "pulse 42\r\n"
	}, time.Second, 2*time.Millisecond)

	rc.Stop(context.Background())
}

func TestRelayStopTurnsOffEverySlot(t *testing.T) {
	mt := newMockTransport()
	rc, status := newTestRelay(mt, nil)

	require.NoError(t, rc.Start(context.Background(), "AnalogIn1"))
	rc.Stop(context.Background())

	writes := mt.written()
	// Relay on, then one relay-off per slot
	require.Len(t, writes, 4)
	assert.Equal(t, []byte{rigtypes.OpModuleRelay, 0, 0}, writes[1])
	assert.Equal(t, []byte{rigtypes.OpModuleRelay, 1, 0}, writes[2])
	assert.Equal(t, []byte{rigtypes.OpModuleRelay, 2, 0}, writes[3])

	assert.Equal(t, "", rc.Relaying())
	assert.False(t, status.RelayActive())

	// Stale module bytes are drained out of the command channel
	assert.Equal(t, 1, mt.drainCount)
}

func TestRelayStopIdempotent(t *testing.T) {
	mt := newMockTransport()
	rc, _ := newTestRelay(mt, nil)

	rc.Stop(context.Background())
	rc.Stop(context.Background())

	// Each stop still converges the device: relay-off to every slot
	assert.Len(t, mt.written(), 6)
	assert.Equal(t, "", rc.Relaying())
}

func TestRelayModulesReportActiveFlag(t *testing.T) {
	mt := newMockTransport()
	rc, _ := newTestRelay(mt, nil)

	require.NoError(t, rc.Start(context.Background(), "AnalogIn1"))
	defer rc.Stop(context.Background())

	modules := rc.Modules()
	require.Len(t, modules, 3)
	assert.True(t, modules[0].RelayActive)
	assert.False(t, modules[1].RelayActive)
	assert.False(t, modules[2].RelayActive)
}

func TestRelayStartIsCaseInsensitive(t *testing.T) {
	mt := newMockTransport()
	rc, _ := newTestRelay(mt, nil)

	require.NoError(t, rc.Start(context.Background(), "analogin1"))
	assert.Equal(t, "AnalogIn1", rc.Relaying())
	rc.Stop(context.Background())
}
