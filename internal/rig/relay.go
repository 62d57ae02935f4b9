// internal/rig/relay.go
package rig

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"rig-service/internal/model"
	"rig-service/pkg/rigtypes"
)

// relayReadChunk bounds how much module traffic one poll tick forwards.
const relayReadChunk = 4096

// ByteSink receives relayed module bytes for the monitoring surface.
type ByteSink interface {
	OnModuleBytes(moduleName string, data []byte)
}

// RelayController bridges one auxiliary module's raw byte stream to the
// monitoring surface. It is a two-state machine, Idle or Relaying(slot):
// the relay shares a single poll timer and the command transport, so at
// most one module may be relayed at a time.
type RelayController struct {
	client     *Client
	status     *StatusRegistry
	sink       ByteSink
	pollPeriod time.Duration
	logger     *zap.Logger

	mutex      sync.Mutex
	modules    []model.ModuleInfo
	activeSlot int // -1 when idle

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewRelayController creates an idle relay controller
func NewRelayController(client *Client, status *StatusRegistry, sink ByteSink, pollPeriod time.Duration, logger *zap.Logger) *RelayController {
	return &RelayController{
		client:     client,
		status:     status,
		sink:       sink,
		pollPeriod: pollPeriod,
		logger:     logger.With(zap.String("component", "module-relay")),
		activeSlot: -1,
	}
}

// SetModules installs the module table from the latest enumeration
func (rc *RelayController) SetModules(modules []model.ModuleInfo) {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()
	rc.modules = append([]model.ModuleInfo(nil), modules...)
}

// Modules returns the module table with live relay flags
func (rc *RelayController) Modules() []model.ModuleInfo {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	out := append([]model.ModuleInfo(nil), rc.modules...)
	for i := range out {
		out[i].RelayActive = i == rc.activeSlot
	}
	return out
}

// Start begins relaying the named module. Fails with ErrRelayActive while
// any slot is already relaying, and with ErrUnknownModule if the name does
// not resolve to a slot.
func (rc *RelayController) Start(ctx context.Context, moduleName string) error {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	if rc.activeSlot >= 0 {
		return fmt.Errorf("module %q is relaying: %w", rc.modules[rc.activeSlot].Name, ErrRelayActive)
	}

	slot := -1
	for i, m := range rc.modules {
		if strings.EqualFold(m.Name, moduleName) {
			slot = i
			break
		}
	}
	if slot < 0 {
		return fmt.Errorf("%q: %w", moduleName, ErrUnknownModule)
	}

	if err := rc.client.Send(ctx, rigtypes.OpModuleRelay, []byte{byte(slot), 1}); err != nil {
		return fmt.Errorf("relay on: %w", err)
	}

	rc.activeSlot = slot
	rc.status.SetRelayActive(true)

	rc.stopCh = make(chan struct{})
	rc.wg.Add(1)
	go rc.poll(rc.modules[slot].Name, rc.stopCh)

	rc.logger.Info("Module relay started",
		zap.String("module", rc.modules[slot].Name),
		zap.Int("slot", slot),
	)
	return nil
}

// poll forwards available module bytes on a fixed period until stopped.
// Each tick takes the transport turn through the client, so it can never
// overlap a pending confirmation read.
func (rc *RelayController) poll(moduleName string, stopCh chan struct{}) {
	defer rc.wg.Done()

	ticker := time.NewTicker(rc.pollPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), rc.pollPeriod)
			data, err := rc.client.ReadAvailable(ctx, relayReadChunk)
			cancel()
			if err != nil {
				rc.logger.Error("Relay poll read failed", zap.Error(err))
				continue
			}
			if len(data) > 0 && rc.sink != nil {
				rc.sink.OnModuleBytes(moduleName, data)
			}
		}
	}
}

// Stop halts the relay. Safe to call at any time, including when nothing
// is relaying: it always stops and joins the poller first, then sends
// relay-off to every slot so the device converges even after an
// inconsistent prior state, drains stale module bytes out of the receive
// buffer, and clears the flags.
func (rc *RelayController) Stop(ctx context.Context) {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	if rc.stopCh != nil {
		close(rc.stopCh)
		rc.wg.Wait()
		rc.stopCh = nil
	}

	for slot := range rc.modules {
		if err := rc.client.Send(ctx, rigtypes.OpModuleRelay, []byte{byte(slot), 0}); err != nil {
			rc.logger.Error("Relay off failed", zap.Int("slot", slot), zap.Error(err))
		}
	}

	if err := rc.client.Drain(ctx); err != nil {
		rc.logger.Error("Drain after relay stop failed", zap.Error(err))
	}

	if rc.activeSlot >= 0 {
		rc.logger.Info("Module relay stopped", zap.String("module", rc.modules[rc.activeSlot].Name))
	}
	rc.activeSlot = -1
	rc.status.SetRelayActive(false)
}

// Relaying reports the active module name, or "" when idle
func (rc *RelayController) Relaying() string {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()
	if rc.activeSlot < 0 {
		return ""
	}
	return rc.modules[rc.activeSlot].Name
}
