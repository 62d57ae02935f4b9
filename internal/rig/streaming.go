// internal/rig/streaming.go
package rig

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"rig-service/internal/model"
	"rig-service/internal/protocol"
)

// analogReadChunk bounds how many bytes one poll tick drains.
const analogReadChunk = 8192

// SampleSink receives drained analog batches, one per poll tick.
type SampleSink interface {
	OnAnalogBatch(batch model.AnalogBatch)
}

// AnalogStreamer drains buffered analog samples from the dedicated analog
// channel while a session is live. It never touches the command transport,
// so command/response traffic is never delayed by analog throughput.
//
// Wire format per sample: uint32 LE cycle timestamp, then one uint16 LE
// value per analog-input Flex channel. The frame width is fixed at start
// time; retyping Flex channels mid-session is blocked upstream.
type AnalogStreamer struct {
	transport  protocol.Transport
	status     *StatusRegistry
	config     *ConfigManager
	sink       SampleSink
	pollPeriod time.Duration
	logger     *zap.Logger

	mutex     sync.Mutex
	sessionID string
	frameSize int
	channels  int
	partial   []byte
	buffer    []model.AnalogSample

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewAnalogStreamer creates a stopped streamer. transport may be nil for
// hardware without a dedicated analog channel; Start is then a no-op.
func NewAnalogStreamer(transport protocol.Transport, status *StatusRegistry, config *ConfigManager, sink SampleSink, pollPeriod time.Duration, logger *zap.Logger) *AnalogStreamer {
	return &AnalogStreamer{
		transport:  transport,
		status:     status,
		config:     config,
		sink:       sink,
		pollPeriod: pollPeriod,
		logger:     logger.With(zap.String("component", "analog-streamer")),
	}
}

// Start begins draining for the given session. The frame width is locked
// in from the current Flex configuration.
func (as *AnalogStreamer) Start(ctx context.Context, sessionID string) error {
	as.mutex.Lock()
	defer as.mutex.Unlock()

	if as.transport == nil {
		return nil
	}
	if as.stopCh != nil {
		return fmt.Errorf("analog streamer already running")
	}

	as.channels = as.config.AnalogInputCount()
	as.frameSize = 4 + 2*as.channels
	as.sessionID = sessionID
	as.partial = nil
	as.buffer = nil

	// Stale frames from before the session belong to nobody
	if err := as.transport.Drain(ctx); err != nil {
		return fmt.Errorf("drain analog channel: %w", err)
	}

	as.stopCh = make(chan struct{})
	as.wg.Add(1)
	go as.poll(as.stopCh)

	as.logger.Info("Analog streaming started",
		zap.String("session_id", sessionID),
		zap.Int("channels", as.channels),
		zap.Int("rate_hz", as.config.SamplingRateHz()),
	)
	return nil
}

// poll drains complete frames on a fixed period until stopped
func (as *AnalogStreamer) poll(stopCh chan struct{}) {
	defer as.wg.Done()

	ticker := time.NewTicker(as.pollPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if !as.status.Live() || as.status.Paused() {
				continue
			}
			as.drainTick()
		}
	}
}

// drainTick reads what the channel has, parses complete frames and hands
// the batch to the sink. Partial frames carry over to the next tick.
func (as *AnalogStreamer) drainTick() {
	ctx, cancel := context.WithTimeout(context.Background(), as.pollPeriod)
	data, err := as.transport.Read(ctx, analogReadChunk)
	cancel()
	if err != nil {
		as.logger.Error("Analog poll read failed", zap.Error(err))
		return
	}
	if len(data) == 0 {
		return
	}

	as.mutex.Lock()
	as.partial = append(as.partial, data...)

	n := len(as.partial) / as.frameSize
	if n == 0 {
		as.mutex.Unlock()
		return
	}

	firstIndex := as.status.AddAnalogSamples(n)
	samples := make([]model.AnalogSample, 0, n)
	for i := 0; i < n; i++ {
		frame := as.partial[i*as.frameSize : (i+1)*as.frameSize]
		sample := model.AnalogSample{
			Index:     firstIndex + uint64(i),
			Timestamp: binary.LittleEndian.Uint32(frame[0:4]),
			Values:    make([]uint16, as.channels),
		}
		for ch := 0; ch < as.channels; ch++ {
			sample.Values[ch] = binary.LittleEndian.Uint16(frame[4+2*ch:])
		}
		samples = append(samples, sample)
	}
	as.partial = as.partial[n*as.frameSize:]
	as.buffer = append(as.buffer, samples...)

	batch := model.AnalogBatch{SessionID: as.sessionID, Samples: samples}
	sink := as.sink
	as.mutex.Unlock()

	if sink != nil {
		sink.OnAnalogBatch(batch)
	}
}

// Stop halts draining and joins the poller. Safe to call when stopped.
func (as *AnalogStreamer) Stop() {
	as.mutex.Lock()
	if as.stopCh == nil {
		as.mutex.Unlock()
		return
	}
	stopCh := as.stopCh
	as.stopCh = nil
	as.mutex.Unlock()

	// Join outside the mutex: the poller takes it inside drainTick
	close(stopCh)
	as.wg.Wait()

	as.mutex.Lock()
	defer as.mutex.Unlock()
	as.logger.Info("Analog streaming stopped",
		zap.String("session_id", as.sessionID),
		zap.Int("samples", len(as.buffer)),
	)
}

// Samples returns a copy of the session's drained sample buffer
func (as *AnalogStreamer) Samples() []model.AnalogSample {
	as.mutex.Lock()
	defer as.mutex.Unlock()
	return append([]model.AnalogSample(nil), as.buffer...)
}
