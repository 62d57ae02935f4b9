// internal/rig/controller.go
package rig

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"rig-service/internal/model"
	"rig-service/internal/protocol"
	"rig-service/pkg/rigtypes"
)

// Options configures the connect sequence and the pollers.
type Options struct {
	ConfirmTimeout   time.Duration
	RelayPollPeriod  time.Duration
	AnalogPollPeriod time.Duration
	ModuleSink       ByteSink
	SampleSink       SampleSink
}

// Controller owns one connected state machine: the protocol client, the
// shared status registry, the derived channel layout and the three
// subsystem managers. Whether the transports are physical or emulated is
// decided once at construction; nothing here knows the difference.
type Controller struct {
	pair     *protocol.TransportPair
	client   *Client
	identity *model.DeviceIdentity
	status   *StatusRegistry
	layout   *ChannelLayout
	logger   *zap.Logger

	Config   *ConfigManager
	Relay    *RelayController
	Streamer *AnalogStreamer
}

// Connect opens the transports, verifies the handshake, queries the device
// identity and builds the runtime around it.
func Connect(ctx context.Context, pair *protocol.TransportPair, opts Options, logger *zap.Logger) (*Controller, error) {
	if err := pair.Command.Open(ctx); err != nil {
		return nil, fmt.Errorf("open command channel: %w", err)
	}

	client := NewClient(pair.Command, opts.ConfirmTimeout, logger)

	// Anything buffered from a previous host process would desync the
	// first confirmation read
	if err := client.Drain(ctx); err != nil {
		pair.Command.Close()
		return nil, fmt.Errorf("drain command channel: %w", err)
	}

	if err := client.Handshake(ctx); err != nil {
		pair.Command.Close()
		return nil, err
	}

	firmware, machineType, err := client.QueryIdentity(ctx)
	if err != nil {
		pair.Command.Close()
		return nil, err
	}

	identity := &model.DeviceIdentity{
		MachineType:     machineType,
		FirmwareVersion: firmware,
		ConnectionType:  pair.Command.Kind(),
		ConnectedAt:     time.Now(),
	}
	profile := rigtypes.ProfileFor(machineType)

	status := NewStatusRegistry()
	layout := NewChannelLayout(profile)

	c := &Controller{
		pair:     pair,
		client:   client,
		identity: identity,
		status:   status,
		layout:   layout,
		logger: logger.With(
			zap.String("component", "rig-controller"),
			zap.String("machine_type", machineType.String()),
			zap.Int("firmware", firmware),
		),
	}

	c.Config = NewConfigManager(client, status, layout, identity, logger)
	c.Relay = NewRelayController(client, status, opts.ModuleSink, opts.RelayPollPeriod, logger)

	if profile.ModuleSlots > 0 {
		modules, err := client.EnumerateModules(ctx, profile.ModuleSlots)
		if err != nil {
			pair.Command.Close()
			return nil, err
		}
		c.Relay.SetModules(modules)
	}

	if pair.Analog != nil && identity.HasAnalogChannel() {
		if err := pair.Analog.Open(ctx); err != nil {
			pair.Command.Close()
			return nil, fmt.Errorf("open analog channel: %w", err)
		}
		c.Streamer = NewAnalogStreamer(pair.Analog, status, c.Config, opts.SampleSink, opts.AnalogPollPeriod, logger)
	} else {
		c.Streamer = NewAnalogStreamer(nil, status, c.Config, opts.SampleSink, opts.AnalogPollPeriod, logger)
	}

	c.logger.Info("State machine connected",
		zap.String("connection_type", string(identity.ConnectionType)),
		zap.Int("flex_channels", profile.FlexChannels),
		zap.Int("module_slots", profile.ModuleSlots),
	)
	return c, nil
}

// Identity returns the immutable device identity
func (c *Controller) Identity() model.DeviceIdentity {
	return *c.identity
}

// Status returns the shared runtime status registry
func (c *Controller) Status() *StatusRegistry {
	return c.status
}

// Layout returns the derived channel layout
func (c *Controller) Layout() *ChannelLayout {
	return c.layout
}

// Client returns the protocol client, for collaborators that issue their
// own commands (session/trial control)
func (c *Controller) Client() *Client {
	return c.client
}

// RefreshModules re-enumerates the module table. Not legal while a relay
// is active, since enumeration and relay share the command channel.
func (c *Controller) RefreshModules(ctx context.Context) ([]model.ModuleInfo, error) {
	if c.Relay.Relaying() != "" {
		return nil, fmt.Errorf("module enumeration: %w", ErrRelayActive)
	}

	profile := rigtypes.ProfileFor(c.identity.MachineType)
	if profile.ModuleSlots == 0 {
		return nil, nil
	}

	modules, err := c.client.EnumerateModules(ctx, profile.ModuleSlots)
	if err != nil {
		return nil, err
	}
	c.Relay.SetModules(modules)
	return modules, nil
}

// Close releases the device: stops both pollers, tells the firmware the
// host is going away and closes the transports.
func (c *Controller) Close(ctx context.Context) error {
	c.Relay.Stop(ctx)
	c.Streamer.Stop()

	if err := c.client.Disconnect(ctx); err != nil {
		c.logger.Warn("Disconnect command failed", zap.Error(err))
	}

	var firstErr error
	if c.pair.Analog != nil {
		if err := c.pair.Analog.Close(); err != nil {
			firstErr = err
		}
	}
	if err := c.pair.Command.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	c.logger.Info("State machine disconnected")
	return firstErr
}
