// internal/service/rig_service.go
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"rig-service/internal/model"
	"rig-service/internal/rig"
	"rig-service/internal/utils"
	"rig-service/pkg/rigtypes"
)

// RigService exposes the connected state machine to the HTTP surface:
// status, channel layout, hardware reconfiguration and module relay.
type RigService struct {
	controller *rig.Controller
	logger     *utils.ServiceLogger
}

// NewRigService creates a rig service around a connected controller
func NewRigService(controller *rig.Controller, logger *zap.Logger) *RigService {
	return &RigService{
		controller: controller,
		logger:     utils.NewServiceLogger(logger, "rig-service"),
	}
}

// RigStatus is the full status surface for one poll
type RigStatus struct {
	Identity       model.DeviceIdentity `json:"identity"`
	Flags          model.RuntimeFlags   `json:"flags"`
	FlexTypes      []int                `json:"flex_types"`
	SamplingRateHz int                  `json:"sampling_rate_hz"`
	RelayingModule string               `json:"relaying_module,omitempty"`
}

// RigLayout is the derived channel name surface
type RigLayout struct {
	EventNames         []string `json:"event_names"`
	InputChannelNames  []string `json:"input_channel_names"`
	OutputChannelNames []string `json:"output_channel_names"`
}

// GetStatus returns the identity, runtime flags and hardware configuration
func (rs *RigService) GetStatus() *RigStatus {
	flexTypes := rs.controller.Config.FlexTypes()
	types := make([]int, len(flexTypes))
	for i, t := range flexTypes {
		types[i] = int(t)
	}

	return &RigStatus{
		Identity:       rs.controller.Identity(),
		Flags:          rs.controller.Status().Snapshot(),
		FlexTypes:      types,
		SamplingRateHz: rs.controller.Config.SamplingRateHz(),
		RelayingModule: rs.controller.Relay.Relaying(),
	}
}

// GetLayout returns the current channel name tables
func (rs *RigService) GetLayout() *RigLayout {
	layout := rs.controller.Layout()
	return &RigLayout{
		EventNames:         layout.EventNames(),
		InputChannelNames:  layout.InputChannelNames(),
		OutputChannelNames: layout.OutputChannelNames(),
	}
}

// ConfigureFlexIO retypes the Flex channels from a raw type vector
func (rs *RigService) ConfigureFlexIO(ctx context.Context, rawTypes []int) (*RigLayout, error) {
	types := make([]rigtypes.ChannelType, len(rawTypes))
	for i, raw := range rawTypes {
		types[i] = rigtypes.ChannelType(raw)
	}

	if err := rs.controller.Config.SetFlexIO(ctx, types); err != nil {
		return nil, err
	}
	return rs.GetLayout(), nil
}

// SetSamplingRate sets the Flex analog sampling rate in Hz
func (rs *RigService) SetSamplingRate(ctx context.Context, hz int) error {
	return rs.controller.Config.SetAnalogSamplingRate(ctx, hz)
}

// SetStatusLED switches the enclosure status LED
func (rs *RigService) SetStatusLED(ctx context.Context, on bool) error {
	return rs.controller.Config.SetStatusLED(ctx, on)
}

// ListModules returns the module table from the last enumeration
func (rs *RigService) ListModules() []model.ModuleInfo {
	return rs.controller.Relay.Modules()
}

// RefreshModules re-enumerates the module slots on the device
func (rs *RigService) RefreshModules(ctx context.Context) ([]model.ModuleInfo, error) {
	modules, err := rs.controller.RefreshModules(ctx)
	if err != nil {
		return nil, err
	}
	rs.logger.Info("Modules re-enumerated", zap.Int("slots", len(modules)))
	return modules, nil
}

// StartRelay begins relaying the named module to the monitoring surface
func (rs *RigService) StartRelay(ctx context.Context, moduleName string) error {
	if moduleName == "" {
		return fmt.Errorf("module name is required")
	}
	return rs.controller.Relay.Start(ctx, moduleName)
}

// StopRelay halts module relaying
func (rs *RigService) StopRelay(ctx context.Context) {
	rs.controller.Relay.Stop(ctx)
}
