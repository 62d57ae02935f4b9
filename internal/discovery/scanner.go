// internal/discovery/scanner.go
package discovery

import (
	"context"
	"strings"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"rig-service/internal/config"
	"rig-service/internal/protocol"
	"rig-service/internal/rig"
	"rig-service/pkg/rigtypes"
)

// DiscoveredRig is one serial port that answered the handshake
type DiscoveredRig struct {
	Port            string               `json:"port"`
	FirmwareVersion int                  `json:"firmware_version"`
	MachineType     rigtypes.MachineType `json:"machine_type"`
}

// Scanner probes serial ports for a listening state machine. A port counts
// as a rig only if it answers the handshake and the firmware query; anything
// else on the bus ignores the probe or replies garbage and is skipped.
type Scanner struct {
	serialCfg *config.SerialConfig
	deviceCfg *config.DeviceConfig
	logger    *zap.Logger
}

// NewScanner creates a serial port scanner
func NewScanner(serialCfg *config.SerialConfig, deviceCfg *config.DeviceConfig, logger *zap.Logger) *Scanner {
	return &Scanner{
		serialCfg: serialCfg,
		deviceCfg: deviceCfg,
		logger:    logger.With(zap.String("component", "port-scanner")),
	}
}

// Scan enumerates serial ports and probes each candidate
func (s *Scanner) Scan(ctx context.Context) ([]DiscoveredRig, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, err
	}

	var found []DiscoveredRig
	for _, port := range ports {
		if !isCandidate(port) {
			continue
		}

		probeCtx, cancel := context.WithTimeout(ctx, s.deviceCfg.HandshakeTimeout)
		discovered, err := s.probe(probeCtx, port)
		cancel()

		if err != nil {
			s.logger.Debug("Port did not answer probe",
				zap.String("port", port),
				zap.Error(err),
			)
			continue
		}
		found = append(found, *discovered)
	}

	s.logger.Info("Port scan completed",
		zap.Int("ports_checked", len(ports)),
		zap.Int("rigs_found", len(found)),
	)
	return found, nil
}

// probe opens one port, performs the handshake and identity query, and
// releases the device again
func (s *Scanner) probe(ctx context.Context, port string) (*DiscoveredRig, error) {
	transport := protocol.NewSerialTransport(s.serialCfg, port, s.logger)
	if err := transport.Open(ctx); err != nil {
		return nil, err
	}
	defer transport.Close()

	client := rig.NewClient(transport, s.deviceCfg.ConfirmTimeout, s.logger)

	if err := client.Drain(ctx); err != nil {
		return nil, err
	}
	if err := client.Handshake(ctx); err != nil {
		return nil, err
	}

	firmware, machineType, err := client.QueryIdentity(ctx)
	if err != nil {
		return nil, err
	}

	// Leave the device clean for whoever connects next
	if err := client.Disconnect(ctx); err != nil {
		s.logger.Warn("Disconnect after probe failed",
			zap.String("port", port),
			zap.Error(err),
		)
	}

	return &DiscoveredRig{
		Port:            port,
		FirmwareVersion: firmware,
		MachineType:     machineType,
	}, nil
}

// isCandidate filters ports that are never a rig, like onboard bluetooth
// ports on macOS
func isCandidate(port string) bool {
	lower := strings.ToLower(port)
	if strings.Contains(lower, "bluetooth") {
		return false
	}
	if strings.Contains(lower, "debug-console") {
		return false
	}
	return true
}
