// internal/protocol/serial_connection.go
package protocol

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"rig-service/internal/config"
	"rig-service/internal/model"
)

// SerialTransport implements Transport over a physical serial port.
// Counters are atomic: Read/Write run under the read lock and may overlap.
type SerialTransport struct {
	config   *config.SerialConfig
	portName string
	port     serial.Port
	logger   *zap.Logger
	mutex    sync.RWMutex
	isOpen   bool

	bytesWritten atomic.Int64
	bytesRead    atomic.Int64
	errorCount   atomic.Int64
	lastActivity atomic.Int64 // unix nanoseconds
}

// NewSerialTransport creates a serial transport for the named port.
// The same SerialConfig serves both the command and the analog channel;
// only the port name differs.
func NewSerialTransport(cfg *config.SerialConfig, portName string, logger *zap.Logger) *SerialTransport {
	return &SerialTransport{
		config:   cfg,
		portName: portName,
		logger: logger.With(
			zap.String("transport", "serial"),
			zap.String("port", portName),
		),
	}
}

// Open opens the serial port
func (st *SerialTransport) Open(ctx context.Context) error {
	st.mutex.Lock()
	defer st.mutex.Unlock()

	if st.isOpen {
		return nil
	}

	st.logger.Info("Opening serial port",
		zap.Int("baud_rate", st.config.BaudRate),
	)

	mode := &serial.Mode{
		BaudRate: st.config.BaudRate,
		DataBits: st.config.DataBits,
		StopBits: serial.StopBits(st.config.StopBits),
	}

	switch st.config.Parity {
	case "odd":
		mode.Parity = serial.OddParity
	case "even":
		mode.Parity = serial.EvenParity
	default:
		mode.Parity = serial.NoParity
	}

	port, err := serial.Open(st.portName, mode)
	if err != nil {
		st.logger.Error("Failed to open serial port", zap.Error(err))
		return fmt.Errorf("failed to open serial port %s: %w", st.portName, err)
	}

	// The port-level timeout bounds a single Read call; ReadFull loops
	// against the context deadline on top of it.
	if err := port.SetReadTimeout(st.config.ReadTimeout); err != nil {
		port.Close()
		return fmt.Errorf("failed to set read timeout: %w", err)
	}

	st.port = port
	st.isOpen = true
	st.lastActivity.Store(time.Now().UnixNano())

	st.logger.Info("Serial port opened")
	return nil
}

// Close closes the serial port
func (st *SerialTransport) Close() error {
	st.mutex.Lock()
	defer st.mutex.Unlock()

	if !st.isOpen || st.port == nil {
		return nil
	}

	if err := st.port.Close(); err != nil {
		st.logger.Error("Failed to close serial port", zap.Error(err))
		return fmt.Errorf("failed to close serial port: %w", err)
	}

	st.port = nil
	st.isOpen = false

	st.logger.Info("Serial port closed")
	return nil
}

// IsOpen returns whether the port is open
func (st *SerialTransport) IsOpen() bool {
	st.mutex.RLock()
	defer st.mutex.RUnlock()
	return st.isOpen && st.port != nil
}

// Write writes data to the serial port
func (st *SerialTransport) Write(ctx context.Context, data []byte) error {
	st.mutex.RLock()
	defer st.mutex.RUnlock()

	if !st.isOpen || st.port == nil {
		return fmt.Errorf("serial port not open")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	n, err := st.port.Write(data)
	if err != nil {
		st.errorCount.Add(1)
		st.logger.Error("Serial write failed", zap.Error(err))
		return fmt.Errorf("failed to write to serial port: %w", err)
	}

	if n != len(data) {
		return fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
	}

	st.bytesWritten.Add(int64(len(data)))
	st.lastActivity.Store(time.Now().UnixNano())

	return nil
}

// Read returns whatever bytes are available, up to maxBytes
func (st *SerialTransport) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	st.mutex.RLock()
	defer st.mutex.RUnlock()

	if !st.isOpen || st.port == nil {
		return nil, fmt.Errorf("serial port not open")
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	buffer := make([]byte, maxBytes)
	n, err := st.port.Read(buffer)
	if err != nil && err != io.EOF {
		st.errorCount.Add(1)
		return nil, fmt.Errorf("failed to read from serial port: %w", err)
	}

	st.bytesRead.Add(int64(n))
	st.lastActivity.Store(time.Now().UnixNano())

	data := make([]byte, n)
	copy(data, buffer[:n])
	return data, nil
}

// ReadFull blocks until exactly n bytes have arrived or the context expires
func (st *SerialTransport) ReadFull(ctx context.Context, n int) ([]byte, error) {
	st.mutex.RLock()
	defer st.mutex.RUnlock()

	if !st.isOpen || st.port == nil {
		return nil, fmt.Errorf("serial port not open")
	}

	buffer := make([]byte, n)
	got := 0

	for got < n {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		// Bounded by the port read timeout, so the loop re-checks the
		// context at least that often.
		read, err := st.port.Read(buffer[got:])
		if err != nil && err != io.EOF {
			st.errorCount.Add(1)
			return nil, fmt.Errorf("failed to read from serial port: %w", err)
		}
		got += read
	}

	st.bytesRead.Add(int64(n))
	st.lastActivity.Store(time.Now().UnixNano())
	return buffer, nil
}

// Drain discards pending receive bytes
func (st *SerialTransport) Drain(ctx context.Context) error {
	st.mutex.RLock()
	defer st.mutex.RUnlock()

	if !st.isOpen || st.port == nil {
		return nil
	}

	if err := st.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("failed to drain serial receive buffer: %w", err)
	}

	st.logger.Debug("Serial receive buffer drained")
	return nil
}

// Kind reports the transport implementation
func (st *SerialTransport) Kind() model.ConnectionType {
	return model.ConnectionTypeSerial
}

// Stats returns a copy of the channel statistics
func (st *SerialTransport) Stats() TransportStats {
	st.mutex.RLock()
	connected := st.isOpen && st.port != nil
	st.mutex.RUnlock()

	return TransportStats{
		BytesWritten: st.bytesWritten.Load(),
		BytesRead:    st.bytesRead.Load(),
		ErrorCount:   st.errorCount.Load(),
		LastActivity: time.Unix(0, st.lastActivity.Load()),
		IsConnected:  connected,
	}
}
