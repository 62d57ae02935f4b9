// internal/protocol/protocol.go
package protocol

import (
	"context"
	"time"

	"rig-service/internal/model"
)

// Transport represents one byte channel to the state machine. The command
// channel and the bulk analog channel are separate Transport instances so
// analog throughput can never delay a confirmation read.
type Transport interface {
	// Connection lifecycle
	Open(ctx context.Context) error
	Close() error
	IsOpen() bool

	// Data transfer
	Write(ctx context.Context, data []byte) error

	// Read returns whatever bytes are currently available, up to maxBytes.
	// It never waits for more than the channel's configured read timeout.
	Read(ctx context.Context, maxBytes int) ([]byte, error)

	// ReadFull blocks until exactly n bytes have arrived or the context
	// deadline expires.
	ReadFull(ctx context.Context, n int) ([]byte, error)

	// Drain discards any bytes sitting in the receive buffer.
	Drain(ctx context.Context) error

	// Kind reports which transport implementation is in use
	Kind() model.ConnectionType
}

// TransportStats provides channel-level statistics
type TransportStats struct {
	BytesWritten int64     `json:"bytes_written"`
	BytesRead    int64     `json:"bytes_read"`
	ErrorCount   int64     `json:"error_count"`
	LastActivity time.Time `json:"last_activity"`
	IsConnected  bool      `json:"is_connected"`
}
