// internal/model/sample.go
package model

// AnalogSample is one drained record from the analog streaming channel.
// Index is assigned by the host and increases monotonically within a
// session; Timestamp is the device cycle count at sampling time.
type AnalogSample struct {
	Index     uint64   `json:"index"`
	Timestamp uint32   `json:"timestamp"`
	Values    []uint16 `json:"values"`
}

// AnalogBatch is the unit handed to session storage on each poll tick.
type AnalogBatch struct {
	SessionID string         `json:"session_id,omitempty"`
	Samples   []AnalogSample `json:"samples"`
}
