// internal/model/session.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the lifecycle state of a recording session.
type SessionStatus string

const (
	SessionStatusLive    SessionStatus = "LIVE"
	SessionStatusPaused  SessionStatus = "PAUSED"
	SessionStatusStopped SessionStatus = "STOPPED"
)

// Session is one recording session on the rig. Analog batches and relayed
// module traffic are stored against it.
type Session struct {
	ID             uuid.UUID     `json:"id" db:"id"`
	Subject        string        `json:"subject" db:"subject"`
	Protocol       string        `json:"protocol" db:"protocol"`
	MachineType    string        `json:"machine_type" db:"machine_type"`
	Status         SessionStatus `json:"status" db:"status"`
	SamplingRateHz int           `json:"sampling_rate_hz" db:"sampling_rate_hz"`
	StartedAt      time.Time     `json:"started_at" db:"started_at"`
	StoppedAt      *time.Time    `json:"stopped_at,omitempty" db:"stopped_at"`
}
