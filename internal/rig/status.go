// internal/rig/status.go
package rig

import (
	"sync"

	"rig-service/internal/model"
)

// StatusRegistry is the shared record of runtime flags. One instance is
// created at connection time and handed to every component; all legality
// gating (reconfiguration, relay start, streaming) reads it through the
// accessors. Never persisted.
type StatusRegistry struct {
	mutex sync.RWMutex

	live                bool
	pause               bool
	inStateMatrix       bool
	beingUsed           bool
	newStateMachineSent bool
	sessionStartFlag    bool
	relayActive         bool
	analogSampleCount   uint64
}

// NewStatusRegistry creates a registry with every flag cleared
func NewStatusRegistry() *StatusRegistry {
	return &StatusRegistry{}
}

// SetLive marks a session live or not
func (s *StatusRegistry) SetLive(v bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.live = v
}

// Live reports whether a session is live
func (s *StatusRegistry) Live() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.live
}

// SetPause marks the session paused or resumed
func (s *StatusRegistry) SetPause(v bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.pause = v
}

// Paused reports whether the session is paused
func (s *StatusRegistry) Paused() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.pause
}

// SetInStateMatrix records whether the device is executing a trial. Fed by
// the session/trial controller.
func (s *StatusRegistry) SetInStateMatrix(v bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.inStateMatrix = v
}

// InStateMatrix reports whether the device is executing a trial
func (s *StatusRegistry) InStateMatrix() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.inStateMatrix
}

// SetBeingUsed marks the rig as claimed by a console panel
func (s *StatusRegistry) SetBeingUsed(v bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.beingUsed = v
}

// BeingUsed reports whether the rig is claimed by a console panel
func (s *StatusRegistry) BeingUsed() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.beingUsed
}

// SetNewStateMachineSent records that a state machine upload is pending
func (s *StatusRegistry) SetNewStateMachineSent(v bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.newStateMachineSent = v
}

// NewStateMachineSent reports whether a state machine upload is pending
func (s *StatusRegistry) NewStateMachineSent() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.newStateMachineSent
}

// SetSessionStartFlag records that the next trial starts a session
func (s *StatusRegistry) SetSessionStartFlag(v bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.sessionStartFlag = v
}

// SessionStartFlag reports whether the next trial starts a session
func (s *StatusRegistry) SessionStartFlag() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.sessionStartFlag
}

// SetRelayActive records whether any module relay is running
func (s *StatusRegistry) SetRelayActive(v bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.relayActive = v
}

// RelayActive reports whether any module relay is running
func (s *StatusRegistry) RelayActive() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.relayActive
}

// AddAnalogSamples advances the monotonic sample counter and returns the
// index of the first sample in the batch
func (s *StatusRegistry) AddAnalogSamples(n int) uint64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	first := s.analogSampleCount
	s.analogSampleCount += uint64(n)
	return first
}

// AnalogSampleCount reports how many analog samples have been drained
func (s *StatusRegistry) AnalogSampleCount() uint64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.analogSampleCount
}

// ResetSessionCounters clears per-session counters at session start
func (s *StatusRegistry) ResetSessionCounters() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.analogSampleCount = 0
}

// Snapshot returns the registry as a flat struct for the status surface
func (s *StatusRegistry) Snapshot() model.RuntimeFlags {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return model.RuntimeFlags{
		Live:                s.live,
		Pause:               s.pause,
		InStateMatrix:       s.inStateMatrix,
		BeingUsed:           s.beingUsed,
		NewStateMachineSent: s.newStateMachineSent,
		SessionStartFlag:    s.sessionStartFlag,
		RelayActive:         s.relayActive,
		AnalogSampleCount:   s.analogSampleCount,
	}
}
