// internal/service/session_service.go
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rig-service/internal/model"
	"rig-service/internal/rig"
	"rig-service/internal/storage"
	"rig-service/internal/utils"
)

// Broadcaster pushes live rig traffic to connected monitoring clients.
// Implemented by the websocket handler.
type Broadcaster interface {
	BroadcastAnalogBatch(batch model.AnalogBatch)
	BroadcastModuleBytes(moduleName string, data []byte)
	BroadcastStatus(flags model.RuntimeFlags)
}

// SessionService owns the recording session lifecycle. It is also the sink
// for both pollers: relayed module bytes and drained analog batches flow
// through here to the session store and out to the monitoring clients.
type SessionService struct {
	repo        storage.SessionRepository
	broadcaster Broadcaster
	logger      *utils.ServiceLogger

	mutex      sync.RWMutex
	controller *rig.Controller
	current    *model.Session
}

// NewSessionService creates a session service. repo may be nil when the
// service runs without a session store; traffic is then broadcast only.
func NewSessionService(repo storage.SessionRepository, broadcaster Broadcaster, logger *zap.Logger) *SessionService {
	return &SessionService{
		repo:        repo,
		broadcaster: broadcaster,
		logger:      utils.NewServiceLogger(logger, "session-service"),
	}
}

// BindController attaches the connected rig controller. Called once after
// connect; the service is constructed first because the controller needs it
// as its sink.
func (ss *SessionService) BindController(controller *rig.Controller) {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()
	ss.controller = controller
}

// StartSessionRequest carries session start parameters
type StartSessionRequest struct {
	Subject  string `json:"subject" binding:"required"`
	Protocol string `json:"protocol" binding:"required"`
}

// StartSession begins a recording session: resets per-session counters,
// raises the live flag and starts the analog streamer.
func (ss *SessionService) StartSession(ctx context.Context, req *StartSessionRequest) (*model.Session, error) {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()

	if ss.controller == nil {
		return nil, fmt.Errorf("no rig connected")
	}
	if ss.current != nil {
		return nil, fmt.Errorf("session %s is already running", ss.current.ID)
	}

	identity := ss.controller.Identity()
	session := &model.Session{
		ID:             uuid.New(),
		Subject:        req.Subject,
		Protocol:       req.Protocol,
		MachineType:    identity.MachineType.String(),
		Status:         model.SessionStatusLive,
		SamplingRateHz: ss.controller.Config.SamplingRateHz(),
		StartedAt:      time.Now(),
	}

	if ss.repo != nil {
		if err := ss.repo.CreateSession(ctx, session); err != nil {
			return nil, err
		}
	}

	status := ss.controller.Status()
	status.ResetSessionCounters()
	status.SetSessionStartFlag(true)
	status.SetLive(true)
	status.SetPause(false)

	if err := ss.controller.Streamer.Start(ctx, session.ID.String()); err != nil {
		status.SetLive(false)
		status.SetSessionStartFlag(false)
		if ss.repo != nil {
			if stopErr := ss.repo.StopSession(ctx, session.ID, time.Now()); stopErr != nil {
				ss.logger.Error("Failed to mark aborted session stopped", zap.Error(stopErr))
			}
		}
		return nil, fmt.Errorf("start analog streaming: %w", err)
	}

	ss.current = session
	ss.broadcastStatus()

	ss.logger.Info("Session started",
		zap.String("session_id", session.ID.String()),
		zap.String("subject", session.Subject),
		zap.String("protocol", session.Protocol),
		zap.Int("sampling_rate_hz", session.SamplingRateHz),
	)
	return session, nil
}

// PauseSession suspends analog draining without ending the session
func (ss *SessionService) PauseSession(ctx context.Context) (*model.Session, error) {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()

	if ss.current == nil {
		return nil, fmt.Errorf("no session is running")
	}

	ss.controller.Status().SetPause(true)
	ss.current.Status = model.SessionStatusPaused
	ss.broadcastStatus()

	ss.logger.Info("Session paused", zap.String("session_id", ss.current.ID.String()))
	return ss.current, nil
}

// ResumeSession resumes a paused session
func (ss *SessionService) ResumeSession(ctx context.Context) (*model.Session, error) {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()

	if ss.current == nil {
		return nil, fmt.Errorf("no session is running")
	}

	ss.controller.Status().SetPause(false)
	ss.current.Status = model.SessionStatusLive
	ss.broadcastStatus()

	ss.logger.Info("Session resumed", zap.String("session_id", ss.current.ID.String()))
	return ss.current, nil
}

// StopSession ends the running session: stops the streamer, drops the live
// flag and closes the session row.
func (ss *SessionService) StopSession(ctx context.Context) (*model.Session, error) {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()

	if ss.current == nil {
		return nil, fmt.Errorf("no session is running")
	}
	session := ss.current

	status := ss.controller.Status()
	status.SetLive(false)
	status.SetPause(false)
	status.SetSessionStartFlag(false)

	ss.controller.Streamer.Stop()

	now := time.Now()
	session.Status = model.SessionStatusStopped
	session.StoppedAt = &now

	if ss.repo != nil {
		if err := ss.repo.StopSession(ctx, session.ID, now); err != nil {
			ss.logger.Error("Failed to mark session stopped", zap.Error(err))
		}
	}

	ss.current = nil
	ss.broadcastStatus()

	ss.logger.Info("Session stopped",
		zap.String("session_id", session.ID.String()),
		zap.Uint64("analog_samples", status.AnalogSampleCount()),
	)
	return session, nil
}

// CurrentSession returns the running session, or nil
func (ss *SessionService) CurrentSession() *model.Session {
	ss.mutex.RLock()
	defer ss.mutex.RUnlock()

	if ss.current == nil {
		return nil
	}
	session := *ss.current
	return &session
}

// GetSession retrieves a session from the store
func (ss *SessionService) GetSession(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	if ss.repo == nil {
		return nil, fmt.Errorf("session store is not configured")
	}
	return ss.repo.GetSession(ctx, id)
}

// ListSessions retrieves the most recent sessions from the store
func (ss *SessionService) ListSessions(ctx context.Context, limit int) ([]*model.Session, error) {
	if ss.repo == nil {
		return nil, fmt.Errorf("session store is not configured")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return ss.repo.ListSessions(ctx, limit)
}

// OnAnalogBatch receives one drained analog batch from the streamer
func (ss *SessionService) OnAnalogBatch(batch model.AnalogBatch) {
	ss.mutex.RLock()
	current := ss.current
	ss.mutex.RUnlock()

	if ss.repo != nil && current != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := ss.repo.SaveAnalogBatch(ctx, current.ID, &batch); err != nil {
			ss.logger.Error("Failed to persist analog batch",
				zap.Error(err),
				zap.Int("samples", len(batch.Samples)),
			)
		}
		cancel()
	}

	if ss.broadcaster != nil {
		ss.broadcaster.BroadcastAnalogBatch(batch)
	}
}

// OnModuleBytes receives one chunk of relayed module traffic
func (ss *SessionService) OnModuleBytes(moduleName string, data []byte) {
	ss.mutex.RLock()
	current := ss.current
	ss.mutex.RUnlock()

	if ss.repo != nil && current != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := ss.repo.SaveModuleTraffic(ctx, current.ID, moduleName, data); err != nil {
			ss.logger.Error("Failed to persist module traffic",
				zap.Error(err),
				zap.String("module", moduleName),
			)
		}
		cancel()
	}

	if ss.broadcaster != nil {
		ss.broadcaster.BroadcastModuleBytes(moduleName, data)
	}
}

// broadcastStatus pushes a status snapshot; callers hold ss.mutex
func (ss *SessionService) broadcastStatus() {
	if ss.broadcaster != nil && ss.controller != nil {
		ss.broadcaster.BroadcastStatus(ss.controller.Status().Snapshot())
	}
}
