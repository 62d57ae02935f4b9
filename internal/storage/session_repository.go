// internal/storage/session_repository.go
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"rig-service/internal/model"
)

// SessionRepository defines session store access
type SessionRepository interface {
	CreateSession(ctx context.Context, session *model.Session) error
	StopSession(ctx context.Context, id uuid.UUID, stoppedAt time.Time) error
	GetSession(ctx context.Context, id uuid.UUID) (*model.Session, error)
	ListSessions(ctx context.Context, limit int) ([]*model.Session, error)

	SaveAnalogBatch(ctx context.Context, sessionID uuid.UUID, batch *model.AnalogBatch) error
	SaveModuleTraffic(ctx context.Context, sessionID uuid.UUID, moduleName string, data []byte) error
}

// sessionRepository implements SessionRepository on Postgres
type sessionRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewSessionRepository creates a session repository
func NewSessionRepository(db *DB, logger *zap.Logger) SessionRepository {
	return &sessionRepository{
		db:     db,
		logger: logger,
	}
}

// CreateSession inserts a new live session
func (r *sessionRepository) CreateSession(ctx context.Context, session *model.Session) error {
	query := `
		INSERT INTO sessions (id, subject, protocol, machine_type, status, sampling_rate_hz, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		session.ID, session.Subject, session.Protocol, session.MachineType,
		session.Status, session.SamplingRateHz, session.StartedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create session", zap.Error(err), zap.String("session_id", session.ID.String()))
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// StopSession marks a session stopped
func (r *sessionRepository) StopSession(ctx context.Context, id uuid.UUID, stoppedAt time.Time) error {
	query := `UPDATE sessions SET status = $1, stopped_at = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, model.SessionStatusStopped, stoppedAt, id)
	if err != nil {
		return fmt.Errorf("failed to stop session: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("session not found: %s", id)
	}
	return nil
}

// GetSession retrieves one session
func (r *sessionRepository) GetSession(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	query := `
		SELECT id, subject, protocol, machine_type, status, sampling_rate_hz, started_at, stopped_at
		FROM sessions WHERE id = $1
	`

	session := &model.Session{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&session.ID, &session.Subject, &session.Protocol, &session.MachineType,
		&session.Status, &session.SamplingRateHz, &session.StartedAt, &session.StoppedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("session not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// ListSessions returns the most recent sessions
func (r *sessionRepository) ListSessions(ctx context.Context, limit int) ([]*model.Session, error) {
	query := `
		SELECT id, subject, protocol, machine_type, status, sampling_rate_hz, started_at, stopped_at
		FROM sessions ORDER BY started_at DESC LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		session := &model.Session{}
		if err := rows.Scan(
			&session.ID, &session.Subject, &session.Protocol, &session.MachineType,
			&session.Status, &session.SamplingRateHz, &session.StartedAt, &session.StoppedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// SaveAnalogBatch stores one drained batch of analog samples
func (r *sessionRepository) SaveAnalogBatch(ctx context.Context, sessionID uuid.UUID, batch *model.AnalogBatch) error {
	if len(batch.Samples) == 0 {
		return nil
	}

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin analog batch txn: %w", err)
	}

	stmt, err := txn.PrepareContext(ctx, pq.CopyIn("analog_samples",
		"session_id", "sample_index", "device_timestamp", "channel_values"))
	if err != nil {
		txn.Rollback()
		return fmt.Errorf("failed to prepare analog copy: %w", err)
	}

	for _, sample := range batch.Samples {
		values := make([]int64, len(sample.Values))
		for i, v := range sample.Values {
			values[i] = int64(v)
		}
		if _, err := stmt.ExecContext(ctx, sessionID, int64(sample.Index), int64(sample.Timestamp), pq.Array(values)); err != nil {
			stmt.Close()
			txn.Rollback()
			return fmt.Errorf("failed to copy analog sample: %w", err)
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		txn.Rollback()
		return fmt.Errorf("failed to flush analog copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		txn.Rollback()
		return fmt.Errorf("failed to close analog copy: %w", err)
	}

	if err := txn.Commit(); err != nil {
		return fmt.Errorf("failed to commit analog batch: %w", err)
	}
	return nil
}

// SaveModuleTraffic stores one chunk of relayed module bytes
func (r *sessionRepository) SaveModuleTraffic(ctx context.Context, sessionID uuid.UUID, moduleName string, data []byte) error {
	query := `
		INSERT INTO module_traffic (session_id, module_name, payload, received_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.ExecContext(ctx, query, sessionID, moduleName, data, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save module traffic: %w", err)
	}
	return nil
}
