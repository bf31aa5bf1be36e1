package storage

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"visiontrack/internal/model"
)

type postgresStore struct {
	baseStore
}

func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/visiontrack?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{baseStore{db: db}}, nil
}

func (s *postgresStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			exercise TEXT,
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ,
			total_reps BIGINT NOT NULL DEFAULT 0,
			people_seen BIGINT NOT NULL DEFAULT 0,
			alerts_raised BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			alert_type TEXT NOT NULL,
			person_id BIGINT NOT NULL,
			location_x DOUBLE PRECISION NOT NULL,
			location_y DOUBLE PRECISION NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			description TEXT NOT NULL,
			session_id TEXT,
			resolved BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_ts ON alerts(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_session ON alerts(session_id)`,
		`CREATE TABLE IF NOT EXISTS rep_events (
			id BIGSERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			person_id BIGINT NOT NULL,
			exercise TEXT NOT NULL,
			rep_number INTEGER NOT NULL,
			angle DOUBLE PRECISION NOT NULL,
			depth_quality TEXT NOT NULL,
			state TEXT NOT NULL,
			session_id TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reps_session ON rep_events(session_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *postgresStore) SaveSession(ctx context.Context, session model.Session) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, mode, exercise, started_at, total_reps, people_seen, alerts_raised)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id) DO UPDATE SET
			total_reps = EXCLUDED.total_reps,
			people_seen = EXCLUDED.people_seen,
			alerts_raised = EXCLUDED.alerts_raised`,
		session.ID,
		string(session.Mode),
		session.Exercise,
		session.StartedAt.UTC(),
		session.TotalReps,
		session.PeopleSeen,
		session.AlertsRaised,
	)
	return err
}

func (s *postgresStore) CloseSession(ctx context.Context, session model.Session) error {
	if s.db == nil || session.EndedAt == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = $1, total_reps = $2, people_seen = $3, alerts_raised = $4 WHERE session_id = $5`,
		session.EndedAt.UTC(),
		session.TotalReps,
		session.PeopleSeen,
		session.AlertsRaised,
		session.ID,
	)
	return err
}

func (s *postgresStore) SaveAlert(ctx context.Context, alert model.Alert) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (id, ts, alert_type, person_id, location_x, location_y, confidence, description, session_id, resolved)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		alert.ID,
		alert.Timestamp.UTC(),
		string(alert.Type),
		alert.PersonID,
		alert.Location.X,
		alert.Location.Y,
		alert.Confidence,
		alert.Description,
		alert.SessionID,
		alert.Resolved,
	)
	return err
}

func (s *postgresStore) SaveRepEvent(ctx context.Context, rep model.RepEvent) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rep_events (ts, person_id, exercise, rep_number, angle, depth_quality, state, session_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rep.Timestamp.UTC(),
		rep.PersonID,
		rep.Exercise,
		rep.RepNumber,
		rep.Angle,
		string(rep.DepthQuality),
		string(rep.State),
		rep.SessionID,
	)
	return err
}

func (s *postgresStore) ListSessions(ctx context.Context, limit int) ([]model.Session, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, mode, exercise, started_at, ended_at, total_reps, people_seen, alerts_raised
		FROM sessions ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSessions(rows)
}
