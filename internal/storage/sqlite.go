package storage

import (
	"context"
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"

	"visiontrack/internal/model"
)

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:visiontrack.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{db: db}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			exercise TEXT,
			started_at TEXT NOT NULL,
			ended_at TEXT,
			total_reps INTEGER NOT NULL DEFAULT 0,
			people_seen INTEGER NOT NULL DEFAULT 0,
			alerts_raised INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			ts TEXT NOT NULL,
			alert_type TEXT NOT NULL,
			person_id INTEGER NOT NULL,
			location_x REAL NOT NULL,
			location_y REAL NOT NULL,
			confidence REAL NOT NULL,
			description TEXT NOT NULL,
			session_id TEXT,
			resolved INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_ts ON alerts(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_session ON alerts(session_id)`,
		`CREATE TABLE IF NOT EXISTS rep_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			person_id INTEGER NOT NULL,
			exercise TEXT NOT NULL,
			rep_number INTEGER NOT NULL,
			angle REAL NOT NULL,
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

func (s *sqliteStore) SaveSession(ctx context.Context, session model.Session) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, mode, exercise, started_at, total_reps, people_seen, alerts_raised)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			total_reps = excluded.total_reps,
			people_seen = excluded.people_seen,
			alerts_raised = excluded.alerts_raised`,
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

func (s *sqliteStore) CloseSession(ctx context.Context, session model.Session) error {
	if s.db == nil || session.EndedAt == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ?, total_reps = ?, people_seen = ?, alerts_raised = ? WHERE session_id = ?`,
		session.EndedAt.UTC(),
		session.TotalReps,
		session.PeopleSeen,
		session.AlertsRaised,
		session.ID,
	)
	return err
}

func (s *sqliteStore) SaveAlert(ctx context.Context, alert model.Alert) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (id, ts, alert_type, person_id, location_x, location_y, confidence, description, session_id, resolved)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.ID,
		alert.Timestamp.UTC(),
		string(alert.Type),
		alert.PersonID,
		alert.Location.X,
		alert.Location.Y,
		alert.Confidence,
		alert.Description,
		alert.SessionID,
		boolToInt(alert.Resolved),
	)
	return err
}

func (s *sqliteStore) SaveRepEvent(ctx context.Context, rep model.RepEvent) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rep_events (ts, person_id, exercise, rep_number, angle, depth_quality, state, session_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
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

func (s *sqliteStore) ListSessions(ctx context.Context, limit int) ([]model.Session, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, mode, exercise, started_at, ended_at, total_reps, people_seen, alerts_raised
		FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSessions(rows)
}

func scanSessions(rows *sql.Rows) ([]model.Session, error) {
	out := make([]model.Session, 0)
	for rows.Next() {
		var s model.Session
		var mode string
		var exercise sql.NullString
		var ended sql.NullTime
		if err := rows.Scan(&s.ID, &mode, &exercise, &s.StartedAt, &ended, &s.TotalReps, &s.PeopleSeen, &s.AlertsRaised); err != nil {
			return nil, err
		}
		s.Mode = model.Mode(mode)
		if exercise.Valid {
			s.Exercise = exercise.String
		}
		if ended.Valid {
			t := ended.Time
			s.EndedAt = &t
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
