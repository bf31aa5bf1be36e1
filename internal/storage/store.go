package storage

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"visiontrack/internal/config"
	"visiontrack/internal/model"
	"visiontrack/internal/notify"
)

// Store is the durable persistence boundary. A nil Store is valid and means
// persistence is disabled.
type Store interface {
	Init(ctx context.Context) error
	Close() error
	SaveSession(ctx context.Context, session model.Session) error
	CloseSession(ctx context.Context, session model.Session) error
	SaveAlert(ctx context.Context, alert model.Alert) error
	SaveRepEvent(ctx context.Context, rep model.RepEvent) error
	ListSessions(ctx context.Context, limit int) ([]model.Session, error)
}

func NewStore(cfg config.StorageConfig) (Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	default:
		return nil, errors.New("unsupported storage driver")
	}
}

type baseStore struct {
	db *sql.DB
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

// Notifier adapts a Store to the notify boundary so writes happen on the
// dispatcher goroutine, off the frame loop. Write failures are logged by the
// dispatcher and never surface to the pipeline.
type Notifier struct {
	store  Store
	logger *slog.Logger
}

func NewNotifier(store Store, logger *slog.Logger) *Notifier {
	return &Notifier{store: store, logger: logger}
}

func (n *Notifier) Name() string { return "storage" }

func (n *Notifier) Notify(ctx context.Context, ev notify.Event) error {
	if n.store == nil {
		return nil
	}
	switch ev.Kind {
	case notify.KindRep:
		if ev.Rep != nil {
			return n.store.SaveRepEvent(ctx, *ev.Rep)
		}
	case notify.KindAlert:
		if ev.Alert != nil {
			return n.store.SaveAlert(ctx, *ev.Alert)
		}
	}
	return nil
}
