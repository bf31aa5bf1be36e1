package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"visiontrack/internal/alerts"
	"visiontrack/internal/config"
	"visiontrack/internal/model"
	"visiontrack/internal/notify"
	"visiontrack/internal/storage"
)

// EngineControl is the slice of the engine the API needs.
type EngineControl interface {
	Reset(ctx context.Context)
	Session() model.Session
	Stats() model.StatsSnapshot
	Mode() model.Mode
}

type Server struct {
	cfg     *config.Manager
	alerts  *alerts.Store
	engine  EngineControl
	store   storage.Store
	hub     *notify.Hub
	logger  *slog.Logger
	version string
}

type statusResponse struct {
	Status     string       `json:"status"`
	Time       string       `json:"time"`
	Version    string       `json:"version"`
	ConfigPath string       `json:"config_path"`
	Mode       model.Mode   `json:"mode"`
	Exercise   string       `json:"exercise,omitempty"`
	Session    string       `json:"session_id"`
	Ingest     ingestStatus `json:"ingest"`
	API        apiStatus    `json:"api"`
}

type ingestStatus struct {
	REST      bool `json:"rest"`
	TCPStream bool `json:"tcp_stream"`
	Kafka     bool `json:"kafka"`
	Replay    bool `json:"replay"`
}

type apiStatus struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

func Start(ctx context.Context, cfg *config.Manager, alertsStore *alerts.Store, engine EngineControl, store storage.Store, hub *notify.Hub, logger *slog.Logger, version string) *http.Server {
	if cfg == nil {
		return nil
	}
	current := cfg.Get().API
	if !current.Enabled {
		if logger != nil {
			logger.Info("api disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("api enabled", "addr", current.Addr)
	}
	server := &Server{
		cfg:     cfg,
		alerts:  alertsStore,
		engine:  engine,
		store:   store,
		hub:     hub,
		logger:  logger,
		version: version,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/status", server.handleStatus)
	mux.HandleFunc("/stats", server.handleStats)
	mux.HandleFunc("/alerts", server.handleAlerts)
	mux.HandleFunc("/alerts/", server.handleAlertByID)
	mux.HandleFunc("/sessions", server.handleSessions)
	mux.HandleFunc("/zones", server.handleZones)
	mux.HandleFunc("/admin/reset", server.handleReset)
	if hub != nil {
		mux.HandleFunc("/ws", hub.ServeWS)
	}

	httpServer := &http.Server{Addr: current.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cfg := s.cfg.Get()
	session := s.engine.Session()
	resp := statusResponse{
		Status:     "ok",
		Time:       time.Now().UTC().Format(time.RFC3339Nano),
		Version:    s.version,
		ConfigPath: s.cfg.Path(),
		Mode:       s.engine.Mode(),
		Exercise:   session.Exercise,
		Session:    session.ID,
		Ingest: ingestStatus{
			REST:      cfg.Ingest.REST.Enabled,
			TCPStream: cfg.Ingest.TCPStream.Enabled,
			Kafka:     cfg.Ingest.Kafka.Enabled,
			Replay:    cfg.Ingest.Replay.Enabled,
		},
		API: apiStatus{Enabled: cfg.API.Enabled, Addr: cfg.API.Addr},
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Stats())
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	var list []model.Alert
	switch {
	case q.Get("since") != "":
		ts, err := time.Parse(time.RFC3339, q.Get("since"))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		list = s.alerts.Since(ts)
	case q.Get("person_id") != "":
		id, err := strconv.ParseInt(q.Get("person_id"), 10, 64)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		list = s.alerts.ByPerson(id)
	case q.Get("unresolved") == "true":
		list = s.alerts.Unresolved()
	default:
		list = s.alerts.List(limit)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": list,
		"count":  len(list),
	})
}

// handleAlertByID serves POST /alerts/{id}/resolve.
func (s *Server) handleAlertByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/alerts/")
	id, action, found := strings.Cut(rest, "/")
	if !found || action != "resolve" || id == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.alerts.Resolve(id) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "id": id})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	current := s.engine.Session()
	var history []model.Session
	if s.store != nil {
		list, err := s.store.ListSessions(r.Context(), limit)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("session list failed", "err", err)
			}
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		history = list
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"current":  current,
		"sessions": history,
		"count":    len(history),
	})
}

func (s *Server) handleZones(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	zones := s.cfg.Get().Surveillance.Zones
	if zones == nil {
		zones = []model.Zone{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"zones": zones,
		"count": len(zones),
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.engine.Reset(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"session_id": s.engine.Session().ID,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
