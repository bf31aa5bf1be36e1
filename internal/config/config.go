package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"visiontrack/internal/model"
)

// Duration accepts "10s"-style strings as well as integer nanoseconds, in
// both YAML and JSON.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw any
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := parseDuration(raw)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := parseDuration(raw)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func parseDuration(raw any) (time.Duration, error) {
	switch v := raw.(type) {
	case string:
		return time.ParseDuration(v)
	case int:
		return time.Duration(v), nil
	case int64:
		return time.Duration(v), nil
	case float64:
		return time.Duration(v), nil
	default:
		return 0, fmt.Errorf("cannot parse duration from %T", raw)
	}
}

type Config struct {
	LogLevel     string             `json:"log_level" yaml:"log_level"`
	Mode         model.Mode         `json:"mode" yaml:"mode"`
	Ingest       IngestConfig       `json:"ingest" yaml:"ingest"`
	Tracking     TrackingConfig     `json:"tracking" yaml:"tracking"`
	Fitness      FitnessConfig      `json:"fitness" yaml:"fitness"`
	Surveillance SurveillanceConfig `json:"surveillance" yaml:"surveillance"`
	API          APIConfig          `json:"api" yaml:"api"`
	Storage      StorageConfig      `json:"storage" yaml:"storage"`
	Notify       NotifyConfig       `json:"notify" yaml:"notify"`
	Alerts       AlertsConfig       `json:"alerts" yaml:"alerts"`
}

type IngestConfig struct {
	ChannelBuffer int             `json:"channel_buffer" yaml:"channel_buffer"`
	MinConfidence float64         `json:"min_confidence" yaml:"min_confidence"`
	REST          RESTConfig      `json:"rest" yaml:"rest"`
	TCPStream     TCPStreamConfig `json:"tcp_stream" yaml:"tcp_stream"`
	Kafka         KafkaConfig     `json:"kafka" yaml:"kafka"`
	Replay        ReplayConfig    `json:"replay" yaml:"replay"`
	DefaultCamera string          `json:"default_camera" yaml:"default_camera"`
}

type RESTConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type TCPStreamConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type KafkaConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
	GroupID string   `json:"group_id" yaml:"group_id"`
}

// ReplayConfig re-feeds recorded NDJSON frame files through the pipeline,
// paced by their embedded timestamps when Realtime is set.
type ReplayConfig struct {
	Enabled  bool     `json:"enabled" yaml:"enabled"`
	Files    []string `json:"files" yaml:"files"`
	Realtime bool     `json:"realtime" yaml:"realtime"`
	Loop     bool     `json:"loop" yaml:"loop"`
}

type TrackingConfig struct {
	MaxMatchDistance float64 `json:"max_match_distance" yaml:"max_match_distance"`
	MaxMissingFrames int     `json:"max_missing_frames" yaml:"max_missing_frames"`
	PositionHistory  int     `json:"position_history" yaml:"position_history"`
}

// ExerciseProfile holds the angle thresholds for one exercise. Inverted
// profiles (bicep curl) treat a shrinking angle as the working phase, so the
// upright threshold is the smaller value.
type ExerciseProfile struct {
	UprightThreshold float64 `json:"upright_threshold" yaml:"upright_threshold"`
	BottomThreshold  float64 `json:"bottom_threshold" yaml:"bottom_threshold"`
	GoodDepthMin     float64 `json:"good_depth_min" yaml:"good_depth_min"`
	GoodDepthMax     float64 `json:"good_depth_max" yaml:"good_depth_max"`
	Inverted         bool    `json:"inverted" yaml:"inverted"`
}

type FitnessConfig struct {
	Exercise         string                     `json:"exercise" yaml:"exercise"`
	SmoothingWindow  int                        `json:"smoothing_window" yaml:"smoothing_window"`
	MinStateDuration int                        `json:"min_state_duration" yaml:"min_state_duration"`
	MinVisibility    float64                    `json:"min_visibility" yaml:"min_visibility"`
	Exercises        map[string]ExerciseProfile `json:"exercises" yaml:"exercises"`
}

type SurveillanceConfig struct {
	RapidMovementThreshold float64             `json:"rapid_movement_threshold" yaml:"rapid_movement_threshold"`
	LoiterSpeedThreshold   float64             `json:"loiter_speed_threshold" yaml:"loiter_speed_threshold"`
	LoiterDuration         Duration            `json:"loiter_duration" yaml:"loiter_duration"`
	FallAngleThreshold     float64             `json:"fall_angle_threshold" yaml:"fall_angle_threshold"`
	FallMinDuration        Duration            `json:"fall_min_duration" yaml:"fall_min_duration"`
	MinVisibility          float64             `json:"min_visibility" yaml:"min_visibility"`
	Zones                  []model.Zone        `json:"zones" yaml:"zones"`
	DefaultCooldown        Duration            `json:"default_cooldown" yaml:"default_cooldown"`
	Cooldowns              map[string]Duration `json:"cooldowns" yaml:"cooldowns"`
}

// CooldownMap converts the per-type cooldown table to standard durations.
func (s SurveillanceConfig) CooldownMap() map[string]time.Duration {
	if len(s.Cooldowns) == 0 {
		return nil
	}
	out := make(map[string]time.Duration, len(s.Cooldowns))
	for k, v := range s.Cooldowns {
		out[k] = v.Std()
	}
	return out
}

type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type StorageConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Driver  string `json:"driver" yaml:"driver"`
	DSN     string `json:"dsn" yaml:"dsn"`
}

type NotifyConfig struct {
	ChannelBuffer int  `json:"channel_buffer" yaml:"channel_buffer"`
	WebSocket     bool `json:"websocket" yaml:"websocket"`
	Log           bool `json:"log" yaml:"log"`
}

type AlertsConfig struct {
	StoreLimit int `json:"store_limit" yaml:"store_limit"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Mode:     model.ModeFitness,
		Ingest: IngestConfig{
			ChannelBuffer: 1024,
			MinConfidence: 0.5,
			REST:          RESTConfig{Enabled: true, Addr: ":8080"},
			TCPStream:     TCPStreamConfig{Enabled: false, Addr: ":9000"},
			Kafka:         KafkaConfig{Enabled: false},
			Replay:        ReplayConfig{Enabled: false, Realtime: true},
			DefaultCamera: "cam0",
		},
		Tracking: TrackingConfig{
			MaxMatchDistance: 100,
			MaxMissingFrames: 30,
			PositionHistory:  50,
		},
		Fitness: FitnessConfig{
			Exercise:         "squat",
			SmoothingWindow:  5,
			MinStateDuration: 3,
			MinVisibility:    0.5,
			Exercises: map[string]ExerciseProfile{
				"squat": {
					UprightThreshold: 160,
					BottomThreshold:  100,
					GoodDepthMin:     90,
					GoodDepthMax:     110,
				},
				"pushup": {
					UprightThreshold: 160,
					BottomThreshold:  90,
					GoodDepthMin:     70,
					GoodDepthMax:     100,
				},
				"bicep_curl": {
					UprightThreshold: 40,
					BottomThreshold:  160,
					GoodDepthMin:     150,
					GoodDepthMax:     170,
					Inverted:         true,
				},
			},
		},
		Surveillance: SurveillanceConfig{
			RapidMovementThreshold: 300,
			LoiterSpeedThreshold:   10,
			LoiterDuration:         Duration(30 * time.Second),
			FallAngleThreshold:     45,
			FallMinDuration:        Duration(1 * time.Second),
			MinVisibility:          0.5,
			DefaultCooldown:        Duration(3 * time.Second),
			Cooldowns: map[string]Duration{
				string(model.AlertFall):      Duration(5 * time.Second),
				string(model.AlertZoneEntry): Duration(5 * time.Second),
			},
		},
		API:     APIConfig{Enabled: true, Addr: ":8081"},
		Storage: StorageConfig{Enabled: false, Driver: "sqlite", DSN: "file:visiontrack.db?_pragma=busy_timeout(5000)"},
		Notify:  NotifyConfig{ChannelBuffer: 256, WebSocket: true, Log: true},
		Alerts:  AlertsConfig{StoreLimit: 1000},
	}
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var decodeErr error
	if looksLikeJSON(trimmed) {
		decodeErr = json.Unmarshal([]byte(trimmed), cfg)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if path == "" || cfg == nil {
		return errors.New("config path or config is empty")
	}
	var data []byte
	var err error
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	if cfg.Mode == "" {
		cfg.Mode = model.ModeFitness
	}
	if cfg.Ingest.ChannelBuffer <= 0 {
		cfg.Ingest.ChannelBuffer = 1024
	}
	if cfg.Ingest.MinConfidence <= 0 {
		cfg.Ingest.MinConfidence = 0.5
	}
	if cfg.Ingest.DefaultCamera == "" {
		cfg.Ingest.DefaultCamera = "cam0"
	}
	if cfg.Tracking.MaxMatchDistance <= 0 {
		cfg.Tracking.MaxMatchDistance = 100
	}
	if cfg.Tracking.MaxMissingFrames <= 0 {
		cfg.Tracking.MaxMissingFrames = 30
	}
	if cfg.Tracking.PositionHistory <= 0 {
		cfg.Tracking.PositionHistory = 50
	}
	if cfg.Fitness.Exercise == "" {
		cfg.Fitness.Exercise = "squat"
	}
	if cfg.Fitness.SmoothingWindow <= 0 {
		cfg.Fitness.SmoothingWindow = 5
	}
	if cfg.Fitness.MinStateDuration <= 0 {
		cfg.Fitness.MinStateDuration = 3
	}
	if cfg.Fitness.MinVisibility <= 0 {
		cfg.Fitness.MinVisibility = 0.5
	}
	if len(cfg.Fitness.Exercises) == 0 {
		cfg.Fitness.Exercises = DefaultConfig().Fitness.Exercises
	}
	if cfg.Surveillance.MinVisibility <= 0 {
		cfg.Surveillance.MinVisibility = 0.5
	}
	if cfg.Surveillance.DefaultCooldown <= 0 {
		cfg.Surveillance.DefaultCooldown = Duration(3 * time.Second)
	}
	if cfg.Notify.ChannelBuffer <= 0 {
		cfg.Notify.ChannelBuffer = 256
	}
	if cfg.Alerts.StoreLimit <= 0 {
		cfg.Alerts.StoreLimit = 1000
	}
}

func Validate(cfg *Config) error {
	if cfg.Mode != model.ModeFitness && cfg.Mode != model.ModeSurveillance {
		return fmt.Errorf("mode must be %q or %q", model.ModeFitness, model.ModeSurveillance)
	}
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	if cfg.Ingest.REST.Enabled && cfg.Ingest.REST.Addr == "" {
		return errors.New("ingest.rest.addr required when ingest.rest.enabled is true")
	}
	if cfg.Ingest.TCPStream.Enabled && cfg.Ingest.TCPStream.Addr == "" {
		return errors.New("ingest.tcp_stream.addr required when ingest.tcp_stream.enabled is true")
	}
	if cfg.Ingest.Kafka.Enabled {
		if len(cfg.Ingest.Kafka.Brokers) == 0 || cfg.Ingest.Kafka.Topic == "" || cfg.Ingest.Kafka.GroupID == "" {
			return errors.New("ingest.kafka requires brokers, topic, group_id")
		}
	}
	if cfg.Ingest.Replay.Enabled && len(cfg.Ingest.Replay.Files) == 0 {
		return errors.New("ingest.replay.files required when ingest.replay.enabled is true")
	}
	if cfg.Mode == model.ModeFitness {
		if _, ok := cfg.Fitness.Exercises[cfg.Fitness.Exercise]; !ok {
			return fmt.Errorf("unknown exercise type: %q", cfg.Fitness.Exercise)
		}
	}
	for name, profile := range cfg.Fitness.Exercises {
		if profile.UprightThreshold == profile.BottomThreshold {
			return fmt.Errorf("exercise %q: upright and bottom thresholds must differ", name)
		}
		if !profile.Inverted && profile.UprightThreshold < profile.BottomThreshold {
			return fmt.Errorf("exercise %q: upright threshold must exceed bottom threshold", name)
		}
		if profile.Inverted && profile.UprightThreshold > profile.BottomThreshold {
			return fmt.Errorf("inverted exercise %q: upright threshold must be below bottom threshold", name)
		}
	}
	for _, zone := range cfg.Surveillance.Zones {
		if len(zone.Points) < 3 {
			return fmt.Errorf("zone %d (%s): polygon needs at least 3 points", zone.ID, zone.Name)
		}
	}
	if cfg.Surveillance.RapidMovementThreshold < 0 || cfg.Surveillance.LoiterSpeedThreshold < 0 {
		return errors.New("surveillance speed thresholds must be >= 0")
	}
	return nil
}

type Manager struct {
	path    string
	cfg     atomic.Value
	modTime time.Time
}

func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{path: path}
	m.cfg.Store(cfg)
	info, err := os.Stat(path)
	if err == nil {
		m.modTime = info.ModTime()
	}
	return m, nil
}

// NewManagerFromConfig wraps an in-memory config, for callers that run
// without a config file.
func NewManagerFromConfig(cfg *Config) *Manager {
	m := &Manager{}
	applyDefaults(cfg)
	m.cfg.Store(cfg)
	return m
}

func (m *Manager) Get() *Config {
	if v := m.cfg.Load(); v != nil {
		return v.(*Config)
	}
	return DefaultConfig()
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) Reload() (*Config, error) {
	if m.path == "" {
		return nil, errors.New("no config file to reload")
	}
	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	m.cfg.Store(cfg)
	if info, err := os.Stat(m.path); err == nil {
		m.modTime = info.ModTime()
	}
	return cfg, nil
}

func (m *Manager) Update(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if m.path != "" {
		if err := Save(m.path, cfg); err != nil {
			return err
		}
	}
	m.cfg.Store(cfg)
	if info, err := os.Stat(m.path); err == nil {
		m.modTime = info.ModTime()
	}
	return nil
}

func (m *Manager) NeedsReload() (bool, error) {
	if m.path == "" {
		return false, nil
	}
	info, err := os.Stat(m.path)
	if err != nil {
		return false, err
	}
	return info.ModTime().After(m.modTime), nil
}

func (m *Manager) Watch(interval time.Duration, onReload func(*Config), onError func(error), stop <-chan struct{}) {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			needs, err := m.NeedsReload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if !needs {
				continue
			}
			cfg, err := m.Reload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if onReload != nil {
				onReload(cfg)
			}
		case <-stop:
			return
		}
	}
}

func ResolvePath(path string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	return filepath.Join(cwd, path)
}
