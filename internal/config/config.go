package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Recognition RecognitionConfig `yaml:"recognition"`
	Index       IndexConfig       `yaml:"index"`
	Attendance  AttendanceConfig  `yaml:"attendance"`
	Cameras     CamerasConfig     `yaml:"cameras"`
	Vision      VisionConfig      `yaml:"vision"`
	Database    DatabaseConfig    `yaml:"database"`
	Web         WebConfig         `yaml:"web"`
}

type RecognitionConfig struct {
	// Threshold is the minimum cosine similarity for accepting a match.
	Threshold float64 `yaml:"threshold"`
	// Dim is the embedding dimension; every enrolled and queried vector must match it.
	Dim int `yaml:"dim"`
}

type IndexConfig struct {
	// HNSWThreshold is the gallery size above which the approximate HNSW
	// graph is used instead of the exact flat scan.
	HNSWThreshold int `yaml:"hnsw_threshold"`
	// Path to persist the serving index (optional, rebuilt from the gallery if empty).
	Path string `yaml:"path"`
}

type AttendanceConfig struct {
	// Window is the deduplication interval: at most one committed entry
	// per identity per window.
	Window time.Duration `yaml:"window"`
	// DebounceHits is the number of accepted matches required within a
	// window before the entry is committed. 1 commits on first accept.
	DebounceHits int `yaml:"debounce_hits"`
	// CommitRetries bounds commit attempts per flush cycle.
	CommitRetries int `yaml:"commit_retries"`
	// FlushInterval drives the background retry/rollover loop.
	FlushInterval time.Duration `yaml:"flush_interval"`
	// PerCamera scopes deduplication to (identity, camera) instead of identity.
	PerCamera bool `yaml:"per_camera"`
}

type CamerasConfig struct {
	QueueSize     int `yaml:"queue_size"`     // frames buffered per camera
	MaxFailures   int `yaml:"max_failures"`   // consecutive failures before a camera is marked degraded
	RecentMatches int `yaml:"recent_matches"` // match results kept per camera for the API
}

type VisionConfig struct {
	URL string `yaml:"url"` // face detection/embedding service, defaults to http://localhost:8000
}

type DatabaseConfig struct {
	SQLitePath   string `yaml:"sqlite_path"`  // attendance database, defaults to attendance.db
	PostgresURL  string `yaml:"postgres_url"` // optional pgvector-backed gallery storage
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

type WebConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a float64, falling back on parse failure.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

// envDuration reads an environment variable as a time.Duration (e.g. "24h", "90s").
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

// envBool reads an environment variable as a bool ("true"/"1"/"false"/"0").
func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

func envOr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// Load builds the configuration from the embedded defaults overridden by
// environment variables. Load never fails; Validate reports fatal problems.
func Load() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// Embedded file, a parse failure is a build defect.
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	cfg.Recognition.Threshold = envFloat("RECOGNITION_THRESHOLD", cfg.Recognition.Threshold)
	cfg.Recognition.Dim = envInt("EMBEDDING_DIM", cfg.Recognition.Dim)

	cfg.Index.HNSWThreshold = envInt("INDEX_HNSW_THRESHOLD", cfg.Index.HNSWThreshold)
	cfg.Index.Path = envOr("INDEX_PATH", cfg.Index.Path)

	cfg.Attendance.Window = envDuration("ATTENDANCE_WINDOW", cfg.Attendance.Window)
	cfg.Attendance.DebounceHits = envInt("ATTENDANCE_DEBOUNCE_HITS", cfg.Attendance.DebounceHits)
	cfg.Attendance.CommitRetries = envInt("ATTENDANCE_COMMIT_RETRIES", cfg.Attendance.CommitRetries)
	cfg.Attendance.FlushInterval = envDuration("ATTENDANCE_FLUSH_INTERVAL", cfg.Attendance.FlushInterval)
	cfg.Attendance.PerCamera = envBool("ATTENDANCE_PER_CAMERA", cfg.Attendance.PerCamera)

	cfg.Cameras.QueueSize = envInt("CAMERA_QUEUE_SIZE", cfg.Cameras.QueueSize)
	cfg.Cameras.MaxFailures = envInt("CAMERA_MAX_FAILURES", cfg.Cameras.MaxFailures)
	cfg.Cameras.RecentMatches = envInt("CAMERA_RECENT_MATCHES", cfg.Cameras.RecentMatches)

	cfg.Vision.URL = envOr("VISION_URL", cfg.Vision.URL)

	cfg.Database.SQLitePath = envOr("ATTENDANCE_DB_PATH", cfg.Database.SQLitePath)
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "attendance.db"
	}
	cfg.Database.PostgresURL = envOr("DATABASE_URL", cfg.Database.PostgresURL)
	cfg.Database.MaxOpenConns = envInt("DATABASE_MAX_OPEN_CONNS", 25)
	cfg.Database.MaxIdleConns = envInt("DATABASE_MAX_IDLE_CONNS", 5)

	cfg.Web.Host = envOr("WEB_HOST", "0.0.0.0")
	cfg.Web.Port = envInt("WEB_PORT", 8080)

	return &cfg
}

// Validate checks settings that must hold before serving starts.
// A failure here is fatal at startup, never handled per request.
func (c *Config) Validate() error {
	if c.Recognition.Threshold <= 0 || c.Recognition.Threshold > 1 {
		return fmt.Errorf("recognition threshold must be in (0, 1], got %g", c.Recognition.Threshold)
	}
	if c.Recognition.Dim <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.Recognition.Dim)
	}
	if c.Attendance.Window <= 0 {
		return fmt.Errorf("attendance window must be positive, got %s", c.Attendance.Window)
	}
	if c.Attendance.DebounceHits < 1 {
		return fmt.Errorf("attendance debounce hits must be >= 1, got %d", c.Attendance.DebounceHits)
	}
	if c.Cameras.QueueSize < 1 {
		return fmt.Errorf("camera queue size must be >= 1, got %d", c.Cameras.QueueSize)
	}
	return nil
}
