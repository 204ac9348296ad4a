// Package config provides node configuration loaded from environment
// variables with defaults and validation. It centralizes settings such as
// the HTTP listener, logging, storage mode, cache limits, fleet sync and
// observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage modes. Exactly one is active per deployment.
const (
	StorageLocal  = "local"  // per-process SQLite file
	StorageRemote = "remote" // shared relational database
)

// CORSConfig defines Cross-Origin Resource Sharing settings for the node API.
type CORSConfig struct {
	AllowedOrigins []string
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "chatsync")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// StorageConfig selects the backing store.
type StorageConfig struct {
	Mode          string // local|remote
	LocalPath     string // SQLite file, always opened (identity directory, server state)
	RemoteDialect string // sqlite|mysql|postgres
	RemoteDSN     string
}

// CacheConfig bounds the in-memory caches.
type CacheConfig struct {
	ReadChannelLimit    int           // default cap of read-mode channels per identity
	HistoryCap          int           // per-category interaction history size
	InactivityThreshold time.Duration // stored player records older than this are purged on load
	MailRetention       time.Duration // mail older than this is dropped on load
}

// SyncConfig configures the inter-node bus.
type SyncConfig struct {
	RelayURL    string        // where this node publishes packets; empty = standalone
	Peers       []string      // relay only: "name=url" entries of the nodes receiving packets
	Interval    time.Duration // full snapshot cadence
	DedupWindow time.Duration // identical packets within this window are dropped
	Token       string        // shared secret for packet endpoints
	StaleAfter  time.Duration // relay only: rosters older than this are forgotten
}

// LoopConfig configures the mutation context and worker pool.
type LoopConfig struct {
	Workers   int
	QueueSize int
	Tick      time.Duration // 0 = drain on demand
}

// Config holds all configuration values for a node or relay process.
type Config struct {
	// Server
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test

	// Logging / Docs
	LogLevel       string // trace|debug|info|warn|error|fatal|panic
	LogPretty      bool
	SwaggerEnabled bool
	APIBasePath    string

	// Node
	NodeName string

	Storage StorageConfig
	Cache   CacheConfig
	Sync    SyncConfig
	Loop    LoopConfig

	// Rate limiting
	RateRPS   float64
	RateBurst int

	CORS CORSConfig
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	host, _ := os.Hostname()

	cfg := Config{
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		NodeName: strings.TrimSpace(getenv("NODE_NAME", host)),

		Storage: StorageConfig{
			Mode:          strings.ToLower(getenv("STORAGE_MODE", StorageLocal)),
			LocalPath:     getenv("LOCAL_DB_PATH", "chatsync.db"),
			RemoteDialect: strings.ToLower(getenv("REMOTE_DB_DIALECT", "mysql")),
			RemoteDSN:     getenv("REMOTE_DB_DSN", ""),
		},

		Cache: CacheConfig{
			ReadChannelLimit:    getint("READ_CHANNEL_LIMIT", 3),
			HistoryCap:          getint("HISTORY_CAP", 100),
			InactivityThreshold: getdur("INACTIVITY_THRESHOLD", 90*24*time.Hour),
			MailRetention:       getdur("MAIL_RETENTION", 30*24*time.Hour),
		},

		Sync: SyncConfig{
			RelayURL:    strings.TrimRight(getenv("SYNC_RELAY_URL", ""), "/"),
			Peers:       splitCSV(getenv("SYNC_PEERS", "")),
			Interval:    getdur("SYNC_INTERVAL", 2*time.Second),
			DedupWindow: getdur("SYNC_DEDUP_WINDOW", 100*time.Millisecond),
			Token:       getenv("SYNC_TOKEN", ""),
			StaleAfter:  getdur("SYNC_STALE_AFTER", 10*time.Second),
		},

		Loop: LoopConfig{
			Workers:   getint("WORKERS", 4),
			QueueSize: getint("LOOP_QUEUE", 1024),
			Tick:      getdur("LOOP_TICK", 0),
		},

		RateRPS:   getfloat("RATE_RPS", 50.0),
		RateBurst: getint("RATE_BURST", 100),

		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "chatsync"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.Storage.RemoteDialect == "postgresql" {
		cfg.Storage.RemoteDialect = "postgres"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: trace, debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if cfg.NodeName == "" {
		return cfg, errors.New("NODE_NAME must not be empty")
	}
	switch cfg.Storage.Mode {
	case StorageLocal, StorageRemote:
	default:
		return cfg, errors.New("STORAGE_MODE must be one of: local, remote")
	}
	if strings.TrimSpace(cfg.Storage.LocalPath) == "" {
		return cfg, errors.New("LOCAL_DB_PATH must not be empty")
	}
	if cfg.Storage.Mode == StorageRemote {
		switch cfg.Storage.RemoteDialect {
		case "sqlite", "mysql", "postgres":
		default:
			return cfg, errors.New("REMOTE_DB_DIALECT must be one of: sqlite, mysql, postgres")
		}
		if strings.TrimSpace(cfg.Storage.RemoteDSN) == "" {
			return cfg, errors.New("REMOTE_DB_DSN is required when STORAGE_MODE=remote")
		}
	}
	if cfg.Cache.ReadChannelLimit < 0 {
		return cfg, errors.New("READ_CHANNEL_LIMIT must be >= 0")
	}
	if cfg.Cache.HistoryCap < 1 {
		return cfg, errors.New("HISTORY_CAP must be >= 1")
	}
	if cfg.Cache.InactivityThreshold <= 0 || cfg.Cache.MailRetention <= 0 {
		return cfg, errors.New("INACTIVITY_THRESHOLD and MAIL_RETENTION must be > 0")
	}
	if cfg.Sync.Interval <= 0 {
		return cfg, errors.New("SYNC_INTERVAL must be > 0")
	}
	if cfg.Sync.DedupWindow < 0 {
		return cfg, errors.New("SYNC_DEDUP_WINDOW must be >= 0")
	}
	if cfg.Sync.StaleAfter <= 0 {
		return cfg, errors.New("SYNC_STALE_AFTER must be > 0")
	}
	if cfg.Loop.Workers < 1 {
		return cfg, errors.New("WORKERS must be >= 1")
	}
	if cfg.Loop.QueueSize < 1 {
		return cfg, errors.New("LOOP_QUEUE must be >= 1")
	}
	if cfg.Loop.Tick < 0 {
		return cfg, errors.New("LOOP_TICK must be >= 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// Remote reports whether the shared relational store is active.
func (c Config) Remote() bool { return c.Storage.Mode == StorageRemote }

// ---- helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
