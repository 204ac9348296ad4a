package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

// --- MustLoad ---

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose")
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

func TestMustLoad_Success_NoPanic(t *testing.T) {
	t.Setenv("NODE_NAME", "lobby")
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("MustLoad should not panic on valid defaults, got: %v", r)
		}
	}()
	cfg := MustLoad()
	if cfg.NodeName != "lobby" || cfg.Storage.Mode != StorageLocal {
		t.Fatalf("unexpected config from MustLoad: %+v", cfg)
	}
}

// --- Load success + normalization + parsing ---

func TestLoad_Success_DefaultsAndOverrides(t *testing.T) {
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("GIN_MODE", "weird") // normalizes to "release"
	t.Setenv("LOG_LEVEL", "warning")
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("API_BASE_PATH", "api/v2/")

	t.Setenv("NODE_NAME", " survival-1 ")
	t.Setenv("STORAGE_MODE", "REMOTE")
	t.Setenv("REMOTE_DB_DIALECT", "postgresql")
	t.Setenv("REMOTE_DB_DSN", "host=db user=chat")
	t.Setenv("LOCAL_DB_PATH", "node.db")

	t.Setenv("READ_CHANNEL_LIMIT", "5")
	t.Setenv("HISTORY_CAP", "nope") // default 100
	t.Setenv("MAIL_RETENTION", "48h")

	t.Setenv("SYNC_RELAY_URL", "http://relay:9000/")
	t.Setenv("SYNC_PEERS", " http://a:8080 , , http://b:8080 ")
	t.Setenv("SYNC_DEDUP_WINDOW", "250ms")
	t.Setenv("SYNC_TOKEN", "s3cret")

	t.Setenv("WORKERS", "8")
	t.Setenv("LOOP_TICK", "50ms")

	t.Setenv("CORS_ALLOWED_ORIGINS", " https://panel.example , ")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "8088" || cfg.ReadTimeout != 2*time.Second || cfg.GinMode != "release" {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}
	if cfg.LogLevel != "warn" || !cfg.LogPretty || cfg.APIBasePath != "/api/v2" {
		t.Fatalf("logging/docs unexpected: %+v", cfg)
	}
	if cfg.NodeName != "survival-1" {
		t.Fatalf("node name not trimmed: %q", cfg.NodeName)
	}
	if !cfg.Remote() || cfg.Storage.RemoteDialect != "postgres" || cfg.Storage.LocalPath != "node.db" {
		t.Fatalf("storage unexpected: %+v", cfg.Storage)
	}
	if cfg.Cache.ReadChannelLimit != 5 || cfg.Cache.HistoryCap != 100 || cfg.Cache.MailRetention != 48*time.Hour {
		t.Fatalf("cache unexpected: %+v", cfg.Cache)
	}
	if cfg.Sync.RelayURL != "http://relay:9000" {
		t.Fatalf("relay url not trimmed: %q", cfg.Sync.RelayURL)
	}
	if !reflect.DeepEqual(cfg.Sync.Peers, []string{"http://a:8080", "http://b:8080"}) {
		t.Fatalf("peers unexpected: %#v", cfg.Sync.Peers)
	}
	if cfg.Sync.DedupWindow != 250*time.Millisecond || cfg.Sync.Token != "s3cret" {
		t.Fatalf("sync unexpected: %+v", cfg.Sync)
	}
	if cfg.Loop.Workers != 8 || cfg.Loop.Tick != 50*time.Millisecond {
		t.Fatalf("loop unexpected: %+v", cfg.Loop)
	}
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://panel.example"}) {
		t.Fatalf("cors origins unexpected: %#v", cfg.CORS.AllowedOrigins)
	}
	if cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel unexpected: %+v", cfg.OTEL)
	}
}

func TestLoad_DefaultDedupWindowIs100ms(t *testing.T) {
	t.Setenv("NODE_NAME", "n1")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Sync.DedupWindow != 100*time.Millisecond {
		t.Fatalf("dedup window = %v; want 100ms", cfg.Sync.DedupWindow)
	}
	if cfg.Remote() {
		t.Fatalf("default storage mode should be local")
	}
}

// --- Load validations (each case triggers exactly one validation error) ---

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"invalid LOG_LEVEL", map[string]string{"LOG_LEVEL": "verbose"}, "LOG_LEVEL"},
		{"empty PORT", map[string]string{"PORT": "   "}, "PORT must not be empty"},
		{"non-positive timeouts", map[string]string{"READ_TIMEOUT": "0s"}, "timeouts must be positive"},
		{"max header bytes", map[string]string{"MAX_HEADER_BYTES": "0"}, "MAX_HEADER_BYTES"},
		{"bad storage mode", map[string]string{"STORAGE_MODE": "s3"}, "STORAGE_MODE"},
		{"empty local path", map[string]string{"LOCAL_DB_PATH": "  "}, "LOCAL_DB_PATH"},
		{"remote without dsn", map[string]string{"STORAGE_MODE": "remote"}, "REMOTE_DB_DSN"},
		{"remote bad dialect", map[string]string{"STORAGE_MODE": "remote", "REMOTE_DB_DIALECT": "oracle", "REMOTE_DB_DSN": "x"}, "REMOTE_DB_DIALECT"},
		{"negative read limit", map[string]string{"READ_CHANNEL_LIMIT": "-1"}, "READ_CHANNEL_LIMIT"},
		{"history cap", map[string]string{"HISTORY_CAP": "0"}, "HISTORY_CAP"},
		{"retention", map[string]string{"MAIL_RETENTION": "0s"}, "MAIL_RETENTION"},
		{"sync interval", map[string]string{"SYNC_INTERVAL": "0s"}, "SYNC_INTERVAL"},
		{"dedup window", map[string]string{"SYNC_DEDUP_WINDOW": "-1ms"}, "SYNC_DEDUP_WINDOW"},
		{"workers", map[string]string{"WORKERS": "0"}, "WORKERS"},
		{"loop tick", map[string]string{"LOOP_TICK": "-1s"}, "LOOP_TICK"},
		{"rate rps", map[string]string{"RATE_RPS": "-1"}, "RATE_RPS"},
		{"rate burst", map[string]string{"RATE_BURST": "0"}, "RATE_BURST"},
		{"otel ratio", map[string]string{"OTEL_TRACES_SAMPLER_ARG": "1.5"}, "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("NODE_NAME", "n1")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got: %v", tc.want, err)
			}
		})
	}
}

// --- helpers ---

func TestHelpers_getenv(t *testing.T) {
	t.Setenv("X_EMPTY", "")
	if getenv("X_EMPTY", "d") != "d" {
		t.Fatalf("getenv should fall back to default on empty var")
	}
	t.Setenv("X_SET", "val")
	if getenv("X_SET", "d") != "val" {
		t.Fatalf("getenv should read set value")
	}
}

func TestHelpers_getbool(t *testing.T) {
	for _, v := range []string{"1", "true", " yes ", "Y", "On"} {
		t.Setenv("B_T", v)
		if !getbool("B_T", false) {
			t.Fatalf("getbool(%q) = false; want true", v)
		}
	}
	for _, v := range []string{"0", "FALSE", " no ", "n", "off"} {
		t.Setenv("B_F", v)
		if getbool("B_F", true) {
			t.Fatalf("getbool(%q) = true; want false", v)
		}
	}
	t.Setenv("B_BAD", "maybe")
	if !getbool("B_BAD", true) {
		t.Fatalf("getbool should keep default on unknown value")
	}
}

func TestHelpers_splitCSV_and_normalizeBasePath(t *testing.T) {
	if out := splitCSV(""); out != nil {
		t.Fatalf("splitCSV empty should return nil")
	}
	if got := splitCSV(" a, ,b ,"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("splitCSV mismatch: %#v", got)
	}
	if normalizeBasePath("") != "/" || normalizeBasePath("v1") != "/v1" || normalizeBasePath("/v1/") != "/v1" {
		t.Fatalf("normalizeBasePath unexpected")
	}
}

func TestMain(m *testing.M) {
	os.Unsetenv("PORT")
	os.Unsetenv("STORAGE_MODE")
	os.Exit(m.Run())
}
