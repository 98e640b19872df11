package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNew_Defaults(t *testing.T) {
	cfg, err := New("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != DefaultPort {
		t.Errorf("Port() = %d, want %d", cfg.Port(), DefaultPort)
	}
	if cfg.SignedURLTTL() != time.Hour {
		t.Errorf("SignedURLTTL() = %s, want 1h", cfg.SignedURLTTL())
	}
	if cfg.RenderConcurrency() != 1 {
		t.Errorf("RenderConcurrency() = %d, want 1", cfg.RenderConcurrency())
	}
	if cfg.CatalogDriver() != DriverMongo || cfg.StorageDriver() != DriverS3 {
		t.Errorf("drivers = %s/%s, want mongo/s3", cfg.CatalogDriver(), cfg.StorageDriver())
	}
	if !strings.HasSuffix(cfg.DBPath(), DBFilename) {
		t.Errorf("DBPath() = %q", cfg.DBPath())
	}
}

func TestNew_EnvOverrides(t *testing.T) {
	t.Setenv(EnvPort, "6000")
	t.Setenv(EnvSignedURLTTL, "15m")
	t.Setenv(EnvConcurrency, "3")
	t.Setenv(EnvCatalogDriver, "SQLite")
	t.Setenv(EnvS3PathStyle, "true")

	cfg, err := New("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != 6000 {
		t.Errorf("Port() = %d, want 6000", cfg.Port())
	}
	if cfg.SignedURLTTL() != 15*time.Minute {
		t.Errorf("SignedURLTTL() = %s, want 15m", cfg.SignedURLTTL())
	}
	if cfg.RenderConcurrency() != 3 {
		t.Errorf("RenderConcurrency() = %d, want 3", cfg.RenderConcurrency())
	}
	if cfg.CatalogDriver() != DriverSQLite {
		t.Errorf("CatalogDriver() = %q, want sqlite", cfg.CatalogDriver())
	}
	if !cfg.S3PathStyle() {
		t.Error("S3PathStyle() = false, want true")
	}
}

func TestNew_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  string
		val  string
	}{
		{"port not a number", EnvPort, "abc"},
		{"port out of range", EnvPort, "70000"},
		{"negative ttl", EnvSignedURLTTL, "-1h"},
		{"bad duration", EnvProbeTimeout, "soon"},
		{"zero concurrency", EnvConcurrency, "0"},
		{"bad bool", EnvS3PathStyle, "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, tt.val)
			if _, err := New(""); err == nil {
				t.Fatalf("expected error for %s=%q", tt.env, tt.val)
			}
		})
	}
}

func TestNew_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clipreel.toml")
	content := `
port = 7000
log_level = "debug"

[catalog]
driver = "sqlite"

[storage]
driver = "fs"
signed_url_ttl = "30m"

[render]
concurrency = 2
ffmpeg = "/opt/ffmpeg/bin/ffmpeg"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvPort, "7001")

	cfg, err := New(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != 7001 {
		t.Errorf("Port() = %d, want env override 7001", cfg.Port())
	}
	if cfg.LogLevel() != "debug" {
		t.Errorf("LogLevel() = %q, want debug", cfg.LogLevel())
	}
	if cfg.StorageDriver() != DriverFS {
		t.Errorf("StorageDriver() = %q, want fs", cfg.StorageDriver())
	}
	if cfg.SignedURLTTL() != 30*time.Minute {
		t.Errorf("SignedURLTTL() = %s, want 30m", cfg.SignedURLTTL())
	}
	if cfg.RenderConcurrency() != 2 {
		t.Errorf("RenderConcurrency() = %d, want 2", cfg.RenderConcurrency())
	}
	if cfg.FFmpegPath() != "/opt/ffmpeg/bin/ffmpeg" {
		t.Errorf("FFmpegPath() = %q", cfg.FFmpegPath())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil for sqlite+fs", err)
	}
}

func TestNew_MissingFile(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate_RequiresDriverSettings(t *testing.T) {
	cfg := defaults()
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error when mongo and s3 settings are missing")
	}
	for _, name := range []string{EnvMongoURI, EnvDBName, EnvAWSRegion, EnvBucket} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q does not mention %s", err, name)
		}
	}

	cfg.mongoURI = "mongodb://localhost:27017"
	cfg.dbName = "clipreel"
	cfg.awsRegion = "us-east-1"
	cfg.bucket = "renders"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := defaults()
	cfg.catalogDriver = "postgres"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown catalog driver")
	}
}

func TestFSDefaultsDerivedFromDataDir(t *testing.T) {
	cfg := defaults()
	cfg.dataDir = "/var/lib/clipreel"
	if cfg.FSRoot() != filepath.Join("/var/lib/clipreel", "objects") {
		t.Errorf("FSRoot() = %q", cfg.FSRoot())
	}
	if cfg.FSBaseURL() != "http://127.0.0.1:5001/objects" {
		t.Errorf("FSBaseURL() = %q", cfg.FSBaseURL())
	}
}
