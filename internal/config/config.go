// Package config provides configuration management for clipreel.
// Configuration is layered: defaults, an optional TOML file, then
// environment variables (a .env file is loaded first when present).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const (
	// Default values
	DefaultPort          = 5001
	DefaultBind          = "0.0.0.0"
	DefaultLogLevel      = "info"
	DefaultDataDir       = ".clipreel"
	DefaultCatalogDriver = DriverMongo
	DefaultStorageDriver = DriverS3
	DefaultSignedURLTTL  = time.Hour
	DefaultConcurrency   = 1
	DefaultFFmpeg        = "ffmpeg"
	DefaultFFprobe       = "ffprobe"
	DefaultConcatTimeout = 30 * time.Minute
	DefaultProbeTimeout  = 60 * time.Second

	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
	DriverS3     = "s3"
	DriverFS     = "fs"

	// Database filename
	DBFilename = "clipreel.db"

	// Environment variable names
	EnvConfigFile    = "CLIPREEL_CONFIG"
	EnvPort          = "PORT"
	EnvBind          = "CLIPREEL_BIND"
	EnvLogLevel      = "CLIPREEL_LOG_LEVEL"
	EnvDataDir       = "CLIPREEL_DATA_DIR"
	EnvCatalogDriver = "CLIPREEL_CATALOG_DRIVER"
	EnvMongoURI      = "ATLAS_URI"
	EnvDBName        = "DB_NAME"
	EnvStorageDriver = "CLIPREEL_STORAGE_DRIVER"
	EnvAWSRegion     = "AWS_REGION"
	EnvAWSKeyID      = "AWS_ACCESS_KEY_ID"
	EnvAWSSecret     = "AWS_SECRET_ACCESS_KEY"
	EnvBucket        = "AWS_BUCKET_NAME"
	EnvS3Endpoint    = "CLIPREEL_S3_ENDPOINT"
	EnvS3PathStyle   = "CLIPREEL_S3_PATH_STYLE"
	EnvFSRoot        = "CLIPREEL_FS_ROOT"
	EnvFSBaseURL     = "CLIPREEL_FS_BASE_URL"
	EnvFSSecret      = "CLIPREEL_FS_SECRET"
	EnvSignedURLTTL  = "CLIPREEL_SIGNED_URL_TTL"
	EnvWorkspaceDir  = "CLIPREEL_WORKSPACE_DIR"
	EnvConcurrency   = "CLIPREEL_RENDER_CONCURRENCY"
	EnvFFmpeg        = "CLIPREEL_FFMPEG"
	EnvFFprobe       = "CLIPREEL_FFPROBE"
	EnvConcatTimeout = "CLIPREEL_CONCAT_TIMEOUT"
	EnvProbeTimeout  = "CLIPREEL_PROBE_TIMEOUT"
)

// fileConfig mirrors the TOML layout. Durations are strings ("90s", "1h").
type fileConfig struct {
	Port     int    `toml:"port"`
	Bind     string `toml:"bind"`
	LogLevel string `toml:"log_level"`
	DataDir  string `toml:"data_dir"`

	Catalog struct {
		Driver   string `toml:"driver"`
		MongoURI string `toml:"mongo_uri"`
		Database string `toml:"database"`
	} `toml:"catalog"`

	Storage struct {
		Driver       string `toml:"driver"`
		Bucket       string `toml:"bucket"`
		Region       string `toml:"region"`
		Endpoint     string `toml:"endpoint"`
		PathStyle    bool   `toml:"path_style"`
		FSRoot       string `toml:"fs_root"`
		FSBaseURL    string `toml:"fs_base_url"`
		SignedURLTTL string `toml:"signed_url_ttl"`
	} `toml:"storage"`

	Render struct {
		WorkspaceDir  string `toml:"workspace_dir"`
		Concurrency   int    `toml:"concurrency"`
		FFmpeg        string `toml:"ffmpeg"`
		FFprobe       string `toml:"ffprobe"`
		ConcatTimeout string `toml:"concat_timeout"`
		ProbeTimeout  string `toml:"probe_timeout"`
	} `toml:"render"`
}

// EnvConfig holds the resolved configuration.
type EnvConfig struct {
	port     int
	bind     string
	logLevel string
	dataDir  string

	catalogDriver string
	mongoURI      string
	dbName        string

	storageDriver string
	awsRegion     string
	awsKeyID      string
	awsSecret     string
	bucket        string
	s3Endpoint    string
	s3PathStyle   bool
	fsRoot        string
	fsBaseURL     string
	fsSecret      string
	signedURLTTL  time.Duration

	workspaceDir  string
	concurrency   int
	ffmpeg        string
	ffprobe       string
	concatTimeout time.Duration
	probeTimeout  time.Duration
}

// New loads .env (if present), then the TOML file at path (or $CLIPREEL_CONFIG
// when path is empty), then environment overrides.
func New(path string) (*EnvConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := defaults()

	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *EnvConfig {
	return &EnvConfig{
		port:          DefaultPort,
		bind:          DefaultBind,
		logLevel:      DefaultLogLevel,
		dataDir:       defaultDataDir(),
		catalogDriver: DefaultCatalogDriver,
		storageDriver: DefaultStorageDriver,
		signedURLTTL:  DefaultSignedURLTTL,
		workspaceDir:  os.TempDir(),
		concurrency:   DefaultConcurrency,
		ffmpeg:        DefaultFFmpeg,
		ffprobe:       DefaultFFprobe,
		concatTimeout: DefaultConcatTimeout,
		probeTimeout:  DefaultProbeTimeout,
	}
}

func (c *EnvConfig) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.Port != 0 {
		c.port = fc.Port
	}
	setString(&c.bind, fc.Bind)
	setString(&c.logLevel, fc.LogLevel)
	setString(&c.dataDir, fc.DataDir)
	setString(&c.catalogDriver, fc.Catalog.Driver)
	setString(&c.mongoURI, fc.Catalog.MongoURI)
	setString(&c.dbName, fc.Catalog.Database)
	setString(&c.storageDriver, fc.Storage.Driver)
	setString(&c.bucket, fc.Storage.Bucket)
	setString(&c.awsRegion, fc.Storage.Region)
	setString(&c.s3Endpoint, fc.Storage.Endpoint)
	c.s3PathStyle = c.s3PathStyle || fc.Storage.PathStyle
	setString(&c.fsRoot, fc.Storage.FSRoot)
	setString(&c.fsBaseURL, fc.Storage.FSBaseURL)
	setString(&c.workspaceDir, fc.Render.WorkspaceDir)
	if fc.Render.Concurrency != 0 {
		c.concurrency = fc.Render.Concurrency
	}
	setString(&c.ffmpeg, fc.Render.FFmpeg)
	setString(&c.ffprobe, fc.Render.FFprobe)

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"storage.signed_url_ttl", fc.Storage.SignedURLTTL, &c.signedURLTTL},
		{"render.concat_timeout", fc.Render.ConcatTimeout, &c.concatTimeout},
		{"render.probe_timeout", fc.Render.ProbeTimeout, &c.probeTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := parsePositiveDuration(d.raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.name, err)
		}
		*d.dst = v
	}
	return nil
}

func (c *EnvConfig) applyEnv() error {
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		c.port = port
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", c.port)
	}

	setString(&c.bind, os.Getenv(EnvBind))
	setString(&c.logLevel, os.Getenv(EnvLogLevel))
	setString(&c.dataDir, os.Getenv(EnvDataDir))
	setString(&c.catalogDriver, strings.ToLower(os.Getenv(EnvCatalogDriver)))
	setString(&c.mongoURI, os.Getenv(EnvMongoURI))
	setString(&c.dbName, os.Getenv(EnvDBName))
	setString(&c.storageDriver, strings.ToLower(os.Getenv(EnvStorageDriver)))
	setString(&c.awsRegion, os.Getenv(EnvAWSRegion))
	setString(&c.awsKeyID, os.Getenv(EnvAWSKeyID))
	setString(&c.awsSecret, os.Getenv(EnvAWSSecret))
	setString(&c.bucket, os.Getenv(EnvBucket))
	setString(&c.s3Endpoint, os.Getenv(EnvS3Endpoint))
	setString(&c.fsRoot, os.Getenv(EnvFSRoot))
	setString(&c.fsBaseURL, os.Getenv(EnvFSBaseURL))
	setString(&c.fsSecret, os.Getenv(EnvFSSecret))
	setString(&c.workspaceDir, os.Getenv(EnvWorkspaceDir))
	setString(&c.ffmpeg, os.Getenv(EnvFFmpeg))
	setString(&c.ffprobe, os.Getenv(EnvFFprobe))

	if v := os.Getenv(EnvS3PathStyle); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvS3PathStyle, err)
		}
		c.s3PathStyle = b
	}

	if v := os.Getenv(EnvConcurrency); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvConcurrency, err)
		}
		c.concurrency = n
	}
	if c.concurrency < 1 {
		return fmt.Errorf("invalid render concurrency %d: must be at least 1", c.concurrency)
	}

	durations := []struct {
		env string
		dst *time.Duration
	}{
		{EnvSignedURLTTL, &c.signedURLTTL},
		{EnvConcatTimeout, &c.concatTimeout},
		{EnvProbeTimeout, &c.probeTimeout},
	}
	for _, d := range durations {
		raw := os.Getenv(d.env)
		if raw == "" {
			continue
		}
		v, err := parsePositiveDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.env, err)
		}
		*d.dst = v
	}
	return nil
}

// Validate checks that the selected drivers have what they need.
func (c *EnvConfig) Validate() error {
	var missing []string

	switch c.catalogDriver {
	case DriverMongo:
		if c.mongoURI == "" {
			missing = append(missing, EnvMongoURI)
		}
		if c.dbName == "" {
			missing = append(missing, EnvDBName)
		}
	case DriverSQLite:
	default:
		return fmt.Errorf("unknown catalog driver %q (want %s or %s)", c.catalogDriver, DriverMongo, DriverSQLite)
	}

	switch c.storageDriver {
	case DriverS3:
		if c.awsRegion == "" {
			missing = append(missing, EnvAWSRegion)
		}
		if c.bucket == "" {
			missing = append(missing, EnvBucket)
		}
	case DriverFS:
	default:
		return fmt.Errorf("unknown storage driver %q (want %s or %s)", c.storageDriver, DriverS3, DriverFS)
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// Addr returns the listen address for the HTTP server.
func (c *EnvConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.bind, c.port)
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

func (c *EnvConfig) CatalogDriver() string { return c.catalogDriver }
func (c *EnvConfig) MongoURI() string { return c.mongoURI }
func (c *EnvConfig) DBName() string { return c.dbName }

func (c *EnvConfig) StorageDriver() string { return c.storageDriver }
func (c *EnvConfig) AWSRegion() string { return c.awsRegion }
func (c *EnvConfig) AWSAccessKeyID() string { return c.awsKeyID }
func (c *EnvConfig) AWSSecretKey() string { return c.awsSecret }
func (c *EnvConfig) Bucket() string { return c.bucket }
func (c *EnvConfig) S3Endpoint() string { return c.s3Endpoint }
func (c *EnvConfig) S3PathStyle() bool { return c.s3PathStyle }
func (c *EnvConfig) SignedURLTTL() time.Duration { return c.signedURLTTL }

// FSRoot returns the root directory of the filesystem object store.
func (c *EnvConfig) FSRoot() string {
	if c.fsRoot != "" {
		return c.fsRoot
	}
	return filepath.Join(c.dataDir, "objects")
}

// FSBaseURL returns the URL prefix used when signing filesystem objects.
func (c *EnvConfig) FSBaseURL() string {
	if c.fsBaseURL != "" {
		return c.fsBaseURL
	}
	return fmt.Sprintf("http://127.0.0.1:%d/objects", c.port)
}

func (c *EnvConfig) FSSecret() string { return c.fsSecret }

func (c *EnvConfig) WorkspaceDir() string { return c.workspaceDir }
func (c *EnvConfig) RenderConcurrency() int { return c.concurrency }
func (c *EnvConfig) FFmpegPath() string { return c.ffmpeg }
func (c *EnvConfig) FFprobePath() string { return c.ffprobe }
func (c *EnvConfig) ConcatTimeout() time.Duration { return c.concatTimeout }
func (c *EnvConfig) ProbeTimeout() time.Duration { return c.probeTimeout }

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func parsePositiveDuration(raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %s", raw)
	}
	return d, nil
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
