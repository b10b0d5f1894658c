// Package config loads service configuration from environment variables
// and an optional YAML file. Environment variables win.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Store     StoreConfig     `yaml:"store" envconfig:"STORE"`
	Insights  InsightsConfig  `yaml:"insights" envconfig:"INSIGHTS"`
	Refresh   RefreshConfig   `yaml:"refresh" envconfig:"REFRESH"`
	Snapshot  SnapshotConfig  `yaml:"snapshot" envconfig:"SNAPSHOT"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" default:"60s"`
}

// SecurityConfig contains CORS, rate limiting and the admin token.
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS" default:"true"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`

	// AdminTokenHash is the bcrypt hash of the token required for mutating
	// endpoints (chart writes, insight uploads). Empty disables the check.
	AdminTokenHash string `yaml:"admin_token_hash" envconfig:"ADMIN_TOKEN_HASH"`
}

// RateLimitConfig contains rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"100"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"50"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/marketlens.log"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `yaml:"path" envconfig:"PATH" default:"data/marketlens.db"`
}

// InsightsConfig controls research document uploads and summarization.
type InsightsConfig struct {
	Dir            string `yaml:"dir" envconfig:"DIR" default:"data/insights"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES" default:"26214400"`
	MaxPages       int    `yaml:"max_pages" envconfig:"MAX_PAGES" default:"200"`

	// AnthropicAPIKey enables summarization; empty leaves insights pending.
	AnthropicAPIKey string `yaml:"anthropic_api_key" envconfig:"ANTHROPIC_API_KEY"`
	Model           string `yaml:"model" envconfig:"MODEL" default:"claude-sonnet-4-20250514"`

	// DriveFolderID mirrors uploads to Google Drive when set. Credentials
	// come from the file DriveCredentials points at.
	DriveFolderID    string `yaml:"drive_folder_id" envconfig:"DRIVE_FOLDER_ID"`
	DriveCredentials string `yaml:"drive_credentials" envconfig:"DRIVE_CREDENTIALS"`
}

// RefreshConfig schedules the background recompute of dashboard charts.
type RefreshConfig struct {
	Enabled bool   `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	Cron    string `yaml:"cron" envconfig:"CRON" default:"0 */30 * * * *"`
}

// SnapshotConfig controls headless-browser PDF capture of the dashboard.
type SnapshotConfig struct {
	Timeout time.Duration `yaml:"timeout" envconfig:"TIMEOUT" default:"90s"`
	OutDir  string        `yaml:"out_dir" envconfig:"OUT_DIR" default:"data/reports"`
}

// WebSocketConfig contains WebSocket configuration.
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE" default:"1024"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE" default:"1024"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD" default:"30s"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT" default:"60s"`
}

// Load loads configuration from environment variables and, when present,
// a config file. File values fill fields the environment left at zero.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("MARKETLENS", &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if path := configFilePath(); path != "" {
		fileCfg, err := loadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
		cfg = merge(*fileCfg, cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// merge fills zero-valued env fields from the file config.
func merge(file, env Config) Config {
	if env.Server.Port == 0 {
		env.Server.Port = file.Server.Port
	}
	if env.Server.ReadTimeout == 0 {
		env.Server.ReadTimeout = file.Server.ReadTimeout
	}
	if env.Server.WriteTimeout == 0 {
		env.Server.WriteTimeout = file.Server.WriteTimeout
	}
	if env.Server.RequestTimeout == 0 {
		env.Server.RequestTimeout = file.Server.RequestTimeout
	}
	if len(env.Security.AllowedOrigins) == 0 {
		env.Security.AllowedOrigins = file.Security.AllowedOrigins
	}
	if env.Security.AdminTokenHash == "" {
		env.Security.AdminTokenHash = file.Security.AdminTokenHash
	}
	if env.Store.Path == "" {
		env.Store.Path = file.Store.Path
	}
	if env.Insights.Dir == "" {
		env.Insights.Dir = file.Insights.Dir
	}
	if env.Insights.AnthropicAPIKey == "" {
		env.Insights.AnthropicAPIKey = file.Insights.AnthropicAPIKey
	}
	if env.Insights.DriveFolderID == "" {
		env.Insights.DriveFolderID = file.Insights.DriveFolderID
	}
	if env.Insights.DriveCredentials == "" {
		env.Insights.DriveCredentials = file.Insights.DriveCredentials
	}
	if env.Refresh.Cron == "" {
		env.Refresh.Cron = file.Refresh.Cron
	}
	return env
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}
	if len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store path must be set")
	}
	if c.Insights.MaxUploadBytes <= 0 {
		return fmt.Errorf("insights max upload size must be positive")
	}

	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output != "both" && c.Logging.Output != "stdout" && c.Logging.Output != "file" {
		c.Logging.Output = "both"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/marketlens.log"
	}
	return nil
}

// configFilePath probes the usual locations for a config file.
func configFilePath() string {
	if p := os.Getenv("MARKETLENS_CONFIG"); p != "" {
		return p
	}
	for _, p := range []string{"config.yaml", "configs/config.yaml"} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Default returns the built-in defaults, used by tests and tooling that
// bypass Load.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  60 * time.Second,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "both",
			FilePath: "logs/marketlens.log",
		},
		Store: StoreConfig{
			Path: "data/marketlens.db",
		},
		Insights: InsightsConfig{
			Dir:            "data/insights",
			MaxUploadBytes: 25 << 20,
			MaxPages:       200,
			Model:          "claude-sonnet-4-20250514",
		},
		Refresh: RefreshConfig{
			Enabled: true,
			Cron:    "0 */30 * * * *",
		},
		Snapshot: SnapshotConfig{
			Timeout: 90 * time.Second,
			OutDir:  "data/reports",
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      30 * time.Second,
			PongWait:        60 * time.Second,
		},
	}
}
