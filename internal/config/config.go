package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"

	"github.com/fuomag9/uptimed/internal/billing"
)

// MinRetentionDays is the shortest heartbeat retention that still covers the
// longest uptime window.
const MinRetentionDays = 30

// Config holds application configuration
type Config struct {
	Port            int             `yaml:"port"`
	Database        DatabaseConfig  `yaml:"database"`
	Defaults        MonitorDefaults `yaml:"defaults"`
	Plan            string          `yaml:"plan"`
	Workers         int             `yaml:"workers"`
	Tick            time.Duration   `yaml:"tick"`
	RetentionDays   int             `yaml:"retention_days"`
	LogLevel        string          `yaml:"log_level"`
	CORSOrigins     []string        `yaml:"cors_origins"`
	AllowPrivateIPs bool            `yaml:"allow_private_ips"`
	PingPrivileged  bool            `yaml:"ping_privileged"`
	AppURL          string          `yaml:"app_url"`
	APIToken        string          `yaml:"api_token"`
	Notify          NotifyConfig    `yaml:"notify"`
}

// NotifyConfig selects incident notification channels. Empty values disable
// a channel.
type NotifyConfig struct {
	WebhookURL      string `yaml:"webhook_url"`
	SlackWebhookURL string `yaml:"slack_webhook_url"`
	SlackChannel    string `yaml:"slack_channel"`
	NtfyServer      string `yaml:"ntfy_server"`
	NtfyTopic       string `yaml:"ntfy_topic"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Type         string `yaml:"type"` // sqlite or postgres
	Path         string `yaml:"path"` // sqlite file
	DSN          string `yaml:"dsn"`  // postgres
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// MonitorDefaults are applied to monitors created without explicit values
type MonitorDefaults struct {
	IntervalS int `yaml:"interval_s"`
	TimeoutS  int `yaml:"timeout_s"`
	Retries   int `yaml:"retries"`
}

// Load loads configuration from the environment, an optional .env file and an
// optional YAML file named by UPTIME_CONFIG. YAML values override the
// environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port: getEnvInt("PORT", 8080),
		Database: DatabaseConfig{
			Type:         getEnv("DATABASE_TYPE", "sqlite"),
			Path:         getEnv("UPTIME_DB_PATH", defaultDBPath()),
			DSN:          getEnv("DATABASE_DSN", ""),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
		},
		Defaults: MonitorDefaults{
			IntervalS: getEnvInt("UPTIME_DEFAULT_INTERVAL", 60),
			TimeoutS:  getEnvInt("UPTIME_DEFAULT_TIMEOUT", 10),
			Retries:   getEnvInt("UPTIME_DEFAULT_RETRIES", 0),
		},
		Plan:            getEnv("UPTIME_PLAN", billing.PlanFree),
		Workers:         getEnvInt("UPTIME_WORKERS", 16),
		Tick:            getEnvDuration("UPTIME_TICK", 5*time.Second),
		RetentionDays:   getEnvInt("UPTIME_RETENTION_DAYS", 0),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		CORSOrigins:     loadCORSOrigins(),
		AllowPrivateIPs: getEnvBool("ALLOW_PRIVATE_IPS", true),
		PingPrivileged:  getEnvBool("PING_PRIVILEGED", false),
		AppURL:          strings.TrimRight(os.Getenv("APP_URL"), "/"),
		APIToken:        getEnv("API_TOKEN", ""),
		Notify: NotifyConfig{
			WebhookURL:      getEnv("NOTIFY_WEBHOOK_URL", ""),
			SlackWebhookURL: getEnv("NOTIFY_SLACK_WEBHOOK_URL", ""),
			SlackChannel:    getEnv("NOTIFY_SLACK_CHANNEL", ""),
			NtfyServer:      getEnv("NOTIFY_NTFY_SERVER", ""),
			NtfyTopic:       getEnv("NOTIFY_NTFY_TOPIC", ""),
		},
	}

	if path := os.Getenv("UPTIME_CONFIG"); path != "" {
		fileCfg, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := mergo.Merge(cfg, fileCfg, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// ReadFile reads a YAML configuration file.
func ReadFile(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("UPTIME_DB_PATH is required for sqlite")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("DATABASE_DSN is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	if c.Defaults.IntervalS <= 0 {
		return fmt.Errorf("default interval must be positive")
	}
	if c.Defaults.TimeoutS <= 0 {
		return fmt.Errorf("default timeout must be positive")
	}
	if c.Defaults.Retries < 0 {
		return fmt.Errorf("default retries must not be negative")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("UPTIME_WORKERS must be positive")
	}
	if c.Tick <= 0 {
		return fmt.Errorf("UPTIME_TICK must be positive")
	}
	// Uptime is reported over up to 30 days; shorter retention would skew it.
	if c.RetentionDays < 0 || (c.RetentionDays > 0 && c.RetentionDays < MinRetentionDays) {
		return fmt.Errorf("UPTIME_RETENTION_DAYS must be 0 (keep forever) or at least %d", MinRetentionDays)
	}

	if _, err := billing.ParsePlan(c.Plan); err != nil {
		return err
	}

	return nil
}

func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "uptimed", "uptime.db")
}

func loadCORSOrigins() []string {
	if appURL := strings.TrimRight(os.Getenv("APP_URL"), "/"); appURL != "" {
		return []string{appURL}
	}
	return []string{"*"}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
