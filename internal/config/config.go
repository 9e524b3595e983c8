package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	S3       S3Config       `mapstructure:"s3"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
	Planner  PlannerConfig  `mapstructure:"planner"`
	Strava   StravaConfig   `mapstructure:"strava"`
}

type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	GinMode         string        `mapstructure:"gin_mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

type S3Config struct {
	Enabled         bool          `mapstructure:"enabled"`
	Endpoint        string        `mapstructure:"endpoint"`
	Region          string        `mapstructure:"region"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	BucketName      string        `mapstructure:"bucket_name"`
	ExportPrefix    string        `mapstructure:"export_prefix"`
	URLExpiry       time.Duration `mapstructure:"url_expiry"`
}

// JWTConfig defines JWT specific configuration
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	JSON       bool   `mapstructure:"json"`
	File       string `mapstructure:"file"`
	ToStdout   bool   `mapstructure:"to_stdout"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// PlannerConfig tunes matching and activity summaries.
type PlannerConfig struct {
	MatchThreshold      float64 `mapstructure:"match_threshold"`
	CandidateWindowDays int     `mapstructure:"candidate_window_days"`
	SummaryWeeks        int     `mapstructure:"summary_weeks"`
	MaxPlanWeeks        int     `mapstructure:"max_plan_weeks"`
}

// StravaConfig configures the read-only activity source. The access token is
// supplied from outside; refreshing it is not handled here.
type StravaConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	BaseURL     string        `mapstructure:"base_url"`
	AccessToken string        `mapstructure:"access_token"`
	Timeout     time.Duration `mapstructure:"timeout"`
	PageSize    int           `mapstructure:"page_size"`

	// SyncSchedule is a cron spec; empty disables the background sync.
	SyncSchedule  string `mapstructure:"sync_schedule"`
	SyncUserEmail string `mapstructure:"sync_user_email"`
}

// LoadConfig reads configuration from path/config.yaml and environment
// variables; nested keys map to env names like SERVER_ADDRESS or JWT_SECRET.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	setDefaults(v)

	var cfg Config
	if err := v.ReadInConfig(); err != nil {
		// Running on env vars and defaults alone is fine.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, err
		}
	}

	// Duration strings ("15s", "1h") decode straight into time.Duration fields.
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	if cfg.JWT.Secret == "" {
		return cfg, errors.New("jwt.secret must be set")
	}
	return cfg, nil
}

// Every key gets a default so AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.gin_mode", "release")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "run_planner")

	v.SetDefault("s3.enabled", false)
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.bucket_name", "run-planner")
	v.SetDefault("s3.export_prefix", "exports")
	v.SetDefault("s3.url_expiry", "15m")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiration", "1h")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.to_stdout", true)
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 0)

	v.SetDefault("planner.match_threshold", 60)
	v.SetDefault("planner.candidate_window_days", 1)
	v.SetDefault("planner.summary_weeks", 8)
	v.SetDefault("planner.max_plan_weeks", 52)

	v.SetDefault("strava.enabled", false)
	v.SetDefault("strava.base_url", "https://www.strava.com/api/v3")
	v.SetDefault("strava.access_token", "")
	v.SetDefault("strava.timeout", "10s")
	v.SetDefault("strava.page_size", 100)
	v.SetDefault("strava.sync_schedule", "")
	v.SetDefault("strava.sync_user_email", "")
}
