package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime settings for the bot service. Every knob can be
// supplied via an optional yaml file or via environment variables
// (SOLVER_API_KEY, CHECK_INTERVAL, ...).
type Config struct {
	// Solver settings for the remote CAPTCHA service.
	SolverAPIKey       string
	SolverBaseURL      string
	SolverPollInterval time.Duration
	SolverMaxWait      time.Duration

	// Browser settings.
	ProxyURL  string
	Headless  bool
	SigninURL string

	// Automation settings.
	MaxCaptchaAttempts int
	AutoSubmit         bool
	RunTimeout         time.Duration

	// Scheduler settings.
	CheckInterval          time.Duration
	RetryInterval          time.Duration
	MaxConcurrentInstances int

	// Screenshot diagnostics.
	EnableScreenshots bool
	ScreenshotsDir    string

	// Optional S3 upload of screenshot artifacts.
	S3Upload          bool
	S3Endpoint        string
	S3Region          string
	S3Bucket          string
	S3AccessKeyID     string
	S3SecretAccessKey string

	// SMTP notification settings.
	SMTPServer    string
	SMTPPort      int
	FromEmail     string
	EmailPassword string

	// Database settings.
	DatabaseType            string
	DatabasePath            string
	DatabaseHost            string
	DatabasePort            string
	DatabaseName            string
	DatabaseUser            string
	DatabasePassword        string
	DatabaseSSLMode         string
	DatabaseMaxConns        int
	DatabaseMaxIdle         int
	DatabaseConnMaxLifetime string

	// HTTP server settings.
	HTTPHost  string
	HTTPPort  int
	HTTPDebug bool
}

// LoadConfig loads the configuration from file and environment variables.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	// The config file is optional; environment variables alone are enough.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !isNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		SolverAPIKey:       v.GetString("solver_api_key"),
		SolverBaseURL:      v.GetString("solver_base_url"),
		SolverPollInterval: v.GetDuration("solver_poll_interval"),
		SolverMaxWait:      v.GetDuration("solver_max_wait"),

		ProxyURL:  v.GetString("proxy_url"),
		Headless:  v.GetBool("headless"),
		SigninURL: v.GetString("signin_url"),

		MaxCaptchaAttempts: v.GetInt("max_captcha_attempts"),
		AutoSubmit:         v.GetBool("auto_submit"),
		RunTimeout:         v.GetDuration("run_timeout"),

		CheckInterval:          v.GetDuration("check_interval"),
		RetryInterval:          v.GetDuration("retry_interval"),
		MaxConcurrentInstances: v.GetInt("max_concurrent_instances"),

		EnableScreenshots: v.GetBool("enable_screenshots"),
		ScreenshotsDir:    v.GetString("screenshots_dir"),

		S3Upload:          v.GetBool("s3_upload"),
		S3Endpoint:        v.GetString("s3_endpoint"),
		S3Region:          v.GetString("s3_region"),
		S3Bucket:          v.GetString("s3_bucket"),
		S3AccessKeyID:     v.GetString("s3_access_key_id"),
		S3SecretAccessKey: v.GetString("s3_secret_access_key"),

		SMTPServer:    v.GetString("smtp_server"),
		SMTPPort:      v.GetInt("smtp_port"),
		FromEmail:     v.GetString("from_email"),
		EmailPassword: v.GetString("email_password"),

		DatabaseType:            v.GetString("database_type"),
		DatabasePath:            v.GetString("database_path"),
		DatabaseHost:            v.GetString("database_host"),
		DatabasePort:            v.GetString("database_port"),
		DatabaseName:            v.GetString("database_name"),
		DatabaseUser:            v.GetString("database_user"),
		DatabasePassword:        v.GetString("database_password"),
		DatabaseSSLMode:         v.GetString("database_ssl_mode"),
		DatabaseMaxConns:        v.GetInt("database_max_conns"),
		DatabaseMaxIdle:         v.GetInt("database_max_idle"),
		DatabaseConnMaxLifetime: v.GetString("database_conn_max_lifetime"),

		HTTPHost:  v.GetString("http_host"),
		HTTPPort:  v.GetInt("http_port"),
		HTTPDebug: v.GetBool("http_debug"),
	}

	if cfg.MaxConcurrentInstances < 1 {
		return nil, fmt.Errorf("max_concurrent_instances must be at least 1, got %d", cfg.MaxConcurrentInstances)
	}
	if cfg.MaxCaptchaAttempts < 1 {
		return nil, fmt.Errorf("max_captcha_attempts must be at least 1, got %d", cfg.MaxCaptchaAttempts)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("solver_api_key", "")
	v.SetDefault("solver_base_url", "https://2captcha.com")
	v.SetDefault("solver_poll_interval", "2s")
	v.SetDefault("solver_max_wait", "2m")

	v.SetDefault("proxy_url", "")
	v.SetDefault("headless", false)
	v.SetDefault("signin_url", "https://www.usvisascheduling.com/signin")

	v.SetDefault("max_captcha_attempts", 5)
	v.SetDefault("auto_submit", false)
	v.SetDefault("run_timeout", "15m")

	v.SetDefault("check_interval", "30s")
	v.SetDefault("retry_interval", "30s")
	v.SetDefault("max_concurrent_instances", 50)

	v.SetDefault("enable_screenshots", true)
	v.SetDefault("screenshots_dir", "screenshots")

	v.SetDefault("s3_upload", false)
	v.SetDefault("s3_endpoint", "")
	v.SetDefault("s3_region", "us-east-1")
	v.SetDefault("s3_bucket", "")
	v.SetDefault("s3_access_key_id", "")
	v.SetDefault("s3_secret_access_key", "")

	v.SetDefault("smtp_server", "smtp.gmail.com")
	v.SetDefault("smtp_port", 587)
	v.SetDefault("from_email", "")
	v.SetDefault("email_password", "")

	v.SetDefault("database_type", "sqlite")
	v.SetDefault("database_path", "visabot.db")
	v.SetDefault("database_host", "localhost")
	v.SetDefault("database_port", "5432")
	v.SetDefault("database_name", "visabot")
	v.SetDefault("database_user", "visabot")
	v.SetDefault("database_password", "")
	v.SetDefault("database_ssl_mode", "disable")
	v.SetDefault("database_max_conns", 0)
	v.SetDefault("database_max_idle", 0)
	v.SetDefault("database_conn_max_lifetime", "")

	v.SetDefault("http_host", "0.0.0.0")
	v.SetDefault("http_port", 5001)
	v.SetDefault("http_debug", false)
}

func isNotExist(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such file")
}
