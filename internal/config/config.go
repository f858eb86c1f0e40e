package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

var (
	ErrRemoteURLMissing    = errors.New("REMOTE_URL is not set")
	ErrRemoteAPIKeyMissing = errors.New("REMOTE_API_KEY is not set")
)

type (
	Config struct {
		HTTP
		Global
		Database
		Remote
		Auth
		Passcode
		Tasks
		Maintenance
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path string
	}
	// Remote describes how clients reach the data service, and the key the
	// service expects from them.
	Remote struct {
		URL            string
		APIKey         string
		RequestTimeout time.Duration // Upper bound for every remote call made by the core
		SessionFile    string        // Where the CLI persists its session token
		SessionKey     string        // Base64 AES-256 key for the session file; generated when empty
	}
	Auth struct {
		SessionLifetime  time.Duration
		BcryptCost       int
		RegistrationOpen bool // Default for the registration_open setting

		// Rate limiting configuration
		MaxLoginAttempts int           // Max failed attempts before lockout (default: 5)
		RateLimitWindow  time.Duration // Time window for counting attempts (default: 15m)
		LockoutDuration  time.Duration // How long to lock out (default: 30m)
	}
	Passcode struct {
		TTL            time.Duration // Validity of a one-time passcode (default: 10m)
		ResendCooldown time.Duration // Minimum gap between two sends in one flow (default: 60s)
		EchoToLog      bool          // Log delivered codes (development only)
	}
	Tasks struct {
		Enabled           bool
		Workers           int
		MaxRetries        int
		RetryDelay        time.Duration
		TaskTimeout       time.Duration
		ReleaseAfter      time.Duration
		CleanupInterval   time.Duration
		RetentionDuration time.Duration
	}
	Maintenance struct {
		Enabled            bool
		Schedule           string // Cron format: "*/15 * * * *" = every 15 minutes
		AuditRetentionDays int
	}
)

// ValidateClient checks the settings every client process needs before it
// can talk to the data service.
func (c *Config) ValidateClient() error {
	if c.Remote.URL == "" {
		return ErrRemoteURLMissing
	}
	if c.Remote.APIKey == "" {
		return ErrRemoteAPIKeyMissing
	}
	return nil
}

// ValidateServer checks the settings the data service needs to start.
func (c *Config) ValidateServer() error {
	if c.Remote.APIKey == "" {
		return ErrRemoteAPIKeyMissing
	}
	return nil
}

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", DefaultDatabasePath)

	// Remote data service
	v.SetDefault("remote_url", "")
	v.SetDefault("remote_api_key", "")
	v.SetDefault("remote_request_timeout", "15s")
	v.SetDefault("remote_session_file", DefaultSessionFile)
	v.SetDefault("remote_session_key", "")

	// Auth defaults
	v.SetDefault("auth_session_lifetime", "168h") // 7 days
	v.SetDefault("auth_bcrypt_cost", 12)
	v.SetDefault("auth_registration_open", true)
	v.SetDefault("auth_max_login_attempts", 5)
	v.SetDefault("auth_rate_limit_window", "15m")
	v.SetDefault("auth_lockout_duration", "30m")

	// Passcode defaults
	v.SetDefault("passcode_ttl", "10m")
	v.SetDefault("passcode_resend_cooldown", "60s")
	v.SetDefault("passcode_echo_to_log", false)

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_max_retries", 3)
	v.SetDefault("task_retry_delay", "1m")
	v.SetDefault("task_timeout", "5m")
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")
	v.SetDefault("task_retention_duration", "24h")

	// Maintenance defaults
	v.SetDefault("maintenance_enabled", true)
	v.SetDefault("maintenance_schedule", "*/15 * * * *")
	v.SetDefault("audit_retention_days", 30)

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Remote: Remote{
			URL:            v.GetString("REMOTE_URL"),
			APIKey:         v.GetString("REMOTE_API_KEY"),
			RequestTimeout: v.GetDuration("REMOTE_REQUEST_TIMEOUT"),
			SessionFile:    v.GetString("REMOTE_SESSION_FILE"),
			SessionKey:     v.GetString("REMOTE_SESSION_KEY"),
		},
		Auth: Auth{
			SessionLifetime:  v.GetDuration("AUTH_SESSION_LIFETIME"),
			BcryptCost:       v.GetInt("AUTH_BCRYPT_COST"),
			RegistrationOpen: v.GetBool("AUTH_REGISTRATION_OPEN"),
			MaxLoginAttempts: v.GetInt("AUTH_MAX_LOGIN_ATTEMPTS"),
			RateLimitWindow:  v.GetDuration("AUTH_RATE_LIMIT_WINDOW"),
			LockoutDuration:  v.GetDuration("AUTH_LOCKOUT_DURATION"),
		},
		Passcode: Passcode{
			TTL:            v.GetDuration("PASSCODE_TTL"),
			ResendCooldown: v.GetDuration("PASSCODE_RESEND_COOLDOWN"),
			EchoToLog:      v.GetBool("PASSCODE_ECHO_TO_LOG"),
		},
		Tasks: Tasks{
			Enabled:           v.GetBool("TASKS_ENABLED"),
			Workers:           v.GetInt("TASK_WORKERS"),
			MaxRetries:        v.GetInt("TASK_MAX_RETRIES"),
			RetryDelay:        v.GetDuration("TASK_RETRY_DELAY"),
			TaskTimeout:       v.GetDuration("TASK_TIMEOUT"),
			ReleaseAfter:      v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval:   v.GetDuration("TASK_CLEANUP_INTERVAL"),
			RetentionDuration: v.GetDuration("TASK_RETENTION_DURATION"),
		},
		Maintenance: Maintenance{
			Enabled:            v.GetBool("MAINTENANCE_ENABLED"),
			Schedule:           v.GetString("MAINTENANCE_SCHEDULE"),
			AuditRetentionDays: v.GetInt("AUDIT_RETENTION_DAYS"),
		},
	}
}
