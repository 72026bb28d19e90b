package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

// Insecure default values that must never reach production
var insecureDefaults = map[string]bool{
	"your-secret-key-change-in-production": true,
	"internal-secret":                      true,
	"installation-secret":                  true,
	"":                                     true,
}

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	JWT            JWTConfig
	Cloud          CloudConfig
	Mailer         MailerConfig
	Provisioner    ProvisionerConfig
	Queue          QueueConfig
	InternalSecret string

	// Keys the conversion capability tokens are derived from
	InstallationSecret string
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	Schema   string
	SSLMode  string
}

type JWTConfig struct {
	SecretKey string
}

// CloudConfig holds Frappe Cloud API credentials and site defaults
type CloudConfig struct {
	BaseURL        string
	APIKey         string
	APISecret      string
	Team           string
	DemoDomain     string
	DefaultCluster string
}

type MailerConfig struct {
	ServiceURL string
}

// ProvisionerConfig holds workflow tunables
type ProvisionerConfig struct {
	SubdomainPrefix  string
	DefaultTrialDays int
	DailyLimit       int
	TokenExpiryHours int
	ExpiryWarnDays   int

	PollInterval time.Duration
	PollCeiling  time.Duration

	// Settle delays after remote-side triggers
	InstallSettleDelay time.Duration
	BackupSettleDelay  time.Duration
	SelfHostBackupWait time.Duration

	// Base URL of this service, used to build conversion links
	PublicURL string
}

type QueueConfig struct {
	Workers int
	Buffer  int
}

func Load() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8006"),
			Mode: getEnv("GIN_MODE", "release"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "frappekit_user"),
			Password: getEnv("DB_PASSWORD", "frappekit_pass"),
			DBName:   getEnv("DB_NAME", "frappekit_db"),
			Schema:   getEnv("DB_SCHEMA", "provisioner"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET_KEY", ""),
		},
		Cloud: CloudConfig{
			BaseURL:        getEnv("FRAPPE_CLOUD_URL", "https://frappecloud.com/api/method"),
			APIKey:         getEnv("FRAPPE_CLOUD_API_KEY", ""),
			APISecret:      getEnv("FRAPPE_CLOUD_API_SECRET", ""),
			Team:           getEnv("FRAPPE_CLOUD_TEAM", ""),
			DemoDomain:     getEnv("DEMO_DOMAIN", "frappe.cloud"),
			DefaultCluster: getEnv("DEFAULT_CLUSTER", "Mumbai"),
		},
		Mailer: MailerConfig{
			ServiceURL: getEnv("MAILER_SERVICE_URL", "http://localhost:8025"),
		},
		Provisioner: ProvisionerConfig{
			SubdomainPrefix:    getEnv("SUBDOMAIN_PREFIX", ""),
			DefaultTrialDays:   getEnvInt("DEFAULT_TRIAL_DAYS", 14),
			DailyLimit:         getEnvInt("DAILY_PROVISIONING_LIMIT", 20),
			TokenExpiryHours:   getEnvInt("CONVERSION_TOKEN_EXPIRY_HOURS", 72),
			ExpiryWarnDays:     getEnvInt("EXPIRY_WARNING_DAYS", 3),
			PollInterval:       getEnvDuration("SITE_POLL_INTERVAL", 10*time.Second),
			PollCeiling:        getEnvDuration("SITE_POLL_CEILING", 180*time.Second),
			InstallSettleDelay: getEnvDuration("INSTALL_SETTLE_DELAY", 5*time.Second),
			BackupSettleDelay:  getEnvDuration("BACKUP_SETTLE_DELAY", 10*time.Second),
			SelfHostBackupWait: getEnvDuration("SELFHOST_BACKUP_WAIT", 30*time.Second),
			PublicURL:          getEnv("PUBLIC_URL", "http://localhost:8006"),
		},
		Queue: QueueConfig{
			Workers: getEnvInt("QUEUE_WORKERS", 4),
			Buffer:  getEnvInt("QUEUE_BUFFER", 64),
		},
		InternalSecret:     getEnv("INTERNAL_SECRET", ""),
		InstallationSecret: getEnv("INSTALLATION_SECRET", ""),
	}

	// Do not log credentials
	log.Printf("[config] Provisioner Service loaded: port=%s db=%s/%s.%s cloud=%s",
		cfg.Server.Port, cfg.Database.Host, cfg.Database.DBName, cfg.Database.Schema, cfg.Cloud.BaseURL)

	return cfg
}

// Validate checks that secrets and remote credentials are usable. Missing
// Frappe Cloud credentials are a fatal configuration error, not a per-call
// error.
func (c *Config) Validate() error {
	if insecureDefaults[c.JWT.SecretKey] {
		return fmt.Errorf("JWT_SECRET_KEY must be set to a secure value (current value is insecure or empty)")
	}
	if len(c.JWT.SecretKey) < 32 {
		return fmt.Errorf("JWT_SECRET_KEY must be at least 32 characters long")
	}

	if insecureDefaults[c.InternalSecret] {
		return fmt.Errorf("INTERNAL_SECRET must be set to a secure value (current value is insecure or empty)")
	}
	if len(c.InternalSecret) < 32 {
		return fmt.Errorf("INTERNAL_SECRET must be at least 32 characters long")
	}

	if insecureDefaults[c.InstallationSecret] {
		return fmt.Errorf("INSTALLATION_SECRET must be set to a secure value (current value is insecure or empty)")
	}

	if c.Cloud.APIKey == "" || c.Cloud.APISecret == "" || c.Cloud.Team == "" {
		return fmt.Errorf("Frappe Cloud API credentials not configured (FRAPPE_CLOUD_API_KEY/SECRET/TEAM)")
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + c.Port + "/" + c.DBName + "?sslmode=" + c.SSLMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
