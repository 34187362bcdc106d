package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the certbot-ui server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Certbot   CertbotConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type JWTConfig struct {
	Secret    string
	ExpiresIn time.Duration
}

type CertbotConfig struct {
	Path      string
	ConfigDir string
	WorkDir   string
	LogsDir   string
	// HooksDir is where the manual-DNS hook scripts and the challenge
	// snapshot file live. Paths under it are fixed, not per-job; concurrent
	// manual-DNS obtains are a documented single-flight limitation.
	HooksDir string
	Timeout  time.Duration
}

type RateLimitConfig struct {
	RequestsPerMin int
	AuthPerMin     int
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("CERTBOT_UI_PORT", 5000),
			Env:  envString("CERTBOT_UI_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		JWT: JWTConfig{
			Secret:    os.Getenv("JWT_SECRET"),
			ExpiresIn: envDuration("JWT_EXPIRES_IN", 24*time.Hour),
		},
		Certbot: CertbotConfig{
			Path:      envString("CERTBOT_PATH", "/usr/bin/certbot"),
			ConfigDir: envString("CERTBOT_CONFIG_DIR", "/etc/letsencrypt"),
			WorkDir:   envString("CERTBOT_WORK_DIR", "/var/lib/letsencrypt"),
			LogsDir:   envString("CERTBOT_LOGS_DIR", "/var/log/letsencrypt"),
			HooksDir:  envString("CERTBOT_HOOKS_DIR", "/tmp"),
			Timeout:   envDuration("CERTBOT_TIMEOUT", 5*time.Minute),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMin: envInt("RATE_LIMIT_REQUESTS_PER_MIN", 100),
			AuthPerMin:     envInt("RATE_LIMIT_AUTH_PER_MIN", 10),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Server.Env == "production" && len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
	}

	if c.Certbot.Path == "" {
		return fmt.Errorf("CERTBOT_PATH must not be empty")
	}
	if c.Certbot.Timeout <= 0 {
		return fmt.Errorf("CERTBOT_TIMEOUT must be positive, got %s", c.Certbot.Timeout)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
