package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "CHOREWHEEL_"

// Config holds application configuration.
type Config struct {
	Port           string        `yaml:"port"`
	DBPath         string        `yaml:"db_path"`
	LogLevel       string        `yaml:"log_level"`
	LogFormat      string        `yaml:"log_format"`
	JWTSecret      string        `yaml:"jwt_secret"`
	TokenTTL       time.Duration `yaml:"token_ttl"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	Backup         Backup        `yaml:"backup"`
}

// Backup configures encrypted database snapshots to S3-compatible storage.
type Backup struct {
	Endpoint   string        `yaml:"endpoint"`
	Bucket     string        `yaml:"bucket"`
	Region     string        `yaml:"region"`
	AccessKey  string        `yaml:"access_key"`
	SecretKey  string        `yaml:"secret_key"`
	Prefix     string        `yaml:"prefix"`
	Passphrase string        `yaml:"passphrase"`
	Interval   time.Duration `yaml:"interval"`
	Retention  time.Duration `yaml:"retention"`
}

// Enabled reports whether enough is configured to upload a snapshot.
func (b Backup) Enabled() bool {
	return b.Bucket != "" && b.AccessKey != "" && b.SecretKey != "" && b.Passphrase != ""
}

func Default() Config {
	return Config{
		Port:           "8080",
		DBPath:         "chorewheel.db",
		LogLevel:       "info",
		LogFormat:      "text",
		TokenTTL:       7 * 24 * time.Hour,
		AllowedOrigins: []string{"*"},
		Backup: Backup{
			Region:    "us-east-1",
			Prefix:    "snapshots/",
			Retention: 30 * 24 * time.Hour,
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty), then CHOREWHEEL_* environment variables. A
// .env file in the working directory is loaded into the environment first.
// Commands that serve requests call Validate on the result.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Port = getEnv("PORT", c.Port)
	c.DBPath = getEnv("DB_PATH", c.DBPath)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)

	if v := getEnv("TOKEN_TTL", ""); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %sTOKEN_TTL: %w", envPrefix, err)
		}
		c.TokenTTL = ttl
	}
	if v := getEnv("ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = splitList(v)
	}

	b := &c.Backup
	b.Endpoint = getEnv("BACKUP_ENDPOINT", b.Endpoint)
	b.Bucket = getEnv("BACKUP_BUCKET", b.Bucket)
	b.Region = getEnv("BACKUP_REGION", b.Region)
	b.AccessKey = getEnv("BACKUP_ACCESS_KEY", b.AccessKey)
	b.SecretKey = getEnv("BACKUP_SECRET_KEY", b.SecretKey)
	b.Prefix = getEnv("BACKUP_PREFIX", b.Prefix)
	b.Passphrase = getEnv("BACKUP_PASSPHRASE", b.Passphrase)
	for key, dst := range map[string]*time.Duration{
		"BACKUP_INTERVAL":  &b.Interval,
		"BACKUP_RETENTION": &b.Retention,
	} {
		if v := getEnv(key, ""); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("parse %s%s: %w", envPrefix, key, err)
			}
			*dst = d
		}
	}
	return nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("jwt secret is required (set %sJWT_SECRET)", envPrefix)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token ttl must be positive, got %s", c.TokenTTL)
	}
	if c.Port == "" {
		return errors.New("port is required")
	}
	if c.Backup.Interval > 0 && !c.Backup.Enabled() {
		return errors.New("backup interval set but bucket, credentials or passphrase are missing")
	}
	return nil
}

// getEnv reads CHOREWHEEL_<key> or returns fallback.
func getEnv(key, fallback string) string {
	if value := os.Getenv(envPrefix + key); value != "" {
		return value
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
