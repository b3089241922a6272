package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the config file name looked up next to the binary.
const DefaultConfigFile = "config.yaml"

// AppConfig carries command-level options shared by all subcommands.
type AppConfig struct {
	ConfigPath string
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig configures the relational store.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// JWTConfig configures bearer token signing.
type JWTConfig struct {
	Secret        string        `yaml:"secret"`
	Expiry        time.Duration `yaml:"expiry"`
	SessionExpiry time.Duration `yaml:"session-expiry"`
}

// RedisConfig configures the optional session cache.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StorageConfig configures the S3-compatible object store inspector.
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access-key"`
	SecretKey string `yaml:"secret-key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use-ssl"`
	Region    string `yaml:"region"`
}

// LoggingConfig configures log output and rotation.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max-size-mb"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAgeDays int    `yaml:"max-age-days"`
}

// Config is the root configuration document.
type Config struct {
	Server        ServerConfig   `yaml:"server"`
	Database      DatabaseConfig `yaml:"database"`
	JWT           JWTConfig      `yaml:"jwt"`
	Redis         RedisConfig    `yaml:"redis"`
	Storage       StorageConfig  `yaml:"storage"`
	Logging       LoggingConfig  `yaml:"logging"`
	EncryptionKey string         `yaml:"encryption-key"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, errRead := os.ReadFile(path)
	if errRead != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, errRead)
	}
	cfg := &Config{}
	if errUnmarshal := yaml.Unmarshal(data, cfg); errUnmarshal != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, errUnmarshal)
	}
	cfg.applyDefaults()
	if errValidate := cfg.validate(); errValidate != nil {
		return nil, errValidate
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Server.Addr) == "" {
		c.Server.Addr = ":3000"
	}
	if c.JWT.Expiry <= 0 {
		c.JWT.Expiry = 24 * time.Hour
	}
	if c.JWT.SessionExpiry <= 0 {
		c.JWT.SessionExpiry = 7 * 24 * time.Hour
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = 100
	}
	if c.Logging.MaxBackups <= 0 {
		c.Logging.MaxBackups = 3
	}
	if c.Logging.MaxAgeDays <= 0 {
		c.Logging.MaxAgeDays = 28
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("config: database.dsn is required")
	}
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return fmt.Errorf("config: jwt.secret is required")
	}
	return nil
}

// LoadDatabaseDSN reads only the database DSN from the config file.
func LoadDatabaseDSN(path string) (string, error) {
	cfg, err := Load(path)
	if err != nil {
		return "", err
	}
	return cfg.Database.DSN, nil
}

// LoadJWTConfig reads only the JWT section from the config file.
func LoadJWTConfig(path string) (JWTConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return JWTConfig{}, err
	}
	return cfg.JWT, nil
}

// ResolveConfigPath normalizes a user-supplied config path, defaulting to
// config.yaml in the working directory.
func ResolveConfigPath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		trimmed = DefaultConfigFile
	}
	if abs, errAbs := filepath.Abs(trimmed); errAbs == nil {
		return abs
	}
	return trimmed
}

// SetupLogging configures logrus output, level, and rotation.
func SetupLogging(cfg LoggingConfig) {
	level, errParse := log.ParseLevel(strings.TrimSpace(cfg.Level))
	if errParse != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if strings.TrimSpace(cfg.File) == "" {
		log.SetOutput(os.Stdout)
		return
	}
	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rotator))
}
