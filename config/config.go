package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig  `yaml:"server" envPrefix:"FUND_SERVER_"`
	API         APIConfig     `yaml:"api" envPrefix:"FUND_API_"`
	Minio       MinioConfig   `yaml:"minio" envPrefix:"FUND_MINIO_"`
	Auth        AuthConfig    `yaml:"auth" envPrefix:"FUND_AUTH_"`
	Log         LogConfig     `yaml:"log" envPrefix:"FUND_LOG_"`
	Store       StoreConfig   `yaml:"store" envPrefix:"FUND_STORE_"`
	Wallet      WalletConfig  `yaml:"wallet" envPrefix:"FUND_WALLET_"`
	Session     SessionConfig `yaml:"session" envPrefix:"FUND_SESSION_"`
	Authorities []Authority   `yaml:"authorities"`
}

type ServerConfig struct {
	Port int `yaml:"port" env:"PORT"`
	// RateLimit is requests per minute per client IP, 0 disables it.
	RateLimit int `yaml:"rate_limit" env:"RATE_LIMIT"`
}

// APIConfig describes the upstream REST API the workflow client talks to.
type APIConfig struct {
	BaseURL        string `yaml:"base_url" env:"URL"`
	TimeoutSeconds int    `yaml:"timeout_seconds" env:"TIMEOUT_SECONDS"`
}

// MinioConfig enables object storage for uploaded documents. An empty
// endpoint keeps documents in memory.
type MinioConfig struct {
	Endpoint   string `yaml:"endpoint" env:"ENDPOINT"`
	AccessKey  string `yaml:"access_key" env:"ACCESS_KEY"`
	SecretKey  string `yaml:"secret_key" env:"SECRET_KEY"`
	Bucket     string `yaml:"bucket" env:"BUCKET"`
	UseSSL     bool   `yaml:"use_ssl" env:"USE_SSL"`
	ExpireDays int    `yaml:"expire_days" env:"EXPIRE_DAYS"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret" env:"JWT_SECRET"`
	TokenExpireHours int    `yaml:"token_expire_hours" env:"TOKEN_EXPIRE_HOURS"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

type StoreConfig struct {
	MaxProjects int `yaml:"max_projects" env:"MAX_PROJECTS"`
}

// WalletConfig holds the wallet addresses allowed to act as reviewing
// authorities.
type WalletConfig struct {
	AuthorizedAddresses []string `yaml:"authorized_addresses" env:"AUTHORIZED_ADDRESSES" envSeparator:","`
}

type SessionConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

// Authority is a reviewer seeded into the development API at startup.
type Authority struct {
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	Name       string `yaml:"name"`
	Department string `yaml:"department"`
	Wallet     string `yaml:"wallet"`
}

// Load reads the YAML file at path, overlays FUND_* environment variables and
// fills defaults. A missing file is an error; use Default for env-only setups.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if err := finish(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration built from defaults and the environment only.
func Default() (*Config, error) {
	var cfg Config
	if err := finish(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func finish(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	setDefaults(cfg)
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8001
	}
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = fmt.Sprintf("http://localhost:%d/api", cfg.Server.Port)
	}
	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")
	if cfg.API.TimeoutSeconds == 0 {
		cfg.API.TimeoutSeconds = 30
	}
	if cfg.Minio.ExpireDays == 0 {
		cfg.Minio.ExpireDays = 7
	}
	if cfg.Minio.Bucket == "" {
		cfg.Minio.Bucket = "project-documents"
	}
	if cfg.Auth.TokenExpireHours == 0 {
		cfg.Auth.TokenExpireHours = 24
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Session.Path == "" {
		cfg.Session.Path = defaultSessionPath()
	}
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".civicfund-session.yaml"
	}
	return filepath.Join(dir, "civicfund", "session.yaml")
}
