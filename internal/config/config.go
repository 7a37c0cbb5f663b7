// Package config loads service configuration from defaults, an optional
// YAML file, a .env file and YAMDB_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	Mail     MailConfig     `koanf:"mail"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
	API      APIConfig      `koanf:"api"`
}

type ServerConfig struct {
	HTTPAddr        string        `koanf:"http_addr"`
	GRPCAddr        string        `koanf:"grpc_addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"`
}

type DatabaseConfig struct {
	Driver       string `koanf:"driver"`
	URL          string `koanf:"url"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

type AuthConfig struct {
	JWTSecret string        `koanf:"jwt_secret"`
	TokenTTL  time.Duration `koanf:"token_ttl"`
	CodeTTL   time.Duration `koanf:"code_ttl"`
	Issuer    string        `koanf:"issuer"`
}

type MailConfig struct {
	Backend            string        `koanf:"backend"`
	From               string        `koanf:"from"`
	SMTPHost           string        `koanf:"smtp_host"`
	SMTPPort           int           `koanf:"smtp_port"`
	SMTPUser           string        `koanf:"smtp_user"`
	SMTPPassword       string        `koanf:"smtp_password"`
	UseTLS             bool          `koanf:"use_tls"`
	Timeout            time.Duration `koanf:"timeout"`
	BreakerMaxFailures uint32        `koanf:"breaker_max_failures"`
	BreakerTimeout     time.Duration `koanf:"breaker_timeout"`
}

type SecurityConfig struct {
	CORSOrigins    string        `koanf:"cors_origins"`
	AuthRateLimit  int           `koanf:"auth_rate_limit"`
	AuthRateWindow time.Duration `koanf:"auth_rate_window"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
}

const (
	devJWTSecret    = "yamdb-development-secret-change-me-please"
	minSecretLength = 32
)

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:        ":8000",
			GRPCAddr:        ":9090",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Environment:     "development",
		},
		Database: DatabaseConfig{
			Driver:       "sqlite3",
			URL:          "yamdb.db",
			MaxOpenConns: 10,
			AutoMigrate:  true,
		},
		Auth: AuthConfig{
			JWTSecret: devJWTSecret,
			TokenTTL:  24 * time.Hour,
			CodeTTL:   72 * time.Hour,
			Issuer:    "yamdb",
		},
		Mail: MailConfig{
			Backend:            "console",
			From:               "noreply@yamdb.local",
			SMTPPort:           587,
			UseTLS:             true,
			Timeout:            10 * time.Second,
			BreakerMaxFailures: 5,
			BreakerTimeout:     time.Minute,
		},
		Security: SecurityConfig{
			CORSOrigins:    "*",
			AuthRateLimit:  20,
			AuthRateWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		API: APIConfig{
			DefaultPageSize: 10,
			MaxPageSize:     100,
		},
	}
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}

// Origins splits the comma-separated CORS origin list.
func (c SecurityConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "postgres", "sqlite3":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be postgres or sqlite3, got %q", c.Database.Driver))
	}
	if c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	if c.IsProduction() && (c.Auth.JWTSecret == devJWTSecret || len(c.Auth.JWTSecret) < minSecretLength) {
		errs = append(errs, fmt.Errorf("auth.jwt_secret must be a non-default secret of at least %d bytes in production", minSecretLength))
	}
	if c.Auth.TokenTTL <= 0 || c.Auth.CodeTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl and auth.code_ttl must be positive"))
	}
	switch c.Mail.Backend {
	case "console":
	case "smtp":
		if c.Mail.SMTPHost == "" {
			errs = append(errs, errors.New("mail.smtp_host is required for the smtp backend"))
		}
		if c.Mail.SMTPPort <= 0 || c.Mail.SMTPPort > 65535 {
			errs = append(errs, fmt.Errorf("mail.smtp_port %d is out of range", c.Mail.SMTPPort))
		}
	default:
		errs = append(errs, fmt.Errorf("mail.backend must be smtp or console, got %q", c.Mail.Backend))
	}
	if c.Mail.From == "" {
		errs = append(errs, errors.New("mail.from is required"))
	}
	if c.API.DefaultPageSize <= 0 || c.API.MaxPageSize < c.API.DefaultPageSize {
		errs = append(errs, errors.New("api.default_page_size must be positive and not exceed api.max_page_size"))
	}
	return errors.Join(errs...)
}
