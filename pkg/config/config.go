// Package config loads the notebookd configuration file.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/txn2/ai-notebook/pkg/kvstore"
	"github.com/txn2/ai-notebook/pkg/password"
)

// Backend modes.
const (
	BackendAuto     = "auto"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Audit sinks.
const (
	AuditLog      = "log"
	AuditPostgres = "postgres"
)

// SQL drivers for database.driver.
const (
	DriverPQ  = "postgres"
	DriverPgx = "pgx"
)

// placeholderDSN is the value shipped in example configs.
const placeholderDSN = "your_database_dsn_here"

// Config is the root configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Auth        AuthConfig        `yaml:"auth"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Backend     BackendConfig     `yaml:"backend"`
	Database    DatabaseConfig    `yaml:"database"`
	Audit       AuditConfig       `yaml:"audit"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
}

// LogConfig configures the root logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AuthConfig configures the auth emulator.
type AuthConfig struct {
	SigningKey        string          `yaml:"signing_key"`
	Issuer            string          `yaml:"issuer"`
	SessionTTL        time.Duration   `yaml:"session_ttl"`
	SessionKey        string          `yaml:"session_key"`
	AccountsKey       string          `yaml:"accounts_key"`
	MinPasswordLength int             `yaml:"min_password_length"`
	SyncInterval      time.Duration   `yaml:"sync_interval"`
	Password          password.Params `yaml:"password"`
}

// PersistenceConfig selects where the session is persisted.
type PersistenceConfig struct {
	Mode string `yaml:"mode"`
	Path string `yaml:"path"`
}

// BackendConfig selects the table store.
type BackendConfig struct {
	Mode string `yaml:"mode"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	Driver          string        `yaml:"driver"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	SkipMigrations  bool          `yaml:"skip_migrations"`
}

// AuditConfig configures the auth audit trail.
type AuditConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Store         string `yaml:"store"`
	RetentionDays int    `yaml:"retention_days"`
}

// Default returns a configuration that runs entirely in memory.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads the YAML file at path, expanding ${VAR} references, and
// applies defaults. An empty path returns Default().
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	// #nosec G304 -- path is from CLI args, controlled by admin
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration data.
func Parse(data []byte) (*Config, error) {
	data = []byte(expandEnvVars(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 4 << 20
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "ai-notebook"
	}
	if cfg.Auth.MinPasswordLength == 0 {
		cfg.Auth.MinPasswordLength = 6
	}
	if cfg.Auth.SessionTTL == 0 {
		cfg.Auth.SessionTTL = time.Hour
	}
	applyPasswordDefaults(&cfg.Auth.Password)
	if cfg.Persistence.Mode == "" {
		cfg.Persistence.Mode = kvstore.ModeMemory
	}
	if cfg.Backend.Mode == "" {
		cfg.Backend.Mode = BackendAuto
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverPQ
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 5 * time.Minute
	}
	if cfg.Audit.Store == "" {
		cfg.Audit.Store = AuditLog
	}
	if cfg.Audit.RetentionDays == 0 {
		cfg.Audit.RetentionDays = 90
	}
}

func applyPasswordDefaults(p *password.Params) {
	d := password.DefaultParams()
	if p.Memory == 0 {
		p.Memory = d.Memory
	}
	if p.Iterations == 0 {
		p.Iterations = d.Iterations
	}
	if p.Parallelism == 0 {
		p.Parallelism = d.Parallelism
	}
	if p.SaltLength == 0 {
		p.SaltLength = d.SaltLength
	}
	if p.KeyLength == 0 {
		p.KeyLength = d.KeyLength
	}
}

// HasDatabase reports whether database.dsn holds a usable PostgreSQL URL
// rather than being empty or a placeholder.
func (c *Config) HasDatabase() bool {
	dsn := strings.TrimSpace(c.Database.DSN)
	if dsn == "" || dsn == placeholderDSN {
		return false
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return false
	}
	return u.Scheme == "postgres" || u.Scheme == "postgresql"
}

// UseDatabaseBackend reports whether tables are served from PostgreSQL.
func (c *Config) UseDatabaseBackend() bool {
	switch c.Backend.Mode {
	case BackendPostgres:
		return true
	case BackendAuto:
		return c.HasDatabase()
	}
	return false
}

// NeedsDatabase reports whether any component requires a connection.
func (c *Config) NeedsDatabase() bool {
	return c.UseDatabaseBackend() ||
		c.Persistence.Mode == kvstore.ModePostgres ||
		(c.Audit.Enabled && c.Audit.Store == AuditPostgres)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Log.Level) {
		errs = append(errs, "log.level must be debug, info, warn or error")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, "log.format must be json or text")
	}

	switch c.Persistence.Mode {
	case kvstore.ModeMemory, kvstore.ModePostgres:
	case kvstore.ModeFile, kvstore.ModeSQLite:
		if c.Persistence.Path == "" {
			errs = append(errs, "persistence.path is required for "+c.Persistence.Mode+" mode")
		}
	default:
		errs = append(errs, fmt.Sprintf("persistence.mode %q is not supported", c.Persistence.Mode))
	}

	if !slices.Contains([]string{BackendAuto, BackendMemory, BackendPostgres}, c.Backend.Mode) {
		errs = append(errs, fmt.Sprintf("backend.mode %q is not supported", c.Backend.Mode))
	}
	if c.Audit.Store != AuditLog && c.Audit.Store != AuditPostgres {
		errs = append(errs, fmt.Sprintf("audit.store %q is not supported", c.Audit.Store))
	}
	if c.Database.Driver != DriverPQ && c.Database.Driver != DriverPgx {
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported", c.Database.Driver))
	}
	if c.NeedsDatabase() && !c.HasDatabase() {
		errs = append(errs, "database.dsn must be a postgres:// URL when a postgres component is enabled")
	}

	if c.Server.MaxBodyBytes < 0 {
		errs = append(errs, "server.max_body_bytes must not be negative")
	}
	if c.Auth.MinPasswordLength < 0 {
		errs = append(errs, "auth.min_password_length must not be negative")
	}
	if c.Auth.SessionTTL < time.Minute {
		errs = append(errs, "auth.session_ttl must be at least 1m")
	}
	if c.Auth.SyncInterval < 0 {
		errs = append(errs, "auth.sync_interval must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// NewLogger builds the root logger described by c.Log.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	_ = level.UnmarshalText([]byte(c.Log.Level))

	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
