package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/teamlens/teamlens/internal/scope"
)

// Config captures the runtime configuration for the dashboard service.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Upstream      UpstreamConfig      `mapstructure:"upstream"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Sessions      SessionsConfig      `mapstructure:"sessions"`
	Exports       ExportsConfig       `mapstructure:"exports"`
	Reporting     ReportingConfig     `mapstructure:"reporting"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	ListenAddr            string        `mapstructure:"listen_addr"`
	BodyLimitMB           int           `mapstructure:"body_limit_mb"`
	ReadTimeout           time.Duration `mapstructure:"read_timeout"`
	IdleTimeout           time.Duration `mapstructure:"idle_timeout"`
	GracefulShutdownDelay time.Duration `mapstructure:"graceful_shutdown_delay"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	RunMigrations   bool          `mapstructure:"run_migrations"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

type RedisConfig struct {
	URL      string `mapstructure:"url"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// UpstreamConfig points at the analytics API this service queries on behalf
// of dashboard sessions.
type UpstreamConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	APIToken      string        `mapstructure:"api_token"`
	Timeout       time.Duration `mapstructure:"timeout"`
	ExportTimeout time.Duration `mapstructure:"export_timeout"`
	RefCacheTTL   time.Duration `mapstructure:"ref_cache_ttl"`
	HealthCheck   HealthConfig  `mapstructure:"health_check"`
}

type HealthConfig struct {
	CheckInterval time.Duration `mapstructure:"check_interval"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type AuthConfig struct {
	Session SessionTokenConfig `mapstructure:"session"`
	Local   LocalAuthConfig    `mapstructure:"local"`
	OIDC    OIDCConfig         `mapstructure:"oidc"`
}

type SessionTokenConfig struct {
	JWTSecret       string        `mapstructure:"jwt_secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
	CookieName      string        `mapstructure:"cookie_name"`
}

type LocalAuthConfig struct {
	Enabled bool        `mapstructure:"enabled"`
	Users   []LocalUser `mapstructure:"users"`
}

// LocalUser is a statically provisioned dashboard account. PasswordHash is
// an encoded argon2id hash; Role is admin, observer, or member; Teams lists
// the team ids an observer manages.
type LocalUser struct {
	ID           string   `mapstructure:"id"`
	Email        string   `mapstructure:"email"`
	Name         string   `mapstructure:"name"`
	PasswordHash string   `mapstructure:"password_hash"`
	Role         string   `mapstructure:"role"`
	Teams        []string `mapstructure:"teams"`
}

type OIDCConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Issuer        string        `mapstructure:"issuer"`
	ClientID      string        `mapstructure:"client_id"`
	ClientSecret  string        `mapstructure:"client_secret"`
	RedirectURL   string        `mapstructure:"redirect_url"`
	Scopes        []string      `mapstructure:"scopes"`
	HTTPTimeout   time.Duration `mapstructure:"http_timeout"`
	RolesClaim    string        `mapstructure:"roles_claim"`
	TeamsClaim    string        `mapstructure:"teams_claim"`
	AdminRoles    []string      `mapstructure:"admin_roles"`
	ObserverRoles []string      `mapstructure:"observer_roles"`
}

type SessionsConfig struct {
	IdleTTL       time.Duration `mapstructure:"idle_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	PersistTTL    time.Duration `mapstructure:"persist_ttl"`
}

type ExportsConfig struct {
	ArchiveEnabled bool             `mapstructure:"archive_enabled"`
	Storage        string           `mapstructure:"storage"`
	HistoryLimit   int              `mapstructure:"history_limit"`
	MaxPerMinute   int              `mapstructure:"max_per_minute"`
	MaxParallel    int              `mapstructure:"max_parallel"`
	S3             ExportsS3Config  `mapstructure:"s3"`
	Local          ExportsDirConfig `mapstructure:"local"`
}

type ExportsS3Config struct {
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

type ExportsDirConfig struct {
	Directory string `mapstructure:"directory"`
}

type ReportingConfig struct {
	Timezone string `mapstructure:"timezone"`
}

type ObservabilityConfig struct {
	OTLPEndpoint  string `mapstructure:"otlp_endpoint"`
	EnableOTLP    bool   `mapstructure:"enable_otlp"`
	EnableMetrics bool   `mapstructure:"enable_metrics"`
}

// Options controls the config loader behavior.
type Options struct {
	ConfigFile string
	EnvFile    string
}

// Load returns the merged configuration sourced from YAML and environment variables.
func Load(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		_ = godotenv.Load(opts.EnvFile)
	} else {
		_ = godotenv.Load()
	}

	v := viper.New()
	setDefaults(v)

	explicitFile := false
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		explicitFile = true
	} else {
		if cfg := os.Getenv("TEAMLENS_CONFIG_FILE"); cfg != "" {
			v.SetConfigFile(cfg)
			explicitFile = true
		}
	}

	if !explicitFile {
		// Allow standard lookup locations when no explicit file is provided.
		v.SetConfigName("teamlens")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("TEAMLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(timeStringToDurationHook())); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate ensures required values are set.
func (c *Config) Validate() error {
	var missing []string

	if c.Database.URL == "" {
		missing = append(missing, "TEAMLENS_DATABASE_URL")
	}
	if c.Redis.URL == "" {
		missing = append(missing, "TEAMLENS_REDIS_URL")
	}
	if c.Upstream.BaseURL == "" {
		missing = append(missing, "TEAMLENS_UPSTREAM_BASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.Database.RunMigrations && c.Database.MigrationsDir == "" {
		return fmt.Errorf("database.migrations_dir must be provided when run_migrations is true")
	}
	if c.Database.MaxConns < 0 {
		return fmt.Errorf("database.max_conns must be >= 0")
	}
	if c.Redis.PoolSize < 0 {
		return fmt.Errorf("redis.pool_size must be >= 0")
	}

	reportingTZ := strings.TrimSpace(c.Reporting.Timezone)
	if reportingTZ == "" {
		reportingTZ = "UTC"
	}
	if _, err := time.LoadLocation(reportingTZ); err != nil {
		return fmt.Errorf("invalid reporting.timezone: %w", err)
	}
	c.Reporting.Timezone = reportingTZ

	if err := c.Auth.validate(); err != nil {
		return err
	}
	if err := c.Exports.validate(); err != nil {
		return err
	}
	if c.Sessions.IdleTTL <= 0 {
		c.Sessions.IdleTTL = 30 * time.Minute
	}
	if c.Sessions.SweepInterval <= 0 {
		c.Sessions.SweepInterval = 5 * time.Minute
	}
	if c.Sessions.PersistTTL <= 0 {
		c.Sessions.PersistTTL = 168 * time.Hour
	}
	if c.Upstream.Timeout <= 0 {
		c.Upstream.Timeout = 30 * time.Second
	}
	if c.Upstream.ExportTimeout <= 0 {
		c.Upstream.ExportTimeout = 5 * time.Minute
	}
	if c.Upstream.RefCacheTTL <= 0 {
		c.Upstream.RefCacheTTL = 5 * time.Minute
	}

	return nil
}

func (a *AuthConfig) validate() error {
	if a.Session.JWTSecret == "" {
		return fmt.Errorf("auth.session.jwt_secret must be provided")
	}
	if a.Session.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.session.access_token_ttl must be > 0")
	}
	if a.Session.RefreshTokenTTL <= 0 {
		return fmt.Errorf("auth.session.refresh_token_ttl must be > 0")
	}
	if a.Session.CookieName == "" {
		return fmt.Errorf("auth.session.cookie_name must be provided")
	}

	if !a.Local.Enabled && !a.OIDC.Enabled {
		return fmt.Errorf("at least one authentication method must be enabled (local or oidc)")
	}

	if a.Local.Enabled {
		for i, u := range a.Local.Users {
			if u.Email == "" {
				return fmt.Errorf("auth.local.users[%d].email must be provided", i)
			}
			if u.PasswordHash == "" {
				return fmt.Errorf("auth.local.users[%d].password_hash must be provided", i)
			}
			if _, ok := scope.ParseRole(u.Role); !ok {
				return fmt.Errorf("auth.local.users[%d].role %q is not a valid role", i, u.Role)
			}
		}
	}

	if a.OIDC.Enabled {
		if a.OIDC.Issuer == "" {
			return fmt.Errorf("auth.oidc.issuer must be provided when OIDC is enabled")
		}
		if a.OIDC.ClientID == "" {
			return fmt.Errorf("auth.oidc.client_id must be provided when OIDC is enabled")
		}
		if a.OIDC.ClientSecret == "" {
			return fmt.Errorf("auth.oidc.client_secret must be provided when OIDC is enabled")
		}
		if a.OIDC.RedirectURL == "" {
			return fmt.Errorf("auth.oidc.redirect_url must be provided when OIDC is enabled")
		}
		if a.OIDC.HTTPTimeout <= 0 {
			return fmt.Errorf("auth.oidc.http_timeout must be > 0")
		}
	}

	return nil
}

func (e *ExportsConfig) validate() error {
	if strings.TrimSpace(e.Storage) == "" {
		e.Storage = "local"
	}
	if e.HistoryLimit <= 0 {
		e.HistoryLimit = 50
	}
	if e.ArchiveEnabled && strings.EqualFold(e.Storage, "s3") && e.S3.Bucket == "" {
		return fmt.Errorf("exports.s3.bucket must be provided for s3 archive storage")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.body_limit_mb", 5)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.graceful_shutdown_delay", "5s")

	v.SetDefault("database.run_migrations", true)
	v.SetDefault("database.migrations_dir", "./migrations")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_idle_time", "10m")
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("upstream.timeout", "30s")
	v.SetDefault("upstream.export_timeout", "5m")
	v.SetDefault("upstream.ref_cache_ttl", "5m")
	v.SetDefault("upstream.health_check.check_interval", "1m")
	v.SetDefault("upstream.health_check.timeout", "5s")

	v.SetDefault("auth.session.access_token_ttl", "15m")
	v.SetDefault("auth.session.refresh_token_ttl", "24h")
	v.SetDefault("auth.session.cookie_name", "teamlens_session")
	v.SetDefault("auth.local.enabled", true)
	v.SetDefault("auth.oidc.enabled", false)
	v.SetDefault("auth.oidc.scopes", []string{"openid", "email", "profile"})
	v.SetDefault("auth.oidc.http_timeout", "5s")
	v.SetDefault("auth.oidc.roles_claim", "roles")
	v.SetDefault("auth.oidc.teams_claim", "teams")

	v.SetDefault("sessions.idle_ttl", "30m")
	v.SetDefault("sessions.sweep_interval", "5m")
	v.SetDefault("sessions.persist_ttl", "168h")

	v.SetDefault("exports.archive_enabled", true)
	v.SetDefault("exports.storage", "local")
	v.SetDefault("exports.history_limit", 50)
	v.SetDefault("exports.local.directory", "./data/exports")
	v.SetDefault("exports.max_per_minute", 6)
	v.SetDefault("exports.max_parallel", 2)

	v.SetDefault("reporting.timezone", "UTC")

	v.SetDefault("observability.enable_otlp", false)
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.otlp_endpoint", "http://localhost:4317")
}

func timeStringToDurationHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case time.Duration:
			return v, nil
		case string:
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, err
			}
			return d, nil
		default:
			return nil, fmt.Errorf("cannot decode %T into time.Duration", data)
		}
	}
}
