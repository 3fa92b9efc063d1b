package config

import (
	stderrors "errors"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/vango-dev/isorender/internal/errors"
	"github.com/vango-dev/isorender/pkg/meta"
)

const (
	// FileName is the configuration file name without extension.
	FileName = "isorender"

	// EnvPrefix prefixes configuration environment variables.
	EnvPrefix = "ISORENDER"

	// EnvConfigFile names an explicit configuration file.
	EnvConfigFile = EnvPrefix + "_CONFIG"
)

// Config is the complete configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Assets   AssetsConfig   `mapstructure:"assets"`
	Live     LiveConfig     `mapstructure:"live"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Meta     meta.Meta      `mapstructure:"meta"`
	Export   ExportConfig   `mapstructure:"export"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Sentry   SentryConfig   `mapstructure:"sentry"`
	Log      LogConfig      `mapstructure:"log"`

	file string
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Basename string `mapstructure:"basename"`

	// Development renders detailed error pages and watches the asset
	// manifest.
	Development bool `mapstructure:"development"`

	SecureCookies  bool     `mapstructure:"secure_cookies"`
	BehindProxy    bool     `mapstructure:"behind_proxy"`
	TrustedProxies []string `mapstructure:"trusted_proxies"`

	APIBaseURL        string `mapstructure:"api_base_url"`
	AllowAbsoluteURLs bool   `mapstructure:"allow_absolute_urls"`

	StaticDir    string `mapstructure:"static_dir"`
	StaticPath   string `mapstructure:"static_path"`
	BasePagePath string `mapstructure:"base_page_path"`
	HealthPath   string `mapstructure:"health_path"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AuthConfig configures the authentication cookie.
type AuthConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	CookieName string        `mapstructure:"cookie_name"`
	AuthKey    string        `mapstructure:"auth_key"`
	EncryptKey string        `mapstructure:"encrypt_key"`
	JWTSecret  string        `mapstructure:"jwt_secret"`
	MaxAge     time.Duration `mapstructure:"max_age"`
}

// AssetsConfig locates the bundler manifest.
type AssetsConfig struct {
	Manifest string   `mapstructure:"manifest"`
	Entries  []string `mapstructure:"entries"`

	// Watch reloads the manifest on change. Development mode always
	// watches.
	Watch bool `mapstructure:"watch"`
}

// WatchManifest reports whether the manifest should be reloaded on change.
func (a AssetsConfig) WatchManifest(development bool) bool {
	return a.Manifest != "" && (a.Watch || development)
}

// LiveConfig configures the WebSocket transport.
type LiveConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Path         string        `mapstructure:"path"`
	Rate         float64       `mapstructure:"rate"`
	Burst        int           `mapstructure:"burst"`
	ResumeWindow time.Duration `mapstructure:"resume_window"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
}

// SnapshotConfig selects where live-session state is kept.
type SnapshotConfig struct {
	// Backend is "memory" or "redis".
	Backend  string        `mapstructure:"backend"`
	RedisURL string        `mapstructure:"redis_url"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// ExportConfig configures static export.
type ExportConfig struct {
	Dir         string   `mapstructure:"dir"`
	Bucket      string   `mapstructure:"bucket"`
	Region      string   `mapstructure:"region"`
	Prefix      string   `mapstructure:"prefix"`
	Endpoint    string   `mapstructure:"endpoint"`
	Paths       []string `mapstructure:"paths"`
	Concurrency int      `mapstructure:"concurrency"`

	// IncludeRoutes adds every page without parameters to Paths.
	IncludeRoutes bool `mapstructure:"include_routes"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
	Tracing   bool   `mapstructure:"tracing"`
}

// SentryConfig configures error reporting. An empty DSN disables it.
type SentryConfig struct {
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// LogConfig configures the slog logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.basename", "")
	v.SetDefault("server.development", false)
	v.SetDefault("server.secure_cookies", false)
	v.SetDefault("server.behind_proxy", false)
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("server.api_base_url", "")
	v.SetDefault("server.allow_absolute_urls", false)
	v.SetDefault("server.static_dir", "")
	v.SetDefault("server.static_path", "/assets/")
	v.SetDefault("server.base_page_path", "/isorender-base")
	v.SetDefault("server.health_path", "/healthz")
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.cookie_name", "isorender-auth")
	v.SetDefault("auth.auth_key", "")
	v.SetDefault("auth.encrypt_key", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.max_age", 30*24*time.Hour)

	v.SetDefault("assets.manifest", "")
	v.SetDefault("assets.entries", []string{})
	v.SetDefault("assets.watch", false)

	v.SetDefault("live.enabled", true)
	v.SetDefault("live.path", "/_live")
	v.SetDefault("live.rate", 5.0)
	v.SetDefault("live.burst", 10)
	v.SetDefault("live.resume_window", 5*time.Minute)
	v.SetDefault("live.read_timeout", 60*time.Second)

	v.SetDefault("snapshot.backend", "memory")
	v.SetDefault("snapshot.redis_url", "")
	v.SetDefault("snapshot.prefix", "isorender:snapshot:")
	v.SetDefault("snapshot.ttl", 2*time.Minute)

	v.SetDefault("meta.charset", "utf-8")
	v.SetDefault("meta.title", "")
	v.SetDefault("meta.description", "")
	v.SetDefault("meta.site_name", "")
	v.SetDefault("meta.image", "")
	v.SetDefault("meta.locale", "")
	v.SetDefault("meta.locale_other", []string{})
	v.SetDefault("meta.viewport", "width=device-width, initial-scale=1")
	v.SetDefault("meta.keywords", "")
	v.SetDefault("meta.author", "")

	v.SetDefault("export.dir", "")
	v.SetDefault("export.bucket", "")
	v.SetDefault("export.region", "")
	v.SetDefault("export.prefix", "")
	v.SetDefault("export.endpoint", "")
	v.SetDefault("export.paths", []string{})
	v.SetDefault("export.concurrency", 4)
	v.SetDefault("export.include_routes", true)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "isorender")
	v.SetDefault("metrics.tracing", false)

	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "")
	v.SetDefault("sentry.sample_rate", 1.0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Options controls Load.
type Options struct {
	// File is an explicit configuration file. It must exist.
	File string

	// Dir is searched for isorender.{yaml,json,toml}. Default: ".".
	Dir string

	// EnvFiles are loaded into the environment first. Missing files are
	// skipped. Default: [".env"].
	EnvFiles []string

	// Flags, if set, override every other source. Only flags the user
	// actually set take effect.
	Flags *pflag.FlagSet
}

// Load reads the configuration. It does not validate it.
func Load(opts Options) (*Config, error) {
	if err := loadEnvFiles(opts.EnvFiles); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		if err := BindFlags(v, opts.Flags); err != nil {
			return nil, errors.New("C001").Wrap(err)
		}
	}

	file := opts.File
	if file == "" {
		file = os.Getenv(EnvConfigFile)
	}
	if file != "" {
		v.SetConfigFile(file)
	} else {
		dir := opts.Dir
		if dir == "" {
			dir = "."
		}
		v.SetConfigName(FileName)
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !stderrors.As(err, &notFound) {
			return nil, errors.New("C001").Wrap(err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.New("C001").Wrap(err)
	}
	cfg.file = v.ConfigFileUsed()
	return &cfg, nil
}

func loadEnvFiles(files []string) error {
	if files == nil {
		files = []string{".env"}
	}
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return errors.New("C001").
			WithDetail("A .env file could not be parsed.").
			Wrap(err)
	}
	return nil
}

// File returns the configuration file used, or "".
func (c *Config) File() string { return c.file }

// Dir returns the directory of the configuration file, or ".".
func (c *Config) Dir() string {
	if c.file == "" {
		return "."
	}
	return filepath.Dir(c.file)
}

// Address returns the listen address.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// LogLevel returns the configured slog level, Info when unknown.
func (c *Config) LogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// NewLogger creates the slog logger described by the log section.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel()}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
