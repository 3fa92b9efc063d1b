package config

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"log-level":  "log.level",
	"log-format": "log.format",

	"host":        "server.host",
	"port":        "server.port",
	"basename":    "server.basename",
	"dev":         "server.development",
	"static-dir":  "server.static_dir",
	"api":         "server.api_base_url",
	"manifest":    "assets.manifest",
	"entry":       "assets.entries",
	"snapshots":   "snapshot.backend",
	"redis-url":   "snapshot.redis_url",
	"sentry-dsn":  "sentry.dsn",
	"concurrency": "export.concurrency",
	"dir":         "export.dir",
	"bucket":      "export.bucket",
	"region":      "export.region",
	"prefix":      "export.prefix",
	"endpoint":    "export.endpoint",
}

// AddGlobalFlags registers the flags shared by every command.
func AddGlobalFlags(fs *pflag.FlagSet) {
	fs.StringP("config", "c", "", "configuration file (default: ./isorender.yaml)")
	fs.String("log-level", "info", "log level: debug, info, warn or error")
	fs.String("log-format", "text", "log format: text or json")
}

// AddServeFlags registers the flags of the serve command.
func AddServeFlags(fs *pflag.FlagSet) {
	fs.String("host", "", "host to listen on")
	fs.IntP("port", "p", 8080, "port to listen on")
	fs.String("basename", "", "path prefix the site is mounted under")
	fs.Bool("dev", false, "development mode: detailed errors and manifest reloading")
	fs.String("static-dir", "", "directory served under the static path")
	fs.String("api", "", "base URL prepended to loader requests")
	fs.String("manifest", "", "bundler manifest file")
	fs.StringSlice("entry", nil, "manifest entries added to every page")
	fs.String("snapshots", "memory", "snapshot backend: memory or redis")
	fs.String("redis-url", "", "Redis URL for the redis snapshot backend")
	fs.Bool("no-live", false, "disable the live transport")
	fs.String("sentry-dsn", "", "report errors to Sentry")
}

// AddExportFlags registers the flags of the export command.
func AddExportFlags(fs *pflag.FlagSet) {
	fs.String("basename", "", "path prefix the site is mounted under")
	fs.String("api", "", "base URL prepended to loader requests")
	fs.String("manifest", "", "bundler manifest file")
	fs.StringSlice("entry", nil, "manifest entries added to every page")
	fs.String("dir", "", "write pages to this directory")
	fs.String("bucket", "", "upload pages to this S3 bucket")
	fs.String("region", "", "S3 region (default: $AWS_REGION)")
	fs.String("prefix", "", "key prefix inside the bucket")
	fs.String("endpoint", "", "S3-compatible endpoint, e.g. a MinIO URL")
	fs.Int("concurrency", 4, "pages rendered at once")
}

// BindFlags binds the known flags present in fs to their keys. A flag
// overrides other sources only when it was set on the command line.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	if f := fs.Lookup("no-live"); f != nil && f.Changed {
		v.Set("live.enabled", f.Value.String() != "true")
	}
	return nil
}
