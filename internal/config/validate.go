package config

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/vango-dev/isorender/internal/errors"
)

// Validate checks everything needed to serve and reports all problems at
// once. The returned error joins *errors.Error values.
func (c *Config) Validate() error {
	var errs []*errors.Error

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, errors.New("C002").
			WithKey("server.port").
			WithDetail(fmt.Sprintf("Got %d.", c.Server.Port)))
	}
	if b := c.Server.Basename; b != "" && (!strings.HasPrefix(b, "/") || strings.HasSuffix(b, "/")) {
		errs = append(errs, errors.New("C005").
			WithKey("server.basename").
			WithSuggestion(fmt.Sprintf("Use %q", "/"+strings.Trim(b, "/"))))
	}
	errs = append(errs, c.validatePaths()...)
	errs = append(errs, c.validateAuth()...)

	if c.Live.Enabled && (c.Live.Rate <= 0 || c.Live.Burst <= 0) {
		errs = append(errs, errors.New("C007").
			WithKey("live.rate").
			WithDetail(fmt.Sprintf("Got rate %g and burst %d.", c.Live.Rate, c.Live.Burst)))
	}

	switch c.Snapshot.Backend {
	case "memory":
	case "redis":
		if c.Snapshot.RedisURL == "" {
			errs = append(errs, errors.New("C009").
				WithKey("snapshot.redis_url").
				WithSuggestion("Set ISORENDER_SNAPSHOT_REDIS_URL"))
		}
	default:
		errs = append(errs, errors.New("C008").
			WithKey("snapshot.backend").
			WithDetail(fmt.Sprintf("Got %q; use \"memory\" or \"redis\".", c.Snapshot.Backend)))
	}

	if u := c.Server.APIBaseURL; u != "" {
		if p, err := url.Parse(u); err != nil || p.Scheme == "" || p.Host == "" {
			errs = append(errs, errors.New("C006").
				WithKey("server.api_base_url").
				WithDetail("The API base URL must be absolute, e.g. http://127.0.0.1:8081."))
		}
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		errs = append(errs, errors.New("C012").WithKey("log.level").Wrap(err))
	}

	for _, d := range []struct {
		key string
		val time.Duration
	}{
		{"server.shutdown_timeout", c.Server.ShutdownTimeout},
		{"live.resume_window", c.Live.ResumeWindow},
		{"live.read_timeout", c.Live.ReadTimeout},
		{"snapshot.ttl", c.Snapshot.TTL},
	} {
		if d.val <= 0 {
			errs = append(errs, errors.New("C013").WithKey(d.key))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) validatePaths() []*errors.Error {
	var errs []*errors.Error
	seen := make(map[string]string)
	check := func(key, path string, enabled bool) {
		if !enabled || path == "" {
			return
		}
		if !strings.HasPrefix(path, "/") {
			errs = append(errs, errors.New("C006").
				WithKey(key).
				WithSuggestion(fmt.Sprintf("Use %q", "/"+path)))
			return
		}
		if other, ok := seen[path]; ok {
			errs = append(errs, errors.New("C006").
				WithKey(key).
				WithDetail(fmt.Sprintf("%s is already used by %s.", path, other)))
			return
		}
		seen[path] = key
	}
	check("server.base_page_path", c.Server.BasePagePath, true)
	check("server.health_path", c.Server.HealthPath, true)
	check("live.path", c.Live.Path, c.Live.Enabled)
	check("metrics.path", c.Metrics.Path, c.Metrics.Enabled)
	check("server.static_path", c.Server.StaticPath, c.Server.StaticDir != "")
	return errs
}

func (c *Config) validateAuth() []*errors.Error {
	if !c.Auth.Enabled {
		return nil
	}
	var errs []*errors.Error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("C003").
			WithKey("auth.jwt_secret").
			WithSuggestion("Set ISORENDER_AUTH_JWT_SECRET"))
	}
	if k, err := hex.DecodeString(c.Auth.AuthKey); err != nil || len(k) == 0 {
		errs = append(errs, errors.New("C004").
			WithKey("auth.auth_key").
			WithSuggestion("Generate one with: openssl rand -hex 32"))
	}
	if c.Auth.EncryptKey != "" {
		k, err := hex.DecodeString(c.Auth.EncryptKey)
		if err != nil || (len(k) != 16 && len(k) != 24 && len(k) != 32) {
			errs = append(errs, errors.New("C004").
				WithKey("auth.encrypt_key").
				WithSuggestion("Generate one with: openssl rand -hex 32"))
		}
	}
	return errs
}

// ValidateExport checks the export section. Paths may still be empty; the
// caller adds route paths and command-line arguments.
func (c *Config) ValidateExport() error {
	var errs []*errors.Error
	e := c.Export
	switch {
	case e.Dir == "" && e.Bucket == "":
		errs = append(errs, errors.New("C010").
			WithKey("export.dir").
			WithSuggestion("Pass --dir or --bucket"))
	case e.Bucket != "" && e.Region == "" && os.Getenv("AWS_REGION") == "":
		errs = append(errs, errors.New("C011").
			WithKey("export.region").
			WithSuggestion("Pass --region or set AWS_REGION"))
	}
	if e.Concurrency < 0 {
		errs = append(errs, errors.New("C013").
			WithKey("export.concurrency").
			WithDetail("Concurrency must not be negative."))
	}
	return errors.Join(errs...)
}
