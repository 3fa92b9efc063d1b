// Package config loads the isorender configuration.
//
// Sources, highest precedence first:
//
//  1. command-line flags bound with BindFlags
//  2. environment variables with the ISORENDER_ prefix, e.g.
//     ISORENDER_SERVER_PORT or ISORENDER_SNAPSHOT_REDIS_URL
//  3. variables from .env files, which never override the real environment
//  4. the configuration file: isorender.yaml, .json or .toml in the working
//     directory, or the file named by --config or ISORENDER_CONFIG
//  5. defaults
//
// A minimal file:
//
//	server:
//	  port: 3000
//	  basename: /app
//	auth:
//	  enabled: true
//	  auth_key: 6b6579...
//	  jwt_secret: change-me
//	snapshot:
//	  backend: redis
//	  redis_url: redis://localhost:6379/0
//	meta:
//	  title: My site
//
// Validate reports every problem at once as coded errors from
// internal/errors.
package config
