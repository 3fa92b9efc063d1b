package errors

import "sort"

// Template is a registered error.
type Template struct {
	Category Category
	Message  string
	Detail   string
}

var registry = map[string]Template{
	// Configuration (C001-C099)

	"C001": {
		Category: CategoryConfig,
		Message:  "Configuration could not be read",
		Detail:   "The configuration file exists but could not be parsed. Supported formats are YAML, JSON and TOML.",
	},
	"C002": {
		Category: CategoryConfig,
		Message:  "Invalid server port",
		Detail:   "The port must be between 0 and 65535. Port 0 picks a free port.",
	},
	"C003": {
		Category: CategoryConfig,
		Message:  "JWT secret is missing",
		Detail:   "Loaders receive the user's token only when it can be verified. Authentication needs a JWT secret.",
	},
	"C004": {
		Category: CategoryConfig,
		Message:  "Invalid session key",
		Detail:   "Session keys are hex encoded. The authentication key must not be empty; the encryption key, if set, must decode to 16, 24 or 32 bytes.",
	},
	"C005": {
		Category: CategoryConfig,
		Message:  "Invalid basename",
		Detail:   "The basename is the path prefix the application is mounted under. It must start with a slash and must not end with one.",
	},
	"C006": {
		Category: CategoryConfig,
		Message:  "Invalid endpoint path",
		Detail:   "Endpoint paths must start with a slash and must be distinct from each other.",
	},
	"C007": {
		Category: CategoryConfig,
		Message:  "Invalid live rate limit",
		Detail:   "The live rate is the number of navigation and action messages a connection may send per second; the burst is how many may arrive at once. Both must be positive.",
	},
	"C008": {
		Category: CategoryConfig,
		Message:  "Unknown snapshot backend",
		Detail:   "Live session snapshots are kept in memory or in Redis.",
	},
	"C009": {
		Category: CategoryConfig,
		Message:  "Redis URL is missing",
		Detail:   "The Redis snapshot backend needs a URL such as redis://localhost:6379/0.",
	},
	"C010": {
		Category: CategoryConfig,
		Message:  "Export destination is missing",
		Detail:   "Exported pages are written to a directory or uploaded to an S3 bucket.",
	},
	"C011": {
		Category: CategoryConfig,
		Message:  "S3 region is missing",
		Detail:   "Uploading exported pages to S3 needs the bucket's region.",
	},
	"C012": {
		Category: CategoryConfig,
		Message:  "Unknown log level",
		Detail:   "Valid levels are debug, info, warn and error.",
	},
	"C013": {
		Category: CategoryConfig,
		Message:  "Invalid duration",
		Detail:   "Timeouts and time-to-live values must be positive.",
	},

	// Command line (X001-X099)

	"X001": {
		Category: CategoryCLI,
		Message:  "Server failed",
		Detail:   "The server stopped with an error.",
	},
	"X002": {
		Category: CategoryCLI,
		Message:  "Export failed",
		Detail:   "Some pages could not be exported.",
	},
	"X003": {
		Category: CategoryCLI,
		Message:  "Asset manifest unavailable",
		Detail:   "The bundler manifest lists the scripts and styles added to every page.",
	},
	"X004": {
		Category: CategoryCLI,
		Message:  "No pages to export",
		Detail:   "Pass paths as arguments, list them under export.paths, or register pages without parameters.",
	},

	// Runtime (R001-R099)

	"R001": {
		Category: CategoryRuntime,
		Message:  "Snapshot store unavailable",
		Detail:   "Live sessions cannot resume without the snapshot store.",
	},
	"R002": {
		Category: CategoryRuntime,
		Message:  "Error reporting unavailable",
		Detail:   "The Sentry client could not be initialized; errors are only logged.",
	},
}

// Codes returns the registered codes in order.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Lookup returns the template registered for code.
func Lookup(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds or replaces a code. It is not safe for concurrent use and
// is meant for init functions.
func Register(code string, t Template) {
	registry[code] = t
}
