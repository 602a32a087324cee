package constants

import "time"

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second
)

// Retry limits for the transport layer.
const (
	// DefaultRetryMax is the default maximum number of retries.
	DefaultRetryMax = 5

	// DefaultRetryWaitMin is the minimum wait time between retries.
	DefaultRetryWaitMin = 1 * time.Second

	// DefaultRetryWaitMax is the maximum wait time between retries.
	DefaultRetryWaitMax = 10 * time.Second
)

// Polling defaults for long-running server-side operations.
const (
	// DefaultPollInterval is the interval between poll cycles.
	DefaultPollInterval = 15 * time.Second

	// DefaultPollTimeout is how long a wait loop runs before giving up.
	DefaultPollTimeout = 1 * time.Hour

	// HostPollInterval is the interval for host registration polling.
	HostPollInterval = 5 * time.Second

	// HostPollTimeout is the deadline for host registration polling.
	HostPollTimeout = 3 * time.Minute

	// NotFoundRetryLimit bounds refresh retries through transient 404s for
	// resources that opt in (just-created resources still registering).
	NotFoundRetryLimit = 6

	// NotFoundRetryDelay is the pause between not-found refresh retries.
	NotFoundRetryDelay = 5 * time.Second
)

// Cache defaults.
const (
	// DefaultCacheSize is the maximum number of entries in the memory cache.
	DefaultCacheSize = 1000

	// DefaultCacheTTL is how long a cached GET response stays fresh.
	DefaultCacheTTL = 1 * time.Minute
)
