// Package config provides environment-based configuration for the Veldt
// content proxy.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/veldt-cms/veldt/caas"
	"github.com/veldt-cms/veldt/mapper"
)

// Config holds all configuration values for the Veldt proxy. Values are
// loaded from environment variables with the VELDT_ prefix.
type Config struct {
	// Port is the HTTP server port. Default: 8080.
	Port int

	// CaaSURL is the base URL of the upstream content store.
	CaaSURL string

	// NavigationURL is the base URL of the navigation service. Optional;
	// navigation routes return 503 when unset.
	NavigationURL string

	// APIKey authenticates against the upstream content store.
	APIKey string

	// ProjectID is the upstream project identifier.
	ProjectID string

	// ContentMode selects the content state served by the upstream:
	// "preview" or "release". Default: preview.
	ContentMode string

	// Locale is the default locale for requests that do not specify one.
	// Example: en_GB.
	Locale string

	// MaxReferenceDepth caps how many reference-resolution hops run per
	// request. Default: mapper.DefaultMaxReferenceDepth.
	MaxReferenceDepth int

	// RemotesFile is the path to a YAML file mapping remote project names to
	// their project configuration. Optional.
	RemotesFile string

	// Remotes is the parsed remote-project map, keyed by configured name.
	Remotes map[string]caas.RemoteProject

	// JWTSecret enables bearer-token protection of the proxy API when set.
	JWTSecret string

	// DevMode enables debug logging and permissive CORS. Default: false.
	DevMode bool
}

// Load reads configuration from environment variables, applies defaults for
// optional values, and loads the remote-project map when configured.
func Load() (*Config, error) {
	cfg := &Config{
		Port:              getEnvInt("VELDT_PORT", 8080),
		CaaSURL:           getEnv("VELDT_CAAS_URL", ""),
		NavigationURL:     getEnv("VELDT_NAVIGATION_URL", ""),
		APIKey:            getEnv("VELDT_API_KEY", ""),
		ProjectID:         getEnv("VELDT_PROJECT_ID", ""),
		ContentMode:       getEnv("VELDT_CONTENT_MODE", caas.ModePreview),
		Locale:            getEnv("VELDT_LOCALE", "en_GB"),
		MaxReferenceDepth: getEnvInt("VELDT_MAX_REFERENCE_DEPTH", mapper.DefaultMaxReferenceDepth),
		RemotesFile:       getEnv("VELDT_REMOTES_FILE", ""),
		JWTSecret:         getEnv("VELDT_JWT_SECRET", ""),
		DevMode:           getEnvBool("VELDT_DEV_MODE", false),
	}

	if cfg.ContentMode != caas.ModePreview && cfg.ContentMode != caas.ModeRelease {
		return nil, fmt.Errorf("VELDT_CONTENT_MODE must be %q or %q, got %q",
			caas.ModePreview, caas.ModeRelease, cfg.ContentMode)
	}

	if cfg.RemotesFile != "" {
		remotes, err := loadRemotes(cfg.RemotesFile)
		if err != nil {
			return nil, err
		}
		cfg.Remotes = remotes
	}

	return cfg, nil
}

// loadRemotes parses the YAML remote-project map. The file maps configured
// names to project settings:
//
//	media:
//	  id: "e2f7e6g8-..."
//	  locale: en_GB
func loadRemotes(path string) (map[string]caas.RemoteProject, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading remote projects file: %w", err)
	}

	var remotes map[string]caas.RemoteProject
	if err := yaml.Unmarshal(data, &remotes); err != nil {
		return nil, fmt.Errorf("parsing remote projects file %s: %w", path, err)
	}

	for name, remote := range remotes {
		if remote.ID == "" {
			return nil, fmt.Errorf("remote project %q is missing an id", name)
		}
	}
	return remotes, nil
}

// getEnv returns the value of the environment variable named by key,
// or the provided default if the variable is unset or empty.
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt returns the value of the environment variable named by key
// parsed as an integer, or the provided default if the variable is unset,
// empty, or not a valid integer.
func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		slog.Warn("invalid integer for env var, using default",
			"key", key,
			"value", val,
			"default", defaultVal,
			"error", err,
		)
		return defaultVal
	}
	return n
}

// getEnvBool returns the value of the environment variable named by key
// parsed as a boolean, or the provided default if the variable is unset,
// empty, or not a valid boolean.
func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		slog.Warn("invalid boolean for env var, using default",
			"key", key,
			"value", val,
			"default", defaultVal,
			"error", err,
		)
		return defaultVal
	}
	return b
}
