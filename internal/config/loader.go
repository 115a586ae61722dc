package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/goccy/go-yaml"
)

// Loader handles configuration loading and parsing
type Loader struct {
	envPattern *regexp.Regexp
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		envPattern: regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`),
	}
}

// Load reads and parses a configuration file
func (l *Loader) Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return l.Parse(data)
}

// Parse parses configuration from YAML bytes
func (l *Loader) Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := l.expandEnvVars(string(data))

	// Start with defaults
	cfg := DefaultConfig()

	// Unmarshal YAML into config
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// An unset ${VAR} stays literal after expansion; treat a literal
	// placeholder token as an absent value
	if strings.HasPrefix(cfg.Upstream.AuthToken, "${") {
		cfg.Upstream.AuthToken = ""
	}

	// Validate configuration
	if err := l.validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} with environment variable values
func (l *Loader) expandEnvVars(input string) string {
	return l.envPattern.ReplaceAllStringFunc(input, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := strings.TrimPrefix(strings.TrimSuffix(match, "}"), "${")
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match // Keep original if env var not set
	})
}

// validate checks configuration for errors
func (l *Loader) validate(cfg *Config) error {
	switch cfg.Server.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("server.transport must be stdio or http, got %q", cfg.Server.Transport)
	}

	if cfg.Server.Transport == "http" && cfg.Server.Listen == "" {
		return fmt.Errorf("server.listen is required for the http transport")
	}

	if cfg.Specs.Dir == "" {
		return fmt.Errorf("specs.dir is required")
	}

	if cfg.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	u, err := url.Parse(cfg.Upstream.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("upstream.base_url %q is not a valid absolute URL", cfg.Upstream.BaseURL)
	}

	seen := make(map[string]bool, len(cfg.Classifier.HiddenParameters))
	for _, hp := range cfg.Classifier.HiddenParameters {
		if hp.Name == "" {
			return fmt.Errorf("classifier.hidden_parameters entries require a name")
		}
		if seen[hp.Name] {
			return fmt.Errorf("classifier.hidden_parameters: duplicate entry for %q", hp.Name)
		}
		seen[hp.Name] = true
	}

	if cfg.Admin.Enabled && (cfg.Admin.Port <= 0 || cfg.Admin.Port > 65535) {
		return fmt.Errorf("admin.port %d is out of range", cfg.Admin.Port)
	}

	return nil
}
