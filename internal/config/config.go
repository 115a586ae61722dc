// Package config loads and validates the server configuration file.
package config

// Config is the root configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Specs      SpecsConfig      `yaml:"specs"`
	Upstream   UpstreamConfig   `yaml:"upstream"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Admin      AdminConfig      `yaml:"admin"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig defines the MCP server identity and transport.
type ServerConfig struct {
	Name      string `yaml:"name"`
	Transport string `yaml:"transport"` // stdio or http
	Listen    string `yaml:"listen"`    // http transport only
}

// SpecsConfig points at the directory of OpenAPI documents to load.
type SpecsConfig struct {
	Dir string `yaml:"dir"`
}

// UpstreamConfig defines the downstream Quortex API endpoint.
type UpstreamConfig struct {
	BaseURL   string `yaml:"base_url"`
	AuthToken string `yaml:"auth_token"` // usually ${QUORTEX_API_TOKEN}
}

// ClassifierConfig drives route classification and parameter hiding.
type ClassifierConfig struct {
	AdminPrefixes    []string                `yaml:"admin_prefixes"`
	ExcludeTags      []string                `yaml:"exclude_tags"`
	HiddenParameters []HiddenParameterConfig `yaml:"hidden_parameters"`
}

// HiddenParameterConfig names a parameter that is never surfaced to the
// calling agent and the environment variable that supplies its value.
type HiddenParameterConfig struct {
	Name string `yaml:"name"`
	Env  string `yaml:"env"`
}

// AdminConfig defines the operational HTTP surface (metrics, health).
type AdminConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level    string            `yaml:"level"`
	File     string            `yaml:"file"`
	Rotation LogRotationConfig `yaml:"rotation"`
}

// LogRotationConfig defines log file rotation settings (powered by lumberjack).
type LogRotationConfig struct {
	MaxSize    int  `yaml:"max_size"`    // max megabytes before rotation (default 100)
	MaxBackups int  `yaml:"max_backups"` // old rotated files to keep (default 3)
	MaxAge     int  `yaml:"max_age"`     // days to retain old files (default 28)
	Compress   bool `yaml:"compress"`    // gzip rotated files (default true)
}

// DefaultConfig returns a Config populated with defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name:      "quortex-mcp",
			Transport: "stdio",
			Listen:    ":8000",
		},
		Specs: SpecsConfig{
			Dir: "./api",
		},
		Upstream: UpstreamConfig{
			BaseURL: "https://api.quortex.io",
		},
		Classifier: ClassifierConfig{
			AdminPrefixes: []string{"/admin/"},
			ExcludeTags:   []string{"internal"},
			HiddenParameters: []HiddenParameterConfig{
				{Name: "org", Env: "QUORTEX_ORG"},
			},
		},
		Admin: AdminConfig{
			Enabled: false,
			Port:    8081,
		},
		Logging: LoggingConfig{
			Level: "info",
			Rotation: LogRotationConfig{
				MaxSize:    100,
				MaxBackups: 3,
				MaxAge:     28,
				Compress:   true,
			},
		},
	}
}
