package internal

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/hfx/internal/network"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Default dataset locations.
const (
	DefaultHydrofabric = "https://nextgen-hydrofabric.s3.amazonaws.com/pre-release/conus.gpkg"
	DefaultNetwork     = "s3://nextgen-hydrofabric/pre-release/conus_net.parquet"
	DefaultOutput      = "hydrofabric.gpkg"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Sources SourcesConfig     `yaml:"sources"`
	Output  OutputConfig      `yaml:"output"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Sources.Validate(); err != nil {
		return err
	}
	if err := c.Output.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
	HTTP      HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.LogFormat == "" {
		c.LogFormat = LogFormatText
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(LogFormatText, LogFormatJSON)),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SourcesConfig locates the input datasets. Locations may be local paths or
// http(s)://, s3:// or gs:// URLs.
type SourcesConfig struct {
	Hydrofabric  string          `yaml:"hydrofabric"`
	Network      string          `yaml:"network"`
	NetworkLayer string          `yaml:"network_layer"`
	Columns      network.Columns `yaml:"columns"`
	CacheDir     string          `yaml:"cache_dir"`
	Anonymous    bool            `yaml:"anonymous"`
	S3Region     string          `yaml:"s3_region"`
}

// Validate validates the sources configuration.
func (c *SourcesConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Hydrofabric, validation.Required),
		validation.Field(&c.Network, validation.Required),
		validation.Field(&c.CacheDir, validation.Required),
	); err != nil {
		return err
	}
	return validation.ValidateStruct(&c.Columns,
		validation.Field(&c.Columns.Waterbody, validation.Required),
		validation.Field(&c.Columns.To, validation.Required),
		validation.Field(&c.Columns.Divide, validation.Required),
	)
}

// OutputConfig holds output defaults. Dir confines the files written by the
// MCP extract tool.
type OutputConfig struct {
	Path string `yaml:"path"`
	Dir  string `yaml:"dir"`
}

// Validate validates the output configuration.
func (c *OutputConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Dir, validation.Required),
	)
}

// AuthConfig holds authentication configuration for the HTTP API.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: LogFormatText,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Sources: SourcesConfig{
			Hydrofabric:  DefaultHydrofabric,
			Network:      DefaultNetwork,
			NetworkLayer: network.DefaultLayer,
			Columns:      network.DefaultColumns(),
			CacheDir:     defaultCacheDir(),
			Anonymous:    true,
			S3Region:     "us-east-1",
		},
		Output: OutputConfig{
			Path: DefaultOutput,
			Dir:  ".",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "hfx")
	}
	return filepath.Join(dir, "hfx")
}
