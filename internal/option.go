package internal

import "io"

// Output formats for Resolve.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	ids     []string
	refresh bool
	stdout  io.Writer
	format  string
	version string
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithIdentifiers sets the identifiers to classify, resolve or extract.
func WithIdentifiers(ids ...string) Option {
	return func(a *application) {
		a.ids = append(a.ids, ids...)
	}
}

// WithRefresh forces remote datasets to be downloaded again.
func WithRefresh(refresh bool) Option {
	return func(a *application) {
		a.refresh = refresh
	}
}

// WithStdout sets where command results are printed.
func WithStdout(w io.Writer) Option {
	return func(a *application) {
		a.stdout = w
	}
}

// WithFormat sets the Resolve output format (json or yaml).
func WithFormat(format string) Option {
	return func(a *application) {
		a.format = format
	}
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(version string) Option {
	return func(a *application) {
		a.version = version
	}
}
