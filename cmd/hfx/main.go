package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/hfx/internal"
	pkgconfig "github.com/starford/hfx/pkg/config"
)

var version = "dev"

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if cmd.IsSet("config") {
		if err := pkgconfig.Load(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if _, err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cmd.IsSet("output") {
		cfg.Output.Path = cmd.String("output")
	}
	if cmd.IsSet("conus") {
		cfg.Sources.Hydrofabric = cmd.String("conus")
	}
	if cmd.IsSet("network") {
		cfg.Sources.Network = cmd.String("network")
	}
	if cmd.Bool("debug") {
		cfg.App.LogLevel = slog.LevelDebug
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

func options(cmd *cli.Command) ([]internal.Option, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithIdentifiers(cmd.Args().Slice()...),
		internal.WithRefresh(cmd.Bool("refresh")),
		internal.WithVersion(version),
	}, nil
}

func run(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.Run(ctx, opts...)
}

func resolve(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	opts = append(opts, internal.WithFormat(cmd.String("format")))
	return internal.Resolve(ctx, opts...)
}

func classify(_ context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.Classify(opts...)
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.Serve(ctx, opts...)
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.ServeMCP(ctx, opts...)
}

func main() {
	cmd := &cli.Command{
		Name:      "hfx",
		Usage:     "Subset the NextGen hydrofabric by catchment, waterbody or nexus identifiers",
		ArgsUsage: "ID...",
		Version:   version,
		Action:    run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("HFX_CONFIG_FILE", "APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output GeoPackage path",
				Value:   internal.DefaultOutput,
			},
			&cli.StringFlag{
				Name:    "conus",
				Aliases: []string{"c"},
				Usage:   "Hydrofabric GeoPackage location (path, http(s)://, s3:// or gs://)",
				Value:   internal.DefaultHydrofabric,
				Sources: cli.EnvVars("HFX_HYDROFABRIC"),
			},
			&cli.StringFlag{
				Name:    "network",
				Aliases: []string{"n"},
				Usage:   "Network relationship table location (.parquet or .gpkg)",
				Value:   internal.DefaultNetwork,
				Sources: cli.EnvVars("HFX_NETWORK"),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
			&cli.BoolFlag{
				Name:  "refresh",
				Usage: "Download remote datasets again instead of using the cache",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "resolve",
				Usage:     "Print the resolved identifier sets",
				ArgsUsage: "ID...",
				Action:    resolve,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "format",
						Usage: "Output format: json or yaml",
						Value: internal.FormatJSON,
					},
				},
			},
			{
				Name:      "classify",
				Usage:     "Print the category of each identifier",
				ArgsUsage: "ID...",
				Action:    classify,
			},
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Run the MCP tool server on stdio",
				Action: serveMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
