package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/conn-castle/alpine-term/internal/config"
	"github.com/conn-castle/alpine-term/internal/logging"
	"github.com/conn-castle/alpine-term/internal/messages"
)

// globalFlags holds the persistent flags shared by every subcommand.
type globalFlags struct {
	dataDir    string
	configPath string
	logLevel   string
	logFormat  string
}

// environment is the resolved data directory layout, config, and logger.
type environment struct {
	paths      config.Paths
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	cmd := &cobra.Command{
		Use:           messages.RootUse,
		Short:         messages.RootShort,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.dataDir, "data-dir", "", messages.RootFlagDataDir)
	pf.StringVar(&flags.configPath, "config", "", messages.RootFlagConfig)
	pf.StringVar(&flags.logLevel, "log-level", "", messages.RootFlagLogLevel)
	pf.StringVar(&flags.logFormat, "log-format", "", messages.RootFlagLogFormat)

	cmd.AddCommand(
		newInstallCmd(flags),
		newRunCmd(flags),
		newCtlCmd(flags),
		newStatusCmd(flags),
		newConfigCmd(flags),
	)
	return cmd
}

// resolvePaths resolves the data directory without reading the config.
func (f *globalFlags) resolvePaths() (config.Paths, error) {
	dir, err := config.ResolveDataDir(f.dataDir)
	if err != nil {
		return config.Paths{}, err
	}
	return config.DefaultPaths(dir), nil
}

// load resolves paths, reads the config, and builds the logger writing to stderr.
func (f *globalFlags) load(stderr io.Writer) (*environment, error) {
	paths, err := f.resolvePaths()
	if err != nil {
		return nil, err
	}
	configPath := paths.ConfigPath
	if f.configPath != "" {
		configPath, err = config.ExpandPath("--config", f.configPath)
		if err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(configPath, paths)
	if err != nil {
		return nil, err
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.logFormat != "" {
		cfg.Log.Format = f.logFormat
	}
	logger, err := logging.New(stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	return &environment{paths: paths, configPath: configPath, cfg: cfg, logger: logger}, nil
}
