package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/GoCodeAlone/ioc/config"
	"github.com/GoCodeAlone/ioc/feeders"
	"github.com/spf13/cobra"
)

// configSection is the top-level key holding container settings in YAML
// and TOML files.
const configSection = "ioc"

// Version information
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// PrintVersion prints version information
func PrintVersion() string {
	return fmt.Sprintf("iocdemo v%s (commit: %s, built on: %s)", Version, Commit, Date)
}

// options are the persistent flags shared by every subcommand.
type options struct {
	configPath string
	envPrefix  string
}

// NewRootCommand creates the root command for the iocdemo application
func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "iocdemo",
		Short: "IoC demo - builds and inspects a sample bean graph",
		Long: `IoC demo wires a small bean graph with the ioc container.
It shows forward references, property cycles, thread affinity handoff,
plugin beans and ordered shutdown.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML or TOML config file")
	cmd.PersistentFlags().StringVar(&opts.envPrefix, "env-prefix", "IOC", "prefix of environment overrides")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewBeansCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), PrintVersion())
		},
	}
}

// loadConfig builds the feeder chain for opts and loads the config.
func loadConfig(opts *options) (*config.Config, []config.Feeder, error) {
	var chain []config.Feeder
	switch ext := strings.ToLower(filepath.Ext(opts.configPath)); {
	case opts.configPath == "":
	case ext == ".yaml" || ext == ".yml":
		chain = append(chain, feeders.NewYamlFeeder(opts.configPath))
	case ext == ".toml":
		chain = append(chain, feeders.NewTomlFeeder(opts.configPath))
	default:
		return nil, nil, fmt.Errorf("%w: %s", errUnsupportedConfigFormat, opts.configPath)
	}
	chain = append(chain, feeders.NewEnvFeeder(opts.envPrefix))

	cfg, err := config.Load(configSection, chain...)
	if err != nil {
		return nil, nil, err
	}
	return cfg, chain, nil
}

func newLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
