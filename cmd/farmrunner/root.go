package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/entrhq/farmrunner/pkg/config"
	"github.com/entrhq/farmrunner/pkg/logging"
)

// cliFlags holds values that override the environment and config file.
type cliFlags struct {
	ConfigFile  string
	EnvFile     string
	Host        string
	Port        int
	Headless    bool
	Credentials string
	LogLevel    string
	LogDir      string
}

func newRootCmd() *cobra.Command {
	flags := &cliFlags{}

	root := &cobra.Command{
		Use:   "farmrunner",
		Short: "Farm-list automation with a web control page",
		Long: `farmrunner logs into the game on a randomized 4 to 6 minute schedule and
presses the "start all farm lists" button. It starts stopped; use the control
page or the HTTP API to start it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, flags)
		},
	}

	bindFlags(root, flags)
	root.AddCommand(
		newServeCmd(flags),
		newRunOnceCmd(flags),
		newVersionCmd(),
	)
	return root
}

// bindFlags registers the configuration overrides shared by all commands.
func bindFlags(cmd *cobra.Command, flags *cliFlags) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.ConfigFile, "config", "farmrunner.yaml", "Path to configuration file (YAML)")
	pf.StringVar(&flags.EnvFile, "env-file", ".env", "Path to a .env file loaded before reading the environment")
	pf.StringVar(&flags.Host, "host", "", "Listen host for the control page")
	pf.IntVar(&flags.Port, "port", 0, "Listen port for the control page")
	pf.BoolVar(&flags.Headless, "headless", true, "Run the browser without a window")
	pf.StringVar(&flags.Credentials, "credentials", "", "Path to the credentials file")
	pf.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&flags.LogDir, "log-dir", "", "Also write JSON logs to this directory")
}

// loadConfig resolves configuration: flags > environment > file > defaults.
func loadConfig(cmd *cobra.Command, flags *cliFlags) (*config.Config, error) {
	if err := config.LoadDotEnv(flags.EnvFile); err != nil {
		return nil, err
	}

	cfg, err := config.Load(flags.ConfigFile, cmd.Flags().Changed("config"))
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("host") {
		cfg.Server.Host = flags.Host
	}
	if changed("port") {
		cfg.Server.Port = flags.Port
	}
	if changed("headless") {
		cfg.Browser.Headless = flags.Headless
	}
	if changed("credentials") {
		cfg.Credentials.Path = flags.Credentials
	}
	if changed("log-level") {
		cfg.Logging.Level = flags.LogLevel
	}
	if changed("log-dir") {
		cfg.Logging.Dir = flags.LogDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setupLogging installs the log sinks. A log file that cannot be opened is
// reported but does not stop the process.
func setupLogging(cmd *cobra.Command, cfg *config.Config) {
	err := logging.Setup(logging.Options{
		Level:   cfg.Logging.Level,
		Dir:     cfg.Logging.Dir,
		Console: cmd.ErrOrStderr(),
	})
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
	}
}
