// Package cmd provides the jsxsite command-line interface.
//
// Configuration System:
//
//	Configuration is read from several sources with clear precedence:
//	1. Command-line flags (--config, --log-level, --port, ...) - highest priority
//	2. JSXSITE_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (JSXSITE_SERVER_PORT, ...)
//	4. Configuration file (.jsxsite.yml) - lowest priority
//
// Environment Variables:
//
//	JSXSITE_CONFIG_FILE: Path to a custom configuration file
//	JSXSITE_DIR_OUTPUT: Override the output directory
//	JSXSITE_RENDER_ENABLE_CACHE: Enable/disable the component cache
//	And every other key following the JSXSITE_<SECTION>_<OPTION> pattern
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/jsxsite/internal/config"
	"github.com/conneroisu/jsxsite/internal/logging"
	"github.com/conneroisu/jsxsite/internal/site"
)

var (
	cfgFile string
	// configErr holds the read error of an explicitly requested config file.
	configErr error
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "jsxsite",
	Short: "Build static sites from JSX pages",
	Long: `jsxsite renders JSX pages and components to static HTML, compiles
Sass/CSS and JavaScript assets, and copies static files to the output
directory.

Quick Start:
  jsxsite build                   Build the site into dist/
  jsxsite watch                   Rebuild on every source change
  jsxsite serve                   Watch and serve with live reload
  jsxsite clean                   Empty the output directory`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .jsxsite.yml, can also use JSXSITE_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "", "log level (debug, info, warn, error)")
}

// initConfig points viper at the configuration file.
//
// Configuration Loading Priority (highest to lowest):
//  1. --config flag
//  2. JSXSITE_CONFIG_FILE environment variable
//  3. .jsxsite.yml in the current directory
//
// A missing default file is not an error; a missing explicit file is.
func initConfig() {
	configErr = nil
	explicit := true

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("JSXSITE_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		explicit = false
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".jsxsite")
	}

	viper.SetEnvPrefix("JSXSITE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.BindEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		if explicit {
			configErr = fmt.Errorf("reading config file: %w", err)
		}
		return
	}
	fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
}

// loadConfig loads the configuration and applies the persistent flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if configErr != nil {
		return nil, configErr
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
		cfg.Log.Level = f.Value.String()
	}
	return cfg, nil
}

// newLogger builds the CLI logger from the log section of cfg.
func newLogger(cmd *cobra.Command, cfg *config.Config) (*logging.SiteLogger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
		Stats:  cfg.Log.Stats,
	}), nil
}

// session is one command invocation: a wired Site, its logger and a
// context cancelled on SIGINT or SIGTERM.
type session struct {
	site   *site.Site
	logger logging.Logger
	ctx    context.Context
	stop   context.CancelFunc
}

// Close releases the signal handler and the Site.
func (s *session) Close() error {
	s.stop()
	return s.site.Close()
}

// openSession loads the configuration and wires a Site for cmd.
func openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return nil, err
	}

	s, err := site.New(cfg, logger)
	if err != nil {
		return nil, err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	return &session{site: s, logger: logger, ctx: ctx, stop: stop}, nil
}
