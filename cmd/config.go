package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/jsxsite/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate the configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a jsxsite configuration file and report errors and warnings
with suggestions.

Examples:
  jsxsite config validate                    # Validate .jsxsite.yml
  jsxsite config validate --file site.yml    # Validate a specific file
  jsxsite config validate --strict           # Treat warnings as errors`,
	RunE: runConfigValidate,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration",
	Long: `Display the configuration after the file, environment variables and
defaults have been applied.

Examples:
  jsxsite config show                  # YAML
  jsxsite config show --format json   # JSON`,
	RunE: runConfigShow,
}

var (
	configFile   string
	configFormat string
	configStrict bool
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)

	configValidateCmd.Flags().
		StringVarP(&configFile, "file", "f", "", "Configuration file to validate (default: .jsxsite.yml)")
	configValidateCmd.Flags().BoolVar(&configStrict, "strict", false, "Treat warnings as errors")

	configShowCmd.Flags().StringVar(&configFormat, "format", "yaml", "Output format (yaml, json)")
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()

	targetFile := configFile
	if targetFile == "" {
		targetFile = ".jsxsite.yml"
	}
	if _, err := os.Stat(targetFile); os.IsNotExist(err) {
		return fmt.Errorf("configuration file %s does not exist", targetFile)
	}

	v := viper.New()
	v.SetConfigFile(targetFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read configuration file: %w", err)
	}

	cfg, err := config.Decode(v)
	if err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	validation := config.ValidateConfigWithDetails(cfg)
	fmt.Fprintf(w, "Validating %s\n", targetFile)
	fmt.Fprint(w, validation.String())

	switch {
	case validation.HasErrors():
		return fmt.Errorf("configuration validation failed with %d errors", len(validation.Errors))
	case validation.HasWarnings() && configStrict:
		return fmt.Errorf("configuration validation failed in strict mode with %d warnings",
			len(validation.Warnings))
	case validation.HasWarnings():
		fmt.Fprintf(w, "Configuration is valid with %d warning(s).\n", len(validation.Warnings))
	default:
		fmt.Fprintln(w, "Configuration is valid.")
	}
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return writeConfig(cmd.OutOrStdout(), cfg, configFormat)
}

func writeConfig(w io.Writer, cfg *config.Config, format string) error {
	switch format {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	default:
		return errors.New("unsupported format: " + format + " (supported: yaml, json)")
	}
}
