package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/conneroisu/jsxsite/internal/logging"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	write := func(title string, items []ValidationError) {
		if len(items) == 0 {
			return
		}
		builder.WriteString(title + ":\n")
		for _, item := range items {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", item.Field, item.Message))
			for _, suggestion := range item.Suggestions {
				builder.WriteString(fmt.Sprintf("      hint: %s\n", suggestion))
			}
		}
	}

	write("Validation errors", vr.Errors)
	write("Validation warnings", vr.Warnings)

	return builder.String()
}

func (vr *ValidationResult) addError(field string, value interface{}, msg string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

func (vr *ValidationResult) addWarning(field string, value interface{}, msg string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

// ValidateConfigWithDetails performs comprehensive validation with detailed feedback
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	validateDirConfigDetails(config, result)
	validateRenderConfigDetails(&config.Render, result)
	validateAssetsConfigDetails(&config.Assets, result)
	validatePassthroughDetails(config.Passthrough, result)
	validateWatchConfigDetails(&config.Watch, result)
	validateServerConfigDetails(&config.Server, result)
	validateLogConfigDetails(&config.Log, result)

	result.Valid = !result.HasErrors()

	return result
}

func validateDirConfigDetails(config *Config, result *ValidationResult) {
	dirs := []struct {
		field string
		value string
	}{
		{"dir.input", config.Dir.Input},
		{"dir.output", config.Dir.Output},
		{"dir.data", config.Dir.Data},
		{"dir.temp", config.Dir.Temp},
	}
	for _, d := range dirs {
		if err := validatePath(d.value); err != nil {
			result.addError(d.field, d.value, err.Error(),
				"Use a path relative to the project root")
		}
	}

	if out := filepath.Clean(config.Dir.Output); out == "." {
		result.addError("dir.output", config.Dir.Output, "output directory cannot be the project root",
			"Use a dedicated directory such as dist")
	}
	if filepath.Clean(config.Dir.Input) == filepath.Clean(config.Dir.Output) {
		result.addError("dir.output", config.Dir.Output, "output directory cannot equal the input directory")
	}

	if !pathExists(config.InputDir()) {
		result.addWarning("dir.input", config.Dir.Input, "input directory does not exist",
			fmt.Sprintf("Create %s and add .jsx pages", config.Dir.Input))
	}
}

func validateRenderConfigDetails(config *RenderConfig, result *ValidationResult) {
	if config.EnableCache && config.CacheSize <= 0 {
		result.addError("render.cache_size", config.CacheSize, "cache size must be greater than zero",
			fmt.Sprintf("The default is %d", DefaultCacheSize))
	}

	if !identifierPath.MatchString(config.JSXImportSource) {
		result.addError("render.jsx_import_source", config.JSXImportSource, "invalid module specifier",
			"Use a bare package name such as preact or react")
	}
}

var identifierPath = regexp.MustCompile(`^(@[a-z0-9._-]+/)?[a-z0-9._-]+$`)

func validateAssetsConfigDetails(config *AssetsConfig, result *ValidationResult) {
	for field, value := range map[string]string{
		"assets.styles.source":  config.Styles.Source,
		"assets.styles.output":  config.Styles.Output,
		"assets.scripts.source": config.Scripts.Source,
		"assets.scripts.output": config.Scripts.Output,
	} {
		if err := validatePath(value); err != nil {
			result.addError(field, value, err.Error())
		}
	}

	if config.SassBinary != "" && !pathExists(config.SassBinary) {
		result.addWarning("assets.sass_binary", config.SassBinary, "dart-sass binary not found",
			"Sass sources will fail to build until the binary is installed")
	}
}

func validatePassthroughDetails(copies []PassthroughCopy, result *ValidationResult) {
	for i, c := range copies {
		field := fmt.Sprintf("passthrough[%d]", i)
		if err := validatePath(c.From); err != nil {
			result.addError(field+".from", c.From, err.Error())
		}
		if err := validatePath(c.To); err != nil {
			result.addError(field+".to", c.To, err.Error())
		}
	}
}

func validateWatchConfigDetails(config *WatchConfig, result *ValidationResult) {
	if config.Debounce < 0 {
		result.addError("watch.debounce", config.Debounce, "debounce cannot be negative")
	}
	for _, target := range config.Targets {
		if err := validatePath(target); err != nil {
			result.addError("watch.targets", target, err.Error())
		}
	}
}

func validateServerConfigDetails(config *ServerConfig, result *ValidationResult) {
	// 0 lets the system pick a port
	if config.Port < 0 || config.Port > 65535 {
		result.addError("server.port", config.Port,
			fmt.Sprintf("port %d is not in valid range 0-65535", config.Port),
			"Use a port between 1024-65535 for non-privileged access")
	}

	if config.Host != "" {
		if err := validateHostname(config.Host); err != nil {
			result.addError("server.host", config.Host, err.Error())
		}
	}
}

func validateLogConfigDetails(config *LogConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		result.addError("log.level", config.Level, err.Error(), "Use debug, info, warn or error")
	}
	if config.Format != "text" && config.Format != "json" {
		result.addError("log.format", config.Format, "format must be text or json")
	}
}

// validatePath validates a configured relative path.
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)

	if filepath.IsAbs(cleanPath) {
		return fmt.Errorf("path should be relative: %s", path)
	}

	for _, part := range strings.Split(filepath.ToSlash(cleanPath), "/") {
		if part == ".." {
			return fmt.Errorf("path contains traversal: %s", path)
		}
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "<", ">", "\"", "'", "\x00"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %q", char)
		}
	}

	return nil
}

func validateHostname(host string) error {
	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
	for _, char := range dangerousChars {
		if strings.Contains(host, char) {
			return fmt.Errorf("contains dangerous character: %s", char)
		}
	}

	if net.ParseIP(host) != nil || host == "localhost" {
		return nil
	}

	if !hostnameRegex.MatchString(host) {
		return fmt.Errorf("invalid hostname format")
	}

	return nil
}

var hostnameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
