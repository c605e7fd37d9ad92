// Package config provides configuration management for jsxsite using Viper
// for loading from files, environment variables, and command-line flags.
//
// The configuration file is YAML (.jsxsite.yml by default). Every key can be
// overridden with a JSXSITE_<SECTION>_<KEY> environment variable. Load applies
// defaults for anything left unset and validates the result.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Default values.
const (
	DefaultInputDir        = "src/pages"
	DefaultOutputDir       = "dist"
	DefaultDataDir         = "src/_data"
	DefaultTempDir         = ".jsxsite/tmp"
	DefaultCacheSize       = 100
	DefaultJSXImportSource = "preact"
	DefaultStylesSource    = "src/assets/css"
	DefaultStylesOutput    = "assets/css"
	DefaultScriptsSource   = "src/assets/js"
	DefaultScriptsOutput   = "assets/js"
	DefaultDebounce        = 300 * time.Millisecond
	DefaultHost            = "localhost"
	DefaultPort            = 8080
)

type Config struct {
	Root        string            `yaml:"root" mapstructure:"root"`
	Dir         DirConfig         `yaml:"dir" mapstructure:"dir"`
	Render      RenderConfig      `yaml:"render" mapstructure:"render"`
	Assets      AssetsConfig      `yaml:"assets" mapstructure:"assets"`
	Passthrough []PassthroughCopy `yaml:"passthrough" mapstructure:"passthrough"`
	Watch       WatchConfig       `yaml:"watch" mapstructure:"watch"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

type DirConfig struct {
	Input  string `yaml:"input" mapstructure:"input"`
	Output string `yaml:"output" mapstructure:"output"`
	Data   string `yaml:"data" mapstructure:"data"`
	Temp   string `yaml:"temp" mapstructure:"temp"`
}

type RenderConfig struct {
	Minify          bool   `yaml:"minify" mapstructure:"minify"`
	EnableCache     bool   `yaml:"enable_cache" mapstructure:"enable_cache"`
	CacheSize       int    `yaml:"cache_size" mapstructure:"cache_size"`
	JSXImportSource string `yaml:"jsx_import_source" mapstructure:"jsx_import_source"`
}

type AssetsConfig struct {
	Styles     AssetDirConfig `yaml:"styles" mapstructure:"styles"`
	Scripts    AssetDirConfig `yaml:"scripts" mapstructure:"scripts"`
	SassBinary string         `yaml:"sass_binary" mapstructure:"sass_binary"`
}

// AssetDirConfig pairs a source directory with its location under the
// output directory.
type AssetDirConfig struct {
	Source string `yaml:"source" mapstructure:"source"`
	Output string `yaml:"output" mapstructure:"output"`
}

// PassthroughCopy copies From (relative to the root) verbatim to To
// (relative to the output directory).
type PassthroughCopy struct {
	From string `yaml:"from" mapstructure:"from"`
	To   string `yaml:"to" mapstructure:"to"`
}

type WatchConfig struct {
	Targets  []string      `yaml:"targets" mapstructure:"targets"`
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce"`
}

type ServerConfig struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	Stats  bool   `yaml:"stats" mapstructure:"stats"`
}

// DefaultWatchTargets are the directories watched in addition to the pages
// directory.
func DefaultWatchTargets() []string {
	return []string{
		"src/assets/css",
		"src/assets/js",
		"src/templates",
		"src/shared",
		"src/scripts",
		"src/styles",
		"src/components",
	}
}

// DefaultPassthrough returns the default passthrough copies.
func DefaultPassthrough() []PassthroughCopy {
	return []PassthroughCopy{
		{From: "src/assets/images", To: "assets/images"},
		{From: "src/assets/fonts", To: "assets/fonts"},
	}
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg, func(string) bool { return false })
	return cfg
}

// envKeys are the scalar keys that can be set from JSXSITE_ variables even
// when the configuration file does not mention them.
var envKeys = []string{
	"root",
	"dir.input", "dir.output", "dir.data", "dir.temp",
	"render.minify", "render.enable_cache", "render.cache_size", "render.jsx_import_source",
	"assets.styles.source", "assets.styles.output",
	"assets.scripts.source", "assets.scripts.output",
	"assets.sass_binary",
	"watch.debounce",
	"server.host", "server.port",
	"log.level", "log.format", "log.stats",
}

// BindEnv binds every scalar key on v to its environment variable. The env
// prefix and key replacer must already be set.
func BindEnv(v *viper.Viper) {
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads, defaults and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	config, err := Decode(v)
	if err != nil {
		return nil, err
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Decode unmarshals v and applies defaults without validating.
func Decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	applyDefaults(&config, v.IsSet)
	return &config, nil
}

func applyDefaults(config *Config, isSet func(string) bool) {
	if config.Root == "" {
		config.Root = "."
	}

	if config.Dir.Input == "" {
		config.Dir.Input = DefaultInputDir
	}
	if config.Dir.Output == "" {
		config.Dir.Output = DefaultOutputDir
	}
	if config.Dir.Data == "" {
		config.Dir.Data = DefaultDataDir
	}
	if config.Dir.Temp == "" {
		config.Dir.Temp = DefaultTempDir
	}

	// bools default to true only when absent
	if !isSet("render.enable_cache") {
		config.Render.EnableCache = true
	}
	if config.Render.CacheSize == 0 && !isSet("render.cache_size") {
		config.Render.CacheSize = DefaultCacheSize
	}
	if config.Render.JSXImportSource == "" {
		config.Render.JSXImportSource = DefaultJSXImportSource
	}

	if config.Assets.Styles.Source == "" {
		config.Assets.Styles.Source = DefaultStylesSource
	}
	if config.Assets.Styles.Output == "" {
		config.Assets.Styles.Output = DefaultStylesOutput
	}
	if config.Assets.Scripts.Source == "" {
		config.Assets.Scripts.Source = DefaultScriptsSource
	}
	if config.Assets.Scripts.Output == "" {
		config.Assets.Scripts.Output = DefaultScriptsOutput
	}

	if config.Passthrough == nil && !isSet("passthrough") {
		config.Passthrough = DefaultPassthrough()
	}

	if len(config.Watch.Targets) == 0 && !isSet("watch.targets") {
		config.Watch.Targets = DefaultWatchTargets()
	}
	if config.Watch.Debounce == 0 && !isSet("watch.debounce") {
		config.Watch.Debounce = DefaultDebounce
	}

	if config.Server.Host == "" {
		config.Server.Host = DefaultHost
	}
	if config.Server.Port == 0 && !isSet("server.port") {
		config.Server.Port = DefaultPort
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}
}

// Path resolves a configured relative path against the root directory.
func (c *Config) Path(rel string) string {
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Join(c.Root, rel)
}

// InputDir returns the pages directory.
func (c *Config) InputDir() string { return c.Path(c.Dir.Input) }

// OutputDir returns the output directory.
func (c *Config) OutputDir() string { return c.Path(c.Dir.Output) }

// DataDir returns the global data directory.
func (c *Config) DataDir() string { return c.Path(c.Dir.Data) }

// TempDir returns the directory holding temporary compile artifacts.
func (c *Config) TempDir() string { return c.Path(c.Dir.Temp) }

// Addr returns the dev server listen address.
func (c *Config) Addr() string { return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port) }

// validateConfig returns the first validation error, if any.
func validateConfig(config *Config) error {
	result := ValidateConfigWithDetails(config)
	if result.HasErrors() {
		first := result.Errors[0]
		return &first
	}
	return nil
}
