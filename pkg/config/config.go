// Package config provides configuration loading and validation for esmigrate.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrEmptyInputRoot   = errors.New("input root must be set")
	ErrEmptyOutputRoot  = errors.New("output root must be set")
	ErrSameRoots        = errors.New("output root must differ from input root")
	ErrInvalidSize      = errors.New("invalid max file size")
	ErrInvalidWorkers   = errors.New("workers must not be negative")
	ErrInvalidBinding   = errors.New("binding is not a JavaScript identifier")
	ErrInvalidLogLevel  = errors.New("invalid log level")
	ErrInvalidLogFormat = errors.New("invalid log format")
	ErrEmptyDialect     = errors.New("dialect callees must be set")
	ErrEmptyPlaceholder = errors.New("placeholder namespace must be set")
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "ESMIGRATE"

var identifierRe = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Config holds all configuration for a migration run.
type Config struct {
	Input       InputConfig       `mapstructure:"input"`
	Output      OutputConfig      `mapstructure:"output"`
	Base        BaseConfig        `mapstructure:"base"`
	Placeholder PlaceholderConfig `mapstructure:"placeholder"`
	Dialect     DialectConfig     `mapstructure:"dialect"`
	Resolve     ResolveConfig     `mapstructure:"resolve"`
	Emit        EmitConfig        `mapstructure:"emit"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	Workers     int               `mapstructure:"workers"`
}

// InputConfig selects the files to migrate.
type InputConfig struct {
	Root        string   `mapstructure:"root"`
	Pattern     string   `mapstructure:"pattern"`
	MaxFileSize string   `mapstructure:"max_file_size"`
	Exclude     []string `mapstructure:"exclude"`
	SkipVendor  bool     `mapstructure:"skip_vendor"`
}

// OutputConfig controls where rewritten files go.
type OutputConfig struct {
	Root  string `mapstructure:"root"`
	Clean bool   `mapstructure:"clean"`
}

// BaseConfig locates the base unit.
type BaseConfig struct {
	// Path is where the base unit lives in the input tree. Defaults to <input.root>/base.js.
	Path string `mapstructure:"path"`
	// Source is an optional file whose content becomes the base unit body. Empty means Path.
	Source string `mapstructure:"source"`
}

// PlaceholderConfig names the namespace known to have no backing file.
type PlaceholderConfig struct {
	Namespace string `mapstructure:"namespace"`
}

// DialectConfig names the declaration calls.
type DialectConfig struct {
	Provide string `mapstructure:"provide"`
	Module  string `mapstructure:"module"`
	Require string `mapstructure:"require"`
}

// ResolveConfig controls dependency resolution.
type ResolveConfig struct {
	Extensions []string `mapstructure:"extensions"`
	// Strict makes unresolved namespaces and ambiguous ownership fatal.
	Strict bool `mapstructure:"strict"`
}

// EmitConfig controls the rewritten output.
type EmitConfig struct {
	Binding       string `mapstructure:"binding"`
	DefaultExport bool   `mapstructure:"default_export"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds tracing and metrics export settings.
type TelemetryConfig struct {
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
	OTLPInsecure   bool   `mapstructure:"otlp_insecure"`
}

// LoadConfig loads configuration from defaults, an optional file, environment
// variables and the given overrides, in increasing order of precedence.
func LoadConfig(configPath string, overrides map[string]any) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("esmigrate")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
	}

	viperCfg.SetEnvPrefix(EnvPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	if used := viperCfg.ConfigFileUsed(); used != "" {
		schemaErr := ValidateFile(used)
		if schemaErr != nil {
			return nil, schemaErr
		}
	}

	for key, value := range overrides {
		viperCfg.Set(key, value)
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := config.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	pathErr := config.absolutePaths()
	if pathErr != nil {
		return nil, pathErr
	}

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("input.root", DefaultInputRoot)
	viperCfg.SetDefault("input.pattern", DefaultInputPattern)
	viperCfg.SetDefault("input.exclude", DefaultInputExclude)
	viperCfg.SetDefault("input.skip_vendor", DefaultInputSkipVendor)
	viperCfg.SetDefault("input.max_file_size", DefaultInputMaxFileSize)

	viperCfg.SetDefault("output.root", DefaultOutputRoot)
	viperCfg.SetDefault("output.clean", DefaultOutputClean)

	viperCfg.SetDefault("base.path", "")
	viperCfg.SetDefault("base.source", "")

	viperCfg.SetDefault("placeholder.namespace", DefaultPlaceholderNamespace)

	viperCfg.SetDefault("dialect.provide", DefaultDialectProvide)
	viperCfg.SetDefault("dialect.module", DefaultDialectModule)
	viperCfg.SetDefault("dialect.require", DefaultDialectRequire)

	viperCfg.SetDefault("resolve.strict", DefaultResolveStrict)
	viperCfg.SetDefault("resolve.extensions", DefaultResolveExtensions)

	viperCfg.SetDefault("emit.binding", DefaultEmitBinding)
	viperCfg.SetDefault("emit.default_export", DefaultEmitDefaultExport)

	viperCfg.SetDefault("workers", DefaultWorkers)

	viperCfg.SetDefault("logging.level", DefaultLoggingLevel)
	viperCfg.SetDefault("logging.format", DefaultLoggingFormat)

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.pushgateway_url", "")
	viperCfg.SetDefault("telemetry.job", DefaultTelemetryJob)
}

// Validate checks the configuration for values the run cannot work with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Input.Root) == "" {
		return ErrEmptyInputRoot
	}

	if strings.TrimSpace(c.Output.Root) == "" {
		return ErrEmptyOutputRoot
	}

	if filepath.Clean(c.Input.Root) == filepath.Clean(c.Output.Root) {
		return fmt.Errorf("%w: %s", ErrSameRoots, c.Input.Root)
	}

	if _, err := c.MaxFileSizeBytes(); err != nil {
		return err
	}

	if c.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Workers)
	}

	if !identifierRe.MatchString(c.Emit.Binding) {
		return fmt.Errorf("%w: %q", ErrInvalidBinding, c.Emit.Binding)
	}

	if c.Dialect.Provide == "" || c.Dialect.Module == "" || c.Dialect.Require == "" {
		return ErrEmptyDialect
	}

	if c.Placeholder.Namespace == "" {
		return ErrEmptyPlaceholder
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %s", ErrInvalidLogLevel, c.Logging.Level)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %s", ErrInvalidLogFormat, c.Logging.Format)
	}

	return nil
}

// MaxFileSizeBytes parses Input.MaxFileSize. Zero means unlimited.
func (c *Config) MaxFileSizeBytes() (uint64, error) {
	if c.Input.MaxFileSize == "" || c.Input.MaxFileSize == "0" {
		return 0, nil
	}

	size, err := humanize.ParseBytes(c.Input.MaxFileSize)
	if err != nil {
		return 0, fmt.Errorf("%w %q: %w", ErrInvalidSize, c.Input.MaxFileSize, err)
	}

	return size, nil
}

// absolutePaths makes every path absolute and fills in the base path default.
func (c *Config) absolutePaths() error {
	var err error

	c.Input.Root, err = filepath.Abs(c.Input.Root)
	if err != nil {
		return fmt.Errorf("resolve input root: %w", err)
	}

	c.Output.Root, err = filepath.Abs(c.Output.Root)
	if err != nil {
		return fmt.Errorf("resolve output root: %w", err)
	}

	if c.Base.Path == "" {
		c.Base.Path = filepath.Join(c.Input.Root, DefaultBaseFile)
	}

	c.Base.Path, err = filepath.Abs(c.Base.Path)
	if err != nil {
		return fmt.Errorf("resolve base path: %w", err)
	}

	if c.Base.Source != "" {
		c.Base.Source, err = filepath.Abs(c.Base.Source)
		if err != nil {
			return fmt.Errorf("resolve base source: %w", err)
		}
	}

	return nil
}
