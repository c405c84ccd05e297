// Package commands implements CLI command handlers for esmigrate.
package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/esmigrate/pkg/config"
	"github.com/Sumatoshi-tech/esmigrate/pkg/migrate"
	"github.com/Sumatoshi-tech/esmigrate/pkg/observability"
	"github.com/Sumatoshi-tech/esmigrate/pkg/version"
)

// envOTLPHeaders is the standard OTel env var carrying exporter headers.
const envOTLPHeaders = "OTEL_EXPORTER_OTLP_HEADERS"

type observabilityInit func(observability.Config) (observability.Providers, error)

// globalOptions holds the flags shared by every command and the dependencies tests replace.
type globalOptions struct {
	configPath string
	input      string
	output     string
	workers    int
	strict     bool
	verbose    bool
	quiet      bool
	noColor    bool

	fs      afero.Fs
	obsInit observabilityInit
}

// NewRootCommand creates the esmigrate command tree. Without a subcommand it runs the migration.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&globalOptions{fs: afero.NewOsFs(), obsInit: observability.Init})
}

func newRootCommand(opts *globalOptions) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "esmigrate",
		Short: "Rewrite goog.provide/goog.require files as ES modules",
		Long: `esmigrate converts a tree of Closure-style JavaScript files into ES modules.

Every file declaring goog.provide or goog.module gets an import header built
from its goog.require calls and is written under the output root.

Commands:
  plan      Show the imports each file would receive
  diff      Preview the rewrite of one file
  version   Show version information`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, opts)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "config file (default esmigrate.yaml in . or ./config)")
	flags.StringVarP(&opts.input, "input", "i", "", "input root")
	flags.StringVarP(&opts.output, "output", "o", "", "output root")
	flags.IntVarP(&opts.workers, "workers", "w", 0, "parallel workers (0 = one per CPU)")
	flags.BoolVar(&opts.strict, "strict", false, "fail on unresolved or ambiguous namespaces")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "suppress output")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	rootCmd.AddCommand(newPlanCommand(opts))
	rootCmd.AddCommand(newDiffCommand(opts))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// loadConfig merges the configuration sources with the flags that were set.
func (o *globalOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	overrides := make(map[string]any)
	flags := cmd.Flags()

	if flags.Changed("input") {
		overrides["input.root"] = o.input
	}

	if flags.Changed("output") {
		overrides["output.root"] = o.output
	}

	if flags.Changed("workers") {
		overrides["workers"] = o.workers
	}

	if flags.Changed("strict") {
		overrides["resolve.strict"] = o.strict
	}

	switch {
	case o.verbose:
		overrides["logging.level"] = "debug"
	case o.quiet:
		overrides["logging.level"] = "error"
	}

	cfg, err := config.LoadConfig(o.configPath, overrides)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return cfg, nil
}

// session is a configured pipeline plus the telemetry it reports to.
type session struct {
	cfg       *config.Config
	pipeline  *migrate.Pipeline
	providers observability.Providers
}

func (o *globalOptions) openSession(cmd *cobra.Command, mode observability.AppMode) (*session, error) {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	level, err := observability.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = mode
	obsCfg.LogLevel = level
	obsCfg.LogJSON = cfg.Logging.Format == "json"
	obsCfg.LogOutput = cmd.ErrOrStderr()
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv(envOTLPHeaders))
	obsCfg.PushgatewayURL = cfg.Telemetry.PushgatewayURL
	obsCfg.PushJob = cfg.Telemetry.Job

	providers, err := o.obsInit(obsCfg)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	metrics, err := observability.NewMigrationMetrics(providers.Meter)
	if err != nil {
		return nil, errors.Join(err, providers.Shutdown(context.Background()))
	}

	pipeline, err := migrate.New(cfg, o.fs,
		migrate.WithLogger(providers.Logger),
		migrate.WithTracer(providers.Tracer),
		migrate.WithMetrics(metrics),
	)
	if err != nil {
		return nil, errors.Join(err, providers.Shutdown(context.Background()))
	}

	return &session{cfg: cfg, pipeline: pipeline, providers: providers}, nil
}

// close flushes telemetry, joining any failure with err.
func (s *session) close(err error) error {
	shutdownErr := s.providers.Shutdown(context.Background())
	if shutdownErr != nil {
		return errors.Join(err, fmt.Errorf("telemetry shutdown: %w", shutdownErr))
	}

	return err
}
