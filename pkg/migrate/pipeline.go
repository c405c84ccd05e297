// Package migrate runs a whole migration: extract every file, build the
// namespace registry, then resolve, emit and write every retained unit.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"runtime"
	"time"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/esmigrate/pkg/config"
	"github.com/Sumatoshi-tech/esmigrate/pkg/declare"
	"github.com/Sumatoshi-tech/esmigrate/pkg/emit"
	"github.com/Sumatoshi-tech/esmigrate/pkg/jsast"
	"github.com/Sumatoshi-tech/esmigrate/pkg/observability"
	"github.com/Sumatoshi-tech/esmigrate/pkg/registry"
	"github.com/Sumatoshi-tech/esmigrate/pkg/resolve"
	"github.com/Sumatoshi-tech/esmigrate/pkg/source"
	"github.com/Sumatoshi-tech/esmigrate/pkg/unit"
)

// Sentinel errors for strict runs and previews.
var (
	ErrUnresolved         = errors.New("unresolved namespace")
	ErrAmbiguousOwnership = errors.New("namespace provided by more than one file")
	ErrUnknownUnit        = errors.New("file is not a migrated unit")
)

const (
	tracerName = "esmigrate"

	spanRun     = "migrate.run"
	spanExtract = "migrate.extract"
	spanBuild   = "migrate.build"
	spanEmit    = "migrate.emit"

	phaseExtract = "extract"
	phaseBuild   = "build"
	phaseEmit    = "emit"
)

// Pipeline migrates the files selected by a configuration.
type Pipeline struct {
	cfg     *config.Config
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *observability.MigrationMetrics
	parser  *jsast.Parser
	dialect declare.Dialect
	emitter *emit.Emitter
	loader  *source.Loader
	writer  *source.Writer
	workers int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithTracer sets the tracer. The default is the global tracer provider's.
func WithTracer(tracer trace.Tracer) Option {
	return func(p *Pipeline) { p.tracer = tracer }
}

// WithMetrics sets the metric instruments. The default uses the global meter provider.
func WithMetrics(metrics *observability.MigrationMetrics) Option {
	return func(p *Pipeline) { p.metrics = metrics }
}

// New creates a Pipeline reading from and writing to fsys.
func New(cfg *config.Config, fsys afero.Fs, opts ...Option) (*Pipeline, error) {
	maxSize, err := cfg.MaxFileSizeBytes()
	if err != nil {
		return nil, err
	}

	parser, err := jsast.NewParser()
	if err != nil {
		return nil, fmt.Errorf("create parser: %w", err)
	}

	p := &Pipeline{
		cfg:     cfg,
		logger:  slog.Default(),
		parser:  parser,
		dialect: declare.NewDialect(cfg.Dialect.Provide, cfg.Dialect.Module, cfg.Dialect.Require),
		emitter: emit.New(cfg.Emit.Binding, emit.WithDefaultExport(cfg.Emit.DefaultExport)),
		writer:  source.NewWriter(fsys, cfg.Input.Root, cfg.Output.Root),
		workers: cfg.Workers,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.tracer == nil {
		p.tracer = otel.Tracer(tracerName)
	}

	if p.metrics == nil {
		p.metrics, err = observability.NewMigrationMetrics(otel.Meter(tracerName))
		if err != nil {
			return nil, err
		}
	}

	if p.workers <= 0 {
		p.workers = runtime.NumCPU()
	}

	p.loader = source.NewLoader(fsys, source.Options{
		Root:        cfg.Input.Root,
		Pattern:     cfg.Input.Pattern,
		Exclude:     cfg.Input.Exclude,
		SkipVendor:  cfg.Input.SkipVendor,
		MaxFileSize: maxSize,
	}, p.logger)

	return p, nil
}

// Run performs the migration. Nothing is written unless every file parsed and,
// in strict mode, every namespace resolved to exactly one owner.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	ctx, span := p.tracer.Start(ctx, spanRun)
	defer span.End()

	plan, err := p.plan(ctx)
	if err != nil {
		return nil, failSpan(span, err)
	}

	err = p.check(plan)
	if err != nil {
		return nil, failSpan(span, err)
	}

	if p.cfg.Output.Clean {
		err = p.writer.Clean()
		if err != nil {
			return nil, failSpan(span, err)
		}
	}

	outputs, err := p.emitAll(ctx, plan)
	if err != nil {
		return nil, failSpan(span, err)
	}

	result := &Result{Plan: plan, Outputs: outputs}

	p.metrics.RecordUnits(ctx, observability.StatusWritten, len(outputs))
	span.SetAttributes(
		attribute.Int("esmigrate.units.written", len(outputs)),
		attribute.Int("esmigrate.imports", result.ImportCount()),
	)

	p.logger.InfoContext(ctx, "migration complete",
		"written", len(outputs),
		"dropped", len(plan.Dropped),
		"unresolved", len(plan.Unresolved()),
		"conflicts", len(plan.Conflicts),
	)

	return result, nil
}

// Plan extracts, builds and resolves without writing anything.
func (p *Pipeline) Plan(ctx context.Context) (*Plan, error) {
	ctx, span := p.tracer.Start(ctx, spanRun, trace.WithAttributes(attribute.Bool("esmigrate.dry_run", true)))
	defer span.End()

	plan, err := p.plan(ctx)
	if err != nil {
		return nil, failSpan(span, err)
	}

	return plan, nil
}

// Preview returns the current and migrated content of the file at path.
func (p *Pipeline) Preview(ctx context.Context, path string) (before, after string, err error) {
	plan, err := p.Plan(ctx)
	if err != nil {
		return "", "", err
	}

	for _, entry := range plan.Entries {
		if entry.Unit.ID == path && !entry.Unit.IsSynthetic() {
			return entry.Unit.Body, p.emitter.Emit(entry.Unit, entry.Imports), nil
		}
	}

	return "", "", fmt.Errorf("%w: %s", ErrUnknownUnit, path)
}

func (p *Pipeline) plan(ctx context.Context) (*Plan, error) {
	files, skipped, err := p.extract(ctx)
	if err != nil {
		return nil, err
	}

	return p.build(ctx, files, skipped)
}

// extract is phase 1: read, parse and extract declarations of every listed file.
func (p *Pipeline) extract(ctx context.Context) ([]unit.Unit, []string, error) {
	ctx, span := p.tracer.Start(observability.WithPhase(ctx, phaseExtract), spanExtract)
	defer span.End()

	start := time.Now()
	defer func() { p.metrics.RecordPhase(ctx, phaseExtract, time.Since(start)) }()

	paths, err := p.loader.List(ctx)
	if err != nil {
		return nil, nil, failSpan(span, err)
	}

	units := make([]*unit.Unit, len(paths))
	skipped := make([]bool, len(paths))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.workers)

	for idx, path := range paths {
		group.Go(func() error {
			u, ok, extractErr := p.extractFile(groupCtx, path)
			if extractErr != nil {
				return extractErr
			}

			units[idx], skipped[idx] = u, !ok

			return nil
		})
	}

	err = group.Wait()
	if err != nil {
		return nil, nil, failSpan(span, err)
	}

	files := make([]unit.Unit, 0, len(paths))

	var skippedPaths []string

	for idx, u := range units {
		if skipped[idx] {
			skippedPaths = append(skippedPaths, paths[idx])

			continue
		}

		files = append(files, *u)
	}

	span.SetAttributes(attribute.Int("esmigrate.files", len(files)))

	return files, skippedPaths, nil
}

func (p *Pipeline) extractFile(ctx context.Context, path string) (*unit.Unit, bool, error) {
	ctx = observability.WithUnit(ctx, path)

	if path == p.cfg.Base.Path {
		p.logger.DebugContext(ctx, "skipping base file")

		return nil, false, nil
	}

	content, err := p.loader.Read(path)
	if err != nil {
		return nil, false, err
	}

	if !source.IsJavaScript(path, content) {
		p.logger.DebugContext(ctx, "skipping non-JavaScript file")

		return nil, false, nil
	}

	tree, err := p.parser.Parse(ctx, path, content)
	if err != nil {
		return nil, false, err
	}

	decls := p.dialect.Declarations(tree)

	return &unit.Unit{
		ID:       path,
		Body:     string(content),
		Provided: decls.Provided,
		Required: decls.Required,
		Kind:     unit.KindFile,
		IsModule: decls.IsModule,
	}, true, nil
}

// build is the barrier between the phases: it builds the registry and resolves every unit.
func (p *Pipeline) build(ctx context.Context, files []unit.Unit, skipped []string) (*Plan, error) {
	ctx, span := p.tracer.Start(observability.WithPhase(ctx, phaseBuild), spanBuild)
	defer span.End()

	start := time.Now()
	defer func() { p.metrics.RecordPhase(ctx, phaseBuild, time.Since(start)) }()

	baseBody, err := p.baseBody()
	if err != nil {
		return nil, failSpan(span, err)
	}

	reg := registry.Build(files, unit.NewBase(p.cfg.Base.Path, baseBody), unit.NewPlaceholder(p.cfg.Placeholder.Namespace))
	resolver := resolve.New(reg, p.cfg.Resolve.Extensions)

	plan := &Plan{
		Dropped:   reg.Dropped(),
		Conflicts: reg.Conflicts(),
		Skipped:   skipped,
	}

	for _, u := range reg.Units() {
		if u.Kind == unit.KindPlaceholder {
			continue
		}

		target, targetErr := p.writer.Target(u.ID)
		if targetErr != nil {
			return nil, failSpan(span, targetErr)
		}

		resolution := resolver.Resolve(u)
		plan.Entries = append(plan.Entries, Entry{
			Unit:         u,
			Target:       target,
			Imports:      resolution.Specifiers,
			Dependencies: resolution.Owners,
			Unresolved:   resolution.Unresolved,
		})
	}

	p.report(ctx, plan)

	return plan, nil
}

// baseBody reads base.source, or the base file itself when no source is configured.
// A missing base file yields an empty body.
func (p *Pipeline) baseBody() (string, error) {
	if p.cfg.Base.Source != "" {
		content, err := p.loader.Read(p.cfg.Base.Source)
		if err != nil {
			return "", fmt.Errorf("base source: %w", err)
		}

		return string(content), nil
	}

	content, err := p.loader.Read(p.cfg.Base.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}

	if err != nil {
		return "", fmt.Errorf("base file: %w", err)
	}

	return string(content), nil
}

func (p *Pipeline) report(ctx context.Context, plan *Plan) {
	for _, dropped := range plan.Dropped {
		p.logger.DebugContext(observability.WithUnit(ctx, dropped.ID), "dropping file", "reason", string(dropped.Reason))
	}

	for _, conflict := range plan.Conflicts {
		p.logger.WarnContext(ctx, "namespace provided by more than one file",
			"namespace", conflict.Namespace, "owner", conflict.Owner, "others", conflict.Others)
	}

	unresolved := plan.Unresolved()
	for _, miss := range unresolved {
		p.logger.WarnContext(observability.WithUnit(ctx, miss.Unit), "unresolved namespace", "namespace", miss.Namespace)
	}

	p.metrics.RecordUnits(ctx, observability.StatusDropped, len(plan.Dropped))
	p.metrics.RecordConflicts(ctx, len(plan.Conflicts))
	p.metrics.RecordUnresolved(ctx, len(unresolved))
}

func (p *Pipeline) check(plan *Plan) error {
	if !p.cfg.Resolve.Strict {
		return nil
	}

	if misses := plan.Unresolved(); len(misses) > 0 {
		return fmt.Errorf("%w: %q required by %s (%d total)",
			ErrUnresolved, misses[0].Namespace, misses[0].Unit, len(misses))
	}

	if len(plan.Conflicts) > 0 {
		first := plan.Conflicts[0]

		return fmt.Errorf("%w: %q owned by %s, also provided by %v (%d total)",
			ErrAmbiguousOwnership, first.Namespace, first.Owner, first.Others, len(plan.Conflicts))
	}

	return nil
}

// emitAll is phase 2: emit and write every planned unit.
func (p *Pipeline) emitAll(ctx context.Context, plan *Plan) ([]Output, error) {
	ctx, span := p.tracer.Start(observability.WithPhase(ctx, phaseEmit), spanEmit)
	defer span.End()

	start := time.Now()
	defer func() { p.metrics.RecordPhase(ctx, phaseEmit, time.Since(start)) }()

	outputs := make([]Output, len(plan.Entries))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.workers)

	for idx, entry := range plan.Entries {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			content := p.emitter.Emit(entry.Unit, entry.Imports)

			target, err := p.writer.Write(entry.Unit.ID, content)
			if err != nil {
				return err
			}

			p.metrics.RecordImports(groupCtx, len(entry.Imports))
			p.logger.DebugContext(observability.WithUnit(groupCtx, entry.Unit.ID), "wrote unit",
				"target", target, "imports", len(entry.Imports))

			outputs[idx] = Output{
				ID:      entry.Unit.ID,
				Target:  target,
				Imports: len(entry.Imports),
				Bytes:   len(content),
			}

			return nil
		})
	}

	err := group.Wait()
	if err != nil {
		return nil, failSpan(span, err)
	}

	return outputs, nil
}

func failSpan(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	return err
}
