package migrate_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"maps"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/esmigrate/pkg/config"
	"github.com/Sumatoshi-tech/esmigrate/pkg/jsast"
	"github.com/Sumatoshi-tech/esmigrate/pkg/migrate"
	"github.com/Sumatoshi-tech/esmigrate/pkg/observability"
	"github.com/Sumatoshi-tech/esmigrate/pkg/registry"
	"github.com/Sumatoshi-tech/esmigrate/pkg/source"
)

const (
	bodyA = "goog.provide('ns.A');\nns.A = 1;\n"
	bodyB = "goog.provide('ns.B');\ngoog.require('ns.A');\nns.B = ns.A + 1;\n"
)

func newConfig(t *testing.T, overrides map[string]any) *config.Config {
	t.Helper()

	values := map[string]any{
		"input.root":  "/src",
		"output.root": "/lib",
		"workers":     2,
	}
	maps.Copy(values, overrides)

	cfg, err := config.LoadConfig("", values)
	require.NoError(t, err)

	return cfg
}

func newFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()

	fsys := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fsys, name, []byte(content), 0o644))
	}

	return fsys
}

func newPipeline(t *testing.T, cfg *config.Config, fsys afero.Fs, opts ...migrate.Option) *migrate.Pipeline {
	t.Helper()

	opts = append([]migrate.Option{migrate.WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))}, opts...)

	pipeline, err := migrate.New(cfg, fsys, opts...)
	require.NoError(t, err)

	return pipeline
}

func readFile(t *testing.T, fsys afero.Fs, name string) string {
	t.Helper()

	content, err := afero.ReadFile(fsys, name)
	require.NoError(t, err)

	return string(content)
}

func assertMissing(t *testing.T, fsys afero.Fs, name string) {
	t.Helper()

	exists, err := afero.Exists(fsys, name)
	require.NoError(t, err)
	assert.False(t, exists, "%s should not exist", name)
}

func TestRun_RequiredNamespaceImportsOwner(t *testing.T) {
	t.Parallel()

	fsys := newFs(t, map[string]string{
		"/src/ns/A.js": bodyA,
		"/src/ns/B.js": bodyB,
	})

	result, err := newPipeline(t, newConfig(t, nil), fsys).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t,
		"import { goog } from \"../base\"\nimport \"./A\"\n\n"+bodyB,
		readFile(t, fsys, "/lib/ns/B.js"))
	assert.Equal(t,
		"import { goog } from \"../base\"\n\n"+bodyA,
		readFile(t, fsys, "/lib/ns/A.js"))
	assert.Equal(t, "\n\n\nexport { goog };\n", readFile(t, fsys, "/lib/base.js"))

	require.Len(t, result.Outputs, 3)
	assert.Equal(t, 3, result.ImportCount())
	assert.Positive(t, result.ByteCount())
}

func TestRun_SelfRequireIsNotImported(t *testing.T) {
	t.Parallel()

	body := "goog.provide('ns.C');\ngoog.require('ns.C');\n"
	fsys := newFs(t, map[string]string{"/src/ns/C.js": body})

	_, err := newPipeline(t, newConfig(t, nil), fsys).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "import { goog } from \"../base\"\n\n"+body, readFile(t, fsys, "/lib/ns/C.js"))
}

func TestRun_UnresolvedNamespaceWarns(t *testing.T) {
	t.Parallel()

	body := "goog.provide('ns.D');\ngoog.require('ns.Missing');\n"
	fsys := newFs(t, map[string]string{"/src/ns/D.js": body})

	var logs bytes.Buffer

	pipeline := newPipeline(t, newConfig(t, nil), fsys,
		migrate.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	result, err := pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "import { goog } from \"../base\"\n\n"+body, readFile(t, fsys, "/lib/ns/D.js"))
	assert.Equal(t, []migrate.Miss{{Unit: "/src/ns/D.js", Namespace: "ns.Missing"}}, result.Plan.Unresolved())
	assert.Contains(t, logs.String(), "unresolved namespace")
	assert.Contains(t, logs.String(), "ns.Missing")
}

func TestRun_ParseFailureWritesNothing(t *testing.T) {
	t.Parallel()

	fsys := newFs(t, map[string]string{
		"/src/ns/A.js":   bodyA,
		"/src/ns/bad.js": "goog.provide('ns.Bad');\nvar = ;\n",
	})

	_, err := newPipeline(t, newConfig(t, nil), fsys).Run(context.Background())
	require.Error(t, err)

	var parseErr *jsast.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "/src/ns/bad.js", parseErr.Path)

	assertMissing(t, fsys, "/lib/ns/A.js")
	assertMissing(t, fsys, "/lib/base.js")
}

func TestRun_ParseFailureKeepsPreviousOutput(t *testing.T) {
	t.Parallel()

	fsys := newFs(t, map[string]string{
		"/src/bad.js":  "goog.provide('x'",
		"/lib/prev.js": "previous",
	})

	_, err := newPipeline(t, newConfig(t, nil), fsys).Run(context.Background())
	require.ErrorIs(t, err, jsast.ErrSyntax)

	assert.Equal(t, "previous", readFile(t, fsys, "/lib/prev.js"))
}

func TestRun_FilesWithoutProvidesAreDropped(t *testing.T) {
	t.Parallel()

	fsys := newFs(t, map[string]string{
		"/src/ns/A.js":      bodyA,
		"/src/plain.js":     "console.log('no provides');\n",
		"/src/ns/escape.js": "goog.provide('ns.E');\ngoog.require('../etc');\n",
	})

	result, err := newPipeline(t, newConfig(t, nil), fsys).Run(context.Background())
	require.NoError(t, err)

	assertMissing(t, fsys, "/lib/plain.js")
	assertMissing(t, fsys, "/lib/ns/escape.js")

	assert.Equal(t, []registry.Dropped{
		{ID: "/src/ns/escape.js", Reason: registry.DropTraversal},
		{ID: "/src/plain.js", Reason: registry.DropNoProvides},
	}, result.Plan.Dropped)
}

func TestRun_PlaceholderIsNeverImported(t *testing.T) {
	t.Parallel()

	body := "goog.provide('ns.P');\ngoog.require('goog.async.Deferred');\ngoog.require('ns.A');\n"
	fsys := newFs(t, map[string]string{
		"/src/ns/A.js": bodyA,
		"/src/ns/P.js": body,
	})

	result, err := newPipeline(t, newConfig(t, nil), fsys).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "import { goog } from \"../base\"\nimport \"./A\"\n\n"+body, readFile(t, fsys, "/lib/ns/P.js"))
	assert.Empty(t, result.Plan.Unresolved())

	for _, out := range result.Outputs {
		assert.NotContains(t, out.Target, "empty")
	}
}

func TestRun_DuplicateRequiresCollapse(t *testing.T) {
	t.Parallel()

	body := "goog.provide('ns.B');\ngoog.require('ns.A');\ngoog.require('ns.A');\n"
	fsys := newFs(t, map[string]string{
		"/src/ns/A.js": bodyA,
		"/src/ns/B.js": body,
	})

	_, err := newPipeline(t, newConfig(t, nil), fsys).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "import { goog } from \"../base\"\nimport \"./A\"\n\n"+body, readFile(t, fsys, "/lib/ns/B.js"))
}

func TestRun_CleansStaleOutput(t *testing.T) {
	t.Parallel()

	fsys := newFs(t, map[string]string{
		"/src/ns/A.js":  bodyA,
		"/lib/stale.js": "old",
	})

	_, err := newPipeline(t, newConfig(t, nil), fsys).Run(context.Background())
	require.NoError(t, err)

	assertMissing(t, fsys, "/lib/stale.js")

	fsys = newFs(t, map[string]string{
		"/src/ns/A.js":  bodyA,
		"/lib/stale.js": "old",
	})

	_, err = newPipeline(t, newConfig(t, map[string]any{"output.clean": false}), fsys).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "old", readFile(t, fsys, "/lib/stale.js"))
}

func TestRun_BaseSourceAndExcludes(t *testing.T) {
	t.Parallel()

	fsys := newFs(t, map[string]string{
		"/src/ns/A.js":     bodyA,
		"/src/goog.js":     "export {};\n",
		"/closure/base.js": "var goog = goog || {};",
	})

	cfg := newConfig(t, map[string]any{"base.source": "/closure/base.js"})

	_, err := newPipeline(t, cfg, fsys).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "\n\nvar goog = goog || {};\nexport { goog };\n", readFile(t, fsys, "/lib/base.js"))
	assertMissing(t, fsys, "/lib/goog.js")
}

func TestRun_SkipsNonJavaScript(t *testing.T) {
	t.Parallel()

	fsys := newFs(t, map[string]string{
		"/src/ns/A.js":     bodyA,
		"/src/notes.txt":   "goog.provide('ns.Notes');",
		"/src/deps/x.json": "{}",
	})

	cfg := newConfig(t, map[string]any{"input.pattern": "**/*"})

	result, err := newPipeline(t, cfg, fsys).Run(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"/src/notes.txt", "/src/deps/x.json"}, result.Plan.Skipped)
	assertMissing(t, fsys, "/lib/notes.txt")
}

func TestRun_StrictUnresolvedFails(t *testing.T) {
	t.Parallel()

	fsys := newFs(t, map[string]string{
		"/src/ns/D.js": "goog.provide('ns.D');\ngoog.require('ns.Missing');\n",
	})

	cfg := newConfig(t, map[string]any{"resolve.strict": true})

	_, err := newPipeline(t, cfg, fsys).Run(context.Background())
	require.ErrorIs(t, err, migrate.ErrUnresolved)
	assert.Contains(t, err.Error(), "ns.Missing")

	assertMissing(t, fsys, "/lib/ns/D.js")
}

func TestRun_AmbiguousOwnership(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"/src/a/Dup.js": "goog.provide('ns.Dup');\n",
		"/src/b/Dup.js": "goog.provide('ns.Dup');\n",
		"/src/ns/U.js":  "goog.provide('ns.U');\ngoog.require('ns.Dup');\n",
	}

	fsys := newFs(t, files)

	result, err := newPipeline(t, newConfig(t, nil), fsys).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []registry.Conflict{
		{Namespace: "ns.Dup", Owner: "/src/a/Dup.js", Others: []string{"/src/b/Dup.js"}},
	}, result.Plan.Conflicts)
	assert.Contains(t, readFile(t, fsys, "/lib/ns/U.js"), "import \"../a/Dup\"\n")

	strict := newConfig(t, map[string]any{"resolve.strict": true})

	_, err = newPipeline(t, strict, newFs(t, files)).Run(context.Background())
	require.ErrorIs(t, err, migrate.ErrAmbiguousOwnership)
}

func TestRun_StrictAllowsFileShadowingPlaceholder(t *testing.T) {
	t.Parallel()

	fsys := newFs(t, map[string]string{
		"/src/async/deferred.js": "goog.provide('goog.async.Deferred');\n",
		"/src/ui/x.js":           "goog.provide('ui.X');\ngoog.require('goog.async.Deferred');\n",
	})

	cfg := newConfig(t, map[string]any{"resolve.strict": true})

	result, err := newPipeline(t, cfg, fsys).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, result.Plan.Conflicts)
	assert.Equal(t,
		"import { goog } from \"../base\"\nimport \"../async/deferred\"\n\n"+
			"goog.provide('ui.X');\ngoog.require('goog.async.Deferred');\n",
		readFile(t, fsys, "/lib/ui/x.js"))
}

func TestRun_BaseFileBecomesBaseBody(t *testing.T) {
	t.Parallel()

	fsys := newFs(t, map[string]string{
		"/src/ns/A.js": bodyA,
		"/src/base.js": "var goog = goog || {};",
	})

	_, err := newPipeline(t, newConfig(t, nil), fsys).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "\n\nvar goog = goog || {};\nexport { goog };\n", readFile(t, fsys, "/lib/base.js"))
}

func TestRun_LogsCarryUnitAndPhase(t *testing.T) {
	t.Parallel()

	fsys := newFs(t, map[string]string{
		"/src/ns/D.js": "goog.provide('ns.D');\ngoog.require('ns.Missing');\n",
	})

	var logs bytes.Buffer

	handler := observability.NewRunHandler(slog.NewJSONHandler(&logs, nil), observability.DefaultConfig())

	_, err := newPipeline(t, newConfig(t, nil), fsys, migrate.WithLogger(slog.New(handler))).Run(context.Background())
	require.NoError(t, err)

	var warning map[string]any

	for line := range strings.SplitSeq(strings.TrimSpace(logs.String()), "\n") {
		var record map[string]any

		require.NoError(t, json.Unmarshal([]byte(line), &record))

		if record["msg"] == "unresolved namespace" {
			warning = record
		}
	}

	require.NotNil(t, warning)
	assert.Equal(t, "/src/ns/D.js", warning[observability.KeyUnit])
	assert.Equal(t, "build", warning[observability.KeyPhase])
	assert.Equal(t, "ns.Missing", warning["namespace"])
}

func TestRun_TooLargeFileFails(t *testing.T) {
	t.Parallel()

	fsys := newFs(t, map[string]string{"/src/ns/A.js": bodyA})
	cfg := newConfig(t, map[string]any{"input.max_file_size": "8B"})

	_, err := newPipeline(t, cfg, fsys).Run(context.Background())
	require.ErrorIs(t, err, source.ErrTooLarge)
}

func TestRun_DefaultExport(t *testing.T) {
	t.Parallel()

	body := "goog.module('ns.M');\nexports.value = 1;\n"
	fsys := newFs(t, map[string]string{"/src/ns/M.js": body})

	cfg := newConfig(t, map[string]any{"emit.default_export": true})

	_, err := newPipeline(t, cfg, fsys).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t,
		"import { goog } from \"../base\"\n\nvar exports = {};\n"+body+"\nns.M = exports;\nexport default exports",
		readFile(t, fsys, "/lib/ns/M.js"))
}

func TestRun_RecordsMetrics(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	metrics, err := observability.NewMigrationMetrics(mp.Meter("test"))
	require.NoError(t, err)

	fsys := newFs(t, map[string]string{
		"/src/ns/A.js": bodyA,
		"/src/ns/B.js": bodyB,
	})

	_, err = newPipeline(t, newConfig(t, nil), fsys, migrate.WithMetrics(metrics)).Run(context.Background())
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	names := make(map[string]bool)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			names[m.Name] = true
		}
	}

	assert.True(t, names["esmigrate.units.total"])
	assert.True(t, names["esmigrate.imports.total"])
	assert.True(t, names["esmigrate.phase.duration.seconds"])
}

func TestPlan_WritesNothing(t *testing.T) {
	t.Parallel()

	fsys := newFs(t, map[string]string{
		"/src/ns/A.js": bodyA,
		"/src/ns/B.js": bodyB,
	})

	plan, err := newPipeline(t, newConfig(t, nil), fsys).Plan(context.Background())
	require.NoError(t, err)

	require.Len(t, plan.Entries, 3)
	assert.Equal(t, "/src/ns/A.js", plan.Entries[0].Unit.ID)
	assert.Equal(t, "/lib/ns/A.js", plan.Entries[0].Target)
	assert.Equal(t, []string{"../base", "./A"}, plan.Entries[1].Imports)
	assert.Equal(t, "/src/base.js", plan.Entries[2].Unit.ID)
	assert.Empty(t, plan.Entries[2].Imports)

	exists, err := afero.DirExists(fsys, "/lib")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPreview(t *testing.T) {
	t.Parallel()

	fsys := newFs(t, map[string]string{
		"/src/ns/A.js": bodyA,
		"/src/ns/B.js": bodyB,
	})

	pipeline := newPipeline(t, newConfig(t, nil), fsys)

	before, after, err := pipeline.Preview(context.Background(), "/src/ns/B.js")
	require.NoError(t, err)
	assert.Equal(t, bodyB, before)
	assert.Equal(t, "import { goog } from \"../base\"\nimport \"./A\"\n\n"+bodyB, after)

	_, _, err = pipeline.Preview(context.Background(), "/src/ns/missing.js")
	require.ErrorIs(t, err, migrate.ErrUnknownUnit)

	_, _, err = pipeline.Preview(context.Background(), "/src/base.js")
	require.ErrorIs(t, err, migrate.ErrUnknownUnit)
}

func TestPlan_Dependencies(t *testing.T) {
	t.Parallel()

	fsys := newFs(t, map[string]string{
		"/src/ns/A.js": bodyA,
		"/src/ns/B.js": bodyB,
	})

	plan, err := newPipeline(t, newConfig(t, nil), fsys).Plan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"/src/base.js"}, plan.Entries[0].Dependencies)
	assert.Equal(t, []string{"/src/base.js", "/src/ns/A.js"}, plan.Entries[1].Dependencies)
	assert.Empty(t, plan.Entries[2].Dependencies)
}
