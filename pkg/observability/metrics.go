package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricUnitsTotal      = "esmigrate.units.total"
	metricImportsTotal    = "esmigrate.imports.total"
	metricUnresolvedTotal = "esmigrate.unresolved.total"
	metricConflictsTotal  = "esmigrate.conflicts.total"
	metricPhaseDuration   = "esmigrate.phase.duration.seconds"

	attrStatus = "status"
	attrPhase  = "phase"
)

// Unit statuses recorded on esmigrate.units.total.
const (
	StatusWritten = "written"
	StatusDropped = "dropped"
)

// durationBucketBoundaries covers 1ms to 5 minutes.
var durationBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300}

// MigrationMetrics holds the instruments recorded by a migration run.
type MigrationMetrics struct {
	units         metric.Int64Counter
	imports       metric.Int64Counter
	unresolved    metric.Int64Counter
	conflicts     metric.Int64Counter
	phaseDuration metric.Float64Histogram
}

// NewMigrationMetrics creates the migration instruments from mt.
func NewMigrationMetrics(mt metric.Meter) (*MigrationMetrics, error) {
	units, err := mt.Int64Counter(metricUnitsTotal,
		metric.WithDescription("Units processed, by status"),
		metric.WithUnit("{unit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricUnitsTotal, err)
	}

	imports, err := mt.Int64Counter(metricImportsTotal,
		metric.WithDescription("Import statements emitted"),
		metric.WithUnit("{import}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricImportsTotal, err)
	}

	unresolved, err := mt.Int64Counter(metricUnresolvedTotal,
		metric.WithDescription("Required namespaces without an owner"),
		metric.WithUnit("{namespace}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricUnresolvedTotal, err)
	}

	conflicts, err := mt.Int64Counter(metricConflictsTotal,
		metric.WithDescription("Namespaces claimed by more than one unit"),
		metric.WithUnit("{namespace}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricConflictsTotal, err)
	}

	phaseDuration, err := mt.Float64Histogram(metricPhaseDuration,
		metric.WithDescription("Duration of a migration phase in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricPhaseDuration, err)
	}

	return &MigrationMetrics{
		units:         units,
		imports:       imports,
		unresolved:    unresolved,
		conflicts:     conflicts,
		phaseDuration: phaseDuration,
	}, nil
}

// RecordUnits adds n units with the given status.
func (mm *MigrationMetrics) RecordUnits(ctx context.Context, status string, n int) {
	mm.units.Add(ctx, int64(n), metric.WithAttributes(attribute.String(attrStatus, status)))
}

// RecordImports adds n emitted imports.
func (mm *MigrationMetrics) RecordImports(ctx context.Context, n int) {
	mm.imports.Add(ctx, int64(n))
}

// RecordUnresolved adds n unresolved namespaces.
func (mm *MigrationMetrics) RecordUnresolved(ctx context.Context, n int) {
	mm.unresolved.Add(ctx, int64(n))
}

// RecordConflicts adds n ownership conflicts.
func (mm *MigrationMetrics) RecordConflicts(ctx context.Context, n int) {
	mm.conflicts.Add(ctx, int64(n))
}

// RecordPhase records how long phase took.
func (mm *MigrationMetrics) RecordPhase(ctx context.Context, phase string, d time.Duration) {
	mm.phaseDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String(attrPhase, phase)))
}
