package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/esmigrate/pkg/migrate"
	"github.com/Sumatoshi-tech/esmigrate/pkg/observability"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// ErrUnknownFormat is returned for an unsupported --format value.
var ErrUnknownFormat = errors.New("unknown format")

// planReport is the serialized form of a plan.
type planReport struct {
	Units      []planUnit     `json:"units"                yaml:"units"`
	Dropped    []planDropped  `json:"dropped,omitempty"    yaml:"dropped,omitempty"`
	Conflicts  []planConflict `json:"conflicts,omitempty"  yaml:"conflicts,omitempty"`
	Unresolved []planMiss     `json:"unresolved,omitempty" yaml:"unresolved,omitempty"`
}

type planUnit struct {
	Path     string   `json:"path"              yaml:"path"`
	Target   string   `json:"target"            yaml:"target"`
	Provides []string `json:"provides"          yaml:"provides"`
	Imports  []string `json:"imports,omitempty" yaml:"imports,omitempty"`
	// DependsOn are the files behind Imports, index for index.
	DependsOn []string `json:"dependsOn,omitempty" yaml:"dependsOn,omitempty"`
}

type planDropped struct {
	Path   string `json:"path"   yaml:"path"`
	Reason string `json:"reason" yaml:"reason"`
}

type planConflict struct {
	Namespace string   `json:"namespace" yaml:"namespace"`
	Owner     string   `json:"owner"     yaml:"owner"`
	Others    []string `json:"others"    yaml:"others"`
}

type planMiss struct {
	Path      string `json:"path"      yaml:"path"`
	Namespace string `json:"namespace" yaml:"namespace"`
}

func newPlanCommand(opts *globalOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the imports each file would receive without writing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch format {
			case formatTable, formatJSON, formatYAML:
			default:
				return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
			}

			sess, err := opts.openSession(cmd, observability.ModePlan)
			if err != nil {
				return err
			}

			plan, err := sess.pipeline.Plan(cmd.Context())
			if err != nil {
				return sess.close(err)
			}

			report := newPlanReport(plan, sess.cfg.Input.Root)

			return sess.close(writePlan(cmd.OutOrStdout(), report, format))
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "output format: table, json or yaml")

	return cmd
}

func newPlanReport(plan *migrate.Plan, root string) planReport {
	report := planReport{Units: make([]planUnit, 0, len(plan.Entries))}

	for _, entry := range plan.Entries {
		deps := make([]string, 0, len(entry.Dependencies))
		for _, dep := range entry.Dependencies {
			deps = append(deps, relativeTo(root, dep))
		}

		report.Units = append(report.Units, planUnit{
			Path:      relativeTo(root, entry.Unit.ID),
			Target:    entry.Target,
			Provides:  entry.Unit.Provided,
			Imports:   entry.Imports,
			DependsOn: deps,
		})
	}

	for _, dropped := range plan.Dropped {
		report.Dropped = append(report.Dropped, planDropped{Path: relativeTo(root, dropped.ID), Reason: string(dropped.Reason)})
	}

	for _, conflict := range plan.Conflicts {
		others := make([]string, 0, len(conflict.Others))
		for _, other := range conflict.Others {
			others = append(others, relativeTo(root, other))
		}

		report.Conflicts = append(report.Conflicts, planConflict{
			Namespace: conflict.Namespace,
			Owner:     relativeTo(root, conflict.Owner),
			Others:    others,
		})
	}

	for _, miss := range plan.Unresolved() {
		report.Unresolved = append(report.Unresolved, planMiss{Path: relativeTo(root, miss.Unit), Namespace: miss.Namespace})
	}

	return report
}

func relativeTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}

	return filepath.ToSlash(rel)
}

func writePlan(out io.Writer, report planReport, format string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")

		err := enc.Encode(report)
		if err != nil {
			return fmt.Errorf("encode plan: %w", err)
		}

		return nil
	case formatYAML:
		enc := yaml.NewEncoder(out)

		err := enc.Encode(report)
		if err != nil {
			return fmt.Errorf("encode plan: %w", err)
		}

		return enc.Close()
	default:
		renderPlanTables(out, report)

		return nil
	}
}

func renderPlanTables(out io.Writer, report planReport) {
	units := table.NewWriter()
	units.SetOutputMirror(out)
	units.SetStyle(table.StyleLight)
	units.AppendHeader(table.Row{"File", "Provides", "Imports"})

	for _, u := range report.Units {
		units.AppendRow(table.Row{u.Path, strings.Join(u.Provides, "\n"), strings.Join(u.Imports, "\n")})
	}

	units.Render()

	if len(report.Dropped) > 0 {
		dropped := table.NewWriter()
		dropped.SetOutputMirror(out)
		dropped.SetStyle(table.StyleLight)
		dropped.SetTitle("Skipped")
		dropped.AppendHeader(table.Row{"File", "Reason"})

		for _, d := range report.Dropped {
			dropped.AppendRow(table.Row{d.Path, d.Reason})
		}

		dropped.Render()
	}

	if len(report.Unresolved) > 0 || len(report.Conflicts) > 0 {
		problems := table.NewWriter()
		problems.SetOutputMirror(out)
		problems.SetStyle(table.StyleLight)
		problems.SetTitle("Diagnostics")
		problems.AppendHeader(table.Row{"Namespace", "Problem", "Files"})

		for _, miss := range report.Unresolved {
			problems.AppendRow(table.Row{miss.Namespace, "unresolved", miss.Path})
		}

		for _, conflict := range report.Conflicts {
			files := append([]string{conflict.Owner + " (owner)"}, conflict.Others...)
			problems.AppendRow(table.Row{conflict.Namespace, "ambiguous", strings.Join(files, "\n")})
		}

		problems.Render()
	}
}
