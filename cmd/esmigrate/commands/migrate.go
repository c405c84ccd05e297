package commands

import (
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/esmigrate/pkg/migrate"
	"github.com/Sumatoshi-tech/esmigrate/pkg/observability"
)

func runMigrate(cmd *cobra.Command, opts *globalOptions) error {
	sess, err := opts.openSession(cmd, observability.ModeCLI)
	if err != nil {
		return err
	}

	result, err := sess.pipeline.Run(cmd.Context())
	if err != nil {
		return sess.close(err)
	}

	if !opts.quiet {
		printSummary(cmd.OutOrStdout(), result, sess.cfg.Output.Root, opts.noColor)
	}

	return sess.close(nil)
}

func printSummary(out io.Writer, result *migrate.Result, outputRoot string, noColor bool) {
	ok := newColor(noColor, color.FgGreen)
	warn := newColor(noColor, color.FgYellow)

	ok.Fprintf(out, "Migrated %d files (%d imports, %s) into %s\n",
		len(result.Outputs), result.ImportCount(), humanize.Bytes(result.ByteCount()), outputRoot)

	plan := result.Plan

	if n := len(plan.Dropped); n > 0 {
		warn.Fprintf(out, "  %d files skipped without a usable provide\n", n)
	}

	if n := len(plan.Unresolved()); n > 0 {
		warn.Fprintf(out, "  %d required namespaces have no provider\n", n)
	}

	if n := len(plan.Conflicts); n > 0 {
		warn.Fprintf(out, "  %d namespaces are provided by more than one file\n", n)
	}
}

func newColor(noColor bool, attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if noColor {
		c.DisableColor()
	}

	return c
}
