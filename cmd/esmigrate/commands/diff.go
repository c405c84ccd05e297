package commands

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/esmigrate/pkg/observability"
)

func newDiffCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "diff <file>",
		Short: "Preview the rewrite of one file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve %s: %w", args[0], err)
			}

			sess, err := opts.openSession(cmd, observability.ModePlan)
			if err != nil {
				return err
			}

			before, after, err := sess.pipeline.Preview(cmd.Context(), path)
			if err != nil {
				return sess.close(err)
			}

			target, err := relativeTarget(sess.cfg.Input.Root, sess.cfg.Output.Root, path)
			if err != nil {
				return sess.close(err)
			}

			writeDiff(cmd.OutOrStdout(), relativeTo(sess.cfg.Input.Root, path), target, before, after, opts.noColor)

			return sess.close(nil)
		},
	}
}

func relativeTarget(inputRoot, outputRoot, path string) (string, error) {
	rel, err := filepath.Rel(inputRoot, path)
	if err != nil {
		return "", fmt.Errorf("resolve target of %s: %w", path, err)
	}

	return filepath.ToSlash(filepath.Join(outputRoot, rel)), nil
}

// writeDiff prints a line diff of before and after.
func writeDiff(out io.Writer, fromName, toName, before, after string, noColor bool) {
	dmp := diffmatchpatch.New()
	src, dst, lines := dmp.DiffLinesToRunes(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMainRunes(src, dst, false), lines)

	header := newColor(noColor, color.Bold)
	added := newColor(noColor, color.FgGreen)
	removed := newColor(noColor, color.FgRed)

	header.Fprintf(out, "--- %s\n+++ %s\n", fromName, toName)

	for _, diff := range diffs {
		for _, line := range splitLines(diff.Text) {
			switch diff.Type {
			case diffmatchpatch.DiffInsert:
				added.Fprintf(out, "+%s\n", line)
			case diffmatchpatch.DiffDelete:
				removed.Fprintf(out, "-%s\n", line)
			case diffmatchpatch.DiffEqual:
				fmt.Fprintf(out, " %s\n", line)
			}
		}
	}
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}

	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}
