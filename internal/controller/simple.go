package controller

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	m "github.com/mouse-blink/coverguard/internal/model"
)

// SimpleUI implements UI by printing to the command's output streams.
type SimpleUI struct {
	cmd  *cobra.Command
	opts options
}

// NewSimpleUI creates a new SimpleUI.
func NewSimpleUI(cmd *cobra.Command, opts ...Option) *SimpleUI {
	return &SimpleUI{cmd: cmd, opts: buildOptions(opts)}
}

// DisplayWarnings prints the soft warnings to stderr.
func (s *SimpleUI) DisplayWarnings(ctx context.Context, warnings []string) {
	if err := ctx.Err(); err != nil || len(warnings) == 0 {
		return
	}

	out := s.cmd.ErrOrStderr()
	_, _ = fmt.Fprint(out, newReportRenderer(out, s.opts).warnings(warnings))
}

// DisplayReport prints the report in the configured format.
func (s *SimpleUI) DisplayReport(ctx context.Context, report m.CoverageReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	out := s.cmd.OutOrStdout()

	if s.opts.format == FormatYAML {
		doc, err := renderYAML(report)
		if err != nil {
			return err
		}

		_, err = fmt.Fprint(out, doc)

		return err
	}

	_, err := fmt.Fprint(out, newReportRenderer(out, s.opts).text(report))

	return err
}

// DisplayDocument prints a coverage document as is.
func (s *SimpleUI) DisplayDocument(ctx context.Context, document string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := fmt.Fprint(s.cmd.OutOrStdout(), document)

	return err
}
