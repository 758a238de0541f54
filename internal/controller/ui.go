// Package controller provides output adapters for displaying coverage reports.
package controller

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	m "github.com/mouse-blink/coverguard/internal/model"
)

// OutputFormat selects how check reports are printed.
type OutputFormat string

// Available output formats.
const (
	FormatText OutputFormat = "text"
	FormatYAML OutputFormat = "yaml"
)

// ParseOutputFormat validates a format name given on the command line.
func ParseOutputFormat(name string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(name))) {
	case FormatText, "":
		return FormatText, nil
	case FormatYAML:
		return FormatYAML, nil
	default:
		return "", m.Errorf(m.ErrUsage, "unknown output format %q (expected text or yaml)", name)
	}
}

// UI defines how the workflow reports its results.
// Implementations can use different output methods (simple text, pager, etc).
type UI interface {
	DisplayWarnings(ctx context.Context, warnings []string)
	DisplayReport(ctx context.Context, report m.CoverageReport) error
	// DisplayDocument prints a generated coverage document.
	DisplayDocument(ctx context.Context, document string) error
}

type options struct {
	format    OutputFormat
	editorURL string
	baseDir   string
	pager     bool
}

// Option is a functional option for the UI constructors.
type Option func(*options)

// WithOutputFormat sets the report format.
func WithOutputFormat(format OutputFormat) Option {
	return func(o *options) {
		o.format = format
	}
}

// WithEditorURL sets the link template printed next to each violation.
// {file}, {relFile} and {line} are substituted.
func WithEditorURL(template string) Option {
	return func(o *options) {
		o.editorURL = template
	}
}

// WithBaseDir sets the directory file names are shown relative to.
func WithBaseDir(dir string) Option {
	return func(o *options) {
		o.baseDir = dir
	}
}

// WithoutPager always prints reports directly.
func WithoutPager() Option {
	return func(o *options) {
		o.pager = false
	}
}

func buildOptions(opts []Option) options {
	o := options{format: FormatText, pager: true}
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// NewUI returns the pager UI for text reports on a terminal and the simple
// UI everywhere else.
func NewUI(cmd *cobra.Command, isTTY bool, opts ...Option) UI {
	o := buildOptions(opts)
	if isTTY && o.pager && o.format == FormatText {
		return NewTUI(cmd, opts...)
	}

	return NewSimpleUI(cmd, opts...)
}

// IsTTY reports whether w is an interactive terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	fd := f.Fd()

	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
