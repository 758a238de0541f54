package controller

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	m "github.com/mouse-blink/coverguard/internal/model"
)

const (
	markCovered    = "●"
	markUncovered  = "✗"
	markChanged    = "+"
	markNotChanged = " "
)

type reportStyles struct {
	location  lipgloss.Style
	name      lipgloss.Style
	message   lipgloss.Style
	link      lipgloss.Style
	covered   lipgloss.Style
	uncovered lipgloss.Style
	muted     lipgloss.Style
	warning   lipgloss.Style
	success   lipgloss.Style
}

// newReportStyles binds the styles to the writer's color profile, so
// redirected output stays free of escape sequences.
func newReportStyles(out io.Writer) reportStyles {
	r := lipgloss.NewRenderer(out)

	return reportStyles{
		location:  r.NewStyle().Bold(true),
		name:      r.NewStyle().Foreground(lipgloss.Color("12")),
		message:   r.NewStyle().Foreground(lipgloss.Color("9")),
		link:      r.NewStyle().Underline(true).Foreground(lipgloss.Color("14")),
		covered:   r.NewStyle().Foreground(lipgloss.Color("10")),
		uncovered: r.NewStyle().Foreground(lipgloss.Color("9")),
		muted:     r.NewStyle().Faint(true),
		warning:   r.NewStyle().Foreground(lipgloss.Color("11")),
		success:   r.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
	}
}

type reportRenderer struct {
	opts   options
	styles reportStyles
}

func newReportRenderer(out io.Writer, opts options) reportRenderer {
	return reportRenderer{opts: opts, styles: newReportStyles(out)}
}

func (r reportRenderer) relative(file string) string {
	if r.opts.baseDir == "" {
		return file
	}

	rel, err := filepath.Rel(r.opts.baseDir, file)
	if err != nil || strings.HasPrefix(rel, "..") {
		return file
	}

	return rel
}

// editorLink fills the editor URL template, empty when none is configured.
func (r reportRenderer) editorLink(file string, line int) string {
	if r.opts.editorURL == "" {
		return ""
	}

	return strings.NewReplacer(
		"{file}", file,
		"{relFile}", r.relative(file),
		"{line}", strconv.Itoa(line),
	).Replace(r.opts.editorURL)
}

func (r reportRenderer) warnings(warnings []string) string {
	var b strings.Builder

	for _, warning := range warnings {
		b.WriteString(r.styles.warning.Render("Warning: "+warning) + "\n")
	}

	return b.String()
}

func (r reportRenderer) text(report m.CoverageReport) string {
	var b strings.Builder

	for _, reported := range report.ReportedErrors {
		r.violation(&b, reported, report.PatchMode)
	}

	if report.HasViolations() {
		b.WriteString(r.summaryTable(report))
	}

	b.WriteString(r.footer(report))

	return b.String()
}

func (r reportRenderer) violation(b *strings.Builder, reported m.ReportedError, patchMode bool) {
	block := reported.Block
	location := fmt.Sprintf("%s:%d", r.relative(block.FilePath), block.StartLine())

	fmt.Fprintf(b, "%s  %s\n", r.styles.location.Render(location), r.styles.name.Render(block.Name()))
	fmt.Fprintf(b, "  %s\n", r.styles.message.Render(reported.Error.Message))

	if link := r.editorLink(block.FilePath, block.StartLine()); link != "" {
		fmt.Fprintf(b, "  %s\n", r.styles.link.Render(link))
	}

	stats := fmt.Sprintf("coverage %d%% (%d/%d)", block.CoveragePercentage(),
		block.CoveredLinesCount(), block.ExecutableLinesCount())
	if patchMode {
		stats += fmt.Sprintf(", changed %d%%", block.ChangePercentage())
	}

	fmt.Fprintf(b, "  %s\n", r.styles.muted.Render(stats))

	for _, line := range block.Lines {
		b.WriteString(r.sourceLine(line, patchMode))
	}

	b.WriteString("\n")
}

func (r reportRenderer) sourceLine(line m.LineOfCode, patchMode bool) string {
	coverage := " "

	switch {
	case line.Covered:
		coverage = r.styles.covered.Render(markCovered)
	case line.Executable:
		coverage = r.styles.uncovered.Render(markUncovered)
	}

	change := ""
	if patchMode {
		change = markNotChanged
		if line.Changed {
			change = markChanged
		}
	}

	number := r.styles.muted.Render(fmt.Sprintf("%6d", line.Number))

	return fmt.Sprintf("%s %s%s │ %s\n", number, coverage, change, line.Contents)
}

func (r reportRenderer) summaryTable(report m.CoverageReport) string {
	counts := map[string]int{}
	for _, reported := range report.ReportedErrors {
		counts[reported.Block.FilePath]++
	}

	files := make([]string, 0, len(counts))
	for file := range counts {
		files = append(files, file)
	}

	sort.Strings(files)

	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"File", "Violations"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER})

	for _, file := range files {
		table.Append([]string{r.relative(file), strconv.Itoa(counts[file])})
	}

	table.SetFooter([]string{
		fmt.Sprintf("Total Files %d", len(files)),
		strconv.Itoa(len(report.ReportedErrors)),
	})

	table.Render()

	return tableBuffer.String()
}

func (r reportRenderer) footer(report m.CoverageReport) string {
	mode := ""
	if report.PatchMode {
		mode = " (patch mode)"
	}

	elapsed := fmt.Sprintf("%.2fs", report.ElapsedTime.Seconds())

	if !report.HasViolations() {
		return r.styles.success.Render(fmt.Sprintf("No coverage violations in %d analysed file(s)%s, %s.",
			len(report.AnalysedFiles), mode, elapsed)) + "\n"
	}

	return r.styles.message.Render(fmt.Sprintf("%d coverage violation(s) in %d analysed file(s)%s, %s.",
		len(report.ReportedErrors), len(report.AnalysedFiles), mode, elapsed)) + "\n"
}

func renderYAML(report m.CoverageReport) (string, error) {
	data, err := yaml.Marshal(m.NewReportDocument(report))
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}

	return string(data), nil
}
