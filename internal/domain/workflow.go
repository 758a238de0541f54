// Package domain correlates coverage reports, patches and PHP sources and
// runs the coverage rules over the resulting code blocks.
package domain

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mouse-blink/coverguard/internal/adapter"
	"github.com/mouse-blink/coverguard/internal/controller"
	"github.com/mouse-blink/coverguard/internal/coverage"
	"github.com/mouse-blink/coverguard/internal/domain/rules"
	m "github.com/mouse-blink/coverguard/internal/model"
	"github.com/mouse-blink/coverguard/internal/patch"
)

// CheckArgs contains the arguments for checking a coverage report.
type CheckArgs struct {
	CoverageFile m.Path
	PatchFile    m.Path
	GitRoot      string
	Parallel     int
	ReportFile   m.Path
	Rules        []rules.Rule
	PathMappings []m.PathMapping
}

// MergeArgs contains the arguments for merging coverage reports.
type MergeArgs struct {
	Inputs       []m.Path
	Format       string
	Output       m.Path
	Indent       string
	PathMappings []m.PathMapping
}

// ConvertArgs contains the arguments for converting a coverage report.
type ConvertArgs struct {
	Input        m.Path
	Format       string
	Output       m.Path
	Indent       string
	PathMappings []m.PathMapping
}

// Workflow defines the operations exposed to the command line.
type Workflow interface {
	Check(ctx context.Context, args CheckArgs) (m.CoverageReport, error)
	Merge(ctx context.Context, args MergeArgs) error
	Convert(ctx context.Context, args ConvertArgs) error
}

type workflow struct {
	adapter.SourceFSAdapter
	adapter.PHPFileAdapter
	adapter.GitRootAdapter
	adapter.ReportStore
	controller.UI
	BlockExtractor

	now func() time.Time
}

// NewWorkflow creates a new Workflow instance with the provided dependencies.
func NewWorkflow(
	fsAdapter adapter.SourceFSAdapter,
	phpAdapter adapter.PHPFileAdapter,
	gitRootAdapter adapter.GitRootAdapter,
	reportStore adapter.ReportStore,
	ui controller.UI,
	extractor BlockExtractor,
) Workflow {
	return &workflow{
		SourceFSAdapter: fsAdapter,
		PHPFileAdapter:  phpAdapter,
		GitRootAdapter:  gitRootAdapter,
		ReportStore:     reportStore,
		UI:              ui,
		BlockExtractor:  extractor,
		now:             time.Now,
	}
}

// Check runs the rules over every file of the coverage report and displays
// the violations. It fails on the first broken input.
func (w *workflow) Check(ctx context.Context, args CheckArgs) (m.CoverageReport, error) {
	started := w.now()
	patchMode := args.PatchFile != ""

	files, err := w.extract(ctx, args.CoverageFile, args.PathMappings)
	if err != nil {
		return m.CoverageReport{}, err
	}

	warnings := coverageWarnings(args.CoverageFile, files)
	for _, warning := range warnings {
		slog.Warn(warning, "coverageFile", args.CoverageFile)
	}

	w.DisplayWarnings(ctx, warnings)

	changed, err := w.changedLines(ctx, args)
	if err != nil {
		return m.CoverageReport{}, err
	}

	results := make([][]m.ReportedError, len(files))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(max(args.Parallel, 1))

	for i, file := range files {
		group.Go(func() error {
			reported, err := w.checkFile(groupCtx, file, changed, args.Rules, patchMode)
			if err != nil {
				return err
			}

			results[i] = reported

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return m.CoverageReport{}, err
	}

	report := m.CoverageReport{
		PatchMode: patchMode,
		Warnings:  warnings,
	}

	for i, file := range files {
		report.AnalysedFiles = append(report.AnalysedFiles, file.FilePath)
		report.ReportedErrors = append(report.ReportedErrors, results[i]...)
	}

	sortReportedErrors(report.ReportedErrors)
	report.ElapsedTime = w.now().Sub(started)

	slog.Debug("Check finished", "files", len(report.AnalysedFiles),
		"violations", len(report.ReportedErrors), "elapsed", report.ElapsedTime)

	if err := w.DisplayReport(ctx, report); err != nil {
		slog.Error("Failed to display report", "error", err)
		return report, fmt.Errorf("display: %w", err)
	}

	if args.ReportFile != "" {
		if err := w.SaveReport(args.ReportFile, report); err != nil {
			return report, fmt.Errorf("save report: %w", err)
		}
	}

	return report, nil
}

// Merge combines several coverage reports into one document.
func (w *workflow) Merge(ctx context.Context, args MergeArgs) error {
	if len(args.Inputs) == 0 {
		return m.Errorf(m.ErrUsage, "merge needs at least one coverage file")
	}

	writer, err := w.writer(args.Format)
	if err != nil {
		return err
	}

	sets := make([][]m.FileCoverage, 0, len(args.Inputs))

	for _, input := range args.Inputs {
		files, err := w.extract(ctx, input, args.PathMappings)
		if err != nil {
			return err
		}

		sets = append(sets, files)
	}

	return w.emit(ctx, writer, coverage.Merge(sets), args.Output, args.Indent)
}

// Convert rewrites one coverage report in another format.
func (w *workflow) Convert(ctx context.Context, args ConvertArgs) error {
	return w.Merge(ctx, MergeArgs{
		Inputs:       []m.Path{args.Input},
		Format:       args.Format,
		Output:       args.Output,
		Indent:       args.Indent,
		PathMappings: args.PathMappings,
	})
}

func (w *workflow) writer(formatName string) (coverage.Writer, error) {
	format, err := coverage.ParseFormat(formatName)
	if err != nil {
		return nil, err
	}

	return coverage.NewWriter(format, w.now)
}

func (w *workflow) extract(ctx context.Context, path m.Path, mappings []m.PathMapping) ([]m.FileCoverage, error) {
	format, err := coverage.DetectFormat(string(path))
	if err != nil {
		slog.Error("Failed to detect coverage format", "path", path, "error", err)
		return nil, err
	}

	extractor, err := coverage.NewExtractor(format, mappings)
	if err != nil {
		return nil, err
	}

	files, err := extractor.Extract(ctx, string(path))
	if err != nil {
		slog.Error("Failed to read coverage report", "path", path, "format", format, "error", err)
		return nil, err
	}

	slog.Debug("Read coverage report", "path", path, "format", format, "files", len(files))

	return files, nil
}

func (w *workflow) emit(ctx context.Context, writer coverage.Writer, files []m.FileCoverage, output m.Path, indent string) error {
	document, err := writer.Write(files, indent)
	if err != nil {
		slog.Error("Failed to write coverage document", "error", err)
		return fmt.Errorf("write coverage: %w", err)
	}

	if output == "" {
		return w.DisplayDocument(ctx, document)
	}

	if err := w.WriteFile(output, []byte(document), 0o644); err != nil {
		slog.Error("Failed to save coverage document", "path", output, "error", err)
		return fmt.Errorf("save %s: %w", output, err)
	}

	slog.Debug("Saved coverage document", "path", output, "files", len(files))

	return nil
}

func (w *workflow) changedLines(ctx context.Context, args CheckArgs) (patch.ChangedLines, error) {
	if args.PatchFile == "" {
		return nil, nil
	}

	cwd, err := w.Getwd()
	if err != nil {
		return nil, fmt.Errorf("working directory: %w", err)
	}

	root, err := w.Resolve(ctx, args.GitRoot, string(cwd))
	if err != nil {
		return nil, err
	}

	changed, err := patch.NewParser(w.SourceFSAdapter).ChangedLines(ctx, string(args.PatchFile), root)
	if err != nil {
		slog.Error("Failed to read patch", "patch", args.PatchFile, "gitRoot", root, "error", err)
		return nil, err
	}

	slog.Debug("Read patch", "patch", args.PatchFile, "gitRoot", root, "files", len(changed))

	return changed, nil
}

func (w *workflow) checkFile(
	ctx context.Context,
	file m.FileCoverage,
	changed patch.ChangedLines,
	ruleSet []rules.Rule,
	patchMode bool,
) ([]m.ReportedError, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content, err := w.ReadFile(m.Path(file.FilePath))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, m.Errorf(m.ErrInputNotFound,
				"source file %s listed in the coverage report does not exist (check coverage.path_mapping)", file.FilePath)
		}

		return nil, fmt.Errorf("read %s: %w", file.FilePath, err)
	}

	source := m.SourceFile{Path: m.Path(file.FilePath), Lines: adapter.SplitLines(string(content))}
	if err := verifyIntegrity(file, source); err != nil {
		slog.Error("Coverage report does not match source", "file", file.FilePath, "error", err)
		return nil, err
	}

	tree, err := w.Parse(ctx, file.FilePath, content)
	if err != nil {
		slog.Error("Failed to parse source", "file", file.FilePath, "error", err)

		if ctx.Err() != nil {
			return nil, err
		}

		return nil, m.Errorf(m.ErrFormat, "%v", err)
	}

	return w.Traverse(tree, source, file.LineHits(), changed[absolute(file.FilePath)], ruleSet, patchMode)
}

// verifyIntegrity rejects coverage data recorded against another version of
// the source file.
func verifyIntegrity(file m.FileCoverage, source m.SourceFile) error {
	if highest := file.MaxLineNumber(); highest > source.LinesCount() {
		return m.Errorf(m.ErrIntegrity,
			"coverage report lists line %d of %s, but the file has %d lines",
			highest, file.FilePath, source.LinesCount())
	}

	if file.ExpectedLinesCount != nil && *file.ExpectedLinesCount != source.LinesCount() {
		return m.Errorf(m.ErrIntegrity,
			"coverage report recorded %d lines for %s, but the file has %d lines",
			*file.ExpectedLinesCount, file.FilePath, source.LinesCount())
	}

	return nil
}

func coverageWarnings(path m.Path, files []m.FileCoverage) []string {
	if len(files) == 0 {
		return []string{fmt.Sprintf("coverage file %s contains no coverage data", path)}
	}

	for _, file := range files {
		if file.CoveredLinesCount() > 0 {
			return nil
		}
	}

	return []string{fmt.Sprintf("no line in coverage file %s was ever executed, did the tests run?", path)}
}

func sortReportedErrors(reported []m.ReportedError) {
	sort.SliceStable(reported, func(i, j int) bool {
		a, b := reported[i].Block, reported[j].Block
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}

		return a.StartLine() < b.StartLine()
	})
}

func absolute(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}

	return abs
}
