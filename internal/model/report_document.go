package model

import "sort"

// ReportDocument is the machine-readable form of a CoverageReport.
type ReportDocument struct {
	PatchMode      bool                `yaml:"patch_mode"`
	ElapsedSeconds float64             `yaml:"elapsed_seconds"`
	AnalysedFiles  []string            `yaml:"analysed_files"`
	Warnings       []string            `yaml:"warnings,omitempty"`
	Violations     []ViolationDocument `yaml:"violations"`
}

// ViolationDocument describes one reported error.
type ViolationDocument struct {
	File               string `yaml:"file"`
	Block              string `yaml:"block"`
	Kind               string `yaml:"kind"`
	StartLine          int    `yaml:"start_line"`
	EndLine            int    `yaml:"end_line"`
	ExecutableLines    int    `yaml:"executable_lines"`
	CoveredLines       int    `yaml:"covered_lines"`
	CoveragePercentage int    `yaml:"coverage_percentage"`
	ChangePercentage   *int   `yaml:"change_percentage,omitempty"`
	Message            string `yaml:"message"`
}

// NewReportDocument converts a report. Change percentages are only set in
// patch mode.
func NewReportDocument(report CoverageReport) ReportDocument {
	doc := ReportDocument{
		PatchMode:      report.PatchMode,
		ElapsedSeconds: report.ElapsedTime.Seconds(),
		AnalysedFiles:  append([]string{}, report.AnalysedFiles...),
		Warnings:       report.Warnings,
		Violations:     make([]ViolationDocument, 0, len(report.ReportedErrors)),
	}

	sort.Strings(doc.AnalysedFiles)

	for _, reported := range report.ReportedErrors {
		block := reported.Block

		violation := ViolationDocument{
			File:               block.FilePath,
			Block:              block.Name(),
			Kind:               string(block.Kind),
			StartLine:          block.StartLine(),
			EndLine:            block.EndLine(),
			ExecutableLines:    block.ExecutableLinesCount(),
			CoveredLines:       block.CoveredLinesCount(),
			CoveragePercentage: block.CoveragePercentage(),
			Message:            reported.Error.Message,
		}

		if report.PatchMode {
			change := block.ChangePercentage()
			violation.ChangePercentage = &change
		}

		doc.Violations = append(doc.Violations, violation)
	}

	return doc
}
