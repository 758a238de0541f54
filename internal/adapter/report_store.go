package adapter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	m "github.com/mouse-blink/coverguard/internal/model"
)

// ReportStore persists check reports for later processing, e.g. by CI jobs.
type ReportStore interface {
	SaveReport(path m.Path, report m.CoverageReport) error
}

// YAMLReportStore stores reports as YAML documents.
type YAMLReportStore struct{}

// NewReportStore constructs a YAMLReportStore.
func NewReportStore() *YAMLReportStore {
	return &YAMLReportStore{}
}

// SaveReport writes the report document to path, creating parent directories.
func (s *YAMLReportStore) SaveReport(path m.Path, report m.CoverageReport) error {
	data, err := yaml.Marshal(m.NewReportDocument(report))
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(string(path)), 0o750); err != nil {
		slog.Error("Failed to create report directory", "path", path, "error", err)
		return fmt.Errorf("create report directory: %w", err)
	}

	if err := os.WriteFile(string(path), data, 0o600); err != nil {
		slog.Error("Failed to write report", "path", path, "error", err)
		return fmt.Errorf("write report %s: %w", path, err)
	}

	slog.Debug("Saved report", "path", path, "violations", len(report.ReportedErrors))

	return nil
}
