// Package coverage reads, merges and writes line coverage reports in the
// Clover, Cobertura and php-code-coverage native formats.
package coverage

import (
	"bufio"
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	m "github.com/mouse-blink/coverguard/internal/model"
)

// Format identifies a coverage report format.
type Format string

// Supported formats.
const (
	FormatClover    Format = "clover"
	FormatCobertura Format = "cobertura"
	FormatNative    Format = "native"
)

// coberturaMarker is the DTD location every Cobertura report declares.
const coberturaMarker = "cobertura.sourceforge.net/xml/coverage"

// sniffLimit bounds how much of an XML report is scanned for the marker.
const sniffLimit = 4096

// Extractor reads a coverage report into per-file executable line hits.
type Extractor interface {
	Extract(ctx context.Context, path string) ([]m.FileCoverage, error)
}

// ParseFormat validates a user supplied format name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case FormatClover, FormatCobertura, FormatNative:
		return f, nil
	default:
		return "", m.Errorf(m.ErrUsage, "unknown coverage format %q (expected clover, cobertura or native)", name)
	}
}

// DetectFormat derives the report format from the file extension, sniffing
// XML reports for the Cobertura DTD marker.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cov":
		return FormatNative, nil
	case ".xml":
	default:
		return "", m.Errorf(m.ErrFormat, "cannot detect coverage format of %s: expected a .xml or .cov file", path)
	}

	f, err := openReport(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	head := make([]byte, sniffLimit)

	n, err := io.ReadFull(bufio.NewReader(f), head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		slog.Error("Failed to read coverage report", "path", path, "error", err)
		return "", m.Errorf(m.ErrFormat, "read %s: %v", path, err)
	}

	if strings.Contains(string(head[:n]), coberturaMarker) {
		return FormatCobertura, nil
	}

	return FormatClover, nil
}

// NewExtractor returns the extractor for format. Paths found in the report
// are rewritten with the first matching mapping.
func NewExtractor(format Format, mappings []m.PathMapping) (Extractor, error) {
	switch format {
	case FormatClover:
		return NewCloverExtractor(mappings), nil
	case FormatCobertura:
		return NewCoberturaExtractor(mappings), nil
	case FormatNative:
		return NewNativeExtractor(mappings), nil
	default:
		return nil, m.Errorf(m.ErrUsage, "unknown coverage format %q", format)
	}
}

func openReport(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, m.Errorf(m.ErrInputNotFound, "coverage file %s does not exist", path)
		}

		return nil, m.Errorf(m.ErrInputNotFound, "open coverage file %s: %v", path, err)
	}

	return f, nil
}

func readReport(path string) ([]byte, error) {
	f, err := openReport(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, m.Errorf(m.ErrFormat, "read %s: %v", path, err)
	}

	return content, nil
}

// pathMapper rewrites report paths; the first mapping whose From is a prefix
// of the path wins.
type pathMapper []m.PathMapping

func (pm pathMapper) apply(path string) string {
	for _, mapping := range pm {
		if mapping.From == "" {
			continue
		}

		if rest, ok := strings.CutPrefix(path, mapping.From); ok {
			return mapping.To + rest
		}
	}

	return path
}

// fileSet accumulates line hits per file while a report is read.
type fileSet struct {
	order    []string
	hits     map[string]map[int]int
	expected map[string]*int
}

func newFileSet() *fileSet {
	return &fileSet{
		hits:     make(map[string]map[int]int),
		expected: make(map[string]*int),
	}
}

func (s *fileSet) file(path string) map[int]int {
	lines, ok := s.hits[path]
	if !ok {
		lines = make(map[int]int)
		s.hits[path] = lines
		s.order = append(s.order, path)
	}

	return lines
}

func (s *fileSet) setExpected(path string, count int) {
	s.file(path)
	s.expected[path] = &count
}

func (s *fileSet) result() []m.FileCoverage {
	files := make([]m.FileCoverage, 0, len(s.order))
	for _, path := range s.order {
		files = append(files, m.NewFileCoverage(path, s.hits[path], s.expected[path]))
	}

	m.SortFileCoverages(files)

	return files
}
