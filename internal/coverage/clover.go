package coverage

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	m "github.com/mouse-blink/coverguard/internal/model"
)

type cloverCoverage struct {
	XMLName   xml.Name      `xml:"coverage"`
	Generated int64         `xml:"generated,attr"`
	Project   cloverProject `xml:"project"`
}

type cloverProject struct {
	Timestamp int64        `xml:"timestamp,attr"`
	Files     []cloverFile `xml:"file"`
}

type cloverFile struct {
	Name    string         `xml:"name,attr"`
	Metrics *cloverMetrics `xml:"metrics"`
	Lines   []cloverLine   `xml:"line"`
}

type cloverMetrics struct {
	Loc string `xml:"loc,attr,omitempty"`
}

type cloverLine struct {
	Num   int    `xml:"num,attr"`
	Type  string `xml:"type,attr"`
	Count int    `xml:"count,attr"`
}

// CloverExtractor reads Clover XML reports. Files are collected wherever
// they appear, directly under the project or inside packages.
type CloverExtractor struct {
	paths pathMapper
}

// NewCloverExtractor constructs a CloverExtractor.
func NewCloverExtractor(mappings []m.PathMapping) *CloverExtractor {
	return &CloverExtractor{paths: mappings}
}

// Extract implements Extractor.
func (e *CloverExtractor) Extract(ctx context.Context, path string) ([]m.FileCoverage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := openReport(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	files, err := e.decode(xml.NewDecoder(f))
	if err != nil {
		slog.Error("Failed to parse Clover report", "path", path, "error", err)
		return nil, m.Errorf(m.ErrFormat, "parse Clover report %s: %v", path, err)
	}

	slog.Debug("Extracted Clover coverage", "path", path, "files", len(files))

	return files, nil
}

func (e *CloverExtractor) decode(decoder *xml.Decoder) ([]m.FileCoverage, error) {
	set := newFileSet()
	sawRoot := false

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, err
		}

		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}

		if !sawRoot {
			if start.Name.Local != "coverage" {
				return nil, fmt.Errorf("unexpected root element <%s>", start.Name.Local)
			}

			sawRoot = true

			continue
		}

		if start.Name.Local != "file" {
			continue
		}

		var file cloverFile
		if err := decoder.DecodeElement(&file, &start); err != nil {
			return nil, err
		}

		if err := e.collect(set, file); err != nil {
			return nil, err
		}
	}

	if !sawRoot {
		return nil, errors.New("document has no <coverage> root")
	}

	return set.result(), nil
}

func (e *CloverExtractor) collect(set *fileSet, file cloverFile) error {
	if file.Name == "" {
		return errors.New("<file> without name attribute")
	}

	path := e.paths.apply(file.Name)
	lines := set.file(path)

	for _, line := range file.Lines {
		if line.Type != "stmt" {
			continue
		}

		if line.Num < 1 {
			return fmt.Errorf("%s: invalid line number %d", file.Name, line.Num)
		}

		lines[line.Num] = line.Count
	}

	if file.Metrics != nil && file.Metrics.Loc != "" {
		loc, err := strconv.Atoi(file.Metrics.Loc)
		if err != nil {
			return fmt.Errorf("%s: invalid loc %q", file.Name, file.Metrics.Loc)
		}

		set.setExpected(path, loc)
	}

	return nil
}

// CloverWriter renders coverage sets as Clover XML.
type CloverWriter struct {
	now func() time.Time
}

// NewCloverWriter constructs a CloverWriter; now supplies the generation
// timestamp and defaults to time.Now.
func NewCloverWriter(now func() time.Time) *CloverWriter {
	if now == nil {
		now = time.Now
	}

	return &CloverWriter{now: now}
}

// Write implements Writer.
func (w *CloverWriter) Write(files []m.FileCoverage, indent string) (string, error) {
	generated := w.now().Unix()
	doc := cloverCoverage{
		Generated: generated,
		Project:   cloverProject{Timestamp: generated},
	}

	for _, file := range files {
		out := cloverFile{Name: file.FilePath}
		if file.ExpectedLinesCount != nil {
			out.Metrics = &cloverMetrics{Loc: strconv.Itoa(*file.ExpectedLinesCount)}
		}

		for _, line := range file.ExecutableLines {
			out.Lines = append(out.Lines, cloverLine{Num: line.Number, Type: "stmt", Count: line.Hits})
		}

		doc.Project.Files = append(doc.Project.Files, out)
	}

	body, err := xml.MarshalIndent(doc, "", canonicalIndent)
	if err != nil {
		return "", fmt.Errorf("marshal Clover report: %w", err)
	}

	return finishDocument(xml.Header, body, indent, "line", "metrics"), nil
}
