package coverage

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	m "github.com/mouse-blink/coverguard/internal/model"
)

const coberturaHeader = xml.Header +
	`<!DOCTYPE coverage SYSTEM "http://cobertura.sourceforge.net/xml/coverage-04.dtd">` + "\n"

type coberturaCoverage struct {
	XMLName         xml.Name           `xml:"coverage"`
	LineRate        string             `xml:"line-rate,attr"`
	BranchRate      string             `xml:"branch-rate,attr"`
	LinesCovered    int                `xml:"lines-covered,attr"`
	LinesValid      int                `xml:"lines-valid,attr"`
	BranchesCovered int                `xml:"branches-covered,attr"`
	BranchesValid   int                `xml:"branches-valid,attr"`
	Complexity      string             `xml:"complexity,attr"`
	Version         string             `xml:"version,attr"`
	Timestamp       string             `xml:"timestamp,attr"`
	Sources         []string           `xml:"sources>source"`
	Packages        []coberturaPackage `xml:"packages>package"`
}

type coberturaPackage struct {
	Name       string           `xml:"name,attr"`
	LineRate   string           `xml:"line-rate,attr"`
	BranchRate string           `xml:"branch-rate,attr"`
	Complexity string           `xml:"complexity,attr"`
	Classes    []coberturaClass `xml:"classes>class"`
}

type coberturaClass struct {
	Name       string           `xml:"name,attr"`
	Filename   string           `xml:"filename,attr"`
	LineRate   string           `xml:"line-rate,attr"`
	BranchRate string           `xml:"branch-rate,attr"`
	Complexity string           `xml:"complexity,attr"`
	Methods    coberturaMethods `xml:"methods"`
	Lines      []coberturaLine  `xml:"lines>line"`
}

// coberturaMethods is always empty; the DTD requires the element.
type coberturaMethods struct{}

type coberturaLine struct {
	Number int    `xml:"number,attr"`
	Hits   int    `xml:"hits,attr"`
	Branch string `xml:"branch,attr,omitempty"`
}

// CoberturaExtractor reads Cobertura XML reports. Class file names are
// resolved against the first <source> directory unless already absolute.
type CoberturaExtractor struct {
	paths pathMapper
}

// NewCoberturaExtractor constructs a CoberturaExtractor.
func NewCoberturaExtractor(mappings []m.PathMapping) *CoberturaExtractor {
	return &CoberturaExtractor{paths: mappings}
}

// Extract implements Extractor.
func (e *CoberturaExtractor) Extract(ctx context.Context, reportPath string) ([]m.FileCoverage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content, err := readReport(reportPath)
	if err != nil {
		return nil, err
	}

	var doc coberturaCoverage
	if err := xml.Unmarshal(content, &doc); err != nil {
		slog.Error("Failed to parse Cobertura report", "path", reportPath, "error", err)
		return nil, m.Errorf(m.ErrFormat, "parse Cobertura report %s: %v", reportPath, err)
	}

	source := ""
	if len(doc.Sources) > 0 {
		source = strings.TrimSpace(doc.Sources[0])
	}

	set := newFileSet()

	for _, pkg := range doc.Packages {
		for _, class := range pkg.Classes {
			if class.Filename == "" {
				return nil, m.Errorf(m.ErrFormat, "parse Cobertura report %s: class %q has no filename", reportPath, class.Name)
			}

			lines := set.file(e.paths.apply(resolveClassFile(source, class.Filename)))

			for _, line := range class.Lines {
				if line.Number < 1 {
					return nil, m.Errorf(m.ErrFormat, "parse Cobertura report %s: %s has invalid line number %d", reportPath, class.Filename, line.Number)
				}

				lines[line.Number] = line.Hits
			}
		}
	}

	files := set.result()
	slog.Debug("Extracted Cobertura coverage", "path", reportPath, "files", len(files))

	return files, nil
}

func resolveClassFile(source, filename string) string {
	if source == "" || filepath.IsAbs(filename) || strings.HasPrefix(filename, "/") {
		return filename
	}

	return strings.TrimSuffix(source, "/") + "/" + filename
}

// CoberturaWriter renders coverage sets as Cobertura XML. Files are grouped
// into packages by basename, so unrelated files sharing a name end up in the
// same package.
type CoberturaWriter struct {
	now func() time.Time
}

// NewCoberturaWriter constructs a CoberturaWriter; now supplies the
// generation timestamp and defaults to time.Now.
func NewCoberturaWriter(now func() time.Time) *CoberturaWriter {
	if now == nil {
		now = time.Now
	}

	return &CoberturaWriter{now: now}
}

type rateCounter struct {
	covered int
	valid   int
}

func (c *rateCounter) add(file m.FileCoverage) {
	c.covered += file.CoveredLinesCount()
	c.valid += len(file.ExecutableLines)
}

func (c rateCounter) rate() string {
	return LineRate(c.covered, c.valid)
}

// LineRate formats covered/valid with the fixed 14 decimals Cobertura uses.
func LineRate(covered, valid int) string {
	if valid == 0 {
		return fmt.Sprintf("%.14f", 0.0)
	}

	return fmt.Sprintf("%.14f", float64(covered)/float64(valid))
}

// Write implements Writer.
func (w *CoberturaWriter) Write(files []m.FileCoverage, indent string) (string, error) {
	source := commonDir(files)

	var total rateCounter

	packages := make(map[string][]m.FileCoverage)
	for _, file := range files {
		name := path.Base(filepath.ToSlash(file.FilePath))
		packages[name] = append(packages[name], file)
		total.add(file)
	}

	names := make([]string, 0, len(packages))
	for name := range packages {
		names = append(names, name)
	}

	sort.Strings(names)

	doc := coberturaCoverage{
		LineRate:     total.rate(),
		BranchRate:   "0",
		LinesCovered: total.covered,
		LinesValid:   total.valid,
		Complexity:   "0",
		Version:      "0.4",
		Timestamp:    fmt.Sprintf("%d", w.now().Unix()),
		Sources:      []string{source},
	}

	for _, name := range names {
		var pkgRate rateCounter

		pkg := coberturaPackage{Name: name, BranchRate: "0", Complexity: "0"}

		for _, file := range packages[name] {
			pkgRate.add(file)
			pkg.Classes = append(pkg.Classes, w.class(source, file))
		}

		pkg.LineRate = pkgRate.rate()
		doc.Packages = append(doc.Packages, pkg)
	}

	body, err := xml.MarshalIndent(doc, "", canonicalIndent)
	if err != nil {
		return "", fmt.Errorf("marshal Cobertura report: %w", err)
	}

	return finishDocument(coberturaHeader, body, indent, "line", "methods"), nil
}

func (w *CoberturaWriter) class(source string, file m.FileCoverage) coberturaClass {
	var rate rateCounter

	rate.add(file)

	filename := relativeTo(source, filepath.ToSlash(file.FilePath))

	class := coberturaClass{
		Name:       strings.ReplaceAll(strings.TrimSuffix(filename, path.Ext(filename)), "/", `\`),
		Filename:   filename,
		LineRate:   rate.rate(),
		BranchRate: "0",
		Complexity: "0",
	}

	for _, line := range file.ExecutableLines {
		class.Lines = append(class.Lines, coberturaLine{Number: line.Number, Hits: line.Hits, Branch: "false"})
	}

	return class
}

// commonDir returns the deepest directory containing every file, "" when
// the paths share none.
func commonDir(files []m.FileCoverage) string {
	var common []string

	for i, file := range files {
		dir := strings.Split(path.Dir(filepath.ToSlash(file.FilePath)), "/")
		if i == 0 {
			common = dir
			continue
		}

		n := 0
		for n < len(common) && n < len(dir) && common[n] == dir[n] {
			n++
		}

		common = common[:n]
	}

	switch {
	case len(common) == 0:
		return ""
	case len(common) == 1 && common[0] == "":
		return "/"
	case len(common) == 1 && common[0] == ".":
		return ""
	default:
		return strings.Join(common, "/")
	}
}

func relativeTo(source, file string) string {
	switch {
	case source == "":
		return file
	case source == "/":
		return strings.TrimPrefix(file, "/")
	default:
		return strings.TrimPrefix(file, source+"/")
	}
}
