package coverage

import (
	"strings"
	"time"

	m "github.com/mouse-blink/coverguard/internal/model"
)

// canonicalIndent is the unit documents are generated with before being
// re-indented with the caller's unit.
const canonicalIndent = "  "

// Writer serializes coverage sets into a report document.
type Writer interface {
	Write(files []m.FileCoverage, indent string) (string, error)
}

// NewWriter returns the writer for format. Native snapshots are read-only.
func NewWriter(format Format, now func() time.Time) (Writer, error) {
	switch format {
	case FormatClover:
		return NewCloverWriter(now), nil
	case FormatCobertura:
		return NewCoberturaWriter(now), nil
	case FormatNative:
		return nil, m.Errorf(m.ErrUsage, "native coverage snapshots cannot be written, use clover or cobertura")
	default:
		return nil, m.Errorf(m.ErrUsage, "unknown coverage format %q", format)
	}
}

// finishDocument prepends header to a marshalled body, collapses the empty
// elements named in selfClosing and re-indents the result.
func finishDocument(header string, body []byte, indent string, selfClosing ...string) string {
	text := string(body)

	for _, name := range selfClosing {
		text = strings.ReplaceAll(text, "\"></"+name+">", "\"/>")
		text = strings.ReplaceAll(text, "<"+name+"></"+name+">", "<"+name+"/>")
	}

	return NormalizeIndent(header+text, indent) + "\n"
}

// NormalizeIndent rewrites the leading run of canonical two-space units on
// every line into the same number of indent units.
func NormalizeIndent(text, indent string) string {
	if indent == canonicalIndent {
		return text
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		depth := 0
		for strings.HasPrefix(line[depth*len(canonicalIndent):], canonicalIndent) {
			depth++
		}

		if depth > 0 {
			lines[i] = strings.Repeat(indent, depth) + line[depth*len(canonicalIndent):]
		}
	}

	return strings.Join(lines, "\n")
}
