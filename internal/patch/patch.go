// Package patch extracts the lines a unified diff adds to the working tree
// and verifies that the diff describes the files as they are on disk.
package patch

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	m "github.com/mouse-blink/coverguard/internal/model"
)

// destinationPrefix is the only post-image prefix accepted, as produced by
// git diff without --no-prefix.
const destinationPrefix = "b/"

const utf8BOM = "\ufeff"

// ChangedLines maps absolute file paths to the line numbers a patch adds.
type ChangedLines map[string]map[int]struct{}

// Contains reports whether line of file was added by the patch.
func (c ChangedLines) Contains(file string, line int) bool {
	_, ok := c[file][line]
	return ok
}

// LineReader loads the current lines of a working tree file.
type LineReader interface {
	ReadLines(path m.Path) ([]string, error)
}

// Parser reads unified diffs.
type Parser struct {
	source LineReader
}

// NewParser constructs a Parser verifying diffs against files read by source.
func NewParser(source LineReader) *Parser {
	return &Parser{source: source}
}

// ChangedLines parses patchPath and resolves every changed file against
// gitRoot. Each added line must exist in the working tree with exactly the
// content the patch records.
func (p *Parser) ChangedLines(ctx context.Context, patchPath, gitRoot string) (ChangedLines, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(patchPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, m.Errorf(m.ErrInputNotFound, "patch file %s does not exist", patchPath)
		}

		return nil, m.Errorf(m.ErrInputNotFound, "read patch file %s: %v", patchPath, err)
	}

	if ext := strings.ToLower(filepath.Ext(patchPath)); ext != ".patch" && ext != ".diff" {
		return nil, m.Errorf(m.ErrUsage, "patch file %s must have a .patch or .diff extension", patchPath)
	}

	fileDiffs, err := diff.ParseMultiFileDiff(content)
	if err != nil {
		slog.Error("Failed to parse patch", "patch", patchPath, "error", err)
		return nil, m.Errorf(m.ErrFormat, "parse patch %s: %v", patchPath, err)
	}

	changed := make(ChangedLines)

	for _, fd := range fileDiffs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if fd == nil || fd.NewName == "/dev/null" || len(fd.Hunks) == 0 {
			continue
		}

		if !strings.HasPrefix(fd.NewName, destinationPrefix) {
			return nil, m.Errorf(m.ErrUsage,
				"patch %s: destination %q does not use the %q prefix, create the patch with git diff without --no-prefix",
				patchPath, fd.NewName, destinationPrefix)
		}

		filePath := filepath.Join(gitRoot, filepath.FromSlash(strings.TrimPrefix(fd.NewName, destinationPrefix)))

		added, err := p.addedLines(patchPath, filePath, fd.Hunks)
		if err != nil {
			return nil, err
		}

		if len(added) == 0 {
			continue
		}

		if existing, ok := changed[filePath]; ok {
			for line := range added {
				existing[line] = struct{}{}
			}

			continue
		}

		changed[filePath] = added
	}

	slog.Debug("Parsed patch", "patch", patchPath, "files", len(changed))

	return changed, nil
}

func (p *Parser) addedLines(patchPath, filePath string, hunks []*diff.Hunk) (map[int]struct{}, error) {
	lines, err := p.source.ReadLines(m.Path(filePath))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, m.Errorf(m.ErrInputNotFound, "patch %s references %s, which does not exist", patchPath, filePath)
		}

		return nil, m.Errorf(m.ErrInputNotFound, "patch %s: read %s: %v", patchPath, filePath, err)
	}

	added := make(map[int]struct{})

	for _, hunk := range hunks {
		if hunk == nil {
			continue
		}

		cursor := int(hunk.NewStartLine)

		for _, bodyLine := range bytes.Split(bytes.TrimSuffix(hunk.Body, []byte("\n")), []byte("\n")) {
			if len(bodyLine) == 0 {
				cursor++
				continue
			}

			switch bodyLine[0] {
			case '\\':
			case '-':
			case '+':
				if err := verifyLine(patchPath, filePath, lines, cursor, string(bodyLine[1:])); err != nil {
					return nil, err
				}

				added[cursor] = struct{}{}
				cursor++
			default:
				cursor++
			}
		}
	}

	return added, nil
}

func verifyLine(patchPath, filePath string, lines []string, number int, expected string) error {
	if number < 1 || number > len(lines) {
		return m.Errorf(m.ErrIntegrity,
			"patch %s adds line %d to %s, but the file has %d lines",
			patchPath, number, filePath, len(lines))
	}

	// Sources are read without their byte order mark.
	if number == 1 {
		expected = strings.TrimPrefix(expected, utf8BOM)
	}

	if actual := lines[number-1]; actual != expected {
		return m.Errorf(m.ErrIntegrity,
			"patch %s does not match %s at line %d: patch has %q, file has %q",
			patchPath, filePath, number, expected, actual)
	}

	return nil
}
