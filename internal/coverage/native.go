package coverage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	m "github.com/mouse-blink/coverguard/internal/model"
)

const nowdocMarker = "END_OF_COVERAGE_SERIALIZATION"

// NativeExtractor reads php-code-coverage snapshots (.cov files written by
// the PHP report of php-code-coverage 9 and later). Only the line coverage
// table is used; a line's hit count is the number of tests covering it.
type NativeExtractor struct {
	paths pathMapper
}

// NewNativeExtractor constructs a NativeExtractor.
func NewNativeExtractor(mappings []m.PathMapping) *NativeExtractor {
	return &NativeExtractor{paths: mappings}
}

// Extract implements Extractor.
func (e *NativeExtractor) Extract(ctx context.Context, path string) ([]m.FileCoverage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content, err := readReport(path)
	if err != nil {
		return nil, err
	}

	files, err := e.decode(string(content))
	if err != nil {
		slog.Error("Failed to read coverage snapshot", "path", path, "error", err)
		return nil, m.Errorf(m.ErrFormat, "read coverage snapshot %s: %v", path, err)
	}

	slog.Debug("Extracted native coverage", "path", path, "files", len(files))

	return files, nil
}

func (e *NativeExtractor) decode(content string) ([]m.FileCoverage, error) {
	payload, err := snapshotPayload(content)
	if err != nil {
		return nil, err
	}

	root, err := unserialize(payload)
	if err != nil {
		return nil, fmt.Errorf("unserialize: %w", err)
	}

	table, ok := findLineCoverage(root)
	if !ok {
		return nil, errors.New("snapshot carries no lineCoverage data")
	}

	set := newFileSet()

	for _, file := range table.entries {
		name, ok := file.key.(string)
		if !ok {
			return nil, fmt.Errorf("lineCoverage key %v is not a file path", file.key)
		}

		lines, ok := file.value.(*phpArray)
		if !ok {
			return nil, fmt.Errorf("%s: line table has type %T", name, file.value)
		}

		hits := set.file(e.paths.apply(name))

		for _, line := range lines.entries {
			number, ok := line.key.(int64)
			if !ok || number < 1 {
				return nil, fmt.Errorf("%s: invalid line number %v", name, line.key)
			}

			switch tests := line.value.(type) {
			case nil:
			case *phpArray:
				hits[int(number)] = len(tests.entries)
			default:
				return nil, fmt.Errorf("%s:%d: unexpected value of type %T", name, number, line.value)
			}
		}
	}

	return set.result(), nil
}

// snapshotPayload extracts the serialized data from a .cov file, which is
// either a PHP script returning it from a nowdoc or the raw data itself.
func snapshotPayload(content string) (string, error) {
	trimmed := strings.TrimSpace(content)

	if !strings.HasPrefix(trimmed, "<?php") {
		return trimmed, nil
	}

	start := strings.Index(content, "<<<'"+nowdocMarker+"'")
	if start < 0 {
		return "", errors.New("unsupported snapshot: expected php-code-coverage 9 or later")
	}

	body := content[start:]

	newline := strings.IndexByte(body, '\n')
	if newline < 0 {
		return "", errors.New("truncated snapshot")
	}

	body = body[newline+1:]

	end := strings.Index(body, "\n"+nowdocMarker)
	if end < 0 {
		return "", errors.New("unterminated snapshot data")
	}

	return strings.TrimSuffix(body[:end], "\r"), nil
}

// findLineCoverage searches objects and arrays depth-first for the
// lineCoverage table.
func findLineCoverage(value interface{}) (*phpArray, bool) {
	var entries []phpEntry

	switch v := value.(type) {
	case *phpObject:
		entries = v.props
	case *phpArray:
		entries = v.entries
	default:
		return nil, false
	}

	for _, entry := range entries {
		if propertyName(entry.key) == "lineCoverage" {
			if table, ok := entry.value.(*phpArray); ok {
				return table, true
			}
		}
	}

	for _, entry := range entries {
		if table, ok := findLineCoverage(entry.value); ok {
			return table, true
		}
	}

	return nil, false
}
