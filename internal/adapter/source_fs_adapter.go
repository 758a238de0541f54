// Package adapter contains the infrastructure adapters coverguard's domain
// layer talks to: the filesystem, the PHP parser and git.
package adapter

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	m "github.com/mouse-blink/coverguard/internal/model"
)

// SourceFSAdapter abstracts filesystem-specific operations that the domain layer
// relies on when reading sources and writing reports. It hides direct `os`
// access so the workflow logic can be tested without touching the disk.
type SourceFSAdapter interface {
	// ReadFile loads a source file, decoding a leading byte order mark.
	ReadFile(path m.Path) ([]byte, error)

	// ReadLines loads a source file split into lines without terminators.
	ReadLines(path m.Path) ([]string, error)

	// FileInfo returns metadata for a path so the domain can check existence or
	// distinguish between files and directories when necessary.
	FileInfo(path m.Path) (os.FileInfo, error)

	// WriteFile writes content to a file with the given permissions.
	WriteFile(path m.Path, content []byte, perm os.FileMode) error

	// RelPath returns the relative path from base to target.
	RelPath(base, target m.Path) (m.Path, error)

	// Getwd returns the current working directory.
	Getwd() (m.Path, error)
}

// LocalSourceFSAdapter is the SourceFSAdapter backed by the local disk.
type LocalSourceFSAdapter struct{}

// NewLocalSourceFSAdapter constructs a LocalSourceFSAdapter instance ready to
// be wired into the workflow.
func NewLocalSourceFSAdapter() *LocalSourceFSAdapter {
	return &LocalSourceFSAdapter{}
}

// ReadFile loads file contents from disk. UTF-8 and UTF-16 byte order marks
// are honoured and removed, anything else is passed through as UTF-8.
func (a *LocalSourceFSAdapter) ReadFile(path m.Path) ([]byte, error) {
	// #nosec G304 - path comes from the coverage report or patch under analysis
	f, err := os.Open(string(path))
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = f.Close()
	}()

	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())

	return io.ReadAll(transform.NewReader(f, decoder))
}

// ReadLines splits the file on "\n". A trailing newline does not start an
// extra line and carriage returns are kept.
func (a *LocalSourceFSAdapter) ReadLines(path m.Path) ([]string, error) {
	content, err := a.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return SplitLines(string(content)), nil
}

// SplitLines splits text the way ReadLines does.
func SplitLines(text string) []string {
	if text == "" {
		return []string{}
	}

	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}

// FileInfo returns os.FileInfo metadata for the given path.
func (a *LocalSourceFSAdapter) FileInfo(path m.Path) (os.FileInfo, error) {
	return os.Stat(string(path))
}

// WriteFile writes content to a file with the given permissions, creating
// missing parent directories.
func (a *LocalSourceFSAdapter) WriteFile(path m.Path, content []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(string(path)), 0o750); err != nil {
		return err
	}

	return os.WriteFile(string(path), content, perm)
}

// RelPath returns the relative path from base to target.
func (a *LocalSourceFSAdapter) RelPath(base, target m.Path) (m.Path, error) {
	rel, err := filepath.Rel(string(base), string(target))
	if err != nil {
		return "", err
	}

	return m.Path(rel), nil
}

// Getwd returns the current working directory.
func (a *LocalSourceFSAdapter) Getwd() (m.Path, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	return m.Path(wd), nil
}
