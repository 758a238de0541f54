package adapter

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	m "github.com/mouse-blink/coverguard/internal/model"
)

func writeTestFile(t *testing.T, path string, content []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}

	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLocalSourceFSAdapter_ReadFile(t *testing.T) {
	adapter := NewLocalSourceFSAdapter()
	root := t.TempDir()

	t.Run("plain utf-8", func(t *testing.T) {
		path := filepath.Join(root, "plain.php")
		writeTestFile(t, path, []byte("<?php\necho 1;\n"))

		got, err := adapter.ReadFile(m.Path(path))
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}

		if string(got) != "<?php\necho 1;\n" {
			t.Fatalf("ReadFile() = %q", got)
		}
	})

	t.Run("utf-8 bom is stripped", func(t *testing.T) {
		path := filepath.Join(root, "bom.php")
		writeTestFile(t, path, append([]byte{0xEF, 0xBB, 0xBF}, []byte("<?php\n")...))

		got, err := adapter.ReadFile(m.Path(path))
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}

		if string(got) != "<?php\n" {
			t.Fatalf("ReadFile() = %q, want BOM removed", got)
		}
	})

	t.Run("utf-16 is decoded", func(t *testing.T) {
		path := filepath.Join(root, "utf16.php")
		writeTestFile(t, path, []byte{0xFF, 0xFE, 'o', 0, 'k', 0})

		got, err := adapter.ReadFile(m.Path(path))
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}

		if string(got) != "ok" {
			t.Fatalf("ReadFile() = %q, want ok", got)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := adapter.ReadFile(m.Path(filepath.Join(root, "none.php")))
		if !errors.Is(err, fs.ErrNotExist) {
			t.Fatalf("ReadFile() error = %v, want not exist", err)
		}
	})
}

func TestSplitLines(t *testing.T) {
	tests := map[string][]string{
		"":             {},
		"a":            {"a"},
		"a\n":          {"a"},
		"a\nb":         {"a", "b"},
		"a\r\nb\r\n":   {"a\r", "b\r"},
		"a\n\n":        {"a", ""},
		"\n":           {""},
		"<?php\n\n}\n": {"<?php", "", "}"},
	}

	for in, want := range tests {
		if got := SplitLines(in); !reflect.DeepEqual(got, want) {
			t.Errorf("SplitLines(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLocalSourceFSAdapter_WriteFileCreatesParents(t *testing.T) {
	adapter := NewLocalSourceFSAdapter()
	path := filepath.Join(t.TempDir(), "out", "nested", "merged.xml")

	if err := adapter.WriteFile(m.Path(path), []byte("<coverage/>"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	lines, err := adapter.ReadLines(m.Path(path))
	if err != nil {
		t.Fatalf("ReadLines() error = %v", err)
	}

	if !reflect.DeepEqual(lines, []string{"<coverage/>"}) {
		t.Fatalf("ReadLines() = %q", lines)
	}
}

func TestLocalSourceFSAdapter_RelPath(t *testing.T) {
	adapter := NewLocalSourceFSAdapter()

	rel, err := adapter.RelPath("/repo", "/repo/src/Foo.php")
	if err != nil {
		t.Fatalf("RelPath() error = %v", err)
	}

	if rel != m.Path(filepath.Join("src", "Foo.php")) {
		t.Fatalf("RelPath() = %s", rel)
	}
}
