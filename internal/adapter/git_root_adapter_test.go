package adapter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"

	m "github.com/mouse-blink/coverguard/internal/model"
)

func TestLocalGitRootAdapter_Override(t *testing.T) {
	adapter := NewLocalGitRootAdapter()
	dir := t.TempDir()

	root, err := adapter.Resolve(context.Background(), dir, "/does/not/matter")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if root != dir {
		t.Fatalf("Resolve() = %s, want %s", root, dir)
	}

	file := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(file, nil, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := adapter.Resolve(context.Background(), file, dir); !errors.Is(err, m.ErrConfiguration) {
		t.Fatalf("Resolve() error = %v, want configuration error", err)
	}
}

func TestLocalGitRootAdapter_DiscoversDotGit(t *testing.T) {
	root := t.TempDir()
	if _, err := git.PlainInit(root, false); err != nil {
		t.Fatalf("PlainInit() error = %v", err)
	}

	nested := filepath.Join(root, "src", "Domain")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	adapter := NewLocalGitRootAdapter()
	adapter.gitBinary = "coverguard-missing-git"

	got, err := adapter.Resolve(context.Background(), "", nested)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if got != root {
		t.Fatalf("Resolve() = %s, want %s", got, root)
	}
}

func TestLocalGitRootAdapter_Unresolvable(t *testing.T) {
	adapter := NewLocalGitRootAdapter()
	adapter.gitBinary = "coverguard-missing-git"

	dir := t.TempDir()
	if _, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true}); err == nil {
		t.Skip("temporary directory is inside a git repository")
	}

	if _, err := adapter.Resolve(context.Background(), "", dir); !errors.Is(err, m.ErrUsage) {
		t.Fatalf("Resolve() error = %v, want usage error", err)
	}
}
