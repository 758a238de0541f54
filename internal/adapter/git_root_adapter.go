package adapter

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"

	m "github.com/mouse-blink/coverguard/internal/model"
)

// GitRootAdapter locates the top-level directory of the git working tree
// patches are resolved against.
type GitRootAdapter interface {
	// Resolve returns override when set, otherwise the working tree root
	// containing startDir.
	Resolve(ctx context.Context, override, startDir string) (string, error)
}

// LocalGitRootAdapter discovers the repository with go-git and falls back to
// `git rev-parse --show-toplevel` for layouts go-git cannot open, such as
// worktrees with a detached .git file.
type LocalGitRootAdapter struct {
	timeout   time.Duration
	gitBinary string
}

// NewLocalGitRootAdapter constructs a LocalGitRootAdapter with default 10s timeout.
func NewLocalGitRootAdapter() *LocalGitRootAdapter {
	return &LocalGitRootAdapter{
		timeout:   10 * time.Second,
		gitBinary: "git",
	}
}

// Resolve implements GitRootAdapter.
func (a *LocalGitRootAdapter) Resolve(ctx context.Context, override, startDir string) (string, error) {
	if override != "" {
		return a.checkOverride(override)
	}

	root, err := a.discover(startDir)
	if err == nil {
		return root, nil
	}

	slog.Debug("go-git repository discovery failed, asking git", "startDir", startDir, "error", err)

	root, err = a.revParse(ctx, startDir)
	if err != nil {
		slog.Error("Failed to determine git root", "startDir", startDir, "error", err)

		return "", m.Errorf(m.ErrUsage,
			"cannot determine the git root from %s (set git_root or pass --git-root): %v", startDir, err)
	}

	return root, nil
}

func (a *LocalGitRootAdapter) checkOverride(override string) (string, error) {
	abs, err := filepath.Abs(override)
	if err != nil {
		return "", m.Errorf(m.ErrConfiguration, "git root %s: %v", override, err)
	}

	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", m.Errorf(m.ErrConfiguration, "git root %s is not a directory", override)
	}

	return abs, nil
}

func (a *LocalGitRootAdapter) discover(startDir string) (string, error) {
	repo, err := git.PlainOpenWithOptions(startDir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("open repository: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("open worktree: %w", err)
	}

	return worktree.Filesystem.Root(), nil
}

func (a *LocalGitRootAdapter) revParse(ctx context.Context, startDir string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	// #nosec G204 - fixed arguments, the binary is configured internally
	cmd := exec.CommandContext(ctx, a.gitBinary, "rev-parse", "--show-toplevel")
	cmd.Dir = startDir

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}

	root := strings.TrimSpace(stdout.String())
	if root == "" {
		return "", fmt.Errorf("git rev-parse printed no path")
	}

	return filepath.FromSlash(root), nil
}
