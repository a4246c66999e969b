package impact

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"gauntlet/internal/logging"
)

// ChangedFiles returns the files touched since baseRef: the committed
// diff against the merge base plus staged and unstaged changes. When
// the root is not a git repository (or git is missing) it returns an
// empty slice so callers fall back to the full-suite schedule.
func ChangedFiles(ctx context.Context, root, baseRef string) ([]string, error) {
	if err := checkGitRepo(ctx, root); err != nil {
		logging.ImpactDebug("Skipping git diff (not a repo or git missing): %v", err)
		return nil, nil
	}
	if baseRef == "" {
		baseRef = "HEAD"
	}

	seen := make(map[string]bool)
	var changed []string
	add := func(path string) {
		path = strings.TrimSpace(path)
		if path == "" || seen[path] {
			return
		}
		seen[path] = true
		changed = append(changed, path)
	}

	// Committed changes relative to the merge base.
	if baseRef != "HEAD" {
		out, err := runGit(ctx, root, "diff", "--name-only", baseRef+"...HEAD")
		if err != nil {
			return nil, fmt.Errorf("git diff against %s failed: %w", baseRef, err)
		}
		for _, line := range splitLines(out) {
			add(line)
		}
	}

	// Staged and unstaged changes, plus untracked files.
	out, err := runGit(ctx, root, "status", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("git status failed: %w", err)
	}
	for _, line := range splitLines(out) {
		if len(line) < 4 {
			continue
		}
		path := strings.TrimSpace(line[3:])
		// Renames show as "old -> new"; the new path is what matters.
		if idx := strings.Index(path, " -> "); idx >= 0 {
			path = path[idx+4:]
		}
		add(path)
	}

	logging.Impact("Git diff vs %s: %d changed files", baseRef, len(changed))
	return changed, nil
}

func checkGitRepo(ctx context.Context, dir string) error {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = dir
	return cmd.Run()
}

func runGit(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	return cmd.Output()
}

func splitLines(out []byte) []string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}
