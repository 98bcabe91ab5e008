package scanner

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ChangedFiles lists files under root that differ from the baseline
// branch, as absolute paths. With includeStaged set, files staged in the
// index are included as well. The caller degrades to a full scan when this
// returns an error.
func ChangedFiles(ctx context.Context, root, baseline string, includeStaged bool, log *zap.Logger) (map[string]bool, error) {
	changed := make(map[string]bool)

	out, err := gitOutput(ctx, root, "diff", "--name-only", baseline)
	if err != nil {
		return nil, fmt.Errorf("diff against %s: %w", baseline, err)
	}
	addPaths(changed, root, out)

	if includeStaged {
		out, err := gitOutput(ctx, root, "diff", "--name-only", "--cached")
		if err != nil {
			return nil, fmt.Errorf("diff of staged files: %w", err)
		}
		addPaths(changed, root, out)
	}

	log.Debug("incremental mode", zap.String("baseline", baseline), zap.Int("changed", len(changed)))
	return changed, nil
}

func gitOutput(ctx context.Context, root string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
			return "", fmt.Errorf("git %s: %s", strings.Join(args, " "),
				strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return string(out), nil
}

func addPaths(into map[string]bool, root, output string) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		abs, err := filepath.Abs(filepath.Join(root, line))
		if err != nil {
			continue
		}
		into[abs] = true
	}
}

// FilterChanged wraps a walked-file channel, passing through only files in
// the changed set.
func FilterChanged(in <-chan WalkedFile, changed map[string]bool) <-chan WalkedFile {
	out := make(chan WalkedFile, cap(in))
	go func() {
		defer close(out)
		for f := range in {
			abs, err := filepath.Abs(f.Path)
			if err != nil {
				continue
			}
			if changed[abs] {
				out <- f
			}
		}
	}()
	return out
}
