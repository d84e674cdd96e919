// Ripgrep invocation for repository search.
//
// Information Hiding:
// - Binary location strategy (env override, PATH, well-known paths)
// - Command construction and flag handling
// - Exit code interpretation

package search

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrNotInstalled indicates no usable ripgrep binary was found.
var ErrNotInstalled = errors.New("ripgrep (rg) not found: install it or set RIPGREP_PATH")

const defaultTimeoutSecs = 20

// skipGlobs exclude build output, vendored code, and generated
// artifacts from every search.
var skipGlobs = []string{
	"!**/node_modules/**",
	"!**/vendor/**",
	"!**/dist/**",
	"!**/build/**",
	"!**/target/**",
	"!**/.git/**",
	"!**/*.min.js",
	"!**/*.lock",
	"!**/*.map",
}

// Runner executes ripgrep searches rooted at a repository directory.
type Runner struct {
	root        string
	binary      string
	timeoutSecs uint64
	initErr     error // Stores binary location error for deferred reporting
}

// NewRunner creates a runner for the given repository root. A zero
// timeout selects the default. If no ripgrep binary can be located,
// the error is stored and returned on first use.
func NewRunner(root string, timeoutSecs uint64) *Runner {
	if timeoutSecs == 0 {
		timeoutSecs = defaultTimeoutSecs
	}
	binary, err := locateBinary()
	return &Runner{
		root:        root,
		binary:      binary,
		timeoutSecs: timeoutSecs,
		initErr:     err,
	}
}

// Available reports whether a ripgrep binary was located.
func (r *Runner) Available() error {
	return r.initErr
}

// Root returns the directory searches run in.
func (r *Runner) Root() string {
	return r.root
}

// locateBinary finds rg via RIPGREP_PATH, then PATH, then well-known
// install locations.
func locateBinary() (string, error) {
	if override := os.Getenv("RIPGREP_PATH"); override != "" {
		if info, err := os.Stat(override); err == nil && !info.IsDir() {
			return override, nil
		}
		return "", fmt.Errorf("%w: RIPGREP_PATH=%s is not a file", ErrNotInstalled, override)
	}
	if path, err := exec.LookPath("rg"); err == nil {
		return path, nil
	}
	candidates := []string{
		"/usr/local/bin/rg",
		"/usr/bin/rg",
		"/opt/homebrew/bin/rg",
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".cargo", "bin", "rg"))
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}
	return "", ErrNotInstalled
}

// Options controls a single search invocation.
type Options struct {
	Glob          []string // extra file glob filters
	CaseSensitive bool
	FixedStrings  bool // treat pattern as literal string
	MaxPerFile    int  // per-file matching line cap, 0 means unlimited
	Context       int  // lines of context around matches
}

// Search returns matching lines as "path:line:text" with paths relative
// to the runner root. No matches yields an empty string, not an error.
func (r *Runner) Search(ctx context.Context, pattern string, opts Options) (string, error) {
	if strings.TrimSpace(pattern) == "" {
		return "", fmt.Errorf("pattern cannot be empty")
	}
	if r.initErr != nil {
		return "", r.initErr
	}

	args := []string{"--no-messages", "--color=never", "--line-number", "--with-filename"}
	if !opts.CaseSensitive {
		args = append(args, "-i")
	}
	if opts.FixedStrings {
		args = append(args, "-F")
	}
	if opts.MaxPerFile > 0 {
		args = append(args, "--max-count", strconv.Itoa(opts.MaxPerFile))
	}
	if opts.Context > 0 {
		args = append(args, "-C", strconv.Itoa(opts.Context))
	}
	for _, g := range skipGlobs {
		args = append(args, "-g", g)
	}
	for _, g := range opts.Glob {
		if strings.TrimSpace(g) != "" {
			args = append(args, "-g", g)
		}
	}
	args = append(args, "--", pattern, ".")

	return r.run(ctx, args)
}

// CountMatches returns per-file matching line counts for a literal
// pattern, case-insensitive.
func (r *Runner) CountMatches(ctx context.Context, pattern string) (map[string]int, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("pattern cannot be empty")
	}
	if r.initErr != nil {
		return nil, r.initErr
	}

	args := []string{"--no-messages", "--color=never", "--count", "-i", "-F"}
	for _, g := range skipGlobs {
		args = append(args, "-g", g)
	}
	args = append(args, "--", pattern, ".")

	output, err := r.run(ctx, args)
	if err != nil {
		return nil, err
	}
	return parseCounts(output), nil
}

// run executes rg with the given arguments inside the runner root.
// Exit code 1 (no matches) is success with empty output.
func (r *Runner) run(ctx context.Context, args []string) (string, error) {
	timeout := time.Duration(r.timeoutSecs) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Dir = r.root
	output, err := cmd.CombinedOutput()

	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("rg timed out after %d seconds", r.timeoutSecs)
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			// rg returns exit code 1 when no matches are found
			if exitErr.ExitCode() == 1 {
				return "", nil
			}
			return "", fmt.Errorf("rg failed with exit code %d: %s", exitErr.ExitCode(), strings.TrimSpace(string(output)))
		}
		return "", fmt.Errorf("failed to execute rg: %w", err)
	}

	return string(output), nil
}

// parseCounts parses `rg --count` output lines of the form "path:N".
func parseCounts(output string) map[string]int {
	counts := make(map[string]int)
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		idx := strings.LastIndex(line, ":")
		if idx <= 0 {
			continue
		}
		n, err := strconv.Atoi(line[idx+1:])
		if err != nil {
			continue
		}
		counts[NormalizePath(line[:idx])] = n
	}
	return counts
}

// NormalizePath converts to forward slashes and strips a leading ./ so
// results compare equal to repo-relative paths.
func NormalizePath(p string) string {
	return strings.TrimPrefix(filepath.ToSlash(p), "./")
}
