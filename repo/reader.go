// Line-indexed file access rooted at a repository directory.
//
// Information Hiding:
// - Path validation and escape prevention
// - Line splitting conventions (trailing newline, CRLF)
// - File size limits

package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// maxFileBytes guards against reading huge files into memory.
const maxFileBytes = 10 << 20

// Reader provides line-indexed access to files under a repository root.
// All paths are repository-relative; absolute and parent-escaping paths
// are rejected.
type Reader struct {
	root string
}

// NewReader creates a reader rooted at the given directory.
func NewReader(root string) *Reader {
	return &Reader{root: root}
}

// Root returns the repository root directory.
func (r *Reader) Root() string {
	return r.root
}

// Resolve validates a repository-relative path and returns its absolute
// location on disk.
func (r *Reader) Resolve(path string) (string, error) {
	cleaned := filepath.Clean(strings.TrimSpace(path))
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("path cannot be empty")
	}
	if filepath.IsAbs(cleaned) || !filepath.IsLocal(cleaned) {
		return "", fmt.Errorf("path must stay inside the repository: %s", path)
	}
	return filepath.Join(r.root, cleaned), nil
}

// Lines reads a whole file split into lines. A trailing newline does
// not produce a final empty line; CR line endings are stripped.
func (r *Reader) Lines(path string) ([]string, error) {
	abs, err := r.Resolve(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("file does not exist: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file metadata: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory: %s", path)
	}
	if info.Size() > maxFileBytes {
		return nil, fmt.Errorf("file too large: %d bytes (max: %d bytes)", info.Size(), maxFileBytes)
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return SplitLines(string(content)), nil
}

// Slice is a bounded window of a file's lines.
type Slice struct {
	Lines      []string // selected lines, in order
	Start      int      // 1-based line number of Lines[0]
	TotalLines int
	Truncated  bool // more lines remain past the window
}

// End returns the 1-based line number of the last line in the slice.
func (s Slice) End() int {
	if len(s.Lines) == 0 {
		return s.Start - 1
	}
	return s.Start + len(s.Lines) - 1
}

// Numbered renders the slice with "N: " line prefixes.
func (s Slice) Numbered() string {
	var b strings.Builder
	for i, line := range s.Lines {
		fmt.Fprintf(&b, "%d: %s\n", s.Start+i, line)
	}
	return b.String()
}

// ReadSlice reads up to maxLines lines starting at startLine (1-based).
// A startLine past the end of the file yields an empty slice, not an
// error.
func (r *Reader) ReadSlice(path string, startLine, maxLines int) (Slice, error) {
	lines, err := r.Lines(path)
	if err != nil {
		return Slice{}, err
	}

	if startLine < 1 {
		startLine = 1
	}
	if maxLines < 1 {
		maxLines = 1
	}

	total := len(lines)
	if startLine > total {
		return Slice{Start: startLine, TotalLines: total}, nil
	}

	end := startLine + maxLines - 1
	if end > total {
		end = total
	}

	return Slice{
		Lines:      lines[startLine-1 : end],
		Start:      startLine,
		TotalLines: total,
		Truncated:  end < total,
	}, nil
}

// SiblingFiles lists regular files in the directory containing path,
// repository-relative and sorted. The path itself is excluded.
func (r *Reader) SiblingFiles(path string) ([]string, error) {
	abs, err := r.Resolve(path)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(abs)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list directory: %w", err)
	}

	relDir := filepath.Dir(filepath.Clean(strings.TrimSpace(path)))
	base := filepath.Base(abs)

	var siblings []string
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == base {
			continue
		}
		rel := entry.Name()
		if relDir != "." {
			rel = filepath.ToSlash(filepath.Join(relDir, entry.Name()))
		}
		siblings = append(siblings, rel)
	}
	sort.Strings(siblings)
	return siblings, nil
}

// SplitLines splits file content into lines, dropping the empty
// element a trailing newline would produce and stripping CR endings.
func SplitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
