// Package scanner ranks repository files against a query before any
// agent runs, so each agent starts from a relevance-ordered view of
// the tree instead of a cold repository.
package scanner

import (
	"context"
	"math"
	"path"
	"sort"
	"strings"

	"foray/config"
	"foray/repo"
	"foray/search"
)

// Patterns matching more files than this are too generic to rank on.
const genericFileLimit = 200

// Scoring weights. Match counts contribute log-scaled so one noisy
// file cannot drown out breadth signals.
const (
	matchWeight    = 1.0
	nameBonus      = 2.5
	pathBonus      = 1.5
	patternBonus   = 1.0
	keyFileBonus   = 1.5
	hotDirBonus    = 1.0
	coldDirPenalty = 2.0
	depthBonus     = 0.5
	maxDepthBonus  = 3
	extBonus       = 0.5
	markerFactor   = 1.5
)

const (
	emptyTreeLabel       = "(no matching files)"
	unavailableTreeLabel = "(file scan unavailable)"
)

var keyFilenames = map[string]bool{
	"index": true, "main": true, "config": true, "types": true,
	"schema": true, "routes": true, "app": true, "setup": true,
	"server": true, "core": true,
}

var hotDirs = map[string]bool{
	"src": true, "lib": true, "internal": true, "pkg": true,
	"app": true, "core": true, "server": true, "api": true,
}

var coldDirs = map[string]bool{
	"test": true, "tests": true, "testdata": true, "__tests__": true,
	"vendor": true, "node_modules": true, "fixtures": true,
	"dist": true, "build": true, "target": true,
}

var sourceExts = map[string]bool{
	".go": true, ".js": true, ".jsx": true, ".ts": true, ".tsx": true,
	".py": true, ".rs": true, ".java": true, ".kt": true, ".rb": true,
	".c": true, ".h": true, ".cpp": true, ".hpp": true, ".cs": true,
	".swift": true, ".scala": true, ".php": true, ".ex": true,
}

// Scanner ranks repository files by relevance to a query.
type Scanner struct {
	runner      *search.Runner
	reader      *repo.Reader
	topK        int
	maxSiblings int
}

func New(runner *search.Runner, reader *repo.Reader, cfg config.ScanConfig) *Scanner {
	topK := cfg.TopFiles
	if topK <= 0 {
		topK = 40
	}
	maxSiblings := cfg.MaxSiblings
	if maxSiblings < 0 {
		maxSiblings = 0
	}
	return &Scanner{
		runner:      runner,
		reader:      reader,
		topK:        topK,
		maxSiblings: maxSiblings,
	}
}

// Result is one scan outcome. Tree is always set, even on failure,
// so a prompt can embed it unconditionally.
type Result struct {
	Tree     string
	Files    []string
	Patterns []string
}

type fileStat struct {
	matches  int
	patterns int
}

// Scan never fails: any internal error yields an empty, labeled tree
// so the agent can still work through its search and read tools.
func (s *Scanner) Scan(ctx context.Context, query string, hints []string) Result {
	patterns := BuildPatterns(query, hints)
	res, err := s.scan(ctx, patterns)
	if err != nil {
		return Result{Tree: unavailableTreeLabel, Patterns: patterns}
	}
	return res
}

func (s *Scanner) scan(ctx context.Context, patterns []string) (Result, error) {
	if len(patterns) == 0 {
		return Result{Tree: emptyTreeLabel}, nil
	}

	stats := make(map[string]*fileStat)
	var retained []string
	for _, p := range patterns {
		counts, err := s.runner.CountMatches(ctx, p)
		if err != nil {
			return Result{}, err
		}
		if len(counts) > genericFileLimit {
			continue
		}
		retained = append(retained, p)
		for f, n := range counts {
			st := stats[f]
			if st == nil {
				st = &fileStat{}
				stats[f] = st
			}
			st.matches += n
			st.patterns++
		}
	}
	if len(stats) == 0 {
		return Result{Tree: emptyTreeLabel, Patterns: patterns}, nil
	}

	type scoredFile struct {
		file  string
		score float64
	}
	ranked := make([]scoredFile, 0, len(stats))
	for f, st := range stats {
		ranked = append(ranked, scoredFile{file: f, score: scoreFile(f, st, retained)})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].file < ranked[j].file
	})
	if len(ranked) > s.topK {
		ranked = ranked[:s.topK]
	}

	var sum float64
	for _, r := range ranked {
		sum += r.score
	}
	mean := sum / float64(len(ranked))
	marked := make(map[string]bool, len(ranked))
	files := make([]string, 0, len(ranked))
	inSet := make(map[string]bool, len(ranked))
	for _, r := range ranked {
		if r.score >= markerFactor*mean {
			marked[r.file] = true
		}
		files = append(files, r.file)
		inSet[r.file] = true
	}

	for _, r := range ranked {
		if len(inSet) >= len(ranked)+s.maxSiblings {
			break
		}
		sibs, err := s.reader.SiblingFiles(r.file)
		if err != nil {
			continue
		}
		for _, sib := range sibs {
			if len(inSet) >= len(ranked)+s.maxSiblings {
				break
			}
			if inSet[sib] || siblingExcluded(path.Base(sib)) {
				continue
			}
			inSet[sib] = true
			files = append(files, sib)
		}
	}

	return Result{Tree: renderTree(files, marked), Files: files, Patterns: patterns}, nil
}

// scoreFile weighs one file's match statistics with path heuristics.
func scoreFile(file string, st *fileStat, patterns []string) float64 {
	score := matchWeight * math.Log2(1+float64(st.matches))

	lower := strings.ToLower(file)
	base := path.Base(lower)
	for _, p := range patterns {
		if strings.Contains(base, p) {
			score += nameBonus
		} else if strings.Contains(lower, p) {
			score += pathBonus
		}
	}
	score += patternBonus * float64(st.patterns)

	if keyFilenames[strings.TrimSuffix(base, path.Ext(base))] {
		score += keyFileBonus
	}

	hot, cold := false, false
	dirs := strings.Split(path.Dir(lower), "/")
	for _, d := range dirs {
		if hotDirs[d] {
			hot = true
		}
		if coldDirs[d] {
			cold = true
		}
	}
	if hot {
		score += hotDirBonus
	}
	if cold {
		score -= coldDirPenalty
	}

	if depth := strings.Count(file, "/"); depth < maxDepthBonus {
		score += depthBonus * float64(maxDepthBonus-depth)
	}
	if sourceExts[path.Ext(base)] {
		score += extBonus
	}
	return score
}

// siblingExcluded filters lockfiles, source maps, minified bundles and
// generated code out of sibling pull-in.
func siblingExcluded(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range []string{
		".lock", ".map", ".min.js", ".min.css", ".sum",
		".pb.go", "_generated.go", ".gen.go",
	} {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return lower == "package-lock.json"
}
