// Package discover walks a project tree and collects test spec files.
package discover

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"gauntlet/internal/logging"
)

// Kind classifies a spec file by the layer it exercises.
type Kind string

const (
	KindUnit          Kind = "unit"
	KindComponent     Kind = "component"
	KindIntegration   Kind = "integration"
	KindAccessibility Kind = "accessibility"
	KindE2E           Kind = "e2e"
)

// SpecFile is a discovered test spec.
type SpecFile struct {
	// Path relative to the scan root, slash-separated
	Path string
	// Size in bytes
	Size int64
	// Kind from path classification
	Kind Kind
}

// Scanner discovers spec files under a root directory.
type Scanner struct {
	Root     string
	Patterns []string
	Ignore   map[string]bool
}

// NewScanner builds a scanner with the given glob patterns and
// ignored directory names.
func NewScanner(root string, patterns, ignore []string) *Scanner {
	ig := make(map[string]bool, len(ignore))
	for _, name := range ignore {
		ig[name] = true
	}
	return &Scanner{Root: root, Patterns: patterns, Ignore: ig}
}

// Scan walks the tree and returns every file matching a pattern.
// Unreadable entries are skipped with a warning. Directories named in
// Ignore are pruned. Symlinked directories are not followed, so link
// cycles cannot hang the walk.
func (s *Scanner) Scan() ([]SpecFile, error) {
	timer := logging.StartTimer(logging.CategoryDiscover, "Scan")
	defer timer.StopWithInfo()

	for _, p := range s.Patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid glob pattern: %s", p)
		}
	}

	var specs []SpecFile
	err := filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.Get(logging.CategoryDiscover).Warn("skipping %s: %v", path, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != s.Root && s.Ignore[d.Name()] {
				return fs.SkipDir
			}
			return nil
		}
		// WalkDir does not descend into symlinked dirs; symlinked files
		// still show up as non-regular entries and are skipped here.
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(s.Root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if !s.matches(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			logging.Get(logging.CategoryDiscover).Warn("stat failed for %s: %v", rel, err)
			return nil
		}

		specs = append(specs, SpecFile{
			Path: rel,
			Size: info.Size(),
			Kind: Classify(rel),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("spec walk failed: %w", err)
	}

	logging.Discover("Discovered %d spec files under %s", len(specs), s.Root)
	return specs, nil
}

func (s *Scanner) matches(rel string) bool {
	for _, p := range s.Patterns {
		ok, err := doublestar.Match(p, rel)
		if err == nil && ok {
			return true
		}
	}
	return false
}

// Classify derives a spec kind from path substrings. The checks run
// from most to least specific so cypress/e2e/a11y.cy.ts lands on e2e.
func Classify(path string) Kind {
	lower := strings.ToLower(filepath.ToSlash(path))

	switch {
	case strings.Contains(lower, "cypress/") || strings.Contains(lower, "e2e"):
		return KindE2E
	case strings.Contains(lower, "a11y") || strings.Contains(lower, "accessibility"):
		return KindAccessibility
	case strings.Contains(lower, "integration"):
		return KindIntegration
	case strings.Contains(lower, "components/") || strings.Contains(lower, "component"):
		return KindComponent
	default:
		return KindUnit
	}
}
