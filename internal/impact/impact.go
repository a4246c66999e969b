// Package impact maps a git diff onto the spec files it affects.
//
// Priorities follow the usual smart-selection tiers: high when the spec
// or its subject changed, medium for same-directory churn, low when only
// global configuration moved.
package impact

import (
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gauntlet/internal/discover"
	"gauntlet/internal/logging"
)

// Priority ranks how directly a change hits a spec.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// rank orders priorities for comparisons; higher wins.
var rank = map[Priority]int{PriorityLow: 1, PriorityMedium: 2, PriorityHigh: 3}

// ImpactedSpec is a spec selected by the diff, with provenance.
type ImpactedSpec struct {
	Spec     discover.SpecFile
	Priority Priority
	Reason   string
	// Changed files that triggered the selection
	Triggers []string
}

// Analyzer computes impacted specs for a set of changed files.
type Analyzer struct {
	// Root of the scanned project, used to read spec imports
	Root string
	// Files whose change impacts every spec at low priority
	GlobalFiles []string
}

// NewAnalyzer returns an analyzer rooted at the project directory.
func NewAnalyzer(root string, globalFiles []string) *Analyzer {
	return &Analyzer{Root: root, GlobalFiles: globalFiles}
}

// Impacted returns each affected spec once, at its highest priority,
// sorted high to low and by path within a tier.
func (a *Analyzer) Impacted(specs []discover.SpecFile, changed []string) []ImpactedSpec {
	if len(changed) == 0 {
		return nil
	}
	timer := logging.StartTimer(logging.CategoryImpact, "Impacted")
	defer timer.Stop()

	changedSet := make(map[string]bool, len(changed))
	for _, c := range changed {
		changedSet[filepath.ToSlash(c)] = true
	}
	globalTouched := a.globalTriggers(changedSet)

	best := make(map[string]*ImpactedSpec, len(specs))
	record := func(spec discover.SpecFile, p Priority, reason string, triggers []string) {
		cur, ok := best[spec.Path]
		if ok && rank[cur.Priority] >= rank[p] {
			return
		}
		best[spec.Path] = &ImpactedSpec{Spec: spec, Priority: p, Reason: reason, Triggers: triggers}
	}

	for _, spec := range specs {
		specStem := subjectStem(spec.Path)
		specDir := path.Dir(spec.Path)
		refs := a.importRefs(spec.Path)

		for c := range changedSet {
			switch {
			case c == spec.Path:
				record(spec, PriorityHigh, "spec file changed", []string{c})
			case stem(c) == specStem && !isSpecPath(c):
				record(spec, PriorityHigh, "source under test changed", []string{c})
			case refs[stem(c)] && !isSpecPath(c):
				record(spec, PriorityHigh, "imported module changed", []string{c})
			case path.Dir(c) == specDir && !isSpecPath(c):
				record(spec, PriorityMedium, "sibling source changed", []string{c})
			case strings.HasPrefix(spec.Path, path.Dir(c)+"/") && path.Dir(c) != "." && !isSpecPath(c):
				record(spec, PriorityMedium, "parent directory changed", []string{c})
			}
		}

		if _, ok := best[spec.Path]; !ok && len(globalTouched) > 0 {
			record(spec, PriorityLow, "global config changed", globalTouched)
		}
	}

	out := make([]ImpactedSpec, 0, len(best))
	for _, is := range best {
		out = append(out, *is)
	}
	sort.Slice(out, func(i, j int) bool {
		if rank[out[i].Priority] != rank[out[j].Priority] {
			return rank[out[i].Priority] > rank[out[j].Priority]
		}
		return out[i].Spec.Path < out[j].Spec.Path
	})

	logging.Impact("%d changed files -> %d impacted specs", len(changed), len(out))
	return out
}

// globalTriggers returns the changed files that count as global.
func (a *Analyzer) globalTriggers(changedSet map[string]bool) []string {
	var hits []string
	for _, g := range a.GlobalFiles {
		for c := range changedSet {
			if c == g || path.Base(c) == g {
				hits = append(hits, c)
			}
		}
	}
	sort.Strings(hits)
	return hits
}

// quoted import specifiers: import x from '...', require('...'), and
// Go import lines all put the module path in quotes.
var importSpecRe = regexp.MustCompile(`['"]([^'"]+)['"]`)

// maxImportScan bounds how much of a spec file is read for import refs.
const maxImportScan = 128 * 1024

// importRefs reads the spec and collects the stems of every quoted
// import specifier. Read failures yield an empty set; impact then
// degrades to path-based matching only.
func (a *Analyzer) importRefs(specPath string) map[string]bool {
	refs := make(map[string]bool)

	f, err := os.Open(filepath.Join(a.Root, filepath.FromSlash(specPath)))
	if err != nil {
		logging.ImpactDebug("cannot read spec %s: %v", specPath, err)
		return refs
	}
	defer f.Close()

	buf := make([]byte, maxImportScan)
	n, _ := f.Read(buf)
	for _, line := range strings.Split(string(buf[:n]), "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.Contains(trimmed, "import") &&
			!strings.Contains(trimmed, "require") &&
			!strings.HasPrefix(trimmed, "\"") {
			continue
		}
		for _, m := range importSpecRe.FindAllStringSubmatch(trimmed, -1) {
			refs[stem(m[1])] = true
		}
	}
	return refs
}

// stem reduces a path to its base name without extension or test
// suffixes, so Button.test.tsx and Button.tsx compare equal.
func stem(p string) string {
	base := path.Base(filepath.ToSlash(p))
	base = strings.TrimSuffix(base, path.Ext(base))
	for _, suffix := range []string{".test", ".spec", ".cy"} {
		base = strings.TrimSuffix(base, suffix)
	}
	base = strings.TrimSuffix(base, "_test")
	return base
}

// subjectStem is the stem of the source a spec exercises.
func subjectStem(specPath string) string {
	return stem(specPath)
}

// isSpecPath reports whether a changed file is itself a test spec.
func isSpecPath(p string) bool {
	lower := strings.ToLower(p)
	return strings.HasSuffix(lower, "_test.go") ||
		strings.Contains(lower, ".test.") ||
		strings.Contains(lower, ".spec.") ||
		strings.Contains(lower, ".cy.")
}
