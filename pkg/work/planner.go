package work

import (
	"crypto/sha256"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fulmenhq/pyneat/pkg/ignore"
	"github.com/fulmenhq/pyneat/pkg/logger"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ContentTypePython and ContentTypeNotebook are the two source kinds the
// planner admits. Everything else is filtered out during discovery.
const (
	ContentTypePython   = "python"
	ContentTypeNotebook = "notebook"
)

// flaggedMarkers are artifact names that should never appear in a clean
// repository. Paths under them are excluded from analysis and surfaced as
// hygiene findings instead.
var flaggedMarkers = map[string]bool{
	"__pycache__":        true,
	".ipynb_checkpoints": true,
	".DS_Store":          true,
}

// WorkItem represents a single file to be analyzed
type WorkItem struct {
	ID           string `json:"id"`
	Path         string `json:"path"` // relative to the target root, forward slashes
	AbsolutePath string `json:"absolute_path"`
	ContentType  string `json:"content_type"`
	Size         int64  `json:"size"`
}

// WorkGroup represents a logical grouping of work items
type WorkGroup struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	WorkItemIDs []string `json:"work_item_ids"`
}

// Plan summarizes a discovery pass over the target
type Plan struct {
	Target         string    `json:"target"`
	Timestamp      time.Time `json:"timestamp"`
	TotalFiles     int       `json:"total_files"`
	FilteredFiles  int       `json:"filtered_files"`
	RedundantPaths []string  `json:"redundant_paths,omitempty"`
}

// WorkManifest represents the complete discovery result. WorkItems are in
// discovery order, which is deterministic for a given tree.
type WorkManifest struct {
	Plan             Plan        `json:"plan"`
	WorkItems        []WorkItem  `json:"work_items"`
	Groups           []WorkGroup `json:"groups"`
	FlaggedArtifacts []string    `json:"flagged_artifacts,omitempty"`
}

// PlannerConfig configures the work planner
type PlannerConfig struct {
	Target          string   // repository root
	Paths           []string // explicit files or directories under the target; empty means the whole tree
	IncludePatterns []string // doublestar globs matched against root-relative paths
	ExcludePatterns []string
	MaxDepth        int
	ContentTypes    []string // subset of {python, notebook}; empty admits both
	NoIgnore        bool     // disable .pyneatignore/.gitignore matching entirely
	Verbose         bool     // log skipped files
}

// Planner handles source discovery and manifest generation
type Planner struct {
	config        PlannerConfig
	targetAbs     string
	ignoreMatcher *ignore.Matcher
}

// NewPlanner creates a new work planner rooted at config.Target.
func NewPlanner(config PlannerConfig) (*Planner, error) {
	targetAbs, err := filepath.Abs(config.Target)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve target %s: %w", config.Target, err)
	}

	planner := &Planner{config: config, targetAbs: targetAbs}

	if config.NoIgnore {
		planner.ignoreMatcher = nil
	} else if matcher, err := ignore.NewMatcher(targetAbs); err != nil {
		logger.Warn(fmt.Sprintf("Failed to initialize ignore matcher: %v", err))
		planner.ignoreMatcher = nil
	} else {
		planner.ignoreMatcher = matcher
	}

	return planner, nil
}

// GenerateManifest discovers eligible sources and produces a work manifest
func (p *Planner) GenerateManifest() (*WorkManifest, error) {
	logger.Debug(fmt.Sprintf("Starting source discovery under %s", p.targetAbs))

	allFiles, flagged, err := p.discoverFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}

	filteredFiles, redundantPaths := p.eliminateRedundancies(allFiles)

	workItems, err := p.createWorkItems(filteredFiles)
	if err != nil {
		return nil, err
	}

	groups := p.createGroups(workItems)

	plan := Plan{
		Target:         p.targetAbs,
		Timestamp:      time.Now(),
		TotalFiles:     len(allFiles),
		FilteredFiles:  len(filteredFiles),
		RedundantPaths: redundantPaths,
	}

	manifest := &WorkManifest{
		Plan:             plan,
		WorkItems:        workItems,
		Groups:           groups,
		FlaggedArtifacts: flagged,
	}

	logger.Debug(fmt.Sprintf("Discovered %d work items in %d groups (%d flagged artifacts)", len(workItems), len(groups), len(flagged)))
	return manifest, nil
}

// discoverFiles walks the requested paths and returns eligible file paths in
// discovery order, plus any flagged artifacts encountered.
func (p *Planner) discoverFiles() ([]string, []string, error) {
	roots := p.config.Paths
	if len(roots) == 0 {
		roots = []string{p.targetAbs}
	}

	var allFiles []string
	var flagged []string
	flaggedSeen := make(map[string]bool)

	noteFlagged := func(path string) {
		rel := p.relPath(path)
		if !flaggedSeen[rel] {
			flaggedSeen[rel] = true
			flagged = append(flagged, rel)
		}
	}

	for _, root := range roots {
		base := root
		if !filepath.IsAbs(base) {
			base = filepath.Join(p.targetAbs, base)
		}

		info, err := os.Stat(base)
		if err != nil {
			if os.IsNotExist(err) {
				logger.Warn(fmt.Sprintf("Skipping missing path %s", base))
				continue
			}
			return nil, nil, err
		}

		if !info.IsDir() {
			if flaggedMarkers[filepath.Base(base)] {
				noteFlagged(base)
				continue
			}
			if p.shouldIncludeFile(base) {
				allFiles = append(allFiles, base)
			}
			continue
		}

		err = filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				// Entries can vanish mid-walk; that is not an audit failure
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}

			if d.IsDir() {
				if flaggedMarkers[d.Name()] {
					noteFlagged(path)
					return filepath.SkipDir
				}
				if p.ignoreMatcher != nil && path != base && p.ignoreMatcher.IsIgnoredDir(path) {
					if p.config.Verbose {
						logger.Debug(fmt.Sprintf("Skipping directory %s: matches ignore pattern", path))
					}
					return filepath.SkipDir
				}
				if p.config.MaxDepth > 0 {
					relPath, err := filepath.Rel(base, path)
					if err != nil {
						return err
					}
					depth := strings.Count(relPath, string(filepath.Separator))
					if depth > p.config.MaxDepth {
						return filepath.SkipDir
					}
				}
				return nil
			}

			if flaggedMarkers[d.Name()] {
				noteFlagged(path)
				return nil
			}

			if p.shouldIncludeFile(path) {
				allFiles = append(allFiles, path)
			}

			return nil
		})

		if err != nil {
			return nil, nil, err
		}
	}

	return allFiles, flagged, nil
}

// shouldIncludeFile applies the ignore, content-type, and pattern filters
// in that order.
func (p *Planner) shouldIncludeFile(path string) bool {
	rel := p.relPath(path)

	if !p.config.NoIgnore && p.ignoreMatcher != nil && p.ignoreMatcher.IsIgnored(path) {
		p.skip(rel, "matches ignore pattern")
		return false
	}

	// Only Python scripts and notebooks are auditable
	contentType := ContentTypeForName(filepath.Base(path))
	if contentType == "" {
		p.skip(rel, "not an auditable source")
		return false
	}
	if len(p.config.ContentTypes) > 0 && !slices.Contains(p.config.ContentTypes, contentType) {
		p.skip(rel, fmt.Sprintf("content type %s filtered out", contentType))
		return false
	}

	if len(p.config.IncludePatterns) > 0 && !matchesAny(p.config.IncludePatterns, rel) {
		p.skip(rel, "does not match include patterns")
		return false
	}
	if matchesAny(p.config.ExcludePatterns, rel) {
		p.skip(rel, "matches an exclude pattern")
		return false
	}

	if p.config.Verbose {
		logger.Debug(fmt.Sprintf("Including %s (type: %s)", rel, contentType))
	}
	return true
}

func (p *Planner) skip(rel, reason string) {
	if p.config.Verbose {
		logger.Debug(fmt.Sprintf("Skipping %s: %s", rel, reason))
	}
}

func matchesAny(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// ContentTypeForName maps a file name to its content type. The extension
// compare is exact: "script.PY" carries no auditable extension, and a name
// without a period is never eligible.
func ContentTypeForName(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return ""
	}
	switch name[idx+1:] {
	case "py":
		return ContentTypePython
	case "ipynb":
		return ContentTypeNotebook
	default:
		return ""
	}
}

// eliminateRedundancies removes redundant paths
func (p *Planner) eliminateRedundancies(files []string) ([]string, []string) {
	// Only remove exact duplicate file paths while preserving order.
	if len(files) <= 1 {
		return files, nil
	}

	var filtered []string
	var redundant []string
	seen := make(map[string]bool, len(files))

	for _, file := range files {
		if !seen[file] {
			filtered = append(filtered, file)
			seen[file] = true
		} else {
			redundant = append(redundant, p.relPath(file))
		}
	}

	return filtered, redundant
}

// createWorkItems creates work items from file paths
func (p *Planner) createWorkItems(files []string) ([]WorkItem, error) {
	var workItems []WorkItem

	for _, file := range files {
		stat, err := os.Stat(file)
		if err != nil {
			// Vanished since discovery; leave it out of the manifest
			logger.Debug(fmt.Sprintf("Skipping file that can't be stat'd: '%s': %v", file, err))
			continue
		}

		rel := p.relPath(file)
		workItems = append(workItems, WorkItem{
			ID:           fmt.Sprintf("%x", sha256.Sum256([]byte(rel))),
			Path:         rel,
			AbsolutePath: file,
			ContentType:  ContentTypeForName(filepath.Base(file)),
			Size:         stat.Size(),
		})
	}

	return workItems, nil
}

// createGroups groups work items by content type
func (p *Planner) createGroups(workItems []WorkItem) []WorkGroup {
	byType := make(map[string][]string)
	for _, item := range workItems {
		byType[item.ContentType] = append(byType[item.ContentType], item.ID)
	}

	c := cases.Title(language.Und)
	var groups []WorkGroup
	for contentType, ids := range byType {
		groups = append(groups, WorkGroup{
			ID:          fmt.Sprintf("content_type_%s", contentType),
			Name:        fmt.Sprintf("%s Files", c.String(contentType)),
			WorkItemIDs: ids,
		})
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups
}

// relPath rewrites an absolute path relative to the target root with forward
// slashes. Paths outside the root are returned as-is.
func (p *Planner) relPath(path string) string {
	if !filepath.IsAbs(path) {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(p.targetAbs, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
