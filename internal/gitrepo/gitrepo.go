// Package gitrepo is the version-control collaborator: branch lookup,
// remote branch enumeration, commit-dated file sets, clone and
// reachability checks. go-git serves repository access; the git
// executable enriches ahead/behind counts where go-git has no cheap
// equivalent.
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/fulmenhq/pyneat/pkg/logger"
)

// ErrRepositoryUnresolvable reports a target that is not a valid,
// accessible repository. It is the only fatal condition in a run.
var ErrRepositoryUnresolvable = errors.New("target is not a valid git repository")

// Repository wraps one resolved local working tree.
type Repository struct {
	root string
	repo *git.Repository
}

// Resolve opens the repository containing target, searching parent
// directories the way git itself does.
func Resolve(target string) (*Repository, error) {
	repo, err := git.PlainOpenWithOptions(target, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRepositoryUnresolvable, target)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("%w: %s has no working tree", ErrRepositoryUnresolvable, target)
	}
	return &Repository{root: wt.Filesystem.Root(), repo: repo}, nil
}

// Root returns the working tree root.
func (r *Repository) Root() string {
	return r.root
}

// CurrentBranch returns the short name of the checked-out branch.
func (r *Repository) CurrentBranch() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolving HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return "", fmt.Errorf("HEAD is detached at %s", head.Hash().String()[:8])
	}
	return head.Name().Short(), nil
}

// Checkout switches the working tree to the named branch. A branch that
// exists only on origin gets a local branch created from it.
func (r *Repository) Checkout(branch string) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return err
	}
	local := plumbing.NewBranchReferenceName(branch)
	if _, err := r.repo.Reference(local, true); err == nil {
		return wt.Checkout(&git.CheckoutOptions{Branch: local})
	}
	remote := plumbing.NewRemoteReferenceName("origin", branch)
	ref, err := r.repo.Reference(remote, true)
	if err != nil {
		return fmt.Errorf("branch %q not found locally or on origin", branch)
	}
	return wt.Checkout(&git.CheckoutOptions{Hash: ref.Hash(), Branch: local, Create: true})
}

// BranchInfo describes one remote branch relative to the mainline.
type BranchInfo struct {
	Name   string `json:"name"`   // remote-qualified, e.g. origin/feature
	Ahead  int    `json:"ahead"`  // commits on the branch the mainline lacks
	Behind int    `json:"behind"` // commits on the mainline the branch lacks
}

// ListRemoteBranches enumerates origin's branches with ahead/behind
// counts against mainline (e.g. "origin/main"). The remote's symbolic
// HEAD is skipped; a branch whose counts cannot be computed is dropped
// with a warning.
func (r *Repository) ListRemoteBranches(mainline string) ([]BranchInfo, error) {
	if _, err := exec.LookPath("git"); err != nil {
		return nil, errors.New("the git executable is required for ahead/behind counts")
	}
	iter, err := r.repo.References()
	if err != nil {
		return nil, err
	}
	var branches []BranchInfo
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name()
		if !name.IsRemote() || ref.Type() == plumbing.SymbolicReference {
			return nil
		}
		short := name.Short()
		if strings.HasSuffix(short, "/HEAD") {
			return nil
		}
		counts, err := runGit(r.root, "rev-list", "--left-right", "--count", mainline+"..."+short)
		if err != nil {
			logger.Warn(fmt.Sprintf("counting %s against %s failed: %v", short, mainline, err))
			return nil
		}
		behind, ahead, ok := parseLeftRight(counts)
		if !ok {
			logger.Warn(fmt.Sprintf("unexpected rev-list output for %s: %q", short, counts))
			return nil
		}
		branches = append(branches, BranchInfo{Name: short, Ahead: ahead, Behind: behind})
		return nil
	})
	return branches, err
}

// NonStandardBranches returns the short names of branches outside the
// whitelist, in input order.
func NonStandardBranches(branches []BranchInfo, whitelist []string) []string {
	allowed := make(map[string]bool, len(whitelist))
	for _, name := range whitelist {
		allowed[name] = true
	}
	var rogue []string
	for _, b := range branches {
		short := b.Name
		if idx := strings.LastIndex(short, "/"); idx >= 0 {
			short = short[idx+1:]
		}
		if !allowed[short] {
			rogue = append(rogue, short)
		}
	}
	return rogue
}

// FilesChangedSince returns root-relative paths touched by commits
// dated after since, walking history newest first with first-seen
// deduplication.
func (r *Repository) FilesChangedSince(since time.Time) ([]string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolving HEAD: %w", err)
	}
	iter, err := r.repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var files []string
	seen := make(map[string]bool)
	err = iter.ForEach(func(c *object.Commit) error {
		if !c.Committer.When.After(since) {
			return nil
		}
		stats, err := c.Stats()
		if err != nil {
			// Stats can fail on exotic merges; those commits are skipped.
			return nil
		}
		for _, st := range stats {
			if !seen[st.Name] {
				seen[st.Name] = true
				files = append(files, st.Name)
			}
		}
		return nil
	})
	return files, err
}

// CloneOrFetch clones url into dir, or fetches when the repository is
// already there. With an empty dir a temporary directory is created.
// The repository lands in <dir>/<name> where name is the URL's last
// segment without any .git suffix; the path is returned.
func CloneOrFetch(ctx context.Context, url, dir string) (string, error) {
	if url == "" {
		return "", errors.New("repository URL must be provided")
	}
	if dir == "" {
		tmp, err := os.MkdirTemp("", "pyneat-clone-")
		if err != nil {
			return "", err
		}
		dir = tmp
	} else if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", err
	}

	name := strings.TrimSuffix(path.Base(strings.TrimRight(url, "/")), ".git")
	target := filepath.Join(dir, name)

	if _, err := os.Stat(target); err == nil {
		logger.Info(fmt.Sprintf("%s already exists, fetching instead of cloning", target))
		repo, err := git.PlainOpen(target)
		if err != nil {
			return "", fmt.Errorf("opening existing clone: %w", err)
		}
		err = repo.FetchContext(ctx, &git.FetchOptions{RemoteName: "origin"})
		if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return "", fmt.Errorf("fetching %s: %w", url, err)
		}
		return target, nil
	}

	logger.Info(fmt.Sprintf("cloning %s into %s", url, target))
	if _, err := git.PlainCloneContext(ctx, target, false, &git.CloneOptions{URL: url}); err != nil {
		return "", fmt.Errorf("cloning %s: %w", url, err)
	}
	return target, nil
}

// IsRemoteRepo reports whether url answers as a git repository. The
// check lists remote references in memory and transfers no objects.
func IsRemoteRepo(ctx context.Context, url string) bool {
	remote := git.NewRemote(memory.NewStorage(), &config.RemoteConfig{
		Name: "origin",
		URLs: []string{url},
	})
	_, err := remote.ListContext(ctx, &git.ListOptions{})
	if err != nil {
		logger.Debug(fmt.Sprintf("%s is not reachable as a repository: %v", url, err))
		return false
	}
	return true
}

func runGit(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	return strings.TrimSpace(string(out)), err
}

// parseLeftRight parses rev-list --left-right --count output "L\tR":
// L commits only on the mainline, R commits only on the branch.
func parseLeftRight(s string) (behind, ahead int, ok bool) {
	parts := strings.Fields(s)
	if len(parts) != 2 {
		return 0, 0, false
	}
	b, err1 := strconv.Atoi(parts[0])
	a, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return b, a, true
}
