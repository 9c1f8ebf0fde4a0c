// Copyright © 2018 One Concern

package vcs

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/oneconcern/darkpan/pkg/errors"
	"github.com/oneconcern/darkpan/pkg/vcs/status"
	"go.uber.org/zap"
)

// Repository is a branch-per-stack history with a single working tree
type Repository struct {
	mu          sync.Mutex
	root        string
	repo        *git.Repository
	emailDomain string
	l           *zap.Logger
}

func newRepository(root string, opts []Option) *Repository {
	r := &Repository{
		root:        root,
		emailDomain: defaultEmailDomain,
		l:           zap.NewNop(),
	}
	for _, apply := range opts {
		apply(r)
	}
	r.l = r.l.With(zap.String("history", root))
	return r
}

// Initialize creates a new history store in dir.
//
// It fails with status.ErrAlreadyInitialized when a history exists there already.
func Initialize(dir string, opts ...Option) (*Repository, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating history directory %q: %w", dir, err)
	}
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryAlreadyExists) {
			return nil, status.ErrAlreadyInitialized.WrapMessage("%s", dir)
		}
		return nil, fmt.Errorf("initializing history in %q: %w", dir, err)
	}
	r := newRepository(dir, opts)
	r.repo = repo
	r.l.Info("initialized history")
	return r, nil
}

// Open an existing history store
func Open(dir string, opts ...Option) (*Repository, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, status.ErrNotInitialized.WrapMessage("%s", dir)
		}
		return nil, fmt.Errorf("opening history in %q: %w", dir, err)
	}
	r := newRepository(dir, opts)
	r.repo = repo
	return r, nil
}

// Root of the working tree
func (r *Repository) Root() string {
	return r.root
}

// CreateInitialBranch creates a branch with no ancestry and makes it current.
//
// The working tree and the staging area are emptied: nothing from the previously
// checked out branch is carried over.
func (r *Repository) CreateInitialBranch(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.createInitialBranch(name)
}

func (r *Repository) createInitialBranch(name string) error {
	refName := plumbing.NewBranchReferenceName(name)
	found, err := r.hasReference(refName)
	if err != nil {
		return err
	}
	if found {
		return status.ErrBranchExists.WrapMessage("%q", name)
	}

	if err = r.repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, refName)); err != nil {
		return fmt.Errorf("pointing HEAD to %q: %w", name, err)
	}
	if err = r.repo.Storer.SetIndex(&index.Index{Version: 2}); err != nil {
		return fmt.Errorf("resetting staging area for %q: %w", name, err)
	}
	if err = r.clearWorktree(); err != nil {
		return fmt.Errorf("clearing working tree for %q: %w", name, err)
	}
	r.l.Info("created initial branch", zap.String("branch", name))
	return nil
}

func (r *Repository) clearWorktree() error {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.Name() == git.GitDirName {
			continue
		}
		if err = os.RemoveAll(filepath.Join(r.root, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// ForkBranch creates branch to, pointing at the tip of branch from
func (r *Repository) ForkBranch(from, to string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tip, err := r.tip(from)
	if err != nil {
		return err
	}
	toName := plumbing.NewBranchReferenceName(to)
	found, err := r.hasReference(toName)
	if err != nil {
		return err
	}
	if found {
		return status.ErrBranchExists.WrapMessage("%q", to)
	}
	if err = r.repo.Storer.SetReference(plumbing.NewHashReference(toName, tip)); err != nil {
		return fmt.Errorf("forking %q from %q: %w", to, from, err)
	}
	r.l.Info("forked branch", zap.String("from", from), zap.String("branch", to), zap.Stringer("tip", tip))
	return nil
}

// Checkout switches the working tree to a branch.
//
// With orphan set, a new branch without ancestry is created instead (see CreateInitialBranch).
func (r *Repository) Checkout(branch string, orphan bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if orphan {
		return r.createInitialBranch(branch)
	}

	refName := plumbing.NewBranchReferenceName(branch)
	found, err := r.hasReference(refName)
	if err != nil {
		return err
	}
	if !found {
		return status.ErrBranchNotFound.WrapMessage("%q", branch)
	}

	wt, err := r.repo.Worktree()
	if err != nil {
		return err
	}
	if err = wt.Checkout(&git.CheckoutOptions{Branch: refName}); err != nil {
		if errors.Is(err, git.ErrUnstagedChanges) {
			return status.ErrDirtyWorktree.WrapMessage("checking out %q", branch)
		}
		return fmt.Errorf("checking out %q: %w", branch, err)
	}
	r.l.Debug("checked out branch", zap.String("branch", branch))
	return nil
}

// CurrentBranch is the name of the branch checked out in the working tree
func (r *Repository) CurrentBranch() (string, error) {
	head, err := r.repo.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return "", fmt.Errorf("resolving HEAD: %w", err)
	}
	if head.Type() != plumbing.SymbolicReference {
		return "", fmt.Errorf("detached HEAD at %s", head.Hash())
	}
	return head.Target().Short(), nil
}

func (r *Repository) relPath(file string) (string, error) {
	rel := file
	if filepath.IsAbs(file) {
		var err error
		rel, err = filepath.Rel(r.root, file)
		if err != nil {
			return "", status.ErrInvalidPath.WrapMessage("%q", file)
		}
	}
	rel = path.Clean(filepath.ToSlash(rel))
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") || rel == git.GitDirName || strings.HasPrefix(rel, git.GitDirName+"/") {
		return "", status.ErrInvalidPath.WrapMessage("%q", file)
	}
	return rel, nil
}

// Add stages the current content of a file for the next commit.
//
// The directory containing the file is created in the working tree if needed.
func (r *Repository) Add(file string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rel, err := r.relPath(file)
	if err != nil {
		return err
	}
	return r.add(rel)
}

func (r *Repository) add(rel string) error {
	if err := os.MkdirAll(filepath.Join(r.root, filepath.FromSlash(path.Dir(rel))), 0700); err != nil {
		return fmt.Errorf("creating directory for %q: %w", rel, err)
	}
	wt, err := r.repo.Worktree()
	if err != nil {
		return err
	}
	if _, err = wt.Add(rel); err != nil {
		return fmt.Errorf("staging %q: %w", rel, err)
	}
	return nil
}

// WriteFile writes a file in the working tree and stages it
func (r *Repository) WriteFile(file string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rel, err := r.relPath(file)
	if err != nil {
		return err
	}
	full := filepath.Join(r.root, filepath.FromSlash(rel))
	if err = os.MkdirAll(filepath.Dir(full), 0700); err != nil {
		return fmt.Errorf("creating directory for %q: %w", rel, err)
	}
	if err = os.WriteFile(full, data, 0600); err != nil {
		return fmt.Errorf("writing %q: %w", rel, err)
	}
	return r.add(rel)
}

// Commit writes the staged tree as a new history entry on the current branch, and advances the branch.
//
// It returns the identifier of the new commit.
func (r *Repository) Commit(opts ...CommitOption) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o := commitOptions{username: defaultUsername}
	for _, apply := range opts {
		apply(&o)
	}

	branch, err := r.CurrentBranch()
	if err != nil {
		return "", err
	}
	if o.orphan {
		found, err := r.hasReference(plumbing.NewBranchReferenceName(branch))
		if err != nil {
			return "", err
		}
		if found {
			return "", status.ErrBranchExists.WrapMessage("orphan commit on %q which has history", branch)
		}
		if o.message == "" {
			o.message = defaultInitialCommit
		}
	}
	if o.message == "" {
		o.message = fmt.Sprintf("update stack %s", branch)
	}

	wt, err := r.repo.Worktree()
	if err != nil {
		return "", err
	}
	sig := &object.Signature{
		Name:  o.username,
		Email: o.username + "@" + r.emailDomain,
		When:  time.Now(),
	}
	hash, err := wt.Commit(o.message, &git.CommitOptions{
		Author:            sig,
		Committer:         sig,
		AllowEmptyCommits: true,
	})
	if err != nil {
		return "", fmt.Errorf("committing on %q: %w", branch, err)
	}
	r.l.Info("committed",
		zap.String("branch", branch),
		zap.Stringer("commit", hash),
		zap.String("username", o.username),
		zap.Bool("orphan", o.orphan),
	)
	return hash.String(), nil
}

// Discard drops the uncommitted changes of the working tree and of the staging area
func (r *Repository) Discard() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	head, err := r.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			// unborn branch: there is nothing to go back to
			if err = r.repo.Storer.SetIndex(&index.Index{Version: 2}); err != nil {
				return err
			}
			return r.clearWorktree()
		}
		return fmt.Errorf("resolving HEAD: %w", err)
	}
	wt, err := r.repo.Worktree()
	if err != nil {
		return err
	}
	if err = wt.Reset(&git.ResetOptions{Commit: head.Hash(), Mode: git.HardReset}); err != nil {
		return fmt.Errorf("discarding changes on %s: %w", head.Name().Short(), err)
	}
	r.l.Warn("discarded uncommitted changes", zap.String("branch", head.Name().Short()))
	return nil
}

// Status reports whether the working tree differs from the last commit.
//
// When file is not empty, only that file is considered.
func (r *Repository) Status(file string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wt, err := r.repo.Worktree()
	if err != nil {
		return false, err
	}
	st, err := wt.Status()
	if err != nil {
		return false, fmt.Errorf("computing status: %w", err)
	}
	if file == "" {
		return !st.IsClean(), nil
	}
	rel, err := r.relPath(file)
	if err != nil {
		return false, err
	}
	fs, ok := st[rel]
	if !ok {
		return false, nil
	}
	return fs.Staging != git.Unmodified || fs.Worktree != git.Unmodified, nil
}

// Tip is the identifier of the latest commit on a branch
func (r *Repository) Tip(branch string) (string, error) {
	hash, err := r.tip(branch)
	if err != nil {
		return "", err
	}
	return hash.String(), nil
}

func (r *Repository) tip(branch string) (plumbing.Hash, error) {
	ref, err := r.repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return plumbing.ZeroHash, status.ErrBranchNotFound.WrapMessage("%q", branch)
		}
		return plumbing.ZeroHash, fmt.Errorf("resolving branch %q: %w", branch, err)
	}
	return ref.Hash(), nil
}

func (r *Repository) hasReference(name plumbing.ReferenceName) (bool, error) {
	_, err := r.repo.Storer.Reference(name)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Branches lists the branch names, sorted
func (r *Repository) Branches() ([]string, error) {
	iter, err := r.repo.Branches()
	if err != nil {
		return nil, err
	}
	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	})
	if err != nil && err != storer.ErrStop {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// ReadFile reads the content of a file as committed at the tip of a branch
func (r *Repository) ReadFile(branch, file string) ([]byte, error) {
	hash, err := r.tip(branch)
	if err != nil {
		return nil, err
	}
	rel, err := r.relPath(file)
	if err != nil {
		return nil, err
	}
	commit, err := r.repo.CommitObject(hash)
	if err != nil {
		return nil, fmt.Errorf("reading commit %s of %q: %w", hash, branch, err)
	}
	f, err := commit.File(rel)
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return nil, os.ErrNotExist
		}
		return nil, err
	}
	content, err := f.Contents()
	if err != nil {
		return nil, err
	}
	return []byte(content), nil
}

// Parents of a commit
func (r *Repository) Parents(commit string) ([]string, error) {
	c, err := r.repo.CommitObject(plumbing.NewHash(commit))
	if err != nil {
		return nil, fmt.Errorf("reading commit %s: %w", commit, err)
	}
	parents := make([]string, 0, len(c.ParentHashes))
	for _, h := range c.ParentHashes {
		parents = append(parents, h.String())
	}
	return parents, nil
}

// Log is reserved for history inspection
func (r *Repository) Log(branch string) ([]string, error) {
	return nil, status.ErrNotSupported.WrapMessage("log of %q", branch)
}

// Merge is reserved for branch reconciliation
func (r *Repository) Merge(from, to string) error {
	return status.ErrNotSupported.WrapMessage("merge %q into %q", from, to)
}
