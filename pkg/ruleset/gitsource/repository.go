package gitsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
)

const remoteName = "origin"

// ErrNotCloned is returned by operations that need a local clone.
var ErrNotCloned = errors.New("repository not cloned")

// Config describes the remote and the local checkout.
type Config struct {
	URL    string
	Branch string

	// Path is the rule directory relative to the repository root.
	Path string

	LocalPath    string
	Depth        int
	CleanOnStart bool

	// Timeout bounds each clone or fetch.
	Timeout time.Duration

	Auth AuthConfig
}

// CommitInfo describes a commit.
type CommitInfo struct {
	SHA       string
	Author    string
	Email     string
	Message   string
	Timestamp time.Time
}

// Stats counts repository operations.
type Stats struct {
	Fetches       int64
	FailedFetches int64
	LastFetch     time.Time
	CloneDuration time.Duration
	Head          string
}

// Repository is a local clone of one branch.
type Repository struct {
	cfg    Config
	auth   AuthProvider
	logger *slog.Logger

	mu    sync.RWMutex
	repo  *gogit.Repository
	stats Stats
}

// NewRepository validates cfg and prepares a repository. Nothing touches
// the network until Clone.
func NewRepository(cfg Config, logger *slog.Logger) (*Repository, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("repository url cannot be empty")
	}
	if cfg.Branch == "" {
		return nil, fmt.Errorf("branch cannot be empty")
	}
	if cfg.LocalPath == "" {
		return nil, fmt.Errorf("local path cannot be empty")
	}
	if cfg.Path == "" {
		cfg.Path = "."
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	auth, err := NewAuthProvider(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth provider: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		cfg:    cfg,
		auth:   auth,
		logger: logger.With("component", "gitsource", "url", cfg.URL, "branch", cfg.Branch),
	}, nil
}

// Clone clones the branch into LocalPath, or opens an existing clone there
// unless CleanOnStart is set.
func (r *Repository) Clone(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	defer func() { r.stats.CloneDuration = time.Since(start) }()

	if r.cfg.CleanOnStart {
		if err := os.RemoveAll(r.cfg.LocalPath); err != nil {
			return fmt.Errorf("failed to clean local path: %w", err)
		}
	}

	if _, err := os.Stat(filepath.Join(r.cfg.LocalPath, ".git")); err == nil {
		repo, err := gogit.PlainOpen(r.cfg.LocalPath)
		if err != nil {
			return fmt.Errorf("failed to open existing clone: %w", err)
		}
		r.repo = repo
		r.logger.Info("opened existing clone", "path", r.cfg.LocalPath)
		return r.refreshHead()
	}

	if err := os.MkdirAll(r.cfg.LocalPath, 0o755); err != nil {
		return fmt.Errorf("failed to create local path: %w", err)
	}

	auth, err := r.auth.Auth()
	if err != nil {
		return fmt.Errorf("failed to get auth: %w", err)
	}

	cloneCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	repo, err := gogit.PlainCloneContext(cloneCtx, r.cfg.LocalPath, false, &gogit.CloneOptions{
		URL:           r.cfg.URL,
		Auth:          auth,
		RemoteName:    remoteName,
		ReferenceName: plumbing.NewBranchReferenceName(r.cfg.Branch),
		SingleBranch:  true,
		Depth:         r.cfg.Depth,
	})
	if err != nil {
		return fmt.Errorf("failed to clone repository: %w", err)
	}
	r.repo = repo
	r.logger.Info("cloned rule repository", "path", r.cfg.LocalPath, "auth", r.auth.Type())
	return r.refreshHead()
}

// Fetch updates the remote-tracking ref and returns the SHA the remote
// branch points at. The working tree is not changed.
func (r *Repository) Fetch(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.repo == nil {
		return "", ErrNotCloned
	}

	r.stats.LastFetch = time.Now()

	auth, err := r.auth.Auth()
	if err != nil {
		return "", fmt.Errorf("failed to get auth: %w", err)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	remoteRef := plumbing.NewRemoteReferenceName(remoteName, r.cfg.Branch)
	spec := gitconfig.RefSpec(fmt.Sprintf("+%s:%s", plumbing.NewBranchReferenceName(r.cfg.Branch), remoteRef))

	err = r.repo.FetchContext(fetchCtx, &gogit.FetchOptions{
		RemoteName: remoteName,
		RefSpecs:   []gitconfig.RefSpec{spec},
		Auth:       auth,
		Depth:      r.cfg.Depth,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		r.stats.FailedFetches++
		return "", fmt.Errorf("failed to fetch: %w", err)
	}
	r.stats.Fetches++

	ref, err := r.repo.Reference(remoteRef, true)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", remoteRef, err)
	}
	return ref.Hash().String(), nil
}

// Checkout hard-resets the local branch and working tree to sha.
func (r *Repository) Checkout(sha string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.repo == nil {
		return ErrNotCloned
	}

	hash := plumbing.NewHash(sha)
	if _, err := r.repo.CommitObject(hash); err != nil {
		return fmt.Errorf("commit %s not found: %w", shortSHA(sha), err)
	}

	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	if err := wt.Reset(&gogit.ResetOptions{Commit: hash, Mode: gogit.HardReset}); err != nil {
		return fmt.Errorf("failed to reset to %s: %w", shortSHA(sha), err)
	}
	return r.refreshHead()
}

// Head returns the commit checked out locally.
func (r *Repository) Head() (*CommitInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.repo == nil {
		return nil, ErrNotCloned
	}

	ref, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}
	commit, err := r.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to get commit: %w", err)
	}
	return &CommitInfo{
		SHA:       commit.Hash.String(),
		Author:    commit.Author.Name,
		Email:     commit.Author.Email,
		Message:   strings.TrimSpace(commit.Message),
		Timestamp: commit.Author.When,
	}, nil
}

// ChangedFiles lists paths, relative to the repository root, that differ
// between two commits. Deleted files are reported by their old path.
func (r *Repository) ChangedFiles(fromSHA, toSHA string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.repo == nil {
		return nil, ErrNotCloned
	}

	from, err := r.repo.CommitObject(plumbing.NewHash(fromSHA))
	if err != nil {
		return nil, fmt.Errorf("failed to get commit %s: %w", shortSHA(fromSHA), err)
	}
	to, err := r.repo.CommitObject(plumbing.NewHash(toSHA))
	if err != nil {
		return nil, fmt.Errorf("failed to get commit %s: %w", shortSHA(toSHA), err)
	}

	fromTree, err := from.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get tree: %w", err)
	}
	toTree, err := to.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get tree: %w", err)
	}

	changes, err := fromTree.Diff(toTree)
	if err != nil {
		return nil, fmt.Errorf("failed to diff trees: %w", err)
	}

	files := make([]string, 0, len(changes))
	for _, change := range changes {
		if change.To.Name != "" {
			files = append(files, change.To.Name)
		} else {
			files = append(files, change.From.Name)
		}
	}
	return files, nil
}

// RulePath is the local directory holding rule files.
func (r *Repository) RulePath() string {
	return filepath.Join(r.cfg.LocalPath, r.cfg.Path)
}

// IsRuleFile reports whether a repository-relative path is a rule file
// under the configured rule directory.
func (r *Repository) IsRuleFile(path string) bool {
	path = filepath.ToSlash(path)
	dir := strings.Trim(filepath.ToSlash(filepath.Clean(r.cfg.Path)), "/")
	if dir != "." && dir != "" {
		if !strings.HasPrefix(path, dir+"/") {
			return false
		}
	}
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Stats returns a snapshot of the operation counters.
func (r *Repository) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

// refreshHead must be called with mu held.
func (r *Repository) refreshHead() error {
	ref, err := r.repo.Head()
	if err != nil {
		return fmt.Errorf("failed to get HEAD: %w", err)
	}
	r.stats.Head = ref.Hash().String()
	return nil
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
