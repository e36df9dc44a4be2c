package gitsource

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/sentinel/pkg/ruleset"
)

// Reloader reloads rules from the checkout. *ruleset.Reloader satisfies it.
// A nil result with an error means nothing was applied.
type Reloader interface {
	Reload(ctx context.Context) (*ruleset.SyncResult, error)
}

// PollerStats counts poll outcomes.
type PollerStats struct {
	Polls         int64
	Reloads       int64
	FailedReloads int64
	Skipped       int64
	LastReload    time.Time
	ActiveCommit  string
}

// Poller moves a Repository forward and reloads rules when rule files
// change.
type Poller struct {
	repo     *Repository
	reloader Reloader
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	active   string
	rejected string
	stats    PollerStats
}

// NewPoller creates a poller. interval defaults to one minute.
func NewPoller(repo *Repository, reloader Reloader, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		repo:     repo,
		reloader: reloader,
		interval: interval,
		logger:   logger.With("component", "gitsource"),
	}
}

// Run polls until ctx is done. Poll errors are logged, not returned.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("polling rule repository", "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.Poll(ctx); err != nil {
				p.logger.ErrorContext(ctx, "rule repository poll failed", "error", err)
			}
		}
	}
}

// Poll fetches once and applies a new commit if there is one. A commit whose
// rules are rejected is rolled back and ignored until the branch moves on.
func (p *Poller) Poll(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.Polls++

	if p.active == "" {
		head, err := p.repo.Head()
		if err != nil {
			return err
		}
		p.active = head.SHA
		p.stats.ActiveCommit = head.SHA
	}

	remote, err := p.repo.Fetch(ctx)
	if err != nil {
		return err
	}
	if remote == p.active || remote == p.rejected {
		return nil
	}

	files, err := p.repo.ChangedFiles(p.active, remote)
	if err != nil {
		return err
	}
	if err := p.repo.Checkout(remote); err != nil {
		return err
	}

	if !p.touchesRules(files) {
		p.stats.Skipped++
		p.logger.Info("no rule files changed, skipping reload",
			"from", shortSHA(p.active), "to", shortSHA(remote), "changed_files", len(files))
		p.advance(remote)
		return nil
	}

	p.logger.Info("rule files changed, reloading",
		"from", shortSHA(p.active), "to", shortSHA(remote), "changed_files", len(files))

	start := time.Now()
	result, err := p.reloader.Reload(ctx)
	if result == nil && err != nil {
		p.stats.FailedReloads++
		p.rejected = remote
		if rbErr := p.repo.Checkout(p.active); rbErr != nil {
			return fmt.Errorf("commit %s rejected: %w (rollback: %v)", shortSHA(remote), err, rbErr)
		}
		p.logger.Warn("rolled back to last good commit",
			"rejected", shortSHA(remote), "active", shortSHA(p.active))
		return fmt.Errorf("commit %s rejected: %w", shortSHA(remote), err)
	}
	if err != nil {
		p.logger.Warn("some rule entries were rejected", "commit", shortSHA(remote), "error", err)
	}

	p.stats.Reloads++
	p.stats.LastReload = time.Now()
	p.advance(remote)
	p.logger.Info("rules reloaded from repository",
		"commit", shortSHA(remote),
		"rules_applied", result.RulesApplied,
		"rules_removed", result.RulesRemoved,
		"duration", time.Since(start))
	return nil
}

// Stats returns a snapshot of the counters.
func (p *Poller) Stats() PollerStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *Poller) advance(sha string) {
	p.active = sha
	p.rejected = ""
	p.stats.ActiveCommit = sha
}

func (p *Poller) touchesRules(files []string) bool {
	for _, f := range files {
		if p.repo.IsRuleFile(f) {
			return true
		}
	}
	return false
}
