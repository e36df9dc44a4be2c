// Package gitsource keeps rule files in sync with a Git repository.
//
// A Repository clones the configured branch into a local directory whose
// rule subdirectory is then loaded like any other rule path. A Poller
// fetches the branch on an interval and, when a new commit touches rule
// files, moves the checkout forward and reloads. If the reload is rejected
// the checkout is reset to the last commit that loaded cleanly and the
// rejected commit is skipped until the branch moves again.
//
//	repo, err := gitsource.NewRepository(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	if err := repo.Clone(ctx); err != nil {
//	    return err
//	}
//	reloader := ruleset.NewReloader([]string{repo.RulePath()}, syncer, logger)
//	poller := gitsource.NewPoller(repo, reloader, time.Minute, logger)
//	go poller.Run(ctx)
package gitsource
