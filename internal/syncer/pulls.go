// internal/syncer/pulls.go
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github-org-mirror/internal/github"
	"github-org-mirror/internal/model"
	"github-org-mirror/internal/store"
)

// syncPullRequests pages through the pull requests of every repository, newest update
// first. Incremental runs drop pull requests not updated since the last sync and stop
// after the first page reaching past it.
func (o *Orchestrator) syncPullRequests(ctx context.Context) error {
	repos, err := o.realRepositories(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, repo := range repos {
		logger := o.logger.With("stage", StagePullRequests, "repo", repo.Doc.FullName)
		if err := o.syncRepoPulls(ctx, logger, repo); err != nil {
			logger.Error("Failed to sync pull requests", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (o *Orchestrator) syncRepoPulls(ctx context.Context, logger *slog.Logger, repo entry[model.Repository]) error {
	id, err := repoIdentifier(repo.Doc)
	if err != nil {
		return err
	}

	return o.paginate(ctx, func(ctx context.Context, page github.Page) (int, bool, error) {
		pulls, err := call(ctx, o.pager, logger, func(ctx context.Context) ([]model.PullRequest, error) {
			return o.gh.ListPulls(ctx, id.Owner, id.Name, page)
		})
		if err != nil {
			return 0, false, fmt.Errorf("list pull requests of %s page %d: %w", id, page.Number, err)
		}

		reachedWatermark := false
		for _, pr := range pulls {
			if !o.afterWatermark(pr.UpdatedAt) {
				reachedWatermark = true
				continue
			}
			if err := o.upsertPullRequest(ctx, logger, id, repo.ID, pr, true); err != nil {
				logger.Error("Failed to sync pull request", "number", pr.Number, "error", err)
			}
		}
		return len(pulls), reachedWatermark, nil
	})
}

// upsertPullRequest stores pr. With withCommits set its commits are fetched and stored
// first, and the pull request references them by sha.
func (o *Orchestrator) upsertPullRequest(ctx context.Context, logger *slog.Logger, id RepoIdentifier, repoID int64, pr model.PullRequest, withCommits bool) error {
	pr.RepositoryID = repoID
	pr.UserID = o.user.ID
	pr.Commits = []model.CommitRef{}

	if withCommits {
		err := o.paginate(ctx, func(ctx context.Context, page github.Page) (int, bool, error) {
			commits, err := call(ctx, o.pager, logger, func(ctx context.Context) ([]model.Commit, error) {
				return o.gh.ListPullCommits(ctx, id.Owner, id.Name, pr.Number, page)
			})
			if err != nil {
				return 0, false, fmt.Errorf("list commits of pull request #%d page %d: %w", pr.Number, page.Number, err)
			}
			if err := o.storeCommits(ctx, repoID, commits); err != nil {
				return 0, false, err
			}
			for _, c := range commits {
				pr.Commits = append(pr.Commits, model.CommitRef{SHA: c.SHA})
			}
			return len(commits), false, nil
		})
		if err != nil {
			logger.Warn("Pull request commits incomplete", "number", pr.Number, "error", err)
		}
	}

	_, err := o.store.Upsert(ctx, store.PullRequests, store.IDKey(o.user.ID, pr.GithubID, repoID), pr)
	return err
}
