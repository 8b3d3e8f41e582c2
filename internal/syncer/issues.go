// internal/syncer/issues.go
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github-org-mirror/internal/github"
	"github-org-mirror/internal/model"
	"github-org-mirror/internal/normalize"
	"github-org-mirror/internal/store"
)

// syncIssues pages through the issues of every repository with the same incremental
// rules as pull requests. The issues listing also returns pull requests; those are
// discarded here. Every stored issue gets its history synced right away.
func (o *Orchestrator) syncIssues(ctx context.Context) error {
	repos, err := o.realRepositories(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, repo := range repos {
		logger := o.logger.With("stage", StageIssues, "repo", repo.Doc.FullName)
		if err := o.syncRepoIssues(ctx, logger, repo, true, nil); err != nil {
			logger.Error("Failed to sync issues", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// syncRepoIssues walks the issues listing of one repository. Incremental walks apply the
// last sync time. When budget is set it is decremented for every stored issue and paging
// stops once it reaches zero.
func (o *Orchestrator) syncRepoIssues(ctx context.Context, logger *slog.Logger, repo entry[model.Repository], incremental bool, budget *int) error {
	id, err := repoIdentifier(repo.Doc)
	if err != nil {
		return err
	}
	var since time.Time
	if incremental {
		since = o.since()
	}

	return o.paginate(ctx, func(ctx context.Context, page github.Page) (int, bool, error) {
		issues, err := call(ctx, o.pager, logger, func(ctx context.Context) ([]model.Issue, error) {
			return o.gh.ListIssues(ctx, id.Owner, id.Name, since, page)
		})
		if err != nil {
			return 0, false, fmt.Errorf("list issues of %s page %d: %w", id, page.Number, err)
		}

		reachedWatermark := false
		for _, issue := range issues {
			if budget != nil && *budget <= 0 {
				return len(issues), true, nil
			}
			if issue.IsPullRequest {
				continue
			}
			if incremental && !o.afterWatermark(issue.UpdatedAt) {
				reachedWatermark = true
				continue
			}

			issue.RepositoryID = repo.ID
			issue.UserID = o.user.ID
			issueID, err := o.store.Upsert(ctx, store.Issues, store.IDKey(o.user.ID, issue.GithubID, repo.ID), issue)
			if err != nil {
				logger.Error("Failed to store issue", "number", issue.Number, "error", err)
				continue
			}
			if budget != nil {
				*budget--
			}

			if err := o.syncIssueHistory(ctx, logger, id, repo.ID, issueID, issue); err != nil {
				logger.Error("Failed to sync issue history", "stage", StageIssueHistory, "number", issue.Number, "error", err)
			}
		}
		exhausted := budget != nil && *budget <= 0
		return len(issues), reachedWatermark || exhausted, nil
	})
}

// syncIssueHistory pages through an issue's timeline, normalizes every event and
// stores each page in one bulk upsert before requesting the next.
func (o *Orchestrator) syncIssueHistory(ctx context.Context, logger *slog.Logger, id RepoIdentifier, repoID, issueID int64, issue model.Issue) error {
	ids := normalize.NewSurrogateIDs(strconv.FormatInt(issue.GithubID, 10))

	return o.paginate(ctx, func(ctx context.Context, page github.Page) (int, bool, error) {
		events, err := call(ctx, o.history, logger, func(ctx context.Context) ([]model.TimelineEvent, error) {
			return o.gh.ListIssueTimeline(ctx, id.Owner, id.Name, issue.Number, page)
		})
		if err != nil {
			return 0, false, fmt.Errorf("list timeline of issue #%d page %d: %w", issue.Number, page.Number, err)
		}

		ops := make([]store.Op, 0, len(events))
		for _, ev := range events {
			eventID, surrogate := ids.EventID(ev)
			n := normalize.Normalize(ev)
			createdAt := ev.CreatedAt
			if createdAt == nil {
				createdAt = ev.SubmittedAt
			}
			ops = append(ops, store.Op{
				Key: store.Key{UserID: o.user.ID, ExternalID: eventID, ParentID: issueID},
				Doc: model.IssueHistory{
					EventID:      eventID,
					Surrogate:    surrogate,
					Event:        ev.Event,
					Actor:        firstActor(ev.Actor, ev.User),
					CreatedAt:    createdAt,
					Summary:      n.Summary,
					Details:      n.Details,
					IssueID:      issueID,
					RepositoryID: repoID,
					UserID:       o.user.ID,
				},
			})
		}
		if err := o.store.BulkUpsert(ctx, store.IssueHistory, ops); err != nil {
			return 0, false, fmt.Errorf("store timeline of issue #%d: %w", issue.Number, err)
		}
		return len(events), false, nil
	})
}

func firstActor(actors ...*model.Actor) *model.Actor {
	for _, a := range actors {
		if a != nil {
			return a
		}
	}
	return nil
}
