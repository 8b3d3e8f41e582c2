// internal/syncer/extra.go
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

const (
	openSourceOrgURL       = "https://github.com"
	openSourceOrgAvatarURL = "https://github.githubassets.com/images/modules/logos_page/GitHub-Mark.png"
)

// syncExtraRepositories mirrors the curated public repositories under the synthetic
// OpenSource organization. It runs once: when any curated repository is already stored
// the whole stage is skipped. Pull requests and issues are capped across the list.
func (o *Orchestrator) syncExtraRepositories(ctx context.Context) error {
	if len(o.extraRepos) == 0 {
		return nil
	}

	for _, id := range o.extraRepos {
		_, err := o.store.FindOne(ctx, store.Repositories, store.Filter{
			UserID: o.user.ID,
			Match:  map[string]any{"fullName": id.String()},
		})
		if err == nil {
			o.logger.Info("Curated repositories already mirrored, skipping", "stage", StageExtraRepositories, "repo", id.String())
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("look up %s: %w", id, err)
		}
	}

	orgID, err := o.ensureOpenSourceOrg(ctx)
	if err != nil {
		return err
	}

	prBudget, issueBudget := o.opts.ExtraPRCap, o.opts.ExtraIssueCap
	var errs []error
	for _, id := range o.extraRepos {
		logger := o.logger.With("stage", StageExtraRepositories, "repo", id.String())
		if err := o.syncExtraRepo(ctx, logger, id, orgID, &prBudget, &issueBudget); err != nil {
			logger.Error("Failed to sync curated repository", "error", err)
			errs = append(errs, err)
		}
	}
	o.logger.Info("Curated repositories synced",
		"pull_requests", o.opts.ExtraPRCap-prBudget, "issues", o.opts.ExtraIssueCap-issueBudget)
	return errors.Join(errs...)
}

func (o *Orchestrator) ensureOpenSourceOrg(ctx context.Context) (int64, error) {
	org := model.Organization{
		GithubID:    model.OpenSourceOrgID,
		Login:       model.OpenSourceOrgLogin,
		Name:        model.OpenSourceOrgLogin,
		Description: "Collection of open source repositories",
		URL:         openSourceOrgURL,
		AvatarURL:   openSourceOrgAvatarURL,
		Synthetic:   true,
		UserID:      o.user.ID,
	}
	id, err := o.store.Upsert(ctx, store.Organizations, store.IDKey(o.user.ID, model.OpenSourceOrgID, 0), org)
	if err != nil {
		return 0, fmt.Errorf("store OpenSource organization: %w", err)
	}
	return id, nil
}

func (o *Orchestrator) syncExtraRepo(ctx context.Context, logger *slog.Logger, id RepoIdentifier, orgID int64, prBudget, issueBudget *int) error {
	repo, err := call(ctx, o.pager, logger, func(ctx context.Context) (model.Repository, error) {
		return o.gh.GetRepository(ctx, id.Owner, id.Name)
	})
	if err != nil {
		return fmt.Errorf("get repository: %w", err)
	}
	repo.OrganizationID = orgID
	repo.UserID = o.user.ID
	if repo.FullName == "" {
		repo.FullName = id.String()
	}
	repoID, err := o.store.Upsert(ctx, store.Repositories, store.IDKey(o.user.ID, repo.GithubID, orgID), repo)
	if err != nil {
		return fmt.Errorf("store repository: %w", err)
	}

	contributors := func(ctx context.Context, page github.Page) ([]model.Member, error) {
		return o.gh.ListContributors(ctx, id.Owner, id.Name, page)
	}
	if err := o.syncMemberList(ctx, logger, orgID, contributors, false); err != nil {
		logger.Error("Failed to sync contributors", "error", err)
	}

	if *prBudget > 0 {
		if err := o.syncExtraPulls(ctx, logger, id, repoID, prBudget); err != nil {
			logger.Error("Failed to sync pull requests", "error", err)
		}
	}

	if *issueBudget > 0 {
		if err := o.syncRepoIssues(ctx, logger, entry[model.Repository]{ID: repoID, Doc: repo}, false, issueBudget); err != nil {
			logger.Error("Failed to sync issues", "error", err)
		}
	}
	return nil
}

func (o *Orchestrator) syncExtraPulls(ctx context.Context, logger *slog.Logger, id RepoIdentifier, repoID int64, budget *int) error {
	return o.paginate(ctx, func(ctx context.Context, page github.Page) (int, bool, error) {
		pulls, err := call(ctx, o.pager, logger, func(ctx context.Context) ([]model.PullRequest, error) {
			return o.gh.ListPulls(ctx, id.Owner, id.Name, page)
		})
		if err != nil {
			return 0, false, fmt.Errorf("list pull requests page %d: %w", page.Number, err)
		}
		for _, pr := range pulls {
			if *budget <= 0 {
				return len(pulls), true, nil
			}
			if err := o.upsertPullRequest(ctx, logger, id, repoID, pr, false); err != nil {
				logger.Error("Failed to store pull request", "number", pr.Number, "error", err)
				continue
			}
			*budget--
		}
		return len(pulls), *budget <= 0, nil
	})
}
