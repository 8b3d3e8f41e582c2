// internal/syncer/stages.go
package syncer

import (
	"context"
	"errors"
	"fmt"

	"github-org-mirror/internal/github"
	"github-org-mirror/internal/model"
	"github-org-mirror/internal/store"
)

// syncOrganizations mirrors every organization the credential can see.
func (o *Orchestrator) syncOrganizations(ctx context.Context) error {
	var errs []error
	err := o.paginate(ctx, func(ctx context.Context, page github.Page) (int, bool, error) {
		orgs, err := call(ctx, o.pager, o.logger, func(ctx context.Context) ([]model.Organization, error) {
			return o.gh.ListUserOrgs(ctx, page)
		})
		if err != nil {
			return 0, false, fmt.Errorf("list organizations page %d: %w", page.Number, err)
		}
		for _, org := range orgs {
			if err := o.upsertOrganization(ctx, org); err != nil {
				o.logger.Error("Failed to sync organization", "stage", StageOrganizations, "org", org.Login, "error", err)
				errs = append(errs, err)
			}
		}
		return len(orgs), false, nil
	})
	return errors.Join(append(errs, err)...)
}

func (o *Orchestrator) upsertOrganization(ctx context.Context, listed model.Organization) error {
	org, err := call(ctx, o.pager, o.logger, func(ctx context.Context) (model.Organization, error) {
		return o.gh.GetOrganization(ctx, listed.Login)
	})
	if err != nil {
		o.logger.Warn("Organization detail unavailable, storing listing data", "org", listed.Login, "error", err)
		org = listed
	}
	org.UserID = o.user.ID

	_, err = o.store.Upsert(ctx, store.Organizations, store.IDKey(o.user.ID, org.GithubID, 0), org)
	return err
}

// realOrganizations returns the user's organizations, leaving out the synthetic one.
func (o *Orchestrator) realOrganizations(ctx context.Context) ([]entry[model.Organization], error) {
	orgs, err := loadEntries[model.Organization](ctx, o.store, store.Organizations, store.Filter{UserID: o.user.ID})
	if err != nil {
		return nil, fmt.Errorf("load organizations: %w", err)
	}
	out := orgs[:0]
	for _, org := range orgs {
		if org.Doc.Synthetic || org.Doc.GithubID == model.OpenSourceOrgID {
			continue
		}
		out = append(out, org)
	}
	return out, nil
}

// realRepositories returns the repositories of the user's real organizations.
func (o *Orchestrator) realRepositories(ctx context.Context) ([]entry[model.Repository], error) {
	orgs, err := o.realOrganizations(ctx)
	if err != nil {
		return nil, err
	}
	var repos []entry[model.Repository]
	for _, org := range orgs {
		rs, err := loadEntries[model.Repository](ctx, o.store, store.Repositories, store.Filter{
			UserID:   o.user.ID,
			ParentID: store.Parent(org.ID),
		})
		if err != nil {
			return nil, fmt.Errorf("load repositories of %s: %w", org.Doc.Login, err)
		}
		repos = append(repos, rs...)
	}
	return repos, nil
}

// syncRepositories pages through the repositories of every real organization.
func (o *Orchestrator) syncRepositories(ctx context.Context) error {
	orgs, err := o.realOrganizations(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, org := range orgs {
		logger := o.logger.With("stage", StageRepositories, "org", org.Doc.Login)
		err := o.paginate(ctx, func(ctx context.Context, page github.Page) (int, bool, error) {
			repos, err := call(ctx, o.pager, logger, func(ctx context.Context) ([]model.Repository, error) {
				return o.gh.ListOrgRepos(ctx, org.Doc.Login, page)
			})
			if err != nil {
				return 0, false, fmt.Errorf("list repositories of %s page %d: %w", org.Doc.Login, page.Number, err)
			}
			ops := make([]store.Op, 0, len(repos))
			for _, repo := range repos {
				repo.OrganizationID = org.ID
				repo.UserID = o.user.ID
				ops = append(ops, store.Op{Key: store.IDKey(o.user.ID, repo.GithubID, org.ID), Doc: repo})
			}
			if err := o.store.BulkUpsert(ctx, store.Repositories, ops); err != nil {
				return 0, false, fmt.Errorf("store repositories of %s: %w", org.Doc.Login, err)
			}
			return len(repos), false, nil
		})
		if err != nil {
			logger.Error("Failed to sync repositories", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// syncCommits pages through the commits of every repository. Incremental runs let
// GitHub filter by the last sync time.
func (o *Orchestrator) syncCommits(ctx context.Context) error {
	repos, err := o.realRepositories(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, repo := range repos {
		logger := o.logger.With("stage", StageCommits, "repo", repo.Doc.FullName)
		if err := o.syncRepoCommits(ctx, repo); err != nil {
			logger.Error("Failed to sync commits", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (o *Orchestrator) syncRepoCommits(ctx context.Context, repo entry[model.Repository]) error {
	id, err := repoIdentifier(repo.Doc)
	if err != nil {
		return err
	}
	since := o.since()

	return o.paginate(ctx, func(ctx context.Context, page github.Page) (int, bool, error) {
		commits, err := call(ctx, o.pager, o.logger, func(ctx context.Context) ([]model.Commit, error) {
			return o.gh.ListCommits(ctx, id.Owner, id.Name, since, page)
		})
		if err != nil {
			return 0, false, fmt.Errorf("list commits of %s page %d: %w", id, page.Number, err)
		}
		if err := o.storeCommits(ctx, repo.ID, commits); err != nil {
			return 0, false, err
		}
		return len(commits), false, nil
	})
}

// storeCommits keys commits by sha alone, so a commit reachable from a fork and its
// upstream is stored once and points at the repository that wrote it last.
func (o *Orchestrator) storeCommits(ctx context.Context, repoID int64, commits []model.Commit) error {
	ops := make([]store.Op, 0, len(commits))
	for _, c := range commits {
		c.RepositoryID = repoID
		c.UserID = o.user.ID
		ops = append(ops, store.Op{Key: store.Key{UserID: o.user.ID, ExternalID: c.SHA}, Doc: c})
	}
	if err := o.store.BulkUpsert(ctx, store.Commits, ops); err != nil {
		return fmt.Errorf("store commits: %w", err)
	}
	return nil
}
