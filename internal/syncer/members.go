// internal/syncer/members.go
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

// listMembersFunc fetches one page of member-like accounts.
type listMembersFunc func(ctx context.Context, page github.Page) ([]model.Member, error)

// syncMembers mirrors the members of every real organization, up to the member cap.
func (o *Orchestrator) syncMembers(ctx context.Context) error {
	orgs, err := o.realOrganizations(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, org := range orgs {
		logger := o.logger.With("stage", StageMembers, "org", org.Doc.Login)
		list := func(ctx context.Context, page github.Page) ([]model.Member, error) {
			return o.gh.ListOrgMembers(ctx, org.Doc.Login, page)
		}
		if err := o.syncMemberList(ctx, logger, org.ID, list, true); err != nil {
			logger.Error("Failed to sync members", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// syncMemberList stores accounts under the organization orgID until it holds MemberCap
// of them. Accounts already stored are skipped without any request; new ones are
// enriched with a user detail lookup when enrich is set.
func (o *Orchestrator) syncMemberList(ctx context.Context, logger *slog.Logger, orgID int64, list listMembersFunc, enrich bool) error {
	existing, err := o.store.Count(ctx, store.OrganizationUsers, store.Filter{UserID: o.user.ID, ParentID: store.Parent(orgID)})
	if err != nil {
		return fmt.Errorf("count members: %w", err)
	}
	remaining := o.opts.MemberCap - existing
	if remaining <= 0 {
		logger.Info("Member cap reached, skipping", "count", existing, "cap", o.opts.MemberCap)
		return nil
	}

	return o.paginate(ctx, func(ctx context.Context, page github.Page) (int, bool, error) {
		members, err := call(ctx, o.pager, logger, func(ctx context.Context) ([]model.Member, error) {
			return list(ctx, page)
		})
		if err != nil {
			return 0, false, fmt.Errorf("list members page %d: %w", page.Number, err)
		}

		for _, m := range members {
			if remaining <= 0 {
				return len(members), true, nil
			}
			key := store.IDKey(o.user.ID, m.GithubID, orgID)
			_, err := o.store.FindOne(ctx, store.OrganizationUsers, store.Filter{
				UserID:     key.UserID,
				ParentID:   store.Parent(orgID),
				ExternalID: key.ExternalID,
			})
			if err == nil {
				continue
			}
			if !errors.Is(err, store.ErrNotFound) {
				return 0, false, fmt.Errorf("look up member %s: %w", m.Login, err)
			}

			doc := model.OrganizationUser{
				GithubID:       m.GithubID,
				Login:          m.Login,
				AvatarURL:      m.AvatarURL,
				URL:            m.URL,
				Contributions:  m.Contributions,
				OrganizationID: orgID,
				UserID:         o.user.ID,
			}
			if enrich {
				o.enrichMember(ctx, logger, &doc)
			}
			if _, err := o.store.Upsert(ctx, store.OrganizationUsers, key, doc); err != nil {
				return 0, false, fmt.Errorf("store member %s: %w", m.Login, err)
			}
			remaining--
		}
		return len(members), remaining <= 0, nil
	})
}

func (o *Orchestrator) enrichMember(ctx context.Context, logger *slog.Logger, doc *model.OrganizationUser) {
	detail, err := call(ctx, o.pager, logger, func(ctx context.Context) (model.UserDetail, error) {
		return o.gh.GetUser(ctx, doc.Login)
	})
	if err != nil {
		logger.Warn("Member detail unavailable, storing listing data", "login", doc.Login, "error", err)
		return
	}
	doc.Name = detail.Name
	doc.Company = detail.Company
	doc.Location = detail.Location
	if detail.AvatarURL != "" {
		doc.AvatarURL = detail.AvatarURL
	}
	if detail.URL != "" {
		doc.URL = detail.URL
	}
}
