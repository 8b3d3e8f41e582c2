// internal/github/translate.go
package github

import (
	"time"

	"github.com/google/go-github/v62/github"

	"github-org-mirror/internal/model"
)

func toInternalOrganization(o *github.Organization) model.Organization {
	return model.Organization{
		GithubID:    o.GetID(),
		Login:       o.GetLogin(),
		Name:        o.GetName(),
		Description: o.GetDescription(),
		URL:         o.GetHTMLURL(),
		AvatarURL:   o.GetAvatarURL(),
		ReposURL:    o.GetReposURL(),
		MembersURL:  o.GetMembersURL(),
	}
}

// toInternalRepository translates a github.Repository object to our internal model.Repository.
func toInternalRepository(r *github.Repository) model.Repository {
	return model.Repository{
		GithubID:      r.GetID(),
		Name:          r.GetName(),
		FullName:      r.GetFullName(),
		Owner:         toActorValue(r.GetOwner()),
		Description:   r.GetDescription(),
		URL:           r.GetHTMLURL(),
		Private:       r.GetPrivate(),
		Language:      r.GetLanguage(),
		StarsCount:    r.GetStargazersCount(),
		ForksCount:    r.GetForksCount(),
		OpenIssues:    r.GetOpenIssuesCount(),
		DefaultBranch: r.GetDefaultBranch(),
		RepoCreatedAt: toTime(r.GetCreatedAt()),
		RepoUpdatedAt: toTime(r.GetUpdatedAt()),
		RepoPushedAt:  toTime(r.GetPushedAt()),
	}
}

// toInternalCommit translates a github.RepositoryCommit object to our internal model.Commit.
func toInternalCommit(c *github.RepositoryCommit) model.Commit {
	gc := c.GetCommit()
	commit := model.Commit{
		SHA:           c.GetSHA(),
		Message:       gc.GetMessage(),
		URL:           c.GetHTMLURL(),
		Author:        toIdentity(gc.GetAuthor()),
		Committer:     toIdentity(gc.GetCommitter()),
		AuthorUser:    toActor(c.GetAuthor()),
		CommitterUser: toActor(c.GetCommitter()),
		CommentCount:  gc.GetCommentCount(),
	}
	if v := gc.GetVerification(); v != nil {
		commit.Verification = &model.Verification{Verified: v.GetVerified(), Reason: v.GetReason()}
	}
	return commit
}

func toInternalPullRequest(pr *github.PullRequest) model.PullRequest {
	return model.PullRequest{
		GithubID:  pr.GetID(),
		Number:    pr.GetNumber(),
		Title:     pr.GetTitle(),
		Body:      pr.GetBody(),
		State:     pr.GetState(),
		URL:       pr.GetHTMLURL(),
		Draft:     pr.GetDraft(),
		Merged:    pr.GetMerged() || pr.MergedAt != nil,
		Author:    toActor(pr.GetUser()),
		Assignee:  toActor(pr.GetAssignee()),
		Labels:    labelNames(pr.Labels),
		Commits:   []model.CommitRef{},
		CreatedAt: toTime(pr.GetCreatedAt()),
		UpdatedAt: toTime(pr.GetUpdatedAt()),
		ClosedAt:  toTime(pr.GetClosedAt()),
		MergedAt:  toTime(pr.GetMergedAt()),
	}
}

func toInternalIssue(i *github.Issue) model.Issue {
	issue := model.Issue{
		GithubID:      i.GetID(),
		Number:        i.GetNumber(),
		Title:         i.GetTitle(),
		Body:          i.GetBody(),
		State:         i.GetState(),
		URL:           i.GetHTMLURL(),
		Author:        toActor(i.GetUser()),
		Assignees:     make([]model.Actor, 0, len(i.Assignees)),
		Labels:        labelNames(i.Labels),
		ClosedBy:      toActor(i.GetClosedBy()),
		Comments:      i.GetComments(),
		CreatedAt:     toTime(i.GetCreatedAt()),
		UpdatedAt:     toTime(i.GetUpdatedAt()),
		ClosedAt:      toTime(i.GetClosedAt()),
		IsPullRequest: i.IsPullRequest(),
	}
	for _, a := range i.Assignees {
		issue.Assignees = append(issue.Assignees, toActorValue(a))
	}
	if r := i.GetReactions(); r != nil {
		issue.Reactions = &model.Reactions{
			TotalCount: r.GetTotalCount(),
			PlusOne:    r.GetPlusOne(),
			MinusOne:   r.GetMinusOne(),
			Laugh:      r.GetLaugh(),
			Hooray:     r.GetHooray(),
			Confused:   r.GetConfused(),
			Heart:      r.GetHeart(),
			Rocket:     r.GetRocket(),
			Eyes:       r.GetEyes(),
		}
	}
	return issue
}

func toInternalTimelineEvent(t *github.Timeline) model.TimelineEvent {
	ev := model.TimelineEvent{
		ID:          t.ID,
		Event:       t.GetEvent(),
		Actor:       toActor(t.GetActor()),
		CreatedAt:   toTime(t.GetCreatedAt()),
		CommitID:    t.GetCommitID(),
		SHA:         t.GetSHA(),
		Message:     t.GetMessage(),
		Assignee:    toActor(t.GetAssignee()),
		Milestone:   t.GetMilestone().GetTitle(),
		State:       t.GetState(),
		Body:        t.GetBody(),
		User:        toActor(t.GetUser()),
		Reviewer:    toActor(t.GetReviewer()),
		Requester:   toActor(t.GetRequester()),
		ReviewTeam:  t.GetRequestedTeam().GetName(),
		SubmittedAt: toTime(t.GetSubmittedAt()),
		URL:         t.GetURL(),
	}
	if t.Author != nil {
		id := toIdentity(t.Author)
		ev.Author = &id
	}
	if t.Label != nil {
		ev.Label = &model.TimelineLabel{Name: t.Label.GetName(), Color: t.Label.GetColor()}
	}
	if t.Rename != nil {
		ev.Rename = &model.TimelineRename{From: t.Rename.GetFrom(), To: t.Rename.GetTo()}
	}
	if src := t.GetSource(); src != nil {
		issue := src.GetIssue()
		ev.Source = &model.TimelineSource{
			Type:        src.GetType(),
			IssueNumber: issue.GetNumber(),
			IssueTitle:  issue.GetTitle(),
			IssueURL:    issue.GetHTMLURL(),
			Repository:  issue.GetRepository().GetFullName(),
			IsPull:      issue.IsPullRequest(),
		}
	}
	return ev
}

func toIdentity(a *github.CommitAuthor) model.CommitIdentity {
	return model.CommitIdentity{
		Name:  a.GetName(),
		Email: a.GetEmail(),
		Date:  toTime(a.GetDate()),
	}
}

func toActor(u *github.User) *model.Actor {
	if u == nil {
		return nil
	}
	a := toActorValue(u)
	return &a
}

func toActorValue(u *github.User) model.Actor {
	return model.Actor{
		ID:        u.GetID(),
		Login:     u.GetLogin(),
		AvatarURL: u.GetAvatarURL(),
		URL:       u.GetHTMLURL(),
		Type:      u.GetType(),
	}
}

func labelNames(labels []*github.Label) []string {
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		names = append(names, l.GetName())
	}
	return names
}

// toTime returns nil for GitHub's zero timestamps so absent dates stay absent in documents.
func toTime(ts github.Timestamp) *time.Time {
	if ts.IsZero() {
		return nil
	}
	t := ts.Time.UTC()
	return &t
}
