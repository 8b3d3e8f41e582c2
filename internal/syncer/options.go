// internal/syncer/options.go
package syncer

import (
	"context"
	"strings"
	"time"

	custom_errors "github-org-mirror/internal/errors"
	"github-org-mirror/internal/github"
	"github-org-mirror/internal/model"
	"github-org-mirror/internal/ratelimit"
)

// GitHubAPI is the part of the GitHub client the pipeline depends on.
type GitHubAPI interface {
	ListUserOrgs(ctx context.Context, page github.Page) ([]model.Organization, error)
	GetOrganization(ctx context.Context, login string) (model.Organization, error)
	ListOrgRepos(ctx context.Context, org string, page github.Page) ([]model.Repository, error)
	ListOrgMembers(ctx context.Context, org string, page github.Page) ([]model.Member, error)
	GetUser(ctx context.Context, login string) (model.UserDetail, error)
	GetRepository(ctx context.Context, owner, name string) (model.Repository, error)
	ListCommits(ctx context.Context, owner, name string, since time.Time, page github.Page) ([]model.Commit, error)
	ListPulls(ctx context.Context, owner, name string, page github.Page) ([]model.PullRequest, error)
	ListPullCommits(ctx context.Context, owner, name string, number int, page github.Page) ([]model.Commit, error)
	ListIssues(ctx context.Context, owner, name string, since time.Time, page github.Page) ([]model.Issue, error)
	ListIssueTimeline(ctx context.Context, owner, name string, number int, page github.Page) ([]model.TimelineEvent, error)
	ListContributors(ctx context.Context, owner, name string, page github.Page) ([]model.Member, error)
}

// ClientFactory builds a GitHubAPI authenticated with a user's token.
type ClientFactory func(token string) (GitHubAPI, error)

// Options tunes a sync run.
type Options struct {
	PerPage          int
	PageDelay        time.Duration
	HistoryPageDelay time.Duration
	RateLimitBackoff time.Duration
	MemberCap        int
	ExtraRepos       []string
	ExtraPRCap       int
	ExtraIssueCap    int
}

// DefaultOptions returns the production pacing and caps.
func DefaultOptions() Options {
	return Options{
		PerPage:          100,
		PageDelay:        ratelimit.DefaultPageDelay,
		HistoryPageDelay: 500 * time.Millisecond,
		RateLimitBackoff: ratelimit.DefaultBackoff,
		MemberCap:        20,
		ExtraRepos:       []string{"facebook/react", "vercel/next.js", "microsoft/vscode"},
		ExtraPRCap:       2000,
		ExtraIssueCap:    600,
	}
}

// RepoIdentifier holds the owner and name of a repository.
type RepoIdentifier struct {
	Owner string
	Name  string
}

func (r RepoIdentifier) String() string {
	return r.Owner + "/" + r.Name
}

func parseRepoIdentifiers(repos []string) ([]RepoIdentifier, error) {
	var identifiers []RepoIdentifier
	for _, r := range repos {
		parts := strings.Split(r, "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, &custom_errors.ErrInvalidRepoFormat{Repo: r}
		}
		identifiers = append(identifiers, RepoIdentifier{Owner: parts[0], Name: parts[1]})
	}
	return identifiers, nil
}

// repoIdentifier derives owner and name of a stored repository.
func repoIdentifier(r model.Repository) (RepoIdentifier, error) {
	if r.FullName != "" {
		ids, err := parseRepoIdentifiers([]string{r.FullName})
		if err != nil {
			return RepoIdentifier{}, err
		}
		return ids[0], nil
	}
	if r.Owner.Login == "" || r.Name == "" {
		return RepoIdentifier{}, &custom_errors.ErrInvalidRepoFormat{Repo: r.Owner.Login + "/" + r.Name}
	}
	return RepoIdentifier{Owner: r.Owner.Login, Name: r.Name}, nil
}
