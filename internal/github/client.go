// internal/github/client.go
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	"github-org-mirror/internal/model"
)

// DefaultTimeout is the HTTP timeout applied to every GitHub request.
const DefaultTimeout = 30 * time.Second

// Page selects one page of a paginated listing.
type Page struct {
	Number  int
	PerPage int
}

func (p Page) listOptions() github.ListOptions {
	return github.ListOptions{Page: p.Number, PerPage: p.PerPage}
}

// Client is a wrapper around the go-github client.
// Every List method fetches exactly one page; paging and retries are the caller's concern.
type Client struct {
	gh     *github.Client
	logger *slog.Logger
}

// Option customizes a Client.
type Option func(*Client) error

// WithBaseURL points the client at a different API root, e.g. GitHub Enterprise or a test server.
func WithBaseURL(rawURL string) Option {
	return func(c *Client) error {
		if rawURL == "" {
			return nil
		}
		if !strings.HasSuffix(rawURL, "/") {
			rawURL += "/"
		}
		u, err := url.Parse(rawURL)
		if err != nil {
			return fmt.Errorf("parse github base url: %w", err)
		}
		c.gh.BaseURL = u
		c.gh.UploadURL = u
		return nil
	}
}

// NewClient creates and configures a new Client instance.
// The provided token is sent as a bearer token on every request.
func NewClient(token string, logger *slog.Logger, opts ...Option) (*Client, error) {
	ctx := context.Background()
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)
	tc.Timeout = DefaultTimeout

	c := &Client{
		gh:     github.NewClient(tc),
		logger: logger,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Factory builds a Client for a user's access token.
type Factory func(token string) (*Client, error)

// NewFactory returns a Factory sharing the logger and options.
func NewFactory(logger *slog.Logger, opts ...Option) Factory {
	return func(token string) (*Client, error) {
		return NewClient(token, logger, opts...)
	}
}

// ListUserOrgs lists the organizations the authenticated user belongs to.
func (c *Client) ListUserOrgs(ctx context.Context, page Page) ([]model.Organization, error) {
	opts := page.listOptions()
	orgs, _, err := c.gh.Organizations.List(ctx, "", &opts)
	if err != nil {
		return nil, wrapError(err, "list user orgs")
	}
	out := make([]model.Organization, 0, len(orgs))
	for _, o := range orgs {
		out = append(out, toInternalOrganization(o))
	}
	return out, nil
}

// GetOrganization fetches the detailed organization record.
func (c *Client) GetOrganization(ctx context.Context, login string) (model.Organization, error) {
	org, _, err := c.gh.Organizations.Get(ctx, login)
	if err != nil {
		return model.Organization{}, wrapError(err, "get org")
	}
	return toInternalOrganization(org), nil
}

// ListOrgRepos lists every repository of an organization.
func (c *Client) ListOrgRepos(ctx context.Context, org string, page Page) ([]model.Repository, error) {
	c.logger.Debug("Fetching org repositories page", "org", org, "page", page.Number)
	repos, _, err := c.gh.Repositories.ListByOrg(ctx, org, &github.RepositoryListByOrgOptions{
		Type:        "all",
		ListOptions: page.listOptions(),
	})
	if err != nil {
		return nil, wrapError(err, "list org repos")
	}
	out := make([]model.Repository, 0, len(repos))
	for _, r := range repos {
		out = append(out, toInternalRepository(r))
	}
	return out, nil
}

// ListOrgMembers lists the members of an organization.
func (c *Client) ListOrgMembers(ctx context.Context, org string, page Page) ([]model.Member, error) {
	users, _, err := c.gh.Organizations.ListMembers(ctx, org, &github.ListMembersOptions{
		ListOptions: page.listOptions(),
	})
	if err != nil {
		return nil, wrapError(err, "list org members")
	}
	out := make([]model.Member, 0, len(users))
	for _, u := range users {
		out = append(out, model.Member{
			GithubID:  u.GetID(),
			Login:     u.GetLogin(),
			AvatarURL: u.GetAvatarURL(),
			URL:       u.GetHTMLURL(),
		})
	}
	return out, nil
}

// GetUser fetches the public profile of a GitHub account.
func (c *Client) GetUser(ctx context.Context, login string) (model.UserDetail, error) {
	u, _, err := c.gh.Users.Get(ctx, login)
	if err != nil {
		return model.UserDetail{}, wrapError(err, "get user")
	}
	return model.UserDetail{
		GithubID:  u.GetID(),
		Login:     u.GetLogin(),
		Name:      u.GetName(),
		AvatarURL: u.GetAvatarURL(),
		URL:       u.GetHTMLURL(),
		Company:   u.GetCompany(),
		Location:  u.GetLocation(),
	}, nil
}

// GetRepository fetches repository details and translates them to our internal model.
func (c *Client) GetRepository(ctx context.Context, owner, name string) (model.Repository, error) {
	repo, _, err := c.gh.Repositories.Get(ctx, owner, name)
	if err != nil {
		return model.Repository{}, wrapError(err, "get repo")
	}
	return toInternalRepository(repo), nil
}

// ListCommits lists commits of a repository, optionally only those after since.
func (c *Client) ListCommits(ctx context.Context, owner, name string, since time.Time, page Page) ([]model.Commit, error) {
	c.logger.Debug("Fetching commits page", "owner", owner, "repo", name, "page", page.Number)
	commits, _, err := c.gh.Repositories.ListCommits(ctx, owner, name, &github.CommitsListOptions{
		Since:       since,
		ListOptions: page.listOptions(),
	})
	if err != nil {
		return nil, wrapError(err, "list commits")
	}
	out := make([]model.Commit, 0, len(commits))
	for _, commit := range commits {
		out = append(out, toInternalCommit(commit))
	}
	return out, nil
}

// ListPulls lists pull requests of every state, most recently updated first.
func (c *Client) ListPulls(ctx context.Context, owner, name string, page Page) ([]model.PullRequest, error) {
	c.logger.Debug("Fetching pull requests page", "owner", owner, "repo", name, "page", page.Number)
	pulls, _, err := c.gh.PullRequests.List(ctx, owner, name, &github.PullRequestListOptions{
		State:       "all",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: page.listOptions(),
	})
	if err != nil {
		return nil, wrapError(err, "list pulls")
	}
	out := make([]model.PullRequest, 0, len(pulls))
	for _, pr := range pulls {
		out = append(out, toInternalPullRequest(pr))
	}
	return out, nil
}

// ListPullCommits lists the commits that make up a pull request.
func (c *Client) ListPullCommits(ctx context.Context, owner, name string, number int, page Page) ([]model.Commit, error) {
	opts := page.listOptions()
	commits, _, err := c.gh.PullRequests.ListCommits(ctx, owner, name, number, &opts)
	if err != nil {
		return nil, wrapError(err, "list pull commits")
	}
	out := make([]model.Commit, 0, len(commits))
	for _, commit := range commits {
		out = append(out, toInternalCommit(commit))
	}
	return out, nil
}

// ListIssues lists issues of every state, most recently updated first. The listing also
// contains pull requests; those are returned with IsPullRequest set.
func (c *Client) ListIssues(ctx context.Context, owner, name string, since time.Time, page Page) ([]model.Issue, error) {
	c.logger.Debug("Fetching issues page", "owner", owner, "repo", name, "page", page.Number)
	issues, _, err := c.gh.Issues.ListByRepo(ctx, owner, name, &github.IssueListByRepoOptions{
		State:       "all",
		Sort:        "updated",
		Direction:   "desc",
		Since:       since,
		ListOptions: page.listOptions(),
	})
	if err != nil {
		return nil, wrapError(err, "list issues")
	}
	out := make([]model.Issue, 0, len(issues))
	for _, issue := range issues {
		out = append(out, toInternalIssue(issue))
	}
	return out, nil
}

// ListIssueTimeline lists the raw timeline events of an issue.
func (c *Client) ListIssueTimeline(ctx context.Context, owner, name string, number int, page Page) ([]model.TimelineEvent, error) {
	opts := page.listOptions()
	events, _, err := c.gh.Issues.ListIssueTimeline(ctx, owner, name, number, &opts)
	if err != nil {
		return nil, wrapError(err, "list issue timeline")
	}
	out := make([]model.TimelineEvent, 0, len(events))
	for _, ev := range events {
		out = append(out, toInternalTimelineEvent(ev))
	}
	return out, nil
}

// ListContributors lists the contributors of a repository.
func (c *Client) ListContributors(ctx context.Context, owner, name string, page Page) ([]model.Member, error) {
	contributors, _, err := c.gh.Repositories.ListContributors(ctx, owner, name, &github.ListContributorsOptions{
		ListOptions: page.listOptions(),
	})
	if err != nil {
		return nil, wrapError(err, "list contributors")
	}
	out := make([]model.Member, 0, len(contributors))
	for _, ct := range contributors {
		out = append(out, model.Member{
			GithubID:      ct.GetID(),
			Login:         ct.GetLogin(),
			AvatarURL:     ct.GetAvatarURL(),
			URL:           ct.GetHTMLURL(),
			Contributions: ct.GetContributions(),
		})
	}
	return out, nil
}
