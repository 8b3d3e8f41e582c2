// internal/syncer/fake_test.go
package syncer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github-org-mirror/internal/github"
	"github-org-mirror/internal/model"
)

// fakeGitHub serves canned GitHub data page by page and records every call.
type fakeGitHub struct {
	mu sync.Mutex

	orgs         []model.Organization
	orgDetails   map[string]model.Organization
	repos        map[string][]model.Repository
	members      map[string][]model.Member
	users        map[string]model.UserDetail
	repoDetails  map[string]model.Repository
	commits      map[string][]model.Commit
	pulls        map[string][]model.PullRequest
	pullCommits  map[string][]model.Commit
	issues       map[string][]model.Issue
	timelines    map[string][]model.TimelineEvent
	contributors map[string][]model.Member

	// errs holds errors returned, in order, by the next calls for a key such as
	// "ListCommits acme/api". Hooks run before the call and may panic or cancel.
	errs  map[string][]error
	hooks map[string]func()

	calls map[string]int
	pages map[string][]int
	since map[string][]time.Time
}

func newFakeGitHub() *fakeGitHub {
	return &fakeGitHub{
		orgDetails:   map[string]model.Organization{},
		repos:        map[string][]model.Repository{},
		members:      map[string][]model.Member{},
		users:        map[string]model.UserDetail{},
		repoDetails:  map[string]model.Repository{},
		commits:      map[string][]model.Commit{},
		pulls:        map[string][]model.PullRequest{},
		pullCommits:  map[string][]model.Commit{},
		issues:       map[string][]model.Issue{},
		timelines:    map[string][]model.TimelineEvent{},
		contributors: map[string][]model.Member{},
		errs:         map[string][]error{},
		hooks:        map[string]func(){},
		calls:        map[string]int{},
		pages:        map[string][]int{},
		since:        map[string][]time.Time{},
	}
}

func (f *fakeGitHub) factory() ClientFactory {
	return func(token string) (GitHubAPI, error) {
		return f, nil
	}
}

// record registers a call and returns the scripted error for it, if any.
func (f *fakeGitHub) record(key string, page int) error {
	f.mu.Lock()
	f.calls[key]++
	if op, _, found := strings.Cut(key, " "); found {
		f.calls[op]++
	}
	if page > 0 {
		f.pages[key] = append(f.pages[key], page)
	}
	hook := f.hooks[key]
	var err error
	if queued := f.errs[key]; len(queued) > 0 {
		err = queued[0]
		f.errs[key] = queued[1:]
	}
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return err
}

func (f *fakeGitHub) callCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *fakeGitHub) pagesOf(key string) []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.pages[key]...)
}

// recordSince logs the "updated since" filter a listing was called with.
func (f *fakeGitHub) recordSince(key string, since time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.since[key] = append(f.since[key], since)
}

func (f *fakeGitHub) sinceOf(key string) []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.since[key]...)
}

func pageOf[T any](items []T, page github.Page) []T {
	start := (page.Number - 1) * page.PerPage
	if start >= len(items) {
		return []T{}
	}
	end := start + page.PerPage
	if end > len(items) {
		end = len(items)
	}
	return append([]T(nil), items[start:end]...)
}

func (f *fakeGitHub) ListUserOrgs(_ context.Context, page github.Page) ([]model.Organization, error) {
	if err := f.record("ListUserOrgs", page.Number); err != nil {
		return nil, err
	}
	return pageOf(f.orgs, page), nil
}

func (f *fakeGitHub) GetOrganization(_ context.Context, login string) (model.Organization, error) {
	if err := f.record("GetOrganization "+login, 0); err != nil {
		return model.Organization{}, err
	}
	if org, ok := f.orgDetails[login]; ok {
		return org, nil
	}
	for _, org := range f.orgs {
		if org.Login == login {
			return org, nil
		}
	}
	return model.Organization{}, &github.APIError{StatusCode: 404, Message: "Not Found"}
}

func (f *fakeGitHub) ListOrgRepos(_ context.Context, org string, page github.Page) ([]model.Repository, error) {
	if err := f.record("ListOrgRepos "+org, page.Number); err != nil {
		return nil, err
	}
	return pageOf(f.repos[org], page), nil
}

func (f *fakeGitHub) ListOrgMembers(_ context.Context, org string, page github.Page) ([]model.Member, error) {
	if err := f.record("ListOrgMembers "+org, page.Number); err != nil {
		return nil, err
	}
	return pageOf(f.members[org], page), nil
}

func (f *fakeGitHub) GetUser(_ context.Context, login string) (model.UserDetail, error) {
	if err := f.record("GetUser "+login, 0); err != nil {
		return model.UserDetail{}, err
	}
	if u, ok := f.users[login]; ok {
		return u, nil
	}
	return model.UserDetail{Login: login}, nil
}

func (f *fakeGitHub) GetRepository(_ context.Context, owner, name string) (model.Repository, error) {
	full := owner + "/" + name
	if err := f.record("GetRepository "+full, 0); err != nil {
		return model.Repository{}, err
	}
	if r, ok := f.repoDetails[full]; ok {
		return r, nil
	}
	return model.Repository{}, &github.APIError{StatusCode: 404, Message: "Not Found"}
}

func (f *fakeGitHub) ListCommits(_ context.Context, owner, name string, since time.Time, page github.Page) ([]model.Commit, error) {
	full := owner + "/" + name
	f.recordSince("ListCommits "+full, since)
	if err := f.record("ListCommits "+full, page.Number); err != nil {
		return nil, err
	}
	return pageOf(f.commits[full], page), nil
}

func (f *fakeGitHub) ListPulls(_ context.Context, owner, name string, page github.Page) ([]model.PullRequest, error) {
	full := owner + "/" + name
	if err := f.record("ListPulls "+full, page.Number); err != nil {
		return nil, err
	}
	return pageOf(f.pulls[full], page), nil
}

func (f *fakeGitHub) ListPullCommits(_ context.Context, owner, name string, number int, page github.Page) ([]model.Commit, error) {
	key := fmt.Sprintf("%s/%s#%d", owner, name, number)
	if err := f.record("ListPullCommits "+key, page.Number); err != nil {
		return nil, err
	}
	return pageOf(f.pullCommits[key], page), nil
}

func (f *fakeGitHub) ListIssues(_ context.Context, owner, name string, since time.Time, page github.Page) ([]model.Issue, error) {
	full := owner + "/" + name
	f.recordSince("ListIssues "+full, since)
	if err := f.record("ListIssues "+full, page.Number); err != nil {
		return nil, err
	}
	return pageOf(f.issues[full], page), nil
}

func (f *fakeGitHub) ListIssueTimeline(_ context.Context, owner, name string, number int, page github.Page) ([]model.TimelineEvent, error) {
	key := fmt.Sprintf("%s/%s#%d", owner, name, number)
	if err := f.record("ListIssueTimeline "+key, page.Number); err != nil {
		return nil, err
	}
	return pageOf(f.timelines[key], page), nil
}

func (f *fakeGitHub) ListContributors(_ context.Context, owner, name string, page github.Page) ([]model.Member, error) {
	full := owner + "/" + name
	if err := f.record("ListContributors "+full, page.Number); err != nil {
		return nil, err
	}
	return pageOf(f.contributors[full], page), nil
}

var _ GitHubAPI = (*fakeGitHub)(nil)
