// internal/syncer/orchestrator_test.go
package syncer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	custom_errors "github-org-mirror/internal/errors"
	"github-org-mirror/internal/github"
	"github-org-mirror/internal/model"
	"github-org-mirror/internal/store"
	"github-org-mirror/internal/store/memory"
)

var base = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func at(t time.Time) *time.Time {
	return &t
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOptions() Options {
	return Options{
		PerPage:          2,
		RateLimitBackoff: time.Millisecond,
		MemberCap:        3,
		ExtraPRCap:       3,
		ExtraIssueCap:    2,
	}
}

// seedFixture describes one organization with two repositories.
func seedFixture(gh *fakeGitHub) {
	gh.orgs = []model.Organization{{GithubID: 1, Login: "acme"}}
	gh.orgDetails["acme"] = model.Organization{GithubID: 1, Login: "acme", Name: "Acme Corp"}
	gh.repos["acme"] = []model.Repository{
		{GithubID: 10, Name: "api", FullName: "acme/api", Owner: model.Actor{Login: "acme"}},
		{GithubID: 11, Name: "web", FullName: "acme/web", Owner: model.Actor{Login: "acme"}},
	}
	gh.commits["acme/api"] = []model.Commit{{SHA: "a1"}, {SHA: "a2"}, {SHA: "a3"}}
	gh.commits["acme/web"] = []model.Commit{{SHA: "w1"}}
	gh.pulls["acme/api"] = []model.PullRequest{{GithubID: 100, Number: 1, Title: "feature", UpdatedAt: at(base)}}
	gh.pullCommits["acme/api#1"] = []model.Commit{{SHA: "p1"}}
	gh.issues["acme/api"] = []model.Issue{
		{GithubID: 200, Number: 5, Title: "bug", UpdatedAt: at(base)},
		{GithubID: 300, Number: 1, Title: "feature", UpdatedAt: at(base), IsPullRequest: true},
	}
	labeled := int64(9000)
	gh.timelines["acme/api#5"] = []model.TimelineEvent{
		{ID: &labeled, Event: "labeled", Actor: &model.Actor{Login: "bob"}, Label: &model.TimelineLabel{Name: "bug"}},
		{Event: "committed", SHA: "c1", Message: "fix"},
		{Event: "committed", SHA: "c1", Message: "fix"},
	}
	gh.members["acme"] = []model.Member{{GithubID: 1001, Login: "alice"}, {GithubID: 1002, Login: "bob"}}
	gh.users["alice"] = model.UserDetail{GithubID: 1001, Login: "alice", Name: "Alice", Company: "Acme"}
}

func createUser(t *testing.T, st store.Store, user model.User) model.User {
	t.Helper()
	if user.Login == "" {
		user.Login = "octocat"
	}
	require.NoError(t, st.CreateUser(context.Background(), &user))
	return user
}

func newTestOrchestrator(t *testing.T, st store.Store, gh *fakeGitHub, opts Options, userID int64) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(userID, st, gh.factory(), opts, testLogger())
	require.NoError(t, err)
	return o
}

func countAll(t *testing.T, st store.Store, userID int64) map[store.Collection]int {
	t.Helper()
	counts := make(map[store.Collection]int)
	for _, c := range store.Collections() {
		n, err := st.Count(context.Background(), c, store.Filter{UserID: userID})
		require.NoError(t, err)
		counts[c] = n
	}
	return counts
}

func TestOrchestrator_Initialize(t *testing.T) {
	ctx := context.Background()

	t.Run("fails for an unknown user", func(t *testing.T) {
		o := newTestOrchestrator(t, memory.New(), newFakeGitHub(), testOptions(), 42)

		err := o.Sync(ctx)

		assert.ErrorIs(t, err, custom_errors.ErrUserNotFound)
		assert.Equal(t, StateFailed, o.State())
	})

	t.Run("fails without a credential", func(t *testing.T) {
		st := memory.New()
		user := createUser(t, st, model.User{})
		o := newTestOrchestrator(t, st, newFakeGitHub(), testOptions(), user.ID)

		assert.ErrorIs(t, o.Initialize(ctx), custom_errors.ErrMissingCredential)
	})

	t.Run("run requires initialization", func(t *testing.T) {
		o := newTestOrchestrator(t, memory.New(), newFakeGitHub(), testOptions(), 1)

		assert.ErrorIs(t, o.Run(ctx), custom_errors.ErrNotInitialized)
		assert.Equal(t, StateIdle, o.State())
	})

	t.Run("rejects malformed curated repositories", func(t *testing.T) {
		opts := testOptions()
		opts.ExtraRepos = []string{"not-a-repo"}

		_, err := NewOrchestrator(1, memory.New(), newFakeGitHub().factory(), opts, testLogger())

		var formatErr *custom_errors.ErrInvalidRepoFormat
		assert.ErrorAs(t, err, &formatErr)
	})
}

func TestOrchestrator_FullThenPartial(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	gh := newFakeGitHub()
	seedFixture(gh)
	user := createUser(t, st, model.User{AccessToken: "tok"})

	first := newTestOrchestrator(t, st, gh, testOptions(), user.ID)
	first.now = func() time.Time { return base.Add(time.Hour) }
	require.NoError(t, first.Sync(ctx))

	assert.Equal(t, StateCompleted, first.State())
	got, err := st.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, got.SyncInProgress)
	assert.Equal(t, model.SyncTypeFull, got.LastSyncType)
	require.NotNil(t, got.LastSyncedAt)
	assert.True(t, base.Add(time.Hour).Equal(*got.LastSyncedAt))
	for _, key := range []string{"ListCommits acme/api", "ListCommits acme/web", "ListIssues acme/api"} {
		require.NotEmpty(t, gh.sinceOf(key), key)
		for _, since := range gh.sinceOf(key) {
			assert.True(t, since.IsZero(), "a full run lists %s without a since filter", key)
		}
	}

	second := newTestOrchestrator(t, st, gh, testOptions(), user.ID)
	second.now = func() time.Time { return base.Add(2 * time.Hour) }
	require.NoError(t, second.Sync(ctx))

	got, err = st.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SyncTypePartial, got.LastSyncType)
	assert.True(t, base.Add(2*time.Hour).Equal(*got.LastSyncedAt))
	since := gh.sinceOf("ListCommits acme/api")
	require.NotEmpty(t, since)
	assert.True(t, base.Add(time.Hour).Equal(since[len(since)-1]), "the partial run filters from the last sync")
}

func TestOrchestrator_Idempotent(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	gh := newFakeGitHub()
	seedFixture(gh)
	user := createUser(t, st, model.User{AccessToken: "tok"})

	require.NoError(t, newTestOrchestrator(t, st, gh, testOptions(), user.ID).Sync(ctx))
	first := countAll(t, st, user.ID)

	assert.Equal(t, map[store.Collection]int{
		store.Organizations:     1,
		store.Repositories:      2,
		store.Commits:           5,
		store.PullRequests:      1,
		store.Issues:            1,
		store.IssueHistory:      3,
		store.OrganizationUsers: 2,
	}, first)

	// a second full run
	u, err := st.GetUser(ctx, user.ID)
	require.NoError(t, err)
	u.LastSyncedAt = nil
	require.NoError(t, st.SaveUser(ctx, &u))
	require.NoError(t, newTestOrchestrator(t, st, gh, testOptions(), user.ID).Sync(ctx))
	assert.Equal(t, first, countAll(t, st, user.ID))

	// and an incremental one
	require.NoError(t, newTestOrchestrator(t, st, gh, testOptions(), user.ID).Sync(ctx))
	assert.Equal(t, first, countAll(t, st, user.ID))
}

func TestOrchestrator_PartialFailureIsolation(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	gh := newFakeGitHub()
	seedFixture(gh)
	gh.errs["ListCommits acme/api"] = []error{&github.APIError{StatusCode: 502, Message: "Bad Gateway"}}
	user := createUser(t, st, model.User{AccessToken: "tok"})

	require.NoError(t, newTestOrchestrator(t, st, gh, testOptions(), user.ID).Sync(ctx))

	for _, sha := range []string{"a1", "a2", "a3"} {
		_, err := st.FindOne(ctx, store.Commits, store.Filter{UserID: user.ID, ExternalID: sha})
		assert.ErrorIs(t, err, store.ErrNotFound, sha)
	}
	_, err := st.FindOne(ctx, store.Commits, store.Filter{UserID: user.ID, ExternalID: "w1"})
	assert.NoError(t, err)

	counts := countAll(t, st, user.ID)
	assert.Equal(t, 1, counts[store.PullRequests])
	assert.Equal(t, 1, counts[store.Issues])
	assert.Equal(t, 3, counts[store.IssueHistory])
	assert.Equal(t, []int{1}, gh.pagesOf("ListCommits acme/api"), "paging stops at the failed page")
}

func TestOrchestrator_IncrementalWatermark(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	gh := newFakeGitHub()
	seedFixture(gh)
	watermark := base.Add(time.Hour)
	gh.pulls["acme/api"] = []model.PullRequest{
		{GithubID: 101, Number: 11, UpdatedAt: at(watermark.Add(4 * time.Hour))},
		{GithubID: 102, Number: 12, UpdatedAt: at(watermark.Add(3 * time.Hour))},
		{GithubID: 103, Number: 13, UpdatedAt: at(watermark.Add(2 * time.Hour))},
		{GithubID: 104, Number: 14, UpdatedAt: at(watermark)},
		{GithubID: 105, Number: 15, UpdatedAt: at(watermark.Add(-time.Hour))},
	}
	user := createUser(t, st, model.User{AccessToken: "tok", LastSyncedAt: &watermark})

	require.NoError(t, newTestOrchestrator(t, st, gh, testOptions(), user.ID).Sync(ctx))

	assert.Equal(t, []int{1, 2}, gh.pagesOf("ListPulls acme/api"))
	pulls, err := store.FindAll[model.PullRequest](ctx, st, store.PullRequests, store.Filter{UserID: user.ID})
	require.NoError(t, err)
	require.Len(t, pulls, 3)
	for _, pr := range pulls {
		assert.True(t, pr.UpdatedAt.After(watermark), "pull request #%d", pr.Number)
	}
	assert.Zero(t, gh.callCount("ListPullCommits acme/api#14"))

	// issues are all older than the watermark
	assert.Zero(t, countAll(t, st, user.ID)[store.Issues])
	assert.Equal(t, []int{1}, gh.pagesOf("ListIssues acme/api"))

	// both filterable listings are asked only for changes since the watermark
	for _, key := range []string{"ListCommits acme/api", "ListCommits acme/web", "ListIssues acme/api"} {
		since := gh.sinceOf(key)
		require.NotEmpty(t, since, key)
		for _, got := range since {
			assert.True(t, watermark.Equal(got), "%s since %s", key, got)
		}
	}
}

func TestOrchestrator_IssuesSkipPullRequests(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	gh := newFakeGitHub()
	seedFixture(gh)
	user := createUser(t, st, model.User{AccessToken: "tok"})

	require.NoError(t, newTestOrchestrator(t, st, gh, testOptions(), user.ID).Sync(ctx))

	_, err := st.FindOne(ctx, store.Issues, store.Filter{UserID: user.ID, ExternalID: "200"})
	assert.NoError(t, err)
	_, err = st.FindOne(ctx, store.Issues, store.Filter{UserID: user.ID, ExternalID: "300"})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Zero(t, gh.callCount("ListIssueTimeline acme/api#1"))
}

func TestOrchestrator_IssueHistory(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	gh := newFakeGitHub()
	seedFixture(gh)
	user := createUser(t, st, model.User{AccessToken: "tok"})

	require.NoError(t, newTestOrchestrator(t, st, gh, testOptions(), user.ID).Sync(ctx))

	history, err := store.FindAll[model.IssueHistory](ctx, st, store.IssueHistory, store.Filter{UserID: user.ID})
	require.NoError(t, err)
	require.Len(t, history, 3)

	assert.Equal(t, "9000", history[0].EventID)
	assert.False(t, history[0].Surrogate)
	assert.Equal(t, `bob added label "bug"`, history[0].Summary)

	assert.True(t, history[1].Surrogate)
	assert.True(t, history[2].Surrogate)
	assert.NotEqual(t, history[1].EventID, history[2].EventID)
	assert.Equal(t, "committed c1: fix", history[1].Summary)

	issue, err := st.FindOne(ctx, store.Issues, store.Filter{UserID: user.ID, ExternalID: "200"})
	require.NoError(t, err)
	for _, h := range history {
		assert.Equal(t, issue.ID, h.IssueID)
	}
	assert.Equal(t, []int{1, 2}, gh.pagesOf("ListIssueTimeline acme/api#5"))
}

func TestOrchestrator_PullRequestCommits(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	gh := newFakeGitHub()
	seedFixture(gh)
	user := createUser(t, st, model.User{AccessToken: "tok"})

	require.NoError(t, newTestOrchestrator(t, st, gh, testOptions(), user.ID).Sync(ctx))

	pulls, err := store.FindAll[model.PullRequest](ctx, st, store.PullRequests, store.Filter{UserID: user.ID})
	require.NoError(t, err)
	require.Len(t, pulls, 1)
	assert.Equal(t, []model.CommitRef{{SHA: "p1"}}, pulls[0].Commits)

	_, err = st.FindOne(ctx, store.Commits, store.Filter{UserID: user.ID, ExternalID: "p1"})
	assert.NoError(t, err)
}

func TestOrchestrator_SharedCommitStoredOnce(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	gh := newFakeGitHub()
	seedFixture(gh)
	// web is a fork carrying api's history
	gh.commits["acme/web"] = []model.Commit{{SHA: "a1"}, {SHA: "w1"}}
	user := createUser(t, st, model.User{AccessToken: "tok"})

	require.NoError(t, newTestOrchestrator(t, st, gh, testOptions(), user.ID).Sync(ctx))

	n, err := st.Count(ctx, store.Commits, store.Filter{UserID: user.ID, ExternalID: "a1"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 5, countAll(t, st, user.ID)[store.Commits])

	web, err := st.FindOne(ctx, store.Repositories, store.Filter{UserID: user.ID, ExternalID: "11"})
	require.NoError(t, err)
	rec, err := st.FindOne(ctx, store.Commits, store.Filter{UserID: user.ID, ExternalID: "a1"})
	require.NoError(t, err)
	commit, err := store.Decode[model.Commit](rec)
	require.NoError(t, err)
	assert.Equal(t, web.ID, commit.RepositoryID, "the last repository to list a commit owns it")
}

func TestOrchestrator_MemberCap(t *testing.T) {
	ctx := context.Background()

	t.Run("stops at the cap and skips capped organizations entirely", func(t *testing.T) {
		st := memory.New()
		gh := newFakeGitHub()
		seedFixture(gh)
		gh.members["acme"] = []model.Member{
			{GithubID: 1001, Login: "alice"}, {GithubID: 1002, Login: "bob"},
			{GithubID: 1003, Login: "carol"}, {GithubID: 1004, Login: "dan"},
			{GithubID: 1005, Login: "erin"},
		}
		user := createUser(t, st, model.User{AccessToken: "tok"})

		require.NoError(t, newTestOrchestrator(t, st, gh, testOptions(), user.ID).Sync(ctx))
		assert.Equal(t, 3, countAll(t, st, user.ID)[store.OrganizationUsers])
		assert.Equal(t, 3, gh.callCount("GetUser"))
		assert.Equal(t, []int{1, 2}, gh.pagesOf("ListOrgMembers acme"))

		require.NoError(t, newTestOrchestrator(t, st, gh, testOptions(), user.ID).Sync(ctx))
		assert.Equal(t, 3, countAll(t, st, user.ID)[store.OrganizationUsers])
		assert.Equal(t, 3, gh.callCount("GetUser"), "no member detail calls once capped")
		assert.Equal(t, 2, gh.callCount("ListOrgMembers"), "no member listing once capped")
	})

	t.Run("known members are not looked up again", func(t *testing.T) {
		st := memory.New()
		gh := newFakeGitHub()
		seedFixture(gh)
		gh.members["acme"] = []model.Member{{GithubID: 1001, Login: "alice"}}
		user := createUser(t, st, model.User{AccessToken: "tok"})

		require.NoError(t, newTestOrchestrator(t, st, gh, testOptions(), user.ID).Sync(ctx))
		require.Equal(t, 1, gh.callCount("GetUser alice"))

		gh.members["acme"] = []model.Member{
			{GithubID: 1001, Login: "alice"}, {GithubID: 1002, Login: "bob"},
			{GithubID: 1003, Login: "carol"}, {GithubID: 1004, Login: "dan"},
		}
		require.NoError(t, newTestOrchestrator(t, st, gh, testOptions(), user.ID).Sync(ctx))

		assert.Equal(t, 1, gh.callCount("GetUser alice"))
		assert.Equal(t, 1, gh.callCount("GetUser bob"))
		assert.Equal(t, 1, gh.callCount("GetUser carol"))
		assert.Zero(t, gh.callCount("GetUser dan"))
		assert.Equal(t, 3, countAll(t, st, user.ID)[store.OrganizationUsers])

		members, err := store.FindAll[model.OrganizationUser](ctx, st, store.OrganizationUsers, store.Filter{
			UserID: user.ID,
			Match:  map[string]any{"login": "alice"},
		})
		require.NoError(t, err)
		require.Len(t, members, 1)
		assert.Equal(t, "Alice", members[0].Name)
		assert.Equal(t, "Acme", members[0].Company)
	})
}

// mockUserSaver fails selected status saves and passes the others to the memory store.
type mockUserSaver struct {
	*memory.Store
	mock.Mock
}

func (m *mockUserSaver) SaveUser(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	if err := args.Error(0); err != nil {
		return err
	}
	return m.Store.SaveUser(ctx, user)
}

func TestOrchestrator_StatusFlagLifecycle(t *testing.T) {
	t.Run("a failed stage still completes the run", func(t *testing.T) {
		ctx := context.Background()
		st := memory.New()
		gh := newFakeGitHub()
		seedFixture(gh)
		gh.hooks["ListCommits acme/api"] = func() { panic("unexpected payload") }
		gh.errs["ListCommits acme/web"] = []error{errors.New("connection reset")}
		user := createUser(t, st, model.User{AccessToken: "tok"})

		o := newTestOrchestrator(t, st, gh, testOptions(), user.ID)
		require.NoError(t, o.Sync(ctx))

		assert.Equal(t, StateCompleted, o.State())
		assert.Equal(t, StageExtraRepositories, o.Stage())
		got, err := st.GetUser(ctx, user.ID)
		require.NoError(t, err)
		assert.False(t, got.SyncInProgress)
		assert.NotNil(t, got.LastSyncedAt)

		counts := countAll(t, st, user.ID)
		assert.Equal(t, 1, counts[store.Organizations])
		assert.Equal(t, 2, counts[store.Repositories])
		assert.Equal(t, 1, counts[store.PullRequests], "later stages still run")
	})

	t.Run("an aborted run resets the flag without advancing the last sync", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		st := memory.New()
		gh := newFakeGitHub()
		seedFixture(gh)
		gh.hooks["ListCommits acme/api"] = cancel
		user := createUser(t, st, model.User{AccessToken: "tok"})

		o := newTestOrchestrator(t, st, gh, testOptions(), user.ID)
		err := o.Sync(ctx)

		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, StateFailed, o.State())
		assert.Equal(t, StageCommits, o.Stage())

		got, err := st.GetUser(context.Background(), user.ID)
		require.NoError(t, err)
		assert.False(t, got.SyncInProgress)
		assert.Nil(t, got.LastSyncedAt)

		counts := countAll(t, st, user.ID)
		assert.Equal(t, 1, counts[store.Organizations])
		assert.Equal(t, 2, counts[store.Repositories])
		assert.Zero(t, counts[store.PullRequests])
	})

	t.Run("a failed status save aborts the run", func(t *testing.T) {
		ctx := context.Background()
		st := &mockUserSaver{Store: memory.New()}
		gh := newFakeGitHub()
		seedFixture(gh)
		user := createUser(t, st, model.User{AccessToken: "tok"})

		st.On("SaveUser", mock.Anything, mock.Anything).Return(nil).Once()
		st.On("SaveUser", mock.Anything, mock.Anything).Return(errors.New("connection reset")).Once()
		st.On("SaveUser", mock.Anything, mock.Anything).Return(nil).Once()

		o := newTestOrchestrator(t, st, gh, testOptions(), user.ID)
		err := o.Sync(ctx)

		require.Error(t, err)
		assert.Equal(t, StateFailed, o.State())
		got, err := st.GetUser(ctx, user.ID)
		require.NoError(t, err)
		assert.False(t, got.SyncInProgress)
		assert.Nil(t, got.LastSyncedAt)
		st.AssertExpectations(t)
	})

	t.Run("the flag is visible while stages run", func(t *testing.T) {
		ctx := context.Background()
		st := memory.New()
		gh := newFakeGitHub()
		seedFixture(gh)
		user := createUser(t, st, model.User{AccessToken: "tok"})

		var during model.User
		gh.hooks["ListUserOrgs"] = func() {
			during, _ = st.GetUser(ctx, user.ID)
		}
		require.NoError(t, newTestOrchestrator(t, st, gh, testOptions(), user.ID).Sync(ctx))

		assert.True(t, during.SyncInProgress)
		assert.Equal(t, model.SyncTypeFull, during.LastSyncType)
	})
}

func TestOrchestrator_RateLimitRetry(t *testing.T) {
	ctx := context.Background()
	rateLimited := func() error {
		return &github.RateLimitError{StatusCode: 403, Message: "You have exceeded a secondary rate limit"}
	}

	t.Run("retries the same page once after backing off", func(t *testing.T) {
		st := memory.New()
		gh := newFakeGitHub()
		seedFixture(gh)
		gh.errs["ListOrgRepos acme"] = []error{rateLimited()}
		user := createUser(t, st, model.User{AccessToken: "tok"})

		require.NoError(t, newTestOrchestrator(t, st, gh, testOptions(), user.ID).Sync(ctx))

		assert.Equal(t, []int{1, 1, 2}, gh.pagesOf("ListOrgRepos acme"))
		assert.Equal(t, 2, countAll(t, st, user.ID)[store.Repositories])
	})

	t.Run("a second rate limit surfaces", func(t *testing.T) {
		st := memory.New()
		gh := newFakeGitHub()
		seedFixture(gh)
		gh.errs["ListOrgRepos acme"] = []error{rateLimited(), rateLimited()}
		user := createUser(t, st, model.User{AccessToken: "tok"})

		o := newTestOrchestrator(t, st, gh, testOptions(), user.ID)
		require.NoError(t, o.Sync(ctx))

		assert.Equal(t, []int{1, 1}, gh.pagesOf("ListOrgRepos acme"))
		assert.Zero(t, countAll(t, st, user.ID)[store.Repositories])
		assert.Equal(t, StateCompleted, o.State())
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		st := memory.New()
		gh := newFakeGitHub()
		seedFixture(gh)
		gh.errs["ListOrgRepos acme"] = []error{&github.APIError{StatusCode: 500}}
		user := createUser(t, st, model.User{AccessToken: "tok"})

		require.NoError(t, newTestOrchestrator(t, st, gh, testOptions(), user.ID).Sync(ctx))

		assert.Equal(t, []int{1}, gh.pagesOf("ListOrgRepos acme"))
	})
}

func TestOrchestrator_ExtraRepositories(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	gh := newFakeGitHub()
	gh.repoDetails["oss/lib"] = model.Repository{GithubID: 500, Name: "lib", FullName: "oss/lib", Owner: model.Actor{Login: "oss"}}
	gh.repoDetails["oss/app"] = model.Repository{GithubID: 501, Name: "app", FullName: "oss/app", Owner: model.Actor{Login: "oss"}}
	gh.pulls["oss/lib"] = []model.PullRequest{{GithubID: 700, Number: 1}, {GithubID: 701, Number: 2}}
	gh.pulls["oss/app"] = []model.PullRequest{{GithubID: 710, Number: 1}, {GithubID: 711, Number: 2}}
	gh.issues["oss/lib"] = []model.Issue{{GithubID: 600, Number: 3}, {GithubID: 601, Number: 4}, {GithubID: 602, Number: 5}}
	gh.issues["oss/app"] = []model.Issue{{GithubID: 610, Number: 3}}
	gh.contributors["oss/lib"] = []model.Member{{GithubID: 1, Login: "c1"}, {GithubID: 2, Login: "c2"}}
	gh.contributors["oss/app"] = []model.Member{{GithubID: 3, Login: "c3"}, {GithubID: 4, Login: "c4"}}

	opts := testOptions()
	opts.ExtraRepos = []string{"oss/lib", "oss/app"}
	user := createUser(t, st, model.User{AccessToken: "tok"})

	require.NoError(t, newTestOrchestrator(t, st, gh, opts, user.ID).Sync(ctx))

	rec, err := st.FindOne(ctx, store.Organizations, store.Filter{UserID: user.ID, Match: map[string]any{"synthetic": true}})
	require.NoError(t, err)
	org, err := store.Decode[model.Organization](rec)
	require.NoError(t, err)
	assert.Equal(t, model.OpenSourceOrgID, org.GithubID)
	assert.Equal(t, model.OpenSourceOrgLogin, org.Login)

	repos, err := st.Count(ctx, store.Repositories, store.Filter{UserID: user.ID, ParentID: store.Parent(rec.ID)})
	require.NoError(t, err)
	assert.Equal(t, 2, repos)

	counts := countAll(t, st, user.ID)
	assert.Equal(t, 3, counts[store.PullRequests], "pull requests are capped across the list")
	assert.Equal(t, 2, counts[store.Issues], "issues are capped across the list")
	assert.Equal(t, 3, counts[store.OrganizationUsers], "contributors share the member cap")
	assert.Zero(t, gh.callCount("ListIssues oss/app"))
	assert.Zero(t, gh.callCount("ListPullCommits"))
	assert.Zero(t, gh.callCount("GetUser"))
	assert.Zero(t, gh.callCount("ListCommits"), "curated repositories are not part of the commit stage")
	assert.Equal(t, 1, gh.callCount("ListIssueTimeline oss/lib#3"))

	require.NoError(t, newTestOrchestrator(t, st, gh, opts, user.ID).Sync(ctx))
	assert.Equal(t, 2, gh.callCount("GetRepository"), "curated stage runs once")
	assert.Equal(t, counts, countAll(t, st, user.ID))
}
