// internal/syncer/orchestrator.go
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	custom_errors "github-org-mirror/internal/errors"
	"github-org-mirror/internal/model"
	"github-org-mirror/internal/ratelimit"
	"github-org-mirror/internal/store"
)

// State is the lifecycle state of an Orchestrator.
type State string

const (
	StateIdle         State = "idle"
	StateInitializing State = "initializing"
	StateRunning      State = "running"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
)

// Stage names, in execution order.
const (
	StageOrganizations     = "organizations"
	StageRepositories      = "repositories"
	StageCommits           = "commits"
	StagePullRequests      = "pull_requests"
	StageIssues            = "issues"
	StageIssueHistory      = "issue_history"
	StageMembers           = "members"
	StageExtraRepositories = "extra_repositories"
)

const statusSaveTimeout = 10 * time.Second

type stage struct {
	name string
	run  func(ctx context.Context) error
}

// Orchestrator runs the sync pipeline for one user. It is not safe to run twice
// concurrently; callers reject users whose sync is already in progress.
type Orchestrator struct {
	userID    int64
	store     store.Store
	newClient ClientFactory
	opts      Options
	logger    *slog.Logger
	now       func() time.Time

	mu    sync.RWMutex
	state State
	stage string

	initialized bool
	user        model.User
	gh          GitHubAPI
	pager       *ratelimit.Limiter
	history     *ratelimit.Limiter
	watermark   *time.Time
	extraRepos  []RepoIdentifier
}

// NewOrchestrator creates an Orchestrator bound to userID.
func NewOrchestrator(userID int64, st store.Store, newClient ClientFactory, opts Options, logger *slog.Logger) (*Orchestrator, error) {
	extra, err := parseRepoIdentifiers(opts.ExtraRepos)
	if err != nil {
		return nil, err
	}
	if opts.PerPage <= 0 {
		opts.PerPage = DefaultOptions().PerPage
	}

	return &Orchestrator{
		userID:     userID,
		store:      st,
		newClient:  newClient,
		opts:       opts,
		logger:     logger.With("user_id", userID),
		now:        time.Now,
		state:      StateIdle,
		pager:      ratelimit.New(opts.PageDelay, opts.RateLimitBackoff),
		history:    ratelimit.New(opts.HistoryPageDelay, opts.RateLimitBackoff),
		extraRepos: extra,
	}, nil
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Stage returns the stage being executed, or the last one executed.
func (o *Orchestrator) Stage() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.stage
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

func (o *Orchestrator) setStage(name string) {
	o.mu.Lock()
	o.stage = name
	o.mu.Unlock()
}

// Sync initializes the orchestrator and runs the pipeline.
func (o *Orchestrator) Sync(ctx context.Context) error {
	if err := o.Initialize(ctx); err != nil {
		return err
	}
	return o.Run(ctx)
}

// Initialize loads the user, its credential and its last sync time.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	o.setState(StateInitializing)

	user, err := o.store.GetUser(ctx, o.userID)
	if errors.Is(err, store.ErrNotFound) {
		o.setState(StateFailed)
		return custom_errors.ErrUserNotFound
	}
	if err != nil {
		o.setState(StateFailed)
		return fmt.Errorf("load user: %w", err)
	}
	if user.AccessToken == "" {
		o.setState(StateFailed)
		return custom_errors.ErrMissingCredential
	}

	gh, err := o.newClient(user.AccessToken)
	if err != nil {
		o.setState(StateFailed)
		return fmt.Errorf("create github client: %w", err)
	}

	o.user = user
	o.gh = gh
	o.watermark = user.LastSyncedAt
	o.initialized = true
	return nil
}

// Run executes every stage in order. A failing stage is logged and the run moves on;
// the run itself only fails when it is cancelled or its status cannot be persisted.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.initialized {
		return custom_errors.ErrNotInitialized
	}

	syncType := model.SyncTypeFull
	if o.watermark != nil {
		syncType = model.SyncTypePartial
	}
	o.user.SyncInProgress = true
	o.user.LastSyncType = syncType
	if err := o.store.SaveUser(ctx, &o.user); err != nil {
		o.setState(StateFailed)
		return fmt.Errorf("mark sync in progress: %w", err)
	}

	o.setState(StateRunning)
	logger := o.logger.With("sync_type", syncType)
	logger.Info("Starting sync")
	started := o.now()

	failed := 0
	for _, st := range o.stages() {
		if err := ctx.Err(); err != nil {
			return o.abort(ctx, err)
		}
		o.setStage(st.name)
		if err := o.runStage(ctx, st); err != nil {
			failed++
			logger.Error("Sync stage failed", "stage", st.name, "error", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return o.abort(ctx, err)
	}

	previous := o.user.LastSyncedAt
	finished := o.now().UTC()
	o.user.SyncInProgress = false
	o.user.LastSyncedAt = &finished
	if err := o.store.SaveUser(ctx, &o.user); err != nil {
		o.user.LastSyncedAt = previous
		return o.abort(ctx, fmt.Errorf("save sync status: %w", err))
	}

	o.setState(StateCompleted)
	logger.Info("Sync completed", "failed_stages", failed, "duration", time.Since(started).String())
	return nil
}

func (o *Orchestrator) stages() []stage {
	return []stage{
		{StageOrganizations, o.syncOrganizations},
		{StageRepositories, o.syncRepositories},
		{StageCommits, o.syncCommits},
		{StagePullRequests, o.syncPullRequests},
		{StageIssues, o.syncIssues},
		{StageMembers, o.syncMembers},
		{StageExtraRepositories, o.syncExtraRepositories},
	}
}

// runStage isolates a stage: its error and any panic are returned as ErrStageFailed.
func (o *Orchestrator) runStage(ctx context.Context, st stage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Sync stage panicked", "stage", st.name, "panic", r, "stack", string(debug.Stack()))
			err = &custom_errors.ErrStageFailed{Stage: st.name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	o.logger.Info("Running sync stage", "stage", st.name)
	if err := st.run(ctx); err != nil {
		return &custom_errors.ErrStageFailed{Stage: st.name, Err: err}
	}
	return nil
}

// abort resets the in-progress flag without advancing the last sync time.
func (o *Orchestrator) abort(ctx context.Context, cause error) error {
	o.setState(StateFailed)
	o.user.SyncInProgress = false

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusSaveTimeout)
	defer cancel()
	if err := o.store.SaveUser(saveCtx, &o.user); err != nil {
		o.logger.Error("Failed to reset sync flag", "error", err)
	}

	o.logger.Error("Sync aborted", "stage", o.Stage(), "error", cause)
	return fmt.Errorf("sync aborted: %w", cause)
}
