// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrUserNotFound is returned when a sync is requested for an unknown user.
	ErrUserNotFound = errors.New("user not found")

	// ErrMissingCredential is returned when a user has no GitHub access token.
	ErrMissingCredential = errors.New("user has no github access token")

	// ErrSyncInProgress is returned when a sync is triggered for a user that is already syncing.
	ErrSyncInProgress = errors.New("sync is already in progress for this user")

	// ErrSchedulerNotRunning is returned when a sync is triggered before the scheduler started
	// or after it stopped.
	ErrSchedulerNotRunning = errors.New("sync scheduler is not running")

	// ErrNotInitialized is returned when a run is attempted before initialization succeeded.
	ErrNotInitialized = errors.New("sync orchestrator is not initialized")
)

// ErrInvalidRepoFormat is returned when a repository string in the config is not in 'owner/name' format.
type ErrInvalidRepoFormat struct {
	Repo string
}

func (e *ErrInvalidRepoFormat) Error() string {
	return fmt.Sprintf("invalid repository format: %q, expected 'owner/name'", e.Repo)
}

// ErrStageFailed wraps the failure of a single sync stage.
type ErrStageFailed struct {
	Stage string
	Err   error
}

func (e *ErrStageFailed) Error() string {
	return fmt.Sprintf("sync stage %q failed: %v", e.Stage, e.Err)
}

func (e *ErrStageFailed) Unwrap() error {
	return e.Err
}

// ErrUnknownCollection is returned when a collection name is not part of the registry.
type ErrUnknownCollection struct {
	Name string
}

func (e *ErrUnknownCollection) Error() string {
	return fmt.Sprintf("unknown collection %q", e.Name)
}
