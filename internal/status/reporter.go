// internal/status/reporter.go
package status

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github-org-mirror/internal/model"
)

// UserStatus is the sync status of a single user.
type UserStatus struct {
	UserID         int64          `json:"userId"`
	Login          string         `json:"login"`
	SyncInProgress bool           `json:"syncInProgress"`
	LastSyncedAt   *time.Time     `json:"lastSyncedAt"`
	SyncType       model.SyncType `json:"syncType,omitempty"`
}

// UserLister lists every registered user.
type UserLister interface {
	ListUsers(ctx context.Context) ([]model.User, error)
}

// Reporter answers "what is syncing, and when did each user last sync". It never
// writes to the store.
type Reporter struct {
	users  UserLister
	logger *slog.Logger
}

func NewReporter(users UserLister, logger *slog.Logger) *Reporter {
	return &Reporter{users: users, logger: logger}
}

// GetStatus returns one entry per registered user, in store order.
func (r *Reporter) GetStatus(ctx context.Context) ([]UserStatus, error) {
	users, err := r.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	out := make([]UserStatus, 0, len(users))
	running := 0
	for _, u := range users {
		if u.SyncInProgress {
			running++
		}
		out = append(out, UserStatus{
			UserID:         u.ID,
			Login:          u.Login,
			SyncInProgress: u.SyncInProgress,
			LastSyncedAt:   u.LastSyncedAt,
			SyncType:       u.LastSyncType,
		})
	}
	r.logger.Debug("Sync status collected", "users", len(out), "in_progress", running)
	return out, nil
}
