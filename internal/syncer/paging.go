// internal/syncer/paging.go
package syncer

import (
	"context"
	"log/slog"
	"time"

	"github-org-mirror/internal/github"
	"github-org-mirror/internal/ratelimit"
	"github-org-mirror/internal/store"
)

// call paces a single GitHub request. A rate limited response gets one backoff and
// one retry of the same request; a second failure is returned as is.
func call[T any](ctx context.Context, lim *ratelimit.Limiter, logger *slog.Logger, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := lim.Pause(ctx); err != nil {
		return zero, err
	}
	v, err := fetch(ctx)
	if err == nil || !github.IsRateLimited(err) {
		return v, err
	}

	logger.Warn("Rate limited by GitHub, backing off", "backoff", lim.BackoffDuration().String(), "error", err)
	if err := lim.Backoff(ctx); err != nil {
		return zero, err
	}
	return fetch(ctx)
}

// pageFunc handles one page and reports how many raw items it held and whether
// paging should stop regardless of the page size.
type pageFunc func(ctx context.Context, page github.Page) (raw int, stop bool, err error)

// paginate walks pages from the first one while they come back full.
func (o *Orchestrator) paginate(ctx context.Context, fn pageFunc) error {
	for n := 1; ; n++ {
		raw, stop, err := fn(ctx, github.Page{Number: n, PerPage: o.opts.PerPage})
		if err != nil {
			return err
		}
		if stop || raw < o.opts.PerPage {
			return nil
		}
	}
}

// afterWatermark reports whether an item updated at t is newer than the last sync.
// Items without an update time are kept.
func (o *Orchestrator) afterWatermark(t *time.Time) bool {
	if o.watermark == nil || t == nil {
		return true
	}
	return t.After(*o.watermark)
}

// since is the "updated since" filter passed to endpoints that support it.
func (o *Orchestrator) since() time.Time {
	if o.watermark == nil {
		return time.Time{}
	}
	return *o.watermark
}

type entry[T any] struct {
	ID  int64
	Doc T
}

func loadEntries[T any](ctx context.Context, s store.DocumentStore, c store.Collection, f store.Filter) ([]entry[T], error) {
	records, err := s.Find(ctx, c, f, store.Window{})
	if err != nil {
		return nil, err
	}
	out := make([]entry[T], 0, len(records))
	for _, r := range records {
		doc, err := store.Decode[T](r)
		if err != nil {
			return nil, err
		}
		out = append(out, entry[T]{ID: r.ID, Doc: doc})
	}
	return out, nil
}
