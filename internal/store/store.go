// internal/store/store.go
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	custom_errors "github-org-mirror/internal/errors"
	"github-org-mirror/internal/model"
)

// ErrNotFound is returned when no record matches a lookup.
var ErrNotFound = errors.New("store: record not found")

// Collection names one of the mirrored entity kinds.
type Collection string

const (
	Organizations     Collection = "organizations"
	Repositories      Collection = "repositories"
	Commits           Collection = "commits"
	PullRequests      Collection = "pull_requests"
	Issues            Collection = "issues"
	IssueHistory      Collection = "issue_history"
	OrganizationUsers Collection = "organization_users"
)

var registry = []Collection{
	Organizations,
	Repositories,
	Commits,
	PullRequests,
	Issues,
	IssueHistory,
	OrganizationUsers,
}

// Collections returns every collection known to the sync pipeline, in sync order.
func Collections() []Collection {
	out := make([]Collection, len(registry))
	copy(out, registry)
	return out
}

// ParseCollection resolves a collection by name.
func ParseCollection(name string) (Collection, error) {
	for _, c := range registry {
		if string(c) == name {
			return c, nil
		}
	}
	return "", &custom_errors.ErrUnknownCollection{Name: name}
}

// Key is the natural key of a document: the provider's identifier scoped to the owning
// user and, where the entity is nested, to its parent document.
type Key struct {
	UserID     int64
	ExternalID string
	ParentID   int64
}

// IDKey builds a Key from a numeric provider identifier.
func IDKey(userID, externalID, parentID int64) Key {
	return Key{UserID: userID, ExternalID: strconv.FormatInt(externalID, 10), ParentID: parentID}
}

// Filter selects documents. Zero fields do not constrain the result.
// Match is a JSON containment filter over the document body.
type Filter struct {
	UserID     int64
	ParentID   *int64
	ExternalID string
	Match      map[string]any
}

// Parent returns a pointer usable as Filter.ParentID.
func Parent(id int64) *int64 {
	return &id
}

// Window bounds a Find result. A zero Limit means no limit.
type Window struct {
	Offset int
	Limit  int
}

// Record is a stored document.
type Record struct {
	ID        int64
	Key       Key
	Doc       json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Op is a single upsert of a bulk operation.
type Op struct {
	Key Key
	Doc any
}

// UserStore persists the owners of mirrored data.
type UserStore interface {
	GetUser(ctx context.Context, id int64) (model.User, error)
	CreateUser(ctx context.Context, user *model.User) error
	SaveUser(ctx context.Context, user *model.User) error
	ListUsers(ctx context.Context) ([]model.User, error)
	// DeleteUser removes the user and every document owned by it.
	DeleteUser(ctx context.Context, id int64) error
}

// DocumentStore is the generic upsert-by-natural-key layer used by every sync stage.
type DocumentStore interface {
	// Upsert inserts doc under key or replaces the stored document. It returns the
	// internal id of the record, which is stable across replacements.
	Upsert(ctx context.Context, c Collection, key Key, doc any) (int64, error)
	BulkUpsert(ctx context.Context, c Collection, ops []Op) error
	FindOne(ctx context.Context, c Collection, f Filter) (Record, error)
	Find(ctx context.Context, c Collection, f Filter, w Window) ([]Record, error)
	Count(ctx context.Context, c Collection, f Filter) (int, error)
}

// Store is the full persistence contract of the service.
type Store interface {
	UserStore
	DocumentStore
}

// Decode unmarshals the document body of r.
func Decode[T any](r Record) (T, error) {
	var v T
	if err := json.Unmarshal(r.Doc, &v); err != nil {
		return v, fmt.Errorf("decode %s document: %w", r.Key.ExternalID, err)
	}
	return v, nil
}

// FindAll returns every document matching f decoded as T.
func FindAll[T any](ctx context.Context, s DocumentStore, c Collection, f Filter) ([]T, error) {
	records, err := s.Find(ctx, c, f, Window{})
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(records))
	for _, r := range records {
		v, err := Decode[T](r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Marshal encodes a document body, passing raw JSON through unchanged apart from
// NUL characters, which are dropped because postgres jsonb cannot hold them.
func Marshal(doc any) (json.RawMessage, error) {
	switch d := doc.(type) {
	case json.RawMessage:
		return stripNUL(d), nil
	case []byte:
		return stripNUL(d), nil
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return stripNUL(b), nil
}

var escapedNUL = []byte(`\u0000`)

// stripNUL removes \u0000 escapes from encoded JSON. Escape pairs are consumed
// whole so an escaped backslash followed by "u0000" text is kept.
func stripNUL(b []byte) json.RawMessage {
	if !bytes.Contains(b, escapedNUL) {
		return b
	}
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] != '\\' || i+1 >= len(b) {
			out = append(out, b[i])
			continue
		}
		if bytes.HasPrefix(b[i:], escapedNUL) {
			i += len(escapedNUL) - 1
			continue
		}
		out = append(out, b[i], b[i+1])
		i++
	}
	return out
}
