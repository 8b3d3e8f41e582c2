// internal/store/memory/memory.go
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github-org-mirror/internal/model"
	"github-org-mirror/internal/store"
)

// Verify interface compliance.
var _ store.Store = (*Store)(nil)

type document struct {
	record store.Record
	body   any
}

// Store is an in-memory implementation of store.Store with the same keying and
// matching semantics as the postgres store.
type Store struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]model.User
	docs   map[store.Collection]map[store.Key]*document
	now    func() time.Time
}

// New creates an empty Store.
func New() *Store {
	s := &Store{
		users: make(map[int64]model.User),
		docs:  make(map[store.Collection]map[store.Key]*document),
		now:   time.Now,
	}
	for _, c := range store.Collections() {
		s.docs[c] = make(map[store.Key]*document)
	}
	return s
}

func (s *Store) GetUser(_ context.Context, id int64) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return model.User{}, store.ErrNotFound
	}
	return u, nil
}

func (s *Store) CreateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	now := s.now().UTC()
	user.ID = s.nextID
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = *user
	return nil
}

func (s *Store) SaveUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return store.ErrNotFound
	}
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = s.now().UTC()
	s.users[user.ID] = *user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.users, id)
	for _, docs := range s.docs {
		for k := range docs {
			if k.UserID == id {
				delete(docs, k)
			}
		}
	}
	return nil
}

func (s *Store) Upsert(_ context.Context, c store.Collection, key store.Key, doc any) (int64, error) {
	body, err := store.Marshal(doc)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.upsertLocked(c, key, body)
}

func (s *Store) BulkUpsert(_ context.Context, c store.Collection, ops []store.Op) error {
	bodies := make([]json.RawMessage, len(ops))
	for i, op := range ops {
		body, err := store.Marshal(op.Doc)
		if err != nil {
			return err
		}
		bodies[i] = body
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[c]; !ok {
		return fmt.Errorf("bulk upsert: %w", unknown(c))
	}
	for i, op := range ops {
		if _, err := s.upsertLocked(c, op.Key, bodies[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) upsertLocked(c store.Collection, key store.Key, body json.RawMessage) (int64, error) {
	docs, ok := s.docs[c]
	if !ok {
		return 0, unknown(c)
	}
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return 0, fmt.Errorf("decode document: %w", err)
	}

	now := s.now().UTC()
	if existing, ok := docs[key]; ok {
		existing.record.Doc = body
		existing.record.UpdatedAt = now
		existing.body = decoded
		return existing.record.ID, nil
	}

	s.nextID++
	docs[key] = &document{
		record: store.Record{ID: s.nextID, Key: key, Doc: body, CreatedAt: now, UpdatedAt: now},
		body:   decoded,
	}
	return s.nextID, nil
}

func (s *Store) FindOne(ctx context.Context, c store.Collection, f store.Filter) (store.Record, error) {
	records, err := s.Find(ctx, c, f, store.Window{Limit: 1})
	if err != nil {
		return store.Record{}, err
	}
	if len(records) == 0 {
		return store.Record{}, store.ErrNotFound
	}
	return records[0], nil
}

func (s *Store) Find(_ context.Context, c store.Collection, f store.Filter, w store.Window) ([]store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched, err := s.matchLocked(c, f)
	if err != nil {
		return nil, err
	}
	if w.Offset >= len(matched) {
		return []store.Record{}, nil
	}
	matched = matched[w.Offset:]
	if w.Limit > 0 && w.Limit < len(matched) {
		matched = matched[:w.Limit]
	}
	return matched, nil
}

func (s *Store) Count(_ context.Context, c store.Collection, f store.Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched, err := s.matchLocked(c, f)
	if err != nil {
		return 0, err
	}
	return len(matched), nil
}

// matchLocked returns the matching records ordered by id.
func (s *Store) matchLocked(c store.Collection, f store.Filter) ([]store.Record, error) {
	docs, ok := s.docs[c]
	if !ok {
		return nil, unknown(c)
	}

	var match any
	if len(f.Match) > 0 {
		b, err := json.Marshal(f.Match)
		if err != nil {
			return nil, fmt.Errorf("encode match filter: %w", err)
		}
		if err := json.Unmarshal(b, &match); err != nil {
			return nil, fmt.Errorf("decode match filter: %w", err)
		}
	}

	out := make([]store.Record, 0)
	for k, d := range docs {
		if f.UserID != 0 && k.UserID != f.UserID {
			continue
		}
		if f.ParentID != nil && k.ParentID != *f.ParentID {
			continue
		}
		if f.ExternalID != "" && k.ExternalID != f.ExternalID {
			continue
		}
		if match != nil && !contains(d.body, match) {
			continue
		}
		out = append(out, d.record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// contains mirrors the jsonb @> operator: objects match on a subset of keys, arrays
// match when every wanted element is contained in some element of have.
func contains(have, want any) bool {
	switch w := want.(type) {
	case map[string]any:
		h, ok := have.(map[string]any)
		if !ok {
			return false
		}
		for k, wv := range w {
			hv, ok := h[k]
			if !ok || !contains(hv, wv) {
				return false
			}
		}
		return true
	case []any:
		h, ok := have.([]any)
		if !ok {
			return false
		}
		for _, wv := range w {
			found := false
			for _, hv := range h {
				if contains(hv, wv) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	default:
		return have == want
	}
}

func unknown(c store.Collection) error {
	_, err := store.ParseCollection(string(c))
	return err
}
