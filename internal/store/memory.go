package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"gitlab.com/dirk.krummacker/beetagged/internal/apperr"
	"gitlab.com/dirk.krummacker/beetagged/pkg/model"
)

// MemoryStore keeps contacts in process memory. It is used for tests and for running the service
// without a database.
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]*model.Contact
	byKey map[string]string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:  make(map[string]*model.Contact),
		byKey: make(map[string]string),
	}
}

func (s *MemoryStore) Name() string { return DriverMemory }

func (s *MemoryStore) FindAll(_ context.Context) ([]model.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(), nil
}

func (s *MemoryStore) FindByKey(_ context.Context, key string) (model.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byKey[key]
	if !ok {
		return model.Contact{}, apperr.ErrNotFound
	}
	return clone(s.byID[id]), nil
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (model.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[id]
	if !ok {
		return model.Contact{}, apperr.ErrNotFound
	}
	return clone(c), nil
}

func (s *MemoryStore) List(_ context.Context, offset, limit int) ([]model.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.sorted()
	if offset >= len(all) {
		return []model.Contact{}, nil
	}
	end := len(all)
	if limit >= 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID), nil
}

func (s *MemoryStore) Upsert(_ context.Context, c *model.Contact) error {
	if c.Key == "" {
		return fmt.Errorf("%w: contact key is required", apperr.ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byKey[c.Key]; ok {
		c.ID = id
	} else if c.ID == "" {
		c.ID = uuid.NewString()
	}
	stored := clone(c)
	s.byID[c.ID] = &stored
	s.byKey[c.Key] = c.ID
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return apperr.ErrNotFound
	}
	delete(s.byKey, c.Key)
	delete(s.byID, id)
	return nil
}

func (s *MemoryStore) Ping(_ context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

// sorted returns copies of all contacts, newest first. Ties are broken by ID so that pages are
// stable.
func (s *MemoryStore) sorted() []model.Contact {
	out := make([]model.Contact, 0, len(s.byID))
	for _, c := range s.byID {
		out = append(out, clone(c))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func clone(c *model.Contact) model.Contact {
	out := *c
	out.Tags = make([]model.Tag, len(c.Tags))
	copy(out.Tags, c.Tags)
	return out
}
