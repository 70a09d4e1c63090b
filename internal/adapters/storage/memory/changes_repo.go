package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"epetcare/internal/domain/changes"
)

type changeRepo struct {
	mu   sync.RWMutex
	byID map[string]changes.OfflineChange
}

func NewChangeRepo() changes.Repository {
	return &changeRepo{byID: make(map[string]changes.OfflineChange)}
}

func (r *changeRepo) Create(ctx context.Context, c changes.OfflineChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[c.ID]; exists {
		return errors.New("offline change already exists")
	}
	if c.ClientID != "" {
		if _, err := r.byClientLocked(c.CreatedBy, c.ClientID); err == nil {
			return changes.ErrDuplicate
		}
	}
	r.byID[c.ID] = c
	return nil
}

func (r *changeRepo) Update(ctx context.Context, c changes.OfflineChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[c.ID]; !exists {
		return changes.ErrNotFound
	}
	r.byID[c.ID] = c
	return nil
}

func (r *changeRepo) GetByID(ctx context.Context, id string) (changes.OfflineChange, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byID[id]
	if !ok {
		return changes.OfflineChange{}, changes.ErrNotFound
	}
	return c, nil
}

func (r *changeRepo) GetByClientID(ctx context.Context, createdBy, clientID string) (changes.OfflineChange, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byClientLocked(createdBy, clientID)
}

func (r *changeRepo) byClientLocked(createdBy, clientID string) (changes.OfflineChange, error) {
	for _, c := range r.byID {
		if c.ClientID != "" && c.ClientID == clientID && c.CreatedBy == createdBy {
			return c, nil
		}
	}
	return changes.OfflineChange{}, changes.ErrNotFound
}

func (r *changeRepo) List(ctx context.Context, f changes.ListFilter) ([]changes.OfflineChange, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]changes.OfflineChange, 0)
	for _, c := range r.byID {
		if f.CreatedBy != "" && c.CreatedBy != f.CreatedBy {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
