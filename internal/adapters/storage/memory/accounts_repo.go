package memory

import (
	"context"
	"errors"
	"strings"
	"sync"

	"epetcare/internal/domain/accounts"
)

type accountRepo struct {
	mu         sync.RWMutex
	byID       map[string]accounts.User
	byUsername map[string]string // lower(username) -> id
}

func NewAccountRepo() accounts.Repository {
	return &accountRepo{
		byID:       make(map[string]accounts.User),
		byUsername: make(map[string]string),
	}
}

func (r *accountRepo) Create(ctx context.Context, u accounts.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(u.ID) == "" {
		return errors.New("user id required")
	}
	key := strings.ToLower(u.Username)
	if _, taken := r.byUsername[key]; taken {
		return accounts.ErrUsernameTaken
	}
	r.byID[u.ID] = u
	r.byUsername[key] = u.ID
	return nil
}

func (r *accountRepo) GetByID(ctx context.Context, id string) (accounts.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return accounts.User{}, accounts.ErrNotFound
	}
	return u, nil
}

func (r *accountRepo) GetByUsername(ctx context.Context, username string) (accounts.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return accounts.User{}, accounts.ErrNotFound
	}
	return r.byID[id], nil
}
