package memory

import (
	"context"
	"errors"

	"pet-rehoming/internal/domain/helpers"
)

type helperRepo struct {
	db *Database
}

func NewHelperRepo(db *Database) helpers.Repository {
	return &helperRepo{db: db}
}

func (r *helperRepo) Create(ctx context.Context, p helpers.Profile) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if p.ID == "" {
		return errors.New("helper profile id required")
	}
	if _, exists := r.db.helpers[p.ID]; exists {
		return errors.New("helper profile already exists")
	}
	// Mismo invariante que el índice único parcial en Postgres.
	if p.Status == helpers.StatusActive {
		for _, other := range r.db.helpers {
			if other.UserID == p.UserID && other.Status == helpers.StatusActive {
				return helpers.ErrAlreadyActive
			}
		}
	}
	r.db.helpers[p.ID] = p
	return nil
}

func (r *helperRepo) Update(ctx context.Context, p helpers.Profile) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, exists := r.db.helpers[p.ID]; !exists {
		return helpers.ErrNotFound
	}
	r.db.helpers[p.ID] = p
	return nil
}

func (r *helperRepo) GetByID(ctx context.Context, id string) (helpers.Profile, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	p, ok := r.db.helpers[id]
	if !ok {
		return helpers.Profile{}, helpers.ErrNotFound
	}
	return p, nil
}

func (r *helperRepo) GetActiveByUser(ctx context.Context, userID string) (helpers.Profile, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, p := range r.db.helpers {
		if p.UserID == userID && p.Status == helpers.StatusActive {
			return p, nil
		}
	}
	return helpers.Profile{}, helpers.ErrNotFound
}
