package memory

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"

	"pet-rehoming/internal/domain/events"
)

type eventRepo struct {
	db *Database
}

func NewEventRepo(db *Database) events.Repository {
	return &eventRepo{db: db}
}

func (r *eventRepo) Create(ctx context.Context, e events.PetEvent) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return insertEvent(r.db, e)
}

// insertEvent asume el lock tomado; lo comparte el store de placement.
func insertEvent(db *Database, e events.PetEvent) error {
	if e.ID == "" {
		return errors.New("event id required")
	}
	if _, exists := db.events[e.ID]; exists {
		return errors.New("event already exists")
	}
	db.events[e.ID] = e
	return nil
}

func (r *eventRepo) GetByID(ctx context.Context, id string) (events.PetEvent, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	e, ok := r.db.events[id]
	if !ok {
		return events.PetEvent{}, events.ErrNotFound
	}
	return e, nil
}

func (r *eventRepo) ListByPet(ctx context.Context, petID string, filter events.ListFilter) ([]events.PetEvent, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	out := make([]events.PetEvent, 0)
	for _, e := range r.db.events {
		if e.PetID == petID && matches(e, filter) {
			out = append(out, e)
		}
	}

	// Orden por occurred_at desc (más reciente primero)
	sort.Slice(out, func(i, j int) bool {
		return out[i].OccurredAt.After(out[j].OccurredAt)
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matches(e events.PetEvent, f events.ListFilter) bool {
	if len(f.Types) > 0 && !slices.Contains(f.Types, e.Type) {
		return false
	}
	if f.SharedOnly && e.Visibility != events.VisibilityShared {
		return false
	}
	if f.From != nil && e.OccurredAt.Before(*f.From) {
		return false
	}
	if f.To != nil && e.OccurredAt.After(*f.To) {
		return false
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		hay := strings.ToLower(e.Title + " " + e.Notes)
		if !strings.Contains(hay, strings.ToLower(q)) {
			return false
		}
	}
	return true
}

func (r *eventRepo) Void(ctx context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	e, ok := r.db.events[id]
	if !ok {
		return events.ErrNotFound
	}
	e.Status = events.EventStatusVoided
	r.db.events[id] = e
	return nil
}
