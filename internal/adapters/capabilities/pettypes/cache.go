package pettypes

import (
	"context"
	"errors"
	"sync"
	"time"

	capport "pet-rehoming/internal/ports/capabilities"
)

// Cached guarda respuestas del registro durante ttl. Los tipos cambian poco
// y el checker se consulta en cada request del motor.
// Solo se cachean aciertos y ErrUnknownPetType; errores de upstream no.
type Cached struct {
	next capport.Registry
	ttl  time.Duration
	now  func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	petType capport.PetType
	unknown bool
	expires time.Time
}

func NewCached(next capport.Registry, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cached{
		next:    next,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

func (c *Cached) PetType(ctx context.Context, slug string) (capport.PetType, error) {
	now := c.now()

	c.mu.RLock()
	e, ok := c.entries[slug]
	c.mu.RUnlock()
	if ok && now.Before(e.expires) {
		if e.unknown {
			return capport.PetType{}, capport.ErrUnknownPetType
		}
		return e.petType, nil
	}

	t, err := c.next.PetType(ctx, slug)
	switch {
	case err == nil:
		c.store(slug, cacheEntry{petType: t, expires: now.Add(c.ttl)})
	case errors.Is(err, capport.ErrUnknownPetType):
		c.store(slug, cacheEntry{unknown: true, expires: now.Add(c.ttl)})
	}
	return t, err
}

func (c *Cached) store(slug string, e cacheEntry) {
	c.mu.Lock()
	c.entries[slug] = e
	c.mu.Unlock()
}
