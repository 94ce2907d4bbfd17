package static

import (
	"context"
	"strings"

	capport "pet-rehoming/internal/ports/capabilities"
)

// Registry es un registro de tipos de mascota de solo lectura en memoria.
// Se construye una vez y se inyecta; no se muta después.
type Registry struct {
	bySlug map[string]capport.PetType
}

func NewRegistry(types ...capport.PetType) *Registry {
	m := make(map[string]capport.PetType, len(types))
	for _, t := range types {
		slug := strings.ToLower(strings.TrimSpace(t.Slug))
		if slug == "" {
			continue
		}
		t.Slug = slug
		m[slug] = t
	}
	return &Registry{bySlug: m}
}

// Default replica los tipos sembrados en la plataforma.
func Default() *Registry {
	return NewRegistry(
		capport.PetType{Slug: "cat", Name: "Cat", PlacementRequestsAllowed: true, WeightTrackingAllowed: true, MicrochipsAllowed: true},
		capport.PetType{Slug: "dog", Name: "Dog", PlacementRequestsAllowed: true, WeightTrackingAllowed: true, MicrochipsAllowed: true},
		capport.PetType{Slug: "rabbit", Name: "Rabbit", PlacementRequestsAllowed: true, WeightTrackingAllowed: true},
		capport.PetType{Slug: "bird", Name: "Bird"},
	)
}

func (r *Registry) PetType(_ context.Context, slug string) (capport.PetType, error) {
	t, ok := r.bySlug[strings.ToLower(strings.TrimSpace(slug))]
	if !ok {
		return capport.PetType{}, capport.ErrUnknownPetType
	}
	return t, nil
}
