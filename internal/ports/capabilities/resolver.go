package capabilities

import (
	"context"
	"errors"
)

var ErrUnknownPetType = errors.New("unknown pet type")

// PetType es el registro de tipo de mascota con los flags dinámicos.
type PetType struct {
	Slug string
	Name string

	PlacementRequestsAllowed bool
	WeightTrackingAllowed    bool
	MicrochipsAllowed        bool
}

// Registry resuelve tipos de mascota. Es de solo lectura y se inyecta;
// no hay caché global de proceso.
type Registry interface {
	PetType(ctx context.Context, slug string) (PetType, error)
}
