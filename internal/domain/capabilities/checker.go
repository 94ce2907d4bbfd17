// Package capabilities responde si un tipo de mascota soporta una funcionalidad.
// Es una consulta pura: no guarda estado y no escribe nada.
package capabilities

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pet-rehoming/internal/platform/apperr"
	capport "pet-rehoming/internal/ports/capabilities"
)

type Capability string

const (
	Placement     Capability = "placement"
	Fostering     Capability = "fostering"
	Weight        Capability = "weight"
	Microchips    Capability = "microchips"
	Medical       Capability = "medical"
	Vaccinations  Capability = "vaccinations"
	Comments      Capability = "comments"
	StatusUpdates Capability = "status_updates"
	Photos        Capability = "photos"
)

// Known lista las capabilities conocidas en orden estable.
var Known = []Capability{
	Placement, Fostering, Weight, Microchips,
	Medical, Vaccinations, Comments, StatusUpdates, Photos,
}

// fixedMatrix: capabilities estáticas por slug de tipo.
// Tipos que no aparecen acá solo tienen defaultFixed.
var fixedMatrix = map[string][]Capability{
	"cat": {Fostering, Medical, Vaccinations, Comments, StatusUpdates, Photos},
	"dog": {Fostering, Medical, Vaccinations, Comments, StatusUpdates, Photos},
}

var defaultFixed = []Capability{Photos}

// dynamic: capabilities que dependen de flags del registro del tipo.
var dynamic = map[Capability]func(capport.PetType) bool{
	Placement:  func(t capport.PetType) bool { return t.PlacementRequestsAllowed },
	Weight:     func(t capport.PetType) bool { return t.WeightTrackingAllowed },
	Microchips: func(t capport.PetType) bool { return t.MicrochipsAllowed },
}

// Subject es lo mínimo que el checker necesita de una mascota.
type Subject struct {
	PetID   string
	PetType string
}

type Checker struct {
	registry capport.Registry
}

func NewChecker(registry capport.Registry) *Checker {
	return &Checker{registry: registry}
}

func (c *Checker) Supports(ctx context.Context, pet Subject, capability Capability) (bool, error) {
	ok, _, err := c.evaluate(ctx, pet, capability)
	return ok, err
}

// Require devuelve CapabilityDenied con un código estable si no está soportada.
func (c *Checker) Require(ctx context.Context, pet Subject, capability Capability) error {
	ok, code, err := c.evaluate(ctx, pet, capability)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.CapabilityDenied(code, fmt.Sprintf("pet type %q does not support %s", pet.PetType, capability))
	}
	return nil
}

// All devuelve todas las capabilities para armar affordances de UI.
func (c *Checker) All(ctx context.Context, pet Subject) (map[Capability]bool, error) {
	out := make(map[Capability]bool, len(Known))
	for _, capability := range Known {
		ok, _, err := c.evaluate(ctx, pet, capability)
		if err != nil {
			return nil, err
		}
		out[capability] = ok
	}
	return out, nil
}

func (c *Checker) evaluate(ctx context.Context, pet Subject, capability Capability) (bool, string, error) {
	slug := strings.ToLower(strings.TrimSpace(pet.PetType))
	if !known(capability) {
		return false, "", apperr.Validation(fmt.Sprintf("unknown capability %q", capability))
	}
	deniedCode := string(capability) + "_not_supported"

	if flag, ok := dynamic[capability]; ok {
		if c == nil || c.registry == nil || slug == "" {
			return false, "pet_type_unknown", nil
		}
		t, err := c.registry.PetType(ctx, slug)
		if err != nil {
			if errors.Is(err, capport.ErrUnknownPetType) {
				return false, "pet_type_unknown", nil
			}
			return false, "", fmt.Errorf("capabilities: resolve pet type %q: %w", slug, err)
		}
		return flag(t), deniedCode, nil
	}

	allowed, ok := fixedMatrix[slug]
	if !ok {
		allowed = defaultFixed
	}
	for _, a := range allowed {
		if a == capability {
			return true, "", nil
		}
	}
	return false, deniedCode, nil
}

func known(capability Capability) bool {
	for _, c := range Known {
		if c == capability {
			return true
		}
	}
	return false
}
