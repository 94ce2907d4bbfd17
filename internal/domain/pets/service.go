package pets

import (
	"context"
	"strings"
	"time"

	"pet-rehoming/internal/domain/capabilities"
	"pet-rehoming/internal/platform/apperr"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = apperr.Validation("invalid input")
	ErrNotFound     = apperr.NotFound("pet not found")
	ErrForbidden    = apperr.Forbidden("only the owner can modify this pet")
)

type Service struct {
	repo    Repository
	checker *capabilities.Checker
	now     func() time.Time
}

func NewService(repo Repository, checker *capabilities.Checker) *Service {
	return &Service{
		repo:    repo,
		checker: checker,
		now:     time.Now,
	}
}

type CreateInput struct {
	Name      string
	Species   string
	Breed     string
	Sex       string
	BirthDate *time.Time
	Microchip string
	Notes     string
}

func (s *Service) Create(ctx context.Context, ownerUserID string, in CreateInput) (Pet, error) {
	if strings.TrimSpace(ownerUserID) == "" {
		return Pet{}, ErrInvalidInput
	}
	if strings.TrimSpace(in.Name) == "" {
		return Pet{}, ErrInvalidInput
	}
	species := normalizeSpecies(in.Species)
	if species == "" {
		return Pet{}, ErrInvalidInput
	}
	sex, err := parseSex(in.Sex)
	if err != nil {
		return Pet{}, err
	}

	microchip := strings.TrimSpace(in.Microchip)
	if microchip != "" {
		if err := s.requireCapability(ctx, species, capabilities.Microchips); err != nil {
			return Pet{}, err
		}
	}

	now := s.now()
	p := Pet{
		ID:          uuid.NewString(),
		OwnerUserID: ownerUserID,
		Name:        strings.TrimSpace(in.Name),
		Species:     species,
		Breed:       strings.TrimSpace(in.Breed),
		Sex:         sex,
		BirthDate:   in.BirthDate,
		Microchip:   microchip,
		Notes:       strings.TrimSpace(in.Notes),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return Pet{}, err
	}
	return p, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Pet, error) {
	if strings.TrimSpace(id) == "" {
		return Pet{}, ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByOwner(ctx context.Context, ownerUserID string) ([]Pet, error) {
	return s.repo.ListByOwner(ctx, ownerUserID)
}

// BirthDatePatch distingue "no enviado" de "null" (limpiar fecha).
type BirthDatePatch struct {
	Present bool
	Value   *time.Time
}

// UpdateProfileInput usa punteros: nil = no tocar.
type UpdateProfileInput struct {
	Name      *string
	Species   *string
	Breed     *string
	Sex       *string
	BirthDate BirthDatePatch
	Microchip *string
	Notes     *string
}

// UpdateProfile aplica un PATCH. Solo el owner actual puede editar.
// El owner no se cambia por acá: eso ocurre al confirmar una transferencia.
func (s *Service) UpdateProfile(ctx context.Context, petID, actorUserID string, in UpdateProfileInput) (Pet, error) {
	p, err := s.GetByID(ctx, petID)
	if err != nil {
		return Pet{}, err
	}
	if p.OwnerUserID != strings.TrimSpace(actorUserID) {
		return Pet{}, ErrForbidden
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return Pet{}, ErrInvalidInput
		}
		p.Name = name
	}
	if in.Species != nil {
		species := normalizeSpecies(*in.Species)
		if species == "" {
			return Pet{}, ErrInvalidInput
		}
		p.Species = species
	}
	if in.Breed != nil {
		p.Breed = strings.TrimSpace(*in.Breed)
	}
	if in.Sex != nil {
		sex, err := parseSex(*in.Sex)
		if err != nil {
			return Pet{}, err
		}
		p.Sex = sex
	}
	if in.BirthDate.Present {
		p.BirthDate = in.BirthDate.Value
	}
	if in.Microchip != nil {
		p.Microchip = strings.TrimSpace(*in.Microchip)
	}
	if in.Notes != nil {
		p.Notes = strings.TrimSpace(*in.Notes)
	}

	if p.Microchip != "" && (in.Microchip != nil || in.Species != nil) {
		if err := s.requireCapability(ctx, p.Species, capabilities.Microchips); err != nil {
			return Pet{}, err
		}
	}

	p.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, p); err != nil {
		return Pet{}, err
	}
	return p, nil
}

// Capabilities devuelve el mapa completo para que la UI decida qué mostrar.
func (s *Service) Capabilities(ctx context.Context, petID string) (map[capabilities.Capability]bool, error) {
	p, err := s.GetByID(ctx, petID)
	if err != nil {
		return nil, err
	}
	return s.checker.All(ctx, capabilities.Subject{PetID: p.ID, PetType: p.Species})
}

func (s *Service) requireCapability(ctx context.Context, species string, c capabilities.Capability) error {
	if s.checker == nil {
		return nil
	}
	return s.checker.Require(ctx, capabilities.Subject{PetType: species}, c)
}

func normalizeSpecies(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func parseSex(raw string) (Sex, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return SexUnknown, nil
	}
	sex := Sex(raw)
	if !sex.Valid() {
		return "", apperr.Validation("sex must be male, female or unknown")
	}
	return sex, nil
}
