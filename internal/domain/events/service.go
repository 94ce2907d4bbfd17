package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"pet-rehoming/internal/domain/capabilities"
	"pet-rehoming/internal/domain/events/details"
	"pet-rehoming/internal/platform/apperr"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput  = apperr.Validation("invalid input")
	ErrNotFound      = apperr.NotFound("event not found")
	ErrForbidden     = apperr.Forbidden("no access to this pet timeline")
	ErrNotVoidable   = apperr.Conflict("only manual events can be voided")
	ErrNotManualType = apperr.Validation("only NOTE and WEIGHT_RECORDED can be created manually")
)

// PetDirectory evita importar pets entero; lo implementa *pets.Service.
type PetDirectory interface {
	OwnerOf(ctx context.Context, petID string) (string, error)
	SpeciesOf(ctx context.Context, petID string) (string, error)
}

// CustodyLookup lo implementa el motor de placement: quién tiene al animal en foster activo.
type CustodyLookup interface {
	ActiveFosterer(ctx context.Context, petID string) (string, bool, error)
}

type Service struct {
	repo    Repository
	pets    PetDirectory
	custody CustodyLookup
	checker *capabilities.Checker
	now     func() time.Time
}

func NewService(repo Repository, pets PetDirectory, custody CustodyLookup, checker *capabilities.Checker) *Service {
	return &Service{
		repo:    repo,
		pets:    pets,
		custody: custody,
		checker: checker,
		now:     time.Now,
	}
}

type WeightInput struct {
	Value float64
	Unit  string
}

type CreateInput struct {
	Type       EventType
	OccurredAt time.Time
	Title      string
	Notes      string
	Visibility Visibility
	Weight     *WeightInput
}

// Create registra un evento manual. Pueden el owner o el foster activo;
// los eventos del foster quedan siempre compartidos.
func (s *Service) Create(ctx context.Context, petID, actorUserID string, in CreateInput) (PetEvent, error) {
	petID = strings.TrimSpace(petID)
	if petID == "" || in.Type == "" || in.OccurredAt.IsZero() {
		return PetEvent{}, ErrInvalidInput
	}
	if !in.Type.Manual() {
		return PetEvent{}, ErrNotManualType
	}

	actorType, err := s.relation(ctx, petID, actorUserID)
	if err != nil {
		return PetEvent{}, err
	}

	var m *details.Measurement
	if in.Type == EventTypeWeightRecorded {
		species, err := s.pets.SpeciesOf(ctx, petID)
		if err != nil {
			return PetEvent{}, err
		}
		if err := s.checker.Require(ctx, capabilities.Subject{PetID: petID, PetType: species}, capabilities.Weight); err != nil {
			return PetEvent{}, err
		}
		if in.Weight == nil {
			return PetEvent{}, apperr.Validation("weight is required for WEIGHT_RECORDED")
		}
		w, err := details.NewWeight(in.Weight.Value, in.Weight.Unit)
		if err != nil {
			return PetEvent{}, apperr.Validation(err.Error())
		}
		m = &w
	}

	vis := in.Visibility
	switch {
	case actorType == ActorTypeFosterUser:
		vis = VisibilityShared
	case vis == "":
		vis = VisibilityShared
	case vis != VisibilityShared && vis != VisibilityPrivate:
		return PetEvent{}, apperr.Validation("visibility must be private or shared_with_custodian")
	}

	now := s.now()
	e := PetEvent{
		ID:          uuid.NewString(),
		PetID:       petID,
		Type:        in.Type,
		OccurredAt:  in.OccurredAt,
		RecordedAt:  now,
		Title:       strings.TrimSpace(in.Title),
		Notes:       strings.TrimSpace(in.Notes),
		Measurement: m,
		Actor:       Actor{Type: actorType, ID: actorUserID},
		Source:      SourceManual,
		Visibility:  vis,
		Status:      EventStatusActive,
	}

	if err := s.repo.Create(ctx, e); err != nil {
		return PetEvent{}, err
	}
	return e, nil
}

// ListByPet: el owner ve todo; el foster activo solo lo compartido.
func (s *Service) ListByPet(ctx context.Context, petID, actorUserID string, filter ListFilter) ([]PetEvent, error) {
	actorType, err := s.relation(ctx, petID, actorUserID)
	if err != nil {
		return nil, err
	}
	if actorType != ActorTypeOwnerUser {
		filter.SharedOnly = true
	}
	return s.repo.ListByPet(ctx, petID, filter)
}

// Void marca el evento como voided (no se borra). Lo anula el owner o quien lo creó.
func (s *Service) Void(ctx context.Context, petID, eventID, actorUserID string) (PetEvent, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return PetEvent{}, ErrNotFound
	}

	actorType, err := s.relation(ctx, petID, actorUserID)
	if err != nil {
		return PetEvent{}, err
	}

	e, err := s.repo.GetByID(ctx, eventID)
	if err != nil {
		return PetEvent{}, err
	}
	if e.PetID != petID {
		return PetEvent{}, ErrNotFound
	}
	if e.Source != SourceManual || !e.Type.Manual() {
		return PetEvent{}, ErrNotVoidable
	}
	if actorType != ActorTypeOwnerUser && e.Actor.ID != actorUserID {
		return PetEvent{}, ErrForbidden
	}
	if e.Status == EventStatusVoided {
		return e, nil
	}

	if err := s.repo.Void(ctx, eventID); err != nil {
		return PetEvent{}, err
	}
	return s.repo.GetByID(ctx, eventID)
}

func (s *Service) relation(ctx context.Context, petID, actorUserID string) (ActorType, error) {
	actorUserID = strings.TrimSpace(actorUserID)
	if actorUserID == "" {
		return "", ErrForbidden
	}

	owner, err := s.pets.OwnerOf(ctx, petID)
	if err != nil {
		return "", err
	}
	if owner == actorUserID {
		return ActorTypeOwnerUser, nil
	}

	if s.custody != nil {
		fosterer, ok, err := s.custody.ActiveFosterer(ctx, petID)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return "", err
		}
		if ok && fosterer == actorUserID {
			return ActorTypeFosterUser, nil
		}
	}
	return "", ErrForbidden
}
