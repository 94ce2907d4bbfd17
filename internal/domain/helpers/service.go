package helpers

import (
	"context"
	"errors"
	"strings"
	"time"

	"pet-rehoming/internal/platform/apperr"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput  = apperr.Validation("invalid input")
	ErrNotFound      = apperr.NotFound("helper profile not found")
	ErrForbidden     = apperr.Forbidden("not your helper profile")
	ErrAlreadyActive = apperr.Conflict("user already has an active helper profile")
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

type CreateInput struct {
	DisplayName string
	City        string
	Experience  string
	CanFoster   bool
	CanAdopt    bool
}

// Create: un perfil activo por usuario.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (Profile, error) {
	userID = strings.TrimSpace(userID)
	name := strings.TrimSpace(in.DisplayName)
	if userID == "" || name == "" {
		return Profile{}, ErrInvalidInput
	}
	if !in.CanFoster && !in.CanAdopt {
		return Profile{}, apperr.Validation("helper must offer fostering or adoption")
	}

	if _, err := s.repo.GetActiveByUser(ctx, userID); err == nil {
		return Profile{}, ErrAlreadyActive
	} else if !errors.Is(err, ErrNotFound) {
		return Profile{}, err
	}

	now := s.now()
	p := Profile{
		ID:          uuid.NewString(),
		UserID:      userID,
		DisplayName: name,
		City:        strings.TrimSpace(in.City),
		Experience:  strings.TrimSpace(in.Experience),
		CanFoster:   in.CanFoster,
		CanAdopt:    in.CanAdopt,
		Status:      StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Profile, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Profile{}, ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByUser(ctx context.Context, userID string) (Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Profile{}, ErrInvalidInput
	}
	return s.repo.GetActiveByUser(ctx, userID)
}

// Archive es idempotente. Las respuestas ya enviadas no se tocan;
// un perfil archivado no puede responder avisos nuevos.
func (s *Service) Archive(ctx context.Context, id, userID string) (Profile, error) {
	p, err := s.GetByID(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	if p.UserID != strings.TrimSpace(userID) {
		return Profile{}, ErrForbidden
	}
	if p.Status == StatusArchived {
		return p, nil
	}

	now := s.now()
	p.Status = StatusArchived
	p.UpdatedAt = now
	p.ArchivedAt = &now

	if err := s.repo.Update(ctx, p); err != nil {
		return Profile{}, err
	}
	return p, nil
}
