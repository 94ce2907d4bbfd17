package placement

import (
	"context"
	"errors"

	"pet-rehoming/internal/domain/events"
	"pet-rehoming/internal/platform/apperr"
)

func assignmentLink(id string) string { return "/foster-assignments/" + id }

func (s *Service) GetAssignment(ctx context.Context, actor Actor, assignmentID string) (FosterAssignment, error) {
	var out FosterAssignment
	err := s.view(ctx, func(ctx context.Context, st Store) error {
		a, err := st.GetAssignment(ctx, assignmentID)
		if err != nil {
			return notFound(err, "foster assignment")
		}
		if !assignmentParty(actor, a) && !actor.IsAdmin() {
			return apperr.Forbidden("not a party to this foster assignment")
		}
		out = a
		return nil
	})
	return out, err
}

// ListAssignmentsByPet: el owner actual y admin ven todo el historial; el
// resto solo las asignaciones donde fue parte.
func (s *Service) ListAssignmentsByPet(ctx context.Context, actor Actor, petID string) ([]FosterAssignment, error) {
	var out []FosterAssignment
	err := s.view(ctx, func(ctx context.Context, st Store) error {
		pet, err := st.GetPet(ctx, petID)
		if err != nil {
			return notFound(err, "pet")
		}
		all, err := st.ListAssignmentsByPet(ctx, pet.ID)
		if err != nil {
			return err
		}
		if pet.OwnerUserID == actor.UserID || actor.IsAdmin() {
			out = all
			return nil
		}
		out = make([]FosterAssignment, 0, len(all))
		for _, a := range all {
			if assignmentParty(actor, a) {
				out = append(out, a)
			}
		}
		if len(out) == 0 {
			return apperr.Forbidden("no foster relationship with this pet")
		}
		return nil
	})
	return out, err
}

// AdminCompleteAssignment cierra una asignación por fuera del handover.
func (s *Service) AdminCompleteAssignment(ctx context.Context, actor Actor, assignmentID string) (FosterAssignment, error) {
	if !actor.IsAdmin() {
		return FosterAssignment{}, apperr.Forbidden("admin role required")
	}
	var out FosterAssignment
	err := s.transition(ctx, "assignment", "complete", func(ctx context.Context, st Store, box *outbox) error {
		a, err := st.GetAssignment(ctx, assignmentID)
		if err != nil {
			return notFound(err, "foster assignment")
		}
		a, err = s.completeAssignment(ctx, st, a, events.Actor{Type: events.ActorTypeAdminUser, ID: actor.UserID})
		if err != nil {
			return err
		}
		data := map[string]any{"foster_assignment_id": a.ID}
		box.add(a.OwnerUserID, "The foster assignment was closed by an administrator", assignmentLink(a.ID), "foster_assignment.completed", data)
		box.add(a.FosterUserID, "The foster assignment was closed by an administrator", assignmentLink(a.ID), "foster_assignment.completed", data)
		out = a
		return nil
	})
	return out, err
}

func (s *Service) completeAssignment(ctx context.Context, st Store, a FosterAssignment, by events.Actor) (FosterAssignment, error) {
	next, err := nextAssignment(a.Status, AssignmentComplete)
	if err != nil {
		return FosterAssignment{}, err
	}
	now := s.now()
	a.Status = next
	a.CompletedAt = timePtr(now)
	if err := st.UpdateAssignment(ctx, a, AssignmentActive); err != nil {
		return FosterAssignment{}, err
	}
	err = st.AppendEvent(ctx, events.NewSystemEvent(s.newID(), a.PetID, events.EventTypeFosterEnded, by, "Foster care ended", now))
	return a, err
}

// ActiveFosterer devuelve el user con custodia temporal vigente de la mascota.
// Lo usa el timeline para autorizar al fosterer.
func (s *Service) ActiveFosterer(ctx context.Context, petID string) (string, bool, error) {
	var (
		userID string
		ok     bool
	)
	err := s.view(ctx, func(ctx context.Context, st Store) error {
		a, err := st.ActiveAssignmentForPet(ctx, petID)
		if errors.Is(err, ErrRowNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		userID, ok = a.FosterUserID, true
		return nil
	})
	return userID, ok, err
}

func assignmentParty(a Actor, fa FosterAssignment) bool {
	return a.UserID == fa.OwnerUserID || a.UserID == fa.FosterUserID
}

// requireNoActiveFoster falla con Conflict si la mascota está en un foster activo.
func requireNoActiveFoster(ctx context.Context, st Store, petID string) error {
	_, err := st.ActiveAssignmentForPet(ctx, petID)
	switch {
	case err == nil:
		return apperr.Conflict("pet has an active foster assignment; it must be returned first")
	case errors.Is(err, ErrRowNotFound):
		return nil
	default:
		return err
	}
}
