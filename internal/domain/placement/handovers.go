package placement

import (
	"context"
	"errors"
	"strings"
	"time"

	"pet-rehoming/internal/domain/events"
	"pet-rehoming/internal/platform/apperr"
)

type InitiateHandoverInput struct {
	ScheduledAt *time.Time
	Location    string
}

type ConfirmConditionInput struct {
	ConditionConfirmed bool
	Notes              string
}

type CompleteHandoverResult struct {
	Handover   FosterReturnHandover
	Assignment FosterAssignment
}

func handoverLink(id string) string { return "/return-handovers/" + id }

// InitiateHandover: el fosterer propone devolver la mascota. Un solo handover abierto por asignación.
func (s *Service) InitiateHandover(ctx context.Context, actor Actor, assignmentID string, in InitiateHandoverInput) (FosterReturnHandover, error) {
	if len(in.Location) > 500 {
		return FosterReturnHandover{}, apperr.Validation("location is too long")
	}

	var out FosterReturnHandover
	err := s.transition(ctx, "handover", "initiate", func(ctx context.Context, st Store, box *outbox) error {
		a, err := st.GetAssignment(ctx, assignmentID)
		if err != nil {
			return notFound(err, "foster assignment")
		}
		if a.FosterUserID != actor.UserID {
			return apperr.Forbidden("only the fosterer can initiate a return")
		}
		if a.Status != AssignmentActive {
			return conflictf("foster assignment is %s", a.Status)
		}
		if _, err := st.OutstandingHandover(ctx, a.ID); err == nil {
			return apperr.Conflict("a return handover is already outstanding for this assignment")
		} else if !errors.Is(err, ErrRowNotFound) {
			return err
		}

		now := s.now()
		h := FosterReturnHandover{
			ID:                 s.newID(),
			FosterAssignmentID: a.ID,
			OwnerUserID:        a.OwnerUserID,
			FosterUserID:       a.FosterUserID,
			Status:             HandoverPending,
			ScheduledAt:        in.ScheduledAt,
			Location:           strings.TrimSpace(in.Location),
			FosterInitiatedAt:  now,
		}
		if err := st.CreateHandover(ctx, h); err != nil {
			return err
		}
		if err := st.AppendEvent(ctx, events.NewSystemEvent(s.newID(), a.PetID, events.EventTypeFosterReturnInitiated,
			events.Actor{Type: events.ActorTypeFosterUser, ID: actor.UserID}, "Foster return initiated", now)); err != nil {
			return err
		}
		box.add(a.OwnerUserID, "Your pet's fosterer has initiated a return", handoverLink(h.ID),
			"return_handover.initiated",
			map[string]any{"foster_assignment_id": a.ID, "return_handover_id": h.ID})
		out = h
		return nil
	})
	return out, err
}

// ConfirmCondition: el owner confirma (confirmed) o disputa (disputed) el estado de la mascota.
func (s *Service) ConfirmCondition(ctx context.Context, actor Actor, handoverID string, in ConfirmConditionInput) (FosterReturnHandover, error) {
	if len(in.Notes) > 2000 {
		return FosterReturnHandover{}, apperr.Validation("condition_notes is too long")
	}
	action := HandoverConfirm
	if !in.ConditionConfirmed {
		action = HandoverDispute
	}

	var out FosterReturnHandover
	err := s.transition(ctx, "handover", string(action), func(ctx context.Context, st Store, box *outbox) error {
		h, _, err := s.loadHandover(ctx, st, handoverID)
		if err != nil {
			return err
		}
		if h.OwnerUserID != actor.UserID {
			return apperr.Forbidden("only the owner can confirm the pet's condition")
		}
		next, err := nextHandover(h.Status, action)
		if err != nil {
			return err
		}
		confirmed := in.ConditionConfirmed
		h.Status = next
		h.ConditionConfirmed = &confirmed
		h.ConditionNotes = strings.TrimSpace(in.Notes)
		h.OwnerConfirmedAt = timePtr(s.now())
		if err := st.UpdateHandover(ctx, h, HandoverPending); err != nil {
			return err
		}
		box.add(h.FosterUserID, "The owner reviewed the return ("+string(h.Status)+")", handoverLink(h.ID),
			"return_handover."+string(h.Status),
			map[string]any{"foster_assignment_id": h.FosterAssignmentID, "return_handover_id": h.ID})
		out = h
		return nil
	})
	return out, err
}

// CompleteHandover: cualquiera de las partes. Si la asignación sigue activa, se completa también.
func (s *Service) CompleteHandover(ctx context.Context, actor Actor, handoverID string) (CompleteHandoverResult, error) {
	var out CompleteHandoverResult
	err := s.transition(ctx, "handover", "complete", func(ctx context.Context, st Store, box *outbox) error {
		h, a, err := s.loadHandover(ctx, st, handoverID)
		if err != nil {
			return err
		}
		if actor.UserID != h.OwnerUserID && actor.UserID != h.FosterUserID {
			return apperr.Forbidden("only a party to the handover can complete it")
		}
		from := h.Status
		next, err := nextHandover(from, HandoverComplete)
		if err != nil {
			return err
		}
		h.Status = next
		h.CompletedAt = timePtr(s.now())
		if err := st.UpdateHandover(ctx, h, from); err != nil {
			return err
		}

		if a.Status == AssignmentActive {
			by := events.Actor{Type: events.ActorTypeOwnerUser, ID: actor.UserID}
			if actor.UserID == h.FosterUserID {
				by.Type = events.ActorTypeFosterUser
			}
			a, err = s.completeAssignment(ctx, st, a, by)
			if err != nil {
				return err
			}
		}

		other := h.OwnerUserID
		if actor.UserID == h.OwnerUserID {
			other = h.FosterUserID
		}
		box.add(other, "The return handover was completed", handoverLink(h.ID), "return_handover.completed",
			map[string]any{"foster_assignment_id": a.ID, "return_handover_id": h.ID})

		out = CompleteHandoverResult{Handover: h, Assignment: a}
		return nil
	})
	return out, err
}

func (s *Service) GetHandover(ctx context.Context, actor Actor, handoverID string) (FosterReturnHandover, error) {
	var out FosterReturnHandover
	err := s.view(ctx, func(ctx context.Context, st Store) error {
		h, err := st.GetHandover(ctx, handoverID)
		if err != nil {
			return notFound(err, "return handover")
		}
		if actor.UserID != h.OwnerUserID && actor.UserID != h.FosterUserID && !actor.IsAdmin() {
			return apperr.Forbidden("not a party to this handover")
		}
		out = h
		return nil
	})
	return out, err
}

func (s *Service) ListHandovers(ctx context.Context, actor Actor, assignmentID string) ([]FosterReturnHandover, error) {
	var out []FosterReturnHandover
	err := s.view(ctx, func(ctx context.Context, st Store) error {
		a, err := st.GetAssignment(ctx, assignmentID)
		if err != nil {
			return notFound(err, "foster assignment")
		}
		if !assignmentParty(actor, a) && !actor.IsAdmin() {
			return apperr.Forbidden("not a party to this foster assignment")
		}
		out, err = st.ListHandovers(ctx, a.ID)
		return err
	})
	return out, err
}

// loadHandover bloquea la asignación antes de releer el handover.
func (s *Service) loadHandover(ctx context.Context, st Store, handoverID string) (FosterReturnHandover, FosterAssignment, error) {
	h, err := st.GetHandover(ctx, handoverID)
	if err != nil {
		return FosterReturnHandover{}, FosterAssignment{}, notFound(err, "return handover")
	}
	a, err := st.GetAssignment(ctx, h.FosterAssignmentID)
	if err != nil {
		return FosterReturnHandover{}, FosterAssignment{}, notFound(err, "foster assignment")
	}
	h, err = st.GetHandover(ctx, handoverID)
	if err != nil {
		return FosterReturnHandover{}, FosterAssignment{}, notFound(err, "return handover")
	}
	return h, a, nil
}
