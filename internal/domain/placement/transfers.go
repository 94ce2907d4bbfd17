package placement

import (
	"context"
	"errors"
	"time"

	"pet-rehoming/internal/domain/events"
	"pet-rehoming/internal/platform/apperr"
)

// ConfirmResult: Assignment se llena para foster, Pet para permanent.
type ConfirmResult struct {
	Transfer   TransferRequest
	Request    PlacementRequest
	Assignment *FosterAssignment
	Pet        *PetRef
}

// RevertResult es el efecto de rechazar o cancelar una transferencia: el aviso
// vuelve a open y la respuesta aceptada queda liberada.
type RevertResult struct {
	Transfer TransferRequest
	Request  PlacementRequest
	Response PlacementResponse
}

func transferLink(id string) string { return "/transfer-requests/" + id }

// ConfirmTransfer: solo el destinatario. Permanent reasigna el owner; foster
// crea la asignación activa. En ambos casos el aviso queda fulfilled.
func (s *Service) ConfirmTransfer(ctx context.Context, actor Actor, transferID string) (ConfirmResult, error) {
	var out ConfirmResult
	err := s.transition(ctx, "transfer", "confirm", func(ctx context.Context, st Store, box *outbox) error {
		t, req, err := s.loadTransfer(ctx, st, transferID)
		if err != nil {
			return err
		}
		if t.ToUserID != actor.UserID {
			return apperr.Forbidden("only the transfer recipient can confirm it")
		}
		next, err := nextTransfer(t.Status, TransferConfirm)
		if err != nil {
			return err
		}
		nextReq, err := nextRequest(req.Status, RequestFulfill)
		if err != nil {
			return err
		}

		now := s.now()
		t.Status = next
		t.ConfirmedAt = timePtr(now)
		if err := st.UpdateTransfer(ctx, t, TransferPending); err != nil {
			return err
		}

		pet, err := st.GetPet(ctx, t.PetID)
		if err != nil {
			return err
		}
		recipient := events.Actor{Type: events.ActorTypeHelperUser, ID: actor.UserID}

		switch {
		case req.Type == RequestPermanent:
			if err := requireNoActiveFoster(ctx, st, pet.ID); err != nil {
				return err
			}
			if err := st.ReassignPetOwner(ctx, pet.ID, t.FromUserID, t.ToUserID, now); err != nil {
				if errors.Is(err, ErrStaleWrite) {
					return apperr.Conflict("pet ownership changed since the transfer was created")
				}
				return err
			}
			pet.OwnerUserID = t.ToUserID
			out.Pet = &pet
			if err := st.AppendEvent(ctx, events.NewSystemEvent(s.newID(), pet.ID, events.EventTypeOwnershipTransferred,
				recipient, "Ownership transferred", now)); err != nil {
				return err
			}

		case req.Type.Foster():
			if err := requireNoActiveFoster(ctx, st, pet.ID); err != nil {
				return err
			}
			a := FosterAssignment{
				ID:                s.newID(),
				PetID:             pet.ID,
				TransferRequestID: t.ID,
				OwnerUserID:       t.FromUserID,
				FosterUserID:      t.ToUserID,
				Status:            AssignmentActive,
				StartedAt:         now,
			}
			if err := st.CreateAssignment(ctx, a); err != nil {
				return err
			}
			out.Assignment = &a
			if err := st.AppendEvent(ctx, events.NewSystemEvent(s.newID(), pet.ID, events.EventTypeFosterStarted,
				events.Actor{Type: events.ActorTypeFosterUser, ID: actor.UserID}, "Foster care started", now)); err != nil {
				return err
			}
		}

		fromReq := req.Status
		req.Status = nextReq
		req.FulfilledAt = timePtr(now)
		req.UpdatedAt = now
		if err := st.UpdateRequest(ctx, req, fromReq); err != nil {
			return err
		}
		if err := s.appendFulfilled(ctx, st, req, actor, now); err != nil {
			return err
		}

		out.Transfer = t
		out.Request = req
		data := map[string]any{"placement_request_id": req.ID, "transfer_request_id": t.ID}
		if out.Assignment != nil {
			data["foster_assignment_id"] = out.Assignment.ID
		}
		box.add(t.FromUserID, "The transfer was confirmed", transferLink(t.ID), "transfer_request.confirmed", data)
		return nil
	})
	return out, err
}

// RejectTransfer: el destinatario no acepta; el aviso vuelve a open.
func (s *Service) RejectTransfer(ctx context.Context, actor Actor, transferID string) (RevertResult, error) {
	return s.revert(ctx, actor, transferID, TransferReject)
}

// CancelTransfer: cualquiera de las dos partes, mismo efecto que rechazar.
func (s *Service) CancelTransfer(ctx context.Context, actor Actor, transferID string) (RevertResult, error) {
	return s.revert(ctx, actor, transferID, TransferCancel)
}

func (s *Service) revert(ctx context.Context, actor Actor, transferID string, action TransferAction) (RevertResult, error) {
	var out RevertResult
	err := s.transition(ctx, "transfer", string(action), func(ctx context.Context, st Store, box *outbox) error {
		t, req, err := s.loadTransfer(ctx, st, transferID)
		if err != nil {
			return err
		}
		switch action {
		case TransferReject:
			if t.ToUserID != actor.UserID {
				return apperr.Forbidden("only the transfer recipient can reject it")
			}
		default:
			if t.ToUserID != actor.UserID && t.FromUserID != actor.UserID {
				return apperr.Forbidden("only a party to the transfer can cancel it")
			}
		}
		nextReq, err := nextRequest(req.Status, RequestReopen)
		if err != nil {
			return err
		}

		now := s.now()
		resp, err := s.revertTransfer(ctx, st, &t, action, now)
		if err != nil {
			return err
		}

		fromReq := req.Status
		req.Status = nextReq
		req.UpdatedAt = now
		if err := st.UpdateRequest(ctx, req, fromReq); err != nil {
			return err
		}

		out = RevertResult{Transfer: t, Request: req, Response: resp}
		data := map[string]any{"placement_request_id": req.ID, "transfer_request_id": t.ID}
		event := "transfer_request." + string(t.Status)
		if actor.UserID == t.ToUserID {
			box.add(t.FromUserID, "The transfer was "+string(t.Status)+"; your request is open again",
				requestLink(req.ID), event, data)
		} else {
			box.add(t.ToUserID, "The transfer was cancelled by the owner", transferLink(t.ID), event, data)
		}
		return nil
	})
	return out, err
}

// revertTransfer cierra una transferencia pendiente y libera su respuesta aceptada.
// No toca el aviso: reabrirlo o cancelarlo es decisión de quien llama.
func (s *Service) revertTransfer(ctx context.Context, st Store, t *TransferRequest, action TransferAction, now time.Time) (PlacementResponse, error) {
	next, err := nextTransfer(t.Status, action)
	if err != nil {
		return PlacementResponse{}, err
	}
	t.Status = next
	if next == TransferRejected {
		t.RejectedAt = timePtr(now)
	} else {
		t.CancelledAt = timePtr(now)
	}
	if err := st.UpdateTransfer(ctx, *t, TransferPending); err != nil {
		return PlacementResponse{}, err
	}

	resp, err := st.GetResponse(ctx, t.PlacementResponseID)
	if err != nil {
		return PlacementResponse{}, err
	}
	nextResp, err := nextResponse(resp.Status, ResponseRelease)
	if err != nil {
		return PlacementResponse{}, err
	}
	resp.Status = nextResp
	resp.CancelledAt = timePtr(now)
	if err := st.UpdateResponse(ctx, resp, ResponseAccepted); err != nil {
		return PlacementResponse{}, err
	}
	return resp, nil
}

// GetTransfer: partes de la transferencia o admin.
func (s *Service) GetTransfer(ctx context.Context, actor Actor, transferID string) (TransferRequest, error) {
	var out TransferRequest
	err := s.view(ctx, func(ctx context.Context, st Store) error {
		t, err := st.GetTransfer(ctx, transferID)
		if err != nil {
			return notFound(err, "transfer request")
		}
		if !transferParty(actor, t) && !actor.IsAdmin() {
			return apperr.Forbidden("not a party to this transfer")
		}
		out = t
		return nil
	})
	return out, err
}

func transferParty(a Actor, t TransferRequest) bool {
	return a.UserID == t.FromUserID || a.UserID == t.ToUserID
}

func (s *Service) loadTransfer(ctx context.Context, st Store, transferID string) (TransferRequest, PlacementRequest, error) {
	t, err := st.GetTransfer(ctx, transferID)
	if err != nil {
		return TransferRequest{}, PlacementRequest{}, notFound(err, "transfer request")
	}
	req, err := st.GetRequest(ctx, t.PlacementRequestID)
	if err != nil {
		return TransferRequest{}, PlacementRequest{}, notFound(err, "placement request")
	}
	t, err = st.GetTransfer(ctx, transferID)
	if err != nil {
		return TransferRequest{}, PlacementRequest{}, notFound(err, "transfer request")
	}
	return t, req, nil
}

func (s *Service) appendFulfilled(ctx context.Context, st Store, req PlacementRequest, actor Actor, now time.Time) error {
	typ := events.ActorTypeOwnerUser
	if actor.UserID != req.OwnerUserID {
		typ = events.ActorTypeHelperUser
	}
	return st.AppendEvent(ctx, events.NewSystemEvent(s.newID(), req.PetID, events.EventTypePlacementFulfilled,
		events.Actor{Type: typ, ID: actor.UserID}, "Placement fulfilled ("+string(req.Type)+")", now))
}
