package placement

import (
	"context"
	"strings"

	"pet-rehoming/internal/platform/apperr"
)

type SubmitResponseInput struct {
	HelperProfileID string
	Message         string
}

// AcceptResult es todo lo que cambió al aceptar una respuesta.
type AcceptResult struct {
	Request  PlacementRequest
	Response PlacementResponse
	Rejected []PlacementResponse
	// Transfer es nil para pet_sitting.
	Transfer *TransferRequest
}

func responseLink(requestID string) string { return requestLink(requestID) + "#responses" }

// SubmitResponse registra la oferta de un helper sobre un aviso open.
func (s *Service) SubmitResponse(ctx context.Context, actor Actor, requestID string, in SubmitResponseInput) (PlacementResponse, error) {
	if strings.TrimSpace(in.HelperProfileID) == "" {
		return PlacementResponse{}, apperr.Validation("helper_profile_id is required")
	}
	if len(in.Message) > 2000 {
		return PlacementResponse{}, apperr.Validation("message is too long")
	}

	var out PlacementResponse
	err := s.transition(ctx, "response", "submit", func(ctx context.Context, st Store, box *outbox) error {
		req, err := st.GetRequest(ctx, requestID)
		if err != nil {
			return notFound(err, "placement request")
		}
		helper, err := st.GetHelperProfile(ctx, in.HelperProfileID)
		if err != nil {
			return notFound(err, "helper profile")
		}
		if helper.UserID != actor.UserID {
			return apperr.Forbidden("helper profile belongs to another user")
		}
		if req.OwnerUserID == actor.UserID {
			return apperr.Forbidden("the pet owner cannot respond to their own request")
		}
		if !helper.Active {
			return apperr.Conflict("helper profile is archived")
		}
		if req.Status != RequestOpen {
			return conflictf("placement request is %s; responses are closed", req.Status)
		}

		existing, err := st.ListResponses(ctx, req.ID)
		if err != nil {
			return err
		}
		for _, r := range existing {
			if r.HelperUserID == actor.UserID && r.Status == ResponsePending {
				return apperr.Conflict("you already have a pending response on this request")
			}
		}

		r := PlacementResponse{
			ID:                 s.newID(),
			PlacementRequestID: req.ID,
			HelperProfileID:    helper.ID,
			HelperUserID:       helper.UserID,
			Status:             ResponsePending,
			Message:            strings.TrimSpace(in.Message),
			RespondedAt:        s.now(),
		}
		if err := st.CreateResponse(ctx, r); err != nil {
			return err
		}
		box.add(req.OwnerUserID, "Someone responded to your placement request", responseLink(req.ID),
			"placement_response.submitted",
			map[string]any{"placement_request_id": req.ID, "placement_response_id": r.ID})

		out = r
		return nil
	})
	return out, err
}

// AcceptResponse acepta una respuesta pendiente, rechaza las demás y, salvo
// pet_sitting, crea la transferencia. Todo en una transacción: de dos accepts
// concurrentes sobre el mismo aviso, el segundo ve el estado ya cambiado y da Conflict.
func (s *Service) AcceptResponse(ctx context.Context, actor Actor, responseID string) (AcceptResult, error) {
	var out AcceptResult
	err := s.transition(ctx, "response", "accept", func(ctx context.Context, st Store, box *outbox) error {
		resp, req, err := s.loadResponse(ctx, st, responseID)
		if err != nil {
			return err
		}
		if req.OwnerUserID != actor.UserID {
			return apperr.Forbidden("only the request owner can accept a response")
		}

		nextResp, err := nextResponse(resp.Status, ResponseAccept)
		if err != nil {
			return err
		}
		action := RequestAcceptResponse
		if !req.Type.Transfers() {
			action = RequestFulfill
		}
		nextReq, err := nextRequest(req.Status, action)
		if err != nil {
			return err
		}

		siblings, err := st.ListResponses(ctx, req.ID)
		if err != nil {
			return err
		}
		for _, o := range siblings {
			if o.ID != resp.ID && o.Status == ResponseAccepted {
				return apperr.Conflict("another response is already accepted for this request")
			}
		}

		now := s.now()
		resp.Status = nextResp
		resp.AcceptedAt = timePtr(now)
		if err := st.UpdateResponse(ctx, resp, ResponsePending); err != nil {
			return err
		}

		rejected, err := s.closePendingResponses(ctx, st, req.ID, resp.ID, now)
		if err != nil {
			return err
		}

		fromReq := req.Status
		req.Status = nextReq
		req.UpdatedAt = now
		if nextReq == RequestFulfilled {
			req.FulfilledAt = timePtr(now)
		}
		if err := st.UpdateRequest(ctx, req, fromReq); err != nil {
			return err
		}

		out = AcceptResult{Request: req, Response: resp, Rejected: rejected}

		if req.Type.Transfers() {
			pet, err := st.GetPet(ctx, req.PetID)
			if err != nil {
				return err
			}
			t := TransferRequest{
				ID:                  s.newID(),
				PlacementRequestID:  req.ID,
				PlacementResponseID: resp.ID,
				PetID:               pet.ID,
				FromUserID:          pet.OwnerUserID,
				ToUserID:            resp.HelperUserID,
				Status:              TransferPending,
				CreatedAt:           now,
			}
			if err := st.CreateTransfer(ctx, t); err != nil {
				return err
			}
			out.Transfer = &t
			box.add(t.ToUserID, "Your response was accepted; please confirm the transfer", transferLink(t.ID),
				"placement_response.accepted",
				map[string]any{"placement_request_id": req.ID, "placement_response_id": resp.ID, "transfer_request_id": t.ID})
		} else {
			if err := s.appendFulfilled(ctx, st, req, actor, now); err != nil {
				return err
			}
			box.add(resp.HelperUserID, "Your response was accepted", requestLink(req.ID),
				"placement_response.accepted",
				map[string]any{"placement_request_id": req.ID, "placement_response_id": resp.ID})
		}

		for _, r := range rejected {
			box.add(r.HelperUserID, "Your response was not selected", requestLink(req.ID),
				"placement_response.rejected",
				map[string]any{"placement_request_id": req.ID, "placement_response_id": r.ID})
		}
		return nil
	})
	return out, err
}

// RejectResponse: el owner descarta una respuesta sin aceptar otra.
func (s *Service) RejectResponse(ctx context.Context, actor Actor, responseID string) (PlacementResponse, error) {
	var out PlacementResponse
	err := s.transition(ctx, "response", "reject", func(ctx context.Context, st Store, box *outbox) error {
		resp, req, err := s.loadResponse(ctx, st, responseID)
		if err != nil {
			return err
		}
		if req.OwnerUserID != actor.UserID {
			return apperr.Forbidden("only the request owner can reject a response")
		}
		next, err := nextResponse(resp.Status, ResponseReject)
		if err != nil {
			return err
		}
		resp.Status = next
		resp.RejectedAt = timePtr(s.now())
		if err := st.UpdateResponse(ctx, resp, ResponsePending); err != nil {
			return err
		}
		box.add(resp.HelperUserID, "Your response was not selected", requestLink(req.ID),
			"placement_response.rejected",
			map[string]any{"placement_request_id": req.ID, "placement_response_id": resp.ID})
		out = resp
		return nil
	})
	return out, err
}

// CancelResponse: el helper retira su oferta mientras sigue pending.
func (s *Service) CancelResponse(ctx context.Context, actor Actor, responseID string) (PlacementResponse, error) {
	var out PlacementResponse
	err := s.transition(ctx, "response", "cancel", func(ctx context.Context, st Store, box *outbox) error {
		resp, req, err := s.loadResponse(ctx, st, responseID)
		if err != nil {
			return err
		}
		if resp.HelperUserID != actor.UserID {
			return apperr.Forbidden("only the responder can cancel a response")
		}
		next, err := nextResponse(resp.Status, ResponseCancel)
		if err != nil {
			return err
		}
		resp.Status = next
		resp.CancelledAt = timePtr(s.now())
		if err := st.UpdateResponse(ctx, resp, ResponsePending); err != nil {
			return err
		}
		box.add(req.OwnerUserID, "A helper withdrew their response", responseLink(req.ID),
			"placement_response.cancelled",
			map[string]any{"placement_request_id": req.ID, "placement_response_id": resp.ID})
		out = resp
		return nil
	})
	return out, err
}

// ListMyResponses devuelve las respuestas del actor en todos los avisos.
func (s *Service) ListMyResponses(ctx context.Context, actor Actor) ([]PlacementResponse, error) {
	if strings.TrimSpace(actor.UserID) == "" {
		return nil, apperr.Forbidden("authentication required")
	}
	var out []PlacementResponse
	err := s.view(ctx, func(ctx context.Context, st Store) error {
		var err error
		out, err = st.ListResponsesByHelperUser(ctx, actor.UserID)
		return err
	})
	return out, err
}

// loadResponse lee la respuesta y bloquea su aviso. El aviso es la raíz del
// grafo: toda transición sobre respuestas o transferencias lo toma primero.
func (s *Service) loadResponse(ctx context.Context, st Store, responseID string) (PlacementResponse, PlacementRequest, error) {
	resp, err := st.GetResponse(ctx, responseID)
	if err != nil {
		return PlacementResponse{}, PlacementRequest{}, notFound(err, "placement response")
	}
	req, err := st.GetRequest(ctx, resp.PlacementRequestID)
	if err != nil {
		return PlacementResponse{}, PlacementRequest{}, notFound(err, "placement request")
	}
	// Releer después del lock: otra transacción pudo cambiarla mientras esperábamos.
	resp, err = st.GetResponse(ctx, responseID)
	if err != nil {
		return PlacementResponse{}, PlacementRequest{}, notFound(err, "placement response")
	}
	return resp, req, nil
}
