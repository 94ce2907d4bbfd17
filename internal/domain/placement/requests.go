package placement

import (
	"context"
	"errors"
	"strings"
	"time"

	"pet-rehoming/internal/domain/capabilities"
	"pet-rehoming/internal/domain/events"
	"pet-rehoming/internal/platform/apperr"
)

const sweepBatchSize = 500

type CreateRequestInput struct {
	PetID     string
	Type      RequestType
	Notes     string
	StartDate *time.Time
	EndDate   *time.Time
	ExpiresAt *time.Time
}

type CancelRequestResult struct {
	Request PlacementRequest
	// Closed son las respuestas pendientes que quedaron rejected.
	Closed             []PlacementResponse
	CancelledTransfers []TransferRequest
}

type SweepResult struct {
	Expired []PlacementRequest
	// Skipped: avisos que cambiaron de estado entre la selección y su transacción.
	Skipped int
}

func requestLink(id string) string { return "/placement-requests/" + id }

// CreateRequest publica un aviso. Solo el owner actual; un aviso vigente por mascota.
func (s *Service) CreateRequest(ctx context.Context, actor Actor, in CreateRequestInput) (PlacementRequest, error) {
	if err := validateCreateRequest(in, s.now()); err != nil {
		return PlacementRequest{}, err
	}

	// El registro de tipos puede ser remoto: se consulta antes de abrir la
	// transacción para no retener el lock de escritura durante la llamada.
	if err := s.view(ctx, func(ctx context.Context, st Store) error {
		pet, err := st.GetPet(ctx, in.PetID)
		if err != nil {
			return notFound(err, "pet")
		}
		if pet.OwnerUserID != actor.UserID {
			return apperr.Forbidden("only the pet owner can create a placement request")
		}
		if err := s.requireCapability(ctx, pet, capabilities.Placement); err != nil {
			return err
		}
		if in.Type.Foster() {
			return s.requireCapability(ctx, pet, capabilities.Fostering)
		}
		return nil
	}); err != nil {
		return PlacementRequest{}, err
	}

	var out PlacementRequest
	err := s.transition(ctx, "request", "create", func(ctx context.Context, st Store, box *outbox) error {
		pet, err := st.GetPet(ctx, in.PetID)
		if err != nil {
			return notFound(err, "pet")
		}
		// El owner pudo cambiar entre la lectura previa y la transacción.
		if pet.OwnerUserID != actor.UserID {
			return apperr.Forbidden("only the pet owner can create a placement request")
		}

		if _, err := st.ActiveRequestForPet(ctx, pet.ID); err == nil {
			return apperr.Conflict("pet already has an active placement request")
		} else if !errors.Is(err, ErrRowNotFound) {
			return err
		}
		// Con un foster activo la mascota no está con el owner: primero hay que devolverla.
		if err := requireNoActiveFoster(ctx, st, pet.ID); err != nil {
			return err
		}

		now := s.now()
		r := PlacementRequest{
			ID:          s.newID(),
			PetID:       pet.ID,
			OwnerUserID: pet.OwnerUserID,
			Type:        in.Type,
			Status:      RequestOpen,
			Notes:       strings.TrimSpace(in.Notes),
			StartDate:   in.StartDate,
			EndDate:     in.EndDate,
			ExpiresAt:   in.ExpiresAt,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := st.CreateRequest(ctx, r); err != nil {
			return err
		}
		if err := st.AppendEvent(ctx, events.NewSystemEvent(s.newID(), pet.ID, events.EventTypePlacementRequested,
			events.Actor{Type: events.ActorTypeOwnerUser, ID: actor.UserID},
			"Placement requested ("+string(r.Type)+")", now)); err != nil {
			return err
		}

		out = r
		return nil
	})
	return out, err
}

func validateCreateRequest(in CreateRequestInput, now time.Time) error {
	if strings.TrimSpace(in.PetID) == "" {
		return apperr.Validation("pet_id is required")
	}
	if !in.Type.Valid() {
		return apperr.Validation("request_type must be permanent, foster_free, foster_paid or pet_sitting")
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return apperr.Validation("end_date must not be before start_date")
	}
	if in.Type == RequestPermanent && in.EndDate != nil {
		return apperr.Validation("permanent requests have no end_date")
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		return apperr.Validation("expires_at must be in the future")
	}
	return nil
}

// CancelRequest: solo el owner, desde open o pending_review. Las respuestas
// pendientes quedan rejected y la transferencia pendiente, si la hay, cancelled.
func (s *Service) CancelRequest(ctx context.Context, actor Actor, requestID string) (CancelRequestResult, error) {
	var out CancelRequestResult
	err := s.transition(ctx, "request", "cancel", func(ctx context.Context, st Store, box *outbox) error {
		req, err := st.GetRequest(ctx, requestID)
		if err != nil {
			return notFound(err, "placement request")
		}
		if req.OwnerUserID != actor.UserID {
			return apperr.Forbidden("only the request owner can cancel it")
		}

		from := req.Status
		next, err := nextRequest(from, RequestCancel)
		if err != nil {
			return err
		}
		now := s.now()
		req.Status = next
		req.CancelledAt = timePtr(now)
		req.UpdatedAt = now
		if err := st.UpdateRequest(ctx, req, from); err != nil {
			return err
		}
		out = CancelRequestResult{Request: req}

		closed, err := s.closePendingResponses(ctx, st, req.ID, "", now)
		if err != nil {
			return err
		}
		out.Closed = closed
		for _, r := range closed {
			box.add(r.HelperUserID, "A placement request you responded to was cancelled",
				requestLink(req.ID), "placement_request.cancelled",
				map[string]any{"placement_request_id": req.ID, "placement_response_id": r.ID})
		}

		transfers, err := st.ListTransfersByRequest(ctx, req.ID)
		if err != nil {
			return err
		}
		for _, t := range transfers {
			if t.Status != TransferPending {
				continue
			}
			if _, err := s.revertTransfer(ctx, st, &t, TransferCancel, now); err != nil {
				return err
			}
			out.CancelledTransfers = append(out.CancelledTransfers, t)
			box.add(t.ToUserID, "A pending transfer was cancelled because the placement request was withdrawn",
				transferLink(t.ID), "transfer_request.cancelled",
				map[string]any{"placement_request_id": req.ID, "transfer_request_id": t.ID})
		}

		return st.AppendEvent(ctx, events.NewSystemEvent(s.newID(), req.PetID, events.EventTypePlacementCancelled,
			events.Actor{Type: events.ActorTypeOwnerUser, ID: actor.UserID}, "Placement request cancelled", now))
	})
	return out, err
}

// ExpireRequest expira un aviso vencido (admin). Repetirlo sobre uno ya expirado no hace nada.
func (s *Service) ExpireRequest(ctx context.Context, actor Actor, requestID string) (PlacementRequest, error) {
	if !actor.IsAdmin() {
		return PlacementRequest{}, apperr.Forbidden("admin role required")
	}
	var out PlacementRequest
	err := s.transition(ctx, "request", "expire", func(ctx context.Context, st Store, box *outbox) error {
		req, err := st.GetRequest(ctx, requestID)
		if err != nil {
			return notFound(err, "placement request")
		}
		if req.Status == RequestExpired {
			out = req
			return nil
		}
		now := s.now()
		if !isDue(req, now) {
			return apperr.Conflict("placement request has not reached expires_at")
		}
		out, err = s.expire(ctx, st, box, req, now)
		return err
	})
	return out, err
}

// ExpireDue es el barrido que dispara el scheduler externo. Cada aviso se
// expira en su propia transacción; los que cambiaron de estado en el medio se saltean.
func (s *Service) ExpireDue(ctx context.Context, now time.Time) (SweepResult, error) {
	if now.IsZero() {
		now = s.now()
	}
	ctx, span := s.tracer.Start(ctx, "placement.request.expire_sweep")
	defer span.End()

	var due []PlacementRequest
	if err := s.view(ctx, func(ctx context.Context, st Store) error {
		var err error
		due, err = st.ListExpirable(ctx, now, sweepBatchSize)
		return err
	}); err != nil {
		return SweepResult{}, err
	}

	var res SweepResult
	var errs []error
	for _, candidate := range due {
		var expired *PlacementRequest
		err := s.transition(ctx, "request", "expire", func(ctx context.Context, st Store, box *outbox) error {
			req, err := st.GetRequest(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if req.Status != RequestOpen || !isDue(req, now) {
				return nil
			}
			r, err := s.expire(ctx, st, box, req, now)
			if err != nil {
				return err
			}
			expired = &r
			return nil
		})
		switch {
		case err == nil && expired != nil:
			res.Expired = append(res.Expired, *expired)
		case err == nil, errors.Is(err, apperr.ErrConflict), errors.Is(err, apperr.ErrNotFound):
			res.Skipped++
		default:
			errs = append(errs, err)
		}
	}

	s.metrics.AddExpired(len(res.Expired))
	s.log.Info("expiry sweep finished", map[string]any{
		"candidates": len(due),
		"expired":    len(res.Expired),
		"skipped":    res.Skipped,
		"failed":     len(errs),
	})
	return res, errors.Join(errs...)
}

func (s *Service) expire(ctx context.Context, st Store, box *outbox, req PlacementRequest, now time.Time) (PlacementRequest, error) {
	from := req.Status
	next, err := nextRequest(from, RequestExpire)
	if err != nil {
		return PlacementRequest{}, err
	}
	req.Status = next
	req.UpdatedAt = now
	if err := st.UpdateRequest(ctx, req, from); err != nil {
		return PlacementRequest{}, err
	}

	closed, err := s.closePendingResponses(ctx, st, req.ID, "", now)
	if err != nil {
		return PlacementRequest{}, err
	}
	for _, r := range closed {
		box.add(r.HelperUserID, "A placement request you responded to has expired",
			requestLink(req.ID), "placement_request.expired",
			map[string]any{"placement_request_id": req.ID, "placement_response_id": r.ID})
	}
	box.add(req.OwnerUserID, "Your placement request has expired", requestLink(req.ID),
		"placement_request.expired", map[string]any{"placement_request_id": req.ID})

	err = st.AppendEvent(ctx, events.NewSystemEvent(s.newID(), req.PetID, events.EventTypePlacementExpired,
		events.Actor{Type: events.ActorTypeSystem}, "Placement request expired", now))
	return req, err
}

func isDue(r PlacementRequest, now time.Time) bool {
	return r.ExpiresAt != nil && !r.ExpiresAt.After(now)
}

// closePendingResponses pasa a rejected toda respuesta pendiente del aviso menos keepID.
func (s *Service) closePendingResponses(ctx context.Context, st Store, requestID, keepID string, now time.Time) ([]PlacementResponse, error) {
	responses, err := st.ListResponses(ctx, requestID)
	if err != nil {
		return nil, err
	}
	var closed []PlacementResponse
	for _, r := range responses {
		if r.ID == keepID || r.Status != ResponsePending {
			continue
		}
		next, err := nextResponse(r.Status, ResponseReject)
		if err != nil {
			return nil, err
		}
		r.Status = next
		r.RejectedAt = timePtr(now)
		if err := st.UpdateResponse(ctx, r, ResponsePending); err != nil {
			return nil, err
		}
		closed = append(closed, r)
	}
	return closed, nil
}

// ListRequestsByPet: los avisos son públicos para usuarios autenticados.
func (s *Service) ListRequestsByPet(ctx context.Context, actor Actor, petID string) ([]PlacementRequest, error) {
	if strings.TrimSpace(actor.UserID) == "" {
		return nil, apperr.Forbidden("authentication required")
	}
	var out []PlacementRequest
	err := s.view(ctx, func(ctx context.Context, st Store) error {
		if _, err := st.GetPet(ctx, petID); err != nil {
			return notFound(err, "pet")
		}
		var err error
		out, err = st.ListRequestsByPet(ctx, petID)
		return err
	})
	return out, err
}
