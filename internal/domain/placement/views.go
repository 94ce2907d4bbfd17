package placement

import (
	"context"
	"errors"
	"strings"

	"pet-rehoming/internal/platform/apperr"
)

// Orden estable para listar acciones.
var (
	requestActionOrder    = []RequestAction{RequestCancel, RequestExpire}
	responseActionOrder   = []ResponseAction{ResponseAccept, ResponseReject, ResponseCancel}
	transferActionOrder   = []TransferAction{TransferConfirm, TransferReject, TransferCancel}
	assignmentActionOrder = []AssignmentAction{AssignmentComplete}
	handoverActionOrder   = []HandoverAction{HandoverConfirm, HandoverDispute, HandoverComplete}
)

// Las acciones disponibles salen de la tabla de transiciones filtrada por la
// relación del actor con la entidad. Las acciones internas (fulfill, reopen,
// release, accept_response) nunca se ofrecen.

func RequestActions(a Actor, r PlacementRequest) []RequestAction {
	var out []RequestAction
	for _, act := range requestTransitions.actions(r.Status, requestActionOrder) {
		switch act {
		case RequestCancel:
			if a.UserID == r.OwnerUserID {
				out = append(out, act)
			}
		case RequestExpire:
			if a.IsAdmin() && r.ExpiresAt != nil {
				out = append(out, act)
			}
		}
	}
	return out
}

// ResponseActions considera también el aviso: no se acepta sobre un aviso cerrado.
func ResponseActions(a Actor, r PlacementRequest, resp PlacementResponse) []ResponseAction {
	var out []ResponseAction
	for _, act := range responseTransitions.actions(resp.Status, responseActionOrder) {
		switch act {
		case ResponseAccept:
			if a.UserID == r.OwnerUserID && r.Status.Active() {
				out = append(out, act)
			}
		case ResponseReject:
			if a.UserID == r.OwnerUserID {
				out = append(out, act)
			}
		case ResponseCancel:
			if a.UserID == resp.HelperUserID {
				out = append(out, act)
			}
		}
	}
	return out
}

func TransferActions(a Actor, t TransferRequest) []TransferAction {
	var out []TransferAction
	for _, act := range transferTransitions.actions(t.Status, transferActionOrder) {
		switch act {
		case TransferConfirm, TransferReject:
			if a.UserID == t.ToUserID {
				out = append(out, act)
			}
		case TransferCancel:
			if transferParty(a, t) {
				out = append(out, act)
			}
		}
	}
	return out
}

// AssignmentActions: completar directo es solo de admin; las partes pasan por el handover.
func AssignmentActions(a Actor, fa FosterAssignment) []AssignmentAction {
	if !a.IsAdmin() {
		return nil
	}
	return assignmentTransitions.actions(fa.Status, assignmentActionOrder)
}

func HandoverActions(a Actor, h FosterReturnHandover) []HandoverAction {
	var out []HandoverAction
	for _, act := range handoverTransitions.actions(h.Status, handoverActionOrder) {
		switch act {
		case HandoverConfirm, HandoverDispute:
			if a.UserID == h.OwnerUserID {
				out = append(out, act)
			}
		case HandoverComplete:
			if a.UserID == h.OwnerUserID || a.UserID == h.FosterUserID {
				out = append(out, act)
			}
		}
	}
	return out
}

type ResponseView struct {
	Response PlacementResponse
	Actions  []ResponseAction
}

type TransferView struct {
	Transfer TransferRequest
	Actions  []TransferAction
}

// RequestView es el aviso con sus relaciones inmediatas tal como las puede ver el actor.
type RequestView struct {
	Request    PlacementRequest
	Actions    []RequestAction
	CanRespond bool
	Responses  []ResponseView
	Transfers  []TransferView
	Assignment *FosterAssignment
}

// GetRequestView: cualquier usuario autenticado ve el aviso. El owner y admin
// ven todas las respuestas; un helper solo las suyas.
func (s *Service) GetRequestView(ctx context.Context, actor Actor, requestID string) (RequestView, error) {
	if strings.TrimSpace(actor.UserID) == "" {
		return RequestView{}, apperr.Forbidden("authentication required")
	}

	var out RequestView
	err := s.view(ctx, func(ctx context.Context, st Store) error {
		req, err := st.GetRequest(ctx, requestID)
		if err != nil {
			return notFound(err, "placement request")
		}
		seesAll := req.OwnerUserID == actor.UserID || actor.IsAdmin()

		out = RequestView{Request: req, Actions: RequestActions(actor, req)}

		responses, err := st.ListResponses(ctx, req.ID)
		if err != nil {
			return err
		}
		hasPending := false
		for _, r := range responses {
			if r.HelperUserID == actor.UserID && r.Status == ResponsePending {
				hasPending = true
			}
			if !seesAll && r.HelperUserID != actor.UserID {
				continue
			}
			out.Responses = append(out.Responses, ResponseView{Response: r, Actions: ResponseActions(actor, req, r)})
		}
		out.CanRespond = req.Status == RequestOpen && req.OwnerUserID != actor.UserID && !hasPending

		transfers, err := st.ListTransfersByRequest(ctx, req.ID)
		if err != nil {
			return err
		}
		for _, t := range transfers {
			if !seesAll && !transferParty(actor, t) {
				continue
			}
			out.Transfers = append(out.Transfers, TransferView{Transfer: t, Actions: TransferActions(actor, t)})
			if t.Status != TransferConfirmed || !req.Type.Foster() {
				continue
			}
			a, err := st.GetAssignmentByTransfer(ctx, t.ID)
			switch {
			case err == nil:
				out.Assignment = &a
			case !errors.Is(err, ErrRowNotFound):
				return err
			}
		}
		return nil
	})
	return out, err
}
