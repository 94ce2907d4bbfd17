package placement

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"pet-rehoming/internal/middleware"
	"pet-rehoming/internal/platform/apperr"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	// Sin Route("/pets/{petID}"): ese mount taparía GET/PATCH /pets/{petID} del módulo pets.
	r.Post("/pets/{petID}/placement-requests", createRequestHandler(svc))
	r.Get("/pets/{petID}/placement-requests", listRequestsHandler(svc))
	r.Get("/pets/{petID}/foster-assignments", listAssignmentsHandler(svc))

	r.Route("/placement-requests/{requestID}", func(rr chi.Router) {
		rr.Get("/", getRequestHandler(svc))
		rr.Post("/cancel", cancelRequestHandler(svc))
		rr.Post("/expire", expireRequestHandler(svc))
		rr.Post("/responses", submitResponseHandler(svc))
	})
	r.Post("/admin/placement-requests/expire-sweep", expireSweepHandler(svc))

	r.Get("/me/placement-responses", myResponsesHandler(svc))
	r.Route("/placement-responses/{responseID}", func(rr chi.Router) {
		rr.Post("/accept", acceptResponseHandler(svc))
		rr.Post("/reject", responseTransitionHandler(svc.RejectResponse))
		rr.Post("/cancel", responseTransitionHandler(svc.CancelResponse))
	})

	r.Route("/transfer-requests/{transferID}", func(tr chi.Router) {
		tr.Get("/", getTransferHandler(svc))
		tr.Post("/confirm", confirmTransferHandler(svc))
		tr.Post("/reject", revertTransferHandler(svc.RejectTransfer))
		tr.Post("/cancel", revertTransferHandler(svc.CancelTransfer))
	})

	r.Route("/foster-assignments/{assignmentID}", func(ar chi.Router) {
		ar.Get("/", getAssignmentHandler(svc))
		ar.Post("/complete", adminCompleteAssignmentHandler(svc))
		ar.Post("/return-handovers", initiateHandoverHandler(svc))
		ar.Get("/return-handovers", listHandoversHandler(svc))
	})

	r.Route("/return-handovers/{handoverID}", func(hr chi.Router) {
		hr.Get("/", getHandoverHandler(svc))
		hr.Post("/confirm-condition", confirmConditionHandler(svc))
		hr.Post("/complete", completeHandoverHandler(svc))
	})
}

// errorResponse es el cuerpo de todo error del motor.
type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
	Code   string `json:"code,omitempty"`
}

type createRequestBody struct {
	RequestType RequestType `json:"request_type" enums:"permanent,foster_free,foster_paid,pet_sitting"`
	Notes       string      `json:"notes"`
	StartDate   string      `json:"start_date,omitempty"` // YYYY-MM-DD
	EndDate     string      `json:"end_date,omitempty"`   // YYYY-MM-DD
	ExpiresAt   string      `json:"expires_at,omitempty"` // RFC3339
}

type requestResponse struct {
	ID          string        `json:"id"`
	PetID       string        `json:"pet_id"`
	OwnerUserID string        `json:"owner_user_id"`
	RequestType RequestType   `json:"request_type"`
	Status      RequestStatus `json:"status"`
	Notes       string        `json:"notes"`
	StartDate   *string       `json:"start_date"`
	EndDate     *string       `json:"end_date"`
	ExpiresAt   *time.Time    `json:"expires_at"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	FulfilledAt *time.Time    `json:"fulfilled_at"`
	CancelledAt *time.Time    `json:"cancelled_at"`
}

type responseResponse struct {
	ID                 string           `json:"id"`
	PlacementRequestID string           `json:"placement_request_id"`
	HelperProfileID    string           `json:"helper_profile_id"`
	HelperUserID       string           `json:"helper_user_id"`
	Status             ResponseStatus   `json:"status"`
	Message            string           `json:"message"`
	RespondedAt        time.Time        `json:"responded_at"`
	AcceptedAt         *time.Time       `json:"accepted_at"`
	RejectedAt         *time.Time       `json:"rejected_at"`
	CancelledAt        *time.Time       `json:"cancelled_at"`
	AvailableActions   []ResponseAction `json:"available_actions,omitempty"`
}

type transferResponse struct {
	ID                  string           `json:"id"`
	PlacementRequestID  string           `json:"placement_request_id"`
	PlacementResponseID string           `json:"placement_response_id"`
	PetID               string           `json:"pet_id"`
	FromUserID          string           `json:"from_user_id"`
	ToUserID            string           `json:"to_user_id"`
	Status              TransferStatus   `json:"status"`
	CreatedAt           time.Time        `json:"created_at"`
	ConfirmedAt         *time.Time       `json:"confirmed_at"`
	RejectedAt          *time.Time       `json:"rejected_at"`
	CancelledAt         *time.Time       `json:"cancelled_at"`
	AvailableActions    []TransferAction `json:"available_actions,omitempty"`
}

type assignmentResponse struct {
	ID                string             `json:"id"`
	PetID             string             `json:"pet_id"`
	TransferRequestID string             `json:"transfer_request_id"`
	OwnerUserID       string             `json:"owner_user_id"`
	FosterUserID      string             `json:"foster_user_id"`
	Status            AssignmentStatus   `json:"status"`
	StartedAt         time.Time          `json:"started_at"`
	CompletedAt       *time.Time         `json:"completed_at"`
	AvailableActions  []AssignmentAction `json:"available_actions,omitempty"`
}

type handoverResponse struct {
	ID                 string           `json:"id"`
	FosterAssignmentID string           `json:"foster_assignment_id"`
	OwnerUserID        string           `json:"owner_user_id"`
	FosterUserID       string           `json:"foster_user_id"`
	Status             HandoverStatus   `json:"status"`
	ScheduledAt        *time.Time       `json:"scheduled_at"`
	Location           string           `json:"location"`
	ConditionConfirmed *bool            `json:"condition_confirmed"`
	ConditionNotes     string           `json:"condition_notes"`
	FosterInitiatedAt  time.Time        `json:"foster_initiated_at"`
	OwnerConfirmedAt   *time.Time       `json:"owner_confirmed_at"`
	CompletedAt        *time.Time       `json:"completed_at"`
	AvailableActions   []HandoverAction `json:"available_actions,omitempty"`
}

type requestViewResponse struct {
	requestResponse
	AvailableActions []RequestAction     `json:"available_actions"`
	CanRespond       bool                `json:"can_respond"`
	Responses        []responseResponse  `json:"responses"`
	Transfers        []transferResponse  `json:"transfers"`
	Assignment       *assignmentResponse `json:"foster_assignment,omitempty"`
}

type acceptResponseBody struct {
	Request  requestResponse    `json:"placement_request"`
	Response responseResponse   `json:"placement_response"`
	Rejected []responseResponse `json:"rejected_responses"`
	Transfer *transferResponse  `json:"transfer_request,omitempty"`
}

type confirmTransferBody struct {
	Transfer   transferResponse    `json:"transfer_request"`
	Request    requestResponse     `json:"placement_request"`
	Assignment *assignmentResponse `json:"foster_assignment,omitempty"`
	NewOwner   string              `json:"new_owner_user_id,omitempty"`
}

type revertTransferBody struct {
	Transfer transferResponse `json:"transfer_request"`
	Request  requestResponse  `json:"placement_request"`
	Response responseResponse `json:"placement_response"`
}

type cancelRequestBody struct {
	Request            requestResponse    `json:"placement_request"`
	Closed             []responseResponse `json:"closed_responses"`
	CancelledTransfers []transferResponse `json:"cancelled_transfers"`
}

type sweepBody struct {
	Expired []requestResponse `json:"expired"`
	Skipped int               `json:"skipped"`
}

type submitResponseBody struct {
	HelperProfileID string `json:"helper_profile_id"`
	Message         string `json:"message"`
}

type initiateHandoverBody struct {
	ScheduledAt string `json:"scheduled_at,omitempty"` // RFC3339
	Location    string `json:"location"`
}

type confirmConditionBody struct {
	ConditionConfirmed *bool  `json:"condition_confirmed"`
	ConditionNotes     string `json:"condition_notes"`
}

type completeHandoverBody struct {
	Handover   handoverResponse   `json:"return_handover"`
	Assignment assignmentResponse `json:"foster_assignment"`
}

// createRequestHandler godoc
// @Summary Publicar aviso de placement
// @Description Solo el dueño actual. Falla con 409 si ya hay un aviso activo y con 422 si el tipo de mascota no admite placement (o fostering para foster_*).
// @Tags placement
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param petID path string true "ID de la mascota"
// @Param payload body createRequestBody true "Datos del aviso"
// @Success 201 {object} requestResponse
// @Failure 400 {object} errorResponse
// @Failure 403 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Failure 422 {object} errorResponse
// @Router /pets/{petID}/placement-requests [post]
func createRequestHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		var body createRequestBody
		if !decode(w, r, &body) {
			return
		}

		in := CreateRequestInput{PetID: chi.URLParam(r, "petID"), Type: body.RequestType, Notes: body.Notes}
		var err error
		if in.StartDate, err = parseDate(body.StartDate, "start_date"); err != nil {
			writeError(w, err)
			return
		}
		if in.EndDate, err = parseDate(body.EndDate, "end_date"); err != nil {
			writeError(w, err)
			return
		}
		if in.ExpiresAt, err = parseTimestamp(body.ExpiresAt, "expires_at"); err != nil {
			writeError(w, err)
			return
		}

		req, err := svc.CreateRequest(r.Context(), actor, in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toRequestResponse(req))
	}
}

func listRequestsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		list, err := svc.ListRequestsByPet(r.Context(), actor, chi.URLParam(r, "petID"))
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]requestResponse, 0, len(list))
		for _, req := range list {
			out = append(out, toRequestResponse(req))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// getRequestHandler godoc
// @Summary Ver aviso de placement
// @Description Devuelve el aviso con las respuestas visibles para el actor, transferencias, asignación y acciones disponibles.
// @Tags placement
// @Produce json
// @Param requestID path string true "ID del aviso"
// @Success 200 {object} requestViewResponse
// @Failure 404 {object} errorResponse
// @Router /placement-requests/{requestID} [get]
func getRequestHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		v, err := svc.GetRequestView(r.Context(), actor, chi.URLParam(r, "requestID"))
		if err != nil {
			writeError(w, err)
			return
		}

		out := requestViewResponse{
			requestResponse:  toRequestResponse(v.Request),
			AvailableActions: nonNil(v.Actions),
			CanRespond:       v.CanRespond,
			Responses:        make([]responseResponse, 0, len(v.Responses)),
			Transfers:        make([]transferResponse, 0, len(v.Transfers)),
		}
		for _, rv := range v.Responses {
			rr := toResponseResponse(rv.Response)
			rr.AvailableActions = rv.Actions
			out.Responses = append(out.Responses, rr)
		}
		for _, tv := range v.Transfers {
			tr := toTransferResponse(tv.Transfer)
			tr.AvailableActions = tv.Actions
			out.Transfers = append(out.Transfers, tr)
		}
		if v.Assignment != nil {
			a := toAssignmentResponse(*v.Assignment)
			a.AvailableActions = AssignmentActions(actor, *v.Assignment)
			out.Assignment = &a
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func cancelRequestHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		res, err := svc.CancelRequest(r.Context(), actor, chi.URLParam(r, "requestID"))
		if err != nil {
			writeError(w, err)
			return
		}
		out := cancelRequestBody{
			Request:            toRequestResponse(res.Request),
			Closed:             make([]responseResponse, 0, len(res.Closed)),
			CancelledTransfers: make([]transferResponse, 0, len(res.CancelledTransfers)),
		}
		for _, c := range res.Closed {
			out.Closed = append(out.Closed, toResponseResponse(c))
		}
		for _, t := range res.CancelledTransfers {
			out.CancelledTransfers = append(out.CancelledTransfers, toTransferResponse(t))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func expireRequestHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		req, err := svc.ExpireRequest(r.Context(), actor, chi.URLParam(r, "requestID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toRequestResponse(req))
	}
}

// expireSweepHandler godoc
// @Summary Barrido de expiración
// @Description Expira los avisos open vencidos. Solo admin. Mismo efecto que cmd/expire-sweep.
// @Tags admin
// @Produce json
// @Success 200 {object} sweepBody
// @Failure 403 {object} errorResponse
// @Router /admin/placement-requests/expire-sweep [post]
func expireSweepHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		if !actor.IsAdmin() {
			writeError(w, apperr.Forbidden("admin role required"))
			return
		}
		res, err := svc.ExpireDue(r.Context(), time.Time{})
		if err != nil && len(res.Expired) == 0 {
			writeError(w, err)
			return
		}
		out := sweepBody{Expired: make([]requestResponse, 0, len(res.Expired)), Skipped: res.Skipped}
		for _, req := range res.Expired {
			out.Expired = append(out.Expired, toRequestResponse(req))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// submitResponseHandler godoc
// @Summary Responder a un aviso
// @Description El helper ofrece hacerse cargo usando su perfil activo. Una respuesta pendiente por helper y aviso.
// @Tags placement
// @Accept json
// @Produce json
// @Param requestID path string true "ID del aviso"
// @Param payload body submitResponseBody true "Perfil y mensaje"
// @Success 201 {object} responseResponse
// @Failure 403 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Router /placement-requests/{requestID}/responses [post]
func submitResponseHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		var body submitResponseBody
		if !decode(w, r, &body) {
			return
		}
		resp, err := svc.SubmitResponse(r.Context(), actor, chi.URLParam(r, "requestID"), SubmitResponseInput{
			HelperProfileID: body.HelperProfileID,
			Message:         body.Message,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toResponseResponse(resp))
	}
}

func myResponsesHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		list, err := svc.ListMyResponses(r.Context(), actor)
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]responseResponse, 0, len(list))
		for _, resp := range list {
			out = append(out, toResponseResponse(resp))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// acceptResponseHandler godoc
// @Summary Aceptar respuesta
// @Description Acepta la respuesta, rechaza las demás pendientes y crea la transferencia (salvo pet_sitting, que cumple el aviso directamente). Un segundo accept concurrente recibe 409.
// @Tags placement
// @Produce json
// @Param responseID path string true "ID de la respuesta"
// @Success 200 {object} acceptResponseBody
// @Failure 403 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Router /placement-responses/{responseID}/accept [post]
func acceptResponseHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		res, err := svc.AcceptResponse(r.Context(), actor, chi.URLParam(r, "responseID"))
		if err != nil {
			writeError(w, err)
			return
		}
		out := acceptResponseBody{
			Request:  toRequestResponse(res.Request),
			Response: toResponseResponse(res.Response),
			Rejected: make([]responseResponse, 0, len(res.Rejected)),
		}
		for _, rj := range res.Rejected {
			out.Rejected = append(out.Rejected, toResponseResponse(rj))
		}
		if res.Transfer != nil {
			t := toTransferResponse(*res.Transfer)
			out.Transfer = &t
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func responseTransitionHandler(fn func(ctx context.Context, actor Actor, id string) (PlacementResponse, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		resp, err := fn(r.Context(), actor, chi.URLParam(r, "responseID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponseResponse(resp))
	}
}

func getTransferHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		t, err := svc.GetTransfer(r.Context(), actor, chi.URLParam(r, "transferID"))
		if err != nil {
			writeError(w, err)
			return
		}
		out := toTransferResponse(t)
		out.AvailableActions = TransferActions(actor, t)
		writeJSON(w, http.StatusOK, out)
	}
}

// confirmTransferHandler godoc
// @Summary Confirmar transferencia
// @Description Solo el destinatario. permanent reasigna el dueño; foster_* crea la asignación activa. El aviso queda fulfilled.
// @Tags placement
// @Produce json
// @Param transferID path string true "ID de la transferencia"
// @Success 200 {object} confirmTransferBody
// @Failure 403 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Router /transfer-requests/{transferID}/confirm [post]
func confirmTransferHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		res, err := svc.ConfirmTransfer(r.Context(), actor, chi.URLParam(r, "transferID"))
		if err != nil {
			writeError(w, err)
			return
		}
		out := confirmTransferBody{
			Transfer: toTransferResponse(res.Transfer),
			Request:  toRequestResponse(res.Request),
		}
		if res.Assignment != nil {
			a := toAssignmentResponse(*res.Assignment)
			out.Assignment = &a
		}
		if res.Pet != nil {
			out.NewOwner = res.Pet.OwnerUserID
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func revertTransferHandler(fn func(ctx context.Context, actor Actor, id string) (RevertResult, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		res, err := fn(r.Context(), actor, chi.URLParam(r, "transferID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, revertTransferBody{
			Transfer: toTransferResponse(res.Transfer),
			Request:  toRequestResponse(res.Request),
			Response: toResponseResponse(res.Response),
		})
	}
}

func getAssignmentHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		a, err := svc.GetAssignment(r.Context(), actor, chi.URLParam(r, "assignmentID"))
		if err != nil {
			writeError(w, err)
			return
		}
		out := toAssignmentResponse(a)
		out.AvailableActions = AssignmentActions(actor, a)
		writeJSON(w, http.StatusOK, out)
	}
}

func listAssignmentsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		list, err := svc.ListAssignmentsByPet(r.Context(), actor, chi.URLParam(r, "petID"))
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]assignmentResponse, 0, len(list))
		for _, a := range list {
			out = append(out, toAssignmentResponse(a))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func adminCompleteAssignmentHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		a, err := svc.AdminCompleteAssignment(r.Context(), actor, chi.URLParam(r, "assignmentID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAssignmentResponse(a))
	}
}

// initiateHandoverHandler godoc
// @Summary Iniciar devolución
// @Description Solo el foster de una asignación activa. Falla con 409 si ya hay una devolución abierta.
// @Tags placement
// @Accept json
// @Produce json
// @Param assignmentID path string true "ID de la asignación"
// @Param payload body initiateHandoverBody false "Fecha y lugar propuestos"
// @Success 201 {object} handoverResponse
// @Failure 403 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Router /foster-assignments/{assignmentID}/return-handovers [post]
func initiateHandoverHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		var body initiateHandoverBody
		if !decodeOptional(w, r, &body) {
			return
		}
		scheduled, err := parseTimestamp(body.ScheduledAt, "scheduled_at")
		if err != nil {
			writeError(w, err)
			return
		}
		h, err := svc.InitiateHandover(r.Context(), actor, chi.URLParam(r, "assignmentID"), InitiateHandoverInput{
			ScheduledAt: scheduled,
			Location:    body.Location,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toHandoverResponse(h, HandoverActions(actor, h)))
	}
}

func listHandoversHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		list, err := svc.ListHandovers(r.Context(), actor, chi.URLParam(r, "assignmentID"))
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]handoverResponse, 0, len(list))
		for _, h := range list {
			out = append(out, toHandoverResponse(h, HandoverActions(actor, h)))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getHandoverHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		h, err := svc.GetHandover(r.Context(), actor, chi.URLParam(r, "handoverID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toHandoverResponse(h, HandoverActions(actor, h)))
	}
}

// confirmConditionHandler godoc
// @Summary Confirmar estado de la mascota
// @Description Solo el dueño, desde pending. condition_confirmed=true pasa a confirmed; false a disputed.
// @Tags placement
// @Accept json
// @Produce json
// @Param handoverID path string true "ID de la devolución"
// @Param payload body confirmConditionBody true "Resultado de la revisión"
// @Success 200 {object} handoverResponse
// @Failure 400 {object} errorResponse
// @Failure 403 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Router /return-handovers/{handoverID}/confirm-condition [post]
func confirmConditionHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		var body confirmConditionBody
		if !decode(w, r, &body) {
			return
		}
		if body.ConditionConfirmed == nil {
			writeError(w, apperr.Validation("condition_confirmed is required"))
			return
		}
		h, err := svc.ConfirmCondition(r.Context(), actor, chi.URLParam(r, "handoverID"), ConfirmConditionInput{
			ConditionConfirmed: *body.ConditionConfirmed,
			Notes:              body.ConditionNotes,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toHandoverResponse(h, HandoverActions(actor, h)))
	}
}

func completeHandoverHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		res, err := svc.CompleteHandover(r.Context(), actor, chi.URLParam(r, "handoverID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, completeHandoverBody{
			Handover:   toHandoverResponse(res.Handover, nil),
			Assignment: toAssignmentResponse(res.Assignment),
		})
	}
}

func actorFrom(w http.ResponseWriter, r *http.Request) (Actor, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return Actor{}, false
	}
	return ActorFromClaims(claims), true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, apperr.Validation("invalid json"))
		return false
	}
	return true
}

// decodeOptional acepta cuerpo vacío.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeError(w, apperr.Validation("invalid json"))
	return false
}

func parseDate(s, field string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, apperr.Validation(field + " must be YYYY-MM-DD")
	}
	return &t, nil
}

func parseTimestamp(s, field string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, apperr.Validation(field + " must be RFC3339")
	}
	return &t, nil
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.DateOnly)
	return &s
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func toRequestResponse(r PlacementRequest) requestResponse {
	return requestResponse{
		ID:          r.ID,
		PetID:       r.PetID,
		OwnerUserID: r.OwnerUserID,
		RequestType: r.Type,
		Status:      r.Status,
		Notes:       r.Notes,
		StartDate:   formatDate(r.StartDate),
		EndDate:     formatDate(r.EndDate),
		ExpiresAt:   r.ExpiresAt,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		FulfilledAt: r.FulfilledAt,
		CancelledAt: r.CancelledAt,
	}
}

func toResponseResponse(r PlacementResponse) responseResponse {
	return responseResponse{
		ID:                 r.ID,
		PlacementRequestID: r.PlacementRequestID,
		HelperProfileID:    r.HelperProfileID,
		HelperUserID:       r.HelperUserID,
		Status:             r.Status,
		Message:            r.Message,
		RespondedAt:        r.RespondedAt,
		AcceptedAt:         r.AcceptedAt,
		RejectedAt:         r.RejectedAt,
		CancelledAt:        r.CancelledAt,
	}
}

func toTransferResponse(t TransferRequest) transferResponse {
	return transferResponse{
		ID:                  t.ID,
		PlacementRequestID:  t.PlacementRequestID,
		PlacementResponseID: t.PlacementResponseID,
		PetID:               t.PetID,
		FromUserID:          t.FromUserID,
		ToUserID:            t.ToUserID,
		Status:              t.Status,
		CreatedAt:           t.CreatedAt,
		ConfirmedAt:         t.ConfirmedAt,
		RejectedAt:          t.RejectedAt,
		CancelledAt:         t.CancelledAt,
	}
}

func toAssignmentResponse(a FosterAssignment) assignmentResponse {
	return assignmentResponse{
		ID:                a.ID,
		PetID:             a.PetID,
		TransferRequestID: a.TransferRequestID,
		OwnerUserID:       a.OwnerUserID,
		FosterUserID:      a.FosterUserID,
		Status:            a.Status,
		StartedAt:         a.StartedAt,
		CompletedAt:       a.CompletedAt,
	}
}

func toHandoverResponse(h FosterReturnHandover, actions []HandoverAction) handoverResponse {
	return handoverResponse{
		ID:                 h.ID,
		FosterAssignmentID: h.FosterAssignmentID,
		OwnerUserID:        h.OwnerUserID,
		FosterUserID:       h.FosterUserID,
		Status:             h.Status,
		ScheduledAt:        h.ScheduledAt,
		Location:           h.Location,
		ConditionConfirmed: h.ConditionConfirmed,
		ConditionNotes:     h.ConditionNotes,
		FosterInitiatedAt:  h.FosterInitiatedAt,
		OwnerConfirmedAt:   h.OwnerConfirmedAt,
		CompletedAt:        h.CompletedAt,
		AvailableActions:   actions,
	}
}

// writeError traduce el kind a status y devuelve {"error", "reason", "code"}.
func writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	if status == http.StatusInternalServerError {
		writeJSON(w, status, errorResponse{Error: "internal"})
		return
	}
	body := errorResponse{Error: string(kind)}
	if e, ok := apperr.As(err); ok {
		body.Reason = e.Reason
		body.Code = e.Code
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
