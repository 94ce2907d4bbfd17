package placement

import "time"

type RequestType string

const (
	RequestPermanent  RequestType = "permanent"
	RequestFosterFree RequestType = "foster_free"
	RequestFosterPaid RequestType = "foster_paid"
	RequestPetSitting RequestType = "pet_sitting"
)

func (t RequestType) Valid() bool {
	switch t {
	case RequestPermanent, RequestFosterFree, RequestFosterPaid, RequestPetSitting:
		return true
	}
	return false
}

// Foster indica si confirmar la transferencia crea una FosterAssignment.
func (t RequestType) Foster() bool {
	return t == RequestFosterFree || t == RequestFosterPaid
}

// Transfers indica si aceptar una respuesta genera TransferRequest.
// pet_sitting nunca transfiere propiedad ni custodia.
func (t RequestType) Transfers() bool {
	return t != RequestPetSitting
}

type RequestStatus string

const (
	RequestOpen          RequestStatus = "open"
	RequestPendingReview RequestStatus = "pending_review"
	RequestFulfilled     RequestStatus = "fulfilled"
	RequestExpired       RequestStatus = "expired"
	RequestCancelled     RequestStatus = "cancelled"
)

// Active: cuenta para el máximo de un aviso vigente por mascota.
func (s RequestStatus) Active() bool {
	return s == RequestOpen || s == RequestPendingReview
}

type ResponseStatus string

const (
	ResponsePending   ResponseStatus = "pending"
	ResponseAccepted  ResponseStatus = "accepted"
	ResponseRejected  ResponseStatus = "rejected"
	ResponseCancelled ResponseStatus = "cancelled"
)

type TransferStatus string

const (
	TransferPending   TransferStatus = "pending"
	TransferConfirmed TransferStatus = "confirmed"
	TransferRejected  TransferStatus = "rejected"
	TransferCancelled TransferStatus = "cancelled"
)

type AssignmentStatus string

const (
	AssignmentActive    AssignmentStatus = "active"
	AssignmentCompleted AssignmentStatus = "completed"
)

type HandoverStatus string

const (
	HandoverPending   HandoverStatus = "pending"
	HandoverConfirmed HandoverStatus = "confirmed"
	HandoverDisputed  HandoverStatus = "disputed"
	HandoverCompleted HandoverStatus = "completed"
)

// PlacementRequest es el aviso de un owner buscando nuevo cuidador.
type PlacementRequest struct {
	ID          string
	PetID       string
	OwnerUserID string

	Type   RequestType
	Status RequestStatus
	Notes  string

	StartDate *time.Time
	EndDate   *time.Time
	ExpiresAt *time.Time

	CreatedAt   time.Time
	UpdatedAt   time.Time
	FulfilledAt *time.Time
	CancelledAt *time.Time
}

// PlacementResponse es la oferta de un helper. HelperUserID se copia del
// perfil al responder para autorizar sin ir al perfil en cada acción.
type PlacementResponse struct {
	ID                 string
	PlacementRequestID string
	HelperProfileID    string
	HelperUserID       string

	Status  ResponseStatus
	Message string

	RespondedAt time.Time
	AcceptedAt  *time.Time
	RejectedAt  *time.Time
	CancelledAt *time.Time
}

type TransferRequest struct {
	ID                  string
	PlacementRequestID  string
	PlacementResponseID string
	PetID               string
	FromUserID          string
	ToUserID            string

	Status TransferStatus

	CreatedAt   time.Time
	ConfirmedAt *time.Time
	RejectedAt  *time.Time
	CancelledAt *time.Time
}

type FosterAssignment struct {
	ID                string
	PetID             string
	TransferRequestID string
	OwnerUserID       string
	FosterUserID      string

	Status AssignmentStatus

	StartedAt   time.Time
	CompletedAt *time.Time
}

type FosterReturnHandover struct {
	ID                 string
	FosterAssignmentID string
	OwnerUserID        string
	FosterUserID       string

	Status HandoverStatus

	ScheduledAt        *time.Time
	Location           string
	ConditionConfirmed *bool
	ConditionNotes     string

	FosterInitiatedAt time.Time
	OwnerConfirmedAt  *time.Time
	CompletedAt       *time.Time
}

// PetRef es lo que el motor necesita de una mascota.
type PetRef struct {
	ID          string
	OwnerUserID string
	Species     string
}

// HelperRef es lo que el motor necesita de un perfil de helper.
type HelperRef struct {
	ID     string
	UserID string
	Active bool
}
