package placement

import (
	"context"
	"time"

	"pet-rehoming/internal/domain/events"
)

// Store es el acceso a filas que usa el motor. Dentro de RunInTx, GetRequest y
// GetAssignment bloquean la fila raíz (SELECT ... FOR UPDATE en Postgres); el
// motor siempre las lee antes que a sus hijas. Los Update* son condicionales
// al estado previo: si no coincide devuelven ErrStaleWrite.
type Store interface {
	GetPet(ctx context.Context, petID string) (PetRef, error)
	// ReassignPetOwner cambia el owner solo si sigue siendo fromUserID.
	ReassignPetOwner(ctx context.Context, petID, fromUserID, toUserID string, at time.Time) error
	GetHelperProfile(ctx context.Context, id string) (HelperRef, error)
	AppendEvent(ctx context.Context, e events.PetEvent) error

	CreateRequest(ctx context.Context, r PlacementRequest) error
	GetRequest(ctx context.Context, id string) (PlacementRequest, error)
	UpdateRequest(ctx context.Context, r PlacementRequest, from RequestStatus) error
	ActiveRequestForPet(ctx context.Context, petID string) (PlacementRequest, error)
	ListRequestsByPet(ctx context.Context, petID string) ([]PlacementRequest, error)
	// ListExpirable: avisos open con expires_at <= now.
	ListExpirable(ctx context.Context, now time.Time, limit int) ([]PlacementRequest, error)

	CreateResponse(ctx context.Context, r PlacementResponse) error
	GetResponse(ctx context.Context, id string) (PlacementResponse, error)
	UpdateResponse(ctx context.Context, r PlacementResponse, from ResponseStatus) error
	ListResponses(ctx context.Context, requestID string) ([]PlacementResponse, error)
	ListResponsesByHelperUser(ctx context.Context, userID string) ([]PlacementResponse, error)

	CreateTransfer(ctx context.Context, t TransferRequest) error
	GetTransfer(ctx context.Context, id string) (TransferRequest, error)
	UpdateTransfer(ctx context.Context, t TransferRequest, from TransferStatus) error
	ListTransfersByRequest(ctx context.Context, requestID string) ([]TransferRequest, error)

	CreateAssignment(ctx context.Context, a FosterAssignment) error
	GetAssignment(ctx context.Context, id string) (FosterAssignment, error)
	UpdateAssignment(ctx context.Context, a FosterAssignment, from AssignmentStatus) error
	ActiveAssignmentForPet(ctx context.Context, petID string) (FosterAssignment, error)
	ListAssignmentsByPet(ctx context.Context, petID string) ([]FosterAssignment, error)
	GetAssignmentByTransfer(ctx context.Context, transferID string) (FosterAssignment, error)

	CreateHandover(ctx context.Context, h FosterReturnHandover) error
	GetHandover(ctx context.Context, id string) (FosterReturnHandover, error)
	UpdateHandover(ctx context.Context, h FosterReturnHandover, from HandoverStatus) error
	// OutstandingHandover: el handover no completado de la asignación, si existe.
	OutstandingHandover(ctx context.Context, assignmentID string) (FosterReturnHandover, error)
	ListHandovers(ctx context.Context, assignmentID string) ([]FosterReturnHandover, error)
}

// Transactor define el límite transaccional. RunInTx aplica todo o nada;
// View es solo lectura sobre un snapshot consistente, sin bloqueos de fila.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(Store) error) error
	View(ctx context.Context, fn func(Store) error) error
}
