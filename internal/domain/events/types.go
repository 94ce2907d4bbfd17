package events

type EventType string

const (
	EventTypeNote           EventType = "NOTE"
	EventTypeWeightRecorded EventType = "WEIGHT_RECORDED"

	// Los siguientes los escribe el motor de placement dentro de la misma transacción.
	EventTypePlacementRequested    EventType = "PLACEMENT_REQUESTED"
	EventTypePlacementCancelled    EventType = "PLACEMENT_CANCELLED"
	EventTypePlacementExpired      EventType = "PLACEMENT_EXPIRED"
	EventTypePlacementFulfilled    EventType = "PLACEMENT_FULFILLED"
	EventTypeOwnershipTransferred  EventType = "OWNERSHIP_TRANSFERRED"
	EventTypeFosterStarted         EventType = "FOSTER_STARTED"
	EventTypeFosterReturnInitiated EventType = "FOSTER_RETURN_INITIATED"
	EventTypeFosterEnded           EventType = "FOSTER_ENDED"
)

// Manual indica si un usuario puede crear (y anular) este tipo.
func (t EventType) Manual() bool {
	return t == EventTypeNote || t == EventTypeWeightRecorded
}

type ActorType string

const (
	ActorTypeOwnerUser  ActorType = "OWNER_USER"
	ActorTypeFosterUser ActorType = "FOSTER_USER"
	ActorTypeHelperUser ActorType = "HELPER_USER"
	ActorTypeAdminUser  ActorType = "ADMIN_USER"
	ActorTypeSystem     ActorType = "SYSTEM"
)

type Source string

const (
	SourceManual Source = "manual"
	SourceSystem Source = "system"
)

type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	// Visible también para quien tiene la custodia temporal (foster activo).
	VisibilityShared Visibility = "shared_with_custodian"
)

type EventStatus string

const (
	EventStatusActive EventStatus = "active"
	EventStatusVoided EventStatus = "voided"
)
