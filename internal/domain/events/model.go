package events

import (
	"time"

	"pet-rehoming/internal/domain/events/details"
)

type Actor struct {
	Type ActorType
	ID   string
}

type PetEvent struct {
	ID    string
	PetID string

	Type EventType

	OccurredAt time.Time
	RecordedAt time.Time

	Title string
	Notes string

	// Solo en WEIGHT_RECORDED.
	Measurement *details.Measurement

	Actor      Actor
	Source     Source
	Visibility Visibility
	Status     EventStatus
}

// NewSystemEvent arma un evento de timeline emitido por una transición del motor.
func NewSystemEvent(id, petID string, typ EventType, actor Actor, title string, at time.Time) PetEvent {
	return PetEvent{
		ID:         id,
		PetID:      petID,
		Type:       typ,
		OccurredAt: at,
		RecordedAt: at,
		Title:      title,
		Actor:      actor,
		Source:     SourceSystem,
		Visibility: VisibilityShared,
		Status:     EventStatusActive,
	}
}
