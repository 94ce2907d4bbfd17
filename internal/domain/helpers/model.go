package helpers

import "time"

type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// Profile es la ficha pública de quien ofrece adoptar o cuidar mascotas.
// Las respuestas a avisos de placement referencian un Profile, no al usuario.
type Profile struct {
	ID     string
	UserID string

	DisplayName string
	City        string
	Experience  string

	CanFoster bool
	CanAdopt  bool

	Status Status

	CreatedAt  time.Time
	UpdatedAt  time.Time
	ArchivedAt *time.Time
}
