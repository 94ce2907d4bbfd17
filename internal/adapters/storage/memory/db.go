package memory

import (
	"maps"
	"sync"

	"pet-rehoming/internal/domain/events"
	"pet-rehoming/internal/domain/helpers"
	"pet-rehoming/internal/domain/pets"
	"pet-rehoming/internal/domain/placement"
)

// Database es el estado compartido del backend en memoria. Todos los repos y
// el store de placement usan el mismo mutex, así una transición ve y modifica
// mascotas, eventos y entidades de placement de forma atómica.
type Database struct {
	mu sync.RWMutex

	pets    map[string]pets.Pet
	helpers map[string]helpers.Profile
	events  map[string]events.PetEvent

	requests    map[string]placement.PlacementRequest
	responses   map[string]placement.PlacementResponse
	transfers   map[string]placement.TransferRequest
	assignments map[string]placement.FosterAssignment
	handovers   map[string]placement.FosterReturnHandover
}

func NewDatabase() *Database {
	return &Database{
		pets:        make(map[string]pets.Pet),
		helpers:     make(map[string]helpers.Profile),
		events:      make(map[string]events.PetEvent),
		requests:    make(map[string]placement.PlacementRequest),
		responses:   make(map[string]placement.PlacementResponse),
		transfers:   make(map[string]placement.TransferRequest),
		assignments: make(map[string]placement.FosterAssignment),
		handovers:   make(map[string]placement.FosterReturnHandover),
	}
}

// snapshot copia los mapas (los valores son structs, la copia es suficiente
// porque nunca se mutan punteros compartidos).
type snapshot struct {
	pets        map[string]pets.Pet
	events      map[string]events.PetEvent
	requests    map[string]placement.PlacementRequest
	responses   map[string]placement.PlacementResponse
	transfers   map[string]placement.TransferRequest
	assignments map[string]placement.FosterAssignment
	handovers   map[string]placement.FosterReturnHandover
}

// Las transiciones no escriben perfiles de helper, por eso no entran al snapshot.
func (d *Database) snapshot() snapshot {
	return snapshot{
		pets:        maps.Clone(d.pets),
		events:      maps.Clone(d.events),
		requests:    maps.Clone(d.requests),
		responses:   maps.Clone(d.responses),
		transfers:   maps.Clone(d.transfers),
		assignments: maps.Clone(d.assignments),
		handovers:   maps.Clone(d.handovers),
	}
}

func (d *Database) restore(s snapshot) {
	d.pets = s.pets
	d.events = s.events
	d.requests = s.requests
	d.responses = s.responses
	d.transfers = s.transfers
	d.assignments = s.assignments
	d.handovers = s.handovers
}
