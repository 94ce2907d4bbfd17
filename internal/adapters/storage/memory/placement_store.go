package memory

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"

	"pet-rehoming/internal/domain/events"
	"pet-rehoming/internal/domain/helpers"
	"pet-rehoming/internal/domain/placement"
)

var errReadOnly = errors.New("memory store: write inside View")

var (
	_ placement.Transactor = (*PlacementStore)(nil)
	_ placement.Store      = (*txStore)(nil)
)

// PlacementStore implementa placement.Transactor. RunInTx serializa todas las
// transiciones con el lock de escritura y deshace los cambios si fn falla.
type PlacementStore struct {
	db *Database
}

func NewPlacementStore(db *Database) *PlacementStore {
	return &PlacementStore{db: db}
}

func (s *PlacementStore) RunInTx(ctx context.Context, fn func(placement.Store) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	snap := s.db.snapshot()
	defer func() {
		if p := recover(); p != nil {
			s.db.restore(snap)
			panic(p)
		}
		if err != nil {
			s.db.restore(snap)
		}
	}()
	return fn(&txStore{db: s.db})
}

func (s *PlacementStore) View(ctx context.Context, fn func(placement.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return fn(&txStore{db: s.db, readOnly: true})
}

// txStore opera sobre los mapas con el lock ya tomado por RunInTx o View.
type txStore struct {
	db       *Database
	readOnly bool
}

func (t *txStore) writable() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

func (t *txStore) GetPet(ctx context.Context, petID string) (placement.PetRef, error) {
	p, ok := t.db.pets[petID]
	if !ok {
		return placement.PetRef{}, placement.ErrRowNotFound
	}
	return placement.PetRef{ID: p.ID, OwnerUserID: p.OwnerUserID, Species: p.Species}, nil
}

func (t *txStore) ReassignPetOwner(ctx context.Context, petID, fromUserID, toUserID string, at time.Time) error {
	if err := t.writable(); err != nil {
		return err
	}
	p, ok := t.db.pets[petID]
	if !ok {
		return placement.ErrRowNotFound
	}
	if p.OwnerUserID != fromUserID {
		return placement.ErrStaleWrite
	}
	p.OwnerUserID = toUserID
	p.UpdatedAt = at
	t.db.pets[petID] = p
	return nil
}

func (t *txStore) GetHelperProfile(ctx context.Context, id string) (placement.HelperRef, error) {
	h, ok := t.db.helpers[id]
	if !ok {
		return placement.HelperRef{}, placement.ErrRowNotFound
	}
	return placement.HelperRef{ID: h.ID, UserID: h.UserID, Active: h.Status == helpers.StatusActive}, nil
}

func (t *txStore) AppendEvent(ctx context.Context, e events.PetEvent) error {
	if err := t.writable(); err != nil {
		return err
	}
	return insertEvent(t.db, e)
}

// --- placement requests ---

func (t *txStore) CreateRequest(ctx context.Context, r placement.PlacementRequest) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, exists := t.db.requests[r.ID]; exists {
		return placement.ErrUniqueViolation
	}
	if r.Status.Active() && t.hasActiveRequest(r.PetID, r.ID) {
		return placement.ErrUniqueViolation
	}
	t.db.requests[r.ID] = r
	return nil
}

func (t *txStore) GetRequest(ctx context.Context, id string) (placement.PlacementRequest, error) {
	r, ok := t.db.requests[id]
	if !ok {
		return placement.PlacementRequest{}, placement.ErrRowNotFound
	}
	return r, nil
}

func (t *txStore) UpdateRequest(ctx context.Context, r placement.PlacementRequest, from placement.RequestStatus) error {
	if err := t.writable(); err != nil {
		return err
	}
	cur, ok := t.db.requests[r.ID]
	if !ok {
		return placement.ErrRowNotFound
	}
	if cur.Status != from {
		return placement.ErrStaleWrite
	}
	if r.Status.Active() && t.hasActiveRequest(r.PetID, r.ID) {
		return placement.ErrUniqueViolation
	}
	t.db.requests[r.ID] = r
	return nil
}

func (t *txStore) hasActiveRequest(petID, exceptID string) bool {
	for _, o := range t.db.requests {
		if o.PetID == petID && o.ID != exceptID && o.Status.Active() {
			return true
		}
	}
	return false
}

func (t *txStore) ActiveRequestForPet(ctx context.Context, petID string) (placement.PlacementRequest, error) {
	for _, r := range t.db.requests {
		if r.PetID == petID && r.Status.Active() {
			return r, nil
		}
	}
	return placement.PlacementRequest{}, placement.ErrRowNotFound
}

func (t *txStore) ListRequestsByPet(ctx context.Context, petID string) ([]placement.PlacementRequest, error) {
	out := filter(t.db.requests, func(r placement.PlacementRequest) bool { return r.PetID == petID })
	slices.SortFunc(out, func(a, b placement.PlacementRequest) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (t *txStore) ListExpirable(ctx context.Context, now time.Time, limit int) ([]placement.PlacementRequest, error) {
	out := filter(t.db.requests, func(r placement.PlacementRequest) bool {
		return r.Status == placement.RequestOpen && r.ExpiresAt != nil && !r.ExpiresAt.After(now)
	})
	slices.SortFunc(out, func(a, b placement.PlacementRequest) int { return a.ExpiresAt.Compare(*b.ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- responses ---

func (t *txStore) CreateResponse(ctx context.Context, r placement.PlacementResponse) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, exists := t.db.responses[r.ID]; exists {
		return placement.ErrUniqueViolation
	}
	for _, o := range t.db.responses {
		if o.PlacementRequestID == r.PlacementRequestID && o.HelperUserID == r.HelperUserID &&
			o.Status == placement.ResponsePending && r.Status == placement.ResponsePending {
			return placement.ErrUniqueViolation
		}
	}
	t.db.responses[r.ID] = r
	return nil
}

func (t *txStore) GetResponse(ctx context.Context, id string) (placement.PlacementResponse, error) {
	r, ok := t.db.responses[id]
	if !ok {
		return placement.PlacementResponse{}, placement.ErrRowNotFound
	}
	return r, nil
}

func (t *txStore) UpdateResponse(ctx context.Context, r placement.PlacementResponse, from placement.ResponseStatus) error {
	if err := t.writable(); err != nil {
		return err
	}
	cur, ok := t.db.responses[r.ID]
	if !ok {
		return placement.ErrRowNotFound
	}
	if cur.Status != from {
		return placement.ErrStaleWrite
	}
	if r.Status == placement.ResponseAccepted {
		for _, o := range t.db.responses {
			if o.ID != r.ID && o.PlacementRequestID == r.PlacementRequestID && o.Status == placement.ResponseAccepted {
				return placement.ErrUniqueViolation
			}
		}
	}
	t.db.responses[r.ID] = r
	return nil
}

func (t *txStore) ListResponses(ctx context.Context, requestID string) ([]placement.PlacementResponse, error) {
	out := filter(t.db.responses, func(r placement.PlacementResponse) bool { return r.PlacementRequestID == requestID })
	slices.SortFunc(out, func(a, b placement.PlacementResponse) int {
		return cmp.Or(a.RespondedAt.Compare(b.RespondedAt), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (t *txStore) ListResponsesByHelperUser(ctx context.Context, userID string) ([]placement.PlacementResponse, error) {
	out := filter(t.db.responses, func(r placement.PlacementResponse) bool { return r.HelperUserID == userID })
	slices.SortFunc(out, func(a, b placement.PlacementResponse) int { return b.RespondedAt.Compare(a.RespondedAt) })
	return out, nil
}

// --- transfers ---

func (t *txStore) CreateTransfer(ctx context.Context, tr placement.TransferRequest) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, exists := t.db.transfers[tr.ID]; exists {
		return placement.ErrUniqueViolation
	}
	for _, o := range t.db.transfers {
		if o.PlacementResponseID == tr.PlacementResponseID {
			return placement.ErrUniqueViolation
		}
	}
	t.db.transfers[tr.ID] = tr
	return nil
}

func (t *txStore) GetTransfer(ctx context.Context, id string) (placement.TransferRequest, error) {
	tr, ok := t.db.transfers[id]
	if !ok {
		return placement.TransferRequest{}, placement.ErrRowNotFound
	}
	return tr, nil
}

func (t *txStore) UpdateTransfer(ctx context.Context, tr placement.TransferRequest, from placement.TransferStatus) error {
	if err := t.writable(); err != nil {
		return err
	}
	cur, ok := t.db.transfers[tr.ID]
	if !ok {
		return placement.ErrRowNotFound
	}
	if cur.Status != from {
		return placement.ErrStaleWrite
	}
	t.db.transfers[tr.ID] = tr
	return nil
}

func (t *txStore) ListTransfersByRequest(ctx context.Context, requestID string) ([]placement.TransferRequest, error) {
	out := filter(t.db.transfers, func(tr placement.TransferRequest) bool { return tr.PlacementRequestID == requestID })
	slices.SortFunc(out, func(a, b placement.TransferRequest) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

// --- foster assignments ---

func (t *txStore) CreateAssignment(ctx context.Context, a placement.FosterAssignment) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, exists := t.db.assignments[a.ID]; exists {
		return placement.ErrUniqueViolation
	}
	if a.Status == placement.AssignmentActive {
		if _, err := t.ActiveAssignmentForPet(ctx, a.PetID); err == nil {
			return placement.ErrUniqueViolation
		}
	}
	t.db.assignments[a.ID] = a
	return nil
}

func (t *txStore) GetAssignment(ctx context.Context, id string) (placement.FosterAssignment, error) {
	a, ok := t.db.assignments[id]
	if !ok {
		return placement.FosterAssignment{}, placement.ErrRowNotFound
	}
	return a, nil
}

func (t *txStore) UpdateAssignment(ctx context.Context, a placement.FosterAssignment, from placement.AssignmentStatus) error {
	if err := t.writable(); err != nil {
		return err
	}
	cur, ok := t.db.assignments[a.ID]
	if !ok {
		return placement.ErrRowNotFound
	}
	if cur.Status != from {
		return placement.ErrStaleWrite
	}
	t.db.assignments[a.ID] = a
	return nil
}

func (t *txStore) ActiveAssignmentForPet(ctx context.Context, petID string) (placement.FosterAssignment, error) {
	for _, a := range t.db.assignments {
		if a.PetID == petID && a.Status == placement.AssignmentActive {
			return a, nil
		}
	}
	return placement.FosterAssignment{}, placement.ErrRowNotFound
}

func (t *txStore) ListAssignmentsByPet(ctx context.Context, petID string) ([]placement.FosterAssignment, error) {
	out := filter(t.db.assignments, func(a placement.FosterAssignment) bool { return a.PetID == petID })
	slices.SortFunc(out, func(a, b placement.FosterAssignment) int { return b.StartedAt.Compare(a.StartedAt) })
	return out, nil
}

func (t *txStore) GetAssignmentByTransfer(ctx context.Context, transferID string) (placement.FosterAssignment, error) {
	for _, a := range t.db.assignments {
		if a.TransferRequestID == transferID {
			return a, nil
		}
	}
	return placement.FosterAssignment{}, placement.ErrRowNotFound
}

// --- return handovers ---

func (t *txStore) CreateHandover(ctx context.Context, h placement.FosterReturnHandover) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, exists := t.db.handovers[h.ID]; exists {
		return placement.ErrUniqueViolation
	}
	if _, err := t.OutstandingHandover(ctx, h.FosterAssignmentID); err == nil {
		return placement.ErrUniqueViolation
	}
	t.db.handovers[h.ID] = h
	return nil
}

func (t *txStore) GetHandover(ctx context.Context, id string) (placement.FosterReturnHandover, error) {
	h, ok := t.db.handovers[id]
	if !ok {
		return placement.FosterReturnHandover{}, placement.ErrRowNotFound
	}
	return h, nil
}

func (t *txStore) UpdateHandover(ctx context.Context, h placement.FosterReturnHandover, from placement.HandoverStatus) error {
	if err := t.writable(); err != nil {
		return err
	}
	cur, ok := t.db.handovers[h.ID]
	if !ok {
		return placement.ErrRowNotFound
	}
	if cur.Status != from {
		return placement.ErrStaleWrite
	}
	t.db.handovers[h.ID] = h
	return nil
}

func (t *txStore) OutstandingHandover(ctx context.Context, assignmentID string) (placement.FosterReturnHandover, error) {
	for _, h := range t.db.handovers {
		if h.FosterAssignmentID == assignmentID && h.Status != placement.HandoverCompleted {
			return h, nil
		}
	}
	return placement.FosterReturnHandover{}, placement.ErrRowNotFound
}

func (t *txStore) ListHandovers(ctx context.Context, assignmentID string) ([]placement.FosterReturnHandover, error) {
	out := filter(t.db.handovers, func(h placement.FosterReturnHandover) bool { return h.FosterAssignmentID == assignmentID })
	slices.SortFunc(out, func(a, b placement.FosterReturnHandover) int {
		return a.FosterInitiatedAt.Compare(b.FosterInitiatedAt)
	})
	return out, nil
}

func filter[T any](m map[string]T, keep func(T) bool) []T {
	out := make([]T, 0)
	for _, v := range m {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}
