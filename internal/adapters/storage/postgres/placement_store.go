package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pet-rehoming/internal/domain/events"
	"pet-rehoming/internal/domain/placement"
)

var (
	_ placement.Transactor = (*PlacementStore)(nil)
	_ placement.Store      = (*pgStore)(nil)
)

const defaultTxTimeout = 5 * time.Second

// PlacementStore implementa placement.Transactor sobre database/sql + pgx.
// Dentro de RunInTx, GetRequest y GetAssignment toman FOR UPDATE: son las
// raíces que el motor bloquea primero para ordenar los locks.
type PlacementStore struct {
	db        *sql.DB
	txTimeout time.Duration
}

type Option func(*PlacementStore)

// WithTxTimeout fija el timeout si el ctx no trae deadline.
func WithTxTimeout(d time.Duration) Option {
	return func(s *PlacementStore) {
		if d > 0 {
			s.txTimeout = d
		}
	}
}

func NewPlacementStore(db *sql.DB, opts ...Option) *PlacementStore {
	s := &PlacementStore{db: db, txTimeout: defaultTxTimeout}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *PlacementStore) RunInTx(ctx context.Context, fn func(placement.Store) error) error {
	return s.withTx(ctx, nil, true, fn)
}

// View corre en una transacción read-only REPEATABLE READ: todas las lecturas
// (p.ej. aviso + respuestas + transferencias + asignación) ven el mismo snapshot.
func (s *PlacementStore) View(ctx context.Context, fn func(placement.Store) error) error {
	return s.withTx(ctx, &sql.TxOptions{ReadOnly: true, Isolation: sql.LevelRepeatableRead}, false, fn)
}

func (s *PlacementStore) withTx(ctx context.Context, opts *sql.TxOptions, lock bool, fn func(placement.Store) error) (err error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.txTimeout)
		defer cancel()
	}

	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&pgStore{q: tx, lock: lock}); err != nil {
		return mapPgError(err)
	}
	if err = tx.Commit(); err != nil {
		return mapPgError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

type pgStore struct {
	q    querier
	lock bool
}

func (s *pgStore) forUpdate() string {
	if s.lock {
		return " FOR UPDATE"
	}
	return ""
}

// conditional ejecuta un UPDATE ... WHERE id = $1 AND <estado previo>.
// Sin filas afectadas distingue entre fila inexistente y estado cambiado.
func (s *pgStore) conditional(ctx context.Context, table, id, query string, args ...any) error {
	res, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return mapPgError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var one int
	err = s.q.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return placement.ErrRowNotFound
	}
	if err != nil {
		return err
	}
	return placement.ErrStaleWrite
}

func noRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return placement.ErrRowNotFound
	}
	return err
}

func (s *pgStore) GetPet(ctx context.Context, petID string) (placement.PetRef, error) {
	var p placement.PetRef
	err := s.q.QueryRowContext(ctx, `SELECT id, owner_user_id, species FROM pets WHERE id = $1`, petID).
		Scan(&p.ID, &p.OwnerUserID, &p.Species)
	return p, noRows(err)
}

func (s *pgStore) ReassignPetOwner(ctx context.Context, petID, fromUserID, toUserID string, at time.Time) error {
	return s.conditional(ctx, "pets", petID, `
		UPDATE pets SET owner_user_id = $3, updated_at = $4
		WHERE id = $1 AND owner_user_id = $2
	`, petID, fromUserID, toUserID, at)
}

func (s *pgStore) GetHelperProfile(ctx context.Context, id string) (placement.HelperRef, error) {
	var h placement.HelperRef
	err := s.q.QueryRowContext(ctx, `SELECT id, user_id, status = 'active' FROM helper_profiles WHERE id = $1`, id).
		Scan(&h.ID, &h.UserID, &h.Active)
	return h, noRows(err)
}

func (s *pgStore) AppendEvent(ctx context.Context, e events.PetEvent) error {
	return mapPgError(insertEvent(ctx, s.q, e))
}

// --- placement requests ---

const requestColumns = `
		id, pet_id, owner_user_id, request_type, status, notes,
		start_date, end_date, expires_at,
		created_at, updated_at, fulfilled_at, cancelled_at`

func scanRequest(row scanner) (placement.PlacementRequest, error) {
	var r placement.PlacementRequest
	var typ, status string
	var start, end, expires, fulfilled, cancelled sql.NullTime
	if err := row.Scan(
		&r.ID, &r.PetID, &r.OwnerUserID, &typ, &status, &r.Notes,
		&start, &end, &expires,
		&r.CreatedAt, &r.UpdatedAt, &fulfilled, &cancelled,
	); err != nil {
		return placement.PlacementRequest{}, err
	}
	r.Type = placement.RequestType(typ)
	r.Status = placement.RequestStatus(status)
	r.StartDate = fromNullTime(start)
	r.EndDate = fromNullTime(end)
	r.ExpiresAt = fromNullTime(expires)
	r.FulfilledAt = fromNullTime(fulfilled)
	r.CancelledAt = fromNullTime(cancelled)
	return r, nil
}

func (s *pgStore) CreateRequest(ctx context.Context, r placement.PlacementRequest) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO placement_requests (`+requestColumns+`
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`,
		r.ID, r.PetID, r.OwnerUserID, string(r.Type), string(r.Status), r.Notes,
		toNullTime(r.StartDate), toNullTime(r.EndDate), toNullTime(r.ExpiresAt),
		r.CreatedAt, r.UpdatedAt, toNullTime(r.FulfilledAt), toNullTime(r.CancelledAt),
	)
	return mapPgError(err)
}

func (s *pgStore) GetRequest(ctx context.Context, id string) (placement.PlacementRequest, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM placement_requests WHERE id = $1`+s.forUpdate(), id)
	r, err := scanRequest(row)
	return r, noRows(err)
}

func (s *pgStore) UpdateRequest(ctx context.Context, r placement.PlacementRequest, from placement.RequestStatus) error {
	return s.conditional(ctx, "placement_requests", r.ID, `
		UPDATE placement_requests SET
			status = $3, notes = $4,
			start_date = $5, end_date = $6, expires_at = $7,
			updated_at = $8, fulfilled_at = $9, cancelled_at = $10
		WHERE id = $1 AND status = $2
	`,
		r.ID, string(from), string(r.Status), r.Notes,
		toNullTime(r.StartDate), toNullTime(r.EndDate), toNullTime(r.ExpiresAt),
		r.UpdatedAt, toNullTime(r.FulfilledAt), toNullTime(r.CancelledAt),
	)
}

func (s *pgStore) ActiveRequestForPet(ctx context.Context, petID string) (placement.PlacementRequest, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+requestColumns+` FROM placement_requests
		WHERE pet_id = $1 AND status IN ('open', 'pending_review')
	`, petID)
	r, err := scanRequest(row)
	return r, noRows(err)
}

func (s *pgStore) ListRequestsByPet(ctx context.Context, petID string) ([]placement.PlacementRequest, error) {
	return list(ctx, s.q, scanRequest, `
		SELECT `+requestColumns+` FROM placement_requests
		WHERE pet_id = $1 ORDER BY created_at DESC
	`, petID)
}

func (s *pgStore) ListExpirable(ctx context.Context, now time.Time, limit int) ([]placement.PlacementRequest, error) {
	if limit <= 0 {
		limit = 500
	}
	return list(ctx, s.q, scanRequest, `
		SELECT `+requestColumns+` FROM placement_requests
		WHERE status = 'open' AND expires_at IS NOT NULL AND expires_at <= $1
		ORDER BY expires_at ASC
		LIMIT $2
	`, now, limit)
}

// --- responses ---

const responseColumns = `
		id, placement_request_id, helper_profile_id, helper_user_id,
		status, message,
		responded_at, accepted_at, rejected_at, cancelled_at`

func scanResponse(row scanner) (placement.PlacementResponse, error) {
	var r placement.PlacementResponse
	var status string
	var accepted, rejected, cancelled sql.NullTime
	if err := row.Scan(
		&r.ID, &r.PlacementRequestID, &r.HelperProfileID, &r.HelperUserID,
		&status, &r.Message,
		&r.RespondedAt, &accepted, &rejected, &cancelled,
	); err != nil {
		return placement.PlacementResponse{}, err
	}
	r.Status = placement.ResponseStatus(status)
	r.AcceptedAt = fromNullTime(accepted)
	r.RejectedAt = fromNullTime(rejected)
	r.CancelledAt = fromNullTime(cancelled)
	return r, nil
}

func (s *pgStore) CreateResponse(ctx context.Context, r placement.PlacementResponse) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO placement_responses (`+responseColumns+`
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		r.ID, r.PlacementRequestID, r.HelperProfileID, r.HelperUserID,
		string(r.Status), r.Message,
		r.RespondedAt, toNullTime(r.AcceptedAt), toNullTime(r.RejectedAt), toNullTime(r.CancelledAt),
	)
	return mapPgError(err)
}

func (s *pgStore) GetResponse(ctx context.Context, id string) (placement.PlacementResponse, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+responseColumns+` FROM placement_responses WHERE id = $1`, id)
	r, err := scanResponse(row)
	return r, noRows(err)
}

func (s *pgStore) UpdateResponse(ctx context.Context, r placement.PlacementResponse, from placement.ResponseStatus) error {
	return s.conditional(ctx, "placement_responses", r.ID, `
		UPDATE placement_responses SET
			status = $3, message = $4,
			accepted_at = $5, rejected_at = $6, cancelled_at = $7
		WHERE id = $1 AND status = $2
	`,
		r.ID, string(from), string(r.Status), r.Message,
		toNullTime(r.AcceptedAt), toNullTime(r.RejectedAt), toNullTime(r.CancelledAt),
	)
}

func (s *pgStore) ListResponses(ctx context.Context, requestID string) ([]placement.PlacementResponse, error) {
	return list(ctx, s.q, scanResponse, `
		SELECT `+responseColumns+` FROM placement_responses
		WHERE placement_request_id = $1 ORDER BY responded_at ASC, id ASC
	`, requestID)
}

func (s *pgStore) ListResponsesByHelperUser(ctx context.Context, userID string) ([]placement.PlacementResponse, error) {
	return list(ctx, s.q, scanResponse, `
		SELECT `+responseColumns+` FROM placement_responses
		WHERE helper_user_id = $1 ORDER BY responded_at DESC
	`, userID)
}

// --- transfers ---

const transferColumns = `
		id, placement_request_id, placement_response_id, pet_id,
		from_user_id, to_user_id, status,
		created_at, confirmed_at, rejected_at, cancelled_at`

func scanTransfer(row scanner) (placement.TransferRequest, error) {
	var t placement.TransferRequest
	var status string
	var confirmed, rejected, cancelled sql.NullTime
	if err := row.Scan(
		&t.ID, &t.PlacementRequestID, &t.PlacementResponseID, &t.PetID,
		&t.FromUserID, &t.ToUserID, &status,
		&t.CreatedAt, &confirmed, &rejected, &cancelled,
	); err != nil {
		return placement.TransferRequest{}, err
	}
	t.Status = placement.TransferStatus(status)
	t.ConfirmedAt = fromNullTime(confirmed)
	t.RejectedAt = fromNullTime(rejected)
	t.CancelledAt = fromNullTime(cancelled)
	return t, nil
}

func (s *pgStore) CreateTransfer(ctx context.Context, t placement.TransferRequest) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO transfer_requests (`+transferColumns+`
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		t.ID, t.PlacementRequestID, t.PlacementResponseID, t.PetID,
		t.FromUserID, t.ToUserID, string(t.Status),
		t.CreatedAt, toNullTime(t.ConfirmedAt), toNullTime(t.RejectedAt), toNullTime(t.CancelledAt),
	)
	return mapPgError(err)
}

func (s *pgStore) GetTransfer(ctx context.Context, id string) (placement.TransferRequest, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+transferColumns+` FROM transfer_requests WHERE id = $1`, id)
	t, err := scanTransfer(row)
	return t, noRows(err)
}

func (s *pgStore) UpdateTransfer(ctx context.Context, t placement.TransferRequest, from placement.TransferStatus) error {
	return s.conditional(ctx, "transfer_requests", t.ID, `
		UPDATE transfer_requests SET
			status = $3, confirmed_at = $4, rejected_at = $5, cancelled_at = $6
		WHERE id = $1 AND status = $2
	`,
		t.ID, string(from), string(t.Status),
		toNullTime(t.ConfirmedAt), toNullTime(t.RejectedAt), toNullTime(t.CancelledAt),
	)
}

func (s *pgStore) ListTransfersByRequest(ctx context.Context, requestID string) ([]placement.TransferRequest, error) {
	return list(ctx, s.q, scanTransfer, `
		SELECT `+transferColumns+` FROM transfer_requests
		WHERE placement_request_id = $1 ORDER BY created_at ASC, id ASC
	`, requestID)
}

// --- foster assignments ---

const assignmentColumns = `
		id, pet_id, transfer_request_id, owner_user_id, foster_user_id,
		status, started_at, completed_at`

func scanAssignment(row scanner) (placement.FosterAssignment, error) {
	var a placement.FosterAssignment
	var status string
	var completed sql.NullTime
	if err := row.Scan(
		&a.ID, &a.PetID, &a.TransferRequestID, &a.OwnerUserID, &a.FosterUserID,
		&status, &a.StartedAt, &completed,
	); err != nil {
		return placement.FosterAssignment{}, err
	}
	a.Status = placement.AssignmentStatus(status)
	a.CompletedAt = fromNullTime(completed)
	return a, nil
}

func (s *pgStore) CreateAssignment(ctx context.Context, a placement.FosterAssignment) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO foster_assignments (`+assignmentColumns+`
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		a.ID, a.PetID, a.TransferRequestID, a.OwnerUserID, a.FosterUserID,
		string(a.Status), a.StartedAt, toNullTime(a.CompletedAt),
	)
	return mapPgError(err)
}

func (s *pgStore) GetAssignment(ctx context.Context, id string) (placement.FosterAssignment, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+assignmentColumns+` FROM foster_assignments WHERE id = $1`+s.forUpdate(), id)
	a, err := scanAssignment(row)
	return a, noRows(err)
}

func (s *pgStore) UpdateAssignment(ctx context.Context, a placement.FosterAssignment, from placement.AssignmentStatus) error {
	return s.conditional(ctx, "foster_assignments", a.ID, `
		UPDATE foster_assignments SET status = $3, completed_at = $4
		WHERE id = $1 AND status = $2
	`, a.ID, string(from), string(a.Status), toNullTime(a.CompletedAt))
}

func (s *pgStore) ActiveAssignmentForPet(ctx context.Context, petID string) (placement.FosterAssignment, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+assignmentColumns+` FROM foster_assignments
		WHERE pet_id = $1 AND status = 'active'
	`, petID)
	a, err := scanAssignment(row)
	return a, noRows(err)
}

func (s *pgStore) ListAssignmentsByPet(ctx context.Context, petID string) ([]placement.FosterAssignment, error) {
	return list(ctx, s.q, scanAssignment, `
		SELECT `+assignmentColumns+` FROM foster_assignments
		WHERE pet_id = $1 ORDER BY started_at DESC
	`, petID)
}

func (s *pgStore) GetAssignmentByTransfer(ctx context.Context, transferID string) (placement.FosterAssignment, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+assignmentColumns+` FROM foster_assignments WHERE transfer_request_id = $1`, transferID)
	a, err := scanAssignment(row)
	return a, noRows(err)
}

// --- return handovers ---

const handoverColumns = `
		id, foster_assignment_id, owner_user_id, foster_user_id, status,
		scheduled_at, location, condition_confirmed, condition_notes,
		foster_initiated_at, owner_confirmed_at, completed_at`

func scanHandover(row scanner) (placement.FosterReturnHandover, error) {
	var h placement.FosterReturnHandover
	var status string
	var scheduled, ownerConfirmed, completed sql.NullTime
	var cond sql.NullBool
	if err := row.Scan(
		&h.ID, &h.FosterAssignmentID, &h.OwnerUserID, &h.FosterUserID, &status,
		&scheduled, &h.Location, &cond, &h.ConditionNotes,
		&h.FosterInitiatedAt, &ownerConfirmed, &completed,
	); err != nil {
		return placement.FosterReturnHandover{}, err
	}
	h.Status = placement.HandoverStatus(status)
	h.ScheduledAt = fromNullTime(scheduled)
	h.OwnerConfirmedAt = fromNullTime(ownerConfirmed)
	h.CompletedAt = fromNullTime(completed)
	if cond.Valid {
		v := cond.Bool
		h.ConditionConfirmed = &v
	}
	return h, nil
}

func toNullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func (s *pgStore) CreateHandover(ctx context.Context, h placement.FosterReturnHandover) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO foster_return_handovers (`+handoverColumns+`
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		h.ID, h.FosterAssignmentID, h.OwnerUserID, h.FosterUserID, string(h.Status),
		toNullTime(h.ScheduledAt), h.Location, toNullBool(h.ConditionConfirmed), h.ConditionNotes,
		h.FosterInitiatedAt, toNullTime(h.OwnerConfirmedAt), toNullTime(h.CompletedAt),
	)
	return mapPgError(err)
}

func (s *pgStore) GetHandover(ctx context.Context, id string) (placement.FosterReturnHandover, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+handoverColumns+` FROM foster_return_handovers WHERE id = $1`, id)
	h, err := scanHandover(row)
	return h, noRows(err)
}

func (s *pgStore) UpdateHandover(ctx context.Context, h placement.FosterReturnHandover, from placement.HandoverStatus) error {
	return s.conditional(ctx, "foster_return_handovers", h.ID, `
		UPDATE foster_return_handovers SET
			status = $3, scheduled_at = $4, location = $5,
			condition_confirmed = $6, condition_notes = $7,
			owner_confirmed_at = $8, completed_at = $9
		WHERE id = $1 AND status = $2
	`,
		h.ID, string(from), string(h.Status), toNullTime(h.ScheduledAt), h.Location,
		toNullBool(h.ConditionConfirmed), h.ConditionNotes,
		toNullTime(h.OwnerConfirmedAt), toNullTime(h.CompletedAt),
	)
}

func (s *pgStore) OutstandingHandover(ctx context.Context, assignmentID string) (placement.FosterReturnHandover, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+handoverColumns+` FROM foster_return_handovers
		WHERE foster_assignment_id = $1 AND status <> 'completed'
	`, assignmentID)
	h, err := scanHandover(row)
	return h, noRows(err)
}

func (s *pgStore) ListHandovers(ctx context.Context, assignmentID string) ([]placement.FosterReturnHandover, error) {
	return list(ctx, s.q, scanHandover, `
		SELECT `+handoverColumns+` FROM foster_return_handovers
		WHERE foster_assignment_id = $1 ORDER BY foster_initiated_at ASC
	`, assignmentID)
}

func list[T any](ctx context.Context, q querier, scan func(scanner) (T, error), query string, args ...any) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
