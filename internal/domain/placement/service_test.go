package placement_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pet-rehoming/internal/adapters/capabilities/static"
	"pet-rehoming/internal/adapters/storage/memory"
	"pet-rehoming/internal/domain/capabilities"
	"pet-rehoming/internal/domain/events"
	"pet-rehoming/internal/domain/helpers"
	"pet-rehoming/internal/domain/pets"
	"pet-rehoming/internal/domain/placement"
	"pet-rehoming/internal/platform/apperr"
	"pet-rehoming/internal/platform/logger"
	"pet-rehoming/internal/ports/auth"
	capport "pet-rehoming/internal/ports/capabilities"
	"pet-rehoming/internal/ports/notifications"
	"pet-rehoming/internal/ports/notifications/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var (
	owner  = placement.Actor{UserID: "owner", Role: auth.RoleUser}
	helper = placement.Actor{UserID: "h1", Role: auth.RoleUser}
	other  = placement.Actor{UserID: "h2", Role: auth.RoleUser}
	admin  = placement.Actor{UserID: "root", Role: auth.RoleAdmin}
)

type recordingSink struct {
	mu   sync.Mutex
	sent []notifications.Notification
}

func (s *recordingSink) Notify(_ context.Context, n notifications.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return nil
}

func (s *recordingSink) events(userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, n := range s.sent {
		if n.UserID == userID {
			out = append(out, n.Data["event"].(string))
		}
	}
	return out
}

type fixture struct {
	t    *testing.T
	db   *memory.Database
	svc  *placement.Service
	sink *recordingSink
	now  time.Time
}

func newFixture(t *testing.T, opts ...placement.Option) *fixture {
	t.Helper()
	f := &fixture{
		t:    t,
		db:   memory.NewDatabase(),
		sink: &recordingSink{},
		now:  time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	opts = append([]placement.Option{placement.WithClock(func() time.Time { return f.now })}, opts...)
	f.svc = placement.NewService(
		memory.NewPlacementStore(f.db),
		capabilities.NewChecker(static.Default()),
		f.sink,
		opts...,
	)

	f.addPet("pet-1", "owner", "cat")
	f.addHelper("hp-h1", "h1", helpers.StatusActive)
	f.addHelper("hp-h2", "h2", helpers.StatusActive)
	return f
}

func (f *fixture) addPet(id, ownerID, species string) {
	f.t.Helper()
	require.NoError(f.t, memory.NewPetRepo(f.db).Create(context.Background(), pets.Pet{
		ID: id, OwnerUserID: ownerID, Name: "pet " + id, Species: species, CreatedAt: f.now,
	}))
}

func (f *fixture) addHelper(id, userID string, status helpers.Status) {
	f.t.Helper()
	require.NoError(f.t, memory.NewHelperRepo(f.db).Create(context.Background(), helpers.Profile{
		ID: id, UserID: userID, DisplayName: userID, CanFoster: true, Status: status, CreatedAt: f.now,
	}))
}

func (f *fixture) openRequest(typ placement.RequestType) placement.PlacementRequest {
	f.t.Helper()
	expires := f.now.Add(7 * 24 * time.Hour)
	r, err := f.svc.CreateRequest(context.Background(), owner, placement.CreateRequestInput{
		PetID: "pet-1", Type: typ, ExpiresAt: &expires,
	})
	require.NoError(f.t, err)
	return r
}

func (f *fixture) respond(reqID string, a placement.Actor, profileID string) placement.PlacementResponse {
	f.t.Helper()
	r, err := f.svc.SubmitResponse(context.Background(), a, reqID, placement.SubmitResponseInput{HelperProfileID: profileID, Message: "I can help"})
	require.NoError(f.t, err)
	return r
}

func (f *fixture) timeline(petID string) []events.EventType {
	f.t.Helper()
	list, err := memory.NewEventRepo(f.db).ListByPet(context.Background(), petID, events.ListFilter{Limit: 100})
	require.NoError(f.t, err)
	out := make([]events.EventType, 0, len(list))
	for _, e := range list {
		out = append(out, e.Type)
	}
	return out
}

func kindOf(t *testing.T, err error) apperr.Kind {
	t.Helper()
	require.Error(t, err)
	return apperr.KindOf(err)
}

func TestFosterLifecycle_FromRequestToCompletedHandover(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := f.openRequest(placement.RequestFosterFree)
	assert.Equal(t, placement.RequestOpen, req.Status)

	resp := f.respond(req.ID, helper, "hp-h1")
	assert.Equal(t, placement.ResponsePending, resp.Status)
	assert.Equal(t, "h1", resp.HelperUserID)

	accepted, err := f.svc.AcceptResponse(ctx, owner, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, placement.ResponseAccepted, accepted.Response.Status)
	assert.Equal(t, placement.RequestPendingReview, accepted.Request.Status)
	require.NotNil(t, accepted.Transfer)
	assert.Equal(t, "owner", accepted.Transfer.FromUserID)
	assert.Equal(t, "h1", accepted.Transfer.ToUserID)
	assert.Equal(t, placement.TransferPending, accepted.Transfer.Status)

	confirmed, err := f.svc.ConfirmTransfer(ctx, helper, accepted.Transfer.ID)
	require.NoError(t, err)
	assert.Equal(t, placement.TransferConfirmed, confirmed.Transfer.Status)
	assert.Equal(t, placement.RequestFulfilled, confirmed.Request.Status)
	assert.Nil(t, confirmed.Pet)
	require.NotNil(t, confirmed.Assignment)
	assert.Equal(t, "pet-1", confirmed.Assignment.PetID)
	assert.Equal(t, "h1", confirmed.Assignment.FosterUserID)
	assert.Equal(t, placement.AssignmentActive, confirmed.Assignment.Status)

	fosterer, ok, err := f.svc.ActiveFosterer(ctx, "pet-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "h1", fosterer)

	h, err := f.svc.InitiateHandover(ctx, helper, confirmed.Assignment.ID, placement.InitiateHandoverInput{Location: "Plaza"})
	require.NoError(t, err)
	assert.Equal(t, placement.HandoverPending, h.Status)

	h, err = f.svc.ConfirmCondition(ctx, owner, h.ID, placement.ConfirmConditionInput{ConditionConfirmed: true})
	require.NoError(t, err)
	assert.Equal(t, placement.HandoverConfirmed, h.Status)
	require.NotNil(t, h.ConditionConfirmed)
	assert.True(t, *h.ConditionConfirmed)

	done, err := f.svc.CompleteHandover(ctx, helper, h.ID)
	require.NoError(t, err)
	assert.Equal(t, placement.HandoverCompleted, done.Handover.Status)
	assert.Equal(t, placement.AssignmentCompleted, done.Assignment.Status)

	_, ok, err = f.svc.ActiveFosterer(ctx, "pet-1")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ElementsMatch(t, []events.EventType{
		events.EventTypePlacementRequested,
		events.EventTypeFosterStarted,
		events.EventTypePlacementFulfilled,
		events.EventTypeFosterReturnInitiated,
		events.EventTypeFosterEnded,
	}, f.timeline("pet-1"))

	assert.Contains(t, f.sink.events("owner"), "placement_response.submitted")
	assert.Contains(t, f.sink.events("owner"), "transfer_request.confirmed")
	assert.Contains(t, f.sink.events("h1"), "placement_response.accepted")
	assert.Contains(t, f.sink.events("owner"), "return_handover.completed")
}

func TestAcceptResponse_RejectsSiblings(t *testing.T) {
	f := newFixture(t)
	req := f.openRequest(placement.RequestFosterPaid)
	a := f.respond(req.ID, helper, "hp-h1")
	b := f.respond(req.ID, other, "hp-h2")

	res, err := f.svc.AcceptResponse(context.Background(), owner, a.ID)
	require.NoError(t, err)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, b.ID, res.Rejected[0].ID)
	assert.Equal(t, placement.ResponseRejected, res.Rejected[0].Status)
	assert.Contains(t, f.sink.events("h2"), "placement_response.rejected")

	// La respuesta rechazada ya no se puede aceptar.
	_, err = f.svc.AcceptResponse(context.Background(), owner, b.ID)
	assert.Equal(t, apperr.KindConflict, kindOf(t, err))
}

func TestAcceptResponse_OnlyOwner(t *testing.T) {
	f := newFixture(t)
	req := f.openRequest(placement.RequestPermanent)
	resp := f.respond(req.ID, helper, "hp-h1")

	_, err := f.svc.AcceptResponse(context.Background(), other, resp.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.svc.AcceptResponse(context.Background(), owner, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAcceptResponse_ConcurrentAcceptsExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	req := f.openRequest(placement.RequestFosterFree)

	const helpersN = 8
	ids := make([]string, 0, helpersN)
	for i := range helpersN {
		userID := fmt.Sprintf("helper-%d", i)
		profileID := "hp-" + userID
		f.addHelper(profileID, userID, helpers.StatusActive)
		ids = append(ids, f.respond(req.ID, placement.Actor{UserID: userID}, profileID).ID)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.svc.AcceptResponse(context.Background(), owner, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, apperr.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, helpersN-1, conflicts)

	view, err := f.svc.GetRequestView(context.Background(), owner, req.ID)
	require.NoError(t, err)
	accepted := 0
	for _, r := range view.Responses {
		if r.Response.Status == placement.ResponseAccepted {
			accepted++
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Len(t, view.Transfers, 1)
}

func TestPetSitting_FulfilledWithoutTransfer(t *testing.T) {
	f := newFixture(t)
	req := f.openRequest(placement.RequestPetSitting)
	resp := f.respond(req.ID, helper, "hp-h1")

	res, err := f.svc.AcceptResponse(context.Background(), owner, resp.ID)
	require.NoError(t, err)
	assert.Nil(t, res.Transfer)
	assert.Equal(t, placement.RequestFulfilled, res.Request.Status)
	assert.NotNil(t, res.Request.FulfilledAt)
	assert.Contains(t, f.timeline("pet-1"), events.EventTypePlacementFulfilled)
}

func TestPermanentTransfer_ReassignsOwnership(t *testing.T) {
	f := newFixture(t)
	req := f.openRequest(placement.RequestPermanent)
	resp := f.respond(req.ID, helper, "hp-h1")
	acc, err := f.svc.AcceptResponse(context.Background(), owner, resp.ID)
	require.NoError(t, err)

	_, err = f.svc.ConfirmTransfer(context.Background(), owner, acc.Transfer.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	res, err := f.svc.ConfirmTransfer(context.Background(), helper, acc.Transfer.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Pet)
	assert.Equal(t, "h1", res.Pet.OwnerUserID)
	assert.Nil(t, res.Assignment)

	pet, err := memory.NewPetRepo(f.db).GetByID(context.Background(), "pet-1")
	require.NoError(t, err)
	assert.Equal(t, "h1", pet.OwnerUserID)
	assert.Contains(t, f.timeline("pet-1"), events.EventTypeOwnershipTransferred)

	_, err = f.svc.ConfirmTransfer(context.Background(), helper, acc.Transfer.ID)
	assert.Equal(t, apperr.KindConflict, kindOf(t, err))

	// El nuevo owner puede publicar su propio aviso.
	expires := f.now.Add(time.Hour)
	_, err = f.svc.CreateRequest(context.Background(), helper, placement.CreateRequestInput{PetID: "pet-1", Type: placement.RequestPermanent, ExpiresAt: &expires})
	assert.NoError(t, err)
}

func TestRejectTransfer_ReopensRequestAndAllowsResubmission(t *testing.T) {
	f := newFixture(t)
	req := f.openRequest(placement.RequestFosterFree)
	a := f.respond(req.ID, helper, "hp-h1")
	f.respond(req.ID, other, "hp-h2")
	acc, err := f.svc.AcceptResponse(context.Background(), owner, a.ID)
	require.NoError(t, err)

	_, err = f.svc.RejectTransfer(context.Background(), owner, acc.Transfer.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	res, err := f.svc.RejectTransfer(context.Background(), helper, acc.Transfer.ID)
	require.NoError(t, err)
	assert.Equal(t, placement.TransferRejected, res.Transfer.Status)
	assert.Equal(t, placement.RequestOpen, res.Request.Status)
	assert.Equal(t, placement.ResponseCancelled, res.Response.Status)
	assert.Contains(t, f.sink.events("owner"), "transfer_request.rejected")

	// Se permite volver a responder, incluso al que rechazó.
	again := f.respond(req.ID, other, "hp-h2")
	f.respond(req.ID, helper, "hp-h1")
	acc2, err := f.svc.AcceptResponse(context.Background(), owner, again.ID)
	require.NoError(t, err)
	require.NotNil(t, acc2.Transfer)
	assert.Equal(t, "h2", acc2.Transfer.ToUserID)
	assert.Len(t, acc2.Rejected, 1)
}

func TestCancelTransfer_EitherParty(t *testing.T) {
	f := newFixture(t)
	req := f.openRequest(placement.RequestFosterFree)
	resp := f.respond(req.ID, helper, "hp-h1")
	acc, err := f.svc.AcceptResponse(context.Background(), owner, resp.ID)
	require.NoError(t, err)

	_, err = f.svc.CancelTransfer(context.Background(), other, acc.Transfer.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	res, err := f.svc.CancelTransfer(context.Background(), owner, acc.Transfer.ID)
	require.NoError(t, err)
	assert.Equal(t, placement.TransferCancelled, res.Transfer.Status)
	assert.Equal(t, placement.RequestOpen, res.Request.Status)
	assert.Contains(t, f.sink.events("h1"), "transfer_request.cancelled")

	_, err = f.svc.CancelTransfer(context.Background(), helper, acc.Transfer.ID)
	assert.Equal(t, apperr.KindConflict, kindOf(t, err))
}

func TestCreateRequest_Rules(t *testing.T) {
	f := newFixture(t)
	f.addPet("bird-1", "owner", "bird")
	f.addPet("rabbit-1", "owner", "rabbit")
	ctx := context.Background()
	past := f.now.Add(-time.Minute)
	start := f.now.Add(48 * time.Hour)
	before := f.now.Add(24 * time.Hour)

	_, err := f.svc.CreateRequest(ctx, other, placement.CreateRequestInput{PetID: "pet-1", Type: placement.RequestPermanent})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.svc.CreateRequest(ctx, owner, placement.CreateRequestInput{PetID: "missing", Type: placement.RequestPermanent})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.CreateRequest(ctx, owner, placement.CreateRequestInput{PetID: "pet-1", Type: "adoption"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.CreateRequest(ctx, owner, placement.CreateRequestInput{PetID: "pet-1", Type: placement.RequestPermanent, ExpiresAt: &past})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.CreateRequest(ctx, owner, placement.CreateRequestInput{PetID: "pet-1", Type: placement.RequestFosterFree, StartDate: &start, EndDate: &before})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.CreateRequest(ctx, owner, placement.CreateRequestInput{PetID: "bird-1", Type: placement.RequestPermanent})
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindCapabilityDenied, e.Kind)
	assert.Equal(t, "placement_not_supported", e.Code)

	_, err = f.svc.CreateRequest(ctx, owner, placement.CreateRequestInput{PetID: "rabbit-1", Type: placement.RequestFosterFree})
	e, ok = apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "fostering_not_supported", e.Code)

	_, err = f.svc.CreateRequest(ctx, owner, placement.CreateRequestInput{PetID: "rabbit-1", Type: placement.RequestPermanent})
	assert.NoError(t, err)

	f.openRequest(placement.RequestPermanent)
	_, err = f.svc.CreateRequest(ctx, owner, placement.CreateRequestInput{PetID: "pet-1", Type: placement.RequestPetSitting})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestSubmitResponse_Rules(t *testing.T) {
	f := newFixture(t)
	f.addHelper("hp-owner", "owner", helpers.StatusActive)
	f.addHelper("hp-old", "h3", helpers.StatusArchived)
	ctx := context.Background()
	req := f.openRequest(placement.RequestFosterFree)

	_, err := f.svc.SubmitResponse(ctx, owner, req.ID, placement.SubmitResponseInput{HelperProfileID: "hp-owner"})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.svc.SubmitResponse(ctx, other, req.ID, placement.SubmitResponseInput{HelperProfileID: "hp-h1"})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.svc.SubmitResponse(ctx, placement.Actor{UserID: "h3"}, req.ID, placement.SubmitResponseInput{HelperProfileID: "hp-old"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = f.svc.SubmitResponse(ctx, helper, req.ID, placement.SubmitResponseInput{})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.SubmitResponse(ctx, helper, req.ID, placement.SubmitResponseInput{HelperProfileID: "missing"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	first := f.respond(req.ID, helper, "hp-h1")
	_, err = f.svc.SubmitResponse(ctx, helper, req.ID, placement.SubmitResponseInput{HelperProfileID: "hp-h1"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	// Al cancelar la pendiente puede volver a responder.
	_, err = f.svc.CancelResponse(ctx, other, first.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	cancelled, err := f.svc.CancelResponse(ctx, helper, first.ID)
	require.NoError(t, err)
	assert.Equal(t, placement.ResponseCancelled, cancelled.Status)
	second := f.respond(req.ID, helper, "hp-h1")

	acc, err := f.svc.AcceptResponse(ctx, owner, second.ID)
	require.NoError(t, err)
	_, err = f.svc.SubmitResponse(ctx, other, req.ID, placement.SubmitResponseInput{HelperProfileID: "hp-h2"})
	assert.ErrorIs(t, err, apperr.ErrConflict, "request is pending_review")
	assert.NotNil(t, acc.Transfer)
}

func TestRejectResponse(t *testing.T) {
	f := newFixture(t)
	req := f.openRequest(placement.RequestFosterFree)
	resp := f.respond(req.ID, helper, "hp-h1")

	_, err := f.svc.RejectResponse(context.Background(), helper, resp.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	got, err := f.svc.RejectResponse(context.Background(), owner, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, placement.ResponseRejected, got.Status)
	assert.NotNil(t, got.RejectedAt)

	_, err = f.svc.RejectResponse(context.Background(), owner, resp.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	mine, err := f.svc.ListMyResponses(context.Background(), helper)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, placement.ResponseRejected, mine[0].Status)
}

func TestCancelRequest_ClosesPendingResponses(t *testing.T) {
	f := newFixture(t)
	req := f.openRequest(placement.RequestFosterFree)
	f.respond(req.ID, helper, "hp-h1")
	f.respond(req.ID, other, "hp-h2")

	_, err := f.svc.CancelRequest(context.Background(), helper, req.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	res, err := f.svc.CancelRequest(context.Background(), owner, req.ID)
	require.NoError(t, err)
	assert.Equal(t, placement.RequestCancelled, res.Request.Status)
	require.Len(t, res.Closed, 2)
	for _, r := range res.Closed {
		assert.Equal(t, placement.ResponseRejected, r.Status)
	}
	assert.Empty(t, res.CancelledTransfers)
	assert.Contains(t, f.timeline("pet-1"), events.EventTypePlacementCancelled)
	assert.Contains(t, f.sink.events("h1"), "placement_request.cancelled")

	_, err = f.svc.CancelRequest(context.Background(), owner, req.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	// Ya no hay aviso activo: se puede publicar otro.
	f.openRequest(placement.RequestPermanent)
}

func TestCancelRequest_CancelsPendingTransfer(t *testing.T) {
	f := newFixture(t)
	req := f.openRequest(placement.RequestPermanent)
	resp := f.respond(req.ID, helper, "hp-h1")
	acc, err := f.svc.AcceptResponse(context.Background(), owner, resp.ID)
	require.NoError(t, err)

	res, err := f.svc.CancelRequest(context.Background(), owner, req.ID)
	require.NoError(t, err)
	require.Len(t, res.CancelledTransfers, 1)
	assert.Equal(t, acc.Transfer.ID, res.CancelledTransfers[0].ID)
	assert.Equal(t, placement.TransferCancelled, res.CancelledTransfers[0].Status)

	_, err = f.svc.ConfirmTransfer(context.Background(), helper, acc.Transfer.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	view, err := f.svc.GetRequestView(context.Background(), owner, req.ID)
	require.NoError(t, err)
	require.Len(t, view.Responses, 1)
	assert.Equal(t, placement.ResponseCancelled, view.Responses[0].Response.Status)
}

func TestExpireDue_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.addPet("pet-2", "owner", "dog")
	ctx := context.Background()

	req := f.openRequest(placement.RequestFosterFree)
	resp := f.respond(req.ID, helper, "hp-h1")
	later := f.now.Add(30 * 24 * time.Hour)
	notDue, err := f.svc.CreateRequest(ctx, owner, placement.CreateRequestInput{PetID: "pet-2", Type: placement.RequestPermanent, ExpiresAt: &later})
	require.NoError(t, err)

	f.now = f.now.Add(8 * 24 * time.Hour)

	res, err := f.svc.ExpireDue(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, res.Expired, 1)
	assert.Equal(t, req.ID, res.Expired[0].ID)
	assert.Equal(t, placement.RequestExpired, res.Expired[0].Status)

	mine, err := f.svc.ListMyResponses(ctx, helper)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, resp.ID, mine[0].ID)
	assert.Equal(t, placement.ResponseRejected, mine[0].Status)
	assert.Contains(t, f.timeline("pet-1"), events.EventTypePlacementExpired)

	again, err := f.svc.ExpireDue(ctx, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, again.Expired)

	single, err := f.svc.ExpireRequest(ctx, admin, req.ID)
	require.NoError(t, err)
	assert.Equal(t, placement.RequestExpired, single.Status)

	_, err = f.svc.ExpireRequest(ctx, owner, req.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.svc.ExpireRequest(ctx, admin, notDue.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	n := 0
	for _, e := range f.timeline("pet-1") {
		if e == events.EventTypePlacementExpired {
			n++
		}
	}
	assert.Equal(t, 1, n)
}

func TestNotificationFailure_DoesNotFailTransition(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockSink(ctrl)
	sink.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(errors.New("sink down")).AnyTimes()

	core, logs := observer.New(zapcore.WarnLevel)
	db := memory.NewDatabase()
	svc := placement.NewService(memory.NewPlacementStore(db), capabilities.NewChecker(static.Default()), sink,
		placement.WithLogger(logger.NewFromZap(zap.New(core))))

	ctx := context.Background()
	require.NoError(t, memory.NewPetRepo(db).Create(ctx, pets.Pet{ID: "pet-1", OwnerUserID: "owner", Species: "dog"}))
	require.NoError(t, memory.NewHelperRepo(db).Create(ctx, helpers.Profile{ID: "hp-h1", UserID: "h1", Status: helpers.StatusActive}))

	req, err := svc.CreateRequest(ctx, owner, placement.CreateRequestInput{PetID: "pet-1", Type: placement.RequestPermanent})
	require.NoError(t, err)
	resp, err := svc.SubmitResponse(ctx, helper, req.ID, placement.SubmitResponseInput{HelperProfileID: "hp-h1"})
	require.NoError(t, err)
	res, err := svc.AcceptResponse(ctx, owner, resp.ID)
	require.NoError(t, err)
	assert.NotNil(t, res.Transfer)

	warned := logs.FilterMessage("notification failed").All()
	require.NotEmpty(t, warned)
	assert.Equal(t, "owner", warned[0].ContextMap()["user_id"])
}

func TestNotifications_NotSentWhenTransitionFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockSink(ctrl)
	sink.EXPECT().Notify(gomock.Any(), gomock.Any()).Times(0)

	db := memory.NewDatabase()
	svc := placement.NewService(memory.NewPlacementStore(db), capabilities.NewChecker(static.Default()), sink)
	ctx := context.Background()
	require.NoError(t, memory.NewPetRepo(db).Create(ctx, pets.Pet{ID: "pet-1", OwnerUserID: "owner", Species: "dog"}))

	_, err := svc.CancelRequest(ctx, owner, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestHandover_Rules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.openRequest(placement.RequestFosterFree)
	resp := f.respond(req.ID, helper, "hp-h1")
	acc, err := f.svc.AcceptResponse(ctx, owner, resp.ID)
	require.NoError(t, err)
	conf, err := f.svc.ConfirmTransfer(ctx, helper, acc.Transfer.ID)
	require.NoError(t, err)
	assignmentID := conf.Assignment.ID

	_, err = f.svc.InitiateHandover(ctx, owner, assignmentID, placement.InitiateHandoverInput{})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	h, err := f.svc.InitiateHandover(ctx, helper, assignmentID, placement.InitiateHandoverInput{})
	require.NoError(t, err)
	_, err = f.svc.InitiateHandover(ctx, helper, assignmentID, placement.InitiateHandoverInput{})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = f.svc.ConfirmCondition(ctx, helper, h.ID, placement.ConfirmConditionInput{ConditionConfirmed: true})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	disputed, err := f.svc.ConfirmCondition(ctx, owner, h.ID, placement.ConfirmConditionInput{ConditionConfirmed: false, Notes: "limping"})
	require.NoError(t, err)
	assert.Equal(t, placement.HandoverDisputed, disputed.Status)
	assert.Equal(t, "limping", disputed.ConditionNotes)

	_, err = f.svc.CompleteHandover(ctx, owner, h.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	_, err = f.svc.ConfirmCondition(ctx, owner, h.ID, placement.ConfirmConditionInput{ConditionConfirmed: true})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = f.svc.GetHandover(ctx, other, h.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	list, err := f.svc.ListHandovers(ctx, owner, assignmentID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCompleteHandover_FromPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.openRequest(placement.RequestFosterFree)
	resp := f.respond(req.ID, helper, "hp-h1")
	acc, err := f.svc.AcceptResponse(ctx, owner, resp.ID)
	require.NoError(t, err)
	conf, err := f.svc.ConfirmTransfer(ctx, helper, acc.Transfer.ID)
	require.NoError(t, err)

	h, err := f.svc.InitiateHandover(ctx, helper, conf.Assignment.ID, placement.InitiateHandoverInput{})
	require.NoError(t, err)

	_, err = f.svc.CompleteHandover(ctx, other, h.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	done, err := f.svc.CompleteHandover(ctx, owner, h.ID)
	require.NoError(t, err)
	assert.Equal(t, placement.HandoverCompleted, done.Handover.Status)
	assert.Nil(t, done.Handover.ConditionConfirmed)
	assert.Equal(t, placement.AssignmentCompleted, done.Assignment.Status)
}

// startFoster deja a pet-1 en un foster activo con h1.
func (f *fixture) startFoster() placement.FosterAssignment {
	f.t.Helper()
	ctx := context.Background()
	req := f.openRequest(placement.RequestFosterFree)
	acc, err := f.svc.AcceptResponse(ctx, owner, f.respond(req.ID, helper, "hp-h1").ID)
	require.NoError(f.t, err)
	conf, err := f.svc.ConfirmTransfer(ctx, helper, acc.Transfer.ID)
	require.NoError(f.t, err)
	require.NotNil(f.t, conf.Assignment)
	return *conf.Assignment
}

func TestCreateRequest_ConflictsWhileFosterActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.startFoster()

	for _, typ := range []placement.RequestType{placement.RequestPermanent, placement.RequestFosterPaid, placement.RequestPetSitting} {
		_, err := f.svc.CreateRequest(ctx, owner, placement.CreateRequestInput{PetID: "pet-1", Type: typ})
		assert.ErrorIs(t, err, apperr.ErrConflict, string(typ))
	}

	h, err := f.svc.InitiateHandover(ctx, helper, a.ID, placement.InitiateHandoverInput{})
	require.NoError(t, err)
	_, err = f.svc.ConfirmCondition(ctx, owner, h.ID, placement.ConfirmConditionInput{ConditionConfirmed: true})
	require.NoError(t, err)
	_, err = f.svc.CompleteHandover(ctx, owner, h.ID)
	require.NoError(t, err)

	// Devuelta la mascota, el owner puede volver a publicar.
	r := f.openRequest(placement.RequestPermanent)
	assert.Equal(t, placement.RequestOpen, r.Status)
}

func TestConfirmTransfer_ConflictsWithActiveAssignment(t *testing.T) {
	for _, typ := range []placement.RequestType{placement.RequestPermanent, placement.RequestFosterPaid} {
		t.Run(string(typ), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			req := f.openRequest(typ)
			acc, err := f.svc.AcceptResponse(ctx, owner, f.respond(req.ID, helper, "hp-h1").ID)
			require.NoError(t, err)

			// Una asignación que arrancó por fuera de este aviso (alta administrativa o datos previos).
			require.NoError(t, memory.NewPlacementStore(f.db).RunInTx(ctx, func(st placement.Store) error {
				return st.CreateAssignment(ctx, placement.FosterAssignment{
					ID: "fa-legacy", PetID: "pet-1", OwnerUserID: "owner", FosterUserID: "h2",
					Status: placement.AssignmentActive, StartedAt: f.now,
				})
			}))

			_, err = f.svc.ConfirmTransfer(ctx, helper, acc.Transfer.ID)
			assert.ErrorIs(t, err, apperr.ErrConflict)

			// El rollback deja la transferencia pendiente y el owner intacto.
			tr, err := f.svc.GetTransfer(ctx, helper, acc.Transfer.ID)
			require.NoError(t, err)
			assert.Equal(t, placement.TransferPending, tr.Status)
			p, err := memory.NewPetRepo(f.db).GetByID(ctx, "pet-1")
			require.NoError(t, err)
			assert.Equal(t, "owner", p.OwnerUserID)
			a, err := f.svc.GetAssignment(ctx, owner, "fa-legacy")
			require.NoError(t, err)
			assert.Equal(t, "owner", a.OwnerUserID)
		})
	}
}

// txTracker marca cuándo hay una transacción de escritura abierta.
type txTracker struct {
	placement.Transactor
	inTx atomic.Bool
}

func (t *txTracker) RunInTx(ctx context.Context, fn func(placement.Store) error) error {
	return t.Transactor.RunInTx(ctx, func(st placement.Store) error {
		t.inTx.Store(true)
		defer t.inTx.Store(false)
		return fn(st)
	})
}

type watchedRegistry struct {
	capport.Registry
	tx            *txTracker
	calls         int
	callsDuringTx int
}

func (r *watchedRegistry) PetType(ctx context.Context, slug string) (capport.PetType, error) {
	r.calls++
	if r.tx.inTx.Load() {
		r.callsDuringTx++
	}
	return r.Registry.PetType(ctx, slug)
}

func TestCreateRequest_ResolvesCapabilitiesOutsideWriteTx(t *testing.T) {
	f := newFixture(t)
	tx := &txTracker{Transactor: memory.NewPlacementStore(f.db)}
	reg := &watchedRegistry{Registry: static.Default(), tx: tx}
	svc := placement.NewService(tx, capabilities.NewChecker(reg), nil,
		placement.WithClock(func() time.Time { return f.now }))

	_, err := svc.CreateRequest(context.Background(), owner, placement.CreateRequestInput{PetID: "pet-1", Type: placement.RequestFosterFree})
	require.NoError(t, err)
	assert.Positive(t, reg.calls)
	assert.Zero(t, reg.callsDuringTx)
}

func TestAdminCompleteAssignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.openRequest(placement.RequestFosterFree)
	acc, err := f.svc.AcceptResponse(ctx, owner, f.respond(req.ID, helper, "hp-h1").ID)
	require.NoError(t, err)
	conf, err := f.svc.ConfirmTransfer(ctx, helper, acc.Transfer.ID)
	require.NoError(t, err)

	_, err = f.svc.AdminCompleteAssignment(ctx, owner, conf.Assignment.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	a, err := f.svc.AdminCompleteAssignment(ctx, admin, conf.Assignment.ID)
	require.NoError(t, err)
	assert.Equal(t, placement.AssignmentCompleted, a.Status)

	_, err = f.svc.AdminCompleteAssignment(ctx, admin, conf.Assignment.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	_, err = f.svc.InitiateHandover(ctx, helper, conf.Assignment.ID, placement.InitiateHandoverInput{})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	list, err := f.svc.ListAssignmentsByPet(ctx, helper, "pet-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
	_, err = f.svc.ListAssignmentsByPet(ctx, other, "pet-1")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.svc.GetAssignment(ctx, other, conf.Assignment.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestGetRequestView_FiltersByRelation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.openRequest(placement.RequestFosterFree)
	mine := f.respond(req.ID, helper, "hp-h1")
	f.respond(req.ID, other, "hp-h2")

	ownerView, err := f.svc.GetRequestView(ctx, owner, req.ID)
	require.NoError(t, err)
	assert.Len(t, ownerView.Responses, 2)
	assert.Equal(t, []placement.RequestAction{placement.RequestCancel}, ownerView.Actions)
	assert.False(t, ownerView.CanRespond)
	assert.Equal(t, []placement.ResponseAction{placement.ResponseAccept, placement.ResponseReject}, ownerView.Responses[0].Actions)

	helperView, err := f.svc.GetRequestView(ctx, helper, req.ID)
	require.NoError(t, err)
	require.Len(t, helperView.Responses, 1)
	assert.Equal(t, mine.ID, helperView.Responses[0].Response.ID)
	assert.Equal(t, []placement.ResponseAction{placement.ResponseCancel}, helperView.Responses[0].Actions)
	assert.Empty(t, helperView.Actions)
	assert.False(t, helperView.CanRespond)

	stranger, err := f.svc.GetRequestView(ctx, placement.Actor{UserID: "someone"}, req.ID)
	require.NoError(t, err)
	assert.Empty(t, stranger.Responses)
	assert.True(t, stranger.CanRespond)

	adminView, err := f.svc.GetRequestView(ctx, admin, req.ID)
	require.NoError(t, err)
	assert.Equal(t, []placement.RequestAction{placement.RequestExpire}, adminView.Actions)

	acc, err := f.svc.AcceptResponse(ctx, owner, mine.ID)
	require.NoError(t, err)
	_, err = f.svc.ConfirmTransfer(ctx, helper, acc.Transfer.ID)
	require.NoError(t, err)

	final, err := f.svc.GetRequestView(ctx, helper, req.ID)
	require.NoError(t, err)
	require.NotNil(t, final.Assignment)
	assert.Equal(t, "h1", final.Assignment.FosterUserID)
	require.Len(t, final.Transfers, 1)
	assert.Empty(t, final.Transfers[0].Actions)

	list, err := f.svc.ListRequestsByPet(ctx, helper, "pet-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
	_, err = f.svc.ListRequestsByPet(ctx, helper, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
