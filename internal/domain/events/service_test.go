package events

import (
	"context"
	"testing"
	"time"

	"pet-rehoming/internal/adapters/capabilities/static"
	"pet-rehoming/internal/domain/capabilities"
	"pet-rehoming/internal/platform/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePets map[string][2]string // petID -> {owner, species}

func (f fakePets) OwnerOf(_ context.Context, petID string) (string, error) {
	p, ok := f[petID]
	if !ok {
		return "", apperr.NotFound("pet not found")
	}
	return p[0], nil
}

func (f fakePets) SpeciesOf(_ context.Context, petID string) (string, error) {
	p, ok := f[petID]
	if !ok {
		return "", apperr.NotFound("pet not found")
	}
	return p[1], nil
}

type fakeCustody map[string]string // petID -> fosterer

func (f fakeCustody) ActiveFosterer(_ context.Context, petID string) (string, bool, error) {
	u, ok := f[petID]
	return u, ok, nil
}

type testRepo struct {
	byID map[string]PetEvent
}

func (r *testRepo) Create(_ context.Context, e PetEvent) error {
	r.byID[e.ID] = e
	return nil
}

func (r *testRepo) GetByID(_ context.Context, id string) (PetEvent, error) {
	e, ok := r.byID[id]
	if !ok {
		return PetEvent{}, ErrNotFound
	}
	return e, nil
}

func (r *testRepo) ListByPet(_ context.Context, petID string, f ListFilter) ([]PetEvent, error) {
	out := []PetEvent{}
	for _, e := range r.byID {
		if e.PetID != petID {
			continue
		}
		if f.SharedOnly && e.Visibility != VisibilityShared {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *testRepo) Void(_ context.Context, id string) error {
	e, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	e.Status = EventStatusVoided
	r.byID[id] = e
	return nil
}

func newTestService() (*Service, *testRepo) {
	repo := &testRepo{byID: map[string]PetEvent{}}
	svc := NewService(
		repo,
		fakePets{"dog-1": {"owner-1", "dog"}, "bird-1": {"owner-1", "bird"}},
		fakeCustody{"dog-1": "foster-1"},
		capabilities.NewChecker(static.Default()),
	)
	now := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	return svc, repo
}

var occurred = time.Date(2026, 3, 31, 18, 0, 0, 0, time.UTC)

func TestService_Create_OwnerAndFosterer(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	e, err := svc.Create(ctx, "dog-1", "owner-1", CreateInput{
		Type: EventTypeNote, OccurredAt: occurred, Title: "vet ok", Visibility: VisibilityPrivate,
	})
	require.NoError(t, err)
	assert.Equal(t, ActorTypeOwnerUser, e.Actor.Type)
	assert.Equal(t, VisibilityPrivate, e.Visibility)

	e, err = svc.Create(ctx, "dog-1", "foster-1", CreateInput{
		Type: EventTypeNote, OccurredAt: occurred, Visibility: VisibilityPrivate,
	})
	require.NoError(t, err)
	assert.Equal(t, ActorTypeFosterUser, e.Actor.Type)
	assert.Equal(t, VisibilityShared, e.Visibility, "fosterer events are always shared")

	_, err = svc.Create(ctx, "dog-1", "stranger", CreateInput{Type: EventTypeNote, OccurredAt: occurred})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestService_Create_RejectsSystemTypes(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Create(context.Background(), "dog-1", "owner-1", CreateInput{
		Type: EventTypeFosterStarted, OccurredAt: occurred,
	})
	assert.ErrorIs(t, err, ErrNotManualType)
}

func TestService_Create_WeightNeedsCapability(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, "bird-1", "owner-1", CreateInput{
		Type: EventTypeWeightRecorded, OccurredAt: occurred, Weight: &WeightInput{Value: 0.3},
	})
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindCapabilityDenied, e.Kind)
	assert.Equal(t, "weight_not_supported", e.Code)

	_, err = svc.Create(ctx, "dog-1", "owner-1", CreateInput{Type: EventTypeWeightRecorded, OccurredAt: occurred})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	ev, err := svc.Create(ctx, "dog-1", "owner-1", CreateInput{
		Type: EventTypeWeightRecorded, OccurredAt: occurred, Weight: &WeightInput{Value: 12.5, Unit: "kg"},
	})
	require.NoError(t, err)
	require.NotNil(t, ev.Measurement)
	assert.Equal(t, 12.5, ev.Measurement.Value)
}

func TestService_ListByPet_FostererSeesSharedOnly(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, "dog-1", "owner-1", CreateInput{Type: EventTypeNote, OccurredAt: occurred, Visibility: VisibilityPrivate})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "dog-1", "owner-1", CreateInput{Type: EventTypeNote, OccurredAt: occurred})
	require.NoError(t, err)

	all, err := svc.ListByPet(ctx, "dog-1", "owner-1", ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	shared, err := svc.ListByPet(ctx, "dog-1", "foster-1", ListFilter{})
	require.NoError(t, err)
	assert.Len(t, shared, 1)

	_, err = svc.ListByPet(ctx, "missing", "owner-1", ListFilter{})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestService_Void(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	fosterNote, err := svc.Create(ctx, "dog-1", "foster-1", CreateInput{Type: EventTypeNote, OccurredAt: occurred})
	require.NoError(t, err)
	ownerNote, err := svc.Create(ctx, "dog-1", "owner-1", CreateInput{Type: EventTypeNote, OccurredAt: occurred})
	require.NoError(t, err)

	// el foster no anula notas del owner
	_, err = svc.Void(ctx, "dog-1", ownerNote.ID, "foster-1")
	assert.ErrorIs(t, err, ErrForbidden)

	// el owner sí anula notas del foster, y es idempotente
	v, err := svc.Void(ctx, "dog-1", fosterNote.ID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, EventStatusVoided, v.Status)
	_, err = svc.Void(ctx, "dog-1", fosterNote.ID, "owner-1")
	require.NoError(t, err)

	sys := NewSystemEvent("sys-1", "dog-1", EventTypeFosterStarted, Actor{Type: ActorTypeSystem}, "Foster started", occurred)
	require.NoError(t, repo.Create(ctx, sys))
	_, err = svc.Void(ctx, "dog-1", "sys-1", "owner-1")
	assert.ErrorIs(t, err, ErrNotVoidable)

	_, err = svc.Void(ctx, "bird-1", ownerNote.ID, "owner-1")
	assert.ErrorIs(t, err, ErrNotFound)
}
