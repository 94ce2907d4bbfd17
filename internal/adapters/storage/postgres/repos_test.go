package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"pet-rehoming/internal/domain/events"
	"pet-rehoming/internal/domain/events/details"
	"pet-rehoming/internal/domain/helpers"
	"pet-rehoming/internal/domain/pets"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHelpersRepo_CreateSecondActive(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO helper_profiles`)).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "helper_profiles_one_active"})

	err = NewHelpersRepo(db).Create(context.Background(), helpers.Profile{
		ID:     "hp-2",
		UserID: "u-1",
		Status: helpers.StatusActive,
	})
	assert.ErrorIs(t, err, helpers.ErrAlreadyActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHelpersRepo_GetActiveByUserMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM helper_profiles WHERE user_id = $1 AND status = 'active'`)).
		WithArgs("u-9").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = NewHelpersRepo(db).GetActiveByUser(context.Background(), "u-9")
	assert.ErrorIs(t, err, helpers.ErrNotFound)
}

func TestPetsRepo_GetMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM pets`)).
		WithArgs("p-404").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = NewPetsRepo(db).GetByID(context.Background(), "p-404")
	assert.ErrorIs(t, err, pets.ErrNotFound)
}

func TestEventsRepo_ListSharedOnly(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	cols := []string{
		"id", "pet_id", "type", "occurred_at", "recorded_at", "title", "notes",
		"measurement_kind", "measurement_value", "measurement_unit",
		"actor_type", "actor_id", "source", "visibility", "status",
	}

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE pet_id = $1 AND visibility = $2 ORDER BY occurred_at DESC LIMIT $3`)).
		WithArgs("pet-1", string(events.VisibilityShared), 50).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("ev-1", "pet-1", "WEIGHT_RECORDED", at, at, "Peso", "", "weight", 4.2, "kg",
				"OWNER_USER", "owner", "manual", "shared_with_custodian", "active"))

	got, err := NewEventsRepo(db).ListByPet(context.Background(), "pet-1", events.ListFilter{SharedOnly: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Measurement)
	assert.Equal(t, details.MeasurementKindWeight, got[0].Measurement.Kind)
	assert.InDelta(t, 4.2, got[0].Measurement.Value, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventsRepo_VoidMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE pet_events`)).
		WithArgs("ev-x").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, NewEventsRepo(db).Void(context.Background(), "ev-x"), events.ErrNotFound)
}

func TestUpSection(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE a (id int);\n-- +migrate Down\nDROP TABLE a;\n"
	assert.Equal(t, "\nCREATE TABLE a (id int);\n", upSection(content))
	assert.Equal(t, "SELECT 1;", upSection("SELECT 1;"))
}
