package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"pet-rehoming/internal/domain/helpers"
)

type HelpersRepo struct {
	db *sql.DB
}

func NewHelpersRepo(db *sql.DB) *HelpersRepo {
	return &HelpersRepo{db: db}
}

const helperColumns = `
			id, user_id,
			display_name, city, experience,
			can_foster, can_adopt,
			status,
			created_at, updated_at, archived_at`

// Create traduce el índice único parcial (un perfil activo por usuario) a ErrAlreadyActive.
func (r *HelpersRepo) Create(ctx context.Context, p helpers.Profile) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO helper_profiles (`+helperColumns+`
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		p.ID,
		p.UserID,
		p.DisplayName,
		p.City,
		p.Experience,
		p.CanFoster,
		p.CanAdopt,
		string(p.Status),
		p.CreatedAt,
		p.UpdatedAt,
		toNullTime(p.ArchivedAt),
	)
	if isUniqueViolation(err) {
		return helpers.ErrAlreadyActive
	}
	return err
}

func (r *HelpersRepo) Update(ctx context.Context, p helpers.Profile) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE helper_profiles
		SET
			display_name = $2,
			city = $3,
			experience = $4,
			can_foster = $5,
			can_adopt = $6,
			status = $7,
			updated_at = $8,
			archived_at = $9
		WHERE id = $1
	`,
		p.ID,
		p.DisplayName,
		p.City,
		p.Experience,
		p.CanFoster,
		p.CanAdopt,
		string(p.Status),
		p.UpdatedAt,
		toNullTime(p.ArchivedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return helpers.ErrAlreadyActive
		}
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return helpers.ErrNotFound
	}
	return nil
}

func (r *HelpersRepo) GetByID(ctx context.Context, id string) (helpers.Profile, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return helpers.Profile{}, helpers.ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+helperColumns+` FROM helper_profiles WHERE id = $1`, id)
}

func (r *HelpersRepo) GetActiveByUser(ctx context.Context, userID string) (helpers.Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return helpers.Profile{}, helpers.ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+helperColumns+` FROM helper_profiles WHERE user_id = $1 AND status = 'active'`, userID)
}

func (r *HelpersRepo) getOne(ctx context.Context, query string, arg string) (helpers.Profile, error) {
	var p helpers.Profile
	var status string
	var archived sql.NullTime
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&p.ID,
		&p.UserID,
		&p.DisplayName,
		&p.City,
		&p.Experience,
		&p.CanFoster,
		&p.CanAdopt,
		&status,
		&p.CreatedAt,
		&p.UpdatedAt,
		&archived,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return helpers.Profile{}, helpers.ErrNotFound
	}
	if err != nil {
		return helpers.Profile{}, err
	}
	p.Status = helpers.Status(status)
	p.ArchivedAt = fromNullTime(archived)
	return p, nil
}
