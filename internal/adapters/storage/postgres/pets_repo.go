package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"pet-rehoming/internal/domain/pets"
)

const petColumns = `id, owner_user_id, name, species, breed, sex,
	birth_date, microchip, notes, created_at, updated_at`

type PetsRepo struct {
	db *sql.DB
}

func NewPetsRepo(db *sql.DB) *PetsRepo {
	return &PetsRepo{db: db}
}

func (r *PetsRepo) Create(ctx context.Context, p pets.Pet) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO pets (`+petColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		p.ID, p.OwnerUserID, p.Name, p.Species, p.Breed, p.Sex,
		toNullTime(p.BirthDate), p.Microchip, p.Notes, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

// Update no toca owner_user_id: el dueño solo cambia al confirmar una
// transferencia permanente (PlacementStore.ReassignPetOwner).
func (r *PetsRepo) Update(ctx context.Context, p pets.Pet) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE pets
		SET name = $2, species = $3, breed = $4, sex = $5,
			birth_date = $6, microchip = $7, notes = $8, updated_at = $9
		WHERE id = $1`,
		p.ID, p.Name, p.Species, p.Breed, p.Sex,
		toNullTime(p.BirthDate), p.Microchip, p.Notes, p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pets.ErrNotFound
	}
	return nil
}

func (r *PetsRepo) GetByID(ctx context.Context, id string) (pets.Pet, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return pets.Pet{}, pets.ErrNotFound
	}
	p, err := scanPet(r.db.QueryRowContext(ctx, `SELECT `+petColumns+` FROM pets WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return pets.Pet{}, pets.ErrNotFound
	}
	return p, err
}

// ListByOwner devuelve las mascotas del dueño actual; las transferidas
// aparecen en la lista del nuevo dueño.
func (r *PetsRepo) ListByOwner(ctx context.Context, ownerUserID string) ([]pets.Pet, error) {
	ownerUserID = strings.TrimSpace(ownerUserID)
	if ownerUserID == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+petColumns+` FROM pets WHERE owner_user_id = $1 ORDER BY created_at ASC`, ownerUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]pets.Pet, 0)
	for rows.Next() {
		p, err := scanPet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// birth_date es date: pgx lo entrega como time.Time a medianoche UTC.
func scanPet(row scanner) (pets.Pet, error) {
	var p pets.Pet
	var bd sql.NullTime
	err := row.Scan(
		&p.ID, &p.OwnerUserID, &p.Name, &p.Species, &p.Breed, &p.Sex,
		&bd, &p.Microchip, &p.Notes, &p.CreatedAt, &p.UpdatedAt,
	)
	p.BirthDate = fromNullTime(bd)
	return p, err
}
