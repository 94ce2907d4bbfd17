package helpers

import "context"

type Repository interface {
	Create(ctx context.Context, p Profile) error
	Update(ctx context.Context, p Profile) error
	GetByID(ctx context.Context, id string) (Profile, error)
	// GetActiveByUser devuelve ErrNotFound si el usuario no tiene perfil activo.
	GetActiveByUser(ctx context.Context, userID string) (Profile, error)
}
