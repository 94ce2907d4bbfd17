package placement

import (
	"errors"

	"pet-rehoming/internal/platform/apperr"
)

// Sentinels del Store. Los adapters devuelven estos; el servicio los traduce.
var (
	// ErrRowNotFound: la fila no existe.
	ErrRowNotFound = errors.New("placement store: row not found")
	// ErrStaleWrite: un UPDATE condicional no encontró la fila en el estado esperado
	// (otra transacción la cambió antes).
	ErrStaleWrite = errors.New("placement store: stale write")
	// ErrUniqueViolation: se violó un índice único parcial (aviso activo por mascota,
	// respuesta aceptada por aviso, transferencia por respuesta, foster activo por mascota,
	// handover abierto por asignación).
	ErrUniqueViolation = errors.New("placement store: unique violation")
)

type transitionError struct {
	msg string
}

func (e *transitionError) Error() string { return e.msg }

// translate lleva cualquier error de una transición a la taxonomía apperr.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var te *transitionError
	switch {
	case errors.As(err, &te):
		return apperr.Conflict(te.msg)
	case apperr.KindOf(err) != apperr.KindInternal:
		return err
	case errors.Is(err, ErrRowNotFound):
		return apperr.Wrap(err, apperr.KindNotFound, "not found")
	case errors.Is(err, ErrStaleWrite):
		return apperr.Wrap(err, apperr.KindConflict, "state changed concurrently; reload and retry")
	case errors.Is(err, ErrUniqueViolation):
		return apperr.Wrap(err, apperr.KindConflict, "conflicting state already exists")
	}
	return err
}

// notFound da un motivo claro cuando falta la entidad principal de la operación.
func notFound(err error, what string) error {
	if errors.Is(err, ErrRowNotFound) {
		return apperr.Wrap(err, apperr.KindNotFound, what+" not found")
	}
	return err
}
