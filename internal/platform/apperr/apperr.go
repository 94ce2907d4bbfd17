// Package apperr define la taxonomía de errores que exponen los servicios de dominio.
// Los adapters HTTP traducen Kind a status; el dominio solo define kind + motivo.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindForbidden        Kind = "forbidden"
	KindConflict         Kind = "conflict"
	KindCapabilityDenied Kind = "capability_denied"
	KindNotFound         Kind = "not_found"
	KindValidation       Kind = "validation_failed"
	KindInternal         Kind = "internal"
)

// Error lleva un kind estable, un motivo legible y (opcional) un código de máquina.
type Error struct {
	Kind   Kind
	Reason string
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Is permite errors.Is(err, apperr.ErrConflict) sin comparar el motivo.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Reason == "" && t.Code == "" && t.Kind == e.Kind
}

var (
	ErrForbidden        = &Error{Kind: KindForbidden}
	ErrConflict         = &Error{Kind: KindConflict}
	ErrCapabilityDenied = &Error{Kind: KindCapabilityDenied}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrValidation       = &Error{Kind: KindValidation}
)

func Forbidden(reason string) error { return &Error{Kind: KindForbidden, Reason: reason} }
func Conflict(reason string) error  { return &Error{Kind: KindConflict, Reason: reason} }
func NotFound(reason string) error  { return &Error{Kind: KindNotFound, Reason: reason} }
func Validation(reason string) error {
	return &Error{Kind: KindValidation, Reason: reason}
}

// CapabilityDenied incluye el código que el caller usa para decidir qué mostrar.
func CapabilityDenied(code, reason string) error {
	return &Error{Kind: KindCapabilityDenied, Code: code, Reason: reason}
}

// Wrap conserva la causa original (útil para logs) bajo un kind del dominio.
func Wrap(err error, kind Kind, reason string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// KindOf devuelve el kind del primer *Error de la cadena, o KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As devuelve el *Error de la cadena si existe.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindCapabilityDenied:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
