package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/opdcare/opd/internal/platform/db"
)

var (
	ErrNoHospital = errors.New("hospital scope is required")
	ErrForbidden  = errors.New("access to this hospital is not allowed")
)

// Authorize returns ErrForbidden unless p may act on hospital id.
func (p Principal) Authorize(id uuid.UUID) error {
	if !p.CanAccessHospital(id) {
		return ErrForbidden
	}
	return nil
}

// HospitalFor resolves the hospital a request acts on: the explicit id from the
// payload or path, else the request scope, else the principal's own hospital.
// The result is authorized against p.
func HospitalFor(ctx context.Context, p Principal, explicit uuid.UUID) (uuid.UUID, error) {
	id := explicit
	if id == uuid.Nil {
		if scoped, ok := db.HospitalFromContext(ctx); ok {
			id = scoped
		} else {
			id = p.HospitalID
		}
	}
	if id == uuid.Nil {
		return uuid.Nil, ErrNoHospital
	}
	if err := p.Authorize(id); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// ScopeError converts ErrNoHospital and ErrForbidden to HTTP errors. Other
// errors yield nil.
func ScopeError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrNoHospital):
		return echo.NewHTTPError(http.StatusBadRequest, "Hospital ID is required")
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "Access denied for this hospital")
	}
	return nil
}
