package db

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	HospitalIDKey  contextKey = "hospital_id"
	HospitalHeader            = "X-Hospital-ID"
)

// HospitalMiddleware resolves the hospital scope of the request. Requests
// without one pass through unscoped; handlers that need a scope reject them.
func HospitalMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := extractHospitalID(c)
			if raw == "" {
				return next(c)
			}

			id, err := uuid.Parse(raw)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid hospital identifier")
			}

			ctx := WithHospital(c.Request().Context(), id)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("hospital_id", id)

			return next(c)
		}
	}
}

func extractHospitalID(c echo.Context) string {
	// 1. JWT claim (set by auth middleware)
	if hid, ok := c.Get("jwt_hospital_id").(string); ok && hid != "" {
		return hid
	}

	// 2. X-Hospital-ID header
	if hid := c.Request().Header.Get(HospitalHeader); hid != "" {
		return hid
	}

	// 3. Query parameter
	return c.QueryParam("hospital_id")
}

func WithHospital(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, HospitalIDKey, id)
}

// HospitalFromContext returns the request's hospital scope.
func HospitalFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(HospitalIDKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}
