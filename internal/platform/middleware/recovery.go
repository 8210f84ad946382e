package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/opdcare/opd/internal/platform/db"
)

// Recovery turns a handler panic into a 500. Billing runs inside a
// transaction, so a panic there has already been rolled back by InTx before
// it reaches this point.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}

				evt := logger.Error().
					Str("request_id", requestID(c)).
					Str("method", c.Request().Method).
					Str("route", c.Path()).
					Str("stack", string(debug.Stack()))
				if id, ok := db.HospitalFromContext(c.Request().Context()); ok {
					evt = evt.Str("hospital_id", id.String())
				}
				if rerr, ok := r.(error); ok {
					evt = evt.Err(rerr)
				} else {
					evt = evt.Str("panic", fmt.Sprint(r))
				}
				evt.Msg("panic recovered")

				err = echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
			}()
			return next(c)
		}
	}
}

func requestID(c echo.Context) string {
	rid, _ := c.Get("request_id").(string)
	return rid
}
