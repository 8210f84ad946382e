// Package response writes the {success, message, data} JSON envelope every
// endpoint returns.
package response

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type Envelope struct {
	Success           bool        `json:"success"`
	Message           string      `json:"message,omitempty"`
	Data              interface{} `json:"data,omitempty"`
	InsufficientStock []string    `json:"insufficientStock,omitempty"`
}

func OK(c echo.Context, message string, data interface{}) error {
	return c.JSON(http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

func Created(c echo.Context, message string, data interface{}) error {
	return c.JSON(http.StatusCreated, Envelope{Success: true, Message: message, Data: data})
}

func Fail(c echo.Context, status int, message string) error {
	return c.JSON(status, Envelope{Success: false, Message: message})
}

// Shortage is the 400 body listing every medicine that could not be filled.
func Shortage(c echo.Context, message string, items []string) error {
	return c.JSON(http.StatusBadRequest, Envelope{Success: false, Message: message, InsufficientStock: items})
}

// ErrorHandler renders errors returned by handlers and middleware in the
// envelope. Non-HTTP errors become a generic 500 and are logged.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		message := "internal server error"

		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			switch m := he.Message.(type) {
			case string:
				message = m
			case error:
				message = m.Error()
			default:
				message = fmt.Sprint(m)
			}
		} else {
			logger.Error().Err(err).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("unhandled error")
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = Fail(c, status, message)
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("failed to write error response")
		}
	}
}
