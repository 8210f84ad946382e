package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return env
}

func TestCreated(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)

	if err := Created(c, "created", map[string]string{"id": "1"}); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	env := decode(t, rec)
	if !env.Success || env.Message != "created" {
		t.Errorf("unexpected envelope %+v", env)
	}
}

func TestShortage(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)

	items := []string{"Paracetamol - Required: 10, Available: 5"}
	if err := Shortage(c, "Insufficient inventory for some medications", items); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	env := decode(t, rec)
	if env.Success {
		t.Error("expected success=false")
	}
	if len(env.InsufficientStock) != 1 || env.InsufficientStock[0] != items[0] {
		t.Errorf("unexpected shortage list %v", env.InsufficientStock)
	}
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{"http error", echo.NewHTTPError(http.StatusNotFound, "Patient not found"), http.StatusNotFound, "Patient not found"},
		{"echo sentinel", echo.ErrMethodNotAllowed, http.StatusMethodNotAllowed, "Method Not Allowed"},
		{"plain error", errors.New("db exploded"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			ErrorHandler(zerolog.Nop())(tt.err, c)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			env := decode(t, rec)
			if env.Success || env.Message != tt.wantMessage {
				t.Errorf("unexpected envelope %+v", env)
			}
		})
	}
}
