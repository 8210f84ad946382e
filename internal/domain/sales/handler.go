package sales

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/opdcare/opd/internal/platform/auth"
	"github.com/opdcare/opd/internal/platform/validate"
	"github.com/opdcare/opd/pkg/pagination"
	"github.com/opdcare/opd/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the read-only ledger. There is no write route.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/pharmacy-sales", auth.RequireRole(auth.RolePharmacist, auth.RoleDoctor))
	g.GET("/hospital/:hospitalId", h.ListByHospital)
	g.GET("/patient/:patientId", h.ListByPatient)
	g.GET("/prescription/:prescriptionId", h.GetByPrescription)
	g.GET("/:id", h.Get)
}

func (h *Handler) Get(c echo.Context) error {
	p, id, err := principalAndParam(c, "id")
	if err != nil {
		return err
	}
	rec, err := h.svc.Get(c.Request().Context(), p, id)
	if err != nil {
		return toHTTP(err)
	}
	return response.OK(c, "Sales record retrieved successfully", rec)
}

func (h *Handler) GetByPrescription(c echo.Context) error {
	p, id, err := principalAndParam(c, "prescriptionId")
	if err != nil {
		return err
	}
	rec, err := h.svc.GetByPrescription(c.Request().Context(), p, id)
	if err != nil {
		return toHTTP(err)
	}
	return response.OK(c, "Sales record retrieved successfully", rec)
}

func (h *Handler) ListByHospital(c echo.Context) error {
	p, hospitalID, err := principalAndParam(c, "hospitalId")
	if err != nil {
		return err
	}
	var period Period
	if period.From, err = dateParam(c, "from", false); err != nil {
		return err
	}
	if period.To, err = dateParam(c, "to", true); err != nil {
		return err
	}
	if period.From != nil && period.To != nil && period.To.Before(*period.From) {
		return echo.NewHTTPError(http.StatusBadRequest, "to must not be before from")
	}

	pg := pagination.FromContext(c)
	recs, sum, err := h.svc.ListByHospital(c.Request().Context(), p, hospitalID, period, pg)
	if err != nil {
		return toHTTP(err)
	}
	return response.OK(c, "", map[string]interface{}{
		"sales":      nonNil(recs),
		"summary":    sum,
		"pagination": pg.Meta(sum.Count),
	})
}

func (h *Handler) ListByPatient(c echo.Context) error {
	p, patientID, err := principalAndParam(c, "patientId")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	recs, total, err := h.svc.ListByPatient(c.Request().Context(), p, patientID, pg)
	if err != nil {
		return toHTTP(err)
	}
	return response.OK(c, "", map[string]interface{}{
		"sales":      nonNil(recs),
		"pagination": pg.Meta(total),
	})
}

// dateParam parses a YYYY-MM-DD or RFC 3339 query value. A bare date used as
// an upper bound covers that whole day.
func dateParam(c echo.Context, name string, endOfDay bool) (*time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	t, err := validate.ParseDate(raw)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name+" date")
	}
	if endOfDay && len(raw) == len(time.DateOnly) {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func principalAndParam(c echo.Context, name string) (auth.Principal, uuid.UUID, error) {
	p, err := auth.FromEcho(c)
	if err != nil {
		return p, uuid.Nil, err
	}
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return p, uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return p, id, nil
}

func nonNil(recs []*Record) []*Record {
	if recs == nil {
		return []*Record{}
	}
	return recs
}

func toHTTP(err error) error {
	if he := auth.ScopeError(err); he != nil {
		return he
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Sales record not found")
	case errors.Is(err, ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
	}
	return err
}
