package visit

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/opdcare/opd/internal/domain/patient"
	"github.com/opdcare/opd/internal/platform/auth"
	"github.com/opdcare/opd/pkg/pagination"
	"github.com/opdcare/opd/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/visits")

	read := g.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse, auth.RoleReceptionist, auth.RolePharmacist))
	read.GET("/patient/:patientId", h.ListByPatient)
	read.GET("/hospital/:hospitalId", h.ListByHospital)
	read.GET("/:id", h.Get)

	front := g.Group("", auth.RequireRole(auth.RoleReceptionist, auth.RoleNurse, auth.RoleDoctor))
	front.POST("", h.Create)
	front.PATCH("/:id/status", h.UpdateStatus)

	g.POST("/:id/pre-consultation", h.PreConsultation, auth.RequireRole(auth.RoleNurse, auth.RoleDoctor))
	g.POST("/:id/consultation", h.Consultation, auth.RequireRole(auth.RoleDoctor))
	g.POST("/:id/cancel", h.Cancel, auth.RequireRole(auth.RoleDoctor, auth.RoleReceptionist))
}

func (h *Handler) Create(c echo.Context) error {
	p, err := auth.FromEcho(c)
	if err != nil {
		return err
	}
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v, err := h.svc.Create(c.Request().Context(), p, &req)
	if err != nil {
		return toHTTP(err)
	}
	return response.Created(c, "Visit created successfully", v)
}

func (h *Handler) Get(c echo.Context) error {
	p, err := auth.FromEcho(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid visit id")
	}
	v, err := h.svc.Get(c.Request().Context(), p, id)
	if err != nil {
		return toHTTP(err)
	}
	return response.OK(c, "Visit retrieved successfully", v)
}

func (h *Handler) ListByPatient(c echo.Context) error {
	p, err := auth.FromEcho(c)
	if err != nil {
		return err
	}
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	pg := pagination.FromContext(c)
	visits, total, err := h.svc.ListByPatient(c.Request().Context(), p, patientID, pg)
	if err != nil {
		return toHTTP(err)
	}
	return listResponse(c, visits, pg.Meta(total))
}

func (h *Handler) ListByHospital(c echo.Context) error {
	p, err := auth.FromEcho(c)
	if err != nil {
		return err
	}
	hospitalID, err := uuid.Parse(c.Param("hospitalId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid hospital id")
	}

	f := Filter{
		Status:   c.QueryParam("status"),
		DoctorID: c.QueryParam("doctorId"),
		NurseID:  c.QueryParam("nurseId"),
	}
	if f.Status != "" && !IsValidStatus(f.Status) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid status filter")
	}
	if f.From, err = parseTime(c.QueryParam("startDate")); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid startDate")
	}
	if f.To, err = parseTime(c.QueryParam("endDate")); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid endDate")
	}

	pg := pagination.FromContext(c)
	visits, total, err := h.svc.ListByHospital(c.Request().Context(), p, hospitalID, f, pg)
	if err != nil {
		return toHTTP(err)
	}
	return listResponse(c, visits, pg.Meta(total))
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	p, id, err := principalAndID(c)
	if err != nil {
		return err
	}
	var req StatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v, err := h.svc.UpdateStatus(c.Request().Context(), p, id, req.Status)
	if err != nil {
		return toHTTP(err)
	}
	return response.OK(c, "Visit status updated successfully", v)
}

func (h *Handler) PreConsultation(c echo.Context) error {
	p, id, err := principalAndID(c)
	if err != nil {
		return err
	}
	var pre PreConsultation
	if err := c.Bind(&pre); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := pre.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v, err := h.svc.RecordPreConsultation(c.Request().Context(), p, id, pre)
	if err != nil {
		return toHTTP(err)
	}
	return response.OK(c, "Pre-consultation updated successfully", v)
}

func (h *Handler) Consultation(c echo.Context) error {
	p, id, err := principalAndID(c)
	if err != nil {
		return err
	}
	var consult Consultation
	if err := c.Bind(&consult); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := consult.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v, err := h.svc.RecordConsultation(c.Request().Context(), p, id, consult)
	if err != nil {
		return toHTTP(err)
	}
	return response.OK(c, "Consultation updated successfully", v)
}

func (h *Handler) Cancel(c echo.Context) error {
	p, id, err := principalAndID(c)
	if err != nil {
		return err
	}
	var req CancelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v, err := h.svc.Cancel(c.Request().Context(), p, id, req.Reason)
	if err != nil {
		return toHTTP(err)
	}
	return response.OK(c, "Visit cancelled successfully", v)
}

func principalAndID(c echo.Context) (auth.Principal, uuid.UUID, error) {
	p, err := auth.FromEcho(c)
	if err != nil {
		return p, uuid.Nil, err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return p, uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid visit id")
	}
	return p, id, nil
}

func listResponse(c echo.Context, visits []*Visit, meta pagination.Meta) error {
	if visits == nil {
		visits = []*Visit{}
	}
	return response.OK(c, "", map[string]interface{}{
		"visits":     visits,
		"pagination": meta,
	})
}

// parseTime accepts RFC 3339 timestamps and plain dates.
func parseTime(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		if t, err = time.Parse(time.DateOnly, raw); err != nil {
			return nil, err
		}
	}
	return &t, nil
}

func toHTTP(err error) error {
	if he := auth.ScopeError(err); he != nil {
		return he
	}
	var te *TransitionError
	switch {
	case errors.As(err, &te):
		return echo.NewHTTPError(http.StatusBadRequest, te.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Visit not found")
	case errors.Is(err, patient.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
	case errors.Is(err, ErrStatusConflict):
		return echo.NewHTTPError(http.StatusConflict, "Visit was updated by someone else, reload and retry")
	}
	return err
}
