package prescription

import (
	"errors"
	"net/http"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

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
	g := api.Group("/medication-history")

	read := g.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse, auth.RolePharmacist))
	read.GET("/patient/:patientId", h.ListByPatient)
	read.GET("/patient/:patientId/recent", h.Recent)
	read.GET("/visit/:visitId", h.ListByVisit)
	read.GET("/:id", h.Get)

	write := g.Group("", auth.RequireRole(auth.RoleDoctor))
	write.POST("", h.Create)
	write.PUT("/:id", h.Update)

	g.DELETE("/:id", h.Delete, auth.RequireRole(auth.RoleHospitalAdmin))
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
	rx, err := h.svc.Create(c.Request().Context(), p, &req)
	if err != nil {
		return toHTTP(err)
	}
	return response.Created(c, "Medication history added successfully", rx)
}

func (h *Handler) Get(c echo.Context) error {
	p, id, err := principalAndParam(c, "id")
	if err != nil {
		return err
	}
	rx, err := h.svc.Get(c.Request().Context(), p, id)
	if err != nil {
		return toHTTP(err)
	}
	return response.OK(c, "Medication history retrieved successfully", rx)
}

func (h *Handler) ListByPatient(c echo.Context) error {
	p, patientID, err := principalAndParam(c, "patientId")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	rxs, total, err := h.svc.ListByPatient(c.Request().Context(), p, patientID, pg)
	if err != nil {
		return toHTTP(err)
	}
	return response.OK(c, "", map[string]interface{}{
		"medicationHistory": nonNil(rxs),
		"pagination":        pg.Meta(total),
	})
}

func (h *Handler) Recent(c echo.Context) error {
	p, patientID, err := principalAndParam(c, "patientId")
	if err != nil {
		return err
	}
	limit := DefaultRecentLimit
	if raw := c.QueryParam("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 1 || limit > pagination.MaxLimit {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
	}
	rxs, err := h.svc.Recent(c.Request().Context(), p, patientID, limit)
	if err != nil {
		return toHTTP(err)
	}
	return response.OK(c, "", nonNil(rxs))
}

func (h *Handler) ListByVisit(c echo.Context) error {
	p, visitID, err := principalAndParam(c, "visitId")
	if err != nil {
		return err
	}
	rxs, err := h.svc.ListByVisit(c.Request().Context(), p, visitID)
	if err != nil {
		return toHTTP(err)
	}
	return response.OK(c, "", nonNil(rxs))
}

func (h *Handler) Update(c echo.Context) error {
	p, id, err := principalAndParam(c, "id")
	if err != nil {
		return err
	}
	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return toHTTP(err)
	}
	rx, err := h.svc.Update(c.Request().Context(), p, id, &req)
	if err != nil {
		return toHTTP(err)
	}
	return response.OK(c, "Medication history updated successfully", rx)
}

func (h *Handler) Delete(c echo.Context) error {
	p, id, err := principalAndParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), p, id); err != nil {
		return toHTTP(err)
	}
	return response.OK(c, "Medication history deleted successfully", nil)
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

func nonNil(rxs []*Prescription) []*Prescription {
	if rxs == nil {
		return []*Prescription{}
	}
	return rxs
}

func toHTTP(err error) error {
	if he := auth.ScopeError(err); he != nil {
		return he
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Medication history not found")
	case errors.Is(err, ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusBadRequest, "Patient not found")
	case errors.Is(err, ErrVisitNotFound):
		return echo.NewHTTPError(http.StatusBadRequest, "Visit not found")
	case errors.Is(err, ErrNoMedications):
		return echo.NewHTTPError(http.StatusBadRequest, "At least one medication is required")
	case errors.Is(err, ErrHasSale):
		return echo.NewHTTPError(http.StatusConflict, "Medication history has a pharmacy sale and cannot be deleted")
	}
	var verr validation.Errors
	if errors.As(err, &verr) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return err
}
