package patient

import (
	"errors"
	"net/http"

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
	g := api.Group("/patients")

	read := g.Group("", auth.RequireRole(auth.RoleReceptionist, auth.RoleNurse, auth.RoleDoctor, auth.RolePharmacist))
	read.GET("", h.Search)
	read.GET("/hospital/:hospitalId", h.Search)
	read.GET("/:id", h.Get)

	write := g.Group("", auth.RequireRole(auth.RoleReceptionist, auth.RoleNurse))
	write.POST("", h.Create)
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
	pt, err := h.svc.Register(c.Request().Context(), p, &req)
	if err != nil {
		return toHTTP(err)
	}
	return response.Created(c, "Patient registered successfully", pt)
}

func (h *Handler) Get(c echo.Context) error {
	p, err := auth.FromEcho(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	pt, err := h.svc.Get(c.Request().Context(), p, id)
	if err != nil {
		return toHTTP(err)
	}
	return response.OK(c, "", pt)
}

// Search serves both /patients?q= and /patients/hospital/:hospitalId?q=.
func (h *Handler) Search(c echo.Context) error {
	p, err := auth.FromEcho(c)
	if err != nil {
		return err
	}
	var hospitalID uuid.UUID
	if raw := c.Param("hospitalId"); raw != "" {
		if hospitalID, err = uuid.Parse(raw); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid hospital id")
		}
	}
	pg := pagination.FromContext(c)
	patients, total, err := h.svc.Search(c.Request().Context(), p, hospitalID, c.QueryParam("q"), pg)
	if err != nil {
		return toHTTP(err)
	}
	if patients == nil {
		patients = []*Patient{}
	}
	return response.OK(c, "", map[string]interface{}{
		"patients":   patients,
		"pagination": pg.Meta(total),
	})
}

func toHTTP(err error) error {
	if he := auth.ScopeError(err); he != nil {
		return he
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
	case errors.Is(err, ErrDuplicatePhone):
		return echo.NewHTTPError(http.StatusConflict, ErrDuplicatePhone.Error())
	}
	return err
}
