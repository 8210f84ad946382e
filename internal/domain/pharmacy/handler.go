package pharmacy

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/opdcare/opd/internal/platform/auth"
	"github.com/opdcare/opd/pkg/pagination"
	"github.com/opdcare/opd/pkg/response"
)

const (
	defaultExpiringDays = 30
	maxExpiringDays     = 3650
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/pharmacy")

	read := g.Group("", auth.RequireRole(auth.RolePharmacist, auth.RoleDoctor, auth.RoleNurse))
	read.GET("/hospital/:hospitalId", h.List)
	read.GET("/hospital/:hospitalId/low-stock", h.LowStock)
	read.GET("/hospital/:hospitalId/expiring", h.Expiring)
	read.GET("/hospital/:hospitalId/stats", h.Stats)
	read.GET("/:id", h.Get)

	write := g.Group("", auth.RequireRole(auth.RolePharmacist))
	write.POST("", h.Create)
	write.PUT("/:id", h.Update)
	write.PATCH("/:id/quantity", h.AdjustQuantity)
	write.DELETE("/:id", h.Delete)
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
	item, err := h.svc.AddItem(c.Request().Context(), p, &req)
	if err != nil {
		return toHTTP(err)
	}
	return response.Created(c, "Inventory item added successfully", item)
}

func (h *Handler) Get(c echo.Context) error {
	p, id, err := principalAndID(c)
	if err != nil {
		return err
	}
	item, err := h.svc.Get(c.Request().Context(), p, id)
	if err != nil {
		return toHTTP(err)
	}
	return response.OK(c, "Inventory item retrieved successfully", item)
}

func (h *Handler) Update(c echo.Context) error {
	p, id, err := principalAndID(c)
	if err != nil {
		return err
	}
	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	item, err := h.svc.Update(c.Request().Context(), p, id, &req)
	if err != nil {
		return toHTTP(err)
	}
	return response.OK(c, "Inventory item updated successfully", item)
}

func (h *Handler) AdjustQuantity(c echo.Context) error {
	p, id, err := principalAndID(c)
	if err != nil {
		return err
	}
	var req AdjustRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	item, err := h.svc.AdjustQuantity(c.Request().Context(), p, id, *req.QuantityChange)
	if err != nil {
		return toHTTP(err)
	}
	return response.OK(c, "Inventory quantity updated successfully", item)
}

func (h *Handler) Delete(c echo.Context) error {
	p, id, err := principalAndID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Deactivate(c.Request().Context(), p, id); err != nil {
		return toHTTP(err)
	}
	return response.OK(c, "Inventory item deleted successfully", nil)
}

func (h *Handler) List(c echo.Context) error {
	p, hospitalID, err := principalAndHospital(c)
	if err != nil {
		return err
	}
	f := Filter{
		Category: c.QueryParam("category"),
		LowStock: c.QueryParam("lowStock") == "true",
		Expired:  c.QueryParam("expired") == "true",
		Search:   c.QueryParam("search"),
	}
	if raw := c.QueryParam("isActive"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid isActive filter")
		}
		f.IsActive = &active
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), p, hospitalID, f, pg)
	if err != nil {
		return toHTTP(err)
	}
	return listResponse(c, items, pg.Meta(total))
}

func (h *Handler) LowStock(c echo.Context) error {
	p, hospitalID, err := principalAndHospital(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.LowStock(c.Request().Context(), p, hospitalID, pg)
	if err != nil {
		return toHTTP(err)
	}
	return listResponse(c, items, pg.Meta(total))
}

func (h *Handler) Expiring(c echo.Context) error {
	p, hospitalID, err := principalAndHospital(c)
	if err != nil {
		return err
	}
	days := defaultExpiringDays
	if raw := c.QueryParam("days"); raw != "" {
		if days, err = strconv.Atoi(raw); err != nil || days < 0 || days > maxExpiringDays {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid days")
		}
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.Expiring(c.Request().Context(), p, hospitalID, days, pg)
	if err != nil {
		return toHTTP(err)
	}
	return listResponse(c, items, pg.Meta(total))
}

func (h *Handler) Stats(c echo.Context) error {
	p, hospitalID, err := principalAndHospital(c)
	if err != nil {
		return err
	}
	st, err := h.svc.Stats(c.Request().Context(), p, hospitalID)
	if err != nil {
		return toHTTP(err)
	}
	return response.OK(c, "Inventory stats retrieved successfully", st)
}

func principalAndID(c echo.Context) (auth.Principal, uuid.UUID, error) {
	p, err := auth.FromEcho(c)
	if err != nil {
		return p, uuid.Nil, err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return p, uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid inventory item id")
	}
	return p, id, nil
}

func principalAndHospital(c echo.Context) (auth.Principal, uuid.UUID, error) {
	p, err := auth.FromEcho(c)
	if err != nil {
		return p, uuid.Nil, err
	}
	id, err := uuid.Parse(c.Param("hospitalId"))
	if err != nil {
		return p, uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid hospital id")
	}
	return p, id, nil
}

func listResponse(c echo.Context, items []*Item, meta pagination.Meta) error {
	if items == nil {
		items = []*Item{}
	}
	return response.OK(c, "", map[string]interface{}{
		"inventory":  items,
		"pagination": meta,
	})
}

func toHTTP(err error) error {
	if he := auth.ScopeError(err); he != nil {
		return he
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Inventory item not found")
	case errors.Is(err, ErrDuplicateBatch):
		return echo.NewHTTPError(http.StatusConflict,
			"Item with same name and batch number already exists. Please update the existing item instead.")
	case errors.Is(err, ErrInsufficientStock):
		return echo.NewHTTPError(http.StatusBadRequest, "Insufficient stock. Cannot reduce quantity below zero.")
	}
	return err
}
