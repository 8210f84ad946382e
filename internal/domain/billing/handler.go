package billing

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/opdcare/opd/internal/platform/auth"
	"github.com/opdcare/opd/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/medication-history/billing", h.Create, auth.RequireRole(auth.RoleDoctor, auth.RolePharmacist))
}

func (h *Handler) Create(c echo.Context) error {
	p, err := auth.FromEcho(c)
	if err != nil {
		return err
	}
	var req Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	res, err := h.svc.CreatePrescriptionWithBilling(c.Request().Context(), p, &req)
	if err != nil {
		var shortErr *ShortageError
		if errors.As(err, &shortErr) {
			return response.Shortage(c, "Insufficient inventory for some medications", shortErr.Items)
		}
		return toHTTP(err)
	}
	return response.Created(c, "Medication history added and billing completed successfully", res)
}

func toHTTP(err error) error {
	if he := auth.ScopeError(err); he != nil {
		return he
	}

	var medErr *MedicationError
	if errors.As(err, &medErr) {
		switch medErr.Kind {
		case ErrNoTimingSelected:
			return echo.NewHTTPError(http.StatusBadRequest, "No timing selected for medication: "+medErr.Name())
		case ErrInvalidQuantity:
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid quantity calculated for: "+medErr.Name())
		default:
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid medication data for: "+medErr.Name())
		}
	}
	var raceErr *ConcurrentStockChangeError
	if errors.As(err, &raceErr) {
		return echo.NewHTTPError(http.StatusConflict, "Stock changed during processing for: "+raceErr.Medicine)
	}

	switch {
	case errors.Is(err, ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusBadRequest, "Patient not found")
	case errors.Is(err, ErrVisitNotFound):
		return echo.NewHTTPError(http.StatusBadRequest, "Visit not found")
	case errors.Is(err, ErrNoMedications):
		return echo.NewHTTPError(http.StatusBadRequest, "At least one medication is required")
	case errors.Is(err, ErrInvalidTotalAmount):
		return echo.NewHTTPError(http.StatusInternalServerError, "Invalid total amount calculated").SetInternal(err)
	case errors.Is(err, ErrCommitTimeout):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Billing transaction timed out").SetInternal(err)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "Failed to add medication history with billing").SetInternal(err)
}
