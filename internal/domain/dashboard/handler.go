package dashboard

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/dashboard")
	g.GET("/admin", h.Admin, auth.RequireRole(string(identity.RoleAdmin)))
	g.GET("/doctor", h.Doctor, auth.RequireRole(string(identity.RoleDoctor)))
	g.GET("/patient", h.Patient, auth.RequireRole(string(identity.RolePatient)))
}

func (h *Handler) Admin(c echo.Context) error {
	v, err := h.svc.Admin(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) Doctor(c echo.Context) error {
	ctx := c.Request().Context()
	userID, _, err := identity.Caller(ctx)
	if err != nil {
		return err
	}
	v, err := h.svc.Doctor(ctx, userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) Patient(c echo.Context) error {
	ctx := c.Request().Context()
	userID, _, err := identity.Caller(ctx)
	if err != nil {
		return err
	}
	v, err := h.svc.Patient(ctx, userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}
