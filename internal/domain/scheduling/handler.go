package scheduling

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/platform/apperror"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the appointment endpoints. The lifecycle mutations
// report an unknown appointment or doctor as 400.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/appointments", h.Book)

	authed := api.Group("", auth.RequireAuth())
	authed.GET("/appointments", h.List)
	authed.GET("/appointments/:id", h.Get)

	admin := api.Group("", auth.RequireRole(string(identity.RoleAdmin)))
	admin.POST("/appointments/:id/approve", h.Approve)
	admin.POST("/appointments/:id/reject", h.Reject)

	staff := api.Group("", auth.RequireRole(string(identity.RoleDoctor)))
	staff.POST("/appointments/:id/complete", h.Complete)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperror.Validationf("invalid appointment id")
	}
	return id, nil
}

type bookRequest struct {
	Email            string `json:"email"`
	Name             string `json:"name"`
	Phone            string `json:"phone"`
	Address          string `json:"address"`
	Department       string `json:"department"`
	Doctor           string `json:"doctor"`
	Date             string `json:"date"`
	Time             string `json:"time"`
	Symptoms         string `json:"symptoms"`
	EmergencyContact string `json:"emergencyContact"`
}

func (h *Handler) Book(c echo.Context) error {
	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return apperror.Validationf("invalid request body")
	}
	res, err := h.svc.Book(c.Request().Context(), BookingInput{
		Email:            req.Email,
		Name:             req.Name,
		Phone:            req.Phone,
		Address:          req.Address,
		EmergencyContact: req.EmergencyContact,
		Department:       req.Department,
		PreferredDoctor:  req.Doctor,
		Date:             req.Date,
		Time:             req.Time,
		Symptoms:         req.Symptoms,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":        "Appointment created successfully",
		"appointment_id": res.Appointment.ID,
		"status":         res.Appointment.Status,
	})
}

type approveRequest struct {
	AssignedDoctor string     `json:"assigned_doctor"`
	DoctorID       *uuid.UUID `json:"doctor_id"`
}

func (h *Handler) Approve(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req approveRequest
	if err := c.Bind(&req); err != nil {
		return apperror.Validationf("invalid request body")
	}
	a, err := h.svc.Approve(c.Request().Context(), id, DoctorSelector{DoctorID: req.DoctorID, Name: req.AssignedDoctor})
	if err != nil {
		return apperror.AsInvalid(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":     "Appointment approved successfully",
		"appointment": a,
	})
}

func (h *Handler) Reject(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Reject(c.Request().Context(), id)
	if err != nil {
		return apperror.AsInvalid(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":     "Appointment rejected",
		"appointment": a,
	})
}

func (h *Handler) Complete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Complete(c.Request().Context(), id)
	if err != nil {
		return apperror.AsInvalid(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":     "Appointment marked as completed",
		"appointment": a,
	})
}

func (h *Handler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	userID, role, err := identity.Caller(ctx)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.GetForCaller(ctx, userID, role, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	userID, role, err := identity.Caller(ctx)
	if err != nil {
		return err
	}
	var status *Status
	if raw := c.QueryParam("status"); raw != "" {
		st, err := ParseStatus(raw)
		if err != nil {
			return apperror.Validationf("%s", err.Error())
		}
		status = &st
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListForCaller(ctx, userID, role, status, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return pagination.Write(c, http.StatusOK, items, total, pg)
}
