package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

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

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Public
	api.POST("/auth/login", h.Login)
	api.POST("/auth/register", h.Register)
	api.GET("/doctors", h.ListDoctors)
	api.GET("/doctors/:id", h.GetDoctor)
	api.GET("/doctors/:id/ratings", h.ListDoctorRatings)
	api.GET("/departments", h.ListDepartments)

	authed := api.Group("", auth.RequireAuth())
	authed.POST("/auth/logout", h.Logout)

	patients := api.Group("", auth.RequireRole(string(RolePatient)))
	patients.POST("/doctors/:id/ratings", h.RateDoctor)

	staff := api.Group("", auth.RequireRole(string(RoleDoctor)))
	staff.PUT("/doctors/:id/availability", h.SetAvailability)
}

// Caller resolves the authenticated user on ctx.
func Caller(ctx context.Context) (uuid.UUID, Role, error) {
	raw := auth.UserIDFromContext(ctx)
	if raw == "" {
		return uuid.Nil, "", apperror.Unauthorized("authentication required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, "", apperror.Unauthorized("invalid token subject")
	}
	role, err := ParseRole(auth.RoleFromContext(ctx))
	if err != nil {
		return uuid.Nil, "", apperror.Unauthorized("invalid token role")
	}
	return id, role, nil
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperror.Validationf("invalid %s", name)
	}
	return id, nil
}

// -- Auth --

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return apperror.Validationf("invalid request body")
	}
	handle := req.Username
	if handle == "" {
		handle = req.Email
	}
	res, err := h.svc.Login(c.Request().Context(), handle, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

type registerRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	UserType  string `json:"userType"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`

	EmergencyContact string `json:"emergencyContact"`
	BloodGroup       string `json:"bloodGroup"`
	MedicalHistory   string `json:"medicalHistory"`

	Specialization  string           `json:"specialization"`
	LicenseNumber   string           `json:"licenseNumber"`
	Experience      json.RawMessage  `json:"experience"`
	Department      string           `json:"department"`
	ConsultationFee *decimal.Decimal `json:"consultationFee"`
	AvailableFrom   *string          `json:"availableFrom"`
	AvailableTo     *string          `json:"availableTo"`

	EmployeeID string `json:"employeeId"`
}

func (r *registerRequest) profile() (Profile, error) {
	userType := r.UserType
	if userType == "" {
		userType = string(RolePatient)
	}
	role, err := ParseRole(userType)
	if err != nil {
		return nil, apperror.Validationf("%s", err.Error())
	}
	switch role {
	case RoleDoctor:
		years, err := parseExperience(r.Experience)
		if err != nil {
			return nil, err
		}
		return DoctorProfile{
			Specialization:  r.Specialization,
			LicenseNumber:   r.LicenseNumber,
			ExperienceYears: years,
			Department:      r.Department,
			ConsultationFee: r.ConsultationFee,
			AvailableFrom:   r.AvailableFrom,
			AvailableTo:     r.AvailableTo,
		}, nil
	case RoleAdmin:
		return AdminProfile{EmployeeID: r.EmployeeID, Department: r.Department}, nil
	default:
		return PatientProfile{
			EmergencyContact: r.EmergencyContact,
			BloodGroup:       r.BloodGroup,
			MedicalHistory:   r.MedicalHistory,
		}, nil
	}
}

// parseExperience accepts years of experience as a JSON number or as a
// numeric string, which is what form-driven clients send.
func parseExperience(raw json.RawMessage) (int, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		text = string(raw)
	}
	text = strings.TrimSpace(text)
	if text == "" || text == "null" {
		return 0, apperror.Validationf("experience is required")
	}
	years, err := strconv.Atoi(text)
	if err != nil {
		return 0, apperror.Validationf("experience must be a whole number")
	}
	return years, nil
}

func (h *Handler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return apperror.Validationf("invalid request body")
	}
	profile, err := req.profile()
	if err != nil {
		return err
	}
	u, err := h.svc.Register(c.Request().Context(), RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Address:   req.Address,
		Profile:   profile,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message": "User registered successfully",
		"user_id": u.ID,
	})
}

func (h *Handler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.svc.Logout(ctx, auth.TokenIDFromContext(ctx), auth.TokenExpiryFromContext(ctx)); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Logged out"})
}

// -- Doctors --

func (h *Handler) ListDoctors(c echo.Context) error {
	var f DoctorFilter
	if raw := c.QueryParam("department"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return apperror.Validationf("invalid department")
		}
		f.DepartmentID = &id
	}
	switch c.QueryParam("available") {
	case "":
	case "true", "1":
		v := true
		f.Available = &v
	case "false", "0":
		v := false
		f.Available = &v
	default:
		return apperror.Validationf("available must be true or false")
	}

	pg := pagination.FromContext(c)
	doctors, total, err := h.svc.ListDoctors(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return pagination.Write(c, http.StatusOK, doctors, total, pg)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

type availabilityRequest struct {
	IsAvailable   *bool   `json:"is_available"`
	AvailableFrom *string `json:"available_from"`
	AvailableTo   *string `json:"available_to"`
}

func (h *Handler) SetAvailability(c echo.Context) error {
	ctx := c.Request().Context()
	actor, role, err := Caller(ctx)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req availabilityRequest
	if err := c.Bind(&req); err != nil {
		return apperror.Validationf("invalid request body")
	}
	if req.IsAvailable == nil {
		return apperror.Validationf("is_available is required")
	}
	d, err := h.svc.SetDoctorAvailability(ctx, actor, role, id, AvailabilityInput{
		Available: *req.IsAvailable,
		From:      req.AvailableFrom,
		To:        req.AvailableTo,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

// -- Ratings --

type ratingRequest struct {
	Rating  *int   `json:"rating"`
	Comment string `json:"comment"`
}

func (h *Handler) RateDoctor(c echo.Context) error {
	ctx := c.Request().Context()
	actor, _, err := Caller(ctx)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req ratingRequest
	if err := c.Bind(&req); err != nil {
		return apperror.Validationf("invalid request body")
	}
	r, err := h.svc.RateDoctor(ctx, actor, id, RatingInput{Rating: req.Rating, Comment: req.Comment})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) ListDoctorRatings(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	ratings, total, err := h.svc.ListDoctorRatings(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return pagination.Write(c, http.StatusOK, ratings, total, pg)
}

// -- Departments --

func (h *Handler) ListDepartments(c echo.Context) error {
	depts, err := h.svc.ListDepartments(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, depts)
}
