package billing

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

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

func (h *Handler) RegisterRoutes(api *echo.Group) {
	authed := api.Group("", auth.RequireAuth())
	authed.GET("/bills/:id", h.GetBill)
	authed.GET("/appointments/:id/record", h.GetRecord)

	patients := api.Group("", auth.RequireRole(string(identity.RolePatient)))
	patients.GET("/bills", h.ListBills)

	staff := api.Group("", auth.RequireRole(string(identity.RoleDoctor)))
	staff.POST("/bills", h.GenerateBill)

	admin := api.Group("", auth.RequireRole(string(identity.RoleAdmin)))
	admin.POST("/bills/:id/pay", h.MarkPaid)
}

func parseID(c echo.Context, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperror.Validationf("invalid %s id", what)
	}
	return id, nil
}

// generateRequest accepts amounts as JSON numbers or strings. Any
// total_amount sent by the client is ignored.
type generateRequest struct {
	AppointmentID   string           `json:"appointment_id"`
	Diagnosis       string           `json:"diagnosis"`
	Treatment       string           `json:"treatment"`
	Prescription    string           `json:"prescription"`
	NextVisit       *string          `json:"next_visit"`
	ConsultationFee *decimal.Decimal `json:"consultation_fee"`
	MedicationCost  *decimal.Decimal `json:"medication_cost"`
	TestCost        *decimal.Decimal `json:"test_cost"`
	TestsCost       *decimal.Decimal `json:"tests_cost"`
	OtherCharges    *decimal.Decimal `json:"other_charges"`
}

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

func (h *Handler) GenerateBill(c echo.Context) error {
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return apperror.Validationf("invalid request body")
	}
	apptID, err := uuid.Parse(req.AppointmentID)
	if err != nil {
		return apperror.Validationf("invalid appointment_id")
	}
	testCost := req.TestCost
	if testCost == nil {
		testCost = req.TestsCost
	}
	res, err := h.svc.GenerateBill(c.Request().Context(), GenerateInput{
		AppointmentID:   apptID,
		Diagnosis:       req.Diagnosis,
		Treatment:       req.Treatment,
		Prescription:    req.Prescription,
		NextVisit:       req.NextVisit,
		ConsultationFee: req.ConsultationFee,
		MedicationCost:  orZero(req.MedicationCost),
		TestCost:        orZero(testCost),
		OtherCharges:    orZero(req.OtherCharges),
	})
	if err != nil {
		return apperror.AsInvalid(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":      "Bill generated successfully",
		"bill_id":      res.Bill.ID,
		"total_amount": res.Bill.TotalAmount.StringFixed(2),
	})
}

func (h *Handler) GetBill(c echo.Context) error {
	ctx := c.Request().Context()
	userID, role, err := identity.Caller(ctx)
	if err != nil {
		return err
	}
	id, err := parseID(c, "bill")
	if err != nil {
		return err
	}
	b, err := h.svc.GetBillForCaller(ctx, userID, role, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) ListBills(c echo.Context) error {
	ctx := c.Request().Context()
	userID, _, err := identity.Caller(ctx)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	bills, total, err := h.svc.ListBillsForCaller(ctx, userID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return pagination.Write(c, http.StatusOK, bills, total, pg)
}

func (h *Handler) MarkPaid(c echo.Context) error {
	id, err := parseID(c, "bill")
	if err != nil {
		return err
	}
	b, err := h.svc.MarkPaid(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Payment recorded",
		"bill":    b,
	})
}

func (h *Handler) GetRecord(c echo.Context) error {
	ctx := c.Request().Context()
	userID, role, err := identity.Caller(ctx)
	if err != nil {
		return err
	}
	id, err := parseID(c, "appointment")
	if err != nil {
		return err
	}
	m, err := h.svc.GetRecordForCaller(ctx, userID, role, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}
