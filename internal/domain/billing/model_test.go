package billing

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestCharges_TotalIsExact(t *testing.T) {
	c := Charges{
		ConsultationFee: decimal.RequireFromString("100.00"),
		TestCost:        decimal.RequireFromString("25.50"),
	}
	if got := c.Total(); !got.Equal(decimal.RequireFromString("125.50")) {
		t.Errorf("Total() = %s, want 125.50", got)
	}

	c = Charges{
		ConsultationFee: decimal.RequireFromString("0.10"),
		MedicationCost:  decimal.RequireFromString("0.20"),
	}
	if got := c.Total().StringFixed(2); got != "0.30" {
		t.Errorf("Total() = %s, want 0.30", got)
	}
}

func TestCharges_Validate(t *testing.T) {
	tests := []struct {
		name    string
		charges Charges
		wantErr bool
	}{
		{"zero", Charges{}, false},
		{"cents", Charges{ConsultationFee: decimal.RequireFromString("99.99")}, false},
		{"negative", Charges{OtherCharges: decimal.RequireFromString("-1")}, true},
		{"sub-cent", Charges{TestCost: decimal.RequireFromString("1.005")}, true},
		{"at the cap", Charges{MedicationCost: decimal.RequireFromString("99999999.99")}, false},
		{"item over the cap", Charges{MedicationCost: decimal.RequireFromString("100000000")}, true},
		{"total over the cap", Charges{
			ConsultationFee: decimal.RequireFromString("30000000"),
			MedicationCost:  decimal.RequireFromString("30000000"),
			TestCost:        decimal.RequireFromString("30000000"),
			OtherCharges:    decimal.RequireFromString("10000000"),
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.charges.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBill_Recompute(t *testing.T) {
	b := &Bill{
		Charges: Charges{
			ConsultationFee: decimal.NewFromInt(100),
			MedicationCost:  decimal.RequireFromString("12.25"),
		},
		TotalAmount: decimal.NewFromInt(1),
	}
	b.Recompute()
	if !b.TotalAmount.Equal(decimal.RequireFromString("112.25")) {
		t.Errorf("TotalAmount = %s", b.TotalAmount)
	}
}

func TestBill_JSONFlattensCharges(t *testing.T) {
	b := Bill{Charges: Charges{ConsultationFee: decimal.NewFromInt(5)}}
	b.Recompute()
	data, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"consultation_fee", "total_amount", "payment_status"} {
		if _, ok := m[key]; !ok {
			t.Errorf("expected %s in JSON", key)
		}
	}
	if _, ok := m["PatientEmail"]; ok {
		t.Error("contact details must not be serialised")
	}
}

func TestParseNextVisit(t *testing.T) {
	if v, err := ParseNextVisit(nil); v != nil || err != nil {
		t.Errorf("nil input: %v, %v", v, err)
	}
	empty := ""
	if v, err := ParseNextVisit(&empty); v != nil || err != nil {
		t.Errorf("empty input: %v, %v", v, err)
	}
	good := "2025-04-01"
	if v, err := ParseNextVisit(&good); err != nil || *v != good {
		t.Errorf("valid input: %v, %v", v, err)
	}
	bad := "01/04/2025"
	if _, err := ParseNextVisit(&bad); err == nil {
		t.Error("expected error for bad date")
	}
}

func TestPaymentStatus_Valid(t *testing.T) {
	for _, s := range []PaymentStatus{PaymentPending, PaymentPaid, PaymentOverdue} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if PaymentStatus("refunded").Valid() {
		t.Error("unknown status should be invalid")
	}
}
