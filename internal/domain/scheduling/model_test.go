package scheduling

import "testing"

func TestStatus_Transitions(t *testing.T) {
	all := []Status{StatusPending, StatusApproved, StatusCompleted, StatusCancelled}
	allowed := map[[2]Status]bool{
		{StatusPending, StatusApproved}:   true,
		{StatusPending, StatusCancelled}:  true,
		{StatusApproved, StatusCompleted}: true,
		{StatusApproved, StatusCancelled}: true,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]Status{from, to}]
			if got := from.CanTransitionTo(to); got != want {
				t.Errorf("%s -> %s: got %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestStatus_NothingReentersPending(t *testing.T) {
	for from := range transitions {
		if from.CanTransitionTo(StatusPending) {
			t.Errorf("%s must not transition back to pending", from)
		}
	}
}

func TestStatus_Terminal(t *testing.T) {
	if !StatusCompleted.Terminal() || !StatusCancelled.Terminal() {
		t.Error("completed and cancelled must be terminal")
	}
	if StatusPending.Terminal() || StatusApproved.Terminal() {
		t.Error("pending and approved must not be terminal")
	}
}

func TestParseStatus(t *testing.T) {
	if st, err := ParseStatus(" Approved "); err != nil || st != StatusApproved {
		t.Errorf("ParseStatus() = %q, %v", st, err)
	}
	if _, err := ParseStatus("booked"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestParseDate(t *testing.T) {
	if d, err := ParseDate("2025-03-01"); err != nil || d != "2025-03-01" {
		t.Errorf("ParseDate() = %q, %v", d, err)
	}
	for _, bad := range []string{"", "01/03/2025", "2025-02-30", "2025-3-1"} {
		if _, err := ParseDate(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"10:00 AM", "10:00"},
		{"1:30 pm", "13:30"},
		{"12:00 AM", "00:00"},
		{"9:05PM", "21:05"},
		{"14:05", "14:05"},
	}
	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseClock(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
	for _, bad := range []string{"", "25:00", "noon", "10"} {
		if _, err := ParseClock(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestAppointment_TimeLabel(t *testing.T) {
	a := &Appointment{Time: "13:30"}
	if a.TimeLabel() != "1:30 PM" {
		t.Errorf("unexpected label %q", a.TimeLabel())
	}
}
