package prescription

import (
	"math"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestParseExtractedDate(t *testing.T) {
	tests := []struct {
		input string
		want  string // yyyy-mm-dd, empty for nil
	}{
		{"2024-03-10", "2024-03-10"},
		{"10/03/2024", "2024-03-10"},
		{"March 10, 2024", "2024-03-10"},
		{"10 Mar 2024", "2024-03-10"},
		{"Not mentioned", ""},
		{"not clearly visible", ""},
		{"Not specified", ""},
		{"", ""},
		{"sometime last week", ""},
	}
	for _, tt := range tests {
		got := ParseExtractedDate(tt.input, time.UTC)
		if tt.want == "" {
			if got != nil {
				t.Errorf("ParseExtractedDate(%q) = %v, want nil", tt.input, got)
			}
			continue
		}
		if got == nil {
			t.Errorf("ParseExtractedDate(%q) = nil, want %s", tt.input, tt.want)
			continue
		}
		if got.Format("2006-01-02") != tt.want {
			t.Errorf("ParseExtractedDate(%q) = %s, want %s", tt.input, got.Format("2006-01-02"), tt.want)
		}
	}
}

func TestExtractionConfidence(t *testing.T) {
	full := &CreateRequest{
		DoctorName:       strPtr("Dr. Rao"),
		Diagnosis:        strPtr("Hypertension"),
		HospitalClinic:   strPtr("City Clinic"),
		ConsultationDate: "2024-03-10",
		PatientName:      strPtr("A. Kumar"),
		Medicines:        []MedicineInput{{Name: "Amlodipine"}},
	}
	if got := ExtractionConfidence(full); got != 1 {
		t.Errorf("expected full confidence 1, got %v", got)
	}

	partial := &CreateRequest{
		DoctorName: strPtr("Dr. Rao"),
		Medicines:  []MedicineInput{{Name: "Amlodipine"}},
	}
	if got := ExtractionConfidence(partial); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("expected 0.5, got %v", got)
	}

	empty := &CreateRequest{DoctorName: strPtr("")}
	if got := ExtractionConfidence(empty); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
}

func TestMedicine_ApplyDefaults(t *testing.T) {
	m := &Medicine{Name: "Paracetamol"}
	m.ApplyDefaults()
	if m.PriorityLevel != PriorityMedium {
		t.Errorf("expected medium priority, got %s", m.PriorityLevel)
	}
	if m.AdministrationRoute != RouteOral {
		t.Errorf("expected oral route, got %s", m.AdministrationRoute)
	}

	m = &Medicine{PriorityLevel: PriorityCritical, AdministrationRoute: RouteTopical}
	m.ApplyDefaults()
	if !m.IsCritical() || m.AdministrationRoute != RouteTopical {
		t.Errorf("defaults must not override set values: %+v", m)
	}
}

func TestEnumValidation(t *testing.T) {
	if PriorityLevel("urgent").Valid() {
		t.Error("unexpected valid priority 'urgent'")
	}
	if !AdministrationRoute("sublingual").Valid() {
		t.Error("expected sublingual to be valid")
	}
	if AdministrationRoute("rectal").Valid() {
		t.Error("unexpected valid route 'rectal'")
	}
	if !ProcessingStatus("failed").Valid() {
		t.Error("expected failed to be valid")
	}
}

func TestNormalizePriority(t *testing.T) {
	tests := []struct {
		in     string
		want   PriorityLevel
		wantOK bool
	}{
		{"", PriorityMedium, true},
		{"low", PriorityLow, true},
		{"High", PriorityHigh, true},
		{"  Critical\n", PriorityCritical, true},
		{"Not mentioned", PriorityMedium, false},
		{"urgent", PriorityMedium, false},
	}
	for _, tt := range tests {
		got, ok := NormalizePriority(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("NormalizePriority(%q) = %s, %v; want %s, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestNormalizeRoute(t *testing.T) {
	tests := []struct {
		in     string
		want   AdministrationRoute
		wantOK bool
	}{
		{"", RouteOral, true},
		{"Oral", RouteOral, true},
		{"TOPICAL", RouteTopical, true},
		{" Sublingual ", RouteSublingual, true},
		{"Not clearly visible", RouteOral, false},
		{"rectal", RouteOral, false},
	}
	for _, tt := range tests {
		got, ok := NormalizeRoute(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("NormalizeRoute(%q) = %s, %v; want %s, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
