package prescription

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type ProcessingStatus string

const (
	ProcessingPending    ProcessingStatus = "pending"
	ProcessingProcessing ProcessingStatus = "processing"
	ProcessingCompleted  ProcessingStatus = "completed"
	ProcessingFailed     ProcessingStatus = "failed"
)

func (s ProcessingStatus) Valid() bool {
	switch s {
	case ProcessingPending, ProcessingProcessing, ProcessingCompleted, ProcessingFailed:
		return true
	}
	return false
}

// PriorityLevel ranks how strictly a medicine's timing must be respected.
type PriorityLevel string

const (
	PriorityCritical PriorityLevel = "critical"
	PriorityHigh     PriorityLevel = "high"
	PriorityMedium   PriorityLevel = "medium"
	PriorityLow      PriorityLevel = "low"
)

func (p PriorityLevel) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

type AdministrationRoute string

const (
	RouteOral       AdministrationRoute = "oral"
	RouteTopical    AdministrationRoute = "topical"
	RouteInjection  AdministrationRoute = "injection"
	RouteInhalation AdministrationRoute = "inhalation"
	RouteSublingual AdministrationRoute = "sublingual"
)

func (r AdministrationRoute) Valid() bool {
	switch r {
	case RouteOral, RouteTopical, RouteInjection, RouteInhalation, RouteSublingual:
		return true
	}
	return false
}

// Prescription maps to the prescription table. Extracted fields are
// optional because the upstream extractor may not find them.
type Prescription struct {
	ID                   uuid.UUID        `db:"id" json:"id"`
	UserID               string           `db:"user_id" json:"user_id"`
	FileName             string           `db:"file_name" json:"file_name"`
	DoctorName           *string          `db:"doctor_name" json:"doctor_name,omitempty"`
	HospitalClinic       *string          `db:"hospital_clinic" json:"hospital_clinic,omitempty"`
	ConsultationDate     *time.Time       `db:"consultation_date" json:"consultation_date,omitempty"`
	PatientName          *string          `db:"patient_name" json:"patient_name,omitempty"`
	Diagnosis            *string          `db:"diagnosis" json:"diagnosis,omitempty"`
	FollowUpDate         *time.Time       `db:"follow_up_date" json:"follow_up_date,omitempty"`
	SpecialInstructions  *string          `db:"special_instructions" json:"special_instructions,omitempty"`
	PrescriptionNumber   *string          `db:"prescription_number" json:"prescription_number,omitempty"`
	ProcessingStatus     ProcessingStatus `db:"processing_status" json:"processing_status"`
	ExtractionConfidence *float64         `db:"extraction_confidence" json:"extraction_confidence,omitempty"`
	PriorityLevel        PriorityLevel    `db:"priority_level" json:"priority_level"`
	CreatedAt            time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time        `db:"updated_at" json:"updated_at"`

	Medicines []*Medicine `db:"-" json:"medicines,omitempty"`
}

// Medicine maps to the medicine table.
type Medicine struct {
	ID                  uuid.UUID           `db:"id" json:"id"`
	PrescriptionID      uuid.UUID           `db:"prescription_id" json:"prescription_id"`
	Name                string              `db:"name" json:"name"`
	GenericName         *string             `db:"generic_name" json:"generic_name,omitempty"`
	Dosage              string              `db:"dosage" json:"dosage"`
	Frequency           string              `db:"frequency" json:"frequency"`
	Duration            string              `db:"duration" json:"duration"`
	Instructions        string              `db:"instructions" json:"instructions"`
	Quantity            string              `db:"quantity" json:"quantity"`
	TimingInstructions  *string             `db:"timing_instructions" json:"timing_instructions,omitempty"`
	PriorityLevel       PriorityLevel       `db:"priority_level" json:"priority_level"`
	AdministrationRoute AdministrationRoute `db:"administration_route" json:"administration_route"`
	CreatedAt           time.Time           `db:"created_at" json:"created_at"`
}

// ApplyDefaults fills the medium priority and oral route when unset.
func (m *Medicine) ApplyDefaults() {
	if m.PriorityLevel == "" {
		m.PriorityLevel = PriorityMedium
	}
	if m.AdministrationRoute == "" {
		m.AdministrationRoute = RouteOral
	}
}

func (m *Medicine) IsCritical() bool {
	return m.PriorityLevel == PriorityCritical
}

// CreateRequest is the payload produced by the document extraction service.
// Dates arrive as free text and may hold placeholders.
type CreateRequest struct {
	FileName             string          `json:"file_name"`
	DoctorName           *string         `json:"doctor_name"`
	HospitalClinic       *string         `json:"hospital_clinic"`
	ConsultationDate     string          `json:"consultation_date"`
	PatientName          *string         `json:"patient_name"`
	Diagnosis            *string         `json:"diagnosis"`
	FollowUpDate         string          `json:"follow_up_date"`
	SpecialInstructions  *string         `json:"special_instructions"`
	PrescriptionNumber   *string         `json:"prescription_number"`
	ProcessingStatus     string          `json:"processing_status"`
	ExtractionConfidence *float64        `json:"extraction_confidence"`
	PriorityLevel        string          `json:"priority_level"`
	Medicines            []MedicineInput `json:"medicines"`
}

type MedicineInput struct {
	Name                string  `json:"name"`
	GenericName         *string `json:"generic_name"`
	Dosage              string  `json:"dosage"`
	Frequency           string  `json:"frequency"`
	Duration            string  `json:"duration"`
	Instructions        string  `json:"instructions"`
	Quantity            string  `json:"quantity"`
	TimingInstructions  *string `json:"timing_instructions"`
	PriorityLevel       string  `json:"priority_level"`
	AdministrationRoute string  `json:"administration_route"`
}

// MedicineUpdate carries the editable medicine fields. Nil leaves a field
// unchanged.
type MedicineUpdate struct {
	Name                *string `json:"name"`
	GenericName         *string `json:"generic_name"`
	Dosage              *string `json:"dosage"`
	Frequency           *string `json:"frequency"`
	Duration            *string `json:"duration"`
	Instructions        *string `json:"instructions"`
	Quantity            *string `json:"quantity"`
	TimingInstructions  *string `json:"timing_instructions"`
	PriorityLevel       *string `json:"priority_level"`
	AdministrationRoute *string `json:"administration_route"`
}

// Placeholders the extractor emits when a value is not present in the
// document.
var placeholders = map[string]bool{
	"not mentioned":       true,
	"not clearly visible": true,
	"not specified":       true,
}

func IsPlaceholder(s string) bool {
	return placeholders[strings.ToLower(strings.TrimSpace(s))]
}

// NormalizePriority folds case and whitespace. Empty text yields the medium
// default; placeholder or unknown text also yields medium with ok false.
func NormalizePriority(s string) (p PriorityLevel, ok bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PriorityMedium, true
	}
	if p = PriorityLevel(s); p.Valid() {
		return p, true
	}
	return PriorityMedium, false
}

// NormalizeRoute is NormalizePriority for routes, defaulting to oral.
func NormalizeRoute(s string) (r AdministrationRoute, ok bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return RouteOral, true
	}
	if r = AdministrationRoute(s); r.Valid() {
		return r, true
	}
	return RouteOral, false
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"02/01/2006",
	"02-01-2006",
	"2 January 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// ParseExtractedDate returns nil for empty, placeholder or unparseable text.
func ParseExtractedDate(s string, loc *time.Location) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" || IsPlaceholder(s) {
		return nil
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return &t
		}
	}
	return nil
}

// ExtractionConfidence scores completeness of the extracted document:
// doctor and diagnosis weigh 2, a non-empty medicine list 3, clinic, date
// and patient 1 each, out of 10.
func ExtractionConfidence(req *CreateRequest) float64 {
	score := 0
	if nonEmpty(req.DoctorName) {
		score += 2
	}
	if nonEmpty(req.Diagnosis) {
		score += 2
	}
	if len(req.Medicines) > 0 {
		score += 3
	}
	if nonEmpty(req.HospitalClinic) {
		score++
	}
	if req.ConsultationDate != "" {
		score++
	}
	if nonEmpty(req.PatientName) {
		score++
	}
	c := float64(score) / 10
	if c > 1 {
		c = 1
	}
	return c
}

func nonEmpty(s *string) bool {
	return s != nil && *s != ""
}
