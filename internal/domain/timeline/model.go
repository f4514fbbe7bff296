package timeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/medintel/medintel/internal/domain/prescription"
)

// MealTiming ties an oral dose to a meal of the day.
type MealTiming string

const (
	MealBreakfast MealTiming = "breakfast"
	MealLunch     MealTiming = "lunch"
	MealDinner    MealTiming = "dinner"
	MealEvening   MealTiming = "evening"
)

func (m MealTiming) Valid() bool {
	switch m {
	case MealBreakfast, MealLunch, MealDinner, MealEvening:
		return true
	}
	return false
}

// DosingEvent maps to the medication_schedule table: one planned
// administration of one medicine. StartDate and EndDate are calendar days
// held at midnight UTC, the way pgx scans DATE columns.
type DosingEvent struct {
	ID             uuid.UUID   `db:"id" json:"id"`
	MedicineID     uuid.UUID   `db:"medicine_id" json:"medicine_id"`
	PrescriptionID uuid.UUID   `db:"prescription_id" json:"prescription_id"`
	UserID         string      `db:"user_id" json:"user_id"`
	ScheduledTime  time.Time   `db:"scheduled_time" json:"scheduled_time"`
	Frequency      string      `db:"frequency" json:"frequency"`
	StartDate      time.Time   `db:"start_date" json:"start_date"`
	EndDate        *time.Time  `db:"end_date" json:"end_date,omitempty"`
	IsActive       bool        `db:"is_active" json:"is_active"`
	MealTiming     *MealTiming `db:"meal_timing" json:"meal_timing,omitempty"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
}

type StatusType string

const (
	StatusUpcoming StatusType = "upcoming"
	StatusTaken    StatusType = "taken"
	StatusMissed   StatusType = "missed"
	StatusSkipped  StatusType = "skipped"
)

// Recordable reports whether a caller may write this status. Upcoming is
// only ever synthesized for display.
func (s StatusType) Recordable() bool {
	switch s {
	case StatusTaken, StatusMissed, StatusSkipped:
		return true
	}
	return false
}

// DosingStatus maps to the medication_status table.
type DosingStatus struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	ScheduleID     uuid.UUID  `db:"schedule_id" json:"schedule_id"`
	MedicineID     uuid.UUID  `db:"medicine_id" json:"medicine_id"`
	PrescriptionID uuid.UUID  `db:"prescription_id" json:"prescription_id"`
	UserID         string     `db:"user_id" json:"user_id"`
	ScheduledTime  time.Time  `db:"scheduled_time" json:"scheduled_time"`
	ActualTime     *time.Time `db:"actual_time" json:"actual_time,omitempty"`
	Status         StatusType `db:"status" json:"status"`
	Notes          *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

type ConflictType string

const (
	ConflictTiming           ConflictType = "timing"
	ConflictInteraction      ConflictType = "interaction"
	ConflictContraindication ConflictType = "contraindication"
)

type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
	SeverityCritical Severity = "critical"
)

// Rank orders severities from minor (1) to critical (4). Unknown values
// rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityMinor:
		return 1
	case SeverityModerate:
		return 2
	case SeveritySevere:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// Conflict is derived on every request and never stored.
type Conflict struct {
	ID                  uuid.UUID    `json:"id"`
	UserID              string       `json:"user_id"`
	MedicineID1         uuid.UUID    `json:"medicine_id_1"`
	MedicineID2         uuid.UUID    `json:"medicine_id_2"`
	Type                ConflictType `json:"conflict_type"`
	Severity            Severity     `json:"severity"`
	Description         string       `json:"description"`
	SuggestedResolution *string      `json:"suggested_resolution,omitempty"`
	IsResolved          bool         `json:"is_resolved"`
}

// Involves reports whether the conflict references the medicine.
func (c Conflict) Involves(medicineID uuid.UUID) bool {
	return c.MedicineID1 == medicineID || c.MedicineID2 == medicineID
}

type SlotMedication struct {
	Medicine     *prescription.Medicine     `json:"medicine"`
	Prescription *prescription.Prescription `json:"prescription"`
	Schedule     *DosingEvent               `json:"schedule"`
	Status       *DosingStatus              `json:"status"`
}

// ScheduleSlot groups the doses falling in one half-hour window.
type ScheduleSlot struct {
	Key         string           `json:"key"`
	Time        time.Time        `json:"time"`
	Medications []SlotMedication `json:"medications"`
	Conflicts   []Conflict       `json:"conflicts"`
}

type TimelineDay struct {
	Date                 string         `json:"date"`
	Slots                []ScheduleSlot `json:"slots"`
	TotalMedications     int            `json:"total_medications"`
	CompletedMedications int            `json:"completed_medications"`
	MissedMedications    int            `json:"missed_medications"`
	UpcomingMedications  int            `json:"upcoming_medications"`
	AdherenceRate        float64        `json:"adherence_rate"`
}

// StatusRequest is the body of a status update.
type StatusRequest struct {
	Status     string     `json:"status"`
	Notes      *string    `json:"notes"`
	ActualTime *time.Time `json:"actual_time"`
}
