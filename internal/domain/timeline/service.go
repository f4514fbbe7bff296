package timeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medintel/medintel/internal/domain/prescription"
	"github.com/medintel/medintel/internal/platform/db"
	"github.com/medintel/medintel/internal/platform/telemetry"
)

// Catalog is the read side of prescriptions the timeline needs. Lookups are
// scoped to the user; other users' records read as not found.
type Catalog interface {
	Get(ctx context.Context, userID string, id uuid.UUID) (*prescription.Prescription, error)
	Medicine(ctx context.Context, userID string, id uuid.UUID) (*prescription.Medicine, *prescription.Prescription, error)
	MedicinesForUser(ctx context.Context, userID string) ([]*prescription.Medicine, error)
	PrescriptionsByIDs(ctx context.Context, ids []uuid.UUID) ([]*prescription.Prescription, error)
}

type Service struct {
	catalog   Catalog
	schedules ScheduleRepository
	statuses  StatusRepository
	tx        db.Transactor
	detector  *Detector
	loc       *time.Location
	now       func() time.Time
	metrics   *telemetry.Collector
	logger    zerolog.Logger
}

func NewService(catalog Catalog, schedules ScheduleRepository, statuses StatusRepository, tx db.Transactor, detector *Detector, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	if detector == nil {
		detector = NewDetector(DefaultInteractions(), loc)
	}
	return &Service{
		catalog:   catalog,
		schedules: schedules,
		statuses:  statuses,
		tx:        tx,
		detector:  detector,
		loc:       loc,
		now:       time.Now,
		logger:    zerolog.Nop(),
	}
}

func (s *Service) SetMetrics(m *telemetry.Collector) {
	s.metrics = m
}

func (s *Service) SetLogger(l zerolog.Logger) {
	s.logger = l.With().Str("component", "timeline").Logger()
}

func (s *Service) Location() *time.Location { return s.loc }

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// GenerateSummary is the outcome of regenerating a prescription's schedules.
type GenerateSummary struct {
	Schedules []*DosingEvent `json:"schedules"`
	Message   string         `json:"message"`
	Warnings  []string       `json:"warnings"`
}

// GenerateSchedules replaces the schedules of every medicine on the
// prescription in one transaction.
func (s *Service) GenerateSchedules(ctx context.Context, userID string, prescriptionID uuid.UUID, start, end *time.Time) (*GenerateSummary, error) {
	p, err := s.catalog.Get(ctx, userID, prescriptionID)
	if err != nil {
		return nil, err
	}

	out := &GenerateSummary{Schedules: []*DosingEvent{}, Warnings: []string{}}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		for _, m := range p.Medicines {
			res, err := s.replace(ctx, userID, m, p, start, end)
			if err != nil {
				return err
			}
			out.Schedules = append(out.Schedules, res.Events...)
			out.Warnings = append(out.Warnings, res.Warnings...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out.Message = fmt.Sprintf("Generated %d medication schedules", len(out.Schedules))
	return out, nil
}

// RegenerateMedicine rebuilds one medicine's schedule after an edit, keeping
// the start date of its current schedule when there is one.
func (s *Service) RegenerateMedicine(ctx context.Context, userID string, m *prescription.Medicine, p *prescription.Prescription) error {
	existing, err := s.schedules.ListByMedicine(ctx, m.ID)
	if err != nil {
		return err
	}
	var start *time.Time
	if len(existing) > 0 {
		d := existing[0].StartDate
		t := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, s.loc)
		start = &t
	}
	_, err = s.replace(ctx, userID, m, p, start, nil)
	return err
}

func (s *Service) replace(ctx context.Context, userID string, m *prescription.Medicine, p *prescription.Prescription, start, end *time.Time) (GenerateResult, error) {
	res := Generate(GenerateInput{
		Medicine:     m,
		Prescription: p,
		UserID:       userID,
		StartDate:    start,
		EndDate:      end,
		Now:          s.now(),
		Location:     s.loc,
	})
	for _, w := range res.Warnings {
		s.logger.Warn().
			Str("medicine_id", m.ID.String()).
			Str("prescription_id", p.ID.String()).
			Msg(w)
	}

	if err := s.schedules.ReplaceForMedicine(ctx, m.ID, res.Events); err != nil {
		return res, fmt.Errorf("replace schedules of %s: %w", m.Name, err)
	}

	if s.metrics != nil {
		class := "oral"
		if IsApplication(m) {
			class = "application"
		}
		s.metrics.SchedulesGenerated.WithLabelValues(class).Add(float64(len(res.Events)))
		s.metrics.GenerationWarnings.Add(float64(len(res.Warnings)))
	}
	return res, nil
}

// dayBounds returns the first instant of date's calendar day and of the next.
func (s *Service) dayBounds(date time.Time) (time.Time, time.Time) {
	y, m, d := date.In(s.loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, s.loc)
	return start, start.AddDate(0, 0, 1)
}

func (s *Service) SchedulesForDate(ctx context.Context, userID string, date time.Time) ([]*DosingEvent, error) {
	start, end := s.dayBounds(date)
	return s.schedules.ListForRange(ctx, userID, start, end)
}

func (s *Service) StatusesForDate(ctx context.Context, userID string, date time.Time) ([]*DosingStatus, error) {
	start, end := s.dayBounds(date)
	return s.StatusesForRange(ctx, userID, start, end)
}

func (s *Service) StatusesForRange(ctx context.Context, userID string, start, end time.Time) ([]*DosingStatus, error) {
	if !end.After(start) {
		return nil, validationError("range end must be after start")
	}
	return s.statuses.ListForRange(ctx, userID, start, end)
}

// ownedSchedule hides other users' schedules as not found.
func (s *Service) ownedSchedule(ctx context.Context, userID string, id uuid.UUID) (*DosingEvent, error) {
	ev, err := s.schedules.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ev.UserID != userID {
		return nil, ErrScheduleNotFound
	}
	return ev, nil
}

// RecordStatus writes the outcome of one dose. A later write for the same
// schedule replaces the earlier one; no history is kept.
func (s *Service) RecordStatus(ctx context.Context, userID string, scheduleID uuid.UUID, req StatusRequest) (*DosingStatus, error) {
	status := StatusType(req.Status)
	if !status.Recordable() {
		return nil, validationError("status must be one of taken, missed, skipped, got %q", req.Status)
	}
	ev, err := s.ownedSchedule(ctx, userID, scheduleID)
	if err != nil {
		return nil, err
	}

	actual := s.now()
	if req.ActualTime != nil && !req.ActualTime.IsZero() {
		actual = *req.ActualTime
	}
	st := &DosingStatus{
		ScheduleID:     ev.ID,
		MedicineID:     ev.MedicineID,
		PrescriptionID: ev.PrescriptionID,
		UserID:         userID,
		ScheduledTime:  ev.ScheduledTime,
		ActualTime:     &actual,
		Status:         status,
		Notes:          req.Notes,
	}
	if err := s.statuses.Upsert(ctx, st); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.StatusUpdates.WithLabelValues(string(status)).Inc()
	}
	s.logger.Debug().
		Str("schedule_id", scheduleID.String()).
		Str("status", string(status)).
		Msg("dose status recorded")
	return st, nil
}

// UpdateMealTiming retags one dose without regenerating the schedule.
func (s *Service) UpdateMealTiming(ctx context.Context, userID string, scheduleID uuid.UUID, meal string) error {
	mt := MealTiming(meal)
	if !mt.Valid() {
		return validationError("meal_timing must be one of breakfast, lunch, dinner, evening, got %q", meal)
	}
	if _, err := s.ownedSchedule(ctx, userID, scheduleID); err != nil {
		return err
	}
	return s.schedules.UpdateMealTiming(ctx, scheduleID, mt)
}

// Conflicts recomputes the conflicts over the user's active schedules and
// current medicines.
func (s *Service) Conflicts(ctx context.Context, userID string) ([]Conflict, error) {
	medicines, err := s.catalog.MedicinesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.conflicts(ctx, userID, medicines)
}

func (s *Service) conflicts(ctx context.Context, userID string, medicines []*prescription.Medicine) ([]Conflict, error) {
	events, err := s.schedules.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	conflicts := s.detector.Detect(userID, events, medicines)

	if s.metrics != nil {
		for _, c := range conflicts {
			s.metrics.ConflictsDetected.WithLabelValues(string(c.Type), string(c.Severity)).Inc()
		}
	}
	return conflicts, nil
}

// Timeline assembles the user's day from its schedules, statuses and the
// current conflicts.
func (s *Service) Timeline(ctx context.Context, userID string, date time.Time) (*TimelineDay, error) {
	events, err := s.SchedulesForDate(ctx, userID, date)
	if err != nil {
		return nil, err
	}
	statuses, err := s.StatusesForDate(ctx, userID, date)
	if err != nil {
		return nil, err
	}
	medicines, err := s.catalog.MedicinesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	conflicts, err := s.conflicts(ctx, userID, medicines)
	if err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, ev := range events {
		if !seen[ev.PrescriptionID] {
			seen[ev.PrescriptionID] = true
			ids = append(ids, ev.PrescriptionID)
		}
	}
	prescriptions, err := s.catalog.PrescriptionsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	return Assemble(AssembleInput{
		Date:          date,
		Location:      s.loc,
		Schedules:     events,
		Medicines:     medicines,
		Prescriptions: prescriptions,
		Statuses:      statuses,
		Conflicts:     conflicts,
	}), nil
}

// NextDoseResult reports when a medicine is next due. Next is nil for
// frequencies without fixed spacing, such as as-needed.
type NextDoseResult struct {
	MedicineID uuid.UUID  `json:"medicine_id"`
	Frequency  string     `json:"frequency"`
	LastTaken  time.Time  `json:"last_taken"`
	Next       *time.Time `json:"next_dose"`
}

func (s *Service) NextDose(ctx context.Context, userID string, medicineID uuid.UUID, lastTaken time.Time) (*NextDoseResult, error) {
	if lastTaken.IsZero() {
		return nil, validationError("last_taken is required")
	}
	m, _, err := s.catalog.Medicine(ctx, userID, medicineID)
	if err != nil {
		return nil, err
	}
	out := &NextDoseResult{MedicineID: m.ID, Frequency: m.Frequency, LastTaken: lastTaken}
	if next, ok := NextDose(m.Frequency, lastTaken); ok {
		out.Next = &next
	}
	return out, nil
}
