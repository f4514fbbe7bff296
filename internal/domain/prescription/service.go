package prescription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medintel/medintel/internal/platform/db"
)

// ScheduleRegenerator rebuilds the dosing schedule of an edited medicine.
type ScheduleRegenerator interface {
	RegenerateMedicine(ctx context.Context, userID string, m *Medicine, p *Prescription) error
}

type Service struct {
	prescriptions PrescriptionRepository
	medicines     MedicineRepository
	tx            db.Transactor
	loc           *time.Location
	regen         ScheduleRegenerator
	logger        zerolog.Logger
}

func NewService(rx PrescriptionRepository, meds MedicineRepository, tx db.Transactor, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		prescriptions: rx,
		medicines:     meds,
		tx:            tx,
		loc:           loc,
		logger:        zerolog.Nop(),
	}
}

// SetRegenerator attaches the timeline service. Without one, medicine edits
// leave existing schedules in place.
func (s *Service) SetRegenerator(r ScheduleRegenerator) {
	s.regen = r
}

func (s *Service) SetLogger(l zerolog.Logger) {
	s.logger = l.With().Str("component", "prescription").Logger()
}

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func (s *Service) Create(ctx context.Context, userID string, req *CreateRequest) (*Prescription, error) {
	if userID == "" {
		return nil, validationError("user id is required")
	}

	p := &Prescription{
		UserID:               userID,
		FileName:             req.FileName,
		DoctorName:           req.DoctorName,
		HospitalClinic:       req.HospitalClinic,
		ConsultationDate:     ParseExtractedDate(req.ConsultationDate, s.loc),
		PatientName:          req.PatientName,
		Diagnosis:            req.Diagnosis,
		FollowUpDate:         ParseExtractedDate(req.FollowUpDate, s.loc),
		SpecialInstructions:  req.SpecialInstructions,
		PrescriptionNumber:   req.PrescriptionNumber,
		ProcessingStatus:     ProcessingStatus(req.ProcessingStatus),
		ExtractionConfidence: req.ExtractionConfidence,
		PriorityLevel:        s.priority(req.PriorityLevel, "prescription"),
	}
	if p.ProcessingStatus == "" {
		p.ProcessingStatus = ProcessingCompleted
	}
	if !p.ProcessingStatus.Valid() {
		return nil, validationError("invalid processing_status: %s", req.ProcessingStatus)
	}
	if p.ExtractionConfidence == nil {
		c := ExtractionConfidence(req)
		p.ExtractionConfidence = &c
	}

	meds := make([]*Medicine, 0, len(req.Medicines))
	for i, in := range req.Medicines {
		m, err := s.medicineFromInput(in)
		if err != nil {
			return nil, fmt.Errorf("medicines[%d]: %w", i, err)
		}
		meds = append(meds, m)
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.prescriptions.Create(ctx, p); err != nil {
			return fmt.Errorf("create prescription: %w", err)
		}
		for _, m := range meds {
			m.PrescriptionID = p.ID
			if err := s.medicines.Create(ctx, m); err != nil {
				return fmt.Errorf("create medicine %q: %w", m.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.Medicines = meds
	s.logger.Info().
		Str("prescription_id", p.ID.String()).
		Int("medicines", len(meds)).
		Float64("confidence", *p.ExtractionConfidence).
		Msg("prescription stored")
	return p, nil
}

// priority and route fall back to the defaults for unreadable extracted
// values and log what was dropped.
func (s *Service) priority(raw, subject string) PriorityLevel {
	p, ok := NormalizePriority(raw)
	if !ok {
		s.logger.Warn().Str("subject", subject).Str("priority_level", raw).
			Msg("unrecognised priority level, using medium")
	}
	return p
}

func (s *Service) route(raw, subject string) AdministrationRoute {
	r, ok := NormalizeRoute(raw)
	if !ok {
		s.logger.Warn().Str("subject", subject).Str("administration_route", raw).
			Msg("unrecognised administration route, using oral")
	}
	return r
}

func (s *Service) medicineFromInput(in MedicineInput) (*Medicine, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, validationError("name is required")
	}
	m := &Medicine{
		Name:                name,
		GenericName:         in.GenericName,
		Dosage:              in.Dosage,
		Frequency:           in.Frequency,
		Duration:            in.Duration,
		Instructions:        in.Instructions,
		Quantity:            in.Quantity,
		TimingInstructions:  in.TimingInstructions,
		PriorityLevel:       s.priority(in.PriorityLevel, name),
		AdministrationRoute: s.route(in.AdministrationRoute, name),
	}
	return m, nil
}

// owned loads a prescription and hides other users' records as not found.
func (s *Service) owned(ctx context.Context, userID string, id uuid.UUID) (*Prescription, error) {
	p, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, ErrPrescriptionNotFound
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, userID string, id uuid.UUID) (*Prescription, error) {
	p, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	meds, err := s.medicines.ListByPrescription(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Medicines = meds
	return p, nil
}

// List returns a page of the user's prescriptions, newest first, each with
// its medicines.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]*Prescription, int, error) {
	items, total, err := s.prescriptions.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	if len(items) == 0 {
		return items, total, nil
	}

	ids := make([]uuid.UUID, len(items))
	byID := make(map[uuid.UUID]*Prescription, len(items))
	for i, p := range items {
		ids[i] = p.ID
		byID[p.ID] = p
	}
	meds, err := s.medicines.ListByPrescriptions(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for _, m := range meds {
		if p, ok := byID[m.PrescriptionID]; ok {
			p.Medicines = append(p.Medicines, m)
		}
	}
	return items, total, nil
}

// Delete removes the prescription; medicines, schedules and statuses go
// with it through the foreign-key cascade.
func (s *Service) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	return s.prescriptions.Delete(ctx, id)
}

// Medicine returns a medicine together with its owning prescription.
func (s *Service) Medicine(ctx context.Context, userID string, id uuid.UUID) (*Medicine, *Prescription, error) {
	m, err := s.medicines.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	p, err := s.prescriptions.GetByID(ctx, m.PrescriptionID)
	if errors.Is(err, ErrPrescriptionNotFound) {
		return nil, nil, ErrMedicineNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	if p.UserID != userID {
		return nil, nil, ErrMedicineNotFound
	}
	return m, p, nil
}

func (s *Service) MedicinesForUser(ctx context.Context, userID string) ([]*Medicine, error) {
	return s.medicines.ListByUser(ctx, userID)
}

func (s *Service) PrescriptionsByIDs(ctx context.Context, ids []uuid.UUID) ([]*Prescription, error) {
	return s.prescriptions.ListByIDs(ctx, ids)
}

// UpdateMedicine applies the edit and regenerates the medicine's schedule in
// the same transaction.
func (s *Service) UpdateMedicine(ctx context.Context, userID string, id uuid.UUID, upd MedicineUpdate) (*Medicine, error) {
	var out *Medicine
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		m, p, err := s.Medicine(ctx, userID, id)
		if err != nil {
			return err
		}
		if err := s.applyUpdate(m, upd); err != nil {
			return err
		}
		if err := s.medicines.Update(ctx, m); err != nil {
			return err
		}
		if s.regen != nil {
			if err := s.regen.RegenerateMedicine(ctx, userID, m, p); err != nil {
				return fmt.Errorf("regenerate schedule: %w", err)
			}
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) applyUpdate(m *Medicine, upd MedicineUpdate) error {
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return validationError("name cannot be empty")
		}
		m.Name = name
	}
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&m.Dosage, upd.Dosage)
	set(&m.Frequency, upd.Frequency)
	set(&m.Duration, upd.Duration)
	set(&m.Instructions, upd.Instructions)
	set(&m.Quantity, upd.Quantity)
	if upd.GenericName != nil {
		m.GenericName = upd.GenericName
	}
	if upd.TimingInstructions != nil {
		m.TimingInstructions = upd.TimingInstructions
	}
	if upd.PriorityLevel != nil {
		m.PriorityLevel = s.priority(*upd.PriorityLevel, m.Name)
	}
	if upd.AdministrationRoute != nil {
		m.AdministrationRoute = s.route(*upd.AdministrationRoute, m.Name)
	}
	return nil
}
